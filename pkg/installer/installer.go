package installer

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/1kaiser/llm-consistency-vis/pkg/metrics"
	"github.com/1kaiser/llm-consistency-vis/pkg/runner"
)

// Installer triggers the npm dependency install for the visualization
// app, guarded by the presence of the dependency-cache directory.
type Installer struct {
	runner         runner.CommandRunner
	npmBin         string
	markerDir      string
	legacyPeerDeps bool

	// Output of the last install invocation, for the session log.
	lastOutput string
}

func NewInstaller(r runner.CommandRunner, npmBin, markerDir string, legacyPeerDeps bool) *Installer {
	return &Installer{
		runner:         r,
		npmBin:         npmBin,
		markerDir:      markerDir,
		legacyPeerDeps: legacyPeerDeps,
	}
}

// EnsureInstalled makes the dependency tree ready. If the marker
// directory already exists it returns (false, nil) without side
// effects. Otherwise it runs the install and returns (true, nil) on a
// zero exit, or a non-nil error carrying the captured install output.
// Callers must only invoke this after the prerequisite probes passed.
func (i *Installer) EnsureInstalled(ctx context.Context) (ran bool, err error) {
	if _, statErr := os.Stat(i.markerDir); statErr == nil {
		return false, nil
	}

	args := []string{"install"}
	if i.legacyPeerDeps {
		// Tolerate peer-dependency conflicts in the app's tree.
		args = append(args, "--legacy-peer-deps")
	}

	start := time.Now()
	res := i.runner.Run(ctx, i.npmBin, args)
	metrics.InstallDuration.Observe(time.Since(start).Seconds())

	i.lastOutput = res.Stdout + res.Stderr

	if res.Err != nil || res.ExitCode != 0 {
		detail := strings.TrimSpace(res.Stderr)
		if detail == "" && res.Err != nil {
			detail = res.Err.Error()
		}
		return true, fmt.Errorf("npm install failed (exit %d): %s", res.ExitCode, detail)
	}

	return true, nil
}

// LastOutput returns the combined output of the most recent install
// invocation. Empty when the marker short-circuited the install.
func (i *Installer) LastOutput() string {
	return i.lastOutput
}
