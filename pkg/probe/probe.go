package probe

import (
	"context"
	"strings"
	"time"

	"github.com/1kaiser/llm-consistency-vis/pkg/metrics"
	"github.com/1kaiser/llm-consistency-vis/pkg/runner"
)

// Result reports whether a prerequisite tool is present on this machine.
type Result struct {
	Tool    string
	Present bool
	Version string // trimmed first line of the version output, when present
}

// Prober checks for externally installed executables by invoking them
// with their version flag.
type Prober struct {
	runner runner.CommandRunner
}

func NewProber(r runner.CommandRunner) *Prober {
	return &Prober{runner: r}
}

// Probe invokes `tool versionFlag` and reports presence. Absence of the
// executable and a non-zero exit are both normal outcomes, never errors:
// the caller only ever needs the boolean and the version string.
func (p *Prober) Probe(ctx context.Context, tool, versionFlag string) Result {
	start := time.Now()
	res := p.runner.Run(ctx, tool, []string{versionFlag})
	metrics.ProbeDuration.WithLabelValues(tool).Observe(time.Since(start).Seconds())

	if res.Err != nil || res.ExitCode != 0 {
		return Result{Tool: tool, Present: false}
	}

	return Result{
		Tool:    tool,
		Present: true,
		Version: firstLine(res.Stdout),
	}
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
