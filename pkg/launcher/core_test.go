package launcher_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	config "github.com/1kaiser/llm-consistency-vis/configs"
	"github.com/1kaiser/llm-consistency-vis/pkg/launcher"
	"github.com/1kaiser/llm-consistency-vis/pkg/probe"
	"github.com/1kaiser/llm-consistency-vis/pkg/storage"
	"github.com/1kaiser/llm-consistency-vis/pkg/supervisor"
)

type stubProber struct {
	present map[string]bool
	calls   []string
}

func (s *stubProber) Probe(_ context.Context, tool, _ string) probe.Result {
	s.calls = append(s.calls, tool)
	if s.present[tool] {
		return probe.Result{Tool: tool, Present: true, Version: "v1.0.0"}
	}
	return probe.Result{Tool: tool, Present: false}
}

type stubInstaller struct {
	ran    bool
	err    error
	output string
	calls  int
}

func (s *stubInstaller) EnsureInstalled(context.Context) (bool, error) {
	s.calls++
	return s.ran, s.err
}

func (s *stubInstaller) LastOutput() string { return s.output }

type stubSupervisor struct {
	outcome supervisor.Outcome
	calls   int
	gotCmd  string
	gotArgs []string
}

func (s *stubSupervisor) Run(_ context.Context, command string, args ...string) supervisor.Outcome {
	s.calls++
	s.gotCmd = command
	s.gotArgs = args
	return s.outcome
}

func testConfig() *config.Config {
	return &config.Config{
		NodeBin:     "node",
		NpmBin:      "npm",
		VersionFlag: "--version",
		MarkerDir:   "node_modules",
	}
}

func intptr(v int) *int { return &v }

func allPresent() *stubProber {
	return &stubProber{present: map[string]bool{"node": true, "npm": true}}
}

func TestRun_HappyPath(t *testing.T) {
	// Scenario A: tools present, marker absent, install succeeds,
	// child exits 0.
	prober := allPresent()
	inst := &stubInstaller{ran: true, output: "added 120 packages"}
	sup := &stubSupervisor{outcome: supervisor.Outcome{Started: true, ExitCode: intptr(0)}}

	core := launcher.NewCore(testConfig(), prober, inst, sup, nil, nil)
	code := core.Run(context.Background())

	assert.Equal(t, 0, code)
	assert.Equal(t, launcher.StateStopped, core.Snapshot().State)
	assert.Equal(t, []string{"node", "npm"}, prober.calls)
	assert.Equal(t, 1, inst.calls)
	assert.Equal(t, "npm", sup.gotCmd)
	assert.Equal(t, []string{"start"}, sup.gotArgs)
}

func TestRun_MissingPrerequisiteShortCircuits(t *testing.T) {
	// Scenario B: npm absent. Nothing past the probe phase may run.
	prober := &stubProber{present: map[string]bool{"node": true, "npm": false}}
	inst := &stubInstaller{}
	sup := &stubSupervisor{}

	core := launcher.NewCore(testConfig(), prober, inst, sup, nil, nil)
	code := core.Run(context.Background())

	assert.Equal(t, 1, code)
	assert.Equal(t, launcher.StateFailed, core.Snapshot().State)
	assert.Zero(t, inst.calls, "install must not be attempted")
	assert.Zero(t, sup.calls, "run must not be attempted")
}

func TestRun_InstallFailureIsFatal(t *testing.T) {
	prober := allPresent()
	inst := &stubInstaller{ran: true, err: errors.New("npm install failed (exit 2): npm ERR!")}
	sup := &stubSupervisor{}

	core := launcher.NewCore(testConfig(), prober, inst, sup, nil, nil)
	code := core.Run(context.Background())

	assert.Equal(t, 1, code)
	assert.Equal(t, launcher.StateFailed, core.Snapshot().State)
	assert.Zero(t, sup.calls, "run must not be attempted after an install failure")
}

func TestRun_InterruptedServerIsCleanStop(t *testing.T) {
	// Scenario C: marker present (install skipped), user interrupts
	// the running server.
	prober := allPresent()
	inst := &stubInstaller{ran: false}
	sup := &stubSupervisor{outcome: supervisor.Outcome{Started: true, Interrupted: true}}

	core := launcher.NewCore(testConfig(), prober, inst, sup, nil, nil)
	code := core.Run(context.Background())

	assert.Equal(t, 0, code)
	assert.Equal(t, launcher.StateStopped, core.Snapshot().State)
	assert.Equal(t, 1, inst.calls)
	assert.Equal(t, 1, sup.calls)
}

func TestRun_ChildFailureIsFatal(t *testing.T) {
	prober := allPresent()
	inst := &stubInstaller{ran: false}
	sup := &stubSupervisor{outcome: supervisor.Outcome{
		Started:        true,
		ExitCode:       intptr(1),
		FailureMessage: "npm exited with code 1",
	}}

	core := launcher.NewCore(testConfig(), prober, inst, sup, nil, nil)
	code := core.Run(context.Background())

	assert.Equal(t, 1, code)
	assert.Equal(t, launcher.StateFailed, core.Snapshot().State)
}

func TestRun_LaunchFailureIsFatal(t *testing.T) {
	prober := allPresent()
	inst := &stubInstaller{ran: false}
	sup := &stubSupervisor{outcome: supervisor.Outcome{
		Started:        false,
		FailureMessage: "failed to start npm: executable file not found in $PATH",
	}}

	core := launcher.NewCore(testConfig(), prober, inst, sup, nil, nil)
	code := core.Run(context.Background())

	assert.Equal(t, 1, code)
	assert.Equal(t, launcher.StateFailed, core.Snapshot().State)
}

func TestRun_EarlyInterruptExitsPromptly(t *testing.T) {
	prober := allPresent()
	inst := &stubInstaller{}
	sup := &stubSupervisor{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // interrupt lands before the install phase

	core := launcher.NewCore(testConfig(), prober, inst, sup, nil, nil)
	code := core.Run(ctx)

	assert.Equal(t, 1, code)
	assert.Zero(t, inst.calls, "install must not start after an interrupt")
	assert.Zero(t, sup.calls, "run must not start after an interrupt")
}

func TestRun_ArchivesSessionLog(t *testing.T) {
	dir := t.TempDir()
	logStore, err := storage.NewFileLogStore(dir)
	require.NoError(t, err)

	prober := allPresent()
	inst := &stubInstaller{ran: false}
	sup := &stubSupervisor{outcome: supervisor.Outcome{Started: true, ExitCode: intptr(0)}}

	core := launcher.NewCore(testConfig(), prober, inst, sup, nil, logStore)
	code := core.Run(context.Background())
	require.Equal(t, 0, code)

	body, err := os.ReadFile(filepath.Join(dir, core.RunID()+".log"))
	require.NoError(t, err)
	assert.Contains(t, string(body), "STOPPED")
	assert.Contains(t, string(body), "prereq node: v1.0.0")
	assert.Contains(t, string(body), "install: skipped, marker present")
}

func TestSnapshot_TracksChildPID(t *testing.T) {
	core := launcher.NewCore(testConfig(), allPresent(), &stubInstaller{}, &stubSupervisor{}, nil, nil)

	core.SetChildPID(4242)

	snap := core.Snapshot()
	assert.Equal(t, 4242, snap.ChildPID)
	assert.NotEmpty(t, snap.RunID)
	assert.Equal(t, launcher.StateCheckingPrereqs, snap.State)
}
