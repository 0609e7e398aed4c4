package launcher

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	config "github.com/1kaiser/llm-consistency-vis/configs"
	"github.com/1kaiser/llm-consistency-vis/pkg/logger"
	"github.com/1kaiser/llm-consistency-vis/pkg/metrics"
	"github.com/1kaiser/llm-consistency-vis/pkg/observability"
	"github.com/1kaiser/llm-consistency-vis/pkg/probe"
	"github.com/1kaiser/llm-consistency-vis/pkg/storage"
	"github.com/1kaiser/llm-consistency-vis/pkg/supervisor"
)

// State is the launcher's position in its lifecycle.
type State string

const (
	StateCheckingPrereqs State = "CHECKING_PREREQS"
	StateInstallingDeps  State = "INSTALLING_DEPS"
	StateRunning         State = "RUNNING"
	StateStopped         State = "STOPPED"
	StateFailed          State = "FAILED"
)

// Prober checks for a prerequisite tool.
type Prober interface {
	Probe(ctx context.Context, tool, versionFlag string) probe.Result
}

// DepInstaller makes the app's dependency tree ready.
type DepInstaller interface {
	EnsureInstalled(ctx context.Context) (ran bool, err error)
	LastOutput() string
}

// ProcessSupervisor runs the server as a foreground child.
type ProcessSupervisor interface {
	Run(ctx context.Context, command string, args ...string) supervisor.Outcome
}

// Status is a point-in-time snapshot of the launcher, served by the
// status API.
type Status struct {
	RunID     string    `json:"run_id"`
	State     State     `json:"state"`
	ChildPID  int       `json:"child_pid,omitempty"`
	StartedAt time.Time `json:"started_at"`
}

// Core sequences the launcher's phases: probe prerequisites, install
// dependencies if needed, then supervise the server run. Every failure
// is terminal for the invocation; nothing is retried.
type Core struct {
	cfg        *config.Config
	prober     Prober
	installer  DepInstaller
	supervisor ProcessSupervisor
	tracer     *observability.Provider
	logStore   storage.LogStore
	log        *zap.Logger

	runID     string
	startedAt time.Time

	mu       sync.RWMutex
	state    State
	childPID int

	session strings.Builder
}

func NewCore(cfg *config.Config, prober Prober, inst DepInstaller, sup ProcessSupervisor, tracer *observability.Provider, logStore storage.LogStore) *Core {
	if tracer == nil {
		tracer, _ = observability.Init(context.Background(), observability.Config{
			ServiceName: "llm-consistency-vis-launcher",
			Enabled:     false,
		})
	}
	hostname, _ := os.Hostname()
	return &Core{
		cfg:        cfg,
		prober:     prober,
		installer:  inst,
		supervisor: sup,
		tracer:     tracer,
		logStore:   logStore,
		log:        logger.Get(),
		runID:      fmt.Sprintf("%s-%s", hostname, uuid.New().String()[:8]),
		startedAt:  time.Now(),
		state:      StateCheckingPrereqs,
	}
}

// RunID identifies this launcher invocation in logs, traces and the
// archived session log.
func (c *Core) RunID() string {
	return c.runID
}

// Snapshot returns the current launcher status.
func (c *Core) Snapshot() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Status{
		RunID:     c.runID,
		State:     c.state,
		ChildPID:  c.childPID,
		StartedAt: c.startedAt,
	}
}

// SetChildPID records the supervised child's PID for the status API.
func (c *Core) SetChildPID(pid int) {
	c.mu.Lock()
	c.childPID = pid
	c.mu.Unlock()
}

// Run drives the full sequence and returns the launcher's exit code:
// 0 for a clean stop (including a user interrupt of the running
// server), 1 for any failure.
func (c *Core) Run(ctx context.Context) int {
	defer c.archiveSession()

	if !c.checkPrereqs(ctx) {
		return c.fail()
	}
	if interrupted(ctx) {
		c.note("interrupted before install")
		c.log.Warn("🛑 Interrupted before the server started")
		return c.fail()
	}

	if !c.installDeps(ctx) {
		return c.fail()
	}
	if interrupted(ctx) {
		c.note("interrupted before server start")
		c.log.Warn("🛑 Interrupted before the server started")
		return c.fail()
	}

	return c.superviseRun(ctx)
}

func (c *Core) checkPrereqs(ctx context.Context) bool {
	c.setState(StateCheckingPrereqs)
	spanCtx, span := c.tracer.StartSpan(ctx, "checking_prereqs")
	defer span.End()

	// Fixed order: the runtime first, then its package manager.
	tools := []struct {
		bin   string
		label string
	}{
		{c.cfg.NodeBin, "Node.js"},
		{c.cfg.NpmBin, "npm"},
	}

	for _, tool := range tools {
		res := c.prober.Probe(spanCtx, tool.bin, c.cfg.VersionFlag)
		if !res.Present {
			c.note(fmt.Sprintf("prereq %s: missing", tool.bin))
			c.log.Error(fmt.Sprintf("❌ %s not found", tool.label), zap.String("binary", tool.bin))
			c.log.Info("💡 Install Node.js from https://nodejs.org/ and run the launcher again")
			observability.SetError(spanCtx, fmt.Errorf("%s not found", tool.bin))
			metrics.RecordPhase("checking_prereqs", "failed")
			return false
		}
		c.note(fmt.Sprintf("prereq %s: %s", tool.bin, res.Version))
		c.log.Info(fmt.Sprintf("✅ %s found", tool.label), zap.String("version", res.Version))
		observability.SetAttributes(spanCtx, attribute.String(tool.bin+".version", res.Version))
	}

	metrics.RecordPhase("checking_prereqs", "ok")
	return true
}

func (c *Core) installDeps(ctx context.Context) bool {
	c.setState(StateInstallingDeps)
	spanCtx, span := c.tracer.StartSpan(ctx, "installing_deps")
	defer span.End()

	c.log.Info("📦 Checking dependencies", zap.String("marker", c.cfg.MarkerDir))
	ran, err := c.installer.EnsureInstalled(spanCtx)
	if out := c.installer.LastOutput(); out != "" {
		c.note("install output:\n" + out)
	}
	if err != nil {
		c.note("install failed: " + err.Error())
		c.log.Error("❌ Dependency installation failed", zap.Error(err))
		observability.SetError(spanCtx, err)
		metrics.RecordPhase("installing_deps", "failed")
		return false
	}

	if ran {
		c.note("install: completed")
		c.log.Info("✅ Dependencies installed successfully")
	} else {
		c.note("install: skipped, marker present")
		c.log.Info("✅ Dependencies already installed")
	}
	observability.SetAttributes(spanCtx, attribute.Bool("install.ran", ran))
	metrics.RecordPhase("installing_deps", "ok")
	return true
}

func (c *Core) superviseRun(ctx context.Context) int {
	c.setState(StateRunning)
	spanCtx, span := c.tracer.StartSpan(ctx, "running")
	defer span.End()

	c.log.Info("🚀 Starting visualization server",
		zap.String("command", c.cfg.NpmBin+" start"))

	outcome := c.supervisor.Run(spanCtx, c.cfg.NpmBin, "start")
	observability.SetAttributes(spanCtx,
		attribute.Bool("child.started", outcome.Started),
		attribute.Bool("child.interrupted", outcome.Interrupted),
	)

	switch {
	case outcome.Interrupted:
		// The user stopping a long-running server is the normal way
		// to end the session, not an error.
		c.note("run: stopped by user")
		c.log.Info("🛑 Server stopped by user", zap.Duration("uptime", outcome.Duration))
		metrics.RecordPhase("running", "stopped")
		c.setState(StateStopped)
		return 0

	case !outcome.Started:
		c.note("run: " + outcome.FailureMessage)
		c.log.Error("❌ Server could not be started", zap.String("reason", outcome.FailureMessage))
		observability.SetError(spanCtx, fmt.Errorf("%s", outcome.FailureMessage))
		metrics.RecordPhase("running", "launch_failed")
		return c.fail()

	case *outcome.ExitCode == 0:
		c.note("run: exited cleanly")
		c.log.Info("✅ Server exited cleanly", zap.Duration("uptime", outcome.Duration))
		metrics.RecordPhase("running", "stopped")
		c.setState(StateStopped)
		return 0

	default:
		c.note("run: " + outcome.FailureMessage)
		c.log.Error("❌ Server failed",
			zap.Int("exit_code", *outcome.ExitCode),
			zap.Duration("uptime", outcome.Duration))
		observability.SetError(spanCtx, fmt.Errorf("%s", outcome.FailureMessage))
		metrics.RecordPhase("running", "failed")
		return c.fail()
	}
}

func (c *Core) fail() int {
	c.setState(StateFailed)
	return 1
}

func (c *Core) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Core) note(line string) {
	c.mu.Lock()
	c.session.WriteString(time.Now().UTC().Format(time.RFC3339))
	c.session.WriteString(" ")
	c.session.WriteString(line)
	c.session.WriteString("\n")
	c.mu.Unlock()
}

// archiveSession stores the per-run session log. Best-effort: the
// launcher's exit code never depends on archival.
func (c *Core) archiveSession() {
	if c.logStore == nil {
		return
	}

	c.mu.RLock()
	body := fmt.Sprintf("run %s (final state %s)\n%s", c.runID, c.state, c.session.String())
	c.mu.RUnlock()

	// The run context may already be cancelled by the interrupt that
	// ended the session.
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	ref, err := c.logStore.Store(ctx, c.runID, []byte(body))
	if err != nil {
		c.log.Warn("Failed to archive session log", zap.Error(err))
		return
	}
	c.log.Debug("Session log archived", zap.String("ref", ref))
}

func interrupted(ctx context.Context) bool {
	return ctx.Err() != nil
}
