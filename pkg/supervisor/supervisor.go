package supervisor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/1kaiser/llm-consistency-vis/pkg/metrics"
)

// Outcome describes how one supervised run ended.
//
// Exactly one of three shapes is produced: a start failure
// (Started=false, FailureMessage set), an interrupted run
// (Interrupted=true, ExitCode nil, no failure), or a completed run
// (ExitCode set, FailureMessage set when non-zero).
type Outcome struct {
	ExitCode       *int
	Interrupted    bool
	Started        bool
	FailureMessage string
	Duration       time.Duration
}

// Supervisor launches the server as a foreground child with inherited
// terminal streams and maps its termination to an Outcome.
type Supervisor struct {
	// OnStart, when set, receives the child PID right after a
	// successful start. Used by the status API.
	OnStart func(pid int)
}

func New() *Supervisor {
	return &Supervisor{}
}

// Run blocks until the child exits or ctx is cancelled by a user
// interrupt. On interrupt it forwards SIGINT to the child's process
// group, waits for the child to exit, and reports a clean stop. No
// timeout is imposed on any of this.
func (s *Supervisor) Run(ctx context.Context, command string, args ...string) Outcome {
	start := time.Now()

	cmd := exec.Command(command, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	// Own process group: the child no longer receives the terminal's
	// SIGINT directly, so the interrupt path below is the only stop
	// signal it sees, and killing -pgid reaches npm's whole tree.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return Outcome{
			Started:        false,
			FailureMessage: fmt.Sprintf("failed to start %s: %v", command, err),
			Duration:       time.Since(start),
		}
	}

	metrics.ChildRunning.Set(1)
	defer metrics.ChildRunning.Set(0)

	if s.OnStart != nil {
		s.OnStart(cmd.Process.Pid)
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	var waitErr error
	interrupted := false
	select {
	case waitErr = <-done:
	case <-ctx.Done():
		interrupted = true
		_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGINT)
		waitErr = <-done
	}
	duration := time.Since(start)

	if interrupted {
		metrics.InterruptsTotal.Inc()
		return Outcome{
			Started:     true,
			Interrupted: true,
			Duration:    duration,
		}
	}

	code := 0
	if waitErr != nil {
		if exitErr, ok := waitErr.(*exec.ExitError); ok {
			code = exitErr.ExitCode()
		} else {
			code = -1
		}
	}
	metrics.ChildExitCode.Set(float64(code))

	out := Outcome{
		Started:  true,
		ExitCode: &code,
		Duration: duration,
	}
	if code != 0 {
		out.FailureMessage = fmt.Sprintf("%s exited with code %d", command, code)
	}
	return out
}
