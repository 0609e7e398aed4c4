package runner

import (
	"bytes"
	"context"
	"os/exec"
	"syscall"
	"time"
)

// CaptureRunner runs a command to completion with stdout/stderr buffered.
type CaptureRunner struct{}

func NewCaptureRunner() *CaptureRunner {
	return &CaptureRunner{}
}

func (r *CaptureRunner) Run(ctx context.Context, cmdStr string, args []string) Result {
	start := time.Now()

	cmd := exec.CommandContext(ctx, cmdStr, args...)

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	// New process group so a cancelled install doesn't leave npm's
	// child tree behind.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	err := cmd.Run()
	duration := time.Since(start)

	exitCode := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			// Failed to start: executable missing, permission denied, etc.
			exitCode = -1
		}
	}

	return Result{
		ExitCode: exitCode,
		Stdout:   stdoutBuf.String(),
		Stderr:   stderrBuf.String(),
		Duration: duration,
		Err:      err,
	}
}
