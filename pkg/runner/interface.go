package runner

import (
	"context"
	"time"
)

// Result captures the outcome of one captured command invocation.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
	Err      error // non-nil when the command could not be started or exited non-zero
}

// CommandRunner executes a single external command to completion,
// capturing its output. Used for the short-lived invocations (version
// probes, dependency install), never for the supervised server itself.
type CommandRunner interface {
	Run(ctx context.Context, cmd string, args []string) Result
}
