package runner_test

import (
	"context"
	"strings"
	"testing"
	"time"

	. "github.com/1kaiser/llm-consistency-vis/pkg/runner"
)

func TestCaptureRunner_ZeroExit(t *testing.T) {
	r := NewCaptureRunner()

	res := r.Run(context.Background(), "sh", []string{"-c", "echo hello"})

	if res.Err != nil {
		t.Fatalf("expected no error, got %v", res.Err)
	}
	if res.ExitCode != 0 {
		t.Errorf("expected exit code 0, got %d", res.ExitCode)
	}
	if strings.TrimSpace(res.Stdout) != "hello" {
		t.Errorf("expected stdout 'hello', got %q", res.Stdout)
	}
}

func TestCaptureRunner_NonZeroExit(t *testing.T) {
	r := NewCaptureRunner()

	res := r.Run(context.Background(), "sh", []string{"-c", "echo oops >&2; exit 3"})

	if res.Err == nil {
		t.Fatal("expected an error for non-zero exit")
	}
	if res.ExitCode != 3 {
		t.Errorf("expected exit code 3, got %d", res.ExitCode)
	}
	if strings.TrimSpace(res.Stderr) != "oops" {
		t.Errorf("expected stderr 'oops', got %q", res.Stderr)
	}
}

func TestCaptureRunner_MissingBinary(t *testing.T) {
	r := NewCaptureRunner()

	res := r.Run(context.Background(), "definitely-not-a-real-binary-xyz", []string{"--version"})

	if res.Err == nil {
		t.Fatal("expected an error for a missing binary")
	}
	if res.ExitCode != -1 {
		t.Errorf("expected exit code -1 for start failure, got %d", res.ExitCode)
	}
}

func TestCaptureRunner_ContextCancel(t *testing.T) {
	r := NewCaptureRunner()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	res := r.Run(ctx, "sleep", []string{"10"})

	if res.Err == nil {
		t.Fatal("expected an error for a cancelled command")
	}
	if time.Since(start) > 5*time.Second {
		t.Error("cancelled command did not return promptly")
	}
}
