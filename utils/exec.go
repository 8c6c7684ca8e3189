package utils

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"syscall"
	"time"
)

// DefaultTimeout bounds Execute when no timeout is given.
const DefaultTimeout = 120 * time.Second

// Execute runs script through "sh -c" and returns its exit code and output.
// The whole process group is killed when the timeout or ctx expires.
func Execute(ctx context.Context, script string, timeout time.Duration) (int, string, string, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.Command("sh", "-c", script)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return -1, "", "", fmt.Errorf("failed to start script: %w", err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		var exitErr *exec.ExitError
		if err != nil && !errors.As(err, &exitErr) {
			return -1, stdout.String(), stderr.String(), fmt.Errorf("script failed: %w", err)
		}
		return cmd.ProcessState.ExitCode(), stdout.String(), stderr.String(), nil
	case <-ctx.Done():
		_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		<-done
		return -1, stdout.String(), stderr.String(), fmt.Errorf("script killed: %w", ctx.Err())
	}
}
