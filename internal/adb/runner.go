// ABOUTME: Runs external commands for the adb bridge
// ABOUTME: Wraps os/exec and converts non-zero exits into CommandError
package adb

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Runner executes a command and returns its trimmed stdout
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (string, error)
}

// CommandError is returned when a command exits with a non-zero status
type CommandError struct {
	Args   []string
	Code   int
	Stderr string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("adb command %q failed with code %d: %s",
		strings.Join(e.Args, " "), e.Code, strings.TrimSpace(e.Stderr))
}

// ExecRunner runs commands on the host
type ExecRunner struct{}

// Run implements Runner
func (ExecRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	hideWindow(cmd)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", &CommandError{
				Args:   append([]string{name}, args...),
				Code:   exitErr.ExitCode(),
				Stderr: stderr.String(),
			}
		}
		return "", fmt.Errorf("failed to run %s: %w", name, err)
	}

	return strings.TrimSpace(stdout.String()), nil
}
