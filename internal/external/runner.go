// Package external wraps the command-line tools apm delegates to: fdroidcl
// for repository indexes and installs, adb for device queries.
package external

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/ralt/apm/internal/models"
	"github.com/sirupsen/logrus"
)

// Runner executes an external command
type Runner interface {
	// Output runs name with args and returns its trimmed stdout
	Output(ctx context.Context, env []string, name string, args ...string) (string, error)

	// Run runs name with args attached to the terminal
	Run(ctx context.Context, env []string, name string, args ...string) error
}

// ExecRunner implements Runner with os/exec
type ExecRunner struct{}

// NewExecRunner creates a runner backed by os/exec
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// Output runs the command and captures stdout
func (r *ExecRunner) Output(ctx context.Context, env []string, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = append(os.Environ(), env...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logrus.Debugf("Running %s %s", name, strings.Join(args, " "))
	if err := cmd.Run(); err != nil {
		return strings.TrimSpace(stdout.String()), commandError(name, args, err, stderr.String())
	}
	return strings.TrimSpace(stdout.String()), nil
}

// Run runs the command with the caller's stdio
func (r *ExecRunner) Run(ctx context.Context, env []string, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = append(os.Environ(), env...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	logrus.Debugf("Running %s %s", name, strings.Join(args, " "))
	if err := cmd.Run(); err != nil {
		return commandError(name, args, err, "")
	}
	return nil
}

func commandError(name string, args []string, err error, stderr string) error {
	subject := strings.TrimSpace(name + " " + strings.Join(args, " "))
	if errors.Is(err, exec.ErrNotFound) {
		return models.NewError(models.ErrExternal, subject, fmt.Errorf("%s not found, please install it first", name))
	}
	if stderr = strings.TrimSpace(stderr); stderr != "" {
		err = fmt.Errorf("%w: %s", err, stderr)
	}
	return models.NewError(models.ErrExternal, subject, err)
}
