// Package runner executes the test runner that produces the jest JSON report.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"

	"al.essio.dev/pkg/shellescape"

	cblog "github.com/holon-run/coverbot/pkg/log"
	"github.com/holon-run/coverbot/pkg/log/redact"
)

// Invocation is one fully built runner command.
type Invocation struct {
	// Dir is the working directory; the report is written inside it.
	Dir        string
	Args       []string
	ReportPath string
}

// String renders the invocation as a copy-pasteable command line.
func (inv Invocation) String() string {
	return shellescape.QuoteCommand(inv.Args)
}

// Runner executes an invocation and blocks until it exits.
//
//go:generate mockgen -destination=../../mocks/mock_runner.go -package=mocks . Runner
type Runner interface {
	Run(ctx context.Context, inv Invocation) error
}

// ExitError reports a runner that started but exited non-zero.
type ExitError struct {
	Path string
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("The process '%s' failed with exit code %d", e.Path, e.Code)
}

// SpawnError reports a runner that could not be started at all.
type SpawnError struct {
	Name string
	Err  error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("Unable to locate executable file: %s (%v)", e.Name, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// ExecRunner runs the command as a local child process with its output captured.
type ExecRunner struct {
	// Redactor masks secrets in the captured output before it is logged.
	Redactor *redact.Redactor
}

// NewExecRunner creates a local process runner.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// Run executes inv. Output is kept off the step log and only shown at debug level.
func (r *ExecRunner) Run(ctx context.Context, inv Invocation) error {
	if len(inv.Args) == 0 {
		return fmt.Errorf("no command to run")
	}

	path, err := exec.LookPath(inv.Args[0])
	if err != nil {
		return &SpawnError{Name: inv.Args[0], Err: err}
	}

	var output bytes.Buffer
	cmd := exec.CommandContext(ctx, path, inv.Args[1:]...)
	cmd.Dir = inv.Dir
	cmd.Stdout = &output
	cmd.Stderr = &output

	cblog.Progress("running tests", "command", inv.String(), "dir", inv.Dir)
	err = cmd.Run()
	cblog.Debug("runner output", "output", r.Redactor.String(output.String()))

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &ExitError{Path: path, Code: exitErr.ExitCode()}
		}
		return &SpawnError{Name: inv.Args[0], Err: err}
	}

	cblog.Info("runner finished", "exit_code", 0)
	return nil
}
