package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
)

// Result is the outcome of one command.
type Result struct {
	ExitCode int    // Process exit status; -1 when killed by a signal or timeout
	Output   []byte // Combined stdout and stderr
	DryRun   bool   // True when the command was only logged
}

// Executor starts processes. It reports the exit status in Result and returns an error
// only when the process could not be run at all (missing binary, cancelled context).
type Executor interface {
	Execute(ctx context.Context, cmd Command) (Result, error)
}

// ExitError is returned by Runner when a command exits with a non-zero status.
type ExitError struct {
	Command  string
	ExitCode int
	Output   []byte
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("command %q exited with status %d", e.Command, e.ExitCode)
}

// ExecExecutor runs commands on the local machine.
type ExecExecutor struct {
	// Console receives a live copy of interactive commands' output.
	Console io.Writer
}

// NewExecExecutor returns the real executor, echoing interactive commands to stdout.
func NewExecExecutor() *ExecExecutor {
	return &ExecExecutor{Console: os.Stdout}
}

// Execute runs cmd and captures combined output. Stdin is inherited so installers that
// prompt (sudo, chsh) can still reach the user.
func (e ExecExecutor) Execute(ctx context.Context, c Command) (Result, error) {
	name, args := c.Argv()
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = c.Dir
	cmd.Stdin = os.Stdin
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}

	var output []byte
	var err error
	if c.Interactive && e.Console != nil {
		var buf bytes.Buffer
		w := io.MultiWriter(&buf, e.Console)
		cmd.Stdout = w
		cmd.Stderr = w
		err = cmd.Run()
		output = buf.Bytes()
	} else {
		output, err = cmd.CombinedOutput()
	}
	res := Result{Output: output}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			if ctxErr := ctx.Err(); ctxErr != nil {
				return res, ctxErr
			}
			return res, nil
		}
		res.ExitCode = -1
		return res, err
	}
	return res, nil
}
