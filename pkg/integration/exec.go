package integration

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/pkg/errors"
)

// Command is one program to run, from Dir.
type Command struct {
	Dir  string
	Name string
	Args []string
}

func (c Command) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// Executor runs commands to completion.
type Executor interface {
	Run(ctx context.Context, c Command) error
}

// CommandError is a command that ran and failed, or could not be
// started at all.
type CommandError struct {
	Command  Command
	ExitCode int
	Err      error
}

func (e *CommandError) Error() string {
	if e.ExitCode > 0 {
		return fmt.Sprintf("command [%s] exited with code %d", e.Command, e.ExitCode)
	}
	return fmt.Sprintf("command [%s]: %s", e.Command, e.Err)
}

func (e *CommandError) Unwrap() error { return e.Err }

// ProcessExecutor runs commands as child processes, passing their
// output through. Env is added to the inherited environment.
type ProcessExecutor struct {
	Stdout io.Writer
	Stderr io.Writer
	Env    []string
}

func (e ProcessExecutor) Run(ctx context.Context, c Command) error {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	cmd.Env = append(os.Environ(), e.Env...)
	cmd.Stdout = e.Stdout
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	cmd.Stderr = e.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}

	err := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return errors.Wrap(ctx.Err(), fmt.Sprintf("running command: %s", c))
	} else if ctx.Err() == context.Canceled {
		return errors.Wrap(ctx.Err(), fmt.Sprintf("context was cancelled when running command: %s", c))
	}
	if err != nil {
		cerr := &CommandError{Command: c, Err: err}
		if exitErr, ok := err.(*exec.ExitError); ok {
			cerr.ExitCode = exitErr.ExitCode()
		}
		return cerr
	}
	return nil
}
