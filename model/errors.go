package model

import (
	"errors"
	"fmt"
	"io/fs"
)

// Exit codes returned by the patchdir command.
const (
	ExitOK       = 0
	ExitRejects  = 1
	ExitUsage    = 2
	ExitToolFail = 3
)

// ErrRejects is returned by an apply run that completed but left at
// least one reject artifact.
var ErrRejects = errors.New("some patches did not apply cleanly")

// UsageError reports an invalid invocation or working root. No work has
// been attempted when one is returned.
type UsageError struct {
	Msg string
	Err error
}

func (e *UsageError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *UsageError) Unwrap() error { return e.Err }

// Usagef builds a UsageError from a format string.
func Usagef(format string, a ...any) error {
	return &UsageError{Msg: fmt.Sprintf(format, a...)}
}

// ToolError reports an unexpected failure of the diff or patch machinery,
// or of the filesystem underneath it.
type ToolError struct {
	Op   string
	Path string
	Err  error
}

func (e *ToolError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	cause := e.Err
	// The path is already in the message; print only the underlying errno.
	var pe *fs.PathError
	if errors.As(cause, &pe) && pe.Path == e.Path {
		cause = pe.Err
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, cause)
}

func (e *ToolError) Unwrap() error { return e.Err }

// DetailedError enhances a standard error with a stack trace.
type DetailedError struct {
	Err   error
	Stack []byte
}

func (e *DetailedError) Error() string {
	return e.Err.Error()
}

func (e *DetailedError) Unwrap() error { return e.Err }

// ExitCode maps an error returned by a run to the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	if errors.Is(err, ErrRejects) {
		return ExitRejects
	}
	var ue *UsageError
	if errors.As(err, &ue) {
		return ExitUsage
	}
	return ExitToolFail
}
