package errors

import (
	"errors"
	"fmt"
)

// Exit codes
const (
	CodeOk      int = iota // Used when the shell exits without errors
	CodeUnknown            // Used for every failure the shell reports
)

// ShellError extends the standard error interface with a Code method. The code
// is the exit status reported for the aborted action.
type ShellError interface {
	error
	Code() int
}

// ErrQuit is returned by the quit builtin.
var ErrQuit = &quitError{}

type quitError struct{}

func (*quitError) Error() string { return "quit" }
func (*quitError) Code() int     { return CodeUnknown }

// New wraps the standard errors.New function so that we don't need to alias that package.
func New(text string) error {
	return errors.New(text)
}

// Is wraps the standard errors.Is function so that we don't need to alias that package.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As wraps the standard errors.As function so that we don't need to alias that package.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Join wraps the standard errors.Join function so that we don't need to alias that package.
func Join(errs ...error) error {
	return errors.Join(errs...)
}

// Code returns the exit code carried by err, CodeOk for nil and CodeUnknown
// for errors that don't carry one.
func Code(err error) int {
	if err == nil {
		return CodeOk
	}
	var shellErr ShellError
	if errors.As(err, &shellErr) {
		return shellErr.Code()
	}
	return CodeUnknown
}

// SyntaxError is returned when operators are misplaced on a command line.
type SyntaxError struct {
	Reason string
}

func (err *SyntaxError) Error() string {
	if err.Reason == "" {
		return "Invalid commandline"
	}
	return fmt.Sprintf("Invalid commandline: %s", err.Reason)
}

func (err *SyntaxError) Code() int {
	return CodeUnknown
}

// CommandNotFoundError is returned when a stage's program can't be executed.
type CommandNotFoundError struct {
	Path string
}

func (err *CommandNotFoundError) Error() string {
	return fmt.Sprintf("%s: Command not found", err.Path)
}

func (err *CommandNotFoundError) Code() int {
	return CodeUnknown
}

// JobTableFullError is returned when no job slot is free.
type JobTableFullError struct {
	Capacity int
}

func (err *JobTableFullError) Error() string {
	return "Tried to create too many jobs"
}

func (err *JobTableFullError) Code() int {
	return CodeUnknown
}

// NoSuchJobError is returned when a %jobid target doesn't name an active job.
type NoSuchJobError struct {
	Target string
}

func (err *NoSuchJobError) Error() string {
	return fmt.Sprintf("%s: No such job", err.Target)
}

func (err *NoSuchJobError) Code() int {
	return CodeUnknown
}

// NoSuchProcessError is returned when a pid target doesn't name an active job.
type NoSuchProcessError struct {
	Pid int
}

func (err *NoSuchProcessError) Error() string {
	return fmt.Sprintf("(%d): No such process", err.Pid)
}

func (err *NoSuchProcessError) Code() int {
	return CodeUnknown
}

// UsageError is returned when a builtin is invoked with bad arguments.
type UsageError struct {
	Message string
}

func (err *UsageError) Error() string {
	return err.Message
}

func (err *UsageError) Code() int {
	return CodeUnknown
}

// SignalError is returned when a signal can't be delivered to a process group.
type SignalError struct {
	Signal string
	Group  int
	Err    error
}

func (err *SignalError) Error() string {
	return fmt.Sprintf("%s error: job (%d) could not be signaled: %v", err.Signal, err.Group, err.Err)
}

func (err *SignalError) Unwrap() error {
	return err.Err
}

func (err *SignalError) Code() int {
	return CodeUnknown
}
