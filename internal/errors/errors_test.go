package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/sys/unix"
)

func TestCode(t *testing.T) {
	assert.Equal(t, CodeOk, Code(nil))
	assert.Equal(t, CodeUnknown, Code(New("plain")))
	assert.Equal(t, CodeUnknown, Code(ErrQuit))
	assert.Equal(t, CodeUnknown, Code(fmt.Errorf("wrapped: %w", &SyntaxError{})))
}

func TestMessages(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&SyntaxError{}, "Invalid commandline"},
		{&SyntaxError{Reason: "unterminated quote"}, "Invalid commandline: unterminated quote"},
		{&CommandNotFoundError{Path: "/bin/nope"}, "/bin/nope: Command not found"},
		{&JobTableFullError{Capacity: 16}, "Tried to create too many jobs"},
		{&NoSuchJobError{Target: "%3"}, "%3: No such job"},
		{&NoSuchProcessError{Pid: 1234}, "(1234): No such process"},
		{&UsageError{Message: "cd: missing argument"}, "cd: missing argument"},
		{&SignalError{Signal: "SIGINT", Group: 77, Err: unix.ESRCH}, "SIGINT error: job (77) could not be signaled: no such process"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.err.Error())
		assert.Equal(t, CodeUnknown, Code(tt.err))
	}
}

func TestSignalErrorUnwraps(t *testing.T) {
	err := fmt.Errorf("fg: %w", &SignalError{Signal: "SIGCONT", Group: 9, Err: unix.EPERM})
	assert.True(t, Is(err, unix.EPERM))

	var sigErr *SignalError
	assert.True(t, As(err, &sigErr))
	assert.Equal(t, 9, sigErr.Group)
}
