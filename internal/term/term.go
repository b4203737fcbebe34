package term

import (
	"os"
	"os/signal"

	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// IsTerminal reports whether both standard input and standard output are
// terminals.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

// IsTerminalFile reports whether f is a terminal.
func IsTerminalFile(f *os.File) bool {
	return f != nil && term.IsTerminal(int(f.Fd()))
}

// Controller moves the foreground process group of a controlling terminal
// between the shell and its jobs.
type Controller struct {
	fd    int
	shell int
	ttou  chan os.Signal
}

// NewController returns a Controller for the terminal f. ok is false when f
// is not a terminal, or when the shell doesn't own it because it was
// started in the background.
func NewController(f *os.File) (c *Controller, ok bool) {
	if !IsTerminalFile(f) {
		return nil, false
	}
	c = &Controller{
		fd:    int(f.Fd()),
		shell: unix.Getpgrp(),
		ttou:  make(chan os.Signal, 1),
	}
	if fg, err := c.Foreground(); err != nil || fg != c.shell {
		return nil, false
	}
	// Taking the terminal back from a job raises SIGTTOU in the shell.
	// It is caught rather than ignored so jobs still start with the
	// default disposition.
	signal.Notify(c.ttou, unix.SIGTTOU)
	go func() {
		for range c.ttou {
		}
	}()
	return c, true
}

// Foreground returns the terminal's foreground process group.
func (c *Controller) Foreground() (int, error) {
	return unix.IoctlGetInt(c.fd, unix.TIOCGPGRP)
}

// Give makes pgid the terminal's foreground process group.
func (c *Controller) Give(pgid int) error {
	return unix.IoctlSetPointerInt(c.fd, unix.TIOCSPGRP, pgid)
}

// Reclaim gives the terminal back to the shell's own process group.
func (c *Controller) Reclaim() error {
	return c.Give(c.shell)
}

// Close stops catching SIGTTOU.
func (c *Controller) Close() {
	signal.Stop(c.ttou)
	close(c.ttou)
}
