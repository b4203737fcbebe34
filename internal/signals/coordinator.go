package signals

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/armaan1620/tsh/internal/errors"
	"github.com/armaan1620/tsh/internal/jobs"
	"github.com/armaan1620/tsh/internal/logger"
)

// DefaultSignals are the signals the coordinator takes over from the
// default disposition.
var DefaultSignals = []os.Signal{unix.SIGCHLD, unix.SIGINT, unix.SIGTSTP, unix.SIGQUIT}

// Coordinator runs the shell's signal handlers on a single goroutine. It
// reaps children and keeps the job table in step with them, and forwards
// keyboard interrupts and stops to the foreground job's process group.
//
// Block and Unblock delimit windows in which no handler runs. Signals
// arriving meanwhile are deferred until Unblock, not discarded.
type Coordinator struct {
	Table   *jobs.Table
	Logger  *logger.Logger
	Log     *slog.Logger
	Signals []os.Signal
	// Exit terminates the shell on SIGQUIT.
	Exit func(code int)

	mask    sync.Mutex
	sigs    chan os.Signal
	done    chan struct{}
	exited  chan struct{}
	stop    sync.Once
	started bool
}

// New returns a coordinator for table. Call Start to install the handlers.
func New(table *jobs.Table, l *logger.Logger, log *slog.Logger) *Coordinator {
	if log == nil {
		log = slog.Default()
	}
	return &Coordinator{
		Table:   table,
		Logger:  l,
		Log:     log,
		Signals: DefaultSignals,
		Exit:    os.Exit,
	}
}

// Start installs the handlers. They stay installed until ctx is done or
// Stop is called.
func (c *Coordinator) Start(ctx context.Context) error {
	if c.started {
		return errors.New("signal handlers already installed")
	}
	if c.Table == nil || c.Logger == nil {
		return errors.New("signal coordinator needs a job table and a logger")
	}
	if len(c.Signals) == 0 {
		return errors.New("no signals to handle")
	}

	c.sigs = make(chan os.Signal, 8)
	c.done = make(chan struct{})
	c.exited = make(chan struct{})
	signal.Notify(c.sigs, c.Signals...)
	c.started = true

	go func() {
		defer close(c.exited)
		for {
			select {
			case sig := <-c.sigs:
				c.Handle(sig)
			case <-ctx.Done():
				signal.Stop(c.sigs)
				return
			case <-c.done:
				return
			}
		}
	}()
	return nil
}

// Stop restores the default disposition of the handled signals and waits
// for a running handler to return. It must not be called between Block and
// Unblock.
func (c *Coordinator) Stop() {
	if c.done == nil {
		return
	}
	c.stop.Do(func() {
		signal.Stop(c.sigs)
		close(c.done)
	})
	<-c.exited
}

// Block defers every handler until Unblock. Launching a pipeline and
// registering it in the job table must happen inside one Block/Unblock
// window, or its children could be reaped before the job exists.
func (c *Coordinator) Block() {
	c.mask.Lock()
}

// Unblock runs the handlers deferred since Block.
func (c *Coordinator) Unblock() {
	c.mask.Unlock()
}

// Handle runs the handler for sig. It waits while the handlers are blocked.
func (c *Coordinator) Handle(sig os.Signal) {
	c.mask.Lock()
	defer c.mask.Unlock()

	switch sig {
	case unix.SIGCHLD:
		c.childChanged()
	case unix.SIGINT:
		c.forward(unix.SIGINT, "sigint_handler")
	case unix.SIGTSTP:
		c.forward(unix.SIGTSTP, "sigtstp_handler")
	case unix.SIGQUIT:
		c.Logger.Outf(logger.Default, "Terminating after receipt of SIGQUIT signal")
		c.Exit(errors.CodeUnknown)
	}
}

// childChanged reaps every child whose state changed, without waiting for
// the ones still running.
func (c *Coordinator) childChanged() {
	c.Logger.VerboseOutf(logger.Magenta, "sigchld_handler: entering")
	defer c.Logger.VerboseOutf(logger.Magenta, "sigchld_handler: exiting")

	for {
		var status unix.WaitStatus
		pid, err := unix.Wait4(-1, &status, unix.WNOHANG|unix.WUNTRACED, nil)
		switch {
		case errors.Is(err, unix.EINTR):
			continue
		case errors.Is(err, unix.ECHILD):
			return
		case err != nil:
			c.Logger.Errf(logger.Red, "waitpid error: %v", err)
			return
		case pid == 0:
			return
		}
		c.update(pid, status)
	}
}

func (c *Coordinator) update(pid int, status unix.WaitStatus) {
	switch {
	case status.Exited() || status.Signaled():
		job, removed, ok := c.Table.Exited(pid)
		if !ok {
			c.Log.Debug("reaped untracked child", "pid", pid)
			return
		}
		c.Log.Debug("reaped", "pid", pid, "pgid", job.PGID, "job", job.ID, "status", int(status))
		if status.Signaled() && pid == job.PGID {
			c.Logger.Outf(logger.Yellow, "Job [%d] (%d) terminated by signal %d", job.ID, job.PGID, int(status.Signal()))
		}
		if status.Exited() && pid == job.PGID {
			c.Logger.VerboseOutf(logger.Magenta, "sigchld_handler: Job [%d] (%d) terminates OK (status %d)", job.ID, pid, status.ExitStatus())
		}
		if removed {
			c.Logger.VerboseOutf(logger.Magenta, "sigchld_handler: Job [%d] (%d) deleted", job.ID, job.PGID)
		}

	case status.Stopped():
		job, ok := c.Table.FindByMember(pid)
		if !ok || job.State == jobs.Stopped {
			return
		}
		if err := c.Table.SetState(job.PGID, jobs.Stopped); err != nil {
			c.Logger.Errf(logger.Red, "%v", err)
			return
		}
		c.Logger.Outf(logger.Yellow, "Job [%d] (%d) stopped by signal %d", job.ID, job.PGID, int(status.StopSignal()))
	}
}

// forward delivers sig to every process of the foreground job. Without a
// foreground job it does nothing. A stopped job is marked by childChanged
// once the stop is observed.
func (c *Coordinator) forward(sig unix.Signal, name string) {
	c.Logger.VerboseOutf(logger.Magenta, "%s: entering", name)
	defer c.Logger.VerboseOutf(logger.Magenta, "%s: exiting", name)

	job, ok := c.Table.Foreground()
	if !ok {
		return
	}
	if err := unix.Kill(-job.PGID, sig); err != nil {
		c.Logger.Errf(logger.Red, "%v", &errors.SignalError{Signal: unix.SignalName(sig), Group: job.PGID, Err: err})
		return
	}
	c.Logger.VerboseOutf(logger.Magenta, "%s: Job [%d] (%d) sent %s", name, job.ID, job.PGID, unix.SignalName(sig))
}
