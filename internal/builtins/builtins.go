package builtins

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/armaan1620/tsh/internal/errors"
	"github.com/armaan1620/tsh/internal/jobs"
	"github.com/armaan1620/tsh/internal/logger"
)

// Masker defers the child-state handler, see signals.Coordinator.
type Masker interface {
	Block()
	Unblock()
}

// Dispatcher runs the commands implemented inside the shell process.
type Dispatcher struct {
	Table  *jobs.Table
	Logger *logger.Logger
	Mask   Masker
	// Wait blocks until the job for pgid leaves the foreground. It defaults
	// to Table.WaitForeground.
	Wait func(pgid int)
}

// Dispatch runs args if args[0] names a builtin. handled is false for
// anything else, which the caller then launches as a pipeline.
func (d *Dispatcher) Dispatch(args []string) (handled bool, err error) {
	if len(args) == 0 {
		return false, nil
	}

	switch args[0] {
	case "quit":
		return true, errors.ErrQuit
	case "jobs":
		d.jobs()
		return true, nil
	case "bg":
		return true, d.bg(args)
	case "fg":
		return true, d.fg(args)
	case "cd":
		return true, cd(args)
	case "pwd":
		return true, d.pwd()
	default:
		return false, nil
	}
}

func (d *Dispatcher) jobs() {
	for line := range d.Table.List() {
		d.Logger.Outf(logger.Default, "%s", line)
	}
}

func (d *Dispatcher) bg(args []string) error {
	job, err := d.target(args)
	if err != nil {
		return err
	}
	if err := d.resume(job, jobs.Background); err != nil {
		return err
	}
	d.Logger.Outf(logger.Default, "[%d] (%d) %s", job.ID, job.PGID, job.Cmd)
	return nil
}

func (d *Dispatcher) fg(args []string) error {
	job, err := d.target(args)
	if err != nil {
		return err
	}
	if err := d.resume(job, jobs.Foreground); err != nil {
		return err
	}
	d.wait(job.PGID)
	return nil
}

// resume moves job to state and continues its whole process group. The
// state change and the signal happen with the child-state handler blocked,
// so a job that exits right away is still removed afterwards.
func (d *Dispatcher) resume(job jobs.Job, state jobs.State) error {
	if d.Mask != nil {
		d.Mask.Block()
		defer d.Mask.Unblock()
	}

	if err := d.Table.SetState(job.PGID, state); err != nil {
		return err
	}
	if err := unix.Kill(-job.PGID, unix.SIGCONT); err != nil {
		_ = d.Table.SetState(job.PGID, job.State)
		return &errors.SignalError{Signal: "SIGCONT", Group: job.PGID, Err: err}
	}
	return nil
}

func (d *Dispatcher) wait(pgid int) {
	if d.Wait != nil {
		d.Wait(pgid)
		return
	}
	d.Table.WaitForeground(pgid)
}

// target resolves the argument of bg and fg: "%<jobid>" names a job, a bare
// number names a process group or one of its members.
func (d *Dispatcher) target(args []string) (jobs.Job, error) {
	name := args[0]
	if len(args) < 2 {
		return jobs.Job{}, &errors.UsageError{Message: fmt.Sprintf("%s command requires PID or %%jobid argument", name)}
	}
	arg := args[1]
	badArg := &errors.UsageError{Message: fmt.Sprintf("%s: argument must be a PID or %%jobid", name)}

	if id, ok := strings.CutPrefix(arg, "%"); ok {
		jid, err := strconv.Atoi(id)
		if err != nil {
			return jobs.Job{}, badArg
		}
		job, ok := d.Table.FindByID(jid)
		if !ok {
			return jobs.Job{}, &errors.NoSuchJobError{Target: arg}
		}
		return job, nil
	}

	pid, err := strconv.Atoi(arg)
	if err != nil {
		return jobs.Job{}, badArg
	}
	if job, ok := d.Table.FindByPGID(pid); ok {
		return job, nil
	}
	if job, ok := d.Table.FindByMember(pid); ok {
		return job, nil
	}
	return jobs.Job{}, &errors.NoSuchProcessError{Pid: pid}
}

func cd(args []string) error {
	if len(args) < 2 {
		return &errors.UsageError{Message: "cd: missing argument"}
	}
	if err := os.Chdir(args[1]); err != nil {
		return fmt.Errorf("cd: %w", err)
	}
	return nil
}

func (d *Dispatcher) pwd() error {
	dir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("pwd: %w", err)
	}
	d.Logger.Outf(logger.Default, "%s", dir)
	return nil
}
