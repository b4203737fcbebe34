package executor

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"

	"golang.org/x/sys/unix"

	"github.com/armaan1620/tsh/internal/errors"
	"github.com/armaan1620/tsh/internal/parser"
)

// Group is a launched pipeline: one process group, one process per stage
// that could be started.
type Group struct {
	PGID int   // pid of the group leader
	Pids []int // every member, leader first
}

// Launcher starts pipelines. Each pipeline runs in a single new process group
// so one signal addressed to the group reaches every stage.
type Launcher struct {
	Stdin  *os.File
	Stdout *os.File
	Stderr *os.File
	Env    []string
	Logger *slog.Logger
}

// New returns a Launcher wired to the shell's own standard streams.
func New(logger *slog.Logger) *Launcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Launcher{
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		Logger: logger,
	}
}

// Launch starts every stage of p. The first stage that starts becomes the
// group leader and every later stage joins its group. A stage whose program
// can't be executed prints "<path>: Command not found" on its standard output
// and is skipped; its siblings still run. Launch returns once every stage has
// been started and the group exists.
//
// Callers registering the group in a job table must keep the child-state
// handler blocked from before Launch until the group is registered.
func (l *Launcher) Launch(ctx context.Context, p *parser.Pipeline) (*Group, error) {
	h := &handles{}
	defer h.closeAll()

	stdins, stdouts, err := l.plumb(h, p)
	if err != nil {
		return nil, err
	}

	g := &Group{}
	var lastNotFound error
	for i, stage := range p.Stages {
		if err := ctx.Err(); err != nil {
			g.abandon()
			return nil, err
		}

		cmd := l.command(stage, stdins[i], stdouts[i], g.PGID)
		var pid int
		if g.PGID == 0 {
			pid, err = l.startLeader(ctx, cmd)
		} else {
			pid, err = startMember(cmd)
		}

		if err != nil && isNotFound(err) {
			lastNotFound = &errors.CommandNotFoundError{Path: stage.Path}
			fmt.Fprintln(stdouts[i], lastNotFound)
			l.Logger.Debug("stage not started", "path", stage.Path, "err", err)
		}
		// The child owns its ends now, or there is no child. Either way the
		// parent's copies go.
		_ = h.release(stdins[i])
		_ = h.release(stdouts[i])

		switch {
		case err == nil:
		case isNotFound(err):
			continue
		default:
			g.abandon()
			return nil, fmt.Errorf("%s: %w", stage.Path, err)
		}

		if g.PGID == 0 {
			g.PGID = pid
		}
		g.Pids = append(g.Pids, pid)
		l.Logger.Debug("stage started", "path", stage.Path, "pid", pid, "pgid", g.PGID)
	}

	if g.PGID == 0 {
		return nil, lastNotFound
	}
	return g, nil
}

// plumb opens the redirection files and creates the pipes of p. It returns
// the standard input and output of every stage.
func (l *Launcher) plumb(h *handles, p *parser.Pipeline) (stdins, stdouts []*os.File, err error) {
	n := len(p.Stages)
	stdins = make([]*os.File, n)
	stdouts = make([]*os.File, n)
	stdins[0] = l.Stdin
	stdouts[n-1] = l.Stdout

	for _, link := range p.Links() {
		r, w, err := os.Pipe()
		if err != nil {
			return nil, nil, fmt.Errorf("pipe: %w", err)
		}
		stdouts[link.From] = h.own(w)
		stdins[link.To] = h.own(r)
	}

	if p.Background && p.Stages[0].InFile == "" {
		// Background jobs should not read from the terminal
		devNull, err := os.Open(os.DevNull)
		if err != nil {
			return nil, nil, err
		}
		stdins[0] = h.own(devNull)
	}

	for i, stage := range p.Stages {
		if stage.InFile != "" {
			f, err := os.Open(stage.InFile)
			if err != nil {
				return nil, nil, err
			}
			stdins[i] = h.own(f)
		}
		if stage.OutFile != "" {
			f, err := os.OpenFile(stage.OutFile, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
			if err != nil {
				return nil, nil, err
			}
			stdouts[i] = h.own(f)
		}
	}
	return stdins, stdouts, nil
}

func (l *Launcher) command(stage parser.Stage, stdin, stdout *os.File, pgid int) *exec.Cmd {
	cmd := exec.Command(stage.Path, stage.Args[1:]...)
	cmd.Args = stage.Args
	cmd.Env = l.Env
	// A typed nil *os.File must not reach exec.Cmd.
	if stdin != nil {
		cmd.Stdin = stdin
	}
	if stdout != nil {
		cmd.Stdout = stdout
	}
	if l.Stderr != nil {
		cmd.Stderr = l.Stderr
	}
	// pgid 0 makes the child the leader of a new group named after its pid.
	cmd.SysProcAttr = &unix.SysProcAttr{
		Setpgid: true,
		Pgid:    pgid,
	}
	return cmd
}

// startLeader starts the first process of a pipeline and waits until it is
// running as the leader of its own process group.
func (l *Launcher) startLeader(ctx context.Context, cmd *exec.Cmd) (int, error) {
	ready := newReadiness()
	go func() {
		pid, err := startMember(cmd)
		if err != nil {
			ready.signal(0, err)
			return
		}
		if pgid, err := unix.Getpgid(pid); err == nil && pgid != pid {
			ready.signal(0, fmt.Errorf("process %d joined group %d instead of leading its own", pid, pgid))
			return
		}
		ready.signal(pid, nil)
	}()

	pgid, err := ready.wait(ctx)
	if err != nil && ctx.Err() != nil {
		// The launch was abandoned; don't leave the leader running.
		go func() {
			if pgid, err := ready.wait(context.Background()); err == nil {
				_ = unix.Kill(-pgid, unix.SIGKILL)
			}
		}()
	}
	return pgid, err
}

// startMember starts cmd and hands the child over to whoever reaps children:
// the launcher never waits on it.
func startMember(cmd *exec.Cmd) (int, error) {
	if err := cmd.Start(); err != nil {
		return 0, err
	}
	pid := cmd.Process.Pid
	_ = cmd.Process.Release()
	return pid, nil
}

// abandon kills what was started of a launch that can't complete.
func (g *Group) abandon() {
	if g.PGID > 0 {
		_ = unix.Kill(-g.PGID, unix.SIGKILL)
	}
}

// isNotFound reports whether err means the stage's program couldn't be
// executed, as opposed to the shell failing to create the process.
func isNotFound(err error) bool {
	return errors.Is(err, exec.ErrNotFound) ||
		errors.Is(err, exec.ErrDot) ||
		errors.Is(err, fs.ErrNotExist) ||
		errors.Is(err, fs.ErrPermission) ||
		errors.Is(err, unix.ENOEXEC) ||
		errors.Is(err, unix.ENOTDIR)
}
