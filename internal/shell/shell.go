package shell

import (
	"context"
	"log/slog"

	"golang.org/x/sys/unix"

	"github.com/armaan1620/tsh/internal/builtins"
	"github.com/armaan1620/tsh/internal/config"
	"github.com/armaan1620/tsh/internal/errors"
	"github.com/armaan1620/tsh/internal/executor"
	"github.com/armaan1620/tsh/internal/jobs"
	"github.com/armaan1620/tsh/internal/logger"
	"github.com/armaan1620/tsh/internal/parser"
	"github.com/armaan1620/tsh/internal/signals"
	"github.com/armaan1620/tsh/internal/term"
)

// Shell evaluates command lines with job control.
type Shell struct {
	Table    *jobs.Table
	Launcher *executor.Launcher
	Signals  *signals.Coordinator
	Builtins *builtins.Dispatcher
	Logger   *logger.Logger
	Log      *slog.Logger

	handoff  bool
	terminal *term.Controller
}

// New assembles a shell from cfg. Start must be called before Evaluate.
func New(cfg *config.Configuration, l *logger.Logger, log *slog.Logger) *Shell {
	if log == nil {
		log = slog.Default()
	}
	table := jobs.NewTable(cfg.MaxJobs)
	s := &Shell{
		Table:    table,
		Launcher: executor.New(log),
		Signals:  signals.New(table, l, log),
		Logger:   l,
		Log:      log,
		handoff:  cfg.TerminalHandoff,
	}
	s.Builtins = &builtins.Dispatcher{
		Table:  table,
		Logger: l,
		Mask:   s.Signals,
		Wait:   s.waitForeground,
	}
	return s
}

// Start installs the signal handlers. The shell can't do job control
// without them, so a failure here is fatal.
func (s *Shell) Start(ctx context.Context) error {
	if err := s.Signals.Start(ctx); err != nil {
		return err
	}
	if s.handoff {
		if c, ok := term.NewController(s.Launcher.Stdin); ok {
			s.terminal = c
		} else {
			s.Log.Debug("terminal hand-off disabled: standard input is not a terminal the shell owns")
		}
	}
	return nil
}

// Close removes the signal handlers. Jobs still in the table keep running.
func (s *Shell) Close() {
	for _, job := range s.Table.Jobs() {
		s.Log.Debug("job left behind", "job", job.ID, "pgid", job.PGID, "state", job.State.String(), "pids", job.Members())
	}
	s.Signals.Stop()
	if s.terminal != nil {
		s.terminal.Close()
	}
}

// Evaluate runs one command line: a builtin is run directly, anything else
// is launched as a job. For a foreground job Evaluate returns once the job
// has terminated or stopped.
//
// Every error is reported to the user before it is returned. Only
// errors.ErrQuit asks the caller to end the session.
func (s *Shell) Evaluate(ctx context.Context, text string) error {
	line, err := parser.Tokenize(text)
	if err != nil {
		return s.report(err)
	}
	if line.Empty() {
		return nil
	}

	if handled, err := s.Builtins.Dispatch(line.Args()); handled {
		if errors.Is(err, errors.ErrQuit) {
			return err
		}
		return s.report(err)
	}

	p, err := parser.FromLine(line)
	if err != nil {
		return s.report(err)
	}
	if s.Table.Full() {
		return s.report(&errors.JobTableFullError{Capacity: s.Table.Capacity()})
	}

	job, err := s.launch(ctx, p)
	if err != nil {
		var notFound *errors.CommandNotFoundError
		if errors.As(err, &notFound) {
			// Already printed by the stage that failed.
			return err
		}
		return s.report(err)
	}

	if p.Background {
		s.Logger.Outf(logger.Default, "[%d] (%d) %s", job.ID, job.PGID, job.Cmd)
		return nil
	}
	s.waitForeground(job.PGID)
	return nil
}

// launch starts p and registers it with the child-state handler blocked,
// so none of its processes can be reaped before the job exists.
func (s *Shell) launch(ctx context.Context, p *parser.Pipeline) (jobs.Job, error) {
	state := jobs.Foreground
	if p.Background {
		state = jobs.Background
	}

	s.Signals.Block()
	defer s.Signals.Unblock()

	g, err := s.Launcher.Launch(ctx, p)
	if err != nil {
		return jobs.Job{}, err
	}
	job, err := s.Table.Add(g.PGID, state, p.Text, g.Pids...)
	if err != nil {
		_ = unix.Kill(-g.PGID, unix.SIGKILL)
		return jobs.Job{}, err
	}
	s.Logger.VerboseOutf(logger.Magenta, "Added job [%d] %d %s", job.ID, job.PGID, job.Cmd)
	s.Log.Debug("job started", "job", job.ID, "pgid", job.PGID, "pids", job.Members())
	return job, nil
}

// waitForeground blocks until the job for pgid is no longer in the
// foreground. With terminal hand-off the job owns the terminal meanwhile.
func (s *Shell) waitForeground(pgid int) {
	if s.terminal != nil {
		if err := s.terminal.Give(pgid); err != nil {
			s.Log.Warn("terminal hand-off failed", "pgid", pgid, "err", err)
		}
		defer func() {
			if err := s.terminal.Reclaim(); err != nil {
				s.Log.Warn("could not take the terminal back", "err", err)
			}
		}()
	}

	s.Table.WaitForeground(pgid)
	s.Logger.VerboseOutf(logger.Magenta, "waitfg: Process (%d) no longer the fg process", pgid)
}

func (s *Shell) report(err error) error {
	if err != nil {
		s.Logger.Outf(logger.Red, "%v", err)
	}
	return err
}
