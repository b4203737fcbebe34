package repl

import (
	"bufio"
	"context"
	"io"
	"strings"

	"github.com/armaan1620/tsh/internal/errors"
	"github.com/armaan1620/tsh/internal/logger"
)

// Evaluator runs one command line.
type Evaluator interface {
	Evaluate(ctx context.Context, line string) error
}

// REPL reads command lines and hands them to a shell.
type REPL struct {
	Shell      Evaluator
	Logger     *logger.Logger
	Input      io.Reader
	Prompt     string
	EmitPrompt bool
}

// Run reads and evaluates lines until end of input or quit, and returns the
// shell's exit code. Errors of single command lines have been reported by
// the shell and don't stop the loop.
func (r *REPL) Run(ctx context.Context) int {
	reader := bufio.NewReader(r.Input)

	for {
		if ctx.Err() != nil {
			return errors.CodeOk
		}
		if r.EmitPrompt {
			r.Logger.FOutf(r.Logger.Stdout, logger.Green, r.Prompt)
		}

		input, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			r.Logger.Errf(logger.Red, "read error: %v", err)
			return errors.CodeUnknown
		}
		eof := err != nil

		// A last line without a newline still runs.
		if line := strings.TrimRight(input, "\r\n"); line != "" || !eof {
			if err := r.Shell.Evaluate(ctx, line); errors.Is(err, errors.ErrQuit) {
				return errors.Code(err)
			}
		}
		if eof {
			return errors.CodeOk
		}
	}
}
