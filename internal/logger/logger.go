package logger

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"

	"github.com/fatih/color"
)

type Color func() PrintFunc
type PrintFunc func(io.Writer, string, ...any)

func Default() PrintFunc {
	return color.New(envColor("TSH_COLOR_RESET", color.Reset)).FprintfFunc()
}
func Green() PrintFunc {
	return color.New(envColor("TSH_COLOR_GREEN", color.FgGreen)).FprintfFunc()
}
func Yellow() PrintFunc {
	return color.New(envColor("TSH_COLOR_YELLOW", color.FgYellow)).FprintfFunc()
}
func Magenta() PrintFunc {
	return color.New(envColor("TSH_COLOR_MAGENTA", color.FgMagenta)).FprintfFunc()
}
func Red() PrintFunc {
	return color.New(envColor("TSH_COLOR_RED", color.FgRed)).FprintfFunc()
}

func envColor(env string, defaultColor color.Attribute) color.Attribute {
	override, err := strconv.Atoi(os.Getenv(env))
	if err == nil {
		return color.Attribute(override)
	}
	return defaultColor
}

// Logger prints shell messages to STDOUT or STDERR, with optional color.
// Job notices and builtin output go to Stdout so they interleave with the
// output of the jobs themselves.
type Logger struct {
	Stdout  io.Writer
	Stderr  io.Writer
	Verbose bool
	Color   bool

	mu sync.Mutex
}

// New returns a Logger writing to the process's standard streams.
func New(verbose, useColor bool) *Logger {
	return &Logger{
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
		Verbose: verbose,
		Color:   useColor,
	}
}

// Outf prints a line to STDOUT.
func (l *Logger) Outf(color Color, s string, args ...any) {
	l.FOutf(l.Stdout, color, s+"\n", args...)
}

// FOutf prints to the given writer.
func (l *Logger) FOutf(w io.Writer, color Color, s string, args ...any) {
	if len(args) == 0 {
		s, args = "%s", []any{s}
	}
	// The signal coordinator prints from its own goroutine.
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.Color {
		fmt.Fprintf(w, s, args...)
		return
	}
	print := color()
	print(w, s, args...)
}

// VerboseOutf prints a line to STDOUT if verbose mode is enabled.
func (l *Logger) VerboseOutf(color Color, s string, args ...any) {
	if l.Verbose {
		l.Outf(color, s, args...)
	}
}

// Errf prints a line to STDERR.
func (l *Logger) Errf(color Color, s string, args ...any) {
	l.FOutf(l.Stderr, color, s+"\n", args...)
}

// VerboseErrf prints a line to STDERR if verbose mode is enabled.
func (l *Logger) VerboseErrf(color Color, s string, args ...any) {
	if l.Verbose {
		l.Errf(color, s, args...)
	}
}
