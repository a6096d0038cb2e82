// Package logging provides the harness logger.
//
// Build steps are reported in one of two modes, selected by the V
// configuration variable: when V is empty each step prints a short label
// ("CC", "LINK", "TEST", "CLEAN") plus its subject, and the underlying
// command line is suppressed; when V is non-empty the full command line is
// echoed verbatim and the labels are suppressed. Diagnostics always go
// through zerolog.
package logging

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Logger reports build steps and diagnostics. Step lines are serialized
// through an internal mutex so parallel compilations never interleave
// partial lines.
type Logger struct {
	mu      *sync.Mutex
	out     io.Writer
	zl      zerolog.Logger
	verbose bool
}

// New creates a Logger writing step lines to out and diagnostics to diag.
// verbose carries the raw V value; any non-empty string enables command echo.
func New(verbose string, out, diag io.Writer) Logger {
	zl := zerolog.New(zerolog.ConsoleWriter{Out: diag}).With().Timestamp().Logger()
	return Logger{mu: &sync.Mutex{}, out: out, zl: zl, verbose: verbose != ""}
}

// Nop returns a logger that discards everything. Used in tests.
func Nop() Logger {
	return Logger{mu: &sync.Mutex{}, out: io.Discard, zl: zerolog.Nop()}
}

// Verbose reports whether command echo is enabled.
func (l Logger) Verbose() bool { return l.verbose }

// Step reports one build step. In quiet mode it prints the short label and
// subject; in verbose mode it prints nothing (Command echoes instead).
func (l Logger) Step(label, subject string) {
	if l.verbose {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.out, "  %-5s %s\n", label, subject)
}

// Command echoes a command line verbatim. No-op in quiet mode.
func (l Logger) Command(args []string) {
	if !l.verbose {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.out, strings.Join(args, " "))
}

// Warn logs a non-fatal diagnostic.
func (l Logger) Warn(err error, msg string) {
	l.zl.Warn().Err(err).Msg(msg)
}

// Error logs a fatal diagnostic. The child process's stderr, when present,
// is passed through unmodified on the step's own stream.
func (l Logger) Error(err error, msg string) {
	l.zl.Error().Err(err).Msg(msg)
}

// Info logs an informational diagnostic.
func (l Logger) Info(msg string) {
	l.zl.Info().Msg(msg)
}

// Stderr writes captured child stderr through unmodified.
func (l Logger) Stderr(p []byte) {
	if len(p) == 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.out.Write(p)
	if p[len(p)-1] != '\n' {
		io.WriteString(l.out, "\n")
	}
}
