// Package toolchain assembles and executes compiler and linker invocations.
//
// Flag strings keep the original variable semantics: CFLAGS and LIBS are
// whitespace-separated, HEADERS becomes a single -I flag, and -lm is always
// appended to the link line exactly once. Diagnostics from the child process
// are captured and surfaced unmodified.
package toolchain

import (
	"fmt"
	"strings"

	"sqlharness/internal/buildgraph"
	"sqlharness/internal/config"
)

// Toolchain holds resolved compiler settings.
type Toolchain struct {
	CC      string
	CFlags  []string
	Headers string
	Libs    []string
}

// FromConfig splits the configured flag strings into argv form.
func FromConfig(tc config.ToolchainConfig) *Toolchain {
	return &Toolchain{
		CC:      tc.CC,
		CFlags:  strings.Fields(tc.CFlags),
		Headers: tc.Headers,
		Libs:    strings.Fields(tc.Libs),
	}
}

// CompileArgs builds the argv compiling one unit. Paths are relative to the
// build root, so echoed commands read like the original build script's.
func (t *Toolchain) CompileArgs(u buildgraph.Unit) []string {
	args := []string{t.CC}
	args = append(args, t.CFlags...)
	if t.Headers != "" {
		args = append(args, "-I"+t.Headers)
	}
	args = append(args, "-MF", u.Depfile(), "-c", u.Source, "-o", u.Object())
	return args
}

// LinkArgs builds the argv linking every object into the target. The math
// library closes the link line unconditionally; a -lm already present in
// Libs is dropped so it appears exactly once.
func (t *Toolchain) LinkArgs(units []buildgraph.Unit, target string) []string {
	args := []string{t.CC}
	for _, u := range units {
		args = append(args, u.Object())
	}
	args = append(args, "-o", target)
	for _, lib := range t.Libs {
		if lib == "-lm" {
			continue
		}
		args = append(args, lib)
	}
	args = append(args, "-lm")
	return args
}

// ExitError reports a child process that ran and exited non-zero. Stderr
// carries the compiler or linker diagnostics verbatim.
type ExitError struct {
	Args     []string
	ExitCode int
	Stderr   []byte
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s exited with status %d", e.Args[0], e.ExitCode)
}
