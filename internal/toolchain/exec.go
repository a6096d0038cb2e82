package toolchain

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"

	"sqlharness/internal/buildgraph"
)

// Result contains the captured outcome of one child process.
type Result struct {
	Args     []string
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// Run executes argv in dir, capturing output. A non-zero exit is reported
// through Result.ExitCode, not through the error; the error is reserved for
// infrastructure failures (binary not found, context canceled before start).
func Run(ctx context.Context, dir string, args []string) (*Result, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("empty command")
	}

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := &Result{Args: args, Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}

	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		return nil, fmt.Errorf("running %s: %w", args[0], err)
	}

	return res, nil
}

// Compile translates one unit into its object artifact. On failure the
// object is removed so downstream steps never observe a partial artifact,
// and the compiler's diagnostics ride the returned ExitError.
func (t *Toolchain) Compile(ctx context.Context, g *buildgraph.Graph, u buildgraph.Unit) (*Result, error) {
	args := t.CompileArgs(u)
	res, err := Run(ctx, g.Dir(), args)
	if err != nil {
		os.Remove(g.ObjectPath(u))
		return nil, err
	}
	if res.ExitCode != 0 {
		os.Remove(g.ObjectPath(u))
		return res, &ExitError{Args: args, ExitCode: res.ExitCode, Stderr: res.Stderr}
	}
	return res, nil
}

// Link combines every object plus the configured libraries into the target
// executable.
func (t *Toolchain) Link(ctx context.Context, g *buildgraph.Graph) (*Result, error) {
	args := t.LinkArgs(g.Units(), g.Target())
	res, err := Run(ctx, g.Dir(), args)
	if err != nil {
		return nil, err
	}
	if res.ExitCode != 0 {
		return res, &ExitError{Args: args, ExitCode: res.ExitCode, Stderr: res.Stderr}
	}
	return res, nil
}
