// Package run invokes the built test executable and propagates its verdict.
package run

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"

	"sqlharness/internal/buildgraph"
	"sqlharness/internal/logging"
)

// Runner executes the test suite binary.
type Runner struct {
	log    logging.Logger
	stdout io.Writer
	stderr io.Writer
}

// NewRunner creates a Runner streaming the suite's output to the given
// writers unmodified.
func NewRunner(log logging.Logger, stdout, stderr io.Writer) *Runner {
	return &Runner{log: log, stdout: stdout, stderr: stderr}
}

// Run executes the target from the build root and returns its exit code
// unchanged. The exit code is the sole pass/fail signal: 0 means every test
// passed, anything else means at least one failure.
func (r *Runner) Run(ctx context.Context, g *buildgraph.Graph) (int, error) {
	args := []string{"./" + g.Target()}

	r.log.Step("TEST", g.Target())
	r.log.Command(args)

	cmd := exec.CommandContext(ctx, args[0])
	cmd.Dir = g.Dir()
	cmd.Stdout = r.stdout
	cmd.Stderr = r.stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return -1, ctx.Err()
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), nil
		}
		return -1, fmt.Errorf("running %s: %w", g.Target(), err)
	}
	return 0, nil
}
