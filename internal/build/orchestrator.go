// Package build orchestrates the two stages of the harness pipeline:
// parallel compilation of stale source units, then a single link of every
// object against the database and math libraries.
package build

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/sourcegraph/conc/pool"

	"sqlharness/internal/buildgraph"
	"sqlharness/internal/config"
	"sqlharness/internal/logging"
	"sqlharness/internal/manifest"
	"sqlharness/internal/toolchain"
)

// Orchestrator wires config, manifest and toolchain into a runnable build.
type Orchestrator struct {
	cfg *config.Config
	man *manifest.Manifest
	tc  *toolchain.Toolchain
	log logging.Logger
}

// New creates a fully wired Orchestrator from configuration.
func New(cfg *config.Config, man *manifest.Manifest, log logging.Logger) *Orchestrator {
	return &Orchestrator{
		cfg: cfg,
		man: man,
		tc:  toolchain.FromConfig(cfg.Toolchain),
		log: log,
	}
}

// Graph constructs the build graph for the project.
func (o *Orchestrator) Graph() (*buildgraph.Graph, error) {
	return buildgraph.New(o.cfg.Build.Dir, o.man.Target, o.man.Sources())
}

// Build brings the target executable up to date.
//
// Stale units compile on a bounded pool; the first failure cancels the
// remaining compilations. The link stage runs strictly after every compile
// node has finished, and only when the plan calls for it. Warnings are
// informational: compiler stderr on a zero exit is passed through and the
// build continues.
func (o *Orchestrator) Build(ctx context.Context) error {
	g, err := o.Graph()
	if err != nil {
		return err
	}

	plan, err := g.Plan()
	if err != nil {
		return err
	}
	if plan.Fresh() {
		o.log.Info(fmt.Sprintf("%s is up to date", g.Target()))
		return nil
	}

	state := buildgraph.NewExecState(g, plan)
	var mu sync.Mutex

	p := pool.New().WithMaxGoroutines(o.cfg.Jobs()).WithErrors().WithContext(ctx).WithCancelOnError()
	for _, u := range plan.StaleUnits(g) {
		u := u
		p.Go(func(ctx context.Context) error {
			mu.Lock()
			err := state.Transition(u.Stem, buildgraph.StatePending, buildgraph.StateRunning)
			mu.Unlock()
			if err != nil {
				return err
			}

			o.log.Step("CC", u.Source)
			o.log.Command(o.tc.CompileArgs(u))

			res, err := o.tc.Compile(ctx, g, u)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				_ = state.Transition(u.Stem, buildgraph.StateRunning, buildgraph.StateFailed)
				if exitErr, ok := err.(*toolchain.ExitError); ok {
					o.log.Stderr(exitErr.Stderr)
				}
				return fmt.Errorf("compiling %s: %w", u.Source, err)
			}
			o.log.Stderr(res.Stderr)
			return state.Transition(u.Stem, buildgraph.StateRunning, buildgraph.StateDone)
		})
	}
	if err := p.Wait(); err != nil {
		return err
	}

	if !state.LinkReady() {
		return fmt.Errorf("link stage not ready: compile nodes unfinished")
	}

	o.log.Step("LINK", g.Target())
	o.log.Command(o.tc.LinkArgs(g.Units(), g.Target()))

	res, err := o.tc.Link(ctx, g)
	if err != nil {
		if exitErr, ok := err.(*toolchain.ExitError); ok {
			o.log.Stderr(exitErr.Stderr)
		}
		return fmt.Errorf("linking %s: %w", g.Target(), err)
	}
	o.log.Stderr(res.Stderr)

	return nil
}

// Clean removes the executable and every object and dependency file.
// Best-effort and idempotent: artifacts already absent are not an error.
func (o *Orchestrator) Clean(ctx context.Context) error {
	g, err := o.Graph()
	if err != nil {
		return err
	}

	paths := []string{g.TargetPath()}
	for _, u := range g.Units() {
		paths = append(paths, g.ObjectPath(u), g.DepfilePath(u))
	}

	o.log.Step("CLEAN", g.Target())
	o.log.Command(append([]string{"rm", "-f"}, paths...))

	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing %s: %w", p, err)
		}
	}
	return nil
}
