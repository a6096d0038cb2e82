// Package watch rebuilds the test suite whenever a source or header
// changes. Filesystem events are coalesced over a debounce window so one
// editor save burst triggers one incremental build.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"sqlharness/internal/build"
	"sqlharness/internal/buildgraph"
	"sqlharness/internal/logging"
	"sqlharness/internal/run"
)

// Watcher observes directories and fires a change handler per event burst.
type Watcher struct {
	log      logging.Logger
	debounce time.Duration
	dirs     []string

	// ignore filters out the harness's own outputs so a rebuild does not
	// retrigger itself.
	ignore func(path string) bool

	// onChange handles one coalesced burst of changed paths.
	onChange func(ctx context.Context, paths []string) error
}

// New creates a Watcher for the given project. The change handler performs
// an incremental build, and runs the suite afterwards when runner is
// non-nil. Header changes are attributed to the units they invalidate via
// the dependency index.
func New(orch *build.Orchestrator, runner *run.Runner, log logging.Logger, debounce time.Duration, dirs []string, target string) *Watcher {
	w := &Watcher{
		log:      log,
		debounce: debounce,
		dirs:     dirs,
		ignore: func(path string) bool {
			base := filepath.Base(path)
			return base == target ||
				strings.HasSuffix(base, ".o") ||
				strings.HasSuffix(base, ".d") ||
				strings.HasPrefix(base, ".")
		},
	}
	w.onChange = func(ctx context.Context, paths []string) error {
		w.logInvalidations(orch, paths)
		if err := orch.Build(ctx); err != nil {
			// Watch mode survives build failures; the next change retries.
			log.Error(err, "rebuild failed")
			return nil
		}
		if runner != nil {
			g, err := orch.Graph()
			if err != nil {
				return err
			}
			if _, err := runner.Run(ctx, g); err != nil {
				return err
			}
		}
		return nil
	}
	return w
}

// logInvalidations reports which units a changed header invalidates.
func (w *Watcher) logInvalidations(orch *build.Orchestrator, paths []string) {
	g, err := orch.Graph()
	if err != nil {
		return
	}
	ix, err := buildgraph.BuildDepIndex(g)
	if err != nil {
		w.log.Warn(err, "could not load dependency index")
		return
	}
	for _, p := range paths {
		if !strings.HasSuffix(p, ".h") {
			continue
		}
		if stems := ix.Dependents(p); len(stems) > 0 {
			w.log.Info(fmt.Sprintf("%s invalidates %s", filepath.Base(p), strings.Join(stems, ", ")))
		}
	}
}

// Watch blocks, rebuilding on changes, until the context is canceled.
func (w *Watcher) Watch(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer fw.Close()

	for _, d := range w.dirs {
		if d == "" {
			continue
		}
		if err := fw.Add(d); err != nil {
			return fmt.Errorf("watching %s: %w", d, err)
		}
	}

	return w.loop(ctx, fw.Events, fw.Errors)
}

// loop coalesces events and dispatches bursts. Factored from Watch so tests
// can drive it with synthetic channels.
func (w *Watcher) loop(ctx context.Context, events <-chan fsnotify.Event, errs <-chan error) error {
	var timer *time.Timer
	var fire <-chan time.Time
	pending := make(map[string]struct{})

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if !relevantOp(ev.Op) || w.ignore(ev.Name) {
				continue
			}
			pending[ev.Name] = struct{}{}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case err, ok := <-errs:
			if !ok {
				return nil
			}
			w.log.Warn(err, "watch error")

		case <-fire:
			fire = nil
			timer = nil
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			sort.Strings(paths)
			pending = make(map[string]struct{})

			if err := w.onChange(ctx, paths); err != nil {
				return err
			}
		}
	}
}

func relevantOp(op fsnotify.Op) bool {
	return op.Has(fsnotify.Write) || op.Has(fsnotify.Create) ||
		op.Has(fsnotify.Remove) || op.Has(fsnotify.Rename)
}
