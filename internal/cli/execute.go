package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"sqlharness/internal/build"
	"sqlharness/internal/config"
	"sqlharness/internal/history"
	"sqlharness/internal/logging"
	"sqlharness/internal/manifest"
	"sqlharness/internal/run"
	"sqlharness/internal/watch"
)

// Result carries the semantic exit code of an executed invocation.
type Result struct {
	ExitCode int
}

// Streams bundles the writers an execution reports on. Tests substitute
// buffers; main passes the process streams.
type Streams struct {
	Out io.Writer
	Err io.Writer
}

// StdStreams returns the process's own streams.
func StdStreams() Streams {
	return Streams{Out: os.Stdout, Err: os.Stderr}
}

// Run parses and executes in one step. Suitable for black-box tests.
func Run(ctx context.Context, args []string, streams Streams) (Result, error) {
	inv, err := ParseInvocation(args)
	if err != nil {
		var invErr *InvocationError
		if errors.As(err, &invErr) {
			return Result{ExitCode: invErr.ExitCode}, err
		}
		return Result{ExitCode: ExitUsage}, err
	}
	return Execute(ctx, inv, streams)
}

// Execute runs one canonicalized invocation end to end.
func Execute(ctx context.Context, inv *Invocation, streams Streams) (Result, error) {
	cfg, err := config.Load(inv.ConfigPath)
	if err != nil {
		return Result{ExitCode: ExitUsage}, err
	}
	for _, key := range sortedKeys(inv.Overrides) {
		if err := cfg.ApplyOverride(key, inv.Overrides[key]); err != nil {
			return Result{ExitCode: ExitUsage}, err
		}
	}
	if inv.Dir != "" {
		cfg.Build.Dir = inv.Dir
	}

	needsBuild := inv.Action == ActionAll || inv.Action == ActionTest || inv.Action == ActionWatch
	if err := cfg.Validate(needsBuild); err != nil {
		return Result{ExitCode: ExitUsage}, err
	}

	log := logging.New(cfg.Build.Verbose, streams.Out, streams.Err)

	if inv.Action == ActionStats {
		return execStats(ctx, cfg, streams)
	}

	man, err := manifest.Load(cfg.Build.Dir)
	if err != nil {
		return Result{ExitCode: ExitUsage}, err
	}
	orch := build.New(cfg, man, log)

	var ledger *history.Store
	if cfg.History.Enabled {
		if s, err := history.Open(ctx, cfg.History.Path); err != nil {
			log.Warn(err, "history ledger unavailable")
		} else {
			ledger = s
			defer ledger.Close()
		}
	}

	started := time.Now()
	res, execErr := execAction(ctx, inv.Action, cfg, man, orch, log, streams)
	record(ctx, ledger, log, inv.Action, man.Target, started, res)
	return res, execErr
}

func execAction(ctx context.Context, action string, cfg *config.Config, man *manifest.Manifest, orch *build.Orchestrator, log logging.Logger, streams Streams) (Result, error) {
	switch action {
	case ActionAll:
		if err := orch.Build(ctx); err != nil {
			log.Error(err, "build failed")
			return Result{ExitCode: ExitBuild}, err
		}
		return Result{ExitCode: ExitOK}, nil

	case ActionClean:
		if err := orch.Clean(ctx); err != nil {
			log.Error(err, "clean failed")
			return Result{ExitCode: ExitUsage}, err
		}
		return Result{ExitCode: ExitOK}, nil

	case ActionTest:
		if err := orch.Build(ctx); err != nil {
			log.Error(err, "build failed")
			return Result{ExitCode: ExitBuild}, err
		}
		g, err := orch.Graph()
		if err != nil {
			return Result{ExitCode: ExitUsage}, err
		}
		runner := run.NewRunner(log, streams.Out, streams.Err)
		code, err := runner.Run(ctx, g)
		if err != nil {
			return Result{ExitCode: ExitBuild}, err
		}
		return Result{ExitCode: code}, nil

	case ActionWatch:
		var runner *run.Runner
		if cfg.Watch.RunTests {
			runner = run.NewRunner(log, streams.Out, streams.Err)
		}
		dirs := []string{cfg.Build.Dir, cfg.Toolchain.Headers}
		w := watch.New(orch, runner, log, cfg.Watch.Debounce, dirs, man.Target)
		if err := w.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return Result{ExitCode: ExitBuild}, err
		}
		return Result{ExitCode: ExitOK}, nil

	default:
		return Result{ExitCode: ExitUsage}, usageError("unknown action %q", action)
	}
}

func execStats(ctx context.Context, cfg *config.Config, streams Streams) (Result, error) {
	if !cfg.History.Enabled {
		return Result{ExitCode: ExitUsage}, fmt.Errorf("history is not enabled; set history.enabled to record builds")
	}
	store, err := history.Open(ctx, cfg.History.Path)
	if err != nil {
		return Result{ExitCode: ExitUsage}, err
	}
	defer store.Close()

	for _, action := range []string{ActionAll, ActionTest, ActionClean} {
		st, err := store.Stats(ctx, action)
		if err != nil {
			return Result{ExitCode: ExitUsage}, err
		}
		if st.Count == 0 {
			continue
		}
		fmt.Fprintf(streams.Out, "%-6s %4d runs  mean %.1fms  stddev %.1fms\n", action, st.Count, st.MeanMs, st.StdDevMs)
	}
	return Result{ExitCode: ExitOK}, nil
}

func record(ctx context.Context, ledger *history.Store, log logging.Logger, action, target string, started time.Time, res Result) {
	if ledger == nil {
		return
	}
	outcome := "ok"
	if res.ExitCode != 0 {
		outcome = "failed"
	}
	rec := history.Record{
		Action:    action,
		Target:    target,
		StartedAt: started,
		Duration:  time.Since(started),
		Outcome:   outcome,
		ExitCode:  res.ExitCode,
	}
	if err := ledger.Append(ctx, rec); err != nil {
		log.Warn(err, "could not record action in history")
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
