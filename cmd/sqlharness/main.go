package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"sqlharness/internal/cli"
)

// main is a thin boundary: it canonicalizes the command line, executes the
// action, and exits with the semantic exit code. Interrupts cancel the
// context so in-flight compiler processes are torn down; their half-written
// artifacts are simply stale and regenerate on the next build.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	inv, err := cli.ParseInvocation(os.Args[1:])
	if err != nil {
		var invErr *cli.InvocationError
		if errors.As(err, &invErr) {
			fmt.Fprintln(os.Stderr, invErr.Message)
			os.Exit(invErr.ExitCode)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.ExitUsage)
	}

	result, execErr := cli.Execute(ctx, inv, cli.StdStreams())
	if execErr != nil {
		fmt.Fprintln(os.Stderr, execErr)
	}
	os.Exit(result.ExitCode)
}
