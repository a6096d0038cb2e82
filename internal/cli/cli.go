// Package cli canonicalizes harness invocations and executes actions.
//
// The invocation grammar follows the original build script's habits:
//
//	sqlharness [flags] [action] [VAR=VALUE ...]
//
// where action is one of all (default), test, clean, watch, stats, and
// VAR=VALUE overrides a make-style variable (V, CC, CFLAGS, LIBS, HEADERS,
// JOBS).
package cli

import (
	"fmt"
	"strings"
)

// Semantic exit codes. A test action's exit code is whatever the suite
// executable returned and is not constrained to these.
const (
	ExitOK    = 0
	ExitUsage = 1 // usage, configuration or manifest errors
	ExitBuild = 2 // compile or link failure
)

// Actions accepted on the command line.
const (
	ActionAll   = "all"
	ActionTest  = "test"
	ActionClean = "clean"
	ActionWatch = "watch"
	ActionStats = "stats"
)

// Invocation is a canonicalized command line.
type Invocation struct {
	Action     string
	ConfigPath string
	Dir        string
	Overrides  map[string]string // insertion order is not significant
}

// InvocationError is a user-facing parse failure with its exit code.
type InvocationError struct {
	Message  string
	ExitCode int
}

func (e *InvocationError) Error() string { return e.Message }

func usageError(format string, args ...any) error {
	return &InvocationError{Message: fmt.Sprintf(format, args...), ExitCode: ExitUsage}
}

// ParseInvocation canonicalizes the argument slice (excluding argv[0]).
func ParseInvocation(args []string) (*Invocation, error) {
	inv := &Invocation{Action: ActionAll, Overrides: make(map[string]string)}
	seenAction := false

	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "-c" || arg == "--config":
			if i+1 >= len(args) {
				return nil, usageError("%s requires a path argument", arg)
			}
			i++
			inv.ConfigPath = args[i]

		case arg == "-C" || arg == "--dir":
			if i+1 >= len(args) {
				return nil, usageError("%s requires a directory argument", arg)
			}
			i++
			inv.Dir = args[i]

		case arg == "-h" || arg == "--help":
			return nil, &InvocationError{Message: usageText, ExitCode: ExitOK}

		case strings.HasPrefix(arg, "-"):
			return nil, usageError("unknown flag %q", arg)

		case strings.Contains(arg, "="):
			key, value, _ := strings.Cut(arg, "=")
			if key == "" {
				return nil, usageError("malformed variable override %q", arg)
			}
			inv.Overrides[key] = value

		default:
			if seenAction {
				return nil, usageError("multiple actions: %q and %q", inv.Action, arg)
			}
			switch arg {
			case ActionAll, ActionTest, ActionClean, ActionWatch, ActionStats:
				inv.Action = arg
				seenAction = true
			default:
				return nil, usageError("unknown action %q", arg)
			}
		}
	}

	return inv, nil
}

const usageText = `usage: sqlharness [flags] [action] [VAR=VALUE ...]

actions:
  all    build the test executable (default)
  test   build, then run the suite; its exit code is the result
  clean  remove the executable, objects and dependency files
  watch  rebuild on source or header changes
  stats  summarize recorded build history

flags:
  -c, --config PATH  config file (default: harness.yaml in the build root)
  -C, --dir PATH     build root (default: current directory)

variables: V, CC, CFLAGS, LIBS, HEADERS, JOBS`
