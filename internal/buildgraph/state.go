package buildgraph

import "fmt"

// State is the runtime execution state of a node.
//
// This is intentionally separated from Graph, which is immutable.
type State string

const (
	StatePending State = "PENDING"
	StateRunning State = "RUNNING"
	StateDone    State = "DONE"
	StateFailed  State = "FAILED"
	StateSkipped State = "SKIPPED" // already fresh, compile not needed
)

// IsTerminal reports whether a node in this state will not run again.
func IsTerminal(s State) bool {
	switch s {
	case StateDone, StateFailed, StateSkipped:
		return true
	}
	return false
}

// ExecState maps unit stem to its current State for one build attempt. The
// same Graph can be executed repeatedly with fresh states.
type ExecState map[string]State

// NewExecState initializes every unit of the plan: stale units start
// PENDING, fresh ones are SKIPPED immediately.
func NewExecState(g *Graph, p *Plan) ExecState {
	st := make(ExecState, len(g.units))
	for i, u := range g.units {
		if p != nil && p.Stale.Contains(uint32(i)) {
			st[u.Stem] = StatePending
		} else {
			st[u.Stem] = StateSkipped
		}
	}
	return st
}

// Transition moves a node from one state to another, rejecting any move
// whose precondition does not hold.
func (st ExecState) Transition(stem string, from, to State) error {
	cur, ok := st[stem]
	if !ok {
		return fmt.Errorf("unknown unit %q", stem)
	}
	if cur != from {
		return fmt.Errorf("unit %q is %s, not %s", stem, cur, from)
	}
	st[stem] = to
	return nil
}

// AllTerminal reports whether every node has finished.
func (st ExecState) AllTerminal() bool {
	for _, s := range st {
		if !IsTerminal(s) {
			return false
		}
	}
	return true
}

// LinkReady reports whether the link node may run: every compile node must
// be DONE or SKIPPED.
func (st ExecState) LinkReady() bool {
	for _, s := range st {
		if s != StateDone && s != StateSkipped {
			return false
		}
	}
	return true
}
