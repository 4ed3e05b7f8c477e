package browser

import "fmt"

// State is the driver lifecycle state. Submissions may only start from
// StateReady; StateBusy covers exactly one submit/await cycle and is not
// reentrant.
type State int

const (
	StateUninitialized State = iota
	StateLaunching
	StateAwaitingLogin
	StateReady
	StateBusy
	StateClosed
)

// String returns the lowercase state name used in logs and /health.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLaunching:
		return "launching"
	case StateAwaitingLogin:
		return "awaiting_login"
	case StateReady:
		return "ready"
	case StateBusy:
		return "busy"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// validTransitions enumerates the allowed lifecycle edges.
var validTransitions = map[State][]State{
	StateUninitialized: {StateLaunching},
	StateLaunching:     {StateAwaitingLogin, StateReady, StateClosed},
	StateAwaitingLogin: {StateLaunching, StateReady, StateClosed},
	StateReady:         {StateBusy, StateAwaitingLogin, StateLaunching, StateClosed},
	StateBusy:          {StateReady, StateAwaitingLogin, StateClosed},
	StateClosed:        {},
}

// transitionTo moves the driver to next, guarding against illegal edges.
// A transition to the current state is a no-op. Callers must hold stateMu.
func (d *Driver) transitionTo(next State) error {
	if next == d.state {
		return nil
	}
	for _, allowed := range validTransitions[d.state] {
		if allowed == next {
			d.state = next
			return nil
		}
	}
	return fmt.Errorf("invalid driver state transition: %s -> %s", d.state, next)
}

// State returns the current lifecycle state.
func (d *Driver) State() State {
	d.stateMu.Lock()
	defer d.stateMu.Unlock()
	return d.state
}

// setState transitions with locking and panics on a programming error.
// Lifecycle edges are fixed at compile time; an illegal edge is a bug.
func (d *Driver) setState(next State) {
	d.stateMu.Lock()
	defer d.stateMu.Unlock()
	if err := d.transitionTo(next); err != nil {
		panic(err)
	}
}
