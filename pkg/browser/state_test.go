package browser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStateDriver(s State) *Driver {
	d := NewDriver(Options{}, nil, nil)
	d.state = s
	return d
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "uninitialized", StateUninitialized.String())
	assert.Equal(t, "awaiting_login", StateAwaitingLogin.String())
	assert.Equal(t, "ready", StateReady.String())
	assert.Equal(t, "busy", StateBusy.String())
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "state(42)", State(42).String())
}

func TestTransitions_Allowed(t *testing.T) {
	tests := []struct {
		name string
		from State
		to   State
	}{
		{name: "uninitialized to launching", from: StateUninitialized, to: StateLaunching},
		{name: "launching to awaiting login", from: StateLaunching, to: StateAwaitingLogin},
		{name: "launching to ready", from: StateLaunching, to: StateReady},
		{name: "awaiting login to ready", from: StateAwaitingLogin, to: StateReady},
		{name: "ready to busy", from: StateReady, to: StateBusy},
		{name: "busy to ready", from: StateBusy, to: StateReady},
		{name: "busy to awaiting login", from: StateBusy, to: StateAwaitingLogin},
		{name: "ready to closed", from: StateReady, to: StateClosed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newStateDriver(tt.from)
			require.NoError(t, d.transitionTo(tt.to))
			assert.Equal(t, tt.to, d.State())
		})
	}
}

func TestTransitions_Rejected(t *testing.T) {
	tests := []struct {
		name string
		from State
		to   State
	}{
		{name: "uninitialized to ready", from: StateUninitialized, to: StateReady},
		{name: "uninitialized to busy", from: StateUninitialized, to: StateBusy},
		{name: "awaiting login to busy", from: StateAwaitingLogin, to: StateBusy},
		{name: "busy to launching", from: StateBusy, to: StateLaunching},
		{name: "closed to anything", from: StateClosed, to: StateReady},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newStateDriver(tt.from)
			assert.Error(t, d.transitionTo(tt.to))
			assert.Equal(t, tt.from, d.State())
		})
	}
}

func TestTransitions_SameStateIsNoOp(t *testing.T) {
	d := newStateDriver(StateReady)
	require.NoError(t, d.transitionTo(StateReady))
	assert.Equal(t, StateReady, d.State())

	// Even Closed, which has no outgoing edges, allows a no-op.
	d = newStateDriver(StateClosed)
	assert.NoError(t, d.transitionTo(StateClosed))
}

func TestSetState_PanicsOnIllegalEdge(t *testing.T) {
	d := newStateDriver(StateUninitialized)
	assert.Panics(t, func() { d.setState(StateBusy) })
}
