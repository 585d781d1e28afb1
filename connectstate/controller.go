// Package connectstate implements the finite connection state machine and
// its thread-safe holder. The engine owns two instances: one for the
// primary connection and one for the emergency connection; they share the
// type but never an event source.
package connectstate

import (
	"sync"

	"vpnengine/types"
)

// State represents the current phase of one logical connection.
type State int

const (
	// StateDisconnected indicates no active connection.
	StateDisconnected State = iota
	// StateConnecting indicates a connection is being established.
	StateConnecting
	// StateConnected indicates an active, established connection.
	StateConnected
	// StateDisconnecting indicates the connection is being terminated.
	StateDisconnecting
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "Disconnected"
	case StateConnecting:
		return "Connecting"
	case StateConnected:
		return "Connected"
	case StateDisconnecting:
		return "Disconnecting"
	default:
		return "Unknown"
	}
}

// Change is an immutable snapshot of one state transition.
type Change struct {
	State    State
	Reason   types.DisconnectReason
	Err      types.ConnectError
	Location types.LocationID
}

// Controller holds the state of one logical connection.
//
// Mutations must come only from the engine's serialized context; reads are
// safe from any goroutine. The listener is invoked synchronously on the
// mutating goroutine, exactly once per transition and in transition order.
type Controller struct {
	mu       sync.RWMutex
	cur      Change
	listener func(Change)
}

// NewController creates a controller in the Disconnected state.
func NewController() *Controller {
	return &Controller{
		cur: Change{State: StateDisconnected},
	}
}

// SetListener registers the transition observer. Must be set before the
// first mutation; only one listener is supported.
func (c *Controller) SetListener(fn func(Change)) {
	c.mu.Lock()
	c.listener = fn
	c.mu.Unlock()
}

// Current returns the latest snapshot.
func (c *Controller) Current() Change {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cur
}

// CurrentState returns the latest state.
func (c *Controller) CurrentState() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cur.State
}

// SetConnecting records the Connecting state for the given target.
// Re-entering Connecting with a new endpoint is a valid transition
// (endpoint failover while still attempting).
func (c *Controller) SetConnecting(location types.LocationID) {
	c.apply(Change{State: StateConnecting, Location: location})
}

// SetConnected records the Connected state for the given target.
func (c *Controller) SetConnected(location types.LocationID) {
	c.apply(Change{State: StateConnected, Location: location})
}

// SetReconnecting re-enters Connecting for a failover to another
// endpoint of the same target. Unlike the other setters it notifies
// even when the visible Change is unchanged, so observers see the
// re-enter.
func (c *Controller) SetReconnecting(location types.LocationID) {
	next := Change{State: StateConnecting, Location: location}
	c.mu.Lock()
	c.cur = next
	listener := c.listener
	c.mu.Unlock()

	if listener != nil {
		listener(next)
	}
}

// SetDisconnecting records the Disconnecting state.
func (c *Controller) SetDisconnecting() {
	c.apply(Change{State: StateDisconnecting})
}

// SetDisconnected records the terminal Disconnected state with the reason
// and error code observers should see.
func (c *Controller) SetDisconnected(reason types.DisconnectReason, err types.ConnectError) {
	c.apply(Change{State: StateDisconnected, Reason: reason, Err: err})
}

func (c *Controller) apply(next Change) {
	c.mu.Lock()
	if c.cur == next {
		// Not a transition; nothing to observe.
		c.mu.Unlock()
		return
	}
	c.cur = next
	listener := c.listener
	c.mu.Unlock()

	if listener != nil {
		listener(next)
	}
}
