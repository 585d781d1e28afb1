package connectstate

import (
	"testing"

	"vpnengine/types"
)

func TestState_String(t *testing.T) {
	tests := []struct {
		state    State
		expected string
	}{
		{StateDisconnected, "Disconnected"},
		{StateConnecting, "Connecting"},
		{StateConnected, "Connected"},
		{StateDisconnecting, "Disconnecting"},
		{State(99), "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.state.String(); got != tt.expected {
				t.Errorf("State.String() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestController_TransitionOrder(t *testing.T) {
	c := NewController()
	var seen []Change
	c.SetListener(func(ch Change) { seen = append(seen, ch) })

	loc := types.LocationID{Kind: types.LocationAPI, ID: "tor"}
	c.SetConnecting(loc)
	c.SetConnected(loc)
	c.SetDisconnecting()
	c.SetDisconnected(types.DisconnectedByUser, types.NoConnectError)

	want := []State{StateConnecting, StateConnected, StateDisconnecting, StateDisconnected}
	if len(seen) != len(want) {
		t.Fatalf("observed %d transitions, want %d", len(seen), len(want))
	}
	for i, st := range want {
		if seen[i].State != st {
			t.Errorf("transition %d = %v, want %v", i, seen[i].State, st)
		}
	}
	if seen[0].Location != loc {
		t.Errorf("Connecting location = %v, want %v", seen[0].Location, loc)
	}
	if seen[3].Reason != types.DisconnectedByUser {
		t.Errorf("Disconnected reason = %v, want by user", seen[3].Reason)
	}
}

func TestController_IdenticalChangeNotObserved(t *testing.T) {
	c := NewController()
	count := 0
	c.SetListener(func(Change) { count++ })

	loc := types.LocationID{Kind: types.LocationAPI, ID: "ams"}
	c.SetConnecting(loc)
	c.SetConnecting(loc) // same state, same endpoint: not a transition

	if count != 1 {
		t.Errorf("observed %d transitions, want 1", count)
	}
}

func TestController_ReenterConnectingNewEndpoint(t *testing.T) {
	c := NewController()
	var seen []Change
	c.SetListener(func(ch Change) { seen = append(seen, ch) })

	loc := types.LocationID{Kind: types.LocationAPI, ID: "ams"}
	c.SetConnecting(loc)
	// Failover to another endpoint of the same target while still
	// attempting: observed even though the visible Change is the same.
	c.SetReconnecting(loc)

	if len(seen) != 2 {
		t.Fatalf("observed %d transitions, want 2", len(seen))
	}
	if seen[1].State != StateConnecting || seen[1].Location != loc {
		t.Errorf("second transition = %+v, want re-entered Connecting", seen[1])
	}
}

func TestController_ReadsSafeWithoutListener(t *testing.T) {
	c := NewController()
	if c.CurrentState() != StateDisconnected {
		t.Errorf("initial state = %v, want Disconnected", c.CurrentState())
	}
	c.SetDisconnected(types.DisconnectedWithError, types.LocationNotExist)
	cur := c.Current()
	if cur.Err != types.LocationNotExist {
		t.Errorf("error = %v, want LocationNotExist", cur.Err)
	}
}
