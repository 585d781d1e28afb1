// Package helper defines the contract of the privileged helper process
// that performs root-only operations on behalf of the engine.
package helper

import "vpnengine/types"

// AdapterInfo describes a network adapter as seen by the helper.
type AdapterInfo struct {
	Name    string
	IP      string
	Gateway string
	DNS     []string
	IfIndex int
	Active  bool
}

// ConnectStatus is the routing context pushed to the helper on every
// tunnel transition.
type ConnectStatus struct {
	Connected        bool
	TerminateSockets bool
	AllowLAN         bool
	DefaultAdapter   AdapterInfo
	VPNAdapter       AdapterInfo
	ConnectedIP      string
	Protocol         types.Protocol
}

// Helper is the privileged-companion contract. Calls are synchronous
// IPC round trips and may block; they must not be made while holding
// engine state locks.
type Helper interface {
	// SendConnectStatus pushes the connection status so the helper can
	// adjust routing and split tunneling rules.
	SendConnectStatus(status ConnectStatus) error
	// SetSplitTunnelingSettings forwards split tunneling configuration.
	SetSplitTunnelingSettings(active, exclude bool, apps []string, ips []string, hosts []string) error
	// ChangeMTU sets the MTU on the given adapter. When storePersistent
	// is set the value survives adapter resets.
	ChangeMTU(adapter string, mtu int, storePersistent bool) error
}
