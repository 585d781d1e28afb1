// Package connection defines the contract of the protocol layer that
// establishes VPN tunnels (IKEv2, OpenVPN, WireGuard) and the typed
// events it reports back to the engine.
package connection

import (
	"context"

	"vpnengine/helper"
	"vpnengine/types"
)

// EventKind identifies a connection manager event.
type EventKind int

const (
	EventUnknown EventKind = iota
	// EventConnecting is emitted when tunnel negotiation starts, and
	// again on internal failover to another endpoint.
	EventConnecting
	// EventConnected is emitted once the tunnel is up.
	EventConnected
	// EventDisconnected is emitted when the tunnel is down and the
	// manager is idle.
	EventDisconnected
	// EventReconnecting is emitted when the tunnel dropped and the
	// manager is re-establishing it on its own.
	EventReconnecting
	// EventError is emitted on a fatal connect error; the manager
	// returns to the disconnected state afterwards.
	EventError
	// EventRequestUsername asks for the username of a custom config
	// that does not embed credentials.
	EventRequestUsername
	// EventRequestPassword asks for the password of a custom config.
	EventRequestPassword
	// EventRequestPrivKeyPassword asks for the passphrase protecting a
	// custom config private key.
	EventRequestPrivKeyPassword
	// EventInternetConnectivity reports a change of underlying
	// internet reachability while the tunnel is supposed to be up.
	EventInternetConnectivity
	// EventStatisticsUpdated reports transferred byte counters.
	EventStatisticsUpdated
	// EventInterfaceUpdated reports the tunnel interface name once known.
	EventInterfaceUpdated
	// EventConnectedToIP reports the endpoint IP actually connected to.
	EventConnectedToIP
	// EventProtocolPortChanged reports the protocol/port the manager
	// actually negotiated (automatic mode may differ from the request).
	EventProtocolPortChanged
	// EventWireGuardKeyLimit signals the account hit its WireGuard key
	// quota and the user must confirm deleting the oldest key.
	EventWireGuardKeyLimit
)

// Event is a tagged union of everything the protocol layer reports.
// Only the fields relevant to the Kind are populated.
type Event struct {
	Kind        EventKind
	Err         types.ConnectError // EventError
	TunnelInfo  TunnelInfo         // EventConnected
	Interface   string             // EventInterfaceUpdated
	IP          string             // EventConnectedToIP
	Online      bool               // EventInternetConnectivity
	BytesIn     uint64             // EventStatisticsUpdated
	BytesOut    uint64             // EventStatisticsUpdated
	ConfigFile  string             // EventRequest* for custom configs
	CustomError string             // EventError detail for logs
	Protocol    types.Protocol     // EventProtocolPortChanged
	Port        uint               // EventProtocolPortChanged
}

// TunnelInfo carries the negotiated tunnel parameters delivered with
// EventConnected.
type TunnelInfo struct {
	AdapterInfo      helper.AdapterInfo
	DefaultAdapter   helper.AdapterInfo
	ConnectedIP      string
	DNSServers       []string
	IsDNSInsideTun   bool
	VerifiedProtocol types.Protocol
}

// Credentials are the username/password pair used to authenticate the
// tunnel, plus an optional private key passphrase for custom configs.
type Credentials struct {
	Username           string
	Password           string
	PrivateKeyPassword string
}

// ConnectParams describes a single connect attempt.
type ConnectParams struct {
	Location         types.LocationID
	Settings         types.ConnectionSettings
	Credentials      Credentials
	ProxySettings    types.ProxySettings
	PacketSize       types.PacketSize
	CustomConfigPath string
	MSS              int
}

// Manager drives tunnel lifecycles. Click-style calls return
// immediately; outcomes arrive on Events in emission order.
type Manager interface {
	// ClickConnect starts (or restarts) a connection with the given
	// parameters. A connection already in progress is torn down first.
	ClickConnect(params ConnectParams)
	// ClickDisconnect requests an orderly teardown. EventDisconnected
	// follows, immediately if already disconnected.
	ClickDisconnect()
	// BlockingDisconnect tears the tunnel down synchronously, bounded
	// by ctx. It is used during cleanup only.
	BlockingDisconnect(ctx context.Context) error
	// IsDisconnected reports whether the manager is idle.
	IsDisconnected() bool

	// ContinueWithUsernameAndPassword answers EventRequestUsername.
	ContinueWithUsernameAndPassword(username, password string)
	// ContinueWithPassword answers EventRequestPassword.
	ContinueWithPassword(password string)
	// ContinueWithPrivKeyPassword answers EventRequestPrivKeyPassword.
	ContinueWithPrivKeyPassword(password string)

	CurrentProtocol() types.Protocol
	VPNAdapterInfo() helper.AdapterInfo
	DefaultAdapterInfo() helper.AdapterInfo
	LastConnectedIP() string

	IsCustomConfig() bool
	CustomConfigFilename() string
	IsStaticIPsLocation() bool
	StaticIPPorts() []uint
	// IsAllowFirewallAfterConnection reports whether the active custom
	// config permits turning the firewall on once connected.
	IsAllowFirewallAfterConnection() bool

	// SetPacketSize updates the MTU used for subsequent tunnels.
	SetPacketSize(ps types.PacketSize)
	// SetConnectedDNSInfo updates the DNS servers pushed while connected.
	SetConnectedDNSInfo(servers []string)
	// UpdateConnectionSettings replaces protocol/port for future attempts.
	UpdateConnectionSettings(cs types.ConnectionSettings, ports []uint)

	// Events yields connection events in emission order. The channel is
	// closed when the manager shuts down.
	Events() <-chan Event
}

// EmergencyController establishes the restricted emergency tunnel used
// to reach the API from censored networks before login.
type EmergencyController interface {
	ClickConnect()
	ClickDisconnect()
	BlockingDisconnect(ctx context.Context) error
	IsDisconnected() bool
	Events() <-chan Event
}
