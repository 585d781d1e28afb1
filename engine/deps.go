package engine

import (
	"context"

	"vpnengine/connection"
	"vpnengine/connectstate"
	"vpnengine/credentials"
	"vpnengine/firewall"
	"vpnengine/helper"
	"vpnengine/packetsize"
	"vpnengine/platform"
	"vpnengine/session"
	"vpnengine/store"
	"vpnengine/types"
)

// Notifier receives engine notifications. Implementations (GUI, CLI,
// IPC bridge) must not call back into the Engine from the notification
// itself; callbacks arrive on the engine's execution context.
type Notifier interface {
	OnInitFinished()
	OnConnectStateChanged(c connectstate.Change)
	OnEmergencyConnectStateChanged(c connectstate.Change)
	OnFirewallStateChanged(on bool)
	OnPacketSizeChanged(ps types.PacketSize)
	OnPacketSizeDetectionFinished(detected bool)
	OnLoginFinished()
	OnLoginError(reason string)
	OnSessionUpdated()
	OnSessionDeleted()
	OnLocationsUpdated()
	OnStaticIPsUpdated()
	OnNotificationsUpdated()
	OnRequestUsername(configFile string)
	OnRequestPassword(configFile string)
	OnRequestPrivKeyPassword(configFile string)
	OnSplitTunnelingStartFailed()
	OnStatisticsUpdated(bytesIn, bytesOut uint64)
	OnProtocolPortChanged(protocol types.Protocol, port uint)
	OnInternetConnectivityChanged(online bool)
	OnWireGuardKeyLimit()
	OnSignOutFinished()
	OnCleanupFinished()
}

// NoopNotifier implements Notifier with empty methods. Embed it to
// implement only the notifications of interest.
type NoopNotifier struct{}

func (NoopNotifier) OnInitFinished()                                {}
func (NoopNotifier) OnConnectStateChanged(connectstate.Change)      {}
func (NoopNotifier) OnEmergencyConnectStateChanged(connectstate.Change) {
}
func (NoopNotifier) OnFirewallStateChanged(bool)           {}
func (NoopNotifier) OnPacketSizeChanged(types.PacketSize)  {}
func (NoopNotifier) OnPacketSizeDetectionFinished(bool)    {}
func (NoopNotifier) OnLoginFinished()                      {}
func (NoopNotifier) OnLoginError(string)                   {}
func (NoopNotifier) OnSessionUpdated()                     {}
func (NoopNotifier) OnSessionDeleted()                     {}
func (NoopNotifier) OnLocationsUpdated()                   {}
func (NoopNotifier) OnStaticIPsUpdated()                   {}
func (NoopNotifier) OnNotificationsUpdated()               {}
func (NoopNotifier) OnRequestUsername(string)              {}
func (NoopNotifier) OnRequestPassword(string)              {}
func (NoopNotifier) OnRequestPrivKeyPassword(string)       {}
func (NoopNotifier) OnSplitTunnelingStartFailed()          {}
func (NoopNotifier) OnStatisticsUpdated(uint64, uint64)    {}
func (NoopNotifier) OnProtocolPortChanged(types.Protocol, uint) {
}
func (NoopNotifier) OnInternetConnectivityChanged(bool)    {}
func (NoopNotifier) OnWireGuardKeyLimit()                  {}
func (NoopNotifier) OnSignOutFinished()                    {}
func (NoopNotifier) OnCleanupFinished()                    {}

// LocationResolver is the read-only view of the locations model the
// engine needs to validate connect targets and maintain firewall
// exceptions.
type LocationResolver interface {
	// Resolve returns the current view of the target. ok is false when
	// the location no longer exists.
	Resolve(id types.LocationID) (info types.LocationInfo, ok bool)
	// PingIPs returns the server-list latency probe targets.
	PingIPs() []string
	// CustomConfigPingIPs returns the probe targets of custom configs.
	CustomConfigPingIPs() []string
}

// SharingController pauses and resumes VPN-sharing features (secure
// hotspot, proxy gateway) around tunnel transitions.
type SharingController interface {
	OnConnectedToVPN()
	OnDisconnectedFromVPN()
	Stop()
}

// IPMonitor triggers an external check of the publicly visible IP.
type IPMonitor interface {
	RefreshIP()
}

// CredentialStore persists custom-config credentials. Implemented by
// credentials.Storage.
type CredentialStore interface {
	GetAuthCredentials(configName string) (credentials.AuthCredentials, error)
	SetAuthCredentials(configName string, c credentials.AuthCredentials) error
	GetPrivKeyPassword(configName string) (string, error)
	SetPrivKeyPassword(configName, password string) error
	RemovePrivKeyPassword(configName string) error
	RemoveCredentials(configName string) error
}

// ResolveFunc performs a bounded hostname lookup.
type ResolveFunc func(ctx context.Context, host string) ([]string, error)

// Deps bundles every collaborator the Engine is constructed with.
// Notifier, Connection, Emergency, Session, Firewall, Helper, Platform
// and Locations are required; the rest may be nil and the corresponding
// features degrade to no-ops.
type Deps struct {
	Notifier    Notifier
	Connection  connection.Manager
	Emergency   connection.EmergencyController
	Session     session.Manager
	Firewall    firewall.Controller
	Helper      helper.Helper
	Platform    platform.Ops
	Locations   LocationResolver
	Sharing     SharingController
	IPMonitor   IPMonitor
	Credentials CredentialStore
	PacketSizer *packetsize.Controller
	Store       *store.KV

	// SettingsPath, when set, is where engine settings are persisted
	// during cleanup.
	SettingsPath string
	// ResolveHost overrides the DNS lookup used for custom remote IPs.
	// Defaults to net.DefaultResolver.
	ResolveHost ResolveFunc
}
