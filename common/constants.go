package common

import "time"

// Application metadata.
const (
	// AppName is the display name of the engine.
	AppName = "VPN Engine"
	// ConfigDirName is the name of the configuration directory under
	// ~/.config where settings, snapshots and logs are kept.
	ConfigDirName = "vpn-engine"
)

// File names used by the engine.
const (
	SnapshotFileName    = "engine.db"
	CredentialsFileName = ".credentials"
	LogFileName         = "vpn-engine.log"
)

// Default timeouts and intervals.
const (
	// DNSLookupTimeout bounds the blocking DNS resolution used when
	// whitelisting a manually configured remote host before connect.
	DNSLookupTimeout = 5 * time.Second
	// BlockingDisconnectTimeout bounds how long cleanup waits for the
	// primary and emergency connections to finish disconnecting.
	BlockingDisconnectTimeout = 15 * time.Second
	// PacketSizeDetectionTimeout bounds a single MTU probe.
	PacketSizeDetectionTimeout = 5 * time.Second
)

// Tunnel protocol MTU overhead. Subtracted from the configured packet size
// before the adapter MTU is changed, unless overridden via advanced config.
const (
	MTUOffsetIkev2     = 80
	MTUOffsetWireGuard = 80
	MTUOffsetOpenVPN   = 40
)
