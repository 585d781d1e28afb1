// Package settings holds the engine-wide settings document and its
// YAML persistence. It handles loading, saving, and diffing settings
// the engine reacts to at runtime.
package settings

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"vpnengine/common"
	"vpnengine/types"
)

// FirewallMode controls when the firewall is driven automatically.
type FirewallMode int

const (
	// FirewallModeManual leaves the firewall entirely to explicit
	// FirewallOn/FirewallOff commands.
	FirewallModeManual FirewallMode = iota
	// FirewallModeAutomatic raises the firewall around connections and
	// drops it on user-initiated disconnect.
	FirewallModeAutomatic
	// FirewallModeAlwaysOn keeps the firewall up permanently.
	FirewallModeAlwaysOn
)

func (m FirewallMode) String() string {
	switch m {
	case FirewallModeManual:
		return "manual"
	case FirewallModeAutomatic:
		return "automatic"
	case FirewallModeAlwaysOn:
		return "always_on"
	default:
		return "unknown"
	}
}

// FirewallWhen controls at which point of the connect flow an
// automatic firewall is raised.
type FirewallWhen int

const (
	// FirewallBeforeConnection raises the firewall before tunnel
	// negotiation starts.
	FirewallBeforeConnection FirewallWhen = iota
	// FirewallAfterConnection raises it only once the tunnel is up.
	FirewallAfterConnection
)

// FirewallSettings combines mode and timing.
type FirewallSettings struct {
	Mode FirewallMode `yaml:"mode"`
	When FirewallWhen `yaml:"when"`
}

// ConnectedDNSType selects the resolver used while connected.
type ConnectedDNSType int

const (
	// ConnectedDNSAuto uses the resolvers pushed by the tunnel.
	ConnectedDNSAuto ConnectedDNSType = iota
	// ConnectedDNSCustom uses the user-supplied upstream.
	ConnectedDNSCustom
)

// ConnectedDNS describes the while-connected DNS policy.
type ConnectedDNS struct {
	Type     ConnectedDNSType `yaml:"type"`
	Upstream string           `yaml:"upstream,omitempty"`
}

// AdvancedConfig carries tuning knobs that rarely change.
type AdvancedConfig struct {
	// MTU offsets subtracted from the detected path MTU per protocol.
	// Zero means use the built-in default.
	MTUOffsetIkev2     int `yaml:"mtu_offset_ikev2,omitempty"`
	MTUOffsetWireGuard int `yaml:"mtu_offset_wireguard,omitempty"`
	MTUOffsetOpenVPN   int `yaml:"mtu_offset_openvpn,omitempty"`
}

// MTUOffsetFor returns the configured offset for the protocol, falling
// back to the built-in defaults.
func (a AdvancedConfig) MTUOffsetFor(p types.Protocol) int {
	switch {
	case p.IsIkev2():
		if a.MTUOffsetIkev2 != 0 {
			return a.MTUOffsetIkev2
		}
		return common.MTUOffsetIkev2
	case p.IsWireGuard():
		if a.MTUOffsetWireGuard != 0 {
			return a.MTUOffsetWireGuard
		}
		return common.MTUOffsetWireGuard
	default:
		if a.MTUOffsetOpenVPN != 0 {
			return a.MTUOffsetOpenVPN
		}
		return common.MTUOffsetOpenVPN
	}
}

// MACSpoofing configures interface MAC randomization. The OS mechanics
// live outside the engine; only the setting change is reacted to.
type MACSpoofing struct {
	Enabled   bool   `yaml:"enabled"`
	Interface string `yaml:"interface,omitempty"`
}

// EngineSettings is the persisted settings document the engine consumes.
type EngineSettings struct {
	Firewall           FirewallSettings         `yaml:"firewall"`
	Connection         types.ConnectionSettings `yaml:"connection"`
	PacketSize         types.PacketSize         `yaml:"packet_size"`
	Proxy              types.ProxySettings      `yaml:"proxy"`
	ConnectedDNS       ConnectedDNS             `yaml:"connected_dns"`
	MACSpoofing        MACSpoofing              `yaml:"mac_spoofing"`
	UpdateChannel      string                   `yaml:"update_channel,omitempty"`
	AllowLANTraffic    bool                     `yaml:"allow_lan_traffic"`
	TerminateSockets   bool                     `yaml:"terminate_sockets"`
	IsIgnoreSSLErrors  bool                     `yaml:"ignore_ssl_errors"`
	CustomConfigsPath  string                   `yaml:"custom_configs_path,omitempty"`
	Advanced           AdvancedConfig           `yaml:"advanced"`
	// PerNetwork overrides the connection settings per Wi-Fi SSID.
	PerNetwork map[string]types.ConnectionSettings `yaml:"per_network,omitempty"`
}

// Default returns the settings used before anything is persisted.
func Default() EngineSettings {
	return EngineSettings{
		Firewall:   FirewallSettings{Mode: FirewallModeAutomatic, When: FirewallBeforeConnection},
		Connection: types.AutomaticConnectionSettings(),
		PacketSize: types.PacketSize{IsAutomatic: true},
	}
}

// ConnectionFor returns the connection settings effective on the given
// network name, falling back to the global ones.
func (s EngineSettings) ConnectionFor(network string) types.ConnectionSettings {
	if cs, ok := s.PerNetwork[network]; ok {
		return cs
	}
	return s.Connection
}

// Load reads the settings document at path. A missing file yields the
// defaults without error.
func Load(path string) (EngineSettings, error) {
	file, err := os.Open(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return Default(), fmt.Errorf("error opening settings: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true) // Strict validation: reject unknown fields

	s := Default()
	if err := decoder.Decode(&s); err != nil {
		return Default(), fmt.Errorf("error parsing settings: %w", err)
	}
	return s, nil
}

// Save writes the settings document to path, creating parent
// directories as needed.
func Save(s EngineSettings, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("error creating settings directory: %w", err)
	}
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("error serializing settings: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("error saving settings: %w", err)
	}
	return nil
}

// Diff reports which engine-relevant groups differ between two
// settings documents.
type Diff struct {
	Firewall      bool
	Connection    bool
	PacketSize    bool
	Proxy         bool
	ConnectedDNS  bool
	MACSpoofing   bool
	UpdateChannel bool
	AllowLAN      bool
	Advanced      bool
}

// Any reports whether anything the engine reacts to changed.
func (d Diff) Any() bool {
	return d.Firewall || d.Connection || d.PacketSize || d.Proxy || d.ConnectedDNS ||
		d.MACSpoofing || d.UpdateChannel || d.AllowLAN || d.Advanced
}

// Compare computes the Diff from old to new.
func Compare(prev, next EngineSettings) Diff {
	return Diff{
		Firewall:      prev.Firewall != next.Firewall,
		Connection:    prev.Connection != next.Connection,
		PacketSize:    prev.PacketSize != next.PacketSize,
		Proxy:         prev.Proxy != next.Proxy,
		ConnectedDNS:  prev.ConnectedDNS != next.ConnectedDNS,
		MACSpoofing:   prev.MACSpoofing != next.MACSpoofing,
		UpdateChannel: prev.UpdateChannel != next.UpdateChannel,
		AllowLAN:      prev.AllowLANTraffic != next.AllowLANTraffic,
		Advanced:      prev.Advanced != next.Advanced,
	}
}
