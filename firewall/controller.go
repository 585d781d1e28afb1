// Package firewall holds the firewall-exception aggregator and the
// platform firewall controller contract consumed by the engine. Actual
// rule syntax (iptables/pf/WFP) lives in the platform implementations.
package firewall

// Controller is the platform firewall contract. Implementations are
// expected to be thread safe; the engine is the only mutator in practice.
type Controller interface {
	// On applies (or re-applies) the firewall with the given allow-list.
	// connectingIP is the endpoint currently being negotiated with (or
	// the connected tunnel endpoint once up) and is always allowed.
	On(connectingIP string, exceptions []string, allowLAN bool, isCustomConfig bool) bool
	// Off removes the firewall rules.
	Off() bool
	// ActualState reports whether the firewall is currently active.
	ActualState() bool
	// WhitelistPorts opens inbound ports (static-IP locations).
	WhitelistPorts(ports []uint) bool
	// DeleteWhitelistPorts removes previously whitelisted ports.
	DeleteWhitelistPorts() bool
	// SetInterfaceToSkip marks the tunnel interface whose traffic
	// bypasses the block rules ("" clears it).
	SetInterfaceToSkip(name string)
	// EnableOnBoot persists (or removes) a boot-time firewall with the
	// given allow-list.
	EnableOnBoot(enable bool, exceptions []string)
}
