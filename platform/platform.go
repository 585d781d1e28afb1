// Package platform contains OS-side operations the engine performs
// around connect and disconnect: IPv6 toggling and DNS reconfiguration.
package platform

import "vpnengine/helper"

// Ops is the per-OS operation set invoked by the engine during the
// connect and cleanup flows.
type Ops interface {
	// DisableIPv6 turns IPv6 off on all interfaces to prevent leaks
	// while the tunnel is up.
	DisableIPv6() error
	// RestoreIPv6 restores the IPv6 state saved by DisableIPv6.
	RestoreIPv6() error
	// SetConnectedDNS points system DNS at the tunnel adapter.
	SetConnectedDNS(adapter helper.AdapterInfo) error
	// ResetDNS reverts DNS to its pre-connect configuration.
	ResetDNS() error
}

// Noop is an Ops implementation that does nothing. It backs tests and
// platforms where the helper owns these concerns.
type Noop struct{}

func (Noop) DisableIPv6() error                         { return nil }
func (Noop) RestoreIPv6() error                         { return nil }
func (Noop) SetConnectedDNS(_ helper.AdapterInfo) error { return nil }
func (Noop) ResetDNS() error                            { return nil }
