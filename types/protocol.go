package types

// Protocol identifies a tunnel protocol.
type Protocol int

const (
	ProtocolUnknown Protocol = iota
	ProtocolIkev2
	ProtocolOpenVPNUDP
	ProtocolOpenVPNTCP
	ProtocolWireGuard
)

// String returns a human-readable representation of the protocol.
func (p Protocol) String() string {
	switch p {
	case ProtocolIkev2:
		return "IKEv2"
	case ProtocolOpenVPNUDP:
		return "OpenVPN (UDP)"
	case ProtocolOpenVPNTCP:
		return "OpenVPN (TCP)"
	case ProtocolWireGuard:
		return "WireGuard"
	default:
		return "Unknown"
	}
}

// IsIkev2 reports whether the protocol is IKEv2.
func (p Protocol) IsIkev2() bool { return p == ProtocolIkev2 }

// IsWireGuard reports whether the protocol is WireGuard.
func (p Protocol) IsWireGuard() bool { return p == ProtocolWireGuard }

// IsOpenVPN reports whether the protocol is an OpenVPN variant.
func (p Protocol) IsOpenVPN() bool {
	return p == ProtocolOpenVPNUDP || p == ProtocolOpenVPNTCP
}
