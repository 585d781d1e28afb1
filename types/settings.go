package types

// ConnectionSettings describe the desired protocol and port for the next
// connect attempt. When IsAutomatic is true the engine lets the connection
// manager pick protocol and port itself.
type ConnectionSettings struct {
	Protocol    Protocol `yaml:"protocol"`
	Port        uint     `yaml:"port"`
	IsAutomatic bool     `yaml:"is_automatic"`
}

// AutomaticConnectionSettings returns the policy-default settings.
func AutomaticConnectionSettings() ConnectionSettings {
	return ConnectionSettings{Protocol: ProtocolUnknown, Port: 0, IsAutomatic: true}
}

// PacketSize is the MTU policy. MTU is only applied when IsAutomatic is
// false and the value minus protocol overhead stays positive.
type PacketSize struct {
	IsAutomatic bool `yaml:"is_automatic"`
	MTU         int  `yaml:"mtu"`
}

// ProxySettings describe the local proxy the control-plane traffic should
// use while disconnected.
type ProxySettings struct {
	Address  string `yaml:"address"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// IsEmpty reports whether no proxy is configured.
func (p ProxySettings) IsEmpty() bool { return p.Address == "" }

// PortMap lists the ports usable per protocol, supplied by the API layer.
type PortMap map[Protocol][]uint
