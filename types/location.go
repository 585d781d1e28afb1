package types

// LocationKind distinguishes the connect target families.
type LocationKind int

const (
	// LocationBest resolves to the lowest-latency API location.
	LocationBest LocationKind = iota
	// LocationAPI is a regular server-list location.
	LocationAPI
	// LocationStaticIPs is a purchased static-IP location.
	LocationStaticIPs
	// LocationCustomConfig is a user-supplied config file location,
	// usable without an authenticated session.
	LocationCustomConfig
)

// LocationID identifies a connect target. The zero value is the
// "best location" target. LocationID is comparable; equality and kind
// predicates are stable for the lifetime of a session.
type LocationID struct {
	Kind LocationKind
	// ID is an opaque identifier within the kind (city code, static-IP
	// id, or custom config file name).
	ID string
}

// IsCustomConfig reports whether the target is a custom config location.
func (l LocationID) IsCustomConfig() bool { return l.Kind == LocationCustomConfig }

// IsStaticIPs reports whether the target is a static-IP location.
func (l LocationID) IsStaticIPs() bool { return l.Kind == LocationStaticIPs }

// IsBest reports whether the target is the best-location placeholder.
func (l LocationID) IsBest() bool { return l.Kind == LocationBest && l.ID == "" }

// String returns a compact form for logs.
func (l LocationID) String() string {
	switch l.Kind {
	case LocationAPI:
		return "api:" + l.ID
	case LocationStaticIPs:
		return "static:" + l.ID
	case LocationCustomConfig:
		return "custom:" + l.ID
	default:
		if l.ID == "" {
			return "best"
		}
		return "best:" + l.ID
	}
}

// LocationInfo is the resolved view of a LocationID supplied by the
// locations model collaborator.
type LocationInfo struct {
	ID   LocationID
	Name string
	// HasSelectedNode is false when the location exists but no node is
	// currently available to connect to.
	HasSelectedNode bool
	// PingIPs are the endpoints the locations model keeps latency data
	// for; they must bypass the firewall while disconnected.
	PingIPs []string
	// RemoteHost is the configured endpoint of a custom config location
	// (hostname or IP literal), empty for other kinds.
	RemoteHost string
	// CustomConfigPath is the on-disk config file of a custom config
	// location, empty for other kinds.
	CustomConfigPath string
}
