package types

// DisconnectReason explains why a connection ended.
type DisconnectReason int

const (
	// DisconnectedItself means the tunnel ended without a user command
	// (network loss, internal reconnect bookkeeping, engine shutdown).
	DisconnectedItself DisconnectReason = iota
	// DisconnectedByUser means the user asked for the disconnect.
	DisconnectedByUser
	// DisconnectedWithError means the connection ended with a terminal
	// error carried alongside in ConnectError.
	DisconnectedWithError
)

// String returns a human-readable representation of the reason.
func (r DisconnectReason) String() string {
	switch r {
	case DisconnectedItself:
		return "itself"
	case DisconnectedByUser:
		return "by user"
	case DisconnectedWithError:
		return "with error"
	default:
		return "unknown"
	}
}

// ConnectError is the terminal error taxonomy surfaced with a
// Disconnected state. It is a state attribute, not a Go error: the engine
// reports it through the state machine rather than returning it.
type ConnectError int

const (
	NoConnectError ConnectError = iota
	// Target errors: terminal, never retried.
	LocationNotExist
	LocationNoActiveNodes
	ConnectionBlocked
	// Authentication errors: recovered once via credential refetch.
	AuthError
	PrivKeyPasswordError
	// Platform adapter errors: terminal, never retried.
	TunnelAdapterFatalError
	// CredentialRefetchFailed is surfaced when the automatic retry path
	// could not obtain fresh credentials.
	CredentialRefetchFailed
)

// String returns a human-readable representation of the error code.
func (e ConnectError) String() string {
	switch e {
	case NoConnectError:
		return "no error"
	case LocationNotExist:
		return "location does not exist"
	case LocationNoActiveNodes:
		return "location has no active nodes"
	case ConnectionBlocked:
		return "connection blocked"
	case AuthError:
		return "authentication failed"
	case PrivKeyPasswordError:
		return "private key password incorrect"
	case TunnelAdapterFatalError:
		return "tunnel adapter fatal error"
	case CredentialRefetchFailed:
		return "credential refetch failed"
	default:
		return "unknown"
	}
}
