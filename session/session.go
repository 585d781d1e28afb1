// Package session defines the contract of the API/session layer: login,
// session refresh, server credentials and server-list retrieval.
package session

import (
	"github.com/google/uuid"

	"vpnengine/types"
)

// EventKind identifies a session manager event.
type EventKind int

const (
	EventUnknown EventKind = iota
	// EventReadyForLogin is emitted when the API is reachable and a
	// login attempt may proceed.
	EventReadyForLogin
	// EventLoginFailed reports a failed login or session fetch.
	EventLoginFailed
	// EventSessionUpdated reports fresh session data.
	EventSessionUpdated
	// EventSessionDeleted means the session was revoked server-side.
	EventSessionDeleted
	// EventServerCredentialsFetched completes a FetchServerCredentials
	// call; Token echoes the request token.
	EventServerCredentialsFetched
	// EventLocationsUpdated reports a refreshed server list.
	EventLocationsUpdated
	// EventStaticIPsUpdated reports refreshed static-IP locations.
	EventStaticIPsUpdated
	// EventNotificationsUpdated reports refreshed account notifications.
	EventNotificationsUpdated
	// EventHostIPsChanged reports the resolved API endpoint IPs, which
	// the engine forwards into the firewall exception set.
	EventHostIPsChanged
)

// Event is the tagged union emitted by Manager.Events.
type Event struct {
	Kind    EventKind
	Token   uuid.UUID // EventServerCredentialsFetched
	Success bool      // EventServerCredentialsFetched
	IPs     []string  // EventHostIPsChanged
	Reason  string    // EventLoginFailed, EventSessionDeleted
}

// ServerCredentials are the tunnel auth credentials issued per account.
// OpenVPN and IKEv2 use distinct pairs.
type ServerCredentials struct {
	OpenVPNUsername string
	OpenVPNPassword string
	Ikev2Username   string
	Ikev2Password   string
}

// IsInitialized reports whether both pairs have been fetched.
func (c ServerCredentials) IsInitialized() bool {
	return c.OpenVPNUsername != "" && c.Ikev2Username != ""
}

// Manager is the API/session layer contract. Calls return immediately;
// results arrive on Events.
type Manager interface {
	// Login starts a login with the given account credentials.
	Login(username, password, code2fa string)
	// FetchSession refreshes the current session.
	FetchSession()
	// FetchServerCredentials refetches tunnel credentials. The token is
	// echoed in the matching EventServerCredentialsFetched so stale
	// completions can be discarded.
	FetchServerCredentials(token uuid.UUID)
	// IsLoggedIn reports whether a valid session is held.
	IsLoggedIn() bool
	// ServerCredentials returns the last fetched tunnel credentials.
	ServerCredentials() ServerCredentials
	// PortMap returns the ports available per protocol.
	PortMap() types.PortMap
	// SetProxySettings points API traffic at the given proxy.
	SetProxySettings(p types.ProxySettings)
	// CancelAll aborts in-flight API requests. Used during cleanup and
	// sign-out; cancelled requests emit no completion events.
	CancelAll()
	// Events yields session events in emission order.
	Events() <-chan Event
}
