// Package types defines the small value objects shared between the engine
// and its collaborators: tunnel protocols, connect targets, connection
// settings, packet-size policy, and the disconnect reason / connect error
// taxonomy surfaced to observers.
package types
