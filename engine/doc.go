// Package engine contains the connection orchestrator. It serializes
// external commands and collaborator events into one execution context,
// drives the connect/disconnect/retry protocols, owns the primary and
// emergency connection state machines and the firewall exception set,
// and guarantees idempotent teardown.
package engine
