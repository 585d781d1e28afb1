// Package store persists small engine state blobs (last location,
// firewall-on-boot flag, detected packet sizes) in a local SQLite
// key/value table.
package store

import (
	"database/sql"
	"errors"

	_ "modernc.org/sqlite"

	"vpnengine/common"
)

// Well-known keys.
const (
	KeyLastLocation   = "last_location"
	KeyFirewallOnBoot = "firewall_on_boot"
	KeyPacketSize     = "packet_size"
	KeyWhitelistedIPs = "whitelisted_ips"
)

// KV is a SQLite-backed key/value store. It is safe for concurrent use.
type KV struct {
	db *sql.DB
}

// Open opens (creating if needed) the store at path.
func Open(path string) (*KV, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, common.WrapError(err, "opening snapshot store")
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS kv (key TEXT PRIMARY KEY, value BLOB NOT NULL)`); err != nil {
		db.Close()
		return nil, common.WrapError(err, "initializing snapshot store")
	}
	return &KV{db: db}, nil
}

// Get returns the value stored under key, or ErrSnapshotLoad wrapping
// sql.ErrNoRows when absent.
func (s *KV) Get(key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if err != nil {
		return nil, common.WrapError(err, "loading "+key)
	}
	return value, nil
}

// GetString is Get with a string result; a missing key yields "".
func (s *KV) GetString(key string) string {
	v, err := s.Get(key)
	if err != nil {
		return ""
	}
	return string(v)
}

// Set stores value under key, replacing any previous value.
func (s *KV) Set(key string, value []byte) error {
	_, err := s.db.Exec(
		`INSERT INTO kv (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value)
	if err != nil {
		return common.WrapError(err, "saving "+key)
	}
	return nil
}

// SetString is Set with a string value.
func (s *KV) SetString(key, value string) error {
	return s.Set(key, []byte(value))
}

// Delete removes key. Deleting a missing key is not an error.
func (s *KV) Delete(key string) error {
	if _, err := s.db.Exec(`DELETE FROM kv WHERE key = ?`, key); err != nil {
		return common.WrapError(err, "deleting "+key)
	}
	return nil
}

// IsNotFound reports whether err means the key was absent.
func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// Close closes the underlying database.
func (s *KV) Close() error {
	return s.db.Close()
}
