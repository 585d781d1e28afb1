// Package credentials provides secure storage for custom-config tunnel
// credentials. It uses the system keyring when available, falling back
// to an encrypted local file when not.
package credentials

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/zalando/go-keyring"
	"golang.org/x/crypto/chacha20poly1305"

	"vpnengine/common"
)

const serviceName = "vpn-engine"

const (
	suffixUsername = "-username"
	suffixPassword = "-password"
	suffixPrivKey  = "-privkey"
)

// AuthCredentials is a username/password pair stored per custom config.
type AuthCredentials struct {
	Username string
	Password string
}

// Storage stores credentials keyed by custom-config name. It is safe
// for concurrent use.
type Storage struct {
	mu       sync.RWMutex
	useLocal bool
	local    map[string]string
	filePath string
}

// NewStorage returns a Storage persisting its file fallback under dir.
// The system keyring is probed once; on failure every operation uses
// the encrypted file.
func NewStorage(dir string) *Storage {
	s := &Storage{
		local:    make(map[string]string),
		filePath: filepath.Join(dir, common.CredentialsFileName),
	}
	probe := serviceName + "-probe"
	if err := keyring.Set(serviceName, probe, "probe"); err == nil {
		keyring.Delete(serviceName, probe)
	} else {
		s.useLocal = true
		s.loadLocal()
	}
	return s
}

// GetAuthCredentials returns the stored pair for the config, or
// ErrCredentialsNotFound.
func (s *Storage) GetAuthCredentials(configName string) (AuthCredentials, error) {
	username, err := s.get(configName + suffixUsername)
	if err != nil {
		return AuthCredentials{}, err
	}
	password, err := s.get(configName + suffixPassword)
	if err != nil {
		return AuthCredentials{}, err
	}
	return AuthCredentials{Username: username, Password: password}, nil
}

// SetAuthCredentials stores the pair for the config.
func (s *Storage) SetAuthCredentials(configName string, creds AuthCredentials) error {
	if err := s.set(configName+suffixUsername, creds.Username); err != nil {
		return err
	}
	return s.set(configName+suffixPassword, creds.Password)
}

// GetPrivKeyPassword returns the private key passphrase for the config.
func (s *Storage) GetPrivKeyPassword(configName string) (string, error) {
	return s.get(configName + suffixPrivKey)
}

// SetPrivKeyPassword stores the private key passphrase for the config.
func (s *Storage) SetPrivKeyPassword(configName, password string) error {
	return s.set(configName+suffixPrivKey, password)
}

// RemovePrivKeyPassword removes the passphrase. Missing is not an error.
func (s *Storage) RemovePrivKeyPassword(configName string) error {
	return s.delete(configName + suffixPrivKey)
}

// RemoveCredentials removes everything stored for the config.
func (s *Storage) RemoveCredentials(configName string) error {
	for _, suffix := range []string{suffixUsername, suffixPassword, suffixPrivKey} {
		if err := s.delete(configName + suffix); err != nil {
			return err
		}
	}
	return nil
}

func (s *Storage) get(key string) (string, error) {
	if s.useLocal {
		s.mu.RLock()
		v, ok := s.local[key]
		s.mu.RUnlock()
		if !ok {
			return "", common.ErrCredentialsNotFound
		}
		return v, nil
	}
	v, err := keyring.Get(serviceName, key)
	if err == keyring.ErrNotFound {
		return "", common.ErrCredentialsNotFound
	}
	if err != nil {
		return "", common.WrapError(err, "keyring get")
	}
	return v, nil
}

func (s *Storage) set(key, value string) error {
	if s.useLocal {
		s.mu.Lock()
		s.local[key] = value
		s.mu.Unlock()
		return s.saveLocal()
	}
	if err := keyring.Set(serviceName, key, value); err != nil {
		return common.WrapError(err, "keyring set")
	}
	return nil
}

func (s *Storage) delete(key string) error {
	if s.useLocal {
		s.mu.Lock()
		delete(s.local, key)
		s.mu.Unlock()
		return s.saveLocal()
	}
	if err := keyring.Delete(serviceName, key); err != nil && err != keyring.ErrNotFound {
		return common.WrapError(err, "keyring delete")
	}
	return nil
}

func (s *Storage) loadLocal() {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return
	}
	plaintext, err := decrypt(data, fileKey())
	if err != nil {
		common.LogWarn("credentials file unreadable, starting empty: %v", err)
		return
	}
	s.mu.Lock()
	json.Unmarshal(plaintext, &s.local)
	s.mu.Unlock()
}

func (s *Storage) saveLocal() error {
	s.mu.RLock()
	data, err := json.Marshal(s.local)
	s.mu.RUnlock()
	if err != nil {
		return common.WrapError(err, "serializing credentials")
	}
	encrypted, err := encrypt(data, fileKey())
	if err != nil {
		return common.WrapError(err, "encrypting credentials")
	}
	if err := os.MkdirAll(filepath.Dir(s.filePath), 0700); err != nil {
		return common.WrapError(err, "creating credentials directory")
	}
	if err := os.WriteFile(s.filePath, encrypted, 0600); err != nil {
		return common.WrapError(err, "saving credentials")
	}
	return nil
}

// fileKey derives the file encryption key from machine-specific data.
func fileKey() []byte {
	hostname, _ := os.Hostname()
	keyData := fmt.Sprintf("%s-%s-%s-%d", serviceName, hostname, machineID(), os.Getuid())
	hash := sha256.Sum256([]byte(keyData))
	return hash[:]
}

func machineID() string {
	data, err := os.ReadFile("/etc/machine-id")
	if err == nil {
		return strings.TrimSpace(string(data))
	}
	return "default-machine-id"
}

func encrypt(plaintext, key []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	ciphertext := aead.Seal(nonce, nonce, plaintext, nil)
	return []byte(base64.StdEncoding.EncodeToString(ciphertext)), nil
}

func decrypt(data, key []byte) ([]byte, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(string(data))
	if err != nil {
		return nil, common.WrapError(err, "decoding credentials")
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < aead.NonceSize() {
		return nil, common.ErrDecryption
	}
	nonce, ciphertext := ciphertext[:aead.NonceSize()], ciphertext[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, common.ErrDecryption
	}
	return plaintext, nil
}
