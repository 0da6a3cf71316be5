package store

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"

	"credhelper/internal/cred"
	"credhelper/pkg/logging"
)

// keyringAccount is the fixed account name under which entries are filed
// in the OS vault; the store key is carried as the keyring service name,
// which is what other Git tooling keys on.
const keyringAccount = "credhelper"

// keyringEntry is the JSON payload persisted in the vault. Credentials
// store username/password directly; tokens store the tagged base64
// encoding so the kind survives the round trip.
type keyringEntry struct {
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	Token    string `json:"token,omitempty"`
}

// Keyring is a SecretStore backed by the OS-native credential vault
// (macOS Keychain, Windows Credential Manager, or the freedesktop Secret
// Service).
type Keyring struct{}

// NewKeyring creates the OS vault store.
func NewKeyring() *Keyring {
	return &Keyring{}
}

func (k *Keyring) read(key string) (*keyringEntry, bool, error) {
	if err := ValidateKey(key); err != nil {
		return nil, false, err
	}

	raw, err := keyring.Get(key, keyringAccount)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("keyring read failed: %w", err)
	}

	var entry keyringEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return nil, false, fmt.Errorf("stored entry for %q is malformed: %w", key, err)
	}
	return &entry, true, nil
}

func (k *Keyring) write(key string, entry *keyringEntry) error {
	if err := ValidateKey(key); err != nil {
		return err
	}

	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal entry: %w", err)
	}
	if err := keyring.Set(key, keyringAccount, string(raw)); err != nil {
		return fmt.Errorf("keyring write failed: %w", err)
	}

	logging.Debug("Store", "wrote vault entry for %s", key)
	return nil
}

// ReadCredential implements SecretStore.
func (k *Keyring) ReadCredential(key string) (cred.Credential, bool, error) {
	entry, ok, err := k.read(key)
	if err != nil || !ok {
		return cred.Credential{}, false, err
	}
	if entry.Password == "" && entry.Username == "" {
		return cred.Credential{}, false, nil
	}
	return cred.NewCredential(entry.Username, entry.Password), true, nil
}

// WriteCredential implements SecretStore.
func (k *Keyring) WriteCredential(key string, c cred.Credential) error {
	return k.write(key, &keyringEntry{Username: c.Username, Password: c.Password})
}

// ReadToken implements SecretStore.
func (k *Keyring) ReadToken(key string) (*cred.Token, bool, error) {
	entry, ok, err := k.read(key)
	if err != nil || !ok {
		return nil, false, err
	}
	if entry.Token == "" {
		return nil, false, nil
	}
	t, err := cred.DecodeTokenString(entry.Token)
	if err != nil {
		return nil, false, fmt.Errorf("stored token for %q is malformed: %w", key, err)
	}
	return t, true, nil
}

// WriteToken implements SecretStore.
func (k *Keyring) WriteToken(key string, t *cred.Token) error {
	encoded, err := cred.EncodeTokenString(t)
	if err != nil {
		return err
	}
	return k.write(key, &keyringEntry{Token: encoded})
}

// Delete implements SecretStore. Missing entries are not an error.
func (k *Keyring) Delete(key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}

	err := keyring.Delete(key, keyringAccount)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("keyring delete failed: %w", err)
	}

	logging.Debug("Store", "deleted vault entry for %s", key)
	return nil
}
