// Package store persists credentials and tokens under deterministic
// string keys, backed by the OS-native secure credential vault or an
// in-memory map.
package store

import (
	"fmt"
	"strings"

	"credhelper/internal/cred"
)

// SecretStore is the persistence capability used by the authentication
// orchestrators. Implementations must tolerate concurrent access from
// other processes of the same tool; each call is an independent
// open-read-or-write-close operation with no held locks.
type SecretStore interface {
	// ReadCredential returns the credential stored under key, if any.
	ReadCredential(key string) (cred.Credential, bool, error)

	// WriteCredential stores a credential under key, replacing any
	// previous value.
	WriteCredential(key string, c cred.Credential) error

	// ReadToken returns the token stored under key, if any.
	ReadToken(key string) (*cred.Token, bool, error)

	// WriteToken stores a token under key, replacing any previous value.
	WriteToken(key string, t *cred.Token) error

	// Delete removes the entry under key. Deleting a missing entry is
	// not an error.
	Delete(key string) error
}

// ValidateKey rejects keys that were not derived from an absolute URI.
// Passing an underived key is a programming error; every orchestrator
// builds keys through target.StorageKey.
func ValidateKey(key string) error {
	if !strings.Contains(key, "://") {
		return fmt.Errorf("secret store key %q was not derived from an absolute URI", key)
	}
	return nil
}
