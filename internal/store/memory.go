package store

import (
	"sync"

	"credhelper/internal/cred"
)

// memoryEntry mirrors the vault payload so both adapters behave the same.
type memoryEntry struct {
	credential cred.Credential
	hasCred    bool
	token      *cred.Token
}

// Memory is an in-process SecretStore used by tests and by ephemeral
// operation modes where nothing may touch the OS vault. Each test creates
// its own instance; there is no process-wide shared state.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]*memoryEntry
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]*memoryEntry)}
}

// ReadCredential implements SecretStore.
func (m *Memory) ReadCredential(key string) (cred.Credential, bool, error) {
	if err := ValidateKey(key); err != nil {
		return cred.Credential{}, false, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.entries[key]
	if !ok || !entry.hasCred {
		return cred.Credential{}, false, nil
	}
	return entry.credential, true, nil
}

// WriteCredential implements SecretStore.
func (m *Memory) WriteCredential(key string, c cred.Credential) error {
	if err := ValidateKey(key); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = &memoryEntry{credential: c, hasCred: true}
	return nil
}

// ReadToken implements SecretStore.
func (m *Memory) ReadToken(key string) (*cred.Token, bool, error) {
	if err := ValidateKey(key); err != nil {
		return nil, false, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.entries[key]
	if !ok || entry.token == nil {
		return nil, false, nil
	}
	t := *entry.token
	return &t, true, nil
}

// WriteToken implements SecretStore.
func (m *Memory) WriteToken(key string, t *cred.Token) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	// Round-trip through the tagged encoding so the in-memory store
	// rejects exactly what the vault store would reject.
	encoded, err := cred.EncodeToken(t)
	if err != nil {
		return err
	}
	decoded, err := cred.DecodeToken(encoded)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = &memoryEntry{token: decoded}
	return nil
}

// Delete implements SecretStore. Missing entries are not an error.
func (m *Memory) Delete(key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, key)
	return nil
}

// Len returns the number of stored entries. Test helper.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
