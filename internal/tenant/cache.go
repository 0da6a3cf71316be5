// Package tenant persists the mapping from a normalized host URL to the
// directory tenant that protects it, so repeated credential operations
// skip the network probe.
package tenant

import (
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"credhelper/pkg/logging"
)

const (
	// cacheDirName matches the directory used by other Git credential
	// tooling so installations can share one cache.
	cacheDirName  = "GitCredentialManager"
	cacheFileName = "tenant.cache"

	// Other processes of this tool may hold the file open; bounded retry
	// with linear backoff absorbs the sharing contention.
	maxAttempts   = 5
	retryInterval = 100 * time.Millisecond
)

// linearBackOff is a backoff.BackOff whose wait grows linearly with the
// attempt number: interval, 2*interval, 3*interval, ...
type linearBackOff struct {
	interval time.Duration
	attempt  int
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.attempt++
	return time.Duration(b.attempt) * b.interval
}

func (b *linearBackOff) Reset() {
	b.attempt = 0
}

func retryPolicy() backoff.BackOff {
	return backoff.WithMaxRetries(&linearBackOff{interval: retryInterval}, maxAttempts-1)
}

// Cache is the disk-persisted host-to-tenant mapping.
//
// The file is the single source of truth: every operation re-reads it, so
// concurrent processes observe each other's writes at the next access.
// Last-writer-wins is accepted; a stale entry costs one extra probe, not
// corruption.
type Cache struct {
	path string
}

// DefaultPath returns the conventional cache location under the user's
// cache directory.
func DefaultPath() (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("could not determine user cache directory: %w", err)
	}
	return filepath.Join(base, cacheDirName, cacheFileName), nil
}

// NewCache creates a cache over the given file path. An empty path selects
// DefaultPath.
func NewCache(path string) (*Cache, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	return &Cache{path: path}, nil
}

// normalizeKey lowercases the lookup URL; host matching is
// case-insensitive.
func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

// Read returns the tenant recorded for the given lookup key. A found
// uuid.Nil is a meaningful answer: the host is known to use consumer
// identity, as opposed to never having been probed.
func (c *Cache) Read(key string) (uuid.UUID, bool, error) {
	entries, err := c.load()
	if err != nil {
		return uuid.Nil, false, err
	}
	id, ok := entries[normalizeKey(key)]
	return id, ok, nil
}

// Write records a tenant for the given lookup key and persists the cache.
func (c *Cache) Write(key string, tenantID uuid.UUID) error {
	return c.update(func(entries map[string]uuid.UUID) {
		entries[normalizeKey(key)] = tenantID
	})
}

// Delete removes the entry for the given lookup key, if present.
// Invalidation is deliberate on credential deletion: a changed tenant is a
// plausible cause of authentication failure and must not silently persist.
func (c *Cache) Delete(key string) error {
	return c.update(func(entries map[string]uuid.UUID) {
		delete(entries, normalizeKey(key))
	})
}

// Entries returns a copy of the full mapping.
func (c *Cache) Entries() (map[string]uuid.UUID, error) {
	return c.load()
}

// update performs a read-modify-write cycle over the backing file.
func (c *Cache) update(mutate func(map[string]uuid.UUID)) error {
	entries, err := c.load()
	if err != nil {
		return err
	}
	mutate(entries)
	return c.save(entries)
}

func (c *Cache) load() (map[string]uuid.UUID, error) {
	var data []byte

	err := backoff.Retry(func() error {
		raw, err := os.ReadFile(c.path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				data = nil
				return nil
			}
			return err
		}
		data = raw
		return nil
	}, retryPolicy())
	if err != nil {
		return nil, fmt.Errorf("failed to read tenant cache %s: %w", c.path, err)
	}

	if len(data) == 0 {
		return make(map[string]uuid.UUID), nil
	}
	return parse(data)
}

func (c *Cache) save(entries map[string]uuid.UUID) error {
	data, err := serialize(entries)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0o700); err != nil {
		return fmt.Errorf("failed to create tenant cache directory: %w", err)
	}

	err = backoff.Retry(func() error {
		return os.WriteFile(c.path, data, 0o600)
	}, retryPolicy())
	if err != nil {
		return fmt.Errorf("failed to write tenant cache %s: %w", c.path, err)
	}

	logging.Debug("TenantCache", "persisted %d entries to %s", len(entries), c.path)
	return nil
}

// serialize produces the gzip-compressed `key=value\0` record stream with
// the GUID in canonical form.
func serialize(entries map[string]uuid.UUID) ([]byte, error) {
	var plain bytes.Buffer
	for key, id := range entries {
		plain.WriteString(key)
		plain.WriteByte('=')
		plain.WriteString(id.String())
		plain.WriteByte(0)
	}

	var compressed bytes.Buffer
	zw := gzip.NewWriter(&compressed)
	if _, err := zw.Write(plain.Bytes()); err != nil {
		return nil, fmt.Errorf("failed to compress tenant cache: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize tenant cache: %w", err)
	}
	return compressed.Bytes(), nil
}

func parse(data []byte) (map[string]uuid.UUID, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("tenant cache is not valid gzip: %w", err)
	}
	defer zr.Close()

	plain, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress tenant cache: %w", err)
	}

	entries := make(map[string]uuid.UUID)
	for _, record := range strings.Split(string(plain), "\x00") {
		if record == "" {
			continue
		}
		key, value, found := strings.Cut(record, "=")
		if !found {
			// A damaged record is skipped rather than poisoning the
			// whole cache.
			logging.Warn("TenantCache", "skipping malformed cache record")
			continue
		}
		id, err := uuid.Parse(value)
		if err != nil {
			logging.Warn("TenantCache", "skipping cache record with invalid tenant id")
			continue
		}
		entries[key] = id
	}
	return entries, nil
}
