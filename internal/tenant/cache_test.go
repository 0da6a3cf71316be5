package tenant

import (
	"bytes"
	"compress/gzip"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tenant.cache")
	c, err := NewCache(path)
	require.NoError(t, err)
	return c
}

func TestReadMissingFile(t *testing.T) {
	c := newTestCache(t)

	_, ok, err := c.Read("https://example.com")
	require.NoError(t, err)
	assert.False(t, ok, "a missing cache file means no cached answer")
}

func TestWriteReadRoundTrip(t *testing.T) {
	c := newTestCache(t)
	tenantID := uuid.MustParse("12345678-90ab-cdef-1234-567890abcdef")

	require.NoError(t, c.Write("https://x/y", tenantID))

	got, ok, err := c.Read("https://x/y")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, tenantID, got)
}

func TestRoundTripSurvivesFreshInstance(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tenant.cache")
	tenantID := uuid.New()

	first, err := NewCache(path)
	require.NoError(t, err)
	require.NoError(t, first.Write("https://x/y", tenantID))

	// A fresh instance over the same file must reproduce the mapping,
	// including the compress/decompress cycle.
	second, err := NewCache(path)
	require.NoError(t, err)

	got, ok, err := second.Read("https://x/y")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, tenantID, got)
}

func TestNilTenantIsMeaningful(t *testing.T) {
	c := newTestCache(t)

	require.NoError(t, c.Write("https://consumer.example.com", uuid.Nil))

	got, ok, err := c.Read("https://consumer.example.com")
	require.NoError(t, err)
	assert.True(t, ok, "a cached Nil tenant distinguishes consumer identity from never-checked")
	assert.Equal(t, uuid.Nil, got)
}

func TestKeyNormalization(t *testing.T) {
	c := newTestCache(t)
	tenantID := uuid.New()

	require.NoError(t, c.Write("https://MyOrg.VisualStudio.com", tenantID))

	_, ok, err := c.Read("https://myorg.visualstudio.com")
	require.NoError(t, err)
	assert.True(t, ok, "lookup keys are case-insensitive")
}

func TestDelete(t *testing.T) {
	c := newTestCache(t)
	tenantID := uuid.New()

	require.NoError(t, c.Write("https://a", tenantID))
	require.NoError(t, c.Write("https://b", tenantID))
	require.NoError(t, c.Delete("https://a"))

	_, ok, err := c.Read("https://a")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = c.Read("https://b")
	require.NoError(t, err)
	assert.True(t, ok, "deleting one entry must not disturb others")

	// Deleting an absent entry is fine.
	assert.NoError(t, c.Delete("https://a"))
}

func TestFileFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tenant.cache")
	c, err := NewCache(path)
	require.NoError(t, err)

	tenantID := uuid.MustParse("00112233-4455-6677-8899-aabbccddeeff")
	require.NoError(t, c.Write("https://host/org", tenantID))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	zr, err := gzip.NewReader(bytes.NewReader(raw))
	require.NoError(t, err, "file must be gzip-compressed")

	var plain bytes.Buffer
	_, err = plain.ReadFrom(zr)
	require.NoError(t, err)
	assert.Equal(t, "https://host/org=00112233-4455-6677-8899-aabbccddeeff\x00", plain.String())
}

func TestMalformedRecordsSkipped(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tenant.cache")

	var plain bytes.Buffer
	plain.WriteString("https://good=11112222-3333-4444-5555-666677778888\x00")
	plain.WriteString("no-separator-here\x00")
	plain.WriteString("https://bad-guid=not-a-guid\x00")

	var compressed bytes.Buffer
	zw := gzip.NewWriter(&compressed)
	_, err := zw.Write(plain.Bytes())
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, os.WriteFile(path, compressed.Bytes(), 0o600))

	c, err := NewCache(path)
	require.NoError(t, err)

	entries, err := c.Entries()
	require.NoError(t, err)
	assert.Len(t, entries, 1, "damaged records are dropped, good ones kept")
	assert.Contains(t, entries, "https://good")
}

func TestLinearBackOffProgression(t *testing.T) {
	b := &linearBackOff{interval: 10 * time.Millisecond}

	assert.Equal(t, 10*time.Millisecond, b.NextBackOff())
	assert.Equal(t, 20*time.Millisecond, b.NextBackOff())
	assert.Equal(t, 30*time.Millisecond, b.NextBackOff())

	b.Reset()
	assert.Equal(t, 10*time.Millisecond, b.NextBackOff())
}
