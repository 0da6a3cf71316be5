// Package target provides the normalized representation of a repository
// endpoint URL that every credential operation is keyed on.
package target

import (
	"fmt"
	"net/url"
	"strings"
)

// Target is a normalized, always-absolute repository endpoint.
//
// Some providers require probing a different URL than the one ultimately
// used for Git operations, so a Target carries a distinct "actual" URL
// (used for Git) and "query" URL (used for authority probes). For most
// targets the two are the same.
type Target struct {
	actual *url.URL
	query  *url.URL
}

// Parse builds a Target from a single raw URL. The URL must be absolute.
func Parse(raw string) (*Target, error) {
	u, err := parseAbsolute(raw)
	if err != nil {
		return nil, err
	}
	return &Target{actual: u, query: u}, nil
}

// ParsePair builds a Target whose probe URL differs from the Git URL.
func ParsePair(actual, query string) (*Target, error) {
	a, err := parseAbsolute(actual)
	if err != nil {
		return nil, err
	}
	q, err := parseAbsolute(query)
	if err != nil {
		return nil, err
	}
	return &Target{actual: a, query: q}, nil
}

// FromComponents builds a Target from the protocol/host/path attributes of
// a git-credential request.
func FromComponents(protocol, host, path string) (*Target, error) {
	if protocol == "" {
		protocol = "https"
	}
	if host == "" {
		return nil, fmt.Errorf("target host is required")
	}
	raw := protocol + "://" + host
	if path != "" {
		raw += "/" + strings.TrimPrefix(path, "/")
	}
	return Parse(raw)
}

func parseAbsolute(raw string) (*url.URL, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("target URL is empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid target URL %q: %w", raw, err)
	}
	if !u.IsAbs() || u.Host == "" {
		return nil, fmt.Errorf("target URL %q is not absolute", raw)
	}
	return u, nil
}

// Scheme returns the scheme of the Git URL.
func (t *Target) Scheme() string {
	return t.actual.Scheme
}

// Host returns the host (with port, if any) of the Git URL.
func (t *Target) Host() string {
	return t.actual.Host
}

// Hostname returns the host without the port.
func (t *Target) Hostname() string {
	return t.actual.Hostname()
}

// Path returns the URL path of the Git URL.
func (t *Target) Path() string {
	return t.actual.Path
}

// Username returns the username embedded in the URL, if any.
func (t *Target) Username() (string, bool) {
	if t.actual.User == nil {
		return "", false
	}
	name := t.actual.User.Username()
	return name, name != ""
}

// IsHTTP reports whether the target uses an http(s) scheme. SSH and other
// remotes can never carry an authority probe.
func (t *Target) IsHTTP() bool {
	switch strings.ToLower(t.actual.Scheme) {
	case "http", "https":
		return true
	}
	return false
}

// ActualURL returns a copy of the Git URL.
func (t *Target) ActualURL() *url.URL {
	u := *t.actual
	return &u
}

// QueryURL returns a copy of the probe URL.
func (t *Target) QueryURL() *url.URL {
	u := *t.query
	return &u
}

// HasHostSuffix reports whether the target host matches the given base
// domain, case-insensitively. A suffix matches either the whole host or a
// subdomain boundary, so "azure.com" matches "dev.azure.com" but not
// "notazure.com".
func (t *Target) HasHostSuffix(suffix string) bool {
	host := strings.ToLower(t.actual.Hostname())
	suffix = strings.ToLower(suffix)
	if host == suffix {
		return true
	}
	return strings.HasSuffix(host, "."+suffix)
}

// StorageKey derives the deterministic secret-store key for this target.
// The key is provider-namespaced and scheme-qualified, with trailing
// slashes trimmed for compatibility with other credential tooling.
func (t *Target) StorageKey(namespace string) string {
	key := fmt.Sprintf("%s:%s://%s", namespace, t.actual.Scheme, t.actual.Host)
	if p := strings.TrimSuffix(t.actual.Path, "/"); p != "" {
		key += p
	}
	return key
}

// String returns the Git URL without embedded credentials.
func (t *Target) String() string {
	u := *t.actual
	u.User = nil
	return strings.TrimSuffix(u.String(), "/")
}
