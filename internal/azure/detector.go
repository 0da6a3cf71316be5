// Package azure implements authority detection and token acquisition
// against the Azure Active Directory endpoints that protect Azure DevOps
// organizations.
package azure

import (
	"context"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"credhelper/internal/target"
	"credhelper/internal/tenant"
	"credhelper/pkg/logging"
)

const (
	// ResourceTenantHeader carries the directory tenant of the probed
	// resource directly.
	ResourceTenantHeader = "X-VSS-ResourceTenant"

	// probeTimeout bounds the detection round trip. Detection failure is
	// recoverable (retried on the next operation), so the bound is tight.
	probeTimeout = 15 * time.Second
)

// authorizationURIPattern extracts the authorization URI from a Bearer
// challenge; the tenant GUID is its final path segment.
var authorizationURIPattern = regexp.MustCompile(`authorization_uri="?([^",\s]+)"?`)

// Detector determines which directory tenant, if any, protects a
// repository URL. Results are cached on disk; only cache misses probe the
// network.
type Detector struct {
	baseDomains []string

	// pathTenancyDomains are hosts where the organization lives in the
	// first path segment rather than a subdomain (dev.azure.com style),
	// so the tenant lookup key must include it.
	pathTenancyDomains []string

	cache      *tenant.Cache
	httpClient *http.Client

	// group deduplicates concurrent probes of the same lookup key.
	group singleflight.Group
}

// DetectorOption configures the detector.
type DetectorOption func(*Detector)

// WithDetectorHTTPClient sets a custom HTTP client. The client must not
// follow redirects; NewDetector's default already refuses them.
func WithDetectorHTTPClient(c *http.Client) DetectorOption {
	return func(d *Detector) {
		d.httpClient = c
	}
}

// WithPathTenancyDomains sets the hosts that use path-based organization
// addressing.
func WithPathTenancyDomains(domains ...string) DetectorOption {
	return func(d *Detector) {
		d.pathTenancyDomains = domains
	}
}

// NewDetector creates a detector over the given base domains and tenant
// cache.
func NewDetector(cache *tenant.Cache, baseDomains []string, opts ...DetectorOption) *Detector {
	d := &Detector{
		baseDomains: baseDomains,
		cache:       cache,
		httpClient: &http.Client{
			Timeout: probeTimeout,
			// A redirect to a sign-in page means anonymous access was
			// attempted, which is not a usable signal; inspect the first
			// response instead of following it.
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Detect classifies the target. It returns (true, tenant) when the host is
// served by a recognized provider and its protecting tenant is known;
// uuid.Nil as the tenant means consumer identity, which is itself a
// positive answer. (false, uuid.Nil) means unrecognized or undetermined.
//
// Detection failures are never cached, so a transient outage does not
// permanently mark a host as tenant-less.
func (d *Detector) Detect(ctx context.Context, t *target.Target) (bool, uuid.UUID) {
	if !t.IsHTTP() {
		return false, uuid.Nil
	}

	matched := false
	for _, domain := range d.baseDomains {
		if t.HasHostSuffix(domain) {
			matched = true
			break
		}
	}
	if !matched {
		return false, uuid.Nil
	}

	key := d.TenantLookupKey(t)

	if id, ok, err := d.cache.Read(key); err == nil && ok {
		logging.Debug("Detector", "tenant cache hit for %s", key)
		return true, id
	}

	type probeResult struct {
		id uuid.UUID
		ok bool
	}

	v, _, _ := d.group.Do(key, func() (interface{}, error) {
		id, ok := d.probe(ctx, key)
		return probeResult{id: id, ok: ok}, nil
	})

	res := v.(probeResult)
	if !res.ok {
		return false, uuid.Nil
	}

	if err := d.cache.Write(key, res.id); err != nil {
		// A cache write failure costs a probe next time, nothing more.
		logging.Warn("Detector", "failed to cache tenant for %s: %v", key, err)
	}
	return true, res.id
}

// Invalidate removes the cached tenant mapping for the target. Called when
// credentials are deleted: a tenant change is a plausible root cause of
// authentication failure.
func (d *Detector) Invalidate(t *target.Target) error {
	return d.cache.Delete(d.TenantLookupKey(t))
}

// TenantLookupKey produces the canonical cache key for a target.
//
// The key is scheme://host, stripped of credentials and query. For hosts
// with path-based organization addressing the first path segment is
// appended. A URL that embeds a username but carries no path folds the
// username in as a path segment instead; both provider families use this
// single rule.
func (d *Detector) TenantLookupKey(t *target.Target) string {
	u := t.QueryURL()
	key := strings.ToLower(u.Scheme + "://" + u.Host)

	if d.usesPathTenancy(t) {
		if seg := firstPathSegment(u); seg != "" {
			return key + "/" + strings.ToLower(seg)
		}
	}
	if firstPathSegment(u) == "" {
		if name, ok := t.Username(); ok {
			return key + "/" + strings.ToLower(name)
		}
	}
	return key
}

func (d *Detector) usesPathTenancy(t *target.Target) bool {
	for _, domain := range d.pathTenancyDomains {
		if t.HasHostSuffix(domain) {
			return true
		}
	}
	return false
}

func firstPathSegment(u *url.URL) string {
	trimmed := strings.Trim(u.Path, "/")
	if trimmed == "" {
		return ""
	}
	seg, _, _ := strings.Cut(trimmed, "/")
	return seg
}

// probe issues the network request and inspects response headers for the
// tenant identity.
func (d *Detector) probe(ctx context.Context, lookupURL string) (uuid.UUID, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, lookupURL, nil)
	if err != nil {
		logging.Debug("Detector", "failed to build probe request for %s: %v", lookupURL, err)
		return uuid.Nil, false
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		// Transport failure is indeterminate: report not-detected and
		// let a later call retry.
		logging.Debug("Detector", "tenant probe for %s failed: %v", lookupURL, err)
		return uuid.Nil, false
	}
	defer resp.Body.Close()

	if raw := resp.Header.Get(ResourceTenantHeader); raw != "" {
		if id, err := uuid.Parse(raw); err == nil {
			logging.Debug("Detector", "resource tenant header yielded tenant for %s", lookupURL)
			return id, true
		}
	}

	if id, ok := challengeTenant(resp.Header.Get("WWW-Authenticate")); ok {
		logging.Debug("Detector", "authenticate challenge yielded tenant for %s", lookupURL)
		return id, true
	}

	logging.Debug("Detector", "no tenant signal in probe response for %s (status %d)", lookupURL, resp.StatusCode)
	return uuid.Nil, false
}

// challengeTenant extracts the tenant GUID from a WWW-Authenticate Bearer
// challenge whose authorization URI ends in the tenant segment.
func challengeTenant(header string) (uuid.UUID, bool) {
	if header == "" {
		return uuid.Nil, false
	}
	m := authorizationURIPattern.FindStringSubmatch(header)
	if m == nil {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(path.Base(m[1]))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
