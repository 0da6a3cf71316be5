// Package vsts talks to the Azure DevOps service APIs: resolving the
// identity service endpoint, minting personal access tokens, and
// validating stored credentials.
package vsts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"strings"
	"time"

	"credhelper/internal/auth"
	"credhelper/internal/cred"
	"credhelper/internal/scope"
	"credhelper/internal/target"
	"credhelper/pkg/logging"
)

const (
	// LocationServiceID identifies the SPS location service definition
	// used to discover the identity service endpoint.
	LocationServiceID = "951917ac-a960-4999-8464-e3f0aa25b381"

	// anonymousMarker appears in connection data served to an
	// unauthenticated caller. Its presence means the credential was
	// silently ignored rather than accepted.
	anonymousMarker = `"Account":"Anonymous"`

	requestTimeout = 30 * time.Second
)

// ErrLocationService reports that the identity service endpoint could not
// be discovered. Unlike most acquisition failures this one is surfaced to
// the caller: without the endpoint no token operation can proceed.
var ErrLocationService = errors.New("failed to locate the identity service")

// Service responses are scanned for the interesting field instead of being
// bound to a struct: the payloads are large, versioned, and only one field
// matters.
var (
	tokenFieldPattern    = regexp.MustCompile(`"token"\s*:\s*"([^"]+)"`)
	locationFieldPattern = regexp.MustCompile(`"location"\s*:\s*"([^"]+)"`)
)

// Exchange converts Azure AD access tokens into Azure DevOps personal
// access tokens and validates credentials against the service.
type Exchange struct {
	httpClient    *http.Client
	tokenScope    scope.Vsts
	tokenDuration time.Duration

	// displayNameHost appears in the generated token's display name so
	// the user can recognize it in the service UI. Defaults to the local
	// hostname.
	displayNameHost string
}

// ExchangeOption configures the exchange client.
type ExchangeOption func(*Exchange)

// WithExchangeHTTPClient sets the HTTP client.
func WithExchangeHTTPClient(c *http.Client) ExchangeOption {
	return func(e *Exchange) {
		e.httpClient = c
	}
}

// WithTokenScope sets the scope requested for generated tokens.
func WithTokenScope(s scope.Vsts) ExchangeOption {
	return func(e *Exchange) {
		e.tokenScope = s
	}
}

// WithTokenDuration bounds the lifetime of generated tokens. Zero leaves
// the lifetime to the service default.
func WithTokenDuration(d time.Duration) ExchangeOption {
	return func(e *Exchange) {
		e.tokenDuration = d
	}
}

// NewExchange creates an exchange client requesting code_write scope by
// default, the minimum a Git remote needs for push.
func NewExchange(opts ...ExchangeOption) *Exchange {
	host, _ := os.Hostname()
	e := &Exchange{
		httpClient:      &http.Client{Timeout: requestTimeout},
		tokenScope:      scope.VstsCodeWrite,
		displayNameHost: host,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var _ auth.TokenExchanger = (*Exchange)(nil)

// GeneratePersonalAccessToken exchanges an access token for a personal
// access token scoped to the target. ErrLocationService is returned when
// endpoint discovery fails; any other failure yields a wrapped error.
func (e *Exchange) GeneratePersonalAccessToken(ctx context.Context, t *target.Target, access *cred.Token, requireCompact bool) (*cred.Token, error) {
	if access == nil || (access.Kind != cred.KindAccess && access.Kind != cred.KindFederated) {
		return nil, fmt.Errorf("personal access token generation requires an access token")
	}

	identityURI, err := e.identityServiceURI(ctx, t, access)
	if err != nil {
		return nil, err
	}

	requestURL := identityURI + "/_apis/token/sessiontokens?api-version=1.0"
	if requireCompact {
		requestURL += "&tokentype=compact"
	}

	body := map[string]string{
		"scope":       e.tokenScope.String(),
		"displayName": fmt.Sprintf("Git: %s on %s", t, e.displayNameHost),
	}
	if e.tokenDuration > 0 {
		body["validTo"] = time.Now().UTC().Add(e.tokenDuration).Format(time.RFC3339)
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, requestURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+access.Value)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("token request rejected with status %d", resp.StatusCode)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}

	m := tokenFieldPattern.FindSubmatch(respBody)
	if m == nil {
		return nil, fmt.Errorf("token response contained no token")
	}

	logging.Info("Authority", "generated personal access token for %s", t)
	pat := &cred.Token{
		Value:    string(m[1]),
		Kind:     cred.KindPersonal,
		TenantID: access.TenantID,
	}
	return pat, nil
}

// identityServiceURI asks the target's location service where the identity
// service lives. Tokens are minted against the identity service, which is
// frequently a different host than the repository.
func (e *Exchange) identityServiceURI(ctx context.Context, t *target.Target, access *cred.Token) (string, error) {
	requestURL := serviceRoot(t) + "/_apis/servicedefinitions/locationservice2/" + LocationServiceID + "?api-version=1.0"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrLocationService, err)
	}
	req.Header.Set("Authorization", "Bearer "+access.Value)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrLocationService, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: status %d", ErrLocationService, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrLocationService, err)
	}

	m := locationFieldPattern.FindSubmatch(body)
	if m == nil {
		return "", fmt.Errorf("%w: response contained no location", ErrLocationService)
	}
	return strings.TrimRight(string(m[1]), "/"), nil
}

// ValidateCredential checks a stored credential against the connection
// data endpoint.
//
// Validation is optimistic: a transport failure or server error keeps the
// credential, because discarding a good credential during an outage forces
// a needless interactive round trip. Only a definitive client rejection or
// an anonymous fallback invalidates it.
func (e *Exchange) ValidateCredential(ctx context.Context, t *target.Target, c cred.Credential) bool {
	return e.validate(ctx, t, func(req *http.Request) {
		req.SetBasicAuth(c.Username, c.Password)
	})
}

// ValidateToken checks a bearer token the same way ValidateCredential
// checks a basic credential.
func (e *Exchange) ValidateToken(ctx context.Context, t *target.Target, token *cred.Token) bool {
	if token == nil || token.Value == "" {
		return false
	}
	return e.validate(ctx, t, func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+token.Value)
	})
}

func (e *Exchange) validate(ctx context.Context, t *target.Target, authorize func(*http.Request)) bool {
	requestURL := serviceRoot(t) + "/_apis/connectiondata"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		logging.Debug("Authority", "failed to build validation request for %s: %v", t, err)
		return true
	}
	authorize(req)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		logging.Debug("Authority", "validation of %s indeterminate: %v", t, err)
		return true
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode <= 299:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return true
		}
		if bytes.Contains(body, []byte(anonymousMarker)) {
			logging.Debug("Authority", "credential for %s fell back to anonymous access", t)
			return false
		}
		return true
	case resp.StatusCode >= 500:
		logging.Debug("Authority", "validation of %s indeterminate: status %d", t, resp.StatusCode)
		return true
	default:
		logging.Debug("Authority", "credential for %s rejected with status %d", t, resp.StatusCode)
		return false
	}
}

// serviceRoot reduces a repository URL to the organization root the
// service APIs hang off.
func serviceRoot(t *target.Target) string {
	u := t.QueryURL()
	root := u.Scheme + "://" + u.Host
	// dev.azure.com addresses organizations by the first path segment.
	if strings.EqualFold(u.Hostname(), "dev.azure.com") {
		trimmed := strings.Trim(u.Path, "/")
		if seg, _, _ := strings.Cut(trimmed, "/"); seg != "" {
			root += "/" + seg
		}
	}
	return root
}
