package auth

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"credhelper/internal/cred"
	"credhelper/internal/target"
	"credhelper/pkg/logging"
)

// Generic serves hosts no provider recognizes: plain username/password
// authentication checked directly against the remote. It implements the
// exchanger and basic-authenticator roles; there is no OAuth flow, so
// NoOAuth fills the acquirer slot.
type Generic struct {
	httpClient *http.Client
}

// GenericOption configures the generic provider.
type GenericOption func(*Generic)

// WithGenericHTTPClient sets the HTTP client.
func WithGenericHTTPClient(c *http.Client) GenericOption {
	return func(g *Generic) {
		g.httpClient = c
	}
}

// NewGeneric creates a generic basic-auth provider.
func NewGeneric(opts ...GenericOption) *Generic {
	g := &Generic{
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

var (
	_ BasicAuthenticator = (*Generic)(nil)
	_ TokenExchanger     = (*Generic)(nil)
)

// Authenticate probes the remote with the supplied credential. Success
// wraps the password as the token so the shared storage path applies.
func (g *Generic) Authenticate(ctx context.Context, t *target.Target, c cred.Credential) cred.Result {
	if !g.ValidateCredential(ctx, t, c) {
		return cred.Failure()
	}
	tok := &cred.Token{Value: c.Password, Kind: cred.KindPersonal}
	return cred.Success(tok, nil, c.Username)
}

// GeneratePersonalAccessToken has nothing to exchange against; the token
// is already in its final form.
func (g *Generic) GeneratePersonalAccessToken(ctx context.Context, t *target.Target, access *cred.Token, requireCompact bool) (*cred.Token, error) {
	if access == nil || access.Value == "" {
		return nil, fmt.Errorf("no token to store")
	}
	return &cred.Token{Value: access.Value, Kind: cred.KindPersonal}, nil
}

// ValidateCredential issues an authenticated request to the target itself.
// The usual optimistic policy applies: only a definitive client rejection
// invalidates.
func (g *Generic) ValidateCredential(ctx context.Context, t *target.Target, c cred.Credential) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.String(), nil)
	if err != nil {
		return true
	}
	req.SetBasicAuth(c.Username, c.Password)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		logging.Debug(subsystem, "validation of %s indeterminate: %v", t, err)
		return true
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return false
	}
	return true
}

// NoOAuth is the acquirer for providers without an OAuth flow.
type NoOAuth struct{}

var _ OAuthAcquirer = NoOAuth{}

func (NoOAuth) Interactive(ctx context.Context, t *target.Target, _ uuid.UUID) (*TokenPair, error) {
	return nil, fmt.Errorf("%s supports no browser sign-in", t.Hostname())
}

func (NoOAuth) NonInteractive(ctx context.Context, t *target.Target, _ uuid.UUID) (*TokenPair, error) {
	return nil, ErrInteractionRequired
}

func (NoOAuth) Refresh(ctx context.Context, t *target.Target, _ uuid.UUID, _ *cred.Token) (*TokenPair, error) {
	return nil, fmt.Errorf("%s issues no refresh tokens", t.Hostname())
}
