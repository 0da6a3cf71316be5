package azure

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"

	"credhelper/internal/auth"
	"credhelper/internal/cred"
	"credhelper/internal/target"
	"credhelper/pkg/logging"
	"credhelper/pkg/oauth"
)

const (
	// DefaultClientID is the Visual Studio public client registration used
	// when no client is configured.
	DefaultClientID = "872cd9fa-d31f-45e0-82a2-cb9d20cdd37b"

	// DefaultResource is the Azure DevOps service principal. Tokens are
	// requested for its default scope.
	DefaultResource = "499b84ac-1321-427f-aa17-267ca6975798"

	// interactiveTimeout bounds the browser flow: a user who walked away
	// should not leave the helper hanging forever.
	interactiveTimeout = 5 * time.Minute
)

// Authority acquires Azure Active Directory tokens for a directory tenant
// using the authorization code flow with PKCE.
type Authority struct {
	clientID     string
	resource     string
	callbackPort int
	httpClient   *http.Client

	// openBrowser is swapped in tests to avoid launching a real browser.
	openBrowser func(url string) error
}

// AuthorityOption configures the authority.
type AuthorityOption func(*Authority)

// WithClientID overrides the OAuth client registration.
func WithClientID(id string) AuthorityOption {
	return func(a *Authority) {
		a.clientID = id
	}
}

// WithResource overrides the resource tokens are requested for.
func WithResource(resource string) AuthorityOption {
	return func(a *Authority) {
		a.resource = resource
	}
}

// WithCallbackPort pins the loopback redirect port. Zero picks a free one.
func WithCallbackPort(port int) AuthorityOption {
	return func(a *Authority) {
		a.callbackPort = port
	}
}

// WithAuthorityHTTPClient sets the HTTP client used for token endpoint
// calls.
func WithAuthorityHTTPClient(c *http.Client) AuthorityOption {
	return func(a *Authority) {
		a.httpClient = c
	}
}

// WithBrowserOpener replaces the browser launcher.
func WithBrowserOpener(open func(url string) error) AuthorityOption {
	return func(a *Authority) {
		a.openBrowser = open
	}
}

// NewAuthority creates an authority with the default Visual Studio client
// and Azure DevOps resource.
func NewAuthority(opts ...AuthorityOption) *Authority {
	a := &Authority{
		clientID:    DefaultClientID,
		resource:    DefaultResource,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		openBrowser: oauth.OpenBrowser,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

var _ auth.OAuthAcquirer = (*Authority)(nil)

// config builds the oauth2 configuration for a tenant. uuid.Nil maps to
// the shared "common" endpoint used for consumer identities.
func (a *Authority) config(tenantID uuid.UUID, redirectURL string) *oauth2.Config {
	tenant := "common"
	if tenantID != uuid.Nil {
		tenant = tenantID.String()
	}
	return &oauth2.Config{
		ClientID:    a.clientID,
		Endpoint:    microsoft.AzureADEndpoint(tenant),
		RedirectURL: redirectURL,
		Scopes:      []string{a.resource + "/.default", "offline_access"},
	}
}

// Interactive acquires tokens by sending the user through a browser
// authorization flow with a loopback redirect.
func (a *Authority) Interactive(ctx context.Context, t *target.Target, tenantID uuid.UUID) (*auth.TokenPair, error) {
	ctx, cancel := context.WithTimeout(ctx, interactiveTimeout)
	defer cancel()

	pkce, err := oauth.GeneratePKCE()
	if err != nil {
		return nil, fmt.Errorf("failed to generate PKCE challenge: %w", err)
	}
	state, err := oauth.GenerateState()
	if err != nil {
		return nil, fmt.Errorf("failed to generate state: %w", err)
	}

	server := oauth.NewCallbackServer(a.callbackPort)
	redirectURI, err := server.Start(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to start callback server: %w", err)
	}
	defer server.Stop()

	cfg := a.config(tenantID, redirectURI)
	authURL := cfg.AuthCodeURL(state,
		oauth2.SetAuthURLParam("code_challenge", pkce.CodeChallenge),
		oauth2.SetAuthURLParam("code_challenge_method", pkce.CodeChallengeMethod),
	)

	logging.Info("Authority", "opening browser for sign-in to %s", t)
	if err := a.openBrowser(authURL); err != nil {
		// The flow can still complete if the user opens the URL manually.
		logging.Warn("Authority", "failed to open browser: %v", err)
		fmt.Fprintf(os.Stderr, "Open this URL to sign in:\n%s\n", authURL)
	}

	result, err := server.WaitForCallback(ctx)
	if err != nil {
		return nil, fmt.Errorf("authorization callback not received: %w", err)
	}
	if result.IsError() {
		return nil, fmt.Errorf("authorization failed: %s (%s)", result.Error, result.ErrorDescription)
	}
	if result.State != state {
		return nil, fmt.Errorf("authorization state mismatch")
	}

	tok, err := cfg.Exchange(a.tokenContext(ctx), result.Code,
		oauth2.SetAuthURLParam("code_verifier", pkce.CodeVerifier),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}
	return a.pair(tok, tenantID), nil
}

// NonInteractive attempts silent acquisition. No platform broker is
// integrated, so it always defers to the interactive flow; refresh tokens
// are redeemed separately through Refresh.
func (a *Authority) NonInteractive(ctx context.Context, t *target.Target, tenantID uuid.UUID) (*auth.TokenPair, error) {
	return nil, auth.ErrInteractionRequired
}

// Refresh redeems a refresh token for a new token pair.
func (a *Authority) Refresh(ctx context.Context, t *target.Target, tenantID uuid.UUID, refresh *cred.Token) (*auth.TokenPair, error) {
	if refresh == nil || refresh.Kind != cred.KindRefresh {
		return nil, fmt.Errorf("refresh requires a refresh token")
	}

	cfg := a.config(tenantID, "")
	src := cfg.TokenSource(a.tokenContext(ctx), &oauth2.Token{RefreshToken: refresh.Value})
	tok, err := src.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to redeem refresh token: %w", err)
	}
	return a.pair(tok, tenantID), nil
}

// tokenContext routes oauth2 token endpoint calls through our HTTP client.
func (a *Authority) tokenContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, a.httpClient)
}

func (a *Authority) pair(tok *oauth2.Token, tenantID uuid.UUID) *auth.TokenPair {
	p := &auth.TokenPair{
		Access: &cred.Token{Value: tok.AccessToken, Kind: cred.KindAccess, TenantID: tenantID},
	}
	if tok.RefreshToken != "" {
		p.Refresh = &cred.Token{Value: tok.RefreshToken, Kind: cred.KindRefresh, TenantID: tenantID}
	}
	return p
}
