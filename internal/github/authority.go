// Package github implements credential acquisition against GitHub and
// GitHub Enterprise: basic authentication with two-factor detection, the
// OAuth browser flow it escalates to, and credential validation.
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	githubendpoint "golang.org/x/oauth2/github"

	"credhelper/internal/auth"
	"credhelper/internal/cred"
	"credhelper/internal/scope"
	"credhelper/internal/target"
	"credhelper/pkg/logging"
	"credhelper/pkg/oauth"
)

const (
	// DotComHost is the hosted service; everything else is treated as an
	// enterprise installation with the API under /api/v3.
	DotComHost = "github.com"

	// otpHeader signals a two-factor challenge on an authentication
	// response.
	otpHeader = "X-Github-Otp"

	acceptHeader   = "application/vnd.github.v3+json"
	requestTimeout = 30 * time.Second

	interactiveTimeout = 5 * time.Minute
)

type authorizationResponse struct {
	Token string `json:"token"`
}

type userResponse struct {
	Login string `json:"login"`
}

// Authority performs GitHub authentication flows.
type Authority struct {
	clientID     string
	clientSecret string
	tokenScope   scope.Github
	callbackPort int
	httpClient   *http.Client
	openBrowser  func(url string) error

	// noteHost labels created authorizations in the account settings UI.
	noteHost string
}

// AuthorityOption configures the authority.
type AuthorityOption func(*Authority)

// WithOAuthClient sets the OAuth application credentials used for the
// browser flow. GitHub requires a client secret even for native apps.
func WithOAuthClient(id, secret string) AuthorityOption {
	return func(a *Authority) {
		a.clientID = id
		a.clientSecret = secret
	}
}

// WithTokenScope sets the scope requested for authorizations.
func WithTokenScope(s scope.Github) AuthorityOption {
	return func(a *Authority) {
		a.tokenScope = s
	}
}

// WithCallbackPort pins the loopback redirect port.
func WithCallbackPort(port int) AuthorityOption {
	return func(a *Authority) {
		a.callbackPort = port
	}
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(c *http.Client) AuthorityOption {
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

// NewAuthority creates an authority requesting repo and gist scope, the
// set a Git remote plus common tooling needs.
func NewAuthority(opts ...AuthorityOption) *Authority {
	host, _ := os.Hostname()
	a := &Authority{
		tokenScope:  scope.GithubRepo.Union(scope.GithubGist),
		httpClient:  &http.Client{Timeout: requestTimeout},
		openBrowser: oauth.OpenBrowser,
		noteHost:    host,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

var (
	_ auth.BasicAuthenticator = (*Authority)(nil)
	_ auth.TokenExchanger     = (*Authority)(nil)
)

// apiRoot returns the REST API base for the target's host.
func apiRoot(t *target.Target) string {
	host := strings.ToLower(t.Hostname())
	if host == DotComHost || strings.HasSuffix(host, "."+DotComHost) {
		return "https://api.github.com"
	}
	return t.Scheme() + "://" + t.Host() + "/api/v3"
}

// Authenticate attempts basic authentication by creating a personal
// authorization. A two-factor challenge is reported as its own outcome so
// the caller can escalate to the OAuth flow instead of treating it as a
// bad password.
func (a *Authority) Authenticate(ctx context.Context, t *target.Target, c cred.Credential) cred.Result {
	payload, err := json.Marshal(map[string]interface{}{
		"scopes": a.tokenScope.List(),
		"note":   fmt.Sprintf("git: %s on %s", t, a.noteHost),
	})
	if err != nil {
		logging.Error("Authority", err, "failed to encode authorization request")
		return cred.Failure()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiRoot(t)+"/authorizations", bytes.NewReader(payload))
	if err != nil {
		logging.Error("Authority", err, "failed to build authorization request")
		return cred.Failure()
	}
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.Username, c.Password)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		logging.Debug("Authority", "authorization request for %s failed: %v", t, err)
		return cred.Failure()
	}
	defer resp.Body.Close()

	if resp.Header.Get(otpHeader) != "" {
		logging.Info("Authority", "two-factor authentication required for %s", t)
		return cred.TwoFactor()
	}

	switch resp.StatusCode {
	case http.StatusCreated, http.StatusOK:
		var ar authorizationResponse
		if err := json.NewDecoder(resp.Body).Decode(&ar); err != nil || ar.Token == "" {
			logging.Debug("Authority", "authorization response for %s carried no token", t)
			return cred.Failure()
		}
		tok := &cred.Token{Value: ar.Token, Kind: cred.KindPersonal}
		return cred.Success(tok, nil, c.Username)
	default:
		logging.Debug("Authority", "authorization for %s rejected with status %d", t, resp.StatusCode)
		return cred.Failure()
	}
}

// InteractiveOAuth runs the browser authorization flow and returns the
// resulting access token. The token doubles as a password, so it is
// classified as a personal access token.
func (a *Authority) InteractiveOAuth(ctx context.Context, t *target.Target) (*auth.TokenPair, error) {
	if a.clientID == "" {
		return nil, fmt.Errorf("no OAuth client configured for %s", t.Hostname())
	}

	ctx, cancel := context.WithTimeout(ctx, interactiveTimeout)
	defer cancel()

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

	cfg := a.oauthConfig(t, redirectURI)
	authURL := cfg.AuthCodeURL(state)

	logging.Info("Authority", "opening browser for sign-in to %s", t)
	if err := a.openBrowser(authURL); err != nil {
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

	exchangeCtx := context.WithValue(ctx, oauth2.HTTPClient, a.httpClient)
	tok, err := cfg.Exchange(exchangeCtx, result.Code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}

	return &auth.TokenPair{
		Access: &cred.Token{Value: tok.AccessToken, Kind: cred.KindPersonal},
	}, nil
}

func (a *Authority) oauthConfig(t *target.Target, redirectURL string) *oauth2.Config {
	endpoint := githubendpoint.Endpoint
	if host := strings.ToLower(t.Hostname()); host != DotComHost && !strings.HasSuffix(host, "."+DotComHost) {
		base := t.Scheme() + "://" + t.Host()
		endpoint = oauth2.Endpoint{
			AuthURL:  base + "/login/oauth/authorize",
			TokenURL: base + "/login/oauth/access_token",
		}
	}
	return &oauth2.Config{
		ClientID:     a.clientID,
		ClientSecret: a.clientSecret,
		Endpoint:     endpoint,
		RedirectURL:  redirectURL,
		Scopes:       a.tokenScope.List(),
	}
}

// GeneratePersonalAccessToken adapts the access token itself: GitHub OAuth
// tokens are long-lived and accepted wherever a password is, so no
// separate exchange exists. requireCompact is meaningless here.
func (a *Authority) GeneratePersonalAccessToken(ctx context.Context, t *target.Target, access *cred.Token, requireCompact bool) (*cred.Token, error) {
	if access == nil || access.Value == "" {
		return nil, fmt.Errorf("personal access token generation requires a token")
	}
	return &cred.Token{Value: access.Value, Kind: cred.KindPersonal, TenantID: access.TenantID}, nil
}

// ValidateCredential checks the credential against the user endpoint.
// Indeterminate outcomes count as valid, same policy as the other
// providers.
func (a *Authority) ValidateCredential(ctx context.Context, t *target.Target, c cred.Credential) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiRoot(t)+"/user", nil)
	if err != nil {
		logging.Debug("Authority", "failed to build validation request for %s: %v", t, err)
		return true
	}
	req.Header.Set("Accept", acceptHeader)
	// Tokens validate as the basic password with an arbitrary username.
	req.SetBasicAuth(c.Username, c.Password)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		logging.Debug("Authority", "validation of %s indeterminate: %v", t, err)
		return true
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode <= 299:
		return true
	case resp.StatusCode >= 500:
		logging.Debug("Authority", "validation of %s indeterminate: status %d", t, resp.StatusCode)
		return true
	default:
		logging.Debug("Authority", "credential for %s rejected with status %d", t, resp.StatusCode)
		return false
	}
}

// ResolveLogin fetches the login name the token authenticates as, used to
// fill the username side of a stored credential.
func (a *Authority) ResolveLogin(ctx context.Context, t *target.Target, token *cred.Token) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiRoot(t)+"/user", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("Authorization", "Bearer "+token.Value)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("user lookup rejected with status %d", resp.StatusCode)
	}
	var ur userResponse
	if err := json.NewDecoder(resp.Body).Decode(&ur); err != nil {
		return "", err
	}
	return ur.Login, nil
}

// Acquirer adapts the authority to the OAuth acquisition interface used by
// the orchestrator. GitHub has no tenant concept and no refresh tokens, so
// only the interactive path is meaningful.
type Acquirer struct {
	a *Authority
}

// NewAcquirer wraps the authority.
func NewAcquirer(a *Authority) *Acquirer {
	return &Acquirer{a: a}
}

var _ auth.OAuthAcquirer = (*Acquirer)(nil)

func (q *Acquirer) Interactive(ctx context.Context, t *target.Target, _ uuid.UUID) (*auth.TokenPair, error) {
	return q.a.InteractiveOAuth(ctx, t)
}

func (q *Acquirer) NonInteractive(ctx context.Context, t *target.Target, _ uuid.UUID) (*auth.TokenPair, error) {
	return nil, auth.ErrInteractionRequired
}

func (q *Acquirer) Refresh(ctx context.Context, t *target.Target, _ uuid.UUID, _ *cred.Token) (*auth.TokenPair, error) {
	return nil, auth.ErrInteractionRequired
}
