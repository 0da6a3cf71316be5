package auth

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"credhelper/internal/cred"
	"credhelper/internal/target"
)

// ErrInteractionRequired is returned by non-interactive acquisition when no
// silent path can produce a token and the caller must fall back to an
// interactive flow.
var ErrInteractionRequired = errors.New("user interaction required to acquire a token")

// TokenPair bundles the outcome of an OAuth acquisition. Access is always
// set on success; Refresh is nil when the authority issued no refresh
// token.
type TokenPair struct {
	Access  *cred.Token
	Refresh *cred.Token
}

// OAuthAcquirer acquires OAuth tokens from an identity authority.
type OAuthAcquirer interface {
	// Interactive runs a user-visible flow (browser redirect with a
	// loopback listener) and blocks until it completes or ctx is done.
	Interactive(ctx context.Context, t *target.Target, tenantID uuid.UUID) (*TokenPair, error)

	// NonInteractive attempts silent acquisition. It returns
	// ErrInteractionRequired when no silent path exists.
	NonInteractive(ctx context.Context, t *target.Target, tenantID uuid.UUID) (*TokenPair, error)

	// Refresh redeems a refresh token for a fresh pair.
	Refresh(ctx context.Context, t *target.Target, tenantID uuid.UUID, refresh *cred.Token) (*TokenPair, error)
}

// TokenExchanger converts access tokens into storable credentials and
// validates stored ones against the service.
type TokenExchanger interface {
	// GeneratePersonalAccessToken exchanges an access token for a
	// service-issued personal access token scoped to the target. A
	// compact token omits optional claims to fit constrained headers.
	GeneratePersonalAccessToken(ctx context.Context, t *target.Target, access *cred.Token, requireCompact bool) (*cred.Token, error)

	// ValidateCredential reports whether the stored credential is still
	// accepted by the service. Indeterminate outcomes (transport failure,
	// server error) count as valid; only a definitive rejection does not.
	ValidateCredential(ctx context.Context, t *target.Target, c cred.Credential) bool
}

// BasicAuthenticator performs username/password authentication for
// providers that accept it, reporting two-factor challenges distinctly so
// the caller can escalate.
type BasicAuthenticator interface {
	Authenticate(ctx context.Context, t *target.Target, c cred.Credential) cred.Result
}

// Prompter gathers interactive input from the user. Implementations write
// prompts to stderr; stdout belongs to the credential protocol.
type Prompter interface {
	// BasicCredentials asks for a username and password for the target.
	// seedUsername, when non-empty, pre-fills the username prompt.
	BasicCredentials(t *target.Target, seedUsername string) (cred.Credential, error)

	// TwoFactorEscalation informs the user that basic authentication was
	// challenged and asks whether to continue with an OAuth flow.
	TwoFactorEscalation(t *target.Target) (bool, error)
}
