package cred

import (
	"github.com/google/uuid"
)

// TokenKind classifies a token by the protocol that produced it.
type TokenKind uint32

const (
	// KindUnknown is the zero value and never a legal persisted kind.
	KindUnknown TokenKind = iota

	// KindAccess is a short-lived access token from an OAuth flow.
	KindAccess

	// KindRefresh is a refresh token usable for silent re-acquisition.
	KindRefresh

	// KindPersonal is a long-lived, scope-restricted personal access token.
	KindPersonal

	// KindFederated is a token acquired through a federated (integrated)
	// identity rather than an interactive flow.
	KindFederated
)

// String returns the human-readable kind description. For KindPersonal this
// doubles as the username tag of the credential form.
func (k TokenKind) String() string {
	switch k {
	case KindAccess:
		return "Access Token"
	case KindRefresh:
		return "Refresh Token"
	case KindPersonal:
		return "Personal Access Token"
	case KindFederated:
		return "Federated Authentication Token"
	default:
		return "Unknown"
	}
}

// Token is an opaque secret issued by an identity authority.
//
// The value and kind are immutable. TargetIdentity is populated lazily
// after a follow-up identity-resolution call and is the only mutable field.
type Token struct {
	// Value is the raw token material. Never log it; use Redacted.
	Value string

	// Kind classifies the token.
	Kind TokenKind

	// TargetIdentity is the identity the token was issued for, when known.
	TargetIdentity uuid.UUID

	// TenantID is the directory tenant that issued the token, when known.
	// uuid.Nil means a consumer (non-enterprise) identity.
	TenantID uuid.UUID
}

// NewToken creates a token of the given kind.
func NewToken(value string, kind TokenKind) *Token {
	return &Token{Value: value, Kind: kind}
}

// Credential converts a personal access token to its credential form.
// The conversion is lossy and one-directional: the username becomes the
// kind description and the secret becomes the token value.
//
// Only KindPersonal tokens have a credential form; any other kind
// returns false.
func (t *Token) Credential() (Credential, bool) {
	if t == nil || t.Kind != KindPersonal {
		return Credential{}, false
	}
	return Credential{Username: KindPersonal.String(), Password: t.Value}, true
}

// Redacted returns the token value wrapped so it cannot leak into logs.
func (t *Token) Redacted() Redacted {
	if t == nil {
		return Redacted{}
	}
	return NewRedacted(t.Value)
}

// String implements fmt.Stringer without exposing the token value.
func (t *Token) String() string {
	if t == nil {
		return "<nil>"
	}
	return t.Kind.String() + " [REDACTED]"
}
