package auth

import "credhelper/internal/target"

// Profile describes a provider's storage layout and flow behavior. The
// orchestrator consults it instead of branching on provider identity.
type Profile struct {
	// Name labels the provider in logs.
	Name string

	// Namespace prefixes every storage key so providers never collide.
	Namespace string

	// RefreshKeySuffix, appended to the credential key, addresses the
	// stored refresh token. Empty means the provider has no refresh
	// tokens.
	RefreshKeySuffix string

	// AcceptsManualCredentials reports whether user-supplied credentials
	// may be stored. Federated providers mint their own tokens and refuse
	// manual ones.
	AcceptsManualCredentials bool

	// UsesBasicFirst makes interactive logon try username/password before
	// the browser flow.
	UsesBasicFirst bool

	// RequireCompactToken requests size-reduced tokens, needed where the
	// credential travels in constrained headers.
	RequireCompactToken bool

	// ValidateStoredCredentials makes get check a stored credential
	// against the service before handing it out. Off, stored credentials
	// are returned as-is and bad ones surface as Git failures.
	ValidateStoredCredentials bool
}

// CredentialKey is the storage key for the target's credential.
func (p Profile) CredentialKey(t *target.Target) string {
	return t.StorageKey(p.Namespace)
}

// RefreshKey is the storage key for the target's refresh token, or ""
// when the provider has none.
func (p Profile) RefreshKey(t *target.Target) string {
	if p.RefreshKeySuffix == "" {
		return ""
	}
	return p.CredentialKey(t) + p.RefreshKeySuffix
}
