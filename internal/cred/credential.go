// Package cred defines the credential and token value types exchanged
// between the secret store, the identity authorities, and the
// authentication orchestrators.
package cred

// Credential is an immutable username/secret pair.
//
// It represents either a literal username/password combination or the
// wire-compatible form of a bearer token, where Username carries a type
// tag and Password carries the token value.
type Credential struct {
	Username string
	Password string
}

// NewCredential creates a credential from a username and password.
func NewCredential(username, password string) Credential {
	return Credential{Username: username, Password: password}
}

// IsZero reports whether both fields are empty.
func (c Credential) IsZero() bool {
	return c.Username == "" && c.Password == ""
}

// Equal reports case-sensitive exact equality on both fields.
func (c Credential) Equal(o Credential) bool {
	return c.Username == o.Username && c.Password == o.Password
}

// String implements fmt.Stringer without exposing the password.
func (c Credential) String() string {
	return c.Username + ":[REDACTED]"
}
