// Package oauth provides the OAuth 2.0 primitives shared by the identity
// authorities: PKCE generation, state parameters, the temporary loopback
// callback server, and the system browser launcher.
//
// The package is deliberately provider-agnostic. The Azure and GitHub
// authority clients compose these pieces into their respective
// authorization-code flows; the callback server lives for exactly one
// authorization round trip and then shuts itself down.
package oauth
