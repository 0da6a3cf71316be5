// Package auth contains the provider-neutral credential orchestration
// layer.
//
// The Orchestrator implements the lifecycle operations (get, set, delete,
// interactive logon, validate) once; provider packages plug in through the
// OAuthAcquirer, TokenExchanger, and BasicAuthenticator interfaces plus a
// Profile describing the provider's storage and flow characteristics.
package auth
