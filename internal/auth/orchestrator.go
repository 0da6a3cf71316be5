package auth

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"credhelper/internal/cred"
	"credhelper/internal/store"
	"credhelper/internal/target"
	"credhelper/pkg/logging"
)

const subsystem = "Orchestrator"

// TenantDetector resolves the directory tenant protecting a target.
// Providers without a tenant concept leave it nil.
type TenantDetector interface {
	Detect(ctx context.Context, t *target.Target) (bool, uuid.UUID)
	Invalidate(t *target.Target) error
}

// Orchestrator implements the credential lifecycle for one provider. All
// providers share this logic; the injected collaborators carry the
// provider-specific behavior.
type Orchestrator struct {
	profile   Profile
	store     store.SecretStore
	acquirer  OAuthAcquirer
	exchanger TokenExchanger
	basic     BasicAuthenticator
	prompter  Prompter
	detector  TenantDetector
}

// OrchestratorOption configures optional collaborators.
type OrchestratorOption func(*Orchestrator)

// WithBasicAuthenticator enables the username/password first leg of
// interactive logon.
func WithBasicAuthenticator(b BasicAuthenticator) OrchestratorOption {
	return func(o *Orchestrator) {
		o.basic = b
	}
}

// WithPrompter enables interactive prompting.
func WithPrompter(p Prompter) OrchestratorOption {
	return func(o *Orchestrator) {
		o.prompter = p
	}
}

// WithTenantDetector enables tenant resolution before OAuth acquisition.
func WithTenantDetector(d TenantDetector) OrchestratorOption {
	return func(o *Orchestrator) {
		o.detector = d
	}
}

// NewOrchestrator assembles an orchestrator. acquirer and exchanger are
// mandatory; the options supply the rest.
func NewOrchestrator(profile Profile, s store.SecretStore, acquirer OAuthAcquirer, exchanger TokenExchanger, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		profile:   profile,
		store:     s,
		acquirer:  acquirer,
		exchanger: exchanger,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Profile returns the provider profile.
func (o *Orchestrator) Profile() Profile {
	return o.profile
}

// GetCredentials returns a usable credential for the target, preferring
// the stored one, silently renewing through a refresh token when the
// stored one no longer validates. It reports false when only an
// interactive logon can help.
func (o *Orchestrator) GetCredentials(ctx context.Context, t *target.Target) (cred.Credential, bool) {
	key := o.profile.CredentialKey(t)

	c, found, err := o.store.ReadCredential(key)
	if err != nil {
		logging.Warn(subsystem, "failed to read credential for %s: %v", t, err)
	}
	if found {
		if !o.profile.ValidateStoredCredentials {
			logging.Debug(subsystem, "returning stored credential for %s without validation", t)
			return c, true
		}
		if o.exchanger.ValidateCredential(ctx, t, c) {
			logging.Debug(subsystem, "stored credential for %s is valid", t)
			return c, true
		}
		logging.Info(subsystem, "stored credential for %s no longer validates", t)
	}

	if renewed, ok := o.renew(ctx, t); ok {
		return renewed, true
	}
	return cred.Credential{}, false
}

// SetCredentials stores a user-supplied credential. Providers that mint
// their own tokens refuse; a stored credential for a different username is
// preserved by filing the new one under a per-user key instead of
// clobbering it.
func (o *Orchestrator) SetCredentials(ctx context.Context, t *target.Target, c cred.Credential) bool {
	if !o.profile.AcceptsManualCredentials {
		logging.Debug(subsystem, "%s manages its own credentials; ignoring store request for %s", o.profile.Name, t)
		return false
	}
	if c.Username == "" || c.Password == "" {
		return false
	}
	if !o.exchanger.ValidateCredential(ctx, t, c) {
		logging.Info(subsystem, "refusing to store rejected credential for %s", t)
		return false
	}

	key := o.profile.CredentialKey(t)
	if existing, found, _ := o.store.ReadCredential(key); found && existing.Username != c.Username {
		key = key + "/" + c.Username
	}

	if err := o.store.WriteCredential(key, c); err != nil {
		logging.Error(subsystem, err, "failed to store credential for %s", t)
		return false
	}
	return true
}

// DeleteCredentials removes the stored credential and refresh token and
// invalidates the cached tenant mapping: a deletion usually follows an
// authentication failure, and a moved tenant is one plausible cause.
// Deleting absent entries succeeds.
func (o *Orchestrator) DeleteCredentials(ctx context.Context, t *target.Target) error {
	if err := o.store.Delete(o.profile.CredentialKey(t)); err != nil {
		return err
	}
	if rk := o.profile.RefreshKey(t); rk != "" {
		if err := o.store.Delete(rk); err != nil {
			return err
		}
	}
	if o.detector != nil {
		if err := o.detector.Invalidate(t); err != nil {
			logging.Warn(subsystem, "failed to invalidate tenant mapping for %s: %v", t, err)
		}
	}
	return nil
}

// InteractiveLogon acquires a brand-new credential with the user's help
// and stores it. Basic-first providers try username/password and escalate
// to the browser flow on a two-factor challenge; the rest go straight to
// OAuth.
func (o *Orchestrator) InteractiveLogon(ctx context.Context, t *target.Target) (cred.Credential, bool) {
	if o.profile.UsesBasicFirst && o.basic != nil && o.prompter != nil {
		return o.basicFirstLogon(ctx, t)
	}
	return o.oauthLogon(ctx, t)
}

func (o *Orchestrator) basicFirstLogon(ctx context.Context, t *target.Target) (cred.Credential, bool) {
	seed, _ := t.Username()
	input, err := o.prompter.BasicCredentials(t, seed)
	if err != nil {
		logging.Debug(subsystem, "credential prompt for %s aborted: %v", t, err)
		return cred.Credential{}, false
	}

	result := o.basic.Authenticate(ctx, t, input)
	switch result.Outcome {
	case cred.OutcomeSuccess:
		return o.finish(ctx, t, result.AccessToken, result.RefreshToken, result.RemoteUsername)
	case cred.OutcomeTwoFactor:
		proceed, err := o.prompter.TwoFactorEscalation(t)
		if err != nil || !proceed {
			return cred.Credential{}, false
		}
		return o.oauthLogon(ctx, t)
	default:
		logging.Info(subsystem, "authentication for %s failed", t)
		return cred.Credential{}, false
	}
}

func (o *Orchestrator) oauthLogon(ctx context.Context, t *target.Target) (cred.Credential, bool) {
	tenantID := o.tenant(ctx, t)

	pair, err := o.acquirer.NonInteractive(ctx, t, tenantID)
	if errors.Is(err, ErrInteractionRequired) {
		pair, err = o.acquirer.Interactive(ctx, t, tenantID)
	}
	if err != nil {
		logging.Error(subsystem, err, "token acquisition for %s failed", t)
		return cred.Credential{}, false
	}
	return o.finish(ctx, t, pair.Access, pair.Refresh, "")
}

// finish exchanges an acquired token for its storable credential form and
// persists both it and the refresh token.
func (o *Orchestrator) finish(ctx context.Context, t *target.Target, access, refresh *cred.Token, remoteUsername string) (cred.Credential, bool) {
	pat := access
	if pat == nil {
		return cred.Credential{}, false
	}
	if pat.Kind != cred.KindPersonal {
		exchanged, err := o.exchanger.GeneratePersonalAccessToken(ctx, t, access, o.profile.RequireCompactToken)
		if err != nil {
			logging.Error(subsystem, err, "token exchange for %s failed", t)
			return cred.Credential{}, false
		}
		pat = exchanged
	}

	c, ok := pat.Credential()
	if !ok {
		return cred.Credential{}, false
	}
	if remoteUsername != "" {
		c.Username = remoteUsername
	}

	if refresh != nil {
		if rk := o.profile.RefreshKey(t); rk != "" {
			if err := o.store.WriteToken(rk, refresh); err != nil {
				// Renewal will require another logon; the credential
				// itself still works.
				logging.Warn(subsystem, "failed to store refresh token for %s: %v", t, err)
			}
		}
	}
	if err := o.store.WriteCredential(o.profile.CredentialKey(t), c); err != nil {
		logging.Error(subsystem, err, "failed to store credential for %s", t)
		return cred.Credential{}, false
	}

	logging.Info(subsystem, "stored new credential for %s", t)
	return c, true
}

// ValidateCredentials checks a credential and, when it fails, makes one
// silent renewal attempt before giving up.
func (o *Orchestrator) ValidateCredentials(ctx context.Context, t *target.Target, c cred.Credential) bool {
	if o.exchanger.ValidateCredential(ctx, t, c) {
		return true
	}
	_, ok := o.renew(ctx, t)
	return ok
}

// renew redeems the stored refresh token for a fresh credential and
// persists it.
func (o *Orchestrator) renew(ctx context.Context, t *target.Target) (cred.Credential, bool) {
	rk := o.profile.RefreshKey(t)
	if rk == "" {
		return cred.Credential{}, false
	}

	refresh, found, err := o.store.ReadToken(rk)
	if err != nil || !found {
		return cred.Credential{}, false
	}

	pair, err := o.acquirer.Refresh(ctx, t, o.tenant(ctx, t), refresh)
	if err != nil {
		logging.Debug(subsystem, "silent renewal for %s failed: %v", t, err)
		return cred.Credential{}, false
	}

	logging.Info(subsystem, "renewed credential for %s without interaction", t)
	return o.finish(ctx, t, pair.Access, pair.Refresh, "")
}

func (o *Orchestrator) tenant(ctx context.Context, t *target.Target) uuid.UUID {
	if o.detector == nil {
		return uuid.Nil
	}
	_, id := o.detector.Detect(ctx, t)
	return id
}
