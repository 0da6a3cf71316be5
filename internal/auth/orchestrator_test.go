package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"credhelper/internal/cred"
	"credhelper/internal/store"
	"credhelper/internal/target"
)

type fakeAcquirer struct {
	interactivePair *TokenPair
	refreshPair     *TokenPair
	refreshErr      error

	interactiveCalls int
	refreshCalls     int
	lastTenant       uuid.UUID
}

func (f *fakeAcquirer) Interactive(ctx context.Context, t *target.Target, tenantID uuid.UUID) (*TokenPair, error) {
	f.interactiveCalls++
	f.lastTenant = tenantID
	if f.interactivePair == nil {
		return nil, errors.New("interactive flow failed")
	}
	return f.interactivePair, nil
}

func (f *fakeAcquirer) NonInteractive(ctx context.Context, t *target.Target, tenantID uuid.UUID) (*TokenPair, error) {
	return nil, ErrInteractionRequired
}

func (f *fakeAcquirer) Refresh(ctx context.Context, t *target.Target, tenantID uuid.UUID, refresh *cred.Token) (*TokenPair, error) {
	f.refreshCalls++
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return f.refreshPair, nil
}

type fakeExchanger struct {
	valid         map[string]bool // password -> verdict; absent means valid
	exchangeErr   error
	exchangeCalls int
	validateCalls int
}

func (f *fakeExchanger) GeneratePersonalAccessToken(ctx context.Context, t *target.Target, access *cred.Token, requireCompact bool) (*cred.Token, error) {
	f.exchangeCalls++
	if f.exchangeErr != nil {
		return nil, f.exchangeErr
	}
	return &cred.Token{Value: "pat-from-" + access.Value, Kind: cred.KindPersonal}, nil
}

func (f *fakeExchanger) ValidateCredential(ctx context.Context, t *target.Target, c cred.Credential) bool {
	f.validateCalls++
	if v, ok := f.valid[c.Password]; ok {
		return v
	}
	return true
}

type fakeBasic struct {
	result cred.Result
}

func (f *fakeBasic) Authenticate(ctx context.Context, t *target.Target, c cred.Credential) cred.Result {
	return f.result
}

type fakePrompter struct {
	credential cred.Credential
	promptErr  error
	escalate   bool
}

func (f *fakePrompter) BasicCredentials(t *target.Target, seedUsername string) (cred.Credential, error) {
	return f.credential, f.promptErr
}

func (f *fakePrompter) TwoFactorEscalation(t *target.Target) (bool, error) {
	return f.escalate, nil
}

type fakeDetector struct {
	tenantID    uuid.UUID
	invalidated []string
}

func (f *fakeDetector) Detect(ctx context.Context, t *target.Target) (bool, uuid.UUID) {
	return true, f.tenantID
}

func (f *fakeDetector) Invalidate(t *target.Target) error {
	f.invalidated = append(f.invalidated, t.String())
	return nil
}

func testProfile() Profile {
	return Profile{
		Name:                      "test",
		Namespace:                 "git",
		RefreshKeySuffix:          "/refresh_token",
		ValidateStoredCredentials: true,
	}
}

func testTarget(t *testing.T) *target.Target {
	t.Helper()
	tgt, err := target.Parse("https://example.visualstudio.com/project")
	require.NoError(t, err)
	return tgt
}

func TestGetCredentialsReturnsValidStored(t *testing.T) {
	s := store.NewMemory()
	tgt := testTarget(t)
	p := testProfile()
	stored := cred.Credential{Username: "Personal Access Token", Password: "pat-ok"}
	require.NoError(t, s.WriteCredential(p.CredentialKey(tgt), stored))

	acq := &fakeAcquirer{}
	o := NewOrchestrator(p, s, acq, &fakeExchanger{})

	got, ok := o.GetCredentials(context.Background(), tgt)
	require.True(t, ok)
	assert.Equal(t, stored, got)
	assert.Equal(t, 0, acq.refreshCalls)
	assert.Equal(t, 0, acq.interactiveCalls, "a valid stored credential must not trigger any flow")
}

func TestGetCredentialsRenewsThroughRefreshToken(t *testing.T) {
	s := store.NewMemory()
	tgt := testTarget(t)
	p := testProfile()
	require.NoError(t, s.WriteCredential(p.CredentialKey(tgt), cred.Credential{Username: "u", Password: "stale"}))
	require.NoError(t, s.WriteToken(p.RefreshKey(tgt), &cred.Token{Value: "rt-old", Kind: cred.KindRefresh}))

	acq := &fakeAcquirer{refreshPair: &TokenPair{
		Access:  &cred.Token{Value: "at-new", Kind: cred.KindAccess},
		Refresh: &cred.Token{Value: "rt-new", Kind: cred.KindRefresh},
	}}
	ex := &fakeExchanger{valid: map[string]bool{"stale": false}}
	o := NewOrchestrator(p, s, acq, ex)

	got, ok := o.GetCredentials(context.Background(), tgt)
	require.True(t, ok)
	assert.Equal(t, "pat-from-at-new", got.Password)
	assert.Equal(t, 1, acq.refreshCalls)
	assert.Equal(t, 0, acq.interactiveCalls, "renewal must stay silent")

	// Both secrets were rotated in the store.
	c, found, err := s.ReadCredential(p.CredentialKey(tgt))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "pat-from-at-new", c.Password)

	rt, found, err := s.ReadToken(p.RefreshKey(tgt))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "rt-new", rt.Value)
}

func TestGetCredentialsSkipsValidationWhenDisabled(t *testing.T) {
	s := store.NewMemory()
	tgt := testTarget(t)
	p := testProfile()
	p.ValidateStoredCredentials = false
	stored := cred.Credential{Username: "u", Password: "possibly-stale"}
	require.NoError(t, s.WriteCredential(p.CredentialKey(tgt), stored))

	// The exchanger would reject this credential, but the profile says
	// not to ask.
	ex := &fakeExchanger{valid: map[string]bool{"possibly-stale": false}}
	o := NewOrchestrator(p, s, &fakeAcquirer{}, ex)

	got, ok := o.GetCredentials(context.Background(), tgt)
	require.True(t, ok)
	assert.Equal(t, stored, got)
	assert.Equal(t, 0, ex.validateCalls)
}

func TestGetCredentialsNoStoredNoRefresh(t *testing.T) {
	o := NewOrchestrator(testProfile(), store.NewMemory(), &fakeAcquirer{}, &fakeExchanger{})

	_, ok := o.GetCredentials(context.Background(), testTarget(t))
	assert.False(t, ok, "get must not start an interactive flow")
}

func TestSetCredentialsRefusedForFederatedProvider(t *testing.T) {
	p := testProfile() // AcceptsManualCredentials false
	s := store.NewMemory()
	o := NewOrchestrator(p, s, &fakeAcquirer{}, &fakeExchanger{})

	ok := o.SetCredentials(context.Background(), testTarget(t), cred.Credential{Username: "u", Password: "p"})
	assert.False(t, ok)
	assert.Equal(t, 0, s.Len())
}

func TestSetCredentialsStoresValidated(t *testing.T) {
	p := testProfile()
	p.AcceptsManualCredentials = true
	s := store.NewMemory()
	o := NewOrchestrator(p, s, &fakeAcquirer{}, &fakeExchanger{})
	tgt := testTarget(t)

	ok := o.SetCredentials(context.Background(), tgt, cred.Credential{Username: "alice", Password: "secret"})
	require.True(t, ok)

	c, found, err := s.ReadCredential(p.CredentialKey(tgt))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "alice", c.Username)
}

func TestSetCredentialsRejectsInvalid(t *testing.T) {
	p := testProfile()
	p.AcceptsManualCredentials = true
	s := store.NewMemory()
	ex := &fakeExchanger{valid: map[string]bool{"bad": false}}
	o := NewOrchestrator(p, s, &fakeAcquirer{}, ex)

	ok := o.SetCredentials(context.Background(), testTarget(t), cred.Credential{Username: "u", Password: "bad"})
	assert.False(t, ok)
	assert.Equal(t, 0, s.Len())
}

func TestSetCredentialsDoesNotClobberOtherUser(t *testing.T) {
	p := testProfile()
	p.AcceptsManualCredentials = true
	s := store.NewMemory()
	tgt := testTarget(t)
	require.NoError(t, s.WriteCredential(p.CredentialKey(tgt), cred.Credential{Username: "alice", Password: "a"}))

	o := NewOrchestrator(p, s, &fakeAcquirer{}, &fakeExchanger{})
	ok := o.SetCredentials(context.Background(), tgt, cred.Credential{Username: "bob", Password: "b"})
	require.True(t, ok)

	// Alice survives; Bob lives under the per-user key.
	alice, found, _ := s.ReadCredential(p.CredentialKey(tgt))
	require.True(t, found)
	assert.Equal(t, "alice", alice.Username)

	bob, found, _ := s.ReadCredential(p.CredentialKey(tgt) + "/bob")
	require.True(t, found)
	assert.Equal(t, "bob", bob.Username)
}

func TestDeleteCredentialsRemovesEverything(t *testing.T) {
	p := testProfile()
	s := store.NewMemory()
	tgt := testTarget(t)
	require.NoError(t, s.WriteCredential(p.CredentialKey(tgt), cred.Credential{Username: "u", Password: "p"}))
	require.NoError(t, s.WriteToken(p.RefreshKey(tgt), &cred.Token{Value: "rt", Kind: cred.KindRefresh}))

	det := &fakeDetector{}
	o := NewOrchestrator(p, s, &fakeAcquirer{}, &fakeExchanger{}, WithTenantDetector(det))

	require.NoError(t, o.DeleteCredentials(context.Background(), tgt))
	assert.Equal(t, 0, s.Len())
	assert.Len(t, det.invalidated, 1, "deletion must drop the tenant mapping")

	// Idempotent.
	assert.NoError(t, o.DeleteCredentials(context.Background(), tgt))
}

func TestInteractiveLogonOAuth(t *testing.T) {
	p := testProfile()
	s := store.NewMemory()
	tgt := testTarget(t)
	tenantID := uuid.MustParse("11111111-2222-3333-4444-555555555555")

	acq := &fakeAcquirer{interactivePair: &TokenPair{
		Access:  &cred.Token{Value: "at", Kind: cred.KindAccess},
		Refresh: &cred.Token{Value: "rt", Kind: cred.KindRefresh},
	}}
	o := NewOrchestrator(p, s, acq, &fakeExchanger{}, WithTenantDetector(&fakeDetector{tenantID: tenantID}))

	got, ok := o.InteractiveLogon(context.Background(), tgt)
	require.True(t, ok)
	assert.Equal(t, cred.KindPersonal.String(), got.Username)
	assert.Equal(t, "pat-from-at", got.Password)
	assert.Equal(t, tenantID, acq.lastTenant, "acquisition must target the detected tenant")

	rt, found, _ := s.ReadToken(p.RefreshKey(tgt))
	require.True(t, found)
	assert.Equal(t, "rt", rt.Value)
}

func TestInteractiveLogonBasicSuccess(t *testing.T) {
	p := testProfile()
	p.UsesBasicFirst = true
	s := store.NewMemory()
	tgt := testTarget(t)

	basic := &fakeBasic{result: cred.Success(
		&cred.Token{Value: "ghp-token", Kind: cred.KindPersonal}, nil, "octocat")}
	ex := &fakeExchanger{}
	o := NewOrchestrator(p, s, &fakeAcquirer{}, ex,
		WithBasicAuthenticator(basic),
		WithPrompter(&fakePrompter{credential: cred.Credential{Username: "octocat", Password: "hunter2"}}),
	)

	got, ok := o.InteractiveLogon(context.Background(), tgt)
	require.True(t, ok)
	assert.Equal(t, "octocat", got.Username)
	assert.Equal(t, "ghp-token", got.Password)
	assert.Equal(t, 0, ex.exchangeCalls, "a token already in final form needs no exchange")
}

func TestInteractiveLogonTwoFactorEscalates(t *testing.T) {
	p := testProfile()
	p.UsesBasicFirst = true
	s := store.NewMemory()

	acq := &fakeAcquirer{interactivePair: &TokenPair{
		Access:  &cred.Token{Value: "oauth-at", Kind: cred.KindAccess},
		Refresh: &cred.Token{Value: "oauth-rt", Kind: cred.KindRefresh},
	}}
	o := NewOrchestrator(p, s, acq, &fakeExchanger{},
		WithBasicAuthenticator(&fakeBasic{result: cred.TwoFactor()}),
		WithPrompter(&fakePrompter{
			credential: cred.Credential{Username: "octocat", Password: "hunter2"},
			escalate:   true,
		}),
	)

	tgt := testTarget(t)
	got, ok := o.InteractiveLogon(context.Background(), tgt)
	require.True(t, ok)
	assert.Equal(t, "pat-from-oauth-at", got.Password)
	assert.Equal(t, 1, acq.interactiveCalls)

	// The escalated flow persists its refresh token at the companion key
	// just like the plain OAuth path.
	rt, found, err := s.ReadToken(p.RefreshKey(tgt))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "oauth-rt", rt.Value)
}

func TestInteractiveLogonTwoFactorDeclined(t *testing.T) {
	p := testProfile()
	p.UsesBasicFirst = true

	acq := &fakeAcquirer{interactivePair: &TokenPair{
		Access: &cred.Token{Value: "oauth-at", Kind: cred.KindAccess},
	}}
	o := NewOrchestrator(p, store.NewMemory(), acq, &fakeExchanger{},
		WithBasicAuthenticator(&fakeBasic{result: cred.TwoFactor()}),
		WithPrompter(&fakePrompter{
			credential: cred.Credential{Username: "octocat", Password: "hunter2"},
			escalate:   false,
		}),
	)

	_, ok := o.InteractiveLogon(context.Background(), testTarget(t))
	assert.False(t, ok)
	assert.Equal(t, 0, acq.interactiveCalls)
}

func TestInteractiveLogonBasicFailure(t *testing.T) {
	p := testProfile()
	p.UsesBasicFirst = true

	o := NewOrchestrator(p, store.NewMemory(), &fakeAcquirer{}, &fakeExchanger{},
		WithBasicAuthenticator(&fakeBasic{result: cred.Failure()}),
		WithPrompter(&fakePrompter{credential: cred.Credential{Username: "u", Password: "wrong"}}),
	)

	_, ok := o.InteractiveLogon(context.Background(), testTarget(t))
	assert.False(t, ok)
}

func TestValidateCredentialsRenewsOnce(t *testing.T) {
	p := testProfile()
	s := store.NewMemory()
	tgt := testTarget(t)
	require.NoError(t, s.WriteToken(p.RefreshKey(tgt), &cred.Token{Value: "rt", Kind: cred.KindRefresh}))

	acq := &fakeAcquirer{refreshPair: &TokenPair{
		Access: &cred.Token{Value: "at-new", Kind: cred.KindAccess},
	}}
	ex := &fakeExchanger{valid: map[string]bool{"stale": false}}
	o := NewOrchestrator(p, s, acq, ex)

	ok := o.ValidateCredentials(context.Background(), tgt, cred.Credential{Username: "u", Password: "stale"})
	assert.True(t, ok)
	assert.Equal(t, 1, acq.refreshCalls)
}

func TestValidateCredentialsFailsWithoutRefreshToken(t *testing.T) {
	ex := &fakeExchanger{valid: map[string]bool{"stale": false}}
	o := NewOrchestrator(testProfile(), store.NewMemory(), &fakeAcquirer{}, ex)

	ok := o.ValidateCredentials(context.Background(), testTarget(t), cred.Credential{Username: "u", Password: "stale"})
	assert.False(t, ok)
}
