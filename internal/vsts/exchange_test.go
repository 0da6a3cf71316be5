package vsts

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"credhelper/internal/cred"
	"credhelper/internal/scope"
	"credhelper/internal/target"
)

func mustTarget(t *testing.T, raw string) *target.Target {
	t.Helper()
	tgt, err := target.Parse(raw)
	require.NoError(t, err)
	return tgt
}

func accessToken(value string) *cred.Token {
	return &cred.Token{Value: value, Kind: cred.KindAccess}
}

func TestGeneratePersonalAccessToken(t *testing.T) {
	var tokenRequest struct {
		method, path, query, authz, body string
	}

	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/_apis/servicedefinitions/locationservice2/"+LocationServiceID,
		func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, `{"serviceType":"IdentityService","location":"`+server.URL+`/identity/"}`)
		})
	mux.HandleFunc("/identity/_apis/token/sessiontokens",
		func(w http.ResponseWriter, r *http.Request) {
			raw, _ := io.ReadAll(r.Body)
			tokenRequest.method = r.Method
			tokenRequest.path = r.URL.Path
			tokenRequest.query = r.URL.RawQuery
			tokenRequest.authz = r.Header.Get("Authorization")
			tokenRequest.body = string(raw)
			io.WriteString(w, `{"clientId":"x","token":"pat-secret","isValid":true}`)
		})

	e := NewExchange(WithTokenScope(scope.VstsCodeWrite))

	pat, err := e.GeneratePersonalAccessToken(context.Background(),
		mustTarget(t, server.URL+"/project/_git/repo"), accessToken("aad-at"), true)
	require.NoError(t, err)

	assert.Equal(t, "pat-secret", pat.Value)
	assert.Equal(t, cred.KindPersonal, pat.Kind)

	assert.Equal(t, http.MethodPost, tokenRequest.method)
	assert.Equal(t, "Bearer aad-at", tokenRequest.authz)
	assert.Contains(t, tokenRequest.query, "api-version=1.0")
	assert.Contains(t, tokenRequest.query, "tokentype=compact")
	assert.Contains(t, tokenRequest.body, scope.VstsCodeWrite.String())
}

func TestGeneratePersonalAccessTokenOmitsCompactByDefault(t *testing.T) {
	var query string

	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/_apis/servicedefinitions/locationservice2/"+LocationServiceID,
		func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, `{"location":"`+server.URL+`"}`)
		})
	mux.HandleFunc("/_apis/token/sessiontokens",
		func(w http.ResponseWriter, r *http.Request) {
			query = r.URL.RawQuery
			io.WriteString(w, `{"token":"pat-secret"}`)
		})

	e := NewExchange()
	_, err := e.GeneratePersonalAccessToken(context.Background(),
		mustTarget(t, server.URL+"/repo"), accessToken("aad-at"), false)
	require.NoError(t, err)

	assert.NotContains(t, query, "tokentype")
}

func TestGeneratePersonalAccessTokenWithDuration(t *testing.T) {
	var body string

	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/_apis/servicedefinitions/locationservice2/"+LocationServiceID,
		func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, `{"location":"`+server.URL+`"}`)
		})
	mux.HandleFunc("/_apis/token/sessiontokens",
		func(w http.ResponseWriter, r *http.Request) {
			raw, _ := io.ReadAll(r.Body)
			body = string(raw)
			io.WriteString(w, `{"token":"pat-secret"}`)
		})

	e := NewExchange(WithTokenDuration(24 * time.Hour))
	_, err := e.GeneratePersonalAccessToken(context.Background(),
		mustTarget(t, server.URL+"/repo"), accessToken("aad-at"), false)
	require.NoError(t, err)

	assert.Contains(t, body, `"validTo"`)
}

func TestGeneratePersonalAccessTokenLocationFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no service here", http.StatusNotFound)
	}))
	defer server.Close()

	e := NewExchange()
	_, err := e.GeneratePersonalAccessToken(context.Background(),
		mustTarget(t, server.URL+"/repo"), accessToken("aad-at"), false)

	assert.ErrorIs(t, err, ErrLocationService)
}

func TestGeneratePersonalAccessTokenRequiresAccessToken(t *testing.T) {
	e := NewExchange()
	tgt := mustTarget(t, "https://contoso.visualstudio.com/")

	_, err := e.GeneratePersonalAccessToken(context.Background(), tgt, nil, false)
	assert.Error(t, err)

	_, err = e.GeneratePersonalAccessToken(context.Background(), tgt,
		&cred.Token{Value: "pat", Kind: cred.KindPersonal}, false)
	assert.Error(t, err)
}

func TestValidateCredential(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    bool
	}{
		{
			name: "accepted",
			handler: func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, `{"authenticatedUser":{"providerDisplayName":"Jo"}}`)
			},
			want: true,
		},
		{
			name: "anonymous fallback",
			handler: func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, `{"authenticatedUser":{"properties":{"Account":"Anonymous"}}}`)
			},
			want: false,
		},
		{
			name: "unauthorized",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
			},
			want: false,
		},
		{
			name: "server error keeps credential",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
			want: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(tc.handler)
			defer server.Close()

			e := NewExchange()
			got := e.ValidateCredential(context.Background(),
				mustTarget(t, server.URL+"/repo"),
				cred.Credential{Username: "user", Password: "secret"})
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestValidateCredentialTransportFailureIsOptimistic(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // refuse all connections

	e := NewExchange()
	got := e.ValidateCredential(context.Background(),
		mustTarget(t, server.URL+"/repo"),
		cred.Credential{Username: "user", Password: "secret"})

	assert.True(t, got, "unreachable service must not discard the credential")
}

func TestValidateCredentialSendsBasicAuth(t *testing.T) {
	var gotUser, gotPass string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, gotPass, _ = r.BasicAuth()
		io.WriteString(w, `{}`)
	}))
	defer server.Close()

	e := NewExchange()
	e.ValidateCredential(context.Background(), mustTarget(t, server.URL+"/repo"),
		cred.Credential{Username: "Personal Access Token", Password: "pat-secret"})

	assert.Equal(t, "Personal Access Token", gotUser)
	assert.Equal(t, "pat-secret", gotPass)
}

func TestValidateToken(t *testing.T) {
	var authz string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authz = r.Header.Get("Authorization")
		io.WriteString(w, `{}`)
	}))
	defer server.Close()

	e := NewExchange()
	ok := e.ValidateToken(context.Background(), mustTarget(t, server.URL+"/repo"),
		&cred.Token{Value: "aad-at", Kind: cred.KindAccess})

	assert.True(t, ok)
	assert.Equal(t, "Bearer aad-at", authz)

	assert.False(t, e.ValidateToken(context.Background(), mustTarget(t, server.URL+"/repo"), nil))
}

func TestServiceRoot(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://contoso.visualstudio.com/project/_git/repo", "https://contoso.visualstudio.com"},
		{"https://dev.azure.com/contoso/project/_git/repo", "https://dev.azure.com/contoso"},
		{"https://dev.azure.com/", "https://dev.azure.com"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, serviceRoot(mustTarget(t, tc.url)))
	}
}
