// Package providers assembles the per-provider orchestrators from the
// loaded configuration and routes each target to the right one.
package providers

import (
	"fmt"
	"strings"

	"credhelper/internal/auth"
	"credhelper/internal/azure"
	"credhelper/internal/config"
	"credhelper/internal/github"
	"credhelper/internal/scope"
	"credhelper/internal/store"
	"credhelper/internal/target"
	"credhelper/internal/tenant"
	"credhelper/internal/vsts"
	"credhelper/pkg/logging"
)

// Provider names accepted in the hosts configuration section.
const (
	ProviderAzure  = "azure-devops"
	ProviderGitHub = "github"
	ProviderBasic  = "basic"
)

// Registry owns one orchestrator per provider and selects among them by
// target host.
type Registry struct {
	cfg config.Config

	azure   *auth.Orchestrator
	github  *auth.Orchestrator
	generic *auth.Orchestrator
}

// NewRegistry builds the registry. The prompter may be nil when no
// interactive operation will run.
func NewRegistry(cfg config.Config, s store.SecretStore, prompter auth.Prompter) (*Registry, error) {
	r := &Registry{cfg: cfg}

	azureOrch, err := buildAzure(cfg, s, prompter)
	if err != nil {
		return nil, err
	}
	r.azure = azureOrch
	r.github = buildGitHub(cfg, s, prompter)
	r.generic = buildGeneric(cfg, s, prompter)
	return r, nil
}

// ForTarget selects the orchestrator for a target. Host pins from the
// configuration win over the built-in domain lists; unrecognized hosts
// fall back to plain basic authentication.
func (r *Registry) ForTarget(t *target.Target) *auth.Orchestrator {
	if pinned, ok := r.hostPin(t); ok {
		return pinned
	}

	for _, domain := range r.cfg.Azure.BaseDomains {
		if t.HasHostSuffix(domain) {
			return r.azure
		}
	}
	for _, domain := range r.cfg.GitHub.BaseDomains {
		if t.HasHostSuffix(domain) {
			return r.github
		}
	}

	logging.Debug("Cmd", "no provider recognizes %s, using basic authentication", t.Hostname())
	return r.generic
}

func (r *Registry) hostPin(t *target.Target) (*auth.Orchestrator, bool) {
	for host, provider := range r.cfg.Hosts {
		if !t.HasHostSuffix(host) {
			continue
		}
		switch strings.ToLower(provider) {
		case ProviderAzure:
			return r.azure, true
		case ProviderGitHub:
			return r.github, true
		case ProviderBasic:
			return r.generic, true
		default:
			logging.Warn("Cmd", "unknown provider %q pinned for host %s, ignoring", provider, host)
			return nil, false
		}
	}
	return nil, false
}

func buildAzure(cfg config.Config, s store.SecretStore, prompter auth.Prompter) (*auth.Orchestrator, error) {
	cachePath := cfg.TenantCachePath
	if cachePath == "" {
		p, err := tenant.DefaultPath()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve tenant cache path: %w", err)
		}
		cachePath = p
	}
	cache, err := tenant.NewCache(cachePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open tenant cache: %w", err)
	}

	detector := azure.NewDetector(cache, cfg.Azure.BaseDomains,
		azure.WithPathTenancyDomains("dev.azure.com"),
	)

	var authorityOpts []azure.AuthorityOption
	if cfg.Azure.ClientID != "" {
		authorityOpts = append(authorityOpts, azure.WithClientID(cfg.Azure.ClientID))
	}
	if cfg.Azure.Resource != "" {
		authorityOpts = append(authorityOpts, azure.WithResource(cfg.Azure.Resource))
	}
	if cfg.CallbackPort != 0 {
		authorityOpts = append(authorityOpts, azure.WithCallbackPort(cfg.CallbackPort))
	}
	authority := azure.NewAuthority(authorityOpts...)

	var exchangeOpts []vsts.ExchangeOption
	if cfg.Azure.TokenScope != "" {
		exchangeOpts = append(exchangeOpts, vsts.WithTokenScope(scope.NewVsts(strings.Fields(cfg.Azure.TokenScope)...)))
	}
	exchange := vsts.NewExchange(exchangeOpts...)

	profile := auth.Profile{
		Name:                      "azure-devops",
		Namespace:                 cfg.Namespace,
		RefreshKeySuffix:          "/refresh_token",
		RequireCompactToken:       cfg.Azure.CompactTokens,
		ValidateStoredCredentials: cfg.ShouldValidate(),
	}

	opts := []auth.OrchestratorOption{auth.WithTenantDetector(detector)}
	if prompter != nil {
		opts = append(opts, auth.WithPrompter(prompter))
	}
	return auth.NewOrchestrator(profile, s, authority, exchange, opts...), nil
}

func buildGitHub(cfg config.Config, s store.SecretStore, prompter auth.Prompter) *auth.Orchestrator {
	authorityOpts := []github.AuthorityOption{
		github.WithTokenScope(scope.NewGithub(cfg.GitHub.Scopes...)),
	}
	if cfg.GitHub.ClientID != "" {
		authorityOpts = append(authorityOpts, github.WithOAuthClient(cfg.GitHub.ClientID, cfg.GitHub.ClientSecret))
	}
	if cfg.CallbackPort != 0 {
		authorityOpts = append(authorityOpts, github.WithCallbackPort(cfg.CallbackPort))
	}
	authority := github.NewAuthority(authorityOpts...)

	profile := auth.Profile{
		Name:                      "github",
		Namespace:                 cfg.Namespace,
		AcceptsManualCredentials:  true,
		UsesBasicFirst:            true,
		ValidateStoredCredentials: cfg.ShouldValidate(),
	}

	opts := []auth.OrchestratorOption{auth.WithBasicAuthenticator(authority)}
	if prompter != nil {
		opts = append(opts, auth.WithPrompter(prompter))
	}
	return auth.NewOrchestrator(profile, s, github.NewAcquirer(authority), authority, opts...)
}

func buildGeneric(cfg config.Config, s store.SecretStore, prompter auth.Prompter) *auth.Orchestrator {
	generic := auth.NewGeneric()

	profile := auth.Profile{
		Name:                      "basic",
		Namespace:                 cfg.Namespace,
		AcceptsManualCredentials:  true,
		UsesBasicFirst:            true,
		ValidateStoredCredentials: cfg.ShouldValidate(),
	}

	opts := []auth.OrchestratorOption{auth.WithBasicAuthenticator(generic)}
	if prompter != nil {
		opts = append(opts, auth.WithPrompter(prompter))
	}
	return auth.NewOrchestrator(profile, s, auth.NoOAuth{}, generic, opts...)
}
