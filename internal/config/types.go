// Package config loads helper configuration from the user's config
// directory. Everything has a working default; the file only overrides.
package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration decodes YAML strings like "30s" into a time.Duration.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the root configuration.
type Config struct {
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"logLevel,omitempty"`

	// Namespace prefixes all secret store keys.
	Namespace string `yaml:"namespace,omitempty"`

	// Timeout bounds individual service calls.
	Timeout Duration `yaml:"timeout,omitempty"`

	// CallbackPort pins the loopback port for browser sign-in. Zero
	// lets the OS pick one.
	CallbackPort int `yaml:"callbackPort,omitempty"`

	// TenantCachePath overrides the tenant cache file location.
	TenantCachePath string `yaml:"tenantCachePath,omitempty"`

	// ValidateStoredCredentials controls whether get checks the stored
	// credential against the service before handing it out.
	ValidateStoredCredentials *bool `yaml:"validateStoredCredentials,omitempty"`

	Azure  AzureConfig  `yaml:"azure,omitempty"`
	GitHub GitHubConfig `yaml:"github,omitempty"`

	// Hosts pins a provider per hostname, overriding detection.
	// Recognized values: azure-devops, github, basic.
	Hosts map[string]string `yaml:"hosts,omitempty"`
}

// AzureConfig configures the Azure DevOps provider.
type AzureConfig struct {
	// ClientID is the OAuth client registration. Defaults to the Visual
	// Studio public client.
	ClientID string `yaml:"clientId,omitempty"`

	// Resource is the service principal tokens are requested for.
	Resource string `yaml:"resource,omitempty"`

	// TokenScope is the scope string requested for generated personal
	// access tokens.
	TokenScope string `yaml:"tokenScope,omitempty"`

	// CompactTokens requests size-reduced personal access tokens.
	CompactTokens bool `yaml:"compactTokens,omitempty"`

	// BaseDomains are the hostname suffixes recognized as Azure DevOps.
	BaseDomains []string `yaml:"baseDomains,omitempty"`
}

// GitHubConfig configures the GitHub provider.
type GitHubConfig struct {
	// ClientID and ClientSecret identify the OAuth application used for
	// browser sign-in. Without them only basic authentication works.
	ClientID     string `yaml:"clientId,omitempty"`
	ClientSecret string `yaml:"clientSecret,omitempty"`

	// Scopes are the authorization scopes requested for tokens.
	Scopes []string `yaml:"scopes,omitempty"`

	// BaseDomains are additional hostname suffixes treated as GitHub
	// Enterprise installations.
	BaseDomains []string `yaml:"baseDomains,omitempty"`
}

// Default returns the built-in configuration.
func Default() Config {
	validate := true
	return Config{
		LogLevel:                  "warn",
		Namespace:                 "git",
		Timeout:                   Duration(30 * time.Second),
		ValidateStoredCredentials: &validate,
		Azure: AzureConfig{
			BaseDomains: []string{"dev.azure.com", "visualstudio.com"},
		},
		GitHub: GitHubConfig{
			Scopes:      []string{"repo", "gist"},
			BaseDomains: []string{"github.com"},
		},
	}
}

// ShouldValidate reports the effective validation toggle.
func (c Config) ShouldValidate() bool {
	return c.ValidateStoredCredentials == nil || *c.ValidateStoredCredentials
}
