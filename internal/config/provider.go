package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"go.yaml.in/yaml/v3"
)

const defaultProviderPath = "configs/dns-provider.yaml"

// ProviderConfig holds the DNS provider type and its provider-specific
// connection settings.
type ProviderConfig struct {
	Provider string            `yaml:"provider"`
	Settings map[string]string `yaml:"settings"`
}

// LoadProviderConfig reads the DNS provider configuration from the path
// specified by the DNS_PROVIDER_PATH environment variable, defaulting to
// "configs/dns-provider.yaml". When DNS_PROVIDER_PATH is unset and the
// default file does not exist, the configuration is built from the
// environment instead (see ProviderConfigFromEnv).
func LoadProviderConfig() (*ProviderConfig, error) {
	path := os.Getenv("DNS_PROVIDER_PATH")
	if path != "" {
		return LoadProviderConfigFromPath(path)
	}
	cfg, err := LoadProviderConfigFromPath(defaultProviderPath)
	if errors.Is(err, fs.ErrNotExist) {
		return ProviderConfigFromEnv()
	}
	return cfg, err
}

// LoadProviderConfigFromPath reads the DNS provider configuration from the
// given file path.
func LoadProviderConfigFromPath(path string) (*ProviderConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading provider config file: %w", err)
	}

	var cfg ProviderConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing provider config file: %w", err)
	}

	if cfg.Provider == "" {
		return nil, fmt.Errorf("provider config: missing required field 'provider'")
	}

	// Expand ${ENV_VAR} references in setting values.
	for k, v := range cfg.Settings {
		cfg.Settings[k] = os.ExpandEnv(v)
	}

	return &cfg, nil
}

// envSettings maps setting keys to environment variables, per provider.
var envSettings = map[string]map[string]string{
	"cloudflare": {
		"zone_id":     "CLOUDFLARE_ZONE_ID",
		"api_token":   "CLOUDFLARE_API_TOKEN",
		"api_key":     "CLOUDFLARE_API_KEY",
		"email":       "CLOUDFLARE_EMAIL",
		"domain_name": "DOMAIN_NAME",
	},
	"route53": {
		"hosted_zone_id":    "ROUTE53_HOSTED_ZONE_ID",
		"region":            "AWS_REGION",
		"access_key_id":     "AWS_ACCESS_KEY_ID",
		"secret_access_key": "AWS_SECRET_ACCESS_KEY",
		"endpoint":          "ROUTE53_ENDPOINT",
		"domain_name":       "DOMAIN_NAME",
	},
	"opnsense": {
		"base_url":        "OPNSENSE_BASE_URL",
		"api_key":         "OPNSENSE_API_KEY",
		"api_secret":      "OPNSENSE_API_SECRET",
		"skip_tls_verify": "OPNSENSE_SKIP_TLS_VERIFY",
		"domain_name":     "DOMAIN_NAME",
	},
}

// ProviderConfigFromEnv builds the provider configuration from environment
// variables. DNS_PROVIDER selects the provider (default "cloudflare"); unset
// variables are left out of the settings so the provider reports them.
func ProviderConfigFromEnv() (*ProviderConfig, error) {
	name := getEnv("DNS_PROVIDER", "cloudflare")
	keys, ok := envSettings[name]
	if !ok {
		return nil, fmt.Errorf("provider config: no environment mapping for provider %q", name)
	}

	settings := make(map[string]string, len(keys))
	for key, env := range keys {
		if v := os.Getenv(env); v != "" {
			settings[key] = v
		}
	}
	return &ProviderConfig{Provider: name, Settings: settings}, nil
}
