package opnsense

import (
	"errors"
	"testing"

	"github.com/go-logr/logr"

	"github.com/yuriy-kovalchuk/yk-dyn-ip/internal/dns"
)

func validSettings() map[string]string {
	return map[string]string{
		"base_url":    "https://opnsense.local/api",
		"api_key":     "key123",
		"api_secret":  "secret456",
		"domain_name": "example.com",
	}
}

func TestNew_ValidSettings(t *testing.T) {
	p, err := New(logr.Discard(), validSettings())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.baseURL != "https://opnsense.local/api" {
		t.Errorf("expected baseURL 'https://opnsense.local/api', got %q", p.baseURL)
	}
	if p.defaultTTL != 300 {
		t.Errorf("expected default TTL 300, got %d", p.defaultTTL)
	}
	if p.DomainName() != "example.com." {
		t.Errorf("expected domain 'example.com.', got %q", p.DomainName())
	}
}

func TestNew_CustomTTL(t *testing.T) {
	settings := validSettings()
	settings["default_ttl"] = "600"

	p, err := New(logr.Discard(), settings)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.defaultTTL != 600 {
		t.Errorf("expected default TTL 600, got %d", p.defaultTTL)
	}
}

func TestNew_InvalidSettings(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(map[string]string)
	}{
		{"invalid ttl", func(s map[string]string) { s["default_ttl"] = "notanumber" }},
		{"missing base_url", func(s map[string]string) { delete(s, "base_url") }},
		{"missing api_key", func(s map[string]string) { delete(s, "api_key") }},
		{"missing api_secret", func(s map[string]string) { delete(s, "api_secret") }},
		{"missing domain_name", func(s map[string]string) { delete(s, "domain_name") }},
		{"malformed domain_name", func(s map[string]string) { s["domain_name"] = "-bad-.com" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settings := validSettings()
			tt.mutate(settings)

			_, err := New(logr.Discard(), settings)
			if !errors.Is(err, dns.ErrConfig) {
				t.Fatalf("expected ErrConfig, got %v", err)
			}
		})
	}
}

func TestNew_SkipTLSVerify(t *testing.T) {
	settings := validSettings()
	settings["skip_tls_verify"] = "true"

	p, err := New(logr.Discard(), settings)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.client == nil {
		t.Fatal("expected non-nil HTTP client")
	}
}

func TestHostRowFQDN(t *testing.T) {
	tests := []struct {
		row  hostRow
		want string
	}{
		{hostRow{Hostname: "app", Domain: "example.com"}, "app.example.com"},
		{hostRow{Hostname: "", Domain: "example.com"}, "example.com"},
	}
	for _, tt := range tests {
		if got := tt.row.fqdn(); got != tt.want {
			t.Errorf("fqdn(%+v) = %q, want %q", tt.row, got, tt.want)
		}
	}
}

func TestBuildHostBody(t *testing.T) {
	body := buildHostBody(dns.Record{Domain: "app.example.com.", Type: dns.TypeA, Value: "10.0.0.1"})
	host := body["host"].(map[string]string)
	if host["hostname"] != "app" || host["domain"] != "example.com" {
		t.Errorf("unexpected split: %v", host)
	}
	if host["rr"] != "A" || host["server"] != "10.0.0.1" {
		t.Errorf("unexpected record fields: %v", host)
	}
}

func TestQualify_MatchesListedName(t *testing.T) {
	p, err := New(logr.Discard(), validSettings())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	listed := hostRow{Hostname: "home", Domain: "example.com"}.fqdn()
	for _, domain := range []string{"home", "home.example.com", "home.example.com."} {
		if got := p.Qualify(domain); got != listed {
			t.Errorf("Qualify(%q) = %q, want %q", domain, got, listed)
		}
	}
}
