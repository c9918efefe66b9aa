package authclient

import (
	"testing"
	"time"

	"github.com/cronos-bakery/authclient/session"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{name: "defaults", mutate: func(*Config) {}, wantValid: true},
		{
			name:      "base url blank",
			mutate:    func(c *Config) { c.API.BaseURL = "  " },
			wantValid: false,
		},
		{
			name:      "base url relative",
			mutate:    func(c *Config) { c.API.BaseURL = "/api/v1" },
			wantValid: false,
		},
		{
			name:      "base url ftp",
			mutate:    func(c *Config) { c.API.BaseURL = "ftp://bakery/api" },
			wantValid: false,
		},
		{
			name:      "no timeout allowed",
			mutate:    func(c *Config) { c.API.Timeout = 0 },
			wantValid: true,
		},
		{
			name:      "negative timeout",
			mutate:    func(c *Config) { c.API.Timeout = -time.Second },
			wantValid: false,
		},
		{
			name:      "zero logout timeout",
			mutate:    func(c *Config) { c.API.LogoutTimeout = 0 },
			wantValid: false,
		},
		{
			name:      "persistent durability",
			mutate:    func(c *Config) { c.Storage.Durability = session.DurabilityPersistent },
			wantValid: true,
		},
		{
			name:      "unknown durability",
			mutate:    func(c *Config) { c.Storage.Durability = session.Durability("forever") },
			wantValid: false,
		},
		{
			name:      "file medium without path",
			mutate:    func(c *Config) { c.Storage.Medium = MediumFile },
			wantValid: false,
		},
		{
			name: "file medium with path",
			mutate: func(c *Config) {
				c.Storage.Medium = MediumFile
				c.Storage.FilePath = "/tmp/bakery-session.yaml"
			},
			wantValid: true,
		},
		{
			name:      "unknown medium",
			mutate:    func(c *Config) { c.Storage.Medium = "cookie" },
			wantValid: false,
		},
		{
			name:      "leeway longer than window",
			mutate:    func(c *Config) { c.Session.ExpiryLeeway = session.SessionWindow },
			wantValid: false,
		},
		{
			name:      "login path relative",
			mutate:    func(c *Config) { c.Guard.LoginPath = "login" },
			wantValid: false,
		},
		{
			name: "return param required when preserving",
			mutate: func(c *Config) {
				c.Guard.PreserveReturnPath = true
				c.Guard.ReturnParam = ""
			},
			wantValid: false,
		},
		{
			name: "async notifications need a buffer",
			mutate: func(c *Config) {
				c.Notifications.Async = true
				c.Notifications.BufferSize = 0
			},
			wantValid: false,
		},
		{
			name: "histograms need metrics",
			mutate: func(c *Config) {
				c.Metrics.Enabled = false
				c.Metrics.EnableLatencyHistograms = true
			},
			wantValid: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := defaultConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantValid && err != nil {
				t.Fatalf("expected valid config, got %v", err)
			}
			if !tc.wantValid && err == nil {
				t.Fatal("expected invalid config, got nil")
			}
		})
	}
}

func TestBuilderRejectsReuseAndInvalidConfig(t *testing.T) {
	b := New()
	c, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer c.Close()

	if _, err := b.Build(); err != ErrBuilderUsed {
		t.Fatalf("expected ErrBuilderUsed, got %v", err)
	}

	cfg := DefaultConfig()
	cfg.API.BaseURL = ""
	if _, err := New().WithConfig(cfg).Build(); err == nil {
		t.Fatal("expected invalid config to fail Build")
	}
}

func TestWithConfigTrimsTrailingSlash(t *testing.T) {
	cfg := DefaultConfig()
	cfg.API.BaseURL = "http://localhost:8080/api/v1/"
	c, err := New().WithConfig(cfg).Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer c.Close()

	if got := c.endpoint(PathLogin); got != "http://localhost:8080/api/v1/auth/login" {
		t.Fatalf("unexpected endpoint %q", got)
	}
}
