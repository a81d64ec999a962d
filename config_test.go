package goAccounts

import (
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{
			name:      "test defaults",
			mutate:    func(*Config) {},
			wantValid: true,
		},
		{
			name: "hs256 without key",
			mutate: func(c *Config) {
				c.JWT.PrivateKey = nil
			},
			wantValid: false,
		},
		{
			name: "unknown signing method",
			mutate: func(c *Config) {
				c.JWT.SigningMethod = "rs256"
			},
			wantValid: false,
		},
		{
			name: "ed25519 without public key",
			mutate: func(c *Config) {
				c.JWT.SigningMethod = "ed25519"
			},
			wantValid: false,
		},
		{
			name: "negative session ttl",
			mutate: func(c *Config) {
				c.JWT.TTL = -time.Second
			},
			wantValid: false,
		},
		{
			name: "zero session ttl",
			mutate: func(c *Config) {
				c.JWT.TTL = 0
			},
			wantValid: true,
		},
		{
			name: "zero min length",
			mutate: func(c *Config) {
				c.Password.MinLength = 0
			},
			wantValid: false,
		},
		{
			name: "zero min length with predicate",
			mutate: func(c *Config) {
				c.Password.MinLength = 0
				c.Password.Validate = func(string) bool { return true }
			},
			wantValid: true,
		},
		{
			name: "zero reset ttl",
			mutate: func(c *Config) {
				c.PasswordReset.TokenTTL = 0
			},
			wantValid: false,
		},
		{
			name: "confirmation required but disabled",
			mutate: func(c *Config) {
				c.EmailConfirmation.Enabled = false
				c.EmailConfirmation.RequiredForLogin = true
			},
			wantValid: false,
		},
		{
			name: "histograms without metrics",
			mutate: func(c *Config) {
				c.Metrics.Enabled = false
				c.Metrics.EnableLatencyHistograms = true
			},
			wantValid: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := engineTestConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantValid && err != nil {
				t.Fatalf("expected valid config, got %v", err)
			}
			if !tc.wantValid && err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("GOACCOUNTS_JWT_PRIVATE_KEY", "env-secret-env-secret")
	t.Setenv("GOACCOUNTS_JWT_TTL", "2h")
	t.Setenv("GOACCOUNTS_PASSWORD_MIN_LENGTH", "12")
	t.Setenv("GOACCOUNTS_PASSWORD_RESET_TOKEN_TTL", "15m")
	t.Setenv("GOACCOUNTS_EMAIL_CONFIRMATION_ENABLED", "false")
	t.Setenv("GOACCOUNTS_TRACK_LAST_LOGIN", "true")

	cfg, err := ConfigFromEnv()
	if err != nil {
		t.Fatalf("ConfigFromEnv failed: %v", err)
	}
	if string(cfg.JWT.PrivateKey) != "env-secret-env-secret" {
		t.Fatalf("unexpected key %q", cfg.JWT.PrivateKey)
	}
	if cfg.JWT.TTL != 2*time.Hour || cfg.Password.MinLength != 12 || cfg.PasswordReset.TokenTTL != 15*time.Minute {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.EmailConfirmation.Enabled || !cfg.TrackLastLogin {
		t.Fatal("boolean overrides not applied")
	}
	if cfg.JWT.SigningMethod != "hs256" || cfg.Password.Memory != 64*1024 {
		t.Fatal("defaults should survive for unset variables")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("env config should validate: %v", err)
	}
}

func TestConfigFromEnvBadValue(t *testing.T) {
	t.Setenv("GOACCOUNTS_PASSWORD_MIN_LENGTH", "twelve")

	_, err := ConfigFromEnv()
	if err == nil || !strings.HasPrefix(err.Error(), "parse env:") {
		t.Fatalf("expected wrapped parse error, got %v", err)
	}
}

func TestSecretIsRedactedInLogs(t *testing.T) {
	s := Secret("super-secret-value")
	if got := s.LogValue().String(); got != "[redacted]" {
		t.Fatalf("expected redacted value, got %q", got)
	}
	if got := fmt.Sprint(slog.Any("k", s).Value.Resolve()); strings.Contains(got, "super") {
		t.Fatalf("secret leaked: %q", got)
	}
}

func TestBuildRequiresAdapter(t *testing.T) {
	_, err := New().WithConfig(engineTestConfig()).Build()
	if err == nil {
		t.Fatal("expected error without adapter")
	}
}

func TestBuildRejectsInvalidConfig(t *testing.T) {
	cfg := engineTestConfig()
	cfg.JWT.PrivateKey = Secret("short")
	_, err := New().WithConfig(cfg).WithAdapter(newMockAdapter()).Build()
	if err == nil {
		t.Fatal("expected error for a short hs256 key")
	}
}

func TestBuilderSingleUse(t *testing.T) {
	b := New().WithConfig(engineTestConfig()).WithAdapter(newMockAdapter())
	if _, err := b.Build(); err != nil {
		t.Fatalf("first Build failed: %v", err)
	}
	if _, err := b.Build(); err == nil {
		t.Fatal("second Build should fail")
	}
}

func TestWithConfigCopiesKeyMaterial(t *testing.T) {
	cfg := engineTestConfig()
	b := New().WithConfig(cfg).WithAdapter(seededAdapter(t))
	cfg.JWT.PrivateKey[0] = 'X'

	e, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if e.config.JWT.PrivateKey[0] != 't' {
		t.Fatal("caller mutation leaked into the engine")
	}
}
