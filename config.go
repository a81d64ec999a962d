package goAccounts

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
)

// EnvPrefix is prepended to every environment variable read by ConfigFromEnv.
const EnvPrefix = "GOACCOUNTS_"

// Config holds every tunable of the engine. Build it with DefaultConfig or
// ConfigFromEnv, adjust it, then hand it to Builder.WithConfig.
type Config struct {
	JWT               JWTConfig               `envPrefix:"JWT_"`
	Password          PasswordConfig          `envPrefix:"PASSWORD_"`
	PasswordReset     PasswordResetConfig     `envPrefix:"PASSWORD_RESET_"`
	EmailConfirmation EmailConfirmationConfig `envPrefix:"EMAIL_CONFIRMATION_"`
	Metrics           MetricsConfig           `envPrefix:"METRICS_"`

	// TrackLastLogin makes Login record LastLoginAt through Adapter.UpdateUser.
	TrackLastLogin bool `env:"TRACK_LAST_LOGIN"`
}

/*
====================================
JWT CONFIG
====================================
*/

// Secret is key material loaded from configuration. It never renders in logs.
type Secret []byte

// UnmarshalText lets env parsing take the raw string as bytes.
func (s *Secret) UnmarshalText(text []byte) error {
	*s = append((*s)[:0], text...)
	return nil
}

// LogValue implements slog.LogValuer.
func (s Secret) LogValue() slog.Value {
	if len(s) == 0 {
		return slog.StringValue("")
	}
	return slog.StringValue("[redacted]")
}

// JWTConfig configures session tokens. With "hs256", PrivateKey is the shared secret.
// With "ed25519", keys are raw or PEM encoded and PrivateKey may be omitted on
// verify-only deployments.
type JWTConfig struct {
	SigningMethod string        `env:"SIGNING_METHOD"`
	PrivateKey    Secret        `env:"PRIVATE_KEY"`
	PublicKey     Secret        `env:"PUBLIC_KEY"`
	TTL           time.Duration `env:"TTL"`
	Issuer        string        `env:"ISSUER"`
	Audience      string        `env:"AUDIENCE"`
	Leeway        time.Duration `env:"LEEWAY"`
	KeyID         string        `env:"KEY_ID"`
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig holds the strength policy and the argon2id cost parameters.
//
// Validate, when set, replaces the MinLength check entirely.
type PasswordConfig struct {
	MinLength int `env:"MIN_LENGTH"`
	Validate  func(password string) bool

	Memory         uint32 `env:"MEMORY_KB"`
	Time           uint32 `env:"TIME"`
	Parallelism    uint8  `env:"PARALLELISM"`
	SaltLength     uint32 `env:"SALT_LENGTH"`
	KeyLength      uint32 `env:"KEY_LENGTH"`
	UpgradeOnLogin bool   `env:"UPGRADE_ON_LOGIN"`
}

/*
====================================
PASSWORD RESET CONFIG
====================================
*/

// PasswordResetConfig controls reset token lifetime.
type PasswordResetConfig struct {
	TokenTTL time.Duration `env:"TOKEN_TTL"`
}

/*
====================================
EMAIL CONFIRMATION CONFIG
====================================
*/

// EmailConfirmationConfig toggles the confirm-your-email step after signup.
type EmailConfirmationConfig struct {
	Enabled          bool `env:"ENABLED"`
	RequiredForLogin bool `env:"REQUIRED_FOR_LOGIN"`
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig enables in-process counters.
type MetricsConfig struct {
	Enabled                 bool `env:"ENABLED"`
	EnableLatencyHistograms bool `env:"LATENCY_HISTOGRAMS"`
}

// DefaultConfig returns a configuration with every field except the JWT key material
// populated.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			SigningMethod: "hs256",
			TTL:           7 * 24 * time.Hour,
		},
		Password: PasswordConfig{
			MinLength:      8,
			Memory:         64 * 1024,
			Time:           1,
			Parallelism:    4,
			SaltLength:     16,
			KeyLength:      32,
			UpgradeOnLogin: true,
		},
		PasswordReset: PasswordResetConfig{
			TokenTTL: time.Hour,
		},
		EmailConfirmation: EmailConfirmationConfig{
			Enabled: true,
		},
	}
}

// ConfigFromEnv starts from DefaultConfig and overrides every field whose
// GOACCOUNTS_* variable is set, e.g. GOACCOUNTS_JWT_PRIVATE_KEY or
// GOACCOUNTS_PASSWORD_MIN_LENGTH.
func ConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first inconsistency in c. Argon2 cost floors are checked
// again when the hasher is constructed.
func (c *Config) Validate() error {
	switch c.JWT.SigningMethod {
	case "hs256":
		if len(c.JWT.PrivateKey) == 0 {
			return errors.New("hs256 requires PrivateKey")
		}
	case "ed25519":
		if len(c.JWT.PublicKey) == 0 {
			return errors.New("ed25519 requires PublicKey")
		}
		if len(c.JWT.PrivateKey) == 0 {
			return errors.New("ed25519 requires PrivateKey to issue session tokens")
		}
	default:
		return errors.New("unsupported JWT signing method")
	}
	if c.JWT.TTL < 0 {
		return errors.New("JWT TTL must be >= 0")
	}

	if c.Password.Validate == nil && c.Password.MinLength < 1 {
		return errors.New("Password MinLength must be >= 1")
	}

	if c.PasswordReset.TokenTTL <= 0 {
		return errors.New("PasswordReset TokenTTL must be > 0")
	}

	if c.EmailConfirmation.RequiredForLogin && !c.EmailConfirmation.Enabled {
		return errors.New("EmailConfirmation RequiredForLogin needs Enabled")
	}

	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics EnableLatencyHistograms needs Enabled")
	}

	return nil
}
