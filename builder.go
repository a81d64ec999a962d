package goAccounts

import (
	"errors"
	"log/slog"
	"time"

	"github.com/MrEthical07/goAccounts/internal"
	"github.com/MrEthical07/goAccounts/jwt"
	"github.com/MrEthical07/goAccounts/password"
)

// Builder assembles an Engine. It is not safe for concurrent use and can build once.
type Builder struct {
	config Config

	adapter  Adapter
	notifier Notifier
	logger   *slog.Logger

	passwordRule func(string) error

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithAdapter sets the persistence adapter. Required.
func (b *Builder) WithAdapter(a Adapter) *Builder {
	b.adapter = a
	return b
}

// WithNotifier sets the out-of-band token delivery hook. Optional.
func (b *Builder) WithNotifier(n Notifier) *Builder {
	b.notifier = n
	return b
}

// WithLogger sets the structured logger. Without one the engine logs nothing.
func (b *Builder) WithLogger(l *slog.Logger) *Builder {
	b.logger = l
	return b
}

// WithPasswordValidator installs a predicate that replaces the minimum length check.
// A false result is reported as ErrWeakPassword.
func (b *Builder) WithPasswordValidator(fn func(password string) bool) *Builder {
	b.config.Password.Validate = fn
	return b
}

// WithPasswordRule installs a check whose error is returned to the caller unchanged.
// It takes precedence over WithPasswordValidator.
func (b *Builder) WithPasswordRule(fn func(password string) error) *Builder {
	b.passwordRule = fn
	return b
}

// WithMetricsEnabled toggles in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the password hashing latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and returns a ready Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.adapter == nil {
		return nil, errors.New("adapter is required")
	}
	if err := b.config.Validate(); err != nil {
		return nil, err
	}

	hasher, err := password.NewArgon2(password.HashConfig{
		Memory:      b.config.Password.Memory,
		Time:        b.config.Password.Time,
		Parallelism: b.config.Password.Parallelism,
		SaltLength:  b.config.Password.SaltLength,
		KeyLength:   b.config.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}

	sessions, err := jwt.NewManager(jwt.Config{
		TTL:           b.config.JWT.TTL,
		SigningMethod: jwt.SigningMethod(b.config.JWT.SigningMethod),
		PrivateKey:    b.config.JWT.PrivateKey,
		PublicKey:     b.config.JWT.PublicKey,
		Issuer:        b.config.JWT.Issuer,
		Audience:      b.config.JWT.Audience,
		Leeway:        b.config.JWT.Leeway,
		KeyID:         b.config.JWT.KeyID,
	})
	if err != nil {
		return nil, err
	}

	dummyHash, err := hasher.Hash("goaccounts-unknown-user")
	if err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	b.built = true

	return &Engine{
		config:   cloneConfig(b.config),
		adapter:  b.adapter,
		notifier: b.notifier,
		logger:   logger.With(slog.String("component", "goaccounts")),
		policy: password.Policy{
			MinLength: b.config.Password.MinLength,
			Predicate: b.config.Password.Validate,
			Rule:      b.passwordRule,
		},
		hasher:   hasher,
		sessions: sessions,
		metrics:  NewMetrics(b.config.Metrics),

		dummyHash: dummyHash,
		verify:    hasher.Verify,
		now:       time.Now,
		newToken:  internal.NewOpaqueToken,
	}, nil
}
