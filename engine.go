package goAccounts

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrEthical07/goAccounts/jwt"
	"github.com/MrEthical07/goAccounts/password"
)

// Engine runs the account flows. It holds no per-request state and is safe for
// concurrent use once built. Every flow re-reads the user through the Adapter.
type Engine struct {
	config   Config
	adapter  Adapter
	notifier Notifier
	logger   *slog.Logger
	policy   password.Policy
	hasher   *password.Argon2
	sessions *jwt.Manager
	metrics  *Metrics

	// dummyHash is verified against when the email is unknown or the account has no
	// password yet, so that Login takes roughly the same time in every case.
	dummyHash string
	verify    func(password, encoded string) (bool, error)

	now      func() time.Time
	newToken func() (string, error)
}

func (e *Engine) ready() error {
	if e == nil || e.adapter == nil || e.hasher == nil || e.sessions == nil {
		return ErrEngineNotReady
	}
	return nil
}

// Authenticate verifies a session token and returns the user id it asserts. Any
// verification failure is reported as ErrUnauthenticated.
func (e *Engine) Authenticate(ctx context.Context, sessionToken string) (string, error) {
	if err := e.ready(); err != nil {
		return "", err
	}

	claims, err := e.sessions.ParseSession(sessionToken)
	if err != nil {
		e.logger.DebugContext(ctx, "session token rejected", slog.String("error", err.Error()))
		return "", ErrUnauthenticated
	}
	return claims.UID, nil
}

// CurrentUser returns the caller's record.
func (e *Engine) CurrentUser(ctx context.Context) (*User, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	_, user, err := e.currentUser(ctx)
	return user, err
}

// MetricsSnapshot returns a copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil {
		return (*Metrics)(nil).Snapshot()
	}
	return e.metrics.Snapshot()
}

// currentUser resolves the caller id from ctx and loads the record. A caller whose
// record has disappeared is treated as unauthenticated.
func (e *Engine) currentUser(ctx context.Context) (string, *User, error) {
	id, ok := CurrentUserID(ctx)
	if !ok {
		return "", nil, ErrUnauthenticated
	}

	user, err := e.adapter.FindUserByID(ctx, id)
	if errors.Is(err, ErrUserNotFound) {
		return "", nil, ErrUnauthenticated
	}
	if err != nil {
		return "", nil, fmt.Errorf("find current user: %w", err)
	}
	return id, user, nil
}

// findByEmail returns (nil, nil) when the adapter reports no match.
func (e *Engine) findByEmail(ctx context.Context, email string) (*User, error) {
	user, err := e.adapter.FindUserByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return user, nil
}

func (e *Engine) hashPassword(pw string) (string, error) {
	start := time.Now()
	hash, err := e.hasher.Hash(pw)
	e.metrics.Observe(MetricPasswordHashLatency, time.Since(start))
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return hash, nil
}

// verifyPassword treats a missing or unreadable hash as a mismatch. A missing hash
// still costs one verification against dummyHash. Errors are only logged so that
// callers keep returning their uniform failure.
func (e *Engine) verifyPassword(ctx context.Context, user *User, pw string) bool {
	if user.PasswordHash == "" {
		_, _ = e.verify(pw, e.dummyHash)
		return false
	}
	ok, err := e.verify(pw, user.PasswordHash)
	if err != nil {
		e.logger.WarnContext(ctx, "stored password hash unreadable",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		return false
	}
	return ok
}

func (e *Engine) issueOpaqueToken() (string, error) {
	token, err := e.newToken()
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}
	return token, nil
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// notify runs a Notifier callback after the token it carries has been persisted.
// Delivery failures are returned, not retried.
func (e *Engine) notify(ctx context.Context, kind string, user *User, fn func(Notifier) error) error {
	if e.notifier == nil {
		return nil
	}
	if err := fn(e.notifier); err != nil {
		e.metricInc(MetricNotifyFailure)
		e.logger.ErrorContext(ctx, "token delivery failed",
			slog.String("kind", kind),
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("deliver %s: %w", kind, err)
	}
	return nil
}

// tokenMatches compares a stored single-use token with a supplied one. An unset
// stored token never matches.
func tokenMatches(stored, supplied string) bool {
	if stored == "" || supplied == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(supplied)) == 1
}
