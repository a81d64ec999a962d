package goAccounts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Login checks email and password and returns a fresh session token.
//
// An unknown email, an account without a password (a pending invite) and a wrong
// password all fail with ErrNoUserFound. Each of these paths runs exactly one argon2
// verification.
func (e *Engine) Login(ctx context.Context, email, pw string) (*AuthPayload, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	user, err := e.findByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		_, _ = e.verify(pw, e.dummyHash)
		e.metricInc(MetricLoginFailure)
		return nil, ErrNoUserFound
	}
	if !e.verifyPassword(ctx, user, pw) {
		e.metricInc(MetricLoginFailure)
		return nil, ErrNoUserFound
	}

	if e.config.EmailConfirmation.RequiredForLogin && !user.EmailConfirmed {
		e.metricInc(MetricLoginUnconfirmed)
		return nil, ErrEmailNotConfirmed
	}

	if e.config.Password.UpgradeOnLogin {
		e.rehashIfNeeded(ctx, user, pw)
	}

	if e.config.TrackLastLogin {
		now := e.now().UTC()
		updated, err := e.adapter.UpdateUser(ctx, user.ID, UserPatch{LastLoginAt: &now})
		if err != nil {
			return nil, fmt.Errorf("record last login: %w", err)
		}
		user = updated
	}

	token, err := e.sessions.IssueSession(user.ID)
	if err != nil {
		return nil, fmt.Errorf("issue session token: %w", err)
	}

	e.metricInc(MetricLoginSuccess)
	e.logger.DebugContext(ctx, "user logged in", slog.String("user_id", user.ID))
	return &AuthPayload{Token: token, User: user}, nil
}

// rehashIfNeeded upgrades a hash produced with weaker argon2 parameters. Failures are
// logged and leave the old hash in place; the login itself already succeeded.
func (e *Engine) rehashIfNeeded(ctx context.Context, user *User, pw string) {
	needs, err := e.hasher.NeedsRehash(user.PasswordHash)
	if err != nil || !needs {
		return
	}

	hash, err := e.hashPassword(pw)
	if err == nil {
		var updated *User
		updated, err = e.adapter.UpdateUserPassword(ctx, user.ID, hash)
		if err == nil {
			*user = *updated
			e.metricInc(MetricPasswordRehash)
			return
		}
	}
	if !errors.Is(err, context.Canceled) {
		e.logger.WarnContext(ctx, "password rehash failed",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}
}
