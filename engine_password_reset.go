package goAccounts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrEthical07/goAccounts/internal"
)

// TriggerPasswordReset issues a reset token for email and hands it to the Notifier.
//
// The result is {OK: true} whether or not the email is registered; for an unknown
// email nothing is written. A new trigger replaces any earlier live token.
func (e *Engine) TriggerPasswordReset(ctx context.Context, email string) (*OK, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	user, err := e.findByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		e.metricInc(MetricPasswordResetUnknownEmail)
		return &OK{OK: true}, nil
	}

	token, err := e.issueOpaqueToken()
	if err != nil {
		return nil, err
	}
	expires := e.now().Add(e.config.PasswordReset.TokenTTL).UTC()

	grant, err := e.adapter.UpdateUserResetToken(ctx, user.ID, token, expires)
	if errors.Is(err, ErrUserNotFound) {
		e.metricInc(MetricPasswordResetUnknownEmail)
		return &OK{OK: true}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store reset token: %w", err)
	}

	e.metricInc(MetricPasswordResetRequest)
	e.logger.InfoContext(ctx, "password reset requested",
		slog.String("user_id", user.ID),
		slog.Time("expires", grant.ResetExpires),
	)

	user.ResetToken = grant.ResetToken
	user.ResetExpires = grant.ResetExpires
	err = e.notify(ctx, "password reset", user, func(n Notifier) error {
		return n.PasswordReset(ctx, *user, grant.ResetToken)
	})
	if err != nil {
		return nil, err
	}

	return &OK{OK: true}, nil
}

// PasswordReset sets a new password using a reset token.
//
// An unknown email, a token that does not match, a token that was already used and a
// token past its expiry all fail with ErrNoUserFound. The token and its expiry are
// cleared in the same adapter write that stores the new hash.
func (e *Engine) PasswordReset(ctx context.Context, email, pw, resetToken string) (*User, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	now := e.now()

	user, err := e.findByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil || !resetTokenUsable(user, resetToken, now) {
		e.metricInc(MetricPasswordResetFailure)
		return nil, ErrNoUserFound
	}

	if err := e.policy.Validate(pw); err != nil {
		return nil, err
	}

	hash, err := e.hashPassword(pw)
	if err != nil {
		return nil, err
	}

	updated, err := e.adapter.CompletePasswordReset(ctx, user.ID, resetToken, hash, now)
	if errors.Is(err, ErrTokenMismatch) || errors.Is(err, ErrUserNotFound) {
		e.metricInc(MetricTokenConsumeConflict)
		e.metricInc(MetricPasswordResetFailure)
		return nil, ErrNoUserFound
	}
	if err != nil {
		return nil, fmt.Errorf("complete password reset: %w", err)
	}

	e.metricInc(MetricPasswordResetSuccess)
	e.logger.InfoContext(ctx, "password reset completed", slog.String("user_id", updated.ID))
	return updated, nil
}

// CheckResetToken reports whether resetToken would currently be accepted by
// PasswordReset. It lets a reset page reject stale links before asking for a new
// password. Rejections use ErrNoUserFound.
func (e *Engine) CheckResetToken(ctx context.Context, resetToken string) error {
	if err := e.ready(); err != nil {
		return err
	}
	if !internal.ValidOpaqueToken(resetToken) {
		return ErrNoUserFound
	}

	user, err := e.adapter.FindUserByResetToken(ctx, resetToken)
	if errors.Is(err, ErrUserNotFound) {
		return ErrNoUserFound
	}
	if err != nil {
		return fmt.Errorf("find user by reset token: %w", err)
	}
	if !resetTokenUsable(user, resetToken, e.now()) {
		return ErrNoUserFound
	}
	return nil
}

func resetTokenUsable(user *User, token string, now time.Time) bool {
	if !tokenMatches(user.ResetToken, token) {
		return false
	}
	return !user.ResetExpires.IsZero() && now.Before(user.ResetExpires)
}
