package goAccounts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Signup creates an account and returns a session token for it.
//
// The password policy runs first, then the email uniqueness check, and only then is
// anything hashed or written. When email confirmation is enabled the new record
// carries a fresh confirm token, which is handed to the Notifier; otherwise the
// account starts confirmed. A failed delivery does not fail the signup.
func (e *Engine) Signup(ctx context.Context, in SignupInput) (*AuthPayload, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Email) == "" {
		return nil, ErrInvalidEmail
	}
	if err := e.policy.Validate(in.Password); err != nil {
		e.metricInc(MetricSignupWeakPassword)
		return nil, err
	}

	existing, err := e.findByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		e.metricInc(MetricSignupDuplicate)
		return nil, ErrUserExists
	}

	hash, err := e.hashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	rec := NewUser{
		Email:          in.Email,
		Name:           in.Name,
		PasswordHash:   hash,
		EmailConfirmed: !e.config.EmailConfirmation.Enabled,
	}
	if e.config.EmailConfirmation.Enabled {
		if rec.EmailConfirmToken, err = e.issueOpaqueToken(); err != nil {
			return nil, err
		}
	}

	user, err := e.adapter.CreateUserBySignup(ctx, rec)
	if errors.Is(err, ErrDuplicateEmail) {
		e.metricInc(MetricSignupDuplicate)
		return nil, ErrUserExists
	}
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	token, err := e.sessions.IssueSession(user.ID)
	if err != nil {
		return nil, fmt.Errorf("issue session token: %w", err)
	}

	e.metricInc(MetricSignupSuccess)
	e.logger.InfoContext(ctx, "user signed up", slog.String("user_id", user.ID))

	if rec.EmailConfirmToken != "" {
		// The account exists at this point, so a delivery failure is only logged and
		// counted. ResendEmailConfirmation issues a new token.
		_ = e.notify(ctx, "email confirmation", user, func(n Notifier) error {
			return n.EmailConfirmation(ctx, *user, rec.EmailConfirmToken)
		})
	}

	return &AuthPayload{Token: token, User: user}, nil
}

// ConfirmEmail consumes the email-confirm token of the account registered under email
// and marks the address confirmed. A wrong, missing or already used token fails with
// ErrInvalidEmailConfirmToken.
func (e *Engine) ConfirmEmail(ctx context.Context, email, emailConfirmToken string) (*User, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	user, err := e.findByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil || !tokenMatches(user.EmailConfirmToken, emailConfirmToken) {
		e.metricInc(MetricEmailConfirmFailure)
		return nil, ErrInvalidEmailConfirmToken
	}

	confirmed, err := e.adapter.ConfirmEmail(ctx, user.ID, emailConfirmToken)
	if errors.Is(err, ErrTokenMismatch) || errors.Is(err, ErrUserNotFound) {
		e.metricInc(MetricTokenConsumeConflict)
		e.metricInc(MetricEmailConfirmFailure)
		return nil, ErrInvalidEmailConfirmToken
	}
	if err != nil {
		return nil, fmt.Errorf("confirm email: %w", err)
	}

	e.metricInc(MetricEmailConfirmSuccess)
	e.logger.InfoContext(ctx, "email confirmed", slog.String("user_id", confirmed.ID))
	return confirmed, nil
}

// ResendEmailConfirmation replaces the email-confirm token of an unconfirmed signup
// and delivers the new one. Unknown, already confirmed and invited addresses get the
// same acknowledgement without a write, as does every address when confirmation is
// disabled. Delivery failures are returned; the caller may simply retry.
func (e *Engine) ResendEmailConfirmation(ctx context.Context, email string) (*OK, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if !e.config.EmailConfirmation.Enabled {
		return &OK{OK: true}, nil
	}

	user, err := e.findByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil || user.EmailConfirmed || user.PasswordHash == "" {
		return &OK{OK: true}, nil
	}

	token, err := e.issueOpaqueToken()
	if err != nil {
		return nil, err
	}
	updated, err := e.adapter.UpdateUserEmailConfirmToken(ctx, user.ID, token)
	if errors.Is(err, ErrUserNotFound) {
		return &OK{OK: true}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store email confirm token: %w", err)
	}

	e.metricInc(MetricEmailConfirmResent)
	err = e.notify(ctx, "email confirmation", updated, func(n Notifier) error {
		return n.EmailConfirmation(ctx, *updated, token)
	})
	if err != nil {
		return nil, err
	}
	return &OK{OK: true}, nil
}
