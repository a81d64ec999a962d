package goAccounts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// InviteUser creates a password-less placeholder for email carrying a fresh invite
// token and returns its id. The caller must be authenticated.
//
// Inviting an address whose invite is still pending issues a new token and
// invalidates the previous one. Inviting an address that already belongs to an
// active account fails with ErrUserExists.
func (e *Engine) InviteUser(ctx context.Context, in InviteInput) (*InviteResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	inviterID, _, err := e.currentUser(ctx)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Email) == "" {
		return nil, ErrInvalidEmail
	}

	existing, err := e.findByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.PasswordHash != "" {
		return nil, ErrUserExists
	}

	token, err := e.issueOpaqueToken()
	if err != nil {
		return nil, err
	}

	var user *User
	if existing != nil {
		user, err = e.adapter.UpdateUserInviteToken(ctx, existing.ID, token)
		if err != nil {
			return nil, fmt.Errorf("reissue invite token: %w", err)
		}
		e.metricInc(MetricInviteReissued)
	} else {
		user, err = e.adapter.CreateUserByInvite(ctx, NewInvite{Email: in.Email, InviteToken: token})
		if errors.Is(err, ErrDuplicateEmail) {
			return nil, ErrUserExists
		}
		if err != nil {
			return nil, fmt.Errorf("create invited user: %w", err)
		}
		e.metricInc(MetricInviteCreated)
	}

	e.logger.InfoContext(ctx, "user invited",
		slog.String("user_id", user.ID),
		slog.String("invited_by", inviterID),
	)

	err = e.notify(ctx, "invite", user, func(n Notifier) error {
		return n.Invite(ctx, *user, token)
	})
	if err != nil {
		return nil, err
	}

	return &InviteResult{ID: user.ID, InviteToken: token}, nil
}

// SignupByInvite accepts an invite: it sets the name and password of the placeholder
// registered under in.Email and consumes its invite token. The email counts as
// confirmed since the invite was delivered to it. No session token is returned; the
// caller logs in separately.
func (e *Engine) SignupByInvite(ctx context.Context, in SignupInput, inviteToken string) (*User, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	user, err := e.findByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if user == nil || user.PasswordHash != "" || !tokenMatches(user.InviteToken, inviteToken) {
		e.metricInc(MetricInviteInvalid)
		return nil, ErrInvalidInviteToken
	}

	if err := e.policy.Validate(in.Password); err != nil {
		return nil, err
	}

	hash, err := e.hashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	accepted, err := e.adapter.CompleteInvite(ctx, user.ID, inviteToken, in.Name, hash)
	if errors.Is(err, ErrTokenMismatch) || errors.Is(err, ErrUserNotFound) {
		e.metricInc(MetricTokenConsumeConflict)
		e.metricInc(MetricInviteInvalid)
		return nil, ErrInvalidInviteToken
	}
	if err != nil {
		return nil, fmt.Errorf("complete invite: %w", err)
	}

	e.metricInc(MetricInviteAccepted)
	e.logger.InfoContext(ctx, "invite accepted", slog.String("user_id", accepted.ID))
	return accepted, nil
}
