package goAccounts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// UpdateCurrentUser applies a profile patch to the caller's record. Email and password
// cannot be changed through this path.
func (e *Engine) UpdateCurrentUser(ctx context.Context, in ProfileUpdate) (*User, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	id, _, err := e.currentUser(ctx)
	if err != nil {
		return nil, err
	}

	user, err := e.adapter.UpdateUser(ctx, id, UserPatch{Name: in.Name})
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrUnauthenticated
	}
	if err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}

	e.metricInc(MetricProfileUpdate)
	return user, nil
}

// ChangePassword replaces the caller's password after checking the old one. The old
// password is verified before the new one is run through the policy.
func (e *Engine) ChangePassword(ctx context.Context, oldPassword, newPassword string) (*User, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	id, user, err := e.currentUser(ctx)
	if err != nil {
		return nil, err
	}

	if !e.verifyPassword(ctx, user, oldPassword) {
		e.metricInc(MetricPasswordChangeInvalidOld)
		return nil, ErrInvalidOldPassword
	}
	if err := e.policy.Validate(newPassword); err != nil {
		return nil, err
	}

	hash, err := e.hashPassword(newPassword)
	if err != nil {
		return nil, err
	}

	updated, err := e.adapter.UpdateUserPassword(ctx, id, hash)
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrUnauthenticated
	}
	if err != nil {
		return nil, fmt.Errorf("update password: %w", err)
	}

	e.metricInc(MetricPasswordChangeSuccess)
	e.logger.InfoContext(ctx, "password changed", slog.String("user_id", id))
	return updated, nil
}
