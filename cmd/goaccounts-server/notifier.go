package main

import (
	"context"
	"log/slog"

	goAccounts "github.com/MrEthical07/goAccounts"
)

// logNotifier stands in for an email sender. Tokens are logged at debug level only.
type logNotifier struct {
	logger *slog.Logger
}

func (n logNotifier) PasswordReset(ctx context.Context, user goAccounts.User, token string) error {
	n.send(ctx, "password_reset", user, token)
	return nil
}

func (n logNotifier) Invite(ctx context.Context, user goAccounts.User, token string) error {
	n.send(ctx, "invite", user, token)
	return nil
}

func (n logNotifier) EmailConfirmation(ctx context.Context, user goAccounts.User, token string) error {
	n.send(ctx, "email_confirmation", user, token)
	return nil
}

func (n logNotifier) send(ctx context.Context, kind string, user goAccounts.User, token string) {
	n.logger.InfoContext(ctx, "notification queued", "kind", kind, "user_id", user.ID)
	n.logger.DebugContext(ctx, "notification token", "kind", kind, "email", user.Email, "token", token)
}
