package goAccounts

import "context"

type currentUserIDContextKey struct{}

// WithCurrentUserID attaches the authenticated caller's user id to ctx. Operations
// that act on "the current user" (UpdateCurrentUser, ChangePassword, InviteUser,
// CurrentUser) read it back and fail with ErrUnauthenticated when it is missing.
//
// The middleware package sets it after verifying a bearer session token.
func WithCurrentUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, currentUserIDContextKey{}, userID)
}

// CurrentUserID returns the caller id stored by WithCurrentUserID.
func CurrentUserID(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, _ := ctx.Value(currentUserIDContextKey{}).(string)
	return id, id != ""
}
