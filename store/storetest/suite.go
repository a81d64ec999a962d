// Package storetest holds behavior checks shared by every goAccounts.Adapter in this
// module. Adapter packages call Run from their own tests with a factory that returns
// an empty store.
package storetest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	goAccounts "github.com/MrEthical07/goAccounts"
)

// Factory returns an empty adapter for one subtest.
type Factory func(t *testing.T) goAccounts.Adapter

const (
	resetToken   = "6f1c3a52-3a8e-4b0e-9a7d-2c1f4e5b6a70"
	inviteToken  = "0d9e8f7a-6b5c-4d3e-8f1a-2b3c4d5e6f70"
	confirmToken = "a1b2c3d4-e5f6-4a7b-8c9d-0e1f2a3b4c5d"
)

// Run executes the shared checks against adapters produced by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("SignupThenFind", func(t *testing.T) { testSignupThenFind(t, newStore(t)) })
	t.Run("DuplicateEmail", func(t *testing.T) { testDuplicateEmail(t, newStore(t)) })
	t.Run("NotFound", func(t *testing.T) { testNotFound(t, newStore(t)) })
	t.Run("UpdateUser", func(t *testing.T) { testUpdateUser(t, newStore(t)) })
	t.Run("ResetTokenLifecycle", func(t *testing.T) { testResetTokenLifecycle(t, newStore(t)) })
	t.Run("ResetTokenExpired", func(t *testing.T) { testResetTokenExpired(t, newStore(t)) })
	t.Run("InviteLifecycle", func(t *testing.T) { testInviteLifecycle(t, newStore(t)) })
	t.Run("ConfirmEmail", func(t *testing.T) { testConfirmEmail(t, newStore(t)) })
	t.Run("ReissueEmailConfirmToken", func(t *testing.T) { testReissueEmailConfirmToken(t, newStore(t)) })
	t.Run("ResetSettlesPendingInvite", func(t *testing.T) { testResetSettlesPendingInvite(t, newStore(t)) })
	t.Run("InviteNeedsEmptyPassword", func(t *testing.T) { testInviteNeedsEmptyPassword(t, newStore(t)) })
	t.Run("ConcurrentConsumeSingleWinner", func(t *testing.T) { testConcurrentConsume(t, newStore(t)) })
}

func signup(t *testing.T, s goAccounts.Adapter, email string) *goAccounts.User {
	t.Helper()
	u, err := s.CreateUserBySignup(context.Background(), goAccounts.NewUser{
		Email:             email,
		Name:              "Kees",
		PasswordHash:      "hash-1",
		EmailConfirmToken: confirmToken,
	})
	require.NoError(t, err)
	return u
}

func testSignupThenFind(t *testing.T, s goAccounts.Adapter) {
	ctx := context.Background()
	created := signup(t, s, "kees@volst.nl")

	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "kees@volst.nl", created.Email)
	assert.Equal(t, "hash-1", created.PasswordHash)
	assert.False(t, created.EmailConfirmed)

	byEmail, err := s.FindUserByEmail(ctx, "kees@volst.nl")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byEmail.ID)
	assert.Equal(t, confirmToken, byEmail.EmailConfirmToken)

	byID, err := s.FindUserByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Kees", byID.Name)

	other := signup(t, s, "test@volst.nl")
	assert.NotEqual(t, created.ID, other.ID)
}

func testDuplicateEmail(t *testing.T, s goAccounts.Adapter) {
	ctx := context.Background()
	signup(t, s, "kees@volst.nl")

	_, err := s.CreateUserBySignup(ctx, goAccounts.NewUser{Email: "kees@volst.nl", PasswordHash: "x"})
	assert.ErrorIs(t, err, goAccounts.ErrDuplicateEmail)

	_, err = s.CreateUserByInvite(ctx, goAccounts.NewInvite{Email: "kees@volst.nl", InviteToken: inviteToken})
	assert.ErrorIs(t, err, goAccounts.ErrDuplicateEmail)
}

func testNotFound(t *testing.T, s goAccounts.Adapter) {
	ctx := context.Background()

	_, err := s.FindUserByEmail(ctx, "nobody@volst.nl")
	assert.ErrorIs(t, err, goAccounts.ErrUserNotFound)
	_, err = s.FindUserByResetToken(ctx, resetToken)
	assert.ErrorIs(t, err, goAccounts.ErrUserNotFound)

	name := "x"
	_, err = s.UpdateUser(ctx, "missing", goAccounts.UserPatch{Name: &name})
	assert.ErrorIs(t, err, goAccounts.ErrUserNotFound)
	_, err = s.UpdateUserPassword(ctx, "missing", "h")
	assert.ErrorIs(t, err, goAccounts.ErrUserNotFound)
}

func testUpdateUser(t *testing.T, s goAccounts.Adapter) {
	ctx := context.Background()
	u := signup(t, s, "kees@volst.nl")

	name := "Kees de Vries"
	at := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	updated, err := s.UpdateUser(ctx, u.ID, goAccounts.UserPatch{Name: &name, LastLoginAt: &at})
	require.NoError(t, err)
	assert.Equal(t, name, updated.Name)
	assert.True(t, at.Equal(updated.LastLoginAt))
	assert.Equal(t, "hash-1", updated.PasswordHash)

	updated, err = s.UpdateUserPassword(ctx, u.ID, "hash-2")
	require.NoError(t, err)
	assert.Equal(t, "hash-2", updated.PasswordHash)
	assert.Equal(t, name, updated.Name)
}

func testResetTokenLifecycle(t *testing.T, s goAccounts.Adapter) {
	ctx := context.Background()
	u := signup(t, s, "kees@volst.nl")
	now := time.Now().UTC()
	expires := now.Add(time.Hour)

	grant, err := s.UpdateUserResetToken(ctx, u.ID, resetToken, expires)
	require.NoError(t, err)
	assert.Equal(t, resetToken, grant.ResetToken)
	assert.WithinDuration(t, expires, grant.ResetExpires, time.Second)

	found, err := s.FindUserByResetToken(ctx, resetToken)
	require.NoError(t, err)
	assert.Equal(t, u.ID, found.ID)

	_, err = s.CompletePasswordReset(ctx, u.ID, inviteToken, "hash-2", now)
	assert.ErrorIs(t, err, goAccounts.ErrTokenMismatch)

	done, err := s.CompletePasswordReset(ctx, u.ID, resetToken, "hash-2", now)
	require.NoError(t, err)
	assert.Equal(t, "hash-2", done.PasswordHash)
	assert.Empty(t, done.ResetToken)
	assert.True(t, done.ResetExpires.IsZero())

	_, err = s.CompletePasswordReset(ctx, u.ID, resetToken, "hash-3", now)
	assert.ErrorIs(t, err, goAccounts.ErrTokenMismatch)
	_, err = s.FindUserByResetToken(ctx, resetToken)
	assert.ErrorIs(t, err, goAccounts.ErrUserNotFound)
}

func testResetTokenExpired(t *testing.T, s goAccounts.Adapter) {
	ctx := context.Background()
	u := signup(t, s, "kees@volst.nl")
	expires := time.Now().UTC().Add(time.Hour)

	_, err := s.UpdateUserResetToken(ctx, u.ID, resetToken, expires)
	require.NoError(t, err)

	_, err = s.CompletePasswordReset(ctx, u.ID, resetToken, "hash-2", expires.Add(time.Second))
	assert.ErrorIs(t, err, goAccounts.ErrTokenMismatch)

	stored, err := s.FindUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "hash-1", stored.PasswordHash)
}

func testInviteLifecycle(t *testing.T, s goAccounts.Adapter) {
	ctx := context.Background()

	placeholder, err := s.CreateUserByInvite(ctx, goAccounts.NewInvite{Email: "roger@volst.nl", InviteToken: inviteToken})
	require.NoError(t, err)
	assert.Empty(t, placeholder.PasswordHash)
	assert.Equal(t, inviteToken, placeholder.InviteToken)

	reissued, err := s.UpdateUserInviteToken(ctx, placeholder.ID, resetToken)
	require.NoError(t, err)
	assert.Equal(t, resetToken, reissued.InviteToken)

	_, err = s.CompleteInvite(ctx, placeholder.ID, inviteToken, "Roger", "hash-r")
	assert.ErrorIs(t, err, goAccounts.ErrTokenMismatch)

	accepted, err := s.CompleteInvite(ctx, placeholder.ID, resetToken, "Roger", "hash-r")
	require.NoError(t, err)
	assert.Equal(t, "Roger", accepted.Name)
	assert.Equal(t, "hash-r", accepted.PasswordHash)
	assert.Empty(t, accepted.InviteToken)
	assert.True(t, accepted.EmailConfirmed)

	_, err = s.CompleteInvite(ctx, placeholder.ID, resetToken, "Roger", "hash-x")
	assert.ErrorIs(t, err, goAccounts.ErrTokenMismatch)
}

func testReissueEmailConfirmToken(t *testing.T, s goAccounts.Adapter) {
	ctx := context.Background()
	u := signup(t, s, "kees@volst.nl")

	updated, err := s.UpdateUserEmailConfirmToken(ctx, u.ID, resetToken)
	require.NoError(t, err)
	assert.Equal(t, resetToken, updated.EmailConfirmToken)

	_, err = s.ConfirmEmail(ctx, u.ID, confirmToken)
	assert.ErrorIs(t, err, goAccounts.ErrTokenMismatch)

	confirmed, err := s.ConfirmEmail(ctx, u.ID, resetToken)
	require.NoError(t, err)
	assert.True(t, confirmed.EmailConfirmed)

	_, err = s.UpdateUserEmailConfirmToken(ctx, "missing", resetToken)
	assert.ErrorIs(t, err, goAccounts.ErrUserNotFound)
}

func testResetSettlesPendingInvite(t *testing.T, s goAccounts.Adapter) {
	ctx := context.Background()
	now := time.Now().UTC()

	placeholder, err := s.CreateUserByInvite(ctx, goAccounts.NewInvite{Email: "roger@volst.nl", InviteToken: inviteToken})
	require.NoError(t, err)
	_, err = s.UpdateUserResetToken(ctx, placeholder.ID, resetToken, now.Add(time.Hour))
	require.NoError(t, err)

	done, err := s.CompletePasswordReset(ctx, placeholder.ID, resetToken, "hash-r", now)
	require.NoError(t, err)
	assert.Empty(t, done.InviteToken)
	assert.True(t, done.EmailConfirmed)
	assert.Equal(t, goAccounts.AccountActive, done.State())

	_, err = s.CompleteInvite(ctx, placeholder.ID, inviteToken, "Mallory", "hash-x")
	assert.ErrorIs(t, err, goAccounts.ErrTokenMismatch)

	stored, err := s.FindUserByID(ctx, placeholder.ID)
	require.NoError(t, err)
	assert.Equal(t, "hash-r", stored.PasswordHash)
	assert.Empty(t, stored.InviteToken)
}

func testInviteNeedsEmptyPassword(t *testing.T, s goAccounts.Adapter) {
	ctx := context.Background()
	u := signup(t, s, "kees@volst.nl")

	_, err := s.UpdateUserInviteToken(ctx, u.ID, inviteToken)
	require.NoError(t, err)

	_, err = s.CompleteInvite(ctx, u.ID, inviteToken, "Mallory", "hash-x")
	assert.ErrorIs(t, err, goAccounts.ErrTokenMismatch)

	stored, err := s.FindUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "hash-1", stored.PasswordHash)
}

func testConfirmEmail(t *testing.T, s goAccounts.Adapter) {
	ctx := context.Background()
	u := signup(t, s, "kees@volst.nl")

	_, err := s.ConfirmEmail(ctx, u.ID, resetToken)
	assert.ErrorIs(t, err, goAccounts.ErrTokenMismatch)

	confirmed, err := s.ConfirmEmail(ctx, u.ID, confirmToken)
	require.NoError(t, err)
	assert.True(t, confirmed.EmailConfirmed)
	assert.Empty(t, confirmed.EmailConfirmToken)

	_, err = s.ConfirmEmail(ctx, u.ID, confirmToken)
	assert.ErrorIs(t, err, goAccounts.ErrTokenMismatch)
}

func testConcurrentConsume(t *testing.T, s goAccounts.Adapter) {
	ctx := context.Background()
	u := signup(t, s, "kees@volst.nl")
	now := time.Now().UTC()
	_, err := s.UpdateUserResetToken(ctx, u.ID, resetToken, now.Add(time.Hour))
	require.NoError(t, err)

	const workers = 8
	var (
		wg       sync.WaitGroup
		wins     atomic.Int32
		unknowns atomic.Int32
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.CompletePasswordReset(ctx, u.ID, resetToken, "hash-2", now)
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, goAccounts.ErrTokenMismatch):
			default:
				unknowns.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	assert.Zero(t, unknowns.Load())
}
