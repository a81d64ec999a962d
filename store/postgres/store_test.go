package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	goAccounts "github.com/MrEthical07/goAccounts"
)

var userCols = []string{
	"id", "email", "name", "password_hash", "reset_token", "reset_expires",
	"invite_token", "email_confirm_token", "email_confirmed", "created_at", "last_login_at",
}

var created = time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)

const testID = "01JABCDEF0123456789ABCDEFG"

func newMockStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err, "failed to create mock")
	t.Cleanup(mock.Close)

	s := New(mock)
	s.newID = func() string { return testID }
	return s, mock
}

// keesRow returns a complete user row with optional overrides applied by fn.
func keesRow(fn func(r []any)) *pgxmock.Rows {
	r := []any{
		testID, "kees@volst.nl", "Kees", "hash-1", "", (*time.Time)(nil),
		"", "", true, created, (*time.Time)(nil),
	}
	if fn != nil {
		fn(r)
	}
	return pgxmock.NewRows(userCols).AddRow(r...)
}

func TestFindUserByEmail(t *testing.T) {
	tests := []struct {
		name      string
		setupMock func(mock pgxmock.PgxPoolIface)
		wantErr   error
		wantName  string
	}{
		{
			name: "found",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`FROM users WHERE lower\(email\) = lower\(\$1\)`).
					WithArgs("Kees@volst.nl").
					WillReturnRows(keesRow(nil))
			},
			wantName: "Kees",
		},
		{
			name: "not found",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`FROM users WHERE lower\(email\)`).
					WithArgs("Kees@volst.nl").
					WillReturnRows(pgxmock.NewRows(userCols))
			},
			wantErr: goAccounts.ErrUserNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock := newMockStore(t)
			tt.setupMock(mock)

			u, err := s.FindUserByEmail(context.Background(), "Kees@volst.nl")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantName, u.Name)
				assert.Equal(t, testID, u.ID)
				assert.True(t, u.ResetExpires.IsZero())
			}
			assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
		})
	}
}

func TestFindUserByIDDatabaseError(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(`FROM users WHERE id = \$1`).
		WithArgs("x").
		WillReturnError(errors.New("connection refused"))

	_, err := s.FindUserByID(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.NotErrorIs(t, err, goAccounts.ErrUserNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindUserByResetTokenEmpty(t *testing.T) {
	s, mock := newMockStore(t)

	_, err := s.FindUserByResetToken(context.Background(), "")
	assert.ErrorIs(t, err, goAccounts.ErrUserNotFound)
	assert.NoError(t, mock.ExpectationsWereMet(), "no query expected")
}

func TestCreateUserBySignup(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs(testID, "kees@volst.nl", "Kees", "hash-1", "confirm-tok", false).
		WillReturnRows(keesRow(func(r []any) {
			r[7] = "confirm-tok"
			r[8] = false
		}))

	u, err := s.CreateUserBySignup(context.Background(), goAccounts.NewUser{
		Email:             "kees@volst.nl",
		Name:              "Kees",
		PasswordHash:      "hash-1",
		EmailConfirmToken: "confirm-tok",
	})
	require.NoError(t, err)
	assert.Equal(t, testID, u.ID)
	assert.Equal(t, "confirm-tok", u.EmailConfirmToken)
	assert.False(t, u.EmailConfirmed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs(testID, "kees@volst.nl", "tok").
		WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "users_email_lower_key"})

	_, err := s.CreateUserByInvite(context.Background(), goAccounts.NewInvite{Email: "kees@volst.nl", InviteToken: "tok"})
	assert.ErrorIs(t, err, goAccounts.ErrDuplicateEmail)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateUserPatch(t *testing.T) {
	s, mock := newMockStore(t)
	name := "Kees de Vries"
	mock.ExpectQuery(`UPDATE users SET name = COALESCE`).
		WithArgs(testID, &name, (*time.Time)(nil)).
		WillReturnRows(keesRow(func(r []any) { r[2] = name }))

	u, err := s.UpdateUser(context.Background(), testID, goAccounts.UserPatch{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, name, u.Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateUserResetToken(t *testing.T) {
	s, mock := newMockStore(t)
	expires := created.Add(time.Hour)
	mock.ExpectQuery(`UPDATE users SET reset_token = \$2, reset_expires = \$3`).
		WithArgs(testID, "reset-tok", expires).
		WillReturnRows(keesRow(func(r []any) {
			r[4] = "reset-tok"
			r[5] = &expires
		}))

	grant, err := s.UpdateUserResetToken(context.Background(), testID, "reset-tok", expires)
	require.NoError(t, err)
	assert.Equal(t, "reset-tok", grant.ResetToken)
	assert.True(t, expires.Equal(grant.ResetExpires))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCompletePasswordReset(t *testing.T) {
	now := created.Add(10 * time.Minute)

	t.Run("consumed", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectQuery(`UPDATE users SET password_hash = \$3, reset_token = '', reset_expires = NULL,\s+email_confirmed = email_confirmed OR invite_token <> '', invite_token = ''`).
			WithArgs(testID, "reset-tok", "hash-2", now).
			WillReturnRows(keesRow(func(r []any) { r[3] = "hash-2" }))

		u, err := s.CompletePasswordReset(context.Background(), testID, "reset-tok", "hash-2", now)
		require.NoError(t, err)
		assert.Equal(t, "hash-2", u.PasswordHash)
		assert.Empty(t, u.ResetToken)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("token no longer matches", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectQuery(`UPDATE users SET password_hash = \$3`).
			WithArgs(testID, "reset-tok", "hash-2", now).
			WillReturnRows(pgxmock.NewRows(userCols))

		_, err := s.CompletePasswordReset(context.Background(), testID, "reset-tok", "hash-2", now)
		assert.ErrorIs(t, err, goAccounts.ErrTokenMismatch)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestCompleteInvite(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(`(?s)UPDATE users SET name = \$3, password_hash = \$4, invite_token = ''.*AND password_hash = ''`).
		WithArgs(testID, "invite-tok", "Roger", "hash-r").
		WillReturnRows(keesRow(func(r []any) {
			r[1] = "roger@volst.nl"
			r[2] = "Roger"
			r[3] = "hash-r"
		}))

	u, err := s.CompleteInvite(context.Background(), testID, "invite-tok", "Roger", "hash-r")
	require.NoError(t, err)
	assert.Equal(t, "Roger", u.Name)
	assert.True(t, u.EmailConfirmed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConfirmEmailMismatch(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(`UPDATE users SET email_confirm_token = ''`).
		WithArgs(testID, "wrong").
		WillReturnRows(pgxmock.NewRows(userCols))

	_, err := s.ConfirmEmail(context.Background(), testID, "wrong")
	assert.ErrorIs(t, err, goAccounts.ErrTokenMismatch)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateUserEmailConfirmToken(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(`UPDATE users SET email_confirm_token = \$2`).
		WithArgs(testID, "confirm-2").
		WillReturnRows(keesRow(func(r []any) {
			r[7] = "confirm-2"
			r[8] = false
		}))

	u, err := s.UpdateUserEmailConfirmToken(context.Background(), testID, "confirm-2")
	require.NoError(t, err)
	assert.Equal(t, "confirm-2", u.EmailConfirmToken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCompleteInviteOnAccountWithPassword(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(`AND password_hash = ''`).
		WithArgs(testID, "invite-tok", "Mallory", "hash-x").
		WillReturnRows(pgxmock.NewRows(userCols))

	_, err := s.CompleteInvite(context.Background(), testID, "invite-tok", "Mallory", "hash-x")
	assert.ErrorIs(t, err, goAccounts.ErrTokenMismatch)
	assert.NoError(t, mock.ExpectationsWereMet())
}
