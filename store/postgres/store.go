// Package postgres is a goAccounts.Adapter backed by PostgreSQL through pgx.
//
// Token-consuming writes are single UPDATE statements whose WHERE clause carries the
// expected token, so the database row lock decides which of several concurrent
// consumers wins. Schema changes ship as embedded golang-migrate migrations; see
// Migrator.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	goAccounts "github.com/MrEthical07/goAccounts"
)

// poolIface is the subset of *pgxpool.Pool the store needs. pgxmock satisfies it.
type poolIface interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const userColumns = `id, email, name, password_hash, reset_token, reset_expires, invite_token, email_confirm_token, email_confirmed, created_at, last_login_at`

// Store implements goAccounts.Adapter.
type Store struct {
	pool  poolIface
	newID func() string
}

var _ goAccounts.Adapter = (*Store)(nil)

// New returns a Store on an existing pool.
func New(pool poolIface) *Store {
	return &Store{
		pool:  pool,
		newID: func() string { return ulid.Make().String() },
	}
}

// Open connects a pgxpool to dsn and pings it. The returned func closes the pool.
func Open(ctx context.Context, dsn string) (*Store, func(), error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, nil, oops.Code("DB_CONNECT_FAILED").With("operation", "create pool").Wrap(err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, oops.Code("DB_CONNECT_FAILED").With("operation", "ping").Wrap(err)
	}
	return New(pool), pool.Close, nil
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (*goAccounts.User, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`,
		email)
	return s.scan(row, "find user by email", goAccounts.ErrUserNotFound)
}

func (s *Store) FindUserByID(ctx context.Context, id string) (*goAccounts.User, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`,
		id)
	return s.scan(row, "find user by id", goAccounts.ErrUserNotFound)
}

func (s *Store) FindUserByResetToken(ctx context.Context, token string) (*goAccounts.User, error) {
	if token == "" {
		return nil, goAccounts.ErrUserNotFound
	}
	row := s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE reset_token = $1`,
		token)
	return s.scan(row, "find user by reset token", goAccounts.ErrUserNotFound)
}

func (s *Store) CreateUserBySignup(ctx context.Context, in goAccounts.NewUser) (*goAccounts.User, error) {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO users (id, email, name, password_hash, email_confirm_token, email_confirmed)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING `+userColumns,
		s.newID(), in.Email, in.Name, in.PasswordHash, in.EmailConfirmToken, in.EmailConfirmed)
	return s.scan(row, "create user by signup", goAccounts.ErrUserNotFound)
}

func (s *Store) CreateUserByInvite(ctx context.Context, in goAccounts.NewInvite) (*goAccounts.User, error) {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO users (id, email, invite_token)
		 VALUES ($1, $2, $3)
		 RETURNING `+userColumns,
		s.newID(), in.Email, in.InviteToken)
	return s.scan(row, "create user by invite", goAccounts.ErrUserNotFound)
}

func (s *Store) UpdateUser(ctx context.Context, id string, patch goAccounts.UserPatch) (*goAccounts.User, error) {
	row := s.pool.QueryRow(ctx,
		`UPDATE users SET name = COALESCE($2, name), last_login_at = COALESCE($3, last_login_at)
		 WHERE id = $1
		 RETURNING `+userColumns,
		id, patch.Name, patch.LastLoginAt)
	return s.scan(row, "update user", goAccounts.ErrUserNotFound)
}

func (s *Store) UpdateUserPassword(ctx context.Context, id, passwordHash string) (*goAccounts.User, error) {
	row := s.pool.QueryRow(ctx,
		`UPDATE users SET password_hash = $2
		 WHERE id = $1
		 RETURNING `+userColumns,
		id, passwordHash)
	return s.scan(row, "update user password", goAccounts.ErrUserNotFound)
}

func (s *Store) UpdateUserResetToken(ctx context.Context, id, token string, expires time.Time) (*goAccounts.ResetTokenGrant, error) {
	row := s.pool.QueryRow(ctx,
		`UPDATE users SET reset_token = $2, reset_expires = $3
		 WHERE id = $1
		 RETURNING `+userColumns,
		id, token, expires)
	u, err := s.scan(row, "update user reset token", goAccounts.ErrUserNotFound)
	if err != nil {
		return nil, err
	}
	return &goAccounts.ResetTokenGrant{ResetToken: u.ResetToken, ResetExpires: u.ResetExpires}, nil
}

func (s *Store) UpdateUserInviteToken(ctx context.Context, id, token string) (*goAccounts.User, error) {
	row := s.pool.QueryRow(ctx,
		`UPDATE users SET invite_token = $2
		 WHERE id = $1
		 RETURNING `+userColumns,
		id, token)
	return s.scan(row, "update user invite token", goAccounts.ErrUserNotFound)
}

func (s *Store) UpdateUserEmailConfirmToken(ctx context.Context, id, token string) (*goAccounts.User, error) {
	row := s.pool.QueryRow(ctx,
		`UPDATE users SET email_confirm_token = $2
		 WHERE id = $1
		 RETURNING `+userColumns,
		id, token)
	return s.scan(row, "update user email confirm token", goAccounts.ErrUserNotFound)
}

// CompletePasswordReset reports ErrTokenMismatch for a missing user too; the engine
// treats both the same way.
func (s *Store) CompletePasswordReset(ctx context.Context, id, token, passwordHash string, now time.Time) (*goAccounts.User, error) {
	row := s.pool.QueryRow(ctx,
		`UPDATE users SET password_hash = $3, reset_token = '', reset_expires = NULL,
		     email_confirmed = email_confirmed OR invite_token <> '', invite_token = ''
		 WHERE id = $1 AND reset_token <> '' AND reset_token = $2 AND reset_expires > $4
		 RETURNING `+userColumns,
		id, token, passwordHash, now)
	return s.scan(row, "complete password reset", goAccounts.ErrTokenMismatch)
}

func (s *Store) CompleteInvite(ctx context.Context, id, token, name, passwordHash string) (*goAccounts.User, error) {
	row := s.pool.QueryRow(ctx,
		`UPDATE users SET name = $3, password_hash = $4, invite_token = '', email_confirmed = TRUE
		 WHERE id = $1 AND invite_token <> '' AND invite_token = $2 AND password_hash = ''
		 RETURNING `+userColumns,
		id, token, name, passwordHash)
	return s.scan(row, "complete invite", goAccounts.ErrTokenMismatch)
}

func (s *Store) ConfirmEmail(ctx context.Context, id, token string) (*goAccounts.User, error) {
	row := s.pool.QueryRow(ctx,
		`UPDATE users SET email_confirm_token = '', email_confirmed = TRUE
		 WHERE id = $1 AND email_confirm_token <> '' AND email_confirm_token = $2
		 RETURNING `+userColumns,
		id, token)
	return s.scan(row, "confirm email", goAccounts.ErrTokenMismatch)
}

// scan reads one user row. pgx.ErrNoRows becomes noRows and a unique violation becomes
// ErrDuplicateEmail; anything else is wrapped with the operation name.
func (s *Store) scan(row pgx.Row, operation string, noRows error) (*goAccounts.User, error) {
	var (
		u            goAccounts.User
		resetExpires *time.Time
		lastLoginAt  *time.Time
	)
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.Name,
		&u.PasswordHash,
		&u.ResetToken,
		&resetExpires,
		&u.InviteToken,
		&u.EmailConfirmToken,
		&u.EmailConfirmed,
		&u.CreatedAt,
		&lastLoginAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, noRows
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return nil, goAccounts.ErrDuplicateEmail
	}
	if err != nil {
		return nil, oops.With("operation", operation).Wrap(err)
	}

	if resetExpires != nil {
		u.ResetExpires = resetExpires.UTC()
	}
	if lastLoginAt != nil {
		u.LastLoginAt = lastLoginAt.UTC()
	}
	u.CreatedAt = u.CreatedAt.UTC()
	return &u, nil
}
