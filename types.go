package goAccounts

import (
	"context"
	"time"
)

// User is the account record owned by the Adapter. Empty strings and zero times mean
// the field is unset. Secrets never leave the process through JSON.
type User struct {
	ID                string    `json:"id"`
	Email             string    `json:"email"`
	Name              string    `json:"name"`
	PasswordHash      string    `json:"-"`
	ResetToken        string    `json:"-"`
	ResetExpires      time.Time `json:"-"`
	InviteToken       string    `json:"-"`
	EmailConfirmToken string    `json:"-"`
	EmailConfirmed    bool      `json:"emailConfirmed"`
	CreatedAt         time.Time `json:"createdAt"`
	LastLoginAt       time.Time `json:"lastLoginAt,omitzero"`
}

// AccountState is the lifecycle position of a User derived from its stored fields.
type AccountState uint8

const (
	// AccountActive users have a password and no pending single-use token.
	AccountActive AccountState = iota
	// AccountInvited users were created by an invite that has not been accepted.
	AccountInvited
	// AccountUnconfirmed users signed up but have not confirmed their email.
	AccountUnconfirmed
	// AccountResetPending users hold a live password reset token.
	AccountResetPending
)

func (s AccountState) String() string {
	switch s {
	case AccountActive:
		return "active"
	case AccountInvited:
		return "invited"
	case AccountUnconfirmed:
		return "unconfirmed"
	case AccountResetPending:
		return "reset_pending"
	default:
		return "unknown"
	}
}

// State reports where u sits in the account lifecycle.
func (u *User) State() AccountState {
	switch {
	case u.InviteToken != "" || u.PasswordHash == "":
		return AccountInvited
	case u.EmailConfirmToken != "" && !u.EmailConfirmed:
		return AccountUnconfirmed
	case u.ResetToken != "":
		return AccountResetPending
	default:
		return AccountActive
	}
}

// NewUser is the record handed to Adapter.CreateUserBySignup.
type NewUser struct {
	Email             string
	Name              string
	PasswordHash      string
	EmailConfirmToken string
	EmailConfirmed    bool
}

// NewInvite is the placeholder record handed to Adapter.CreateUserByInvite.
type NewInvite struct {
	Email       string
	InviteToken string
}

// UserPatch is a partial update. Nil fields are left unchanged.
type UserPatch struct {
	Name        *string
	LastLoginAt *time.Time
}

// ResetTokenGrant is what Adapter.UpdateUserResetToken persisted.
type ResetTokenGrant struct {
	ResetToken   string
	ResetExpires time.Time
}

// Adapter is the persistence capability the engine depends on. It is the only source
// of truth; the engine never caches a User across calls.
//
// Lookups return ErrUserNotFound when nothing matches. The Complete* and ConfirmEmail
// methods are compare-and-swap: they must check the stored token and clear it in one
// atomic step, returning ErrTokenMismatch if it no longer matches, so that only one of
// several concurrent consumers can succeed.
type Adapter interface {
	FindUserByEmail(ctx context.Context, email string) (*User, error)
	FindUserByID(ctx context.Context, id string) (*User, error)
	FindUserByResetToken(ctx context.Context, token string) (*User, error)

	CreateUserBySignup(ctx context.Context, in NewUser) (*User, error)
	CreateUserByInvite(ctx context.Context, in NewInvite) (*User, error)

	UpdateUser(ctx context.Context, id string, patch UserPatch) (*User, error)
	UpdateUserPassword(ctx context.Context, id, passwordHash string) (*User, error)
	UpdateUserResetToken(ctx context.Context, id, token string, expires time.Time) (*ResetTokenGrant, error)
	UpdateUserInviteToken(ctx context.Context, id, token string) (*User, error)
	UpdateUserEmailConfirmToken(ctx context.Context, id, token string) (*User, error)

	// CompletePasswordReset sets passwordHash and clears the reset token and its expiry
	// if the stored reset token equals token and has not expired at now. A pending
	// invite token is cleared in the same write and the email marked confirmed.
	CompletePasswordReset(ctx context.Context, id, token, passwordHash string, now time.Time) (*User, error)
	// CompleteInvite sets name and passwordHash, clears the invite token and marks the
	// email confirmed if the stored invite token equals token and no password is set yet.
	CompleteInvite(ctx context.Context, id, token, name, passwordHash string) (*User, error)
	// ConfirmEmail clears the email-confirm token and marks the email confirmed if the
	// stored token equals token.
	ConfirmEmail(ctx context.Context, id, token string) (*User, error)
}

// Notifier delivers single-use tokens out of band, usually by email. It is called after
// the token has been persisted.
type Notifier interface {
	PasswordReset(ctx context.Context, user User, token string) error
	Invite(ctx context.Context, user User, token string) error
	EmailConfirmation(ctx context.Context, user User, token string) error
}

// SignupInput carries the fields of a signup or an invite acceptance.
type SignupInput struct {
	Name     string
	Email    string
	Password string
}

// ProfileUpdate is the caller-editable part of a User.
type ProfileUpdate struct {
	Name *string
}

// AuthPayload is returned by Signup and Login.
type AuthPayload struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}

// InviteInput carries the fields of InviteUser.
type InviteInput struct {
	Email string
}

// InviteResult identifies the invited record. InviteToken is returned for out-of-band
// delivery and must not be sent back to the inviting client as-is in production.
type InviteResult struct {
	ID          string `json:"id"`
	InviteToken string `json:"-"`
}

// OK is the acknowledgement returned by operations without a meaningful payload.
type OK struct {
	OK bool `json:"ok"`
}
