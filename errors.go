package goAccounts

import (
	"errors"

	"github.com/MrEthical07/goAccounts/password"
)

// Flow errors. Their messages are user-facing and are meant to be surfaced verbatim by
// the transport layer.
var (
	// ErrWeakPassword is returned when a password fails the configured policy.
	ErrWeakPassword = password.ErrWeakPassword
	// ErrUserExists is returned by signup and invite for an email that is already taken.
	ErrUserExists = errors.New("User already exists with this email")
	// ErrNoUserFound covers an unknown email, a wrong password, and an unusable reset
	// token. The causes are deliberately indistinguishable.
	ErrNoUserFound = errors.New("No user found")
	// ErrInvalidOldPassword is returned by ChangePassword.
	ErrInvalidOldPassword = errors.New("Invalid old password")
	// ErrInvalidInviteToken is returned by SignupByInvite.
	ErrInvalidInviteToken = errors.New("inviteToken is invalid")
	// ErrInvalidEmailConfirmToken is returned by ConfirmEmail.
	ErrInvalidEmailConfirmToken = errors.New("emailConfirmToken is invalid")
	// ErrUnauthenticated is returned when an operation needs a caller identity and the
	// context carries none.
	ErrUnauthenticated = errors.New("Not authorized")
	// ErrInvalidEmail is returned by Signup and InviteUser for a blank email.
	ErrInvalidEmail = errors.New("Email is invalid")
	// ErrEmailNotConfirmed is returned by Login when confirmation is required for login.
	ErrEmailNotConfirmed = errors.New("Email is not confirmed")
	// ErrEngineNotReady is returned by methods called on a nil or unbuilt Engine.
	ErrEngineNotReady = errors.New("engine is not initialized")
)

// Adapter errors. Implementations return these (optionally wrapped) so the engine can
// map them onto flow errors.
var (
	// ErrUserNotFound means the lookup matched no record.
	ErrUserNotFound = errors.New("user not found")
	// ErrDuplicateEmail means a create lost a race against another record with the same email.
	ErrDuplicateEmail = errors.New("duplicate email")
	// ErrTokenMismatch means a consume found the stored token missing, different, or expired.
	ErrTokenMismatch = errors.New("token mismatch")
)
