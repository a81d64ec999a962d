// Package goAccounts implements credential-based authentication and the account
// lifecycle around it: signup, login, password change, password reset, invite-based
// account creation and email confirmation.
//
// The package owns neither storage nor transport. All state lives behind the
// [Adapter] interface; reference adapters live under store/. Transport layers call
// the [Engine] methods and surface the returned errors as-is: their messages are
// user-facing and some of them ([ErrNoUserFound] in particular) are intentionally
// shared by several causes.
//
// # Flows
//
//	Signup ─▶ (Unconfirmed) ─ConfirmEmail─▶ Active
//	InviteUser ─▶ (Invited) ─SignupByInvite─▶ Active
//	Active ─TriggerPasswordReset─▶ (ResetPending) ─PasswordReset─▶ Active
//
// Each parenthesised state is held by a single-use token stored on the user record.
// Consuming a token clears it in the same adapter write that applies the change, so
// a token can succeed at most once.
//
// # Caller identity
//
// UpdateCurrentUser, ChangePassword, InviteUser and CurrentUser act on the user id
// attached with [WithCurrentUserID]. The middleware package does this from a bearer
// session token.
//
// # What this package must NOT do
//
//   - Cache user records between calls.
//   - Log passwords, hashes or tokens.
//   - Retry adapter calls.
package goAccounts
