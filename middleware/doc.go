// Package middleware adapts goAccounts caller identity to net/http.
//
// # Guards
//
//   - [Guard] rejects requests without a valid bearer session token.
//   - [Optional] attaches the caller when a valid token is present.
//
// Both read the Authorization header, call Authenticate on the engine and store the
// resulting user id with goAccounts.WithCurrentUserID, which is where
// UpdateCurrentUser, ChangePassword, InviteUser and CurrentUser look for it.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly (delegates to the engine).
//   - Touch the Adapter.
package middleware
