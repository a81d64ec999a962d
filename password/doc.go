// Package password holds the two password concerns of goAccounts: the strength
// [Policy] applied before anything is persisted, and the argon2id [Argon2] hasher.
//
// # Output format
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [Argon2.NeedsRehash] reports hashes produced with weaker parameters so callers can
// re-hash after a successful login.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords. Callers supply plaintext and receive hashes.
//   - Import any other goAccounts package.
//   - Log plaintext passwords.
package password
