// Package internal contains helpers that are private to goAccounts, currently the
// opaque single-use token generator.
//
// # What this package must NOT do
//
//   - Export types that appear in the public goAccounts API.
//   - Be imported by any package outside the goAccounts module.
package internal
