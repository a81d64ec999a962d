// Package jwt issues and verifies the signed session tokens handed out by signup and
// login. A token carries the user id and nothing else; there is no server-side session
// record and no revocation list.
package jwt
