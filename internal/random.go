package internal

import (
	"fmt"

	"github.com/google/uuid"
)

// OpaqueTokenLength is the length of every single-use token in canonical UUID form.
const OpaqueTokenLength = 36

// NewOpaqueToken returns a random version 4 UUID in hyphenated form. It is used for
// reset, invite and email-confirm tokens.
func NewOpaqueToken() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate opaque token: %w", err)
	}
	return id.String(), nil
}

// ValidOpaqueToken reports whether token has the shape produced by NewOpaqueToken.
// Callers use it to short-circuit lookups for obviously forged values.
func ValidOpaqueToken(token string) bool {
	if len(token) != OpaqueTokenLength {
		return false
	}
	_, err := uuid.Parse(token)
	return err == nil
}
