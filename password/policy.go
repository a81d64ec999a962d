package password

import "errors"

// DefaultMinLength is the shortest password accepted when no predicate is configured.
const DefaultMinLength = 8

// ErrWeakPassword is the single failure reported for every policy rejection.
var ErrWeakPassword = errors.New("Password is too short")

// Policy decides whether a candidate password may be stored.
//
// Rule wins over Predicate, and Predicate wins over MinLength. When Predicate is set
// the length check is skipped entirely. A Predicate returning false yields
// ErrWeakPassword whatever the actual reason; a Rule can return its own error instead.
type Policy struct {
	MinLength int
	Predicate func(password string) bool
	Rule      func(password string) error
}

// Validate applies the policy. It has no side effects.
func (p Policy) Validate(password string) error {
	if p.Rule != nil {
		return p.Rule(password)
	}
	if p.Predicate != nil {
		if !p.Predicate(password) {
			return ErrWeakPassword
		}
		return nil
	}

	min := p.MinLength
	if min <= 0 {
		min = DefaultMinLength
	}
	if len(password) < min {
		return ErrWeakPassword
	}
	return nil
}
