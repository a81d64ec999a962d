// Package memory is an in-process goAccounts.Adapter. It is meant for tests, examples
// and single-instance deployments that do not need persistence.
package memory

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	goAccounts "github.com/MrEthical07/goAccounts"
)

// Store keeps users in maps guarded by one mutex. Ids are sequential decimal strings
// starting at "1".
type Store struct {
	mu      sync.Mutex
	users   map[string]*goAccounts.User
	byEmail map[string]string
	byReset map[string]string
	nextID  uint64
	now     func() time.Time
}

var _ goAccounts.Adapter = (*Store)(nil)

// New returns an empty Store.
func New() *Store {
	return &Store{
		users:   make(map[string]*goAccounts.User),
		byEmail: make(map[string]string),
		byReset: make(map[string]string),
		nextID:  1,
		now:     time.Now,
	}
}

func emailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Len returns the number of stored users.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}

func (s *Store) FindUserByEmail(_ context.Context, email string) (*goAccounts.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byEmail[emailKey(email)]
	if !ok {
		return nil, goAccounts.ErrUserNotFound
	}
	return s.copyOf(id)
}

func (s *Store) FindUserByID(_ context.Context, id string) (*goAccounts.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyOf(id)
}

func (s *Store) FindUserByResetToken(_ context.Context, token string) (*goAccounts.User, error) {
	if token == "" {
		return nil, goAccounts.ErrUserNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byReset[token]
	if !ok {
		return nil, goAccounts.ErrUserNotFound
	}
	return s.copyOf(id)
}

func (s *Store) CreateUserBySignup(_ context.Context, in goAccounts.NewUser) (*goAccounts.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, err := s.insert(in.Email)
	if err != nil {
		return nil, err
	}
	u.Name = in.Name
	u.PasswordHash = in.PasswordHash
	u.EmailConfirmToken = in.EmailConfirmToken
	u.EmailConfirmed = in.EmailConfirmed

	cp := *u
	return &cp, nil
}

func (s *Store) CreateUserByInvite(_ context.Context, in goAccounts.NewInvite) (*goAccounts.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, err := s.insert(in.Email)
	if err != nil {
		return nil, err
	}
	u.InviteToken = in.InviteToken

	cp := *u
	return &cp, nil
}

func (s *Store) UpdateUser(_ context.Context, id string, patch goAccounts.UserPatch) (*goAccounts.User, error) {
	return s.update(id, func(u *goAccounts.User) error {
		if patch.Name != nil {
			u.Name = *patch.Name
		}
		if patch.LastLoginAt != nil {
			u.LastLoginAt = *patch.LastLoginAt
		}
		return nil
	})
}

func (s *Store) UpdateUserPassword(_ context.Context, id, passwordHash string) (*goAccounts.User, error) {
	return s.update(id, func(u *goAccounts.User) error {
		u.PasswordHash = passwordHash
		return nil
	})
}

func (s *Store) UpdateUserResetToken(_ context.Context, id, token string, expires time.Time) (*goAccounts.ResetTokenGrant, error) {
	u, err := s.update(id, func(u *goAccounts.User) error {
		u.ResetToken = token
		u.ResetExpires = expires
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &goAccounts.ResetTokenGrant{ResetToken: u.ResetToken, ResetExpires: u.ResetExpires}, nil
}

func (s *Store) UpdateUserInviteToken(_ context.Context, id, token string) (*goAccounts.User, error) {
	return s.update(id, func(u *goAccounts.User) error {
		u.InviteToken = token
		return nil
	})
}

func (s *Store) UpdateUserEmailConfirmToken(_ context.Context, id, token string) (*goAccounts.User, error) {
	return s.update(id, func(u *goAccounts.User) error {
		u.EmailConfirmToken = token
		return nil
	})
}

func (s *Store) CompletePasswordReset(_ context.Context, id, token, passwordHash string, now time.Time) (*goAccounts.User, error) {
	return s.update(id, func(u *goAccounts.User) error {
		if u.ResetToken == "" || u.ResetToken != token || !now.Before(u.ResetExpires) {
			return goAccounts.ErrTokenMismatch
		}
		u.PasswordHash = passwordHash
		u.ResetToken = ""
		u.ResetExpires = time.Time{}
		// A reset link reaching the inbox settles a pending invite as well.
		if u.InviteToken != "" {
			u.InviteToken = ""
			u.EmailConfirmed = true
		}
		return nil
	})
}

func (s *Store) CompleteInvite(_ context.Context, id, token, name, passwordHash string) (*goAccounts.User, error) {
	return s.update(id, func(u *goAccounts.User) error {
		if u.InviteToken == "" || u.InviteToken != token || u.PasswordHash != "" {
			return goAccounts.ErrTokenMismatch
		}
		u.Name = name
		u.PasswordHash = passwordHash
		u.InviteToken = ""
		u.EmailConfirmed = true
		return nil
	})
}

func (s *Store) ConfirmEmail(_ context.Context, id, token string) (*goAccounts.User, error) {
	return s.update(id, func(u *goAccounts.User) error {
		if u.EmailConfirmToken == "" || u.EmailConfirmToken != token {
			return goAccounts.ErrTokenMismatch
		}
		u.EmailConfirmToken = ""
		u.EmailConfirmed = true
		return nil
	})
}

// insert must be called with mu held.
func (s *Store) insert(email string) (*goAccounts.User, error) {
	key := emailKey(email)
	if _, taken := s.byEmail[key]; taken {
		return nil, goAccounts.ErrDuplicateEmail
	}

	id := strconv.FormatUint(s.nextID, 10)
	s.nextID++

	u := &goAccounts.User{
		ID:        id,
		Email:     email,
		CreatedAt: s.now().UTC(),
	}
	s.users[id] = u
	s.byEmail[key] = id
	return u, nil
}

// update applies fn to a scratch copy and commits it only when fn succeeds.
func (s *Store) update(id string, fn func(u *goAccounts.User) error) (*goAccounts.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, goAccounts.ErrUserNotFound
	}

	next := *u
	if err := fn(&next); err != nil {
		return nil, err
	}

	if u.ResetToken != next.ResetToken {
		if u.ResetToken != "" {
			delete(s.byReset, u.ResetToken)
		}
		if next.ResetToken != "" {
			s.byReset[next.ResetToken] = id
		}
	}
	*u = next

	cp := next
	return &cp, nil
}

// copyOf must be called with mu held.
func (s *Store) copyOf(id string) (*goAccounts.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, goAccounts.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}
