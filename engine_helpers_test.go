package goAccounts

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goAccounts/password"
)

// mockAdapter is an in-package Adapter that records what the engine hands it. Every
// method runs under mu, which gives the Complete* methods their compare-and-swap
// semantics.
type mockAdapter struct {
	mu     sync.Mutex
	users  map[string]*User
	nextID int

	findErr    error
	createErr  error
	updateErr  error
	consumeErr error

	calls         map[string]int
	signups       []NewUser
	invites       []NewInvite
	resetGrants   []ResetTokenGrant
	inviteTokens  []string
	confirmTokens []string
}

func newMockAdapter() *mockAdapter {
	return &mockAdapter{
		users:  map[string]*User{},
		nextID: 1,
		calls:  map[string]int{},
	}
}

func (m *mockAdapter) seed(u User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := u
	m.users[u.ID] = &cp
	if n, err := strconv.Atoi(u.ID); err == nil && n >= m.nextID {
		m.nextID = n + 1
	}
}

func (m *mockAdapter) count(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[name]
}

func (m *mockAdapter) lastResetToken(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.resetGrants) == 0 {
		t.Fatal("no reset token was stored")
	}
	return m.resetGrants[len(m.resetGrants)-1].ResetToken
}

func (m *mockAdapter) lastInviteToken(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.inviteTokens) == 0 {
		t.Fatal("no invite token was stored")
	}
	return m.inviteTokens[len(m.inviteTokens)-1]
}

func (m *mockAdapter) get(id string) *User {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil
	}
	cp := *u
	return &cp
}

func (m *mockAdapter) byEmail(email string) *User {
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			return u
		}
	}
	return nil
}

func (m *mockAdapter) FindUserByEmail(_ context.Context, email string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["FindUserByEmail"]++
	if m.findErr != nil {
		return nil, m.findErr
	}
	u := m.byEmail(email)
	if u == nil {
		return nil, ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *mockAdapter) FindUserByID(_ context.Context, id string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["FindUserByID"]++
	if m.findErr != nil {
		return nil, m.findErr
	}
	u, ok := m.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *mockAdapter) FindUserByResetToken(_ context.Context, token string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["FindUserByResetToken"]++
	for _, u := range m.users {
		if u.ResetToken != "" && u.ResetToken == token {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrUserNotFound
}

func (m *mockAdapter) CreateUserBySignup(_ context.Context, in NewUser) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["CreateUserBySignup"]++
	if m.createErr != nil {
		return nil, m.createErr
	}
	if m.byEmail(in.Email) != nil {
		return nil, ErrDuplicateEmail
	}
	m.signups = append(m.signups, in)

	u := &User{
		ID:                strconv.Itoa(m.nextID),
		Email:             in.Email,
		Name:              in.Name,
		PasswordHash:      in.PasswordHash,
		EmailConfirmToken: in.EmailConfirmToken,
		EmailConfirmed:    in.EmailConfirmed,
		CreatedAt:         time.Now().UTC(),
	}
	m.nextID++
	m.users[u.ID] = u
	cp := *u
	return &cp, nil
}

func (m *mockAdapter) CreateUserByInvite(_ context.Context, in NewInvite) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["CreateUserByInvite"]++
	if m.createErr != nil {
		return nil, m.createErr
	}
	if m.byEmail(in.Email) != nil {
		return nil, ErrDuplicateEmail
	}
	m.invites = append(m.invites, in)
	m.inviteTokens = append(m.inviteTokens, in.InviteToken)

	u := &User{
		ID:          strconv.Itoa(m.nextID),
		Email:       in.Email,
		InviteToken: in.InviteToken,
		CreatedAt:   time.Now().UTC(),
	}
	m.nextID++
	m.users[u.ID] = u
	cp := *u
	return &cp, nil
}

func (m *mockAdapter) mutate(name, id string, fn func(u *User) error) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[name]++
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	u, ok := m.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	next := *u
	if err := fn(&next); err != nil {
		return nil, err
	}
	*u = next
	cp := next
	return &cp, nil
}

func (m *mockAdapter) UpdateUser(_ context.Context, id string, patch UserPatch) (*User, error) {
	return m.mutate("UpdateUser", id, func(u *User) error {
		if patch.Name != nil {
			u.Name = *patch.Name
		}
		if patch.LastLoginAt != nil {
			u.LastLoginAt = *patch.LastLoginAt
		}
		return nil
	})
}

func (m *mockAdapter) UpdateUserPassword(_ context.Context, id, hash string) (*User, error) {
	return m.mutate("UpdateUserPassword", id, func(u *User) error {
		u.PasswordHash = hash
		return nil
	})
}

func (m *mockAdapter) UpdateUserResetToken(_ context.Context, id, token string, expires time.Time) (*ResetTokenGrant, error) {
	u, err := m.mutate("UpdateUserResetToken", id, func(u *User) error {
		u.ResetToken = token
		u.ResetExpires = expires
		return nil
	})
	if err != nil {
		return nil, err
	}
	grant := ResetTokenGrant{ResetToken: u.ResetToken, ResetExpires: u.ResetExpires}
	m.mu.Lock()
	m.resetGrants = append(m.resetGrants, grant)
	m.mu.Unlock()
	return &grant, nil
}

func (m *mockAdapter) UpdateUserInviteToken(_ context.Context, id, token string) (*User, error) {
	u, err := m.mutate("UpdateUserInviteToken", id, func(u *User) error {
		u.InviteToken = token
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.inviteTokens = append(m.inviteTokens, token)
	m.mu.Unlock()
	return u, nil
}

func (m *mockAdapter) UpdateUserEmailConfirmToken(_ context.Context, id, token string) (*User, error) {
	u, err := m.mutate("UpdateUserEmailConfirmToken", id, func(u *User) error {
		u.EmailConfirmToken = token
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.confirmTokens = append(m.confirmTokens, token)
	m.mu.Unlock()
	return u, nil
}

func (m *mockAdapter) CompletePasswordReset(_ context.Context, id, token, hash string, now time.Time) (*User, error) {
	return m.mutate("CompletePasswordReset", id, func(u *User) error {
		if m.consumeErr != nil {
			return m.consumeErr
		}
		if u.ResetToken == "" || u.ResetToken != token || !now.Before(u.ResetExpires) {
			return ErrTokenMismatch
		}
		u.PasswordHash = hash
		u.ResetToken = ""
		u.ResetExpires = time.Time{}
		if u.InviteToken != "" {
			u.InviteToken = ""
			u.EmailConfirmed = true
		}
		return nil
	})
}

func (m *mockAdapter) CompleteInvite(_ context.Context, id, token, name, hash string) (*User, error) {
	return m.mutate("CompleteInvite", id, func(u *User) error {
		if m.consumeErr != nil {
			return m.consumeErr
		}
		if u.InviteToken == "" || u.InviteToken != token || u.PasswordHash != "" {
			return ErrTokenMismatch
		}
		u.Name = name
		u.PasswordHash = hash
		u.InviteToken = ""
		u.EmailConfirmed = true
		return nil
	})
}

func (m *mockAdapter) ConfirmEmail(_ context.Context, id, token string) (*User, error) {
	return m.mutate("ConfirmEmail", id, func(u *User) error {
		if m.consumeErr != nil {
			return m.consumeErr
		}
		if u.EmailConfirmToken == "" || u.EmailConfirmToken != token {
			return ErrTokenMismatch
		}
		u.EmailConfirmToken = ""
		u.EmailConfirmed = true
		return nil
	})
}

// recordingNotifier captures delivered tokens and can be told to fail.
type recordingNotifier struct {
	mu      sync.Mutex
	resets  []string
	invites []string
	confirm []string
	err     error
}

func (n *recordingNotifier) PasswordReset(_ context.Context, _ User, token string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.resets = append(n.resets, token)
	return n.err
}

func (n *recordingNotifier) Invite(_ context.Context, _ User, token string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.invites = append(n.invites, token)
	return n.err
}

func (n *recordingNotifier) EmailConfirmation(_ context.Context, _ User, token string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.confirm = append(n.confirm, token)
	return n.err
}

const (
	keesEmail    = "kees@volst.nl"
	keesPassword = "testtest2"
)

func engineTestConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.PrivateKey = Secret("test-secret-test-secret")
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Metrics.Enabled = true
	return cfg
}

func testHash(t *testing.T, pw string) string {
	t.Helper()
	h, err := password.NewArgon2(password.HashConfig{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
	if err != nil {
		t.Fatalf("NewArgon2: %v", err)
	}
	hash, err := h.Hash(pw)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	return hash
}

// seededAdapter holds the two fixture users: 1 (test@volst.nl / testtest1) and
// 2 (Kees, kees@volst.nl / testtest2). The next allocated id is 3.
func seededAdapter(t *testing.T) *mockAdapter {
	t.Helper()
	a := newMockAdapter()
	a.seed(User{ID: "1", Email: "test@volst.nl", Name: "Test", PasswordHash: testHash(t, "testtest1"), EmailConfirmed: true})
	a.seed(User{ID: "2", Email: keesEmail, Name: "Kees", PasswordHash: testHash(t, keesPassword), EmailConfirmed: true})
	return a
}

func newTestEngine(t *testing.T, cfg Config, a Adapter, opts ...func(*Builder)) *Engine {
	t.Helper()
	b := New().WithConfig(cfg).WithAdapter(a)
	for _, opt := range opts {
		opt(b)
	}
	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return engine
}

func asUser(id string) context.Context {
	return WithCurrentUserID(context.Background(), id)
}

func mustLogin(t *testing.T, e *Engine, email, pw string) *AuthPayload {
	t.Helper()
	res, err := e.Login(context.Background(), email, pw)
	if err != nil {
		t.Fatalf("Login(%s) failed: %v", email, err)
	}
	return res
}

func expectErr(t *testing.T, err, want error) {
	t.Helper()
	if !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
}
