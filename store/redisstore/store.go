// Package redisstore is a goAccounts.Adapter backed by Redis.
//
// Each user is one hash at {prefix}:user:{id}. Two string keys index it:
// {prefix}:email:{lowercased email} and {prefix}:reset:{token}. Ids come from INCR on
// {prefix}:seq. Every write runs inside WATCH/MULTI/EXEC on the user hash, which gives
// the token-consuming methods their compare-and-swap semantics.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	goAccounts "github.com/MrEthical07/goAccounts"
)

const (
	recordVersionV1 = "1"
	maxTxRetries    = 4
)

var (
	// ErrUnavailable wraps every Redis transport failure.
	ErrUnavailable = errors.New("accounts redis unavailable")
	// ErrContention is returned when an optimistic transaction kept losing.
	ErrContention = errors.New("accounts redis transaction contention")
	// ErrUnknownRecordVersion is returned for a user hash written by a newer schema.
	ErrUnknownRecordVersion = errors.New("unknown user record version")
)

// Store implements goAccounts.Adapter.
type Store struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

var _ goAccounts.Adapter = (*Store)(nil)

// New returns a Store using prefix for every key; "acc" when empty.
func New(client redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "acc"
	}
	return &Store{
		redis:  client,
		prefix: prefix,
		now:    time.Now,
	}
}

func (s *Store) userKey(id string) string     { return s.prefix + ":user:" + id }
func (s *Store) emailKey(email string) string { return s.prefix + ":email:" + normalizeEmail(email) }
func (s *Store) resetKey(token string) string { return s.prefix + ":reset:" + token }
func (s *Store) seqKey() string               { return s.prefix + ":seq" }

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (*goAccounts.User, error) {
	return s.findByIndex(ctx, s.emailKey(email))
}

func (s *Store) FindUserByResetToken(ctx context.Context, token string) (*goAccounts.User, error) {
	if token == "" {
		return nil, goAccounts.ErrUserNotFound
	}
	return s.findByIndex(ctx, s.resetKey(token))
}

func (s *Store) FindUserByID(ctx context.Context, id string) (*goAccounts.User, error) {
	fields, err := s.redis.HGetAll(ctx, s.userKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return decodeUser(fields)
}

func (s *Store) findByIndex(ctx context.Context, key string) (*goAccounts.User, error) {
	id, err := s.redis.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, goAccounts.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return s.FindUserByID(ctx, id)
}

func (s *Store) CreateUserBySignup(ctx context.Context, in goAccounts.NewUser) (*goAccounts.User, error) {
	return s.create(ctx, goAccounts.User{
		Email:             in.Email,
		Name:              in.Name,
		PasswordHash:      in.PasswordHash,
		EmailConfirmToken: in.EmailConfirmToken,
		EmailConfirmed:    in.EmailConfirmed,
	})
}

func (s *Store) CreateUserByInvite(ctx context.Context, in goAccounts.NewInvite) (*goAccounts.User, error) {
	return s.create(ctx, goAccounts.User{
		Email:       in.Email,
		InviteToken: in.InviteToken,
	})
}

func (s *Store) create(ctx context.Context, u goAccounts.User) (*goAccounts.User, error) {
	emailKey := s.emailKey(u.Email)
	u.CreatedAt = s.now().UTC()

	for i := 0; i < maxTxRetries; i++ {
		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			taken, err := tx.Exists(ctx, emailKey).Result()
			if err != nil {
				return err
			}
			if taken > 0 {
				return goAccounts.ErrDuplicateEmail
			}

			seq, err := tx.Incr(ctx, s.seqKey()).Result()
			if err != nil {
				return err
			}
			u.ID = strconv.FormatInt(seq, 10)

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.HSet(ctx, s.userKey(u.ID), encodeUser(&u))
				pipe.Set(ctx, emailKey, u.ID, 0)
				return nil
			})
			return err
		}, emailKey)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, s.wrap(err)
		}
		return &u, nil
	}
	return nil, ErrContention
}

func (s *Store) UpdateUser(ctx context.Context, id string, patch goAccounts.UserPatch) (*goAccounts.User, error) {
	return s.update(ctx, id, func(u *goAccounts.User) error {
		if patch.Name != nil {
			u.Name = *patch.Name
		}
		if patch.LastLoginAt != nil {
			u.LastLoginAt = *patch.LastLoginAt
		}
		return nil
	})
}

func (s *Store) UpdateUserPassword(ctx context.Context, id, passwordHash string) (*goAccounts.User, error) {
	return s.update(ctx, id, func(u *goAccounts.User) error {
		u.PasswordHash = passwordHash
		return nil
	})
}

func (s *Store) UpdateUserResetToken(ctx context.Context, id, token string, expires time.Time) (*goAccounts.ResetTokenGrant, error) {
	u, err := s.update(ctx, id, func(u *goAccounts.User) error {
		u.ResetToken = token
		u.ResetExpires = expires
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &goAccounts.ResetTokenGrant{ResetToken: u.ResetToken, ResetExpires: u.ResetExpires}, nil
}

func (s *Store) UpdateUserInviteToken(ctx context.Context, id, token string) (*goAccounts.User, error) {
	return s.update(ctx, id, func(u *goAccounts.User) error {
		u.InviteToken = token
		return nil
	})
}

func (s *Store) UpdateUserEmailConfirmToken(ctx context.Context, id, token string) (*goAccounts.User, error) {
	return s.update(ctx, id, func(u *goAccounts.User) error {
		u.EmailConfirmToken = token
		return nil
	})
}

func (s *Store) CompletePasswordReset(ctx context.Context, id, token, passwordHash string, now time.Time) (*goAccounts.User, error) {
	return s.update(ctx, id, func(u *goAccounts.User) error {
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

func (s *Store) CompleteInvite(ctx context.Context, id, token, name, passwordHash string) (*goAccounts.User, error) {
	return s.update(ctx, id, func(u *goAccounts.User) error {
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

func (s *Store) ConfirmEmail(ctx context.Context, id, token string) (*goAccounts.User, error) {
	return s.update(ctx, id, func(u *goAccounts.User) error {
		if u.EmailConfirmToken == "" || u.EmailConfirmToken != token {
			return goAccounts.ErrTokenMismatch
		}
		u.EmailConfirmToken = ""
		u.EmailConfirmed = true
		return nil
	})
}

// update reads the user hash under WATCH, applies fn and writes the result back in
// one MULTI/EXEC. A concurrent write to the same user aborts the EXEC and the whole
// read-check-write is retried against the new state.
func (s *Store) update(ctx context.Context, id string, fn func(u *goAccounts.User) error) (*goAccounts.User, error) {
	key := s.userKey(id)

	for i := 0; i < maxTxRetries; i++ {
		var updated *goAccounts.User

		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			fields, err := tx.HGetAll(ctx, key).Result()
			if err != nil {
				return err
			}
			current, err := decodeUser(fields)
			if err != nil {
				return err
			}

			next := *current
			if err := fn(&next); err != nil {
				return err
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.HSet(ctx, key, encodeUser(&next))
				if current.ResetToken != next.ResetToken {
					if current.ResetToken != "" {
						pipe.Del(ctx, s.resetKey(current.ResetToken))
					}
					if next.ResetToken != "" {
						pipe.Set(ctx, s.resetKey(next.ResetToken), id, 0)
					}
				}
				return nil
			})
			if err != nil {
				return err
			}

			updated = &next
			return nil
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, s.wrap(err)
		}
		return updated, nil
	}
	return nil, ErrContention
}

func (s *Store) wrap(err error) error {
	switch {
	case errors.Is(err, goAccounts.ErrUserNotFound),
		errors.Is(err, goAccounts.ErrDuplicateEmail),
		errors.Is(err, goAccounts.ErrTokenMismatch),
		errors.Is(err, ErrUnknownRecordVersion):
		return err
	default:
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
}
