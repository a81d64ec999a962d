package redisstore

import (
	"fmt"
	"strconv"
	"time"

	goAccounts "github.com/MrEthical07/goAccounts"
)

const (
	fieldVersion           = "v"
	fieldID                = "id"
	fieldEmail             = "email"
	fieldName              = "name"
	fieldPasswordHash      = "password_hash"
	fieldResetToken        = "reset_token"
	fieldResetExpires      = "reset_expires"
	fieldInviteToken       = "invite_token"
	fieldEmailConfirmToken = "email_confirm_token"
	fieldEmailConfirmed    = "email_confirmed"
	fieldCreatedAt         = "created_at"
	fieldLastLoginAt       = "last_login_at"
)

// encodeUser flattens u into hash fields. Every field is always written so that an
// HSET fully replaces the previous state. Times are unix nanoseconds, zero as "".
func encodeUser(u *goAccounts.User) map[string]any {
	return map[string]any{
		fieldVersion:           recordVersionV1,
		fieldID:                u.ID,
		fieldEmail:             u.Email,
		fieldName:              u.Name,
		fieldPasswordHash:      u.PasswordHash,
		fieldResetToken:        u.ResetToken,
		fieldResetExpires:      encodeTime(u.ResetExpires),
		fieldInviteToken:       u.InviteToken,
		fieldEmailConfirmToken: u.EmailConfirmToken,
		fieldEmailConfirmed:    strconv.FormatBool(u.EmailConfirmed),
		fieldCreatedAt:         encodeTime(u.CreatedAt),
		fieldLastLoginAt:       encodeTime(u.LastLoginAt),
	}
}

// decodeUser maps an empty hash to ErrUserNotFound.
func decodeUser(fields map[string]string) (*goAccounts.User, error) {
	if len(fields) == 0 {
		return nil, goAccounts.ErrUserNotFound
	}
	if v := fields[fieldVersion]; v != recordVersionV1 {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRecordVersion, v)
	}

	u := &goAccounts.User{
		ID:                fields[fieldID],
		Email:             fields[fieldEmail],
		Name:              fields[fieldName],
		PasswordHash:      fields[fieldPasswordHash],
		ResetToken:        fields[fieldResetToken],
		InviteToken:       fields[fieldInviteToken],
		EmailConfirmToken: fields[fieldEmailConfirmToken],
	}

	var err error
	if u.EmailConfirmed, err = strconv.ParseBool(fields[fieldEmailConfirmed]); err != nil {
		return nil, fmt.Errorf("decode %s: %w", fieldEmailConfirmed, err)
	}
	if u.ResetExpires, err = decodeTime(fields[fieldResetExpires]); err != nil {
		return nil, fmt.Errorf("decode %s: %w", fieldResetExpires, err)
	}
	if u.CreatedAt, err = decodeTime(fields[fieldCreatedAt]); err != nil {
		return nil, fmt.Errorf("decode %s: %w", fieldCreatedAt, err)
	}
	if u.LastLoginAt, err = decodeTime(fields[fieldLastLoginAt]); err != nil {
		return nil, fmt.Errorf("decode %s: %w", fieldLastLoginAt, err)
	}
	return u, nil
}

func encodeTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return strconv.FormatInt(t.UnixNano(), 10)
}

func decodeTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(0, n).UTC(), nil
}
