package internaldefs

import (
	goAccounts "github.com/MrEthical07/goAccounts"
)

// CounterDef names one engine counter for exporters.
type CounterDef struct {
	ID   goAccounts.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram for exporters.
type HistogramDef struct {
	ID   goAccounts.MetricID
	Name string
	Help string
}

// CounterDefs lists every counter in export order.
var CounterDefs = []CounterDef{
	{ID: goAccounts.MetricSignupSuccess, Name: "goaccounts_signup_success_total", Help: "Successful signups."},
	{ID: goAccounts.MetricSignupDuplicate, Name: "goaccounts_signup_duplicate_total", Help: "Signups rejected because the email is taken."},
	{ID: goAccounts.MetricSignupWeakPassword, Name: "goaccounts_signup_weak_password_total", Help: "Signups rejected by the password policy."},
	{ID: goAccounts.MetricLoginSuccess, Name: "goaccounts_login_success_total", Help: "Successful logins."},
	{ID: goAccounts.MetricLoginFailure, Name: "goaccounts_login_failure_total", Help: "Failed logins."},
	{ID: goAccounts.MetricLoginUnconfirmed, Name: "goaccounts_login_unconfirmed_total", Help: "Logins refused for an unconfirmed email."},
	{ID: goAccounts.MetricProfileUpdate, Name: "goaccounts_profile_update_total", Help: "Profile updates."},
	{ID: goAccounts.MetricPasswordChangeSuccess, Name: "goaccounts_password_change_success_total", Help: "Successful password changes."},
	{ID: goAccounts.MetricPasswordChangeInvalidOld, Name: "goaccounts_password_change_invalid_old_total", Help: "Password changes with a wrong old password."},
	{ID: goAccounts.MetricPasswordRehash, Name: "goaccounts_password_rehash_total", Help: "Hashes upgraded on login."},
	{ID: goAccounts.MetricPasswordResetRequest, Name: "goaccounts_password_reset_request_total", Help: "Reset tokens issued."},
	{ID: goAccounts.MetricPasswordResetUnknownEmail, Name: "goaccounts_password_reset_unknown_email_total", Help: "Reset requests for unknown emails."},
	{ID: goAccounts.MetricPasswordResetSuccess, Name: "goaccounts_password_reset_success_total", Help: "Completed password resets."},
	{ID: goAccounts.MetricPasswordResetFailure, Name: "goaccounts_password_reset_failure_total", Help: "Rejected password resets."},
	{ID: goAccounts.MetricInviteCreated, Name: "goaccounts_invite_created_total", Help: "Invites that created a placeholder."},
	{ID: goAccounts.MetricInviteReissued, Name: "goaccounts_invite_reissued_total", Help: "Invites that replaced a pending token."},
	{ID: goAccounts.MetricInviteAccepted, Name: "goaccounts_invite_accepted_total", Help: "Accepted invites."},
	{ID: goAccounts.MetricInviteInvalid, Name: "goaccounts_invite_invalid_total", Help: "Rejected invite tokens."},
	{ID: goAccounts.MetricEmailConfirmSuccess, Name: "goaccounts_email_confirm_success_total", Help: "Confirmed emails."},
	{ID: goAccounts.MetricEmailConfirmFailure, Name: "goaccounts_email_confirm_failure_total", Help: "Rejected email confirm tokens."},
	{ID: goAccounts.MetricEmailConfirmResent, Name: "goaccounts_email_confirm_resent_total", Help: "Reissued email confirm tokens."},
	{ID: goAccounts.MetricTokenConsumeConflict, Name: "goaccounts_token_consume_conflict_total", Help: "Token consumptions lost to a concurrent consumer."},
	{ID: goAccounts.MetricNotifyFailure, Name: "goaccounts_notify_failure_total", Help: "Failed token deliveries."},
}

// HistogramDefs lists every histogram.
var HistogramDefs = []HistogramDef{
	{ID: goAccounts.MetricPasswordHashLatency, Name: "goaccounts_password_hash_latency_seconds", Help: "Argon2id hashing latency."},
}

// HistogramUpperBounds are the finite bucket bounds in seconds. The engine's last
// bucket is +Inf.
var HistogramUpperBounds = []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1}

// HistogramBoundSuffix names each bucket, +Inf included, for exporters that need one
// instrument per bucket.
var HistogramBoundSuffix = []string{
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"1",
	"inf",
}

// NormalizeBuckets copies raw into a fixed-size array, padding with zeros.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
