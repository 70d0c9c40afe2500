package internaldefs

import (
	goAccount "github.com/MrEthical07/goAccount"
)

// CounterDef names one engine counter for exporters.
type CounterDef struct {
	ID   goAccount.MetricID
	Name string
	Help string
}

// HistogramDef names one engine latency histogram for exporters.
type HistogramDef struct {
	ID   goAccount.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in a stable order.
var CounterDefs = []CounterDef{
	{ID: goAccount.MetricRegisterSuccess, Name: "goaccount_register_success_total", Help: "Accounts registered."},
	{ID: goAccount.MetricRegisterConflict, Name: "goaccount_register_conflict_total", Help: "Registrations rejected because the username or email was taken."},
	{ID: goAccount.MetricRegisterRateLimited, Name: "goaccount_register_rate_limited_total", Help: "Rate-limited registration attempts."},
	{ID: goAccount.MetricRegisterInvalid, Name: "goaccount_register_invalid_total", Help: "Registrations rejected by input validation."},
	{ID: goAccount.MetricLoginSuccess, Name: "goaccount_login_success_total", Help: "Successful authentications."},
	{ID: goAccount.MetricLoginFailure, Name: "goaccount_login_failure_total", Help: "Authentications rejected for incorrect credentials."},
	{ID: goAccount.MetricLoginLocked, Name: "goaccount_login_locked_total", Help: "Authentications rejected because the account is locked."},
	{ID: goAccount.MetricLoginRateLimited, Name: "goaccount_login_rate_limited_total", Help: "Rate-limited authentication attempts."},
	{ID: goAccount.MetricPasswordRehashed, Name: "goaccount_password_rehashed_total", Help: "Stored digests upgraded during authentication."},
	{ID: goAccount.MetricEmailVerificationSuccess, Name: "goaccount_email_verification_success_total", Help: "Successful email verifications."},
	{ID: goAccount.MetricEmailVerificationFailure, Name: "goaccount_email_verification_failure_total", Help: "Failed email verifications."},
	{ID: goAccount.MetricVerificationResent, Name: "goaccount_verification_resent_total", Help: "Verification tokens reissued."},
	{ID: goAccount.MetricVerificationResendRateLimited, Name: "goaccount_verification_resend_rate_limited_total", Help: "Rate-limited verification resends."},
	{ID: goAccount.MetricPasswordResetRequest, Name: "goaccount_password_reset_request_total", Help: "Password reset requests that issued a token."},
	{ID: goAccount.MetricPasswordResetUnknownEmail, Name: "goaccount_password_reset_unknown_email_total", Help: "Password reset requests for unknown addresses."},
	{ID: goAccount.MetricPasswordResetThrottled, Name: "goaccount_password_reset_throttled_total", Help: "Password reset requests silently throttled."},
	{ID: goAccount.MetricPasswordResetSuccess, Name: "goaccount_password_reset_success_total", Help: "Completed password resets."},
	{ID: goAccount.MetricPasswordResetFailure, Name: "goaccount_password_reset_failure_total", Help: "Failed password reset completions."},
	{ID: goAccount.MetricPasswordChangeSuccess, Name: "goaccount_password_change_success_total", Help: "Successful password changes."},
	{ID: goAccount.MetricPasswordChangeFailure, Name: "goaccount_password_change_failure_total", Help: "Failed password changes."},
	{ID: goAccount.MetricProfileUpdated, Name: "goaccount_profile_updated_total", Help: "Profile updates applied."},
	{ID: goAccount.MetricProfileConflict, Name: "goaccount_profile_conflict_total", Help: "Profile updates rejected by a uniqueness conflict."},
	{ID: goAccount.MetricAccessTokenIssued, Name: "goaccount_access_token_issued_total", Help: "Access tokens minted."},
	{ID: goAccount.MetricAccessTokenRejected, Name: "goaccount_access_token_rejected_total", Help: "Access tokens rejected."},
	{ID: goAccount.MetricAccountLocked, Name: "goaccount_account_locked_total", Help: "Account lock operations."},
	{ID: goAccount.MetricAccountUnlocked, Name: "goaccount_account_unlocked_total", Help: "Account unlock operations."},
	{ID: goAccount.MetricAccountDeleted, Name: "goaccount_account_deleted_total", Help: "Account delete operations."},
	{ID: goAccount.MetricRateLimitHit, Name: "goaccount_rate_limit_hit_total", Help: "Rate-limit checks that denied requests."},
	{ID: goAccount.MetricNotificationFailed, Name: "goaccount_notification_failed_total", Help: "Notifications the notifier failed to deliver."},
	{ID: goAccount.MetricNotificationDropped, Name: "goaccount_notification_dropped_total", Help: "Notifications dropped before delivery."},
}

// HistogramDefs lists every exported latency histogram.
var HistogramDefs = []HistogramDef{
	{ID: goAccount.MetricAuthenticateLatency, Name: "goaccount_authenticate_latency_seconds", Help: "Authenticate latency histogram."},
}

// HistogramBounds are the upper bounds, in seconds, of the engine's fixed buckets.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix is HistogramBounds made safe for instrument names.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed-size array, zero-filling missing buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
