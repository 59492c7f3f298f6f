package internaldefs

import (
	"strconv"
	"strings"

	goLinkAuth "github.com/MrEthical07/goLinkAuth"
)

// CounterDef names one engine counter for export.
type CounterDef struct {
	ID   goLinkAuth.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram for export.
type HistogramDef struct {
	ID   goLinkAuth.MetricID
	Name string
	Help string
}

var CounterDefs = []CounterDef{
	{ID: goLinkAuth.MetricSignUpSuccess, Name: "golinkauth_signup_success_total", Help: "Identities created by sign-up."},
	{ID: goLinkAuth.MetricSignUpDuplicate, Name: "golinkauth_signup_duplicate_total", Help: "Sign-ups rejected because the email exists."},
	{ID: goLinkAuth.MetricLinkDispatched, Name: "golinkauth_link_dispatched_total", Help: "Magic links delivered."},
	{ID: goLinkAuth.MetricLinkCompleted, Name: "golinkauth_link_completed_total", Help: "Magic links redeemed."},
	{ID: goLinkAuth.MetricLinkInvalid, Name: "golinkauth_link_invalid_total", Help: "Magic link redemptions rejected."},
	{ID: goLinkAuth.MetricOTPIssued, Name: "golinkauth_otp_issued_total", Help: "One-time codes issued."},
	{ID: goLinkAuth.MetricOTPIssueRejected, Name: "golinkauth_otp_issue_rejected_total", Help: "One-time code requests rejected."},
	{ID: goLinkAuth.MetricLoginSuccess, Name: "golinkauth_login_success_total", Help: "Password and OTP logins that issued a session."},
	{ID: goLinkAuth.MetricLoginFailure, Name: "golinkauth_login_failure_total", Help: "Password and OTP logins rejected."},
	{ID: goLinkAuth.MetricLoginExpired, Name: "golinkauth_login_expired_total", Help: "OTP logins rejected as expired."},
	{ID: goLinkAuth.MetricFallbackDispatched, Name: "golinkauth_fallback_dispatched_total", Help: "Logins on unverified identities answered with a magic link."},
	{ID: goLinkAuth.MetricDeliveryFailed, Name: "golinkauth_delivery_failed_total", Help: "Mailer errors."},
	{ID: goLinkAuth.MetricRateLimitHit, Name: "golinkauth_rate_limit_hit_total", Help: "Requests denied by a rate limit."},
	{ID: goLinkAuth.MetricSessionIssued, Name: "golinkauth_session_issued_total", Help: "Sessions issued."},
	{ID: goLinkAuth.MetricPasswordRehashed, Name: "golinkauth_password_rehashed_total", Help: "Stored password hashes upgraded on login."},
	{ID: goLinkAuth.MetricStoreFailure, Name: "golinkauth_store_failure_total", Help: "Credential or token store faults."},
}

var HistogramDefs = []HistogramDef{
	{ID: goLinkAuth.MetricAuthLatency, Name: "golinkauth_auth_latency_seconds", Help: "Password and OTP login latency."},
}

const AuditDroppedName = "golinkauth_audit_dropped_total"

const AuditDroppedHelp = "Dropped audit events due to dispatcher backpressure."

// BucketCount is the number of latency buckets including the unbounded one.
func BucketCount() int {
	return len(goLinkAuth.HistogramBounds) + 1
}

// BoundSuffix renders bucket i as a metric-name-safe upper bound, e.g. "0_005" or "inf".
func BoundSuffix(i int) string {
	if i >= len(goLinkAuth.HistogramBounds) {
		return "inf"
	}
	return strings.ReplaceAll(strconv.FormatFloat(goLinkAuth.HistogramBounds[i], 'f', -1, 64), ".", "_")
}

// NormalizeBuckets pads or truncates raw to BucketCount entries.
func NormalizeBuckets(raw []uint64) []uint64 {
	out := make([]uint64, BucketCount())
	copy(out, raw)
	return out
}

// CumulativeBuckets converts per-bucket counts into running totals.
func CumulativeBuckets(raw []uint64) []uint64 {
	out := make([]uint64, len(raw))
	var running uint64
	for i, v := range raw {
		running += v
		out[i] = running
	}
	return out
}
