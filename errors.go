package goLinkAuth

import "errors"

// User-class errors. Each is a recoverable outcome the caller can show to the user
// through [RejectionReason].
var (
	// ErrNotFound means no identity exists for the email. Never triggers a fallback.
	ErrNotFound = errors.New("identity not found")
	// ErrAlreadyExists is returned by SignUp when the email is taken.
	ErrAlreadyExists = errors.New("identity already exists")
	// ErrNotVerified is returned by SendOTP for identities that never completed a magic link.
	ErrNotVerified = errors.New("identity not verified")
	// ErrNoPasswordSet means password login was attempted on a link/OTP-only identity.
	ErrNoPasswordSet = errors.New("no password set")
	// ErrInvalidCredential covers a wrong password, a wrong or missing OTP, and a bad link token.
	ErrInvalidCredential = errors.New("invalid credential")
	// ErrExpired means the presented OTP was correct in shape but past its expiry.
	ErrExpired = errors.New("one-time code expired")
	// ErrDeliveryFailed wraps a Mailer error. The store mutation that preceded it stands.
	ErrDeliveryFailed = errors.New("delivery failed")
	// ErrInvalidInput is returned for malformed sign-up or login input.
	ErrInvalidInput = errors.New("invalid input")
	// ErrRateLimited is returned once an email exhausts its attempt or send budget.
	ErrRateLimited = errors.New("rate limited")
)

// Infrastructure-class errors. These are faults to log and alert on, not messages for users.
var (
	ErrStoreUnavailable = errors.New("credential store unavailable")
	ErrSessionIssuance  = errors.New("session issuance failed")
	ErrEngineNotReady   = errors.New("engine not initialized")
)

var userErrors = []error{
	ErrNotFound,
	ErrAlreadyExists,
	ErrNotVerified,
	ErrNoPasswordSet,
	ErrInvalidCredential,
	ErrExpired,
	ErrDeliveryFailed,
	ErrInvalidInput,
	ErrRateLimited,
}

// IsUserError reports whether err belongs to the user-facing taxonomy. Anything else
// returned by Engine methods is an infrastructure fault.
func IsUserError(err error) bool {
	if err == nil {
		return false
	}
	for _, target := range userErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// RejectionReason maps err to a fixed, non-leaking message suitable for display.
// Infrastructure faults all collapse to one generic message.
func RejectionReason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "Account not found. Please sign up."
	case errors.Is(err, ErrAlreadyExists):
		return "An account with this email already exists."
	case errors.Is(err, ErrNotVerified):
		return "Please verify your email with the sign-in link first."
	case errors.Is(err, ErrNoPasswordSet):
		return "This account has no password. Sign in with a link or code."
	case errors.Is(err, ErrInvalidCredential):
		return "Invalid email or password."
	case errors.Is(err, ErrExpired):
		return "Your code expired. Request a new one."
	case errors.Is(err, ErrDeliveryFailed):
		return "We could not send the email. Please try again."
	case errors.Is(err, ErrInvalidInput):
		return "Please check the details you entered."
	case errors.Is(err, ErrRateLimited):
		return "Too many attempts. Please wait and try again."
	default:
		return "Something went wrong. Please try again."
	}
}
