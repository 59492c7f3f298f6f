package goLinkAuth

import (
	"context"
	"time"

	internalaudit "github.com/MrEthical07/goLinkAuth/internal/audit"
	"github.com/MrEthical07/goLinkAuth/session"
)

// Identity is one account, keyed by email.
//
// OTPHash and OTPExpires are set together and cleared together. OTPHash is a salted
// digest; the plaintext code never reaches a CredentialStore.
type Identity struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	Verified     bool
	OTPHash      string
	OTPExpires   *time.Time
	CreatedAt    time.Time
}

// HasPassword reports whether password login is possible for this identity.
func (i *Identity) HasPassword() bool {
	return i != nil && i.PasswordHash != ""
}

// HasLiveOTP reports whether an OTP has been issued and not yet consumed.
// It says nothing about expiry.
func (i *Identity) HasLiveOTP() bool {
	return i != nil && i.OTPHash != "" && i.OTPExpires != nil
}

// Eligibility is the result of the verification gate.
type Eligibility struct {
	Exists   bool
	Verified bool
}

// OneTimeCode is a freshly issued OTP. Code is the only copy of the plaintext.
type OneTimeCode struct {
	Code      string
	ExpiresAt time.Time
}

// Outcome is the result of checking a presented secret against stored state.
type Outcome uint8

const (
	OutcomeSuccess Outcome = iota
	OutcomeInvalidCredential
	OutcomeExpired
	OutcomeNotVerified
	OutcomeNoPasswordSet
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeInvalidCredential:
		return "invalid_credential"
	case OutcomeExpired:
		return "expired"
	case OutcomeNotVerified:
		return "not_verified"
	case OutcomeNoPasswordSet:
		return "no_password_set"
	default:
		return "unknown"
	}
}

// Err maps a failing outcome to its taxonomy error. Success maps to nil.
func (o Outcome) Err() error {
	switch o {
	case OutcomeSuccess:
		return nil
	case OutcomeExpired:
		return ErrExpired
	case OutcomeNotVerified:
		return ErrNotVerified
	case OutcomeNoPasswordSet:
		return ErrNoPasswordSet
	default:
		return ErrInvalidCredential
	}
}

// AuthState is the terminal state of one orchestrated login attempt.
type AuthState uint8

const (
	StateRejected AuthState = iota
	StateAuthenticated
	StateLinkDispatched
	StateFallbackDispatched
)

func (s AuthState) String() string {
	switch s {
	case StateAuthenticated:
		return "authenticated"
	case StateLinkDispatched:
		return "link_dispatched"
	case StateFallbackDispatched:
		return "fallback_dispatched"
	default:
		return "rejected"
	}
}

// AuthResult is returned by every orchestrating Engine method. Session is set only for
// StateAuthenticated. On rejection the method also returns the taxonomy error, and
// Reason carries its display string.
type AuthResult struct {
	State      AuthState
	IdentityID string
	Session    *Session
	Reason     string
}

// SignUpRequest carries sign-up input. Password is optional.
type SignUpRequest struct {
	Email    string
	Name     string
	Password string
}

// Session is the credential returned on successful authentication.
type Session = session.Session

// SessionIssuer mints a session for an authenticated identity.
type SessionIssuer interface {
	IssueSession(ctx context.Context, identityID string) (Session, error)
}

// CredentialStore persists identities. Implementations must return ErrNotFound and
// ErrAlreadyExists for those conditions; any other error is treated as an
// infrastructure fault.
//
// Every mutation is a single-row conditional update so that OTP issue/consume and the
// verified flip never interleave badly across concurrent requests.
type CredentialStore interface {
	FindByEmail(ctx context.Context, email string) (*Identity, error)
	// Create inserts identity unless the email exists. It fills CreatedAt.
	Create(ctx context.Context, identity *Identity) error
	// SetOTP overwrites any outstanding code.
	SetOTP(ctx context.Context, identityID, otpHash string, expires time.Time) error
	// ConsumeOTP clears the OTP fields and sets verified, but only if the stored hash
	// still equals expectedHash. It reports whether the row was updated.
	ConsumeOTP(ctx context.Context, identityID, expectedHash string) (bool, error)
	// MarkVerified sets verified and clears any OTP. It never writes false.
	MarkVerified(ctx context.Context, identityID string) error
	UpdatePasswordHash(ctx context.Context, identityID, hash string) error
}

// MessageKind distinguishes outbound mail templates.
type MessageKind uint8

const (
	MessageMagicLink MessageKind = iota + 1
	MessageOTP
)

func (k MessageKind) String() string {
	switch k {
	case MessageMagicLink:
		return "magic_link"
	case MessageOTP:
		return "otp"
	default:
		return "unknown"
	}
}

// Message is one rendered email.
type Message struct {
	Kind    MessageKind
	From    string
	To      string
	Subject string
	Text    string
	HTML    string
}

// Mailer delivers rendered messages. One implementation is chosen at process start.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// MailerFunc adapts a function to Mailer.
type MailerFunc func(ctx context.Context, msg Message) error

func (f MailerFunc) Send(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}

type (
	AuditEvent = internalaudit.Event
	AuditSink  = internalaudit.Sink
)
