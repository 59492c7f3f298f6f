package goLinkAuth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	internalaudit "github.com/MrEthical07/goLinkAuth/internal/audit"
	"github.com/MrEthical07/goLinkAuth/internal/rate"
	"github.com/MrEthical07/goLinkAuth/internal/stores"
	"github.com/MrEthical07/goLinkAuth/password"
)

// Engine is the auth orchestrator. Build one with [New] and reuse it across goroutines.
type Engine struct {
	config    Config
	store     CredentialStore
	mailer    Mailer
	issuer    SessionIssuer
	links     *stores.MagicLinkStore
	limiter   *rate.Limiter
	templates *messageTemplates
	hasher    *password.Hasher
	audit     *internalaudit.Dispatcher
	metrics   *Metrics
	logger    *slog.Logger
	clock     func() time.Time
}

// Close flushes and stops the audit dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.audit.Close()
}

// AuditDropped returns how many audit events were dropped under backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) now() time.Time {
	if e == nil || e.clock == nil {
		return time.Now()
	}
	return e.clock()
}

func (e *Engine) ready() error {
	if e == nil || e.store == nil || e.mailer == nil || e.issuer == nil || e.links == nil {
		return ErrEngineNotReady
	}
	return nil
}

// SignUp creates an unverified identity and dispatches its first magic link.
func (e *Engine) SignUp(ctx context.Context, req SignUpRequest) (AuthResult, error) {
	if err := e.ready(); err != nil {
		return rejected(err)
	}

	email := normalizeEmail(req.Email)
	name := strings.TrimSpace(req.Name)
	if err := validateEmail(email); err != nil {
		return rejected(err)
	}
	if name == "" {
		return rejected(fmt.Errorf("%w: name is required", ErrInvalidInput))
	}

	identity := &Identity{
		ID:    uuid.NewString(),
		Email: email,
		Name:  name,
	}
	if req.Password != "" {
		hash, err := e.hasher.Hash(req.Password)
		if err != nil {
			if errors.Is(err, password.ErrTooShort) {
				return rejected(fmt.Errorf("%w: %v", ErrInvalidInput, err))
			}
			return rejected(err)
		}
		identity.PasswordHash = hash
	}

	if err := e.store.Create(ctx, identity); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			e.metricInc(MetricSignUpDuplicate)
			e.emitAudit(ctx, auditEventSignUpDuplicate, false, "", email, ErrAlreadyExists, nil)
			return rejected(ErrAlreadyExists)
		}
		return rejected(e.storeFault(ctx, "create", err))
	}

	e.metricInc(MetricSignUpSuccess)
	e.emitAudit(ctx, auditEventSignUpSuccess, true, identity.ID, email, nil, nil)

	if err := e.dispatchMagicLink(ctx, identity.ID, email); err != nil {
		return rejected(err)
	}
	return AuthResult{State: StateLinkDispatched, IdentityID: identity.ID}, nil
}

// Login sends a magic link to an existing identity. It never grants a session itself.
func (e *Engine) Login(ctx context.Context, email string) (AuthResult, error) {
	if err := e.ready(); err != nil {
		return rejected(err)
	}

	email = normalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return rejected(err)
	}

	identity, err := e.lookup(ctx, email)
	if err != nil {
		return rejected(err)
	}
	if err := e.dispatchMagicLink(ctx, identity.ID, identity.Email); err != nil {
		return rejected(err)
	}
	return AuthResult{State: StateLinkDispatched, IdentityID: identity.ID}, nil
}

// AuthenticatePassword runs password login. Unverified identities get a magic link
// instead and the result is StateFallbackDispatched with a nil error.
func (e *Engine) AuthenticatePassword(ctx context.Context, email, secret string) (AuthResult, error) {
	if err := e.ready(); err != nil {
		return rejected(err)
	}
	start := time.Now()
	defer e.observeLatency(start)

	return e.authenticate(ctx, normalizeEmail(email), "password", func(identity *Identity) (Outcome, error) {
		return e.verifyPassword(ctx, identity, secret)
	}, ErrNotFound)
}

// AuthenticateOTP runs one-time-code login. An unknown email is reported as
// ErrInvalidCredential; an expired code as ErrExpired.
func (e *Engine) AuthenticateOTP(ctx context.Context, email, code string) (AuthResult, error) {
	if err := e.ready(); err != nil {
		return rejected(err)
	}
	start := time.Now()
	defer e.observeLatency(start)

	return e.authenticate(ctx, normalizeEmail(email), "otp", func(identity *Identity) (Outcome, error) {
		return e.verifyOTP(ctx, identity, strings.TrimSpace(code))
	}, ErrInvalidCredential)
}

func (e *Engine) authenticate(
	ctx context.Context,
	email string,
	method string,
	verify func(*Identity) (Outcome, error),
	absentErr error,
) (AuthResult, error) {
	ip := clientIPFromContext(ctx)

	eligibility, identity, err := e.checkEligibility(ctx, email)
	if err != nil {
		return rejected(err)
	}
	if !eligibility.Exists {
		// Nothing to charge per email: a later sign-up for this address starts clean.
		if err := e.limiter.CheckIPAttempts(ctx, ip); err != nil {
			return rejected(e.limitErr(ctx, "attempts", email, err))
		}
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, "", email, absentErr, methodMeta(method))
		if err := e.limiter.IncrementIPAttempts(ctx, ip); err != nil && !errors.Is(err, rate.ErrRateLimited) {
			e.logger.Warn("goLinkAuth: attempt counter update failed", "ip", ip, "error", err)
		}
		return rejected(absentErr)
	}
	if !eligibility.Verified {
		return e.fallback(ctx, identity, method)
	}

	if err := e.limiter.CheckAttempts(ctx, email, ip); err != nil {
		return rejected(e.limitErr(ctx, "attempts", email, err))
	}

	outcome, err := verify(identity)
	if err != nil {
		return rejected(err)
	}

	switch outcome {
	case OutcomeSuccess:
	case OutcomeNotVerified:
		// verify sees the gate's snapshot, which is verified here; this branch only
		// matters for a verifier handed an identity the gate did not clear.
		return e.fallback(ctx, identity, method)
	default:
		outcomeErr := outcome.Err()
		if outcome == OutcomeExpired {
			e.metricInc(MetricLoginExpired)
		}
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, identity.ID, email, outcomeErr, methodMeta(method))
		if outcome != OutcomeNoPasswordSet {
			e.recordFailure(ctx, email, ip)
		}
		return rejected(outcomeErr)
	}

	if err := e.limiter.ResetAttempts(ctx, email, ip); err != nil {
		e.logger.Warn("goLinkAuth: attempt counter reset failed", "email", email, "error", err)
	}

	sess, err := e.issueSession(ctx, identity.ID)
	if err != nil {
		return rejected(err)
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, identity.ID, email, nil, methodMeta(method))
	return AuthResult{State: StateAuthenticated, IdentityID: identity.ID, Session: &sess}, nil
}

// fallback mails a magic link in place of a credential check. It is not charged to
// the send budget, so an unverified identity always gets the link.
func (e *Engine) fallback(ctx context.Context, identity *Identity, method string) (AuthResult, error) {
	if err := e.sendMagicLink(ctx, identity.ID, identity.Email); err != nil {
		return rejected(err)
	}
	e.metricInc(MetricFallbackDispatched)
	e.emitAudit(ctx, auditEventLoginFallback, true, identity.ID, identity.Email, nil, methodMeta(method))
	return AuthResult{State: StateFallbackDispatched, IdentityID: identity.ID}, nil
}

func (e *Engine) issueSession(ctx context.Context, identityID string) (Session, error) {
	sess, err := e.issuer.IssueSession(ctx, identityID)
	if err != nil {
		e.logger.Error("goLinkAuth: session issuance failed", "identity_id", identityID, "error", err)
		return Session{}, fmt.Errorf("%w: %v", ErrSessionIssuance, err)
	}
	e.metricInc(MetricSessionIssued)
	return sess, nil
}

func (e *Engine) recordFailure(ctx context.Context, email, ip string) {
	if err := e.limiter.IncrementAttempts(ctx, email, ip); err != nil && !errors.Is(err, rate.ErrRateLimited) {
		e.logger.Warn("goLinkAuth: attempt counter update failed", "email", email, "error", err)
	}
}

// limitErr converts a limiter error into either ErrRateLimited or an infrastructure fault.
func (e *Engine) limitErr(ctx context.Context, scope, email string, err error) error {
	if errors.Is(err, rate.ErrRateLimited) {
		e.emitRateLimit(ctx, scope, email)
		return ErrRateLimited
	}
	return e.storeFault(ctx, "rate_limit", err)
}

func (e *Engine) storeFault(ctx context.Context, op string, err error) error {
	e.metricInc(MetricStoreFailure)
	e.logger.ErrorContext(ctx, "goLinkAuth: store failure", "op", op, "error", err)
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

// lookup returns ErrNotFound or a wrapped ErrStoreUnavailable on failure.
func (e *Engine) lookup(ctx context.Context, email string) (*Identity, error) {
	identity, err := e.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, e.storeFault(ctx, "find", err)
	}
	if identity == nil {
		return nil, ErrNotFound
	}
	return identity, nil
}

func (e *Engine) observeLatency(start time.Time) {
	if e.metrics.LatencyEnabled() {
		e.metrics.Observe(MetricAuthLatency, time.Since(start))
	}
}

func rejected(err error) (AuthResult, error) {
	return AuthResult{State: StateRejected, Reason: RejectionReason(err)}, err
}

func methodMeta(method string) func() map[string]string {
	return func() map[string]string {
		return map[string]string{"method": method}
	}
}

// normalizeEmail trims surrounding whitespace. Case is preserved.
func normalizeEmail(email string) string {
	return strings.TrimSpace(email)
}

func validateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		return fmt.Errorf("%w: invalid email address", ErrInvalidInput)
	}
	return nil
}
