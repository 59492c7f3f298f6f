package goLinkAuth

import (
	"context"
	"errors"
	"io"
	"log/slog"

	internalaudit "github.com/MrEthical07/goLinkAuth/internal/audit"
)

const (
	auditEventSignUpSuccess       = "signup_success"
	auditEventSignUpDuplicate     = "signup_duplicate"
	auditEventMagicLinkDispatched = "magic_link_dispatched"
	auditEventMagicLinkCompleted  = "magic_link_completed"
	auditEventMagicLinkInvalid    = "magic_link_invalid"
	auditEventOTPIssued           = "otp_issued"
	auditEventOTPIssueRejected    = "otp_issue_rejected"
	auditEventLoginSuccess        = "login_success"
	auditEventLoginFailure        = "login_failure"
	auditEventLoginFallback       = "login_fallback"
	auditEventDeliveryFailed      = "delivery_failed"
	auditEventRateLimited         = "rate_limited"
)

// AuditErrorCode is the stable error label written into audit events.
type AuditErrorCode string

const (
	auditErrNotFound          AuditErrorCode = "not_found"
	auditErrAlreadyExists     AuditErrorCode = "already_exists"
	auditErrNotVerified       AuditErrorCode = "not_verified"
	auditErrNoPasswordSet     AuditErrorCode = "no_password_set"
	auditErrInvalidCredential AuditErrorCode = "invalid_credential"
	auditErrExpired           AuditErrorCode = "expired"
	auditErrDeliveryFailed    AuditErrorCode = "delivery_failed"
	auditErrInvalidInput      AuditErrorCode = "invalid_input"
	auditErrRateLimited       AuditErrorCode = "rate_limited"
	auditErrUnavailable       AuditErrorCode = "backend_unavailable"
	auditErrSessionIssuance   AuditErrorCode = "session_issuance_failed"
	auditErrInternal          AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	identityID string,
	email string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp:  e.now().UTC(),
		EventType:  eventType,
		IdentityID: identityID,
		Email:      email,
		IP:         clientIPFromContext(ctx),
		UserAgent:  userAgentFromContext(ctx),
		Success:    success,
		Metadata:   metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func (e *Engine) emitRateLimit(ctx context.Context, scope, email string) {
	e.metricInc(MetricRateLimitHit)
	e.emitAudit(ctx, auditEventRateLimited, false, "", email, ErrRateLimited, func() map[string]string {
		return map[string]string{"scope": scope}
	})
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return auditErrNotFound
	case errors.Is(err, ErrAlreadyExists):
		return auditErrAlreadyExists
	case errors.Is(err, ErrNotVerified):
		return auditErrNotVerified
	case errors.Is(err, ErrNoPasswordSet):
		return auditErrNoPasswordSet
	case errors.Is(err, ErrInvalidCredential):
		return auditErrInvalidCredential
	case errors.Is(err, ErrExpired):
		return auditErrExpired
	case errors.Is(err, ErrDeliveryFailed):
		return auditErrDeliveryFailed
	case errors.Is(err, ErrInvalidInput):
		return auditErrInvalidInput
	case errors.Is(err, ErrRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrStoreUnavailable), errors.Is(err, ErrEngineNotReady):
		return auditErrUnavailable
	case errors.Is(err, ErrSessionIssuance):
		return auditErrSessionIssuance
	default:
		return auditErrInternal
	}
}

// NewJSONWriterSink writes one JSON object per audit event to w.
func NewJSONWriterSink(w io.Writer) AuditSink {
	return internalaudit.NewJSONWriterSink(w)
}

// NewChannelSink returns a sink that forwards events to a buffered channel,
// plus the receive side of that channel.
func NewChannelSink(buffer int) (AuditSink, <-chan AuditEvent) {
	sink := internalaudit.NewChannelSink(buffer)
	return sink, sink.Events()
}

// NewSlogSink logs audit events through logger: Info on success, Warn otherwise.
func NewSlogSink(logger *slog.Logger) AuditSink {
	return internalaudit.NewSlogSink(logger)
}
