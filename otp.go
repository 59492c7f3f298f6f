package goLinkAuth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goLinkAuth/internal"
)

// SendOTP issues a fresh six-digit code for a verified identity, overwriting any
// outstanding one, and mails it. Unverified identities get ErrNotVerified; unlike
// password and OTP login, no magic link is sent on their behalf.
//
// On ErrDeliveryFailed the new code is already stored and the previous one is gone.
func (e *Engine) SendOTP(ctx context.Context, email string) (*OneTimeCode, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	email = normalizeEmail(email)
	identity, err := e.lookup(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			e.metricInc(MetricOTPIssueRejected)
			e.emitAudit(ctx, auditEventOTPIssueRejected, false, "", email, err, nil)
		}
		return nil, err
	}
	if !identity.Verified {
		e.metricInc(MetricOTPIssueRejected)
		e.emitAudit(ctx, auditEventOTPIssueRejected, false, identity.ID, email, ErrNotVerified, nil)
		return nil, ErrNotVerified
	}

	if err := e.limiter.AllowSend(ctx, email); err != nil {
		return nil, e.limitErr(ctx, "otp_send", email, err)
	}

	otp, err := e.issueOTP(ctx, identity)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricOTPIssued)
	e.emitAudit(ctx, auditEventOTPIssued, true, identity.ID, email, nil, nil)

	msg, err := e.templates.render(MessageOTP, e.config.Email, identity.Email, messageData{
		Code:      otp.Code,
		ExpiresIn: humanDuration(e.config.OTP.TTL),
	})
	if err != nil {
		return nil, err
	}
	if err := e.deliver(ctx, identity.ID, msg); err != nil {
		return nil, err
	}
	return otp, nil
}

// issueOTP generates and persists a code. Only the salted digest is stored.
func (e *Engine) issueOTP(ctx context.Context, identity *Identity) (*OneTimeCode, error) {
	code, err := internal.NewOTP()
	if err != nil {
		return nil, fmt.Errorf("generate otp: %w", err)
	}
	digest, err := internal.HashOTP(code)
	if err != nil {
		return nil, fmt.Errorf("hash otp: %w", err)
	}

	// Postgres keeps microseconds; truncate so the returned expiry matches what is stored.
	expires := e.now().Add(e.config.OTP.TTL).Truncate(time.Microsecond)
	if err := e.store.SetOTP(ctx, identity.ID, digest, expires); err != nil {
		return nil, e.storeFault(ctx, "set_otp", err)
	}
	return &OneTimeCode{Code: code, ExpiresAt: expires}, nil
}

// deliver sends msg and converts transport errors into ErrDeliveryFailed.
func (e *Engine) deliver(ctx context.Context, identityID string, msg Message) error {
	if err := e.mailer.Send(ctx, msg); err != nil {
		e.metricInc(MetricDeliveryFailed)
		e.logger.ErrorContext(ctx, "goLinkAuth: delivery failed", "kind", msg.Kind.String(), "to", msg.To, "error", err)
		e.emitAudit(ctx, auditEventDeliveryFailed, false, identityID, msg.To, ErrDeliveryFailed, func() map[string]string {
			return map[string]string{"kind": msg.Kind.String()}
		})
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	return nil
}
