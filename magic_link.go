package goLinkAuth

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/google/uuid"

	"github.com/MrEthical07/goLinkAuth/internal"
	"github.com/MrEthical07/goLinkAuth/internal/stores"
)

// dispatchMagicLink charges the send budget for email, then sends a link.
func (e *Engine) dispatchMagicLink(ctx context.Context, identityID, email string) error {
	if err := e.limiter.AllowSend(ctx, email); err != nil {
		return e.limitErr(ctx, "link_send", email, err)
	}
	return e.sendMagicLink(ctx, identityID, email)
}

// sendMagicLink stores a single-use link record for email and mails the link.
// Delivery failure leaves the record in place; it simply expires unused.
func (e *Engine) sendMagicLink(ctx context.Context, identityID, email string) error {
	token, err := e.issueLinkToken(ctx, email)
	if err != nil {
		return err
	}

	link, err := e.linkURL(token)
	if err != nil {
		return err
	}
	msg, err := e.templates.render(MessageMagicLink, e.config.Email, email, messageData{
		URL:       link,
		ExpiresIn: humanDuration(e.config.MagicLink.TTL),
	})
	if err != nil {
		return err
	}
	if err := e.deliver(ctx, identityID, msg); err != nil {
		return err
	}

	e.metricInc(MetricLinkDispatched)
	e.emitAudit(ctx, auditEventMagicLinkDispatched, true, identityID, email, nil, nil)
	return nil
}

func (e *Engine) issueLinkToken(ctx context.Context, email string) (string, error) {
	id, err := internal.NewTokenID()
	if err != nil {
		return "", fmt.Errorf("generate link id: %w", err)
	}
	secret, err := internal.NewLinkSecret()
	if err != nil {
		return "", fmt.Errorf("generate link secret: %w", err)
	}

	ttl := e.config.MagicLink.TTL
	record := &stores.LinkRecord{
		Email:      email,
		SecretHash: internal.HashLinkSecret(secret),
		ExpiresAt:  e.now().Add(ttl).UnixMilli(),
	}
	if err := e.links.Save(ctx, id.String(), record, ttl); err != nil {
		return "", e.storeFault(ctx, "save_link", err)
	}
	return internal.EncodeLinkToken(id, secret), nil
}

func (e *Engine) linkURL(token string) (string, error) {
	u, err := url.Parse(e.config.MagicLink.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parse magic link base url: %w", err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// CompleteMagicLink redeems a link token. It is the only operation that flips an
// identity from unverified to verified as its primary purpose. A token for an email
// with no identity creates one. Each token succeeds at most once; replays and
// unknown, tampered or expired tokens are ErrInvalidCredential.
func (e *Engine) CompleteMagicLink(ctx context.Context, token string) (AuthResult, error) {
	if err := e.ready(); err != nil {
		return rejected(err)
	}

	id, secret, err := internal.DecodeLinkToken(token)
	if err != nil {
		return e.invalidLink(ctx, "malformed")
	}

	record, err := e.links.Consume(ctx, id.String(), internal.HashLinkSecret(secret), e.now(), e.config.MagicLink.MaxAttempts)
	if err != nil {
		switch {
		case errors.Is(err, stores.ErrLinkNotFound):
			return e.invalidLink(ctx, "not_found")
		case errors.Is(err, stores.ErrLinkSecretMismatch):
			return e.invalidLink(ctx, "mismatch")
		case errors.Is(err, stores.ErrLinkAttemptsExceeded):
			return e.invalidLink(ctx, "attempts_exceeded")
		default:
			return rejected(e.storeFault(ctx, "consume_link", err))
		}
	}

	identity, err := e.identityForLink(ctx, record.Email)
	if err != nil {
		return rejected(err)
	}

	if err := e.store.MarkVerified(ctx, identity.ID); err != nil {
		return rejected(e.storeFault(ctx, "mark_verified", err))
	}

	sess, err := e.issueSession(ctx, identity.ID)
	if err != nil {
		return rejected(err)
	}

	e.metricInc(MetricLinkCompleted)
	e.emitAudit(ctx, auditEventMagicLinkCompleted, true, identity.ID, identity.Email, nil, func() map[string]string {
		if identity.Verified {
			return nil
		}
		return map[string]string{"first_verification": "true"}
	})
	return AuthResult{State: StateAuthenticated, IdentityID: identity.ID, Session: &sess}, nil
}

// identityForLink loads the identity for email, creating it when absent. A concurrent
// create for the same email is resolved by re-reading.
func (e *Engine) identityForLink(ctx context.Context, email string) (*Identity, error) {
	identity, err := e.lookup(ctx, email)
	if err == nil {
		return identity, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	identity = &Identity{
		ID:    uuid.NewString(),
		Email: email,
	}
	if err := e.store.Create(ctx, identity); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			return e.lookup(ctx, email)
		}
		return nil, e.storeFault(ctx, "create", err)
	}
	return identity, nil
}

func (e *Engine) invalidLink(ctx context.Context, reason string) (AuthResult, error) {
	e.metricInc(MetricLinkInvalid)
	e.emitAudit(ctx, auditEventMagicLinkInvalid, false, "", "", ErrInvalidCredential, func() map[string]string {
		return map[string]string{"reason": reason}
	})
	return rejected(ErrInvalidCredential)
}
