package goLinkAuth

import (
	"context"

	"github.com/MrEthical07/goLinkAuth/internal"
)

// verifyPassword checks secret against the stored hash. NotVerified is decided before
// any secret comparison so unverified identities are rejected uniformly.
func (e *Engine) verifyPassword(ctx context.Context, identity *Identity, secret string) (Outcome, error) {
	if !identity.Verified {
		return OutcomeNotVerified, nil
	}
	if !identity.HasPassword() {
		return OutcomeNoPasswordSet, nil
	}

	ok, err := e.hasher.Verify(secret, identity.PasswordHash)
	if err != nil {
		// An uninterpretable stored hash cannot match anything.
		e.logger.WarnContext(ctx, "goLinkAuth: stored password hash rejected", "identity_id", identity.ID, "error", err)
		return OutcomeInvalidCredential, nil
	}
	if !ok {
		return OutcomeInvalidCredential, nil
	}

	if e.config.Password.UpgradeOnLogin && e.hasher.NeedsRehash(identity.PasswordHash) {
		e.upgradePasswordHash(ctx, identity, secret)
	}
	return OutcomeSuccess, nil
}

// upgradePasswordHash is best effort: failure is logged and login proceeds.
func (e *Engine) upgradePasswordHash(ctx context.Context, identity *Identity, secret string) {
	newHash, err := e.hasher.Hash(secret)
	if err != nil {
		e.logger.WarnContext(ctx, "goLinkAuth: rehash failed", "identity_id", identity.ID, "error", err)
		return
	}
	if err := e.store.UpdatePasswordHash(ctx, identity.ID, newHash); err != nil {
		e.logger.WarnContext(ctx, "goLinkAuth: rehash persist failed", "identity_id", identity.ID, "error", err)
		return
	}
	e.metricInc(MetricPasswordRehashed)
}

// verifyOTP checks code against the live OTP and, on a match, consumes it with a
// conditional update that also sets verified. A code is expired only when now is
// strictly after its expiry, so the expiry instant itself is accepted.
func (e *Engine) verifyOTP(ctx context.Context, identity *Identity, code string) (Outcome, error) {
	if !identity.Verified {
		return OutcomeNotVerified, nil
	}
	if !identity.HasLiveOTP() {
		return OutcomeInvalidCredential, nil
	}
	if e.now().After(*identity.OTPExpires) {
		return OutcomeExpired, nil
	}
	if !internal.IsOTPFormat(code) || !internal.MatchOTP(code, identity.OTPHash) {
		return OutcomeInvalidCredential, nil
	}

	consumed, err := e.store.ConsumeOTP(ctx, identity.ID, identity.OTPHash)
	if err != nil {
		return OutcomeInvalidCredential, e.storeFault(ctx, "consume_otp", err)
	}
	if !consumed {
		// Reissued or consumed concurrently since the snapshot was read.
		return OutcomeInvalidCredential, nil
	}
	return OutcomeSuccess, nil
}
