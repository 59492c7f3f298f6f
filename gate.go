package goLinkAuth

import (
	"context"
	"errors"
)

// CheckVerified reports whether an identity exists for email and whether it is
// verified. Absence is a normal result, not an error; the error return is reserved
// for infrastructure faults.
func (e *Engine) CheckVerified(ctx context.Context, email string) (Eligibility, error) {
	if err := e.ready(); err != nil {
		return Eligibility{}, err
	}
	eligibility, _, err := e.checkEligibility(ctx, normalizeEmail(email))
	return eligibility, err
}

// checkEligibility is the gate every non-link login passes first. It performs no
// mutation and returns the identity snapshot it evaluated.
func (e *Engine) checkEligibility(ctx context.Context, email string) (Eligibility, *Identity, error) {
	if email == "" {
		return Eligibility{}, nil, nil
	}

	identity, err := e.lookup(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Eligibility{}, nil, nil
		}
		return Eligibility{}, nil, err
	}

	return Eligibility{Exists: true, Verified: identity.Verified}, identity, nil
}
