package test

import (
	"context"
	"testing"

	goLinkAuth "github.com/MrEthical07/goLinkAuth"
)

// This test intentionally guards public API compile-compat for consumers.
func TestPublicAPISurfaceCompile(t *testing.T) {
	_ = goLinkAuth.New
	_ = goLinkAuth.DefaultConfig
	_ = goLinkAuth.WithClientIP
	_ = goLinkAuth.WithUserAgent
	_ = goLinkAuth.IsUserError
	_ = goLinkAuth.RejectionReason

	var _ *goLinkAuth.Engine
	var _ goLinkAuth.Config
	var _ goLinkAuth.AuthResult
	var _ goLinkAuth.Eligibility
	var _ goLinkAuth.SignUpRequest
	var _ goLinkAuth.CredentialStore
	var _ goLinkAuth.Mailer = goLinkAuth.MailerFunc(nil)
	var _ goLinkAuth.SessionIssuer
	var _ goLinkAuth.AuditSink

	var _ error = goLinkAuth.ErrNotFound
	var _ error = goLinkAuth.ErrAlreadyExists
	var _ error = goLinkAuth.ErrNotVerified
	var _ error = goLinkAuth.ErrNoPasswordSet
	var _ error = goLinkAuth.ErrInvalidCredential
	var _ error = goLinkAuth.ErrExpired
	var _ error = goLinkAuth.ErrDeliveryFailed

	var _ func(*goLinkAuth.Engine, context.Context, goLinkAuth.SignUpRequest) (goLinkAuth.AuthResult, error) = (*goLinkAuth.Engine).SignUp
	var _ func(*goLinkAuth.Engine, context.Context, string) (goLinkAuth.AuthResult, error) = (*goLinkAuth.Engine).Login
	var _ func(*goLinkAuth.Engine, context.Context, string) (*goLinkAuth.OneTimeCode, error) = (*goLinkAuth.Engine).SendOTP
	var _ func(*goLinkAuth.Engine, context.Context, string) (goLinkAuth.Eligibility, error) = (*goLinkAuth.Engine).CheckVerified
	var _ func(*goLinkAuth.Engine, context.Context, string, string) (goLinkAuth.AuthResult, error) = (*goLinkAuth.Engine).AuthenticatePassword
	var _ func(*goLinkAuth.Engine, context.Context, string, string) (goLinkAuth.AuthResult, error) = (*goLinkAuth.Engine).AuthenticateOTP
	var _ func(*goLinkAuth.Engine, context.Context, string) (goLinkAuth.AuthResult, error) = (*goLinkAuth.Engine).CompleteMagicLink
}
