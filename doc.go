// Package goLinkAuth provides a passwordless-first authentication engine where one
// identity (keyed by email) signs in by magic link, one-time code, or password.
//
// Password and OTP login require a verified identity. Verification happens only when a
// magic link is completed (and, as a convenience, on a successful OTP). A password or OTP
// attempt against an unverified identity is converted into a magic-link send and reported
// as [StateFallbackDispatched]; an explicit [Engine.SendOTP] on the same identity returns
// [ErrNotVerified] instead.
//
// Engine methods are safe to call from multiple goroutines after [Builder.Build].
//
// # Architecture boundaries
//
// goLinkAuth is the public surface. It exposes [Engine], [Builder], [Config], the
// [CredentialStore], [Mailer] and [SessionIssuer] collaborator interfaces, and value
// types. Token records, rate limiting, and audit dispatch live under internal/.
// Store implementations live in store/memory and store/postgres; mail transports in mail.
//
// # What this package must NOT do
//
//   - Persist plaintext one-time codes or link secrets.
//   - Set verified from true back to false.
//   - Import any sub-package that re-imports goLinkAuth (no import cycles).
//
// # Error classes
//
// Every error returned by an Engine method is either in the user taxonomy
// ([IsUserError] is true) or an infrastructure fault wrapping [ErrStoreUnavailable],
// [ErrSessionIssuance] or [ErrEngineNotReady].
package goLinkAuth
