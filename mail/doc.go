// Package mail provides goLinkAuth.Mailer implementations.
//
// One provider is chosen at process start with New: SMTP through gomail, the Resend
// HTTP API, or a development mailer that writes messages to a slog.Logger.
package mail
