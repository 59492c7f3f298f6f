// Package session issues signed session tokens once an identity has authenticated.
//
// [JWTIssuer] is the default issuer: a compact JWT signed with Ed25519 or HS256 carrying
// the identity id and a per-session id. Verification helpers are provided for callers
// that want to check tokens they handed out.
//
// # What this package must NOT do
//
//   - Import goLinkAuth (the root package aliases [Session]).
//   - Make authentication decisions; it only mints tokens for already-authenticated ids.
package session
