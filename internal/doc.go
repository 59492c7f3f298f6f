// Package internal holds helpers private to goLinkAuth: secure random generation of
// one-time codes and magic-link tokens, and the salted digests stored in their place.
//
// # Sub-packages
//
//   - audit — async event dispatch (Dispatcher + Sink implementations)
//   - rate — Redis-backed fixed-window counters for attempts and sends
//   - stores — Redis-backed single-use magic-link token records
//
// # What this package must NOT do
//
//   - Export types that appear in the public goLinkAuth API.
//   - Log or return plaintext secrets anywhere except the value handed to the caller.
package internal
