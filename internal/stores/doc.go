// Package stores provides the Redis-backed record store for magic-link tokens.
//
// # Design
//
// Each record is a versioned, binary-encoded value in Redis with a TTL.
// Consume uses a WATCH/MULTI optimistic transaction with bounded retry on
// contention. Records are single-use: deleted on success, and deleted after
// too many secret mismatches. Secret comparison is constant-time.
//
// # Architecture boundaries
//
// This package owns persistence and concurrency control for link records.
// It does NOT generate tokens, enforce send limits, or touch identities.
//
// # What this package must NOT do
//
//   - Import goLinkAuth or any sibling internal package.
//   - Log or expose plaintext secrets.
package stores
