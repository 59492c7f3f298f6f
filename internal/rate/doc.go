// Package rate provides Redis-backed fixed-window counters that throttle
// credential attempts and outbound code/link sends per email.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Key prefixes:
//   - la:  — failed password/OTP attempts per email
//   - lai: — failed attempts per client IP
//   - ls:  — OTP and magic-link sends per email
//
// # What this package must NOT do
//
//   - Decide what counts as a failure (the engine does).
//   - Be imported outside the goLinkAuth module.
package rate
