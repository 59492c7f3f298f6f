// Package password hashes and verifies account passwords.
//
// # Output format
//
// New hashes are Argon2id PHC strings:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Verification additionally accepts bcrypt hashes ($2a$, $2b$, $2y$) so that accounts
// imported from bcrypt-based systems keep working. [Hasher.NeedsRehash] reports true
// for every bcrypt hash and for Argon2id hashes produced with weaker parameters, so
// the engine can upgrade them after the next successful password login.
//
// # Architecture boundaries
//
// This package owns hashing and verification only. It never stores passwords and
// never imports goLinkAuth.
package password
