// Package postgres implements goLinkAuth.CredentialStore on PostgreSQL through pgx.
//
// The one-time code consume is a single conditional UPDATE keyed on the expected
// digest, so two concurrent redemptions of the same code cannot both affect a row.
// Schema changes ship as embedded goose migrations applied by Migrate.
package postgres
