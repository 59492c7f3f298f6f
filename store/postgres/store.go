package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/samber/oops"

	goLinkAuth "github.com/MrEthical07/goLinkAuth"
	"github.com/MrEthical07/goLinkAuth/store/postgres/migrations"
)

// DB is the subset of *pgxpool.Pool used by Store.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	db DB
}

var _ goLinkAuth.CredentialStore = (*Store)(nil)

func New(db DB) *Store {
	return &Store{db: db}
}

// Open connects a pgx pool and pings it.
func Open(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, oops.Code("STORE_CONNECT").With("operation", "open pool").Wrap(err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, oops.Code("STORE_CONNECT").With("operation", "ping").Wrap(err)
	}
	return pool, nil
}

var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// Migrate applies the embedded migrations through a database/sql view of pool.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()
	return migrate(ctx, db)
}

func migrate(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("pgx"); err != nil {
		return oops.Code("STORE_MIGRATE").With("operation", "set dialect").Wrap(err)
	}
	if err := gooseUpContext(ctx, db, "."); err != nil {
		return oops.Code("STORE_MIGRATE").With("operation", "migrate up").Wrap(err)
	}
	return nil
}

const selectIdentity = `SELECT id, email, name, password_hash, verified, otp_hash, otp_expires, created_at
	FROM identities WHERE email = $1`

func (s *Store) FindByEmail(ctx context.Context, email string) (*goLinkAuth.Identity, error) {
	var (
		identity     goLinkAuth.Identity
		passwordHash *string
		otpHash      *string
		otpExpires   *time.Time
	)
	err := s.db.QueryRow(ctx, selectIdentity, email).Scan(
		&identity.ID,
		&identity.Email,
		&identity.Name,
		&passwordHash,
		&identity.Verified,
		&otpHash,
		&otpExpires,
		&identity.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, goLinkAuth.ErrNotFound
	}
	if err != nil {
		return nil, oops.Code("STORE_QUERY").With("operation", "find by email").Wrap(err)
	}

	if passwordHash != nil {
		identity.PasswordHash = *passwordHash
	}
	if otpHash != nil {
		identity.OTPHash = *otpHash
		identity.OTPExpires = otpExpires
	}
	return &identity, nil
}

func (s *Store) Create(ctx context.Context, identity *goLinkAuth.Identity) error {
	var passwordHash *string
	if identity.PasswordHash != "" {
		passwordHash = &identity.PasswordHash
	}

	var createdAt time.Time
	err := s.db.QueryRow(ctx,
		`INSERT INTO identities (id, email, name, password_hash, verified)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT DO NOTHING
		 RETURNING created_at`,
		identity.ID, identity.Email, identity.Name, passwordHash, identity.Verified,
	).Scan(&createdAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return goLinkAuth.ErrAlreadyExists
	}
	if err != nil {
		return oops.Code("STORE_QUERY").With("operation", "create identity").Wrap(err)
	}
	identity.CreatedAt = createdAt.UTC()
	return nil
}

func (s *Store) SetOTP(ctx context.Context, identityID, otpHash string, expires time.Time) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE identities SET otp_hash = $2, otp_expires = $3 WHERE id = $1`,
		identityID, otpHash, expires)
	if err != nil {
		return oops.Code("STORE_QUERY").With("operation", "set otp").Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return goLinkAuth.ErrNotFound
	}
	return nil
}

func (s *Store) ConsumeOTP(ctx context.Context, identityID, expectedHash string) (bool, error) {
	if expectedHash == "" {
		return false, nil
	}
	tag, err := s.db.Exec(ctx,
		`UPDATE identities SET otp_hash = NULL, otp_expires = NULL, verified = TRUE
		 WHERE id = $1 AND otp_hash = $2`,
		identityID, expectedHash)
	if err != nil {
		return false, oops.Code("STORE_QUERY").With("operation", "consume otp").Wrap(err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) MarkVerified(ctx context.Context, identityID string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE identities SET verified = TRUE, otp_hash = NULL, otp_expires = NULL WHERE id = $1`,
		identityID)
	if err != nil {
		return oops.Code("STORE_QUERY").With("operation", "mark verified").Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return goLinkAuth.ErrNotFound
	}
	return nil
}

func (s *Store) UpdatePasswordHash(ctx context.Context, identityID, hash string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE identities SET password_hash = $2 WHERE id = $1`,
		identityID, hash)
	if err != nil {
		return oops.Code("STORE_QUERY").With("operation", "update password hash").Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return goLinkAuth.ErrNotFound
	}
	return nil
}
