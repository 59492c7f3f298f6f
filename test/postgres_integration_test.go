//go:build integration
// +build integration

package test

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	goLinkAuth "github.com/MrEthical07/goLinkAuth"
	"github.com/MrEthical07/goLinkAuth/store/postgres"
	"github.com/google/uuid"
)

// newPostgresStore migrates the database named by POSTGRES_DSN and returns a store
// on it. Tests use unique emails, so runs do not interfere.
func newPostgresStore(t *testing.T) *postgres.Store {
	t.Helper()
	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_DSN not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	pool, err := postgres.Open(ctx, dsn)
	if err != nil {
		t.Skipf("cannot connect to Postgres: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := postgres.Migrate(ctx, pool); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
	return postgres.New(pool)
}

func TestPostgresFullFlow(t *testing.T) {
	store := newPostgresStore(t)
	rdb, cleanup := redisModes(t)[0].setup(t)
	defer cleanup()
	engine, box := newEngine(t, rdb, store, nil)

	ctx := context.Background()
	email := "pg-" + uuid.NewString() + "@example.com"

	if _, err := engine.SignUp(ctx, goLinkAuth.SignUpRequest{Email: email, Name: "PG", Password: "correct-horse"}); err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}
	if _, err := engine.SignUp(ctx, goLinkAuth.SignUpRequest{Email: email, Name: "PG"}); !errors.Is(err, goLinkAuth.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}

	res, err := engine.AuthenticatePassword(ctx, email, "correct-horse")
	if err != nil || res.State != goLinkAuth.StateFallbackDispatched {
		t.Fatalf("expected fallback, got state=%s err=%v", res.State, err)
	}

	if _, err := engine.CompleteMagicLink(ctx, box.lastLinkToken(t)); err != nil {
		t.Fatalf("CompleteMagicLink failed: %v", err)
	}
	elig, err := engine.CheckVerified(ctx, email)
	if err != nil || !elig.Verified {
		t.Fatalf("expected verified, got %+v err=%v", elig, err)
	}

	res, err = engine.AuthenticatePassword(ctx, email, "correct-horse")
	if err != nil || res.State != goLinkAuth.StateAuthenticated {
		t.Fatalf("password login: state=%s err=%v", res.State, err)
	}
}

func TestPostgresOTPRaceSingleWinner(t *testing.T) {
	store := newPostgresStore(t)
	rdb, cleanup := redisModes(t)[0].setup(t)
	defer cleanup()
	engine, _ := newEngine(t, rdb, store, nil)

	ctx := context.Background()
	email := "pg-otp-" + uuid.NewString() + "@example.com"
	if err := store.Create(ctx, &goLinkAuth.Identity{ID: uuid.NewString(), Email: email, Verified: true}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	otp, err := engine.SendOTP(ctx, email)
	if err != nil {
		t.Fatalf("SendOTP failed: %v", err)
	}

	const workers = 16
	start := make(chan struct{})
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			<-start
			if _, err := engine.AuthenticateOTP(ctx, email, otp.Code); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	close(start)
	wg.Wait()

	if wins != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins)
	}
}
