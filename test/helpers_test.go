//go:build integration
// +build integration

package test

import (
	"context"
	"io"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	goLinkAuth "github.com/MrEthical07/goLinkAuth"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// redisMode describes which Redis backend the suite is running against.
type redisMode struct {
	name  string
	setup func(t *testing.T) (redis.UniversalClient, func())
}

// redisModes returns the set of Redis backends to test.
// miniredis is always available.
// Real Redis standalone is used when REDIS_ADDR is set (e.g. "127.0.0.1:6379").
func redisModes(t *testing.T) []redisMode {
	t.Helper()
	modes := []redisMode{
		{
			name: "miniredis",
			setup: func(t *testing.T) (redis.UniversalClient, func()) {
				t.Helper()
				mr, err := miniredis.Run()
				if err != nil {
					t.Fatalf("miniredis: %v", err)
				}
				rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
				return rdb, func() { _ = rdb.Close(); mr.Close() }
			},
		},
	}

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		modes = append(modes, redisMode{
			name: "standalone:" + addr,
			setup: func(t *testing.T) (redis.UniversalClient, func()) {
				t.Helper()
				rdb := redis.NewClient(&redis.Options{Addr: addr})
				ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
				defer cancel()
				if err := rdb.Ping(ctx).Err(); err != nil {
					t.Skipf("cannot connect to Redis at %s: %v", addr, err)
				}
				// Flush the test DB to avoid state leaking between runs.
				rdb.FlushDB(context.Background())
				return rdb, func() { rdb.FlushDB(context.Background()); _ = rdb.Close() }
			},
		})
	}
	return modes
}

// outbox records delivered messages.
type outbox struct {
	mu   sync.Mutex
	msgs []goLinkAuth.Message
}

func (o *outbox) Send(_ context.Context, msg goLinkAuth.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.msgs = append(o.msgs, msg)
	return nil
}

func (o *outbox) lastLinkToken(t *testing.T) string {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := len(o.msgs) - 1; i >= 0; i-- {
		if o.msgs[i].Kind != goLinkAuth.MessageMagicLink {
			continue
		}
		for _, field := range strings.Fields(o.msgs[i].Text) {
			if strings.HasPrefix(field, "https://") {
				u, err := url.Parse(field)
				if err != nil {
					t.Fatalf("parse link: %v", err)
				}
				return u.Query().Get("token")
			}
		}
	}
	t.Fatal("no magic link delivered")
	return ""
}

func integrationConfig() goLinkAuth.Config {
	cfg := goLinkAuth.DefaultConfig()
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.MagicLink.BaseURL = "https://app.example.com/auth/callback"
	return cfg
}

func newEngine(t *testing.T, rdb redis.UniversalClient, store goLinkAuth.CredentialStore, mutate func(*goLinkAuth.Config)) (*goLinkAuth.Engine, *outbox) {
	t.Helper()
	cfg := integrationConfig()
	cfg.Session.SigningMethod = "hs256"
	cfg.Session.PrivateKey = []byte("integration-signing-key-0123456789abcdef")
	if mutate != nil {
		mutate(&cfg)
	}

	box := &outbox{}
	engine, err := goLinkAuth.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithStore(store).
		WithMailer(box).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine, box
}
