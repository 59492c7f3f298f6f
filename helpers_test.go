package goLinkAuth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t testing.TB) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start failed: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

// mockStore is an in-memory CredentialStore with hooks for fault injection.
type mockStore struct {
	mu      sync.Mutex
	byEmail map[string]*Identity

	findErr      error
	consumeHook  func()
	verifyWrites int
}

func newMockStore() *mockStore {
	return &mockStore{byEmail: map[string]*Identity{}}
}

func copyIdentity(in *Identity) *Identity {
	out := *in
	if in.OTPExpires != nil {
		exp := *in.OTPExpires
		out.OTPExpires = &exp
	}
	return &out
}

func (s *mockStore) byID(id string) *Identity {
	for _, ident := range s.byEmail {
		if ident.ID == id {
			return ident
		}
	}
	return nil
}

func (s *mockStore) FindByEmail(_ context.Context, email string) (*Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return nil, s.findErr
	}
	ident, ok := s.byEmail[email]
	if !ok {
		return nil, ErrNotFound
	}
	return copyIdentity(ident), nil
}

func (s *mockStore) Create(_ context.Context, identity *Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byEmail[identity.Email]; ok {
		return ErrAlreadyExists
	}
	identity.CreatedAt = time.Now().UTC()
	s.byEmail[identity.Email] = copyIdentity(identity)
	return nil
}

func (s *mockStore) SetOTP(_ context.Context, id, hash string, expires time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ident := s.byID(id)
	if ident == nil {
		return ErrNotFound
	}
	ident.OTPHash = hash
	ident.OTPExpires = &expires
	return nil
}

func (s *mockStore) ConsumeOTP(_ context.Context, id, expectedHash string) (bool, error) {
	if s.consumeHook != nil {
		s.consumeHook()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ident := s.byID(id)
	if ident == nil || ident.OTPHash == "" || ident.OTPHash != expectedHash {
		return false, nil
	}
	ident.OTPHash = ""
	ident.OTPExpires = nil
	ident.Verified = true
	return true, nil
}

func (s *mockStore) MarkVerified(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ident := s.byID(id)
	if ident == nil {
		return ErrNotFound
	}
	ident.Verified = true
	ident.OTPHash = ""
	ident.OTPExpires = nil
	s.verifyWrites++
	return nil
}

func (s *mockStore) UpdatePasswordHash(_ context.Context, id, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ident := s.byID(id)
	if ident == nil {
		return ErrNotFound
	}
	ident.PasswordHash = hash
	return nil
}

func (s *mockStore) get(t testing.TB, email string) *Identity {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	ident, ok := s.byEmail[email]
	if !ok {
		t.Fatalf("identity %q missing", email)
	}
	return copyIdentity(ident)
}

func (s *mockStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byEmail)
}

// captureMailer records every message and can be told to fail.
type captureMailer struct {
	mu   sync.Mutex
	sent []Message
	fail error
}

func (m *captureMailer) Send(_ context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *captureMailer) last(t testing.TB) Message {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		t.Fatal("no message sent")
	}
	return m.sent[len(m.sent)-1]
}

func (m *captureMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

// lastLinkToken extracts the token query parameter from the most recent magic link.
func (m *captureMailer) lastLinkToken(t testing.TB) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.sent) - 1; i >= 0; i-- {
		msg := m.sent[i]
		if msg.Kind != MessageMagicLink {
			continue
		}
		u, err := url.Parse(firstURL(msg.Text))
		if err != nil {
			t.Fatalf("parse link: %v", err)
		}
		return u.Query().Get("token")
	}
	t.Fatal("no magic link sent")
	return ""
}

func firstURL(text string) string {
	for _, field := range strings.Fields(text) {
		if strings.HasPrefix(field, "https://") {
			return field
		}
	}
	return ""
}

// testClock is a settable clock shared by the engine and the test.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	engine *Engine
	store  *mockStore
	mailer *captureMailer
	clock  *testClock
	mr     *miniredis.Miniredis
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Session.SigningMethod = "hs256"
	cfg.Session.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	cfg.Email.From = "auth@example.com"
	cfg.Email.AppName = "Example"
	cfg.MagicLink.BaseURL = "https://app.example.com/auth/callback"
	cfg.RateLimit.MaxAttempts = 100
	cfg.RateLimit.MaxSends = 100
	return cfg
}

func newTestEnv(t testing.TB, mutate func(*Config), opts ...func(*Builder)) *testEnv {
	t.Helper()

	mr, rdb := newTestRedis(t)
	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	env := &testEnv{
		store:  newMockStore(),
		mailer: &captureMailer{},
		clock:  newTestClock(),
		mr:     mr,
	}

	b := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithStore(env.store).
		WithMailer(env.mailer).
		WithClock(env.clock.Now).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	for _, opt := range opts {
		opt(b)
	}

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	env.engine = engine
	return env
}

// signUpVerified creates an identity and completes its first magic link.
func (env *testEnv) signUpVerified(t testing.TB, email, password string) *Identity {
	t.Helper()
	ctx := context.Background()

	if _, err := env.engine.SignUp(ctx, SignUpRequest{Email: email, Name: "Test", Password: password}); err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}
	res, err := env.engine.CompleteMagicLink(ctx, env.mailer.lastLinkToken(t))
	if err != nil {
		t.Fatalf("CompleteMagicLink failed: %v", err)
	}
	if res.State != StateAuthenticated {
		t.Fatalf("expected authenticated, got %s", res.State)
	}
	return env.store.get(t, email)
}

var errTransport = errors.New("smtp: connection refused")
