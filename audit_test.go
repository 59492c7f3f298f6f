package goLinkAuth

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
)

type countingSink struct {
	count atomic.Int64
}

func (s *countingSink) Emit(context.Context, AuditEvent) {
	s.count.Add(1)
}

type recordingSink struct {
	mu     sync.Mutex
	events []AuditEvent
}

func (s *recordingSink) Emit(_ context.Context, event AuditEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *recordingSink) types() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.events))
	for _, ev := range s.events {
		out = append(out, ev.EventType)
	}
	return out
}

func withAudit(cfg *Config) {
	cfg.Audit.Enabled = true
	cfg.Audit.BufferSize = 64
	cfg.Audit.DropIfFull = false
}

func TestAuditDisabledNoSinkCalls(t *testing.T) {
	sink := &countingSink{}
	env := newTestEnv(t, nil, func(b *Builder) { b.WithAuditSink(sink) })

	env.signUpVerified(t, "alice@example.com", "correct-horse")
	env.engine.Close()

	if got := sink.count.Load(); got != 0 {
		t.Fatalf("expected no audit sink calls when disabled, got %d", got)
	}
}

func TestAuditEventsFollowFlow(t *testing.T) {
	sink := &recordingSink{}
	env := newTestEnv(t, withAudit, func(b *Builder) { b.WithAuditSink(sink) })
	ctx := WithUserAgent(WithClientIP(context.Background(), "198.51.100.33"), "curl/8.5")

	if _, err := env.engine.SignUp(ctx, SignUpRequest{Email: "alice@example.com", Name: "Alice", Password: "correct-horse"}); err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}
	if _, err := env.engine.AuthenticatePassword(ctx, "alice@example.com", "correct-horse"); err != nil {
		t.Fatalf("fallback failed: %v", err)
	}
	if _, err := env.engine.CompleteMagicLink(ctx, env.mailer.lastLinkToken(t)); err != nil {
		t.Fatalf("CompleteMagicLink failed: %v", err)
	}
	env.engine.Close()

	want := []string{
		auditEventSignUpSuccess,
		auditEventMagicLinkDispatched,
		auditEventMagicLinkDispatched,
		auditEventLoginFallback,
		auditEventMagicLinkCompleted,
	}
	got := sink.types()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected events:\n got %v\nwant %v", got, want)
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	for _, ev := range sink.events {
		if ev.IP != "198.51.100.33" || ev.UserAgent != "curl/8.5" {
			t.Fatalf("request context missing from %+v", ev)
		}
		if ev.ID == "" || ev.Timestamp.IsZero() {
			t.Fatalf("event not stamped: %+v", ev)
		}
	}
	if sink.events[1].IdentityID == "" || sink.events[1].Email != "alice@example.com" {
		t.Fatalf("unexpected dispatch event %+v", sink.events[1])
	}
	if sink.events[3].Metadata["method"] != "password" {
		t.Fatalf("expected method metadata, got %+v", sink.events[3].Metadata)
	}
}

func TestAuditFailureCodes(t *testing.T) {
	sink := &recordingSink{}
	env := newTestEnv(t, withAudit, func(b *Builder) { b.WithAuditSink(sink) })
	ctx := context.Background()

	_, _ = env.engine.AuthenticateOTP(ctx, "ghost@example.com", "123456")
	_, _ = env.engine.CompleteMagicLink(ctx, "bogus")
	env.mailer.fail = errTransport
	_, _ = env.engine.SignUp(ctx, SignUpRequest{Email: "bob@example.com", Name: "Bob"})
	env.engine.Close()

	sink.mu.Lock()
	defer sink.mu.Unlock()
	codes := map[string]string{}
	for _, ev := range sink.events {
		if !ev.Success {
			codes[ev.EventType] = ev.Error
		}
	}
	want := map[string]string{
		auditEventLoginFailure:     string(auditErrInvalidCredential),
		auditEventMagicLinkInvalid: string(auditErrInvalidCredential),
		auditEventDeliveryFailed:   string(auditErrDeliveryFailed),
	}
	for typ, code := range want {
		if codes[typ] != code {
			t.Fatalf("event %s: expected code %q, got %q", typ, code, codes[typ])
		}
	}
}

func TestAuditNoSecretsInEvents(t *testing.T) {
	var buf bytes.Buffer
	var mu sync.Mutex
	sink := NewJSONWriterSink(writerFunc(func(p []byte) (int, error) {
		mu.Lock()
		defer mu.Unlock()
		return buf.Write(p)
	}))
	env := newTestEnv(t, withAudit, func(b *Builder) { b.WithAuditSink(sink) })
	ctx := context.Background()

	ident := env.signUpVerified(t, "alice@example.com", "correct-horse")
	otp, err := env.engine.SendOTP(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("SendOTP failed: %v", err)
	}
	res, err := env.engine.AuthenticateOTP(ctx, "alice@example.com", otp.Code)
	if err != nil {
		t.Fatalf("AuthenticateOTP failed: %v", err)
	}
	_, _ = env.engine.AuthenticatePassword(ctx, "alice@example.com", "wrong-horse-secret")
	env.engine.Close()

	mu.Lock()
	out := buf.String()
	mu.Unlock()
	if out == "" {
		t.Fatal("expected audit output")
	}
	for _, needle := range []string{"correct-horse", "wrong-horse-secret", otp.Code, ident.PasswordHash, res.Session.Token} {
		if strings.Contains(out, needle) {
			t.Fatalf("sensitive value leaked into audit log: %q", needle)
		}
	}
}

type writerFunc func(p []byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }
