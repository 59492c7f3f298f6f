package session

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

func newEdIssuer(t *testing.T, mutate func(*Config)) (*JWTIssuer, ed25519.PrivateKey) {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate ed25519 key: %v", err)
	}
	cfg := Config{
		TTL:           time.Hour,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		Issuer:        "linkauth",
		Audience:      "app",
	}
	if mutate != nil {
		mutate(&cfg)
	}
	iss, err := NewJWTIssuer(cfg)
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	return iss, priv
}

func TestIssueAndParse(t *testing.T) {
	iss, _ := newEdIssuer(t, nil)

	sess, err := iss.IssueSession(context.Background(), "id-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if sess.IdentityID != "id-1" || sess.ID == "" || sess.Token == "" {
		t.Fatalf("unexpected session: %+v", sess)
	}
	if got := sess.ExpiresAt.Sub(sess.IssuedAt); got != time.Hour {
		t.Fatalf("expected 1h lifetime, got %v", got)
	}

	claims, err := iss.Parse(sess.Token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.IdentityID != "id-1" || claims.ID != sess.ID {
		t.Fatalf("claims mismatch: %+v", claims)
	}
}

func TestDistinctSessionIDs(t *testing.T) {
	iss, _ := newEdIssuer(t, nil)
	a, _ := iss.IssueSession(context.Background(), "id-1")
	b, _ := iss.IssueSession(context.Background(), "id-1")
	if a.ID == b.ID {
		t.Fatal("expected distinct session ids")
	}
}

func TestParseRejectsWrongAlgorithm(t *testing.T) {
	iss, _ := newEdIssuer(t, nil)

	claims := Claims{IdentityID: "id-1", RegisteredClaims: gjwt.RegisteredClaims{
		Issuer:    "linkauth",
		Audience:  gjwt.ClaimStrings{"app"},
		IssuedAt:  gjwt.NewNumericDate(time.Now()),
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
	}}
	token, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims).SignedString([]byte("secret-secret-secret-secret-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := iss.Parse(token); err == nil {
		t.Fatal("expected wrong algorithm to be rejected")
	}
}

func TestParseRejectsWrongIssuer(t *testing.T) {
	iss, priv := newEdIssuer(t, nil)

	claims := Claims{IdentityID: "id-1", RegisteredClaims: gjwt.RegisteredClaims{
		Issuer:    "other",
		Audience:  gjwt.ClaimStrings{"app"},
		IssuedAt:  gjwt.NewNumericDate(time.Now()),
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
	}}
	token, _ := gjwt.NewWithClaims(gjwt.SigningMethodEdDSA, claims).SignedString(priv)
	if _, err := iss.Parse(token); err == nil {
		t.Fatal("expected wrong issuer to fail")
	}
}

func TestParseRejectsExpired(t *testing.T) {
	now := time.Now()
	iss, _ := newEdIssuer(t, func(c *Config) {
		c.Now = func() time.Time { return now }
	})
	sess, err := iss.IssueSession(context.Background(), "id-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	now = now.Add(2 * time.Hour)
	if _, err := iss.Parse(sess.Token); err == nil {
		t.Fatal("expected expired token to fail")
	}
}

func TestHS256RoundTrip(t *testing.T) {
	iss, err := NewJWTIssuer(Config{
		TTL:           time.Minute,
		SigningMethod: MethodHS256,
		PrivateKey:    []byte("0123456789abcdef0123456789abcdef"),
	})
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	sess, err := iss.IssueSession(context.Background(), "id-2")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := iss.Parse(sess.Token); err != nil {
		t.Fatalf("parse: %v", err)
	}
}

func TestNewJWTIssuerValidation(t *testing.T) {
	cases := []Config{
		{TTL: 0, SigningMethod: MethodHS256, PrivateKey: make([]byte, 32)},
		{TTL: time.Minute, SigningMethod: MethodHS256, PrivateKey: []byte("short")},
		{TTL: time.Minute, SigningMethod: MethodEd25519},
		{TTL: time.Minute, SigningMethod: "rs256", PrivateKey: make([]byte, 32)},
		{TTL: time.Minute, SigningMethod: MethodHS256, PrivateKey: make([]byte, 32), Leeway: time.Hour},
	}
	for i, cfg := range cases {
		if _, err := NewJWTIssuer(cfg); err == nil {
			t.Errorf("case %d: expected validation error", i)
		}
	}
}

func TestIssueRejectsCanceledContext(t *testing.T) {
	iss, _ := newEdIssuer(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := iss.IssueSession(ctx, "id-1"); err == nil {
		t.Fatal("expected canceled context to fail")
	}
}
