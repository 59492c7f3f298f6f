package internal

import (
	"strconv"
	"testing"
)

func TestNewOTPRange(t *testing.T) {
	for i := 0; i < 2000; i++ {
		code, err := NewOTP()
		if err != nil {
			t.Fatalf("NewOTP error: %v", err)
		}
		if !IsOTPFormat(code) {
			t.Fatalf("code %q is not six digits", code)
		}
		n, _ := strconv.Atoi(code)
		if n < otpMin || n > otpMax {
			t.Fatalf("code %d out of range", n)
		}
	}
}

func TestHashOTPRoundTrip(t *testing.T) {
	digest, err := HashOTP("123456")
	if err != nil {
		t.Fatalf("HashOTP error: %v", err)
	}
	if !MatchOTP("123456", digest) {
		t.Fatal("expected digest to match its code")
	}
	if MatchOTP("123457", digest) {
		t.Fatal("expected different code to mismatch")
	}
	if MatchOTP("123456", "garbage") {
		t.Fatal("expected malformed digest to mismatch")
	}

	other, err := HashOTP("123456")
	if err != nil {
		t.Fatalf("HashOTP error: %v", err)
	}
	if other == digest {
		t.Fatal("expected per-code salt to produce distinct digests")
	}
}

func TestLinkTokenRoundTrip(t *testing.T) {
	id, err := NewTokenID()
	if err != nil {
		t.Fatalf("NewTokenID error: %v", err)
	}
	secret, err := NewLinkSecret()
	if err != nil {
		t.Fatalf("NewLinkSecret error: %v", err)
	}

	gotID, gotSecret, err := DecodeLinkToken(EncodeLinkToken(id, secret))
	if err != nil {
		t.Fatalf("DecodeLinkToken error: %v", err)
	}
	if gotID != id || gotSecret != secret {
		t.Fatal("decoded token does not match encoded parts")
	}

	if _, _, err := DecodeLinkToken("short"); err == nil {
		t.Fatal("expected malformed token to fail")
	}
}

func TestIsOTPFormat(t *testing.T) {
	cases := map[string]bool{
		"123456":  true,
		"12345":   false,
		"1234567": false,
		"12a456":  false,
		"":        false,
	}
	for code, want := range cases {
		if got := IsOTPFormat(code); got != want {
			t.Errorf("IsOTPFormat(%q) = %v, want %v", code, got, want)
		}
	}
}

func BenchmarkMatchOTP(b *testing.B) {
	digest, err := HashOTP("482913")
	if err != nil {
		b.Fatalf("HashOTP error: %v", err)
	}
	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if !MatchOTP("482913", digest) {
			b.Fatal("expected match")
		}
	}
}
