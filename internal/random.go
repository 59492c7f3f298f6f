package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"math/big"
	"strconv"
	"strings"
)

// TokenID identifies a stored magic-link record.
type TokenID [16]byte

const (
	linkSecretSize   = 32
	linkTokenRawSize = 48
	otpSaltSize      = 16

	otpMin = 100000
	otpMax = 999999
)

var otpSpan = big.NewInt(otpMax - otpMin + 1)

func NewTokenID() (TokenID, error) {
	var id TokenID
	_, err := rand.Read(id[:])
	return id, err
}

func (t TokenID) String() string {
	return base64.RawURLEncoding.EncodeToString(t[:])
}

func NewLinkSecret() ([linkSecretSize]byte, error) {
	var secret [linkSecretSize]byte
	_, err := rand.Read(secret[:])
	return secret, err
}

func HashLinkSecret(secret [linkSecretSize]byte) [32]byte {
	return sha256.Sum256(secret[:])
}

// EncodeLinkToken packs id||secret into the opaque value placed in the link URL.
func EncodeLinkToken(id TokenID, secret [linkSecretSize]byte) string {
	var raw [linkTokenRawSize]byte
	copy(raw[:len(id)], id[:])
	copy(raw[len(id):], secret[:])
	return base64.RawURLEncoding.EncodeToString(raw[:])
}

func DecodeLinkToken(token string) (TokenID, [linkSecretSize]byte, error) {
	var (
		id     TokenID
		secret [linkSecretSize]byte
	)

	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return id, secret, err
	}
	if len(raw) != linkTokenRawSize {
		return id, secret, errors.New("invalid link token size")
	}

	copy(id[:], raw[:len(id)])
	copy(secret[:], raw[len(id):])
	return id, secret, nil
}

// NewOTP draws a 6-digit code uniformly from [100000, 999999].
func NewOTP() (string, error) {
	n, err := rand.Int(rand.Reader, otpSpan)
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(n.Int64()+otpMin, 10), nil
}

// HashOTP returns "<salt>$<sha256(salt||code)>", both base64url without padding.
func HashOTP(code string) (string, error) {
	salt := make([]byte, otpSaltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	sum := otpDigest(salt, code)
	return base64.RawURLEncoding.EncodeToString(salt) + "$" + base64.RawURLEncoding.EncodeToString(sum[:]), nil
}

// MatchOTP compares code against a HashOTP digest in constant time.
func MatchOTP(code, digest string) bool {
	saltPart, sumPart, ok := strings.Cut(digest, "$")
	if !ok {
		return false
	}
	salt, err := base64.RawURLEncoding.DecodeString(saltPart)
	if err != nil || len(salt) != otpSaltSize {
		return false
	}
	want, err := base64.RawURLEncoding.DecodeString(sumPart)
	if err != nil {
		return false
	}
	got := otpDigest(salt, code)
	return subtle.ConstantTimeCompare(got[:], want) == 1
}

func otpDigest(salt []byte, code string) [32]byte {
	h := sha256.New()
	h.Write(salt)
	h.Write([]byte(code))
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// IsOTPFormat reports whether code is exactly six ASCII digits.
func IsOTPFormat(code string) bool {
	if len(code) != 6 {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}
