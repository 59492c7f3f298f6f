// Package memory is a process-local goLinkAuth.CredentialStore for tests, demos and
// single-process tools. Every method takes one mutex, which makes each conditional
// update atomic.
package memory

import (
	"context"
	"sync"
	"time"

	goLinkAuth "github.com/MrEthical07/goLinkAuth"
)

type Store struct {
	mu      sync.RWMutex
	byEmail map[string]*goLinkAuth.Identity
	byID    map[string]*goLinkAuth.Identity
	now     func() time.Time
}

var _ goLinkAuth.CredentialStore = (*Store)(nil)

func New() *Store {
	return &Store{
		byEmail: make(map[string]*goLinkAuth.Identity),
		byID:    make(map[string]*goLinkAuth.Identity),
		now:     time.Now,
	}
}

// clone returns a copy that shares no pointers with the stored row.
func clone(in *goLinkAuth.Identity) *goLinkAuth.Identity {
	out := *in
	if in.OTPExpires != nil {
		exp := *in.OTPExpires
		out.OTPExpires = &exp
	}
	return &out
}

func (s *Store) FindByEmail(_ context.Context, email string) (*goLinkAuth.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	identity, ok := s.byEmail[email]
	if !ok {
		return nil, goLinkAuth.ErrNotFound
	}
	return clone(identity), nil
}

func (s *Store) Create(_ context.Context, identity *goLinkAuth.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byEmail[identity.Email]; ok {
		return goLinkAuth.ErrAlreadyExists
	}
	if _, ok := s.byID[identity.ID]; ok {
		return goLinkAuth.ErrAlreadyExists
	}

	identity.CreatedAt = s.now().UTC()
	row := clone(identity)
	s.byEmail[row.Email] = row
	s.byID[row.ID] = row
	return nil
}

func (s *Store) SetOTP(_ context.Context, identityID, otpHash string, expires time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.byID[identityID]
	if !ok {
		return goLinkAuth.ErrNotFound
	}
	row.OTPHash = otpHash
	row.OTPExpires = &expires
	return nil
}

func (s *Store) ConsumeOTP(_ context.Context, identityID, expectedHash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.byID[identityID]
	if !ok || expectedHash == "" || row.OTPHash != expectedHash {
		return false, nil
	}
	row.OTPHash = ""
	row.OTPExpires = nil
	row.Verified = true
	return true, nil
}

func (s *Store) MarkVerified(_ context.Context, identityID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.byID[identityID]
	if !ok {
		return goLinkAuth.ErrNotFound
	}
	row.Verified = true
	row.OTPHash = ""
	row.OTPExpires = nil
	return nil
}

func (s *Store) UpdatePasswordHash(_ context.Context, identityID, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.byID[identityID]
	if !ok {
		return goLinkAuth.ErrNotFound
	}
	row.PasswordHash = hash
	return nil
}

// Len returns the number of stored identities.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}
