package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	goLinkAuth "github.com/MrEthical07/goLinkAuth"
)

func seed(t *testing.T, s *Store) *goLinkAuth.Identity {
	t.Helper()
	identity := &goLinkAuth.Identity{ID: "id-1", Email: "alice@example.com", Name: "Alice"}
	require.NoError(t, s.Create(context.Background(), identity))
	return identity
}

func TestCreateAndFind(t *testing.T) {
	s := New()
	ctx := context.Background()
	created := seed(t, s)
	assert.False(t, created.CreatedAt.IsZero())

	got, err := s.FindByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, "id-1", got.ID)
	assert.False(t, got.Verified)

	_, err = s.FindByEmail(ctx, "ALICE@example.com")
	assert.ErrorIs(t, err, goLinkAuth.ErrNotFound)

	err = s.Create(ctx, &goLinkAuth.Identity{ID: "id-2", Email: "alice@example.com"})
	assert.ErrorIs(t, err, goLinkAuth.ErrAlreadyExists)
	assert.Equal(t, 1, s.Len())
}

func TestReturnedIdentityIsACopy(t *testing.T) {
	s := New()
	ctx := context.Background()
	seed(t, s)
	require.NoError(t, s.SetOTP(ctx, "id-1", "digest", time.Now()))

	got, err := s.FindByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	got.Verified = true
	*got.OTPExpires = time.Time{}

	again, err := s.FindByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.False(t, again.Verified)
	assert.False(t, again.OTPExpires.IsZero())
}

func TestConsumeOTPIsConditional(t *testing.T) {
	s := New()
	ctx := context.Background()
	seed(t, s)

	ok, err := s.ConsumeOTP(ctx, "id-1", "")
	require.NoError(t, err)
	assert.False(t, ok, "nothing to consume")

	require.NoError(t, s.SetOTP(ctx, "id-1", "first", time.Now().Add(time.Minute)))
	require.NoError(t, s.SetOTP(ctx, "id-1", "second", time.Now().Add(time.Minute)))

	ok, err = s.ConsumeOTP(ctx, "id-1", "first")
	require.NoError(t, err)
	assert.False(t, ok, "overwritten code must not consume")

	ok, err = s.ConsumeOTP(ctx, "id-1", "second")
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := s.FindByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.True(t, got.Verified)
	assert.False(t, got.HasLiveOTP())

	ok, err = s.ConsumeOTP(ctx, "id-1", "second")
	require.NoError(t, err)
	assert.False(t, ok, "second consume must fail")
}

func TestConsumeOTPConcurrentSingleWinner(t *testing.T) {
	s := New()
	ctx := context.Background()
	seed(t, s)
	require.NoError(t, s.SetOTP(ctx, "id-1", "digest", time.Now().Add(time.Minute)))

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.ConsumeOTP(ctx, "id-1", "digest")
			if err == nil && ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}

func TestMarkVerifiedClearsOTPAndIsMonotonic(t *testing.T) {
	s := New()
	ctx := context.Background()
	seed(t, s)
	require.NoError(t, s.SetOTP(ctx, "id-1", "digest", time.Now()))

	require.NoError(t, s.MarkVerified(ctx, "id-1"))
	require.NoError(t, s.MarkVerified(ctx, "id-1"))

	got, err := s.FindByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.True(t, got.Verified)
	assert.False(t, got.HasLiveOTP())

	assert.ErrorIs(t, s.MarkVerified(ctx, "missing"), goLinkAuth.ErrNotFound)
	assert.ErrorIs(t, s.SetOTP(ctx, "missing", "d", time.Now()), goLinkAuth.ErrNotFound)
	assert.ErrorIs(t, s.UpdatePasswordHash(ctx, "missing", "h"), goLinkAuth.ErrNotFound)
}

func TestUpdatePasswordHash(t *testing.T) {
	s := New()
	ctx := context.Background()
	seed(t, s)

	require.NoError(t, s.UpdatePasswordHash(ctx, "id-1", "$argon2id$v=19$..."))
	got, err := s.FindByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.True(t, got.HasPassword())
}
