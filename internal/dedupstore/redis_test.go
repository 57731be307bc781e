package dedupstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T, clock *fakeClock) *RedisStore {
	t.Helper()
	mr := miniredis.RunT(t)
	s := NewRedisStore(mr.Addr(), "test_", testWindow)
	t.Cleanup(func() { s.Close() })
	if clock != nil {
		s.now = clock.Now
	}
	return s
}

func TestRedisStore(t *testing.T) {
	runStoreSuite(t, func(t *testing.T, clock *fakeClock) Store {
		return newTestRedisStore(t, clock)
	})
}

func TestRedisStoreRefreshUpdatesScore(t *testing.T) {
	clock := newFakeClock()
	s := newTestRedisStore(t, clock)
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, "sig-a"))
	first := clock.Now().Unix()
	clock.Advance(10 * time.Second)
	require.NoError(t, s.Add(ctx, "sig-a"))

	// One member, score moved forward. ZADD on an existing member must not
	// create a second entry.
	entries, err := s.Get(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "sig-a", entries[0].Signature)
	assert.Greater(t, entries[0].Timestamp, first)
}

func TestRedisStoreGetExcludesExpired(t *testing.T) {
	clock := newFakeClock()
	s := newTestRedisStore(t, clock)
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, "sig-old"))
	clock.Advance(testWindow / 2)
	require.NoError(t, s.Add(ctx, "sig-new"))
	clock.Advance(testWindow/2 + time.Second)

	// sig-old is past the window but not yet cleaned up. Get must filter it
	// server-side.
	entries, err := s.Get(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "sig-new", entries[0].Signature)
}

func TestRedisStoreUnreachableServer(t *testing.T) {
	mr := miniredis.RunT(t)
	s := NewRedisStore(mr.Addr(), "test_", testWindow)
	defer s.Close()
	mr.Close()

	_, err := s.IsDuplicate(context.Background(), "sig-a")
	assert.Error(t, err)
	assert.Error(t, s.Add(context.Background(), "sig-a"))
}
