package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis creates a miniredis instance for testing
func setupTestRedis(t *testing.T) (Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	client := NewClient(rdb)
	t.Cleanup(func() { client.Close() })

	return client, mr
}

// TestGenerateSeqID verifies sequence numbers are strictly increasing and
// independent per conversation.
func TestGenerateSeqID(t *testing.T) {
	client, _ := setupTestRedis(t)
	ctx := context.Background()

	var prev int64
	for i := 0; i < 10; i++ {
		seq, err := client.GenerateSeqID(ctx, 1)
		require.NoError(t, err)
		assert.Greater(t, seq, prev, "seq ids must be strictly increasing")
		prev = seq
	}
	assert.Equal(t, int64(10), prev)

	// A different conversation starts its own sequence from 1.
	seq, err := client.GenerateSeqID(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(1), seq)
}

func TestOnlinePresence(t *testing.T) {
	client, mr := setupTestRedis(t)
	ctx := context.Background()

	online, err := client.IsUserOnline(ctx, 42)
	require.NoError(t, err)
	assert.False(t, online)

	require.NoError(t, client.SetUserOnline(ctx, 42, 30*time.Second))
	online, err = client.IsUserOnline(ctx, 42)
	require.NoError(t, err)
	assert.True(t, online)

	t.Run("expires with TTL", func(t *testing.T) {
		mr.FastForward(31 * time.Second)
		online, err := client.IsUserOnline(ctx, 42)
		require.NoError(t, err)
		assert.False(t, online)
	})

	t.Run("explicit removal", func(t *testing.T) {
		require.NoError(t, client.SetUserOnline(ctx, 42, 30*time.Second))
		require.NoError(t, client.RemoveUserOnline(ctx, 42))
		online, err := client.IsUserOnline(ctx, 42)
		require.NoError(t, err)
		assert.False(t, online)
	})
}

func TestTypingPresence(t *testing.T) {
	client, mr := setupTestRedis(t)
	ctx := context.Background()

	t.Run("peers reflect set and clear", func(t *testing.T) {
		require.NoError(t, client.SetTyping(ctx, 1, 10, 0))
		require.NoError(t, client.SetTyping(ctx, 1, 11, 0))
		require.NoError(t, client.SetTyping(ctx, 2, 12, 0))

		peers, err := client.TypingPeers(ctx, 1)
		require.NoError(t, err)
		assert.ElementsMatch(t, []uint{10, 11}, peers, "only peers of the queried conversation")

		require.NoError(t, client.ClearTyping(ctx, 1, 10))
		peers, err = client.TypingPeers(ctx, 1)
		require.NoError(t, err)
		assert.ElementsMatch(t, []uint{11}, peers)
	})

	t.Run("markers expire without refresh", func(t *testing.T) {
		mr.FastForward(DefaultTypingTTL + time.Second)
		peers, err := client.TypingPeers(ctx, 1)
		require.NoError(t, err)
		assert.Empty(t, peers)
	})

	t.Run("refresh extends the marker", func(t *testing.T) {
		require.NoError(t, client.SetTyping(ctx, 3, 20, 0))
		mr.FastForward(DefaultTypingTTL - time.Second)
		require.NoError(t, client.SetTyping(ctx, 3, 20, 0))
		mr.FastForward(DefaultTypingTTL - time.Second)

		peers, err := client.TypingPeers(ctx, 3)
		require.NoError(t, err)
		assert.ElementsMatch(t, []uint{20}, peers, "refreshed marker outlives the original TTL")
	})

	t.Run("clearing an absent marker is a no-op", func(t *testing.T) {
		assert.NoError(t, client.ClearTyping(ctx, 9, 99))
	})
}

func TestKeyValueHelpers(t *testing.T) {
	client, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "k", "v", time.Minute))

	got, err := client.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)

	n, err := client.Exists(ctx, "k", "missing")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	mr.FastForward(2 * time.Minute)
	_, err = client.Get(ctx, "k")
	assert.ErrorIs(t, err, redis.Nil)

	require.NoError(t, client.Set(ctx, "k2", "v2", 0))
	require.NoError(t, client.Del(ctx, "k2"))
	n, err = client.Exists(ctx, "k2")
	require.NoError(t, err)
	assert.Zero(t, n)
}
