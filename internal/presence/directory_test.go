package presence

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/MahiaRaniNatarajan/smartlearn/internal/config"
)

func TestLocalDirectory(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	d := NewLocalDirectory("10.0.0.1:3000")

	_, err := d.Lookup(ctx, 1)
	req.ErrorIs(err, ErrNotOnline)

	req.NoError(d.MarkOnline(ctx, 1))
	addr, err := d.Lookup(ctx, 1)
	req.NoError(err)
	req.Equal("10.0.0.1:3000", addr)

	req.NoError(d.MarkOffline(ctx, 1))
	_, err = d.Lookup(ctx, 1)
	req.ErrorIs(err, ErrNotOnline)
}

func TestRedisDirectory_KeyFor(t *testing.T) {
	req := require.New(t)

	client := redis.NewClient(&redis.Options{Addr: "localhost:0"})
	t.Cleanup(func() { client.Close() })

	d := newRedisDirectory(client, config.RedisConfig{PresencePrefix: "chat:presence"}, "node-a:3000")
	req.Equal("chat:presence:user:42", d.keyFor(42))
}

func newTestRedisDirectory(t *testing.T, addr string) (*RedisDirectory, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	d := newRedisDirectory(client, config.RedisConfig{
		PresencePrefix:    "chat:presence",
		KeyTTL:            30 * time.Second,
		HeartbeatInterval: 10 * time.Second,
	}, addr)
	return d, mr
}

func TestRedisDirectory_OnlineLookupOffline(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	d, mr := newTestRedisDirectory(t, "node-a:3000")

	_, err := d.Lookup(ctx, 1)
	req.ErrorIs(err, ErrNotOnline)

	req.NoError(d.MarkOnline(ctx, 1))
	addr, err := d.Lookup(ctx, 1)
	req.NoError(err)
	req.Equal("node-a:3000", addr)
	req.Equal(30*time.Second, mr.TTL("chat:presence:user:1"))

	req.NoError(d.MarkOffline(ctx, 1))
	_, err = d.Lookup(ctx, 1)
	req.ErrorIs(err, ErrNotOnline)
}

func TestRedisDirectory_KeyExpiresWithoutHeartbeat(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	d, mr := newTestRedisDirectory(t, "node-a:3000")

	req.NoError(d.MarkOnline(ctx, 1))
	mr.FastForward(31 * time.Second)

	_, err := d.Lookup(ctx, 1)
	req.ErrorIs(err, ErrNotOnline)
}

func TestRedisDirectory_RefreshExtendsOwnedKeys(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	d, mr := newTestRedisDirectory(t, "node-a:3000")

	// Given a key close to expiry
	req.NoError(d.MarkOnline(ctx, 1))
	mr.FastForward(25 * time.Second)
	req.Equal(5*time.Second, mr.TTL("chat:presence:user:1"))

	// When the heartbeat refreshes
	d.refreshKeys(ctx)

	// Then the full ttl is restored
	req.Equal(30*time.Second, mr.TTL("chat:presence:user:1"))

	// And released keys are no longer refreshed
	req.NoError(d.MarkOffline(ctx, 1))
	d.refreshKeys(ctx)
	req.False(mr.Exists("chat:presence:user:1"))
}

func TestRedisDirectory_ReleaseKeepsOtherInstancesKey(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	d, mr := newTestRedisDirectory(t, "node-a:3000")

	// Given the user has since connected to node b
	req.NoError(d.MarkOnline(ctx, 1))
	req.NoError(mr.Set("chat:presence:user:1", "node-b:3000"))

	// When node a releases its stale entry
	req.NoError(d.MarkOffline(ctx, 1))

	// Then node b's entry survives
	addr, err := d.Lookup(ctx, 1)
	req.NoError(err)
	req.Equal("node-b:3000", addr)
}

func TestRedisDirectory_LookupErrorIsNotOffline(t *testing.T) {
	req := require.New(t)
	d, mr := newTestRedisDirectory(t, "node-a:3000")

	mr.Close()
	_, err := d.Lookup(context.Background(), 1)
	req.Error(err)
	req.NotErrorIs(err, ErrNotOnline)
}
