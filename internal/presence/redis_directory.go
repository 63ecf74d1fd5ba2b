package presence

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MahiaRaniNatarajan/smartlearn/internal/config"
	"github.com/MahiaRaniNatarajan/smartlearn/pkg/log"
)

// releaseScript deletes a presence key only while it still names this
// instance, so a stale instance cannot evict a newer connection elsewhere.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisDirectory struct {
	client            *redis.Client
	advertiseAddress  string
	prefix            string
	keyTTL            time.Duration
	heartbeatInterval time.Duration
	managedKeys       map[string]struct{} // keys owned by this instance
	mu                sync.RWMutex
	cancel            context.CancelFunc
}

func NewRedisDirectory(cfg config.RedisConfig, advertiseAddress string) (*RedisDirectory, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return newRedisDirectory(client, cfg, advertiseAddress), nil
}

func newRedisDirectory(client *redis.Client, cfg config.RedisConfig, advertiseAddress string) *RedisDirectory {
	return &RedisDirectory{
		client:            client,
		advertiseAddress:  advertiseAddress,
		prefix:            cfg.PresencePrefix,
		keyTTL:            cfg.KeyTTL,
		heartbeatInterval: cfg.HeartbeatInterval,
		managedKeys:       make(map[string]struct{}),
	}
}

func (r *RedisDirectory) keyFor(userID int64) string {
	return r.prefix + ":user:" + strconv.FormatInt(userID, 10)
}

func (r *RedisDirectory) MarkOnline(ctx context.Context, userID int64) error {
	key := r.keyFor(userID)

	if err := r.client.Set(ctx, key, r.advertiseAddress, r.keyTTL).Err(); err != nil {
		return fmt.Errorf("failed to mark user online: %w", err)
	}

	r.mu.Lock()
	r.managedKeys[key] = struct{}{}
	r.mu.Unlock()

	l := log.Ctx(ctx)
	l.Debug().Int64(log.FieldUserID, userID).Str("address", r.advertiseAddress).Msg("user marked online")
	return nil
}

func (r *RedisDirectory) MarkOffline(ctx context.Context, userID int64) error {
	key := r.keyFor(userID)

	r.mu.Lock()
	delete(r.managedKeys, key)
	r.mu.Unlock()

	if err := releaseScript.Run(ctx, r.client, []string{key}, r.advertiseAddress).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to mark user offline: %w", err)
	}

	l := log.Ctx(ctx)
	l.Debug().Int64(log.FieldUserID, userID).Msg("user marked offline")
	return nil
}

func (r *RedisDirectory) Lookup(ctx context.Context, userID int64) (string, error) {
	addr, err := r.client.Get(ctx, r.keyFor(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotOnline
	}
	if err != nil {
		return "", fmt.Errorf("failed to lookup presence: %w", err)
	}
	return addr, nil
}

func (r *RedisDirectory) StartHeartbeat(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	go r.heartbeatLoop(ctx)
	l := log.L()
	l.Info().Dur("interval", r.heartbeatInterval).Dur("ttl", r.keyTTL).Msg("presence heartbeat started")
	return nil
}

func (r *RedisDirectory) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(r.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.refreshKeys(ctx)
		}
	}
}

func (r *RedisDirectory) refreshKeys(ctx context.Context) {
	r.mu.RLock()
	keys := make([]string, 0, len(r.managedKeys))
	for k := range r.managedKeys {
		keys = append(keys, k)
	}
	r.mu.RUnlock()

	if len(keys) == 0 {
		return
	}

	pipe := r.client.Pipeline()
	for _, key := range keys {
		pipe.Set(ctx, key, r.advertiseAddress, r.keyTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		l := log.L()
		l.Error().Int("keys", len(keys)).Err(err).Msg("failed to refresh presence keys")
	}
}

func (r *RedisDirectory) StopHeartbeat() {
	if r.cancel != nil {
		r.cancel()
	}
}

func (r *RedisDirectory) Close() error {
	r.StopHeartbeat()
	return r.client.Close()
}
