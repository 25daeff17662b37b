package guard

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultClaimTTL = 10 * time.Minute

// RedisGuard implements ApplyGuard with SETNX so the claim holds across
// processes. The TTL bounds how long a crashed claimant can block retries.
type RedisGuard struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisGuard(addr, password string, db int, ttl time.Duration) (*RedisGuard, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return NewRedisGuardWithClient(client, ttl), nil
}

// NewRedisGuardWithClient wraps an existing client; tests hand in one
// pointed at miniredis.
func NewRedisGuardWithClient(client *redis.Client, ttl time.Duration) *RedisGuard {
	if ttl <= 0 {
		ttl = defaultClaimTTL
	}
	return &RedisGuard{client: client, ttl: ttl}
}

func (g *RedisGuard) Begin(ctx context.Context, orgID, proposalID string) (bool, error) {
	ok, err := g.client.SetNX(ctx, guardKey(orgID, proposalID), time.Now().UTC().Format(time.RFC3339), g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim apply guard: %w", err)
	}
	return ok, nil
}

func (g *RedisGuard) Remove(ctx context.Context, orgID, proposalID string) error {
	if err := g.client.Del(ctx, guardKey(orgID, proposalID)).Err(); err != nil {
		return fmt.Errorf("release apply guard: %w", err)
	}
	return nil
}

func (g *RedisGuard) Close() error {
	return g.client.Close()
}
