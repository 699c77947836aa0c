package tcp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Presence mirrors registered identities outside the process so that several
// servers sharing one store still allow a single session per identity.
// owner is the connection id holding the claim.
type Presence interface {
	Claim(ctx context.Context, identity, owner string) (bool, error)
	Refresh(ctx context.Context, identity, owner string) error
	Release(ctx context.Context, identity, owner string) error
}

const presencePrefix = "stockhub:presence:"

// ErrPresenceLost is returned by Refresh when the claim expired or belongs to another owner.
var ErrPresenceLost = errors.New("presence claim lost")

// only touch the key while it still belongs to owner
var (
	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)
	refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)
)

type RedisPresence struct {
	client *redis.Client
	ttl    time.Duration
}

// constructor for RedisPresence, verifies the connection
func NewRedisPresence(redisAddr, password string, ttl time.Duration) (*RedisPresence, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         redisAddr,
		Password:     password,
		DB:           0,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return NewRedisPresenceFromClient(rdb, ttl), nil
}

func NewRedisPresenceFromClient(client *redis.Client, ttl time.Duration) *RedisPresence {
	return &RedisPresence{client: client, ttl: ttl}
}

func presenceKey(identity string) string {
	return presencePrefix + identity
}

// Claim sets the key only if nobody holds it.
func (p *RedisPresence) Claim(ctx context.Context, identity, owner string) (bool, error) {
	ok, err := p.client.SetNX(ctx, presenceKey(identity), owner, p.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("presence claim failed: %w", err)
	}
	return ok, nil
}

func (p *RedisPresence) Refresh(ctx context.Context, identity, owner string) error {
	n, err := refreshScript.Run(ctx, p.client, []string{presenceKey(identity)}, owner, p.ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("presence refresh failed: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", identity, ErrPresenceLost)
	}
	return nil
}

func (p *RedisPresence) Release(ctx context.Context, identity, owner string) error {
	if err := releaseScript.Run(ctx, p.client, []string{presenceKey(identity)}, owner).Err(); err != nil {
		return fmt.Errorf("presence release failed: %w", err)
	}
	return nil
}

// Identities lists every identity currently claimed, across all servers.
func (p *RedisPresence) Identities(ctx context.Context) ([]string, error) {
	var (
		out    []string
		cursor uint64
	)
	for {
		// SCAN returns keys in batches without blocking
		keys, next, err := p.client.Scan(ctx, cursor, presencePrefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("presence scan failed: %w", err)
		}
		for _, key := range keys {
			out = append(out, strings.TrimPrefix(key, presencePrefix))
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return out, nil
}

func (p *RedisPresence) Close() error {
	return p.client.Close()
}
