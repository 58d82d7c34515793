// Package cachesvc implements the view cache and the session token revocation list.
package cachesvc

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/mystudenthub/backend/core"
)

const keyPrefix = "msh:"

// Interface is the subset of the Redis client used here.
type Interface interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Incr(ctx context.Context, key string) *redis.IntCmd
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisViewCache versions every view: Invalidate bumps the version so older entries are never read again
// and expire on their own.
type RedisViewCache struct {
	client Interface
	ttl    time.Duration
}

var _ core.ViewCache = (*RedisViewCache)(nil)

func NewRedisViewCache(client Interface, conf *core.Config) *RedisViewCache {
	ttl := conf.Redis.CacheTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisViewCache{client: client, ttl: ttl}
}

func versionKey(view string) string { return keyPrefix + "view:" + view + ":version" }

func (c *RedisViewCache) version(ctx context.Context, view string) (int64, error) {
	v, err := c.client.Get(ctx, versionKey(view)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return v, err
}

func entryKey(view string, version int64, key string) string {
	return fmt.Sprintf("%sview:%s:%d:%s", keyPrefix, view, version, key)
}

func (c *RedisViewCache) Get(ctx context.Context, view, key string, dst interface{}) (int64, bool, error) {
	v, err := c.version(ctx, view)
	if err != nil {
		return 0, false, errors.Wrap(err, "reading view version")
	}
	b, err := c.client.Get(ctx, entryKey(view, v, key)).Bytes()
	if err == redis.Nil {
		return v, false, nil
	}
	if err != nil {
		return v, false, errors.Wrap(err, "reading view entry")
	}
	if err = json.Unmarshal(b, dst); err != nil {
		return v, false, errors.Wrap(err, "decoding view entry")
	}
	return v, true, nil
}

// Set writes under the version read by Get. After an Invalidate that key is never read again.
func (c *RedisViewCache) Set(ctx context.Context, view, key string, version int64, val interface{}) error {
	current, err := c.version(ctx, view)
	if err != nil {
		return errors.Wrap(err, "reading view version")
	}
	if current != version {
		return nil
	}
	b, err := json.Marshal(val)
	if err != nil {
		return errors.Wrap(err, "encoding view entry")
	}
	return errors.Wrap(c.client.Set(ctx, entryKey(view, version, key), b, c.ttl).Err(), "writing view entry")
}

func (c *RedisViewCache) Invalidate(ctx context.Context, view string) error {
	return errors.Wrap(c.client.Incr(ctx, versionKey(view)).Err(), "bumping view version")
}

// RedisRevoker stores revoked token ids until the tokens expire.
type RedisRevoker struct {
	client  Interface
	nowFunc func() time.Time
}

var _ core.TokenRevoker = (*RedisRevoker)(nil)

func NewRedisRevoker(client Interface) *RedisRevoker {
	return &RedisRevoker{client: client, nowFunc: core.NowFunc}
}

func revokedKey(tokenID string) string { return keyPrefix + "revoked:" + tokenID }

func (r *RedisRevoker) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	ttl := until.Sub(r.nowFunc())
	if ttl <= 0 {
		return nil // already expired
	}
	return errors.Wrap(r.client.Set(ctx, revokedKey(tokenID), 1, ttl).Err(), "revoking token")
}

func (r *RedisRevoker) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := r.client.Exists(ctx, revokedKey(tokenID)).Result()
	if err != nil {
		return false, errors.Wrap(err, "checking token revocation")
	}
	return n > 0, nil
}
