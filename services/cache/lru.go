package cachesvc

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/pkg/errors"

	"github.com/mystudenthub/backend/core"
)

const lruViewSize = 1024

// LRUViewCache keeps view entries in process. Used when Redis is not configured.
// Entries are stored encoded so callers never share mutable values.
type LRUViewCache struct {
	entries *expirable.LRU[string, []byte]

	mu       sync.Mutex
	versions map[string]int64
}

var _ core.ViewCache = (*LRUViewCache)(nil)

func NewLRUViewCache(conf *core.Config) *LRUViewCache {
	ttl := conf.Redis.CacheTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &LRUViewCache{
		entries:  expirable.NewLRU[string, []byte](lruViewSize, nil, ttl),
		versions: make(map[string]int64),
	}
}

func lruKey(view, key string) string { return view + "\x00" + key }

func (c *LRUViewCache) version(view string) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.versions[view]
}

func (c *LRUViewCache) Get(_ context.Context, view, key string, dst interface{}) (int64, bool, error) {
	v := c.version(view)
	b, ok := c.entries.Get(lruKey(view, key))
	if !ok {
		return v, false, nil
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return v, false, errors.Wrap(err, "decoding view entry")
	}
	return v, true, nil
}

// Set drops the write when the view was invalidated after version was read.
func (c *LRUViewCache) Set(_ context.Context, view, key string, version int64, val interface{}) error {
	b, err := json.Marshal(val)
	if err != nil {
		return errors.Wrap(err, "encoding view entry")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.versions[view] != version {
		return nil
	}
	c.entries.Add(lruKey(view, key), b)
	return nil
}

func (c *LRUViewCache) Invalidate(_ context.Context, view string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.versions[view]++
	prefix := view + "\x00"
	for _, k := range c.entries.Keys() {
		if strings.HasPrefix(k, prefix) {
			c.entries.Remove(k)
		}
	}
	return nil
}

// LRURevoker keeps revoked token ids in process for at most maxAge.
// It is unbounded: evicting a live entry would let a revoked token back in.
type LRURevoker struct {
	revoked *expirable.LRU[string, time.Time]
	nowFunc func() time.Time
}

var _ core.TokenRevoker = (*LRURevoker)(nil)

// NewLRURevoker keeps entries for the longest lifetime a token can have.
func NewLRURevoker(conf *core.Config) *LRURevoker {
	maxAge := conf.Server.JWTRefreshExpirationDelta
	if conf.Server.JWTExpirationDelta > maxAge {
		maxAge = conf.Server.JWTExpirationDelta
	}
	return &LRURevoker{
		revoked: expirable.NewLRU[string, time.Time](0, nil, maxAge),
		nowFunc: core.NowFunc,
	}
}

func (r *LRURevoker) Revoke(_ context.Context, tokenID string, until time.Time) error {
	if !until.After(r.nowFunc()) {
		return nil
	}
	r.revoked.Add(tokenID, until)
	return nil
}

func (r *LRURevoker) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	until, ok := r.revoked.Get(tokenID)
	return ok && until.After(r.nowFunc()), nil
}
