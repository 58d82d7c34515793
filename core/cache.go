package core

import (
	"context"
	"time"
)

type (
	// ViewCache caches rendered query results per named view.
	// Invalidate drops every entry of the view at once.
	//
	// Get returns the view version it looked at, hit or miss. Set stores val only under that
	// version, so a result computed before an Invalidate is never served after it.
	ViewCache interface {
		Get(ctx context.Context, view, key string, dst interface{}) (version int64, found bool, err error)
		Set(ctx context.Context, view, key string, version int64, val interface{}) error
		Invalidate(ctx context.Context, view string) error
	}

	// TokenRevoker keeps track of revoked session tokens until they expire.
	TokenRevoker interface {
		Revoke(ctx context.Context, tokenID string, until time.Time) error
		IsRevoked(ctx context.Context, tokenID string) (bool, error)
	}
)
