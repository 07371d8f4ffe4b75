package domain

import (
	"context"
	"io"
	"time"
)

// ArenaCache is a read-through cache of arena snapshots in front of the
// persistent mirror.
type ArenaCache interface {
	Get(ctx context.Context, id int64) (Arena, error)
	Set(ctx context.Context, arena Arena) error
	Invalidate(ctx context.Context, id int64) error
}

// LockManager provides distributed mutual exclusion. Acquire returns an
// unlock function on success, or ErrLockHeld if another party holds the lock.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// RateLimiter enforces request budgets per key.
type RateLimiter interface {
	// Allow reports whether the action identified by key is within its
	// budget of limit events per window.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// SignalBus is a publish/subscribe fabric carrying serialized ledger events
// to WebSocket clients and other in-process consumers.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// BlobWriter stores media objects.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// BlobReader retrieves media objects.
type BlobReader interface {
	Get(ctx context.Context, path string) (io.ReadCloser, string, error)
}
