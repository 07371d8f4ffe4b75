package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sankalp771/MONAD-RAGE/internal/domain"
)

// arenaTTL is kept short because an arena's effective phase is a function of
// wall-clock time; a stale snapshot must age out before a window boundary
// confuses readers for long.
const arenaTTL = 30 * time.Second

// ArenaCache implements domain.ArenaCache using Redis strings holding
// JSON-serialized arena snapshots.
//
// Key schema:
//
//	arena:{id} - JSON-encoded domain.Arena
type ArenaCache struct {
	rdb *redis.Client
}

// NewArenaCache creates an ArenaCache backed by the given Client.
func NewArenaCache(c *Client) *ArenaCache {
	return &ArenaCache{rdb: c.rdb}
}

func arenaKey(id int64) string { return "arena:" + strconv.FormatInt(id, 10) }

// Set stores an arena snapshot with a short TTL.
func (ac *ArenaCache) Set(ctx context.Context, arena domain.Arena) error {
	data, err := json.Marshal(arena)
	if err != nil {
		return fmt.Errorf("redis: marshal arena %d: %w", arena.ID, err)
	}

	if err := ac.rdb.Set(ctx, arenaKey(arena.ID), data, arenaTTL).Err(); err != nil {
		return fmt.Errorf("redis: set arena %d: %w", arena.ID, err)
	}
	return nil
}

// Get retrieves an arena snapshot by ID.
// It returns domain.ErrNotFound when the key does not exist.
func (ac *ArenaCache) Get(ctx context.Context, id int64) (domain.Arena, error) {
	data, err := ac.rdb.Get(ctx, arenaKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Arena{}, domain.ErrNotFound
		}
		return domain.Arena{}, fmt.Errorf("redis: get arena %d: %w", id, err)
	}

	var arena domain.Arena
	if err := json.Unmarshal(data, &arena); err != nil {
		return domain.Arena{}, fmt.Errorf("redis: unmarshal arena %d: %w", id, err)
	}
	return arena, nil
}

// Invalidate removes an arena snapshot from the cache.
func (ac *ArenaCache) Invalidate(ctx context.Context, id int64) error {
	if err := ac.rdb.Del(ctx, arenaKey(id)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate arena %d: %w", id, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.ArenaCache = (*ArenaCache)(nil)
