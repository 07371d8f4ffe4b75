package domain

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ListOpts provides pagination for list queries.
type ListOpts struct {
	Limit  int
	Offset int
}

// ArenaStore persists the indexer's queryable mirror of arena records.
// Upserts must be idempotent keyed by arena id: the indexer replays ledger
// history at-least-once.
type ArenaStore interface {
	Upsert(ctx context.Context, arena Arena) error
	GetByID(ctx context.Context, id int64) (Arena, error)
	ListRecent(ctx context.Context, opts ListOpts) ([]Arena, error)
	ListByPhase(ctx context.Context, phase ArenaPhase, opts ListOpts) ([]Arena, error)
	Count(ctx context.Context) (int64, error)
}

// ParticipantStore persists per-(arena, identity) participation records.
type ParticipantStore interface {
	Upsert(ctx context.Context, p Participation) error
	Get(ctx context.Context, arenaID int64, addr common.Address) (Participation, error)
	ListByArena(ctx context.Context, arenaID int64) ([]Participation, error)
	MarkWinner(ctx context.Context, arenaID int64, addr common.Address) error
	MarkClaimed(ctx context.Context, arenaID int64, addr common.Address) error
}

// VoteStore persists per-(arena, voter) vote records.
type VoteStore interface {
	Upsert(ctx context.Context, v Vote) error
	Get(ctx context.Context, arenaID int64, voter common.Address) (Vote, error)
	ListByArena(ctx context.Context, arenaID int64) ([]Vote, error)
	Tallies(ctx context.Context, arenaID int64) ([]Tally, error)
	MarkClaimed(ctx context.Context, arenaID int64, voter common.Address) error
}

// ProfileStore persists identity display metadata.
type ProfileStore interface {
	Upsert(ctx context.Context, p Profile) error
	Get(ctx context.Context, addr common.Address) (Profile, error)
}

// RoastStore persists roast content, one row per (arena, author). Insert
// returns ErrAlreadyExists semantics via upsert-no-op: replays must not fail.
type RoastStore interface {
	Insert(ctx context.Context, r Roast) error
	Get(ctx context.Context, arenaID int64, author common.Address) (Roast, error)
	ListByArena(ctx context.Context, arenaID int64) ([]Roast, error)
}

// CheckpointStore persists the indexer's last-processed event sequence so a
// restart resumes where the previous run stopped.
type CheckpointStore interface {
	Get(ctx context.Context, name string) (int64, error)
	Set(ctx context.Context, name string, seq int64) error
}

// AuditEntry is a single append-only audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log of mutating API actions.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
