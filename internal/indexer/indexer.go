// Package indexer mirrors the ledger's notification history into the
// queryable Postgres store. It replays events in sequence order in fixed
// batches, persists its last-processed position for restart safety, and
// tolerates duplicate delivery: every write is an idempotent upsert keyed by
// arena id or (arena id, identity).
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/sankalp771/MONAD-RAGE/internal/domain"
)

const (
	// batchSize bounds each history scan, mirroring the range limit of the
	// ledger host's event query.
	batchSize = 100

	// coldStartWindow bounds the initial scan when no checkpoint exists:
	// only this many trailing events are replayed instead of full history.
	coldStartWindow = 1000

	// checkpointName keys the indexer's position in the checkpoint store.
	checkpointName = "arena_indexer"
)

// LedgerSource is the read surface of the ledger the indexer replays from.
type LedgerSource interface {
	History(from int64, limit int) []domain.Event
	LastSeq() int64
	GetArena(id int64) (domain.Arena, error)
	Winners(id int64) ([]common.Address, error)
}

// Indexer replays ledger history into the mirror stores.
type Indexer struct {
	source      LedgerSource
	arenas      domain.ArenaStore
	parts       domain.ParticipantStore
	votes       domain.VoteStore
	checkpoints domain.CheckpointStore
	logger      *slog.Logger
}

// New creates an Indexer over the given source and mirror stores.
func New(
	source LedgerSource,
	arenas domain.ArenaStore,
	parts domain.ParticipantStore,
	votes domain.VoteStore,
	checkpoints domain.CheckpointStore,
	logger *slog.Logger,
) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{
		source:      source,
		arenas:      arenas,
		parts:       parts,
		votes:       votes,
		checkpoints: checkpoints,
		logger:      logger.With(slog.String("component", "indexer")),
	}
}

// Run executes a single catch-up pass: it resumes from the persisted
// checkpoint (or a bounded recent window on cold start), replays history in
// batches, and persists the new position after each batch. It returns the
// number of events processed.
func (ix *Indexer) Run(ctx context.Context) (int, error) {
	from, err := ix.startSeq(ctx)
	if err != nil {
		return 0, err
	}

	processed := 0
	for {
		if err := ctx.Err(); err != nil {
			return processed, err
		}

		batch := ix.source.History(from, batchSize)
		if len(batch) == 0 {
			return processed, nil
		}

		for _, ev := range batch {
			if err := ix.apply(ctx, ev); err != nil {
				return processed, fmt.Errorf("indexer: apply event seq %d: %w", ev.Seq, err)
			}
			processed++
		}

		last := batch[len(batch)-1].Seq
		if err := ix.checkpoints.Set(ctx, checkpointName, last); err != nil {
			return processed, fmt.Errorf("indexer: persist checkpoint %d: %w", last, err)
		}
		from = last + 1
	}
}

// startSeq resolves the first sequence number to replay. With a persisted
// checkpoint it resumes just past it; without one it scans only the trailing
// coldStartWindow events rather than full history.
func (ix *Indexer) startSeq(ctx context.Context) (int64, error) {
	seq, err := ix.checkpoints.Get(ctx, checkpointName)
	if err == nil {
		return seq + 1, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return 0, fmt.Errorf("indexer: load checkpoint: %w", err)
	}

	last := ix.source.LastSeq()
	from := last - coldStartWindow + 1
	if from < 1 {
		from = 1
	}
	ix.logger.Info("no checkpoint, cold start over recent window",
		slog.Int64("from_seq", from),
		slog.Int64("last_seq", last),
	)
	return from, nil
}

// apply mirrors one event. Replays may deliver an event more than once;
// every branch is a keyed upsert so reapplication converges to the same
// rows.
func (ix *Indexer) apply(ctx context.Context, ev domain.Event) error {
	switch ev.Kind {
	case domain.EventArenaCreated:
		return ix.refreshArena(ctx, ev.ArenaID)

	case domain.EventParticipantJoined:
		if ev.ParticipantJoined == nil {
			return fmt.Errorf("event seq %d: missing participant_joined payload", ev.Seq)
		}
		if err := ix.parts.Upsert(ctx, domain.Participation{
			ArenaID:  ev.ArenaID,
			Address:  ev.ParticipantJoined.Participant,
			JoinedAt: ev.At,
		}); err != nil {
			return err
		}
		return ix.refreshArena(ctx, ev.ArenaID)

	case domain.EventVoteCast:
		if ev.VoteCast == nil {
			return fmt.Errorf("event seq %d: missing vote_cast payload", ev.Seq)
		}
		if err := ix.votes.Upsert(ctx, domain.Vote{
			ArenaID:   ev.ArenaID,
			Voter:     ev.VoteCast.Voter,
			Candidate: ev.VoteCast.Candidate,
			CastAt:    ev.At,
		}); err != nil {
			return err
		}
		return ix.refreshArena(ctx, ev.ArenaID)

	case domain.EventArenaSettled:
		winners, err := ix.source.Winners(ev.ArenaID)
		if err != nil {
			return err
		}
		for _, w := range winners {
			if err := ix.parts.MarkWinner(ctx, ev.ArenaID, w); err != nil {
				return err
			}
		}
		return ix.refreshArena(ctx, ev.ArenaID)

	case domain.EventArenaCancelled:
		return ix.refreshArena(ctx, ev.ArenaID)

	case domain.EventRewardClaimed:
		if ev.RewardClaimed == nil {
			return fmt.Errorf("event seq %d: missing reward_claimed payload", ev.Seq)
		}
		if ev.RewardClaimed.IsParticipantReward {
			if err := ix.parts.MarkClaimed(ctx, ev.ArenaID, ev.RewardClaimed.Claimer); err != nil {
				return err
			}
		} else {
			if err := ix.votes.MarkClaimed(ctx, ev.ArenaID, ev.RewardClaimed.Claimer); err != nil {
				return err
			}
		}
		return ix.refreshArena(ctx, ev.ArenaID)

	case domain.EventRefundClaimed:
		if ev.RefundClaimed == nil {
			return fmt.Errorf("event seq %d: missing refund_claimed payload", ev.Seq)
		}
		// A refund settles both possible entitlements; marking a row that
		// does not exist is a no-op in the store.
		if err := ix.parts.MarkClaimed(ctx, ev.ArenaID, ev.RefundClaimed.Claimer); err != nil {
			return err
		}
		if err := ix.votes.MarkClaimed(ctx, ev.ArenaID, ev.RefundClaimed.Claimer); err != nil {
			return err
		}
		return ix.refreshArena(ctx, ev.ArenaID)

	default:
		// Unknown kinds are logged and skipped so a newer ledger does not
		// wedge an older indexer.
		ix.logger.Warn("skipping unknown event kind",
			slog.Int64("seq", ev.Seq),
			slog.String("kind", string(ev.Kind)),
		)
		return nil
	}
}

// refreshArena upserts the current arena snapshot. Reading the live record
// rather than reconstructing it from payloads keeps replays convergent no
// matter where the checkpoint landed.
func (ix *Indexer) refreshArena(ctx context.Context, id int64) error {
	arena, err := ix.source.GetArena(id)
	if err != nil {
		return err
	}
	return ix.arenas.Upsert(ctx, arena)
}

// RunLoop runs catch-up passes on a fixed interval until the context is
// cancelled. Individual pass failures are logged and retried on the next
// tick.
func (ix *Indexer) RunLoop(ctx context.Context, interval time.Duration) error {
	if n, err := ix.Run(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		ix.logger.Error("index pass failed", slog.String("error", err.Error()))
	} else if n > 0 {
		ix.logger.Info("index pass complete", slog.Int("events", n))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			ix.logger.Info("indexer loop stopped")
			return ctx.Err()
		case <-ticker.C:
			n, err := ix.Run(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				ix.logger.Error("index pass failed", slog.String("error", err.Error()))
				continue
			}
			if n > 0 {
				ix.logger.Info("index pass complete", slog.Int("events", n))
			}
		}
	}
}
