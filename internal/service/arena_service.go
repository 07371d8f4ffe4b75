// Package service contains the application services that sit between the
// HTTP handlers and the ledger, stores, and caches.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	"github.com/sankalp771/MONAD-RAGE/internal/domain"
	"github.com/sankalp771/MONAD-RAGE/internal/ledger"
	"github.com/sankalp771/MONAD-RAGE/internal/notify"
)

// Pub/Sub channels the arena service publishes serialized events to.
const (
	channelArena      = "ch:arena"
	channelVote       = "ch:vote"
	channelSettlement = "ch:settlement"
	channelClaim      = "ch:claim"
)

// eventBuffer bounds the fan-out queue between the ledger's synchronous
// notification callback and the publishing goroutine.
const eventBuffer = 1024

// ArenaService exposes the ledger's operations with side effects the ledger
// itself must not perform: cache invalidation, event publication, audit
// logging, and operator notifications.
//
// The ledger remains the single source of truth; everything this service
// does around a mutation is best-effort and never blocks or fails the
// mutation itself.
type ArenaService struct {
	ledger   *ledger.Ledger
	cache    domain.ArenaCache
	bus      domain.SignalBus
	audit    domain.AuditStore
	notifier *notify.Notifier
	logger   *slog.Logger

	events chan domain.Event
}

// NewArenaService creates an ArenaService. Cache, bus, audit, and notifier
// may be nil; the corresponding side effects are skipped.
func NewArenaService(
	ldg *ledger.Ledger,
	cache domain.ArenaCache,
	bus domain.SignalBus,
	audit domain.AuditStore,
	notifier *notify.Notifier,
	logger *slog.Logger,
) *ArenaService {
	s := &ArenaService{
		ledger:   ldg,
		cache:    cache,
		bus:      bus,
		audit:    audit,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "arena_service")),
		events:   make(chan domain.Event, eventBuffer),
	}
	ldg.SetNotify(s.enqueue)
	return s
}

// enqueue receives events from the ledger's notification callback. The
// callback runs under the ledger lock, so this must never block; if the
// buffer is full the event is dropped for live consumers (the durable event
// log still has it, and the indexer replays from there).
func (s *ArenaService) enqueue(ev domain.Event) {
	select {
	case s.events <- ev:
	default:
		s.logger.Warn("event buffer full, dropping live event",
			slog.Int64("seq", ev.Seq),
			slog.String("kind", string(ev.Kind)),
		)
	}
}

// Run drains the event queue, publishing each event to the signal bus and
// performing per-event side effects. It blocks until ctx is cancelled.
func (s *ArenaService) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-s.events:
			s.fanOut(ctx, ev)
		}
	}
}

func (s *ArenaService) fanOut(ctx context.Context, ev domain.Event) {
	// Any mutation can change the arena snapshot; drop the cached copy.
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, ev.ArenaID); err != nil {
			s.logger.WarnContext(ctx, "cache invalidate failed",
				slog.Int64("arena_id", ev.ArenaID),
				slog.String("error", err.Error()),
			)
		}
	}

	if s.bus != nil {
		payload, err := json.Marshal(ev)
		if err != nil {
			s.logger.ErrorContext(ctx, "marshal event failed",
				slog.Int64("seq", ev.Seq),
				slog.String("error", err.Error()),
			)
		} else if err := s.bus.Publish(ctx, channelFor(ev.Kind), payload); err != nil {
			s.logger.WarnContext(ctx, "publish event failed",
				slog.Int64("seq", ev.Seq),
				slog.String("kind", string(ev.Kind)),
				slog.String("error", err.Error()),
			)
		}
	}

	if s.notifier != nil {
		switch ev.Kind {
		case domain.EventArenaSettled:
			title := fmt.Sprintf("Arena %d settled", ev.ArenaID)
			msg := ""
			if p := ev.ArenaSettled; p != nil {
				msg = fmt.Sprintf("%d winner(s), participant pool %d, voter pool %d",
					p.NumWinners, p.ParticipantPool, p.VoterPool)
			}
			if err := s.notifier.Notify(ctx, notify.EventArenaSettled, title, msg); err != nil {
				s.logger.WarnContext(ctx, "settle notification failed",
					slog.Int64("arena_id", ev.ArenaID),
					slog.String("error", err.Error()),
				)
			}
		case domain.EventArenaCancelled:
			title := fmt.Sprintf("Arena %d cancelled", ev.ArenaID)
			msg := ""
			if p := ev.ArenaCancelled; p != nil {
				msg = string(p.Reason)
			}
			if err := s.notifier.Notify(ctx, notify.EventArenaCancelled, title, msg); err != nil {
				s.logger.WarnContext(ctx, "cancel notification failed",
					slog.Int64("arena_id", ev.ArenaID),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// channelFor maps an event kind to its pub/sub channel.
func channelFor(kind domain.EventKind) string {
	switch kind {
	case domain.EventVoteCast:
		return channelVote
	case domain.EventArenaSettled, domain.EventArenaCancelled:
		return channelSettlement
	case domain.EventRewardClaimed, domain.EventRefundClaimed:
		return channelClaim
	default:
		return channelArena
	}
}

// auditLog records a mutating action. Audit failures are logged, never
// surfaced to the caller.
func (s *ArenaService) auditLog(ctx context.Context, event string, detail map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Log(ctx, event, detail); err != nil {
		s.logger.WarnContext(ctx, "audit log failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

// Create opens a new arena funded by the creator's stake.
func (s *ArenaService) Create(ctx context.Context, creator common.Address, roastStake, voteStake, supplied int64) (int64, error) {
	id, err := s.ledger.CreateArena(creator, roastStake, voteStake, supplied)
	if err != nil {
		return 0, fmt.Errorf("arena_service: create: %w", err)
	}

	s.auditLog(ctx, "arena.create", map[string]any{
		"arena_id":    id,
		"creator":     creator.Hex(),
		"roast_stake": roastStake,
		"vote_stake":  voteStake,
	})
	return id, nil
}

// Join enrols the caller as a participant in an open arena.
func (s *ArenaService) Join(ctx context.Context, caller common.Address, arenaID, supplied int64) error {
	if err := s.ledger.JoinArena(caller, arenaID, supplied); err != nil {
		return fmt.Errorf("arena_service: join arena %d: %w", arenaID, err)
	}

	s.auditLog(ctx, "arena.join", map[string]any{
		"arena_id": arenaID,
		"address":  caller.Hex(),
	})
	return nil
}

// Vote casts the caller's vote for a candidate in the voting window.
func (s *ArenaService) Vote(ctx context.Context, caller common.Address, arenaID int64, candidate common.Address, supplied int64) error {
	if err := s.ledger.CastVote(caller, arenaID, candidate, supplied); err != nil {
		return fmt.Errorf("arena_service: vote in arena %d: %w", arenaID, err)
	}

	s.auditLog(ctx, "arena.vote", map[string]any{
		"arena_id":  arenaID,
		"voter":     caller.Hex(),
		"candidate": candidate.Hex(),
	})
	return nil
}

// Settle finalizes an arena whose voting window has ended.
func (s *ArenaService) Settle(ctx context.Context, caller common.Address, arenaID int64) (domain.Arena, error) {
	if err := s.ledger.Settle(caller, arenaID); err != nil {
		return domain.Arena{}, fmt.Errorf("arena_service: settle arena %d: %w", arenaID, err)
	}

	arena, err := s.ledger.GetArena(arenaID)
	if err != nil {
		return domain.Arena{}, fmt.Errorf("arena_service: settle arena %d: %w", arenaID, err)
	}

	s.auditLog(ctx, "arena.settle", map[string]any{
		"arena_id": arenaID,
		"caller":   caller.Hex(),
		"phase":    string(arena.Phase),
	})
	return arena, nil
}

// ClaimParticipantReward pays out the caller's winner share.
func (s *ArenaService) ClaimParticipantReward(ctx context.Context, caller common.Address, arenaID int64) (int64, error) {
	amount, err := s.ledger.ClaimParticipantReward(caller, arenaID)
	if err != nil {
		return 0, fmt.Errorf("arena_service: claim participant reward, arena %d: %w", arenaID, err)
	}

	s.auditLog(ctx, "arena.claim_participant", map[string]any{
		"arena_id": arenaID,
		"claimer":  caller.Hex(),
		"amount":   amount,
	})
	return amount, nil
}

// ClaimVoterReward pays out the caller's voter share.
func (s *ArenaService) ClaimVoterReward(ctx context.Context, caller common.Address, arenaID int64) (int64, error) {
	amount, err := s.ledger.ClaimVoterReward(caller, arenaID)
	if err != nil {
		return 0, fmt.Errorf("arena_service: claim voter reward, arena %d: %w", arenaID, err)
	}

	s.auditLog(ctx, "arena.claim_voter", map[string]any{
		"arena_id": arenaID,
		"claimer":  caller.Hex(),
		"amount":   amount,
	})
	return amount, nil
}

// ClaimRefund returns the caller's stakes from a cancelled arena.
func (s *ArenaService) ClaimRefund(ctx context.Context, caller common.Address, arenaID int64) (int64, error) {
	amount, err := s.ledger.ClaimRefund(caller, arenaID)
	if err != nil {
		return 0, fmt.Errorf("arena_service: claim refund, arena %d: %w", arenaID, err)
	}

	s.auditLog(ctx, "arena.claim_refund", map[string]any{
		"arena_id": arenaID,
		"claimer":  caller.Hex(),
		"amount":   amount,
	})
	return amount, nil
}

// GetArena retrieves an arena snapshot, checking the cache first and falling
// back to the ledger on a miss. The snapshot's stored phase may lag behind
// the time-derived phase; callers needing the live phase should use Phase.
func (s *ArenaService) GetArena(ctx context.Context, arenaID int64) (domain.Arena, error) {
	if s.cache != nil {
		if arena, err := s.cache.Get(ctx, arenaID); err == nil {
			return arena, nil
		}
	}

	arena, err := s.ledger.GetArena(arenaID)
	if err != nil {
		return domain.Arena{}, fmt.Errorf("arena_service: get arena %d: %w", arenaID, err)
	}

	if s.cache != nil {
		if cacheErr := s.cache.Set(ctx, arena); cacheErr != nil {
			s.logger.WarnContext(ctx, "cache set failed",
				slog.Int64("arena_id", arenaID),
				slog.String("error", cacheErr.Error()),
			)
		}
	}
	return arena, nil
}

// Phase returns the time-derived effective phase of an arena.
func (s *ArenaService) Phase(ctx context.Context, arenaID int64) (domain.ArenaPhase, error) {
	phase, err := s.ledger.Phase(arenaID)
	if err != nil {
		return "", fmt.Errorf("arena_service: phase of arena %d: %w", arenaID, err)
	}
	return phase, nil
}

// Recent returns arena snapshots newest-first.
func (s *ArenaService) Recent(ctx context.Context, opts domain.ListOpts) ([]domain.Arena, error) {
	ids := s.ledger.RecentArenaIDs(opts.Limit, opts.Offset)
	arenas := make([]domain.Arena, 0, len(ids))
	for _, id := range ids {
		arena, err := s.ledger.GetArena(id)
		if err != nil {
			return nil, fmt.Errorf("arena_service: recent arenas: %w", err)
		}
		arenas = append(arenas, arena)
	}
	return arenas, nil
}

// Participants returns an arena's participants in join order.
func (s *ArenaService) Participants(ctx context.Context, arenaID int64) ([]common.Address, error) {
	parts, err := s.ledger.Participants(arenaID)
	if err != nil {
		return nil, fmt.Errorf("arena_service: participants of arena %d: %w", arenaID, err)
	}
	return parts, nil
}

// Winners returns a settled arena's winners in join order.
func (s *ArenaService) Winners(ctx context.Context, arenaID int64) ([]common.Address, error) {
	winners, err := s.ledger.Winners(arenaID)
	if err != nil {
		return nil, fmt.Errorf("arena_service: winners of arena %d: %w", arenaID, err)
	}
	return winners, nil
}

// Tallies returns the per-candidate vote counts for an arena.
func (s *ArenaService) Tallies(ctx context.Context, arenaID int64) ([]domain.Tally, error) {
	tallies, err := s.ledger.Tallies(arenaID)
	if err != nil {
		return nil, fmt.Errorf("arena_service: tallies of arena %d: %w", arenaID, err)
	}
	return tallies, nil
}

// VoteOf returns the vote a voter cast in an arena.
func (s *ArenaService) VoteOf(ctx context.Context, arenaID int64, voter common.Address) (domain.Vote, error) {
	vote, err := s.ledger.VoteOf(arenaID, voter)
	if err != nil {
		return domain.Vote{}, fmt.Errorf("arena_service: vote of %s in arena %d: %w", voter.Hex(), arenaID, err)
	}
	return vote, nil
}

// History returns ledger events in sequence order starting at from.
func (s *ArenaService) History(ctx context.Context, from int64, limit int) []domain.Event {
	return s.ledger.History(from, limit)
}

// Count returns the number of arenas ever created.
func (s *ArenaService) Count(ctx context.Context) int64 {
	return s.ledger.ArenaCount()
}

// TotalEscrowed returns the total value currently held in escrow.
func (s *ArenaService) TotalEscrowed(ctx context.Context) int64 {
	return s.ledger.TotalEscrowed()
}
