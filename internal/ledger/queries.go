package ledger

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/sankalp771/MONAD-RAGE/internal/domain"
)

// Read-only queries. Each is a pure function of current ledger state; none
// mutates anything, including the memoized phase.

// ArenaCount returns the number of arenas ever created. The id space is
// dense, so valid ids are exactly 1..ArenaCount.
func (l *Ledger) ArenaCount() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return int64(len(l.arenas))
}

// GetArena returns a snapshot of the arena record.
func (l *Ledger) GetArena(arenaID int64) (domain.Arena, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	st, err := l.state(arenaID)
	if err != nil {
		return domain.Arena{}, err
	}
	return st.arena, nil
}

// Phase returns the arena's effective current phase: time-derived for the
// open/voting edge, stored for the terminal states.
func (l *Ledger) Phase(arenaID int64) (domain.ArenaPhase, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	st, err := l.state(arenaID)
	if err != nil {
		return "", err
	}
	return st.arena.EffectivePhase(l.clock.Now()), nil
}

// Participants returns the join-ordered participant list.
func (l *Ledger) Participants(arenaID int64) ([]common.Address, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	st, err := l.state(arenaID)
	if err != nil {
		return nil, err
	}
	out := make([]common.Address, len(st.participants))
	copy(out, st.participants)
	return out, nil
}

// Winners returns the flagged winners in join order. Empty until settlement.
func (l *Ledger) Winners(arenaID int64) ([]common.Address, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	st, err := l.state(arenaID)
	if err != nil {
		return nil, err
	}
	var out []common.Address
	for _, p := range st.participants {
		if st.winners[p] {
			out = append(out, p)
		}
	}
	return out, nil
}

// Tallies returns per-candidate vote counts in join order.
func (l *Ledger) Tallies(arenaID int64) ([]domain.Tally, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	st, err := l.state(arenaID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Tally, 0, len(st.participants))
	for _, p := range st.participants {
		out = append(out, domain.Tally{Candidate: p, Votes: st.tallies[p]})
	}
	return out, nil
}

// VoteOf returns the vote record for the given voter, or ErrNotFound when
// the identity never voted in this arena.
func (l *Ledger) VoteOf(arenaID int64, voter common.Address) (domain.Vote, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	st, err := l.state(arenaID)
	if err != nil {
		return domain.Vote{}, err
	}
	v, ok := st.votes[voter]
	if !ok {
		return domain.Vote{}, domain.ErrNotFound
	}
	return domain.Vote{
		ArenaID:       arenaID,
		Voter:         voter,
		Candidate:     v.candidate,
		CastAt:        v.castAt,
		RewardClaimed: v.rewardClaimed,
	}, nil
}

// RecentArenaIDs enumerates arena ids newest-first. The id space is dense
// and monotonic, so this is a pure range computation.
func (l *Ledger) RecentArenaIDs(limit, offset int) []int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	if limit <= 0 {
		return nil
	}
	if offset < 0 {
		offset = 0
	}
	newest := int64(len(l.arenas)) - int64(offset)
	var out []int64
	for id := newest; id >= 1 && len(out) < limit; id-- {
		out = append(out, id)
	}
	return out
}

// History returns up to limit events starting at sequence from, in order.
// A single scan is capped at 100 events; callers page through history in
// batches and track their own last-processed position.
func (l *Ledger) History(from int64, limit int) []domain.Event {
	if limit <= 0 || limit > historyBatchLimit {
		limit = historyBatchLimit
	}
	return l.log.Range(from, limit)
}

// LastSeq returns the sequence number of the most recent event.
func (l *Ledger) LastSeq() int64 {
	return l.log.Len()
}

// TotalEscrowed sums the escrowed value over all arenas. The conservation
// invariant ties this to the vault: no value is created or destroyed, only
// moved between escrow and claimants.
func (l *Ledger) TotalEscrowed() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	var total int64
	for _, st := range l.arenas {
		total += st.arena.Escrowed()
	}
	return total
}
