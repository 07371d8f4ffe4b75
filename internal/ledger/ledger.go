// Package ledger implements the arena settlement and escrow engine: the
// lifecycle state machine, the dual-pool accounting, the all-ties-win
// settlement rule, and the pull-based claim/refund protocol.
//
// Every mutating operation runs under a single mutex, fully serialized
// against every other call, so no partial state is ever visible and the
// conservation invariants hold by construction. Payouts follow the strict
// order "mark claimed, then transfer": the claim flag and pool debit commit
// under the lock before the vault transfer runs outside it, so a payee
// re-entering the ledger from inside the transfer finds the claim already
// recorded. A failed transfer rolls the commit back under the lock.
package ledger

import (
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/sankalp771/MONAD-RAGE/internal/domain"
)

// historyBatchLimit caps a single History scan, mirroring the range limit of
// the original host's event query.
const historyBatchLimit = 100

// Clock supplies the prevailing ledger time. Deadlines are evaluated by pure
// comparison against it, never by scheduled callbacks.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall-clock Clock used outside of tests.
type SystemClock struct{}

// Now returns the current wall-clock time.
func (SystemClock) Now() time.Time { return time.Now() }

// Config fixes the arena window lengths. Stakes are per-arena; the windows
// are protocol-wide and fixed at creation time for each arena.
type Config struct {
	OpenWindow time.Duration // creation -> join deadline
	VoteWindow time.Duration // join deadline -> vote deadline
}

// Defaults returns the standard window configuration.
func Defaults() Config {
	return Config{
		OpenWindow: 3 * time.Minute,
		VoteWindow: 4 * time.Minute,
	}
}

// participation is the per-(arena, identity) join record. rewardClaimed is
// permanent once set; for cancelled arenas it tracks the stake refund.
type participation struct {
	joinedAt      time.Time
	rewardClaimed bool
}

// voteRecord is the per-(arena, voter) vote record. rewardClaimed is
// permanent once set; for cancelled arenas it tracks the vote-stake refund.
type voteRecord struct {
	candidate     common.Address
	castAt        time.Time
	rewardClaimed bool
}

type arenaState struct {
	arena        domain.Arena
	participants []common.Address // join order
	joined       map[common.Address]*participation
	votes        map[common.Address]*voteRecord // keyed by voter
	tallies      map[common.Address]int         // keyed by candidate
	winners      map[common.Address]bool        // set at settlement, never cleared
}

// Ledger owns all arena records, the escrowed balances, and the settlement
// algorithm. All mutating operations are serialized behind one mutex.
type Ledger struct {
	mu     sync.Mutex
	cfg    Config
	clock  Clock
	vault  Vault
	log    *EventLog
	logger *slog.Logger

	arenas []*arenaState // dense; arena id = index + 1

	// notify, when set, receives every appended event in sequence order.
	// It is invoked with the ledger lock held and must not call back in.
	notify func(domain.Event)
}

// New creates a Ledger with the given window configuration, clock, and vault.
func New(cfg Config, clock Clock, vault Vault, logger *slog.Logger) *Ledger {
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{
		cfg:    cfg,
		clock:  clock,
		vault:  vault,
		log:    NewEventLog(),
		logger: logger.With(slog.String("component", "ledger")),
	}
}

// SetNotify registers the event callback. Must be called before the ledger
// starts taking operations.
func (l *Ledger) SetNotify(fn func(domain.Event)) {
	l.notify = fn
}

func (l *Ledger) emit(ev domain.Event) {
	ev.At = l.clock.Now()
	ev = l.log.Append(ev)
	if l.notify != nil {
		l.notify(ev)
	}
}

func (l *Ledger) state(arenaID int64) (*arenaState, error) {
	if arenaID < 1 || arenaID > int64(len(l.arenas)) {
		return nil, domain.ErrArenaNotFound
	}
	return l.arenas[arenaID-1], nil
}

// CreateArena opens a new contest. Both stakes must be strictly positive and
// supplied must exactly equal roastStake; the creator is auto-enrolled as the
// first participant and supplied seeds the participant pool. Returns the new
// arena id.
func (l *Ledger) CreateArena(creator common.Address, roastStake, voteStake, supplied int64) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if roastStake <= 0 || voteStake <= 0 {
		return 0, domain.ErrStakeTooLow
	}
	if supplied != roastStake {
		return 0, domain.ErrIncorrectStakeAmount
	}

	now := l.clock.Now()
	id := int64(len(l.arenas)) + 1
	st := &arenaState{
		arena: domain.Arena{
			ID:           id,
			Creator:      creator,
			RoastStake:   roastStake,
			VoteStake:    voteStake,
			JoinDeadline: now.Add(l.cfg.OpenWindow),
			VoteDeadline: now.Add(l.cfg.OpenWindow + l.cfg.VoteWindow),
			Phase:        domain.PhaseOpen,
			CreatedAt:    now,
		},
		joined:  make(map[common.Address]*participation),
		votes:   make(map[common.Address]*voteRecord),
		tallies: make(map[common.Address]int),
		winners: make(map[common.Address]bool),
	}
	l.arenas = append(l.arenas, st)

	if err := l.vault.Collect(creator, supplied); err != nil {
		// Roll back the allocation; the id was never observable.
		l.arenas = l.arenas[:len(l.arenas)-1]
		return 0, err
	}

	l.emit(domain.Event{
		Kind:    domain.EventArenaCreated,
		ArenaID: id,
		ArenaCreated: &domain.ArenaCreatedPayload{
			Creator:      creator,
			RoastStake:   roastStake,
			VoteStake:    voteStake,
			JoinDeadline: st.arena.JoinDeadline,
			VoteDeadline: st.arena.VoteDeadline,
		},
	})
	l.join(st, creator, now)

	l.logger.Info("arena created",
		slog.Int64("arena_id", id),
		slog.String("creator", creator.Hex()),
		slog.Int64("roast_stake", roastStake),
		slog.Int64("vote_stake", voteStake),
	)
	return id, nil
}

// join records addr as a participant. Callers have already validated the
// join window, duplicate-join, and stake; the stake has been collected.
func (l *Ledger) join(st *arenaState, addr common.Address, now time.Time) {
	st.joined[addr] = &participation{joinedAt: now}
	st.participants = append(st.participants, addr)
	st.arena.ParticipantCount++
	st.arena.ParticipantPool += st.arena.RoastStake

	l.emit(domain.Event{
		Kind:    domain.EventParticipantJoined,
		ArenaID: st.arena.ID,
		ParticipantJoined: &domain.ParticipantJoinedPayload{
			Participant: addr,
		},
	})
}

// JoinArena enters the caller as a participant. supplied must equal the
// arena's roast stake and the join window must still be open.
func (l *Ledger) JoinArena(caller common.Address, arenaID, supplied int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	st, err := l.state(arenaID)
	if err != nil {
		return err
	}
	now := l.clock.Now()
	if !now.Before(st.arena.JoinDeadline) {
		return domain.ErrJoinWindowClosed
	}
	if _, ok := st.joined[caller]; ok {
		return domain.ErrAlreadyJoined
	}
	if supplied != st.arena.RoastStake {
		return domain.ErrIncorrectStakeAmount
	}

	if err := l.vault.Collect(caller, supplied); err != nil {
		return err
	}
	l.join(st, caller, now)
	return nil
}

// CastVote stakes supplied on candidate. Any identity may vote, including
// participants, but never for itself and never twice. The first vote lazily
// promotes the stored phase from open to voting.
func (l *Ledger) CastVote(caller common.Address, arenaID int64, candidate common.Address, supplied int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	st, err := l.state(arenaID)
	if err != nil {
		return err
	}
	now := l.clock.Now()
	if now.Before(st.arena.JoinDeadline) || !now.Before(st.arena.VoteDeadline) || st.arena.Phase.Terminal() {
		return domain.ErrNotInVotingWindow
	}
	if _, ok := st.votes[caller]; ok {
		return domain.ErrAlreadyVoted
	}
	if _, ok := st.joined[candidate]; !ok {
		return domain.ErrCandidateNotParticipant
	}
	if caller == candidate {
		return domain.ErrSelfVoteNotAllowed
	}
	if supplied != st.arena.VoteStake {
		return domain.ErrIncorrectStakeAmount
	}

	if err := l.vault.Collect(caller, supplied); err != nil {
		return err
	}

	if st.arena.Phase == domain.PhaseOpen {
		st.arena.Phase = domain.PhaseVoting
	}
	st.votes[caller] = &voteRecord{candidate: candidate, castAt: now}
	st.tallies[candidate]++
	st.arena.TotalVotes++
	st.arena.VoterPool += st.arena.VoteStake
	if st.tallies[candidate] > st.arena.HighestVotes {
		st.arena.HighestVotes = st.tallies[candidate]
	}

	l.emit(domain.Event{
		Kind:    domain.EventVoteCast,
		ArenaID: arenaID,
		VoteCast: &domain.VoteCastPayload{
			Voter:     caller,
			Candidate: candidate,
		},
	})
	return nil
}

// Settle finalizes the arena once the voting deadline has passed. Arenas
// with at most one participant or zero votes cancel; otherwise every
// participant tied at the highest tally is a winner and the payout
// denominators are fixed. Only a participant or voter of the arena may
// settle, and settlement happens exactly once.
func (l *Ledger) Settle(caller common.Address, arenaID int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	st, err := l.state(arenaID)
	if err != nil {
		return err
	}
	if st.arena.Phase.Terminal() {
		return domain.ErrAlreadyFinalized
	}
	now := l.clock.Now()
	if now.Before(st.arena.VoteDeadline) {
		return domain.ErrVotingNotEnded
	}
	_, isParticipant := st.joined[caller]
	_, isVoter := st.votes[caller]
	if !isParticipant && !isVoter {
		return domain.ErrNotParticipantOrVoter
	}

	if st.arena.ParticipantCount <= 1 {
		l.cancel(st, now, domain.CancelNotEnoughParticipants)
		return nil
	}
	if st.arena.TotalVotes == 0 {
		l.cancel(st, now, domain.CancelNoVotes)
		return nil
	}

	// One pass over the join-ordered participant list: all ties at the
	// highest tally win.
	numWinners := 0
	for _, p := range st.participants {
		if st.tallies[p] == st.arena.HighestVotes {
			st.winners[p] = true
			numWinners++
		}
	}

	st.arena.NumWinners = numWinners
	st.arena.WinnerVoterCount = numWinners * st.arena.HighestVotes
	st.arena.ParticipantShare = st.arena.ParticipantPool / int64(numWinners)
	st.arena.VoterShare = st.arena.VoterPool / int64(st.arena.WinnerVoterCount)
	st.arena.Phase = domain.PhaseSettled
	st.arena.FinalizedAt = &now

	l.emit(domain.Event{
		Kind:    domain.EventArenaSettled,
		ArenaID: arenaID,
		ArenaSettled: &domain.ArenaSettledPayload{
			NumWinners:       numWinners,
			ParticipantPool:  st.arena.ParticipantPool,
			VoterPool:        st.arena.VoterPool,
			WinnerVoterCount: st.arena.WinnerVoterCount,
		},
	})
	l.logger.Info("arena settled",
		slog.Int64("arena_id", arenaID),
		slog.Int("num_winners", numWinners),
		slog.Int("winner_voter_count", st.arena.WinnerVoterCount),
	)
	return nil
}

func (l *Ledger) cancel(st *arenaState, now time.Time, reason domain.CancelReason) {
	st.arena.Phase = domain.PhaseCancelled
	st.arena.CancelReason = reason
	st.arena.FinalizedAt = &now

	l.emit(domain.Event{
		Kind:    domain.EventArenaCancelled,
		ArenaID: st.arena.ID,
		ArenaCancelled: &domain.ArenaCancelledPayload{
			Reason: reason,
		},
	})
	l.logger.Info("arena cancelled",
		slog.Int64("arena_id", st.arena.ID),
		slog.String("reason", string(reason)),
	)
}

// ClaimParticipantReward pays a settled arena's per-winner share to the
// caller. The share is the participant pool at settlement divided by the
// winner count, rounded down; residual dust stays escrowed.
func (l *Ledger) ClaimParticipantReward(caller common.Address, arenaID int64) (int64, error) {
	l.mu.Lock()

	st, err := l.state(arenaID)
	if err != nil {
		l.mu.Unlock()
		return 0, err
	}
	if st.arena.Phase != domain.PhaseSettled {
		l.mu.Unlock()
		return 0, domain.ErrNotSettled
	}
	if !st.winners[caller] {
		l.mu.Unlock()
		return 0, domain.ErrNotWinner
	}
	p := st.joined[caller]
	if p.rewardClaimed {
		l.mu.Unlock()
		return 0, domain.ErrAlreadyClaimed
	}

	// Mark claimed and debit the pool before transferring. The transfer
	// runs outside the lock, so a payee calling back into the ledger sees
	// the claim already recorded and other operations keep serializing
	// normally.
	p.rewardClaimed = true
	amount := st.arena.ParticipantShare
	st.arena.ParticipantPool -= amount
	l.mu.Unlock()

	if err := l.vault.Disburse(caller, amount); err != nil {
		l.mu.Lock()
		p.rewardClaimed = false
		st.arena.ParticipantPool += amount
		l.mu.Unlock()
		return 0, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.emit(domain.Event{
		Kind:    domain.EventRewardClaimed,
		ArenaID: arenaID,
		RewardClaimed: &domain.RewardClaimedPayload{
			Claimer:             caller,
			Amount:              amount,
			IsParticipantReward: true,
		},
	})
	return amount, nil
}

// ClaimVoterReward pays the per-winning-vote share to a caller who backed a
// winner. Stakes from voters who backed losing candidates stay in the voter
// pool and fund this payout, so a correct voter's return exceeds the stake
// whenever any losing votes exist.
func (l *Ledger) ClaimVoterReward(caller common.Address, arenaID int64) (int64, error) {
	l.mu.Lock()

	st, err := l.state(arenaID)
	if err != nil {
		l.mu.Unlock()
		return 0, err
	}
	if st.arena.Phase != domain.PhaseSettled {
		l.mu.Unlock()
		return 0, domain.ErrNotSettled
	}
	v, ok := st.votes[caller]
	if !ok {
		l.mu.Unlock()
		return 0, domain.ErrNothingToClaim
	}
	if !st.winners[v.candidate] {
		l.mu.Unlock()
		return 0, domain.ErrVotedForLoser
	}
	if v.rewardClaimed {
		l.mu.Unlock()
		return 0, domain.ErrAlreadyClaimed
	}

	v.rewardClaimed = true
	amount := st.arena.VoterShare
	st.arena.VoterPool -= amount
	l.mu.Unlock()

	if err := l.vault.Disburse(caller, amount); err != nil {
		l.mu.Lock()
		v.rewardClaimed = false
		st.arena.VoterPool += amount
		l.mu.Unlock()
		return 0, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.emit(domain.Event{
		Kind:    domain.EventRewardClaimed,
		ArenaID: arenaID,
		RewardClaimed: &domain.RewardClaimedPayload{
			Claimer:             caller,
			Amount:              amount,
			IsParticipantReward: false,
		},
	})
	return amount, nil
}

// ClaimRefund returns the caller's stakes from a cancelled arena. A single
// call settles both possible entitlements: the participant stake if the
// caller joined, plus the vote stake if the caller voted, each at most once.
func (l *Ledger) ClaimRefund(caller common.Address, arenaID int64) (int64, error) {
	l.mu.Lock()

	st, err := l.state(arenaID)
	if err != nil {
		l.mu.Unlock()
		return 0, err
	}
	if st.arena.Phase != domain.PhaseCancelled {
		l.mu.Unlock()
		return 0, domain.ErrNotCancelled
	}

	var total int64
	var refundedJoin, refundedVote bool
	if p, ok := st.joined[caller]; ok && !p.rewardClaimed {
		p.rewardClaimed = true
		refundedJoin = true
		total += st.arena.RoastStake
		st.arena.ParticipantPool -= st.arena.RoastStake
	}
	if v, ok := st.votes[caller]; ok && !v.rewardClaimed {
		v.rewardClaimed = true
		refundedVote = true
		total += st.arena.VoteStake
		st.arena.VoterPool -= st.arena.VoteStake
	}
	if total == 0 {
		l.mu.Unlock()
		return 0, domain.ErrNothingToClaim
	}
	l.mu.Unlock()

	if err := l.vault.Disburse(caller, total); err != nil {
		l.mu.Lock()
		if refundedJoin {
			st.joined[caller].rewardClaimed = false
			st.arena.ParticipantPool += st.arena.RoastStake
		}
		if refundedVote {
			st.votes[caller].rewardClaimed = false
			st.arena.VoterPool += st.arena.VoteStake
		}
		l.mu.Unlock()
		return 0, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.emit(domain.Event{
		Kind:    domain.EventRefundClaimed,
		ArenaID: arenaID,
		RefundClaimed: &domain.RefundClaimedPayload{
			Claimer: caller,
			Amount:  total,
		},
	})
	return total, nil
}
