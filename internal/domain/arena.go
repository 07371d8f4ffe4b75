package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ArenaPhase represents the lifecycle state of an arena.
type ArenaPhase string

const (
	PhaseOpen      ArenaPhase = "open"
	PhaseVoting    ArenaPhase = "voting"
	PhaseSettled   ArenaPhase = "settled"
	PhaseCancelled ArenaPhase = "cancelled"
)

// Terminal reports whether the phase is one of the two final states.
func (p ArenaPhase) Terminal() bool {
	return p == PhaseSettled || p == PhaseCancelled
}

// CancelReason explains why an arena settled to the cancelled state.
type CancelReason string

const (
	CancelNotEnoughParticipants CancelReason = "not enough participants"
	CancelNoVotes               CancelReason = "no votes cast"
)

// Arena is one timed roast contest with its own stakes, deadlines, and
// escrow pools. Configuration fields are immutable after creation; the
// accounting fields mutate only through join/vote/settle/claim operations.
// Amounts are int64 base units of the single value unit.
type Arena struct {
	ID      int64          `json:"id"`
	Creator common.Address `json:"creator"`

	// Immutable configuration.
	RoastStake   int64     `json:"roast_stake"` // per-participant entry stake
	VoteStake    int64     `json:"vote_stake"`  // per-vote stake
	JoinDeadline time.Time `json:"join_deadline"`
	VoteDeadline time.Time `json:"vote_deadline"`

	// Mutable accounting.
	ParticipantCount int   `json:"participant_count"`
	TotalVotes       int   `json:"total_votes"`
	ParticipantPool  int64 `json:"participant_pool"`
	VoterPool        int64 `json:"voter_pool"`
	HighestVotes     int   `json:"highest_votes"`

	// Set exactly once, at settlement.
	NumWinners       int   `json:"num_winners"`
	WinnerVoterCount int   `json:"winner_voter_count"` // numWinners * highestVotes
	ParticipantShare int64 `json:"participant_share"`  // per-winner payout, rounded down
	VoterShare       int64 `json:"voter_share"`        // per-winning-vote payout, rounded down

	// Phase is the stored phase. It lags the clock for the open/voting
	// edge (promoted lazily on the first vote) and memoizes the terminal
	// states; reads should use EffectivePhase.
	Phase        ArenaPhase   `json:"phase"`
	CancelReason CancelReason `json:"cancel_reason,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	FinalizedAt *time.Time `json:"finalized_at,omitempty"`
}

// EffectivePhase derives the current phase from the deadlines when the arena
// has not yet been finalized; once terminal the stored phase is authoritative.
func (a *Arena) EffectivePhase(now time.Time) ArenaPhase {
	if a.Phase.Terminal() {
		return a.Phase
	}
	if now.Before(a.JoinDeadline) {
		return PhaseOpen
	}
	return PhaseVoting
}

// Escrowed returns the total value the ledger currently holds for this arena.
func (a *Arena) Escrowed() int64 {
	return a.ParticipantPool + a.VoterPool
}

// Dust returns the residual value that integer-division payouts will leave
// permanently locked in escrow once every entitled claim has been made. It is
// zero until the arena settles. The rounding loss is an accepted, documented
// behavior of the payout math, never redistributed.
func (a *Arena) Dust() int64 {
	if a.Phase != PhaseSettled {
		return 0
	}
	var dust int64
	if a.NumWinners > 0 {
		dust += a.ParticipantPool - a.ParticipantShare*int64(a.NumWinners)
	}
	// Losing votes share nothing; only votes for winners are entitled.
	dust += a.VoterPool - a.VoterShare*int64(a.WinnerVoterCount)
	return dust
}

// Participation is the per-(arena, identity) join record mirrored by the
// indexer. The claim flag doubles as the stake-refund flag when an arena is
// cancelled.
type Participation struct {
	ArenaID       int64          `json:"arena_id"`
	Address       common.Address `json:"address"`
	JoinedAt      time.Time      `json:"joined_at"`
	Votes         int            `json:"votes"`
	IsWinner      bool           `json:"is_winner"`
	RewardClaimed bool           `json:"reward_claimed"`
}

// Vote is the per-(arena, voter) vote record. Vote weight is implicitly 1.
// The claim flag doubles as the vote-stake-refund flag for cancelled arenas.
type Vote struct {
	ArenaID       int64          `json:"arena_id"`
	Voter         common.Address `json:"voter"`
	Candidate     common.Address `json:"candidate"`
	CastAt        time.Time      `json:"cast_at"`
	RewardClaimed bool           `json:"reward_claimed"`
}

// Tally is one candidate's accumulated vote count, in participant join order.
type Tally struct {
	Candidate common.Address `json:"candidate"`
	Votes     int            `json:"votes"`
}
