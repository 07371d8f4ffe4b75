package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// EventKind identifies one of the ledger's notification types.
type EventKind string

const (
	EventArenaCreated      EventKind = "arena_created"
	EventParticipantJoined EventKind = "participant_joined"
	EventVoteCast          EventKind = "vote_cast"
	EventArenaSettled      EventKind = "arena_settled"
	EventArenaCancelled    EventKind = "arena_cancelled"
	EventRewardClaimed     EventKind = "reward_claimed"
	EventRefundClaimed     EventKind = "refund_claimed"
)

// Event is one write-once, append-only ledger notification. Seq is a global,
// dense, monotonic sequence number assigned by the ledger; external indexers
// replay events in Seq order and must tolerate duplicate delivery.
//
// Exactly one payload pointer is non-nil, matching Kind.
type Event struct {
	Seq     int64     `json:"seq"`
	Kind    EventKind `json:"kind"`
	ArenaID int64     `json:"arena_id"`
	At      time.Time `json:"at"`

	ArenaCreated      *ArenaCreatedPayload      `json:"arena_created,omitempty"`
	ParticipantJoined *ParticipantJoinedPayload `json:"participant_joined,omitempty"`
	VoteCast          *VoteCastPayload          `json:"vote_cast,omitempty"`
	ArenaSettled      *ArenaSettledPayload      `json:"arena_settled,omitempty"`
	ArenaCancelled    *ArenaCancelledPayload    `json:"arena_cancelled,omitempty"`
	RewardClaimed     *RewardClaimedPayload     `json:"reward_claimed,omitempty"`
	RefundClaimed     *RefundClaimedPayload     `json:"refund_claimed,omitempty"`
}

// ArenaCreatedPayload carries the full immutable configuration of a new arena.
type ArenaCreatedPayload struct {
	Creator      common.Address `json:"creator"`
	RoastStake   int64          `json:"roast_stake"`
	VoteStake    int64          `json:"vote_stake"`
	JoinDeadline time.Time      `json:"join_deadline"`
	VoteDeadline time.Time      `json:"vote_deadline"`
}

// ParticipantJoinedPayload records a new participant entering the contest.
type ParticipantJoinedPayload struct {
	Participant common.Address `json:"participant"`
}

// VoteCastPayload records one vote for a candidate.
type VoteCastPayload struct {
	Voter     common.Address `json:"voter"`
	Candidate common.Address `json:"candidate"`
}

// ArenaSettledPayload carries the settlement outputs, including both pool
// balances at the instant of settlement.
type ArenaSettledPayload struct {
	NumWinners       int   `json:"num_winners"`
	ParticipantPool  int64 `json:"participant_pool"`
	VoterPool        int64 `json:"voter_pool"`
	WinnerVoterCount int   `json:"winner_voter_count"`
}

// ArenaCancelledPayload records a cancellation and its reason.
type ArenaCancelledPayload struct {
	Reason CancelReason `json:"reason"`
}

// RewardClaimedPayload records a post-settlement payout.
type RewardClaimedPayload struct {
	Claimer             common.Address `json:"claimer"`
	Amount              int64          `json:"amount"`
	IsParticipantReward bool           `json:"is_participant_reward"`
}

// RefundClaimedPayload records a post-cancellation refund. A single refund
// settles both the participant-stake and vote-stake entitlements, so Amount
// may cover either or both.
type RefundClaimedPayload struct {
	Claimer common.Address `json:"claimer"`
	Amount  int64          `json:"amount"`
}
