package domain

import "errors"

// Ledger failure conditions. The set is closed: every ledger operation fails
// with exactly one of these, so callers and tests can assert with errors.Is.
var (
	// Configuration errors -- rejected before any state mutation.
	ErrStakeTooLow          = errors.New("stake too low")
	ErrIncorrectStakeAmount = errors.New("incorrect stake amount")

	// Temporal errors -- pure timestamp comparisons.
	ErrJoinWindowClosed  = errors.New("join window closed")
	ErrNotInVotingWindow = errors.New("not in voting window")
	ErrVotingNotEnded    = errors.New("voting not ended")

	// Duplicate-action errors -- guarded by idempotency flags.
	ErrAlreadyJoined    = errors.New("already joined")
	ErrAlreadyVoted     = errors.New("already voted")
	ErrAlreadyClaimed   = errors.New("already claimed")
	ErrAlreadyFinalized = errors.New("already finalized")

	// Authorization errors -- relationship checks against recorded state.
	ErrSelfVoteNotAllowed      = errors.New("self vote not allowed")
	ErrCandidateNotParticipant = errors.New("candidate is not a participant")
	ErrNotParticipantOrVoter   = errors.New("caller is neither participant nor voter")
	ErrNotWinner               = errors.New("caller is not a winner")
	ErrVotedForLoser           = errors.New("caller voted for a losing candidate")
	ErrNothingToClaim          = errors.New("nothing to claim")

	// State-gate errors.
	ErrNotSettled   = errors.New("arena is not settled")
	ErrNotCancelled = errors.New("arena is not cancelled")

	// Not-found.
	ErrArenaNotFound = errors.New("arena not found")
)

// Infrastructure errors shared by stores, caches, and handlers.
var (
	ErrNotFound    = errors.New("not found")
	ErrLockHeld    = errors.New("lock already held")
	ErrRateLimited = errors.New("rate limited")
)
