package ledger

import (
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/sankalp771/MONAD-RAGE/internal/domain"
)

// fakeClock is a manually advanced Clock.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func addr(b byte) common.Address {
	return common.BytesToAddress([]byte{b})
}

var (
	creator = addr(0x01)
	alice   = addr(0x0a)
	bob     = addr(0x0b)
	carol   = addr(0x0c)
	v1      = addr(0x11)
	v2      = addr(0x12)
	v3      = addr(0x13)
	nobody  = addr(0xff)
)

func newTestLedger(t *testing.T) (*Ledger, *fakeClock, *MemVault) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	vault := NewMemVault()
	l := New(Defaults(), clock, vault, nil)
	return l, clock, vault
}

// mustCreate creates an arena with the given stakes and fails the test on error.
func mustCreate(t *testing.T, l *Ledger, roastStake, voteStake int64) int64 {
	t.Helper()
	id, err := l.CreateArena(creator, roastStake, voteStake, roastStake)
	if err != nil {
		t.Fatalf("CreateArena: %v", err)
	}
	return id
}

func mustJoin(t *testing.T, l *Ledger, id int64, who common.Address, stake int64) {
	t.Helper()
	if err := l.JoinArena(who, id, stake); err != nil {
		t.Fatalf("JoinArena(%s): %v", who.Hex(), err)
	}
}

func mustVote(t *testing.T, l *Ledger, id int64, who, candidate common.Address, stake int64) {
	t.Helper()
	if err := l.CastVote(who, id, candidate, stake); err != nil {
		t.Fatalf("CastVote(%s -> %s): %v", who.Hex(), candidate.Hex(), err)
	}
}

// checkConservation asserts the ledger-wide escrow equals what the vault holds.
func checkConservation(t *testing.T, l *Ledger, v *MemVault) {
	t.Helper()
	if got, want := l.TotalEscrowed(), v.Escrowed(); got != want {
		t.Fatalf("conservation violated: ledger escrow %d, vault escrow %d", got, want)
	}
}

func TestCreateArena(t *testing.T) {
	l, clock, vault := newTestLedger(t)

	id := mustCreate(t, l, 100, 50)
	if id != 1 {
		t.Fatalf("first arena id = %d, want 1", id)
	}

	a, err := l.GetArena(id)
	if err != nil {
		t.Fatalf("GetArena: %v", err)
	}
	if a.Creator != creator {
		t.Errorf("creator = %s, want %s", a.Creator.Hex(), creator.Hex())
	}
	if a.ParticipantCount != 1 {
		t.Errorf("participant count = %d, want 1 (creator auto-enrolled)", a.ParticipantCount)
	}
	if a.ParticipantPool != 100 {
		t.Errorf("participant pool = %d, want 100", a.ParticipantPool)
	}
	if got := a.JoinDeadline; !got.Equal(clock.now.Add(3 * time.Minute)) {
		t.Errorf("join deadline = %v, want now+3m", got)
	}
	if got := a.VoteDeadline; !got.Equal(clock.now.Add(7 * time.Minute)) {
		t.Errorf("vote deadline = %v, want now+7m", got)
	}
	checkConservation(t, l, vault)

	// Second arena gets the next id.
	if id2 := mustCreate(t, l, 100, 50); id2 != 2 {
		t.Fatalf("second arena id = %d, want 2", id2)
	}
}

func TestCreateArenaValidation(t *testing.T) {
	l, _, _ := newTestLedger(t)

	tests := []struct {
		name       string
		roastStake int64
		voteStake  int64
		supplied   int64
		wantErr    error
	}{
		{"zero roast stake", 0, 50, 0, domain.ErrStakeTooLow},
		{"zero vote stake", 100, 0, 100, domain.ErrStakeTooLow},
		{"negative roast stake", -1, 50, -1, domain.ErrStakeTooLow},
		{"supplied below stake", 100, 50, 99, domain.ErrIncorrectStakeAmount},
		{"supplied above stake", 100, 50, 101, domain.ErrIncorrectStakeAmount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := l.CreateArena(creator, tt.roastStake, tt.voteStake, tt.supplied); !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
	if n := l.ArenaCount(); n != 0 {
		t.Fatalf("failed creations allocated %d arenas", n)
	}
}

func TestJoinArena(t *testing.T) {
	l, clock, vault := newTestLedger(t)
	id := mustCreate(t, l, 100, 50)

	mustJoin(t, l, id, alice, 100)
	mustJoin(t, l, id, bob, 100)

	a, _ := l.GetArena(id)
	if a.ParticipantCount != 3 {
		t.Errorf("participant count = %d, want 3", a.ParticipantCount)
	}
	if a.ParticipantPool != 300 {
		t.Errorf("participant pool = %d, want 300", a.ParticipantPool)
	}

	parts, _ := l.Participants(id)
	want := []common.Address{creator, alice, bob}
	if len(parts) != len(want) {
		t.Fatalf("participants = %d, want %d", len(parts), len(want))
	}
	for i := range want {
		if parts[i] != want[i] {
			t.Errorf("participants[%d] = %s, want %s (join order)", i, parts[i].Hex(), want[i].Hex())
		}
	}

	// Error surface.
	if err := l.JoinArena(alice, 99, 100); !errors.Is(err, domain.ErrArenaNotFound) {
		t.Errorf("unknown arena: err = %v, want ErrArenaNotFound", err)
	}
	if err := l.JoinArena(alice, id, 100); !errors.Is(err, domain.ErrAlreadyJoined) {
		t.Errorf("double join: err = %v, want ErrAlreadyJoined", err)
	}
	if err := l.JoinArena(carol, id, 99); !errors.Is(err, domain.ErrIncorrectStakeAmount) {
		t.Errorf("wrong stake: err = %v, want ErrIncorrectStakeAmount", err)
	}

	clock.Advance(3 * time.Minute)
	if err := l.JoinArena(carol, id, 100); !errors.Is(err, domain.ErrJoinWindowClosed) {
		t.Errorf("join at deadline: err = %v, want ErrJoinWindowClosed", err)
	}

	// Failed joins must not mutate pools.
	a, _ = l.GetArena(id)
	if a.ParticipantPool != 300 || a.ParticipantCount != 3 {
		t.Errorf("failed joins mutated state: pool=%d count=%d", a.ParticipantPool, a.ParticipantCount)
	}
	checkConservation(t, l, vault)
}

func TestCastVote(t *testing.T) {
	l, clock, vault := newTestLedger(t)
	id := mustCreate(t, l, 100, 50)
	mustJoin(t, l, id, alice, 100)
	mustJoin(t, l, id, bob, 100)

	// Voting before the join deadline is rejected.
	if err := l.CastVote(v1, id, alice, 50); !errors.Is(err, domain.ErrNotInVotingWindow) {
		t.Fatalf("early vote: err = %v, want ErrNotInVotingWindow", err)
	}

	clock.Advance(3 * time.Minute)

	mustVote(t, l, id, v1, alice, 50)
	mustVote(t, l, id, v2, alice, 50)
	mustVote(t, l, id, v3, bob, 50)
	// A participant may vote too, paying the vote stake on top of the
	// entry stake, just never for itself.
	mustVote(t, l, id, bob, alice, 50)

	a, _ := l.GetArena(id)
	if a.TotalVotes != 4 {
		t.Errorf("total votes = %d, want 4", a.TotalVotes)
	}
	if a.VoterPool != 200 {
		t.Errorf("voter pool = %d, want 200", a.VoterPool)
	}
	if a.HighestVotes != 3 {
		t.Errorf("highest votes = %d, want 3", a.HighestVotes)
	}
	if a.Phase != domain.PhaseVoting {
		t.Errorf("stored phase = %s, want voting (lazy promotion)", a.Phase)
	}

	tallies, _ := l.Tallies(id)
	wantTallies := map[common.Address]int{creator: 0, alice: 3, bob: 1}
	for _, tl := range tallies {
		if tl.Votes != wantTallies[tl.Candidate] {
			t.Errorf("tally[%s] = %d, want %d", tl.Candidate.Hex(), tl.Votes, wantTallies[tl.Candidate])
		}
	}

	// Error surface.
	if err := l.CastVote(v1, id, bob, 50); !errors.Is(err, domain.ErrAlreadyVoted) {
		t.Errorf("double vote: err = %v, want ErrAlreadyVoted", err)
	}
	if err := l.CastVote(nobody, id, nobody, 50); !errors.Is(err, domain.ErrCandidateNotParticipant) {
		t.Errorf("non-participant candidate: err = %v, want ErrCandidateNotParticipant", err)
	}
	if err := l.CastVote(alice, id, alice, 50); !errors.Is(err, domain.ErrSelfVoteNotAllowed) {
		t.Errorf("self vote: err = %v, want ErrSelfVoteNotAllowed", err)
	}
	if err := l.CastVote(nobody, id, alice, 49); !errors.Is(err, domain.ErrIncorrectStakeAmount) {
		t.Errorf("wrong vote stake: err = %v, want ErrIncorrectStakeAmount", err)
	}

	// Rejected votes never mutate tallies.
	a, _ = l.GetArena(id)
	if a.TotalVotes != 4 || a.VoterPool != 200 {
		t.Errorf("failed votes mutated state: votes=%d pool=%d", a.TotalVotes, a.VoterPool)
	}

	clock.Advance(4 * time.Minute)
	if err := l.CastVote(nobody, id, alice, 50); !errors.Is(err, domain.ErrNotInVotingWindow) {
		t.Errorf("late vote: err = %v, want ErrNotInVotingWindow", err)
	}
	checkConservation(t, l, vault)
}

// TestSettleHappyPath runs the canonical scenario: three participants,
// stakes 100/50, two votes for alice, one for bob. Alice is the sole winner
// and takes the whole participant pool; each alice voter gets 1.5x the vote
// stake; the bob voter gets nothing.
func TestSettleHappyPath(t *testing.T) {
	l, clock, vault := newTestLedger(t)
	id := mustCreate(t, l, 100, 50)
	mustJoin(t, l, id, alice, 100)
	mustJoin(t, l, id, bob, 100)

	clock.Advance(3 * time.Minute)
	mustVote(t, l, id, v1, alice, 50)
	mustVote(t, l, id, v2, alice, 50)
	mustVote(t, l, id, v3, bob, 50)

	// Settling before the vote deadline fails.
	if err := l.Settle(alice, id); !errors.Is(err, domain.ErrVotingNotEnded) {
		t.Fatalf("early settle: err = %v, want ErrVotingNotEnded", err)
	}
	clock.Advance(4 * time.Minute)

	// Unrelated callers may not settle.
	if err := l.Settle(nobody, id); !errors.Is(err, domain.ErrNotParticipantOrVoter) {
		t.Fatalf("stranger settle: err = %v, want ErrNotParticipantOrVoter", err)
	}
	// A voter is a stakeholder and may settle.
	if err := l.Settle(v3, id); err != nil {
		t.Fatalf("Settle: %v", err)
	}

	a, _ := l.GetArena(id)
	if a.Phase != domain.PhaseSettled {
		t.Fatalf("phase = %s, want settled", a.Phase)
	}
	if a.NumWinners != 1 {
		t.Errorf("num winners = %d, want 1", a.NumWinners)
	}
	if a.WinnerVoterCount != 2 {
		t.Errorf("winner voter count = %d, want 2", a.WinnerVoterCount)
	}
	winners, _ := l.Winners(id)
	if len(winners) != 1 || winners[0] != alice {
		t.Fatalf("winners = %v, want [alice]", winners)
	}

	// Double settlement always fails with no further balance change.
	before, _ := l.GetArena(id)
	if err := l.Settle(alice, id); !errors.Is(err, domain.ErrAlreadyFinalized) {
		t.Fatalf("double settle: err = %v, want ErrAlreadyFinalized", err)
	}
	after, _ := l.GetArena(id)
	if before.ParticipantPool != after.ParticipantPool || before.VoterPool != after.VoterPool {
		t.Fatal("double settle changed balances")
	}

	// Alice takes the whole pool.
	got, err := l.ClaimParticipantReward(alice, id)
	if err != nil {
		t.Fatalf("ClaimParticipantReward(alice): %v", err)
	}
	if got != 300 {
		t.Errorf("alice reward = %d, want 300", got)
	}
	if _, err := l.ClaimParticipantReward(alice, id); !errors.Is(err, domain.ErrAlreadyClaimed) {
		t.Errorf("double participant claim: err = %v, want ErrAlreadyClaimed", err)
	}
	if _, err := l.ClaimParticipantReward(bob, id); !errors.Is(err, domain.ErrNotWinner) {
		t.Errorf("loser participant claim: err = %v, want ErrNotWinner", err)
	}

	// Each alice voter gets 150/2 = 75, 1.5x the 50 stake.
	for _, voter := range []common.Address{v1, v2} {
		got, err := l.ClaimVoterReward(voter, id)
		if err != nil {
			t.Fatalf("ClaimVoterReward(%s): %v", voter.Hex(), err)
		}
		if got != 75 {
			t.Errorf("voter reward = %d, want 75", got)
		}
	}
	if _, err := l.ClaimVoterReward(v1, id); !errors.Is(err, domain.ErrAlreadyClaimed) {
		t.Errorf("double voter claim: err = %v, want ErrAlreadyClaimed", err)
	}
	// The bob voter backed a loser and gets nothing.
	if _, err := l.ClaimVoterReward(v3, id); !errors.Is(err, domain.ErrVotedForLoser) {
		t.Errorf("losing voter claim: err = %v, want ErrVotedForLoser", err)
	}
	// An identity that never voted has nothing to claim.
	if _, err := l.ClaimVoterReward(nobody, id); !errors.Is(err, domain.ErrNothingToClaim) {
		t.Errorf("non-voter claim: err = %v, want ErrNothingToClaim", err)
	}
	// Refunds only apply to cancelled arenas.
	if _, err := l.ClaimRefund(alice, id); !errors.Is(err, domain.ErrNotCancelled) {
		t.Errorf("refund on settled arena: err = %v, want ErrNotCancelled", err)
	}

	// All entitled value extracted; everything escrowed is accounted for.
	a, _ = l.GetArena(id)
	if a.Escrowed() != 0 {
		t.Errorf("escrow after all claims = %d, want 0", a.Escrowed())
	}
	if vault.PaidOut(alice) != 300 {
		t.Errorf("alice paid out %d, want 300", vault.PaidOut(alice))
	}
	checkConservation(t, l, vault)
}

// TestSettleTie: one vote each for alice and bob makes both winners. Each
// claims half the participant pool; each correct voter breaks even.
func TestSettleTie(t *testing.T) {
	l, clock, vault := newTestLedger(t)
	id := mustCreate(t, l, 100, 50)
	mustJoin(t, l, id, alice, 100)
	mustJoin(t, l, id, bob, 100)

	clock.Advance(3 * time.Minute)
	mustVote(t, l, id, v1, alice, 50)
	mustVote(t, l, id, v2, bob, 50)
	clock.Advance(4 * time.Minute)

	if err := l.Settle(v1, id); err != nil {
		t.Fatalf("Settle: %v", err)
	}

	a, _ := l.GetArena(id)
	if a.NumWinners != 2 {
		t.Fatalf("num winners = %d, want 2", a.NumWinners)
	}
	if a.WinnerVoterCount != 2 {
		t.Fatalf("winner voter count = %d, want 2", a.WinnerVoterCount)
	}
	winners, _ := l.Winners(id)
	if len(winners) != 2 || winners[0] != alice || winners[1] != bob {
		t.Fatalf("winners = %v, want [alice bob] in join order", winners)
	}
	// The voteless creator is not a winner.
	if _, err := l.ClaimParticipantReward(creator, id); !errors.Is(err, domain.ErrNotWinner) {
		t.Errorf("creator claim: err = %v, want ErrNotWinner", err)
	}

	for _, w := range winners {
		got, err := l.ClaimParticipantReward(w, id)
		if err != nil {
			t.Fatalf("ClaimParticipantReward(%s): %v", w.Hex(), err)
		}
		if got != 150 {
			t.Errorf("winner reward = %d, want 150 (half of 300)", got)
		}
	}
	for _, voter := range []common.Address{v1, v2} {
		got, err := l.ClaimVoterReward(voter, id)
		if err != nil {
			t.Fatalf("ClaimVoterReward(%s): %v", voter.Hex(), err)
		}
		if got != 50 {
			t.Errorf("voter reward = %d, want 50 (break even)", got)
		}
	}
	checkConservation(t, l, vault)
}

func TestCancelSingleParticipant(t *testing.T) {
	l, clock, vault := newTestLedger(t)
	id := mustCreate(t, l, 100, 50)

	// A non-participant backs the sole participant during the vote window.
	clock.Advance(3 * time.Minute)
	mustVote(t, l, id, v1, creator, 50)
	clock.Advance(4 * time.Minute)

	if err := l.Settle(creator, id); err != nil {
		t.Fatalf("Settle: %v", err)
	}
	a, _ := l.GetArena(id)
	if a.Phase != domain.PhaseCancelled {
		t.Fatalf("phase = %s, want cancelled", a.Phase)
	}
	if a.CancelReason != domain.CancelNotEnoughParticipants {
		t.Errorf("reason = %q, want %q", a.CancelReason, domain.CancelNotEnoughParticipants)
	}
	if a.NumWinners != 0 {
		t.Errorf("cancelled arena computed %d winners", a.NumWinners)
	}

	// The creator's refund returns exactly the entry stake.
	got, err := l.ClaimRefund(creator, id)
	if err != nil {
		t.Fatalf("ClaimRefund(creator): %v", err)
	}
	if got != 100 {
		t.Errorf("creator refund = %d, want 100", got)
	}
	// The voter's refund returns exactly the vote stake.
	got, err = l.ClaimRefund(v1, id)
	if err != nil {
		t.Fatalf("ClaimRefund(v1): %v", err)
	}
	if got != 50 {
		t.Errorf("voter refund = %d, want 50", got)
	}
	// Refunds are payable at most once.
	if _, err := l.ClaimRefund(creator, id); !errors.Is(err, domain.ErrNothingToClaim) {
		t.Errorf("double refund: err = %v, want ErrNothingToClaim", err)
	}
	// A stranger has no entitlement.
	if _, err := l.ClaimRefund(nobody, id); !errors.Is(err, domain.ErrNothingToClaim) {
		t.Errorf("stranger refund: err = %v, want ErrNothingToClaim", err)
	}

	a, _ = l.GetArena(id)
	if a.Escrowed() != 0 {
		t.Errorf("escrow after refunds = %d, want 0", a.Escrowed())
	}
	checkConservation(t, l, vault)
}

func TestCancelNoVotes(t *testing.T) {
	l, clock, vault := newTestLedger(t)
	id := mustCreate(t, l, 100, 50)
	mustJoin(t, l, id, alice, 100)

	clock.Advance(7 * time.Minute)
	if err := l.Settle(alice, id); err != nil {
		t.Fatalf("Settle: %v", err)
	}
	a, _ := l.GetArena(id)
	if a.Phase != domain.PhaseCancelled || a.CancelReason != domain.CancelNoVotes {
		t.Fatalf("phase=%s reason=%q, want cancelled/%q", a.Phase, a.CancelReason, domain.CancelNoVotes)
	}

	// Claims against a cancelled arena fail the settled gate.
	if _, err := l.ClaimParticipantReward(alice, id); !errors.Is(err, domain.ErrNotSettled) {
		t.Errorf("participant claim on cancelled: err = %v, want ErrNotSettled", err)
	}
	if _, err := l.ClaimVoterReward(alice, id); !errors.Is(err, domain.ErrNotSettled) {
		t.Errorf("voter claim on cancelled: err = %v, want ErrNotSettled", err)
	}

	for _, p := range []common.Address{creator, alice} {
		got, err := l.ClaimRefund(p, id)
		if err != nil {
			t.Fatalf("ClaimRefund(%s): %v", p.Hex(), err)
		}
		if got != 100 {
			t.Errorf("refund = %d, want 100", got)
		}
	}
	checkConservation(t, l, vault)
}

// TestClaimStateGates: claims are rejected by the state gate before any
// relationship or flag check applies.
func TestClaimStateGates(t *testing.T) {
	l, clock, _ := newTestLedger(t)
	id := mustCreate(t, l, 100, 50)

	if _, err := l.ClaimParticipantReward(creator, 99); !errors.Is(err, domain.ErrArenaNotFound) {
		t.Errorf("unknown arena: err = %v, want ErrArenaNotFound", err)
	}
	if _, err := l.ClaimParticipantReward(creator, id); !errors.Is(err, domain.ErrNotSettled) {
		t.Errorf("claim on open arena: err = %v, want ErrNotSettled", err)
	}
	if _, err := l.ClaimVoterReward(creator, id); !errors.Is(err, domain.ErrNotSettled) {
		t.Errorf("voter claim on open arena: err = %v, want ErrNotSettled", err)
	}
	if _, err := l.ClaimRefund(creator, id); !errors.Is(err, domain.ErrNotCancelled) {
		t.Errorf("refund on open arena: err = %v, want ErrNotCancelled", err)
	}

	clock.Advance(7 * time.Minute)
	if err := l.Settle(creator, id); err != nil {
		t.Fatalf("Settle: %v", err)
	}
	// Now cancelled: reward claims hit the settled gate, refunds open up.
	if _, err := l.ClaimParticipantReward(creator, id); !errors.Is(err, domain.ErrNotSettled) {
		t.Errorf("reward claim on cancelled arena: err = %v, want ErrNotSettled", err)
	}
	if _, err := l.ClaimRefund(creator, id); err != nil {
		t.Errorf("refund on cancelled arena: %v", err)
	}
}

// TestVoterPoolDust: 3 votes of 5 with two winning votes leaves 15/2 -> 7
// per winning vote and 1 unit of dust locked in escrow.
func TestVoterPoolDust(t *testing.T) {
	l, clock, vault := newTestLedger(t)
	id, err := l.CreateArena(creator, 100, 5, 100)
	if err != nil {
		t.Fatalf("CreateArena: %v", err)
	}
	mustJoin(t, l, id, alice, 100)
	mustJoin(t, l, id, bob, 100)

	clock.Advance(3 * time.Minute)
	mustVote(t, l, id, v1, alice, 5)
	mustVote(t, l, id, v2, alice, 5)
	mustVote(t, l, id, v3, bob, 5)
	clock.Advance(4 * time.Minute)
	if err := l.Settle(v1, id); err != nil {
		t.Fatalf("Settle: %v", err)
	}

	a, _ := l.GetArena(id)
	if a.VoterShare != 7 {
		t.Fatalf("voter share = %d, want 7 (15/2 rounded down)", a.VoterShare)
	}
	if a.Dust() != 1 {
		t.Fatalf("dust = %d, want 1", a.Dust())
	}

	if _, err := l.ClaimParticipantReward(alice, id); err != nil {
		t.Fatalf("ClaimParticipantReward: %v", err)
	}
	for _, voter := range []common.Address{v1, v2} {
		if _, err := l.ClaimVoterReward(voter, id); err != nil {
			t.Fatalf("ClaimVoterReward(%s): %v", voter.Hex(), err)
		}
	}

	// The dust unit stays escrowed forever; there is no drain path.
	a, _ = l.GetArena(id)
	if a.Escrowed() != 1 {
		t.Errorf("escrow after all claims = %d, want 1 (dust)", a.Escrowed())
	}
	checkConservation(t, l, vault)
}

// TestParticipantPoolDust: an odd pool split between two tied winners
// rounds each share down.
func TestParticipantPoolDust(t *testing.T) {
	l, clock, _ := newTestLedger(t)
	id, err := l.CreateArena(creator, 101, 50, 101)
	if err != nil {
		t.Fatalf("CreateArena: %v", err)
	}
	mustJoin(t, l, id, alice, 101)
	mustJoin(t, l, id, bob, 101)

	clock.Advance(3 * time.Minute)
	mustVote(t, l, id, v1, alice, 50)
	mustVote(t, l, id, v2, bob, 50)
	clock.Advance(4 * time.Minute)
	if err := l.Settle(v1, id); err != nil {
		t.Fatalf("Settle: %v", err)
	}

	a, _ := l.GetArena(id)
	if a.ParticipantShare != 151 {
		t.Fatalf("participant share = %d, want 151 (303/2 rounded down)", a.ParticipantShare)
	}
	got, _ := l.ClaimParticipantReward(alice, id)
	if got != 151 {
		t.Errorf("alice reward = %d, want 151", got)
	}
	got, _ = l.ClaimParticipantReward(bob, id)
	if got != 151 {
		t.Errorf("bob reward = %d, want 151", got)
	}
	a, _ = l.GetArena(id)
	if a.ParticipantPool != 1 {
		t.Errorf("participant pool after claims = %d, want 1 (dust)", a.ParticipantPool)
	}
}

func TestPhaseDerivation(t *testing.T) {
	l, clock, _ := newTestLedger(t)
	id := mustCreate(t, l, 100, 50)

	phase, _ := l.Phase(id)
	if phase != domain.PhaseOpen {
		t.Fatalf("phase = %s, want open", phase)
	}

	// The effective phase flips at the join deadline even though the
	// stored phase stays open until the first vote.
	clock.Advance(3 * time.Minute)
	phase, _ = l.Phase(id)
	if phase != domain.PhaseVoting {
		t.Fatalf("phase = %s, want voting", phase)
	}
	a, _ := l.GetArena(id)
	if a.Phase != domain.PhaseOpen {
		t.Fatalf("stored phase = %s, want open (lazy)", a.Phase)
	}

	clock.Advance(4 * time.Minute)
	if err := l.Settle(creator, id); err != nil {
		t.Fatalf("Settle: %v", err)
	}
	phase, _ = l.Phase(id)
	if phase != domain.PhaseCancelled {
		t.Fatalf("phase = %s, want cancelled (memoized terminal)", phase)
	}
}

func TestRecentArenaIDs(t *testing.T) {
	l, _, _ := newTestLedger(t)
	for i := 0; i < 5; i++ {
		mustCreate(t, l, 100, 50)
	}

	ids := l.RecentArenaIDs(3, 0)
	want := []int64{5, 4, 3}
	if len(ids) != 3 {
		t.Fatalf("len = %d, want 3", len(ids))
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("ids[%d] = %d, want %d", i, ids[i], want[i])
		}
	}

	ids = l.RecentArenaIDs(10, 3)
	want = []int64{2, 1}
	if len(ids) != 2 || ids[0] != 2 || ids[1] != 1 {
		t.Errorf("offset page = %v, want %v", ids, want)
	}

	// A negative offset is treated as zero rather than addressing past
	// the newest arena.
	ids = l.RecentArenaIDs(3, -4)
	if len(ids) != 3 || ids[0] != 5 {
		t.Fatalf("negative offset page = %v, want [5 4 3]", ids)
	}
	for _, id := range ids {
		if _, err := l.GetArena(id); err != nil {
			t.Errorf("GetArena(%d): %v", id, err)
		}
	}
}

func TestHistoryBatching(t *testing.T) {
	l, _, _ := newTestLedger(t)
	// Each creation emits ArenaCreated + ParticipantJoined: 120 events.
	for i := 0; i < 60; i++ {
		mustCreate(t, l, 100, 50)
	}
	if n := l.LastSeq(); n != 120 {
		t.Fatalf("last seq = %d, want 120", n)
	}

	// A single scan is capped at 100 events regardless of the requested
	// limit.
	batch := l.History(1, 1000)
	if len(batch) != 100 {
		t.Fatalf("uncapped scan returned %d events, want 100", len(batch))
	}

	// Paging in order covers the full history exactly once.
	var seqs []int64
	from := int64(1)
	for {
		batch := l.History(from, 50)
		if len(batch) == 0 {
			break
		}
		for _, ev := range batch {
			seqs = append(seqs, ev.Seq)
		}
		from = batch[len(batch)-1].Seq + 1
	}
	if len(seqs) != 120 {
		t.Fatalf("paged %d events, want 120", len(seqs))
	}
	for i, s := range seqs {
		if s != int64(i)+1 {
			t.Fatalf("seqs[%d] = %d, want %d (dense, in order)", i, s, i+1)
		}
	}
}

func TestEventPayloads(t *testing.T) {
	l, clock, _ := newTestLedger(t)
	id := mustCreate(t, l, 100, 50)
	mustJoin(t, l, id, alice, 100)
	clock.Advance(3 * time.Minute)
	mustVote(t, l, id, v1, alice, 50)
	clock.Advance(4 * time.Minute)
	if err := l.Settle(v1, id); err != nil {
		t.Fatalf("Settle: %v", err)
	}
	if _, err := l.ClaimParticipantReward(alice, id); err != nil {
		t.Fatalf("ClaimParticipantReward: %v", err)
	}

	events := l.History(1, 100)
	wantKinds := []domain.EventKind{
		domain.EventArenaCreated,
		domain.EventParticipantJoined, // creator auto-enroll
		domain.EventParticipantJoined, // alice
		domain.EventVoteCast,
		domain.EventArenaSettled,
		domain.EventRewardClaimed,
	}
	if len(events) != len(wantKinds) {
		t.Fatalf("got %d events, want %d", len(events), len(wantKinds))
	}
	for i, k := range wantKinds {
		if events[i].Kind != k {
			t.Errorf("events[%d].Kind = %s, want %s", i, events[i].Kind, k)
		}
	}

	created := events[0].ArenaCreated
	if created == nil || created.Creator != creator || created.RoastStake != 100 || created.VoteStake != 50 {
		t.Errorf("malformed ArenaCreated payload: %+v", created)
	}
	settled := events[4].ArenaSettled
	if settled == nil || settled.NumWinners != 1 || settled.ParticipantPool != 200 || settled.VoterPool != 50 || settled.WinnerVoterCount != 1 {
		t.Errorf("malformed ArenaSettled payload: %+v", settled)
	}
	claimed := events[5].RewardClaimed
	if claimed == nil || claimed.Claimer != alice || claimed.Amount != 200 || !claimed.IsParticipantReward {
		t.Errorf("malformed RewardClaimed payload: %+v", claimed)
	}
}

// blockingVault parks Disburse until released so tests can observe the
// ledger while a transfer is in flight.
type blockingVault struct {
	*MemVault
	entered chan struct{}
	release chan struct{}
}

func (v *blockingVault) Disburse(payee common.Address, amount int64) error {
	v.entered <- struct{}{}
	<-v.release
	return v.MemVault.Disburse(payee, amount)
}

// failingVault rejects every transfer.
type failingVault struct {
	*MemVault
	fail bool
}

func (v *failingVault) Disburse(payee common.Address, amount int64) error {
	if v.fail {
		return errors.New("transfer refused")
	}
	return v.MemVault.Disburse(payee, amount)
}

// reentrantVault calls back into the ledger from inside Disburse, modeling a
// malicious payee trying to re-trigger its own payout mid-transfer.
type reentrantVault struct {
	*MemVault
	ledger  *Ledger
	arenaID int64
	gotErr  error
	fired   bool
}

func (v *reentrantVault) Disburse(payee common.Address, amount int64) error {
	if !v.fired {
		v.fired = true
		_, v.gotErr = v.ledger.ClaimParticipantReward(payee, v.arenaID)
	}
	return v.MemVault.Disburse(payee, amount)
}

func TestReentrancyGuard(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	rv := &reentrantVault{MemVault: NewMemVault()}
	l := New(Defaults(), clock, rv, nil)
	rv.ledger = l

	id, err := l.CreateArena(creator, 100, 50, 100)
	if err != nil {
		t.Fatalf("CreateArena: %v", err)
	}
	rv.arenaID = id
	mustJoin(t, l, id, alice, 100)
	clock.Advance(3 * time.Minute)
	mustVote(t, l, id, v1, alice, 50)
	clock.Advance(4 * time.Minute)
	if err := l.Settle(v1, id); err != nil {
		t.Fatalf("Settle: %v", err)
	}

	got, err := l.ClaimParticipantReward(alice, id)
	if err != nil {
		t.Fatalf("ClaimParticipantReward: %v", err)
	}
	if got != 200 {
		t.Errorf("reward = %d, want 200", got)
	}
	if !rv.fired {
		t.Fatal("reentrant vault never fired")
	}
	// The claim flag commits before the transfer, so the nested attempt
	// finds the payout already recorded.
	if !errors.Is(rv.gotErr, domain.ErrAlreadyClaimed) {
		t.Fatalf("nested call err = %v, want ErrAlreadyClaimed", rv.gotErr)
	}
	// The nested attempt paid nothing extra.
	if rv.PaidOut(alice) != 200 {
		t.Errorf("alice paid out %d, want 200 (single payout)", rv.PaidOut(alice))
	}
}

// TestConservationAcrossArenas runs overlapping arenas through mixed
// histories and checks pool/vault agreement after every step.
func TestConservationAcrossArenas(t *testing.T) {
	l, clock, vault := newTestLedger(t)

	id1 := mustCreate(t, l, 100, 50)
	id2 := mustCreate(t, l, 200, 10)
	mustJoin(t, l, id1, alice, 100)
	mustJoin(t, l, id1, bob, 100)
	mustJoin(t, l, id2, alice, 200)
	checkConservation(t, l, vault)

	clock.Advance(3 * time.Minute)
	mustVote(t, l, id1, v1, alice, 50)
	mustVote(t, l, id1, v2, bob, 50)
	mustVote(t, l, id2, v1, creator, 10)
	mustVote(t, l, id2, v2, alice, 10)
	mustVote(t, l, id2, v3, alice, 10)
	checkConservation(t, l, vault)

	clock.Advance(4 * time.Minute)
	if err := l.Settle(v1, id1); err != nil {
		t.Fatalf("Settle(id1): %v", err)
	}
	if err := l.Settle(v1, id2); err != nil {
		t.Fatalf("Settle(id2): %v", err)
	}
	checkConservation(t, l, vault)

	// Extract everything entitled from both arenas.
	for _, c := range []struct {
		who common.Address
		id  int64
	}{
		{alice, id1}, {bob, id1}, {alice, id2},
	} {
		if _, err := l.ClaimParticipantReward(c.who, c.id); err != nil {
			t.Fatalf("ClaimParticipantReward(%s, %d): %v", c.who.Hex(), c.id, err)
		}
		checkConservation(t, l, vault)
	}
	for _, c := range []struct {
		who common.Address
		id  int64
	}{
		{v1, id1}, {v2, id1}, {v2, id2}, {v3, id2},
	} {
		if _, err := l.ClaimVoterReward(c.who, c.id); err != nil {
			t.Fatalf("ClaimVoterReward(%s, %d): %v", c.who.Hex(), c.id, err)
		}
		checkConservation(t, l, vault)
	}

	// id1: pools fully drained. id2: alice took all 400, winning voters
	// v2+v3 split 30 -> 15 each, no dust.
	a1, _ := l.GetArena(id1)
	if a1.Escrowed() != 0 {
		t.Errorf("arena 1 escrow = %d, want 0", a1.Escrowed())
	}
	a2, _ := l.GetArena(id2)
	if a2.Escrowed() != 0 {
		t.Errorf("arena 2 escrow = %d, want 0", a2.Escrowed())
	}
	if got := vault.Escrowed(); got != 0 {
		t.Errorf("vault escrow = %d, want 0", got)
	}
}

// settleWithWinner drives an arena to SETTLED with alice as the sole winner
// backed by v1, using the given ledger and clock.
func settleWithWinner(t *testing.T, l *Ledger, clock *fakeClock) int64 {
	t.Helper()
	id := mustCreate(t, l, 100, 50)
	mustJoin(t, l, id, alice, 100)
	clock.Advance(3 * time.Minute)
	mustVote(t, l, id, v1, alice, 50)
	clock.Advance(4 * time.Minute)
	if err := l.Settle(v1, id); err != nil {
		t.Fatalf("Settle: %v", err)
	}
	return id
}

func TestConcurrentCallsDuringPayout(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	bv := &blockingVault{
		MemVault: NewMemVault(),
		entered:  make(chan struct{}),
		release:  make(chan struct{}),
	}
	l := New(Defaults(), clock, bv, nil)

	id := settleWithWinner(t, l, clock)

	claimed := make(chan error, 1)
	go func() {
		_, err := l.ClaimParticipantReward(alice, id)
		claimed <- err
	}()
	<-bv.entered

	// With the transfer parked mid-flight, unrelated operations on other
	// goroutines must still serialize and succeed.
	if _, err := l.CreateArena(bob, 100, 50, 100); err != nil {
		t.Fatalf("concurrent CreateArena during payout: %v", err)
	}
	if _, err := l.GetArena(id); err != nil {
		t.Fatalf("concurrent GetArena during payout: %v", err)
	}
	// The in-flight claim is already recorded, so a second claim by the
	// same winner is a duplicate, not a double payment.
	if _, err := l.ClaimParticipantReward(alice, id); !errors.Is(err, domain.ErrAlreadyClaimed) {
		t.Fatalf("duplicate claim during payout err = %v, want ErrAlreadyClaimed", err)
	}

	close(bv.release)
	if err := <-claimed; err != nil {
		t.Fatalf("ClaimParticipantReward: %v", err)
	}
	if got := bv.PaidOut(alice); got != 200 {
		t.Errorf("alice paid out %d, want 200", got)
	}
}

func TestFailedTransferRollsBackClaim(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	fv := &failingVault{MemVault: NewMemVault(), fail: true}
	l := New(Defaults(), clock, fv, nil)

	id := settleWithWinner(t, l, clock)
	before := l.TotalEscrowed()

	if _, err := l.ClaimParticipantReward(alice, id); err == nil {
		t.Fatal("claim should fail while the vault refuses transfers")
	}
	if _, err := l.ClaimVoterReward(v1, id); err == nil {
		t.Fatal("voter claim should fail while the vault refuses transfers")
	}

	// Nothing was paid, so nothing may be marked paid or debited.
	if got := l.TotalEscrowed(); got != before {
		t.Fatalf("escrow after failed claims = %d, want %d", got, before)
	}
	a, _ := l.GetArena(id)
	if a.ParticipantPool != 200 || a.VoterPool != 50 {
		t.Fatalf("pools after failed claims = %d/%d, want 200/50", a.ParticipantPool, a.VoterPool)
	}

	// Once transfers work again the same claims pay out in full.
	fv.fail = false
	if got, err := l.ClaimParticipantReward(alice, id); err != nil || got != 200 {
		t.Fatalf("retry participant claim = %d, %v; want 200, nil", got, err)
	}
	if got, err := l.ClaimVoterReward(v1, id); err != nil || got != 50 {
		t.Fatalf("retry voter claim = %d, %v; want 50, nil", got, err)
	}
	checkConservation(t, l, fv.MemVault)
}

func TestFailedTransferRollsBackRefund(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	fv := &failingVault{MemVault: NewMemVault(), fail: true}
	l := New(Defaults(), clock, fv, nil)

	// Sole participant, no votes: settlement cancels.
	id := mustCreate(t, l, 100, 50)
	clock.Advance(8 * time.Minute)
	if err := l.Settle(creator, id); err != nil {
		t.Fatalf("Settle: %v", err)
	}

	if _, err := l.ClaimRefund(creator, id); err == nil {
		t.Fatal("refund should fail while the vault refuses transfers")
	}
	a, _ := l.GetArena(id)
	if a.ParticipantPool != 100 {
		t.Fatalf("participant pool after failed refund = %d, want 100", a.ParticipantPool)
	}

	// The failed attempt must not burn the entitlement.
	fv.fail = false
	if got, err := l.ClaimRefund(creator, id); err != nil || got != 100 {
		t.Fatalf("retry refund = %d, %v; want 100, nil", got, err)
	}
	if _, err := l.ClaimRefund(creator, id); !errors.Is(err, domain.ErrNothingToClaim) {
		t.Fatalf("second refund err = %v, want ErrNothingToClaim", err)
	}
}
