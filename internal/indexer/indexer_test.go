package indexer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/sankalp771/MONAD-RAGE/internal/domain"
	"github.com/sankalp771/MONAD-RAGE/internal/ledger"
)

// ---------------------------------------------------------------------------
// In-memory fakes for the mirror stores.
// ---------------------------------------------------------------------------

type memArenaStore struct {
	mu     sync.Mutex
	arenas map[int64]domain.Arena
}

func newMemArenaStore() *memArenaStore {
	return &memArenaStore{arenas: make(map[int64]domain.Arena)}
}

func (s *memArenaStore) Upsert(_ context.Context, a domain.Arena) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.arenas[a.ID] = a
	return nil
}

func (s *memArenaStore) GetByID(_ context.Context, id int64) (domain.Arena, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.arenas[id]
	if !ok {
		return domain.Arena{}, domain.ErrNotFound
	}
	return a, nil
}

func (s *memArenaStore) ListRecent(_ context.Context, _ domain.ListOpts) ([]domain.Arena, error) {
	return nil, nil
}

func (s *memArenaStore) ListByPhase(_ context.Context, _ domain.ArenaPhase, _ domain.ListOpts) ([]domain.Arena, error) {
	return nil, nil
}

func (s *memArenaStore) Count(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.arenas)), nil
}

type partKey struct {
	arenaID int64
	addr    common.Address
}

type memParticipantStore struct {
	mu    sync.Mutex
	parts map[partKey]domain.Participation
}

func newMemParticipantStore() *memParticipantStore {
	return &memParticipantStore{parts: make(map[partKey]domain.Participation)}
}

func (s *memParticipantStore) Upsert(_ context.Context, p domain.Participation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := partKey{p.ArenaID, p.Address}
	// Preserve flags already mirrored; join events can replay after claims.
	if prev, ok := s.parts[k]; ok {
		p.IsWinner = p.IsWinner || prev.IsWinner
		p.RewardClaimed = p.RewardClaimed || prev.RewardClaimed
	}
	s.parts[k] = p
	return nil
}

func (s *memParticipantStore) Get(_ context.Context, arenaID int64, addr common.Address) (domain.Participation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.parts[partKey{arenaID, addr}]
	if !ok {
		return domain.Participation{}, domain.ErrNotFound
	}
	return p, nil
}

func (s *memParticipantStore) ListByArena(_ context.Context, _ int64) ([]domain.Participation, error) {
	return nil, nil
}

func (s *memParticipantStore) MarkWinner(_ context.Context, arenaID int64, addr common.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := partKey{arenaID, addr}
	if p, ok := s.parts[k]; ok {
		p.IsWinner = true
		s.parts[k] = p
	}
	return nil
}

func (s *memParticipantStore) MarkClaimed(_ context.Context, arenaID int64, addr common.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := partKey{arenaID, addr}
	if p, ok := s.parts[k]; ok {
		p.RewardClaimed = true
		s.parts[k] = p
	}
	return nil
}

type memVoteStore struct {
	mu    sync.Mutex
	votes map[partKey]domain.Vote
}

func newMemVoteStore() *memVoteStore {
	return &memVoteStore{votes: make(map[partKey]domain.Vote)}
}

func (s *memVoteStore) Upsert(_ context.Context, v domain.Vote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := partKey{v.ArenaID, v.Voter}
	if prev, ok := s.votes[k]; ok {
		v.RewardClaimed = v.RewardClaimed || prev.RewardClaimed
	}
	s.votes[k] = v
	return nil
}

func (s *memVoteStore) Get(_ context.Context, arenaID int64, voter common.Address) (domain.Vote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.votes[partKey{arenaID, voter}]
	if !ok {
		return domain.Vote{}, domain.ErrNotFound
	}
	return v, nil
}

func (s *memVoteStore) ListByArena(_ context.Context, _ int64) ([]domain.Vote, error) {
	return nil, nil
}

func (s *memVoteStore) Tallies(_ context.Context, _ int64) ([]domain.Tally, error) {
	return nil, nil
}

func (s *memVoteStore) MarkClaimed(_ context.Context, arenaID int64, voter common.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := partKey{arenaID, voter}
	if v, ok := s.votes[k]; ok {
		v.RewardClaimed = true
		s.votes[k] = v
	}
	return nil
}

type memCheckpointStore struct {
	mu   sync.Mutex
	seqs map[string]int64
}

func newMemCheckpointStore() *memCheckpointStore {
	return &memCheckpointStore{seqs: make(map[string]int64)}
}

func (s *memCheckpointStore) Get(_ context.Context, name string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seq, ok := s.seqs[name]
	if !ok {
		return 0, domain.ErrNotFound
	}
	return seq, nil
}

func (s *memCheckpointStore) Set(_ context.Context, name string, seq int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seqs[name] = seq
	return nil
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func addr(b byte) common.Address {
	return common.BytesToAddress([]byte{b})
}

type fixture struct {
	ledger      *ledger.Ledger
	clock       *fakeClock
	arenas      *memArenaStore
	parts       *memParticipantStore
	votes       *memVoteStore
	checkpoints *memCheckpointStore
	indexer     *Indexer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	l := ledger.New(ledger.Defaults(), clock, ledger.NewMemVault(), nil)
	f := &fixture{
		ledger:      l,
		clock:       clock,
		arenas:      newMemArenaStore(),
		parts:       newMemParticipantStore(),
		votes:       newMemVoteStore(),
		checkpoints: newMemCheckpointStore(),
	}
	f.indexer = New(l, f.arenas, f.parts, f.votes, f.checkpoints, nil)
	return f
}

// playScenario drives the ledger through a settled arena with one winner,
// one losing voter, and completed claims.
func playScenario(t *testing.T, f *fixture) int64 {
	t.Helper()
	creator, alice, bob := addr(1), addr(2), addr(3)
	v1, v2, v3 := addr(0x11), addr(0x12), addr(0x13)

	id, err := f.ledger.CreateArena(creator, 100, 50, 100)
	if err != nil {
		t.Fatalf("CreateArena: %v", err)
	}
	for _, p := range []common.Address{alice, bob} {
		if err := f.ledger.JoinArena(p, id, 100); err != nil {
			t.Fatalf("JoinArena: %v", err)
		}
	}
	f.clock.Advance(3 * time.Minute)
	for _, v := range []struct {
		who, candidate common.Address
	}{
		{v1, alice}, {v2, alice}, {v3, bob},
	} {
		if err := f.ledger.CastVote(v.who, id, v.candidate, 50); err != nil {
			t.Fatalf("CastVote: %v", err)
		}
	}
	f.clock.Advance(4 * time.Minute)
	if err := f.ledger.Settle(v1, id); err != nil {
		t.Fatalf("Settle: %v", err)
	}
	if _, err := f.ledger.ClaimParticipantReward(alice, id); err != nil {
		t.Fatalf("ClaimParticipantReward: %v", err)
	}
	if _, err := f.ledger.ClaimVoterReward(v1, id); err != nil {
		t.Fatalf("ClaimVoterReward: %v", err)
	}
	return id
}

func TestRunMirrorsFullHistory(t *testing.T) {
	f := newFixture(t)
	id := playScenario(t, f)
	ctx := context.Background()

	n, err := f.indexer.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if want := int(f.ledger.LastSeq()); n != want {
		t.Fatalf("processed %d events, want %d", n, want)
	}

	// Arena row mirrors the live record.
	live, _ := f.ledger.GetArena(id)
	mirrored, err := f.arenas.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("arena not mirrored: %v", err)
	}
	if mirrored.Phase != domain.PhaseSettled || mirrored.NumWinners != live.NumWinners {
		t.Errorf("mirrored arena = %+v, want settled with %d winners", mirrored, live.NumWinners)
	}
	if mirrored.ParticipantPool != live.ParticipantPool || mirrored.VoterPool != live.VoterPool {
		t.Errorf("mirrored pools %d/%d, want %d/%d",
			mirrored.ParticipantPool, mirrored.VoterPool, live.ParticipantPool, live.VoterPool)
	}

	// Participant rows: alice is winner and has claimed.
	alice := addr(2)
	p, err := f.parts.Get(ctx, id, alice)
	if err != nil {
		t.Fatalf("participant not mirrored: %v", err)
	}
	if !p.IsWinner || !p.RewardClaimed {
		t.Errorf("alice row = %+v, want winner and claimed", p)
	}
	bob := addr(3)
	p, _ = f.parts.Get(ctx, id, bob)
	if p.IsWinner {
		t.Error("bob mirrored as winner")
	}

	// Vote rows: v1 claimed, v3 backed the loser and did not.
	v, err := f.votes.Get(ctx, id, addr(0x11))
	if err != nil {
		t.Fatalf("vote not mirrored: %v", err)
	}
	if v.Candidate != alice || !v.RewardClaimed {
		t.Errorf("v1 row = %+v, want vote for alice, claimed", v)
	}
	v, _ = f.votes.Get(ctx, id, addr(0x13))
	if v.RewardClaimed {
		t.Error("losing voter mirrored as claimed")
	}

	// Checkpoint persisted at the last processed sequence.
	seq, err := f.checkpoints.Get(ctx, checkpointName)
	if err != nil {
		t.Fatalf("checkpoint not persisted: %v", err)
	}
	if seq != f.ledger.LastSeq() {
		t.Errorf("checkpoint = %d, want %d", seq, f.ledger.LastSeq())
	}
}

func TestRunResumesFromCheckpoint(t *testing.T) {
	f := newFixture(t)
	playScenario(t, f)
	ctx := context.Background()

	if _, err := f.indexer.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	// Nothing new: the next pass processes zero events.
	n, err := f.indexer.Run(ctx)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if n != 0 {
		t.Fatalf("second pass processed %d events, want 0", n)
	}
}

// TestDuplicateDeliveryIsIdempotent forces a full re-replay over already
// mirrored rows and checks the mirror converges to the same state.
func TestDuplicateDeliveryIsIdempotent(t *testing.T) {
	f := newFixture(t)
	id := playScenario(t, f)
	ctx := context.Background()

	if _, err := f.indexer.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	// Rewind the checkpoint to replay everything a second time.
	if err := f.checkpoints.Set(ctx, checkpointName, 0); err != nil {
		t.Fatalf("rewind checkpoint: %v", err)
	}
	n, err := f.indexer.Run(ctx)
	if err != nil {
		t.Fatalf("replay Run: %v", err)
	}
	if want := int(f.ledger.LastSeq()); n != want {
		t.Fatalf("replay processed %d, want %d", n, want)
	}

	// Flags set by claim events survive the replayed join/vote upserts.
	p, _ := f.parts.Get(ctx, id, addr(2))
	if !p.IsWinner || !p.RewardClaimed {
		t.Errorf("replay lost flags: %+v", p)
	}
	v, _ := f.votes.Get(ctx, id, addr(0x11))
	if !v.RewardClaimed {
		t.Errorf("replay lost vote claim flag: %+v", v)
	}
}

// TestColdStartScansBoundedWindow creates more history than the cold-start
// window and checks that only the trailing window is replayed.
func TestColdStartScansBoundedWindow(t *testing.T) {
	f := newFixture(t)
	creator := addr(1)
	// Each creation emits two events; 600 arenas produce 1200 events.
	for i := 0; i < 600; i++ {
		if _, err := f.ledger.CreateArena(creator, 100, 50, 100); err != nil {
			t.Fatalf("CreateArena: %v", err)
		}
	}
	ctx := context.Background()

	n, err := f.indexer.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if n != coldStartWindow {
		t.Fatalf("cold start processed %d events, want %d", n, coldStartWindow)
	}

	// The earliest arenas fall outside the window and are not mirrored.
	if _, err := f.arenas.GetByID(ctx, 1); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("arena 1 mirrored despite bounded cold start (err = %v)", err)
	}
	// The newest arena is mirrored.
	if _, err := f.arenas.GetByID(ctx, 600); err != nil {
		t.Errorf("arena 600 not mirrored: %v", err)
	}
	// Checkpoint lands on the last event.
	seq, _ := f.checkpoints.Get(ctx, checkpointName)
	if seq != f.ledger.LastSeq() {
		t.Errorf("checkpoint = %d, want %d", seq, f.ledger.LastSeq())
	}
}
