package postgres

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sankalp771/MONAD-RAGE/internal/domain"
)

// VoteStore implements domain.VoteStore using PostgreSQL. Rows are keyed by
// (arena_id, voter); the claim flag is preserved across replayed upserts.
type VoteStore struct {
	pool *pgxpool.Pool
}

// NewVoteStore creates a new VoteStore.
func NewVoteStore(pool *pgxpool.Pool) *VoteStore {
	return &VoteStore{pool: pool}
}

// Upsert records a vote. Votes are immutable on the ledger, so the conflict
// branch only refreshes cast_at.
func (s *VoteStore) Upsert(ctx context.Context, v domain.Vote) error {
	const query = `
		INSERT INTO votes (arena_id, voter, candidate, cast_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (arena_id, voter) DO UPDATE SET
			cast_at = EXCLUDED.cast_at`

	_, err := s.pool.Exec(ctx, query, v.ArenaID, v.Voter.Hex(), v.Candidate.Hex(), v.CastAt)
	if err != nil {
		return fmt.Errorf("postgres: upsert vote %d/%s: %w", v.ArenaID, v.Voter.Hex(), err)
	}
	return nil
}

func scanVote(row pgx.Row) (domain.Vote, error) {
	var v domain.Vote
	var voter, candidate string
	err := row.Scan(&v.ArenaID, &voter, &candidate, &v.CastAt, &v.RewardClaimed)
	if err != nil {
		return domain.Vote{}, err
	}
	v.Voter = common.HexToAddress(voter)
	v.Candidate = common.HexToAddress(candidate)
	return v, nil
}

// Get retrieves one vote record.
func (s *VoteStore) Get(ctx context.Context, arenaID int64, voter common.Address) (domain.Vote, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT arena_id, voter, candidate, cast_at, reward_claimed
		 FROM votes WHERE arena_id = $1 AND voter = $2`,
		arenaID, voter.Hex())
	v, err := scanVote(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Vote{}, domain.ErrNotFound
		}
		return domain.Vote{}, fmt.Errorf("postgres: get vote %d/%s: %w", arenaID, voter.Hex(), err)
	}
	return v, nil
}

// ListByArena returns an arena's votes in cast order.
func (s *VoteStore) ListByArena(ctx context.Context, arenaID int64) ([]domain.Vote, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT arena_id, voter, candidate, cast_at, reward_claimed
		 FROM votes WHERE arena_id = $1 ORDER BY cast_at, voter`,
		arenaID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list votes %d: %w", arenaID, err)
	}
	defer rows.Close()

	var votes []domain.Vote
	for rows.Next() {
		v, err := scanVote(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan vote: %w", err)
		}
		votes = append(votes, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list votes rows: %w", err)
	}
	return votes, nil
}

// Tallies aggregates per-candidate vote counts for an arena.
func (s *VoteStore) Tallies(ctx context.Context, arenaID int64) ([]domain.Tally, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT candidate, COUNT(*) FROM votes
		 WHERE arena_id = $1 GROUP BY candidate ORDER BY COUNT(*) DESC, candidate`,
		arenaID)
	if err != nil {
		return nil, fmt.Errorf("postgres: tallies %d: %w", arenaID, err)
	}
	defer rows.Close()

	var tallies []domain.Tally
	for rows.Next() {
		var candidate string
		var t domain.Tally
		if err := rows.Scan(&candidate, &t.Votes); err != nil {
			return nil, fmt.Errorf("postgres: scan tally: %w", err)
		}
		t.Candidate = common.HexToAddress(candidate)
		tallies = append(tallies, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: tallies rows: %w", err)
	}
	return tallies, nil
}

// MarkClaimed flips the claim flag. A missing row is a no-op.
func (s *VoteStore) MarkClaimed(ctx context.Context, arenaID int64, voter common.Address) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE votes SET reward_claimed = TRUE WHERE arena_id = $1 AND voter = $2`,
		arenaID, voter.Hex())
	if err != nil {
		return fmt.Errorf("postgres: mark vote claimed %d/%s: %w", arenaID, voter.Hex(), err)
	}
	return nil
}

var _ domain.VoteStore = (*VoteStore)(nil)
