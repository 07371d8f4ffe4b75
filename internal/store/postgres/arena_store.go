package postgres

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sankalp771/MONAD-RAGE/internal/domain"
)

// ArenaStore implements domain.ArenaStore using PostgreSQL.
type ArenaStore struct {
	pool *pgxpool.Pool
}

// NewArenaStore creates a new ArenaStore backed by the given connection pool.
func NewArenaStore(pool *pgxpool.Pool) *ArenaStore {
	return &ArenaStore{pool: pool}
}

// Upsert inserts or replaces the mirrored arena snapshot. Replays upsert the
// same row repeatedly; the latest snapshot always wins.
func (s *ArenaStore) Upsert(ctx context.Context, a domain.Arena) error {
	const query = `
		INSERT INTO arenas (
			id, creator, roast_stake, vote_stake,
			join_deadline, vote_deadline,
			participant_count, total_votes, participant_pool, voter_pool,
			highest_votes, num_winners, winner_voter_count,
			participant_share, voter_share,
			phase, cancel_reason, created_at, finalized_at, updated_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6,
			$7, $8, $9, $10,
			$11, $12, $13,
			$14, $15,
			$16, $17, $18, $19, NOW()
		)
		ON CONFLICT (id) DO UPDATE SET
			participant_count  = EXCLUDED.participant_count,
			total_votes        = EXCLUDED.total_votes,
			participant_pool   = EXCLUDED.participant_pool,
			voter_pool         = EXCLUDED.voter_pool,
			highest_votes      = EXCLUDED.highest_votes,
			num_winners        = EXCLUDED.num_winners,
			winner_voter_count = EXCLUDED.winner_voter_count,
			participant_share  = EXCLUDED.participant_share,
			voter_share        = EXCLUDED.voter_share,
			phase              = EXCLUDED.phase,
			cancel_reason      = EXCLUDED.cancel_reason,
			finalized_at       = EXCLUDED.finalized_at,
			updated_at         = NOW()`

	_, err := s.pool.Exec(ctx, query,
		a.ID, a.Creator.Hex(), a.RoastStake, a.VoteStake,
		a.JoinDeadline, a.VoteDeadline,
		a.ParticipantCount, a.TotalVotes, a.ParticipantPool, a.VoterPool,
		a.HighestVotes, a.NumWinners, a.WinnerVoterCount,
		a.ParticipantShare, a.VoterShare,
		string(a.Phase), string(a.CancelReason), a.CreatedAt, a.FinalizedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert arena %d: %w", a.ID, err)
	}
	return nil
}

const arenaCols = `id, creator, roast_stake, vote_stake,
	join_deadline, vote_deadline,
	participant_count, total_votes, participant_pool, voter_pool,
	highest_votes, num_winners, winner_voter_count,
	participant_share, voter_share,
	phase, cancel_reason, created_at, finalized_at`

func scanArena(row pgx.Row) (domain.Arena, error) {
	var a domain.Arena
	var creator, phase, reason string
	err := row.Scan(
		&a.ID, &creator, &a.RoastStake, &a.VoteStake,
		&a.JoinDeadline, &a.VoteDeadline,
		&a.ParticipantCount, &a.TotalVotes, &a.ParticipantPool, &a.VoterPool,
		&a.HighestVotes, &a.NumWinners, &a.WinnerVoterCount,
		&a.ParticipantShare, &a.VoterShare,
		&phase, &reason, &a.CreatedAt, &a.FinalizedAt,
	)
	if err != nil {
		return domain.Arena{}, err
	}
	a.Creator = common.HexToAddress(creator)
	a.Phase = domain.ArenaPhase(phase)
	a.CancelReason = domain.CancelReason(reason)
	return a, nil
}

// GetByID retrieves a mirrored arena by its ledger id.
func (s *ArenaStore) GetByID(ctx context.Context, id int64) (domain.Arena, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+arenaCols+` FROM arenas WHERE id = $1`, id)
	a, err := scanArena(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Arena{}, domain.ErrNotFound
		}
		return domain.Arena{}, fmt.Errorf("postgres: get arena %d: %w", id, err)
	}
	return a, nil
}

// ListRecent returns mirrored arenas newest-first.
func (s *ArenaStore) ListRecent(ctx context.Context, opts domain.ListOpts) ([]domain.Arena, error) {
	query := `SELECT ` + arenaCols + ` FROM arenas ORDER BY id DESC`
	args := []any{}
	argIdx := 1
	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}
	return s.list(ctx, query, args...)
}

// ListByPhase returns mirrored arenas in the given phase, newest-first.
func (s *ArenaStore) ListByPhase(ctx context.Context, phase domain.ArenaPhase, opts domain.ListOpts) ([]domain.Arena, error) {
	query := `SELECT ` + arenaCols + ` FROM arenas WHERE phase = $1 ORDER BY id DESC`
	args := []any{string(phase)}
	argIdx := 2
	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}
	return s.list(ctx, query, args...)
}

func (s *ArenaStore) list(ctx context.Context, query string, args ...any) ([]domain.Arena, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list arenas: %w", err)
	}
	defer rows.Close()

	var arenas []domain.Arena
	for rows.Next() {
		a, err := scanArena(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan arena: %w", err)
		}
		arenas = append(arenas, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list arenas rows: %w", err)
	}
	return arenas, nil
}

// Count returns the number of mirrored arenas.
func (s *ArenaStore) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM arenas").Scan(&count); err != nil {
		return 0, fmt.Errorf("postgres: count arenas: %w", err)
	}
	return count, nil
}

var _ domain.ArenaStore = (*ArenaStore)(nil)
