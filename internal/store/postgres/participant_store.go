package postgres

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sankalp771/MONAD-RAGE/internal/domain"
)

// ParticipantStore implements domain.ParticipantStore using PostgreSQL.
// Rows are keyed by (arena_id, address); flag columns only ever flip to
// true, so replayed join events never undo a mirrored claim.
type ParticipantStore struct {
	pool *pgxpool.Pool
}

// NewParticipantStore creates a new ParticipantStore.
func NewParticipantStore(pool *pgxpool.Pool) *ParticipantStore {
	return &ParticipantStore{pool: pool}
}

// Upsert records a participation. On conflict only joined_at is refreshed;
// the winner and claim flags are preserved.
func (s *ParticipantStore) Upsert(ctx context.Context, p domain.Participation) error {
	const query = `
		INSERT INTO participants (arena_id, address, joined_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (arena_id, address) DO UPDATE SET
			joined_at = EXCLUDED.joined_at`

	_, err := s.pool.Exec(ctx, query, p.ArenaID, p.Address.Hex(), p.JoinedAt)
	if err != nil {
		return fmt.Errorf("postgres: upsert participant %d/%s: %w", p.ArenaID, p.Address.Hex(), err)
	}
	return nil
}

const participantCols = `p.arena_id, p.address, p.joined_at, p.is_winner, p.reward_claimed,
	COALESCE((SELECT COUNT(*) FROM votes v WHERE v.arena_id = p.arena_id AND v.candidate = p.address), 0)`

func scanParticipant(row pgx.Row) (domain.Participation, error) {
	var p domain.Participation
	var address string
	err := row.Scan(&p.ArenaID, &address, &p.JoinedAt, &p.IsWinner, &p.RewardClaimed, &p.Votes)
	if err != nil {
		return domain.Participation{}, err
	}
	p.Address = common.HexToAddress(address)
	return p, nil
}

// Get retrieves one participation record with its live tally.
func (s *ParticipantStore) Get(ctx context.Context, arenaID int64, addr common.Address) (domain.Participation, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+participantCols+` FROM participants p WHERE p.arena_id = $1 AND p.address = $2`,
		arenaID, addr.Hex())
	p, err := scanParticipant(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Participation{}, domain.ErrNotFound
		}
		return domain.Participation{}, fmt.Errorf("postgres: get participant %d/%s: %w", arenaID, addr.Hex(), err)
	}
	return p, nil
}

// ListByArena returns an arena's participants in join order.
func (s *ParticipantStore) ListByArena(ctx context.Context, arenaID int64) ([]domain.Participation, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+participantCols+` FROM participants p WHERE p.arena_id = $1 ORDER BY p.joined_at, p.address`,
		arenaID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list participants %d: %w", arenaID, err)
	}
	defer rows.Close()

	var parts []domain.Participation
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan participant: %w", err)
		}
		parts = append(parts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list participants rows: %w", err)
	}
	return parts, nil
}

// MarkWinner flips the winner flag. A missing row is a no-op so replays out
// of order never fail.
func (s *ParticipantStore) MarkWinner(ctx context.Context, arenaID int64, addr common.Address) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE participants SET is_winner = TRUE WHERE arena_id = $1 AND address = $2`,
		arenaID, addr.Hex())
	if err != nil {
		return fmt.Errorf("postgres: mark winner %d/%s: %w", arenaID, addr.Hex(), err)
	}
	return nil
}

// MarkClaimed flips the claim flag. A missing row is a no-op.
func (s *ParticipantStore) MarkClaimed(ctx context.Context, arenaID int64, addr common.Address) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE participants SET reward_claimed = TRUE WHERE arena_id = $1 AND address = $2`,
		arenaID, addr.Hex())
	if err != nil {
		return fmt.Errorf("postgres: mark participant claimed %d/%s: %w", arenaID, addr.Hex(), err)
	}
	return nil
}

var _ domain.ParticipantStore = (*ParticipantStore)(nil)
