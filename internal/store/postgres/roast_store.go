package postgres

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sankalp771/MONAD-RAGE/internal/domain"
)

// RoastStore implements domain.RoastStore using PostgreSQL. One roast per
// (arena, author); a repeated insert is a no-op so at-least-once submission
// retries never fail.
type RoastStore struct {
	pool *pgxpool.Pool
}

// NewRoastStore creates a new RoastStore.
func NewRoastStore(pool *pgxpool.Pool) *RoastStore {
	return &RoastStore{pool: pool}
}

// Insert stores a roast, keeping the first submission on conflict.
func (s *RoastStore) Insert(ctx context.Context, r domain.Roast) error {
	const query = `
		INSERT INTO roasts (arena_id, author, body, media_url, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (arena_id, author) DO NOTHING`

	_, err := s.pool.Exec(ctx, query, r.ArenaID, r.Author.Hex(), r.Text, r.MediaURL, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres: insert roast %d/%s: %w", r.ArenaID, r.Author.Hex(), err)
	}
	return nil
}

func scanRoast(row pgx.Row) (domain.Roast, error) {
	var r domain.Roast
	var author string
	err := row.Scan(&r.ArenaID, &author, &r.Text, &r.MediaURL, &r.CreatedAt)
	if err != nil {
		return domain.Roast{}, err
	}
	r.Author = common.HexToAddress(author)
	return r, nil
}

// Get retrieves an author's roast for an arena.
func (s *RoastStore) Get(ctx context.Context, arenaID int64, author common.Address) (domain.Roast, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT arena_id, author, body, media_url, created_at
		 FROM roasts WHERE arena_id = $1 AND author = $2`,
		arenaID, author.Hex())
	r, err := scanRoast(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Roast{}, domain.ErrNotFound
		}
		return domain.Roast{}, fmt.Errorf("postgres: get roast %d/%s: %w", arenaID, author.Hex(), err)
	}
	return r, nil
}

// ListByArena returns all roasts for an arena in submission order.
func (s *RoastStore) ListByArena(ctx context.Context, arenaID int64) ([]domain.Roast, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT arena_id, author, body, media_url, created_at
		 FROM roasts WHERE arena_id = $1 ORDER BY created_at, author`,
		arenaID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list roasts %d: %w", arenaID, err)
	}
	defer rows.Close()

	var roasts []domain.Roast
	for rows.Next() {
		r, err := scanRoast(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan roast: %w", err)
		}
		roasts = append(roasts, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list roasts rows: %w", err)
	}
	return roasts, nil
}

var _ domain.RoastStore = (*RoastStore)(nil)
