package postgres

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sankalp771/MONAD-RAGE/internal/domain"
)

// ProfileStore implements domain.ProfileStore using PostgreSQL.
type ProfileStore struct {
	pool *pgxpool.Pool
}

// NewProfileStore creates a new ProfileStore.
func NewProfileStore(pool *pgxpool.Pool) *ProfileStore {
	return &ProfileStore{pool: pool}
}

// Upsert inserts or replaces an identity's profile.
func (s *ProfileStore) Upsert(ctx context.Context, p domain.Profile) error {
	const query = `
		INSERT INTO profiles (address, display_name, avatar_url, bio, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (address) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			avatar_url   = EXCLUDED.avatar_url,
			bio          = EXCLUDED.bio,
			updated_at   = NOW()`

	_, err := s.pool.Exec(ctx, query, p.Address.Hex(), p.DisplayName, p.AvatarURL, p.Bio)
	if err != nil {
		return fmt.Errorf("postgres: upsert profile %s: %w", p.Address.Hex(), err)
	}
	return nil
}

// Get retrieves a profile by identity.
func (s *ProfileStore) Get(ctx context.Context, addr common.Address) (domain.Profile, error) {
	var p domain.Profile
	var address string
	err := s.pool.QueryRow(ctx,
		`SELECT address, display_name, avatar_url, bio, updated_at
		 FROM profiles WHERE address = $1`,
		addr.Hex(),
	).Scan(&address, &p.DisplayName, &p.AvatarURL, &p.Bio, &p.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Profile{}, domain.ErrNotFound
		}
		return domain.Profile{}, fmt.Errorf("postgres: get profile %s: %w", addr.Hex(), err)
	}
	p.Address = common.HexToAddress(address)
	return p, nil
}

var _ domain.ProfileStore = (*ProfileStore)(nil)
