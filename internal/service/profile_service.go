package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/sankalp771/MONAD-RAGE/internal/domain"
)

// maxDisplayNameLength bounds profile display names at the API boundary.
const maxDisplayNameLength = 64

// ErrDisplayNameTooLong rejects display names over the length bound.
var ErrDisplayNameTooLong = errors.New("profile: display name too long")

// ProfileService manages identity display metadata.
type ProfileService struct {
	profiles domain.ProfileStore
	logger   *slog.Logger
}

// NewProfileService creates a ProfileService.
func NewProfileService(profiles domain.ProfileStore, logger *slog.Logger) *ProfileService {
	return &ProfileService{
		profiles: profiles,
		logger:   logger.With(slog.String("component", "profile_service")),
	}
}

// Upsert creates or replaces the caller's profile.
func (s *ProfileService) Upsert(ctx context.Context, addr common.Address, displayName, avatarURL, bio string) (domain.Profile, error) {
	if len(displayName) > maxDisplayNameLength {
		return domain.Profile{}, ErrDisplayNameTooLong
	}

	p := domain.Profile{
		Address:     addr,
		DisplayName: displayName,
		AvatarURL:   avatarURL,
		Bio:         bio,
		UpdatedAt:   time.Now().UTC(),
	}
	if err := s.profiles.Upsert(ctx, p); err != nil {
		return domain.Profile{}, fmt.Errorf("profile_service: upsert %s: %w", addr.Hex(), err)
	}
	return p, nil
}

// Get retrieves a profile by address.
func (s *ProfileService) Get(ctx context.Context, addr common.Address) (domain.Profile, error) {
	p, err := s.profiles.Get(ctx, addr)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("profile_service: get %s: %w", addr.Hex(), err)
	}
	return p, nil
}
