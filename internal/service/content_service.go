package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/common"

	"github.com/sankalp771/MONAD-RAGE/internal/domain"
	"github.com/sankalp771/MONAD-RAGE/internal/ledger"
)

// Content validation errors surfaced to the API layer.
var (
	ErrRoastTooLong     = errors.New("content: roast text too long")
	ErrNotParticipant   = errors.New("content: author is not a participant")
	ErrEmptyRoast       = errors.New("content: roast text is empty")
	ErrRoastAlreadySent = errors.New("content: roast already submitted")
)

// ContentService manages roast submissions attached to arenas. Roast text
// carries no escrow significance; the ledger only cares about stakes and
// votes.
type ContentService struct {
	roasts domain.RoastStore
	ledger *ledger.Ledger
	logger *slog.Logger
}

// NewContentService creates a ContentService.
func NewContentService(roasts domain.RoastStore, ldg *ledger.Ledger, logger *slog.Logger) *ContentService {
	return &ContentService{
		roasts: roasts,
		ledger: ldg,
		logger: logger.With(slog.String("component", "content_service")),
	}
}

// SubmitRoast attaches roast content to an arena. The author must be a
// participant, the text must be non-empty and within the length bound, and
// only the first submission per (arena, author) is kept.
func (s *ContentService) SubmitRoast(ctx context.Context, arenaID int64, author common.Address, text, mediaURL string) (domain.Roast, error) {
	if text == "" {
		return domain.Roast{}, ErrEmptyRoast
	}
	// The bound counts characters, not bytes, so multibyte text is not
	// penalized.
	if utf8.RuneCountInString(text) > domain.MaxRoastLength {
		return domain.Roast{}, ErrRoastTooLong
	}

	parts, err := s.ledger.Participants(arenaID)
	if err != nil {
		return domain.Roast{}, fmt.Errorf("content_service: submit roast, arena %d: %w", arenaID, err)
	}
	joined := false
	for _, p := range parts {
		if p == author {
			joined = true
			break
		}
	}
	if !joined {
		return domain.Roast{}, ErrNotParticipant
	}

	if _, err := s.roasts.Get(ctx, arenaID, author); err == nil {
		return domain.Roast{}, ErrRoastAlreadySent
	} else if !errors.Is(err, domain.ErrNotFound) {
		return domain.Roast{}, fmt.Errorf("content_service: submit roast, arena %d: %w", arenaID, err)
	}

	r := domain.Roast{
		ArenaID:   arenaID,
		Author:    author,
		Text:      text,
		MediaURL:  mediaURL,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.roasts.Insert(ctx, r); err != nil {
		return domain.Roast{}, fmt.Errorf("content_service: submit roast, arena %d: %w", arenaID, err)
	}
	return r, nil
}

// GetRoast retrieves one author's roast in an arena.
func (s *ContentService) GetRoast(ctx context.Context, arenaID int64, author common.Address) (domain.Roast, error) {
	r, err := s.roasts.Get(ctx, arenaID, author)
	if err != nil {
		return domain.Roast{}, fmt.Errorf("content_service: get roast, arena %d: %w", arenaID, err)
	}
	return r, nil
}

// ListRoasts returns all roasts submitted to an arena.
func (s *ContentService) ListRoasts(ctx context.Context, arenaID int64) ([]domain.Roast, error) {
	roasts, err := s.roasts.ListByArena(ctx, arenaID)
	if err != nil {
		return nil, fmt.Errorf("content_service: list roasts, arena %d: %w", arenaID, err)
	}
	return roasts, nil
}
