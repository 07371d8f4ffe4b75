package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/sankalp771/MONAD-RAGE/internal/domain"
	"github.com/sankalp771/MONAD-RAGE/internal/service"
)

// ContentService defines the methods that the content handler requires from
// the service layer.
type ContentService interface {
	SubmitRoast(ctx context.Context, arenaID int64, author common.Address, text, mediaURL string) (domain.Roast, error)
	GetRoast(ctx context.Context, arenaID int64, author common.Address) (domain.Roast, error)
	ListRoasts(ctx context.Context, arenaID int64) ([]domain.Roast, error)
}

// ContentHandler serves roast content HTTP endpoints.
type ContentHandler struct {
	content ContentService
	logger  *slog.Logger
}

// NewContentHandler creates a ContentHandler with the given service and logger.
func NewContentHandler(content ContentService, logger *slog.Logger) *ContentHandler {
	return &ContentHandler{
		content: content,
		logger:  logger,
	}
}

type submitRoastRequest struct {
	Author   string `json:"author"`
	Text     string `json:"text"`
	MediaURL string `json:"media_url"`
}

// SubmitRoast attaches roast content to an arena.
// POST /api/arenas/{id}/roasts
func (h *ContentHandler) SubmitRoast(w http.ResponseWriter, r *http.Request) {
	id, ok := pathArenaID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid arena id")
		return
	}

	var req submitRoastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	author, ok := parseAddress(req.Author)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid author address")
		return
	}

	roast, err := h.content.SubmitRoast(r.Context(), id, author, req.Text, req.MediaURL)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmptyRoast),
			errors.Is(err, service.ErrRoastTooLong):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrNotParticipant):
			writeError(w, http.StatusForbidden, err.Error())
		case errors.Is(err, service.ErrRoastAlreadySent):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeDomainError(w, h.logger, r, err)
		}
		return
	}

	writeJSON(w, http.StatusCreated, roast)
}

// GetRoast returns one author's roast in an arena.
// GET /api/arenas/{id}/roasts/{author}
func (h *ContentHandler) GetRoast(w http.ResponseWriter, r *http.Request) {
	id, ok := pathArenaID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid arena id")
		return
	}

	author, ok := pathAddress(r, "author")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid author address")
		return
	}

	roast, err := h.content.GetRoast(r.Context(), id, author)
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusOK, roast)
}

// ListRoasts returns all roasts submitted to an arena.
// GET /api/arenas/{id}/roasts
func (h *ContentHandler) ListRoasts(w http.ResponseWriter, r *http.Request) {
	id, ok := pathArenaID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid arena id")
		return
	}

	roasts, err := h.content.ListRoasts(r.Context(), id)
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}
	if roasts == nil {
		roasts = []domain.Roast{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"roasts": roasts})
}
