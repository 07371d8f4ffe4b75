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

// ProfileService defines the methods that the profile handler requires from
// the service layer.
type ProfileService interface {
	Upsert(ctx context.Context, addr common.Address, displayName, avatarURL, bio string) (domain.Profile, error)
	Get(ctx context.Context, addr common.Address) (domain.Profile, error)
}

// ProfileHandler serves profile HTTP endpoints.
type ProfileHandler struct {
	profiles ProfileService
	logger   *slog.Logger
}

// NewProfileHandler creates a ProfileHandler with the given service and logger.
func NewProfileHandler(profiles ProfileService, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{
		profiles: profiles,
		logger:   logger,
	}
}

type upsertProfileRequest struct {
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
	Bio         string `json:"bio"`
}

// UpsertProfile creates or replaces the profile for an address.
// PUT /api/profiles/{address}
func (h *ProfileHandler) UpsertProfile(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(r, "address")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid address")
		return
	}

	var req upsertProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	profile, err := h.profiles.Upsert(r.Context(), addr, req.DisplayName, req.AvatarURL, req.Bio)
	if err != nil {
		if errors.Is(err, service.ErrDisplayNameTooLong) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeDomainError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusOK, profile)
}

// GetProfile returns a profile by address.
// GET /api/profiles/{address}
func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(r, "address")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid address")
		return
	}

	profile, err := h.profiles.Get(r.Context(), addr)
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusOK, profile)
}
