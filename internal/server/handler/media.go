package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/sankalp771/MONAD-RAGE/internal/service"
)

// MediaService defines the methods that the media handler requires from the
// service layer.
type MediaService interface {
	Upload(ctx context.Context, arenaID int64, contentType string, data io.Reader) (string, error)
	Fetch(ctx context.Context, key string) (io.ReadCloser, string, error)
}

// MediaHandler serves roast media upload and download endpoints.
type MediaHandler struct {
	media  MediaService
	logger *slog.Logger
}

// NewMediaHandler creates a MediaHandler with the given service and logger.
func NewMediaHandler(media MediaService, logger *slog.Logger) *MediaHandler {
	return &MediaHandler{
		media:  media,
		logger: logger,
	}
}

// UploadMedia stores a media object for an arena. The request body is the
// raw object; Content-Type identifies its type.
// POST /api/arenas/{id}/media
func (h *MediaHandler) UploadMedia(w http.ResponseWriter, r *http.Request) {
	id, ok := pathArenaID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid arena id")
		return
	}

	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		writeError(w, http.StatusBadRequest, "missing Content-Type header")
		return
	}

	key, err := h.media.Upload(r.Context(), id, contentType, r.Body)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUnsupportedMediaType):
			writeError(w, http.StatusUnsupportedMediaType, err.Error())
		case errors.Is(err, service.ErrMediaTooLarge):
			writeError(w, http.StatusRequestEntityTooLarge, err.Error())
		default:
			writeDomainError(w, h.logger, r, err)
		}
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"key": key})
}

// FetchMedia streams a stored media object back to the client.
// GET /api/media/{key...}
func (h *MediaHandler) FetchMedia(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	if key == "" {
		writeError(w, http.StatusBadRequest, "missing media key")
		return
	}

	body, contentType, err := h.media.Fetch(r.Context(), key)
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}
	defer body.Close()

	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		h.logger.WarnContext(r.Context(), "handler: stream media failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
}
