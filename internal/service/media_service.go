package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/sankalp771/MONAD-RAGE/internal/domain"
)

// maxMediaSize bounds a single media upload at 10 MiB.
const maxMediaSize int64 = 10 * 1024 * 1024

// ErrMediaTooLarge is returned when an upload exceeds maxMediaSize.
var ErrMediaTooLarge = errors.New("media: upload too large")

// allowedMediaTypes lists the content types accepted for roast media.
var allowedMediaTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/gif":  true,
	"image/webp": true,
}

// ErrUnsupportedMediaType is returned for content types not in the allow
// list.
var ErrUnsupportedMediaType = errors.New("media: unsupported content type")

// MediaService stores and retrieves roast media in blob storage. Keys follow
// the scheme roasts/{arenaID}/{uuid}.
type MediaService struct {
	writer domain.BlobWriter
	reader domain.BlobReader
	logger *slog.Logger
}

// NewMediaService creates a MediaService.
func NewMediaService(writer domain.BlobWriter, reader domain.BlobReader, logger *slog.Logger) *MediaService {
	return &MediaService{
		writer: writer,
		reader: reader,
		logger: logger.With(slog.String("component", "media_service")),
	}
}

// Upload stores a media object for an arena and returns its storage key.
// The reader is capped at maxMediaSize; an oversized payload fails with
// ErrMediaTooLarge rather than truncating silently.
func (s *MediaService) Upload(ctx context.Context, arenaID int64, contentType string, data io.Reader) (string, error) {
	if !allowedMediaTypes[contentType] {
		return "", ErrUnsupportedMediaType
	}

	// Read one byte past the cap to distinguish "exactly at the limit"
	// from "over it".
	buf, err := io.ReadAll(io.LimitReader(data, maxMediaSize+1))
	if err != nil {
		return "", fmt.Errorf("media_service: read upload: %w", err)
	}
	if int64(len(buf)) > maxMediaSize {
		return "", ErrMediaTooLarge
	}

	key := fmt.Sprintf("roasts/%d/%s", arenaID, uuid.New().String())
	if err := s.writer.Put(ctx, key, bytes.NewReader(buf), contentType); err != nil {
		return "", fmt.Errorf("media_service: upload %s: %w", key, err)
	}

	s.logger.InfoContext(ctx, "media uploaded",
		slog.Int64("arena_id", arenaID),
		slog.String("key", key),
		slog.Int("size", len(buf)),
	)
	return key, nil
}

// Fetch retrieves a media object by key. The caller must close the returned
// reader.
func (s *MediaService) Fetch(ctx context.Context, key string) (io.ReadCloser, string, error) {
	body, contentType, err := s.reader.Get(ctx, key)
	if err != nil {
		return nil, "", fmt.Errorf("media_service: fetch %s: %w", key, err)
	}
	return body, contentType, nil
}
