// Package server hosts the HTTP and WebSocket API for the arena engine.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sankalp771/MONAD-RAGE/internal/domain"
	"github.com/sankalp771/MONAD-RAGE/internal/server/handler"
	"github.com/sankalp771/MONAD-RAGE/internal/server/middleware"
	"github.com/sankalp771/MONAD-RAGE/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled

	// RateLimit caps requests per client IP per RateWindow. Zero disables
	// rate limiting.
	RateLimit  int
	RateWindow time.Duration
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health   *handler.HealthHandler
	Arenas   *handler.ArenaHandler
	Profiles *handler.ProfileHandler
	Content  *handler.ContentHandler
	Media    *handler.MediaHandler
}

// Server is the headless HTTP + WebSocket API server for the arena engine.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux.
// It wires up middleware (rate limiting, auth, logging, CORS) and attaches
// the WebSocket hub. The limiter may be nil, in which case rate limiting is
// disabled.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check (no auth required).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Arena lifecycle.
	mux.HandleFunc("POST /api/arenas", handlers.Arenas.CreateArena)
	mux.HandleFunc("GET /api/arenas", handlers.Arenas.ListArenas)
	mux.HandleFunc("GET /api/arenas/{id}", handlers.Arenas.GetArena)
	mux.HandleFunc("POST /api/arenas/{id}/join", handlers.Arenas.JoinArena)
	mux.HandleFunc("POST /api/arenas/{id}/votes", handlers.Arenas.CastVote)
	mux.HandleFunc("GET /api/arenas/{id}/votes/{voter}", handlers.Arenas.VoteOf)
	mux.HandleFunc("POST /api/arenas/{id}/settle", handlers.Arenas.Settle)

	// Escrow claims.
	mux.HandleFunc("POST /api/arenas/{id}/claims/participant", handlers.Arenas.ClaimParticipantReward)
	mux.HandleFunc("POST /api/arenas/{id}/claims/voter", handlers.Arenas.ClaimVoterReward)
	mux.HandleFunc("POST /api/arenas/{id}/claims/refund", handlers.Arenas.ClaimRefund)

	// Arena queries.
	mux.HandleFunc("GET /api/arenas/{id}/participants", handlers.Arenas.Participants)
	mux.HandleFunc("GET /api/arenas/{id}/winners", handlers.Arenas.Winners)
	mux.HandleFunc("GET /api/arenas/{id}/tallies", handlers.Arenas.Tallies)
	mux.HandleFunc("GET /api/events", handlers.Arenas.History)
	mux.HandleFunc("GET /api/stats", handlers.Arenas.Stats)

	// Roast content.
	mux.HandleFunc("POST /api/arenas/{id}/roasts", handlers.Content.SubmitRoast)
	mux.HandleFunc("GET /api/arenas/{id}/roasts", handlers.Content.ListRoasts)
	mux.HandleFunc("GET /api/arenas/{id}/roasts/{author}", handlers.Content.GetRoast)

	// Roast media. Registered only when blob storage is configured.
	if handlers.Media != nil {
		mux.HandleFunc("POST /api/arenas/{id}/media", handlers.Media.UploadMedia)
		mux.HandleFunc("GET /api/media/{key...}", handlers.Media.FetchMedia)
	}

	// Profiles.
	mux.HandleFunc("PUT /api/profiles/{address}", handlers.Profiles.UpsertProfile)
	mux.HandleFunc("GET /api/profiles/{address}", handlers.Profiles.GetProfile)

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain, innermost first.
	var h http.Handler = mux

	h = middleware.Auth(cfg.APIKey)(h)

	if limiter != nil && cfg.RateLimit > 0 {
		window := cfg.RateWindow
		if window <= 0 {
			window = time.Second
		}
		h = middleware.RateLimit(limiter, cfg.RateLimit, window)(h)
	}

	h = middleware.Logging(logger)(h)
	h = corsMiddleware(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}

// corsMiddleware returns middleware that sets CORS headers for the allowed
// origins. If no origins are specified, it defaults to allowing all origins.
func corsMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			if origin != "" {
				allowed := len(allowedOrigins) == 0
				for _, o := range allowedOrigins {
					if strings.EqualFold(o, "*") || strings.EqualFold(o, origin) {
						allowed = true
						break
					}
				}

				if allowed {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
					w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key")
					w.Header().Set("Access-Control-Max-Age", "86400")
				}
			}

			// Handle preflight requests.
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
