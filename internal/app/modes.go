package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sankalp771/MONAD-RAGE/internal/domain"
	"github.com/sankalp771/MONAD-RAGE/internal/indexer"
	"github.com/sankalp771/MONAD-RAGE/internal/server"
	"github.com/sankalp771/MONAD-RAGE/internal/server/handler"
	"github.com/sankalp771/MONAD-RAGE/internal/server/ws"
	"github.com/sankalp771/MONAD-RAGE/internal/service"
)

// indexerLockTTL bounds how long a crashed indexer instance keeps the
// distributed lock before another instance can take over.
const indexerLockTTL = 2 * time.Minute

// ServeMode runs the HTTP + WebSocket API over the ledger.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting serve mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startServe(ctx, g, deps)
	return g.Wait()
}

// IndexMode runs only the mirror indexer loop.
func (a *App) IndexMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting index mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startIndexer(ctx, g, deps)
	return g.Wait()
}

// FullMode runs the API server and the mirror indexer together.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startServe(ctx, g, deps)
	if a.cfg.Indexer.Enabled {
		a.startIndexer(ctx, g, deps)
	}
	return g.Wait()
}

// startServe builds the services, handlers, WebSocket hub, and HTTP server
// and registers their goroutines on the group.
func (a *App) startServe(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	arenaSvc := service.NewArenaService(
		deps.Ledger, deps.ArenaCache, deps.SignalBus, deps.AuditStore, deps.Notifier, a.logger,
	)
	profileSvc := service.NewProfileService(deps.ProfileStore, a.logger)
	contentSvc := service.NewContentService(deps.RoastStore, deps.Ledger, a.logger)

	// Drain the ledger's event queue into the bus, cache, and notifier.
	g.Go(func() error {
		if err := arenaSvc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	handlers := server.Handlers{
		Health:   handler.NewHealthHandler(a.logger),
		Arenas:   handler.NewArenaHandler(arenaSvc, a.logger),
		Profiles: handler.NewProfileHandler(profileSvc, a.logger),
		Content:  handler.NewContentHandler(contentSvc, a.logger),
	}
	if deps.BlobWriter != nil && deps.BlobReader != nil {
		mediaSvc := service.NewMediaService(deps.BlobWriter, deps.BlobReader, a.logger)
		handlers.Media = handler.NewMediaHandler(mediaSvc, a.logger)
	}

	wsHub := ws.NewHub(deps.SignalBus, a.logger)
	g.Go(func() error {
		if err := wsHub.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  a.cfg.Server.RateWindow.Duration,
	}, handlers, wsHub, deps.RateLimiter, a.logger)

	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}

// startIndexer registers the mirror indexer loop on the group. A distributed
// lock ensures only one instance replays history into the mirror at a time.
func (a *App) startIndexer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	g.Go(func() error {
		unlock, err := deps.LockManager.Acquire(ctx, "arena_indexer", indexerLockTTL)
		if err != nil {
			if errors.Is(err, domain.ErrLockHeld) {
				a.logger.WarnContext(ctx, "indexer lock held elsewhere, skipping",
					slog.String("lock", "arena_indexer"),
				)
				return nil
			}
			return err
		}
		defer unlock()

		ix := indexer.New(
			deps.Ledger,
			deps.ArenaStore,
			deps.ParticipantStore,
			deps.VoteStore,
			deps.CheckpointStore,
			a.logger,
		)
		if err := ix.RunLoop(ctx, a.cfg.Indexer.Interval.Duration); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
}
