package app

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/vovakirdan/boardsync/internal/auth"
	"github.com/vovakirdan/boardsync/internal/board"
	"github.com/vovakirdan/boardsync/internal/config"
	"github.com/vovakirdan/boardsync/internal/core"
	"github.com/vovakirdan/boardsync/internal/rtc"
	"github.com/vovakirdan/boardsync/internal/rtc/livekit"
	"github.com/vovakirdan/boardsync/internal/store"
	"github.com/vovakirdan/boardsync/internal/store/memory"
	"github.com/vovakirdan/boardsync/internal/store/redis"
	"github.com/vovakirdan/boardsync/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/boardsync/internal/transport/http"
)

// App wires together core and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	hub             *core.Hub
	persister       *core.Persister
	store           store.SnapshotStore
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := OpenStore(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	logger.Info().Str("driver", cfg.Store.Driver).Msg("snapshot store initialized")

	persister := core.NewPersister(st, cfg.PersistWorkers, cfg.PersistTimeout, logger)
	hub := core.NewHub(st, persister, core.Options{
		Reducer:     board.Reducer{InlineLimit: cfg.InlinePdfLimit},
		LoadTimeout: cfg.LoadTimeout,
		SaveTimeout: cfg.PersistTimeout,
		Logger:      logger,
	})

	authService := auth.NewService(&auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      24 * time.Hour,
	}, Policy(cfg))
	if !authService.Enabled() {
		logger.Warn().Msg("jwt_secret not set, every caller is anonymous and unrestricted")
	}

	var engine rtc.Engine
	if cfg.LiveKit.Enabled {
		engine = livekit.New(cfg.LiveKit.APIKey, cfg.LiveKit.APISecret, cfg.LiveKit.URL)
		logger.Info().Str("url", cfg.LiveKit.URL).Msg("livekit media rooms enabled")
	}

	return &App{
		server:          transporthttp.NewServer(hub, authService, engine, cfg, logger),
		shutdownTimeout: cfg.ShutdownTimeout,
		hub:             hub,
		persister:       persister,
		store:           st,
		log:             logger,
	}, nil
}

// OpenStore builds the durable store selected by cfg.Driver.
func OpenStore(ctx context.Context, cfg config.StoreConfig) (store.SnapshotStore, error) {
	switch cfg.Driver {
	case "memory":
		return memory.New(), nil
	case "sqlite", "":
		return sqlite.New(cfg.SQLitePath)
	case "redis":
		return redis.New(ctx, redis.Options{
			Addr:      cfg.RedisAddr,
			Password:  cfg.RedisPassword,
			DB:        cfg.RedisDB,
			KeyPrefix: cfg.KeyPrefix,
		})
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// Policy builds the publish policy from configuration.
func Policy(cfg *config.Config) auth.Policy {
	kinds := make([]board.EventKind, 0, len(cfg.RestrictedEvents))
	for _, k := range cfg.RestrictedEvents {
		kinds = append(kinds, board.EventKind(k))
	}
	return auth.Policy{Restricted: kinds, Privileged: cfg.PrivilegedRoles}
}

// Addr returns the configured listen address.
func (a *App) Addr() string {
	return a.server.Addr
}

// Run starts the HTTP server and the persister and blocks until ctx is
// cancelled or the server fails. Pending saves are drained before returning.
func (a *App) Run(ctx context.Context) error {
	a.persister.Start()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.log.Info().Str("addr", a.server.Addr).Msg("http server listening")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		serverErr := a.server.Shutdown(shutdownCtx)
		if errors.Is(serverErr, context.DeadlineExceeded) {
			// Open streams never finish on their own.
			serverErr = a.server.Close()
		}

		persistErr := a.persister.Close(shutdownCtx)
		stats := a.hub.Stats()
		a.log.Info().
			Int("rooms", stats.Rooms).
			Int("active_rooms", stats.ActiveRooms).
			Int64("saved", stats.Persist.Saved).
			Int64("failed", stats.Persist.Failed).
			Int64("coalesced", stats.Persist.Coalesced).
			Msg("persister drained")

		return errors.Join(serverErr, persistErr)
	})

	err := g.Wait()
	a.cleanup()
	return err
}

// cleanup closes the store.
func (a *App) cleanup() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
