package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/mealkart/cartsync-backend/api/controllers"
	"github.com/mealkart/cartsync-backend/api/routes"
	"github.com/mealkart/cartsync-backend/internal/cartsync"
	"github.com/mealkart/cartsync-backend/internal/catalog"
	"github.com/mealkart/cartsync-backend/internal/engine"
	"github.com/mealkart/cartsync-backend/internal/gueststore"
	"github.com/mealkart/cartsync-backend/internal/mutation"
	"github.com/mealkart/cartsync-backend/internal/remotecart"
	"github.com/mealkart/cartsync-backend/pkg/config"
	"github.com/mealkart/cartsync-backend/pkg/db"
	"github.com/mealkart/cartsync-backend/pkg/logger"
	"github.com/mealkart/cartsync-backend/pkg/metrics"
	"github.com/mealkart/cartsync-backend/pkg/redis"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	level, err := zerolog.ParseLevel(strings.ToLower(cfg.App.LogLevel))
	if err != nil {
		level = zerolog.InfoLevel
	}
	logg := logger.New(logger.Options{
		ServiceName: "cartsync-api",
		Level:       level,
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	health := map[string]controllers.Pinger{}

	store, cleanup, err := buildGuestStore(ctx, cfg, logg, health)
	if err != nil {
		return err
	}
	defer cleanup()

	dishes, err := catalog.NewClient(
		cfg.Catalog.BaseURL,
		cfg.Catalog.ImageOrigin,
		logg,
		catalog.WithTimeout(cfg.Catalog.Timeout),
	)
	if err != nil {
		return err
	}

	remote, err := remotecart.NewClient(
		cfg.RemoteCart.BaseURL,
		remotecart.WithTimeout(cfg.RemoteCart.Timeout),
	)
	if err != nil {
		return err
	}

	promRegistry := prometheus.NewRegistry()
	cartMetrics := metrics.NewCartMetrics(promRegistry)

	registry, err := engine.NewRegistry(ctx, store, dishes, remote, logg, cartMetrics, mutation.Options{
		DebounceWindow: cfg.Mutation.DebounceWindow,
		MinQuantity:    cfg.Mutation.MinQuantity,
		MaxQuantity:    cfg.Mutation.MaxQuantity,
	})
	if err != nil {
		return err
	}

	syncer, err := cartsync.NewSyncer(remote, logg, cartMetrics, cfg.Sync.MaxConcurrent)
	if err != nil {
		return err
	}

	router := routes.New(routes.Deps{
		Config:   cfg,
		Logger:   logg,
		Registry: registry,
		Syncer:   syncer,
		Remote:   remote,
		Health:   health,
		Gatherer: promRegistry,
	})

	server := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logg.Info(logg.WithField(ctx, "addr", server.Addr), "server.listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}

	logg.Info(context.Background(), "server.stopped")
	return nil
}

// buildGuestStore selects the durable guest-cart backend. The gorm backend is
// the default; redis and the file store cover deployments without a database.
func buildGuestStore(
	ctx context.Context,
	cfg *config.Config,
	logg *logger.Logger,
	health map[string]controllers.Pinger,
) (gueststore.Store, func(), error) {
	switch strings.ToLower(cfg.GuestStore.Backend) {
	case "gorm", "db", "":
		client, err := db.New(ctx, cfg.DB, logg)
		if err != nil {
			return nil, nil, err
		}
		store, err := gueststore.NewGormStore(client.DB(), logg, cfg.GuestStore.CacheTTL)
		if err != nil {
			client.Close()
			return nil, nil, err
		}
		health["db"] = client
		return store, func() { client.Close() }, nil

	case "redis":
		client, err := redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			return nil, nil, err
		}
		kv, err := gueststore.NewRedisKV(client)
		if err != nil {
			client.Close()
			return nil, nil, err
		}
		store, err := gueststore.NewJSONStore(kv, logg, cfg.GuestStore.CacheTTL)
		if err != nil {
			client.Close()
			return nil, nil, err
		}
		health["redis"] = client
		return store, func() { client.Close() }, nil

	case "file":
		kv, err := gueststore.NewFileKV(cfg.GuestStore.FilePath)
		if err != nil {
			return nil, nil, err
		}
		store, err := gueststore.NewJSONStore(kv, logg, cfg.GuestStore.CacheTTL)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil
	}

	return nil, nil, fmt.Errorf("unknown guest store backend %q", cfg.GuestStore.Backend)
}
