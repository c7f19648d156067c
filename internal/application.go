package application

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/rocketscienceinc/tictactoe-solo/internal/config"
	"github.com/rocketscienceinc/tictactoe-solo/internal/engine"
	"github.com/rocketscienceinc/tictactoe-solo/internal/repository"
	"github.com/rocketscienceinc/tictactoe-solo/internal/repository/storage"
	"github.com/rocketscienceinc/tictactoe-solo/internal/usecase"
	"github.com/rocketscienceinc/tictactoe-solo/transport/rest"
)

// RunApp - runs the application until SIGINT or SIGTERM.
func RunApp(logger *slog.Logger, conf *config.Config) error {
	log := logger.With("component", "app")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	matchRepo, closeRepo, err := newMatchRepository(ctx, conf)
	if err != nil {
		return err
	}

	defer func() {
		if err = closeRepo(); err != nil {
			log.Error("could not close storage", "error", err)
		}
	}()

	selector := engine.NewSeededSelector(conf.Computer.Seed)
	matchManager := usecase.NewMatchManager(logger, matchRepo, selector, conf.Computer.ThinkDelay)

	router := rest.NewRouter(logger, matchManager)

	errg, ctx := errgroup.WithContext(ctx)
	errg.Go(func() error {
		log.Info("Starting HTTP server", "port", conf.HTTPPort, "storage", conf.Storage)
		if httpErr := rest.Start(ctx, conf.HTTPPort, router); httpErr != nil && ctx.Err() == nil {
			return httpErr
		}
		return nil
	})

	// pending computer turns must not outlive the storage they write to
	errg.Go(func() error {
		<-ctx.Done()
		matchManager.Close()
		return nil
	})

	if err = errg.Wait(); err != nil {
		return fmt.Errorf("HTTP server error: %w", err)
	}

	log.Info("Application context canceled, shutting down")

	return nil
}

// newMatchRepository - picks the configured storage for matches.
func newMatchRepository(ctx context.Context, conf *config.Config) (repository.MatchRepository, func() error, error) {
	switch conf.Storage {
	case config.StorageRedis:
		client, err := storage.New(ctx, conf.Redis.GetRedisAddr())
		if err != nil {
			return nil, nil, fmt.Errorf("could not connect to redis storage: %w", err)
		}

		return repository.NewMatchRepository(client, conf.SessionTTL), client.Close, nil
	case config.StorageMemory:
		return repository.NewMemoryMatchRepository(), func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("%w: %q", config.ErrUnknownStorage, conf.Storage)
	}
}
