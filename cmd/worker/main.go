// Command worker runs import workers and the stuck-job reaper without the
// HTTP API. It shares the Postgres queue with any number of API processes.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"voterfield/internal/adapters/objectstore"
	pg "voterfield/internal/adapters/postgres"
	"voterfield/internal/config"
	"voterfield/internal/logging"
	"voterfield/internal/services/audit"
	"voterfield/internal/services/imports"
	"voterfield/internal/workers/importrunner"
)

func main() {
	cfg, cfgErr := config.Load()
	logger, err := logging.New(cfg.Env)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	if cfgErr != nil {
		logger.Fatal("invalid configuration", zap.Error(cfgErr))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("worker stopped", zap.Error(err))
	}
	logger.Info("worker stopped")
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	workers := cfg.ImportWorkers
	if workers < 1 {
		workers = 1
	}

	db, err := pg.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("db connect: %w", err)
	}
	defer db.Close()

	files, err := objectstore.New(ctx, cfg.ObjectStore)
	if err != nil {
		return fmt.Errorf("object store: %w", err)
	}

	trail := audit.New(db, logger)
	importSvc := imports.New(db, db, db, files, trail, logger.Named("imports"), imports.Options{MaxRecords: cfg.ImportMaxRecords})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("import workers started", zap.Int("workers", workers))
		importrunner.Run(gctx, db, importSvc, workers, cfg.JobPollInterval, logger.Named("importrunner"))
		return nil
	})
	g.Go(func() error {
		importrunner.Reap(gctx, importSvc, cfg.ReapInterval(), cfg.JobMaxRuntime, logger.Named("reaper"))
		return nil
	})
	return g.Wait()
}
