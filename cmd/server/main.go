package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	httpadapter "voterfield/internal/adapters/http"
	"voterfield/internal/adapters/objectstore"
	pg "voterfield/internal/adapters/postgres"
	"voterfield/internal/config"
	"voterfield/internal/logging"
	"voterfield/internal/services/audit"
	"voterfield/internal/services/identity"
	"voterfield/internal/services/imports"
	"voterfield/internal/services/interactions"
	"voterfield/internal/services/lists"
	"voterfield/internal/services/metrics"
	"voterfield/internal/services/orgs"
	"voterfield/internal/services/users"
	"voterfield/internal/services/voters"
	"voterfield/internal/workers/importrunner"
)

const shutdownTimeout = 15 * time.Second

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
		logger.Fatal("server stopped", zap.Error(err))
	}
	logger.Info("server stopped")
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	db, err := pg.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("db connect: %w", err)
	}
	defer db.Close()

	if cfg.MigrateOnStart {
		applied, err := db.Migrate(ctx)
		if err != nil {
			return err
		}
		logger.Info("migrations applied", zap.Int64s("versions", applied))
	}

	files, err := objectstore.New(ctx, cfg.ObjectStore)
	if err != nil {
		return fmt.Errorf("object store: %w", err)
	}
	if err := files.EnsureBucket(ctx); err != nil {
		return err
	}
	if !files.Enabled() {
		logger.Warn("object store not configured, file uploads are disabled")
	}

	if _, err := httpadapter.LoadSpec(ctx); err != nil {
		return err
	}

	trail := audit.New(db, logger)
	importSvc := imports.New(db, db, db, files, trail, logger.Named("imports"), imports.Options{MaxRecords: cfg.ImportMaxRecords})
	srv := httpadapter.New(httpadapter.Deps{
		Identity:      identity.New(db, db, trail, cfg.JWTSecret, cfg.TokenTTL),
		Users:         users.New(db, db, trail),
		Orgs:          orgs.New(db, trail),
		Voters:        voters.New(db, db, trail),
		Lists:         lists.New(db, db, db, trail),
		Interactions:  interactions.New(db, trail),
		Imports:       importSvc,
		Metrics:       metrics.New(db),
		Queue:         db,
		Processor:     importSvc,
		Checks:        []httpadapter.Check{{Name: "database", Pinger: db}, {Name: "object_store", Pinger: files}},
		InternalToken: cfg.InternalAdminToken,
		CORSOrigins:   cfg.CORSOrigins,
		Log:           logger,
	})

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", cfg.ListenAddr), zap.String("env", cfg.Env))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info("shutting down")
		return httpServer.Shutdown(shutdownCtx)
	})
	if cfg.ImportWorkers > 0 {
		g.Go(func() error {
			logger.Info("import workers started", zap.Int("workers", cfg.ImportWorkers))
			importrunner.Run(gctx, db, importSvc, cfg.ImportWorkers, cfg.JobPollInterval, logger.Named("importrunner"))
			return nil
		})
		g.Go(func() error {
			importrunner.Reap(gctx, importSvc, cfg.ReapInterval(), cfg.JobMaxRuntime, logger.Named("reaper"))
			return nil
		})
	}
	return g.Wait()
}
