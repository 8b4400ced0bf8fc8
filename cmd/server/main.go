package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"workledger/internal/application/dispatcher"
	"workledger/internal/application/lifecycle"
	"workledger/internal/application/reconciler"
	"workledger/internal/config"
	"workledger/internal/infrastructure/persistence/repository"
	"workledger/internal/infrastructure/persistence/sqlite"
	httpapi "workledger/internal/interfaces/http"
	"workledger/internal/worker"
	"workledger/pkg/database"
	"workledger/pkg/utils"
)

func main() {
	// Load .env if present; real environment wins.
	gotenv.Load()

	cfg, err := config.Load(configPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting work ledger service",
		zap.String("version", "1.0.0"),
		zap.Int("port", cfg.Server.Port))

	db, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	migrator := database.NewMigrator(db, logger)
	if err := migrator.RunMigrations(cfg.Database.MigrationsDir); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	// Repositories and transaction manager.
	entryRepo := repository.NewWorkEntryRepository(db.DB, logger)
	purchaseRepo := repository.NewPurchaseEntryRepository(db.DB, logger)
	userRepo := repository.NewUserRepository(db.DB, logger)
	settingsRepo := repository.NewSettingsRepository(db.DB, logger)
	txManager := sqlite.NewDB(db.DB, logger)

	// Change feed and reconciler sessions.
	feed := dispatcher.New(dispatcher.WithLogger(utils.NewKVLogger(logger)))
	registry := reconciler.NewRegistry(feed)

	// Lifecycle engine and bulk coordinator.
	engine := lifecycle.NewEngine(
		entryRepo,
		purchaseRepo,
		settingsRepo,
		txManager,
		feed,
		logger,
		lifecycle.WithMutationTimeout(cfg.Workflow.MutationTimeout),
	)
	coordinator := lifecycle.NewCoordinator(engine, logger)

	// Background workers.
	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	workers := worker.NewManager(logger)
	workers.Register(worker.NewSessionJanitor(registry, cfg.Workflow.SweepInterval, cfg.Workflow.SessionTTL, logger))
	if err := workers.StartAll(rootCtx); err != nil {
		logger.Fatal("Failed to start workers", zap.Error(err))
	}

	server := httpapi.NewServer(
		httpapi.ServerConfig{
			Host:         cfg.Server.Host,
			Port:         cfg.Server.Port,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
		engine,
		coordinator,
		registry,
		feed,
		userRepo,
		settingsRepo,
		logger,
	)

	serverCtx, serverCancel := context.WithCancel(rootCtx)
	defer serverCancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(serverCtx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		logger.Info("Shutdown signal received")
	case err := <-errCh:
		if err != nil {
			logger.Error("HTTP server failed", zap.Error(err))
		}
	}

	serverCancel()
	workers.StopAll()
	if err := feed.Close(); err != nil {
		logger.Warn("Feed dispatcher close", zap.Error(err))
	}

	logger.Info("Server exited successfully")
}

func configPath() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return "configs/config.yaml"
}
