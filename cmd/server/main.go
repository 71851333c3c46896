package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mohitc/banking-ledger/internal/config"
	"github.com/mohitc/banking-ledger/internal/events"
	"github.com/mohitc/banking-ledger/internal/events/kafka"
	"github.com/mohitc/banking-ledger/internal/interfaces"
	"github.com/mohitc/banking-ledger/internal/models"
	"github.com/mohitc/banking-ledger/internal/server"
	"github.com/mohitc/banking-ledger/internal/storage/memory"
	"github.com/mohitc/banking-ledger/internal/storage/postgres"
	"github.com/mohitc/banking-ledger/internal/transfer"
)

func main() {
	cfg := config.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	var (
		store     interfaces.TransferStore
		directory interfaces.AccountDirectory
		closeDB   func()
	)
	if cfg.DatabaseURL != "" {
		db, err := postgres.Open(cfg.DatabaseURL)
		if err != nil {
			logger.Error("database connection failed", "error", err)
			os.Exit(1)
		}
		store = postgres.NewStore(db)
		directory = postgres.NewDirectory(db)
		closeDB = func() { db.Close() }
	} else {
		memStore := memory.NewStore()
		memDir := memory.NewDirectory()
		if cfg.Env == "development" {
			seedDemoAccounts(memDir, logger)
		}
		store = memStore
		directory = memDir
		closeDB = func() {}
		logger.Warn("DATABASE_URL not set, using in-memory store")
	}

	var publisher interfaces.EventPublisher = events.NopPublisher{}
	var closePublisher func() error
	if len(cfg.KafkaBrokers) > 0 {
		kp := kafka.NewPublisher(cfg.KafkaBrokers)
		publisher = kp
		closePublisher = kp.Close
		logger.Info("kafka publisher enabled", "brokers", cfg.KafkaBrokers)
	}

	coordinator := transfer.NewCoordinator(store, directory, publisher, logger)
	srv := server.New(coordinator, logger)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("server starting", "env", cfg.Env, "port", cfg.Port)
		if err := srv.Listen(":" + cfg.Port); err != nil {
			logger.Error("server stopped", "error", err)
		}
	}()

	<-stop
	logger.Info("shutting down")

	if err := srv.Shutdown(); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}
	if closePublisher != nil {
		if err := closePublisher(); err != nil {
			logger.Error("kafka writer close failed", "error", err)
		}
	}
	closeDB()
	logger.Info("server exited")
}

// seedDemoAccounts registers two accounts so local transfers can be
// exercised without the account-management service running.
func seedDemoAccounts(dir *memory.Directory, logger *slog.Logger) {
	accounts := []models.Account{
		{ID: "acc-demo-1", OwnerID: "user-demo", Currency: "INR", Status: models.AccountActive},
		{ID: "acc-demo-2", OwnerID: "user-demo", Currency: "INR", Status: models.AccountActive},
	}
	dir.Seed(accounts...)
	for _, account := range accounts {
		logger.Info("seeded demo account", "account_id", account.ID, "owner", account.OwnerID)
	}
}
