/**
 * @description
 * Worker Service Entry Point.
 * Runs deployment phase 2: consumes deploy events from the Redis queue, waits
 * for each contract's on-chain confirmation, and configures its metadata.
 *
 * @dependencies
 * - backend/internal/config
 * - backend/internal/db
 * - backend/internal/queue
 * - backend/internal/services
 *
 * @notes
 * - Failures here are not surfaced to any caller; they are logged and a
 *   best-effort status event is published. There is no retry queue.
 */

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/polydocs/backend/internal/config"
	"github.com/polydocs/backend/internal/db"
	"github.com/polydocs/backend/internal/logger"
	"github.com/polydocs/backend/internal/queue"
	"github.com/polydocs/backend/internal/registry"
	"github.com/polydocs/backend/internal/services"
	"github.com/polydocs/backend/internal/termsable"
)

func main() {
	logger.Info("🔥 Starting Polydocs Worker...")

	// 1. Load Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config: %v", err)
	}

	// 2. Connect DBs
	pgDB, err := db.ConnectPostgres(cfg)
	if err != nil {
		logger.Fatal("Postgres connection failed: %v", err)
	}

	redisClient, err := db.ConnectRedis(cfg)
	if err != nil {
		logger.Fatal("Redis connection failed: %v", err)
	}

	// 3. Initialize Services
	reg := registry.New(pgDB)
	chains := services.NewChainResolver(cfg)
	dispatcher := queue.NewDispatcher(redisClient, cfg.Deploy.QueueKey, cfg.Deploy.StatusChannel)

	factory, err := termsable.NewFactory(cfg.Deploy.ArtifactPath)
	if err != nil {
		logger.Fatal("Failed to load contract artifact: %v", err)
	}

	deployer := services.NewDeployer(chains, factory, reg, dispatcher, cfg.Deploy.ConfirmTimeout)

	// 4. Context with Cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 5. Consume Loop
	go func() {
		err := dispatcher.Consume(ctx, func(ctx context.Context, event queue.DeployEvent) {
			logger.Info("🔧 Configuring contract %s on chain %s (event %s)", event.ContractAddress, event.ChainID, event.ID)
			// Configure logs and publishes status on failure; nothing to do here.
			_ = deployer.Configure(ctx, event)
		})
		if err != nil && ctx.Err() == nil {
			logger.Error("❌ Deploy event consumer stopped: %v", err)
		}
	}()

	// 6. Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down worker...")
	cancel()

	time.Sleep(1 * time.Second) // Give in-flight handling time to observe cancellation
	logger.Info("Worker exited.")
}
