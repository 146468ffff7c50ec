/**
 * @description
 * API Route definitions.
 * Wires services and handlers and assigns them to routes.
 *
 * @dependencies
 * - github.com/gofiber/fiber/v2
 * - backend/internal/api/handlers
 * - backend/internal/api/middleware
 * - backend/internal/services
 * - backend/internal/registry
 * - backend/internal/queue
 */

package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/polydocs/backend/internal/api/handlers"
	"github.com/polydocs/backend/internal/api/middleware"
	"github.com/polydocs/backend/internal/config"
	"github.com/polydocs/backend/internal/queue"
	"github.com/polydocs/backend/internal/registry"
	"github.com/polydocs/backend/internal/services"
	"github.com/polydocs/backend/internal/termsable"
	"github.com/redis/go-redis/v9"
)

// SetupRoutes configures all API routes
func SetupRoutes(app *fiber.App, reg *registry.Registry, rdb *redis.Client, cfg *config.Config) error {
	// 1. Initialize Services
	authenticator := services.NewSignatureAuthenticator()
	chains := services.NewChainResolver(cfg)
	dispatcher := queue.NewDispatcher(rdb, cfg.Deploy.QueueKey, cfg.Deploy.StatusChannel)

	factory, err := termsable.NewFactory(cfg.Deploy.ArtifactPath)
	if err != nil {
		return err
	}

	deployer := services.NewDeployer(chains, factory, reg, dispatcher, cfg.Deploy.ConfirmTimeout)
	ucan := services.NewUCANService(cfg.Storage)

	// 2. Initialize Middleware
	gate := middleware.NewGate(authenticator, reg)

	// 3. Initialize Handlers
	signHandler := handlers.NewSignHandler(chains)
	contractHandler := handlers.NewContractHandler(deployer, reg)
	tokenHandler := handlers.NewTokenHandler(ucan)
	streamHandler := handlers.NewStreamHandler(dispatcher)

	// 4. Define Routes
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Public
	app.Post("/sign", signHandler.SignDocument)

	// Protected
	app.Post("/make-nft-contract", gate.Protected(), contractHandler.MakeNFTContract)
	app.Get("/contracts", gate.Protected(), contractHandler.GetContracts)
	app.Get("/ucan-token", gate.Protected(), tokenHandler.GetUCANToken)
	app.Get("/deployments/stream", gate.Protected(), streamHandler.StreamDeployments)

	return nil
}
