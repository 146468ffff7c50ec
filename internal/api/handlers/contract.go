/**
 * @description
 * Contract API Handlers.
 * Deployment phase 1 trigger and owned-contract listing.
 *
 * @dependencies
 * - github.com/gofiber/fiber/v2
 * - backend/internal/services: deployment orchestrator
 */

package handlers

import (
	"context"
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v2"
	"github.com/polydocs/backend/internal/api/middleware"
	"github.com/polydocs/backend/internal/logger"
	"github.com/polydocs/backend/internal/models"
	"github.com/polydocs/backend/internal/services"
)

// ContractLister is the slice of the registry the listing endpoint reads.
type ContractLister interface {
	ContractsByOwner(ctx context.Context, owner string) ([]models.Contract, error)
}

type ContractHandler struct {
	Deployer *services.Deployer
	Store    ContractLister
}

func NewContractHandler(deployer *services.Deployer, store ContractLister) *ContractHandler {
	return &ContractHandler{Deployer: deployer, Store: store}
}

// MakeNFTContract triggers deployment phase 1 and returns once phase 2 is
// scheduled; the caller does not wait for on-chain confirmation.
// POST /make-nft-contract
func (h *ContractHandler) MakeNFTContract(c *fiber.Ctx) error {
	accounts, err := middleware.AuthAccounts(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	var req services.DeployRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "No body provided"})
	}
	if !common.IsHexAddress(req.Address) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid address"})
	}
	if req.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid name"})
	}
	if req.Symbol == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid symbol"})
	}

	result, err := h.Deployer.Deploy(c.UserContext(), accounts, req)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrUnauthorizedOwner):
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
		case errors.Is(err, services.ErrUnknownChain):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid chainId"})
		default:
			logger.Error("MakeNFTContract: deployment failed: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Deployment failed"})
		}
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message":         "I got this party started",
		"chainId":         result.ChainID,
		"contractAddress": result.ContractAddress,
	})
}

// GetContracts lists the contracts owned by one of the caller's accounts.
// GET /contracts?account=<id>
func (h *ContractHandler) GetContracts(c *fiber.Ctx) error {
	user, err := middleware.AuthUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}
	accounts, err := middleware.AuthAccounts(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	accountID := strings.ToLower(c.Query("account"))
	if accountID == "" && len(user.Accounts) > 0 {
		accountID = user.Accounts[0]
	}
	if accountID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "No account id"})
	}
	if _, ok := accounts[accountID]; !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "No account found"})
	}

	contracts, err := h.Store.ContractsByOwner(c.UserContext(), accountID)
	if err != nil {
		logger.Error("GetContracts: registry query failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Registry error"})
	}

	output := make([]fiber.Map, 0, len(contracts))
	for _, contract := range contracts {
		output = append(output, fiber.Map{
			"id":          contract.ID,
			"chainId":     contract.ChainID(),
			"address":     contract.Address(),
			"name":        contract.Name,
			"description": contract.Description,
			"image":       contract.Image,
		})
	}
	return c.Status(fiber.StatusOK).JSON(output)
}
