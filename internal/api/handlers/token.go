/**
 * @description
 * Storage delegation handler.
 * Issues short-lived UCAN tokens so authenticated callers can upload to the
 * third-party storage provider directly.
 *
 * @dependencies
 * - github.com/gofiber/fiber/v2
 * - backend/internal/services: UCAN issuance
 */

package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/polydocs/backend/internal/logger"
	"github.com/polydocs/backend/internal/services"
)

type TokenHandler struct {
	UCAN *services.UCANService
}

func NewTokenHandler(ucan *services.UCANService) *TokenHandler {
	return &TokenHandler{UCAN: ucan}
}

// GetUCANToken returns a delegation token for the caller.
// GET /ucan-token
func (h *TokenHandler) GetUCANToken(c *fiber.Ctx) error {
	token, did, err := h.UCAN.Token(c.UserContext())
	if err != nil {
		logger.Error("GetUCANToken: issuance failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to issue token"})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"token": token, "did": did})
}
