/**
 * @description
 * Document signing handler.
 * Verifies an off-chain terms signature and forwards it on-chain via the
 * metasigner's acceptTermsFor call, so the end user pays no gas.
 *
 * @dependencies
 * - github.com/gofiber/fiber/v2
 * - github.com/ethereum/go-ethereum
 * - backend/internal/services
 * - backend/internal/termsable
 */

package handlers

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gofiber/fiber/v2"
	"github.com/polydocs/backend/internal/logger"
	"github.com/polydocs/backend/internal/services"
	"github.com/polydocs/backend/internal/termsable"
)

type SignHandler struct {
	Chains *services.ChainResolver
}

func NewSignHandler(chains *services.ChainResolver) *SignHandler {
	return &SignHandler{Chains: chains}
}

// SignRequest is the body of POST /sign.
type SignRequest struct {
	Address   string `json:"address"`
	Signature string `json:"signature"`
	Message   string `json:"message"`
}

// SignDocument accepts a signed terms message and submits it on-chain.
// POST /sign
func (h *SignHandler) SignDocument(c *fiber.Ctx) error {
	var req SignRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "No body provided"})
	}
	if req.Message == "" || req.Signature == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Missing signature or message"})
	}

	if _, err := services.RecoverSigner(req.Message, req.Signature); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid signature"})
	}

	chainID, contractAddress, err := parseTermsURI(req.Message)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	session, err := h.Chains.Resolve(c.UserContext(), chainID)
	if err != nil {
		logger.Error("SignDocument: chain resolution failed: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid chainId"})
	}
	defer session.Close()

	signature, _ := hexutil.Decode(req.Signature) // already validated by RecoverSigner

	contract := termsable.Bind(common.HexToAddress(contractAddress), session.Client)
	tx, err := contract.AcceptTermsFor(session.TxOpts(), common.HexToAddress(req.Address), req.Message, signature)
	if err != nil {
		logger.Error("SignDocument: acceptTermsFor failed on %s: %v", contractAddress, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not sign document on contract " + contractAddress,
		})
	}

	logger.Info("✍️  Forwarded terms acceptance for %s on contract %s, tx %s", req.Address, contractAddress, tx.Hash().Hex())
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"message": "signed", "tx": tx.Hash().Hex()})
}

// parseTermsURI extracts the chain id and contract address from the signed
// message. The message embeds a terms URI after its first ": ", whose fragment
// is "type::chainId::contractAddress::blockNumber".
func parseTermsURI(message string) (chainID, contractAddress string, err error) {
	idx := strings.Index(message, ": ")
	if idx < 0 {
		return "", "", fmt.Errorf("message does not contain a terms URI")
	}
	uri := message[idx:]

	hashIdx := strings.Index(uri, "#")
	if hashIdx < 0 {
		return "", "", fmt.Errorf("terms URI has no fragment")
	}

	parts := strings.Split(uri[hashIdx+1:], "::")
	if len(parts) < 4 {
		return "", "", fmt.Errorf("malformed terms fragment")
	}
	return parts[1], parts[2], nil
}
