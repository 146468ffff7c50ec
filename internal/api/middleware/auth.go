/**
 * @description
 * Authentication gate.
 * Turns a signed-message credential into an authorized (user, accounts)
 * context, auto-provisioning the user and its first account on first sight.
 *
 * @dependencies
 * - github.com/gofiber/fiber/v2: HTTP Context
 * - backend/internal/services: signature authentication
 *
 * @notes
 * - Two concurrent first-time requests from the same address may both attempt
 *   the provisioning insert; the registry resolves that to a single surviving
 *   row and the gate re-reads rather than failing.
 * - "No authorized accounts" is a distinct 401 from a bad credential.
 */

package middleware

import (
	"context"
	"errors"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/polydocs/backend/internal/logger"
	"github.com/polydocs/backend/internal/models"
	"github.com/polydocs/backend/internal/services"
)

const (
	localsUserKey     = "auth_user"
	localsAccountsKey = "auth_accounts"
)

// UserStore is the slice of the registry the gate needs.
type UserStore interface {
	GetUser(ctx context.Context, address string) (*models.User, error)
	GetAccount(ctx context.Context, id string) (*models.Account, error)
	ProvisionUser(ctx context.Context, address string) error
}

// Gate composes the signature authenticator with the user registry.
type Gate struct {
	Auth  *services.SignatureAuthenticator
	Store UserStore
}

// NewGate wires the gate.
func NewGate(auth *services.SignatureAuthenticator, store UserStore) *Gate {
	return &Gate{Auth: auth, Store: store}
}

// Protected guards routes requiring an authenticated caller with at least one
// authorized account.
func (g *Gate) Protected() fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, err := g.Auth.Authenticate(c.Get("Authorization"))
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
		}

		ctx := c.UserContext()

		user, err := g.Store.GetUser(ctx, claims.Address)
		if err != nil {
			logger.Error("Gate: failed to fetch user %s: %v", claims.Address, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Registry error"})
		}

		if user == nil {
			if err := g.Store.ProvisionUser(ctx, claims.Address); err != nil {
				logger.Error("Gate: failed to provision user %s: %v", claims.Address, err)
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Error creating user"})
			}
			user, err = g.Store.GetUser(ctx, claims.Address)
			if err != nil {
				logger.Error("Gate: failed to re-fetch user %s: %v", claims.Address, err)
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Registry error"})
			}
			if user == nil {
				// The insert reported success but the row is not visible.
				logger.Error("Gate: user %s missing after provisioning", claims.Address)
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Error creating user"})
			}
		}

		accounts := g.resolveAccounts(ctx, user.Accounts)
		if len(accounts) == 0 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "No authorized accounts"})
		}

		c.Locals(localsUserKey, user)
		c.Locals(localsAccountsKey, accounts)
		return c.Next()
	}
}

// resolveAccounts fetches each account id in parallel, discarding misses.
func (g *Gate) resolveAccounts(ctx context.Context, ids []string) map[string]models.Account {
	results := make([]*models.Account, len(ids))
	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			account, err := g.Store.GetAccount(ctx, id)
			if err != nil {
				logger.Error("Gate: failed to fetch account %s: %v", id, err)
				return
			}
			results[i] = account
		}(i, id)
	}
	wg.Wait()

	accounts := make(map[string]models.Account)
	for _, account := range results {
		if account != nil {
			accounts[account.ID] = *account
		}
	}
	return accounts
}

// AuthUser returns the authenticated user from context.
func AuthUser(c *fiber.Ctx) (*models.User, error) {
	user, ok := c.Locals(localsUserKey).(*models.User)
	if !ok || user == nil {
		return nil, errors.New("user not found in context")
	}
	return user, nil
}

// AuthAccounts returns the caller's authorized accounts from context.
func AuthAccounts(c *fiber.Ctx) (map[string]models.Account, error) {
	accounts, ok := c.Locals(localsAccountsKey).(map[string]models.Account)
	if !ok || len(accounts) == 0 {
		return nil, errors.New("accounts not found in context")
	}
	return accounts, nil
}

// SetAuthContext stashes an authenticated identity directly. Test hook for
// exercising protected handlers without a full credential round-trip.
func SetAuthContext(c *fiber.Ctx, user *models.User, accounts map[string]models.Account) {
	c.Locals(localsUserKey, user)
	c.Locals(localsAccountsKey, accounts)
}
