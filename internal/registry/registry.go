/**
 * @description
 * Ledger Registry.
 * Transactional table store for Users, Accounts, Contracts, and Templates with
 * idempotent schema bootstrap and conflict-retrying transactions.
 *
 * @dependencies
 * - gorm.io/gorm
 * - github.com/jackc/pgx/v5/pgconn: Postgres error-code inspection
 *
 * @notes
 * - Every operation runs inside a transaction and is retried up to retryLimit
 *   times on serialization failures / deadlocks before surfacing ErrConflict.
 * - Schema bootstrap is lazy and safe under concurrent cold starts: duplicate
 *   CREATE TABLE / CREATE INDEX races are not surfaced to callers.
 */

package registry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/polydocs/backend/internal/models"
	"gorm.io/gorm"
)

// retryLimit bounds silent transaction retries on write conflicts.
const retryLimit = 4

// ErrConflict is returned when a transaction still conflicts after retryLimit attempts.
var ErrConflict = errors.New("registry transaction conflict")

// Registry wraps the database with the ledger table semantics.
type Registry struct {
	db *gorm.DB

	mu          sync.Mutex
	schemaReady bool
}

// New creates a Registry on top of an open GORM connection.
func New(db *gorm.DB) *Registry {
	return &Registry{db: db}
}

// tables lists every model the registry manages. Indexes (primary key, owner)
// come from the model tags.
func tables() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Account{},
		&models.Contract{},
		&models.Template{},
	}
}

// EnsureSchema creates any missing tables and indexes. Idempotent: safe to call
// repeatedly and from concurrently cold-started instances. The ready flag is
// per-process only; a fresh instance re-runs the inspection.
func (r *Registry) EnsureSchema(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.schemaReady {
		return nil
	}

	migrator := r.db.WithContext(ctx).Migrator()
	for _, model := range tables() {
		if migrator.HasTable(model) {
			continue
		}
		if err := migrator.CreateTable(model); err != nil && !isDuplicateSchema(err) {
			return fmt.Errorf("failed to create table for %T: %w", model, err)
		}
	}

	r.schemaReady = true
	return nil
}

// withRetry runs fn in a transaction, retrying on optimistic-concurrency
// conflicts with jittered backoff.
func (r *Registry) withRetry(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if err := r.EnsureSchema(ctx); err != nil {
		return err
	}

	var err error
	for attempt := 1; attempt <= retryLimit; attempt++ {
		err = r.db.WithContext(ctx).Transaction(fn)
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return err
		}
		backoff := time.Duration(attempt*100+rand.Intn(100)) * time.Millisecond
		time.Sleep(backoff)
	}
	return fmt.Errorf("%w after %d attempts: %v", ErrConflict, retryLimit, err)
}

// GetUser returns the user for a wallet address, or nil if none exists.
func (r *Registry) GetUser(ctx context.Context, address string) (*models.User, error) {
	var user models.User
	err := r.withRetry(ctx, func(tx *gorm.DB) error {
		return tx.Where("id = ?", strings.ToLower(address)).First(&user).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetAccount returns the account with the given id, or nil if none exists.
func (r *Registry) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	var account models.Account
	err := r.withRetry(ctx, func(tx *gorm.DB) error {
		return tx.Where("id = ?", id).First(&account).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// GetContract returns the contract with the given composite id, or nil.
func (r *Registry) GetContract(ctx context.Context, id string) (*models.Contract, error) {
	var contract models.Contract
	err := r.withRetry(ctx, func(tx *gorm.DB) error {
		return tx.Where("id = ?", strings.ToLower(id)).First(&contract).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &contract, nil
}

// GetTemplate returns the template with the given id, or nil.
func (r *Registry) GetTemplate(ctx context.Context, id string) (*models.Template, error) {
	var template models.Template
	err := r.withRetry(ctx, func(tx *gorm.DB) error {
		return tx.Where("id = ?", id).First(&template).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &template, nil
}

// ProvisionUser creates the user row and its initial account in one
// transaction. A unique-violation means a concurrent first request won the
// race; that is success from the caller's point of view (it re-reads next).
func (r *Registry) ProvisionUser(ctx context.Context, address string) error {
	id := strings.ToLower(address)
	err := r.withRetry(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&models.User{ID: id, Accounts: []string{id}}).Error; err != nil {
			return err
		}
		return tx.Create(&models.Account{ID: id}).Error
	})
	if err != nil && isUniqueViolation(err) {
		return nil
	}
	return err
}

// InsertContract records a freshly broadcast contract.
func (r *Registry) InsertContract(ctx context.Context, contract *models.Contract) error {
	return r.withRetry(ctx, func(tx *gorm.DB) error {
		return tx.Create(contract).Error
	})
}

// InsertTemplate records a template for an account.
func (r *Registry) InsertTemplate(ctx context.Context, template *models.Template) error {
	return r.withRetry(ctx, func(tx *gorm.DB) error {
		return tx.Create(template).Error
	})
}

// ContractsByOwner returns the contracts owned by an account. Order is
// registry-defined and not guaranteed stable across calls.
func (r *Registry) ContractsByOwner(ctx context.Context, owner string) ([]models.Contract, error) {
	var contracts []models.Contract
	err := r.withRetry(ctx, func(tx *gorm.DB) error {
		return tx.Where("owner = ?", owner).Find(&contracts).Error
	})
	if err != nil {
		return nil, err
	}
	return contracts, nil
}

// TemplatesByOwner returns the templates owned by an account.
func (r *Registry) TemplatesByOwner(ctx context.Context, owner string) ([]models.Template, error) {
	var templates []models.Template
	err := r.withRetry(ctx, func(tx *gorm.DB) error {
		return tx.Where("owner = ?", owner).Find(&templates).Error
	})
	if err != nil {
		return nil, err
	}
	return templates, nil
}

// isRetryable reports whether the error is a serialization failure (40001) or
// deadlock (40P01) worth retrying.
func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}

// isDuplicateSchema reports whether the error is a duplicate schema / table /
// object race from a concurrent bootstrap.
func isDuplicateSchema(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "42P06" || pgErr.Code == "42P07" || pgErr.Code == "42710"
	}
	return false
}

// isUniqueViolation reports whether the error is a unique constraint violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
