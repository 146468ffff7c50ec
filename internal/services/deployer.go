/**
 * @description
 * Deployment Orchestrator.
 * Phase 1 (request-bound): authorize the owner, broadcast the contract-creation
 * transaction, best-effort record the registry row, enqueue phase 2, return.
 * Phase 2 (worker-bound): wait for deployment confirmation, then configure
 * renderer/template and content URI concurrently and wait for both to mine.
 *
 * @dependencies
 * - github.com/ethereum/go-ethereum
 * - backend/internal/termsable
 * - backend/internal/queue
 *
 * @notes
 * - The registry insert in phase 1 is intentionally fire-and-forget: a failure
 *   leaves an on-chain contract with no registry record.
 * - Phase 2 has no failure channel back to any caller. It publishes best-effort
 *   status events and logs; there is no retry queue or dead-letter handling.
 */

package services

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
	"github.com/polydocs/backend/internal/logger"
	"github.com/polydocs/backend/internal/models"
	"github.com/polydocs/backend/internal/queue"
	"github.com/polydocs/backend/internal/termsable"
)

// Fallback content identifiers applied when a deploy request omits them.
const (
	DefaultRenderer = "bafybeig44fabnqp66umyilergxl6bzwno3ntill3yo2gtzzmyhochbchhy"
	DefaultTemplate = "bafybeiavljiisrizkro3ob5rhdludulsiqwkjp43lanlekth33sqhikfry/template.md"
)

// Gas settings for the creation transaction.
var (
	deployFeeCap   = big.NewInt(50_000_000_000) // 50 gwei
	deployGasLimit = uint64(6_500_000)
)

// ErrUnauthorizedOwner means the requested owner is not one of the caller's accounts.
var ErrUnauthorizedOwner = fmt.Errorf("owner address not held by caller")

// ContractStore is the slice of the registry the orchestrator writes to.
type ContractStore interface {
	InsertContract(ctx context.Context, contract *models.Contract) error
}

// ChainSource resolves chain ids to ready sessions.
type ChainSource interface {
	Resolve(ctx context.Context, chainID string) (*ChainSession, error)
}

// DeployRequest is the caller-supplied deployment payload.
type DeployRequest struct {
	Address           string `json:"address"`
	Name              string `json:"name"`
	Symbol            string `json:"symbol"`
	Renderer          string `json:"renderer"`
	Template          string `json:"template"`
	URI               string `json:"uri"`
	RoyaltyRecipient  string `json:"royaltyRecipient"`
	RoyaltyPercentage string `json:"royaltyPercentage"`
	ChainID           string `json:"chainId"`
}

// DeployResult is returned to the caller once phase 2 is scheduled.
type DeployResult struct {
	ChainID         string `json:"chainId"`
	ContractAddress string `json:"contractAddress"`
}

// Deployer orchestrates the two-phase contract deployment.
type Deployer struct {
	Chains         ChainSource
	Factory        *termsable.Factory
	Store          ContractStore
	Dispatcher     *queue.Dispatcher
	ConfirmTimeout time.Duration
}

// NewDeployer wires the orchestrator.
func NewDeployer(chains ChainSource, factory *termsable.Factory, store ContractStore, dispatcher *queue.Dispatcher, confirmTimeout time.Duration) *Deployer {
	if confirmTimeout <= 0 {
		confirmTimeout = 5 * time.Minute
	}
	return &Deployer{
		Chains:         chains,
		Factory:        factory,
		Store:          store,
		Dispatcher:     dispatcher,
		ConfirmTimeout: confirmTimeout,
	}
}

// Deploy runs phase 1 inside the authenticated request. It returns as soon as
// the creation transaction is broadcast and phase 2 is enqueued; on-chain
// confirmation is not awaited.
func (d *Deployer) Deploy(ctx context.Context, accounts map[string]models.Account, req DeployRequest) (*DeployResult, error) {
	owner := strings.ToLower(req.Address)
	account, ok := accounts[owner]
	if !ok {
		return nil, ErrUnauthorizedOwner
	}

	session, err := d.Chains.Resolve(ctx, req.ChainID)
	if err != nil {
		return nil, err
	}
	defer session.Close()

	opts := session.TxOpts()
	opts.GasFeeCap = deployFeeCap
	opts.GasTipCap = deployFeeCap
	opts.GasLimit = deployGasLimit

	address, tx, _, err := d.Factory.Deploy(opts, session.Client, common.HexToAddress(req.Address), req.Name, req.Symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to deploy contract on chain %s: %w", session.ID, err)
	}
	logger.Info("📜 Deploying %s (%s) at %s on chain %s, tx %s", req.Name, req.Symbol, address.Hex(), session.ID, tx.Hash().Hex())

	// Best-effort registry record. A failure here is logged and swallowed.
	contractID := models.ContractID(session.ID, address.Hex())
	go func() {
		insertCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		row := &models.Contract{
			ID:     contractID,
			Name:   req.Name,
			Symbol: req.Symbol,
			Owner:  account.ID,
		}
		if err := d.Store.InsertContract(insertCtx, row); err != nil {
			logger.Error("Failed to record contract %s: %v", contractID, err)
		}
	}()

	event := queue.DeployEvent{
		ID:                uuid.NewString(),
		Address:           req.Address,
		Name:              req.Name,
		Symbol:            req.Symbol,
		Renderer:          req.Renderer,
		Template:          req.Template,
		URI:               req.URI,
		RoyaltyRecipient:  req.RoyaltyRecipient,
		RoyaltyPercentage: req.RoyaltyPercentage,
		ChainID:           session.ID,
		ContractAddress:   address.Hex(),
	}
	if err := d.Dispatcher.Dispatch(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to schedule contract configuration: %w", err)
	}

	d.Dispatcher.PublishStatus(ctx, queue.StatusEvent{
		ID:              event.ID,
		ChainID:         session.ID,
		ContractAddress: address.Hex(),
		Status:          queue.StatusDeploying,
	})

	return &DeployResult{ChainID: session.ID, ContractAddress: address.Hex()}, nil
}

// Configure runs phase 2 in the worker. It re-derives everything from the
// event, waits for the contract to be mined, then submits the renderer/template
// and URI transactions concurrently and waits for both confirmations.
func (d *Deployer) Configure(ctx context.Context, event queue.DeployEvent) error {
	event = applyDefaults(event)

	err := d.configure(ctx, event)
	if err != nil {
		logger.Error("Configuration of contract %s on chain %s failed (event %s): %v", event.ContractAddress, event.ChainID, event.ID, err)
		d.Dispatcher.PublishStatus(ctx, queue.StatusEvent{
			ID:              event.ID,
			ChainID:         event.ChainID,
			ContractAddress: event.ContractAddress,
			Status:          queue.StatusFailed,
			Detail:          err.Error(),
		})
		return err
	}

	logger.Info("✅ Contract %s on chain %s configured (event %s)", event.ContractAddress, event.ChainID, event.ID)
	d.Dispatcher.PublishStatus(ctx, queue.StatusEvent{
		ID:              event.ID,
		ChainID:         event.ChainID,
		ContractAddress: event.ContractAddress,
		Status:          queue.StatusConfigured,
	})
	return nil
}

func (d *Deployer) configure(ctx context.Context, event queue.DeployEvent) error {
	session, err := d.Chains.Resolve(ctx, event.ChainID)
	if err != nil {
		return err
	}
	defer session.Close()

	ctx, cancel := context.WithTimeout(ctx, d.ConfirmTimeout)
	defer cancel()

	address := common.HexToAddress(event.ContractAddress)
	if err := termsable.WaitDeployed(ctx, session.Client, address); err != nil {
		return err
	}

	contract := termsable.Bind(address, session.Client)

	// Both configuration transactions go out concurrently, so the nonces must
	// be assigned up front instead of racing PendingNonceAt.
	nonce, err := session.Client.PendingNonceAt(ctx, session.TxOpts().From)
	if err != nil {
		return fmt.Errorf("failed to fetch nonce: %w", err)
	}

	polydocsOpts := session.TxOpts()
	polydocsOpts.Nonce = new(big.Int).SetUint64(nonce)
	polydocsOpts.Context = ctx

	uriOpts := session.TxOpts()
	uriOpts.Nonce = new(big.Int).SetUint64(nonce + 1)
	uriOpts.Context = ctx

	var (
		wg                  sync.WaitGroup
		polydocsTx, uriTx   *types.Transaction
		polydocsErr, uriErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		polydocsTx, polydocsErr = contract.SetPolydocs(polydocsOpts, event.Renderer, event.Template, nil)
	}()
	go func() {
		defer wg.Done()
		uriTx, uriErr = contract.SetURI(uriOpts, event.URI)
	}()
	wg.Wait()

	if polydocsErr != nil {
		return fmt.Errorf("failed to set renderer/template: %w", polydocsErr)
	}
	if uriErr != nil {
		return fmt.Errorf("failed to set content URI: %w", uriErr)
	}

	var confirmErrs [2]error
	wg.Add(2)
	go func() {
		defer wg.Done()
		confirmErrs[0] = termsable.WaitMined(ctx, session.Client, polydocsTx)
	}()
	go func() {
		defer wg.Done()
		confirmErrs[1] = termsable.WaitMined(ctx, session.Client, uriTx)
	}()
	wg.Wait()

	if confirmErrs[0] != nil {
		return fmt.Errorf("renderer/template transaction not confirmed: %w", confirmErrs[0])
	}
	if confirmErrs[1] != nil {
		return fmt.Errorf("content URI transaction not confirmed: %w", confirmErrs[1])
	}
	return nil
}

// applyDefaults fills in the fallback renderer and template.
func applyDefaults(event queue.DeployEvent) queue.DeployEvent {
	if event.Renderer == "" {
		event.Renderer = DefaultRenderer
	}
	if event.Template == "" {
		event.Template = DefaultTemplate
	}
	return event
}
