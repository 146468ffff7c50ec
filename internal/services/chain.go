/**
 * @description
 * Chain Resolution Service.
 * Maps a chain id to a dialed RPC client and a keyed transactor for the
 * platform's metasigner on that network.
 *
 * @dependencies
 * - github.com/ethereum/go-ethereum
 * - backend/internal/config
 *
 * @notes
 * - Chain ids are accepted as decimal or 0x-prefixed hex and normalized to a
 *   decimal string before lookup. Unknown chains are a hard error.
 */

package services

import (
	"context"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/polydocs/backend/internal/config"
)

// ErrUnknownChain is returned for chain ids with no configured signer/endpoint.
var ErrUnknownChain = fmt.Errorf("unknown chain")

// ChainResolver resolves chain ids against the static chain configuration.
type ChainResolver struct {
	chains map[string]config.ChainConfig
}

// NewChainResolver creates a resolver over the configured chain map.
func NewChainResolver(cfg *config.Config) *ChainResolver {
	return &ChainResolver{chains: cfg.Chains}
}

// NormalizeChainID converts a decimal or 0x-prefixed hex chain id to its
// canonical decimal string form.
func NormalizeChainID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if strings.HasPrefix(id, "0x") || strings.HasPrefix(id, "0X") {
		n, err := strconv.ParseUint(id[2:], 16, 64)
		if err != nil {
			return "", fmt.Errorf("invalid hex chain id %q", id)
		}
		return strconv.FormatUint(n, 10), nil
	}
	if _, err := strconv.ParseUint(id, 10, 64); err != nil {
		return "", fmt.Errorf("invalid chain id %q", id)
	}
	return id, nil
}

// ChainBackend is the client surface a session exposes: enough to deploy,
// transact, and watch confirmations. *ethclient.Client satisfies it; tests can
// substitute a simulated chain.
type ChainBackend interface {
	bind.ContractBackend
	bind.DeployBackend
}

// ChainSession is a per-request handle on one network: a dialed client plus
// transaction options for the metasigner. Close when done.
type ChainSession struct {
	ID      string // normalized decimal chain id
	ChainID *big.Int
	Client  ChainBackend

	auth *bind.TransactOpts
}

// TxOpts returns a copy of the signer's transaction options so callers can set
// gas fields without racing each other.
func (s *ChainSession) TxOpts() *bind.TransactOpts {
	opts := *s.auth
	return &opts
}

// Close releases the underlying RPC connection, when the backend holds one.
func (s *ChainSession) Close() {
	if closer, ok := s.Client.(interface{ Close() }); ok {
		closer.Close()
	}
}

// Resolve looks up the chain configuration and returns a ready session.
func (r *ChainResolver) Resolve(ctx context.Context, chainID string) (*ChainSession, error) {
	normalized, err := NormalizeChainID(chainID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnknownChain, err)
	}

	chainCfg, ok := r.chains[normalized]
	if !ok {
		return nil, fmt.Errorf("%w: chain %s not found", ErrUnknownChain, normalized)
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(chainCfg.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid signing key for chain %s: %w", normalized, err)
	}

	id := new(big.Int)
	id.SetString(normalized, 10)

	auth, err := bind.NewKeyedTransactorWithChainID(key, id)
	if err != nil {
		return nil, fmt.Errorf("failed to build transactor for chain %s: %w", normalized, err)
	}
	auth.Context = ctx

	client, err := ethclient.DialContext(ctx, chainCfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial RPC for chain %s: %w", normalized, err)
	}

	return &ChainSession{
		ID:      normalized,
		ChainID: id,
		Client:  client,
		auth:    auth,
	}, nil
}
