/**
 * @description
 * Client for the ERC721Termsable contract family.
 * The contract is treated as an opaque artifact: the ABI below matches the
 * compiled interface, and deployment bytecode is loaded from a hardhat
 * artifact JSON at startup.
 *
 * @dependencies
 * - github.com/ethereum/go-ethereum: abi/bind contract plumbing
 */

package termsable

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

const termsableABI = `[
  {"type":"constructor","stateMutability":"nonpayable","inputs":[
    {"name":"_newowner","type":"address"},
    {"name":"_name","type":"string"},
    {"name":"_symbol","type":"string"}]},
  {"type":"function","name":"acceptTermsFor","stateMutability":"nonpayable","inputs":[
    {"name":"_signer","type":"address"},
    {"name":"_newtermsUrl","type":"string"},
    {"name":"_signature","type":"bytes"}],"outputs":[]},
  {"type":"function","name":"setPolydocs","stateMutability":"nonpayable","inputs":[
    {"name":"_renderer","type":"string"},
    {"name":"_template","type":"string"},
    {"name":"_terms","type":"tuple[]","components":[
      {"name":"key","type":"string"},
      {"name":"value","type":"string"}]}],"outputs":[]},
  {"type":"function","name":"setURI","stateMutability":"nonpayable","inputs":[
    {"name":"_newURI","type":"string"}],"outputs":[]}
]`

// deployedPollInterval is how often WaitDeployed re-checks for contract code.
const deployedPollInterval = 2 * time.Second

var parsedABI abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(termsableABI))
	if err != nil {
		panic(fmt.Sprintf("termsable: invalid ABI: %v", err))
	}
	parsedABI = parsed
}

// Artifact is the subset of a hardhat build artifact the factory needs.
type Artifact struct {
	ContractName string          `json:"contractName"`
	ABI          json.RawMessage `json:"abi"`
	Bytecode     string          `json:"bytecode"`
}

// LoadArtifact reads a hardhat artifact JSON from disk.
func LoadArtifact(path string) (*Artifact, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read contract artifact: %w", err)
	}
	var artifact Artifact
	if err := json.Unmarshal(raw, &artifact); err != nil {
		return nil, fmt.Errorf("failed to parse contract artifact: %w", err)
	}
	if artifact.Bytecode == "" {
		return nil, fmt.Errorf("contract artifact %s has no bytecode", path)
	}
	return &artifact, nil
}

// Factory deploys new termsable contracts from the compiled artifact.
type Factory struct {
	bytecode []byte
}

// NewFactory loads the artifact at path. An empty path yields a binding-only
// factory: Bind works, Deploy errors.
func NewFactory(path string) (*Factory, error) {
	if path == "" {
		return &Factory{}, nil
	}
	artifact, err := LoadArtifact(path)
	if err != nil {
		return nil, err
	}
	bytecode := common.FromHex(artifact.Bytecode)
	if len(bytecode) == 0 {
		return nil, fmt.Errorf("contract artifact bytecode is not valid hex")
	}
	return &Factory{bytecode: bytecode}, nil
}

// CanDeploy reports whether deployment bytecode is available.
func (f *Factory) CanDeploy() bool {
	return len(f.bytecode) > 0
}

// Deploy broadcasts a contract-creation transaction and returns once the
// transaction is assigned an address; it does not wait for confirmation.
func (f *Factory) Deploy(auth *bind.TransactOpts, backend bind.ContractBackend, owner common.Address, name, symbol string) (common.Address, *types.Transaction, *Contract, error) {
	if !f.CanDeploy() {
		return common.Address{}, nil, nil, fmt.Errorf("no contract artifact configured")
	}
	address, tx, bound, err := bind.DeployContract(auth, parsedABI, f.bytecode, backend, owner, name, symbol)
	if err != nil {
		return common.Address{}, nil, nil, err
	}
	return address, tx, &Contract{address: address, contract: bound}, nil
}

// Contract is a bound instance at a known address.
type Contract struct {
	address  common.Address
	contract *bind.BoundContract
}

// Bind attaches to an already-deployed contract.
func Bind(address common.Address, backend bind.ContractBackend) *Contract {
	return &Contract{
		address:  address,
		contract: bind.NewBoundContract(address, parsedABI, backend, backend, backend),
	}
}

// Address returns the contract address.
func (c *Contract) Address() common.Address {
	return c.address
}

// Term is one key/value entry passed to setPolydocs.
type Term struct {
	Key   string
	Value string
}

// AcceptTermsFor submits a gasless terms acceptance on behalf of signer.
func (c *Contract) AcceptTermsFor(opts *bind.TransactOpts, signer common.Address, termsURL string, signature []byte) (*types.Transaction, error) {
	return c.contract.Transact(opts, "acceptTermsFor", signer, termsURL, signature)
}

// SetPolydocs sets the renderer and template for the contract's terms.
func (c *Contract) SetPolydocs(opts *bind.TransactOpts, renderer, template string, terms []Term) (*types.Transaction, error) {
	if terms == nil {
		terms = []Term{}
	}
	return c.contract.Transact(opts, "setPolydocs", renderer, template, terms)
}

// SetURI sets the contract's content URI.
func (c *Contract) SetURI(opts *bind.TransactOpts, uri string) (*types.Transaction, error) {
	return c.contract.Transact(opts, "setURI", uri)
}

// WaitDeployed blocks until code is present at address or ctx expires. Used by
// the asynchronous configuration phase, which only knows the address, not the
// creation transaction.
func WaitDeployed(ctx context.Context, backend bind.DeployBackend, address common.Address) error {
	ticker := time.NewTicker(deployedPollInterval)
	defer ticker.Stop()

	for {
		code, err := backend.CodeAt(ctx, address, nil)
		if err == nil && len(code) > 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for contract %s: %w", address.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}

// WaitMined blocks until the transaction is included in a block and returns an
// error if it reverted.
func WaitMined(ctx context.Context, backend bind.DeployBackend, tx *types.Transaction) error {
	receipt, err := bind.WaitMined(ctx, backend, tx)
	if err != nil {
		return err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return fmt.Errorf("transaction %s reverted", tx.Hash().Hex())
	}
	return nil
}
