package txpipeline

import (
	"context"
	"crypto/ecdsa"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/tranvictor/jarvis/networks"
)

// The pipeline has no wire protocol of its own; its boundary is the set of
// capability interfaces below. Production wiring uses EthChainClient for the
// chain RPC capability; everything else is supplied by the host application.

// GasCall describes a prospective call for estimation purposes only.
type GasCall struct {
	From  common.Address
	To    *common.Address
	Value *big.Int
	Data  []byte
}

// ChainClient is the chain RPC capability: read-only queries plus the single
// state-changing SignAndSend.
type ChainClient interface {
	// EstimateGas returns the gas unit cost of the prospective call.
	EstimateGas(ctx context.Context, network networks.Network, call GasCall) (uint64, error)

	// SuggestGasDetails returns current fee suggestions for the network.
	SuggestGasDetails(ctx context.Context, network networks.Network) (GasDetails, error)

	// TransactionCount returns the pending-inclusive transaction count for an
	// address, i.e. the next valid nonce absent local knowledge.
	TransactionCount(ctx context.Context, network networks.Network, addr common.Address) (uint64, error)

	// SignAndSend signs the populated call with key and broadcasts it.
	// Not idempotent: the pipeline calls it at most once per attempt.
	SignAndSend(ctx context.Context, key *ecdsa.PrivateKey, network networks.Network, call *PopulatedCall, gas GasDetails, nonce uint64, gasLimitOverride uint64) (TxHandle, error)

	// TransactionReceipt returns the receipt for a mined transaction, or an
	// error when it is not (yet) mined.
	TransactionReceipt(ctx context.Context, network networks.Network, hash common.Hash) (*types.Receipt, error)
}

// RelayClient submits a populated call through a fee-relay broadcaster instead
// of the user's own gas-paying address.
type RelayClient interface {
	Relay(ctx context.Context, network networks.Network, call *PopulatedCall, relayAddress string, feesID string, nullifiers []common.Hash, overallBatchMinGasPrice *big.Int) (common.Hash, error)
}

// KeyStore yields a signing key given an authorization token. Key custody and
// wallet unlocking live outside the pipeline.
type KeyStore interface {
	SigningKey(ctx context.Context, authToken string, wallet common.Address) (*ecdsa.PrivateKey, error)
}

// ProofEngine is the out-of-process proof generation capability. GenerateProof
// blocks until terminal resolution; progress is streamed through onProgress.
// The engine may keep computing after ctx is cancelled; the pipeline treats a
// late success as a no-op and discards the artifact.
type ProofEngine interface {
	GenerateProof(ctx context.Context, intent ProofIntent, onProgress func(ProofProgress)) (*ProofArtifact, error)
}

// AddressBlocklist screens sender/recipient addresses before submission.
type AddressBlocklist interface {
	IsBlocked(addr string) bool
}

// NoBlocklist is the default AddressBlocklist that blocks nothing.
type NoBlocklist struct{}

func (NoBlocklist) IsBlocked(string) bool { return false }
