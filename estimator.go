package txpipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/KyberNetwork/logger"
	"github.com/tranvictor/jarvis/networks"
)

// GasEstimator queries the chain RPC capability for the cost of a prospective
// call. Fee suggestions are cached per network for GasInfoTTL; unit estimates
// are never cached (they depend on the call).
type GasEstimator struct {
	chain ChainClient
	ttl   time.Duration

	mu    sync.Mutex
	cache map[uint64]cachedGasInfo
}

type cachedGasInfo struct {
	details   GasDetails
	timestamp time.Time
}

// NewGasEstimator creates an estimator over the given chain capability.
func NewGasEstimator(chain ChainClient) *GasEstimator {
	return &GasEstimator{
		chain: chain,
		ttl:   GasInfoTTL,
		cache: make(map[uint64]cachedGasInfo),
	}
}

// validateIntentCardinality enforces the amount-list preconditions: the input
// asset list must be non-empty and single-asset kinds must carry exactly one
// entry. A violation is a caller bug and is never retried.
func validateIntentCardinality(kind TxKind, amounts []AmountRecipient, nftAmounts []NFTAmountRecipient) error {
	if len(amounts) == 0 && len(nftAmounts) == 0 {
		return fmt.Errorf("%w: intent has no amounts", ErrInvalidIntent)
	}
	if kind.singleAssetKind() && len(amounts) != 1 {
		return fmt.Errorf(
			"%w: %s requires exactly one amount, got %d",
			ErrInvalidIntent, kind, len(amounts),
		)
	}
	return nil
}

// Estimate returns complete gas details for the prospective call: the unit
// estimate from the node plus current fee suggestions. Read-only; network and
// RPC errors are surfaced verbatim for the orchestrator to classify.
func (e *GasEstimator) Estimate(ctx context.Context, network networks.Network, kind TxKind, amounts []AmountRecipient, nftAmounts []NFTAmountRecipient, call GasCall) (GasDetails, error) {
	if network == nil {
		return GasDetails{}, ErrNetworkNil
	}
	if err := validateIntentCardinality(kind, amounts, nftAmounts); err != nil {
		return GasDetails{}, err
	}

	units, err := e.chain.EstimateGas(ctx, network, call)
	if err != nil {
		return GasDetails{}, errors.Join(ErrEstimationFailed, fmt.Errorf("couldn't estimate gas units: %w", err))
	}

	details, err := e.suggestedGasDetails(ctx, network)
	if err != nil {
		return GasDetails{}, errors.Join(ErrEstimationFailed, fmt.Errorf("couldn't get fee suggestions: %w", err))
	}
	details.Estimate = units
	details = details.ClampPriorityFee()

	logger.WithFields(logger.Fields{
		"network":  network.GetName(),
		"chain_id": network.GetChainID(),
		"kind":     kind.String(),
		"units":    units,
		"gas_type": details.Type.String(),
	}).Debug("gas estimate resolved")

	return details, nil
}

// suggestedGasDetails returns cached fee suggestions, refreshing when stale.
func (e *GasEstimator) suggestedGasDetails(ctx context.Context, network networks.Network) (GasDetails, error) {
	chainID := network.GetChainID()

	e.mu.Lock()
	cached, ok := e.cache[chainID]
	e.mu.Unlock()
	if ok && time.Since(cached.timestamp) < e.ttl {
		return cached.details, nil
	}

	details, err := e.chain.SuggestGasDetails(ctx, network)
	if err != nil {
		return GasDetails{}, err
	}

	e.mu.Lock()
	e.cache[chainID] = cachedGasInfo{details: details, timestamp: time.Now()}
	e.mu.Unlock()
	return details, nil
}
