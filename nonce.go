package txpipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/KyberNetwork/logger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/tranvictor/jarvis/networks"

	"github.com/Railway-Wallet/Railway-Wallet-sub005/internal/nonce"
)

// NonceAllocator computes the next valid transaction sequence number for a
// sending address. Within one orchestrator attempt the nonce is fetched
// exactly once and held fixed through proof generation and submission;
// staleness over that window is accepted risk, the submission fails naturally
// if the nonce has been consumed.
type NonceAllocator struct {
	chain   ChainClient
	tracker *nonce.Tracker
}

// NewNonceAllocator creates an allocator over the given chain capability.
func NewNonceAllocator(chain ChainClient) *NonceAllocator {
	return &NonceAllocator{
		chain:   chain,
		tracker: nonce.NewTracker(),
	}
}

// Next returns the nonce to use for an attempt. A manual override is returned
// as-is: the caller (e.g. a replace-transaction flow) is trusted. Otherwise
// the chain's pending-inclusive count is reconciled with the locally recorded
// last submission.
func (a *NonceAllocator) Next(ctx context.Context, network networks.Network, wallet common.Address, manualOverride *uint64) (uint64, error) {
	if manualOverride != nil {
		logger.WithFields(logger.Fields{
			"wallet": wallet.Hex(),
			"nonce":  *manualOverride,
		}).Debug("using manual nonce override")
		return *manualOverride, nil
	}

	remote, err := a.chain.TransactionCount(ctx, network, wallet)
	if err != nil {
		return 0, errors.Join(ErrNonceAllocationFailed, fmt.Errorf("couldn't read transaction count: %w", err))
	}

	next := a.tracker.Next(wallet, network.GetChainID(), remote)
	logger.WithFields(logger.Fields{
		"wallet":   wallet.Hex(),
		"network":  network.GetName(),
		"chain_id": network.GetChainID(),
		"remote":   remote,
		"next":     next,
	}).Debug("nonce allocated")
	return next, nil
}

// RecordSubmitted remembers the nonce of a successfully submitted transaction
// so the next attempt doesn't reuse it while nodes still report a stale count.
func (a *NonceAllocator) RecordSubmitted(network networks.Network, wallet common.Address, n uint64) {
	a.tracker.Record(wallet, network.GetChainID(), n)
}
