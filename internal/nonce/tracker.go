// Package nonce tracks the last submitted transaction nonce per wallet and
// network, so consecutive attempts in one session don't reuse a sequence
// number the chain hasn't observed yet.
package nonce

import (
	"sync"

	"github.com/KyberNetwork/logger"
	"github.com/ethereum/go-ethereum/common"
)

type walletKey struct {
	wallet  common.Address
	chainID uint64
}

// Tracker remembers the highest nonce submitted per (wallet, chain). It only
// grows; a recorded nonce lower than the current one is ignored.
type Tracker struct {
	mu   sync.RWMutex
	last map[walletKey]uint64
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{last: make(map[walletKey]uint64)}
}

// Record stores the nonce of a successfully submitted transaction.
func (t *Tracker) Record(wallet common.Address, chainID uint64, nonce uint64) {
	key := walletKey{wallet, chainID}

	t.mu.Lock()
	defer t.mu.Unlock()
	current, ok := t.last[key]
	if ok && current >= nonce {
		logger.WithFields(logger.Fields{
			"wallet":    wallet.Hex(),
			"chain_id":  chainID,
			"new_nonce": nonce,
			"old_nonce": current,
		}).Debug("record nonce skipped: not higher than existing")
		return
	}
	t.last[key] = nonce
}

// Last returns the highest recorded nonce for the wallet, if any.
func (t *Tracker) Last(wallet common.Address, chainID uint64) (uint64, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n, ok := t.last[walletKey{wallet, chainID}]
	return n, ok
}

// Next reconciles the chain's pending-inclusive count with local knowledge:
// it returns max(chainPendingCount, lastRecorded+1). Nodes can lag behind a
// just-submitted transaction; local memory covers that window.
func (t *Tracker) Next(wallet common.Address, chainID uint64, chainPendingCount uint64) uint64 {
	last, ok := t.Last(wallet, chainID)
	if !ok {
		return chainPendingCount
	}
	if last+1 > chainPendingCount {
		return last + 1
	}
	return chainPendingCount
}

// Forget drops local tracking for a wallet on a chain.
func (t *Tracker) Forget(wallet common.Address, chainID uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.last, walletKey{wallet, chainID})
}
