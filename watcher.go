package txpipeline

import (
	"context"
	"errors"
	"time"

	"github.com/KyberNetwork/logger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/tranvictor/jarvis/networks"

	"github.com/Railway-Wallet/Railway-Wallet-sub005/ledger"
)

// WatchStatus is what the watcher reports about a submitted transaction.
type WatchStatus int

const (
	WatchConfirmed WatchStatus = iota
	WatchFailed
	WatchTimedOut
	WatchAborted
)

func (s WatchStatus) String() string {
	switch s {
	case WatchConfirmed:
		return "confirmed"
	case WatchFailed:
		return "failed"
	case WatchTimedOut:
		return "timed_out"
	case WatchAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// WatchOutcome is one event from a watch. A TimedOut event is not terminal;
// the watcher keeps polling after emitting it and a later receipt still
// produces a Confirmed or Failed event.
type WatchOutcome struct {
	Status  WatchStatus
	TxHash  common.Hash
	GasUsed uint64
}

// PendingWatcher polls for receipts of submitted transactions and advances
// their ledger records. One goroutine per watched transaction.
type PendingWatcher struct {
	chain    ChainClient
	store    ledger.Store
	interval time.Duration
	timeout  time.Duration
}

// NewPendingWatcher creates a watcher. Zero interval and timeout fall back to
// the package defaults.
func NewPendingWatcher(chain ChainClient, store ledger.Store, interval, timeout time.Duration) *PendingWatcher {
	if interval <= 0 {
		interval = DefaultWatchInterval
	}
	if timeout <= 0 {
		timeout = DefaultPendingTimeout
	}
	return &PendingWatcher{chain: chain, store: store, interval: interval, timeout: timeout}
}

// Watch follows one transaction until it settles or ctx is done. The returned
// channel is buffered and closed when the watch ends; it emits at most one
// TimedOut event followed by the terminal event.
func (w *PendingWatcher) Watch(ctx context.Context, network networks.Network, txHash common.Hash) <-chan WatchOutcome {
	out := make(chan WatchOutcome, 2)
	go w.run(ctx, network, txHash, out)
	return out
}

func (w *PendingWatcher) run(ctx context.Context, network networks.Network, txHash common.Hash, out chan<- WatchOutcome) {
	defer close(out)

	recordID := txHash.Hex()
	lg := logger.WithFields(logger.Fields{
		"chain_id": network.GetChainID(),
		"tx":       recordID,
	})

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	deadline := time.NewTimer(w.timeout)
	defer deadline.Stop()

	timedOut := false
	for {
		select {
		case <-ctx.Done():
			out <- WatchOutcome{Status: WatchAborted, TxHash: txHash}
			return

		case <-deadline.C:
			if !timedOut {
				timedOut = true
				w.advance(recordID, ledger.StatusPending, ledger.StatusTimedOut, lg)
				lg.Info("transaction still pending past timeout")
				out <- WatchOutcome{Status: WatchTimedOut, TxHash: txHash}
			}

		case <-ticker.C:
			receipt, err := w.chain.TransactionReceipt(ctx, network, txHash)
			if err != nil || receipt == nil {
				// Not mined yet, or a transient RPC failure. Keep polling.
				continue
			}

			from := ledger.StatusPending
			if timedOut {
				from = ledger.StatusTimedOut
			}
			if receipt.Status == 1 {
				w.advance(recordID, from, ledger.StatusConfirmed, lg)
				out <- WatchOutcome{Status: WatchConfirmed, TxHash: txHash, GasUsed: receipt.GasUsed}
			} else {
				w.advance(recordID, from, ledger.StatusFailed, lg)
				out <- WatchOutcome{Status: WatchFailed, TxHash: txHash, GasUsed: receipt.GasUsed}
			}
			return
		}
	}
}

func (w *PendingWatcher) advance(recordID string, from, to ledger.Status, lg logger.Logger) {
	if w.store == nil {
		return
	}
	if err := w.store.UpdateStatus(recordID, from, to); err != nil {
		// A replaced record is expected to reject further transitions.
		if !errors.Is(err, ledger.ErrBadTransition) && !errors.Is(err, ledger.ErrNotFound) {
			lg.WithFields(logger.Fields{"error": err}).Error("ledger status update failed")
		}
	}
}
