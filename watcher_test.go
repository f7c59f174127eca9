package txpipeline

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Railway-Wallet/Railway-Wallet-sub005/ledger"
	"github.com/Railway-Wallet/Railway-Wallet-sub005/testutil"
)

func watcherFixture(t *testing.T, interval, timeout time.Duration) (*mockChainClient, *ledger.MemoryStore, *PendingWatcher, common.Hash) {
	t.Helper()
	chain := newMockChainClient()
	store := ledger.NewMemoryStore()
	watcher := NewPendingWatcher(chain, store, interval, timeout)

	txHash := common.HexToHash("0x0123")
	rec := ledger.NewRecord(ledger.KindSend, ledger.RecordParams{
		Wallet:  testutil.WalletAddr,
		ChainID: testutil.ChainIDMainnet,
		TxHash:  txHash,
	}, ledger.SendDetail{})
	require.NoError(t, store.Append(rec))
	return chain, store, watcher, txHash
}

func recordStatus(t *testing.T, store *ledger.MemoryStore, id string) ledger.Status {
	t.Helper()
	records, err := store.Query(testutil.WalletAddr, ledger.Filter{})
	require.NoError(t, err)
	for _, r := range records {
		if r.ID == id {
			return r.Status
		}
	}
	t.Fatalf("record %s not found", id)
	return ""
}

func TestPendingWatcher_Confirm(t *testing.T) {
	network := testutil.NewMockNetwork(testutil.ChainIDMainnet, "mock-mainnet")
	chain, store, watcher, txHash := watcherFixture(t, 10*time.Millisecond, time.Minute)
	chain.setReceipt(txHash, testutil.NewSuccessReceipt(txHash))

	out := watcher.Watch(context.Background(), network, txHash)
	outcome := <-out
	assert.Equal(t, WatchConfirmed, outcome.Status)
	assert.Equal(t, uint64(21000), outcome.GasUsed)
	assert.Equal(t, ledger.StatusConfirmed, recordStatus(t, store, txHash.Hex()))

	_, open := <-out
	assert.False(t, open, "channel closes after the terminal event")
}

func TestPendingWatcher_Failed(t *testing.T) {
	network := testutil.NewMockNetwork(testutil.ChainIDMainnet, "mock-mainnet")
	chain, store, watcher, txHash := watcherFixture(t, 10*time.Millisecond, time.Minute)
	chain.setReceipt(txHash, testutil.NewFailedReceipt(txHash))

	out := watcher.Watch(context.Background(), network, txHash)
	outcome := <-out
	assert.Equal(t, WatchFailed, outcome.Status)
	assert.Equal(t, ledger.StatusFailed, recordStatus(t, store, txHash.Hex()))
}

func TestPendingWatcher_TimeoutThenConfirm(t *testing.T) {
	network := testutil.NewMockNetwork(testutil.ChainIDMainnet, "mock-mainnet")
	chain, store, watcher, txHash := watcherFixture(t, 10*time.Millisecond, 30*time.Millisecond)

	out := watcher.Watch(context.Background(), network, txHash)

	outcome := <-out
	assert.Equal(t, WatchTimedOut, outcome.Status)
	assert.Equal(t, ledger.StatusTimedOut, recordStatus(t, store, txHash.Hex()))

	// The receipt eventually lands; the watch is still live and settles it.
	chain.setReceipt(txHash, testutil.NewSuccessReceipt(txHash))
	outcome = <-out
	assert.Equal(t, WatchConfirmed, outcome.Status)
	assert.Equal(t, ledger.StatusConfirmed, recordStatus(t, store, txHash.Hex()))
}

func TestPendingWatcher_Abort(t *testing.T) {
	network := testutil.NewMockNetwork(testutil.ChainIDMainnet, "mock-mainnet")
	_, store, watcher, txHash := watcherFixture(t, 10*time.Millisecond, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	out := watcher.Watch(ctx, network, txHash)
	cancel()

	outcome := <-out
	assert.Equal(t, WatchAborted, outcome.Status)
	assert.Equal(t, ledger.StatusPending, recordStatus(t, store, txHash.Hex()), "abort leaves the record pending")
}
