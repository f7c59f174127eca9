package txpipeline

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Railway-Wallet/Railway-Wallet-sub005/testutil"
)

func TestNonceAllocator_Next(t *testing.T) {
	network := testutil.NewMockNetwork(testutil.ChainIDMainnet, "mock-mainnet")

	t.Run("manual override is used as-is", func(t *testing.T) {
		chain := newMockChainClient()
		chain.txCount = 10
		alloc := NewNonceAllocator(chain)

		override := uint64(3)
		n, err := alloc.Next(context.Background(), network, testutil.WalletAddr, &override)
		require.NoError(t, err)
		assert.Equal(t, uint64(3), n)
	})

	t.Run("fresh wallet follows the chain count", func(t *testing.T) {
		chain := newMockChainClient()
		chain.txCount = 4
		alloc := NewNonceAllocator(chain)

		n, err := alloc.Next(context.Background(), network, testutil.WalletAddr, nil)
		require.NoError(t, err)
		assert.Equal(t, uint64(4), n)
	})

	t.Run("local memory covers node lag", func(t *testing.T) {
		chain := newMockChainClient()
		chain.txCount = 4
		alloc := NewNonceAllocator(chain)

		alloc.RecordSubmitted(network, testutil.WalletAddr, 4)

		// Node still reports 4 pending-inclusive, but we already used 4.
		n, err := alloc.Next(context.Background(), network, testutil.WalletAddr, nil)
		require.NoError(t, err)
		assert.Equal(t, uint64(5), n)
	})

	t.Run("rpc failure is wrapped", func(t *testing.T) {
		chain := newMockChainClient()
		chain.txCountErr = fmt.Errorf("connection refused")
		alloc := NewNonceAllocator(chain)

		_, err := alloc.Next(context.Background(), network, testutil.WalletAddr, nil)
		assert.ErrorIs(t, err, ErrNonceAllocationFailed)
	})
}
