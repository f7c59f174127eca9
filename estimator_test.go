package txpipeline

import (
	"context"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Railway-Wallet/Railway-Wallet-sub005/testutil"
)

func testAmounts() []AmountRecipient {
	return []AmountRecipient{
		{Asset: tokenAsset(), Amount: big.NewInt(100), RecipientAddress: testutil.RecipientAddr.Hex()},
	}
}

func testGasCall() GasCall {
	return GasCall{From: testutil.WalletAddr, To: &testutil.RecipientAddr}
}

func TestGasEstimator_Estimate(t *testing.T) {
	network := testutil.NewMockNetwork(testutil.ChainIDMainnet, "mock-mainnet")

	t.Run("returns units with fee suggestions", func(t *testing.T) {
		chain := newMockChainClient()
		chain.estimateUnits = 52341
		est := NewGasEstimator(chain)

		gas, err := est.Estimate(context.Background(), network, KindSend, testAmounts(), nil, testGasCall())
		require.NoError(t, err)
		assert.Equal(t, uint64(52341), gas.Estimate)
		assert.Equal(t, GasTypeDynamic, gas.Type)
		assert.Equal(t, testutil.TwentyGwei, gas.MaxFeePerGas)
	})

	t.Run("nil network", func(t *testing.T) {
		est := NewGasEstimator(newMockChainClient())
		_, err := est.Estimate(context.Background(), nil, KindSend, testAmounts(), nil, testGasCall())
		assert.ErrorIs(t, err, ErrNetworkNil)
	})

	t.Run("wraps estimation failures", func(t *testing.T) {
		chain := newMockChainClient()
		chain.estimateErr = fmt.Errorf("execution reverted")
		est := NewGasEstimator(chain)

		_, err := est.Estimate(context.Background(), network, KindSend, testAmounts(), nil, testGasCall())
		assert.ErrorIs(t, err, ErrEstimationFailed)
		assert.Contains(t, err.Error(), "execution reverted")
	})

	t.Run("clamps priority fee above max fee", func(t *testing.T) {
		chain := newMockChainClient()
		chain.gasDetails = GasDetails{
			Type:                 GasTypeDynamic,
			MaxFeePerGas:         big.NewInt(10),
			MaxPriorityFeePerGas: big.NewInt(50),
		}
		est := NewGasEstimator(chain)

		gas, err := est.Estimate(context.Background(), network, KindSend, testAmounts(), nil, testGasCall())
		require.NoError(t, err)
		assert.Equal(t, int64(10), gas.MaxPriorityFeePerGas.Int64())
	})
}

func TestGasEstimator_FeeSuggestionCache(t *testing.T) {
	network := testutil.NewMockNetwork(testutil.ChainIDMainnet, "mock-mainnet")
	chain := newMockChainClient()
	est := NewGasEstimator(chain)

	for i := 0; i < 3; i++ {
		_, err := est.Estimate(context.Background(), network, KindSend, testAmounts(), nil, testGasCall())
		require.NoError(t, err)
	}
	assert.Equal(t, 1, chain.suggestCalls, "fee suggestions should be served from cache within the TTL")

	est.ttl = time.Duration(0)
	_, err := est.Estimate(context.Background(), network, KindSend, testAmounts(), nil, testGasCall())
	require.NoError(t, err)
	assert.Equal(t, 2, chain.suggestCalls, "expired cache must refresh")
}

func TestValidateIntentCardinality(t *testing.T) {
	t.Run("empty intent", func(t *testing.T) {
		err := validateIntentCardinality(KindSend, nil, nil)
		assert.ErrorIs(t, err, ErrInvalidIntent)
	})

	t.Run("single-asset kinds need exactly one amount", func(t *testing.T) {
		two := []AmountRecipient{
			{Asset: tokenAsset(), Amount: big.NewInt(1)},
			{Asset: ethAsset(), Amount: big.NewInt(2)},
		}
		for _, kind := range []TxKind{KindApprove, KindMint} {
			assert.ErrorIs(t, validateIntentCardinality(kind, two, nil), ErrInvalidIntent, kind.String())
			assert.NoError(t, validateIntentCardinality(kind, two[:1], nil))
		}
	})

	t.Run("multi-asset kinds accept several amounts", func(t *testing.T) {
		two := []AmountRecipient{
			{Asset: tokenAsset(), Amount: big.NewInt(1)},
			{Asset: ethAsset(), Amount: big.NewInt(2)},
		}
		assert.NoError(t, validateIntentCardinality(KindSend, two, nil))
	})

	t.Run("nft-only intent is valid", func(t *testing.T) {
		nfts := []NFTAmountRecipient{{Collection: testutil.TokenAddr, TokenID: big.NewInt(1), Amount: big.NewInt(1)}}
		assert.NoError(t, validateIntentCardinality(KindSend, nil, nfts))
	})
}
