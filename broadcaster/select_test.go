package broadcaster

import (
	"math/big"
	"math/rand"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func feeRanked(fees ...int64) []Candidate {
	out := make([]Candidate, 0, len(fees))
	for i, f := range fees {
		out = append(out, Candidate{
			RelayAddress:  string(rune('a' + i)),
			FeePerUnitGas: big.NewInt(f),
		})
	}
	return out
}

func TestSelector_Random(t *testing.T) {
	s := NewSelector(rand.New(rand.NewSource(1)))

	t.Run("empty set yields nil without error", func(t *testing.T) {
		c, err := s.Select(nil, common.Address{}, ModeRandom, "")
		require.NoError(t, err)
		assert.Nil(t, c)
	})

	t.Run("fewer than ten candidates always picks the cheapest", func(t *testing.T) {
		candidates := feeRanked(500, 100, 300)
		for i := 0; i < 20; i++ {
			c, err := s.Select(candidates, common.Address{}, ModeRandom, "")
			require.NoError(t, err)
			require.NotNil(t, c)
			assert.Equal(t, int64(100), c.FeePerUnitGas.Int64())
		}
	})

	t.Run("draws only from the cheapest decile", func(t *testing.T) {
		fees := make([]int64, 0, 20)
		for i := 1; i <= 20; i++ {
			fees = append(fees, int64(i*10))
		}
		candidates := feeRanked(fees...)
		for i := 0; i < 50; i++ {
			c, err := s.Select(candidates, common.Address{}, ModeRandom, "")
			require.NoError(t, err)
			assert.LessOrEqual(t, c.FeePerUnitGas.Int64(), int64(20), "only the two cheapest are eligible")
		}
	})

	t.Run("equal fees keep set order", func(t *testing.T) {
		candidates := []Candidate{
			{RelayAddress: "first", FeePerUnitGas: big.NewInt(100)},
			{RelayAddress: "second", FeePerUnitGas: big.NewInt(100)},
		}
		c, err := s.Select(candidates, common.Address{}, ModeRandom, "")
		require.NoError(t, err)
		assert.Equal(t, "first", c.RelayAddress)
	})

	t.Run("does not mutate the input slice", func(t *testing.T) {
		candidates := feeRanked(500, 100)
		_, err := s.Select(candidates, common.Address{}, ModeRandom, "")
		require.NoError(t, err)
		assert.Equal(t, int64(500), candidates[0].FeePerUnitGas.Int64())
	})
}

func TestSelector_Manual(t *testing.T) {
	s := NewSelector(nil)
	candidates := feeRanked(500, 100)

	t.Run("present relay is honored", func(t *testing.T) {
		c, err := s.Select(candidates, common.Address{}, ModeManual, "a")
		require.NoError(t, err)
		assert.Equal(t, "a", c.RelayAddress)
	})

	t.Run("missing relay errors", func(t *testing.T) {
		_, err := s.Select(candidates, common.Address{}, ModeManual, "gone")
		assert.ErrorIs(t, err, ErrUnavailable)
	})
}

func TestSelector_CheapestForToken(t *testing.T) {
	s := NewSelector(rand.New(rand.NewSource(1)))
	asset := common.Address{7}
	candidates := []Candidate{
		{RelayAddress: "cheap-wrong-token", FeePerUnitGas: big.NewInt(1)},
		{RelayAddress: "costly-right-token", FeePerUnitGas: big.NewInt(900), SupportedAssets: []common.Address{asset}},
	}

	c, err := s.Select(candidates, asset, ModeCheapestForToken, "")
	require.NoError(t, err)
	assert.Equal(t, "costly-right-token", c.RelayAddress)

	t.Run("no supporting candidate yields nil", func(t *testing.T) {
		c, err := s.Select(candidates, common.Address{9}, ModeCheapestForToken, "")
		require.NoError(t, err)
		assert.Nil(t, c)
	})
}

func TestShouldReplace(t *testing.T) {
	cheap := &Candidate{FeePerUnitGas: big.NewInt(10)}
	costly := &Candidate{FeePerUnitGas: big.NewInt(20)}

	assert.True(t, ShouldReplace(nil, cheap))
	assert.False(t, ShouldReplace(cheap, nil))
	assert.True(t, ShouldReplace(costly, cheap))
	assert.False(t, ShouldReplace(cheap, costly))
	assert.False(t, ShouldReplace(cheap, &Candidate{FeePerUnitGas: big.NewInt(10)}))
}

func TestShouldReplace_FeeTolerance(t *testing.T) {
	current := &Candidate{FeePerUnitGas: big.NewInt(1000000)}

	t.Run("marginally cheaper quote keeps the current selection", func(t *testing.T) {
		assert.False(t, ShouldReplace(current, &Candidate{FeePerUnitGas: big.NewInt(999999)}))
	})

	t.Run("cheaper within the threshold keeps the current selection", func(t *testing.T) {
		// 5% lower, right at the threshold boundary.
		assert.False(t, ShouldReplace(current, &Candidate{FeePerUnitGas: big.NewInt(950000)}))
	})

	t.Run("meaningfully cheaper replaces", func(t *testing.T) {
		// 6% lower, past the threshold.
		assert.True(t, ShouldReplace(current, &Candidate{FeePerUnitGas: big.NewInt(940000)}))
	})

	t.Run("costlier never replaces regardless of threshold", func(t *testing.T) {
		assert.False(t, ShouldReplace(current, &Candidate{FeePerUnitGas: big.NewInt(1000001)}))
	})
}

func TestCandidate_FeeForGas(t *testing.T) {
	c := Candidate{FeePerUnitGas: big.NewInt(100)}
	assert.Equal(t, int64(2520000), c.FeeForGas(25200).Int64())
}
