package broadcaster

import (
	"fmt"
	"math/big"
	"math/rand"
	"sort"

	"github.com/ethereum/go-ethereum/common"
)

// ErrUnavailable is returned when a selection cannot be satisfied against the
// current candidate set, e.g. a manual pick that is no longer live.
var ErrUnavailable = fmt.Errorf("broadcaster unavailable")

// SelectionMode controls how a candidate is picked from the live set.
type SelectionMode int

const (
	// ModeRandom picks uniformly among the cheapest decile (at least one).
	ModeRandom SelectionMode = iota
	// ModeManual uses a caller-designated relay if it is still live.
	ModeManual
	// ModeCheapestForToken restricts to candidates supporting the fee asset,
	// then applies the decile draw.
	ModeCheapestForToken
)

// Selector picks candidates from directory snapshots. The random source is
// injectable for deterministic tests.
type Selector struct {
	rng *rand.Rand
}

// NewSelector creates a Selector with the given random source. A nil source
// falls back to the global one.
func NewSelector(rng *rand.Rand) *Selector {
	return &Selector{rng: rng}
}

func (s *Selector) intn(n int) int {
	if s.rng != nil {
		return s.rng.Intn(n)
	}
	return rand.Intn(n)
}

// Select picks one candidate from the snapshot. An empty snapshot yields
// (nil, nil); the caller decides whether self-paid fallback applies. Manual
// mode requires the designated relay to be present.
func (s *Selector) Select(candidates []Candidate, feeAsset common.Address, mode SelectionMode, manualRelay string) (*Candidate, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	switch mode {
	case ModeManual:
		for i := range candidates {
			if candidates[i].RelayAddress == manualRelay {
				c := candidates[i]
				return &c, nil
			}
		}
		return nil, fmt.Errorf("%w: manual relay %s not in live set", ErrUnavailable, manualRelay)

	case ModeCheapestForToken:
		var filtered []Candidate
		for _, c := range candidates {
			if c.SupportsAsset(feeAsset) {
				filtered = append(filtered, c)
			}
		}
		if len(filtered) == 0 {
			return nil, nil
		}
		return s.drawCheapest(filtered), nil

	default:
		return s.drawCheapest(candidates), nil
	}
}

// drawCheapest sorts ascending by fee (stable, so equal fees keep set order)
// and draws uniformly from the top max(1, n/10).
func (s *Selector) drawCheapest(candidates []Candidate) *Candidate {
	sorted := append([]Candidate(nil), candidates...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].FeePerUnitGas.Cmp(sorted[j].FeePerUnitGas) < 0
	})
	top := len(sorted) / 10
	if top < 1 {
		top = 1
	}
	c := sorted[s.intn(top)]
	return &c
}

// feeChangeThresholdPercent is the relative fee movement below which a cheaper
// candidate is not worth switching to. Re-selecting on every wei-level quote
// update would churn the routing and leak timing information.
const feeChangeThresholdPercent = 5

// ShouldReplace reports whether next is a meaningfully better pick than
// current: a lower fee per unit gas by more than the change threshold. A nil
// current is always replaced; a nil next never replaces.
func ShouldReplace(current, next *Candidate) bool {
	if next == nil {
		return false
	}
	if current == nil {
		return true
	}
	if next.FeePerUnitGas.Cmp(current.FeePerUnitGas) >= 0 {
		return false
	}
	return !feesWithinThreshold(current.FeePerUnitGas, next.FeePerUnitGas)
}

// feesWithinThreshold reports whether two fee quotes differ by no more than
// feeChangeThresholdPercent of the larger one.
func feesWithinThreshold(a, b *big.Int) bool {
	diff := new(big.Int).Sub(a, b)
	diff.Abs(diff)
	highest := a
	if b.Cmp(a) > 0 {
		highest = b
	}
	if highest.Sign() == 0 {
		return true
	}
	pct := new(big.Int).Mul(diff, big.NewInt(100))
	pct.Quo(pct, highest)
	return pct.Cmp(big.NewInt(feeChangeThresholdPercent)) <= 0
}

// FeeForGas computes the broadcaster fee for a gas limit at the candidate's
// quoted rate.
func (c Candidate) FeeForGas(gasLimit uint64) *big.Int {
	return new(big.Int).Mul(c.FeePerUnitGas, new(big.Int).SetUint64(gasLimit))
}
