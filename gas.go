package txpipeline

import (
	"fmt"
	"math/big"
)

// Gas adjustment constants
const (
	// GasLimitBufferPercent is added on top of the raw estimate for the
	// submitted gas limit.
	GasLimitBufferPercent = 0.2

	// Replacement margins required by mempool rules when cancelling a stuck
	// transaction. Two-part gas networks bump the max fee by 30% and the
	// priority fee by 10%; single-price networks bump the gas price by 30%.
	CancelFeeIncreaseNumerator      = 13
	CancelPriorityIncreaseNumerator = 11
	CancelIncreaseDenominator       = 10
)

// GasType tags the GasDetails union.
type GasType uint8

const (
	// GasTypeLegacy is single-price gas (pre-EIP-1559 networks).
	GasTypeLegacy GasType = iota
	// GasTypeDynamic is two-part (base + priority) gas.
	GasTypeDynamic
)

func (t GasType) String() string {
	switch t {
	case GasTypeLegacy:
		return "legacy"
	case GasTypeDynamic:
		return "dynamic"
	default:
		return "unknown"
	}
}

// GasDetails is a tagged union over legacy single-price gas and two-part
// (base + priority) gas. Estimate always carries the raw gas unit estimate.
type GasDetails struct {
	Type     GasType
	Estimate uint64

	// Legacy
	GasPrice *big.Int

	// Dynamic
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
}

// Validate checks the union's internal consistency. For the dynamic variant
// the max fee must cover the priority fee.
func (g GasDetails) Validate() error {
	if g.Estimate == 0 {
		return fmt.Errorf("gas details missing estimate")
	}
	switch g.Type {
	case GasTypeLegacy:
		if g.GasPrice == nil || g.GasPrice.Sign() <= 0 {
			return fmt.Errorf("legacy gas details require a positive gas price")
		}
	case GasTypeDynamic:
		if g.MaxFeePerGas == nil || g.MaxPriorityFeePerGas == nil {
			return fmt.Errorf("dynamic gas details require max fee and priority fee")
		}
		if g.MaxFeePerGas.Cmp(g.MaxPriorityFeePerGas) < 0 {
			return fmt.Errorf("max fee per gas %s below priority fee %s", g.MaxFeePerGas, g.MaxPriorityFeePerGas)
		}
	default:
		return fmt.Errorf("unknown gas type %d", g.Type)
	}
	return nil
}

// Limit returns the gas limit to submit with: the raw estimate plus the
// standard buffer.
func (g GasDetails) Limit() uint64 {
	return g.Estimate + uint64(float64(g.Estimate)*GasLimitBufferPercent)
}

// ClampPriorityFee caps the priority fee at the max fee. Some gas oracles
// return a tip above the cap during fee spikes; the node would reject that.
func (g GasDetails) ClampPriorityFee() GasDetails {
	if g.Type != GasTypeDynamic || g.MaxFeePerGas == nil || g.MaxPriorityFeePerGas == nil {
		return g
	}
	if g.MaxPriorityFeePerGas.Cmp(g.MaxFeePerGas) > 0 {
		g.MaxPriorityFeePerGas = new(big.Int).Set(g.MaxFeePerGas)
	}
	return g
}

// bumpCeil returns ceil(x * num / den).
func bumpCeil(x *big.Int, num, den int64) *big.Int {
	scaled := new(big.Int).Mul(x, big.NewInt(num))
	scaled.Add(scaled, big.NewInt(den-1))
	return scaled.Div(scaled, big.NewInt(den))
}

// CancelGasDetails derives replacement fees for cancelling the given original
// transaction: +30% max fee / +10% priority fee for dynamic gas, +30% flat for
// legacy gas. The estimate is carried over unchanged (the cancel submission
// uses an exact gas limit override instead).
func CancelGasDetails(original GasDetails) GasDetails {
	replacement := original
	switch original.Type {
	case GasTypeLegacy:
		if original.GasPrice != nil {
			replacement.GasPrice = bumpCeil(original.GasPrice, CancelFeeIncreaseNumerator, CancelIncreaseDenominator)
		}
	case GasTypeDynamic:
		if original.MaxFeePerGas != nil {
			replacement.MaxFeePerGas = bumpCeil(original.MaxFeePerGas, CancelFeeIncreaseNumerator, CancelIncreaseDenominator)
		}
		if original.MaxPriorityFeePerGas != nil {
			replacement.MaxPriorityFeePerGas = bumpCeil(original.MaxPriorityFeePerGas, CancelPriorityIncreaseNumerator, CancelIncreaseDenominator)
		}
	}
	return replacement.ClampPriorityFee()
}

// ValidReplacement reports whether replacement meets the network margins over
// the original: dynamic gas needs maxFee >= 1.3x and priorityFee >= 1.1x,
// legacy gas needs gasPrice >= 1.3x.
func ValidReplacement(original, replacement GasDetails) bool {
	if original.Type != replacement.Type {
		return false
	}
	atLeast := func(have, base *big.Int, num int64) bool {
		if have == nil || base == nil {
			return false
		}
		required := new(big.Int).Mul(base, big.NewInt(num))
		scaled := new(big.Int).Mul(have, big.NewInt(CancelIncreaseDenominator))
		return scaled.Cmp(required) >= 0
	}
	switch original.Type {
	case GasTypeLegacy:
		return atLeast(replacement.GasPrice, original.GasPrice, CancelFeeIncreaseNumerator)
	case GasTypeDynamic:
		return atLeast(replacement.MaxFeePerGas, original.MaxFeePerGas, CancelFeeIncreaseNumerator) &&
			atLeast(replacement.MaxPriorityFeePerGas, original.MaxPriorityFeePerGas, CancelPriorityIncreaseNumerator)
	default:
		return false
	}
}

// OverallBatchMinGasPrice returns the minimum gas price the broadcaster must
// honor for the whole batch, or nil for self-paid submissions (which have no
// batch floor).
func OverallBatchMinGasPrice(viaBroadcaster bool, gas GasDetails) *big.Int {
	if !viaBroadcaster {
		return nil
	}
	switch gas.Type {
	case GasTypeLegacy:
		if gas.GasPrice == nil {
			return nil
		}
		return new(big.Int).Set(gas.GasPrice)
	case GasTypeDynamic:
		if gas.MaxFeePerGas == nil {
			return nil
		}
		return new(big.Int).Set(gas.MaxFeePerGas)
	default:
		return nil
	}
}
