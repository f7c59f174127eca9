package txpipeline

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Constants for the pipeline
const (
	// DefaultEstimateTimeout bounds gas estimation and other short network reads.
	DefaultEstimateTimeout = 10 * time.Second
	// DefaultWatchInterval is how often the pending watcher polls for receipts.
	DefaultWatchInterval = 5 * time.Second
	// DefaultPendingTimeout is how long a submitted tx may stay pending before
	// the watcher marks it timed out.
	DefaultPendingTimeout = 5 * time.Minute

	// GasInfoTTL is how long cached per-network fee suggestions stay fresh.
	GasInfoTTL = 30 * time.Second
)

// Asset identifies a fungible token. The zero Address together with
// IsBaseToken marks the network's native gas token.
type Asset struct {
	Address     common.Address
	Symbol      string
	Decimals    uint8
	IsBaseToken bool
}

// Key returns the map key used to group amounts per asset.
func (a Asset) Key() common.Address {
	return a.Address
}

// AmountRecipient is one fungible transfer line of a transaction intent.
// Immutable once constructed; intents hold an ordered list of these.
type AmountRecipient struct {
	Asset            Asset
	Amount           *big.Int
	RecipientAddress string

	// ExternalUnresolvedAddress holds the raw user input (ENS name etc.) when
	// RecipientAddress was resolved from it. Informational only.
	ExternalUnresolvedAddress string
}

// NFTAmountRecipient is one non-fungible transfer line of a transaction intent.
type NFTAmountRecipient struct {
	Collection       common.Address
	TokenID          *big.Int
	Amount           *big.Int
	RecipientAddress string
}

// AdjustedAmountGroup splits a transaction's declared amounts into what the
// sender spends (Inputs), what recipients actually receive after fee deduction
// (Outputs) and the fee line items themselves (Fees).
//
// Invariant, per asset: sum(Inputs) == sum(Outputs) + sum(Fees).
type AdjustedAmountGroup struct {
	Inputs  []AmountRecipient
	Outputs []AmountRecipient
	Fees    []AmountRecipient
}

// NewAdjustedAmountGroup derives the input/output/fee split from the declared
// recipient list plus an optional fee line item.
//
// When the fee is paid in an asset that is also being sent, the fee is deducted
// from the first matching recipient's output. When the fee asset is not among
// the declared recipients, the fee becomes its own input line (the sender
// spends it on top of the declared amounts).
func NewAdjustedAmountGroup(recipients []AmountRecipient, fee *AmountRecipient) (AdjustedAmountGroup, error) {
	group := AdjustedAmountGroup{}

	for _, r := range recipients {
		if r.Amount == nil || r.Amount.Sign() < 0 {
			return AdjustedAmountGroup{}, fmt.Errorf("%w: recipient amount must be non-negative", ErrInvalidIntent)
		}
		group.Inputs = append(group.Inputs, r)
		group.Outputs = append(group.Outputs, r)
	}

	if fee == nil {
		return group, nil
	}
	if fee.Amount == nil || fee.Amount.Sign() < 0 {
		return AdjustedAmountGroup{}, fmt.Errorf("%w: fee amount must be non-negative", ErrInvalidIntent)
	}

	feeItem := *fee
	group.Fees = append(group.Fees, feeItem)

	for i := range group.Outputs {
		if group.Outputs[i].Asset.Key() != feeItem.Asset.Key() {
			continue
		}
		if group.Outputs[i].Amount.Cmp(feeItem.Amount) < 0 {
			return AdjustedAmountGroup{}, fmt.Errorf(
				"%w: fee %s exceeds sent amount %s for asset %s",
				ErrInvalidIntent, feeItem.Amount, group.Outputs[i].Amount, feeItem.Asset.Symbol,
			)
		}
		adjusted := group.Outputs[i]
		adjusted.Amount = new(big.Int).Sub(adjusted.Amount, feeItem.Amount)
		group.Outputs[i] = adjusted
		return group, nil
	}

	// Fee asset is not among the recipients: the sender spends it separately.
	group.Inputs = append(group.Inputs, feeItem)
	return group, nil
}

// Validate checks the per-asset invariant sum(Inputs) == sum(Outputs) + sum(Fees).
func (g AdjustedAmountGroup) Validate() error {
	sums := map[common.Address]*big.Int{}
	add := func(items []AmountRecipient, sign int64) {
		for _, it := range items {
			key := it.Asset.Key()
			if sums[key] == nil {
				sums[key] = big.NewInt(0)
			}
			term := new(big.Int).Mul(big.NewInt(sign), it.Amount)
			sums[key].Add(sums[key], term)
		}
	}
	add(g.Inputs, 1)
	add(g.Outputs, -1)
	add(g.Fees, -1)

	for asset, sum := range sums {
		if sum.Sign() != 0 {
			return fmt.Errorf(
				"adjusted amount group is unbalanced for asset %s: inputs - outputs - fees = %s",
				asset.Hex(), sum,
			)
		}
	}
	return nil
}

// TxKind is the user-facing kind of a transaction attempt.
type TxKind uint8

const (
	KindSend TxKind = iota
	KindShield
	KindUnshield
	KindApprove
	KindSwap
	KindMint
	KindCancel
)

func (k TxKind) String() string {
	switch k {
	case KindSend:
		return "send"
	case KindShield:
		return "shield"
	case KindUnshield:
		return "unshield"
	case KindApprove:
		return "approve"
	case KindSwap:
		return "swap"
	case KindMint:
		return "mint"
	case KindCancel:
		return "cancel"
	default:
		return "unknown"
	}
}

// singleAssetKind reports whether the kind spends exactly one asset line.
// Violating the cardinality is a caller bug, not a retryable condition.
func (k TxKind) singleAssetKind() bool {
	switch k {
	case KindApprove, KindMint, KindCancel:
		return true
	default:
		return false
	}
}

// PipelineState is the orchestrator's transient per-attempt state. It is never
// persisted; every user attempt starts fresh from StateIdle.
type PipelineState uint8

const (
	StateIdle PipelineState = iota
	StateEstimatingGas
	StateSelectingBroadcaster
	StateGeneratingProof
	StateAllocatingNonce
	StateSubmitting
	StateSucceeded
	StateFailed
)

func (s PipelineState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateEstimatingGas:
		return "estimating_gas"
	case StateSelectingBroadcaster:
		return "selecting_broadcaster"
	case StateGeneratingProof:
		return "generating_proof"
	case StateAllocatingNonce:
		return "allocating_nonce"
	case StateSubmitting:
		return "submitting"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state ends an attempt.
func (s PipelineState) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// PopulatedCall is the fully assembled call ready for signing and submission.
// For private kinds it comes out of the proof artifact; for public transfers
// the orchestrator assembles it directly.
type PopulatedCall struct {
	From  common.Address
	To    common.Address
	Value *big.Int
	Data  []byte
}

// TxHandle identifies a submitted transaction.
type TxHandle struct {
	Hash  common.Hash
	Nonce uint64
}
