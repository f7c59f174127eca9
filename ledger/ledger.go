// Package ledger is the append-only record of transactions submitted through
// the pipeline. Records are written once at submission time and then advanced
// through a small status machine by the pending watcher.
package ledger

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of a ledger record.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusFailed    Status = "failed"
	StatusReplaced  Status = "replaced"
	StatusTimedOut  Status = "timedOut"
)

// CanTransition reports whether a record may move from s to next. Pending is
// the only non-terminal state, except that a TimedOut record may still settle
// once its receipt eventually lands.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusConfirmed || next == StatusFailed || next == StatusReplaced || next == StatusTimedOut
	case StatusTimedOut:
		return next == StatusConfirmed || next == StatusFailed || next == StatusReplaced
	default:
		return false
	}
}

// Kind mirrors the transaction kinds the pipeline constructs.
type Kind string

const (
	KindSend     Kind = "send"
	KindShield   Kind = "shield"
	KindUnshield Kind = "unshield"
	KindApprove  Kind = "approve"
	KindSwap     Kind = "swap"
	KindMint     Kind = "mint"
	KindCancel   Kind = "cancel"
)

// Amount is one asset movement inside a record. Values are stored as decimal
// strings so the ledger survives assets with more than 64 bits of supply.
type Amount struct {
	AssetAddress common.Address  `json:"assetAddress"`
	Symbol       string          `json:"symbol"`
	Decimals     uint8           `json:"decimals"`
	Value        decimal.Decimal `json:"value"`
	Recipient    string          `json:"recipient,omitempty"`
}

// Detail is the kind-specific payload of a record. Exactly one implementation
// exists per Kind; DetailKind ties the payload back for decoding.
type Detail interface {
	DetailKind() Kind
}

type SendDetail struct {
	Memo              string `json:"memo,omitempty"`
	ShowSenderAddress bool   `json:"showSenderAddress,omitempty"`
}

func (SendDetail) DetailKind() Kind { return KindSend }

type ShieldDetail struct {
	ShieldFeeBasisPoints uint64 `json:"shieldFeeBasisPoints"`
}

func (ShieldDetail) DetailKind() Kind { return KindShield }

type UnshieldDetail struct {
	UnshieldFeeBasisPoints uint64 `json:"unshieldFeeBasisPoints"`
	ToPublicAddress        string `json:"toPublicAddress"`
}

func (UnshieldDetail) DetailKind() Kind { return KindUnshield }

type ApproveDetail struct {
	SpenderAddress common.Address `json:"spenderAddress"`
	SpenderName    string         `json:"spenderName,omitempty"`
}

func (ApproveDetail) DetailKind() Kind { return KindApprove }

type SwapDetail struct {
	Sell Amount `json:"sell"`
	Buy  Amount `json:"buy"`
}

func (SwapDetail) DetailKind() Kind { return KindSwap }

type MintDetail struct{}

func (MintDetail) DetailKind() Kind { return KindMint }

type CancelDetail struct {
	OriginalTxID string `json:"originalTxID"`
}

func (CancelDetail) DetailKind() Kind { return KindCancel }

// Record is one submitted transaction. ID is the transaction hash hex; a
// record exists only for transactions that actually reached the network.
type Record struct {
	ID             string
	Wallet         common.Address
	ChainID        uint64
	Kind           Kind
	Status         Status
	TxHash         common.Hash
	Nonce          uint64
	ViaBroadcaster bool
	RelayAddress   string
	Amounts        []Amount
	Fee            *Amount
	Detail         Detail
	SubmittedAt    time.Time
	ResolvedAt     *time.Time
}

// Filter narrows a Query. Zero values match everything.
type Filter struct {
	ChainID uint64
	Kind    Kind
	Status  Status
	Limit   int
}

// Store persists records. Append is write-once; UpdateStatus enforces the
// status machine with compare-and-swap semantics.
type Store interface {
	Append(rec Record) error
	UpdateStatus(id string, from, to Status) error
	// MarkReplaced settles the original record as replaced and links the
	// cancellation that displaced it.
	MarkReplaced(originalID, cancelID string) error
	Query(wallet common.Address, f Filter) ([]Record, error)
}

// ErrNotFound is returned when a record ID does not exist.
var ErrNotFound = fmt.Errorf("ledger: record not found")

// ErrBadTransition is returned when UpdateStatus would violate the status
// machine or the compare leg of the swap fails.
var ErrBadTransition = fmt.Errorf("ledger: invalid status transition")
