package ledger

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// AmountFromBig converts a raw on-chain integer amount into the ledger's
// decimal representation.
func AmountFromBig(assetAddress common.Address, symbol string, decimals uint8, value *big.Int, recipient string) Amount {
	return Amount{
		AssetAddress: assetAddress,
		Symbol:       symbol,
		Decimals:     decimals,
		Value:        decimal.NewFromBigInt(value, 0),
		Recipient:    recipient,
	}
}

// RecordParams are the kind-independent fields of a new record.
type RecordParams struct {
	Wallet         common.Address
	ChainID        uint64
	TxHash         common.Hash
	Nonce          uint64
	ViaBroadcaster bool
	RelayAddress   string
	Amounts        []Amount
	Fee            *Amount
}

// NewRecord assembles a pending record for a freshly submitted transaction.
// The record ID is the transaction hash hex, which is unique per chain and
// lets cancellations reference their originals directly.
func NewRecord(kind Kind, p RecordParams, detail Detail) Record {
	return Record{
		ID:             p.TxHash.Hex(),
		Wallet:         p.Wallet,
		ChainID:        p.ChainID,
		Kind:           kind,
		Status:         StatusPending,
		TxHash:         p.TxHash,
		Nonce:          p.Nonce,
		ViaBroadcaster: p.ViaBroadcaster,
		RelayAddress:   p.RelayAddress,
		Amounts:        p.Amounts,
		Fee:            p.Fee,
		Detail:         detail,
		SubmittedAt:    time.Now(),
	}
}
