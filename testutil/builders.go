package testutil

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Receipt builders

// NewReceipt creates a test receipt with the given status for a known hash.
func NewReceipt(txHash common.Hash, status uint64, gasUsed uint64) *types.Receipt {
	return &types.Receipt{
		Status:            status,
		TxHash:            txHash,
		BlockNumber:       big.NewInt(12345678),
		BlockHash:         common.HexToHash("0xabcdef1234567890abcdef1234567890abcdef1234567890abcdef1234567890"),
		GasUsed:           gasUsed,
		CumulativeGasUsed: gasUsed,
	}
}

// NewSuccessReceipt creates a successful receipt.
func NewSuccessReceipt(txHash common.Hash) *types.Receipt {
	return NewReceipt(txHash, types.ReceiptStatusSuccessful, 21000)
}

// NewFailedReceipt creates a reverted receipt.
func NewFailedReceipt(txHash common.Hash) *types.Receipt {
	return NewReceipt(txHash, types.ReceiptStatusFailed, 21000)
}
