package txpipeline

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/tranvictor/jarvis/networks"

	"github.com/Railway-Wallet/Railway-Wallet-sub005/broadcaster"
	"github.com/Railway-Wallet/Railway-Wallet-sub005/ledger"
)

// CancelTarget identifies the pending transaction a cancellation displaces.
// The replacement reuses the original's nonce and its gas limit plus one, and
// must beat its fees by the protocol-mandated margin.
type CancelTarget struct {
	OriginalTxID     string
	OriginalNonce    uint64
	OriginalGas      GasDetails
	OriginalGasLimit uint64
}

// TxIntent is everything the orchestrator needs to run one transaction
// attempt. Intents are value objects; an orchestrator never mutates one.
type TxIntent struct {
	Kind    TxKind
	Network networks.Network

	// Wallet is the signing/spending public address; WalletID names the
	// wallet in the external key store.
	Wallet   common.Address
	WalletID string

	// AuthToken unlocks the signing key for self-signed submissions.
	AuthToken string

	Amounts    []AmountRecipient
	NFTAmounts []NFTAmountRecipient

	// Call is the pre-populated call. Required unless GasOverride is set: gas
	// estimation runs against it even for proof-backed kinds, whose final
	// call is then taken from the proof artifact.
	Call          *PopulatedCall
	RequiresProof bool

	// PreparedProof is an optional proof generated ahead of confirmation.
	// It is used only if its bound intent still matches; otherwise a fresh
	// proof is generated.
	PreparedProof *ProofTask

	Memo              string
	ShowSenderAddress bool

	// SelfSigned forces the public-wallet path, skipping broadcaster
	// selection entirely. PublicWalletFallback instead permits falling back
	// to self-signed when no broadcaster is available.
	SelfSigned           bool
	PublicWalletFallback bool

	SelectionMode broadcaster.SelectionMode
	ManualRelay   string
	FeeAsset      Asset

	// ManualNonce bypasses allocation and is used exactly as given.
	ManualNonce *uint64

	// GasOverride skips estimation. Cancellations always set it.
	GasOverride *GasDetails

	// IdempotencyKey, when set, deduplicates retries of this attempt.
	IdempotencyKey string

	// Detail is the kind-specific ledger payload for the record written on
	// successful submission.
	Detail ledger.Detail

	// Cancel is set only for KindCancel intents.
	Cancel *CancelTarget
}

// proofIntent derives the proof generator's input from the attempt's intent
// and the negotiated broadcaster fee. A nil fee means the self-signed path.
func (in *TxIntent) proofIntent(broadcasterFee *big.Int, relayAddress string, minGasPrice *big.Int) ProofIntent {
	var fee *AmountRecipient
	if broadcasterFee != nil {
		fee = &AmountRecipient{
			Asset:            in.FeeAsset,
			Amount:           broadcasterFee,
			RecipientAddress: relayAddress,
		}
	}
	return ProofIntent{
		Network:              in.Network,
		WalletID:             in.WalletID,
		Amounts:              in.Amounts,
		NFTAmounts:           in.NFTAmounts,
		BroadcasterFee:       fee,
		SendWithPublicWallet: in.SelfSigned,
		ShowSenderAddress:    in.ShowSenderAddress,
		Memo:                 in.Memo,
		MinGasPrice:          minGasPrice,
	}
}
