package txpipeline

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/tranvictor/jarvis/networks"

	"github.com/Railway-Wallet/Railway-Wallet-sub005/broadcaster"
	"github.com/Railway-Wallet/Railway-Wallet-sub005/ledger"
)

// TxRequest builds a transaction intent fluently (similar to go-resty's R()
// method) and executes it on the orchestrator.
type TxRequest struct {
	o      *Orchestrator
	intent TxIntent
}

// R creates a new transaction request. The request inherits the
// orchestrator's default selection mode.
func (o *Orchestrator) R() *TxRequest {
	return &TxRequest{
		o: o,
		intent: TxIntent{
			Kind:          KindSend,
			Network:       networks.EthereumMainnet,
			SelectionMode: o.defaults.SelectionMode,
		},
	}
}

// SetKind sets the transaction kind.
func (r *TxRequest) SetKind(kind TxKind) *TxRequest {
	r.intent.Kind = kind
	return r
}

// SetNetwork sets the target network.
func (r *TxRequest) SetNetwork(network networks.Network) *TxRequest {
	if network != nil {
		r.intent.Network = network
	}
	return r
}

// SetWallet sets the spending wallet and its key-store identity.
func (r *TxRequest) SetWallet(wallet common.Address, walletID string) *TxRequest {
	r.intent.Wallet = wallet
	r.intent.WalletID = walletID
	return r
}

// SetAuthToken sets the key-store unlock token for self-signed submissions.
func (r *TxRequest) SetAuthToken(token string) *TxRequest {
	r.intent.AuthToken = token
	return r
}

// AddAmount appends one fungible transfer line.
func (r *TxRequest) AddAmount(asset Asset, amount *big.Int, recipient string) *TxRequest {
	r.intent.Amounts = append(r.intent.Amounts, AmountRecipient{
		Asset:            asset,
		Amount:           amount,
		RecipientAddress: recipient,
	})
	return r
}

// AddNFTAmount appends one non-fungible transfer line.
func (r *TxRequest) AddNFTAmount(collection common.Address, tokenID, amount *big.Int, recipient string) *TxRequest {
	r.intent.NFTAmounts = append(r.intent.NFTAmounts, NFTAmountRecipient{
		Collection:       collection,
		TokenID:          tokenID,
		Amount:           amount,
		RecipientAddress: recipient,
	})
	return r
}

// SetCall sets the populated call. Required for kinds without a proof; used
// as the gas-estimation call for proof-backed kinds.
func (r *TxRequest) SetCall(call *PopulatedCall) *TxRequest {
	r.intent.Call = call
	return r
}

// SetRequiresProof marks the intent as proof-backed.
func (r *TxRequest) SetRequiresProof(required bool) *TxRequest {
	r.intent.RequiresProof = required
	return r
}

// SetPreparedProof attaches a proof generated ahead of confirmation.
func (r *TxRequest) SetPreparedProof(task *ProofTask) *TxRequest {
	r.intent.PreparedProof = task
	return r
}

// SetMemo sets the private memo carried with the transaction.
func (r *TxRequest) SetMemo(memo string) *TxRequest {
	r.intent.Memo = memo
	return r
}

// SetShowSenderAddress reveals the sender address to the recipient.
func (r *TxRequest) SetShowSenderAddress(show bool) *TxRequest {
	r.intent.ShowSenderAddress = show
	return r
}

// SetSelfSigned forces the public-wallet path, skipping broadcasters.
func (r *TxRequest) SetSelfSigned(selfSigned bool) *TxRequest {
	r.intent.SelfSigned = selfSigned
	return r
}

// SetPublicWalletFallback permits falling back to the public wallet when no
// broadcaster is available.
func (r *TxRequest) SetPublicWalletFallback(allow bool) *TxRequest {
	r.intent.PublicWalletFallback = allow
	return r
}

// SetSelectionMode sets the broadcaster selection mode.
func (r *TxRequest) SetSelectionMode(mode broadcaster.SelectionMode) *TxRequest {
	r.intent.SelectionMode = mode
	return r
}

// SetManualRelay designates a specific relay, used with manual selection.
func (r *TxRequest) SetManualRelay(relayAddress string) *TxRequest {
	r.intent.ManualRelay = relayAddress
	return r
}

// SetFeeAsset sets the asset the broadcaster fee is paid in.
func (r *TxRequest) SetFeeAsset(asset Asset) *TxRequest {
	r.intent.FeeAsset = asset
	return r
}

// SetManualNonce bypasses nonce allocation.
func (r *TxRequest) SetManualNonce(n uint64) *TxRequest {
	r.intent.ManualNonce = &n
	return r
}

// SetGasOverride skips gas estimation.
func (r *TxRequest) SetGasOverride(gas GasDetails) *TxRequest {
	r.intent.GasOverride = &gas
	return r
}

// SetIdempotencyKey deduplicates retries of this request.
func (r *TxRequest) SetIdempotencyKey(key string) *TxRequest {
	r.intent.IdempotencyKey = key
	return r
}

// SetDetail sets the kind-specific ledger payload.
func (r *TxRequest) SetDetail(detail ledger.Detail) *TxRequest {
	r.intent.Detail = detail
	return r
}

// Intent returns a copy of the intent built so far.
func (r *TxRequest) Intent() TxIntent {
	return r.intent
}

// Execute runs the attempt with a background context.
func (r *TxRequest) Execute() (common.Hash, error) {
	return r.ExecuteContext(context.Background())
}

// ExecuteContext runs the attempt.
func (r *TxRequest) ExecuteContext(ctx context.Context) (common.Hash, error) {
	intent := r.intent
	return r.o.PerformTransaction(ctx, &intent)
}
