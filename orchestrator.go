package txpipeline

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/KyberNetwork/logger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/tranvictor/jarvis/networks"

	"github.com/Railway-Wallet/Railway-Wallet-sub005/broadcaster"
	"github.com/Railway-Wallet/Railway-Wallet-sub005/idempotency"
	"github.com/Railway-Wallet/Railway-Wallet-sub005/internal/circuitbreaker"
	"github.com/Railway-Wallet/Railway-Wallet-sub005/ledger"
)

// Defaults are the orchestrator's tunables. Zero values fall back to the
// package constants.
type Defaults struct {
	EstimateTimeout time.Duration
	WatchInterval   time.Duration
	PendingTimeout  time.Duration
	SelectionMode   broadcaster.SelectionMode
	Breaker         circuitbreaker.Config
	IdempotencyTTL  time.Duration
}

func (d Defaults) withFallbacks() Defaults {
	if d.EstimateTimeout <= 0 {
		d.EstimateTimeout = DefaultEstimateTimeout
	}
	if d.WatchInterval <= 0 {
		d.WatchInterval = DefaultWatchInterval
	}
	if d.PendingTimeout <= 0 {
		d.PendingTimeout = DefaultPendingTimeout
	}
	if d.IdempotencyTTL <= 0 {
		d.IdempotencyTTL = time.Hour
	}
	return d
}

// Orchestrator drives transaction attempts through the estimate, select,
// prove, allocate, submit sequence. One orchestrator serves many wallets and
// networks concurrently; per-attempt state lives on the attempt, shared state
// (directory, nonce memory, breakers, ledger) on the orchestrator.
type Orchestrator struct {
	chain     ChainClient
	relay     RelayClient
	keys      KeyStore
	proofGen  *ProofGenerator
	directory *broadcaster.Directory
	selector  *broadcaster.Selector
	store     ledger.Store
	blocklist AddressBlocklist

	estimator *GasEstimator
	nonces    *NonceAllocator
	submitter *Submitter
	watcher   *PendingWatcher
	breakers  *circuitbreaker.Set
	idem      idempotency.Store

	defaults Defaults

	stateHook    StateHook
	proofHook    ProofProgressHook
	beforeSubmit BeforeSubmitHook
	afterSubmit  AfterSubmitHook
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithChainClient sets the chain RPC capability. Required.
func WithChainClient(c ChainClient) Option {
	return func(o *Orchestrator) { o.chain = c }
}

// WithRelayClient sets the broadcaster relay capability. Without it every
// attempt runs self-signed.
func WithRelayClient(r RelayClient) Option {
	return func(o *Orchestrator) { o.relay = r }
}

// WithKeyStore sets the signing key provider for self-signed submissions.
func WithKeyStore(k KeyStore) Option {
	return func(o *Orchestrator) { o.keys = k }
}

// WithProofEngine sets the proof engine for proof-backed transaction kinds.
func WithProofEngine(e ProofEngine) Option {
	return func(o *Orchestrator) { o.proofGen = NewProofGenerator(e) }
}

// WithDirectory shares an externally fed broadcaster directory.
func WithDirectory(d *broadcaster.Directory) Option {
	return func(o *Orchestrator) { o.directory = d }
}

// WithSelector overrides the broadcaster selector, mainly for deterministic
// selection in tests.
func WithSelector(s *broadcaster.Selector) Option {
	return func(o *Orchestrator) { o.selector = s }
}

// WithLedger sets the transaction record store.
func WithLedger(s ledger.Store) Option {
	return func(o *Orchestrator) { o.store = s }
}

// WithBlocklist sets the address screening list.
func WithBlocklist(b AddressBlocklist) Option {
	return func(o *Orchestrator) { o.blocklist = b }
}

// WithIdempotencyStore overrides the in-memory attempt dedup store.
func WithIdempotencyStore(s idempotency.Store) Option {
	return func(o *Orchestrator) { o.idem = s }
}

// WithDefaults overrides the tunables.
func WithDefaults(d Defaults) Option {
	return func(o *Orchestrator) { o.defaults = d }
}

// WithStateHook observes attempt state transitions.
func WithStateHook(h StateHook) Option {
	return func(o *Orchestrator) { o.stateHook = h }
}

// WithProofProgressHook observes proof generation progress.
func WithProofProgressHook(h ProofProgressHook) Option {
	return func(o *Orchestrator) { o.proofHook = h }
}

// WithBeforeSubmitHook installs a pre-dispatch hook.
func WithBeforeSubmitHook(h BeforeSubmitHook) Option {
	return func(o *Orchestrator) { o.beforeSubmit = h }
}

// WithAfterSubmitHook installs a post-dispatch hook.
func WithAfterSubmitHook(h AfterSubmitHook) Option {
	return func(o *Orchestrator) { o.afterSubmit = h }
}

// NewOrchestrator builds an orchestrator from options. A chain client is
// mandatory; everything else has a working default.
func NewOrchestrator(opts ...Option) (*Orchestrator, error) {
	o := &Orchestrator{}
	for _, opt := range opts {
		opt(o)
	}
	if o.chain == nil {
		return nil, ErrChainClientNil
	}

	o.defaults = o.defaults.withFallbacks()
	if o.directory == nil {
		o.directory = broadcaster.NewDirectory()
	}
	if o.selector == nil {
		o.selector = broadcaster.NewSelector(nil)
	}
	if o.store == nil {
		o.store = ledger.NewMemoryStore()
	}
	if o.blocklist == nil {
		o.blocklist = NoBlocklist{}
	}
	if o.idem == nil {
		o.idem = idempotency.NewMemoryStore(o.defaults.IdempotencyTTL)
	}

	o.estimator = NewGasEstimator(o.chain)
	o.nonces = NewNonceAllocator(o.chain)
	o.submitter = NewSubmitter(o.chain, o.relay, o.blocklist)
	o.watcher = NewPendingWatcher(o.chain, o.store, o.defaults.WatchInterval, o.defaults.PendingTimeout)
	o.breakers = circuitbreaker.NewSet(o.defaults.Breaker)
	return o, nil
}

// Directory exposes the broadcaster directory so the relay-network feed can
// push status and candidate events into it.
func (o *Orchestrator) Directory() *broadcaster.Directory { return o.directory }

// Ledger exposes the transaction record store.
func (o *Orchestrator) Ledger() ledger.Store { return o.store }

// Watcher exposes the pending transaction watcher.
func (o *Orchestrator) Watcher() *PendingWatcher { return o.watcher }

// attempt is the per-transaction state machine.
type attempt struct {
	o      *Orchestrator
	intent *TxIntent
	state  PipelineState
}

func (a *attempt) setState(next PipelineState) {
	prev := a.state
	a.state = next
	logger.WithFields(logger.Fields{
		"kind": a.intent.Kind.String(),
		"from": prev.String(),
		"to":   next.String(),
	}).Debug("attempt state changed")
	if a.o.stateHook != nil {
		a.o.stateHook(prev, next)
	}
}

// fail terminates the attempt, tagging the error with the state it died in.
func (a *attempt) fail(broadcasterAttributable bool, err error) error {
	failedIn := a.state
	a.setState(StateFailed)
	return &PipelineError{
		State:              failedIn,
		IsBroadcasterError: broadcasterAttributable,
		Err:                err,
	}
}

// succeed terminates the attempt successfully.
func (a *attempt) succeed() {
	a.setState(StateSucceeded)
}

// PerformTransaction runs one attempt end to end and returns the submitted
// transaction hash. A retry with the same IdempotencyKey after a successful
// submission returns the original hash without submitting again.
func (o *Orchestrator) PerformTransaction(ctx context.Context, intent *TxIntent) (common.Hash, error) {
	if intent == nil {
		return common.Hash{}, ErrInvalidIntent
	}
	if intent.Network == nil {
		return common.Hash{}, ErrNetworkNil
	}

	if intent.IdempotencyKey != "" {
		rec, err := o.idem.Begin(intent.IdempotencyKey)
		if errors.Is(err, idempotency.ErrDuplicateKey) {
			if rec.Status == idempotency.StatusSubmitted {
				return rec.TxHash, nil
			}
			return common.Hash{}, errors.Join(ErrSubmissionFailed, err)
		}
		if err != nil {
			return common.Hash{}, errors.Join(ErrSubmissionFailed, err)
		}
	}

	hash, err := o.run(ctx, intent)

	if intent.IdempotencyKey != "" {
		if err != nil {
			if markErr := o.idem.MarkFailed(intent.IdempotencyKey, err.Error()); markErr != nil {
				logger.WithFields(logger.Fields{"error": markErr}).Error("couldn't release idempotency key")
			}
		} else if markErr := o.idem.MarkSubmitted(intent.IdempotencyKey, hash); markErr != nil {
			logger.WithFields(logger.Fields{"error": markErr}).Error("couldn't settle idempotency key")
		}
	}
	return hash, err
}

func (o *Orchestrator) run(ctx context.Context, intent *TxIntent) (common.Hash, error) {
	a := &attempt{o: o, intent: intent, state: StateIdle}
	chainID := intent.Network.GetChainID()
	breaker := o.breakers.For(chainID)

	// Gas.
	a.setState(StateEstimatingGas)
	if !breaker.Allow() {
		return common.Hash{}, a.fail(false, ErrCircuitBreakerOpen)
	}
	gas, err := o.resolveGas(ctx, a, breaker)
	if err != nil {
		return common.Hash{}, a.fail(false, err)
	}

	// Broadcaster.
	var cand *broadcaster.Candidate
	if !intent.SelfSigned {
		a.setState(StateSelectingBroadcaster)
		cand, err = o.selectBroadcaster(intent, chainID)
		if err != nil {
			return common.Hash{}, a.fail(true, err)
		}
	}
	viaBroadcaster := cand != nil
	minGasPrice := OverallBatchMinGasPrice(viaBroadcaster, gas)

	// Fee accounting must balance before anything expensive runs.
	if err := o.checkAmountBalance(intent, cand, gas); err != nil {
		return common.Hash{}, a.fail(false, err)
	}

	// Proof.
	call := intent.Call
	var nullifiers []common.Hash
	if intent.RequiresProof {
		a.setState(StateGeneratingProof)
		artifact, err := o.resolveProof(ctx, intent, cand, gas, minGasPrice)
		if err != nil {
			return common.Hash{}, a.fail(false, err)
		}
		call = &artifact.Call
		nullifiers = artifact.Nullifiers
	}
	if call == nil {
		return common.Hash{}, a.fail(false, fmt.Errorf("%w: intent has no populated call", ErrInvalidIntent))
	}

	// Nonce. Broadcaster submissions are signed by the relay with its own
	// nonce; only the self-signed path allocates.
	a.setState(StateAllocatingNonce)
	var nonceVal uint64
	if !viaBroadcaster {
		nonceVal, err = o.nonces.Next(ctx, intent.Network, intent.Wallet, intent.ManualNonce)
		if err != nil {
			breaker.RecordFailure()
			return common.Hash{}, a.fail(false, err)
		}
	}

	// Submit.
	a.setState(StateSubmitting)
	var signingKey *ecdsa.PrivateKey
	if !viaBroadcaster {
		if o.keys == nil {
			return common.Hash{}, a.fail(false, ErrNoSubmitterPath)
		}
		signingKey, err = o.keys.SigningKey(ctx, intent.AuthToken, intent.Wallet)
		if err != nil {
			return common.Hash{}, a.fail(false, errors.Join(ErrSubmissionFailed, err))
		}
	}

	params := SubmitParams{
		Network:     intent.Network,
		Call:        call,
		Gas:         gas,
		Nonce:       nonceVal,
		Broadcaster: cand,
		MinGasPrice: minGasPrice,
		SigningKey:  signingKey,
		Nullifiers:  nullifiers,
	}
	if intent.Cancel != nil {
		params.CancelGasLimitOverride = intent.Cancel.OriginalGasLimit + 1
	}
	if o.beforeSubmit != nil {
		if err := o.beforeSubmit(ctx, &params); err != nil {
			return common.Hash{}, a.fail(false, errors.Join(ErrSubmissionFailed, err))
		}
	}

	handle, err := o.submitter.Submit(ctx, params)
	if err != nil {
		// The breaker tracks chain RPC health; a relay failure says nothing
		// about the chain and must not block self-signed attempts.
		if !viaBroadcaster {
			breaker.RecordFailure()
		}
		return common.Hash{}, a.fail(viaBroadcaster || IsBroadcasterError(err), err)
	}
	breaker.RecordSuccess()

	if !viaBroadcaster {
		o.nonces.RecordSubmitted(intent.Network, intent.Wallet, handle.Nonce)
	}
	if o.afterSubmit != nil {
		o.afterSubmit(handle)
	}

	// The transaction is on the network; a ledger write failure must not turn
	// a successful submission into a reported failure.
	o.appendRecord(intent, handle, gas, cand)

	a.succeed()
	return handle.Hash, nil
}

func (o *Orchestrator) resolveGas(ctx context.Context, a *attempt, breaker *circuitbreaker.Breaker) (GasDetails, error) {
	intent := a.intent
	if intent.GasOverride != nil {
		if err := validateIntentCardinality(intent.Kind, intent.Amounts, intent.NFTAmounts); err != nil && intent.Kind != KindCancel {
			return GasDetails{}, err
		}
		return *intent.GasOverride, nil
	}
	if intent.Call == nil {
		return GasDetails{}, fmt.Errorf("%w: gas estimation requires a populated call", ErrInvalidIntent)
	}

	estimateCtx, cancel := context.WithTimeout(ctx, o.defaults.EstimateTimeout)
	defer cancel()

	gas, err := o.estimator.Estimate(estimateCtx, intent.Network, intent.Kind, intent.Amounts, intent.NFTAmounts, GasCall{
		From:  intent.Call.From,
		To:    &intent.Call.To,
		Value: intent.Call.Value,
		Data:  intent.Call.Data,
	})
	if err != nil {
		if errors.Is(err, ErrEstimationFailed) {
			breaker.RecordFailure()
		}
		return GasDetails{}, err
	}
	breaker.RecordSuccess()
	return gas, nil
}

func (o *Orchestrator) selectBroadcaster(intent *TxIntent, chainID uint64) (*broadcaster.Candidate, error) {
	candidates, status := o.directory.Snapshot(chainID)
	cand, err := o.selector.Select(candidates, intent.FeeAsset.Address, intent.SelectionMode, intent.ManualRelay)
	if err != nil {
		return nil, errors.Join(ErrBroadcasterUnavailable, err)
	}
	if cand == nil {
		if intent.PublicWalletFallback {
			logger.WithFields(logger.Fields{
				"chain_id": chainID,
				"status":   status.String(),
			}).Info("no broadcaster available, falling back to public wallet")
			return nil, nil
		}
		return nil, fmt.Errorf("%w: directory status %s", ErrBroadcasterUnavailable, status)
	}
	return cand, nil
}

// checkAmountBalance verifies the per-asset accounting of the intent once the
// broadcaster fee is known. Kinds without amount lists (cancel) skip it.
func (o *Orchestrator) checkAmountBalance(intent *TxIntent, cand *broadcaster.Candidate, gas GasDetails) error {
	if len(intent.Amounts) == 0 {
		return nil
	}
	var fee *AmountRecipient
	if cand != nil {
		fee = &AmountRecipient{
			Asset:            intent.FeeAsset,
			Amount:           cand.FeeForGas(gas.Limit()),
			RecipientAddress: cand.RelayAddress,
		}
	}
	group, err := NewAdjustedAmountGroup(intent.Amounts, fee)
	if err != nil {
		return err
	}
	return group.Validate()
}

func (o *Orchestrator) resolveProof(ctx context.Context, intent *TxIntent, cand *broadcaster.Candidate, gas GasDetails, minGasPrice *big.Int) (*ProofArtifact, error) {
	if o.proofGen == nil {
		return nil, errors.Join(ErrProofFailed, fmt.Errorf("no proof engine configured"))
	}

	var fee *big.Int
	relayAddr := ""
	if cand != nil {
		fee = cand.FeeForGas(gas.Limit())
		relayAddr = cand.RelayAddress
	}
	pi := intent.proofIntent(fee, relayAddr, minGasPrice)

	if intent.PreparedProof != nil {
		artifact, err := intent.PreparedProof.Wait(ctx)
		if err == nil && artifact.MatchesIntent(pi) {
			return artifact, nil
		}
		logger.WithFields(logger.Fields{
			"wallet_id": intent.WalletID,
		}).Info("prepared proof stale or failed, regenerating")
	}

	task := o.proofGen.Generate(ctx, pi)
	o.forwardProgress(task)
	return task.Wait(ctx)
}

// forwardProgress streams proof progress into the hook, if installed.
func (o *Orchestrator) forwardProgress(task *ProofTask) {
	if o.proofHook == nil {
		return
	}
	go func() {
		for p := range task.Progress() {
			o.proofHook(p)
		}
	}()
}

func (o *Orchestrator) appendRecord(intent *TxIntent, handle TxHandle, gas GasDetails, cand *broadcaster.Candidate) {
	if o.store == nil {
		return
	}

	amounts := make([]ledger.Amount, 0, len(intent.Amounts))
	for _, ar := range intent.Amounts {
		amounts = append(amounts, ledger.AmountFromBig(ar.Asset.Address, ar.Asset.Symbol, ar.Asset.Decimals, ar.Amount, ar.RecipientAddress))
	}
	var fee *ledger.Amount
	relayAddr := ""
	if cand != nil {
		relayAddr = cand.RelayAddress
		f := ledger.AmountFromBig(intent.FeeAsset.Address, intent.FeeAsset.Symbol, intent.FeeAsset.Decimals, cand.FeeForGas(gas.Limit()), cand.RelayAddress)
		fee = &f
	}

	rec := ledger.NewRecord(ledgerKind(intent.Kind), ledger.RecordParams{
		Wallet:         intent.Wallet,
		ChainID:        intent.Network.GetChainID(),
		TxHash:         handle.Hash,
		Nonce:          handle.Nonce,
		ViaBroadcaster: cand != nil,
		RelayAddress:   relayAddr,
		Amounts:        amounts,
		Fee:            fee,
	}, intent.Detail)

	if err := o.store.Append(rec); err != nil {
		logger.WithFields(logger.Fields{
			"tx":    handle.Hash.Hex(),
			"error": errors.Join(ErrLedgerWriteFailed, err),
		}).Error("transaction submitted but ledger write failed")
		return
	}

	if intent.Cancel != nil {
		if err := o.store.MarkReplaced(intent.Cancel.OriginalTxID, rec.ID); err != nil {
			logger.WithFields(logger.Fields{
				"original": intent.Cancel.OriginalTxID,
				"cancel":   rec.ID,
				"error":    err,
			}).Error("couldn't mark original transaction replaced")
		}
	}
}

func ledgerKind(k TxKind) ledger.Kind {
	switch k {
	case KindShield:
		return ledger.KindShield
	case KindUnshield:
		return ledger.KindUnshield
	case KindApprove:
		return ledger.KindApprove
	case KindSwap:
		return ledger.KindSwap
	case KindMint:
		return ledger.KindMint
	case KindCancel:
		return ledger.KindCancel
	default:
		return ledger.KindSend
	}
}

// PerformGenerateProof starts proof generation ahead of final confirmation so
// the user isn't kept waiting after they approve. The returned task can be set
// as the intent's PreparedProof; it is used only if the intent is unchanged
// when the attempt runs.
func (o *Orchestrator) PerformGenerateProof(ctx context.Context, intent *TxIntent, cand *broadcaster.Candidate, gas GasDetails) (*ProofTask, error) {
	if o.proofGen == nil {
		return nil, errors.Join(ErrProofFailed, fmt.Errorf("no proof engine configured"))
	}
	var fee *big.Int
	relayAddr := ""
	if cand != nil {
		fee = cand.FeeForGas(gas.Limit())
		relayAddr = cand.RelayAddress
	}
	minGasPrice := OverallBatchMinGasPrice(cand != nil, gas)
	task := o.proofGen.Generate(ctx, intent.proofIntent(fee, relayAddr, minGasPrice))
	o.forwardProgress(task)
	return task, nil
}

// PerformCancelTransaction replaces a pending transaction with a zero-value
// self-transfer at the same nonce. Fees are bumped by the mempool-mandated
// margins and the gas limit is the original's plus one. Cancellations are
// always self-signed.
func (o *Orchestrator) PerformCancelTransaction(ctx context.Context, network networks.Network, wallet common.Address, authToken string, target CancelTarget) (common.Hash, error) {
	replacement := CancelGasDetails(target.OriginalGas)
	if !ValidReplacement(target.OriginalGas, replacement) {
		return common.Hash{}, errors.Join(ErrReplacementUnderpriced, fmt.Errorf("cancel fees don't clear replacement margins"))
	}
	if replacement.Estimate == 0 {
		replacement.Estimate = target.OriginalGasLimit
	}

	nonceVal := target.OriginalNonce
	intent := &TxIntent{
		Kind:        KindCancel,
		Network:     network,
		Wallet:      wallet,
		AuthToken:   authToken,
		SelfSigned:  true,
		ManualNonce: &nonceVal,
		GasOverride: &replacement,
		Call: &PopulatedCall{
			From: wallet,
			To:   wallet,
		},
		Detail: ledger.CancelDetail{OriginalTxID: target.OriginalTxID},
		Cancel: &target,
	}
	return o.PerformTransaction(ctx, intent)
}
