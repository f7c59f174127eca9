package txpipeline

import (
	"errors"
	"fmt"
)

// Failure taxonomy. Callers classify with errors.Is; the orchestrator never
// retries on its own; a user retry is a brand-new attempt from StateIdle.
var (
	// ErrInvalidIntent means the caller violated a precondition (for example
	// the wrong cardinality of amounts for a single-asset operation). Never
	// retried; it indicates a programming error upstream.
	ErrInvalidIntent = fmt.Errorf("invalid transaction intent")

	// ErrEstimationFailed means the gas/fee query failed. Retryable by
	// re-running the whole attempt.
	ErrEstimationFailed = fmt.Errorf("gas estimation failed")

	// ErrBroadcasterUnavailable means the selected or requested broadcaster is
	// no longer live. Triggers fallback to self-paid mode or re-selection.
	ErrBroadcasterUnavailable = fmt.Errorf("broadcaster unavailable")

	// ErrProofFailed means the proof engine failed. Surfaced with the
	// underlying cause; never retried automatically.
	ErrProofFailed = fmt.Errorf("proof generation failed")

	// ErrNonceAllocationFailed means the chain nonce read failed.
	ErrNonceAllocationFailed = fmt.Errorf("nonce allocation failed")

	// ErrSubmissionFailed means the chain rejected or failed to accept the
	// signed call.
	ErrSubmissionFailed = fmt.Errorf("transaction submission failed")

	// ErrLedgerWriteFailed means persistence failed after a successful
	// submission. Logged but never rolled back: the transaction already
	// happened on chain.
	ErrLedgerWriteFailed = fmt.Errorf("ledger write failed")

	// ErrReplacementUnderpriced means a cancel/replacement tx does not exceed
	// the original fees by the network-required margins.
	ErrReplacementUnderpriced = fmt.Errorf("replacement gas fees below required margin over original")

	// ErrBlockedAddress means the sender or a recipient address is blocked.
	ErrBlockedAddress = fmt.Errorf("address is blocked")

	// ErrCircuitBreakerOpen means the RPC circuit breaker rejected the call.
	ErrCircuitBreakerOpen = fmt.Errorf("circuit breaker is open: network temporarily unavailable")

	// Guard sentinels for orchestrator construction and intents.
	ErrNetworkNil      = fmt.Errorf("network cannot be nil")
	ErrChainClientNil  = fmt.Errorf("chain client cannot be nil")
	ErrNoGasDetails    = fmt.Errorf("no gas details for this transaction")
	ErrNoSubmitterPath = fmt.Errorf("no broadcaster selected and no public wallet to self-pay")
	ErrMinGasPriceNil  = fmt.Errorf("broadcaster submission requires overall batch min gas price")
)

// PipelineError wraps a step-level failure with the state it occurred in and
// whether it is attributable to the broadcaster, so the caller can decide to
// blacklist the candidate versus simply retrying. The full cause chain is
// preserved through Unwrap.
type PipelineError struct {
	State              PipelineState
	IsBroadcasterError bool
	Err                error
}

func (e *PipelineError) Error() string {
	if e.IsBroadcasterError {
		return fmt.Sprintf("pipeline failed at %s (broadcaster error): %s", e.State, e.Err)
	}
	return fmt.Sprintf("pipeline failed at %s: %s", e.State, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// IsBroadcasterError reports whether err carries the broadcaster-attribution
// flag anywhere in its chain.
func IsBroadcasterError(err error) bool {
	var pe *PipelineError
	for errors.As(err, &pe) {
		if pe.IsBroadcasterError {
			return true
		}
		err = pe.Err
	}
	return false
}
