package txpipeline

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"math/big"

	"github.com/KyberNetwork/logger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/tranvictor/jarvis/networks"

	"github.com/Railway-Wallet/Railway-Wallet-sub005/broadcaster"
)

// SubmitParams carries everything a single submission attempt needs. Exactly
// one dispatch happens per Submit call: self-signed when Broadcaster is nil,
// relayed otherwise.
type SubmitParams struct {
	Network     networks.Network
	Call        *PopulatedCall
	Gas         GasDetails
	Nonce       uint64
	Broadcaster *broadcaster.Candidate
	// MinGasPrice is the floor the relay commits to; required on the
	// broadcaster path, ignored on the self-signed path.
	MinGasPrice *big.Int
	SigningKey  *ecdsa.PrivateKey
	Nullifiers  []common.Hash
	// CancelGasLimitOverride, when non-zero, replaces the buffered gas limit.
	// Cancellations use the original transaction's limit plus one so the
	// replacement is byte-distinguishable without re-estimating.
	CancelGasLimitOverride uint64
}

// Submitter performs the final network dispatch of a fully assembled
// transaction. It never retries; retry policy lives in the orchestrator.
type Submitter struct {
	chain     ChainClient
	relay     RelayClient
	blocklist AddressBlocklist
}

// NewSubmitter wires a submitter over the chain and relay capabilities.
// A nil blocklist disables address screening.
func NewSubmitter(chain ChainClient, relay RelayClient, blocklist AddressBlocklist) *Submitter {
	if blocklist == nil {
		blocklist = NoBlocklist{}
	}
	return &Submitter{chain: chain, relay: relay, blocklist: blocklist}
}

// Submit dispatches the transaction once and returns its handle. Failures on
// the broadcaster path are tagged broadcaster-attributable via the returned
// error; self-signed failures are not.
func (s *Submitter) Submit(ctx context.Context, p SubmitParams) (TxHandle, error) {
	if p.Network == nil {
		return TxHandle{}, ErrNetworkNil
	}
	if p.Call == nil {
		return TxHandle{}, errors.Join(ErrSubmissionFailed, errors.New("nil call"))
	}
	if err := s.screenAddresses(p.Call); err != nil {
		return TxHandle{}, err
	}
	if err := p.Gas.Validate(); err != nil {
		return TxHandle{}, errors.Join(ErrSubmissionFailed, err)
	}

	if p.Broadcaster == nil {
		return s.submitSelf(ctx, p)
	}
	return s.submitRelayed(ctx, p)
}

func (s *Submitter) screenAddresses(call *PopulatedCall) error {
	for _, addr := range []string{call.From.Hex(), call.To.Hex()} {
		if s.blocklist.IsBlocked(addr) {
			return errors.Join(ErrBlockedAddress, errors.New(addr))
		}
	}
	return nil
}

func (s *Submitter) submitSelf(ctx context.Context, p SubmitParams) (TxHandle, error) {
	if s.chain == nil {
		return TxHandle{}, ErrChainClientNil
	}
	if p.SigningKey == nil {
		return TxHandle{}, errors.Join(ErrSubmissionFailed, errors.New("no signing key for self-signed submission"))
	}

	handle, err := s.chain.SignAndSend(ctx, p.SigningKey, p.Network, p.Call, p.Gas, p.Nonce, p.CancelGasLimitOverride)
	if err != nil {
		return TxHandle{}, errors.Join(ErrSubmissionFailed, err)
	}
	logger.WithFields(logger.Fields{
		"chain_id": p.Network.GetChainID(),
		"tx":       handle.Hash.Hex(),
		"nonce":    handle.Nonce,
	}).Info("transaction submitted self-signed")
	return handle, nil
}

func (s *Submitter) submitRelayed(ctx context.Context, p SubmitParams) (TxHandle, error) {
	if s.relay == nil {
		return TxHandle{}, ErrNoSubmitterPath
	}
	if p.MinGasPrice == nil {
		return TxHandle{}, ErrMinGasPriceNil
	}

	hash, err := s.relay.Relay(ctx, p.Network, p.Call, p.Broadcaster.RelayAddress, p.Broadcaster.FeesID, p.Nullifiers, p.MinGasPrice)
	if err != nil {
		return TxHandle{}, &PipelineError{
			State:              StateSubmitting,
			IsBroadcasterError: true,
			Err:                errors.Join(ErrSubmissionFailed, err),
		}
	}
	logger.WithFields(logger.Fields{
		"chain_id": p.Network.GetChainID(),
		"tx":       hash.Hex(),
		"relay":    p.Broadcaster.RelayAddress,
	}).Info("transaction submitted via broadcaster")
	return TxHandle{Hash: hash, Nonce: p.Nonce}, nil
}
