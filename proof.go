package txpipeline

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/KyberNetwork/logger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/tranvictor/jarvis/networks"
)

// ProofProgress is one progress event from the proof engine. Progress is in
// [0, 1] and is guaranteed monotonically non-decreasing on the task's stream
// even if the underlying engine reports regressing values.
type ProofProgress struct {
	Progress float64
	Status   string
}

// ProofIntent is the immutable input to proof generation. The artifact is
// bound to the intent's fingerprint: if any of these fields change after
// generation, the artifact is stale and must be regenerated.
type ProofIntent struct {
	Network              networks.Network
	WalletID             string
	Amounts              []AmountRecipient
	NFTAmounts           []NFTAmountRecipient
	BroadcasterFee       *AmountRecipient
	SendWithPublicWallet bool
	ShowSenderAddress    bool
	Memo                 string
	MinGasPrice          *big.Int
}

// Fingerprint returns a stable digest of every artifact-binding field.
func (i ProofIntent) Fingerprint() common.Hash {
	h := newIntentHasher()
	if i.Network != nil {
		h.uint64(i.Network.GetChainID())
	}
	h.str(i.WalletID)
	for _, a := range i.Amounts {
		h.amount(a)
	}
	for _, n := range i.NFTAmounts {
		h.bytes(n.Collection.Bytes())
		h.bigint(n.TokenID)
		h.bigint(n.Amount)
		h.str(n.RecipientAddress)
	}
	if i.BroadcasterFee != nil {
		h.amount(*i.BroadcasterFee)
	}
	h.bool(i.SendWithPublicWallet)
	h.bool(i.ShowSenderAddress)
	h.str(i.Memo)
	h.bigint(i.MinGasPrice)
	return h.sum()
}

type intentHasher struct{ buf []byte }

func newIntentHasher() *intentHasher { return &intentHasher{} }

func (h *intentHasher) bytes(b []byte) {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(len(b)))
	h.buf = append(h.buf, n[:]...)
	h.buf = append(h.buf, b...)
}
func (h *intentHasher) str(s string) { h.bytes([]byte(s)) }
func (h *intentHasher) uint64(v uint64) {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], v)
	h.bytes(n[:])
}
func (h *intentHasher) bool(v bool) {
	if v {
		h.bytes([]byte{1})
	} else {
		h.bytes([]byte{0})
	}
}
func (h *intentHasher) bigint(v *big.Int) {
	if v == nil {
		h.bytes(nil)
		return
	}
	h.bytes(v.Bytes())
}
func (h *intentHasher) amount(a AmountRecipient) {
	h.bytes(a.Asset.Address.Bytes())
	h.bigint(a.Amount)
	h.str(a.RecipientAddress)
}
func (h *intentHasher) sum() common.Hash { return crypto.Keccak256Hash(h.buf) }

// ProofArtifact is the opaque signed witness produced by the proof engine,
// bound to one intent fingerprint. Exclusively owned by the orchestrator for
// the duration of one attempt; never reused across attempts.
type ProofArtifact struct {
	Call       PopulatedCall
	Nullifiers []common.Hash

	intentFingerprint common.Hash
}

// BindIntent stamps the artifact with the fingerprint of the intent it was
// generated for. The engine adapter calls this; artifacts without a binding
// never match any intent.
func (a *ProofArtifact) BindIntent(i ProofIntent) {
	a.intentFingerprint = i.Fingerprint()
}

// MatchesIntent reports whether the artifact is still valid for the intent.
func (a *ProofArtifact) MatchesIntent(i ProofIntent) bool {
	if a == nil {
		return false
	}
	return a.intentFingerprint != (common.Hash{}) && a.intentFingerprint == i.Fingerprint()
}

// ProofTask is a handle on one in-flight proof generation: a progress stream
// plus a single terminal resolution. Progress events and the terminal result
// are never reordered; the progress channel is closed before Done.
type ProofTask struct {
	progress chan ProofProgress
	done     chan struct{}

	mu           sync.Mutex
	terminal     bool
	lastProgress float64

	artifact *ProofArtifact
	err      error
}

// Progress returns the task's progress stream. Consumed by the UI layer; not
// required for correctness. Slow consumers miss intermediate events rather
// than blocking the engine.
func (t *ProofTask) Progress() <-chan ProofProgress {
	return t.progress
}

// Done is closed when the task resolves.
func (t *ProofTask) Done() <-chan struct{} {
	return t.done
}

// Result returns the terminal resolution. Only valid after Done is closed.
func (t *ProofTask) Result() (*ProofArtifact, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.artifact, t.err
}

// Wait blocks until the task resolves or ctx is cancelled. On cancellation the
// underlying computation keeps running, but its eventual result belongs to
// nobody: the caller must discard it, never surface it in a later attempt.
func (t *ProofTask) Wait(ctx context.Context) (*ProofArtifact, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-t.done:
		return t.Result()
	}
}

// report delivers one progress event, clamped to be monotonically
// non-decreasing, dropping events the consumer is too slow for.
func (t *ProofTask) report(p ProofProgress) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.terminal {
		return
	}
	if p.Progress < t.lastProgress {
		p.Progress = t.lastProgress
	}
	if p.Progress > 1 {
		p.Progress = 1
	}
	t.lastProgress = p.Progress

	select {
	case t.progress <- p:
	default:
	}
}

// resolve records the terminal result exactly once.
func (t *ProofTask) resolve(artifact *ProofArtifact, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.terminal {
		return
	}
	t.terminal = true
	t.artifact = artifact
	t.err = err
	close(t.progress)
	close(t.done)
}

// ProofGenerator wraps the out-of-process proof engine. This is the single
// longest-running pipeline step (roughly 10-15 seconds per distinct asset);
// it has no enforced timeout and is bounded only by user patience.
type ProofGenerator struct {
	engine ProofEngine
}

// NewProofGenerator creates a generator over the given engine capability.
func NewProofGenerator(engine ProofEngine) *ProofGenerator {
	return &ProofGenerator{engine: engine}
}

// Generate starts proof generation and returns immediately with a task handle.
// Calling Generate twice with an identical intent is safe but wasteful: there
// is no caching layer, each call fully recomputes.
func (g *ProofGenerator) Generate(ctx context.Context, intent ProofIntent) *ProofTask {
	task := &ProofTask{
		progress: make(chan ProofProgress, 16),
		done:     make(chan struct{}),
	}

	go func() {
		artifact, err := g.engine.GenerateProof(ctx, intent, task.report)
		if err != nil {
			task.resolve(nil, errors.Join(ErrProofFailed, fmt.Errorf("proof engine: %w", err)))
			return
		}
		if artifact == nil {
			task.resolve(nil, errors.Join(ErrProofFailed, fmt.Errorf("proof engine returned no artifact")))
			return
		}
		artifact.BindIntent(intent)

		if ctx.Err() != nil {
			// Logical cancellation happened while the engine kept computing.
			// The artifact is discarded here, never surfaced to a later attempt.
			logger.WithFields(logger.Fields{
				"wallet_id": intent.WalletID,
			}).Debug("proof completed after cancellation, discarding artifact")
			task.resolve(nil, ctx.Err())
			return
		}
		task.resolve(artifact, nil)
	}()

	return task
}
