package txpipeline

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/tranvictor/jarvis/networks"

	"github.com/Railway-Wallet/Railway-Wallet-sub005/testutil"
)

// sentTx records one SignAndSend dispatch on the mock chain client.
type sentTx struct {
	call             *PopulatedCall
	gas              GasDetails
	nonce            uint64
	gasLimitOverride uint64
}

type mockChainClient struct {
	mu sync.Mutex

	estimateUnits uint64
	estimateErr   error

	gasDetails    GasDetails
	gasDetailsErr error
	suggestCalls  int

	txCount    uint64
	txCountErr error

	sendErr error
	sent    []sentTx

	receipts map[common.Hash]*types.Receipt
}

func newMockChainClient() *mockChainClient {
	return &mockChainClient{
		estimateUnits: 21000,
		gasDetails: GasDetails{
			Type:                 GasTypeDynamic,
			MaxFeePerGas:         testutil.TwentyGwei,
			MaxPriorityFeePerGas: testutil.TwoGwei,
		},
		receipts: make(map[common.Hash]*types.Receipt),
	}
}

func (m *mockChainClient) EstimateGas(ctx context.Context, network networks.Network, call GasCall) (uint64, error) {
	if m.estimateErr != nil {
		return 0, m.estimateErr
	}
	return m.estimateUnits, nil
}

func (m *mockChainClient) SuggestGasDetails(ctx context.Context, network networks.Network) (GasDetails, error) {
	m.mu.Lock()
	m.suggestCalls++
	m.mu.Unlock()
	if m.gasDetailsErr != nil {
		return GasDetails{}, m.gasDetailsErr
	}
	return m.gasDetails, nil
}

func (m *mockChainClient) TransactionCount(ctx context.Context, network networks.Network, addr common.Address) (uint64, error) {
	if m.txCountErr != nil {
		return 0, m.txCountErr
	}
	return m.txCount, nil
}

func (m *mockChainClient) SignAndSend(ctx context.Context, key *ecdsa.PrivateKey, network networks.Network, call *PopulatedCall, gas GasDetails, nonce uint64, gasLimitOverride uint64) (TxHandle, error) {
	if m.sendErr != nil {
		return TxHandle{}, m.sendErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentTx{call: call, gas: gas, nonce: nonce, gasLimitOverride: gasLimitOverride})
	hash := common.BytesToHash(big.NewInt(int64(len(m.sent))).Bytes())
	return TxHandle{Hash: hash, Nonce: nonce}, nil
}

func (m *mockChainClient) TransactionReceipt(ctx context.Context, network networks.Network, hash common.Hash) (*types.Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.receipts[hash]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return r, nil
}

func (m *mockChainClient) setReceipt(hash common.Hash, r *types.Receipt) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.receipts[hash] = r
}

func (m *mockChainClient) sentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type relayedTx struct {
	call        *PopulatedCall
	relay       string
	feesID      string
	nullifiers  []common.Hash
	minGasPrice *big.Int
}

type mockRelayClient struct {
	mu       sync.Mutex
	relayErr error
	relayed  []relayedTx
}

func (m *mockRelayClient) Relay(ctx context.Context, network networks.Network, call *PopulatedCall, relayAddress, feesID string, nullifiers []common.Hash, overallBatchMinGasPrice *big.Int) (common.Hash, error) {
	if m.relayErr != nil {
		return common.Hash{}, m.relayErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.relayed = append(m.relayed, relayedTx{
		call: call, relay: relayAddress, feesID: feesID,
		nullifiers: nullifiers, minGasPrice: overallBatchMinGasPrice,
	})
	return common.HexToHash("0xre1a7ed"), nil
}

func (m *mockRelayClient) relayedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.relayed)
}

type mockKeyStore struct {
	err error
}

func (m *mockKeyStore) SigningKey(ctx context.Context, authToken string, wallet common.Address) (*ecdsa.PrivateKey, error) {
	if m.err != nil {
		return nil, m.err
	}
	return testutil.TestPrivateKey, nil
}

type mockProofEngine struct {
	mu       sync.Mutex
	calls    int
	err      error
	progress []ProofProgress
	artifact func(intent ProofIntent) *ProofArtifact
	block    chan struct{} // when set, GenerateProof waits on it
}

func (m *mockProofEngine) GenerateProof(ctx context.Context, intent ProofIntent, onProgress func(ProofProgress)) (*ProofArtifact, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	for _, p := range m.progress {
		onProgress(p)
	}
	if m.block != nil {
		<-m.block
	}
	if m.err != nil {
		return nil, m.err
	}
	if m.artifact != nil {
		return m.artifact(intent), nil
	}
	return &ProofArtifact{
		Call: PopulatedCall{
			From: testutil.TestKeyAddress,
			To:   testutil.RecipientAddr,
		},
		Nullifiers: []common.Hash{common.HexToHash("0x01")},
	}, nil
}

func (m *mockProofEngine) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type staticBlocklist map[string]bool

func (b staticBlocklist) IsBlocked(addr string) bool { return b[addr] }
