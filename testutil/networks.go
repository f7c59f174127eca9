package testutil

import (
	"encoding/json"
	"time"
)

// MockNetwork is a configurable in-memory network definition implementing the
// jarvis networks.Network interface.
type MockNetwork struct {
	ChainIDValue       uint64
	NameValue          string
	SyncTxSupported    bool
	BlockTimeValue     time.Duration
	GasPriceValue      float64
	NodeVariableName   string
	NativeTokenSymbol  string
	NativeTokenDecimal uint64
	DefaultNodes       map[string]string
}

// NewMockNetwork creates a mainnet-flavored mock network.
func NewMockNetwork(chainID uint64, name string) *MockNetwork {
	return &MockNetwork{
		ChainIDValue:       chainID,
		NameValue:          name,
		BlockTimeValue:     12 * time.Second,
		GasPriceValue:      20.0,
		NodeVariableName:   "MOCK_NODE",
		NativeTokenSymbol:  "ETH",
		NativeTokenDecimal: 18,
	}
}

// NewMockL2Network creates a mock network with L2-like characteristics: fast
// blocks, cheap gas, sync tx support.
func NewMockL2Network(chainID uint64, name string) *MockNetwork {
	n := NewMockNetwork(chainID, name)
	n.SyncTxSupported = true
	n.BlockTimeValue = 250 * time.Millisecond
	n.GasPriceValue = 0.1
	return n
}

// Network interface implementation

func (m *MockNetwork) GetName() string                            { return m.NameValue }
func (m *MockNetwork) GetChainID() uint64                         { return m.ChainIDValue }
func (m *MockNetwork) GetAlternativeNames() []string              { return nil }
func (m *MockNetwork) GetNativeTokenSymbol() string               { return m.NativeTokenSymbol }
func (m *MockNetwork) GetNativeTokenDecimal() uint64              { return m.NativeTokenDecimal }
func (m *MockNetwork) GetBlockTime() time.Duration                { return m.BlockTimeValue }
func (m *MockNetwork) GetNodeVariableName() string                { return m.NodeVariableName }
func (m *MockNetwork) GetDefaultNodes() map[string]string         { return m.DefaultNodes }
func (m *MockNetwork) GetBlockExplorerAPIKeyVariableName() string { return "" }
func (m *MockNetwork) GetBlockExplorerAPIURL() string             { return "" }
func (m *MockNetwork) RecommendedGasPrice() (float64, error)      { return m.GasPriceValue, nil }
func (m *MockNetwork) GetABIString(address string) (string, error) {
	return "", nil
}
func (m *MockNetwork) IsSyncTxSupported() bool   { return m.SyncTxSupported }
func (m *MockNetwork) MultiCallContract() string { return "" }
func (m *MockNetwork) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]interface{}{"chainID": m.ChainIDValue, "name": m.NameValue})
}
func (m *MockNetwork) UnmarshalJSON([]byte) error { return nil }
