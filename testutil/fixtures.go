package testutil

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Test addresses

var (
	// WalletAddr is the spending wallet in most tests
	WalletAddr = common.HexToAddress("0x1111111111111111111111111111111111111111")
	// RecipientAddr is the usual transfer destination
	RecipientAddr = common.HexToAddress("0x2222222222222222222222222222222222222222")
	// SpenderAddr is an approval target
	SpenderAddr = common.HexToAddress("0x3333333333333333333333333333333333333333")
	// TokenAddr is a generic ERC20 asset address
	TokenAddr = common.HexToAddress("0x4444444444444444444444444444444444444444")
)

// Test keys

var (
	// TestPrivateKeyHex is a throwaway private key in hex format
	TestPrivateKeyHex = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"
	// TestPrivateKey is the parsed ECDSA key
	TestPrivateKey, _ = crypto.HexToECDSA(TestPrivateKeyHex)
	// TestKeyAddress is the address derived from TestPrivateKey
	TestKeyAddress = crypto.PubkeyToAddress(TestPrivateKey.PublicKey)
)

// Common values

var (
	// OneEth is 1 ETH in wei
	OneEth = big.NewInt(1000000000000000000)
	// TwentyGwei is 20 gwei
	TwentyGwei = big.NewInt(20000000000)
	// TwoGwei is 2 gwei
	TwoGwei = big.NewInt(2000000000)
)

// Chain IDs

const (
	// ChainIDMainnet is Ethereum mainnet
	ChainIDMainnet uint64 = 1
	// ChainIDPolygon is Polygon PoS
	ChainIDPolygon uint64 = 137
)
