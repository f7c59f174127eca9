package txpipeline

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/tranvictor/jarvis/networks"
)

// EthChainClient is the production ChainClient over go-ethereum's RPC client.
// Connections are dialed lazily per chain and reused; endpoint overrides take
// precedence over the network's default node list.
type EthChainClient struct {
	mu        sync.Mutex
	endpoints map[uint64]string
	clients   map[uint64]*ethclient.Client
}

// NewEthChainClient creates a client. endpoints maps chain ID to an RPC URL
// and may be nil, in which case each network's default nodes are used.
func NewEthChainClient(endpoints map[uint64]string) *EthChainClient {
	if endpoints == nil {
		endpoints = make(map[uint64]string)
	}
	return &EthChainClient{
		endpoints: endpoints,
		clients:   make(map[uint64]*ethclient.Client),
	}
}

func (e *EthChainClient) client(network networks.Network) (*ethclient.Client, error) {
	chainID := network.GetChainID()

	e.mu.Lock()
	defer e.mu.Unlock()

	if c, ok := e.clients[chainID]; ok {
		return c, nil
	}

	url := e.endpoints[chainID]
	if url == "" {
		for _, node := range network.GetDefaultNodes() {
			url = node
			break
		}
	}
	if url == "" {
		return nil, fmt.Errorf("no RPC endpoint for chain %d", chainID)
	}

	c, err := ethclient.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	e.clients[chainID] = c
	return c, nil
}

func (e *EthChainClient) EstimateGas(ctx context.Context, network networks.Network, call GasCall) (uint64, error) {
	c, err := e.client(network)
	if err != nil {
		return 0, err
	}
	msg := ethereum.CallMsg{From: call.From, To: call.To, Value: call.Value, Data: call.Data}
	return c.EstimateGas(ctx, msg)
}

func (e *EthChainClient) SuggestGasDetails(ctx context.Context, network networks.Network) (GasDetails, error) {
	c, err := e.client(network)
	if err != nil {
		return GasDetails{}, err
	}

	tip, tipErr := c.SuggestGasTipCap(ctx)
	if tipErr == nil {
		head, headErr := c.HeaderByNumber(ctx, nil)
		if headErr == nil && head.BaseFee != nil {
			// maxFee = 2*baseFee + tip, the usual headroom for base fee drift
			// across a couple of blocks.
			maxFee := new(big.Int).Add(new(big.Int).Mul(head.BaseFee, big.NewInt(2)), tip)
			return GasDetails{
				Type:                 GasTypeDynamic,
				MaxFeePerGas:         maxFee,
				MaxPriorityFeePerGas: tip,
			}, nil
		}
	}

	price, err := c.SuggestGasPrice(ctx)
	if err != nil {
		return GasDetails{}, err
	}
	return GasDetails{Type: GasTypeLegacy, GasPrice: price}, nil
}

func (e *EthChainClient) TransactionCount(ctx context.Context, network networks.Network, addr common.Address) (uint64, error) {
	c, err := e.client(network)
	if err != nil {
		return 0, err
	}
	return c.PendingNonceAt(ctx, addr)
}

func (e *EthChainClient) SignAndSend(ctx context.Context, key *ecdsa.PrivateKey, network networks.Network, call *PopulatedCall, gas GasDetails, nonce uint64, gasLimitOverride uint64) (TxHandle, error) {
	if key == nil {
		return TxHandle{}, errors.New("nil signing key")
	}
	c, err := e.client(network)
	if err != nil {
		return TxHandle{}, err
	}

	limit := gas.Limit()
	if gasLimitOverride > 0 {
		limit = gasLimitOverride
	}

	var tx *types.Transaction
	switch gas.Type {
	case GasTypeDynamic:
		tx = types.NewTx(&types.DynamicFeeTx{
			ChainID:   new(big.Int).SetUint64(network.GetChainID()),
			Nonce:     nonce,
			GasTipCap: gas.MaxPriorityFeePerGas,
			GasFeeCap: gas.MaxFeePerGas,
			Gas:       limit,
			To:        &call.To,
			Value:     call.Value,
			Data:      call.Data,
		})
	default:
		tx = types.NewTx(&types.LegacyTx{
			Nonce:    nonce,
			GasPrice: gas.GasPrice,
			Gas:      limit,
			To:       &call.To,
			Value:    call.Value,
			Data:     call.Data,
		})
	}

	signer := types.LatestSignerForChainID(new(big.Int).SetUint64(network.GetChainID()))
	signed, err := types.SignTx(tx, signer, key)
	if err != nil {
		return TxHandle{}, fmt.Errorf("sign tx: %w", err)
	}

	from := crypto.PubkeyToAddress(key.PublicKey)
	if from != call.From {
		return TxHandle{}, fmt.Errorf("signing key %s does not match call sender %s", from.Hex(), call.From.Hex())
	}

	if err := c.SendTransaction(ctx, signed); err != nil {
		return TxHandle{}, err
	}
	return TxHandle{Hash: signed.Hash(), Nonce: nonce}, nil
}

func (e *EthChainClient) TransactionReceipt(ctx context.Context, network networks.Network, hash common.Hash) (*types.Receipt, error) {
	c, err := e.client(network)
	if err != nil {
		return nil, err
	}
	return c.TransactionReceipt(ctx, hash)
}
