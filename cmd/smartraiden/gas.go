package main

import (
	"context"
	"math/big"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/SmartMeshFoundation/SmartRaiden/pkg/primitives"
)

// defaultGasLimit is used whenever a transaction's OnchainData phase
// has nothing to hand back for an eth_estimateGas call (every concrete
// channel_transactions.go implementation runs no on-chain read before
// submitting), in place of skipping the estimate entirely.
const defaultGasLimit = 300_000

// ethGasEstimator adapts an *ethclient.Client to pkg/transaction's
// GasEstimator seam.
type ethGasEstimator struct {
	client *ethclient.Client
}

func newEthGasEstimator(client *ethclient.Client) *ethGasEstimator {
	return &ethGasEstimator{client: client}
}

func (e *ethGasEstimator) EstimateGas(ctx context.Context, msg interface{}) (uint64, error) {
	if callMsg, ok := msg.(ethereum.CallMsg); ok {
		return e.client.EstimateGas(ctx, callMsg)
	}
	return defaultGasLimit, nil
}

func (e *ethGasEstimator) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return e.client.SuggestGasPrice(ctx)
}

func (e *ethGasEstimator) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	return e.client.SendTransaction(ctx, tx)
}

func (e *ethGasEstimator) TransactionReceipt(ctx context.Context, txHash primitives.Hash) (*types.Receipt, error) {
	return e.client.TransactionReceipt(ctx, txHash)
}
