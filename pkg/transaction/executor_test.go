package transaction

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/core/types"

	"github.com/SmartMeshFoundation/SmartRaiden/pkg/apierror"
	"github.com/SmartMeshFoundation/SmartRaiden/pkg/primitives"
)

// fakeGasEstimator is a scriptable transaction.GasEstimator: each
// method returns whatever the test configured, with no real RPC calls.
type fakeGasEstimator struct {
	gasLimit       uint64
	gasPrice       *big.Int
	estimateErr    error
	submitErr      error
	receipt        *types.Receipt
	receiptErr     error
	submittedCount int
}

func (f *fakeGasEstimator) EstimateGas(ctx context.Context, msg interface{}) (uint64, error) {
	if f.estimateErr != nil {
		return 0, f.estimateErr
	}
	return f.gasLimit, nil
}

func (f *fakeGasEstimator) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return f.gasPrice, nil
}

func (f *fakeGasEstimator) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	f.submittedCount++
	return f.submitErr
}

func (f *fakeGasEstimator) TransactionReceipt(ctx context.Context, txHash primitives.Hash) (*types.Receipt, error) {
	if f.receiptErr != nil {
		return nil, f.receiptErr
	}
	return f.receipt, nil
}

func newFakeGasEstimator() *fakeGasEstimator {
	return &fakeGasEstimator{
		gasLimit: 21000,
		gasPrice: big.NewInt(1),
		receipt:  &types.Receipt{Status: types.ReceiptStatusSuccessful},
	}
}

// fakeTransaction implements transaction.Transaction with every phase
// scriptable, so Execute's five-phase sequencing can be tested without
// a real contract call.
type fakeTransaction struct {
	name                string
	onchainDataErr      error
	preconditionsErr    error
	prerequisiteErr     error
	submitErr           error
	submitHash          primitives.Hash
	postconditionsErr   error
	postconditionsCalls int
	submitCalls         int
}

func (t *fakeTransaction) Name() string { return t.name }

func (t *fakeTransaction) OnchainData(ctx context.Context, blockHash primitives.Hash) (Data, error) {
	if t.onchainDataErr != nil {
		return nil, t.onchainDataErr
	}
	return "onchain-data", nil
}

func (t *fakeTransaction) ValidatePreconditions(data Data, blockHash primitives.Hash) error {
	return t.preconditionsErr
}

func (t *fakeTransaction) ExecutePrerequisite(ctx context.Context, data Data) error {
	return t.prerequisiteErr
}

func (t *fakeTransaction) Submit(ctx context.Context, data Data, gasLimit uint64, gasPrice *big.Int) (primitives.Hash, error) {
	t.submitCalls++
	if t.submitErr != nil {
		return primitives.EmptyHash, t.submitErr
	}
	return t.submitHash, nil
}

func (t *fakeTransaction) ValidatePostconditions(ctx context.Context, data Data, atBlock int64) error {
	t.postconditionsCalls++
	return t.postconditionsErr
}

func TestExecuteHappyPath(t *testing.T) {
	gas := newFakeGasEstimator()
	account := NewSingleWriterAccount(primitives.Address{0x01}, 0)
	executor := NewExecutor(gas, account)
	tx := &fakeTransaction{name: "test-op", submitHash: primitives.Keccak256([]byte("tx"))}

	hash, err := executor.Execute(context.Background(), tx, primitives.Address{0x02}, primitives.Hash{}, 1)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if hash != tx.submitHash {
		t.Fatalf("Execute returned hash %s, want %s", hash.Hex(), tx.submitHash.Hex())
	}
	if tx.postconditionsCalls != 0 {
		t.Fatalf("ValidatePostconditions called %d times on a successful execution, want 0", tx.postconditionsCalls)
	}
}

func TestExecuteAbortsOnBrokenPrecondition(t *testing.T) {
	gas := newFakeGasEstimator()
	account := NewSingleWriterAccount(primitives.Address{0x01}, 0)
	executor := NewExecutor(gas, account)
	wantErr := &apierror.BrokenPrecondition{Op: "test-op", Reason: "channel already closed"}
	tx := &fakeTransaction{name: "test-op", preconditionsErr: wantErr}

	_, err := executor.Execute(context.Background(), tx, primitives.EmptyAddress, primitives.Hash{}, 1)
	if err != error(wantErr) {
		t.Fatalf("Execute error = %v, want the precondition error unchanged", err)
	}
	if tx.submitCalls != 0 {
		t.Fatalf("Submit called after a broken precondition, want it skipped entirely")
	}
}

func TestExecuteValidatesPostconditionsOnSubmitFailure(t *testing.T) {
	gas := newFakeGasEstimator()
	account := NewSingleWriterAccount(primitives.Address{0x01}, 0)
	executor := NewExecutor(gas, account)
	postErr := &apierror.BrokenPrecondition{Op: "test-op", Reason: "already settled by partner"}
	tx := &fakeTransaction{name: "test-op", submitErr: errors.New("rpc: nonce too low"), postconditionsErr: postErr}

	_, err := executor.Execute(context.Background(), tx, primitives.EmptyAddress, primitives.Hash{}, 1)
	if err != postErr {
		t.Fatalf("Execute error = %v, want the postcondition classification surfaced", err)
	}
	if tx.postconditionsCalls != 1 {
		t.Fatalf("ValidatePostconditions called %d times, want 1", tx.postconditionsCalls)
	}
}

func TestExecuteReturnsRecoverableWhenPostconditionsStillHold(t *testing.T) {
	gas := newFakeGasEstimator()
	account := NewSingleWriterAccount(primitives.Address{0x01}, 0)
	executor := NewExecutor(gas, account)
	tx := &fakeTransaction{name: "test-op", submitErr: errors.New("rpc: timeout")}

	_, err := executor.Execute(context.Background(), tx, primitives.EmptyAddress, primitives.Hash{}, 1)
	if _, ok := err.(*apierror.Recoverable); !ok {
		t.Fatalf("Execute error type = %T, want *apierror.Recoverable when postconditions still hold", err)
	}
}

func TestExecuteTreatsRevertedReceiptAsFailure(t *testing.T) {
	gas := newFakeGasEstimator()
	gas.receipt = &types.Receipt{Status: types.ReceiptStatusFailed}
	account := NewSingleWriterAccount(primitives.Address{0x01}, 0)
	executor := NewExecutor(gas, account)
	tx := &fakeTransaction{name: "test-op"}

	_, err := executor.Execute(context.Background(), tx, primitives.EmptyAddress, primitives.Hash{}, 1)
	if err == nil {
		t.Fatalf("Execute returned nil error for a reverted receipt")
	}
}

func TestExecuteRejectsZeroGasEstimate(t *testing.T) {
	gas := newFakeGasEstimator()
	gas.gasLimit = 0
	account := NewSingleWriterAccount(primitives.Address{0x01}, 0)
	executor := NewExecutor(gas, account)
	tx := &fakeTransaction{name: "test-op"}

	_, err := executor.Execute(context.Background(), tx, primitives.EmptyAddress, primitives.Hash{}, 1)
	if _, ok := err.(*apierror.Unrecoverable); !ok {
		t.Fatalf("Execute error type = %T, want *apierror.Unrecoverable for a zero gas estimate", err)
	}
	if tx.submitCalls != 0 {
		t.Fatalf("Submit called despite a rejected gas estimate")
	}
}
