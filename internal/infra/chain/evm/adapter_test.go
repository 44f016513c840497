package evm

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"testing"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"

	"github.com/availops/creditflow/internal/core/domain"
	"github.com/availops/creditflow/internal/infra/chain"
)

// MockSubmitter implements Submitter for testing
type MockSubmitter struct {
	ApproveFunc func(ctx context.Context, token, spender common.Address, amount *big.Int) (common.Hash, error)
	DepositFunc func(ctx context.Context, contract common.Address, orderID [32]byte, amount *big.Int, token common.Address) (common.Hash, error)
	ReceiptFunc func(ctx context.Context, txHash common.Hash) (*types.Receipt, error)

	ApproveCalls int
	DepositCalls int
}

func (m *MockSubmitter) Approve(ctx context.Context, token, spender common.Address, amount *big.Int) (common.Hash, error) {
	m.ApproveCalls++
	if m.ApproveFunc != nil {
		return m.ApproveFunc(ctx, token, spender, amount)
	}
	return common.HexToHash("0x1"), nil
}

func (m *MockSubmitter) Deposit(ctx context.Context, contract common.Address, orderID [32]byte, amount *big.Int, token common.Address) (common.Hash, error) {
	m.DepositCalls++
	if m.DepositFunc != nil {
		return m.DepositFunc(ctx, contract, orderID, amount, token)
	}
	return common.HexToHash("0xabc"), nil
}

func (m *MockSubmitter) Receipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	if m.ReceiptFunc != nil {
		return m.ReceiptFunc(ctx, txHash)
	}
	return &types.Receipt{Status: types.ReceiptStatusSuccessful}, nil
}

const usdc = "0x2791bca1f2de4661ed88a30c99a7a9449aa84174"

func testConfig() Config {
	return Config{
		ChainID:         8453,
		DepositContract: "0xdeposit",
		Tokens:          map[string]int32{usdc: 6},
		ReceiptInterval: time.Millisecond,
	}
}

func testRequest() chain.SubmitRequest {
	return chain.SubmitRequest{
		OrderID:      42,
		TokenAddress: usdc,
		Amount:       decimal.RequireFromString("12.5"),
	}
}

func TestSubmit_ApproveThenDeposit(t *testing.T) {
	var approvedAmount, depositedAmount *big.Int
	var gotOrderID [32]byte

	mock := &MockSubmitter{
		ApproveFunc: func(ctx context.Context, token, spender common.Address, amount *big.Int) (common.Hash, error) {
			approvedAmount = amount
			return common.HexToHash("0x1"), nil
		},
		DepositFunc: func(ctx context.Context, contract common.Address, orderID [32]byte, amount *big.Int, token common.Address) (common.Hash, error) {
			if approvedAmount == nil {
				t.Error("deposit must not run before approve")
			}
			gotOrderID = orderID
			depositedAmount = amount
			return common.HexToHash("0xabc"), nil
		},
	}

	adapter := NewAdapter(testConfig(), mock, slog.Default())
	result, err := adapter.Submit(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.TxHash != common.HexToHash("0xabc").Hex() {
		t.Errorf("unexpected tx hash: %s", result.TxHash)
	}
	if result.Finalized {
		t.Error("EVM submission must not claim finality")
	}

	// 12.5 USDC at 6 decimals.
	if approvedAmount.Cmp(big.NewInt(12_500_000)) != 0 {
		t.Errorf("unexpected approve amount: %s", approvedAmount)
	}
	if depositedAmount.Cmp(big.NewInt(12_500_000)) != 0 {
		t.Errorf("unexpected deposit amount: %s", depositedAmount)
	}

	want := orderID32(42)
	if gotOrderID != want {
		t.Errorf("unexpected order id encoding: %x", gotOrderID)
	}
}

func TestSubmit_UserRejectsApprove(t *testing.T) {
	mock := &MockSubmitter{
		ApproveFunc: func(ctx context.Context, token, spender common.Address, amount *big.Int) (common.Hash, error) {
			return common.Hash{}, errors.New("User rejected the request.")
		},
	}

	adapter := NewAdapter(testConfig(), mock, slog.Default())
	_, err := adapter.Submit(context.Background(), testRequest())

	if kind := domain.FailureOf(err); kind != domain.FailureUserRejected {
		t.Errorf("expected user_rejected, got %s (%v)", kind, err)
	}
	if mock.DepositCalls != 0 {
		t.Error("rejection must abort before deposit")
	}
}

func TestSubmit_DepositFailureAborts(t *testing.T) {
	mock := &MockSubmitter{
		DepositFunc: func(ctx context.Context, contract common.Address, orderID [32]byte, amount *big.Int, token common.Address) (common.Hash, error) {
			return common.Hash{}, errors.New("execution reverted")
		},
	}

	adapter := NewAdapter(testConfig(), mock, slog.Default())
	_, err := adapter.Submit(context.Background(), testRequest())

	if kind := domain.FailureOf(err); kind != domain.FailureOnChainSubmission {
		t.Errorf("expected onchain_submission_failed, got %s", kind)
	}
	if mock.DepositCalls != 1 {
		t.Errorf("expected exactly one deposit attempt, got %d", mock.DepositCalls)
	}
}

func TestSubmit_UnknownToken(t *testing.T) {
	adapter := NewAdapter(testConfig(), &MockSubmitter{}, slog.Default())

	req := testRequest()
	req.TokenAddress = "0xother"
	_, err := adapter.Submit(context.Background(), req)

	if kind := domain.FailureOf(err); kind != domain.FailureOnChainSubmission {
		t.Errorf("expected onchain_submission_failed, got %s", kind)
	}
}

func TestWaitFinality_Success(t *testing.T) {
	calls := 0
	mock := &MockSubmitter{
		ReceiptFunc: func(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
			calls++
			if calls < 3 {
				return nil, ethereum.NotFound
			}
			return &types.Receipt{Status: types.ReceiptStatusSuccessful}, nil
		},
	}

	adapter := NewAdapter(testConfig(), mock, slog.Default())
	if err := adapter.WaitFinality(context.Background(), "0xabc"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 receipt polls, got %d", calls)
	}
}

func TestWaitFinality_RevertedReceipt(t *testing.T) {
	mock := &MockSubmitter{
		ReceiptFunc: func(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
			return &types.Receipt{Status: types.ReceiptStatusFailed}, nil
		},
	}

	adapter := NewAdapter(testConfig(), mock, slog.Default())
	err := adapter.WaitFinality(context.Background(), "0xabc")

	if kind := domain.FailureOf(err); kind != domain.FailureFinality {
		t.Errorf("expected finality_failed, got %s", kind)
	}
}

func TestWaitFinality_ContextCancelled(t *testing.T) {
	mock := &MockSubmitter{
		ReceiptFunc: func(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
			return nil, ethereum.NotFound
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	adapter := NewAdapter(testConfig(), mock, slog.Default())
	err := adapter.WaitFinality(ctx, "0xabc")

	if kind := domain.FailureOf(err); kind != domain.FailureTimeout {
		t.Errorf("expected timeout, got %s", kind)
	}
}
