// Package evm submits credit purchases on EVM chains: an ERC-20 approve
// followed by a depositERC20 call on the credit contract, then a receipt
// wait for finality.
package evm

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"

	"github.com/availops/creditflow/internal/core/domain"
	"github.com/availops/creditflow/internal/infra/chain"
)

// Submitter executes the raw on-chain calls. *Wallet implements it over
// ethclient; tests inject mocks. Wallet-level rejections surface as errors
// containing the standard "User rejected the request" message.
type Submitter interface {
	Approve(ctx context.Context, token, spender common.Address, amount *big.Int) (common.Hash, error)
	Deposit(ctx context.Context, contract common.Address, orderID [32]byte, amount *big.Int, token common.Address) (common.Hash, error)
	Receipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// Config describes one EVM chain's deposit surface.
type Config struct {
	ChainID         domain.ChainID
	DepositContract string
	// Spender approved to pull the tokens; defaults to the deposit contract.
	Spender string
	// Tokens maps accepted token addresses to their decimals.
	Tokens map[string]int32
	// ReceiptInterval is the receipt polling cadence.
	ReceiptInterval time.Duration
}

type Adapter struct {
	cfg       Config
	submitter Submitter
	log       *slog.Logger
}

var _ chain.Adapter = (*Adapter)(nil)

func NewAdapter(cfg Config, submitter Submitter, log *slog.Logger) *Adapter {
	if cfg.Spender == "" {
		cfg.Spender = cfg.DepositContract
	}
	if cfg.ReceiptInterval <= 0 {
		cfg.ReceiptInterval = 2 * time.Second
	}
	return &Adapter{cfg: cfg, submitter: submitter, log: log}
}

func (a *Adapter) ChainID() domain.ChainID {
	return a.cfg.ChainID
}

func (a *Adapter) Kind() domain.ChainKind {
	return domain.ChainKindEVM
}

// Submit runs approve then depositERC20, strictly in that order. Either
// call failing aborts the whole attempt; there is no partial retry of just
// the second call.
func (a *Adapter) Submit(ctx context.Context, req chain.SubmitRequest) (*chain.SubmitResult, error) {
	units, err := a.baseUnits(req.TokenAddress, req.Amount)
	if err != nil {
		return nil, domain.Fail(domain.FailureOnChainSubmission, err.Error(), err)
	}

	token := common.HexToAddress(req.TokenAddress)
	spender := common.HexToAddress(a.cfg.Spender)

	approveTx, err := a.submitter.Approve(ctx, token, spender, units)
	if err != nil {
		return nil, classifySubmission("approve", err)
	}
	a.log.Debug("approve submitted", "chain", a.cfg.ChainID, "tx", approveTx.Hex())

	depositTx, err := a.submitter.Deposit(ctx,
		common.HexToAddress(a.cfg.DepositContract), orderID32(req.OrderID), units, token)
	if err != nil {
		return nil, classifySubmission("depositERC20", err)
	}
	a.log.Info("deposit submitted",
		"chain", a.cfg.ChainID, "order", req.OrderID, "tx", depositTx.Hex())

	return &chain.SubmitResult{TxHash: depositTx.Hex()}, nil
}

// WaitFinality polls for the deposit receipt. Only a successful receipt
// status settles the payment; anything else is a finality failure.
func (a *Adapter) WaitFinality(ctx context.Context, txHash string) error {
	ticker := time.NewTicker(a.cfg.ReceiptInterval)
	defer ticker.Stop()

	hash := common.HexToHash(txHash)
	for {
		receipt, err := a.submitter.Receipt(ctx, hash)
		switch {
		case errors.Is(err, ethereum.NotFound):
			// Still pending.
		case err != nil:
			return domain.Fail(domain.FailureNetwork, "Failed to fetch transaction receipt", err)
		case receipt == nil:
			// Still pending.
		case receipt.Status == types.ReceiptStatusSuccessful:
			return nil
		default:
			return domain.Fail(domain.FailureFinality, "Transaction failed", nil)
		}

		select {
		case <-ctx.Done():
			return domain.Fail(domain.FailureTimeout, "Timed out waiting for confirmation", ctx.Err())
		case <-ticker.C:
		}
	}
}

func (a *Adapter) baseUnits(tokenAddress string, amount decimal.Decimal) (*big.Int, error) {
	decimals, ok := a.cfg.Tokens[strings.ToLower(tokenAddress)]
	if !ok {
		return nil, fmt.Errorf("token %s is not accepted on chain %s", tokenAddress, a.cfg.ChainID)
	}

	units := amount.Shift(decimals)
	if !units.IsInteger() {
		return nil, fmt.Errorf("amount %s exceeds token precision (%d decimals)", amount, decimals)
	}
	return units.BigInt(), nil
}

func classifySubmission(call string, err error) error {
	if domain.IsWalletRejection(err) {
		return domain.Fail(domain.FailureUserRejected, "Transaction rejected, please try again", err)
	}
	return domain.Fail(domain.FailureOnChainSubmission, "Failed to submit "+call+" transaction", err)
}

// orderID32 encodes the backend order id as the bytes32 the deposit
// contract expects (big-endian, right-aligned).
func orderID32(orderID int64) [32]byte {
	var out [32]byte
	binary.BigEndian.PutUint64(out[24:], uint64(orderID))
	return out
}
