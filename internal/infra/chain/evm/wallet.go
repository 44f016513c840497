package evm

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

const erc20ABI = `
[
  {
    "name": "approve",
    "type": "function",
    "stateMutability": "nonpayable",
    "inputs": [
      { "name": "spender", "type": "address" },
      { "name": "amount", "type": "uint256" }
    ],
    "outputs": [{ "name": "", "type": "bool" }]
  }
]
`

const depositABI = `
[
  {
    "name": "depositERC20",
    "type": "function",
    "stateMutability": "nonpayable",
    "inputs": [
      { "name": "orderId", "type": "bytes32" },
      { "name": "amount", "type": "uint256" },
      { "name": "token", "type": "address" }
    ],
    "outputs": []
  }
]
`

// Wallet implements Submitter over a JSON-RPC endpoint with a local
// signing key. The key never leaves the process.
type Wallet struct {
	client     *ethclient.Client
	signer     *bind.TransactOpts
	erc20ABI   abi.ABI
	depositABI abi.ABI
}

var _ Submitter = (*Wallet)(nil)

// NewWallet dials rpcURL and prepares a keyed transactor bound to the
// endpoint's chain id.
func NewWallet(ctx context.Context, rpcURL, privateKeyHex string) (*Wallet, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial evm rpc: %w", err)
	}

	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("fetch chain id: %w", err)
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("parse signing key: %w", err)
	}

	signer, err := bind.NewKeyedTransactorWithChainID(key, chainID)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("create transactor: %w", err)
	}

	tokenABI, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	creditABI, err := abi.JSON(strings.NewReader(depositABI))
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("parse deposit abi: %w", err)
	}

	return &Wallet{
		client:     client,
		signer:     signer,
		erc20ABI:   tokenABI,
		depositABI: creditABI,
	}, nil
}

// Approve sends approve(spender, amount) on the token contract.
func (w *Wallet) Approve(ctx context.Context, token, spender common.Address, amount *big.Int) (common.Hash, error) {
	contract := bind.NewBoundContract(token, w.erc20ABI, w.client, w.client, w.client)

	opts := *w.signer
	opts.Context = ctx

	tx, err := contract.Transact(&opts, "approve", spender, amount)
	if err != nil {
		return common.Hash{}, fmt.Errorf("approve: %w", err)
	}
	return tx.Hash(), nil
}

// Deposit sends depositERC20(orderId, amount, token) on the credit contract.
func (w *Wallet) Deposit(ctx context.Context, contractAddr common.Address, orderID [32]byte, amount *big.Int, token common.Address) (common.Hash, error) {
	contract := bind.NewBoundContract(contractAddr, w.depositABI, w.client, w.client, w.client)

	opts := *w.signer
	opts.Context = ctx

	tx, err := contract.Transact(&opts, "depositERC20", orderID, amount, token)
	if err != nil {
		return common.Hash{}, fmt.Errorf("depositERC20: %w", err)
	}
	return tx.Hash(), nil
}

// Receipt fetches the receipt for txHash; go-ethereum returns
// ethereum.NotFound while the transaction is still pending.
func (w *Wallet) Receipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	return w.client.TransactionReceipt(ctx, txHash)
}

// Close releases the underlying RPC connection.
func (w *Wallet) Close() {
	w.client.Close()
}
