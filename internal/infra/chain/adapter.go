// Package chain defines the boundary between the purchase engine and
// chain-specific payment submission. One Adapter exists per configured
// chain, selected once at wiring time.
package chain

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/availops/creditflow/internal/core/domain"
)

// SubmitRequest carries everything a chain needs to pay for an order.
// The order always exists before submission.
type SubmitRequest struct {
	OrderID      int64
	TokenAddress string
	Amount       decimal.Decimal
}

// SubmitResult is the handle returned by a successful submission.
type SubmitResult struct {
	TxHash string

	// Finalized is true when the submission path itself confirmed
	// finality (the batch chain does; EVM chains report it only after
	// the receipt arrives via WaitFinality).
	Finalized bool
}

// Adapter wraps one blockchain's submission primitive. Implementations
// return *domain.PurchaseError for every failure so the engine can map
// outcomes without inspecting chain internals.
type Adapter interface {
	// ChainID returns the numeric chain identifier used in order payloads.
	ChainID() domain.ChainID

	// Kind returns the submission strategy this adapter implements.
	Kind() domain.ChainKind

	// Submit signs and broadcasts the payment for req.
	Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error)

	// WaitFinality blocks until txHash is irreversibly included.
	// A nil return means the payment settled successfully.
	WaitFinality(ctx context.Context, txHash string) error
}
