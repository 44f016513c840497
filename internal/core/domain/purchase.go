package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Purchase represents one credit-purchase attempt from user intent through
// on-chain settlement to backend confirmation.
type Purchase struct {
	ID           string           `json:"id"`
	Status       Status           `json:"status"`
	ChainID      ChainID          `json:"chain_id"`
	OrderID      int64            `json:"order_id"`
	TokenAddress string           `json:"token_address"`
	TokenAmount  decimal.Decimal  `json:"token_amount"`
	TxHash       string           `json:"tx_hash,omitempty"`
	CreditAmount *decimal.Decimal `json:"credit_amount,omitempty"`
	Failure      FailureKind      `json:"failure,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// NewPurchase creates a purchase record with a fresh id. The order must
// already exist on the backend: payment never precedes the order.
func NewPurchase(chainID ChainID, orderID int64, tokenAddress string, amount decimal.Decimal) *Purchase {
	now := time.Now()
	return &Purchase{
		ID:           uuid.NewString(),
		Status:       StatusInitialised,
		ChainID:      chainID,
		OrderID:      orderID,
		TokenAddress: tokenAddress,
		TokenAmount:  amount,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Terminal reports whether the record can no longer change: either the
// purchase completed or a terminal failure was recorded.
func (p *Purchase) Terminal() bool {
	return p.Status == StatusCompleted || p.Failure != ""
}

// Status is the client-side lifecycle position of a purchase.
type Status string

const (
	StatusInitialised Status = "initialised"
	StatusBroadcast   Status = "broadcast"
	StatusInBlock     Status = "inblock"
	StatusFinality    Status = "finality"
	// StatusAlmostDone is a display-only stage between finality and
	// completion. It is driven by a timer, not by a settlement milestone.
	StatusAlmostDone Status = "almost_done"
	StatusCompleted  Status = "completed"
)

var statusRank = map[Status]int{
	StatusInitialised: 0,
	StatusBroadcast:   1,
	StatusInBlock:     2,
	StatusFinality:    3,
	StatusAlmostDone:  4,
	StatusCompleted:   5,
}

// Valid reports whether s is a known lifecycle status.
func (s Status) Valid() bool {
	_, ok := statusRank[s]
	return ok
}

// Before reports whether s comes strictly earlier than other in the
// lifecycle. Statuses only ever advance; the registry rejects regressions.
func (s Status) Before(other Status) bool {
	return statusRank[s] < statusRank[other]
}

func (s Status) String() string {
	return string(s)
}
