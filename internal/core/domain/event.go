package domain

import "time"

// Event is an emitted purchase lifecycle notification.
type Event struct {
	Type      EventType `json:"type"`
	Purchase  Purchase  `json:"purchase"`
	Reason    string    `json:"reason,omitempty"`
	EmittedAt time.Time `json:"emitted_at"`
}

type EventType string

const (
	EventPurchaseStarted   EventType = "purchase_started"
	EventStatusChanged     EventType = "status_changed"
	EventPurchaseCompleted EventType = "purchase_completed"
	EventPurchaseFailed    EventType = "purchase_failed"
	EventBalanceUpdated    EventType = "balance_updated"
)
