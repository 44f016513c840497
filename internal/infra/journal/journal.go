// Package journal keeps a durable record of terminal purchase outcomes.
// Its main job is the paid-but-not-credited case: an on-chain payment whose
// inclusion report failed has moved money without granting credits, and the
// (order id, tx hash) pair recorded here is what an operator or a backend
// sweep needs to reconcile it. Nothing here retries anything.
package journal

import (
	"context"
	"sync"
	"time"

	"github.com/availops/creditflow/internal/core/domain"
)

// Outcome is the terminal result recorded for a purchase: "completed" or a
// failure kind.
type Outcome string

const OutcomeCompleted Outcome = "completed"

// FailureOutcome converts a failure kind into its journal outcome.
func FailureOutcome(kind domain.FailureKind) Outcome {
	return Outcome(kind)
}

// Entry is one journaled purchase outcome.
type Entry struct {
	PurchaseID   string         `db:"purchase_id" json:"purchase_id"`
	OrderID      int64          `db:"order_id" json:"order_id"`
	ChainID      domain.ChainID `db:"chain_id" json:"chain_id"`
	TokenAddress string         `db:"token_address" json:"token_address"`
	TokenAmount  string         `db:"token_amount" json:"token_amount"`
	TxHash       string         `db:"tx_hash" json:"tx_hash"`
	Outcome      Outcome        `db:"outcome" json:"outcome"`
	Message      string         `db:"message" json:"message"`
	Reconciled   bool           `db:"reconciled" json:"reconciled"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
}

// NeedsReconciliation reports whether the entry represents money moved
// without credits granted.
func (e *Entry) NeedsReconciliation() bool {
	return e.Outcome == Outcome(domain.FailureInclusionReport) && !e.Reconciled
}

// Journal persists purchase outcomes.
type Journal interface {
	// Record stores one terminal outcome.
	Record(ctx context.Context, entry Entry) error

	// Unreconciled lists paid-but-not-credited entries awaiting manual
	// reconciliation, oldest first.
	Unreconciled(ctx context.Context) ([]Entry, error)

	// MarkReconciled flags an entry once credits were granted out of band.
	MarkReconciled(ctx context.Context, purchaseID string) error

	Close() error
}

// MemoryJournal is the in-memory implementation used when no database is
// configured and in tests.
type MemoryJournal struct {
	mu      sync.RWMutex
	entries []Entry
}

var _ Journal = (*MemoryJournal)(nil)

func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{}
}

func (j *MemoryJournal) Record(ctx context.Context, entry Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	j.entries = append(j.entries, entry)
	return nil
}

func (j *MemoryJournal) Unreconciled(ctx context.Context) ([]Entry, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	var out []Entry
	for _, e := range j.entries {
		if e.NeedsReconciliation() {
			out = append(out, e)
		}
	}
	return out, nil
}

func (j *MemoryJournal) MarkReconciled(ctx context.Context, purchaseID string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	for i := range j.entries {
		if j.entries[i].PurchaseID == purchaseID {
			j.entries[i].Reconciled = true
		}
	}
	return nil
}

func (j *MemoryJournal) Close() error {
	return nil
}

// Entries returns a copy of everything recorded, for tests and inspection.
func (j *MemoryJournal) Entries() []Entry {
	j.mu.RLock()
	defer j.mu.RUnlock()
	out := make([]Entry, len(j.entries))
	copy(out, j.entries)
	return out
}
