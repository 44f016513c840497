// Package registry holds the authoritative client-side state of every
// purchase since process start: an ordered, in-memory collection of
// in-flight records plus the single "active" (fully shown) reference.
package registry

import (
	"errors"
	"sync"
	"time"

	"github.com/availops/creditflow/internal/core/domain"
)

var (
	// ErrNotFound is returned when no record exists for the given id.
	ErrNotFound = errors.New("purchase not found")

	// ErrStatusRegression is returned when an update would move a record
	// backwards in the lifecycle.
	ErrStatusRegression = errors.New("purchase status may only advance")

	// ErrPurchaseSealed is returned when an update targets a record that
	// already reached a terminal state.
	ErrPurchaseSealed = errors.New("purchase is terminal and immutable")
)

// Registry is safe for concurrent use. Records are stored by value; callers
// always get copies, so the only mutation path is Put.
type Registry struct {
	mu       sync.RWMutex
	order    []string
	byID     map[string]domain.Purchase
	activeID string
}

func New() *Registry {
	return &Registry{
		byID: make(map[string]domain.Purchase),
	}
}

// Put appends a new record or replaces the existing one with the same id.
// Every state transition flows through here: it enforces forward-only
// status movement and terminal-state immutability.
func (r *Registry) Put(p domain.Purchase) error {
	if !p.Status.Valid() {
		return errors.New("unknown purchase status: " + string(p.Status))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	prev, exists := r.byID[p.ID]
	if !exists {
		p.UpdatedAt = time.Now()
		r.byID[p.ID] = p
		r.order = append(r.order, p.ID)
		return nil
	}

	if prev.Terminal() {
		return ErrPurchaseSealed
	}
	if p.Status.Before(prev.Status) {
		// A failure mark seals the record wherever it currently sits.
		// The writer's copy may lag the cosmetic almost_done bump; the
		// shown status still never moves backwards.
		if p.Failure == "" {
			return ErrStatusRegression
		}
		p.Status = prev.Status
	}

	p.UpdatedAt = time.Now()
	r.byID[p.ID] = p
	return nil
}

// Get returns a copy of the record for id.
func (r *Registry) Get(id string) (domain.Purchase, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byID[id]
	return p, ok
}

// List returns copies of all records in insertion order.
func (r *Registry) List() []domain.Purchase {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Purchase, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// InFlight returns the number of records that have not reached a terminal
// state yet.
func (r *Registry) InFlight() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, p := range r.byID {
		if !p.Terminal() {
			n++
		}
	}
	return n
}

// MarkAlmostDone advances the shown status from finality to almost_done.
// This is display-only feedback: it applies solely while the record sits in
// finality and can never produce completed or unseal a terminal record.
func (r *Registry) MarkAlmostDone(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.byID[id]
	if !ok || p.Terminal() || p.Status != domain.StatusFinality {
		return
	}
	p.Status = domain.StatusAlmostDone
	p.UpdatedAt = time.Now()
	r.byID[id] = p
}

// SetActive marks id as the purchase rendered full-screen. Exactly one
// record is active at a time; setting a new one displaces the previous.
func (r *Registry) SetActive(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[id]; !ok {
		return ErrNotFound
	}
	r.activeID = id
	return nil
}

// ClearActive drops the active reference. The record itself stays in the
// registry; it is only removed from full-screen focus.
func (r *Registry) ClearActive() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.activeID = ""
}

// Active returns a copy of the currently shown record, if any.
func (r *Registry) Active() (domain.Purchase, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.activeID == "" {
		return domain.Purchase{}, false
	}
	p, ok := r.byID[r.activeID]
	return p, ok
}
