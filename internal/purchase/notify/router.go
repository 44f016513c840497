// Package notify decides what the user sees for an in-flight purchase: the
// full-screen progress view for the active record, or a corner toast for a
// minimized one. At most one toast is visible at a time.
package notify

import (
	"log/slog"
	"sync"

	"github.com/availops/creditflow/internal/core/domain"
	"github.com/availops/creditflow/internal/purchase/registry"
)

// Presenter is the UI surface the router drives. Implementations render a
// modal and a toast however the host application likes; the router only
// sequences them.
type Presenter interface {
	ShowProgress(p domain.Purchase)
	HideProgress()
	ShowToast(p domain.Purchase)
	DismissToast()
}

// Router projects registry state onto a Presenter. All visibility decisions
// go through it so the single-toast and single-active invariants hold no
// matter which goroutine drives a transition.
type Router struct {
	reg       *registry.Registry
	presenter Presenter
	log       *slog.Logger

	mu      sync.Mutex
	toastID string
}

func NewRouter(reg *registry.Registry, presenter Presenter, log *slog.Logger) *Router {
	return &Router{
		reg:       reg,
		presenter: presenter,
		log:       log,
	}
}

// Open makes id the active purchase and shows the progress view. If the
// purchase currently sits in the toast, the toast is dismissed.
func (r *Router) Open(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.reg.Get(id)
	if !ok {
		return registry.ErrNotFound
	}
	if err := r.reg.SetActive(id); err != nil {
		return err
	}

	if r.toastID == id {
		r.presenter.DismissToast()
		r.toastID = ""
	}
	r.presenter.ShowProgress(p)
	return nil
}

// Minimize clears the active reference and, unless the purchase already
// completed, converts it to a toast. Any toast shown for an earlier purchase
// is dismissed first so only the most recently minimized one is visible.
func (r *Router) Minimize() {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.reg.Active()
	if !ok {
		return
	}
	r.reg.ClearActive()
	r.presenter.HideProgress()

	if p.Status == domain.StatusCompleted {
		// Finished purchases are simply dismissed.
		return
	}

	if r.toastID != "" {
		r.presenter.DismissToast()
	}
	r.toastID = p.ID
	r.presenter.ShowToast(p)
	r.log.Debug("purchase minimized", "purchase", p.ID, "status", p.Status)
}

// Reopen promotes the toasted purchase back to active and dismisses the
// toast.
func (r *Router) Reopen() error {
	r.mu.Lock()
	id := r.toastID
	r.mu.Unlock()

	if id == "" {
		return registry.ErrNotFound
	}
	return r.Open(id)
}

// Close dismisses the progress view. For a completed purchase that is the
// end of it; anything still in flight minimizes to a toast instead, so the
// user never loses sight of a purchase that might still fail.
func (r *Router) Close() {
	r.Minimize()
}

// Refresh re-renders whatever surface currently shows id, picking up the
// latest registry state. State transitions call this after updating the
// registry.
func (r *Router) Refresh(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.reg.Get(id)
	if !ok {
		return
	}
	if active, ok := r.reg.Active(); ok && active.ID == id {
		r.presenter.ShowProgress(p)
		return
	}
	if r.toastID == id {
		r.presenter.ShowToast(p)
	}
}

// Toasted returns the id of the purchase currently shown as a toast, if any.
func (r *Router) Toasted() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.toastID, r.toastID != ""
}
