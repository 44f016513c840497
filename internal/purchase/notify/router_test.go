package notify

import (
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/availops/creditflow/internal/core/domain"
	"github.com/availops/creditflow/internal/purchase/registry"
)

type call struct {
	name string
	id   string
}

type mockPresenter struct {
	mu    sync.Mutex
	calls []call
}

func (m *mockPresenter) record(name, id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call{name: name, id: id})
}

func (m *mockPresenter) ShowProgress(p domain.Purchase) { m.record("show_progress", p.ID) }
func (m *mockPresenter) HideProgress()                  { m.record("hide_progress", "") }
func (m *mockPresenter) ShowToast(p domain.Purchase)    { m.record("show_toast", p.ID) }
func (m *mockPresenter) DismissToast()                  { m.record("dismiss_toast", "") }

func (m *mockPresenter) count(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.name == name {
			n++
		}
	}
	return n
}

func (m *mockPresenter) last(name string) (call, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.calls) - 1; i >= 0; i-- {
		if m.calls[i].name == name {
			return m.calls[i], true
		}
	}
	return call{}, false
}

func newTestRouter(t *testing.T) (*Router, *registry.Registry, *mockPresenter) {
	t.Helper()
	reg := registry.New()
	presenter := &mockPresenter{}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRouter(reg, presenter, log), reg, presenter
}

func addPurchase(t *testing.T, reg *registry.Registry, status domain.Status) *domain.Purchase {
	t.Helper()
	p := domain.NewPurchase(1, 42, "0xtoken", decimal.NewFromInt(10))
	p.Status = status
	if err := reg.Put(*p); err != nil {
		t.Fatalf("put: %v", err)
	}
	return p
}

func TestMinimizeShowsExactlyOneToast(t *testing.T) {
	router, reg, presenter := newTestRouter(t)
	p := addPurchase(t, reg, domain.StatusFinality)

	if err := router.Open(p.ID); err != nil {
		t.Fatalf("open: %v", err)
	}
	router.Minimize()

	if _, ok := reg.Active(); ok {
		t.Fatal("expected no active purchase after minimize")
	}
	if got := presenter.count("show_toast"); got != 1 {
		t.Fatalf("expected exactly one toast, got %d", got)
	}
	if id, ok := router.Toasted(); !ok || id != p.ID {
		t.Fatalf("expected toast for %s, got %s (ok=%v)", p.ID, id, ok)
	}
}

func TestMinimizeDismissesPreviousToastFirst(t *testing.T) {
	router, reg, presenter := newTestRouter(t)
	first := addPurchase(t, reg, domain.StatusBroadcast)
	second := addPurchase(t, reg, domain.StatusInBlock)

	if err := router.Open(first.ID); err != nil {
		t.Fatalf("open first: %v", err)
	}
	router.Minimize()
	if err := router.Open(second.ID); err != nil {
		t.Fatalf("open second: %v", err)
	}
	router.Minimize()

	if got := presenter.count("dismiss_toast"); got != 1 {
		t.Fatalf("expected the first toast dismissed once, got %d dismissals", got)
	}
	if id, _ := router.Toasted(); id != second.ID {
		t.Fatalf("expected last-minimized toast to win, got %s", id)
	}
	if last, _ := presenter.last("show_toast"); last.id != second.ID {
		t.Fatalf("expected visible toast for %s, got %s", second.ID, last.id)
	}
}

func TestCompletedPurchaseNeverToasts(t *testing.T) {
	router, reg, presenter := newTestRouter(t)
	p := addPurchase(t, reg, domain.StatusCompleted)

	if err := router.Open(p.ID); err != nil {
		t.Fatalf("open: %v", err)
	}
	router.Close()

	if got := presenter.count("show_toast"); got != 0 {
		t.Fatalf("expected no toast for a completed purchase, got %d", got)
	}
	if _, ok := router.Toasted(); ok {
		t.Fatal("expected no toast reference after dismissing a completed purchase")
	}
}

func TestReopenRestoresActiveAndDismissesToast(t *testing.T) {
	router, reg, presenter := newTestRouter(t)
	p := addPurchase(t, reg, domain.StatusFinality)

	if err := router.Open(p.ID); err != nil {
		t.Fatalf("open: %v", err)
	}
	router.Minimize()
	if err := router.Reopen(); err != nil {
		t.Fatalf("reopen: %v", err)
	}

	active, ok := reg.Active()
	if !ok || active.ID != p.ID {
		t.Fatalf("expected %s active after reopen", p.ID)
	}
	if _, ok := router.Toasted(); ok {
		t.Fatal("expected toast dismissed after reopen")
	}
	if got := presenter.count("dismiss_toast"); got != 1 {
		t.Fatalf("expected one toast dismissal, got %d", got)
	}
}

func TestReopenWithoutToast(t *testing.T) {
	router, _, _ := newTestRouter(t)
	if err := router.Reopen(); err != registry.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRefreshRendersLatestState(t *testing.T) {
	router, reg, presenter := newTestRouter(t)
	p := addPurchase(t, reg, domain.StatusBroadcast)

	if err := router.Open(p.ID); err != nil {
		t.Fatalf("open: %v", err)
	}

	p.Status = domain.StatusInBlock
	if err := reg.Put(*p); err != nil {
		t.Fatalf("put: %v", err)
	}
	router.Refresh(p.ID)

	if got := presenter.count("show_progress"); got != 2 {
		t.Fatalf("expected progress re-rendered, got %d shows", got)
	}
}
