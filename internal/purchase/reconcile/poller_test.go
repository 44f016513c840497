package reconcile

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/availops/creditflow/internal/core/domain"
)

type mockSource struct {
	mu       sync.Mutex
	balances []decimal.Decimal
	errs     []error
	calls    int
}

func (m *mockSource) CreditBalance(ctx context.Context) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.calls
	m.calls++
	if i < len(m.errs) && m.errs[i] != nil {
		return decimal.Zero, m.errs[i]
	}
	if i >= len(m.balances) {
		return m.balances[len(m.balances)-1], nil
	}
	return m.balances[i], nil
}

func (m *mockSource) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type captureEmitter struct {
	mu     sync.Mutex
	events []domain.Event
}

func (e *captureEmitter) Emit(ctx context.Context, event *domain.Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, *event)
	return nil
}

func (e *captureEmitter) Close() error { return nil }

func (e *captureEmitter) byType(t domain.EventType) []domain.Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []domain.Event
	for _, ev := range e.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func dec(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

func TestPollerStopsOnBalanceChange(t *testing.T) {
	source := &mockSource{balances: []decimal.Decimal{
		dec("1000"), dec("1000"), dec("1200"),
	}}
	em := &captureEmitter{}
	p := NewPoller(source, em, testLogger(), WithTiming(time.Millisecond, 5*time.Millisecond, 24))

	p.Trigger(context.Background(), dec("1000"))
	p.Wait()

	if got := source.callCount(); got != 3 {
		t.Fatalf("expected polling to stop at the third read, got %d reads", got)
	}
	if p.Awaiting() {
		t.Fatal("expected awaiting flag cleared after reconciliation")
	}
	bal, ok := p.Balance()
	if !ok || !bal.Equal(dec("1200")) {
		t.Fatalf("expected balance 1200, got %s (ok=%v)", bal, ok)
	}
	if events := em.byType(domain.EventBalanceUpdated); len(events) != 1 {
		t.Fatalf("expected one balance_updated event, got %d", len(events))
	}
}

func TestPollerGivesUpQuietly(t *testing.T) {
	source := &mockSource{balances: []decimal.Decimal{dec("1000")}}
	em := &captureEmitter{}
	p := NewPoller(source, em, testLogger(), WithTiming(time.Millisecond, time.Millisecond, 4))

	p.Trigger(context.Background(), dec("1000"))
	p.Wait()

	if got := source.callCount(); got != 4 {
		t.Fatalf("expected exactly 4 polls, got %d", got)
	}
	if p.Awaiting() {
		t.Fatal("expected awaiting flag cleared after giving up")
	}
	bal, _ := p.Balance()
	if !bal.Equal(dec("1000")) {
		t.Fatalf("expected baseline balance held, got %s", bal)
	}
	if events := em.byType(domain.EventBalanceUpdated); len(events) != 0 {
		t.Fatalf("expected no balance event on timeout, got %d", len(events))
	}
}

func TestPollerSurvivesReadErrors(t *testing.T) {
	source := &mockSource{
		balances: []decimal.Decimal{dec("0"), dec("0"), dec("1200")},
		errs:     []error{errors.New("503"), errors.New("503"), nil},
	}
	em := &captureEmitter{}
	p := NewPoller(source, em, testLogger(), WithTiming(time.Millisecond, time.Millisecond, 24))

	p.Trigger(context.Background(), dec("1000"))
	p.Wait()

	bal, _ := p.Balance()
	if !bal.Equal(dec("1200")) {
		t.Fatalf("expected balance 1200 despite transient errors, got %s", bal)
	}
}

func TestTriggerCancelsPreviousRun(t *testing.T) {
	source := &mockSource{balances: []decimal.Decimal{dec("1000")}}
	em := &captureEmitter{}
	p := NewPoller(source, em, testLogger(), WithTiming(time.Millisecond, 10*time.Millisecond, 1000))

	p.Trigger(context.Background(), dec("1000"))
	time.Sleep(5 * time.Millisecond)

	// Second trigger replaces the first; the poller must still report
	// awaiting until the new run ends.
	p.Trigger(context.Background(), dec("1000"))
	if !p.Awaiting() {
		t.Fatal("expected awaiting true while the replacement run is live")
	}
	p.Stop()
	p.Wait()
}
