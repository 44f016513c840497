// Package reconcile watches the backend credit balance after a purchase so
// the UI can flip from the old balance to the new one once the backend has
// actually credited the account. Crediting is asynchronous on the backend
// side, so a completed purchase does not mean the balance already moved.
package reconcile

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/availops/creditflow/internal/core/domain"
	"github.com/availops/creditflow/internal/infra/emitter"
	"github.com/availops/creditflow/internal/purchase/metrics"
)

const (
	defaultWarmup   = 2 * time.Second
	defaultInterval = 5 * time.Second
	defaultMaxPolls = 24
)

// BalanceSource provides the current credit balance.
type BalanceSource interface {
	CreditBalance(ctx context.Context) (decimal.Decimal, error)
}

// Poller re-reads the credit balance after a purchase until it changes or
// the poll budget runs out. Only one run is live at a time; triggering a new
// run cancels the previous one.
type Poller struct {
	source  BalanceSource
	emitter emitter.Emitter
	log     *slog.Logger

	warmup   time.Duration
	interval time.Duration
	maxPolls int

	mu       sync.Mutex
	awaiting bool
	balance  decimal.Decimal
	hasBal   bool
	cancel   context.CancelFunc
	done     chan struct{}
}

// Option overrides poller timing, mainly for tests.
type Option func(*Poller)

func WithTiming(warmup, interval time.Duration, maxPolls int) Option {
	return func(p *Poller) {
		p.warmup = warmup
		p.interval = interval
		p.maxPolls = maxPolls
	}
}

func NewPoller(source BalanceSource, em emitter.Emitter, log *slog.Logger, opts ...Option) *Poller {
	p := &Poller{
		source:   source,
		emitter:  em,
		log:      log,
		warmup:   defaultWarmup,
		interval: defaultInterval,
		maxPolls: defaultMaxPolls,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Awaiting reports whether a reconciliation run is in flight. The UI shows
// the balance as pending while this is true.
func (p *Poller) Awaiting() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.awaiting
}

// Balance returns the last balance the poller observed. ok is false until
// the first successful read.
func (p *Poller) Balance() (decimal.Decimal, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.balance, p.hasBal
}

// Trigger starts a reconciliation run against the given baseline balance.
// Any run already in flight is cancelled first: a second purchase completing
// while the first is still reconciling restarts the watch from the newer
// baseline.
func (p *Poller) Trigger(ctx context.Context, baseline decimal.Decimal) {
	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
	}
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.awaiting = true
	p.balance = baseline
	p.hasBal = true
	done := make(chan struct{})
	p.done = done
	p.mu.Unlock()

	go p.run(runCtx, baseline, done)
}

// Wait blocks until the current run finishes. Test helper.
func (p *Poller) Wait() {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Stop cancels any in-flight run.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
}

func (p *Poller) run(ctx context.Context, baseline decimal.Decimal, done chan struct{}) {
	defer close(done)
	defer p.finish(done)

	select {
	case <-ctx.Done():
		return
	case <-time.After(p.warmup):
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for polls := 0; polls < p.maxPolls; polls++ {
		metrics.ReconcilePolls.Inc()

		current, err := p.source.CreditBalance(ctx)
		if err != nil {
			// Transient read failures burn a poll but never abort
			// the run.
			p.log.Debug("balance poll failed", "error", err)
		} else if !current.Equal(baseline) {
			p.settle(ctx, current)
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}

	// Budget exhausted. The backend may still credit later; give up
	// quietly and let the balance refresh through normal reads.
	metrics.ReconcileTimeouts.Inc()
	p.log.Warn("balance unchanged after reconciliation window", "baseline", baseline)
}

func (p *Poller) settle(ctx context.Context, current decimal.Decimal) {
	p.mu.Lock()
	p.balance = current
	p.mu.Unlock()

	p.log.Info("credit balance reconciled", "balance", current)
	if err := p.emitter.Emit(ctx, &domain.Event{
		Type:      domain.EventBalanceUpdated,
		Reason:    current.String(),
		EmittedAt: time.Now(),
	}); err != nil {
		p.log.Warn("failed to emit balance event", "error", err)
	}
}

// finish clears the awaiting flag, but only if no newer run replaced this
// one in the meantime.
func (p *Poller) finish(done chan struct{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done == done {
		p.awaiting = false
	}
}
