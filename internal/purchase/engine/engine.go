// Package engine drives one credit purchase from user intent to settlement:
// create the backend order, submit the on-chain payment through the chain's
// adapter, watch finality, report inclusion and hand off to balance
// reconciliation. Each attempt owns its own registry record and advances
// strictly in sequence; attempts for different records run independently.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/availops/creditflow/internal/core/domain"
	"github.com/availops/creditflow/internal/infra/chain"
	"github.com/availops/creditflow/internal/infra/emitter"
	"github.com/availops/creditflow/internal/infra/journal"
	"github.com/availops/creditflow/internal/purchase/metrics"
	"github.com/availops/creditflow/internal/purchase/registry"
)

const defaultAlmostDoneDelay = 3 * time.Second

// Orders is the backend order surface the engine drives.
type Orders interface {
	CreateOrder(ctx context.Context, chainID domain.ChainID) (int64, error)
	ReportInclusion(ctx context.Context, orderID int64, txHash string) error
}

// Balances reads backend balance state. Estimation is display-only and must
// never block a purchase.
type Balances interface {
	CreditBalance(ctx context.Context) (decimal.Decimal, error)
	EstimateCredits(ctx context.Context, amount decimal.Decimal, tokenAddress string, chainID domain.ChainID) (decimal.Decimal, error)
}

// Reconciler is triggered after completion to watch the balance catch up.
type Reconciler interface {
	Trigger(ctx context.Context, baseline decimal.Decimal)
}

// Notifier is the visibility surface. The engine opens the progress view for
// a new purchase and refreshes it on every transition; what that means on
// screen is the notifier's business.
type Notifier interface {
	Open(id string) error
	Refresh(id string)
}

// BuyRequest is a validated purchase intent.
type BuyRequest struct {
	ChainID      domain.ChainID  `validate:"required"`
	TokenAddress string          `validate:"required"`
	Amount       decimal.Decimal `validate:"-"`
}

// Engine is the purchase state machine. Safe for concurrent BuyCredits
// calls; each call operates on its own registry record.
type Engine struct {
	orders     Orders
	balances   Balances
	adapters   map[domain.ChainID]chain.Adapter
	reg        *registry.Registry
	emitter    emitter.Emitter
	journal    journal.Journal
	reconciler Reconciler
	notifier   Notifier
	log        *slog.Logger
	validate   *validator.Validate

	almostDoneDelay time.Duration

	mu          sync.Mutex
	lastBalance decimal.Decimal
}

// Option adjusts engine behavior, mainly for tests.
type Option func(*Engine)

// WithAlmostDoneDelay overrides the cosmetic progress timer.
func WithAlmostDoneDelay(d time.Duration) Option {
	return func(e *Engine) { e.almostDoneDelay = d }
}

func New(
	orders Orders,
	balances Balances,
	adapters []chain.Adapter,
	reg *registry.Registry,
	em emitter.Emitter,
	jnl journal.Journal,
	reconciler Reconciler,
	notifier Notifier,
	log *slog.Logger,
	opts ...Option,
) *Engine {
	byChain := make(map[domain.ChainID]chain.Adapter, len(adapters))
	for _, a := range adapters {
		byChain[a.ChainID()] = a
	}
	e := &Engine{
		orders:          orders,
		balances:        balances,
		adapters:        byChain,
		reg:             reg,
		emitter:         em,
		journal:         jnl,
		reconciler:      reconciler,
		notifier:        notifier,
		log:             log,
		validate:        validator.New(),
		almostDoneDelay: defaultAlmostDoneDelay,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// BuyCredits drives one purchase attempt to a terminal outcome. The returned
// purchase is the final registry state; a non-nil error is always a
// *domain.PurchaseError carrying the failure kind. Order creation failures
// leave no registry record.
func (e *Engine) BuyCredits(ctx context.Context, req BuyRequest) (*domain.Purchase, error) {
	if err := e.validateRequest(req); err != nil {
		return nil, err
	}
	adapter, ok := e.adapters[req.ChainID]
	if !ok {
		return nil, fmt.Errorf("no adapter configured for chain %d", req.ChainID)
	}

	started := time.Now()
	chainLabel := req.ChainID.String()
	metrics.PurchasesStarted.WithLabelValues(chainLabel).Inc()

	// Step 1: order before payment, always. A failed order leaves nothing
	// behind.
	orderID, err := e.orders.CreateOrder(ctx, req.ChainID)
	if err != nil {
		metrics.PurchaseFailures.WithLabelValues(chainLabel, string(domain.FailureOrderCreation)).Inc()
		e.log.Error("order creation failed", "chain", req.ChainID, "error", err)
		return nil, err
	}

	p := domain.NewPurchase(req.ChainID, orderID, req.TokenAddress, req.Amount)
	if err := e.reg.Put(*p); err != nil {
		return nil, err
	}
	if err := e.notifier.Open(p.ID); err != nil {
		e.log.Warn("failed to open progress view", "purchase", p.ID, "error", err)
	}
	e.emit(ctx, domain.EventPurchaseStarted, *p, "")
	e.log.Info("purchase started",
		"purchase", p.ID, "chain", req.ChainID, "order", orderID,
		"token", req.TokenAddress, "amount", req.Amount)

	// Display-only: a failed estimate never blocks the purchase.
	if est, err := e.balances.EstimateCredits(ctx, req.Amount, req.TokenAddress, req.ChainID); err == nil {
		p.CreditAmount = &est
	} else {
		e.log.Debug("credit estimation failed", "purchase", p.ID, "error", err)
	}

	// Step 2: submit the payment through the chain's strategy.
	res, err := adapter.Submit(ctx, chain.SubmitRequest{
		OrderID:      orderID,
		TokenAddress: req.TokenAddress,
		Amount:       req.Amount,
	})
	if err != nil {
		return e.fail(ctx, p, err, domain.FailureOnChainSubmission)
	}

	// Step 3: the payment is on chain. From here on the record carries the
	// hash and any failure is "paid but not credited" territory.
	p.TxHash = res.TxHash
	p.Status = domain.StatusFinality
	if err := e.reg.Put(*p); err != nil {
		return nil, err
	}
	e.notifier.Refresh(p.ID)
	e.emit(ctx, domain.EventStatusChanged, *p, "")

	// Cosmetic progress: bump the shown status after a fixed delay. The
	// registry guard keeps this from ever touching a terminal record.
	timer := time.AfterFunc(e.almostDoneDelay, func() {
		e.reg.MarkAlmostDone(p.ID)
		e.notifier.Refresh(p.ID)
	})
	defer timer.Stop()

	// Step 4: finality. The batch chain confirms it during submission;
	// EVM chains need the receipt.
	if !res.Finalized {
		if err := adapter.WaitFinality(ctx, res.TxHash); err != nil {
			return e.fail(ctx, p, err, domain.FailureFinality)
		}
	}

	// Baseline for reconciliation, read before the backend credits the
	// account. A failed read falls back to the last balance any purchase
	// observed; the poller tolerates a stale baseline.
	baseline, balErr := e.balances.CreditBalance(ctx)
	if balErr != nil {
		e.log.Debug("baseline balance read failed", "purchase", p.ID, "error", balErr)
		baseline = e.knownBalance()
	} else {
		e.rememberBalance(baseline)
	}

	// Step 5: tell the backend. The money has moved; a failure here is the
	// worst outcome and is journaled for manual reconciliation.
	if err := e.orders.ReportInclusion(ctx, orderID, res.TxHash); err != nil {
		return e.fail(ctx, p, err, domain.FailureInclusionReport)
	}

	p.Status = domain.StatusCompleted
	if err := e.reg.Put(*p); err != nil {
		return nil, err
	}
	e.notifier.Refresh(p.ID)
	e.emit(ctx, domain.EventPurchaseCompleted, *p, "")
	e.journalOutcome(ctx, p, journal.OutcomeCompleted, "")

	metrics.PurchasesCompleted.WithLabelValues(chainLabel).Inc()
	metrics.PurchaseDuration.WithLabelValues(chainLabel).Observe(time.Since(started).Seconds())
	e.log.Info("purchase completed",
		"purchase", p.ID, "order", orderID, "tx", res.TxHash,
		"duration", time.Since(started))

	// Step 6: watch the balance catch up. Detached from the request
	// context; the poller outlives the call.
	e.reconciler.Trigger(context.WithoutCancel(ctx), baseline)

	final, _ := e.reg.Get(p.ID)
	return &final, nil
}

func (e *Engine) rememberBalance(b decimal.Decimal) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastBalance = b
}

func (e *Engine) knownBalance() decimal.Decimal {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastBalance
}

func (e *Engine) validateRequest(req BuyRequest) error {
	if err := e.validate.Struct(req); err != nil {
		return fmt.Errorf("invalid purchase request: %w", err)
	}
	if !req.Amount.IsPositive() {
		return fmt.Errorf("invalid purchase request: amount must be positive, got %s", req.Amount)
	}
	return nil
}

// fail records a terminal failure on the purchase, journals it, emits the
// failure event and returns the typed error. fallback classifies errors that
// arrive without a kind.
func (e *Engine) fail(ctx context.Context, p *domain.Purchase, cause error, fallback domain.FailureKind) (*domain.Purchase, error) {
	kind := domain.FailureOf(cause)
	if kind == "" {
		kind = fallback
		cause = domain.Fail(kind, cause.Error(), cause)
	}

	p.Failure = kind
	if err := e.reg.Put(*p); err != nil {
		e.log.Error("failed to record purchase failure", "purchase", p.ID, "error", err)
	}
	e.notifier.Refresh(p.ID)
	e.emit(ctx, domain.EventPurchaseFailed, *p, cause.Error())
	e.journalOutcome(ctx, p, journal.FailureOutcome(kind), cause.Error())

	metrics.PurchaseFailures.WithLabelValues(p.ChainID.String(), string(kind)).Inc()
	e.log.Error("purchase failed",
		"purchase", p.ID, "order", p.OrderID, "kind", kind,
		"tx", p.TxHash, "error", cause)

	return p, cause
}

func (e *Engine) emit(ctx context.Context, typ domain.EventType, p domain.Purchase, reason string) {
	err := e.emitter.Emit(ctx, &domain.Event{
		Type:      typ,
		Purchase:  p,
		Reason:    reason,
		EmittedAt: time.Now(),
	})
	if err != nil {
		e.log.Warn("failed to emit event", "type", typ, "purchase", p.ID, "error", err)
	}
}

func (e *Engine) journalOutcome(ctx context.Context, p *domain.Purchase, outcome journal.Outcome, message string) {
	err := e.journal.Record(ctx, journal.Entry{
		PurchaseID:   p.ID,
		OrderID:      p.OrderID,
		ChainID:      p.ChainID,
		TokenAddress: p.TokenAddress,
		TokenAmount:  p.TokenAmount.String(),
		TxHash:       p.TxHash,
		Outcome:      outcome,
		Message:      message,
	})
	if err != nil {
		e.log.Error("failed to journal purchase outcome", "purchase", p.ID, "error", err)
	}
}

// UserMessage maps a purchase failure to the short text shown to the user.
// Rejections and timeouts read as "try again"; everything after the payment
// reads as a generic failure.
func UserMessage(err error) string {
	kind := domain.FailureOf(err)
	switch {
	case kind == "":
		return "Something went wrong"
	case kind.Retriable():
		return "Transaction cancelled, please try again"
	case kind == domain.FailureOrderCreation, kind == domain.FailureNetwork:
		if pe := err.Error(); pe != "" {
			return pe
		}
		return "Something went wrong"
	default:
		return "Transaction failed"
	}
}
