// Package avail submits credit purchases on the Avail chain: one batched
// extrinsic carrying a transferKeepAlive and a remark with the order
// reference. The node reports submission phases over a callback channel;
// finality is confirmed by the submission itself, so no separate receipt
// wait exists on this path.
package avail

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/availops/creditflow/internal/core/domain"
	"github.com/availops/creditflow/internal/infra/chain"
)

// Phase mirrors the extrinsic lifecycle the node streams back.
type Phase string

const (
	PhaseBroadcast Phase = "broadcast"
	PhaseInBlock   Phase = "inblock"
	PhaseFinalized Phase = "finalized"
)

// Report is one phase notification from the submission stream. Err is set
// on a terminal failure; TxHash accompanies PhaseFinalized.
type Report struct {
	Phase  Phase
	TxHash string
	Err    error
}

// BatchSubmitter signs and submits the batched transfer+remark extrinsic,
// streaming phase reports until a terminal one (finalized or error). The
// wallet doing the signing is an external collaborator.
type BatchSubmitter interface {
	SubmitTransferWithRemark(ctx context.Context, amount decimal.Decimal, remark string, reports chan<- Report) error
}

// Config describes the Avail deposit surface.
type Config struct {
	ChainID      domain.ChainID
	TokenAddress string
	// SubmitTimeout fails the attempt if no terminal phase arrives.
	SubmitTimeout time.Duration
}

type Adapter struct {
	cfg       Config
	submitter BatchSubmitter
	log       *slog.Logger
}

var _ chain.Adapter = (*Adapter)(nil)

func NewAdapter(cfg Config, submitter BatchSubmitter, log *slog.Logger) *Adapter {
	if cfg.SubmitTimeout <= 0 {
		cfg.SubmitTimeout = 60 * time.Second
	}
	return &Adapter{cfg: cfg, submitter: submitter, log: log}
}

func (a *Adapter) ChainID() domain.ChainID {
	return a.cfg.ChainID
}

func (a *Adapter) Kind() domain.ChainKind {
	return domain.ChainKindAvail
}

// Submit drives the batch submission to its terminal phase. The remark
// carries the order id so the backend can correlate the transfer. A
// successful result is already final.
func (a *Adapter) Submit(ctx context.Context, req chain.SubmitRequest) (*chain.SubmitResult, error) {
	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	reports := make(chan Report, 4)
	errs := make(chan error, 1)

	remark := fmt.Sprintf("credit-order:%d", req.OrderID)
	go func() {
		errs <- a.submitter.SubmitTransferWithRemark(subCtx, req.Amount, remark, reports)
	}()

	timeout := time.NewTimer(a.cfg.SubmitTimeout)
	defer timeout.Stop()

	for {
		select {
		case report := <-reports:
			if report.Err != nil {
				return nil, classifySubmission(report.Err)
			}
			switch report.Phase {
			case PhaseBroadcast, PhaseInBlock:
				a.log.Debug("extrinsic progressing",
					"chain", a.cfg.ChainID, "order", req.OrderID, "phase", report.Phase)
			case PhaseFinalized:
				a.log.Info("extrinsic finalized",
					"chain", a.cfg.ChainID, "order", req.OrderID, "tx", report.TxHash)
				return &chain.SubmitResult{TxHash: report.TxHash, Finalized: true}, nil
			}

		case err := <-errs:
			if err != nil {
				return nil, classifySubmission(err)
			}
			// Submission goroutine finished cleanly; keep draining
			// reports until the terminal phase arrives.
			errs = nil

		case <-timeout.C:
			// Failing late submissions the same way as rejections keeps
			// the user-facing message a uniform "try again".
			cancel()
			return nil, domain.Fail(domain.FailureTimeout,
				"Transaction timed out, please try again", context.DeadlineExceeded)

		case <-ctx.Done():
			return nil, domain.Fail(domain.FailureTimeout, "Transaction cancelled", ctx.Err())
		}
	}
}

// WaitFinality is a no-op: the batch path only succeeds once the node
// reports the finalized phase.
func (a *Adapter) WaitFinality(ctx context.Context, txHash string) error {
	return nil
}

func classifySubmission(err error) error {
	if domain.IsWalletRejection(err) {
		return domain.Fail(domain.FailureUserRejected, "Transaction rejected, please try again", err)
	}
	return domain.Fail(domain.FailureOnChainSubmission, "Failed to submit transaction", err)
}
