package notify

import (
	"log/slog"

	"github.com/availops/creditflow/internal/core/domain"
)

// LogPresenter renders visibility changes into the structured log. It is the
// presenter used when the service runs headless; a UI host supplies its own.
type LogPresenter struct {
	log *slog.Logger
}

var _ Presenter = (*LogPresenter)(nil)

func NewLogPresenter(log *slog.Logger) *LogPresenter {
	return &LogPresenter{log: log}
}

func (p *LogPresenter) ShowProgress(purchase domain.Purchase) {
	p.log.Info("progress view",
		"purchase", purchase.ID, "status", purchase.Status, "order", purchase.OrderID)
}

func (p *LogPresenter) HideProgress() {
	p.log.Debug("progress view hidden")
}

func (p *LogPresenter) ShowToast(purchase domain.Purchase) {
	p.log.Info("toast", "purchase", purchase.ID, "status", purchase.Status)
}

func (p *LogPresenter) DismissToast() {
	p.log.Debug("toast dismissed")
}
