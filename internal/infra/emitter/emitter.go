// Package emitter publishes purchase lifecycle events so dashboards and
// other processes can observe progress without reaching into the registry.
package emitter

import (
	"context"
	"log/slog"

	"github.com/availops/creditflow/internal/core/domain"
)

// Emitter defines the interface for emitting purchase events.
type Emitter interface {
	// Emit sends a single event
	Emit(ctx context.Context, event *domain.Event) error

	// Close closes the emitter connection
	Close() error
}

// LogEmitter writes events to the structured log. It is the fallback sink
// when no redis endpoint is configured.
type LogEmitter struct {
	log *slog.Logger
}

func NewLogEmitter(log *slog.Logger) *LogEmitter {
	return &LogEmitter{log: log}
}

func (e *LogEmitter) Emit(ctx context.Context, event *domain.Event) error {
	e.log.Info("purchase event",
		"type", event.Type,
		"purchase", event.Purchase.ID,
		"status", event.Purchase.Status,
		"order", event.Purchase.OrderID,
		"reason", event.Reason,
	)
	return nil
}

func (e *LogEmitter) Close() error {
	return nil
}
