// Package handler applies decoded contract events to the projection.
package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vietddude/ledgersync/internal/core/domain"
	"github.com/vietddude/ledgersync/internal/indexing/metrics"
	"github.com/vietddude/ledgersync/internal/infra/storage"
)

// ErrInvalidEvent marks an event dropped for missing or malformed fields.
// Such events are never retried.
var ErrInvalidEvent = errors.New("invalid event")

// Func applies one event from tx.
type Func func(ctx context.Context, tx *domain.LedgerTransaction, ev domain.ContractEvent) error

// Registry routes events to the handler registered for their name.
type Registry struct {
	handlers map[domain.EventName]Func
	proj     storage.Projection
	log      *slog.Logger
	now      func() time.Time
}

// NewRegistry creates a registry with handlers for every known event.
func NewRegistry(proj storage.Projection, log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	r := &Registry{
		handlers: make(map[domain.EventName]Func),
		proj:     proj,
		log:      log,
		now:      time.Now,
	}
	r.Register(domain.EventContributionReceived, r.contributionReceived)
	r.Register(domain.EventRoundCompleted, r.roundCompleted)
	return r
}

// Register installs or replaces the handler for name.
func (r *Registry) Register(name domain.EventName, fn Func) {
	r.handlers[name] = fn
}

// Dispatch applies ev. Events without a handler are ignored.
func (r *Registry) Dispatch(ctx context.Context, tx *domain.LedgerTransaction, ev domain.ContractEvent) error {
	fn, ok := r.handlers[ev.Name]
	if !ok {
		r.log.Debug("No handler for event", "event", ev.Name, "tx", tx.Hash)
		return nil
	}

	err := fn(ctx, tx, ev)
	switch {
	case err == nil:
		metrics.EventsHandled.WithLabelValues(string(ev.Name), "applied").Inc()
	case errors.Is(err, ErrInvalidEvent):
		metrics.EventsHandled.WithLabelValues(string(ev.Name), "dropped").Inc()
	default:
		metrics.EventsHandled.WithLabelValues(string(ev.Name), "error").Inc()
	}
	return err
}

func invalid(ev domain.EventName, field string) error {
	return fmt.Errorf("%w: %s missing %s", ErrInvalidEvent, ev, field)
}
