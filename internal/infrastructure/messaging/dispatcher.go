package messaging

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"

	"github.com/polos-ead/academic-records/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// AGGREGATE DISPATCHER
// ══════════════════════════════════════════════════════════════════════════════

// Dispatcher drains an aggregate's queued events and hands them to the bus.
// Repositories call it after a write commits; the aggregate never sees the bus.
type Dispatcher struct {
	publisher shared.EventPublisher
	logger    zerolog.Logger
}

// NewDispatcher creates a dispatcher that publishes through publisher.
func NewDispatcher(publisher shared.EventPublisher, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		publisher: publisher,
		logger:    logger.With().Str("component", "dispatcher").Logger(),
	}
}

// Dispatch implements shared.AggregateDispatcher. Each call drains at most
// once; events raised afterwards wait for the next persist. The write has
// already committed, so subscribers run detached from the caller's
// cancellation and rely on the bus timeout instead.
func (d *Dispatcher) Dispatch(ctx context.Context, aggregate shared.Aggregate) {
	if aggregate == nil {
		return
	}

	events := aggregate.DrainEvents()
	if len(events) == 0 {
		return
	}

	d.logger.Debug().
		Str("aggregate_id", aggregate.AggregateID()).
		Int("events", len(events)).
		Msg("dispatching aggregate events")

	d.publisher.Publish(context.WithoutCancel(ctx), events...)
}

// NopDispatcher discards events. Useful for seeding storage.
type NopDispatcher struct{}

// Dispatch drains and drops the events.
func (NopDispatcher) Dispatch(_ context.Context, aggregate shared.Aggregate) {
	if aggregate != nil {
		aggregate.DrainEvents()
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIDDLEWARE
// ══════════════════════════════════════════════════════════════════════════════

// Middleware wraps handler execution.
type Middleware func(shared.EventHandler) shared.EventHandler

// RecoveryMiddleware turns a handler panic into an error.
func RecoveryMiddleware(logger zerolog.Logger) Middleware {
	return func(next shared.EventHandler) shared.EventHandler {
		return func(ctx context.Context, event shared.Event) (err error) {
			defer func() {
				if r := recover(); r != nil {
					logger.Error().
						Str("event_type", string(event.EventType())).
						Interface("panic", r).
						Str("stack", string(debug.Stack())).
						Msg("handler panic recovered")
					err = fmt.Errorf("handler panic: %v", r)
				}
			}()
			return next(ctx, event)
		}
	}
}

// LoggingMiddleware logs each handler run at debug level.
func LoggingMiddleware(logger zerolog.Logger) Middleware {
	return func(next shared.EventHandler) shared.EventHandler {
		return func(ctx context.Context, event shared.Event) error {
			start := time.Now()
			err := next(ctx, event)

			logger.Debug().
				Str("event_type", string(event.EventType())).
				Str("aggregate_id", event.AggregateID()).
				Dur("duration", time.Since(start)).
				Bool("ok", err == nil).
				Msg("handler completed")

			return err
		}
	}
}

// TimeoutMiddleware bounds the context a handler sees. Handlers that ignore
// the context still run to completion.
func TimeoutMiddleware(timeout time.Duration) Middleware {
	return func(next shared.EventHandler) shared.EventHandler {
		return func(ctx context.Context, event shared.Event) error {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			return next(ctx, event)
		}
	}
}
