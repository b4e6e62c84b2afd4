// Package messaging implements the in-process event bus and the aggregate
// dispatcher that feeds it after every successful persist.
package messaging

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/polos-ead/academic-records/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// EVENT BUS
// ══════════════════════════════════════════════════════════════════════════════

// Bus delivers events synchronously: for each event in order, every handler
// registered for its type runs to completion in registration order before
// Publish moves on. Handler failures and panics are logged and recorded, never
// returned to the publisher.
type Bus struct {
	mu          sync.RWMutex
	handlers    map[shared.EventType][]registration
	middlewares []Middleware
	logger      zerolog.Logger
	metrics     *Metrics
	deadLetters *DeadLetterQueue
}

type registration struct {
	name    string
	handler shared.EventHandler
}

// BusConfig contains configuration for Bus.
type BusConfig struct {
	Logger zerolog.Logger

	// EnableMetrics enables per-type counters.
	EnableMetrics bool

	// DeadLetterSize bounds the failed-delivery log. Zero disables it.
	DeadLetterSize int
}

// DefaultBusConfig returns sensible defaults.
func DefaultBusConfig(logger zerolog.Logger) BusConfig {
	return BusConfig{
		Logger:         logger,
		EnableMetrics:  true,
		DeadLetterSize: 100,
	}
}

// NewBus creates a bus with panic recovery installed as the outermost
// middleware.
func NewBus(config BusConfig) *Bus {
	logger := config.Logger.With().Str("component", "event_bus").Logger()

	b := &Bus{
		handlers: make(map[shared.EventType][]registration),
		logger:   logger,
	}
	if config.EnableMetrics {
		b.metrics = NewMetrics()
	}
	if config.DeadLetterSize > 0 {
		b.deadLetters = NewDeadLetterQueue(config.DeadLetterSize)
	}
	b.middlewares = []Middleware{RecoveryMiddleware(logger)}
	return b
}

// Use appends middleware. Middleware added later runs closer to the handler.
func (b *Bus) Use(mw Middleware) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.middlewares = append(b.middlewares, mw)
}

// Subscribe registers a handler for an event type.
func (b *Bus) Subscribe(eventType shared.EventType, handler shared.EventHandler) error {
	return b.SubscribeNamed(eventType, "", handler)
}

// SubscribeNamed registers a handler with a name used in logs and dead
// letters. Registering the same handler twice delivers twice.
func (b *Bus) SubscribeNamed(eventType shared.EventType, name string, handler shared.EventHandler) error {
	if handler == nil {
		return errors.New("handler cannot be nil")
	}
	if eventType == "" {
		return errors.New("event type cannot be empty")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], registration{name: name, handler: handler})
	b.logger.Debug().Str("event_type", string(eventType)).Str("handler", name).Msg("subscribed handler")
	return nil
}

// Publish delivers events in the given order.
func (b *Bus) Publish(ctx context.Context, events ...shared.Event) {
	for _, event := range events {
		if event == nil {
			continue
		}
		b.publish(ctx, event)
	}
}

func (b *Bus) publish(ctx context.Context, event shared.Event) {
	b.mu.RLock()
	regs := append([]registration(nil), b.handlers[event.EventType()]...)
	middlewares := append([]Middleware(nil), b.middlewares...)
	b.mu.RUnlock()

	if b.metrics != nil {
		b.metrics.RecordPublish(event.EventType())
	}
	if len(regs) == 0 {
		b.logger.Debug().Str("event_type", string(event.EventType())).Msg("no handlers for event")
		return
	}

	for _, reg := range regs {
		handler := reg.handler
		for i := len(middlewares) - 1; i >= 0; i-- {
			handler = middlewares[i](handler)
		}

		start := time.Now()
		err := handler(ctx, event)
		duration := time.Since(start)

		if b.metrics != nil {
			b.metrics.RecordHandlerExecution(event.EventType(), duration, err == nil)
		}
		if err == nil {
			continue
		}

		b.logger.Error().
			Err(err).
			Str("event_type", string(event.EventType())).
			Str("aggregate_id", event.AggregateID()).
			Str("handler", reg.name).
			Msg("handler error")

		if b.deadLetters != nil {
			b.deadLetters.Add(DeadLetterEntry{
				EventType:   event.EventType(),
				AggregateID: event.AggregateID(),
				Handler:     reg.name,
				Error:       err.Error(),
				FailedAt:    time.Now().UTC(),
			})
		}
	}
}

// HandlerCount returns how many handlers are registered for a type.
func (b *Bus) HandlerCount(eventType shared.EventType) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[eventType])
}

// Metrics returns the counters, or nil when disabled.
func (b *Bus) Metrics() *Metrics {
	return b.metrics
}

// DeadLetters returns the failed-delivery log, or nil when disabled.
func (b *Bus) DeadLetters() *DeadLetterQueue {
	return b.deadLetters
}

// ══════════════════════════════════════════════════════════════════════════════
// DEAD LETTER QUEUE
// ══════════════════════════════════════════════════════════════════════════════

// DeadLetterEntry records one failed handler invocation. Events are not
// re-delivered; the log is for operators.
type DeadLetterEntry struct {
	EventType   shared.EventType `json:"event_type"`
	AggregateID string           `json:"aggregate_id"`
	Handler     string           `json:"handler"`
	Error       string           `json:"error"`
	FailedAt    time.Time        `json:"failed_at"`
}

// DeadLetterQueue keeps the most recent failures, dropping the oldest.
type DeadLetterQueue struct {
	mu      sync.Mutex
	entries []DeadLetterEntry
	maxSize int
}

// NewDeadLetterQueue creates a bounded queue.
func NewDeadLetterQueue(maxSize int) *DeadLetterQueue {
	return &DeadLetterQueue{
		entries: make([]DeadLetterEntry, 0, maxSize),
		maxSize: maxSize,
	}
}

// Add appends an entry.
func (q *DeadLetterQueue) Add(entry DeadLetterEntry) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) >= q.maxSize {
		q.entries = q.entries[1:]
	}
	q.entries = append(q.entries, entry)
}

// Entries returns a copy of all entries, oldest first.
func (q *DeadLetterQueue) Entries() []DeadLetterEntry {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]DeadLetterEntry(nil), q.entries...)
}

// Size returns the current queue size.
func (q *DeadLetterQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// ══════════════════════════════════════════════════════════════════════════════
// METRICS
// ══════════════════════════════════════════════════════════════════════════════

// Metrics tracks bus activity.
type Metrics struct {
	mu sync.RWMutex

	published         map[shared.EventType]int64
	handlerExecutions int64
	handlerFailures   int64
	handlerTotalDurNs int64
	failuresByType    map[shared.EventType]int64
}

// NewMetrics creates an empty tracker.
func NewMetrics() *Metrics {
	return &Metrics{
		published:      make(map[shared.EventType]int64),
		failuresByType: make(map[shared.EventType]int64),
	}
}

// RecordPublish counts one published event.
func (m *Metrics) RecordPublish(eventType shared.EventType) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published[eventType]++
}

// RecordHandlerExecution counts one handler run.
func (m *Metrics) RecordHandlerExecution(eventType shared.EventType, duration time.Duration, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.handlerExecutions++
	m.handlerTotalDurNs += duration.Nanoseconds()
	if !success {
		m.handlerFailures++
		m.failuresByType[eventType]++
	}
}

// MetricsSnapshot is a point-in-time copy of Metrics.
type MetricsSnapshot struct {
	Published              map[shared.EventType]int64 `json:"published"`
	HandlerExecutions      int64                      `json:"handler_executions"`
	HandlerFailures        int64                      `json:"handler_failures"`
	AverageHandlerDuration time.Duration              `json:"average_handler_duration"`
}

// Snapshot returns a copy of the counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	published := make(map[shared.EventType]int64, len(m.published))
	for k, v := range m.published {
		published[k] = v
	}

	var avg time.Duration
	if m.handlerExecutions > 0 {
		avg = time.Duration(m.handlerTotalDurNs / m.handlerExecutions)
	}

	return MetricsSnapshot{
		Published:              published,
		HandlerExecutions:      m.handlerExecutions,
		HandlerFailures:        m.handlerFailures,
		AverageHandlerDuration: avg,
	}
}
