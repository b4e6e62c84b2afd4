// Package eventhandler contains the report subscribers: one per domain event
// kind, each turning the event into an audit report. They are best effort.
// A subscriber that cannot find the data it needs skips the report and the
// use case that raised the event never learns about it.
package eventhandler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/polos-ead/academic-records/internal/application/command"
	"github.com/polos-ead/academic-records/internal/domain/shared"
)

// OutcomeKind says whether a report was written.
type OutcomeKind string

const (
	Delivered OutcomeKind = "delivered"
	Skipped   OutcomeKind = "skipped"
)

// Outcome is what a subscriber did with one event.
type Outcome struct {
	Kind     OutcomeKind
	ReportID string
	Reason   string
}

func delivered(reportID string) Outcome {
	return Outcome{Kind: Delivered, ReportID: reportID}
}

func skipped(reason string) Outcome {
	return Outcome{Kind: Skipped, Reason: reason}
}

// ReportSender persists reports. command.SendReportHandler implements it.
type ReportSender interface {
	SendReport(ctx context.Context, cmd command.SendReportCommand) (string, error)
	SendReportBatch(ctx context.Context, cmd command.SendReportBatchCommand) (string, error)
}

// Subscriber handles exactly one event kind.
type Subscriber interface {
	Name() string
	EventType() shared.EventType
	Handle(ctx context.Context, event shared.Event) (Outcome, error)
}

// Registry is the part of the event bus subscribers are registered on.
type Registry interface {
	SubscribeNamed(eventType shared.EventType, name string, handler shared.EventHandler) error
}

// Register subscribes every subscriber on the registry. The wrapped handler
// logs the outcome; a returned error is left for the bus to log and
// dead-letter.
func Register(registry Registry, logger zerolog.Logger, subscribers ...Subscriber) error {
	for _, s := range subscribers {
		log := logger.With().Str("handler", s.Name()).Logger()

		err := registry.SubscribeNamed(s.EventType(), s.Name(), func(ctx context.Context, event shared.Event) error {
			start := time.Now()
			out, err := s.Handle(ctx, event)
			if err != nil {
				return err
			}

			entry := log.Debug()
			if out.Kind == Delivered {
				entry = log.Info()
			}
			entry.
				Str("event_type", string(event.EventType())).
				Str("aggregate_id", event.AggregateID()).
				Str("outcome", string(out.Kind)).
				Str("report_id", out.ReportID).
				Str("reason", out.Reason).
				Dur("took", time.Since(start)).
				Msg("report subscriber finished")
			return nil
		})
		if err != nil {
			return fmt.Errorf("register %s: %w", s.Name(), err)
		}
	}
	return nil
}

// unexpected is returned when the bus hands a subscriber the wrong payload.
func unexpected(name string, event shared.Event) Outcome {
	return skipped(fmt.Sprintf("%s received %T", name, event))
}
