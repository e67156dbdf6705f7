// Package analytics aggregates playback lifecycle events consumed from the
// message queue into per-day counters.
package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/openstreamhub/streamgate/internal/logging"
	"github.com/openstreamhub/streamgate/internal/metrics"
	"github.com/openstreamhub/streamgate/pkg/models"
)

// StatStore is the counter surface the service writes to
type StatStore interface {
	IncrementDailyStat(ctx context.Context, stat string, day time.Time) (int64, error)
}

// Service processes playback events from the queue
type Service struct {
	store  StatStore
	logger *logging.Logger
}

// NewService creates an analytics service
func NewService(store StatStore, logger *logging.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger,
	}
}

// statFor maps an event type onto its daily counter name. Unknown event
// types are counted too so a producer/consumer version skew is visible.
func statFor(eventType string) string {
	switch eventType {
	case models.EventSessionStarted:
		return "sessions_started"
	case models.EventSourceSwitched:
		return "source_switches"
	case models.EventSessionTornDown:
		return "sessions_torn_down"
	case models.EventContentComplete:
		return "completions"
	default:
		return "unknown_events"
	}
}

// HandleEvent records one playback event. The handler is idempotent enough
// for at-least-once delivery: double counts are acceptable, lost events are
// not, so errors are returned to trigger a redelivery.
func (s *Service) HandleEvent(ctx context.Context, event *models.PlaybackEvent) error {
	day := event.Timestamp
	if day.IsZero() {
		day = time.Now()
	}

	if _, err := s.store.IncrementDailyStat(ctx, statFor(event.Type), day); err != nil {
		metrics.RecordEventConsumed(event.Type, "error")
		return fmt.Errorf("failed to record event: %w", err)
	}

	// Completions also feed the per-title completion counter
	if event.Type == models.EventContentComplete && event.MediaID != "" {
		if _, err := s.store.IncrementDailyStat(ctx, "completions:"+event.MediaID, day); err != nil {
			s.logger.WithMediaID(event.MediaID).ErrorWithErr("failed to record completion", err)
		}
	}

	metrics.RecordEventConsumed(event.Type, "success")
	s.logger.WithSessionID(event.SessionID).WithMediaID(event.MediaID).Debugf("recorded %s event", event.Type)
	return nil
}
