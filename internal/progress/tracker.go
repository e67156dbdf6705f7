// Package progress persists watch positions so playback can resume across
// sessions and devices. Saves are throttled to a fixed cadence; a title
// counts as completed when less than the completion threshold remains.
package progress

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/openstreamhub/streamgate/internal/config"
	"github.com/openstreamhub/streamgate/internal/database"
	"github.com/openstreamhub/streamgate/internal/logging"
	"github.com/openstreamhub/streamgate/internal/metrics"
	"github.com/openstreamhub/streamgate/pkg/models"
)

// Repository is the persistence surface the tracker needs
type Repository interface {
	UpsertProgress(ctx context.Context, progress *models.WatchProgress) error
	GetProgress(ctx context.Context, viewerID, mediaID, episodeID string) (*models.WatchProgress, error)
	ListContinueWatching(ctx context.Context, viewerID string, limit int) ([]*models.WatchProgress, error)
}

// Publisher emits completion events to the message queue
type Publisher interface {
	PublishEvent(ctx context.Context, event *models.PlaybackEvent) error
}

// Tracker records and serves watch progress
type Tracker struct {
	repo              Repository
	publisher         Publisher
	saveEvery         time.Duration
	completeThreshold time.Duration
	logger            *logging.Logger
}

// NewTracker creates a progress tracker
func NewTracker(repo Repository, publisher Publisher, progressCfg config.ProgressConfig, playbackCfg config.PlaybackConfig, logger *logging.Logger) *Tracker {
	return &Tracker{
		repo:              repo,
		publisher:         publisher,
		saveEvery:         progressCfg.SaveEvery,
		completeThreshold: playbackCfg.CompleteThreshold,
		logger:            logger,
	}
}

// SaveRequest describes one progress report from a playing session. Force
// bypasses the save cadence and is set on teardown so the final position is
// never lost.
type SaveRequest struct {
	ViewerID   string
	MediaID    string
	MediaType  string
	EpisodeID  string
	SessionID  string
	StreamKind models.StreamKind
	Position   float64
	Duration   float64
	Force      bool
}

// ShouldSave reports whether enough time has passed since the last save.
// Teardown saves bypass this check so the final position is never lost.
func (t *Tracker) ShouldSave(lastSaved, now time.Time) bool {
	if lastSaved.IsZero() {
		return true
	}
	return now.Sub(lastSaved) >= t.saveEvery
}

// Save persists one progress report. Anonymous viewers, embedded players,
// and reports without a usable duration are skipped, not errored: a missing
// duration would otherwise mark everything completed or nothing resumable,
// and an embedded frame reports no trustworthy position at all.
func (t *Tracker) Save(ctx context.Context, req SaveRequest) (*models.WatchProgress, error) {
	if req.ViewerID == "" {
		metrics.RecordProgressSave("skipped")
		return nil, nil
	}
	if req.StreamKind == models.StreamKindEmbed {
		metrics.RecordProgressSave("skipped")
		return nil, nil
	}
	if req.Duration <= 0 || math.IsNaN(req.Duration) || math.IsNaN(req.Position) {
		metrics.RecordProgressSave("skipped")
		return nil, nil
	}

	position := req.Position
	if position < 0 {
		position = 0
	}
	if position > req.Duration {
		position = req.Duration
	}

	record := &models.WatchProgress{
		ID:          uuid.New().String(),
		ViewerID:    req.ViewerID,
		MediaID:     req.MediaID,
		MediaType:   req.MediaType,
		EpisodeID:   req.EpisodeID,
		Position:    position,
		Duration:    req.Duration,
		Completed:   req.Duration-position < t.completeThreshold.Seconds(),
		LastWatched: time.Now(),
	}

	previous, err := t.repo.GetProgress(ctx, req.ViewerID, req.MediaID, req.EpisodeID)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		t.logger.WithViewerID(req.ViewerID).ErrorWithErr("failed to load previous progress", err)
	}

	if !req.Force && previous != nil && !t.ShouldSave(previous.LastWatched, record.LastWatched) {
		metrics.RecordProgressSave("throttled")
		return previous, nil
	}

	if err := t.repo.UpsertProgress(ctx, record); err != nil {
		metrics.RecordProgressSave("error")
		t.logger.LogProgressSave(req.ViewerID, req.MediaID, position, req.Duration, record.Completed, err)
		return nil, fmt.Errorf("failed to save progress: %w", err)
	}

	metrics.RecordProgressSave("success")
	t.logger.LogProgressSave(req.ViewerID, req.MediaID, position, req.Duration, record.Completed, nil)

	if record.Completed && (previous == nil || !previous.Completed) {
		metrics.ContentCompletedTotal.Inc()
		t.publishCompletion(ctx, req, position)
	}

	return record, nil
}

func (t *Tracker) publishCompletion(ctx context.Context, req SaveRequest, position float64) {
	if t.publisher == nil {
		return
	}
	event := &models.PlaybackEvent{
		Type:      models.EventContentComplete,
		SessionID: req.SessionID,
		ViewerID:  req.ViewerID,
		MediaID:   req.MediaID,
		MediaType: req.MediaType,
		EpisodeID: req.EpisodeID,
		Position:  position,
		Timestamp: time.Now(),
	}
	if err := t.publisher.PublishEvent(ctx, event); err != nil {
		t.logger.WithViewerID(req.ViewerID).ErrorWithErr("failed to publish completion event", err)
	}
}

// Resume returns the position a viewer should resume a title at, zero when
// nothing is recorded or the title was finished.
func (t *Tracker) Resume(ctx context.Context, viewerID, mediaID, episodeID string) (float64, error) {
	if viewerID == "" {
		return 0, nil
	}
	record, err := t.repo.GetProgress(ctx, viewerID, mediaID, episodeID)
	if errors.Is(err, database.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to load progress: %w", err)
	}
	if record == nil || record.Completed {
		return 0, nil
	}
	return record.Position, nil
}

// ContinueWatching lists the viewer's unfinished titles, most recent first
func (t *Tracker) ContinueWatching(ctx context.Context, viewerID string, limit int) ([]*models.WatchProgress, error) {
	if viewerID == "" {
		return nil, nil
	}
	records, err := t.repo.ListContinueWatching(ctx, viewerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list continue watching: %w", err)
	}
	return records, nil
}
