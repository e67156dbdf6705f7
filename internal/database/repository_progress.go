package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/openstreamhub/streamgate/pkg/models"
)

// UpsertProgress inserts or updates the watch-progress record for
// (viewer, content). The episode id distinguishes episodes of the same
// series; it is empty for movies.
func (r *Repository) UpsertProgress(ctx context.Context, progress *models.WatchProgress) error {
	if progress.ID == "" {
		progress.ID = uuid.New().String()
	}

	query := `
		INSERT INTO watch_progress (id, viewer_id, media_id, media_type,
		                            episode_id, position, duration, completed, last_watched)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (viewer_id, media_id, episode_id)
		DO UPDATE SET position = EXCLUDED.position,
		              duration = EXCLUDED.duration,
		              completed = EXCLUDED.completed,
		              last_watched = EXCLUDED.last_watched
	`

	_, err := r.db.Pool.Exec(ctx, query,
		progress.ID, progress.ViewerID, progress.MediaID, progress.MediaType,
		progress.EpisodeID, progress.Position, progress.Duration,
		progress.Completed, progress.LastWatched,
	)

	if err != nil {
		return fmt.Errorf("failed to upsert progress: %w", err)
	}

	return nil
}

// GetProgress retrieves the watch-progress record for (viewer, content)
func (r *Repository) GetProgress(ctx context.Context, viewerID, mediaID, episodeID string) (*models.WatchProgress, error) {
	var progress models.WatchProgress

	query := `
		SELECT id, viewer_id, media_id, media_type, episode_id,
		       position, duration, completed, last_watched
		FROM watch_progress
		WHERE viewer_id = $1 AND media_id = $2 AND episode_id = $3
	`

	err := r.db.Pool.QueryRow(ctx, query, viewerID, mediaID, episodeID).Scan(
		&progress.ID, &progress.ViewerID, &progress.MediaID, &progress.MediaType,
		&progress.EpisodeID, &progress.Position, &progress.Duration,
		&progress.Completed, &progress.LastWatched,
	)

	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get progress: %w", err)
	}

	return &progress, nil
}

// ListContinueWatching retrieves a viewer's in-progress items, most
// recently watched first.
func (r *Repository) ListContinueWatching(ctx context.Context, viewerID string, limit int) ([]*models.WatchProgress, error) {
	query := `
		SELECT id, viewer_id, media_id, media_type, episode_id,
		       position, duration, completed, last_watched
		FROM watch_progress
		WHERE viewer_id = $1 AND completed = false
		ORDER BY last_watched DESC
		LIMIT $2
	`

	rows, err := r.db.Pool.Query(ctx, query, viewerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list continue watching: %w", err)
	}
	defer rows.Close()

	var records []*models.WatchProgress
	for rows.Next() {
		var progress models.WatchProgress
		err := rows.Scan(
			&progress.ID, &progress.ViewerID, &progress.MediaID, &progress.MediaType,
			&progress.EpisodeID, &progress.Position, &progress.Duration,
			&progress.Completed, &progress.LastWatched,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan progress: %w", err)
		}
		records = append(records, &progress)
	}

	return records, nil
}
