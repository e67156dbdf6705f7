package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/openstreamhub/streamgate/pkg/models"
)

// GetSettings retrieves the site settings row. A site has exactly one.
func (r *Repository) GetSettings(ctx context.Context) (*models.SiteSettings, error) {
	var settings models.SiteSettings

	query := `
		SELECT id, site_name, buffering_goal_sec, autoplay, default_quality_cap,
		       progress_save_sec, updated_by, updated_at
		FROM site_settings
		LIMIT 1
	`

	err := r.db.Pool.QueryRow(ctx, query).Scan(
		&settings.ID, &settings.SiteName, &settings.BufferingGoalSec,
		&settings.Autoplay, &settings.DefaultQualityCap,
		&settings.ProgressSaveSec, &settings.UpdatedBy, &settings.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}

	return &settings, nil
}

// UpdateSettings updates the site settings row
func (r *Repository) UpdateSettings(ctx context.Context, settings *models.SiteSettings) error {
	query := `
		UPDATE site_settings
		SET site_name = $2, buffering_goal_sec = $3, autoplay = $4,
		    default_quality_cap = $5, progress_save_sec = $6,
		    updated_by = $7, updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`

	err := r.db.Pool.QueryRow(ctx, query,
		settings.ID, settings.SiteName, settings.BufferingGoalSec,
		settings.Autoplay, settings.DefaultQualityCap,
		settings.ProgressSaveSec, settings.UpdatedBy,
	).Scan(&settings.UpdatedAt)

	if err == pgx.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update settings: %w", err)
	}

	return nil
}
