package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/openstreamhub/streamgate/pkg/models"
)

// GetActiveSubscription retrieves the viewer's subscription when one is
// active. Returns (nil, nil) when none exists.
func (r *Repository) GetActiveSubscription(ctx context.Context, viewerID string) (*models.Subscription, error) {
	var sub models.Subscription

	query := `
		SELECT id, viewer_id, plan_name, device_limit, expires_at, created_at
		FROM subscriptions
		WHERE viewer_id = $1 AND expires_at > now()
		ORDER BY expires_at DESC
		LIMIT 1
	`

	err := r.db.Pool.QueryRow(ctx, query, viewerID).Scan(
		&sub.ID, &sub.ViewerID, &sub.PlanName, &sub.DeviceLimit, &sub.ExpiresAt, &sub.CreatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}

	return &sub, nil
}

// GetActiveRental retrieves the viewer's rental of the given content when
// one is active. Returns (nil, nil) when none exists.
func (r *Repository) GetActiveRental(ctx context.Context, viewerID, mediaID string) (*models.Rental, error) {
	var rental models.Rental

	query := `
		SELECT id, viewer_id, media_id, media_type, price_cents, device_limit,
		       expires_at, created_at
		FROM rentals
		WHERE viewer_id = $1 AND media_id = $2 AND expires_at > now()
		ORDER BY expires_at DESC
		LIMIT 1
	`

	err := r.db.Pool.QueryRow(ctx, query, viewerID, mediaID).Scan(
		&rental.ID, &rental.ViewerID, &rental.MediaID, &rental.MediaType,
		&rental.PriceCents, &rental.DeviceLimit, &rental.ExpiresAt, &rental.CreatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rental: %w", err)
	}

	return &rental, nil
}

// CreateRental records a rental purchase
func (r *Repository) CreateRental(ctx context.Context, rental *models.Rental) error {
	if rental.ID == "" {
		rental.ID = uuid.New().String()
	}

	query := `
		INSERT INTO rentals (id, viewer_id, media_id, media_type, price_cents,
		                     device_limit, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`

	err := r.db.Pool.QueryRow(ctx, query,
		rental.ID, rental.ViewerID, rental.MediaID, rental.MediaType,
		rental.PriceCents, rental.DeviceLimit, rental.ExpiresAt,
	).Scan(&rental.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create rental: %w", err)
	}

	return nil
}

// DeleteExpiredRentals removes rentals that expired before the cutoff and
// returns the number removed. Used by the worker's expiry sweep.
func (r *Repository) DeleteExpiredRentals(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx,
		`DELETE FROM rentals WHERE expires_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired rentals: %w", err)
	}
	return tag.RowsAffected(), nil
}
