package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/openstreamhub/streamgate/pkg/models"
)

// ErrNotFound is returned when a requested row does not exist
var ErrNotFound = errors.New("not found")

// Repository provides database operations
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// Health checks the underlying database connection
func (r *Repository) Health(ctx context.Context) error {
	return r.db.Health(ctx)
}

// Movies

// GetMovie retrieves a movie by ID
func (r *Repository) GetMovie(ctx context.Context, id string) (*models.Movie, error) {
	var movie models.Movie

	query := `
		SELECT id, title, overview, poster_url, backdrop_url, year, duration,
		       access_type, exclude_from_plan, price_cents, rental_days,
		       metadata, created_at, updated_at
		FROM movies
		WHERE id = $1
	`

	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&movie.ID, &movie.Title, &movie.Overview, &movie.PosterURL, &movie.BackdropURL,
		&movie.Year, &movie.Duration,
		&movie.Access.Type, &movie.Access.ExcludeFromPlan, &movie.Access.PriceCents, &movie.Access.RentalDays,
		&movie.Metadata, &movie.CreatedAt, &movie.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get movie: %w", err)
	}

	return &movie, nil
}

// ListMovies retrieves movies with pagination
func (r *Repository) ListMovies(ctx context.Context, limit, offset int) ([]*models.Movie, error) {
	query := `
		SELECT id, title, overview, poster_url, backdrop_url, year, duration,
		       access_type, exclude_from_plan, price_cents, rental_days,
		       metadata, created_at, updated_at
		FROM movies
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.db.Pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list movies: %w", err)
	}
	defer rows.Close()

	var movies []*models.Movie
	for rows.Next() {
		var movie models.Movie
		err := rows.Scan(
			&movie.ID, &movie.Title, &movie.Overview, &movie.PosterURL, &movie.BackdropURL,
			&movie.Year, &movie.Duration,
			&movie.Access.Type, &movie.Access.ExcludeFromPlan, &movie.Access.PriceCents, &movie.Access.RentalDays,
			&movie.Metadata, &movie.CreatedAt, &movie.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan movie: %w", err)
		}
		movies = append(movies, &movie)
	}

	return movies, nil
}

// Series

// GetSeries retrieves a series by ID
func (r *Repository) GetSeries(ctx context.Context, id string) (*models.Series, error) {
	var series models.Series

	query := `
		SELECT id, title, overview, poster_url, backdrop_url, year,
		       access_type, exclude_from_plan, price_cents, rental_days,
		       metadata, created_at, updated_at
		FROM series
		WHERE id = $1
	`

	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&series.ID, &series.Title, &series.Overview, &series.PosterURL, &series.BackdropURL,
		&series.Year,
		&series.Access.Type, &series.Access.ExcludeFromPlan, &series.Access.PriceCents, &series.Access.RentalDays,
		&series.Metadata, &series.CreatedAt, &series.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get series: %w", err)
	}

	return &series, nil
}

// ListSeries retrieves series with pagination
func (r *Repository) ListSeries(ctx context.Context, limit, offset int) ([]*models.Series, error) {
	query := `
		SELECT id, title, overview, poster_url, backdrop_url, year,
		       access_type, exclude_from_plan, price_cents, rental_days,
		       metadata, created_at, updated_at
		FROM series
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.db.Pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list series: %w", err)
	}
	defer rows.Close()

	var list []*models.Series
	for rows.Next() {
		var series models.Series
		err := rows.Scan(
			&series.ID, &series.Title, &series.Overview, &series.PosterURL, &series.BackdropURL,
			&series.Year,
			&series.Access.Type, &series.Access.ExcludeFromPlan, &series.Access.PriceCents, &series.Access.RentalDays,
			&series.Metadata, &series.CreatedAt, &series.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan series: %w", err)
		}
		list = append(list, &series)
	}

	return list, nil
}

// Episodes

// GetEpisode retrieves an episode by ID. The access columns are nullable:
// a NULL access_type means the series-level descriptor applies.
func (r *Repository) GetEpisode(ctx context.Context, id string) (*models.Episode, error) {
	var episode models.Episode
	var accessType *string
	var excludeFromPlan *bool
	var priceCents, rentalDays *int

	query := `
		SELECT id, series_id, season, number, title, overview, duration,
		       access_type, exclude_from_plan, price_cents, rental_days,
		       created_at, updated_at
		FROM episodes
		WHERE id = $1
	`

	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&episode.ID, &episode.SeriesID, &episode.Season, &episode.Number,
		&episode.Title, &episode.Overview, &episode.Duration,
		&accessType, &excludeFromPlan, &priceCents, &rentalDays,
		&episode.CreatedAt, &episode.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get episode: %w", err)
	}

	if accessType != nil {
		access := models.AccessDescriptor{Type: models.AccessType(*accessType)}
		if excludeFromPlan != nil {
			access.ExcludeFromPlan = *excludeFromPlan
		}
		if priceCents != nil {
			access.PriceCents = *priceCents
		}
		if rentalDays != nil {
			access.RentalDays = *rentalDays
		}
		episode.Access = &access
	}

	return &episode, nil
}

// ListEpisodes retrieves all episodes of a series in airing order
func (r *Repository) ListEpisodes(ctx context.Context, seriesID string) ([]*models.Episode, error) {
	query := `
		SELECT id, series_id, season, number, title, overview, duration,
		       created_at, updated_at
		FROM episodes
		WHERE series_id = $1
		ORDER BY season, number
	`

	rows, err := r.db.Pool.Query(ctx, query, seriesID)
	if err != nil {
		return nil, fmt.Errorf("failed to list episodes: %w", err)
	}
	defer rows.Close()

	var episodes []*models.Episode
	for rows.Next() {
		var episode models.Episode
		err := rows.Scan(
			&episode.ID, &episode.SeriesID, &episode.Season, &episode.Number,
			&episode.Title, &episode.Overview, &episode.Duration,
			&episode.CreatedAt, &episode.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan episode: %w", err)
		}
		episodes = append(episodes, &episode)
	}

	return episodes, nil
}

// Sources

// ListSources retrieves the raw source descriptors for a piece of content.
// For episodes pass the episode id, for movies the movie id.
func (r *Repository) ListSources(ctx context.Context, mediaID string) ([]models.RawSource, error) {
	query := `
		SELECT id, name, type, url, urls, is_default, object_key
		FROM sources
		WHERE media_id = $1
		ORDER BY is_default DESC, name
	`

	rows, err := r.db.Pool.Query(ctx, query, mediaID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}
	defer rows.Close()

	var sources []models.RawSource
	for rows.Next() {
		var src models.RawSource
		err := rows.Scan(
			&src.ID, &src.Name, &src.Type, &src.URL, &src.URLs, &src.IsDefault, &src.ObjectKey,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan source: %w", err)
		}
		sources = append(sources, src)
	}

	return sources, nil
}

// GetSource retrieves one raw source descriptor by id
func (r *Repository) GetSource(ctx context.Context, id string) (*models.RawSource, error) {
	var src models.RawSource

	query := `
		SELECT id, name, type, url, urls, is_default, object_key
		FROM sources
		WHERE id = $1
	`

	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&src.ID, &src.Name, &src.Type, &src.URL, &src.URLs, &src.IsDefault, &src.ObjectKey,
	)

	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get source: %w", err)
	}

	return &src, nil
}

// Viewers

// GetViewer retrieves a viewer by ID
func (r *Repository) GetViewer(ctx context.Context, id string) (*models.Viewer, error) {
	var viewer models.Viewer

	query := `
		SELECT id, email, password_hash, display_name, is_active, is_admin,
		       created_at, updated_at
		FROM viewers
		WHERE id = $1
	`

	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&viewer.ID, &viewer.Email, &viewer.PasswordHash, &viewer.DisplayName,
		&viewer.IsActive, &viewer.IsAdmin, &viewer.CreatedAt, &viewer.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get viewer: %w", err)
	}

	return &viewer, nil
}

// GetViewerByEmail retrieves a viewer by email for credential checks
func (r *Repository) GetViewerByEmail(ctx context.Context, email string) (*models.Viewer, error) {
	var viewer models.Viewer

	query := `
		SELECT id, email, password_hash, display_name, is_active, is_admin,
		       created_at, updated_at
		FROM viewers
		WHERE email = $1
	`

	err := r.db.Pool.QueryRow(ctx, query, email).Scan(
		&viewer.ID, &viewer.Email, &viewer.PasswordHash, &viewer.DisplayName,
		&viewer.IsActive, &viewer.IsAdmin, &viewer.CreatedAt, &viewer.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get viewer by email: %w", err)
	}

	return &viewer, nil
}
