package main

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/openstreamhub/streamgate/internal/bandwidth"
	"github.com/openstreamhub/streamgate/internal/config"
	"github.com/openstreamhub/streamgate/internal/database"
	"github.com/openstreamhub/streamgate/internal/logging"
	"github.com/openstreamhub/streamgate/internal/playback"
	"github.com/openstreamhub/streamgate/internal/progress"
	"github.com/openstreamhub/streamgate/internal/source"
	"github.com/openstreamhub/streamgate/pkg/models"
)

// Repository is the database surface the handlers use directly
type Repository interface {
	Health(ctx context.Context) error
	GetMovie(ctx context.Context, id string) (*models.Movie, error)
	ListMovies(ctx context.Context, limit, offset int) ([]*models.Movie, error)
	GetSeries(ctx context.Context, id string) (*models.Series, error)
	ListSeries(ctx context.Context, limit, offset int) ([]*models.Series, error)
	ListEpisodes(ctx context.Context, seriesID string) ([]*models.Episode, error)
	ListSources(ctx context.Context, mediaID string) ([]models.RawSource, error)
	GetViewer(ctx context.Context, id string) (*models.Viewer, error)
	GetViewerByEmail(ctx context.Context, email string) (*models.Viewer, error)
	CreateRental(ctx context.Context, rental *models.Rental) error
	GetSettings(ctx context.Context) (*models.SiteSettings, error)
	UpdateSettings(ctx context.Context, settings *models.SiteSettings) error
}

// SessionService drives playback sessions
type SessionService interface {
	StartSession(ctx context.Context, req playback.StartRequest) (*models.PlaybackSession, error)
	GetSession(ctx context.Context, sessionID, viewerID string) (*models.PlaybackSession, error)
	SelectSource(ctx context.Context, sessionID, viewerID, sourceID string) (*models.PlaybackSession, error)
	UpdatePlayerState(ctx context.Context, sessionID, viewerID string, state models.PlayerState) (*models.PlaybackSession, error)
	ReportBandwidth(ctx context.Context, sessionID, viewerID string, hintMbps float64, probeBytes int, probeElapsed time.Duration) (*models.PlaybackSession, error)
	SetQuality(ctx context.Context, sessionID, viewerID, label string) (*models.PlaybackSession, error)
	ReportAdaptiveFailure(ctx context.Context, sessionID, viewerID string) (*models.PlaybackSession, error)
	Teardown(ctx context.Context, sessionID, viewerID string) (*models.PlaybackSession, error)
	Exchange(ctx context.Context, viewerID string, req models.ExchangeRequest) *models.ExchangeResponse
	ApplyExchange(ctx context.Context, sessionID, viewerID string, generation uint64, signed models.Source) (*models.PlaybackSession, error)
}

// ProgressService records and serves watch progress
type ProgressService interface {
	Save(ctx context.Context, req progress.SaveRequest) (*models.WatchProgress, error)
	ContinueWatching(ctx context.Context, viewerID string, limit int) ([]*models.WatchProgress, error)
}

// CacheClient is the cache surface the handlers use directly
type CacheClient interface {
	Ping(ctx context.Context) error
	IncrementViewCount(ctx context.Context, mediaID string) (int64, error)
	GetViewCount(ctx context.Context, mediaID string) (int64, error)
	DeleteEntitlements(ctx context.Context, viewerID, mediaID string) error
	DeleteSettings(ctx context.Context) error
}

// QueueClient is the queue surface the handlers use directly
type QueueClient interface {
	QueueDepth() (int, error)
}

type API struct {
	repo      Repository
	cache     CacheClient
	queue     QueueClient
	sessions  SessionService
	tracker   ProgressService
	estimator *bandwidth.Estimator
	cfg       *config.Config
	logger    *logging.Logger
}

func (api *API) health(c *gin.Context) {
	ctx := c.Request.Context()

	status := "healthy"
	checks := gin.H{"database": "ok", "cache": "ok", "queue": "ok"}

	if err := api.repo.Health(ctx); err != nil {
		status = "unhealthy"
		checks["database"] = err.Error()
	}
	if err := api.cache.Ping(ctx); err != nil {
		status = "unhealthy"
		checks["cache"] = err.Error()
	}
	if depth, err := api.queue.QueueDepth(); err != nil {
		status = "unhealthy"
		checks["queue"] = err.Error()
	} else {
		checks["queue_depth"] = depth
	}

	code := http.StatusOK
	if status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{"status": status, "checks": checks})
}

// Catalog handlers

func paginationParams(c *gin.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func (api *API) listMovies(c *gin.Context) {
	limit, offset := paginationParams(c)

	movies, err := api.repo.ListMovies(c.Request.Context(), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list movies"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"movies": movies, "limit": limit, "offset": offset})
}

func (api *API) getMovie(c *gin.Context) {
	movie, err := api.repo.GetMovie(c.Request.Context(), c.Param("id"))
	if errors.Is(err, database.ErrNotFound) || (err == nil && movie == nil) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Movie not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load movie"})
		return
	}

	views, _ := api.cache.GetViewCount(c.Request.Context(), movie.ID)
	c.JSON(http.StatusOK, gin.H{"movie": movie, "views": views})
}

func (api *API) listMovieSources(c *gin.Context) {
	ctx := c.Request.Context()

	movie, err := api.repo.GetMovie(ctx, c.Param("id"))
	if errors.Is(err, database.ErrNotFound) || (err == nil && movie == nil) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Movie not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load movie"})
		return
	}

	raws, err := api.repo.ListSources(ctx, movie.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list sources"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sources": source.Normalize(raws, movie.Access),
		"access":  movie.Access,
	})
}

func (api *API) listSeries(c *gin.Context) {
	limit, offset := paginationParams(c)

	series, err := api.repo.ListSeries(c.Request.Context(), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list series"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"series": series, "limit": limit, "offset": offset})
}

func (api *API) getSeries(c *gin.Context) {
	series, err := api.repo.GetSeries(c.Request.Context(), c.Param("id"))
	if errors.Is(err, database.ErrNotFound) || (err == nil && series == nil) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Series not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load series"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"series": series})
}

func (api *API) listEpisodes(c *gin.Context) {
	episodes, err := api.repo.ListEpisodes(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list episodes"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"episodes": episodes})
}

// bandwidthProbe serves a fixed payload the client downloads under timing to
// derive a startup bandwidth estimate.
func (api *API) bandwidthProbe(c *gin.Context) {
	c.Header("Cache-Control", "no-store, no-cache, must-revalidate")
	c.Header("Pragma", "no-cache")
	c.Data(http.StatusOK, "application/octet-stream", api.estimator.ProbePayload())
}

// playbackError maps service errors onto HTTP responses
func playbackError(c *gin.Context, err error) {
	var denied *playback.AccessDeniedError
	switch {
	case errors.As(err, &denied):
		c.JSON(http.StatusForbidden, gin.H{
			"error":    "Content is locked",
			"decision": denied.Decision,
		})
	case errors.Is(err, playback.ErrMediaNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Media not found"})
	case errors.Is(err, playback.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
	case errors.Is(err, playback.ErrSourceNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Source not found"})
	case errors.Is(err, playback.ErrNoSources):
		c.JSON(http.StatusConflict, gin.H{"error": "No playable sources"})
	case errors.Is(err, playback.ErrSessionTornDown):
		c.JSON(http.StatusGone, gin.H{"error": "Session is torn down"})
	case errors.Is(err, playback.ErrStaleExchange):
		c.JSON(http.StatusConflict, gin.H{"error": "Exchange response is stale"})
	case errors.Is(err, playback.ErrPlaybackFailed):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Playback failed on all engines"})
	case errors.Is(err, playback.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": "Invalid session state"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
	}
}

