package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/openstreamhub/streamgate/internal/database"
	"github.com/openstreamhub/streamgate/internal/metrics"
	"github.com/openstreamhub/streamgate/internal/middleware"
	"github.com/openstreamhub/streamgate/pkg/models"
)

// createRental purchases a rental window for the signed-in viewer. The
// cached entitlements for the title are invalidated so the next gate
// evaluation sees the rental immediately.
func (api *API) createRental(c *gin.Context) {
	var req struct {
		MediaID string `json:"media_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	viewerID, _ := middleware.GetViewerID(c)
	ctx := c.Request.Context()

	access, mediaType, err := api.rentableAccess(ctx, req.MediaID)
	if errors.Is(err, database.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Title not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load title"})
		return
	}
	if access.Type != models.AccessTypeRent {
		c.JSON(http.StatusConflict, gin.H{"error": "Title is not rentable"})
		return
	}

	days := access.RentalDays
	if days <= 0 {
		days = 2
	}

	rental := &models.Rental{
		ID:         uuid.New().String(),
		ViewerID:   viewerID,
		MediaID:    req.MediaID,
		MediaType:  mediaType,
		PriceCents: access.PriceCents,
		ExpiresAt:  time.Now().Add(time.Duration(days) * 24 * time.Hour),
	}

	if err := api.repo.CreateRental(ctx, rental); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create rental"})
		return
	}

	if err := api.cache.DeleteEntitlements(ctx, viewerID, req.MediaID); err != nil {
		api.logger.WithViewerID(viewerID).ErrorWithErr("failed to invalidate entitlements", err)
	}

	metrics.RentalsTotal.Inc()
	c.JSON(http.StatusCreated, gin.H{"rental": rental})
}

// rentableAccess resolves a rentable title's access descriptor. Movies are
// looked up first, then series: episode rentals always go through their
// series title.
func (api *API) rentableAccess(ctx context.Context, mediaID string) (models.AccessDescriptor, string, error) {
	movie, err := api.repo.GetMovie(ctx, mediaID)
	if err == nil && movie != nil {
		return movie.Access, models.MediaTypeMovie, nil
	}
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		return models.AccessDescriptor{}, "", err
	}

	series, err := api.repo.GetSeries(ctx, mediaID)
	if err != nil {
		return models.AccessDescriptor{}, "", err
	}
	if series == nil {
		return models.AccessDescriptor{}, "", database.ErrNotFound
	}
	return series.Access, models.MediaTypeSeries, nil
}

// Admin settings handlers

func (api *API) getSettings(c *gin.Context) {
	settings, err := api.repo.GetSettings(c.Request.Context())
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load settings"})
		return
	}
	if settings == nil {
		settings = &models.SiteSettings{
			BufferingGoalSec: api.cfg.Playback.BufferingGoalSec,
			Autoplay:         true,
		}
	}
	c.JSON(http.StatusOK, gin.H{"settings": settings})
}

func (api *API) updateSettings(c *gin.Context) {
	var settings models.SiteSettings
	if err := c.ShouldBindJSON(&settings); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	viewerID, _ := middleware.GetViewerID(c)
	settings.UpdatedBy = viewerID

	if err := api.repo.UpdateSettings(c.Request.Context(), &settings); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update settings"})
		return
	}

	// Drop the cached copy so running sessions pick the change up
	if err := api.cache.DeleteSettings(c.Request.Context()); err != nil {
		api.logger.ErrorWithErr("failed to invalidate cached settings", err)
	}

	c.JSON(http.StatusOK, gin.H{"settings": settings})
}
