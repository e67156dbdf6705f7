package main

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/openstreamhub/streamgate/internal/middleware"
	"github.com/openstreamhub/streamgate/internal/platform"
	"github.com/openstreamhub/streamgate/internal/playback"
	"github.com/openstreamhub/streamgate/internal/progress"
	"github.com/openstreamhub/streamgate/internal/source"
	"github.com/openstreamhub/streamgate/pkg/models"
)

func (api *API) createSession(c *gin.Context) {
	var req struct {
		MediaID        string              `json:"media_id" binding:"required"`
		MediaType      string              `json:"media_type" binding:"required"`
		EpisodeID      string              `json:"episode_id"`
		Capabilities   models.Capabilities `json:"capabilities"`
		Autoplay       *bool               `json:"autoplay"`
		ProbeBytes     int                 `json:"probe_bytes"`
		ProbeElapsedMS int64               `json:"probe_elapsed_ms"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	viewerID, _ := middleware.GetViewerID(c)

	session, err := api.sessions.StartSession(c.Request.Context(), playback.StartRequest{
		ViewerID:     viewerID,
		MediaID:      req.MediaID,
		MediaType:    req.MediaType,
		EpisodeID:    req.EpisodeID,
		Capabilities: req.Capabilities,
		ProbeBytes:   req.ProbeBytes,
		ProbeElapsed: time.Duration(req.ProbeElapsedMS) * time.Millisecond,
		Autoplay:     req.Autoplay,
	})
	if err != nil {
		playbackError(c, err)
		return
	}

	if _, err := api.cache.IncrementViewCount(c.Request.Context(), req.MediaID); err != nil {
		api.logger.WithMediaID(req.MediaID).ErrorWithErr("failed to bump view count", err)
	}

	c.JSON(http.StatusCreated, gin.H{"session": session})
}

func (api *API) getSession(c *gin.Context) {
	viewerID, _ := middleware.GetViewerID(c)

	session, err := api.sessions.GetSession(c.Request.Context(), c.Param("id"), viewerID)
	if err != nil {
		playbackError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": session})
}

func (api *API) selectSource(c *gin.Context) {
	var req struct {
		SourceID string `json:"source_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	viewerID, _ := middleware.GetViewerID(c)

	session, err := api.sessions.SelectSource(c.Request.Context(), c.Param("id"), viewerID, req.SourceID)
	if err != nil {
		playbackError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": session})
}

func (api *API) updatePlayerState(c *gin.Context) {
	var state models.PlayerState
	if err := c.ShouldBindJSON(&state); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	viewerID, _ := middleware.GetViewerID(c)

	session, err := api.sessions.UpdatePlayerState(c.Request.Context(), c.Param("id"), viewerID, state)
	if err != nil {
		playbackError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": session})
}

func (api *API) setQuality(c *gin.Context) {
	var req struct {
		Quality string `json:"quality" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	viewerID, _ := middleware.GetViewerID(c)

	session, err := api.sessions.SetQuality(c.Request.Context(), c.Param("id"), viewerID, req.Quality)
	if err != nil {
		playbackError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": session})
}

func (api *API) reportFailure(c *gin.Context) {
	viewerID, _ := middleware.GetViewerID(c)

	session, err := api.sessions.ReportAdaptiveFailure(c.Request.Context(), c.Param("id"), viewerID)
	if err != nil {
		playbackError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": session})
}

// setFullscreen records the fullscreen flag and answers with the
// orientation directive the client shell should apply.
func (api *API) setFullscreen(c *gin.Context) {
	var req struct {
		Fullscreen bool `json:"fullscreen"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	viewerID, _ := middleware.GetViewerID(c)

	session, err := api.sessions.GetSession(c.Request.Context(), c.Param("id"), viewerID)
	if err != nil {
		playbackError(c, err)
		return
	}

	if !platform.AllowFullscreen(session.Capabilities) && req.Fullscreen {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Fullscreen not available on this platform"})
		return
	}

	state := session.Player
	state.Fullscreen = req.Fullscreen
	session, err = api.sessions.UpdatePlayerState(c.Request.Context(), c.Param("id"), viewerID, state)
	if err != nil {
		playbackError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session":            session,
		"orientation":        platform.OrientationFor(session.Capabilities, req.Fullscreen),
		"picture_in_picture": platform.AllowPictureInPicture(session.Capabilities, sessionStreamKind(session)),
	})
}

// sessionStreamKind resolves the stream kind of the session's active source
func sessionStreamKind(session *models.PlaybackSession) models.StreamKind {
	if src := source.FindByID(session.Sources, session.SourceID); src != nil {
		return src.Kind
	}
	return models.StreamKindFile
}

// reportBandwidth refreshes a session's throughput estimate from a
// re-reported connection hint or timed probe download.
func (api *API) reportBandwidth(c *gin.Context) {
	var req struct {
		DownlinkMbps   float64 `json:"downlink_mbps"`
		ProbeBytes     int     `json:"probe_bytes"`
		ProbeElapsedMS int64   `json:"probe_elapsed_ms"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	viewerID, _ := middleware.GetViewerID(c)

	session, err := api.sessions.ReportBandwidth(
		c.Request.Context(), c.Param("id"), viewerID,
		req.DownlinkMbps, req.ProbeBytes, time.Duration(req.ProbeElapsedMS)*time.Millisecond,
	)
	if err != nil {
		playbackError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session":       session,
		"bandwidth_bps": session.BandwidthBPS,
	})
}

func (api *API) saveProgress(c *gin.Context) {
	var req struct {
		Position float64 `json:"position"`
		Duration float64 `json:"duration"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	viewerID, _ := middleware.GetViewerID(c)

	session, err := api.sessions.GetSession(c.Request.Context(), c.Param("id"), viewerID)
	if err != nil {
		playbackError(c, err)
		return
	}

	duration := req.Duration
	if duration <= 0 {
		duration = session.Player.Duration
	}

	record, err := api.tracker.Save(c.Request.Context(), progress.SaveRequest{
		ViewerID:   viewerID,
		MediaID:    session.MediaID,
		MediaType:  session.MediaType,
		EpisodeID:  session.EpisodeID,
		SessionID:  session.ID,
		StreamKind: sessionStreamKind(session),
		Position:   req.Position,
		Duration:   duration,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save progress"})
		return
	}
	if record == nil {
		c.JSON(http.StatusAccepted, gin.H{"saved": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"saved": true, "progress": record})
}

func (api *API) teardownSession(c *gin.Context) {
	viewerID, _ := middleware.GetViewerID(c)

	session, err := api.sessions.Teardown(c.Request.Context(), c.Param("id"), viewerID)
	if err != nil {
		playbackError(c, err)
		return
	}

	// Final save bypasses the cadence so the last position sticks
	if _, err := api.tracker.Save(c.Request.Context(), progress.SaveRequest{
		ViewerID:   viewerID,
		MediaID:    session.MediaID,
		MediaType:  session.MediaType,
		EpisodeID:  session.EpisodeID,
		SessionID:  session.ID,
		StreamKind: sessionStreamKind(session),
		Position:   session.Player.CurrentTime,
		Duration:   session.Player.Duration,
		Force:      true,
	}); err != nil {
		api.logger.WithSessionID(session.ID).ErrorWithErr("failed to save final progress", err)
	}

	c.JSON(http.StatusOK, gin.H{"session": session})
}

func (api *API) exchange(c *gin.Context) {
	var req struct {
		models.ExchangeRequest
		SessionID  string `json:"session_id"`
		Generation uint64 `json:"generation"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.SourceID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sourceId is required"})
		return
	}

	viewerID, _ := middleware.GetViewerID(c)

	resp := api.sessions.Exchange(c.Request.Context(), viewerID, req.ExchangeRequest)
	if !resp.Success {
		c.JSON(http.StatusOK, resp)
		return
	}

	// When the exchange is bound to a session, attach the signed source
	// unless the session has moved on to a newer generation.
	if req.SessionID != "" {
		if _, err := api.sessions.ApplyExchange(c.Request.Context(), req.SessionID, viewerID, req.Generation, *resp.Source); err != nil {
			playbackError(c, err)
			return
		}
	}

	c.JSON(http.StatusOK, resp)
}

func (api *API) continueWatching(c *gin.Context) {
	viewerID, _ := middleware.GetViewerID(c)

	records, err := api.tracker.ContinueWatching(c.Request.Context(), viewerID, 20)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list continue watching"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": records})
}
