package main

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/openstreamhub/streamgate/internal/database"
	"github.com/openstreamhub/streamgate/internal/middleware"
	"github.com/openstreamhub/streamgate/pkg/models"
)

// login exchanges viewer credentials for a bearer token
func (api *API) login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	viewer, err := api.repo.GetViewerByEmail(c.Request.Context(), req.Email)
	if errors.Is(err, database.ErrNotFound) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load viewer"})
		return
	}
	if !viewer.IsActive {
		c.JSON(http.StatusForbidden, gin.H{"error": "Account is disabled"})
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(viewer.PasswordHash), []byte(req.Password)) != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	role := string(models.ViewerRoleViewer)
	if viewer.IsAdmin {
		role = string(models.ViewerRoleAdmin)
	}

	token, err := middleware.GenerateToken(viewer.ID, viewer.Email, role, api.cfg.Auth.TokenTTL)
	if err != nil {
		api.logger.WithViewerID(viewer.ID).ErrorWithErr("failed to issue token", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "viewer": viewer})
}

// me returns the signed-in viewer's profile
func (api *API) me(c *gin.Context) {
	viewerID, _ := middleware.GetViewerID(c)

	viewer, err := api.repo.GetViewer(c.Request.Context(), viewerID)
	if errors.Is(err, database.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Viewer not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load viewer"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"viewer": viewer})
}
