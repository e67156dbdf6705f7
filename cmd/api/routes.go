package main

import (
	"github.com/gin-gonic/gin"

	"github.com/openstreamhub/streamgate/internal/middleware"
)

func setupRouter(api *API) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger())

	router.GET("/health", api.health)

	limiter := middleware.NewRateLimiter(api.cfg.Server.RateLimitRPS, api.cfg.Server.RateLimitBurst)
	go limiter.Cleanup()

	v1 := router.Group("/api/v1")
	v1.Use(middleware.OptionalAuth())
	v1.Use(middleware.RateLimit(limiter))
	{
		// Authentication
		v1.POST("/auth/login", api.login)

		// Catalog
		v1.GET("/movies", api.listMovies)
		v1.GET("/movies/:id", api.getMovie)
		v1.GET("/movies/:id/sources", api.listMovieSources)
		v1.GET("/series", api.listSeries)
		v1.GET("/series/:id", api.getSeries)
		v1.GET("/series/:id/episodes", api.listEpisodes)

		// Bandwidth probe payload
		v1.GET("/bandwidth/probe", api.bandwidthProbe)

		// Playback sessions
		pb := v1.Group("/playback")
		{
			pb.POST("/sessions", api.createSession)
			pb.GET("/sessions/:id", api.getSession)
			pb.POST("/sessions/:id/source", api.selectSource)
			pb.POST("/sessions/:id/state", api.updatePlayerState)
			pb.POST("/sessions/:id/quality", api.setQuality)
			pb.POST("/sessions/:id/failure", api.reportFailure)
			pb.POST("/sessions/:id/fullscreen", api.setFullscreen)
			pb.POST("/sessions/:id/bandwidth", api.reportBandwidth)
			pb.POST("/sessions/:id/progress", api.saveProgress)
			pb.DELETE("/sessions/:id", api.teardownSession)

			pb.POST("/exchange", api.exchange)
		}
	}

	// Signed-in viewer surface
	viewer := router.Group("/api/v1")
	viewer.Use(middleware.JWTAuth())
	viewer.Use(middleware.RateLimit(limiter))
	{
		viewer.GET("/viewers/me", api.me)
		viewer.GET("/viewers/me/continue-watching", api.continueWatching)
		viewer.POST("/rentals", api.createRental)
	}

	// Admin surface
	admin := router.Group("/api/v1/admin")
	admin.Use(middleware.AdminOnly())
	{
		admin.GET("/settings", api.getSettings)
		admin.PUT("/settings", api.updateSettings)
	}

	return router
}
