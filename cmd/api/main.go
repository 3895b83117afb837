package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"clipforge/internal/abtest"
	"clipforge/internal/cache"
	"clipforge/internal/config"
	"clipforge/internal/database"
	"clipforge/internal/logging"
	"clipforge/internal/metrics"
	"clipforge/internal/middleware"
	"clipforge/internal/publisher"
	"clipforge/internal/queue"
	"clipforge/internal/tracing"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	if cfg.Tracing.Enabled {
		_, closer, err := tracing.InitTracer(cfg.Tracing.ServiceName+"-api", cfg.Tracing.JaegerEndpoint)
		if err != nil {
			logger.WithError(err).Warn("Tracing disabled")
		} else {
			defer closer.Close()
		}
	}

	db, err := database.New(cfg.Database)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()
	repo := database.NewRepository(db)

	q, err := queue.New(cfg.Redis, cfg.Queue.Name)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to queue")
	}
	defer q.Close()

	clipCache, err := cache.New(cfg.Redis)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to cache")
	}
	defer clipCache.Close()

	var pub abtest.Publisher = publisher.Nop{}
	if cfg.Publisher.URL != "" {
		pub = publisher.NewWebhook(cfg.Publisher, logger)
	}
	ab := abtest.NewController(repo, pub, cfg.ABTest.EvalDays, logger)

	api := &API{
		cfg:    cfg,
		repo:   repo,
		queue:  q,
		cache:  clipCache,
		ab:     ab,
		logger: logger,
	}

	metricsSrv := metrics.NewServer(cfg.Metrics.Port)
	go func() {
		if err := metricsSrv.Start(); err != nil {
			logger.WithError(err).Error("Metrics server stopped")
		}
	}()

	router := setupRouter(api)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Infof("Starting API server on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Fatal("Server forced to shutdown")
	}
	if err := metricsSrv.Shutdown(ctx); err != nil {
		logger.WithError(err).Warn("Metrics server forced to shutdown")
	}

	logger.Info("Server stopped")
}

func setupRouter(api *API) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(api.logger))

	router.GET("/health", api.healthCheck)

	// Externally servable mirror of the media root
	router.Static(api.cfg.Media.BaseURL, api.cfg.Media.RootDir)

	v1 := router.Group("/api/v1")
	v1.Use(middleware.APIKeyAuth(api.cfg.Server.APIKey))
	{
		v1.POST("/videos", api.createVideo)
		v1.GET("/videos/:id", api.getVideo)
		v1.POST("/videos/:id/analyze", api.analyzeVideo)
		v1.GET("/videos/:id/segments", api.listSegments)
		v1.POST("/videos/:id/auto-render", api.autoRender)
		v1.GET("/videos/:id/clips", api.listClips)

		v1.POST("/clips", api.createClip)
		v1.GET("/clips/:id", api.getClip)
		v1.POST("/clips/:id/thumbnail", api.createThumbnail)
		v1.POST("/clips/:id/thumbnails/ab", api.createThumbnailsAB)
		v1.POST("/clips/:id/thumbnails/styles", api.createThumbnailStyles)
		v1.POST("/clips/:id/thumbnail/set", api.setThumbnail)

		v1.POST("/clips/:id/ab/start", api.startABTest)
		v1.POST("/clips/:id/ab/stop", api.stopABTest)
	}

	return router
}
