package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"clipforge/internal/collab"
	"clipforge/internal/config"
	"clipforge/internal/database"
	"clipforge/internal/ffmpeg"
	"clipforge/internal/highlight"
	"clipforge/internal/logging"
	"clipforge/internal/metrics"
	"clipforge/internal/publisher"
	"clipforge/internal/queue"
	"clipforge/internal/reframe"
	"clipforge/internal/render"
	"clipforge/internal/storage"
	"clipforge/internal/tracing"
	"clipforge/internal/worker"
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
		_, closer, err := tracing.InitTracer(cfg.Tracing.ServiceName+"-worker", cfg.Tracing.JaegerEndpoint)
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

	// Object storage is an optional mirror; a nil uploader keeps
	// artifacts local under the media root.
	var uploader worker.Uploader
	if cfg.Storage.Enabled {
		st, err := storage.New(cfg.Storage)
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to storage")
		}
		uploader = st
	}

	ff := ffmpeg.New(cfg.Engines.FFmpegPath, cfg.Engines.FFprobePath)

	ranker := highlight.NewRanker(
		collab.NewHTTPEmbedder(cfg.Engines.EmbedderURL),
		highlight.Options{
			TargetLen:    cfg.Highlight.TargetLen,
			Stride:       cfg.Highlight.Stride,
			IOUThreshold: cfg.Highlight.IOUThreshold,
			MaxSegments:  cfg.Highlight.MaxSegments,
		},
		logger,
	)

	reframer := reframe.NewEngine(
		reframe.NewFFmpegFrameSource(ff),
		collab.NewHTTPDetector(cfg.Engines.DetectorURL),
		collab.NewHTTPTrackerFactory(cfg.Engines.TrackerURL),
		reframe.Options{
			TargetHeight:     cfg.Reframe.TargetHeight,
			CropWidth:        cfg.Reframe.CropWidth,
			SampleFPS:        cfg.Reframe.SampleFPS,
			TrackFPS:         cfg.Reframe.TrackFPS,
			SmoothWindow:     cfg.Reframe.SmoothWindow,
			RedetectInterval: cfg.Reframe.RedetectInterval,
		},
		logger,
	)

	var pub worker.Publisher = publisher.Nop{}
	if cfg.Publisher.URL != "" {
		pub = publisher.NewWebhook(cfg.Publisher, logger)
	}

	w := worker.New(
		cfg,
		repo,
		q,
		collab.NewYTDLP(cfg.Engines.YTDLPPath),
		collab.NewWhisperCLI(cfg.Engines.WhisperBin, cfg.Engines.WhisperModel, cfg.Media.TempDir),
		ff,
		ranker,
		reframer,
		render.NewEncoder(ff),
		render.NewComposer(ff, cfg.Media.TempDir),
		uploader,
		pub,
		logger,
	)

	metricsSrv := metrics.NewServer(cfg.Metrics.Port)
	go func() {
		if err := metricsSrv.Start(); err != nil {
			logger.WithError(err).Error("Metrics server stopped")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		logger.Info("Shutting down worker")
		cancel()
	}()

	if err := w.Run(ctx); err != nil && err != context.Canceled {
		logger.WithError(err).Fatal("Worker stopped")
	}

	logger.Info("Worker stopped")
}
