package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"clipforge/internal/abtest"
	"clipforge/internal/cache"
	"clipforge/internal/config"
	"clipforge/internal/database"
	"clipforge/internal/logging"
	"clipforge/internal/publisher"
	"clipforge/internal/queue"
	"clipforge/internal/schedule"
	"clipforge/pkg/models"
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

	state, err := cache.New(cfg.Redis)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to cache")
	}
	defer state.Close()

	var pub abtest.Publisher = publisher.Nop{}
	if cfg.Publisher.URL != "" {
		pub = publisher.NewWebhook(cfg.Publisher, logger)
	}
	ab := abtest.NewController(repo, pub, cfg.ABTest.EvalDays, logger)

	sched := schedule.New(state, cfg.Schedule.PollInterval, logger)
	sched.Add(schedule.Task{
		Name:     "ab_switch",
		Hour:     cfg.ABTest.SwitchHour,
		Interval: 24 * time.Hour,
		Run:      ab.SwitchAll,
	})
	sched.Add(schedule.Task{
		Name:     "ab_evaluate",
		Hour:     cfg.ABTest.EvalHour,
		Interval: 24 * time.Hour,
		Run:      ab.EvaluateAll,
	})
	sched.Add(schedule.Task{
		Name:     "auto_render",
		Hour:     cfg.Schedule.AutoRenderHour,
		Interval: 24 * time.Hour,
		Run: func(ctx context.Context) error {
			return queueAutoRender(ctx, repo, q, cfg.Schedule.AutoRenderTopK, logger)
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		logger.Info("Shutting down scheduler")
		cancel()
	}()

	if err := sched.Run(ctx); err != nil && err != context.Canceled {
		logger.WithError(err).Fatal("Scheduler stopped")
	}

	logger.Info("Scheduler stopped")
}

// queueAutoRender enqueues an auto-render pass for the most recently
// analyzed video. No analyzed video yet is not an error.
func queueAutoRender(ctx context.Context, repo *database.Repository, q *queue.Queue, topK int, logger *logging.Logger) error {
	video, err := repo.LatestVideoByStatus(ctx, models.VideoStatusAnalyzed)
	if errors.Is(err, database.ErrNotFound) {
		logger.Debug("No analyzed video to auto-render")
		return nil
	}
	if err != nil {
		return err
	}

	jl, err := repo.CreateJobLog(ctx, models.JobAutoRender)
	if err != nil {
		return err
	}

	job := &models.Job{
		Type:    models.JobAutoRender,
		LogID:   jl.ID,
		VideoID: video.ID,
		TopK:    topK,
	}
	if err := q.Push(ctx, job); err != nil {
		return err
	}

	logger.WithVideoID(video.ID).Info("Queued auto-render")
	return nil
}
