package worker

import (
	"context"
	"fmt"
	"time"

	"clipforge/internal/collab"
	"clipforge/internal/config"
	"clipforge/internal/ffmpeg"
	"clipforge/internal/highlight"
	"clipforge/internal/logging"
	"clipforge/internal/metrics"
	"clipforge/internal/render"
	"clipforge/internal/tracing"
	"clipforge/pkg/models"
)

// Repository is the persistence surface the stage handlers need
type Repository interface {
	GetVideo(ctx context.Context, id string) (*models.Video, error)
	UpdateVideo(ctx context.Context, video *models.Video) error
	UpsertTranscript(ctx context.Context, t *models.Transcript) error
	GetTranscript(ctx context.Context, videoID string) (*models.Transcript, error)
	ReplaceSegments(ctx context.Context, videoID string, segments []*models.Segment) error
	GetSegment(ctx context.Context, id string) (*models.Segment, error)
	ListSegmentsByVideo(ctx context.Context, videoID string) ([]*models.Segment, error)
	CreateClip(ctx context.Context, clip *models.Clip) error
	GetClip(ctx context.Context, id string) (*models.Clip, error)
	ListClipsByVideo(ctx context.Context, videoID string) ([]*models.Clip, error)
	UpdateClipOutput(ctx context.Context, id, outputPath, storageURL, status string) error
	UpdateClipThumbnails(ctx context.Context, id string, variants models.ThumbnailVariants, thumbnailURL string) error
	CreateJobLog(ctx context.Context, jobType models.JobType) (*models.JobLog, error)
	UpdateJobLog(ctx context.Context, id, status, errMsg string) error
}

// JobQueue is the queue surface the worker loop needs
type JobQueue interface {
	Push(ctx context.Context, job *models.Job) error
	Pop(ctx context.Context, timeout time.Duration) (*models.Job, error)
	Depth(ctx context.Context) (int64, error)
}

// Downloader fetches source videos
type Downloader interface {
	Download(ctx context.Context, sourceURL, destDir string) (string, error)
}

// Transcriber produces a timestamped transcript for a media file
type Transcriber interface {
	Transcribe(ctx context.Context, mediaPath string) (*collab.TranscriptResult, error)
}

// Prober reads basic media information
type Prober interface {
	Probe(ctx context.Context, inputPath string) (*ffmpeg.VideoInfo, error)
}

// Ranker turns transcript words into highlight candidates
type Ranker interface {
	Rank(ctx context.Context, words []models.Word) ([]highlight.Candidate, error)
}

// Reframer computes face-aware crop hints
type Reframer interface {
	StaticCrop(ctx context.Context, path string, start, end float64) (*models.CropHint, error)
}

// Encoder runs encode directives
type Encoder interface {
	Encode(ctx context.Context, d render.EncodeDirective) error
}

// Composer produces thumbnail images
type Composer interface {
	Compose(ctx context.Context, spec render.ThumbnailSpec) error
}

// Uploader mirrors artifacts into object storage; nil disables it
type Uploader interface {
	UploadFile(ctx context.Context, objectName, filePath string) error
	GetURL(ctx context.Context, objectName string, expiry time.Duration) (string, error)
}

// Publisher pushes a thumbnail live externally
type Publisher interface {
	SetThumbnail(ctx context.Context, clipID string, variant models.Variant, imagePath string) error
}

// Worker consumes jobs from the queue and runs the pipeline stages.
// One worker handles one job at a time; scale-out is more workers on
// the same queue.
type Worker struct {
	cfg         *config.Config
	repo        Repository
	queue       JobQueue
	downloader  Downloader
	transcriber Transcriber
	prober      Prober
	ranker      Ranker
	reframer    Reframer
	encoder     Encoder
	composer    Composer
	uploader    Uploader
	publisher   Publisher
	logger      *logging.Logger
}

// New creates a worker with all collaborators injected
func New(
	cfg *config.Config,
	repo Repository,
	queue JobQueue,
	downloader Downloader,
	transcriber Transcriber,
	prober Prober,
	ranker Ranker,
	reframer Reframer,
	encoder Encoder,
	composer Composer,
	uploader Uploader,
	publisher Publisher,
	logger *logging.Logger,
) *Worker {
	return &Worker{
		cfg:         cfg,
		repo:        repo,
		queue:       queue,
		downloader:  downloader,
		transcriber: transcriber,
		prober:      prober,
		ranker:      ranker,
		reframer:    reframer,
		encoder:     encoder,
		composer:    composer,
		uploader:    uploader,
		publisher:   publisher,
		logger:      logger,
	}
}

// Run consumes jobs until the context is cancelled
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Worker stopping")
			return ctx.Err()
		default:
		}

		job, err := w.queue.Pop(ctx, w.cfg.Queue.PopTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.logger.WithError(err).Error("Failed to pop job")
			time.Sleep(time.Second)
			continue
		}

		if depth, err := w.queue.Depth(ctx); err == nil {
			metrics.QueueDepth.Set(float64(depth))
		}

		if job == nil {
			continue
		}

		w.process(ctx, job)
	}
}

// process runs one job through its handler, recording the outcome on
// the job log. Handler errors never crash the worker.
func (w *Worker) process(ctx context.Context, job *models.Job) {
	started := time.Now()
	span, ctx := tracing.StartStageSpan(ctx, string(job.Type))

	logger := w.logger.WithJobID(job.LogID).WithStage(string(job.Type))
	logger.Info("Processing job")

	if err := w.repo.UpdateJobLog(ctx, job.LogID, models.JobLogStarted, ""); err != nil {
		logger.WithError(err).Warn("Failed to mark job started")
	}

	err := w.handle(ctx, job)

	status := models.JobLogSuccess
	errMsg := ""
	if err != nil {
		status = models.JobLogError
		errMsg = err.Error()
		logger.WithError(err).Error("Job failed")
	}

	if logErr := w.repo.UpdateJobLog(ctx, job.LogID, status, errMsg); logErr != nil {
		logger.WithError(logErr).Warn("Failed to record job status")
	}

	duration := time.Since(started)
	metrics.JobsProcessedTotal.WithLabelValues(string(job.Type), status).Inc()
	metrics.StageDuration.WithLabelValues(string(job.Type)).Observe(duration.Seconds())
	logger.LogStageDuration(string(job.Type), duration, err)
	tracing.FinishSpan(span, err)
}

// handle dispatches a job to its stage handler. Panics are contained
// here so a malformed job cannot poison the loop.
func (w *Worker) handle(ctx context.Context, job *models.Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()

	switch job.Type {
	case models.JobIngest:
		return w.handleIngest(ctx, job)
	case models.JobTranscribe:
		return w.handleTranscribe(ctx, job)
	case models.JobAnalyze:
		return w.handleAnalyze(ctx, job)
	case models.JobRender:
		return w.handleRender(ctx, job)
	case models.JobAutoRender:
		return w.handleAutoRender(ctx, job)
	case models.JobThumbnail:
		return w.handleThumbnail(ctx, job)
	case models.JobThumbnailsAB:
		return w.handleThumbnailsAB(ctx, job)
	case models.JobThumbnailStyles:
		return w.handleThumbnailStyles(ctx, job)
	case models.JobThumbSet:
		return w.handleThumbSet(ctx, job)
	default:
		return fmt.Errorf("unknown job type %q", job.Type)
	}
}

// enqueue creates a job log for the next stage and pushes its
// descriptor. The current stage has already committed its own state
// change by the time this is called.
func (w *Worker) enqueue(ctx context.Context, job *models.Job) error {
	jl, err := w.repo.CreateJobLog(ctx, job.Type)
	if err != nil {
		return fmt.Errorf("failed to create job log: %w", err)
	}
	job.LogID = jl.ID

	if err := w.queue.Push(ctx, job); err != nil {
		return fmt.Errorf("failed to enqueue %s job: %w", job.Type, err)
	}
	return nil
}
