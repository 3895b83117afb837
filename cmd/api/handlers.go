package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"clipforge/internal/abtest"
	"clipforge/internal/config"
	"clipforge/internal/database"
	"clipforge/internal/logging"
	"clipforge/pkg/models"
)

const clipCacheTTL = 5 * time.Minute

// Repository is the persistence surface the API needs
type Repository interface {
	Health(ctx context.Context) error
	CreateVideo(ctx context.Context, video *models.Video) error
	GetVideo(ctx context.Context, id string) (*models.Video, error)
	ListSegmentsByVideo(ctx context.Context, videoID string) ([]*models.Segment, error)
	GetSegment(ctx context.Context, id string) (*models.Segment, error)
	CreateClip(ctx context.Context, clip *models.Clip) error
	GetClip(ctx context.Context, id string) (*models.Clip, error)
	ListClipsByVideo(ctx context.Context, videoID string) ([]*models.Clip, error)
	CreateJobLog(ctx context.Context, jobType models.JobType) (*models.JobLog, error)
}

// Pusher enqueues job descriptors
type Pusher interface {
	Push(ctx context.Context, job *models.Job) error
}

// ClipCache fronts clip reads; nil-clip results mean a miss
type ClipCache interface {
	GetClip(ctx context.Context, clipID string) (*models.Clip, error)
	SetClip(ctx context.Context, clip *models.Clip, ttl time.Duration) error
	DeleteClip(ctx context.Context, clipID string) error
}

// ABController drives the thumbnail A/B state machine
type ABController interface {
	Start(ctx context.Context, clipID string) error
	Stop(ctx context.Context, clipID string) error
}

// API wires the HTTP surface to the pipeline
type API struct {
	cfg    *config.Config
	repo   Repository
	queue  Pusher
	cache  ClipCache
	ab     ABController
	logger *logging.Logger
}

// enqueue creates a job log and pushes the descriptor
func (api *API) enqueue(ctx context.Context, job *models.Job) error {
	jl, err := api.repo.CreateJobLog(ctx, job.Type)
	if err != nil {
		return err
	}
	job.LogID = jl.ID
	return api.queue.Push(ctx, job)
}

func (api *API) healthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := api.repo.Health(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// createVideo registers a source video and queues its ingest
func (api *API) createVideo(c *gin.Context) {
	var req struct {
		SourceURL string `json:"source_url" binding:"required"`
		Title     string `json:"title"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	video := &models.Video{
		SourceURL: req.SourceURL,
		Title:     req.Title,
	}
	if err := api.repo.CreateVideo(c.Request.Context(), video); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if err := api.enqueue(c.Request.Context(), &models.Job{Type: models.JobIngest, VideoID: video.ID}); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, video)
}

func (api *API) getVideo(c *gin.Context) {
	video, err := api.repo.GetVideo(c.Request.Context(), c.Param("id"))
	if errors.Is(err, database.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "video not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, video)
}

// analyzeVideo re-queues the highlight analysis stage
func (api *API) analyzeVideo(c *gin.Context) {
	videoID := c.Param("id")
	if _, err := api.repo.GetVideo(c.Request.Context(), videoID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "video not found"})
		return
	}

	if err := api.enqueue(c.Request.Context(), &models.Job{Type: models.JobAnalyze, VideoID: videoID}); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"video_id": videoID, "queued": models.JobAnalyze})
}

func (api *API) listSegments(c *gin.Context) {
	segments, err := api.repo.ListSegmentsByVideo(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"segments": segments})
}

// autoRender queues renders for a video's top scored segments
func (api *API) autoRender(c *gin.Context) {
	videoID := c.Param("id")

	// Body is optional; a missing top_k falls back to the configured
	// default inside the worker.
	var req struct {
		TopK int `json:"top_k"`
	}
	_ = c.ShouldBindJSON(&req)

	if _, err := api.repo.GetVideo(c.Request.Context(), videoID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "video not found"})
		return
	}

	job := &models.Job{Type: models.JobAutoRender, VideoID: videoID, TopK: req.TopK}
	if err := api.enqueue(c.Request.Context(), job); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"video_id": videoID, "queued": models.JobAutoRender})
}

// createClip registers a clip for a segment or an explicit time range
// and queues its render.
func (api *API) createClip(c *gin.Context) {
	var req struct {
		VideoID     string   `json:"video_id" binding:"required"`
		SegmentID   string   `json:"segment_id"`
		Start       float64  `json:"start"`
		End         float64  `json:"end"`
		AspectRatio string   `json:"aspect_ratio"`
		Title       string   `json:"title"`
		Keywords    []string `json:"keywords"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.SegmentID == "" && req.End <= req.Start {
		c.JSON(http.StatusBadRequest, gin.H{"error": "segment_id or a start/end range is required"})
		return
	}
	if req.AspectRatio == "" {
		req.AspectRatio = models.AspectVertical
	}
	switch req.AspectRatio {
	case models.AspectVertical, models.AspectSquare, models.AspectWide:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported aspect ratio"})
		return
	}

	if req.SegmentID != "" {
		segment, err := api.repo.GetSegment(c.Request.Context(), req.SegmentID)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "segment not found"})
			return
		}
		req.Start, req.End = segment.Start, segment.End
	}

	clip := &models.Clip{
		VideoID:      req.VideoID,
		SegmentID:    req.SegmentID,
		AspectRatio:  req.AspectRatio,
		Title:        req.Title,
		CaptionStyle: models.CaptionStyle{Keywords: req.Keywords},
	}
	if err := api.repo.CreateClip(c.Request.Context(), clip); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	job := &models.Job{
		Type:      models.JobRender,
		ClipID:    clip.ID,
		SegmentID: req.SegmentID,
		Start:     req.Start,
		End:       req.End,
	}
	if err := api.enqueue(c.Request.Context(), job); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, clip)
}

// getClip serves a clip, fronted by the cache
func (api *API) getClip(c *gin.Context) {
	clipID := c.Param("id")

	if api.cache != nil {
		if clip, err := api.cache.GetClip(c.Request.Context(), clipID); err == nil && clip != nil {
			c.JSON(http.StatusOK, clip)
			return
		}
	}

	clip, err := api.repo.GetClip(c.Request.Context(), clipID)
	if errors.Is(err, database.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "clip not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if api.cache != nil {
		if err := api.cache.SetClip(c.Request.Context(), clip, clipCacheTTL); err != nil {
			api.logger.WithClipID(clipID).WithError(err).Warn("Failed to cache clip")
		}
	}
	c.JSON(http.StatusOK, clip)
}

func (api *API) listClips(c *gin.Context) {
	clips, err := api.repo.ListClipsByVideo(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"clips": clips})
}

// queueClipJob enqueues a thumbnail-family job for one clip
func (api *API) queueClipJob(c *gin.Context, job *models.Job) {
	clipID := c.Param("id")
	if _, err := api.repo.GetClip(c.Request.Context(), clipID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "clip not found"})
		return
	}
	job.ClipID = clipID

	if err := api.enqueue(c.Request.Context(), job); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	api.invalidateClip(c.Request.Context(), clipID)
	c.JSON(http.StatusAccepted, gin.H{"clip_id": clipID, "queued": job.Type})
}

func (api *API) createThumbnail(c *gin.Context) {
	var req struct {
		Title string `json:"title"`
	}
	_ = c.ShouldBindJSON(&req)

	api.queueClipJob(c, &models.Job{Type: models.JobThumbnail, Title: req.Title})
}

func (api *API) createThumbnailsAB(c *gin.Context) {
	var req struct {
		TitleA string `json:"title_a" binding:"required"`
		TitleB string `json:"title_b" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	api.queueClipJob(c, &models.Job{Type: models.JobThumbnailsAB, TitleA: req.TitleA, TitleB: req.TitleB})
}

func (api *API) createThumbnailStyles(c *gin.Context) {
	var req struct {
		Title string `json:"title"`
	}
	_ = c.ShouldBindJSON(&req)

	api.queueClipJob(c, &models.Job{Type: models.JobThumbnailStyles, Title: req.Title})
}

func (api *API) setThumbnail(c *gin.Context) {
	var req struct {
		Key string `json:"key" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	api.queueClipJob(c, &models.Job{Type: models.JobThumbSet, StyleKey: req.Key})
}

// startABTest transitions a clip's test to running
func (api *API) startABTest(c *gin.Context) {
	clipID := c.Param("id")
	err := api.ab.Start(c.Request.Context(), clipID)
	if err != nil {
		c.JSON(abErrorStatus(err), gin.H{"error": err.Error()})
		return
	}

	api.invalidateClip(c.Request.Context(), clipID)
	c.JSON(http.StatusOK, gin.H{"clip_id": clipID, "ab_status": models.ABRunning})
}

// stopABTest halts a clip's running test
func (api *API) stopABTest(c *gin.Context) {
	clipID := c.Param("id")
	err := api.ab.Stop(c.Request.Context(), clipID)
	if err != nil {
		c.JSON(abErrorStatus(err), gin.H{"error": err.Error()})
		return
	}

	api.invalidateClip(c.Request.Context(), clipID)
	c.JSON(http.StatusOK, gin.H{"clip_id": clipID, "ab_status": models.ABStopped})
}

// abErrorStatus maps controller errors onto HTTP statuses: failed
// preconditions are client errors, unknown clips are 404s.
func abErrorStatus(err error) int {
	switch {
	case errors.Is(err, abtest.ErrVariantsMissing),
		errors.Is(err, abtest.ErrNotRunning),
		errors.Is(err, abtest.ErrAlreadyStopped):
		return http.StatusConflict
	case errors.Is(err, database.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (api *API) invalidateClip(ctx context.Context, clipID string) {
	if api.cache == nil {
		return
	}
	if err := api.cache.DeleteClip(ctx, clipID); err != nil {
		api.logger.WithClipID(clipID).WithError(err).Warn("Failed to invalidate clip cache")
	}
}
