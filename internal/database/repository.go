package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"clipforge/pkg/models"
)

// ErrNotFound is returned when a requested record does not exist
var ErrNotFound = errors.New("record not found")

// Repository provides database operations
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// Health checks database connectivity
func (r *Repository) Health(ctx context.Context) error {
	return r.db.Health(ctx)
}

// Videos

// CreateVideo creates a new video record
func (r *Repository) CreateVideo(ctx context.Context, video *models.Video) error {
	if video.ID == "" {
		video.ID = uuid.New().String()
	}
	if video.Status == "" {
		video.Status = models.VideoStatusNew
	}

	query := `
		INSERT INTO videos (id, source_url, title, duration_sec, language, source_path, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`

	err := r.db.Pool.QueryRow(ctx, query,
		video.ID, video.SourceURL, video.Title, video.DurationSec,
		video.Language, video.SourcePath, video.Status,
	).Scan(&video.CreatedAt, &video.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create video: %w", err)
	}

	return nil
}

// GetVideo retrieves a video by ID
func (r *Repository) GetVideo(ctx context.Context, id string) (*models.Video, error) {
	var video models.Video

	query := `
		SELECT id, source_url, title, duration_sec, language, source_path, status, created_at, updated_at
		FROM videos
		WHERE id = $1
	`

	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&video.ID, &video.SourceURL, &video.Title, &video.DurationSec,
		&video.Language, &video.SourcePath, &video.Status,
		&video.CreatedAt, &video.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get video: %w", err)
	}

	return &video, nil
}

// GetVideoBySourceURL retrieves a video by its source URL
func (r *Repository) GetVideoBySourceURL(ctx context.Context, url string) (*models.Video, error) {
	var video models.Video

	query := `
		SELECT id, source_url, title, duration_sec, language, source_path, status, created_at, updated_at
		FROM videos
		WHERE source_url = $1
	`

	err := r.db.Pool.QueryRow(ctx, query, url).Scan(
		&video.ID, &video.SourceURL, &video.Title, &video.DurationSec,
		&video.Language, &video.SourcePath, &video.Status,
		&video.CreatedAt, &video.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get video: %w", err)
	}

	return &video, nil
}

// UpdateVideo updates a video record
func (r *Repository) UpdateVideo(ctx context.Context, video *models.Video) error {
	query := `
		UPDATE videos
		SET source_url = $2, title = $3, duration_sec = $4, language = $5,
		    source_path = $6, status = $7, updated_at = now()
		WHERE id = $1
	`

	_, err := r.db.Pool.Exec(ctx, query,
		video.ID, video.SourceURL, video.Title, video.DurationSec,
		video.Language, video.SourcePath, video.Status,
	)

	if err != nil {
		return fmt.Errorf("failed to update video: %w", err)
	}

	return nil
}

// LatestVideoByStatus returns the most recently created video with the
// given status, or ErrNotFound.
func (r *Repository) LatestVideoByStatus(ctx context.Context, status string) (*models.Video, error) {
	var video models.Video

	query := `
		SELECT id, source_url, title, duration_sec, language, source_path, status, created_at, updated_at
		FROM videos
		WHERE status = $1
		ORDER BY created_at DESC
		LIMIT 1
	`

	err := r.db.Pool.QueryRow(ctx, query, status).Scan(
		&video.ID, &video.SourceURL, &video.Title, &video.DurationSec,
		&video.Language, &video.SourcePath, &video.Status,
		&video.CreatedAt, &video.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get video: %w", err)
	}

	return &video, nil
}

// Transcripts

// UpsertTranscript stores the transcript for a video, replacing any
// previous one. One row per video keeps redelivered transcribe jobs
// idempotent.
func (r *Repository) UpsertTranscript(ctx context.Context, t *models.Transcript) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}

	query := `
		INSERT INTO transcripts (id, video_id, language, text, words)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (video_id) DO UPDATE
		SET language = EXCLUDED.language, text = EXCLUDED.text, words = EXCLUDED.words
		RETURNING created_at
	`

	err := r.db.Pool.QueryRow(ctx, query,
		t.ID, t.VideoID, t.Language, t.Text, t.Words,
	).Scan(&t.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to upsert transcript: %w", err)
	}

	return nil
}

// GetTranscript retrieves the transcript for a video
func (r *Repository) GetTranscript(ctx context.Context, videoID string) (*models.Transcript, error) {
	var t models.Transcript

	query := `
		SELECT id, video_id, language, text, words, created_at
		FROM transcripts
		WHERE video_id = $1
	`

	err := r.db.Pool.QueryRow(ctx, query, videoID).Scan(
		&t.ID, &t.VideoID, &t.Language, &t.Text, &t.Words, &t.CreatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transcript: %w", err)
	}

	return &t, nil
}

// Segments

// ReplaceSegments atomically replaces the segment set of one video with
// the given batch. Analysis runs always write the full set, so a
// redelivered analyze job converges to the same rows.
func (r *Repository) ReplaceSegments(ctx context.Context, videoID string, segments []*models.Segment) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM segments WHERE video_id = $1`, videoID); err != nil {
		return fmt.Errorf("failed to clear segments: %w", err)
	}

	query := `
		INSERT INTO segments (id, video_id, t_start, t_end, score, features, embedding, reason, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	for _, s := range segments {
		if s.ID == "" {
			s.ID = uuid.New().String()
		}
		if s.Status == "" {
			s.Status = models.SegmentStatusCandidate
		}
		s.VideoID = videoID

		if _, err := tx.Exec(ctx, query,
			s.ID, s.VideoID, s.Start, s.End, s.Score, s.Features, s.Embedding, s.Reason, s.Status,
		); err != nil {
			return fmt.Errorf("failed to insert segment: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit segments: %w", err)
	}

	return nil
}

// GetSegment retrieves a segment by ID
func (r *Repository) GetSegment(ctx context.Context, id string) (*models.Segment, error) {
	var s models.Segment

	query := `
		SELECT id, video_id, t_start, t_end, score, features, embedding, reason, status, created_at
		FROM segments
		WHERE id = $1
	`

	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&s.ID, &s.VideoID, &s.Start, &s.End, &s.Score,
		&s.Features, &s.Embedding, &s.Reason, &s.Status, &s.CreatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get segment: %w", err)
	}

	return &s, nil
}

// ListSegmentsByVideo retrieves a video's segments ordered by score
func (r *Repository) ListSegmentsByVideo(ctx context.Context, videoID string) ([]*models.Segment, error) {
	query := `
		SELECT id, video_id, t_start, t_end, score, features, embedding, reason, status, created_at
		FROM segments
		WHERE video_id = $1
		ORDER BY score DESC, t_start ASC
	`

	rows, err := r.db.Pool.Query(ctx, query, videoID)
	if err != nil {
		return nil, fmt.Errorf("failed to list segments: %w", err)
	}
	defer rows.Close()

	var segments []*models.Segment
	for rows.Next() {
		var s models.Segment
		err := rows.Scan(
			&s.ID, &s.VideoID, &s.Start, &s.End, &s.Score,
			&s.Features, &s.Embedding, &s.Reason, &s.Status, &s.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan segment: %w", err)
		}
		segments = append(segments, &s)
	}

	return segments, nil
}

// Clips

// CreateClip creates a new clip record
func (r *Repository) CreateClip(ctx context.Context, clip *models.Clip) error {
	if clip.ID == "" {
		clip.ID = uuid.New().String()
	}
	if clip.Status == "" {
		clip.Status = models.ClipStatusQueued
	}
	if clip.ABStatus == "" {
		clip.ABStatus = models.ABNotStarted
	}

	query := `
		INSERT INTO clips (id, video_id, segment_id, aspect_ratio, title, caption_style,
		                   output_path, storage_url, thumbnails, thumbnail_url,
		                   ab_status, ab_active, ab_history, metrics, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING created_at, updated_at
	`

	err := r.db.Pool.QueryRow(ctx, query,
		clip.ID, clip.VideoID, clip.SegmentID, clip.AspectRatio, clip.Title, clip.CaptionStyle,
		clip.OutputPath, clip.StorageURL, clip.Thumbnails, clip.ThumbnailURL,
		clip.ABStatus, string(clip.ABActive), clip.ABHistory, clip.Metrics, clip.Status,
	).Scan(&clip.CreatedAt, &clip.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create clip: %w", err)
	}

	return nil
}

// GetClip retrieves a clip by ID
func (r *Repository) GetClip(ctx context.Context, id string) (*models.Clip, error) {
	var clip models.Clip
	var active string

	query := `
		SELECT id, video_id, segment_id, aspect_ratio, title, caption_style,
		       output_path, storage_url, thumbnails, thumbnail_url,
		       ab_status, ab_active, ab_history, metrics, status, created_at, updated_at
		FROM clips
		WHERE id = $1
	`

	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&clip.ID, &clip.VideoID, &clip.SegmentID, &clip.AspectRatio, &clip.Title, &clip.CaptionStyle,
		&clip.OutputPath, &clip.StorageURL, &clip.Thumbnails, &clip.ThumbnailURL,
		&clip.ABStatus, &active, &clip.ABHistory, &clip.Metrics, &clip.Status,
		&clip.CreatedAt, &clip.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get clip: %w", err)
	}

	clip.ABActive = models.Variant(active)
	return &clip, nil
}

// UpdateClipOutput records the rendered artifact of a clip
func (r *Repository) UpdateClipOutput(ctx context.Context, id, outputPath, storageURL, status string) error {
	query := `
		UPDATE clips
		SET output_path = $2, storage_url = $3, status = $4, updated_at = now()
		WHERE id = $1
	`

	_, err := r.db.Pool.Exec(ctx, query, id, outputPath, storageURL, status)
	if err != nil {
		return fmt.Errorf("failed to update clip output: %w", err)
	}

	return nil
}

// UpdateClipThumbnails stores the keyed thumbnail variants and the
// primary thumbnail URL of a clip
func (r *Repository) UpdateClipThumbnails(ctx context.Context, id string, variants models.ThumbnailVariants, thumbnailURL string) error {
	query := `
		UPDATE clips
		SET thumbnails = $2, thumbnail_url = $3, updated_at = now()
		WHERE id = $1
	`

	_, err := r.db.Pool.Exec(ctx, query, id, variants, thumbnailURL)
	if err != nil {
		return fmt.Errorf("failed to update clip thumbnails: %w", err)
	}

	return nil
}

// UpdateClipAB persists the A/B state of a clip: status, active variant
// and the append-only history.
func (r *Repository) UpdateClipAB(ctx context.Context, clip *models.Clip) error {
	query := `
		UPDATE clips
		SET ab_status = $2, ab_active = $3, ab_history = $4, updated_at = now()
		WHERE id = $1
	`

	_, err := r.db.Pool.Exec(ctx, query,
		clip.ID, clip.ABStatus, string(clip.ABActive), clip.ABHistory,
	)
	if err != nil {
		return fmt.Errorf("failed to update clip A/B state: %w", err)
	}

	return nil
}

// ListRunningClips retrieves all clips with a running A/B test
func (r *Repository) ListRunningClips(ctx context.Context) ([]*models.Clip, error) {
	query := `
		SELECT id, video_id, segment_id, aspect_ratio, title, caption_style,
		       output_path, storage_url, thumbnails, thumbnail_url,
		       ab_status, ab_active, ab_history, metrics, status, created_at, updated_at
		FROM clips
		WHERE ab_status = $1
	`

	rows, err := r.db.Pool.Query(ctx, query, models.ABRunning)
	if err != nil {
		return nil, fmt.Errorf("failed to list running clips: %w", err)
	}
	defer rows.Close()

	var clips []*models.Clip
	for rows.Next() {
		var clip models.Clip
		var active string
		err := rows.Scan(
			&clip.ID, &clip.VideoID, &clip.SegmentID, &clip.AspectRatio, &clip.Title, &clip.CaptionStyle,
			&clip.OutputPath, &clip.StorageURL, &clip.Thumbnails, &clip.ThumbnailURL,
			&clip.ABStatus, &active, &clip.ABHistory, &clip.Metrics, &clip.Status,
			&clip.CreatedAt, &clip.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan clip: %w", err)
		}
		clip.ABActive = models.Variant(active)
		clips = append(clips, &clip)
	}

	return clips, nil
}

// ListClipsByVideo retrieves all clips of a video
func (r *Repository) ListClipsByVideo(ctx context.Context, videoID string) ([]*models.Clip, error) {
	query := `
		SELECT id, video_id, segment_id, aspect_ratio, title, caption_style,
		       output_path, storage_url, thumbnails, thumbnail_url,
		       ab_status, ab_active, ab_history, metrics, status, created_at, updated_at
		FROM clips
		WHERE video_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.Pool.Query(ctx, query, videoID)
	if err != nil {
		return nil, fmt.Errorf("failed to list clips: %w", err)
	}
	defer rows.Close()

	var clips []*models.Clip
	for rows.Next() {
		var clip models.Clip
		var active string
		err := rows.Scan(
			&clip.ID, &clip.VideoID, &clip.SegmentID, &clip.AspectRatio, &clip.Title, &clip.CaptionStyle,
			&clip.OutputPath, &clip.StorageURL, &clip.Thumbnails, &clip.ThumbnailURL,
			&clip.ABStatus, &active, &clip.ABHistory, &clip.Metrics, &clip.Status,
			&clip.CreatedAt, &clip.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan clip: %w", err)
		}
		clip.ABActive = models.Variant(active)
		clips = append(clips, &clip)
	}

	return clips, nil
}

// Job logs

// CreateJobLog creates a job log record in the queued state
func (r *Repository) CreateJobLog(ctx context.Context, jobType models.JobType) (*models.JobLog, error) {
	jl := &models.JobLog{
		ID:     uuid.New().String(),
		Type:   jobType,
		Status: models.JobLogQueued,
	}

	query := `
		INSERT INTO job_logs (id, type, status)
		VALUES ($1, $2, $3)
		RETURNING created_at, updated_at
	`

	err := r.db.Pool.QueryRow(ctx, query, jl.ID, jl.Type, jl.Status).
		Scan(&jl.CreatedAt, &jl.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create job log: %w", err)
	}

	return jl, nil
}

// UpdateJobLog records the processing status of a job. A started
// transition also bumps the attempt counter, which makes redeliveries
// visible.
func (r *Repository) UpdateJobLog(ctx context.Context, id, status, errMsg string) error {
	if id == "" {
		return nil
	}

	query := `
		UPDATE job_logs
		SET status = $2, error = $3,
		    attempts = attempts + CASE WHEN $2 = 'started' THEN 1 ELSE 0 END,
		    updated_at = now()
		WHERE id = $1
	`

	_, err := r.db.Pool.Exec(ctx, query, id, status, errMsg)
	if err != nil {
		return fmt.Errorf("failed to update job log: %w", err)
	}

	return nil
}
