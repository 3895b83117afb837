package models

import "time"

// JobType discriminates queued job descriptors
type JobType string

// JobType constants
const (
	JobIngest          JobType = "INGEST"
	JobTranscribe      JobType = "TRANSCRIBE"
	JobAnalyze         JobType = "ANALYZE"
	JobRender          JobType = "RENDER"
	JobAutoRender      JobType = "AUTO_RENDER"
	JobThumbnail       JobType = "THUMBNAIL"
	JobThumbnailsAB    JobType = "THUMBNAILS_AB"
	JobThumbnailStyles JobType = "THUMBNAIL_STYLES"
	JobThumbSet        JobType = "THUMB_SET"
)

// Job is the descriptor pushed through the work queue. The queue treats
// it as opaque; workers interpret it by Type. Delivery is at-least-once
// with no built-in deduplication, so every handler must tolerate
// reprocessing a partially completed job.
type Job struct {
	Type        JobType  `json:"type"`
	LogID       string   `json:"log_id,omitempty"`
	VideoID     string   `json:"video_id,omitempty"`
	ClipID      string   `json:"clip_id,omitempty"`
	SegmentID   string   `json:"segment_id,omitempty"`
	Start       float64  `json:"start,omitempty"`
	End         float64  `json:"end,omitempty"`
	AspectRatio string   `json:"aspect_ratio,omitempty"`
	SourceURL   string   `json:"source_url,omitempty"`
	Title       string   `json:"title,omitempty"`
	TitleA      string   `json:"title_a,omitempty"`
	TitleB      string   `json:"title_b,omitempty"`
	Keywords    []string `json:"keywords,omitempty"`
	Variant     Variant  `json:"variant,omitempty"`
	StyleKey    string   `json:"style_key,omitempty"`
	TopK        int      `json:"top_k,omitempty"`
}

// JobLog is the durable processing record of one queued job
type JobLog struct {
	ID        string    `json:"id" db:"id"`
	Type      JobType   `json:"type" db:"type"`
	Status    string    `json:"status" db:"status"`
	Error     string    `json:"error,omitempty" db:"error"`
	Attempts  int       `json:"attempts" db:"attempts"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// JobLog status constants
const (
	JobLogQueued  = "queued"
	JobLogStarted = "started"
	JobLogSuccess = "success"
	JobLogError   = "error"
)
