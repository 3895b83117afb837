package models

import "time"

// Video represents one source video moving through the pipeline
type Video struct {
	ID          string    `json:"id" db:"id"`
	SourceURL   string    `json:"source_url" db:"source_url"`
	Title       string    `json:"title" db:"title"`
	DurationSec float64   `json:"duration_sec" db:"duration_sec"`
	Language    string    `json:"language" db:"language"`
	SourcePath  string    `json:"source_path" db:"source_path"`
	Status      string    `json:"status" db:"status"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// VideoStatus constants
const (
	VideoStatusNew         = "new"
	VideoStatusIngested    = "ingested"
	VideoStatusTranscribed = "transcribed"
	VideoStatusAnalyzed    = "analyze_done"
	VideoStatusFailed      = "failed"
)
