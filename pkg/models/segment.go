package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// SegmentFeatures holds the text features a segment was scored on
type SegmentFeatures struct {
	ExclamCount  int     `json:"exclam_count"`
	Quoteability float64 `json:"quoteability"`
}

// Value implements driver.Valuer for database storage
func (f SegmentFeatures) Value() (driver.Value, error) {
	return json.Marshal(f)
}

// Scan implements sql.Scanner for database retrieval
func (f *SegmentFeatures) Scan(value interface{}) error {
	if value == nil {
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}

	return json.Unmarshal(bytes, f)
}

// Embedding is a fixed-length normalized semantic vector
type Embedding []float64

// Value implements driver.Valuer for database storage
func (e Embedding) Value() (driver.Value, error) {
	return json.Marshal(e)
}

// Scan implements sql.Scanner for database retrieval
func (e *Embedding) Scan(value interface{}) error {
	if value == nil {
		*e = nil
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}

	return json.Unmarshal(bytes, e)
}

// Segment is a scored highlight candidate produced by the ranking
// engine. Segments are created in batch per analysis run and never
// mutated afterwards. Kept segments for one video are pairwise
// non-overlapping under the dedup IOU threshold.
type Segment struct {
	ID        string          `json:"id" db:"id"`
	VideoID   string          `json:"video_id" db:"video_id"`
	Start     float64         `json:"start" db:"t_start"`
	End       float64         `json:"end" db:"t_end"`
	Score     float64         `json:"score" db:"score"`
	Features  SegmentFeatures `json:"features" db:"features"`
	Embedding Embedding       `json:"embedding" db:"embedding"`
	Reason    string          `json:"reason" db:"reason"`
	Status    string          `json:"status" db:"status"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

// SegmentStatus constants
const (
	SegmentStatusCandidate = "candidate"
	SegmentStatusRendered  = "rendered"
)
