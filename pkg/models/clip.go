package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// Aspect identifies an output aspect ratio. An alias keeps clip rows,
// job descriptors and filter selection on the same plain string.
type Aspect = string

// Aspect ratio constants for rendered clips
const (
	AspectVertical = "9:16"
	AspectSquare   = "1:1"
	AspectWide     = "16:9"
)

// Variant identifies one of the two competing thumbnails
type Variant string

// Variant constants
const (
	VariantA Variant = "A"
	VariantB Variant = "B"
	// VariantNone means no variant is active
	VariantNone Variant = ""
)

// Other returns the opposite variant, defaulting to B for anything
// that is not A.
func (v Variant) Other() Variant {
	if v == VariantA {
		return VariantB
	}
	return VariantA
}

// ABStatus is the state of a clip's thumbnail A/B test
type ABStatus string

// ABStatus constants
const (
	ABNotStarted ABStatus = "not_started"
	ABRunning    ABStatus = "running"
	ABStopped    ABStatus = "stopped"
)

// ThumbnailVariant is one generated thumbnail, keyed by variant or
// style ("A", "B", "S1".."S4").
type ThumbnailVariant struct {
	Key   string `json:"key"`
	Path  string `json:"path"`
	URL   string `json:"url"`
	Style string `json:"style,omitempty"`
}

// ThumbnailVariants holds the keyed thumbnail list of a clip
type ThumbnailVariants []ThumbnailVariant

// Get returns the variant with the given key
func (tv ThumbnailVariants) Get(key string) (ThumbnailVariant, bool) {
	for _, v := range tv {
		if v.Key == key {
			return v, true
		}
	}
	return ThumbnailVariant{}, false
}

// Upsert replaces the variant with the same key or appends it
func (tv ThumbnailVariants) Upsert(v ThumbnailVariant) ThumbnailVariants {
	for i := range tv {
		if tv[i].Key == v.Key {
			tv[i] = v
			return tv
		}
	}
	return append(tv, v)
}

// Value implements driver.Valuer for database storage
func (tv ThumbnailVariants) Value() (driver.Value, error) {
	return json.Marshal(tv)
}

// Scan implements sql.Scanner for database retrieval
func (tv *ThumbnailVariants) Scan(value interface{}) error {
	if value == nil {
		*tv = nil
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}

	return json.Unmarshal(bytes, tv)
}

// ViewPoint is one daily cumulative-view sample
type ViewPoint struct {
	Date  string `json:"date"` // YYYY-MM-DD
	Views int64  `json:"views"`
}

// ClipMetrics is the per-clip analytics bag
type ClipMetrics struct {
	ViewSeries []ViewPoint `json:"view_series,omitempty"`
}

// Value implements driver.Valuer for database storage
func (m ClipMetrics) Value() (driver.Value, error) {
	return json.Marshal(m)
}

// Scan implements sql.Scanner for database retrieval
func (m *ClipMetrics) Scan(value interface{}) error {
	if value == nil {
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}

	return json.Unmarshal(bytes, m)
}

// CaptionStyle configures styled caption rendering for a clip
type CaptionStyle struct {
	Keywords []string `json:"keywords,omitempty"`
}

// Value implements driver.Valuer for database storage
func (cs CaptionStyle) Value() (driver.Value, error) {
	return json.Marshal(cs)
}

// Scan implements sql.Scanner for database retrieval
func (cs *CaptionStyle) Scan(value interface{}) error {
	if value == nil {
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}

	return json.Unmarshal(bytes, cs)
}

// Clip is one rendered (or to-be-rendered) short-form output. The
// render stage sets the output path, the thumbnail stages fill the
// variant list, and the A/B controller owns status/active/history.
type Clip struct {
	ID           string            `json:"id" db:"id"`
	VideoID      string            `json:"video_id" db:"video_id"`
	SegmentID    string            `json:"segment_id,omitempty" db:"segment_id"`
	AspectRatio  string            `json:"aspect_ratio" db:"aspect_ratio"`
	Title        string            `json:"title" db:"title"`
	CaptionStyle CaptionStyle      `json:"caption_style" db:"caption_style"`
	OutputPath   string            `json:"output_path" db:"output_path"`
	StorageURL   string            `json:"storage_url" db:"storage_url"`
	Thumbnails   ThumbnailVariants `json:"thumbnails" db:"thumbnails"`
	ThumbnailURL string            `json:"thumbnail_url" db:"thumbnail_url"`
	ABStatus     ABStatus          `json:"ab_status" db:"ab_status"`
	ABActive     Variant           `json:"ab_active" db:"ab_active"`
	ABHistory    ABHistory         `json:"ab_history" db:"ab_history"`
	Metrics      ClipMetrics       `json:"metrics" db:"metrics"`
	Status       string            `json:"status" db:"status"`
	CreatedAt    time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at" db:"updated_at"`
}

// ClipStatus constants
const (
	ClipStatusQueued = "queued"
	ClipStatusDone   = "done"
	ClipStatusFailed = "failed"
)
