package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// Word is a single timestamped token of a transcript. Start times are
// monotonically non-decreasing within a transcript.
type Word struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// WordList holds the ordered word sequence of a transcript
type WordList []Word

// Value implements driver.Valuer for database storage
func (w WordList) Value() (driver.Value, error) {
	return json.Marshal(w)
}

// Scan implements sql.Scanner for database retrieval
func (w *WordList) Scan(value interface{}) error {
	if value == nil {
		*w = nil
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}

	return json.Unmarshal(bytes, w)
}

// Transcript is the word-timestamped transcription of one video.
// Immutable once created; the most recent transcript per video is the
// one used downstream.
type Transcript struct {
	ID        string    `json:"id" db:"id"`
	VideoID   string    `json:"video_id" db:"video_id"`
	Language  string    `json:"language" db:"language"`
	Text      string    `json:"text" db:"text"`
	Words     WordList  `json:"words" db:"words"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
