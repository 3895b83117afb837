package models

import (
	"database/sql/driver"
	"encoding/json"
	"sort"
	"time"
)

// ABEventKind tags one entry in a clip's A/B history
type ABEventKind string

// ABEventKind constants. The wire names match the stored history
// records consumed by the evaluation step.
const (
	ABEventStart  ABEventKind = "ab_start"
	ABEventStop   ABEventKind = "ab_stop"
	ABEventSwitch ABEventKind = "switch"
	ABEventWinner ABEventKind = "ab_stop_winner"
)

// ABEvent is one append-only history entry. Every status transition of
// the A/B test appends exactly one event.
type ABEvent struct {
	At      time.Time   `json:"ts"`
	Kind    ABEventKind `json:"event"`
	Variant Variant     `json:"variant,omitempty"`
	Winner  Variant     `json:"winner,omitempty"`
	SumA    int64       `json:"a,omitempty"`
	SumB    int64       `json:"b,omitempty"`
}

// ABHistory is the ordered, append-only event list of one A/B test
type ABHistory []ABEvent

// Sorted returns the history ordered by timestamp
func (h ABHistory) Sorted() ABHistory {
	out := make(ABHistory, len(h))
	copy(out, h)
	sort.SliceStable(out, func(i, j int) bool { return out[i].At.Before(out[j].At) })
	return out
}

// Value implements driver.Valuer for database storage
func (h ABHistory) Value() (driver.Value, error) {
	return json.Marshal(h)
}

// Scan implements sql.Scanner for database retrieval
func (h *ABHistory) Scan(value interface{}) error {
	if value == nil {
		*h = nil
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}

	return json.Unmarshal(bytes, h)
}
