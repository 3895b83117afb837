package models

// CropHint describes where to crop a scaled frame: the full scaled
// width and the left x-offset of the crop window.
type CropHint struct {
	ScaledWidth int `json:"scaled_width"`
	OffsetX     int `json:"offset_x"`
}

// TrackPoint is one sample of a time-varying crop track
type TrackPoint struct {
	T float64 `json:"t"` // seconds relative to the clip start
	X int     `json:"x"` // left crop offset in the scaled domain
}

// ReframeTrack is a time-varying crop produced by the tracked reframe
// mode. It is derived state, consumed immediately by the render step
// and never persisted.
type ReframeTrack struct {
	ScaledWidth int          `json:"scaled_width"`
	Points      []TrackPoint `json:"points"`
}
