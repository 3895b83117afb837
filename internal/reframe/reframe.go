package reframe

import (
	"context"
	"image"
	"math"
	"sort"

	"clipforge/internal/logging"
	"clipforge/internal/metrics"
	"clipforge/pkg/models"
)

// Box is an axis-aligned detection box in frame pixel coordinates
type Box struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Detector finds faces in a frame. Implementations call an external
// detection service.
type Detector interface {
	Detect(ctx context.Context, frame image.Image) ([]Box, error)
}

// Tracker follows a seeded box across frames. Update reports ok=false
// when the target is lost; the engine re-seeds via detection.
type Tracker interface {
	Init(ctx context.Context, frame image.Image, seed Box) error
	Update(ctx context.Context, frame image.Image) (Box, bool, error)
}

// VideoInfo describes an opened source video
type VideoInfo struct {
	Width    int
	Height   int
	Duration float64
}

// Video is an opened frame source for one file
type Video interface {
	Info() VideoInfo
	FrameAt(ctx context.Context, t float64) (image.Image, error)
	Close() error
}

// FrameSource opens source videos for frame sampling
type FrameSource interface {
	Open(ctx context.Context, path string) (Video, error)
}

// Options control crop geometry and sampling rates
type Options struct {
	TargetHeight     int
	CropWidth        int
	SampleFPS        float64
	TrackFPS         float64
	SmoothWindow     int
	RedetectInterval float64
}

// DefaultOptions returns the standard vertical-crop parameters
func DefaultOptions() Options {
	return Options{
		TargetHeight:     1920,
		CropWidth:        1080,
		SampleFPS:        2.0,
		TrackFPS:         10.0,
		SmoothWindow:     9,
		RedetectInterval: 1.0,
	}
}

// Engine computes face-aware crop geometry for a time range of a
// source video. Detection and tracking are injected collaborators;
// NewTracker constructs a fresh tracker per tracked run.
type Engine struct {
	source     FrameSource
	detector   Detector
	newTracker func() Tracker
	opts       Options
	logger     *logging.Logger
}

// NewEngine creates a reframing engine
func NewEngine(source FrameSource, detector Detector, newTracker func() Tracker, opts Options, logger *logging.Logger) *Engine {
	if opts.TargetHeight <= 0 {
		opts.TargetHeight = 1920
	}
	if opts.CropWidth <= 0 {
		opts.CropWidth = 1080
	}
	if opts.SampleFPS <= 0 {
		opts.SampleFPS = 2.0
	}
	if opts.TrackFPS <= 0 {
		opts.TrackFPS = 10.0
	}
	if opts.SmoothWindow <= 0 {
		opts.SmoothWindow = 9
	}
	if opts.RedetectInterval <= 0 {
		opts.RedetectInterval = 1.0
	}

	return &Engine{
		source:     source,
		detector:   detector,
		newTracker: newTracker,
		opts:       opts,
		logger:     logger,
	}
}

// CenteredOffset returns the fallback x-offset for a scaled width
func (e *Engine) CenteredOffset(scaledWidth int) int {
	return (scaledWidth - e.opts.CropWidth) / 2
}

func (e *Engine) clampOffset(offset float64, scaledWidth int) int {
	max := float64(scaledWidth - e.opts.CropWidth)
	if max < 0 {
		max = 0
	}
	return int(math.Round(math.Max(0, math.Min(offset, max))))
}

func largestBox(boxes []Box) (Box, bool) {
	if len(boxes) == 0 {
		return Box{}, false
	}
	best := boxes[0]
	for _, b := range boxes[1:] {
		if b.W*b.H > best.W*best.H {
			best = b
		}
	}
	return best, true
}

func median(vals []float64) float64 {
	sorted := make([]float64, len(vals))
	copy(sorted, vals)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// StaticCrop computes a single crop offset for the range by taking the
// median of face centers across sampled frames. A nil hint with a nil
// error means the video could not be opened; callers render with a
// centered crop in that case.
func (e *Engine) StaticCrop(ctx context.Context, path string, start, end float64) (*models.CropHint, error) {
	video, err := e.source.Open(ctx, path)
	if err != nil {
		metrics.ReframeFallbacksTotal.Inc()
		if e.logger != nil {
			e.logger.WithError(err).Warn("Failed to open video, skipping reframe")
		}
		return nil, nil
	}
	defer video.Close()

	info := video.Info()
	scale := float64(e.opts.TargetHeight) / float64(info.Height)
	scaledWidth := int(math.Round(float64(info.Width) * scale))

	var centers []float64
	for i := 0; i < sampleCount(start, end, e.opts.SampleFPS); i++ {
		t := start + float64(i)/e.opts.SampleFPS
		frame, err := video.FrameAt(ctx, t)
		if err != nil {
			continue
		}
		boxes, err := e.detector.Detect(ctx, frame)
		if err != nil {
			continue
		}
		if face, ok := largestBox(boxes); ok {
			centers = append(centers, (face.X+face.W/2)*scale)
		}
	}

	hint := &models.CropHint{ScaledWidth: scaledWidth}
	if len(centers) == 0 {
		metrics.ReframeFallbacksTotal.Inc()
		hint.OffsetX = e.CenteredOffset(scaledWidth)
		return hint, nil
	}

	hint.OffsetX = e.clampOffset(median(centers)-float64(e.opts.CropWidth)/2, scaledWidth)
	return hint, nil
}

// TrackedCrop computes a smoothed time-varying crop track for the
// range. It re-detects at least once per second of elapsed time and
// immediately after any tracker failure. A nil track means no usable
// track; callers fall back to a centered static crop.
func (e *Engine) TrackedCrop(ctx context.Context, path string, start, end float64) (*models.ReframeTrack, error) {
	video, err := e.source.Open(ctx, path)
	if err != nil {
		metrics.ReframeFallbacksTotal.Inc()
		if e.logger != nil {
			e.logger.WithError(err).Warn("Failed to open video, skipping tracked reframe")
		}
		return nil, nil
	}
	defer video.Close()

	info := video.Info()
	scale := float64(e.opts.TargetHeight) / float64(info.Height)
	scaledWidth := int(math.Round(float64(info.Width) * scale))

	var tracker Tracker
	lastDetect := math.Inf(-1)

	var points []models.TrackPoint
	for i := 0; i < sampleCount(start, end, e.opts.TrackFPS); i++ {
		t := start + float64(i)/e.opts.TrackFPS
		frame, err := video.FrameAt(ctx, t)
		if err != nil {
			continue
		}

		var face Box
		haveFace := false

		if tracker != nil && t-lastDetect < e.opts.RedetectInterval {
			box, ok, err := tracker.Update(ctx, frame)
			if err == nil && ok {
				face = box
				haveFace = true
			} else {
				tracker = nil
			}
		}

		if !haveFace {
			boxes, err := e.detector.Detect(ctx, frame)
			if err == nil {
				if box, ok := largestBox(boxes); ok {
					face = box
					haveFace = true
					lastDetect = t
					if e.newTracker != nil {
						tr := e.newTracker()
						if err := tr.Init(ctx, frame, box); err == nil {
							tracker = tr
						}
					}
				}
			}
		}

		if !haveFace {
			continue
		}

		offset := e.clampOffset((face.X+face.W/2)*scale-float64(e.opts.CropWidth)/2, scaledWidth)
		points = append(points, models.TrackPoint{T: t - start, X: offset})
	}

	if len(points) == 0 {
		metrics.ReframeFallbacksTotal.Inc()
		return nil, nil
	}

	offsets := make([]float64, len(points))
	for i, p := range points {
		offsets[i] = float64(p.X)
	}
	for i, v := range smooth(offsets, e.opts.SmoothWindow) {
		points[i].X = e.clampOffset(v, scaledWidth)
	}

	return &models.ReframeTrack{
		ScaledWidth: scaledWidth,
		Points:      points,
	}, nil
}

// sampleCount returns how many frames a range yields at the given
// rate, sampling at the range start and every 1/fps after it.
func sampleCount(start, end, fps float64) int {
	if end <= start || fps <= 0 {
		return 0
	}
	return int(math.Ceil((end - start) * fps))
}

// smooth applies a centered edge-padded moving average over vals
func smooth(vals []float64, window int) []float64 {
	if window <= 1 || len(vals) == 0 {
		return vals
	}

	pad := window / 2
	out := make([]float64, len(vals))
	for i := range vals {
		sum := 0.0
		for k := i - pad; k <= i+pad; k++ {
			idx := k
			if idx < 0 {
				idx = 0
			}
			if idx >= len(vals) {
				idx = len(vals) - 1
			}
			sum += vals[idx]
		}
		out[i] = sum / float64(2*pad+1)
	}
	return out
}
