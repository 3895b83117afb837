package reframe

import (
	"context"
	"fmt"
	"image"

	"clipforge/internal/ffmpeg"
)

// FFmpegFrameSource samples frames by shelling out to ffmpeg. Probe
// failures at open time surface as open errors, which the engine turns
// into the centered-crop fallback.
type FFmpegFrameSource struct {
	ff *ffmpeg.FFmpeg
}

// NewFFmpegFrameSource creates a frame source backed by ffmpeg
func NewFFmpegFrameSource(ff *ffmpeg.FFmpeg) *FFmpegFrameSource {
	return &FFmpegFrameSource{ff: ff}
}

// Open probes the video and returns a sampling handle
func (s *FFmpegFrameSource) Open(ctx context.Context, path string) (Video, error) {
	info, err := s.ff.Probe(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open video %s: %w", path, err)
	}

	return &ffmpegVideo{
		ff:   s.ff,
		path: path,
		info: VideoInfo{
			Width:    info.Width,
			Height:   info.Height,
			Duration: info.Duration,
		},
	}, nil
}

type ffmpegVideo struct {
	ff   *ffmpeg.FFmpeg
	path string
	info VideoInfo
}

func (v *ffmpegVideo) Info() VideoInfo {
	return v.info
}

func (v *ffmpegVideo) FrameAt(ctx context.Context, t float64) (image.Image, error) {
	return v.ff.DecodeFrame(ctx, v.path, t)
}

func (v *ffmpegVideo) Close() error {
	return nil
}
