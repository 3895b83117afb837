package ffmpeg

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"os/exec"
	"strconv"
	"strings"
)

// FFmpeg wraps ffmpeg/ffprobe invocations shared by the reframing and
// render engines.
type FFmpeg struct {
	ffmpegPath  string
	ffprobePath string
}

// New creates a new FFmpeg instance
func New(ffmpegPath, ffprobePath string) *FFmpeg {
	return &FFmpeg{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
	}
}

// VideoInfo holds the probe results the pipeline cares about
type VideoInfo struct {
	Width    int
	Height   int
	FPS      float64
	Duration float64
}

// probeOutput mirrors the ffprobe JSON layout
type probeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		CodecType    string `json:"codec_type"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		AvgFrameRate string `json:"avg_frame_rate"`
	} `json:"streams"`
}

// Probe extracts basic video information from a file
func (f *FFmpeg) Probe(ctx context.Context, inputPath string) (*VideoInfo, error) {
	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		inputPath,
	}

	cmd := exec.CommandContext(ctx, f.ffprobePath, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w, stderr: %s", err, stderr.String())
	}

	var out probeOutput
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	info := &VideoInfo{}
	if d, err := strconv.ParseFloat(out.Format.Duration, 64); err == nil {
		info.Duration = d
	}

	for _, stream := range out.Streams {
		if stream.CodecType != "video" {
			continue
		}
		info.Width = stream.Width
		info.Height = stream.Height
		if parts := strings.Split(stream.AvgFrameRate, "/"); len(parts) == 2 {
			num, _ := strconv.ParseFloat(parts[0], 64)
			den, _ := strconv.ParseFloat(parts[1], 64)
			if den != 0 {
				info.FPS = num / den
			}
		}
		break
	}

	if info.Width == 0 || info.Height == 0 {
		return nil, fmt.Errorf("no video stream in %s", inputPath)
	}
	if info.FPS == 0 {
		info.FPS = 30.0
	}

	return info, nil
}

// Run executes ffmpeg with the given arguments
func (f *FFmpeg) Run(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, f.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg failed: %w, stderr: %s", err, stderr.String())
	}

	return nil
}

// ExtractFrame writes the frame at timeSeconds, passed through the
// given filter graph, to outputPath.
func (f *FFmpeg) ExtractFrame(ctx context.Context, inputPath string, timeSeconds float64, vf, outputPath string) error {
	args := []string{
		"-y",
		"-ss", fmt.Sprintf("%.3f", timeSeconds),
		"-i", inputPath,
		"-vframes", "1",
	}
	if vf != "" {
		args = append(args, "-vf", vf)
	}
	args = append(args, outputPath)

	return f.Run(ctx, args)
}

// DecodeFrame extracts the frame at timeSeconds and decodes it in
// memory, for handing to a face detector.
func (f *FFmpeg) DecodeFrame(ctx context.Context, inputPath string, timeSeconds float64) (image.Image, error) {
	args := []string{
		"-ss", fmt.Sprintf("%.3f", timeSeconds),
		"-i", inputPath,
		"-vframes", "1",
		"-f", "image2",
		"-vcodec", "mjpeg",
		"pipe:1",
	}

	cmd := exec.CommandContext(ctx, f.ffmpegPath, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg failed: %w, stderr: %s", err, stderr.String())
	}

	img, err := jpeg.Decode(&stdout)
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame: %w", err)
	}

	return img, nil
}
