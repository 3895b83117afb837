package render

import (
	"context"
	"fmt"

	"clipforge/internal/ffmpeg"
)

// EncodeDirective describes one clip encode: input trim, filter graph
// and fixed output parameters. It is built deterministically from the
// clip's source path, time range, aspect and crop hint.
type EncodeDirective struct {
	InputPath   string
	OutputPath  string
	Start       float64
	End         float64
	FilterGraph string
}

// BuildArgs renders the directive as ffmpeg arguments. Seeking happens
// before the input is opened, so output timestamps restart at zero.
func (d EncodeDirective) BuildArgs() []string {
	args := []string{
		"-y",
		"-ss", fmt.Sprintf("%.3f", d.Start),
		"-to", fmt.Sprintf("%.3f", d.End),
		"-i", d.InputPath,
	}
	if d.FilterGraph != "" {
		args = append(args, "-vf", d.FilterGraph)
	}
	args = append(args,
		"-r", "30",
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-crf", "18",
		"-c:a", "aac",
		"-b:a", "160k",
		d.OutputPath,
	)
	return args
}

// Encoder executes encode directives against ffmpeg
type Encoder struct {
	ff *ffmpeg.FFmpeg
}

// NewEncoder creates an encoder
func NewEncoder(ff *ffmpeg.FFmpeg) *Encoder {
	return &Encoder{ff: ff}
}

// Encode runs one directive to completion
func (e *Encoder) Encode(ctx context.Context, d EncodeDirective) error {
	if err := e.ff.Run(ctx, d.BuildArgs()); err != nil {
		return fmt.Errorf("failed to encode clip: %w", err)
	}
	return nil
}
