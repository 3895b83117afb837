package render

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"clipforge/internal/ffmpeg"
	"clipforge/pkg/models"
)

const (
	bandHeightRatio = 0.22
	wrapWidthRatio  = 0.92
	maxTitleLines   = 3
	titleSizeRatio  = 0.06
	jpegQuality     = 92
)

var (
	titleFontOnce sync.Once
	titleFont     *opentype.Font
	titleFontErr  error
)

func loadTitleFont() (*opentype.Font, error) {
	titleFontOnce.Do(func() {
		titleFont, titleFontErr = opentype.Parse(gobold.TTF)
	})
	return titleFont, titleFontErr
}

// Composer produces thumbnail images: the clip's midpoint frame under
// the clip's own transform, with a gradient band and title overlay.
type Composer struct {
	ff      *ffmpeg.FFmpeg
	tempDir string
}

// NewComposer creates a thumbnail composer
func NewComposer(ff *ffmpeg.FFmpeg, tempDir string) *Composer {
	return &Composer{ff: ff, tempDir: tempDir}
}

// ThumbnailSpec describes one thumbnail to compose
type ThumbnailSpec struct {
	SourcePath string
	Start      float64
	End        float64
	Aspect     models.Aspect
	Hint       *models.CropHint
	Title      string
	OutputPath string
}

// Compose extracts the midpoint frame, applies the clip transform and
// writes the finished thumbnail to spec.OutputPath.
func (c *Composer) Compose(ctx context.Context, spec ThumbnailSpec) error {
	if err := os.MkdirAll(c.tempDir, 0o755); err != nil {
		return fmt.Errorf("failed to create temp dir: %w", err)
	}

	framePath := filepath.Join(c.tempDir, fmt.Sprintf("frame_%s.jpg", uuid.NewString()))
	defer os.Remove(framePath)

	midpoint := (spec.Start + spec.End) / 2
	vf := FilterGraph(spec.Aspect, spec.Hint)
	if err := c.ff.ExtractFrame(ctx, spec.SourcePath, midpoint, vf, framePath); err != nil {
		return fmt.Errorf("failed to extract thumbnail frame: %w", err)
	}

	f, err := os.Open(framePath)
	if err != nil {
		return fmt.Errorf("failed to open extracted frame: %w", err)
	}
	frame, err := jpeg.Decode(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("failed to decode extracted frame: %w", err)
	}

	canvas := image.NewRGBA(frame.Bounds())
	draw.Draw(canvas, canvas.Bounds(), frame, frame.Bounds().Min, draw.Src)

	drawGradientBand(canvas)
	if err := drawTitle(canvas, spec.Title); err != nil {
		return fmt.Errorf("failed to draw title: %w", err)
	}

	out, err := os.Create(spec.OutputPath)
	if err != nil {
		return fmt.Errorf("failed to create thumbnail: %w", err)
	}
	defer out.Close()

	if err := jpeg.Encode(out, canvas, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return nil
}

// drawGradientBand darkens the top of the frame, fading from alpha 200
// at the very top to fully transparent at the bottom of the band.
func drawGradientBand(canvas *image.RGBA) {
	b := canvas.Bounds()
	bandH := int(float64(b.Dy()) * bandHeightRatio)
	if bandH <= 0 {
		return
	}

	for y := 0; y < bandH; y++ {
		alpha := uint8(200 * (bandH - y) / bandH)
		row := image.Rect(b.Min.X, b.Min.Y+y, b.Max.X, b.Min.Y+y+1)
		draw.Draw(canvas, row, image.NewUniform(color.RGBA{A: alpha}), image.Point{}, draw.Over)
	}
}

// drawTitle wraps and renders the title inside the gradient band
func drawTitle(canvas *image.RGBA, title string) error {
	if strings.TrimSpace(title) == "" {
		return nil
	}

	ttf, err := loadTitleFont()
	if err != nil {
		return fmt.Errorf("failed to load title font: %w", err)
	}

	b := canvas.Bounds()
	size := float64(b.Dy()) * titleSizeRatio
	face, err := opentype.NewFace(ttf, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return fmt.Errorf("failed to create font face: %w", err)
	}
	defer face.Close()

	maxWidth := fixed.I(int(float64(b.Dx()) * wrapWidthRatio))
	lines := wrapTitle(title, face, maxWidth)

	metrics := face.Metrics()
	lineHeight := metrics.Height.Ceil()
	x := b.Min.X + b.Dx()/25
	y := b.Min.Y + metrics.Ascent.Ceil() + lineHeight/2

	for _, line := range lines {
		drawStrokedText(canvas, face, x, y, line)
		y += lineHeight
	}
	return nil
}

// wrapTitle breaks the title into at most maxTitleLines lines at the
// wrap width; overflow past the last line is folded into it.
func wrapTitle(title string, face font.Face, maxWidth fixed.Int26_6) []string {
	words := strings.Fields(title)
	if len(words) == 0 {
		return nil
	}

	var lines []string
	cur := words[0]
	for _, w := range words[1:] {
		candidate := cur + " " + w
		if len(lines) == maxTitleLines-1 || font.MeasureString(face, candidate) <= maxWidth {
			cur = candidate
			continue
		}
		lines = append(lines, cur)
		cur = w
	}
	return append(lines, cur)
}

// drawStrokedText renders text with a 1px dark stroke in every
// direction beneath a white fill.
func drawStrokedText(canvas *image.RGBA, face font.Face, x, y int, text string) {
	stroke := &font.Drawer{
		Dst:  canvas,
		Src:  image.NewUniform(color.RGBA{R: 20, G: 20, B: 20, A: 255}),
		Face: face,
	}
	for dx := -1; dx <= 1; dx++ {
		for dy := -1; dy <= 1; dy++ {
			if dx == 0 && dy == 0 {
				continue
			}
			stroke.Dot = fixed.P(x+dx, y+dy)
			stroke.DrawString(text)
		}
	}

	fill := &font.Drawer{
		Dst:  canvas,
		Src:  image.White,
		Face: face,
		Dot:  fixed.P(x, y),
	}
	fill.DrawString(text)
}
