package render

import (
	"fmt"
	"strings"

	"clipforge/pkg/models"
)

// FilterGraph returns the ffmpeg video filter for an aspect ratio.
// Only the vertical format accepts a crop hint; for the others any
// hint is ignored.
func FilterGraph(aspect models.Aspect, hint *models.CropHint) string {
	switch aspect {
	case models.AspectVertical:
		if hint != nil {
			return fmt.Sprintf("scale=%d:1920,crop=1080:1920:%d:0", hint.ScaledWidth, hint.OffsetX)
		}
		return "scale=-2:1920,crop=1080:1920"
	case models.AspectSquare:
		return "scale=1080:-2,crop=1080:1080"
	case models.AspectWide:
		return "scale=1920:-2"
	default:
		return "scale=-2:1920,crop=1080:1920"
	}
}

// WithSubtitles appends a subtitle burn-in stage to a filter graph
func WithSubtitles(vf, subtitlePath string) string {
	return vf + ",subtitles=" + escapeFilterPath(subtitlePath)
}

// escapeFilterPath quotes a path for use inside a filter graph
func escapeFilterPath(path string) string {
	replacer := strings.NewReplacer(
		`\`, `\\`,
		`:`, `\:`,
		`'`, `\'`,
	)
	return "'" + replacer.Replace(path) + "'"
}
