package render

import (
	"fmt"
	"io"
	"math"
	"os"
	"regexp"
	"strings"

	"clipforge/pkg/models"
)

// Cue is one caption line spanning a run of closely spaced words
type Cue struct {
	Start float64
	End   float64
	Text  string
}

// BuildCues selects the words overlapping [start,end], shifts their
// times to be relative to the clip start, and merges consecutive words
// into one cue while the silence between them stays within maxGap.
// Word texts carry their own leading spaces, so they are concatenated
// without a separator.
func BuildCues(words []models.Word, start, end, maxGap float64) []Cue {
	var cues []Cue

	var cur *Cue
	for _, w := range words {
		if w.End <= start || w.Start >= end {
			continue
		}

		ws := math.Max(w.Start-start, 0)
		we := math.Min(w.End, end) - start

		if cur != nil && ws-cur.End <= maxGap {
			cur.End = we
			cur.Text += w.Text
			continue
		}

		if cur != nil {
			cur.Text = strings.TrimSpace(cur.Text)
			cues = append(cues, *cur)
		}
		cur = &Cue{Start: ws, End: we, Text: w.Text}
	}
	if cur != nil {
		cur.Text = strings.TrimSpace(cur.Text)
		cues = append(cues, *cur)
	}

	return cues
}

// StyleOptions configure styled subtitle output
type StyleOptions struct {
	FontName      string
	FontSize      int
	PrimaryColor  string
	EmphasisColor string
	Keywords      []string
}

func srtTimestamp(t float64) string {
	ms := int(math.Round(t * 1000))
	return fmt.Sprintf("%02d:%02d:%02d,%03d",
		ms/3600000, ms/60000%60, ms/1000%60, ms%1000)
}

// WriteSRT writes cues as SubRip subtitles
func WriteSRT(w io.Writer, cues []Cue) error {
	for i, c := range cues {
		_, err := fmt.Fprintf(w, "%d\n%s --> %s\n%s\n\n",
			i+1, srtTimestamp(c.Start), srtTimestamp(c.End), c.Text)
		if err != nil {
			return fmt.Errorf("failed to write cue: %w", err)
		}
	}
	return nil
}

// SaveSRT writes cues to an .srt file
func SaveSRT(path string, cues []Cue) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create subtitle file: %w", err)
	}
	defer f.Close()

	return WriteSRT(f, cues)
}

func assTimestamp(t float64) string {
	cs := int(math.Round(t * 100))
	return fmt.Sprintf("%d:%02d:%02d.%02d",
		cs/360000, cs/6000%60, cs/100%60, cs%100)
}

// emphasize wraps case-insensitive whole-word keyword matches in a
// bold alternate-color span. Keywords that fail to compile as patterns
// are skipped rather than failing the cue.
func emphasize(text string, opts StyleOptions) string {
	openTag := fmt.Sprintf(`{\b1\c%s&}`, opts.EmphasisColor)
	closeTag := fmt.Sprintf(`{\b0\c%s&}`, opts.PrimaryColor)

	for _, kw := range opts.Keywords {
		re, err := regexp.Compile(`(?i)\b(?:` + kw + `)\b`)
		if err != nil {
			continue
		}
		text = re.ReplaceAllStringFunc(text, func(m string) string {
			return openTag + m + closeTag
		})
	}
	return text
}

// WriteASS writes cues as styled ASS subtitles sized for a vertical
// 1080x1920 canvas, with keyword emphasis applied per cue.
func WriteASS(w io.Writer, cues []Cue, opts StyleOptions) error {
	header := fmt.Sprintf(`[Script Info]
ScriptType: v4.00+
PlayResX: 1080
PlayResY: 1920

[V4+ Styles]
Format: Name, Fontname, Fontsize, PrimaryColour, OutlineColour, BackColour, Bold, Outline, Shadow, Alignment, MarginL, MarginR, MarginV
Style: Default,%s,%d,%s&,&H00000000&,&H80000000&,0,2,1,2,60,60,220

[Events]
Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text
`, opts.FontName, opts.FontSize, opts.PrimaryColor)

	if _, err := io.WriteString(w, header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, c := range cues {
		text := emphasize(c.Text, opts)
		_, err := fmt.Fprintf(w, "Dialogue: 0,%s,%s,Default,,0,0,0,,%s\n",
			assTimestamp(c.Start), assTimestamp(c.End), text)
		if err != nil {
			return fmt.Errorf("failed to write dialogue: %w", err)
		}
	}
	return nil
}

// SaveASS writes cues to an .ass file
func SaveASS(path string, cues []Cue, opts StyleOptions) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create subtitle file: %w", err)
	}
	defer f.Close()

	return WriteASS(f, cues, opts)
}
