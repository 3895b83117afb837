package render

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"clipforge/pkg/models"
)

func TestFilterGraph(t *testing.T) {
	tests := []struct {
		name   string
		aspect models.Aspect
		hint   *models.CropHint
		want   string
	}{
		{"vertical centered", models.AspectVertical, nil, "scale=-2:1920,crop=1080:1920"},
		{"vertical with hint", models.AspectVertical, &models.CropHint{ScaledWidth: 1920, OffsetX: 420}, "scale=1920:1920,crop=1080:1920:420:0"},
		{"square ignores hint", models.AspectSquare, &models.CropHint{ScaledWidth: 1920, OffsetX: 420}, "scale=1080:-2,crop=1080:1080"},
		{"wide", models.AspectWide, nil, "scale=1920:-2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FilterGraph(tt.aspect, tt.hint))
		})
	}
}

func TestWithSubtitles(t *testing.T) {
	vf := WithSubtitles("scale=-2:1920,crop=1080:1920", "/tmp/c1.srt")
	assert.Equal(t, "scale=-2:1920,crop=1080:1920,subtitles='/tmp/c1.srt'", vf)

	escaped := WithSubtitles("scale=1920:-2", `C:\media\c1.srt`)
	assert.Contains(t, escaped, `\:`)
	assert.Contains(t, escaped, `\\`)
}

func TestBuildCues(t *testing.T) {
	words := []models.Word{
		{Text: "hello", Start: 10.0, End: 10.4},
		{Text: " world", Start: 10.5, End: 10.9},
		{Text: "next", Start: 12.0, End: 12.5},
	}

	cues := BuildCues(words, 10.0, 13.0, 0.6)
	require.Len(t, cues, 2, "gap above max splits the cue")

	assert.Equal(t, "hello world", cues[0].Text)
	assert.InDelta(t, 0.0, cues[0].Start, 1e-9)
	assert.InDelta(t, 0.9, cues[0].End, 1e-9)

	assert.Equal(t, "next", cues[1].Text)
	assert.InDelta(t, 2.0, cues[1].Start, 1e-9)
}

func TestBuildCuesClipsToRange(t *testing.T) {
	words := []models.Word{
		{Text: "before", Start: 0.0, End: 1.0},
		{Text: "inside", Start: 5.0, End: 6.0},
		{Text: "after", Start: 20.0, End: 21.0},
	}

	cues := BuildCues(words, 4.0, 10.0, 0.6)
	require.Len(t, cues, 1)
	assert.Equal(t, "inside", cues[0].Text)
	assert.InDelta(t, 1.0, cues[0].Start, 1e-9)
}

func TestBuildCuesEmpty(t *testing.T) {
	assert.Empty(t, BuildCues(nil, 0, 10, 0.6))
}

func TestWriteSRT(t *testing.T) {
	var buf bytes.Buffer
	cues := []Cue{
		{Start: 0, End: 1.5, Text: "hello world"},
		{Start: 2, End: 3.25, Text: "again"},
	}
	require.NoError(t, WriteSRT(&buf, cues))

	out := buf.String()
	assert.Contains(t, out, "1\n00:00:00,000 --> 00:00:01,500\nhello world\n")
	assert.Contains(t, out, "2\n00:00:02,000 --> 00:00:03,250\nagain\n")
}

func TestWriteASSEmphasis(t *testing.T) {
	opts := StyleOptions{
		FontName:      "Inter",
		FontSize:      48,
		PrimaryColor:  "&H00FFFFFF",
		EmphasisColor: "&H0000FF00",
		Keywords:      []string{"secret"},
	}

	var buf bytes.Buffer
	cues := []Cue{{Start: 0, End: 2, Text: "the Secret sauce of secrets"}}
	require.NoError(t, WriteASS(&buf, cues, opts))

	out := buf.String()
	assert.Contains(t, out, "PlayResX: 1080")
	assert.Contains(t, out, "PlayResY: 1920")
	assert.Contains(t, out, `{\b1\c&H0000FF00&}Secret{\b0\c&H00FFFFFF&}`)
	assert.NotContains(t, out, `}secrets{`, "emphasis matches whole words only")
}

func TestEmphasizeSkipsMalformedPattern(t *testing.T) {
	opts := StyleOptions{
		PrimaryColor:  "&H00FFFFFF",
		EmphasisColor: "&H0000FF00",
		Keywords:      []string{"(unclosed", "fine"},
	}

	out := emphasize("this is fine", opts)
	assert.Contains(t, out, `}fine{`)
}

func TestBuildArgs(t *testing.T) {
	d := EncodeDirective{
		InputPath:   "/data/source/v1.mp4",
		OutputPath:  "/data/clips/c1.mp4",
		Start:       12.5,
		End:         42.5,
		FilterGraph: "scale=-2:1920,crop=1080:1920",
	}

	want := []string{
		"-y",
		"-ss", "12.500",
		"-to", "42.500",
		"-i", "/data/source/v1.mp4",
		"-vf", "scale=-2:1920,crop=1080:1920",
		"-r", "30",
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-crf", "18",
		"-c:a", "aac",
		"-b:a", "160k",
		"/data/clips/c1.mp4",
	}
	assert.Equal(t, want, d.BuildArgs())
}

func TestStyleVariants(t *testing.T) {
	variants := StyleVariants("My great clip")
	require.Len(t, variants, 4)

	byKey := map[string]string{}
	for _, v := range variants {
		byKey[v.Key] = v.Title
	}
	assert.Equal(t, "My great clip", byKey["S1"])
	assert.Equal(t, "MY GREAT CLIP 🔥", byKey["S2"])
	assert.Equal(t, "💡 My great clip", byKey["S3"])
	assert.Equal(t, "My great clip 🚀", byKey["S4"])
}

func testFace(t *testing.T, size float64) font.Face {
	t.Helper()

	ttf, err := loadTitleFont()
	require.NoError(t, err)

	face, err := opentype.NewFace(ttf, &opentype.FaceOptions{Size: size, DPI: 72})
	require.NoError(t, err)
	t.Cleanup(func() { face.Close() })

	return face
}

func TestWrapTitle(t *testing.T) {
	face := testFace(t, 48)
	maxWidth := fixed.I(400)

	lines := wrapTitle("one two three four five six seven eight nine ten", face, maxWidth)
	require.NotEmpty(t, lines)
	assert.LessOrEqual(t, len(lines), maxTitleLines)

	// No words lost
	joined := strings.Join(lines, " ")
	assert.Equal(t, "one two three four five six seven eight nine ten", joined)

	// Every line except the overflow-folded last one fits the wrap width
	for _, line := range lines[:len(lines)-1] {
		assert.LessOrEqual(t, font.MeasureString(face, line).Ceil(), 400)
	}

	assert.Empty(t, wrapTitle("   ", face, maxWidth))
	assert.Equal(t, []string{"short"}, wrapTitle("short", face, fixed.I(10000)))
}
