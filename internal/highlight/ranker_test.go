package highlight

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clipforge/pkg/models"
)

type fakeEmbedder struct {
	calls int
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	f.calls++
	return []float64{float64(len(text)), 0, 0}, nil
}

type failingEmbedder struct{}

func (failingEmbedder) Embed(context.Context, string) ([]float64, error) {
	return nil, fmt.Errorf("model service unavailable")
}

func words(triples ...[3]interface{}) []models.Word {
	out := make([]models.Word, len(triples))
	for i, t := range triples {
		out[i] = models.Word{
			Text:  t[0].(string),
			Start: t[1].(float64),
			End:   t[2].(float64),
		}
	}
	return out
}

func TestRankShortTranscript(t *testing.T) {
	ws := words(
		[3]interface{}{"hi", 0.0, 1.0},
		[3]interface{}{"wow", 1.0, 2.0},
		[3]interface{}{"amazing", 1.5, 2.5},
	)

	r := NewRanker(&fakeEmbedder{}, DefaultOptions(), nil)
	got, err := r.Rank(context.Background(), ws)
	require.NoError(t, err)
	require.Len(t, got, 1, "transcript shorter than target length yields one window")

	c := got[0]
	assert.Equal(t, 0.0, c.Start)
	assert.Equal(t, 2.5, c.End)
	assert.GreaterOrEqual(t, c.Features.ExclamCount, 1, `"wow" counts toward exclam`)

	// avg word length (2+3+7)/3 = 4.0
	assert.InDelta(t, 0.25, c.Features.Quoteability, 1e-9)
	assert.InDelta(t, 0.6*0.25+0.4, c.Score, 1e-9)
	assert.NotEmpty(t, c.Embedding)
}

func TestRankEmptyTranscript(t *testing.T) {
	r := NewRanker(&fakeEmbedder{}, DefaultOptions(), nil)
	got, err := r.Rank(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRankEmbedderError(t *testing.T) {
	ws := words([3]interface{}{"hello", 0.0, 1.0})

	r := NewRanker(failingEmbedder{}, DefaultOptions(), nil)
	_, err := r.Rank(context.Background(), ws)
	assert.Error(t, err)
}

func longTranscript(n int, wordDur float64) []models.Word {
	out := make([]models.Word, n)
	for i := 0; i < n; i++ {
		start := float64(i) * wordDur
		text := "word"
		if i%7 == 0 {
			text = "wow!"
		}
		out[i] = models.Word{Text: text, Start: start, End: start + wordDur}
	}
	return out
}

func TestRankDedupInvariants(t *testing.T) {
	ws := longTranscript(400, 0.5) // 200 seconds of speech

	opts := DefaultOptions()
	r := NewRanker(nil, opts, nil)
	got, err := r.Rank(context.Background(), ws)
	require.NoError(t, err)

	assert.LessOrEqual(t, len(got), opts.MaxSegments)
	for i := range got {
		for j := i + 1; j < len(got); j++ {
			v := iou(got[i].Start, got[i].End, got[j].Start, got[j].End)
			assert.Less(t, v, opts.IOUThreshold,
				"kept segments %d and %d overlap with IOU %f", i, j, v)
		}
	}

	// Ordered by score descending
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i-1].Score, got[i].Score)
	}
}

func TestSlidingWindowsStrideMonotonic(t *testing.T) {
	ws := longTranscript(300, 0.5)

	prev := -1
	for _, stride := range []float64{5, 10, 20, 40} {
		n := len(slidingWindows(ws, 30.0, stride))
		if prev >= 0 {
			assert.LessOrEqual(t, n, prev,
				"larger stride must not produce more windows")
		}
		prev = n
	}
}

func TestSlidingWindowsCoverage(t *testing.T) {
	ws := longTranscript(100, 1.0)

	windows := slidingWindows(ws, 30.0, 10.0)
	require.NotEmpty(t, windows)

	assert.Equal(t, ws[0].Start, windows[0].start)
	for _, w := range windows {
		assert.Greater(t, w.end, w.start)
	}
	last := windows[len(windows)-1]
	assert.GreaterOrEqual(t, last.end, ws[len(ws)-1].Start)
}

func TestIOU(t *testing.T) {
	assert.InDelta(t, 1.0, iou(0, 10, 0, 10), 1e-9)
	assert.InDelta(t, 0.0, iou(0, 10, 10, 20), 1e-9)
	assert.InDelta(t, 1.0/3.0, iou(0, 20, 10, 30), 1e-9)
}
