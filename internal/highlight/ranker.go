package highlight

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"clipforge/internal/logging"
	"clipforge/pkg/models"
)

// Embedder computes a fixed-length normalized semantic embedding for a
// piece of text. Implementations call an external model service.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Options control window generation and dedup selection
type Options struct {
	TargetLen    float64
	Stride       float64
	IOUThreshold float64
	MaxSegments  int
}

// DefaultOptions returns the standard ranking parameters
func DefaultOptions() Options {
	return Options{
		TargetLen:    30.0,
		Stride:       10.0,
		IOUThreshold: 0.3,
		MaxSegments:  12,
	}
}

// Candidate is one kept window with its score and features
type Candidate struct {
	Start     float64
	End       float64
	Score     float64
	Features  models.SegmentFeatures
	Embedding models.Embedding
	Reason    string
}

// Ranker turns a timestamped transcript into a deduplicated, scored
// list of highlight candidates.
type Ranker struct {
	embedder Embedder
	opts     Options
	logger   *logging.Logger
}

// NewRanker creates a ranker with the given embedding collaborator
func NewRanker(embedder Embedder, opts Options, logger *logging.Logger) *Ranker {
	if opts.TargetLen <= 0 {
		opts.TargetLen = 30.0
	}
	if opts.Stride <= 0 {
		opts.Stride = 10.0
	}
	if opts.IOUThreshold <= 0 {
		opts.IOUThreshold = 0.3
	}
	if opts.MaxSegments <= 0 {
		opts.MaxSegments = 12
	}

	return &Ranker{
		embedder: embedder,
		opts:     opts,
		logger:   logger,
	}
}

type window struct {
	start float64
	end   float64
	words []models.Word
}

// slidingWindows generates overlapping candidate windows over the word
// sequence. Each window extends while it stays under target_len, and
// the start index advances by at least stride seconds between windows.
func slidingWindows(words []models.Word, targetLen, stride float64) []window {
	var windows []window

	i := 0
	for i < len(words) {
		start := words[i].Start
		j := i
		for j < len(words) && words[j].End-start < targetLen {
			j++
		}

		end := start + targetLen
		if j > i {
			end = words[j-1].End
		}
		windows = append(windows, window{start: start, end: end, words: words[i:j]})

		next := i
		for next < len(words) && words[next].Start < start+stride {
			next++
		}
		if next == i {
			next++
		}
		i = next
	}

	return windows
}

// extractFeatures computes the per-window scoring features
func extractFeatures(w window) (models.SegmentFeatures, string) {
	texts := make([]string, len(w.words))
	totalLen := 0
	for i, word := range w.words {
		texts[i] = word.Text
		totalLen += len(word.Text)
	}
	text := strings.Join(texts, " ")
	lower := strings.ToLower(text)

	exclam := strings.Count(text, "!") + strings.Count(lower, "wow")

	avgWordLen := 5.0
	if len(w.words) > 0 {
		avgWordLen = float64(totalLen) / float64(len(w.words))
	}
	quoteability := 1.0 / math.Max(1.0, avgWordLen)

	return models.SegmentFeatures{
		ExclamCount:  exclam,
		Quoteability: quoteability,
	}, text
}

// score combines features into a single ranking value
func score(f models.SegmentFeatures) float64 {
	s := 0.6 * f.Quoteability
	if f.ExclamCount > 0 {
		s += 0.4
	}
	return s
}

// iou computes intersection-over-union of two time intervals
func iou(aStart, aEnd, bStart, bEnd float64) float64 {
	inter := math.Min(aEnd, bEnd) - math.Max(aStart, bStart)
	if inter <= 0 {
		return 0
	}
	union := math.Max(aEnd, bEnd) - math.Min(aStart, bStart)
	if union <= 0 {
		return 0
	}
	return inter / union
}

// Rank scores every window and greedily keeps the highest-scoring
// pairwise non-overlapping ones. An empty word list yields an empty
// result with no error.
func (r *Ranker) Rank(ctx context.Context, words []models.Word) ([]Candidate, error) {
	if len(words) == 0 {
		return nil, nil
	}

	windows := slidingWindows(words, r.opts.TargetLen, r.opts.Stride)

	candidates := make([]Candidate, 0, len(windows))
	for _, w := range windows {
		features, text := extractFeatures(w)

		var embedding models.Embedding
		if r.embedder != nil {
			vec, err := r.embedder.Embed(ctx, text)
			if err != nil {
				return nil, fmt.Errorf("failed to embed window text: %w", err)
			}
			embedding = vec
		}

		candidates = append(candidates, Candidate{
			Start:     w.start,
			End:       w.end,
			Score:     score(features),
			Features:  features,
			Embedding: embedding,
			Reason:    "heuristic",
		})
	}

	// Stable keeps original window order on equal scores
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})

	var kept []Candidate
	for _, c := range candidates {
		if len(kept) >= r.opts.MaxSegments {
			break
		}
		overlaps := false
		for _, k := range kept {
			if iou(c.Start, c.End, k.Start, k.End) >= r.opts.IOUThreshold {
				overlaps = true
				break
			}
		}
		if !overlaps {
			kept = append(kept, c)
		}
	}

	if r.logger != nil {
		r.logger.WithField("windows", len(windows)).
			WithField("kept", len(kept)).
			Debug("Ranked highlight candidates")
	}

	return kept, nil
}
