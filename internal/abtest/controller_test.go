package abtest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clipforge/pkg/models"
)

type fakeRepo struct {
	clips map[string]*models.Clip
}

func newFakeRepo(clips ...*models.Clip) *fakeRepo {
	r := &fakeRepo{clips: map[string]*models.Clip{}}
	for _, c := range clips {
		r.clips[c.ID] = c
	}
	return r
}

func (r *fakeRepo) GetClip(_ context.Context, id string) (*models.Clip, error) {
	c, ok := r.clips[id]
	if !ok {
		return nil, fmt.Errorf("clip %s not found", id)
	}
	return c, nil
}

func (r *fakeRepo) UpdateClipAB(_ context.Context, clip *models.Clip) error {
	r.clips[clip.ID] = clip
	return nil
}

func (r *fakeRepo) ListRunningClips(context.Context) ([]*models.Clip, error) {
	var out []*models.Clip
	for _, c := range r.clips {
		if c.ABStatus == models.ABRunning {
			out = append(out, c)
		}
	}
	return out, nil
}

type fakePublisher struct {
	calls []string
}

func (p *fakePublisher) SetThumbnail(_ context.Context, clipID string, variant models.Variant, _ string) error {
	p.calls = append(p.calls, clipID+":"+string(variant))
	return nil
}

func bothVariants() models.ThumbnailVariants {
	return models.ThumbnailVariants{
		{Key: "A", Path: "/data/thumbnails/c1_A.jpg"},
		{Key: "B", Path: "/data/thumbnails/c1_B.jpg"},
	}
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestStartRequiresBothVariants(t *testing.T) {
	repo := newFakeRepo(&models.Clip{
		ID:         "c1",
		ABStatus:   models.ABNotStarted,
		Thumbnails: models.ThumbnailVariants{{Key: "A", Path: "/a.jpg"}},
	})

	c := NewController(repo, nil, 4, nil)
	err := c.Start(context.Background(), "c1")
	assert.ErrorIs(t, err, ErrVariantsMissing)
}

func TestStartDefaultsToVariantA(t *testing.T) {
	repo := newFakeRepo(&models.Clip{ID: "c1", ABStatus: models.ABNotStarted, Thumbnails: bothVariants()})

	now := time.Date(2025, 11, 1, 12, 0, 0, 0, time.UTC)
	c := NewController(repo, nil, 4, nil).WithClock(fixedClock(now))
	require.NoError(t, c.Start(context.Background(), "c1"))

	clip := repo.clips["c1"]
	assert.Equal(t, models.ABRunning, clip.ABStatus)
	assert.Equal(t, models.VariantA, clip.ABActive)
	require.Len(t, clip.ABHistory, 1)
	assert.Equal(t, models.ABEventStart, clip.ABHistory[0].Kind)
	assert.Equal(t, models.VariantA, clip.ABHistory[0].Variant)
	assert.True(t, clip.ABHistory[0].At.Equal(now))

	// Redelivered start job is a no-op
	require.NoError(t, c.Start(context.Background(), "c1"))
	assert.Len(t, repo.clips["c1"].ABHistory, 1)
}

func TestStartAfterStop(t *testing.T) {
	repo := newFakeRepo(&models.Clip{ID: "c1", ABStatus: models.ABStopped, Thumbnails: bothVariants()})

	c := NewController(repo, nil, 4, nil)
	assert.ErrorIs(t, c.Start(context.Background(), "c1"), ErrAlreadyStopped)
}

func TestStopAppendsEvent(t *testing.T) {
	repo := newFakeRepo(&models.Clip{
		ID:       "c1",
		ABStatus: models.ABRunning,
		ABActive: models.VariantB,
	})

	c := NewController(repo, nil, 4, nil)
	require.NoError(t, c.Stop(context.Background(), "c1"))

	clip := repo.clips["c1"]
	assert.Equal(t, models.ABStopped, clip.ABStatus)
	require.Len(t, clip.ABHistory, 1)
	assert.Equal(t, models.ABEventStop, clip.ABHistory[0].Kind)
	assert.Equal(t, models.VariantB, clip.ABHistory[0].Variant)

	assert.ErrorIs(t, c.Stop(context.Background(), "c1"), ErrNotRunning)
}

func TestSwitchAllTogglesAndPublishes(t *testing.T) {
	repo := newFakeRepo(&models.Clip{
		ID:         "c1",
		ABStatus:   models.ABRunning,
		ABActive:   models.VariantA,
		Thumbnails: bothVariants(),
	})
	pub := &fakePublisher{}

	c := NewController(repo, pub, 4, nil)
	require.NoError(t, c.SwitchAll(context.Background()))

	clip := repo.clips["c1"]
	assert.Equal(t, models.VariantB, clip.ABActive)
	require.Len(t, clip.ABHistory, 1)
	assert.Equal(t, models.ABEventSwitch, clip.ABHistory[0].Kind)
	assert.Equal(t, models.VariantB, clip.ABHistory[0].Variant)
	assert.Equal(t, []string{"c1:B"}, pub.calls)
}

func day(d string) time.Time {
	t, _ := time.Parse("2006-01-02", d)
	return t
}

func viewSeries(startDate string, views ...int64) []models.ViewPoint {
	start := day(startDate)
	out := make([]models.ViewPoint, len(views))
	for i, v := range views {
		out[i] = models.ViewPoint{Date: start.AddDate(0, 0, i).Format("2006-01-02"), Views: v}
	}
	return out
}

func TestEvaluateDeclaresWinnerA(t *testing.T) {
	// No switches: A active the whole time, gaining 5 views per day
	clip := &models.Clip{
		ID:         "c1",
		ABStatus:   models.ABRunning,
		ABActive:   models.VariantA,
		Thumbnails: bothVariants(),
		ABHistory: models.ABHistory{
			{At: day("2025-11-01"), Kind: models.ABEventStart, Variant: models.VariantA},
		},
		Metrics: models.ClipMetrics{ViewSeries: viewSeries("2025-11-01", 100, 105, 110, 115, 120)},
	}
	repo := newFakeRepo(clip)
	pub := &fakePublisher{}

	c := NewController(repo, pub, 4, nil).WithClock(fixedClock(day("2025-11-06")))
	require.NoError(t, c.EvaluateAll(context.Background()))

	got := repo.clips["c1"]
	assert.Equal(t, models.ABStopped, got.ABStatus)
	assert.Equal(t, models.VariantA, got.ABActive)

	last := got.ABHistory[len(got.ABHistory)-1]
	assert.Equal(t, models.ABEventWinner, last.Kind)
	assert.Equal(t, models.VariantA, last.Winner)
	assert.Equal(t, int64(20), last.SumA)
	assert.Equal(t, int64(0), last.SumB)
	assert.Equal(t, []string{"c1:A"}, pub.calls)
}

func TestEvaluateSplitsByReconstructedVariant(t *testing.T) {
	// A for the first two evaluated days, then switched to B. B gains
	// more views, so B wins.
	clip := &models.Clip{
		ID:         "c1",
		ABStatus:   models.ABRunning,
		ABActive:   models.VariantB,
		Thumbnails: bothVariants(),
		ABHistory: models.ABHistory{
			{At: day("2025-11-01"), Kind: models.ABEventStart, Variant: models.VariantA},
			{At: day("2025-11-04"), Kind: models.ABEventSwitch, Variant: models.VariantB},
		},
		// Deltas: 02->+2, 03->+3, 04->+50, 05->+50
		Metrics: models.ClipMetrics{ViewSeries: viewSeries("2025-11-01", 100, 102, 105, 155, 205)},
	}
	repo := newFakeRepo(clip)

	c := NewController(repo, nil, 4, nil)
	require.NoError(t, c.EvaluateAll(context.Background()))

	got := repo.clips["c1"]
	last := got.ABHistory[len(got.ABHistory)-1]
	assert.Equal(t, models.VariantB, last.Winner)
	assert.Equal(t, int64(5), last.SumA)
	assert.Equal(t, int64(100), last.SumB)
}

func TestEvaluateTieFavorsA(t *testing.T) {
	clip := &models.Clip{
		ID:         "c1",
		ABStatus:   models.ABRunning,
		ABActive:   models.VariantB,
		Thumbnails: bothVariants(),
		ABHistory: models.ABHistory{
			{At: day("2025-11-01"), Kind: models.ABEventStart, Variant: models.VariantA},
			{At: day("2025-11-04"), Kind: models.ABEventSwitch, Variant: models.VariantB},
		},
		// Deltas: +5, +5 under A then +5, +5 under B
		Metrics: models.ClipMetrics{ViewSeries: viewSeries("2025-11-01", 100, 105, 110, 115, 120)},
	}
	repo := newFakeRepo(clip)

	c := NewController(repo, nil, 4, nil)
	require.NoError(t, c.EvaluateAll(context.Background()))

	assert.Equal(t, models.VariantA, repo.clips["c1"].ABActive)
}

func TestEvaluateSkipsShortSeries(t *testing.T) {
	clip := &models.Clip{
		ID:       "c1",
		ABStatus: models.ABRunning,
		ABActive: models.VariantA,
		Metrics:  models.ClipMetrics{ViewSeries: viewSeries("2025-11-01", 100, 105, 110, 115)},
	}
	repo := newFakeRepo(clip)

	c := NewController(repo, nil, 4, nil)
	require.NoError(t, c.EvaluateAll(context.Background()))

	assert.Equal(t, models.ABRunning, repo.clips["c1"].ABStatus, "needs N+1 points to evaluate")
	assert.Empty(t, repo.clips["c1"].ABHistory)
}

func TestEvaluateDefersOnZeroDeltas(t *testing.T) {
	clip := &models.Clip{
		ID:       "c1",
		ABStatus: models.ABRunning,
		ABActive: models.VariantA,
		ABHistory: models.ABHistory{
			{At: day("2025-11-01"), Kind: models.ABEventStart, Variant: models.VariantA},
		},
		Metrics: models.ClipMetrics{ViewSeries: viewSeries("2025-11-01", 100, 100, 100, 100, 100)},
	}
	repo := newFakeRepo(clip)

	c := NewController(repo, nil, 4, nil)
	require.NoError(t, c.EvaluateAll(context.Background()))

	assert.Equal(t, models.ABRunning, repo.clips["c1"].ABStatus, "zero combined delta defers the decision")
}

func TestEvaluateClampsNegativeDeltas(t *testing.T) {
	clip := &models.Clip{
		ID:       "c1",
		ABStatus: models.ABRunning,
		ABActive: models.VariantA,
		ABHistory: models.ABHistory{
			{At: day("2025-11-01"), Kind: models.ABEventStart, Variant: models.VariantA},
		},
		// The drop on day three counts as zero, not negative
		Metrics: models.ClipMetrics{ViewSeries: viewSeries("2025-11-01", 100, 110, 90, 95, 100)},
	}
	repo := newFakeRepo(clip)

	c := NewController(repo, nil, 4, nil)
	require.NoError(t, c.EvaluateAll(context.Background()))

	got := repo.clips["c1"]
	last := got.ABHistory[len(got.ABHistory)-1]
	assert.Equal(t, models.ABEventWinner, last.Kind)
	assert.Equal(t, int64(20), last.SumA)
}

func TestVariantByDate(t *testing.T) {
	history := models.ABHistory{
		{At: day("2025-11-04"), Kind: models.ABEventSwitch, Variant: models.VariantB},
		{At: day("2025-11-01"), Kind: models.ABEventStart, Variant: models.VariantA},
		{At: day("2025-11-02"), Kind: models.ABEventStop, Variant: models.VariantB},
	}

	f := variantByDate(history)
	assert.Equal(t, models.VariantA, f("2025-10-20"), "earliest variant covers dates before the first event")
	assert.Equal(t, models.VariantA, f("2025-11-03"), "stop events do not change the active variant")
	assert.Equal(t, models.VariantB, f("2025-11-04"))
	assert.Equal(t, models.VariantB, f("2025-11-10"))
}
