package abtest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"clipforge/internal/logging"
	"clipforge/internal/metrics"
	"clipforge/pkg/models"
)

// Controller errors
var (
	// ErrVariantsMissing means both A and B thumbnails must exist
	// before the test can start.
	ErrVariantsMissing = errors.New("both A and B thumbnail variants are required")
	// ErrNotRunning means the clip has no running test to act on
	ErrNotRunning = errors.New("ab test is not running")
	// ErrAlreadyStopped means a stopped test cannot be restarted
	ErrAlreadyStopped = errors.New("ab test is already stopped")
)

// Repository is the persistence surface the controller needs
type Repository interface {
	GetClip(ctx context.Context, id string) (*models.Clip, error)
	UpdateClipAB(ctx context.Context, clip *models.Clip) error
	ListRunningClips(ctx context.Context) ([]*models.Clip, error)
}

// Publisher applies a thumbnail externally when the active variant
// changes or a winner is declared.
type Publisher interface {
	SetThumbnail(ctx context.Context, clipID string, variant models.Variant, imagePath string) error
}

// Controller drives the thumbnail A/B state machine:
// not_started -> running -> stopped, never back.
type Controller struct {
	repo      Repository
	publisher Publisher
	evalDays  int
	now       func() time.Time
	logger    *logging.Logger
}

// NewController creates a controller. evalDays is the evaluation
// window N; now is injectable for tests and defaults to time.Now.
func NewController(repo Repository, publisher Publisher, evalDays int, logger *logging.Logger) *Controller {
	if evalDays <= 0 {
		evalDays = 4
	}
	return &Controller{
		repo:      repo,
		publisher: publisher,
		evalDays:  evalDays,
		now:       time.Now,
		logger:    logger,
	}
}

// WithClock overrides the controller's clock
func (c *Controller) WithClock(now func() time.Time) *Controller {
	c.now = now
	return c
}

// Start begins the test for a clip. Both variant thumbnails must
// already exist. Starting an already running test is a no-op, so a
// redelivered start job is harmless.
func (c *Controller) Start(ctx context.Context, clipID string) error {
	clip, err := c.repo.GetClip(ctx, clipID)
	if err != nil {
		return fmt.Errorf("failed to load clip: %w", err)
	}

	switch clip.ABStatus {
	case models.ABRunning:
		return nil
	case models.ABStopped:
		return ErrAlreadyStopped
	}

	if _, ok := clip.Thumbnails.Get(string(models.VariantA)); !ok {
		return ErrVariantsMissing
	}
	if _, ok := clip.Thumbnails.Get(string(models.VariantB)); !ok {
		return ErrVariantsMissing
	}

	clip.ABStatus = models.ABRunning
	if clip.ABActive == models.VariantNone {
		clip.ABActive = models.VariantA
	}
	clip.ABHistory = append(clip.ABHistory, models.ABEvent{
		At:      c.now(),
		Kind:    models.ABEventStart,
		Variant: clip.ABActive,
	})

	if err := c.repo.UpdateClipAB(ctx, clip); err != nil {
		return fmt.Errorf("failed to persist ab start: %w", err)
	}

	if c.logger != nil {
		c.logger.WithClipID(clipID).WithField("variant", clip.ABActive).Info("AB test started")
	}
	return nil
}

// Stop halts the test manually, keeping whichever variant is active
func (c *Controller) Stop(ctx context.Context, clipID string) error {
	clip, err := c.repo.GetClip(ctx, clipID)
	if err != nil {
		return fmt.Errorf("failed to load clip: %w", err)
	}

	if clip.ABStatus != models.ABRunning {
		return ErrNotRunning
	}

	clip.ABStatus = models.ABStopped
	clip.ABHistory = append(clip.ABHistory, models.ABEvent{
		At:      c.now(),
		Kind:    models.ABEventStop,
		Variant: clip.ABActive,
	})

	if err := c.repo.UpdateClipAB(ctx, clip); err != nil {
		return fmt.Errorf("failed to persist ab stop: %w", err)
	}

	if c.logger != nil {
		c.logger.WithClipID(clipID).Info("AB test stopped")
	}
	return nil
}

// SwitchAll toggles the active variant of every running test and asks
// the publisher to apply the newly active thumbnail. Failures on one
// clip do not stop the sweep.
func (c *Controller) SwitchAll(ctx context.Context) error {
	clips, err := c.repo.ListRunningClips(ctx)
	if err != nil {
		return fmt.Errorf("failed to list running clips: %w", err)
	}

	for _, clip := range clips {
		clip.ABActive = clip.ABActive.Other()
		clip.ABHistory = append(clip.ABHistory, models.ABEvent{
			At:      c.now(),
			Kind:    models.ABEventSwitch,
			Variant: clip.ABActive,
		})

		if err := c.repo.UpdateClipAB(ctx, clip); err != nil {
			if c.logger != nil {
				c.logger.WithClipID(clip.ID).WithError(err).Error("Failed to persist variant switch")
			}
			continue
		}

		metrics.ABSwitchesTotal.Inc()
		c.applyThumbnail(ctx, clip, clip.ABActive)
	}
	return nil
}

// EvaluateAll runs the daily winner evaluation over every running
// test. Clips without enough data are skipped and retried on the next
// cycle.
func (c *Controller) EvaluateAll(ctx context.Context) error {
	clips, err := c.repo.ListRunningClips(ctx)
	if err != nil {
		return fmt.Errorf("failed to list running clips: %w", err)
	}

	for _, clip := range clips {
		if err := c.evaluate(ctx, clip); err != nil {
			if c.logger != nil {
				c.logger.WithClipID(clip.ID).WithError(err).Error("Failed to evaluate ab test")
			}
		}
	}
	return nil
}

func (c *Controller) evaluate(ctx context.Context, clip *models.Clip) error {
	series := clip.Metrics.ViewSeries
	if len(series) < c.evalDays+1 {
		return nil
	}

	// Day-over-day view deltas, clamped at zero, attributed to the
	// later day of each pair.
	type delta struct {
		date  string
		views int64
	}
	deltas := make([]delta, 0, len(series)-1)
	for i := 1; i < len(series); i++ {
		d := series[i].Views - series[i-1].Views
		if d < 0 {
			d = 0
		}
		deltas = append(deltas, delta{date: series[i].Date, views: d})
	}
	deltas = deltas[len(deltas)-c.evalDays:]

	variantFor := variantByDate(clip.ABHistory)

	var sumA, sumB int64
	for _, d := range deltas {
		switch variantFor(d.date) {
		case models.VariantA:
			sumA += d.views
		case models.VariantB:
			sumB += d.views
		}
	}

	if sumA+sumB == 0 {
		return nil
	}

	winner := models.VariantB
	if sumA >= sumB {
		winner = models.VariantA
	}

	clip.ABStatus = models.ABStopped
	clip.ABActive = winner
	clip.ABHistory = append(clip.ABHistory, models.ABEvent{
		At:     c.now(),
		Kind:   models.ABEventWinner,
		Winner: winner,
		SumA:   sumA,
		SumB:   sumB,
	})

	if err := c.repo.UpdateClipAB(ctx, clip); err != nil {
		return fmt.Errorf("failed to persist winner: %w", err)
	}

	metrics.ABDecisionsTotal.WithLabelValues(string(winner)).Inc()
	if c.logger != nil {
		c.logger.WithClipID(clip.ID).
			WithField("winner", winner).
			WithField("sum_a", sumA).
			WithField("sum_b", sumB).
			Info("AB test winner declared")
	}

	c.applyThumbnail(ctx, clip, winner)
	return nil
}

// variantByDate reconstructs which variant was active on a given date
// from the clip history. The earliest recorded event's variant covers
// all dates before the first switch; each start/switch event updates
// the current variant from its own date onward.
func variantByDate(history models.ABHistory) func(date string) models.Variant {
	var changes []models.ABEvent
	for _, ev := range history.Sorted() {
		if ev.Variant == models.VariantNone {
			continue
		}
		if ev.Kind == models.ABEventStart || ev.Kind == models.ABEventSwitch {
			changes = append(changes, ev)
		}
	}

	return func(date string) models.Variant {
		if len(changes) == 0 {
			return models.VariantNone
		}
		current := changes[0].Variant
		for _, ev := range changes {
			if ev.At.Format("2006-01-02") <= date {
				current = ev.Variant
			}
		}
		return current
	}
}

func (c *Controller) applyThumbnail(ctx context.Context, clip *models.Clip, variant models.Variant) {
	if c.publisher == nil {
		return
	}

	thumb, ok := clip.Thumbnails.Get(string(variant))
	if !ok {
		return
	}
	if err := c.publisher.SetThumbnail(ctx, clip.ID, variant, thumb.Path); err != nil && c.logger != nil {
		c.logger.WithClipID(clip.ID).WithError(err).Warn("Failed to publish thumbnail")
	}
}
