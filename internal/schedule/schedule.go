package schedule

import (
	"context"
	"time"

	"clipforge/internal/logging"
)

// Task is one recurring routine. It becomes due once per Interval, but
// never before Hour o'clock local time, so daily tasks keep a stable
// time of day without depending on an exact hh:mm poll landing.
type Task struct {
	Name     string
	Hour     int
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// StateStore persists per-task last-run timestamps so a restarted
// scheduler does not re-fire tasks that already ran.
type StateStore interface {
	LastRun(ctx context.Context, task string) (time.Time, bool, error)
	SetLastRun(ctx context.Context, task string, t time.Time) error
}

// Scheduler polls the wall clock and fires due tasks sequentially
type Scheduler struct {
	tasks  []Task
	state  StateStore
	poll   time.Duration
	now    func() time.Time
	logger *logging.Logger
}

// New creates a scheduler
func New(state StateStore, poll time.Duration, logger *logging.Logger) *Scheduler {
	if poll <= 0 {
		poll = time.Minute
	}
	return &Scheduler{
		state:  state,
		poll:   poll,
		now:    time.Now,
		logger: logger,
	}
}

// WithClock overrides the scheduler's clock
func (s *Scheduler) WithClock(now func() time.Time) *Scheduler {
	s.now = now
	return s
}

// Add registers a task
func (s *Scheduler) Add(task Task) {
	s.tasks = append(s.tasks, task)
}

// Run polls until the context is cancelled
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.WithField("tasks", len(s.tasks)).Info("Scheduler started")

	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Scheduler stopping")
			return ctx.Err()
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs one sweep over all tasks, firing the due ones
func (s *Scheduler) Tick(ctx context.Context) {
	for _, task := range s.tasks {
		s.check(ctx, task)
	}
}

func (s *Scheduler) check(ctx context.Context, task Task) {
	now := s.now()

	last, hasLast, err := s.state.LastRun(ctx, task.Name)
	if err != nil {
		s.logger.WithField("task", task.Name).WithError(err).Error("Failed to read task state")
		return
	}

	if !due(now, last, hasLast, task) {
		return
	}

	s.logger.WithField("task", task.Name).Info("Running scheduled task")
	if err := task.Run(ctx); err != nil {
		// Last-run stays untouched, so the task retries next poll
		s.logger.WithField("task", task.Name).WithError(err).Error("Scheduled task failed")
		return
	}

	if err := s.state.SetLastRun(ctx, task.Name, now); err != nil {
		s.logger.WithField("task", task.Name).WithError(err).Error("Failed to persist task state")
	}
}

// due reports whether the task should fire: at or after its hour, and
// with a full interval elapsed since the persisted last run.
func due(now, last time.Time, hasLast bool, task Task) bool {
	if now.Hour() < task.Hour {
		return false
	}
	if !hasLast {
		return true
	}
	return now.Sub(last) >= task.Interval
}
