// Package refresh keeps a long-running session current: a periodic
// refetch while the observation time is "now", and a config file watcher
// that retunes the period without a restart.
package refresh

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"

	"git.home.luguber.info/inful/stargazer/internal/logfields"
)

// Target is the session side of a periodic refresh.
type Target interface {
	Refetch() uint64
	TimeISO() string
}

// Scheduler wraps a gocron scheduler running at most one refetch job.
type Scheduler struct {
	scheduler gocron.Scheduler
	target    Target
	logger    *slog.Logger

	mu       sync.Mutex
	job      gocron.Job
	interval time.Duration
}

// Option configures a Scheduler.
type Option func(*schedulerOptions)

type schedulerOptions struct {
	clock  clockwork.Clock
	logger *slog.Logger
}

// WithClock drives the scheduler from c instead of the wall clock.
func WithClock(c clockwork.Clock) Option {
	return func(o *schedulerOptions) { o.clock = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *schedulerOptions) { o.logger = l }
}

// NewScheduler creates a stopped scheduler for target.
func NewScheduler(target Target, opts ...Option) (*Scheduler, error) {
	o := schedulerOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	var gopts []gocron.SchedulerOption
	if o.clock != nil {
		gopts = append(gopts, gocron.WithClock(o.clock))
	}
	s, err := gocron.NewScheduler(gopts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	return &Scheduler{scheduler: s, target: target, logger: o.logger}, nil
}

// Start begins running scheduled jobs.
func (s *Scheduler) Start() {
	s.logger.Info("Starting refresh scheduler")
	s.scheduler.Start()
}

// Stop shuts the scheduler down and waits for a running tick.
func (s *Scheduler) Stop() error {
	s.logger.Info("Stopping refresh scheduler")
	return s.scheduler.Shutdown()
}

// Interval returns the active period, zero when disabled.
func (s *Scheduler) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

// SetInterval schedules, reschedules or (for d <= 0) removes the refetch job.
func (s *Scheduler) SetInterval(d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if d == s.interval && (d <= 0 || s.job != nil) {
		return nil
	}
	if d <= 0 {
		if s.job != nil {
			if err := s.scheduler.RemoveJob(s.job.ID()); err != nil {
				return fmt.Errorf("failed to remove refresh job: %w", err)
			}
			s.job = nil
		}
		s.interval = 0
		s.logger.Info("Periodic refresh disabled")
		return nil
	}

	def := gocron.DurationJob(d)
	task := gocron.NewTask(s.tick)
	jobOpts := []gocron.JobOption{
		gocron.WithName("refetch"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	}
	var (
		job gocron.Job
		err error
	)
	if s.job != nil {
		job, err = s.scheduler.Update(s.job.ID(), def, task, jobOpts...)
	} else {
		job, err = s.scheduler.NewJob(def, task, jobOpts...)
	}
	if err != nil {
		return fmt.Errorf("failed to schedule refresh job: %w", err)
	}
	s.job = job
	s.interval = d
	s.logger.Info("Periodic refresh scheduled", slog.Duration("interval", d))
	return nil
}

// tick refetches only while the session observes "now"; a fixed
// observation time yields the same answer on every run.
func (s *Scheduler) tick() {
	if t := s.target.TimeISO(); t != "" {
		s.logger.Debug("Skipping periodic refetch for fixed time", logfields.TimeISO(t))
		return
	}
	gen := s.target.Refetch()
	s.logger.Debug("Periodic refetch issued", logfields.Generation(gen))
}
