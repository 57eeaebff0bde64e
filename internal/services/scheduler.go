package services

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"bolso/internal/core"
	"bolso/internal/log"
	"bolso/internal/store"
)

// SchedulerConfig holds configuration for the scheduler
type SchedulerConfig struct {
	// Interval between runs (default: 15m)
	Interval time.Duration

	// Concurrency bounds how many users are processed at once (default: 4)
	Concurrency int
}

func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Interval:    15 * time.Minute,
		Concurrency: 4,
	}
}

// RunStats counts what one run did.
type RunStats struct {
	Users      int
	RolledOver int64
	Reminders  int64
	Failures   int64
}

// Scheduler runs the fixed-payment rollover and the reminders for every
// user on an interval.
type Scheduler struct {
	users     store.Directory
	rollover  *RolloverProcessor
	reminders *ReminderProcessor
	config    SchedulerConfig
	logger    *log.Logger
	now       func() time.Time

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewScheduler(users store.Directory, rollover *RolloverProcessor, reminders *ReminderProcessor, config SchedulerConfig, logger *log.Logger) *Scheduler {
	if config.Interval <= 0 {
		config.Interval = DefaultSchedulerConfig().Interval
	}
	if config.Concurrency < 1 {
		config.Concurrency = 1
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Scheduler{
		users:     users,
		rollover:  rollover,
		reminders: reminders,
		config:    config,
		logger:    logger.WithComponent(log.ComponentScheduler),
		now:       time.Now,
	}
}

// Start begins the run loop. Returns an error if already running.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler is already running")
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	go s.runLoop(ctx)

	s.logger.InfoContext(ctx, "Scheduler started",
		"interval", s.config.Interval,
		"concurrency", s.config.Concurrency)
	return nil
}

// Stop signals the loop and waits for the current run to finish.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	stopCh, doneCh := s.stopCh, s.doneCh
	s.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		s.logger.InfoContext(ctx, "Scheduler stopped gracefully")
	case <-ctx.Done():
		s.logger.WarnContext(ctx, "Scheduler stop timed out")
		return ctx.Err()
	}

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
	return nil
}

func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) runLoop(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	s.RunOnce(ctx)

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce processes every known user. A failing user is logged and counted;
// it does not stop the others.
func (s *Scheduler) RunOnce(ctx context.Context) RunStats {
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		s.logger.LogError(ctx, "Failed to list users", err, log.OpList, nil)
		return RunStats{Failures: 1}
	}

	now := s.now()
	stats := RunStats{Users: len(users)}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.Concurrency)
	for _, user := range users {
		g.Go(func() error {
			uctx := core.WithUser(gctx, user)
			s.runUser(uctx, user, now, &stats)
			return nil
		})
	}
	_ = g.Wait()

	s.logger.InfoContext(ctx, "Scheduler run complete",
		"users", stats.Users,
		"rolled_over", atomic.LoadInt64(&stats.RolledOver),
		"reminders", atomic.LoadInt64(&stats.Reminders),
		"failures", atomic.LoadInt64(&stats.Failures))
	return stats
}

func (s *Scheduler) runUser(ctx context.Context, user core.UserID, now time.Time, stats *RunStats) {
	fields := func() log.LogFields { return log.NewFields().WithUser(user) }

	if s.rollover != nil {
		n, err := s.rollover.Rollover(ctx, s.monthFor(ctx, now))
		if err != nil {
			atomic.AddInt64(&stats.Failures, 1)
			s.logger.LogError(ctx, "Rollover failed", err, log.OpRollover, fields())
		}
		atomic.AddInt64(&stats.RolledOver, int64(n))
	}

	if s.reminders != nil {
		n, err := s.reminders.Remind(ctx, now)
		if err != nil {
			atomic.AddInt64(&stats.Failures, 1)
			s.logger.LogError(ctx, "Reminders failed", err, log.OpRemind, fields())
		}
		atomic.AddInt64(&stats.Reminders, int64(n))
	}
}

// monthFor is the current month in the user's timezone.
func (s *Scheduler) monthFor(ctx context.Context, now time.Time) core.MonthKey {
	if s.reminders != nil {
		if profile, err := s.reminders.finance.store.GetProfile(ctx); err == nil {
			return core.CurrentMonth(now.In(profile.Location()))
		}
	}
	return core.CurrentMonth(now)
}
