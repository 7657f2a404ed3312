// Package scheduler runs recurring maintenance jobs on a cron timetable.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"librarium/internal/logger"
	"librarium/internal/tasks"
)

// cronParser accepts the standard 5-field cron syntax (minute to day-of-week).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ValidateSchedule reports whether schedule is a well-formed 5-field cron spec.
func ValidateSchedule(schedule string) error {
	_, err := cronParser.Parse(schedule)
	return err
}

// RetentionScheduler enqueues the audit cleanup task on a cron schedule so
// the audit log never grows past its retention window.
type RetentionScheduler struct {
	tasks         *tasks.Client
	schedule      string
	retentionDays int

	cron       *cron.Cron
	entryID    cron.EntryID
	mu         sync.RWMutex
	isRunning  bool
	cancelFunc context.CancelFunc
}

// NewRetentionScheduler creates a scheduler that enqueues cleanup runs with
// the given retention. The schedule comes from configuration and is validated
// on Start.
func NewRetentionScheduler(client *tasks.Client, schedule string, retentionDays int) *RetentionScheduler {
	return &RetentionScheduler{
		tasks:         client,
		schedule:      schedule,
		retentionDays: retentionDays,
		cron:          cron.New(cron.WithParser(cronParser)),
	}
}

// Start begins the schedule. It is a no-op when already running or when no
// task queue is configured. The scheduler stops itself when ctx is cancelled.
func (s *RetentionScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}

	if s.tasks == nil {
		logger.Get().Info().Msg("retention scheduler: task queue disabled, not starting")
		return nil
	}

	if err := ValidateSchedule(s.schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", s.schedule, err)
	}

	entryID, err := s.cron.AddFunc(s.schedule, s.enqueueCleanup)
	if err != nil {
		return fmt.Errorf("failed to schedule audit cleanup: %w", err)
	}
	s.entryID = entryID

	var cancelCtx context.Context
	cancelCtx, s.cancelFunc = context.WithCancel(ctx)

	s.cron.Start()
	s.isRunning = true

	event := logger.Get().Info().
		Str("schedule", s.schedule).
		Int("retention_days", s.retentionDays)
	if sched, err := cronParser.Parse(s.schedule); err == nil {
		event = event.Time("next_run", sched.Next(time.Now()))
	}
	event.Msg("retention scheduler started")

	go func() {
		<-cancelCtx.Done()
		s.Stop()
	}()

	return nil
}

// Stop halts the schedule and waits for an in-flight enqueue to finish.
// Safe to call more than once.
func (s *RetentionScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}

	stopCtx := s.cron.Stop()
	<-stopCtx.Done()

	s.isRunning = false
	if s.cancelFunc != nil {
		s.cancelFunc()
		s.cancelFunc = nil
	}

	logger.Get().Info().Msg("retention scheduler stopped")
}

// RunNow enqueues one cleanup task immediately, outside the schedule.
func (s *RetentionScheduler) RunNow() error {
	if s.tasks == nil {
		return fmt.Errorf("task queue not configured")
	}

	ids, err := s.tasks.Add(tasks.CleanupAuditTask{RetentionDays: s.retentionDays}).Save()
	if err != nil {
		return fmt.Errorf("failed to enqueue audit cleanup: %w", err)
	}

	logger.Get().Info().
		Strs("task_ids", ids).
		Int("retention_days", s.retentionDays).
		Msg("audit cleanup enqueued")
	return nil
}

// IsRunning reports whether the cron loop is active.
func (s *RetentionScheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// NextRunTime returns when the next cleanup fires, or nil when stopped.
func (s *RetentionScheduler) NextRunTime() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning {
		return nil
	}

	for _, entry := range s.cron.Entries() {
		if entry.ID == s.entryID {
			t := entry.Next
			return &t
		}
	}
	return nil
}

func (s *RetentionScheduler) enqueueCleanup() {
	if err := s.RunNow(); err != nil {
		logger.Get().Error().Err(err).Msg("scheduled audit cleanup enqueue failed")
	}
}
