// Package scheduler runs periodic jobs on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/mikestefanello/backlite"
	"github.com/robfig/cron/v3"

	"github.com/mrlokans/bookshelf/internal/config"
	"github.com/mrlokans/bookshelf/internal/settingsstore"
	"github.com/mrlokans/bookshelf/internal/tasks"
)

// OwnerLister returns the users that own books. books.Repository
// implements it.
type OwnerLister interface {
	OwnerIDs() ([]uint, error)
}

// Enqueuer saves background tasks. tasks.Client implements it.
type Enqueuer interface {
	Enqueue(ctx context.Context, tasks ...backlite.Task) ([]string, error)
}

// CoverSyncScheduler queues a cover backfill for every owner on a schedule.
type CoverSyncScheduler struct {
	owners   OwnerLister
	queue    Enqueuer
	settings *settingsstore.SettingsStore
	config   config.CoverSync

	cron       *cron.Cron
	entryID    cron.EntryID
	mu         sync.RWMutex
	isRunning  bool
	isSyncing  bool
	cancelFunc context.CancelFunc
}

func NewCoverSyncScheduler(owners OwnerLister, queue Enqueuer, settings *settingsstore.SettingsStore, cfg config.CoverSync) *CoverSyncScheduler {
	return &CoverSyncScheduler{
		owners:   owners,
		queue:    queue,
		settings: settings,
		config:   cfg,
		cron:     cron.New(cron.WithParser(cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow))),
	}
}

// Start schedules the job when cover sync is enabled. The scheduler stops
// when ctx is done.
func (s *CoverSyncScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}
	if !s.config.Enabled {
		log.Printf("Cover sync scheduler: disabled")
		return nil
	}
	if err := settingsstore.ValidateCronSchedule(s.config.Schedule); err != nil {
		return fmt.Errorf("invalid cron schedule '%s': %w", s.config.Schedule, err)
	}

	entryID, err := s.cron.AddFunc(s.config.Schedule, func() {
		s.RunOnce(context.Background())
	})
	if err != nil {
		return fmt.Errorf("failed to schedule cover sync: %w", err)
	}
	s.entryID = entryID

	var cancelCtx context.Context
	cancelCtx, s.cancelFunc = context.WithCancel(ctx)

	s.cron.Start()
	s.isRunning = true

	nextRun, _ := settingsstore.GetNextRunTime(s.config.Schedule)
	log.Printf("Cover sync scheduler: started with schedule '%s' (%s). Next run: %v",
		s.config.Schedule, settingsstore.GetCronDescription(s.config.Schedule), nextRun)

	go func() {
		<-cancelCtx.Done()
		s.Stop()
	}()

	return nil
}

// Stop waits for a running job and halts the scheduler.
func (s *CoverSyncScheduler) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	cancel := s.cancelFunc
	s.cancelFunc = nil
	entryID := s.entryID
	s.mu.Unlock()

	// The job takes s.mu, so wait for it without holding the lock
	<-s.cron.Stop().Done()
	s.cron.Remove(entryID)
	if cancel != nil {
		cancel()
	}

	log.Printf("Cover sync scheduler: stopped")
}

func (s *CoverSyncScheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// NextRunTime returns the next activation, or nil when not running.
func (s *CoverSyncScheduler) NextRunTime() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning {
		return nil
	}
	entry := s.cron.Entry(s.entryID)
	if entry.ID == 0 {
		return nil
	}
	next := entry.Next
	return &next
}

// Status combines the recorded last run with the current schedule.
func (s *CoverSyncScheduler) Status() settingsstore.CoverSyncStatus {
	var status settingsstore.CoverSyncStatus
	if s.settings != nil {
		status = s.settings.GetCoverSyncStatus()
	}
	status.Enabled = s.config.Enabled
	status.Schedule = s.config.Schedule
	if s.config.Schedule != "" {
		status.ScheduleDesc = settingsstore.GetCronDescription(s.config.Schedule)
	}
	status.NextSyncAt = s.NextRunTime()
	return status
}

// RunOnce queues one backfill task per owner and records the outcome. It
// returns the number of tasks queued. Overlapping runs are skipped.
func (s *CoverSyncScheduler) RunOnce(ctx context.Context) int {
	s.mu.Lock()
	if s.isSyncing {
		s.mu.Unlock()
		log.Printf("Cover sync: skipped (already running)")
		return 0
	}
	s.isSyncing = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.isSyncing = false
		s.mu.Unlock()
	}()

	owners, err := s.owners.OwnerIDs()
	if err != nil {
		s.fail(fmt.Sprintf("Failed to list library owners: %v", err))
		return 0
	}
	if len(owners) == 0 {
		s.record("success", "No libraries to sync", 0)
		return 0
	}

	batch := make([]backlite.Task, 0, len(owners))
	for _, id := range owners {
		batch = append(batch, tasks.BackfillCoversTask{UserID: id})
	}

	ids, err := s.queue.Enqueue(ctx, batch...)
	if err != nil {
		s.fail(fmt.Sprintf("Failed to queue cover backfills: %v", err))
		return 0
	}

	s.record("success", fmt.Sprintf("Queued cover backfill for %d libraries", len(ids)), len(ids))
	return len(ids)
}

func (s *CoverSyncScheduler) fail(message string) {
	log.Printf("Cover sync: %s", message)
	s.record("failed", message, 0)
}

func (s *CoverSyncScheduler) record(status, message string, queued int) {
	if status == "success" {
		log.Printf("Cover sync: %s", message)
	}
	if s.settings == nil {
		return
	}
	if err := s.settings.SetCoverSyncStatus(status, message, queued); err != nil {
		log.Printf("Cover sync: failed to record status: %v", err)
	}
}
