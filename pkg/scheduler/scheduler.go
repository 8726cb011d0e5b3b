package scheduler

import (
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"vidstream/pkg/logger"
)

// EventScheduler runs named recurring tasks. Expressions are standard cron
// ("0 3 * * *") or descriptors ("@every 15m").
type EventScheduler interface {
	Start()
	Stop()
	AddJob(id, cronExpr string, task func()) error
	RemoveJob(id string) error
	GetJob(id string) (*JobInfo, bool)
	ListJobs() map[string]*JobInfo
	IsRunning() bool
}

type JobInfo struct {
	ID       string     `json:"id"`
	CronExpr string     `json:"cron"`
	IsActive bool       `json:"active"`
	LastRun  *time.Time `json:"last_run,omitempty"`
	NextRun  *time.Time `json:"next_run,omitempty"`

	job *gocron.Job
}

type GocronScheduler struct {
	scheduler *gocron.Scheduler
	jobs      map[string]*JobInfo
	mu        sync.RWMutex
	running   bool
}

func NewEventScheduler() EventScheduler {
	scheduler := gocron.NewScheduler(time.UTC)
	// a tick still running blocks the next one
	scheduler.SingletonModeAll()

	return &GocronScheduler{
		scheduler: scheduler,
		jobs:      make(map[string]*JobInfo),
	}
}

func (s *GocronScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}

	s.scheduler.StartAsync()
	s.running = true
	logger.Info("Event scheduler started", "jobs", len(s.jobs))
}

func (s *GocronScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	s.scheduler.Stop()
	s.running = false
	logger.Info("Event scheduler stopped")
}

func (s *GocronScheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

func (s *GocronScheduler) AddJob(id, cronExpr string, task func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[id]; exists {
		return fmt.Errorf("job with ID %s already exists", id)
	}

	job, err := s.scheduler.Cron(cronExpr).Do(func() {
		now := time.Now()

		s.mu.Lock()
		if info, exists := s.jobs[id]; exists {
			info.LastRun = &now
		}
		s.mu.Unlock()

		runTask(id, task)
	})
	if err != nil {
		return fmt.Errorf("failed to create job %s: %w", id, err)
	}

	nextRun := job.NextRun()
	s.jobs[id] = &JobInfo{
		ID:       id,
		CronExpr: cronExpr,
		IsActive: true,
		NextRun:  &nextRun,
		job:      job,
	}

	logger.Info("Job added", "id", id, "cron", cronExpr, "next_run", nextRun.Format(time.RFC3339))
	return nil
}

// runTask keeps a panicking task from taking the scheduler down
func runTask(id string, task func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Scheduled job panicked", "id", id, "error", r)
		}
	}()
	task()
}

func (s *GocronScheduler) RemoveJob(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, exists := s.jobs[id]
	if !exists {
		return fmt.Errorf("job with ID %s not found", id)
	}

	if info.job != nil {
		s.scheduler.RemoveByReference(info.job)
	}

	delete(s.jobs, id)
	logger.Info("Job removed", "id", id)
	return nil
}

func (s *GocronScheduler) GetJob(id string) (*JobInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info, exists := s.jobs[id]
	if !exists {
		return nil, false
	}
	return snapshot(info), true
}

func (s *GocronScheduler) ListJobs() map[string]*JobInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make(map[string]*JobInfo, len(s.jobs))
	for id, info := range s.jobs {
		jobs[id] = snapshot(info)
	}
	return jobs
}

// snapshot copies a JobInfo so callers never share the mutable original
func snapshot(info *JobInfo) *JobInfo {
	cp := &JobInfo{
		ID:       info.ID,
		CronExpr: info.CronExpr,
		IsActive: info.IsActive,
		job:      info.job,
	}
	if info.LastRun != nil {
		lastRun := *info.LastRun
		cp.LastRun = &lastRun
	}
	if info.job != nil {
		nextRun := info.job.NextRun()
		cp.NextRun = &nextRun
	} else if info.NextRun != nil {
		nextRun := *info.NextRun
		cp.NextRun = &nextRun
	}
	return cp
}

func ValidateCronExpression(cronExpr string) error {
	scheduler := gocron.NewScheduler(time.UTC)
	if _, err := scheduler.Cron(cronExpr).Do(func() {}); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}
	return nil
}
