package jobs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/contre95/soullyrics/src/features/config"
	"github.com/google/uuid"
)

var (
	ErrJobNotFound    = errors.New("job not found")
	ErrUnknownJobType = errors.New("unknown job type")
)

type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Finished reports whether the status is terminal.
func (s JobStatus) Finished() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

type Job struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Name      string         `json:"name"`
	Status    JobStatus      `json:"status"`
	Progress  int            `json:"progress"`
	Message   string         `json:"message"`
	Error     string         `json:"error,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	Result    map[string]any `json:"result,omitempty"`
	LogPath   string         `json:"-"`

	logger    *slog.Logger
	logFile   io.Closer
	cancel    context.CancelFunc
	cancelled bool
}

// Task defines the specific logic for a job type.
type Task interface {
	Execute(ctx context.Context, logger *slog.Logger, progress func(int, string)) (map[string]any, error)
}

// TaskFunc adapts a function to Task.
type TaskFunc func(ctx context.Context, logger *slog.Logger, progress func(int, string)) (map[string]any, error)

func (f TaskFunc) Execute(ctx context.Context, logger *slog.Logger, progress func(int, string)) (map[string]any, error) {
	return f(ctx, logger, progress)
}

// Service runs registered tasks as tracked jobs. At most one job per type runs
// at a time; later ones wait as pending.
type Service struct {
	mu     sync.RWMutex
	jobs   map[string]*Job
	tasks  map[string]Task
	config *config.Manager
	now    func() time.Time
}

func NewService(cfg *config.Manager) *Service {
	return &Service{
		jobs:   make(map[string]*Job),
		tasks:  make(map[string]Task),
		config: cfg,
		now:    time.Now,
	}
}

func (s *Service) RegisterTask(jobType string, task Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[jobType] = task
}

// Types returns the registered job types in name order.
func (s *Service) Types() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	types := make([]string, 0, len(s.tasks))
	for t := range s.tasks {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

func (s *Service) StartJob(jobType, name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[jobType]; !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownJobType, jobType)
	}
	if name == "" {
		name = jobType
	}
	now := s.now()
	job := &Job{
		ID:        uuid.New().String(),
		Type:      jobType,
		Name:      name,
		Status:    JobStatusPending,
		Message:   "Waiting for a running " + jobType + " job",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.openLog(job); err != nil {
		return "", err
	}
	s.jobs[job.ID] = job

	if !s.isJobTypeRunning(jobType) {
		s.launch(job)
	}
	return job.ID, nil
}

func (s *Service) openLog(job *Job) error {
	cfg := s.config.Get().Jobs
	if !cfg.Log {
		job.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
		return nil
	}
	if err := os.MkdirAll(cfg.LogPath, 0755); err != nil {
		return fmt.Errorf("failed to create job log directory: %w", err)
	}
	logPath := filepath.Join(cfg.LogPath, fmt.Sprintf("%s-%s.log", job.CreatedAt.Format("2006-01-02"), job.ID))
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open job log file: %w", err)
	}
	job.logger = slog.New(slog.NewTextHandler(logFile, nil))
	job.logFile = logFile
	job.LogPath = logPath
	return nil
}

// launch marks job running and executes it. Callers hold s.mu.
func (s *Service) launch(job *Job) {
	ctx, cancel := context.WithCancel(context.Background())
	job.cancel = cancel
	job.Status = JobStatusRunning
	job.Message = "Starting..."
	job.UpdatedAt = s.now()
	go s.executeJob(ctx, job, s.tasks[job.Type])
}

func (s *Service) executeJob(ctx context.Context, job *Job, task Task) {
	defer job.cancel()
	logger := job.logger
	logger.Info("Starting job", "name", job.Name, "type", job.Type)
	slog.Info("Job started", "id", job.ID, "type", job.Type)

	result, err := task.Execute(ctx, logger, func(progress int, message string) {
		logger.Info("Progress", "percentage", progress, "status", message)
		s.UpdateJobProgress(job.ID, progress, message)
	})

	s.mu.Lock()
	job.Result = maps.Clone(result)
	job.UpdatedAt = s.now()
	switch {
	case job.cancelled || errors.Is(err, context.Canceled):
		job.Status = JobStatusCancelled
		job.Message = "Job cancelled"
	case err != nil:
		job.Status = JobStatusFailed
		job.Message = "Job failed"
		job.Error = err.Error()
	default:
		job.Status = JobStatusCompleted
		job.Message = "Job completed successfully"
		job.Progress = 100
	}
	status := job.Status
	if job.logFile != nil {
		job.logFile.Close()
		job.logFile = nil
	}
	s.startNextPendingJob(job.Type)
	s.mu.Unlock()

	if err != nil {
		logger.Error("Job finished with error", "error", err)
		slog.Warn("Job finished with error", "id", job.ID, "type", job.Type, "status", status, "error", err)
		return
	}
	slog.Info("Job finished", "id", job.ID, "type", job.Type, "status", status)
}

func (s *Service) UpdateJobProgress(jobID string, progress int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, exists := s.jobs[jobID]
	if !exists || job.Status.Finished() {
		return
	}
	job.Progress = min(max(progress, 0), 100)
	job.Message = message
	job.UpdatedAt = s.now()
}

// CancelJob cancels a pending or running job. Cancelling a finished job is a no-op.
func (s *Service) CancelJob(jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, exists := s.jobs[jobID]
	if !exists {
		return ErrJobNotFound
	}
	if job.Status.Finished() {
		return nil
	}
	job.cancelled = true
	job.UpdatedAt = s.now()
	if job.Status == JobStatusPending {
		// Never launched, so nothing will report back
		job.Status = JobStatusCancelled
		job.Message = "Job cancelled"
		if job.logFile != nil {
			job.logFile.Close()
			job.logFile = nil
		}
		return nil
	}
	job.Message = "Cancelling..."
	job.cancel()
	return nil
}

// GetJob returns a snapshot of the job.
func (s *Service) GetJob(jobID string) (Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, exists := s.jobs[jobID]
	if !exists {
		return Job{}, false
	}
	return snapshot(job), true
}

// GetJobs returns snapshots of every tracked job, newest first.
func (s *Service) GetJobs() []Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	jobs := make([]Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, snapshot(job))
	}
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	return jobs
}

func snapshot(job *Job) Job {
	return Job{
		ID:        job.ID,
		Type:      job.Type,
		Name:      job.Name,
		Status:    job.Status,
		Progress:  job.Progress,
		Message:   job.Message,
		Error:     job.Error,
		CreatedAt: job.CreatedAt,
		UpdatedAt: job.UpdatedAt,
		Result:    maps.Clone(job.Result),
		LogPath:   job.LogPath,
	}
}

// JobLogs returns the log file content of a job, empty when job logging is off.
func (s *Service) JobLogs(jobID string) (string, error) {
	job, exists := s.GetJob(jobID)
	if !exists {
		return "", ErrJobNotFound
	}
	if job.LogPath == "" {
		return "", nil
	}
	content, err := os.ReadFile(job.LogPath)
	if err != nil {
		return "", fmt.Errorf("failed to read job log: %w", err)
	}
	return string(content), nil
}

func (s *Service) isJobTypeRunning(jobType string) bool {
	for _, job := range s.jobs {
		if job.Type == jobType && job.Status == JobStatusRunning {
			return true
		}
	}
	return false
}

// startNextPendingJob launches the oldest pending job of jobType. Callers hold s.mu.
func (s *Service) startNextPendingJob(jobType string) {
	var next *Job
	for _, job := range s.jobs {
		if job.Type == jobType && job.Status == JobStatusPending {
			if next == nil || job.CreatedAt.Before(next.CreatedAt) {
				next = job
			}
		}
	}
	if next != nil {
		s.launch(next)
	}
}

// CleanupOldJobs forgets finished jobs last updated more than maxAge ago and
// removes their log files.
func (s *Service) CleanupOldJobs(maxAge time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	removed := 0
	for id, job := range s.jobs {
		if job.Status.Finished() && now.Sub(job.UpdatedAt) > maxAge {
			if job.LogPath != "" {
				os.Remove(job.LogPath)
			}
			delete(s.jobs, id)
			removed++
		}
	}
	return removed
}

// ClearFinishedJobs forgets every finished job regardless of age.
func (s *Service) ClearFinishedJobs() int {
	return s.CleanupOldJobs(-1)
}

// Schedule starts a jobType job every interval until ctx is done. A tick that
// finds one already pending is skipped.
func (s *Service) Schedule(ctx context.Context, jobType string, interval time.Duration) {
	if interval <= 0 {
		slog.Warn("Job interval not set, schedule disabled", "type", jobType)
		return
	}
	slog.Info("Scheduling job", "type", jobType, "interval", interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Info("Job schedule stopped", "type", jobType)
			return
		case <-ticker.C:
			if s.hasPending(jobType) {
				slog.Debug("Skipping scheduled job, one is already waiting", "type", jobType)
				continue
			}
			if _, err := s.StartJob(jobType, "scheduled "+jobType); err != nil {
				slog.Error("Failed to start scheduled job", "type", jobType, "error", err)
			}
			if retention := s.config.Get().Jobs.Retention; retention > 0 {
				s.CleanupOldJobs(retention)
			}
		}
	}
}

func (s *Service) hasPending(jobType string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, job := range s.jobs {
		if job.Type == jobType && job.Status == JobStatusPending {
			return true
		}
	}
	return false
}
