// Package cron provides scheduled background jobs using robfig/cron.
package cron

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/2gPigeon/jig-intern-public/internal/domain/import/repository"
	"github.com/2gPigeon/jig-intern-public/pkg/metrics"
	"github.com/2gPigeon/jig-intern-public/pkg/storage"
)

const (
	uploadPurgeSpec      = "@every 1h"
	staleSweepSpec       = "@every 10m"
	interruptedReason    = "interrupted"
	defaultStaleAfter    = time.Hour
	staleSweepRunTimeout = 5 * time.Minute
)

// JobStore is the job persistence the sweep reads and updates.
type JobStore interface {
	ListJobsByStatus(ctx context.Context, status repository.JobStatus) ([]repository.ImportJob, error)
	UpdateJob(ctx context.Context, job repository.ImportJob) error
}

// InFlightChecker reports whether this process is currently running a job.
type InFlightChecker interface {
	InFlight(jobID string) bool
}

// FileRemover deletes stored uploads.
type FileRemover interface {
	Delete(ctx context.Context, ownerID string, fileID uuid.UUID) error
}

// Scheduler manages background scheduled jobs using robfig/cron.
type Scheduler struct {
	cron       *cron.Cron
	jobs       JobStore
	queue      InFlightChecker
	staleAfter time.Duration
	files      FileRemover
	retention  time.Duration
	metrics    *metrics.Metrics
	logger     *slog.Logger
	now        func() time.Time
}

// NewScheduler creates a new job scheduler.
func NewScheduler(jobs JobStore, queue InFlightChecker, staleAfter time.Duration, logger *slog.Logger) *Scheduler {
	c := cron.New(cron.WithLogger(cron.VerbosePrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))))
	if staleAfter <= 0 {
		staleAfter = defaultStaleAfter
	}

	return &Scheduler{
		cron:       c,
		jobs:       jobs,
		queue:      queue,
		staleAfter: staleAfter,
		logger:     logger,
		now:        time.Now,
	}
}

// WithMetrics counts interrupted jobs.
func (s *Scheduler) WithMetrics(m *metrics.Metrics) *Scheduler {
	s.metrics = m
	return s
}

// WithUploadRetention removes the stored statement of a finished job once
// retention has passed since it finished. A zero retention keeps them.
func (s *Scheduler) WithUploadRetention(files FileRemover, retention time.Duration) *Scheduler {
	s.files = files
	s.retention = retention
	return s
}

// Start begins scheduled jobs.
func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc(staleSweepSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), staleSweepRunTimeout)
		defer cancel()
		s.SweepStaleJobs(ctx)
	})
	if err != nil {
		return err
	}

	if s.files != nil && s.retention > 0 {
		_, err = s.cron.AddFunc(uploadPurgeSpec, func() {
			ctx, cancel := context.WithTimeout(context.Background(), staleSweepRunTimeout)
			defer cancel()
			s.PurgeUploads(ctx)
		})
		if err != nil {
			return err
		}
	}

	s.cron.Start()
	s.logger.Info("cron scheduler started",
		slog.Int("jobs", len(s.cron.Entries())),
	)
	return nil
}

// Stop gracefully stops all scheduled jobs.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("cron scheduler stopping")
	return s.cron.Stop()
}

// SweepStaleJobs moves jobs stuck in processing to error. A job is stuck when
// no worker of this process runs it and it has not reported progress for
// staleAfter. It returns the number of jobs closed.
func (s *Scheduler) SweepStaleJobs(ctx context.Context) int {
	jobs, err := s.jobs.ListJobsByStatus(ctx, repository.JobStatusProcessing)
	if err != nil {
		s.logger.Error("failed to list processing jobs", slog.Any("error", err))
		return 0
	}

	now := s.now().UTC()
	closed := 0
	for _, job := range jobs {
		if s.queue != nil && s.queue.InFlight(job.JobID) {
			continue
		}
		if now.Sub(job.UpdatedAt) < s.staleAfter {
			continue
		}

		job.Status = repository.JobStatusError
		job.Error = interruptedReason
		job.UpdatedAt = now
		job.FinishedAt = &now
		if err := s.jobs.UpdateJob(ctx, job); err != nil {
			s.logger.Warn("failed to close stale import job",
				slog.String("job_id", job.JobID),
				slog.Any("error", err),
			)
			continue
		}
		s.metrics.ImportJob(string(repository.JobStatusError))
		closed++
	}

	if closed > 0 {
		s.logger.Info("stale import jobs closed", slog.Int("jobs", closed))
	}
	return closed
}

// PurgeUploads deletes the stored statements of done and error jobs that
// finished more than retention ago, and clears their FileID. It returns the
// number of uploads removed.
func (s *Scheduler) PurgeUploads(ctx context.Context) int {
	if s.files == nil || s.retention <= 0 {
		return 0
	}

	cutoff := s.now().UTC().Add(-s.retention)
	purged := 0
	for _, status := range []repository.JobStatus{repository.JobStatusDone, repository.JobStatusError} {
		jobs, err := s.jobs.ListJobsByStatus(ctx, status)
		if err != nil {
			s.logger.Error("failed to list finished jobs",
				slog.String("status", string(status)),
				slog.Any("error", err),
			)
			continue
		}

		for _, job := range jobs {
			if job.FileID == "" || job.FinishedAt == nil || job.FinishedAt.After(cutoff) {
				continue
			}
			if s.purge(ctx, job) {
				purged++
			}
		}
	}

	if purged > 0 {
		s.logger.Info("retained uploads removed", slog.Int("files", purged))
	}
	return purged
}

func (s *Scheduler) purge(ctx context.Context, job repository.ImportJob) bool {
	// An unparseable reference cannot name a stored file; it is only cleared.
	if fileID, err := uuid.Parse(job.FileID); err == nil {
		err = s.files.Delete(ctx, job.OwnerID, fileID)
		if err != nil && !errors.Is(err, storage.ErrFileNotFound) {
			s.logger.Warn("failed to remove retained upload",
				slog.String("job_id", job.JobID),
				slog.String("file_id", job.FileID),
				slog.Any("error", err),
			)
			return false
		}
	}

	job.FileID = ""
	if err := s.jobs.UpdateJob(ctx, job); err != nil {
		s.logger.Warn("failed to clear job file reference",
			slog.String("job_id", job.JobID),
			slog.Any("error", err),
		)
		return false
	}
	return true
}
