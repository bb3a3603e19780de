// Package service runs statement imports: parse, filter payment rows,
// normalize, geocode, dedupe and persist, tracked by a pollable job record.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/2gPigeon/jig-intern-public/internal/domain/geocode"
	"github.com/2gPigeon/jig-intern-public/internal/domain/import/normalizer"
	"github.com/2gPigeon/jig-intern-public/internal/domain/import/parser"
	"github.com/2gPigeon/jig-intern-public/internal/domain/import/repository"
	"github.com/2gPigeon/jig-intern-public/pkg/apperr"
	"github.com/2gPigeon/jig-intern-public/pkg/metrics"
	"github.com/2gPigeon/jig-intern-public/pkg/ratelimit"
	"github.com/2gPigeon/jig-intern-public/pkg/storage"
)

const (
	defaultProgressEvery = 10
	defaultRowDelay      = time.Second
)

// Geocoder resolves a place name; nil means no candidate.
type Geocoder interface {
	Resolve(ctx context.Context, place string) *geocode.Result
}

// Enqueuer hands a task to the background workers.
type Enqueuer interface {
	Enqueue(ctx context.Context, task Task) error
}

// Options tunes the row loop.
type Options struct {
	// ProgressEvery is the number of processed payment rows between job snapshots.
	ProgressEvery int
	// RowDelay is the minimum spacing between payment rows.
	RowDelay time.Duration
	// Location is applied to dates without a zone.
	Location *time.Location
}

// DefaultOptions returns 10 rows per snapshot, one row per second, Asia/Tokyo.
func DefaultOptions() Options {
	return Options{
		ProgressEvery: defaultProgressEvery,
		RowDelay:      defaultRowDelay,
		Location:      normalizer.MustLoadLocation(normalizer.DefaultLocation),
	}
}

// ImportService orchestrates uploads and the import job loop.
type ImportService struct {
	repo     repository.ImportRepository
	geocoder Geocoder
	files    storage.Storage
	queue    Enqueuer
	metrics  *metrics.Metrics
	tracer   trace.Tracer
	opts     Options
	logger   *slog.Logger

	now   func() time.Time
	newID func() string
}

// NewImportService creates a new import service
func NewImportService(repo repository.ImportRepository, geocoder Geocoder, files storage.Storage, logger *slog.Logger, opts Options) *ImportService {
	if opts.ProgressEvery <= 0 {
		opts.ProgressEvery = defaultProgressEvery
	}
	if opts.RowDelay < 0 {
		opts.RowDelay = 0
	}
	if opts.Location == nil {
		opts.Location = normalizer.MustLoadLocation(normalizer.DefaultLocation)
	}
	return &ImportService{
		repo:     repo,
		geocoder: geocoder,
		files:    files,
		opts:     opts,
		logger:   logger,
		tracer:   otel.Tracer("import"),
		now:      time.Now,
		newID:    func() string { return uuid.New().String() },
	}
}

// WithQueue sets the queue used by Submit.
func (s *ImportService) WithQueue(q Enqueuer) *ImportService {
	s.queue = q
	return s
}

// WithMetrics adds Prometheus counters to the import loop.
func (s *ImportService) WithMetrics(m *metrics.Metrics) *ImportService {
	s.metrics = m
	return s
}

// Submit stores the upload, creates a processing job and queues it.
// The returned job is the initial snapshot; the import itself runs later.
func (s *ImportService) Submit(ctx context.Context, ownerID, filename, contentType string, r io.Reader) (*repository.ImportJob, error) {
	if s.queue == nil {
		return nil, errors.New("import queue is not configured")
	}

	info, err := s.files.Upload(ctx, ownerID, filename, contentType, r)
	if err != nil {
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}

	now := s.now().UTC()
	job := repository.ImportJob{
		JobID:     s.newID(),
		OwnerID:   ownerID,
		Status:    repository.JobStatusProcessing,
		Filename:  filename,
		FileID:    info.ID.String(),
		StartedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create import job: %w", err)
	}

	task := Task{JobID: job.JobID, OwnerID: ownerID, FileID: info.ID, Filename: filename}
	if err := s.queue.Enqueue(ctx, task); err != nil {
		// The job record exists already; close it so pollers don't wait forever.
		s.fail(ctx, &job, err)
		return nil, fmt.Errorf("failed to enqueue import job: %w", err)
	}

	s.logger.Info("import job queued",
		slog.String("job_id", job.JobID),
		slog.String("owner_id", ownerID),
		slog.String("filename", filename),
	)
	return &job, nil
}

// GetJob returns a job visible to ownerID. Jobs of other owners are reported as not found.
func (s *ImportService) GetJob(ctx context.Context, ownerID, jobID string) (*repository.ImportJob, error) {
	job, err := s.repo.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.OwnerID != ownerID {
		return nil, fmt.Errorf("job %s: %w", jobID, apperr.ErrNotFound)
	}
	return job, nil
}

// Process is the queue handler: load the stored upload and run the job.
func (s *ImportService) Process(ctx context.Context, task Task) error {
	job, err := s.repo.GetJob(ctx, task.JobID)
	if err != nil {
		return fmt.Errorf("failed to load job: %w", err)
	}
	if job.Status.Terminal() {
		s.logger.Warn("skipping finished import job", slog.String("job_id", task.JobID))
		return nil
	}

	data, err := storage.ReadAll(ctx, s.files, task.OwnerID, task.FileID)
	if err != nil {
		s.fail(ctx, job, err)
		return fmt.Errorf("failed to load upload: %w", err)
	}

	_, err = s.Run(ctx, *job, task.Filename, data)
	return err
}

// Import runs a statement synchronously under a new job, for the CLI.
func (s *ImportService) Import(ctx context.Context, ownerID, filename string, data []byte) (*repository.ImportJob, error) {
	now := s.now().UTC()
	job := repository.ImportJob{
		JobID:     s.newID(),
		OwnerID:   ownerID,
		Status:    repository.JobStatusProcessing,
		Filename:  filename,
		StartedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create import job: %w", err)
	}
	return s.Run(ctx, job, filename, data)
}

// Run executes the import loop for job over data and returns the final job.
// Failures are recorded on the job; rows committed before a failure stay.
func (s *ImportService) Run(ctx context.Context, job repository.ImportJob, filename string, data []byte) (result *repository.ImportJob, err error) {
	ctx, span := s.tracer.Start(ctx, "import.RunJob", trace.WithAttributes(
		attribute.String("import.job_id", job.JobID),
		attribute.String("import.filename", filename),
	))
	defer span.End()

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("import panicked: %v", rec)
			s.logger.Error("import job panicked",
				slog.String("job_id", job.JobID),
				slog.Any("panic", rec),
			)
			result = s.fail(ctx, &job, err)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	rows, err := parser.Parse(filename, data)
	if err != nil {
		return s.fail(ctx, &job, err), err
	}

	gate := ratelimit.NewGate(s.opts.RowDelay)
	processed := 0

	for _, row := range rows {
		if !row.IsPayment() {
			continue
		}

		ts, okDate := normalizer.ParseDate(row.Date, s.opts.Location)
		amount, okAmount := normalizer.NormalizeAmount(row.Amount)
		place := normalizer.CleanPlace(row.Counterparty)
		if !okDate || !okAmount || place == "" {
			s.metrics.ImportRow(metrics.OutcomeRejected)
			s.logger.Debug("skipping invalid payment row",
				slog.String("job_id", job.JobID),
				slog.Int("line", row.Line),
			)
			continue
		}

		if err := gate.Wait(ctx); err != nil {
			return s.fail(ctx, &job, err), err
		}

		if err := s.importRow(ctx, &job, ts, amount.InexactFloat64(), place); err != nil {
			err = fmt.Errorf("line %d: %w", row.Line, err)
			return s.fail(ctx, &job, err), err
		}

		processed++
		if processed%s.opts.ProgressEvery == 0 {
			s.snapshot(ctx, &job)
		}
	}

	finished := s.now().UTC()
	job.Status = repository.JobStatusDone
	job.UpdatedAt = finished
	job.FinishedAt = &finished
	if err := s.repo.UpdateJob(ctx, job); err != nil {
		err = fmt.Errorf("failed to finish import job: %w", err)
		return s.fail(ctx, &job, err), err
	}
	s.metrics.ImportJob(string(repository.JobStatusDone))

	span.SetAttributes(
		attribute.Int("import.imported", job.ImportedCount),
		attribute.Int("import.skipped", job.SkippedCount),
		attribute.Int("import.unresolved", job.UnresolvedCount),
	)
	s.logger.Info("import job completed",
		slog.String("job_id", job.JobID),
		slog.Int("imported", job.ImportedCount),
		slog.Int("skipped", job.SkippedCount),
		slog.Int("unresolved", job.UnresolvedCount),
	)
	return &job, nil
}

// importRow resolves one payment and writes a pin or an unresolved item.
func (s *ImportService) importRow(ctx context.Context, job *repository.ImportJob, ts time.Time, amount float64, place string) error {
	parts := normalizer.TimestampParts(ts)

	res := s.geocoder.Resolve(ctx, place)
	if res == nil {
		item := repository.UnresolvedItem{
			ID:             s.newID(),
			OwnerID:        job.OwnerID,
			Place:          place,
			Amount:         amount,
			Timestamp:      ts.Format(time.RFC3339),
			TimestampParts: parts,
			JobID:          job.JobID,
			CreatedAt:      s.now().UTC(),
		}
		if err := s.repo.PutUnresolved(ctx, item); err != nil {
			return fmt.Errorf("failed to store unresolved item: %w", err)
		}
		job.UnresolvedCount++
		s.metrics.ImportRow(metrics.OutcomeUnresolved)
		return nil
	}

	exists, err := s.repo.PinExists(ctx, job.OwnerID, parts)
	if err != nil {
		return err
	}
	if exists {
		job.SkippedCount++
		s.metrics.ImportRow(metrics.OutcomeSkipped)
		return nil
	}

	pin := repository.PinRecord{
		OwnerID:    job.OwnerID,
		TimeBucket: parts.YearMonth,
		Day:        parts.Day,
		Time:       parts.Time,
		Data:       amount,
		Latitude:   res.Latitude,
		Longitude:  res.Longitude,
	}
	if err := s.repo.PutPin(ctx, pin); err != nil {
		return fmt.Errorf("failed to store pin: %w", err)
	}
	job.ImportedCount++
	s.metrics.ImportRow(metrics.OutcomeImported)
	return nil
}

// snapshot persists progress; a failed snapshot is logged and the loop goes on.
func (s *ImportService) snapshot(ctx context.Context, job *repository.ImportJob) {
	job.UpdatedAt = s.now().UTC()
	if err := s.repo.UpdateJob(ctx, *job); err != nil {
		s.logger.Warn("failed to update import job progress",
			slog.String("job_id", job.JobID),
			slog.Any("error", err),
		)
	}
}

// fail moves job to error with err as the reason.
func (s *ImportService) fail(ctx context.Context, job *repository.ImportJob, err error) *repository.ImportJob {
	finished := s.now().UTC()
	job.Status = repository.JobStatusError
	job.Error = failureReason(err)
	job.UpdatedAt = finished
	job.FinishedAt = &finished

	// Recorded even when ctx was cancelled mid-run.
	if uerr := s.repo.UpdateJob(context.WithoutCancel(ctx), *job); uerr != nil {
		s.logger.Error("failed to record import job failure",
			slog.String("job_id", job.JobID),
			slog.Any("error", uerr),
		)
	}
	s.metrics.ImportJob(string(repository.JobStatusError))
	s.logger.Warn("import job failed",
		slog.String("job_id", job.JobID),
		slog.String("reason", job.Error),
	)
	return job
}

func failureReason(err error) string {
	if errors.Is(err, parser.ErrHeaderNotFound) {
		return parser.ErrHeaderNotFound.Error()
	}
	return err.Error()
}
