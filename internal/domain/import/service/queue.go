package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// ErrQueueClosed is returned by Enqueue after Shutdown.
var ErrQueueClosed = errors.New("import queue is closed")

// Task describes one queued import.
type Task struct {
	JobID    string
	OwnerID  string
	FileID   uuid.UUID
	Filename string
}

// Handler runs a task. Its error is logged by the queue.
type Handler func(ctx context.Context, task Task) error

// Queue runs import tasks on a fixed pool of workers, detached from the
// request that enqueued them.
type Queue struct {
	handle  Handler
	logger  *slog.Logger
	workers int

	ch   chan Task
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.RWMutex
	closed bool

	flightMu sync.Mutex
	inFlight map[string]struct{}

	baseCtx context.Context
	cancel  context.CancelFunc
}

type QueueOption func(*Queue)

func WithWorkers(n int) QueueOption {
	return func(q *Queue) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithQueueSize(n int) QueueOption {
	return func(q *Queue) {
		if n > 0 {
			q.ch = make(chan Task, n)
		}
	}
}

// NewQueue starts the workers.
func NewQueue(handle Handler, logger *slog.Logger, opts ...QueueOption) *Queue {
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		handle:   handle,
		logger:   logger,
		workers:  2,
		ch:       make(chan Task, 64),
		inFlight: make(map[string]struct{}),
		baseCtx:  ctx,
		cancel:   cancel,
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *Queue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go q.work(i + 1)
		}
	})
}

func (q *Queue) work(workerID int) {
	defer q.wg.Done()
	q.logger.Debug("import worker started", slog.Int("worker_id", workerID))

	for task := range q.ch {
		q.run(workerID, task)
	}

	q.logger.Debug("import worker stopped", slog.Int("worker_id", workerID))
}

func (q *Queue) run(workerID int, task Task) {
	defer q.untrack(task.JobID)

	if err := q.handle(q.baseCtx, task); err != nil {
		q.logger.Error("import task failed",
			slog.Int("worker_id", workerID),
			slog.String("job_id", task.JobID),
			slog.Any("error", err),
		)
		return
	}
	q.logger.Info("import task finished",
		slog.Int("worker_id", workerID),
		slog.String("job_id", task.JobID),
	)
}

// Enqueue queues task. It blocks while the buffer is full, until ctx is done.
func (q *Queue) Enqueue(ctx context.Context, task Task) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}

	// Tracked before the send so a sweep never sees a queued job as abandoned.
	q.track(task.JobID)

	select {
	case q.ch <- task:
		return nil
	case <-ctx.Done():
		q.untrack(task.JobID)
		return ctx.Err()
	}
}

// InFlight reports whether jobID is queued or running in this process.
func (q *Queue) InFlight(jobID string) bool {
	q.flightMu.Lock()
	defer q.flightMu.Unlock()
	_, ok := q.inFlight[jobID]
	return ok
}

func (q *Queue) track(jobID string) {
	q.flightMu.Lock()
	q.inFlight[jobID] = struct{}{}
	q.flightMu.Unlock()
}

func (q *Queue) untrack(jobID string) {
	q.flightMu.Lock()
	delete(q.inFlight, jobID)
	q.flightMu.Unlock()
}

// Shutdown stops accepting tasks and waits for queued and running ones.
// When ctx expires first, running tasks see their context cancelled.
func (q *Queue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("import queue shutdown interrupted by context")
		q.cancel()
	case <-done:
		q.logger.Info("import queue drained")
		q.cancel()
	}
}
