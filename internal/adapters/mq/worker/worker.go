// Package worker runs queued training jobs in the background.
package worker

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/fetalhealth/internal/adapters/mq/queue"
	"github.com/okian/fetalhealth/internal/domain/model"
	"github.com/okian/fetalhealth/internal/domain/training"
	"github.com/okian/fetalhealth/pkg/logger"
	"github.com/okian/fetalhealth/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerCount    = 1
	metricsUpdateInterval = 5 * time.Second
	poolShutdownTimeout   = 30 * time.Second
)

// Trainer runs one training pass over a dataset. *training.Pipeline satisfies it.
type Trainer interface {
	Run(ctx context.Context, table model.Table, extra ...training.Option) (*training.Outcome, error)
}

// Tracker records job lifecycle transitions.
type Tracker interface {
	Started(ctx context.Context, id string)
	Progressed(id string, done, total int)
	Finished(ctx context.Context, id string, out *training.Outcome, err error)
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Job
}

// Worker processes training jobs.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown stops the worker after the job in progress, if any.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker for jobs read from a Queue.
type InMemoryWorker struct {
	queue   Queue
	trainer Trainer
	tracker Tracker
	name    string
	busy    *atomic.Int32

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, trainer Trainer, tracker Tracker, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		trainer:  trainer,
		tracker:  tracker,
		name:     "worker",
		busy:     &atomic.Int32{},
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Get().Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case j, ok := <-jobs:
			if !ok {
				return
			}
			if err := w.processJob(ctx, j); err != nil {
				w.logger.Error(ctx, "training job failed", logger.String("job_id", j.ID), logger.Error(err))
			}
		}
	}
}

// Shutdown stops the worker loop and waits for it to exit.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// processJob trains on the job's snapshot and reports the result to the tracker.
func (w *InMemoryWorker) processJob(ctx context.Context, j queue.Job) error { //nolint:gocritic // hugeParam: Job is passed by value for channel semantics
	start := time.Now()
	w.busy.Add(1)
	defer func() {
		w.busy.Add(-1)
		metrics.RecordWorkerProcessingLatency(time.Since(start).Seconds())
	}()

	w.tracker.Started(ctx, j.ID)
	w.logger.Info(ctx, "training job started",
		logger.String("job_id", j.ID), logger.String("user", j.User), logger.Int("rows", j.Table.Len()))

	progress := training.WithProgress(func(done, total int) { w.tracker.Progressed(j.ID, done, total) })
	out, err := w.trainer.Run(ctx, j.Table, progress)
	w.tracker.Finished(ctx, j.ID, out, err)
	if err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", errorType(err))
		return fmt.Errorf("job %s: %w", j.ID, err)
	}

	w.logger.Info(ctx, "training job finished",
		logger.String("job_id", j.ID),
		logger.String("kind", string(out.Kind)),
		logger.Float64("macro_f1", out.Report.MacroF1()),
		logger.Duration("took", time.Since(start)))
	return nil
}

func errorType(err error) string {
	switch {
	case errors.Is(err, training.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, training.ErrTrainingFailure):
		return "training_failure"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "unknown"
	}
}

// Pool manages multiple workers sharing one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	busy    *atomic.Int32

	started  atomic.Bool
	cancel   context.CancelFunc
	shutdown chan struct{}
	once     sync.Once

	logger logger.Logger
}

// NewPool creates a new worker pool. A non-positive count means one worker.
func NewPool(workerCount int, q Queue, trainer Trainer, tracker Tracker, opts ...PoolOption) *Pool {
	if workerCount < 1 {
		workerCount = defaultWorkerCount
	}

	pool := &Pool{
		workers:  make([]*InMemoryWorker, workerCount),
		queue:    q,
		busy:     &atomic.Int32{},
		shutdown: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(pool)
	}
	if pool.logger == nil {
		pool.logger = logger.Get().Named("worker-pool")
	}

	for i := 0; i < workerCount; i++ {
		name := "worker-" + strconv.Itoa(i)
		w := NewInMemoryWorker(q, trainer, tracker, WithName(name), WithLogger(pool.logger.Named(name)))
		w.busy = pool.busy
		pool.workers[i] = w
	}

	metrics.UpdateWorkerCount(workerCount)
	metrics.UpdateWorkerActiveCount(0)
	return pool
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Busy returns the number of workers currently training.
func (p *Pool) Busy() int { return int(p.busy.Load()) }

// Start starts all workers. Running jobs are cancelled when ctx ends or on Shutdown.
func (p *Pool) Start(ctx context.Context) {
	if !p.started.CompareAndSwap(false, true) {
		return
	}
	ctx, p.cancel = context.WithCancel(ctx)
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	go p.startMetricsUpdater(ctx)
}

// startMetricsUpdater starts a background goroutine that updates worker metrics.
func (p *Pool) startMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(metricsUpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.shutdown:
			return
		case <-ticker.C:
			metrics.UpdateWorkerActiveCount(p.Busy())
		}
	}
}

// Shutdown closes the queue, cancels running jobs and waits for every worker to exit.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}
	p.once.Do(func() { close(p.shutdown) })
	if !p.started.Load() {
		return nil
	}
	p.cancel()

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var firstErr error
	for i, w := range p.workers {
		if err := w.Shutdown(shutdownCtx); err != nil {
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	metrics.UpdateWorkerActiveCount(0)
	return firstErr
}
