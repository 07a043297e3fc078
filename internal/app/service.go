// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/okian/fetalhealth/internal/adapters/artifact"
	jobqueue "github.com/okian/fetalhealth/internal/adapters/mq/queue"
	workerpool "github.com/okian/fetalhealth/internal/adapters/mq/worker"
	"github.com/okian/fetalhealth/internal/adapters/repository"
	"github.com/okian/fetalhealth/internal/domain/dedupe"
	"github.com/okian/fetalhealth/internal/domain/model"
	"github.com/okian/fetalhealth/internal/domain/population"
	"github.com/okian/fetalhealth/internal/domain/training"
	"github.com/okian/fetalhealth/internal/domain/types"
	"github.com/okian/fetalhealth/pkg/logger"
	"github.com/okian/fetalhealth/pkg/metrics"
)

// Service implements the API dependencies for the fetal health classifier.
type Service struct {
	mu sync.RWMutex

	// Core components
	store      repository.Store
	models     *artifact.Store
	sessions   *cache.Cache
	deduper    dedupe.Deduper
	jobQueue   jobqueue.Queue
	jobs       *jobTracker
	workerPool *workerpool.Pool
	pipeline   *training.Pipeline

	// Configuration
	dbDriver     string
	dbPath       string
	modelPath    string
	workerCount  int
	queueSize    int
	sessionTTL   time.Duration
	maxJobs      int
	bcryptCost   int
	trainingOpts []training.Option

	// State
	started   bool
	startedAt time.Time
	cancel    context.CancelFunc

	logger logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		dbDriver:    repository.DriverFile,
		dbPath:      "fetal_health.ql",
		modelPath:   "model.fhs",
		workerCount: 1,
		queueSize:   8,
		sessionTTL:  8 * time.Hour,
		maxJobs:     defaultMaxJobs,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start opens the datastore, loads the saved model and starts the training workers.
// A missing model artifact is not an error; a corrupt one is logged and the
// service starts without a model.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}
	s.logger.Info(ctx, "starting fetal health service...")

	storeOpts := []repository.Option{
		repository.WithDriver(s.dbDriver),
		repository.WithPath(s.dbPath),
		repository.WithLogger(s.logger.Named("repository")),
	}
	if s.bcryptCost > 0 {
		storeOpts = append(storeOpts, repository.WithBcryptCost(s.bcryptCost))
	}
	store, err := repository.Open(ctx, storeOpts...)
	if err != nil {
		return fmt.Errorf("open datastore: %w", err)
	}

	models, err := artifact.New(s.modelPath, artifact.WithLogger(s.logger.Named("artifact")))
	if err != nil {
		_ = store.Close()
		return err
	}
	if err := models.Load(ctx); err != nil {
		s.logger.Error(ctx, "starting without a model", logger.Error(err))
	}

	s.store = store
	s.models = models
	s.sessions = cache.New(s.sessionTTL, s.sessionTTL/2)
	s.sessions.OnEvicted(func(string, interface{}) {
		metrics.UpdateActiveSessions(s.sessions.ItemCount())
	})
	s.deduper = dedupe.NewInMemoryDeduper()
	s.jobQueue = jobqueue.NewInMemoryQueue(jobqueue.WithCapacity(s.queueSize))
	s.jobs = newJobTracker(s.maxJobs, s.logger.Named("jobs"))
	trainOpts := append([]training.Option{}, s.trainingOpts...)
	s.pipeline = training.NewPipeline(append(trainOpts, training.WithLogger(s.logger.Named("training")))...)

	// Workers outlive the Start context; Stop cancels them.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.workerPool = workerpool.NewPool(s.workerCount, s.jobQueue, s.pipeline, s.jobs,
		workerpool.WithPoolLogger(s.logger.Named("worker-pool")))
	s.workerPool.Start(runCtx)

	s.started = true
	s.startedAt = time.Now()
	s.logger.Info(ctx, "fetal health service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.String("database", s.dbPath),
		logger.String("model", s.modelPath),
		logger.Bool("modelLoaded", s.modelLoaded()),
	)
	return nil
}

// Stop cancels running training jobs and closes the datastore.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx := context.Background()
	s.logger.Info(ctx, "stopping fetal health service...")

	if err := s.workerPool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "worker pool shutdown incomplete", logger.Error(err))
	}
	s.cancel()
	if err := s.store.Close(); err != nil {
		s.logger.Warn(ctx, "datastore close failed", logger.Error(err))
	}
	s.sessions.Flush()
	metrics.UpdateActiveSessions(0)

	s.started = false
	s.logger.Info(ctx, "fetal health service stopped")
}

func (s *Service) ready() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return ErrNotStarted
	}
	return nil
}

// Login authenticates user and opens a session holding a snapshot of the dataset.
func (s *Service) Login(ctx context.Context, user, password string) (*Session, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if err := s.store.Authenticate(ctx, user, password); err != nil {
		metrics.RecordLogin("rejected")
		s.logger.Warn(ctx, "login rejected", logger.String("user", user))
		return nil, err
	}
	table, err := s.store.LoadTable(ctx)
	if err != nil {
		metrics.RecordLogin("error")
		return nil, fmt.Errorf("load dataset: %w", err)
	}

	sess := newSession(uuid.NewString(), user, table, time.Now())
	s.sessions.Set(sess.ID, sess, cache.DefaultExpiration)
	metrics.RecordLogin("ok")
	metrics.UpdateActiveSessions(s.sessions.ItemCount())
	metrics.UpdateDatasetRows(table.Len())
	s.logger.Info(ctx, "user logged in", logger.String("user", user), logger.Int("rows", table.Len()))
	return sess, nil
}

// Logout destroys the session.
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	sess, err := s.Session(ctx, sessionID)
	if err != nil {
		return err
	}
	s.sessions.Delete(sessionID)
	metrics.UpdateActiveSessions(s.sessions.ItemCount())
	s.logger.Info(ctx, "user logged out", logger.String("user", sess.User))
	return nil
}

// Session returns a live session and extends its lifetime.
func (s *Service) Session(ctx context.Context, sessionID string) (*Session, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	v, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, ErrSessionNotFound
	}
	sess := v.(*Session)
	s.sessions.Set(sessionID, sess, cache.DefaultExpiration)
	return sess, nil
}

// Predict classifies obs with the current model and remembers it as the
// session's current patient.
func (s *Service) Predict(ctx context.Context, sessionID string, obs model.Observation) (types.Prediction, error) { //nolint:gocritic // hugeParam: Observation is a value type
	sess, err := s.Session(ctx, sessionID)
	if err != nil {
		return types.Prediction{}, err
	}
	if err := obs.Validate(); err != nil {
		metrics.RecordPredictionError()
		return types.Prediction{}, err
	}
	current, err := s.models.Current()
	if err != nil {
		metrics.RecordPredictionError()
		return types.Prediction{}, err
	}

	start := time.Now()
	code, err := current.Model.PredictOne(obs.Vector())
	if err != nil {
		metrics.RecordPredictionError()
		return types.Prediction{}, fmt.Errorf("predict: %w", err)
	}
	label := model.Label(code)

	obs.Label = 0
	sess.setCurrentPatient(obs)
	metrics.RecordPrediction(label.String(), float64(time.Since(start).Microseconds())/1000)
	s.logger.Info(ctx, "observation classified", logger.String("user", sess.User), logger.String("label", label.String()))
	return types.NewPrediction(label), nil
}

// InsertObservation stores a confirmed case. A nil obs stores the session's
// current patient. A non-empty idempotency key that was already applied returns
// ErrDuplicateRequest without storing anything.
func (s *Service) InsertObservation(ctx context.Context, sessionID string, obs *model.Observation, label model.Label, idempotencyKey string) error {
	sess, err := s.Session(ctx, sessionID)
	if err != nil {
		return err
	}
	var o model.Observation
	if obs != nil {
		o = *obs
	} else {
		cur, ok := sess.CurrentPatient()
		if !ok {
			return ErrNoCurrentPatient
		}
		o = cur
	}
	if label != 0 {
		o.Label = label
	}

	if idempotencyKey != "" && s.deduper.SeenAndRecord(ctx, idempotencyKey) {
		s.logger.Debug(ctx, "duplicate insert skipped", logger.String("key", idempotencyKey))
		return ErrDuplicateRequest
	}
	if err := s.store.Insert(ctx, o); err != nil {
		if idempotencyKey != "" {
			s.deduper.Unrecord(ctx, idempotencyKey)
		}
		return err
	}
	s.logger.Info(ctx, "observation stored", logger.String("user", sess.User), logger.String("label", o.Label.String()))
	return nil
}

// ReloadDataset refreshes the session snapshot from the datastore and returns its size.
func (s *Service) ReloadDataset(ctx context.Context, sessionID string) (int, error) {
	sess, err := s.Session(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	table, err := s.store.LoadTable(ctx)
	if err != nil {
		return 0, fmt.Errorf("load dataset: %w", err)
	}
	sess.setDataset(table)
	metrics.UpdateDatasetRows(table.Len())
	return table.Len(), nil
}

// Population summarizes the session snapshot. Rows with an unknown label are skipped.
func (s *Service) Population(ctx context.Context, sessionID string, opts ...population.Option) (population.Summary, error) {
	sess, err := s.Session(ctx, sessionID)
	if err != nil {
		return population.Summary{}, err
	}
	table := sess.Dataset()
	obs := make([]model.Observation, 0, table.Len())
	skipped := 0
	for _, row := range table.Rows {
		o, err := model.ObservationFromRow(row)
		if err != nil {
			skipped++
			continue
		}
		obs = append(obs, o)
	}
	if skipped > 0 {
		s.logger.Warn(ctx, "rows skipped in population summary", logger.Int("skipped", skipped))
	}
	return population.Summarize(obs, opts...), nil
}

// SubmitTraining queues a training run on the session snapshot.
func (s *Service) SubmitTraining(ctx context.Context, sessionID string) (types.JobView, error) {
	sess, err := s.Session(ctx, sessionID)
	if err != nil {
		return types.JobView{}, err
	}
	job := jobqueue.Job{
		ID:          uuid.NewString(),
		User:        sess.User,
		Table:       sess.Dataset(),
		SubmittedAt: time.Now(),
	}
	view := s.jobs.add(job)
	if err := s.jobQueue.Enqueue(ctx, job); err != nil {
		s.jobs.remove(job.ID)
		if errors.Is(err, jobqueue.ErrFull) {
			return types.JobView{}, ErrQueueFull
		}
		return types.JobView{}, fmt.Errorf("enqueue training job: %w", err)
	}
	s.logger.Info(ctx, "training job queued",
		logger.String("job_id", job.ID), logger.String("user", sess.User), logger.Int("rows", job.Table.Len()))
	return view, nil
}

// Job returns the state of a training job.
func (s *Service) Job(ctx context.Context, id string) (types.JobView, error) {
	if err := s.ready(); err != nil {
		return types.JobView{}, err
	}
	v, ok := s.jobs.get(id)
	if !ok {
		return types.JobView{}, ErrJobNotFound
	}
	return v, nil
}

// SaveModel persists the winner of a succeeded job and makes it current.
func (s *Service) SaveModel(ctx context.Context, jobID string) (artifact.Info, error) {
	v, err := s.Job(ctx, jobID)
	if err != nil {
		return artifact.Info{}, err
	}
	if v.State != types.JobSucceeded || v.Outcome == nil {
		return artifact.Info{}, fmt.Errorf("%w: job %s is %s", ErrJobNotSucceeded, jobID, v.State)
	}
	out := v.Outcome
	trainedAt := v.SubmittedAt
	if v.FinishedAt != nil {
		trainedAt = *v.FinishedAt
	}
	err = s.models.Save(ctx, artifact.Artifact{
		Model:     out.Model,
		Kind:      string(out.Kind),
		MacroF1:   out.Report.MacroF1(),
		TrainRows: out.TrainRows,
		TrainedAt: trainedAt,
	})
	if err != nil {
		return artifact.Info{}, err
	}
	s.jobs.markSaved(jobID)
	return s.models.Info()
}

// ModelInfo describes the model in use.
func (s *Service) ModelInfo(ctx context.Context) (artifact.Info, error) {
	if err := s.ready(); err != nil {
		return artifact.Info{}, err
	}
	return s.models.Info()
}

func (s *Service) modelLoaded() bool {
	_, err := s.models.Current()
	return err == nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) types.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started {
		return types.Stats{}
	}
	rows, err := s.store.Count(ctx)
	if err != nil {
		s.logger.Warn(ctx, "row count unavailable", logger.Error(err))
	}
	jobs, byState := s.jobs.counts()
	stats := types.Stats{
		ActiveSessions: s.sessions.ItemCount(),
		DatasetRows:    rows,
		QueueLength:    s.jobQueue.Len(ctx),
		Jobs:           jobs,
		JobsByState:    byState,
		ModelLoaded:    s.modelLoaded(),
		Uptime:         time.Since(s.startedAt).Round(time.Second).String(),
		StartedAt:      s.startedAt,
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	metrics.UpdateSystemMemoryUsage(mem.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
	metrics.UpdateActiveSessions(stats.ActiveSessions)
	return stats
}

// CreateUser adds a clinic user or resets its password.
func (s *Service) CreateUser(ctx context.Context, user, password string) error {
	if err := s.ready(); err != nil {
		return err
	}
	return s.store.CreateUser(ctx, user, password)
}
