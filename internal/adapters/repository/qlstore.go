package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/ql/driver" // registers the ql and ql-mem database/sql drivers

	"github.com/okian/fetalhealth/internal/domain/model"
	"github.com/okian/fetalhealth/pkg/logger"
	"github.com/okian/fetalhealth/pkg/metrics"
)

const (
	defaultPath                  = "fetal_health.ql"
	defaultMetricsUpdateInterval = 5 * time.Second
)

// QLStore is a Store on top of an embedded ql database.
// Writes run one at a time; ql allows a single writer.
type QLStore struct {
	db     *sql.DB
	logger logger.Logger

	driver                string
	path                  string
	bcryptCost            int
	metricsUpdateInterval time.Duration

	closed   atomic.Bool
	wg       sync.WaitGroup
	stopChan chan struct{}
}

var _ Store = (*QLStore)(nil)

// Open opens or creates the database and its tables, then starts the
// background metrics updater. Call Close to stop it.
func Open(ctx context.Context, opts ...Option) (*QLStore, error) {
	s := &QLStore{
		driver:                DriverFile,
		path:                  defaultPath,
		bcryptCost:            defaultBcryptCost,
		metricsUpdateInterval: defaultMetricsUpdateInterval,
		stopChan:              make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("repository")
	}

	db, err := sql.Open(s.driver, s.path)
	if err != nil {
		return nil, fmt.Errorf("open %s database %q: %w", s.driver, s.path, err)
	}
	db.SetMaxOpenConns(1)
	s.db = db

	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	n, err := s.Count(ctx)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	metrics.UpdateDatasetRows(n)
	s.logger.Info(ctx, "datastore opened",
		logger.String("driver", s.driver), logger.String("path", s.path), logger.Int("rows", n))

	s.startMetricsUpdater(ctx)
	return s, nil
}

func (s *QLStore) migrate(ctx context.Context) error {
	return s.inTx(ctx, "migrate", func(tx *sql.Tx) error {
		for _, stmt := range []string{sqlCreateObservations, sqlCreateUsers, sqlCreateUsersIndex} {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("create schema: %w", err)
			}
		}
		return nil
	})
}

// LoadTable implements DatasetProvider.LoadTable.
func (s *QLStore) LoadTable(ctx context.Context) (model.Table, error) {
	rows, err := s.loadRows(ctx)
	if err != nil {
		return model.Table{}, err
	}
	return model.Table{Columns: model.Columns(), Rows: rows}, nil
}

// LoadObservations implements DatasetProvider.LoadObservations.
func (s *QLStore) LoadObservations(ctx context.Context) ([]model.Observation, error) {
	rows, err := s.loadRows(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.Observation, 0, len(rows))
	for i, row := range rows {
		o, err := model.ObservationFromRow(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out = append(out, o)
	}
	return out, nil
}

func (s *QLStore) loadRows(ctx context.Context) ([][]float64, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	start := time.Now()
	defer func() { metrics.RecordRepositoryLatency("load", msSince(start)) }()

	rs, err := s.db.QueryContext(ctx, sqlSelectObservations)
	if err != nil {
		return nil, fmt.Errorf("query observations: %w", err)
	}
	defer rs.Close()

	var out [][]float64
	for rs.Next() {
		row := make([]float64, model.NumFeatures+1)
		dest := make([]any, len(row))
		for i := range row {
			dest[i] = &row[i]
		}
		if err := rs.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan observation %d: %w", len(out), err)
		}
		out = append(out, row)
	}
	if err := rs.Err(); err != nil {
		return nil, fmt.Errorf("read observations: %w", err)
	}
	return out, nil
}

// Insert implements ObservationWriter.Insert.
func (s *QLStore) Insert(ctx context.Context, obs model.Observation) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if err := obs.ValidateLabeled(); err != nil {
		metrics.RecordObservationRejected()
		return fmt.Errorf("%w: %w", ErrInvalidObservation, err)
	}
	start := time.Now()
	defer func() { metrics.RecordRepositoryLatency("insert", msSince(start)) }()

	row := obs.Row()
	args := make([]any, len(row))
	for i, v := range row {
		args[i] = v
	}
	err := s.inTx(ctx, "insert", func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, sqlInsertObservation, args...)
		return err
	})
	if err != nil {
		return fmt.Errorf("insert observation: %w", err)
	}
	metrics.RecordObservationInserted()
	s.logger.Debug(ctx, "observation stored", logger.String("label", obs.Label.String()))
	return nil
}

// Count implements DatasetProvider.Count.
func (s *QLStore) Count(ctx context.Context) (int, error) {
	if s.closed.Load() {
		return 0, ErrClosed
	}
	var n int64
	if err := s.db.QueryRowContext(ctx, sqlCountObservations).Scan(&n); err != nil {
		return 0, fmt.Errorf("count observations: %w", err)
	}
	return int(n), nil
}

// inTx runs fn in a transaction. ql only accepts writes inside one.
func (s *QLStore) inTx(ctx context.Context, op string, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: begin: %w", op, err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.logger.Warn(ctx, "rollback failed", logger.String("op", op), logger.Error(rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", op, err)
	}
	return nil
}

// startMetricsUpdater starts a background goroutine that publishes the row count.
func (s *QLStore) startMetricsUpdater(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.metricsUpdateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.updateMetrics(ctx)
			}
		}
	}()
}

func (s *QLStore) updateMetrics(ctx context.Context) {
	n, err := s.Count(ctx)
	if err != nil {
		if !errors.Is(err, ErrClosed) {
			s.logger.Debug(ctx, "row count unavailable", logger.Error(err))
		}
		return
	}
	metrics.UpdateDatasetRows(n)
}

// Close stops the metrics updater and closes the database. Safe to call twice.
func (s *QLStore) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(s.stopChan)
	s.wg.Wait()
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

func msSince(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000
}
