// Package artifact persists the selected classifier to a single file and
// holds the model currently used for inference.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/okian/fetalhealth/pkg/logger"
	"github.com/okian/fetalhealth/pkg/metrics"
)

// Info describes the current model.
type Info struct {
	Path      string    `json:"path"`
	Kind      string    `json:"kind"`
	MacroF1   float64   `json:"macro_f1"`
	TrainRows int       `json:"train_rows"`
	TrainedAt time.Time `json:"trained_at"`
	LoadedAt  time.Time `json:"loaded_at"`
	SizeBytes int64     `json:"size_bytes"`
}

type current struct {
	artifact Artifact
	info     Info
}

// Store owns the artifact file at a fixed path. Save and Load are serialized;
// Current is lock-free.
type Store struct {
	path   string
	logger logger.Logger
	level  zstd.EncoderLevel
	now    func() time.Time

	mu  sync.Mutex
	cur atomic.Pointer[current]
}

// New creates a store for the artifact at path. No file is read until Load.
func New(path string, opts ...Option) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: empty artifact path", ErrPersistenceFailure)
	}
	s := &Store{
		path:  filepath.Clean(path),
		level: zstd.SpeedDefault,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("artifact")
	}
	return s, nil
}

// Path returns the artifact file path.
func (s *Store) Path() string { return s.path }

// Save writes a to a temporary file next to the artifact, syncs it and
// renames it over the artifact. The in-memory model is replaced once the
// rename succeeds, so memory always matches the file on disk. A failed sync
// of the directory after the rename is logged but not returned: the new file
// is already visible and only its survival across a power loss is in doubt.
// On any earlier failure the previous file and model are untouched.
func (s *Store) Save(ctx context.Context, a Artifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	size, err := s.write(ctx, a)
	if err != nil {
		metrics.RecordArtifactOperation("save", "error")
		s.logger.Error(ctx, "model save failed", logger.String("path", s.path), logger.Error(err))
		return fmt.Errorf("%w: %w", ErrPersistenceFailure, err)
	}
	s.cur.Store(&current{artifact: a, info: s.info(a, size)})
	metrics.RecordArtifactOperation("save", "ok")
	metrics.UpdateArtifactSize(size)
	s.logger.Info(ctx, "model saved",
		logger.String("path", s.path),
		logger.String("kind", a.Kind),
		logger.String("params", a.Params().String()),
		logger.Int("bytes", int(size)))
	return nil
}

func (s *Store) write(ctx context.Context, a Artifact) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	dir, base := filepath.Split(s.path)
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("create directory: %w", err)
	}
	// The leading dot and suffix keep a partial write from ever matching base.
	tmp, err := os.CreateTemp(dir, "."+base+".tmp-*")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if err := Encode(tmp, a, s.level); err != nil {
		return 0, err
	}
	if err := tmp.Sync(); err != nil {
		return 0, fmt.Errorf("sync temp file: %w", err)
	}
	st, err := tmp.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("close temp file: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return 0, fmt.Errorf("replace artifact: %w", err)
	}
	committed = true
	if err := syncDir(dir); err != nil {
		s.logger.Warn(ctx, "artifact directory sync failed",
			logger.String("path", s.path),
			logger.Error(err))
	}
	return st.Size(), nil
}

// syncDir flushes the directory entry of a renamed file. Tests replace it.
var syncDir = func(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return fmt.Errorf("open directory: %w", err)
	}
	defer d.Close()
	if err := d.Sync(); err != nil {
		return fmt.Errorf("sync directory: %w", err)
	}
	return nil
}

// Load reads the artifact file and makes it the current model. A missing
// file is not an error: the store simply has no model. An unreadable or
// corrupt file returns ErrPersistenceFailure. In both cases no model is current afterwards.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	a, size, err := s.read()
	if errors.Is(err, fs.ErrNotExist) {
		s.cur.Store(nil)
		metrics.RecordArtifactOperation("load", "absent")
		s.logger.Warn(ctx, "no model artifact found", logger.String("path", s.path))
		return nil
	}
	if err != nil {
		s.cur.Store(nil)
		metrics.RecordArtifactOperation("load", "error")
		s.logger.Error(ctx, "model load failed", logger.String("path", s.path), logger.Error(err))
		return fmt.Errorf("%w: %s: %w", ErrPersistenceFailure, s.path, err)
	}
	s.cur.Store(&current{artifact: a, info: s.info(a, size)})
	metrics.RecordArtifactOperation("load", "ok")
	metrics.UpdateArtifactSize(size)
	s.logger.Info(ctx, "model loaded",
		logger.String("path", s.path),
		logger.String("kind", a.Kind),
		logger.String("params", a.Params().String()))
	return nil
}

func (s *Store) read() (Artifact, int64, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return Artifact{}, 0, err
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return Artifact{}, 0, err
	}
	a, err := Decode(f)
	if err != nil {
		return Artifact{}, 0, err
	}
	return a, st.Size(), nil
}

// Current returns the model in use, or ErrModelUnavailable.
func (s *Store) Current() (Artifact, error) {
	c := s.cur.Load()
	if c == nil {
		return Artifact{}, ErrModelUnavailable
	}
	return c.artifact, nil
}

// Info describes the model in use, or returns ErrModelUnavailable.
func (s *Store) Info() (Info, error) {
	c := s.cur.Load()
	if c == nil {
		return Info{}, ErrModelUnavailable
	}
	return c.info, nil
}

func (s *Store) info(a Artifact, size int64) Info {
	return Info{
		Path:      s.path,
		Kind:      a.Kind,
		MacroF1:   a.MacroF1,
		TrainRows: a.TrainRows,
		TrainedAt: a.TrainedAt,
		LoadedAt:  s.now(),
		SizeBytes: size,
	}
}
