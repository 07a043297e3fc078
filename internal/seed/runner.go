package seed

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/okian/fetalhealth/internal/adapters/repository"
	"github.com/okian/fetalhealth/internal/domain/model"
	"github.com/okian/fetalhealth/pkg/logger"
)

// Config holds configuration for a seeding run.
type Config struct {
	DBDriver string // ql driver name
	DBPath   string // database file
	CSVFile  string // import this file instead of generating rows
	Rows     int    // synthetic rows to generate
	Seed     int64  // generator seed
	User     string // user to create, skipped when empty
	Password string // password for User
}

// Stats summarizes a seeding run.
type Stats struct {
	Inserted int
	ByLabel  map[model.Label]int
	Total    int
	Duration time.Duration
}

// Run writes the configured rows and user into the datastore.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	log := logger.Get().Named("seed")
	start := time.Now()

	rows, err := load(cfg)
	if err != nil {
		return nil, err
	}

	store, err := repository.Open(ctx,
		repository.WithDriver(cfg.DBDriver),
		repository.WithPath(cfg.DBPath),
		repository.WithLogger(log),
	)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn(ctx, "close datastore", logger.Error(err))
		}
	}()

	stats := &Stats{ByLabel: make(map[model.Label]int)}
	for i, o := range rows {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if err := store.Insert(ctx, o); err != nil {
			return stats, fmt.Errorf("insert row %d: %w", i+1, err)
		}
		stats.Inserted++
		stats.ByLabel[o.Label]++
	}

	if cfg.User != "" {
		if err := store.CreateUser(ctx, cfg.User, cfg.Password); err != nil {
			return stats, err
		}
	}

	stats.Total, err = store.Count(ctx)
	if err != nil {
		return stats, err
	}
	stats.Duration = time.Since(start)
	log.Info(ctx, "seeding finished",
		logger.Int("inserted", stats.Inserted),
		logger.Int("normal", stats.ByLabel[model.Normal]),
		logger.Int("suspect", stats.ByLabel[model.Suspect]),
		logger.Int("pathologic", stats.ByLabel[model.Pathologic]),
		logger.Int("total", stats.Total),
		logger.Duration("took", stats.Duration))
	return stats, nil
}

func load(cfg *Config) ([]model.Observation, error) {
	if cfg.CSVFile == "" {
		return NewGenerator(WithSeed(cfg.Seed)).Generate(cfg.Rows), nil
	}
	f, err := os.Open(cfg.CSVFile)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()
	return ImportCSV(f)
}
