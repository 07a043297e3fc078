package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/okian/fetalhealth/internal/adapters/repository"
	"github.com/okian/fetalhealth/internal/seed"
	"github.com/okian/fetalhealth/pkg/logger"
)

// Default configuration constants.
const (
	defaultRows = 600
	defaultSeed = 42
)

func main() {
	_ = godotenv.Load()

	var (
		dbPath   = flag.String("db", "fetal_health.ql", "Database file")
		csvFile  = flag.String("csv", "", "Import the public fetal_health.csv instead of generating rows")
		rows     = flag.Int("rows", defaultRows, "Number of synthetic rows to generate")
		seedVal  = flag.Int64("seed", defaultSeed, "Generator seed")
		user     = flag.String("user", "admin", "User to create")
		password = flag.String("password", os.Getenv("FHS_SEED_PASSWORD"), "Password for the user")
		help     = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		seed.ShowHelp()
		return
	}
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := &seed.Config{
		DBDriver: repository.DriverFile,
		DBPath:   *dbPath,
		CSVFile:  *csvFile,
		Rows:     *rows,
		Seed:     *seedVal,
		User:     *user,
		Password: *password,
	}
	if cfg.User != "" && cfg.Password == "" {
		os.Stderr.WriteString("A password is required: use -password or FHS_SEED_PASSWORD\n")
		os.Exit(2)
	}

	if _, err := seed.Run(ctx, cfg); err != nil {
		logger.Get().Error(ctx, "seeding failed", logger.Error(err))
		os.Exit(1)
	}
}
