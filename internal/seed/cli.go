package seed

import "os"

// ShowHelp prints usage information for the seed tool.
func ShowHelp() {
	os.Stdout.WriteString(`Fetal Health Seed Tool
======================

Fills the fetal health datastore with observations and creates a login.

Usage:
  go run cmd/seed/main.go [options]

Options:
  -db string
        Database file (default "fetal_health.ql")
  -csv string
        Import the public fetal_health.csv instead of generating rows
  -rows int
        Number of synthetic rows to generate (default 600)
  -seed int
        Generator seed (default 42)
  -user string
        User to create (default "admin")
  -password string
        Password for the user (default: $FHS_SEED_PASSWORD)
  -help
        Show this help message

Examples:
  # Generate 600 synthetic rows and an admin user
  FHS_SEED_PASSWORD=secret go run cmd/seed/main.go

  # Import the public dataset
  go run cmd/seed/main.go -csv fetal_health.csv -password secret
`)
}
