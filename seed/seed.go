// Package seed loads demo OAuth2 clients and scopes into the client
// registry. Seed files run through goose with their own version table so
// they never interfere with schema migrations.
package seed

import (
	"database/sql"
	"embed"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed sql/*.sql
var seedFS embed.FS

// Options selects the database and the goose command to run against it.
type Options struct {
	Driver  string
	DSN     string
	Command string
	Target  int64
	Logger  *log.Logger
}

// Run applies the embedded seed files. A missing driver or DSN, or an empty
// seed directory, makes it a no-op.
func Run(opts Options) error {
	if strings.TrimSpace(opts.Driver) == "" || strings.TrimSpace(opts.DSN) == "" {
		return nil
	}
	if !hasSeedFiles(opts.Logger) {
		return nil
	}

	if opts.Logger != nil {
		goose.SetLogger(opts.Logger)
	}
	goose.SetBaseFS(seedFS)
	goose.SetTableName("seed_migrations")

	db, err := sql.Open(opts.Driver, opts.DSN)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	const dir = "sql"
	switch strings.ToLower(strings.TrimSpace(opts.Command)) {
	case "", "up":
		return goose.Up(db, dir)
	case "down":
		return goose.Down(db, dir)
	case "status":
		return goose.Status(db, dir)
	case "version":
		return goose.Version(db, dir)
	case "up-to":
		return goose.UpTo(db, dir, opts.Target)
	case "down-to":
		return goose.DownTo(db, dir, opts.Target)
	case "redo":
		return goose.Redo(db, dir)
	case "reset":
		return goose.Reset(db, dir)
	default:
		return fmt.Errorf("unknown seed command: %s", opts.Command)
	}
}

// hasSeedFiles reports whether the embedded directory contains at least one
// goose-versioned SQL file (NNNN_name.sql).
func hasSeedFiles(logger *log.Logger) bool {
	entries, err := seedFS.ReadDir("sql")
	if err != nil {
		if logger != nil {
			logger.Println("no seed SQL directory found, skipping seed")
		}
		return false
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}
		if strings.Index(name, "_") > 0 {
			return true
		}
	}

	if logger != nil {
		logger.Println("no versioned seed SQL files found, skipping seed")
	}
	return false
}

// RunFromEnv runs seeds when SEED_ON_START is truthy. SEED_DRIVER and
// SEED_DSN fall back to their MIGRATE_* counterparts so a single database
// configuration covers both.
//
// Env vars: SEED_DRIVER, SEED_DSN, SEED_CMD (default up), SEED_TARGET.
func RunFromEnv() error {
	if !envBool("SEED_ON_START") {
		return nil
	}

	driver := envStr("SEED_DRIVER", envStr("MIGRATE_DRIVER", ""))
	dsn := envStr("SEED_DSN", envStr("MIGRATE_DSN", ""))

	return Run(Options{
		Driver:  driver,
		DSN:     dsn,
		Command: envStr("SEED_CMD", "up"),
		Target:  envInt64("SEED_TARGET"),
		Logger:  log.New(os.Stdout, "[seed] ", log.LstdFlags),
	})
}

func envStr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envBool(key string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "y":
		return true
	}
	return false
}

func envInt64(key string) int64 {
	n, _ := strconv.ParseInt(strings.TrimSpace(os.Getenv(key)), 10, 64)
	return n
}
