// Package migrate manages the client registry schema (oauth2_clients,
// oauth2_scopes) with goose. Token and code records are not migrated here;
// they live in buntdb or Valkey where TTL expiry is native.
package migrate

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
var migrationsFS embed.FS

// Options selects the database and the goose command to run against it.
type Options struct {
	Driver  string // sqlite or postgres
	DSN     string // ./oauth-server.db for sqlite, full DSN otherwise
	Command string // up, down, status, version, up-to, down-to, redo, reset
	Target  int64  // version for up-to/down-to
	Logger  *log.Logger
}

// Run applies the embedded migrations. A missing driver or DSN makes it a
// no-op so deployments without a client database skip it cleanly.
func Run(opts Options) error {
	if strings.TrimSpace(opts.Driver) == "" || strings.TrimSpace(opts.DSN) == "" {
		return nil
	}

	if opts.Logger != nil {
		goose.SetLogger(opts.Logger)
	}
	goose.SetBaseFS(migrationsFS)
	goose.SetTableName("schema_migrations")

	db, err := sql.Open(opts.Driver, opts.DSN)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	return apply(db, opts.Command, opts.Target)
}

func apply(db *sql.DB, command string, target int64) error {
	const dir = "sql"
	switch strings.ToLower(strings.TrimSpace(command)) {
	case "", "up":
		return goose.Up(db, dir)
	case "down":
		return goose.Down(db, dir)
	case "status":
		return goose.Status(db, dir)
	case "version":
		return goose.Version(db, dir)
	case "up-to":
		return goose.UpTo(db, dir, target)
	case "down-to":
		return goose.DownTo(db, dir, target)
	case "redo":
		return goose.Redo(db, dir)
	case "reset":
		return goose.Reset(db, dir)
	default:
		return fmt.Errorf("unknown migration command: %s", command)
	}
}

// RunFromEnv runs migrations when MIGRATE_ON_START is truthy.
//
// Env vars: MIGRATE_DRIVER, MIGRATE_DSN, MIGRATE_CMD (default up),
// MIGRATE_TARGET (for up-to/down-to).
func RunFromEnv() error {
	if !envBool("MIGRATE_ON_START") {
		return nil
	}

	return Run(Options{
		Driver:  envStr("MIGRATE_DRIVER", ""),
		DSN:     envStr("MIGRATE_DSN", ""),
		Command: envStr("MIGRATE_CMD", "up"),
		Target:  envInt64("MIGRATE_TARGET"),
		Logger:  log.New(os.Stdout, "[migrate] ", log.LstdFlags),
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
