package database

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// SampleFileName is the file the bundled database is written to.
const SampleFileName = "Chinook.db"

//go:embed sample/chinook.sql
var chinookSQL string

var sampleMu sync.Mutex

// EnsureSample writes the bundled Chinook database into dataDir if it is not
// there yet and returns its absolute path.
func EnsureSample(dataDir string) (string, error) {
	if dataDir == "" {
		dataDir = "."
	}
	dbPath, err := filepath.Abs(filepath.Join(dataDir, SampleFileName))
	if err != nil {
		return "", fmt.Errorf("failed to resolve sample path: %w", err)
	}

	sampleMu.Lock()
	defer sampleMu.Unlock()

	if _, err := os.Stat(dbPath); err == nil {
		return dbPath, nil
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}

	start := time.Now()
	tmpPath := dbPath + ".tmp"
	_ = os.Remove(tmpPath)

	db, err := sql.Open("sqlite", tmpPath)
	if err != nil {
		return "", fmt.Errorf("failed to create sample database: %w", err)
	}
	if _, err := db.Exec(chinookSQL); err != nil {
		_ = db.Close()
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("failed to load sample data: %w", err)
	}
	if err := db.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("failed to finalise sample database: %w", err)
	}
	if err := os.Rename(tmpPath, dbPath); err != nil {
		return "", fmt.Errorf("failed to install sample database: %w", err)
	}

	slog.Info("Sample database initialized", "db_path", dbPath, "took", time.Since(start))
	return dbPath, nil
}

// openSample opens the bundled database. The connection is read-only at the
// SQLite level no matter what the caller asked for.
func openSample(ctx context.Context, opts Options) (*Handle, error) {
	dbPath, err := EnsureSample(opts.DataDir)
	if err != nil {
		return nil, &ConnectionError{URI: "sample", Reason: "sample database unavailable", Err: err}
	}

	dsn := "file:" + dbPath + "?mode=ro&_pragma=query_only(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, &ConnectionError{URI: "sample", Reason: "open failed", Err: err}
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, &ConnectionError{URI: "sample", Reason: "sample database unreadable", Err: err}
	}

	return &Handle{
		db:       db,
		dialect:  DialectSQLite,
		key:      Sample().Key(),
		display:  "Chinook sample (read-only)",
		readOnly: true,
	}, nil
}
