// Package seed builds and checks the SQLite data file bundled as the data
// service's starting state.
package seed

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// Table is the table the data service reads and writes.
const Table = "calculations"

const schema = `CREATE TABLE IF NOT EXISTS calculations (
	id TEXT PRIMARY KEY,
	x REAL NOT NULL,
	y REAL NOT NULL,
	result REAL NOT NULL,
	operation TEXT NOT NULL,
	timestamp DATETIME
)`

// ErrExists is returned by CreateTemplate when the destination already exists.
var ErrExists = errors.New("template already exists")

// Info describes a data file.
type Info struct {
	Path      string
	HasTable  bool
	Rows      int64
	SizeBytes int64
}

// CreateTemplate writes an empty data file with the calculations schema at
// path. An existing file is never overwritten.
func CreateTemplate(ctx context.Context, path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s: %w", path, ErrExists)
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create template directory: %w", err)
	}

	// Built beside the destination, then renamed into place.
	tmp := path + ".partial"
	_ = os.Remove(tmp)
	if err := build(ctx, tmp); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to move template into place: %w", err)
	}
	return nil
}

func build(ctx context.Context, path string) error {
	db, err := open(path)
	if err != nil {
		return err
	}
	defer db.Close()

	// rollback journal keeps the template a single file
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=DELETE"); err != nil {
		return fmt.Errorf("failed to set journal mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}
	return db.Close()
}

// Verify runs an integrity check on the file at path and reports what it holds.
func Verify(ctx context.Context, path string) (Info, error) {
	info := Info{Path: path}
	st, err := os.Stat(path)
	if err != nil {
		return info, err
	}
	if st.IsDir() {
		return info, fmt.Errorf("%s is a directory", path)
	}
	info.SizeBytes = st.Size()

	db, err := open(path)
	if err != nil {
		return info, err
	}
	defer db.Close()

	var result string
	if err := db.QueryRowContext(ctx, "PRAGMA quick_check").Scan(&result); err != nil {
		return info, fmt.Errorf("integrity check failed: %w", err)
	}
	if result != "ok" {
		return info, fmt.Errorf("integrity check failed: %s", result)
	}

	var n int
	err = db.QueryRowContext(ctx,
		"SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = ?", Table).Scan(&n)
	if err != nil {
		return info, fmt.Errorf("failed to read schema: %w", err)
	}
	info.HasTable = n > 0
	if !info.HasTable {
		return info, nil
	}

	if err := db.QueryRowContext(ctx, "SELECT count(*) FROM "+Table).Scan(&info.Rows); err != nil {
		return info, fmt.Errorf("failed to count rows: %w", err)
	}
	return info, nil
}

func open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	return db, nil
}
