package catalog

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/fspotfs/fspotfs/util"
)

//go:embed schema.sql
var schemaSQL string

// SchemaVersionKey is the meta row holding the catalog schema version.
const SchemaVersionKey = "F-Spot Database Version"

// DefaultSchemaVersion is written by Init into catalogs it creates.
const DefaultSchemaVersion = "17"

// Store is the SQLite-backed Gateway over an F-Spot photos.db.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open connects to an existing catalog. The schema is left untouched: the
// catalog belongs to F-Spot and is only read and written row by row.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=temp_store(memory)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping catalog %s: %w", path, err)
	}

	return &Store{db: db, logger: logger.With("component", "catalog")}, nil
}

// Create opens path, creating the F-Spot tables and version row when missing.
func Create(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	s, err := Open(path, logger)
	if err != nil {
		return nil, err
	}
	if err := s.Init(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// Init creates the tables fspotfs relies on and records DefaultSchemaVersion
// unless a version is already present.
func (s *Store) Init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("exec schema: %w", err)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO meta (name, data) VALUES (?, ?)`,
		SchemaVersionKey, DefaultSchemaVersion)
	if err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// SchemaVersion returns the version string recorded in the meta table.
func (s *Store) SchemaVersion(ctx context.Context) (string, error) {
	var v sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM meta WHERE name = ? LIMIT 1`, SchemaVersionKey).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("schema version: %w", util.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("schema version: %w", err)
	}
	return v.String, nil
}

// isUniqueViolation reports whether err is a SQLite UNIQUE constraint failure.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// affected maps a zero-row update or delete to util.ErrNotFound.
func affected(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, util.ErrNotFound)
	}
	return nil
}

// placeholders returns "?, ?, ?" for n arguments.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// scanNames drains a single-column result set of filenames.
func scanNames(rows *sql.Rows) ([]string, error) {
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan filename: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
