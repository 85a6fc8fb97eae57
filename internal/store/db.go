package store

import (
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaFS embed.FS

const (
	// CurrentSchemaVersion is the version of the database schema
	CurrentSchemaVersion = 1
)

// DB manages the SQLite database connection and schema migrations
type DB struct {
	sqlDB *sql.DB
	path  string
}

// Open opens or creates a database at the given path
func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	// WAL mode allows concurrent readers during ingestion writes
	sqlDB, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=journal_mode=WAL&_pragma=synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &DB{
		sqlDB: sqlDB,
		path:  path,
	}

	if err := db.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.sqlDB.Close()
}

// migrate runs schema migrations
func (db *DB) migrate() error {
	version, err := db.getSchemaVersion()
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	if version >= CurrentSchemaVersion {
		return nil
	}

	tx, err := db.sqlDB.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if version == 0 {
		// Fresh install - apply full schema
		schema, err := schemaFS.ReadFile("schema.sql")
		if err != nil {
			return fmt.Errorf("failed to read schema: %w", err)
		}

		if _, err := tx.Exec(string(schema)); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_version (version, applied_at) VALUES (?, ?)",
			CurrentSchemaVersion,
			time.Now().UTC().Format(time.RFC3339),
		); err != nil {
			return fmt.Errorf("failed to set schema version: %w", err)
		}
	} else {
		return fmt.Errorf("incremental migrations not yet implemented (current version: %d, target: %d)", version, CurrentSchemaVersion)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration: %w", err)
	}

	return nil
}

// getSchemaVersion returns the current schema version
func (db *DB) getSchemaVersion() (int, error) {
	var exists int
	if err := db.sqlDB.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&exists); err != nil {
		return 0, fmt.Errorf("failed to check schema_version table: %w", err)
	}

	if exists == 0 {
		return 0, nil
	}

	var version int
	if err := db.sqlDB.QueryRow("SELECT version FROM schema_version ORDER BY version DESC LIMIT 1").Scan(&version); err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}

	return version, nil
}

// Clear removes all data from the database (useful for re-ingestion)
func (db *DB) Clear() error {
	tx, err := db.sqlDB.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"entries", "collections", "schema_version"} {
		if _, err := tx.Exec(fmt.Sprintf("DELETE FROM %s", table)); err != nil {
			return fmt.Errorf("failed to clear table %s: %w", table, err)
		}
	}

	if _, err := tx.Exec(
		"INSERT INTO schema_version (version, applied_at) VALUES (?, ?)",
		CurrentSchemaVersion,
		time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("failed to reset schema version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit clear: %w", err)
	}

	return nil
}

// Stats returns database statistics
func (db *DB) Stats() (*DBStats, error) {
	stats := &DBStats{}

	if err := db.sqlDB.QueryRow("SELECT COUNT(*) FROM collections").Scan(&stats.CollectionCount); err != nil {
		return nil, fmt.Errorf("failed to get collection count: %w", err)
	}

	if err := db.sqlDB.QueryRow("SELECT COUNT(*) FROM entries").Scan(&stats.EntryCount); err != nil {
		return nil, fmt.Errorf("failed to get entry count: %w", err)
	}

	if err := db.sqlDB.QueryRow("SELECT COUNT(DISTINCT doc_id) FROM entries").Scan(&stats.DocumentCount); err != nil {
		return nil, fmt.Errorf("failed to get document count: %w", err)
	}

	if info, err := os.Stat(db.path); err == nil {
		stats.SizeBytes = info.Size()
	}

	return stats, nil
}

// DBStats represents database statistics
type DBStats struct {
	CollectionCount int64
	EntryCount      int64
	DocumentCount   int64
	SizeBytes       int64
}
