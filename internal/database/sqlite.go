// Package database keeps the processed-release history in SQLite as an
// alternative to the JSON state file.
package database

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"reelfeed/internal/database/models"
	"reelfeed/internal/utils"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

type migration struct {
	version int
	name    string
}

// NewSQLite opens the history database at dbPath, brings its schema up to
// date and returns the repository used as the history backend.
func NewSQLite(dbPath string, logger *utils.Logger) (*models.ProcessedRepository, error) {
	db, err := open(dbPath)
	if err != nil {
		return nil, err
	}

	applied, err := migrate(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	for _, m := range applied {
		logger.Info("Applied history schema migration:", m.name)
	}
	return models.NewProcessedRepository(db), nil
}

func open(dbPath string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	// One writer; runs are sequential anyway.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open history database: %w", err)
	}
	return db, nil
}

// schemaVersion reads the version stamped by the last migration.
func schemaVersion(q interface {
	QueryRow(query string, args ...any) *sql.Row
}) (int, error) {
	var v int
	err := q.QueryRow(`PRAGMA user_version`).Scan(&v)
	return v, err
}

// migrations lists the embedded files by their numeric prefix.
func migrations() ([]migration, error) {
	entries, err := fs.ReadDir(migrationFiles, "migrations")
	if err != nil {
		return nil, err
	}
	var out []migration
	for _, e := range entries {
		if !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		prefix, _, _ := strings.Cut(e.Name(), "_")
		v, err := strconv.Atoi(prefix)
		if err != nil || v < 1 {
			return nil, fmt.Errorf("migration %s has no version prefix", e.Name())
		}
		out = append(out, migration{version: v, name: strings.TrimSuffix(e.Name(), ".sql")})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].version < out[j].version })
	return out, nil
}

// migrate applies every migration newer than the stored user_version in a
// single transaction and stamps the new version. A failure leaves the
// database at its previous version.
func migrate(db *sql.DB) ([]migration, error) {
	all, err := migrations()
	if err != nil {
		return nil, err
	}

	tx, err := db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin migration: %w", err)
	}
	defer tx.Rollback()

	current, err := schemaVersion(tx)
	if err != nil {
		return nil, fmt.Errorf("read schema version: %w", err)
	}

	var applied []migration
	for _, m := range all {
		if m.version <= current {
			continue
		}
		content, err := fs.ReadFile(migrationFiles, "migrations/"+m.name+".sql")
		if err != nil {
			return nil, err
		}
		if _, err := tx.Exec(string(content)); err != nil {
			return nil, fmt.Errorf("migration %s: %w", m.name, err)
		}
		applied = append(applied, m)
	}
	if len(applied) == 0 {
		return nil, nil
	}

	// PRAGMA does not take bind parameters.
	latest := applied[len(applied)-1].version
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", latest)); err != nil {
		return nil, fmt.Errorf("stamp schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit migration: %w", err)
	}
	return applied, nil
}
