package models

import (
	"database/sql"
	"fmt"
)

// ProcessedRelease is a row of the processed table.
type ProcessedRelease struct {
	Name        string `json:"name" db:"name"`
	PublishedAt int64  `json:"published_at" db:"published_at"`
}

// ProcessedRepository stores the dedup history in SQLite. It satisfies
// history.Backend.
type ProcessedRepository struct {
	db *sql.DB
}

func NewProcessedRepository(db *sql.DB) *ProcessedRepository {
	return &ProcessedRepository{db: db}
}

func (r *ProcessedRepository) Load() (map[string]int64, error) {
	rows, err := r.db.Query(`SELECT name, published_at FROM processed`)
	if err != nil {
		return nil, fmt.Errorf("query processed: %w", err)
	}
	defer rows.Close()

	entries := make(map[string]int64)
	for rows.Next() {
		var p ProcessedRelease
		if err := rows.Scan(&p.Name, &p.PublishedAt); err != nil {
			return nil, err
		}
		entries[p.Name] = p.PublishedAt
	}
	return entries, rows.Err()
}

// Save replaces the table content with entries in a single transaction.
func (r *ProcessedRepository) Save(entries map[string]int64) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM processed`); err != nil {
		tx.Rollback()
		return fmt.Errorf("clear processed: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO processed (name, published_at) VALUES (?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for name, ts := range entries {
		if _, err := stmt.Exec(name, ts); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert %q: %w", name, err)
		}
	}
	return tx.Commit()
}

func (r *ProcessedRepository) Close() error {
	return r.db.Close()
}

func (r *ProcessedRepository) Count() (int, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM processed`).Scan(&n)
	return n, err
}
