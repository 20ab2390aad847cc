// Package catalog stores the demo data catalog in a SQLite database:
// databases, their tables and per-table column metadata. The catalog channel
// queries it; nothing above the channel touches SQL.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// ErrClosed is returned for operations on a closed store.
var ErrClosed = errors.New("catalog store is closed")

// ErrNotFound is returned when a database or table is not in the catalog.
var ErrNotFound = errors.New("not found")

// Column describes one column of a catalog table.
type Column struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	Nullable   bool   `json:"nullable"`
	PrimaryKey bool   `json:"primary_key,omitempty"`
	ForeignKey string `json:"foreign_key,omitempty"`
}

// SeedTable is one table of a seed dataset.
type SeedTable struct {
	Name    string
	Columns []Column
}

// SeedDatabase is one database of a seed dataset.
type SeedDatabase struct {
	Name   string
	Tables []SeedTable
}

// Store is the SQLite-backed catalog. Listings come back in seed order so
// tree output is stable across runs.
type Store struct {
	db   *sql.DB
	path string

	mu     sync.Mutex
	closed bool
}

// Open opens the catalog database at path, creating the file and parent
// directory when missing.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create catalog dir: %w", err)
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open catalog database: %w", err)
	}
	s := &Store{db: db, path: path}
	if err := s.init(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize catalog: %w", err)
	}
	return s, nil
}

// init creates the catalog schema.
func (s *Store) init() error {
	schema := `
	CREATE TABLE IF NOT EXISTS databases (
		name TEXT PRIMARY KEY,
		position INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS tables (
		database TEXT NOT NULL REFERENCES databases(name),
		name TEXT NOT NULL,
		position INTEGER NOT NULL,
		PRIMARY KEY (database, name)
	);

	CREATE TABLE IF NOT EXISTS columns (
		database TEXT NOT NULL,
		table_name TEXT NOT NULL,
		name TEXT NOT NULL,
		type TEXT NOT NULL,
		nullable INTEGER NOT NULL DEFAULT 0,
		primary_key INTEGER NOT NULL DEFAULT 0,
		foreign_key TEXT NOT NULL DEFAULT '',
		position INTEGER NOT NULL,
		PRIMARY KEY (database, table_name, name)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Path returns the filesystem path the store was opened with.
func (s *Store) Path() string {
	return s.path
}

// Seed replaces the catalog contents with the given databases. Positions
// follow slice order.
func (s *Store) Seed(ctx context.Context, databases []SeedDatabase) error {
	if err := s.check(); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seed: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range []string{`DELETE FROM columns`, `DELETE FROM tables`, `DELETE FROM databases`} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("clear catalog: %w", err)
		}
	}

	for di, database := range databases {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO databases (name, position) VALUES (?, ?)`,
			database.Name, di,
		); err != nil {
			return fmt.Errorf("seed database %s: %w", database.Name, err)
		}
		for ti, table := range database.Tables {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO tables (database, name, position) VALUES (?, ?, ?)`,
				database.Name, table.Name, ti,
			); err != nil {
				return fmt.Errorf("seed table %s.%s: %w", database.Name, table.Name, err)
			}
			for ci, col := range table.Columns {
				if _, err := tx.ExecContext(ctx,
					`INSERT INTO columns (database, table_name, name, type, nullable, primary_key, foreign_key, position)
					 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
					database.Name, table.Name, col.Name, col.Type, col.Nullable, col.PrimaryKey, col.ForeignKey, ci,
				); err != nil {
					return fmt.Errorf("seed column %s.%s.%s: %w", database.Name, table.Name, col.Name, err)
				}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit seed: %w", err)
	}
	return nil
}

// ListDatabases returns all database names in seed order.
func (s *Store) ListDatabases(ctx context.Context) ([]string, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM databases ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("list databases: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan database: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list databases: %w", err)
	}
	return names, nil
}

// ListTables returns the table names of a database in seed order.
func (s *Store) ListTables(ctx context.Context, database string) ([]string, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	if err := s.requireDatabase(ctx, database); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT name FROM tables WHERE database = ? ORDER BY position`, database)
	if err != nil {
		return nil, fmt.Errorf("list tables %s: %w", database, err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tables %s: %w", database, err)
	}
	return names, nil
}

// TableColumns returns the column metadata of a table in seed order.
func (s *Store) TableColumns(ctx context.Context, database, table string) ([]Column, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM tables WHERE database = ? AND name = ?`, database, table).Scan(&one)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("table %s.%s: %w", database, table, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("lookup table %s.%s: %w", database, table, err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT name, type, nullable, primary_key, foreign_key
		 FROM columns WHERE database = ? AND table_name = ? ORDER BY position`,
		database, table)
	if err != nil {
		return nil, fmt.Errorf("table columns %s.%s: %w", database, table, err)
	}
	defer rows.Close()

	var cols []Column
	for rows.Next() {
		var col Column
		if err := rows.Scan(&col.Name, &col.Type, &col.Nullable, &col.PrimaryKey, &col.ForeignKey); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		cols = append(cols, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("table columns %s.%s: %w", database, table, err)
	}
	return cols, nil
}

// Close closes the underlying database. Further calls return ErrClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	return s.db.Close()
}

func (s *Store) check() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

func (s *Store) requireDatabase(ctx context.Context, database string) error {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM databases WHERE name = ?`, database).Scan(&one)
	if err == sql.ErrNoRows {
		return fmt.Errorf("database %s: %w", database, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("lookup database %s: %w", database, err)
	}
	return nil
}
