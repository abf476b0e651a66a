// Package store wires the relational persistence layer spec.md §6/§7
// describes: two tables (command_results, configs) behind
// github.com/pocketbase/dbx's query builder over a pure-Go SQLite driver.
// Grounded on Websoft9-AppOS's use of dbx (internal/migrations/*.go's
// dbx.Params-bound queries), but without adopting PocketBase's collection
// schema, admin UI, or auth system — this spec needs two plain tables, not a
// user-defined collection store.
package store

import (
	"database/sql"
	"fmt"
	"log"

	"github.com/pocketbase/dbx"
	_ "modernc.org/sqlite"
)

const driverName = "sqlite"

// Store wraps the dbx handle used by both the config CRUD surface and the
// Result Sink.
type Store struct {
	DB *dbx.DB
}

// Open opens (creating if necessary) the SQLite file at path, wraps it in
// dbx, and ensures the schema is current.
func Open(path string) (*Store, error) {
	sqlDB, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite serializes writers; a single connection avoids SQLITE_BUSY
	// errors under the Result Sink's concurrent flush pattern.
	sqlDB.SetMaxOpenConns(1)

	db := dbx.NewFromDB(sqlDB, driverName)

	s := &Store{DB: db}
	if err := s.ensureSchema(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return s, nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	return s.DB.DB().Close()
}

// ensureSchema creates both tables if absent and performs the forward-compat
// column check spec §6 requires: detect and add a missing exit_status
// column on command_results.
func (s *Store) ensureSchema() error {
	if _, err := s.DB.NewQuery(createConfigsTable).Execute(); err != nil {
		return fmt.Errorf("create configs table: %w", err)
	}
	if _, err := s.DB.NewQuery(createResultsTable).Execute(); err != nil {
		return fmt.Errorf("create command_results table: %w", err)
	}
	return s.ensureExitStatusColumn()
}

const createConfigsTable = `
CREATE TABLE IF NOT EXISTS configs (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL UNIQUE,
	config_data TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
)`

const createResultsTable = `
CREATE TABLE IF NOT EXISTS command_results (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	ip TEXT NOT NULL,
	user TEXT NOT NULL,
	password TEXT NOT NULL,
	port INTEGER NOT NULL,
	command TEXT NOT NULL,
	output TEXT NOT NULL,
	timestamp DATETIME NOT NULL
)`

// ensureExitStatusColumn implements spec §6's "startup must check for and
// add a missing exit_status column for forward compatibility" — the schema
// above predates exit_status, mirroring a table that shipped before this
// field existed.
func (s *Store) ensureExitStatusColumn() error {
	var columns []struct {
		Name string `db:"name"`
	}
	if err := s.DB.NewQuery("PRAGMA table_info(command_results)").All(&columns); err != nil {
		return fmt.Errorf("inspect command_results schema: %w", err)
	}

	for _, col := range columns {
		if col.Name == "exit_status" {
			return nil
		}
	}

	log.Println("[store] adding missing exit_status column to command_results")
	_, err := s.DB.NewQuery("ALTER TABLE command_results ADD COLUMN exit_status INTEGER").Execute()
	if err != nil {
		return fmt.Errorf("add exit_status column: %w", err)
	}
	return nil
}
