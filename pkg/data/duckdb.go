package data

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "github.com/marcboeker/go-duckdb/v2"
)

const schema = `
CREATE TABLE IF NOT EXISTS book_status (
	book_id    VARCHAR PRIMARY KEY,
	status     VARCHAR NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS book_progress (
	book_id     VARCHAR PRIMARY KEY,
	page        INTEGER NOT NULL,
	total_pages INTEGER NOT NULL,
	percent     DOUBLE NOT NULL,
	updated_at  TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS notes (
	id         VARCHAR PRIMARY KEY,
	book_id    VARCHAR NOT NULL,
	page       INTEGER NOT NULL,
	content    VARCHAR NOT NULL,
	created_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS highlights (
	id         VARCHAR PRIMARY KEY,
	book_id    VARCHAR NOT NULL,
	page       INTEGER NOT NULL,
	text       VARCHAR NOT NULL,
	color      VARCHAR NOT NULL,
	created_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS reader_state (
	book_id    VARCHAR PRIMARY KEY,
	page       INTEGER NOT NULL,
	scale      DOUBLE NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
`

// InitDuckDB opens the database at path, creating parent directories and
// the schema when missing.
func InitDuckDB(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, err
	}

	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}

	return db, nil
}

type Repository struct {
	db *sql.DB
}

var (
	handlesMu sync.Mutex
	handles   = map[string]*sql.DB{}
)

// NewDuckDBRepository returns a repository over the database at path. One
// handle is shared per path for the life of the process.
func NewDuckDBRepository(path string) (*Repository, error) {
	handlesMu.Lock()
	defer handlesMu.Unlock()

	if db, ok := handles[path]; ok {
		return &Repository{db: db}, nil
	}

	db, err := InitDuckDB(path)
	if err != nil {
		return nil, err
	}
	handles[path] = db

	return &Repository{db: db}, nil
}

// Close releases the shared handle
func (r *Repository) Close() error {
	handlesMu.Lock()
	defer handlesMu.Unlock()

	for path, db := range handles {
		if db == r.db {
			delete(handles, path)
		}
	}
	return r.db.Close()
}
