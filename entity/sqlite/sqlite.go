// Package sqlite implements the entity store on an embedded SQLite
// database. The driver is pure Go (WASM build of SQLite), so deployments
// need no cgo toolchain.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/Fasthei/charmine/core"
)

const schema = `
CREATE TABLE IF NOT EXISTS entities (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	attributes TEXT NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS idx_entities_name ON entities(name);
`

// Store is a SQLite-backed entity store. Safe for concurrent use; the
// database handle pools connections internally.
type Store struct {
	db *sql.DB
}

// Open opens (and if needed creates) the entity database at path.
func Open(path string) (*Store, error) {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	connStr := "file:" + path + sep + "_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("open entity db: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init entity schema: %w", err)
	}

	return &Store{db: db}, nil
}

// OpenInMemory opens a private in-memory database, mainly for tests.
func OpenInMemory() (*Store, error) {
	return Open(":memory:?mode=memory&cache=private")
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// Put inserts or replaces an entity.
func (s *Store) Put(ctx context.Context, e *core.Entity) error {
	attrs := e.Attributes
	if attrs == nil {
		attrs = map[string]any{}
	}
	doc, err := json.Marshal(attrs)
	if err != nil {
		return fmt.Errorf("encode attributes for %s: %w", e.ID, err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO entities (id, name, attributes) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name, attributes = excluded.attributes`,
		e.ID, e.Name, string(doc))
	if err != nil {
		return fmt.Errorf("put entity %s: %w", e.ID, err)
	}
	return nil
}

// Get returns the entity with the given id or core.ErrEntityNotFound.
func (s *Store) Get(ctx context.Context, id string) (*core.Entity, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, name, attributes FROM entities WHERE id = ?`, id)

	e, err := scanEntity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrEntityNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get entity %s: %w", id, err)
	}
	return e, nil
}

// List returns entities matching the filter, ordered by name.
func (s *Store) List(ctx context.Context, filter core.EntityFilter) ([]*core.Entity, error) {
	query := `SELECT id, name, attributes FROM entities`
	args := []any{}
	if filter.Name != "" {
		query += ` WHERE name LIKE ?`
		args = append(args, "%"+filter.Name+"%")
	}
	query += ` ORDER BY name`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list entities: %w", err)
	}
	defer rows.Close()

	var results []*core.Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("list entities: %w", err)
		}
		results = append(results, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list entities: %w", err)
	}
	return results, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntity(row rowScanner) (*core.Entity, error) {
	var e core.Entity
	var attrs string
	if err := row.Scan(&e.ID, &e.Name, &attrs); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(attrs), &e.Attributes); err != nil {
		return nil, fmt.Errorf("decode attributes for %s: %w", e.ID, err)
	}
	return &e, nil
}
