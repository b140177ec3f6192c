// Package sqlkv keeps the document key space in one SQL table, one row per
// key. It is shared by the sqlite and postgres backends.
package sqlkv

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"posdoctor/internal/domain"
	"posdoctor/internal/store"
)

const Table = "pos_keyspace"

// Dialect covers the differences between drivers the key space needs.
type Dialect struct {
	Name string
	// Placeholder renders the n-th (1-based) bind parameter.
	Placeholder func(n int) string
	// Describe adds driver detail to an error message; may be nil.
	Describe func(err error) string
}

var Postgres = Dialect{
	Name:        "postgres",
	Placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
}

var SQLite = Dialect{
	Name:        "sqlite",
	Placeholder: func(int) string { return "?" },
}

type Store struct {
	db      *sql.DB
	dialect Dialect
}

func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{db: db, dialect: dialect}
}

func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates the key space table when it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS `+Table+` (
			item_key   TEXT PRIMARY KEY,
			item_value TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("migrate %s: %s", Table, s.describe(err))
	}
	return nil
}

func (s *Store) Load(ctx context.Context) (domain.Document, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT item_key, item_value FROM `+Table)
	if err != nil {
		return domain.Document{}, fmt.Errorf("%w: query %s: %s", store.ErrUnavailable, Table, s.describe(err))
	}
	defer rows.Close()

	values := make(map[string][]byte, 8)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return domain.Document{}, fmt.Errorf("%w: scan %s: %s", store.ErrUnavailable, Table, s.describe(err))
		}
		values[key] = []byte(value)
	}
	if err := rows.Err(); err != nil {
		return domain.Document{}, fmt.Errorf("%w: read %s: %s", store.ErrUnavailable, Table, s.describe(err))
	}
	return store.DecodeKeyspace(values), nil
}

// Save replaces every row in one transaction.
func (s *Store) Save(ctx context.Context, doc domain.Document) error {
	values, err := store.EncodeKeyspace(doc)
	if err != nil {
		return fmt.Errorf("%w: %v", store.ErrPersistence, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %s", store.ErrPersistence, s.describe(err))
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM `+Table); err != nil {
		return fmt.Errorf("%w: clear %s: %s", store.ErrPersistence, Table, s.describe(err))
	}
	insert := fmt.Sprintf(`INSERT INTO %s (item_key, item_value) VALUES (%s, %s)`,
		Table, s.dialect.Placeholder(1), s.dialect.Placeholder(2))
	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return fmt.Errorf("%w: prepare: %s", store.ErrPersistence, s.describe(err))
	}
	defer stmt.Close()

	for key, value := range values {
		if _, err := stmt.ExecContext(ctx, key, string(value)); err != nil {
			return fmt.Errorf("%w: write %s: %s", store.ErrPersistence, key, s.describe(err))
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %s", store.ErrPersistence, s.describe(err))
	}
	return nil
}

func (s *Store) describe(err error) string {
	if s.dialect.Describe != nil {
		return s.dialect.Describe(err)
	}
	return err.Error()
}
