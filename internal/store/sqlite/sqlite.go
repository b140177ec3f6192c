// Package sqlite keeps the document in a local SQLite database, the
// desktop build's store.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"posdoctor/internal/store/sqlkv"
)

type Store struct {
	*sqlkv.Store
}

func New(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", path))
	if err != nil {
		return nil, err
	}
	// SQLite allows one writer; a single connection keeps saves ordered.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	kv := sqlkv.New(db, sqlkv.SQLite)
	if err := kv.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{Store: kv}, nil
}
