package backend

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"posdoctor/internal/config"
	"posdoctor/internal/store/file"
	"posdoctor/internal/store/sqlite"
)

func TestOpenFileAndSQLite(t *testing.T) {
	dir := t.TempDir()

	st, closeFn, err := Open(context.Background(), config.Config{StoreBackend: File, DataFile: filepath.Join(dir, "data.json")})
	require.NoError(t, err)
	assert.IsType(t, &file.Store{}, st)
	assert.NoError(t, closeFn())

	st, closeFn, err = Open(context.Background(), config.Config{StoreBackend: SQLite, SQLitePath: filepath.Join(dir, "pos.db")})
	require.NoError(t, err)
	assert.IsType(t, &sqlite.Store{}, st)
	assert.NoError(t, closeFn())
}

func TestOpenRequiresConnectionSettings(t *testing.T) {
	for _, name := range []string{Postgres, Redis, Mongo} {
		_, _, err := Open(context.Background(), config.Config{StoreBackend: name})
		assert.Errorf(t, err, "backend %s", name)
	}
}

func TestOpenUnknownBackend(t *testing.T) {
	_, _, err := Open(context.Background(), config.Config{StoreBackend: "etcd"})
	assert.ErrorIs(t, err, ErrUnknownBackend)
}
