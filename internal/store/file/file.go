// Package file stores the document as a single data.json object.
package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/spf13/afero"

	"posdoctor/internal/domain"
	"posdoctor/internal/store"
)

type Store struct {
	fs   afero.Fs
	path string
}

func New(fsys afero.Fs, path string) *Store {
	return &Store{fs: fsys, path: path}
}

// NewOS stores the document on the host filesystem.
func NewOS(path string) *Store {
	return New(afero.NewOsFs(), path)
}

func (s *Store) Path() string {
	return s.path
}

// Load treats a missing file as an empty document.
func (s *Store) Load(_ context.Context) (domain.Document, error) {
	data, err := afero.ReadFile(s.fs, s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return domain.NewDocument(), nil
	}
	if err != nil {
		return domain.Document{}, fmt.Errorf("%w: read %s: %v", store.ErrUnavailable, s.path, err)
	}
	return store.DecodeObject(data), nil
}

// Save writes a temporary file next to the target and renames it over the
// target, so readers never see a half-written document.
func (s *Store) Save(_ context.Context, doc domain.Document) error {
	data, err := store.EncodeObject(doc)
	if err != nil {
		return fmt.Errorf("%w: encode: %v", store.ErrPersistence, err)
	}

	dir := filepath.Dir(s.path)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: create %s: %v", store.ErrPersistence, dir, err)
	}
	tmp, err := afero.TempFile(s.fs, dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: temp file: %v", store.ErrPersistence, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		_ = s.fs.Remove(tmpName)
		return fmt.Errorf("%w: write %s: %v", store.ErrPersistence, tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		_ = s.fs.Remove(tmpName)
		return fmt.Errorf("%w: sync %s: %v", store.ErrPersistence, tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		_ = s.fs.Remove(tmpName)
		return fmt.Errorf("%w: close %s: %v", store.ErrPersistence, tmpName, err)
	}
	if err := s.fs.Rename(tmpName, s.path); err != nil {
		_ = s.fs.Remove(tmpName)
		return fmt.Errorf("%w: rename to %s: %v", store.ErrPersistence, s.path, err)
	}
	return nil
}
