package memory

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"posdoctor/internal/domain"
	"posdoctor/internal/reset"
	"posdoctor/internal/store"
	"posdoctor/internal/xid"
)

// Store keeps the key space in process memory. It backs tests and the
// dev server when no persistent backend is configured.
type Store struct {
	mu     sync.RWMutex
	values map[string][]byte
	saves  int
}

func New() *Store {
	return &Store{values: make(map[string][]byte)}
}

// NewWithValues starts from raw key/value pairs, as a browser storage dump
// would provide them.
func NewWithValues(values map[string][]byte) *Store {
	s := New()
	for key, value := range values {
		s.values[key] = append([]byte(nil), value...)
	}
	return s
}

// NewSeeded starts from the reset document. The admin password is read from
// SEED_ADMIN_PASSWORD; the dev default is used with a warning when unset.
func NewSeeded() *Store {
	password := envOr("SEED_ADMIN_PASSWORD", "admin123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" {
		log.Warn().Str("component", "memory-store").Msg("using default dev credentials; set SEED_ADMIN_PASSWORD to override")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatal().Err(err).Str("component", "memory-store").Msg("failed to hash seed password")
	}

	values, err := store.EncodeKeyspace(reset.Document(time.Now().UTC(), xid.New("user"), string(hash)))
	if err != nil {
		log.Fatal().Err(err).Str("component", "memory-store").Msg("failed to encode seed document")
	}
	return NewWithValues(values)
}

func (s *Store) Load(_ context.Context) (domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return store.DecodeKeyspace(s.values), nil
}

func (s *Store) Save(_ context.Context, doc domain.Document) error {
	values, err := store.EncodeKeyspace(doc)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = values
	s.saves++
	return nil
}

// Value returns a copy of the stored bytes for key.
func (s *Store) Value(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.values[key]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), value...), true
}

// Saves counts completed saves.
func (s *Store) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
