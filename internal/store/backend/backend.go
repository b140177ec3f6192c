// Package backend opens the document store selected by configuration.
package backend

import (
	"context"
	"errors"
	"fmt"

	"posdoctor/internal/config"
	"posdoctor/internal/store"
	"posdoctor/internal/store/file"
	"posdoctor/internal/store/memory"
	"posdoctor/internal/store/mongo"
	"posdoctor/internal/store/postgres"
	"posdoctor/internal/store/redis"
	"posdoctor/internal/store/sqlite"
)

const (
	Memory   = "memory"
	File     = "file"
	SQLite   = "sqlite"
	Postgres = "postgres"
	Redis    = "redis"
	Mongo    = "mongo"
)

var ErrUnknownBackend = errors.New("unknown store backend")

func noopClose() error { return nil }

// Open returns the configured store and a function that releases it.
func Open(ctx context.Context, cfg config.Config) (store.DocumentStore, func() error, error) {
	switch cfg.StoreBackend {
	case "", Memory:
		return memory.NewSeeded(), noopClose, nil
	case File:
		return file.NewOS(cfg.DataFile), noopClose, nil
	case SQLite:
		s, err := sqlite.New(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite %s: %w", cfg.SQLitePath, err)
		}
		return s, s.Close, nil
	case Postgres:
		if cfg.DatabaseURL == "" {
			return nil, nil, errors.New("DATABASE_URL is required for the postgres backend")
		}
		s, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		return s, s.Close, nil
	case Redis:
		if cfg.RedisAddr == "" {
			return nil, nil, errors.New("REDIS_ADDR is required for the redis backend")
		}
		s, err := redis.New(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisPrefix)
		if err != nil {
			return nil, nil, fmt.Errorf("open redis %s: %w", cfg.RedisAddr, err)
		}
		return s, s.Close, nil
	case Mongo:
		if cfg.MongoURI == "" {
			return nil, nil, errors.New("MONGO_URI is required for the mongo backend")
		}
		s, err := mongo.New(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, nil, fmt.Errorf("open mongo: %w", err)
		}
		return s, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.StoreBackend)
	}
}
