// Package redis keeps each document key as a string value under a shared
// prefix, mirroring the browser storage layout.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	goredis "github.com/redis/go-redis/v9"

	"posdoctor/internal/domain"
	"posdoctor/internal/store"
)

const DefaultPrefix = "pos"

type Store struct {
	client *goredis.Client
	prefix string
}

func New(ctx context.Context, addr string, password string, db int, prefix string) (*Store, error) {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return &Store{client: client, prefix: prefix}, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) redisKey(key string) string {
	return s.prefix + ":" + key
}

func (s *Store) keys(ctx context.Context) ([]string, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, s.prefix+":*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	return keys, iter.Err()
}

func (s *Store) Load(ctx context.Context) (domain.Document, error) {
	keys, err := s.keys(ctx)
	if err != nil {
		return domain.Document{}, fmt.Errorf("%w: scan %s: %v", store.ErrUnavailable, s.prefix, err)
	}
	values := make(map[string][]byte, len(keys))
	if len(keys) == 0 {
		return store.DecodeKeyspace(values), nil
	}

	got, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return domain.Document{}, fmt.Errorf("%w: mget: %v", store.ErrUnavailable, err)
	}
	for i, key := range keys {
		value, ok := got[i].(string)
		if !ok {
			continue
		}
		values[strings.TrimPrefix(key, s.prefix+":")] = []byte(value)
	}
	return store.DecodeKeyspace(values), nil
}

// Save deletes the old keys and writes the new ones inside MULTI/EXEC.
func (s *Store) Save(ctx context.Context, doc domain.Document) error {
	values, err := store.EncodeKeyspace(doc)
	if err != nil {
		return fmt.Errorf("%w: %v", store.ErrPersistence, err)
	}
	existing, err := s.keys(ctx)
	if err != nil {
		return fmt.Errorf("%w: scan %s: %v", store.ErrPersistence, s.prefix, err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		if len(existing) > 0 {
			pipe.Del(ctx, existing...)
		}
		for key, value := range values {
			pipe.Set(ctx, s.redisKey(key), value, 0)
		}
		return nil
	})
	if err != nil && !errors.Is(err, goredis.Nil) {
		return fmt.Errorf("%w: exec: %v", store.ErrPersistence, err)
	}
	return nil
}
