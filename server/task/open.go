// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
	"gopkg.in/cenkalti/backoff.v1"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Store backend types accepted by Open.
const (
	TypeMemory   = "memory"
	TypeSQLite   = "sqlite"
	TypePostgres = "postgres"
	TypeRedis    = "redis"
)

// Config selects and configures a Store backend.
type Config struct {
	// Type is one of memory, sqlite, postgres or redis. Empty means memory.
	Type string `yaml:"type"`

	// Path is the SQLite database file.
	Path string `yaml:"path"`

	// DSN is the PostgreSQL connection string.
	DSN string `yaml:"dsn"`

	RedisAddr     string `yaml:"redis_addr"`
	RedisUsername string `yaml:"redis_username"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`

	// KeyPrefix namespaces redis keys.
	KeyPrefix string `yaml:"key_prefix"`

	// TTL expires redis keys after the last write.
	TTL time.Duration `yaml:"ttl"`

	// PoolSize bounds the SQLite connection pool.
	PoolSize int `yaml:"pool_size"`
}

// Open creates the Store selected by cfg.Type.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Type {
	case "", TypeMemory:
		logger.Info("using in-memory conversation store")
		return NewInMemoryStore(), nil

	case TypeSQLite:
		logger.Info("using sqlite conversation store", "path", cfg.Path)
		return NewSQLiteStore(SQLiteStoreConfig{
			Path:     cfg.Path,
			PoolSize: cfg.PoolSize,
			Logger:   logger,
		})

	case TypePostgres:
		if cfg.DSN == "" {
			return nil, fmt.Errorf("postgres store requires a DSN")
		}
		connCfg, err := pgx.ParseConfig(cfg.DSN)
		if err != nil {
			return nil, NewStoreError("open", "postgres", err)
		}
		db, err := gorm.Open(postgres.New(postgres.Config{Conn: stdlib.OpenDB(*connCfg)}), &gorm.Config{
			Logger: gormlogger.Discard,
		})
		if err != nil {
			return nil, NewStoreError("open", "postgres", err)
		}
		store, err := NewDatabaseStore(DatabaseStoreConfig{DB: db, CreateTable: true})
		if err != nil {
			return nil, err
		}
		if err := store.Initialize(ctx); err != nil {
			store.Close()
			return nil, err
		}
		logger.Info("using postgres conversation store")
		return store, nil

	case TypeRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Username: cfg.RedisUsername,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		logger.Info("using redis conversation store", "addr", cfg.RedisAddr)
		return NewRedisStore(RedisStoreConfig{
			Client:    client,
			KeyPrefix: cfg.KeyPrefix,
			TTL:       cfg.TTL,
		})

	default:
		return nil, fmt.Errorf("unknown store type %q", cfg.Type)
	}
}

var errNotReady = errors.New("store not ready")

// WaitReady polls store.Ready with exponential backoff until it reports true,
// timeout elapses or ctx is done.
func WaitReady(ctx context.Context, store Store, timeout time.Duration) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	b.MaxElapsedTime = timeout

	err := backoff.Retry(func() error {
		if store.Ready(ctx) {
			return nil
		}
		return errNotReady
	}, backoff.WithContext(b, ctx))
	if err != nil {
		return NewStoreError("wait_ready", "", err)
	}
	return nil
}
