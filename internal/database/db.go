package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/justsurfingit/elevate-tracker/internal/config"
	"github.com/justsurfingit/elevate-tracker/internal/models"
)

// Connect opens the Postgres connection and migrates the document and sync tables.
func Connect(cfg *config.Config, log logrus.FieldLogger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.Database.DSN), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	log.Info("Database connection established")

	log.Info("Running migrations")
	if err := db.AutoMigrate(&models.JobDocument{}, &models.InboxCursor{}, &models.ProcessedEmail{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// NewRedisClient builds a client from the redis section. An unparsable URL falls
// back to localhost.
func NewRedisClient(cfg *config.Config) *redis.Client {
	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		opts = &redis.Options{Addr: "localhost:6379"}
	}
	if cfg.Redis.Password != "" {
		opts.Password = cfg.Redis.Password
	}
	if cfg.Redis.DB != 0 {
		opts.DB = cfg.Redis.DB
	}
	opts.DialTimeout = cfg.Redis.Timeout
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	return redis.NewClient(opts)
}

// Stores bundles the persistence pieces selected by database.driver.
type Stores struct {
	Documents DocumentStore
	SyncState SyncStateStore
	Redis     *redis.Client
	close     []func() error
}

func (s *Stores) Close() error {
	var first error
	for _, fn := range s.close {
		if err := fn(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Open builds the document and sync-state stores for the configured driver.
func Open(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (*Stores, error) {
	stores := &Stores{}

	switch cfg.Database.Driver {
	case "postgres":
		db, err := Connect(cfg, log)
		if err != nil {
			return nil, err
		}
		stores.Documents = NewGormStore(db)
		stores.SyncState = NewGormSyncState(db)
		if sqlDB, err := db.DB(); err == nil {
			stores.close = append(stores.close, sqlDB.Close)
		}
	case "sqlite":
		s, err := OpenSQLiteStore(ctx, cfg.Database.Path)
		if err != nil {
			return nil, err
		}
		stores.Documents = s
		stores.SyncState = NewMemorySyncState()
		stores.close = append(stores.close, s.Close)
	case "redis":
		client := NewRedisClient(cfg)
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		stores.Redis = client
		stores.Documents = NewRedisStore(client, cfg.Redis.Prefix)
		stores.SyncState = NewMemorySyncState()
		stores.close = append(stores.close, client.Close)
	case "memory":
		stores.Documents = NewMemoryStore()
		stores.SyncState = NewMemorySyncState()
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}

	log.WithField("driver", cfg.Database.Driver).Info("Document store ready")
	return stores, nil
}
