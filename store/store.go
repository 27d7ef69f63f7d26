package store

import (
	"context"
	"fmt"
	"strings"

	"newsdesk/config"
	"newsdesk/logger"
	"newsdesk/types"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Store is the gorm-backed persistence layer shared by every pipeline stage.
// A Store returned by Transaction is bound to that transaction.
type Store struct {
	db  *gorm.DB
	log *logger.Logger
}

// Open connects to the configured database.
func Open(cfg config.DatabaseConfig, log *logger.Logger) (*Store, error) {
	gcfg := &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Warn)}

	var (
		db  *gorm.DB
		err error
	)
	switch strings.ToLower(cfg.Driver) {
	case "postgres", "postgresql":
		db, err = gorm.Open(postgres.Open(cfg.DSN), gcfg)
	case "sqlite", "":
		db, err = gorm.Open(sqlite.Open(cfg.DSN), gcfg)
		if err == nil {
			// sqlite allows a single writer
			if sqlDB, derr := db.DB(); derr == nil {
				sqlDB.SetMaxOpenConns(1)
			}
		}
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", cfg.Driver, err)
	}
	return New(db, log), nil
}

// New wraps an existing gorm handle.
func New(db *gorm.DB, log *logger.Logger) *Store {
	return &Store{db: db, log: log.With("component", "store")}
}

// Migrate creates or updates every table.
func (s *Store) Migrate() error {
	if err := s.db.AutoMigrate(types.Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// Transaction runs fn inside a database transaction.
// fn must only use the Store it is given.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx, log: s.log})
	})
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) with(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}
