package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Entry is the row backing one key.
type Entry struct {
	Key       string `gorm:"column:storage_key;primaryKey;size:255"`
	Value     []byte
	UpdatedAt time.Time
}

func (Entry) TableName() string {
	return "client_storage"
}

type sqliteStore struct {
	db *gorm.DB
}

// NewSQLite opens (and migrates) a SQLite-backed Storage.
func NewSQLite(cfg *SQLiteConfig) (Storage, error) {
	if cfg == nil || cfg.DSN == "" {
		return nil, fmt.Errorf("sqlite dsn required")
	}
	if dir := filepath.Dir(cfg.DSN); dir != "." && cfg.DSN != ":memory:" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create sqlite directory: %w", err)
		}
	}
	db, err := gorm.Open(sqlite.Open(cfg.DSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	return NewSQLiteDB(db)
}

// NewSQLiteDB wraps an existing gorm handle.
func NewSQLiteDB(db *gorm.DB) (Storage, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlite store requires database handle")
	}
	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, fmt.Errorf("migrate client_storage: %w", err)
	}
	return &sqliteStore{db: db}, nil
}

func (s *sqliteStore) Get(ctx context.Context, key string) ([]byte, error) {
	var entry Entry
	err := s.db.WithContext(ctx).Where("storage_key = ?", key).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return entry.Value, nil
}

func (s *sqliteStore) Set(ctx context.Context, key string, value []byte) error {
	entry := Entry{Key: key, Value: value, UpdatedAt: time.Now()}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "storage_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&entry).Error
}

func (s *sqliteStore) Remove(ctx context.Context, key string) error {
	return s.db.WithContext(ctx).Where("storage_key = ?", key).Delete(&Entry{}).Error
}

func (s *sqliteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
