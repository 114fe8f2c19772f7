package storage

import (
	"fmt"

	"github.com/jrsteele09/go-auth-client/internal/config"
	apperrors "github.com/jrsteele09/go-auth-client/internal/errors"
)

// Driver identifiers.
const (
	DriverMemory = "memory"
	DriverFile   = "file"
	DriverRedis  = "redis"
	DriverSQLite = "sqlite"
)

// Config describes which driver to build and how.
type Config struct {
	Driver string
	File   *FileConfig
	Redis  *RedisConfig
	SQLite *SQLiteConfig
}

// FileConfig stores each key as a JSON file inside Dir.
type FileConfig struct {
	Dir string
}

// RedisConfig captures connection options.
type RedisConfig struct {
	Addr     string
	Username string
	Password string
	DB       int
	Prefix   string
}

// SQLiteConfig points at the database file.
type SQLiteConfig struct {
	DSN string
}

// New creates a Storage for cfg.Driver. An empty driver means memory.
func New(cfg Config) (Storage, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = DriverMemory
	}

	switch driver {
	case DriverMemory:
		return NewMemory(), nil
	case DriverFile:
		if cfg.File == nil {
			return nil, fmt.Errorf("file driver requires a directory")
		}
		return NewFile(cfg.File.Dir)
	case DriverRedis:
		return NewRedis(cfg.Redis)
	case DriverSQLite:
		return NewSQLite(cfg.SQLite)
	default:
		return nil, apperrors.Wrapf(apperrors.ErrUnsupportedDriver, "storage driver %q", driver)
	}
}

// FromConfig builds the Config for the configured driver.
func FromConfig(c config.StorageConfig) Config {
	return Config{
		Driver: c.GetStorageDriver(),
		File:   &FileConfig{Dir: c.GetDataFolder()},
		Redis: &RedisConfig{
			Addr:     c.GetRedisAddr(),
			Password: c.GetRedisPassword(),
			DB:       c.GetRedisDB(),
		},
		SQLite: &SQLiteConfig{DSN: c.GetSQLiteDSN()},
	}
}
