package config

import "github.com/spf13/viper"

const (
	storageDriverVar = "STORAGE_DRIVER"
	folderVar        = "FOLDER"
	namespaceVar     = "STORAGE_NAMESPACE"
	redisAddrVar     = "REDIS_ADDR"
	redisPasswordVar = "REDIS_PASSWORD"
	redisDBVar       = "REDIS_DB"
	sqliteDSNVar     = "SQLITE_DSN"
)

type StorageConfig interface {
	GetStorageDriver() string
	GetDataFolder() string
	GetStorageNamespace() string
	GetRedisAddr() string
	GetRedisPassword() string
	GetRedisDB() int
	GetSQLiteDSN() string
}

type Storage struct {
	v *viper.Viper
}

var _ StorageConfig = Storage{}

func (s Storage) GetStorageDriver() string {
	return s.v.GetString(storageDriverVar)
}

func (s Storage) GetDataFolder() string {
	return s.v.GetString(folderVar)
}

// GetStorageNamespace is the key the session envelope is persisted under.
func (s Storage) GetStorageNamespace() string {
	return s.v.GetString(namespaceVar)
}

func (s Storage) GetRedisAddr() string {
	return s.v.GetString(redisAddrVar)
}

func (s Storage) GetRedisPassword() string {
	return s.v.GetString(redisPasswordVar)
}

func (s Storage) GetRedisDB() int {
	return s.v.GetInt(redisDBVar)
}

// GetSQLiteDSN defaults to a file inside the data folder.
func (s Storage) GetSQLiteDSN() string {
	if dsn := s.v.GetString(sqliteDSNVar); dsn != "" {
		return dsn
	}
	return s.GetDataFolder() + "/client.db"
}
