// Package config loads the client configuration from the environment and an optional .env file.
package config

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config interface {
	EnvConfig
	HTTPConfig
	StorageConfig
	RateLimitConfig
	RouteConfig
	MockAPIConfig
}

type EnvConfig interface {
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
}

type mainConfig struct {
	EnvVars
	HTTP
	Storage
	RateLimit
	Routes
	MockAPI
}

// Load reads .env (if present) into the process environment and builds the config from it.
// Values already set in the environment win over .env.
func Load() (Config, error) {
	return LoadFiles()
}

// LoadFiles is Load with explicit dotenv files; no files means ".env" in the working directory.
// Missing files are ignored (e.g. in CI).
func LoadFiles(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	return New(), nil
}

// New builds the config from the current environment only.
func New() Config {
	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)
	return mainConfig{
		EnvVars:   EnvVars{v: v},
		HTTP:      HTTP{v: v},
		Storage:   Storage{v: v},
		RateLimit: RateLimit{v: v},
		Routes:    Routes{v: v},
		MockAPI:   MockAPI{v: v},
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(appNameVar, "Task Collab")
	v.SetDefault(envVar, "DEV")
	v.SetDefault(logLevelVar, "info")

	v.SetDefault(apiURLVar, "http://localhost:3000/api")
	v.SetDefault(httpTimeoutVar, "10s")
	v.SetDefault(sharedRefreshVar, false)

	v.SetDefault(storageDriverVar, "file")
	v.SetDefault(folderVar, "./data")
	v.SetDefault(namespaceVar, "auth-storage")
	v.SetDefault(redisAddrVar, "localhost:6379")
	v.SetDefault(redisPasswordVar, "")
	v.SetDefault(redisDBVar, 0)
	v.SetDefault(sqliteDSNVar, "")

	v.SetDefault(rateLimitMaxAttemptsVar, 5)
	v.SetDefault(rateLimitWindowVar, "15m")
	v.SetDefault(rateLimitBlockVar, "15m")

	v.SetDefault(loginPathVar, "/login")
	v.SetDefault(fallbackPathVar, "/dashboard")
	v.SetDefault(denyMissingRoleVar, false)

	v.SetDefault(mockAPIAddrVar, ":3000")
	v.SetDefault(mockAPISecretVar, "dev-secret-change-me")
	v.SetDefault(mockAPIAccessTTLVar, "15m")
}
