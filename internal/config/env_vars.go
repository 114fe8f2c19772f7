package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	appNameVar  = "APP_NAME"
	envVar      = "ENV"
	logLevelVar = "LOG_LEVEL"
)

type EnvVars struct {
	v *viper.Viper
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetAppName() string {
	return e.v.GetString(appNameVar)
}

func (e EnvVars) GetEnv() string {
	env := strings.ToUpper(e.v.GetString(envVar))
	if env == "" {
		return "DEV"
	}
	return env
}

func (e EnvVars) GetLogLevel() string {
	return e.v.GetString(logLevelVar)
}

// duration parses key as a time.Duration, falling back to def when unset or invalid.
func duration(v *viper.Viper, key string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(v.GetString(key))
	if err != nil || d <= 0 {
		return def
	}
	return d
}
