package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	apiURLVar        = "API_URL"
	httpTimeoutVar   = "HTTP_TIMEOUT"
	sharedRefreshVar = "SHARED_REFRESH"
)

type HTTPConfig interface {
	GetAPIURL() string
	GetHTTPTimeout() time.Duration
	GetSharedRefresh() bool
}

type HTTP struct {
	v *viper.Viper
}

var _ HTTPConfig = HTTP{}

// GetAPIURL returns the API base URL without a trailing slash.
func (h HTTP) GetAPIURL() string {
	return strings.TrimRight(h.v.GetString(apiURLVar), "/")
}

func (h HTTP) GetHTTPTimeout() time.Duration {
	return duration(h.v, httpTimeoutVar, 10*time.Second)
}

// GetSharedRefresh reports whether concurrent 401s share one refresh call.
func (h HTTP) GetSharedRefresh() bool {
	return h.v.GetBool(sharedRefreshVar)
}
