package config

import (
	"time"

	"github.com/spf13/viper"
)

const (
	rateLimitMaxAttemptsVar = "RATE_LIMIT_MAX_ATTEMPTS"
	rateLimitWindowVar      = "RATE_LIMIT_WINDOW"
	rateLimitBlockVar       = "RATE_LIMIT_BLOCK"
)

type RateLimitConfig interface {
	GetRateLimitMaxAttempts() int
	GetRateLimitWindow() time.Duration
	GetRateLimitBlockDuration() time.Duration
}

type RateLimit struct {
	v *viper.Viper
}

var _ RateLimitConfig = RateLimit{}

func (r RateLimit) GetRateLimitMaxAttempts() int {
	if n := r.v.GetInt(rateLimitMaxAttemptsVar); n > 0 {
		return n
	}
	return 5
}

func (r RateLimit) GetRateLimitWindow() time.Duration {
	return duration(r.v, rateLimitWindowVar, 15*time.Minute)
}

func (r RateLimit) GetRateLimitBlockDuration() time.Duration {
	return duration(r.v, rateLimitBlockVar, 15*time.Minute)
}
