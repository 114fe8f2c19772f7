package config

import (
	"time"

	"github.com/spf13/viper"
)

const (
	mockAPIAddrVar      = "MOCKAPI_ADDR"
	mockAPISecretVar    = "MOCKAPI_SECRET"
	mockAPIAccessTTLVar = "MOCKAPI_ACCESS_TTL"
)

type MockAPIConfig interface {
	GetMockAPIAddr() string
	GetMockAPISecret() string
	GetMockAPIAccessTTL() time.Duration
}

type MockAPI struct {
	v *viper.Viper
}

var _ MockAPIConfig = MockAPI{}

func (m MockAPI) GetMockAPIAddr() string {
	return m.v.GetString(mockAPIAddrVar)
}

func (m MockAPI) GetMockAPISecret() string {
	return m.v.GetString(mockAPISecretVar)
}

func (m MockAPI) GetMockAPIAccessTTL() time.Duration {
	return duration(m.v, mockAPIAccessTTLVar, 15*time.Minute)
}
