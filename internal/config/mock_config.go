package config

import (
	"time"

	"github.com/spf13/viper"
)

const (
	mockAddrKey      = "mock.addr"
	mockSecretKey    = "mock.secret"
	mockAccessTTLKey = "mock.access_token_ttl"
)

// MockConfig configures the local fake backend served by `dashctl mock-server`
type MockConfig interface {
	GetMockAddr() string
	GetMockSecret() string
	GetMockAccessTokenTTL() time.Duration
}

type Mock struct {
	v *viper.Viper
}

var _ MockConfig = Mock{}

func (m Mock) GetMockAddr() string {
	return m.v.GetString(mockAddrKey)
}

func (m Mock) GetMockSecret() string {
	return m.v.GetString(mockSecretKey)
}

func (m Mock) GetMockAccessTokenTTL() time.Duration {
	return m.v.GetDuration(mockAccessTTLKey)
}
