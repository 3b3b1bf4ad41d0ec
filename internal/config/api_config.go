package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	baseURLKey          = "api.base_url"
	apiPrefixKey        = "api.prefix"
	refreshPathKey      = "api.refresh_path"
	requestTimeoutKey   = "api.request_timeout"
	renewalTimeoutKey   = "api.renewal_timeout"
	maxResponseBytesKey = "api.max_response_bytes"
)

type APIConfig interface {
	GetBaseURL() string
	GetAPIPrefix() string
	GetRefreshPath() string
	GetRequestTimeout() time.Duration
	GetRenewalTimeout() time.Duration
	GetMaxResponseBytes() int64
}

type API struct {
	v *viper.Viper
}

var _ APIConfig = API{}

// GetBaseURL returns the backend origin without a trailing slash (e.g. "http://localhost:8027")
func (a API) GetBaseURL() string {
	return strings.TrimRight(a.v.GetString(baseURLKey), "/")
}

// GetAPIPrefix returns the path prefix prepended to every dashboard endpoint
func (a API) GetAPIPrefix() string {
	return a.v.GetString(apiPrefixKey)
}

// GetRefreshPath is appended to the base URL (not the API prefix) for token renewal
func (a API) GetRefreshPath() string {
	return a.v.GetString(refreshPathKey)
}

func (a API) GetRequestTimeout() time.Duration {
	return a.v.GetDuration(requestTimeoutKey)
}

func (a API) GetRenewalTimeout() time.Duration {
	return a.v.GetDuration(renewalTimeoutKey)
}

func (a API) GetMaxResponseBytes() int64 {
	return a.v.GetInt64(maxResponseBytesKey)
}
