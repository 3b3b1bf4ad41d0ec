package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const envPrefix = "DASHBOARD"

type Config interface {
	EnvConfig
	APIConfig
	StorageConfig
	LogConfig
	MockConfig
}

type EnvConfig interface {
	GetAppName() string
	GetEnv() string
}

type LogConfig interface {
	GetLogLevel() string
	GetLogPretty() bool
}

type mainConfig struct {
	EnvVars
	API
	Storage
	Mock
}

var _ Config = mainConfig{}

// New returns a Config built from defaults and DASHBOARD_* environment variables.
func New() Config {
	cfg, _ := Load("")
	return cfg
}

// Load reads configuration from a YAML file at path, layered over defaults and
// overridden by DASHBOARD_* environment variables. A missing file is not an error.
func Load(path string) (Config, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !isNotExist(err) {
				return nil, fmt.Errorf("[config Load] %s: %w", path, err)
			}
		}
	}
	return mainConfig{
		EnvVars: EnvVars{v: v},
		API:     API{v: v},
		Storage: Storage{v: v},
		Mock:    Mock{v: v},
	}, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(appNameKey, "Dashboard Client")
	v.SetDefault(envKey, "DEV")
	v.SetDefault(logLevelKey, "info")
	v.SetDefault(logPrettyKey, true)

	v.SetDefault(baseURLKey, "http://localhost:8027")
	v.SetDefault(apiPrefixKey, "/api/v1/dashboard")
	v.SetDefault(refreshPathKey, "/auth/refresh")
	v.SetDefault(requestTimeoutKey, "30s")
	v.SetDefault(renewalTimeoutKey, "15s")
	v.SetDefault(maxResponseBytesKey, int64(10<<20))

	v.SetDefault(storageBackendKey, StorageBackendFile)
	v.SetDefault(storagePathKey, defaultStoragePath())
	v.SetDefault(storageKeyPrefixKey, "dashboard:")
	v.SetDefault(redisAddrKey, "localhost:6379")
	v.SetDefault(redisPasswordKey, "")
	v.SetDefault(redisDBKey, 0)

	v.SetDefault(mockAddrKey, "localhost:8027")
	v.SetDefault(mockSecretKey, "")
	v.SetDefault(mockAccessTTLKey, "15m")
}
