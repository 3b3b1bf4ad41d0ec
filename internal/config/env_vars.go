package config

import (
	"errors"
	"io/fs"
	"strings"

	"github.com/spf13/viper"
)

const (
	appNameKey   = "app_name"
	envKey       = "env"
	logLevelKey  = "log.level"
	logPrettyKey = "log.pretty"
)

type EnvVars struct {
	v *viper.Viper
}

var _ EnvConfig = EnvVars{}
var _ LogConfig = EnvVars{}

func (e EnvVars) GetAppName() string {
	return e.v.GetString(appNameKey)
}

func (e EnvVars) GetEnv() string {
	env := strings.ToUpper(strings.TrimSpace(e.v.GetString(envKey)))
	if env == "" {
		return "DEV"
	}
	return env
}

func (e EnvVars) GetLogLevel() string {
	return e.v.GetString(logLevelKey)
}

// GetLogPretty reports whether logs go to a human readable console writer instead of JSON.
func (e EnvVars) GetLogPretty() bool {
	return e.v.GetBool(logPrettyKey)
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
