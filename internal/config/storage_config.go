package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

const (
	storageBackendKey   = "storage.backend"
	storagePathKey      = "storage.path"
	storageKeyPrefixKey = "storage.key_prefix"
	redisAddrKey        = "storage.redis.addr"
	redisPasswordKey    = "storage.redis.password"
	redisDBKey          = "storage.redis.db"
)

// Supported credential storage backends
const (
	StorageBackendMemory = "memory"
	StorageBackendFile   = "file"
	StorageBackendRedis  = "redis"
)

type StorageConfig interface {
	GetStorageBackend() string
	GetStoragePath() string
	GetStorageKeyPrefix() string
	GetRedisAddr() string
	GetRedisPassword() string
	GetRedisDB() int
}

type Storage struct {
	v *viper.Viper
}

var _ StorageConfig = Storage{}

func (s Storage) GetStorageBackend() string {
	return s.v.GetString(storageBackendKey)
}

// GetStoragePath is the session file used by the file backend
func (s Storage) GetStoragePath() string {
	return s.v.GetString(storagePathKey)
}

// GetStorageKeyPrefix namespaces keys in shared backends such as redis
func (s Storage) GetStorageKeyPrefix() string {
	return s.v.GetString(storageKeyPrefixKey)
}

func (s Storage) GetRedisAddr() string {
	return s.v.GetString(redisAddrKey)
}

func (s Storage) GetRedisPassword() string {
	return s.v.GetString(redisPasswordKey)
}

func (s Storage) GetRedisDB() int {
	return s.v.GetInt(redisDBKey)
}

func defaultStoragePath() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		return filepath.Join(".", "session.json")
	}
	return filepath.Join(dir, "dashctl", "session.json")
}
