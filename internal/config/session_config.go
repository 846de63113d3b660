package config

import "time"

const (
	SessionStoreMemory = "memory"
	SessionStoreFile   = "file"
	SessionStoreRedis  = "redis"
)

type SessionConfig interface {
	GetSessionStore() string
	GetSessionFile() string
	GetSessionPassphrase() string
	GetRedisAddr() string
	GetRedisPrefix() string
	GetRedisTTL() time.Duration
	GetLoginRoute() string
}

var _ SessionConfig = EnvVars{}

func (e EnvVars) GetSessionStore() string {
	return e.SessionStore
}

func (e EnvVars) GetSessionFile() string {
	return e.SessionFile
}

// GetSessionPassphrase returns the passphrase used to seal the session file.
// Empty means the file is stored in clear.
func (e EnvVars) GetSessionPassphrase() string {
	return e.SessionPassphrase
}

func (e EnvVars) GetRedisAddr() string {
	return e.RedisAddr
}

func (e EnvVars) GetRedisPrefix() string {
	return e.RedisPrefix
}

func (e EnvVars) GetRedisTTL() time.Duration {
	return e.RedisTTL
}

func (e EnvVars) GetLoginRoute() string {
	return e.LoginRoute
}
