package config

import "time"

type QueryConfig interface {
	GetDefaultLang() string
	GetQueryTimeout() time.Duration
	GetLatestRefreshRate() time.Duration
}

var _ QueryConfig = EnvVars{}

func (e EnvVars) GetDefaultLang() string {
	return e.DefaultLang
}

// GetQueryTimeout is the per-request timeout applied to queries. Zero disables it.
func (e EnvVars) GetQueryTimeout() time.Duration {
	return e.QueryTimeout
}

func (e EnvVars) GetLatestRefreshRate() time.Duration {
	return e.LatestRefreshRate
}
