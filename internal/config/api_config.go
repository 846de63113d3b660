package config

import (
	"strings"
	"time"
)

type APIConfig interface {
	GetAPIBaseURL() string
	GetAPITimeout() time.Duration
	GetRefreshURL() string
	GetLoginURL() string
}

var _ APIConfig = EnvVars{}

// GetAPIBaseURL returns the API root without a trailing slash
// (e.g. "https://christland.tech/christland").
func (e EnvVars) GetAPIBaseURL() string {
	return strings.TrimRight(e.APIBaseURL, "/")
}

func (e EnvVars) GetAPITimeout() time.Duration {
	return e.APITimeout
}

func (e EnvVars) GetRefreshURL() string {
	return e.GetAPIBaseURL() + e.RefreshEndpoint
}

func (e EnvVars) GetLoginURL() string {
	return e.GetAPIBaseURL() + e.LoginEndpoint
}
