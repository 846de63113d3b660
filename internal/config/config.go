package config

import (
	"context"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

type Config interface {
	EnvConfig
	APIConfig
	SessionConfig
	QueryConfig
}

type EnvConfig interface {
	GetAppName() string
	GetEnv() string
	GetMetricsAddr() string
	GetOtelEnabled() bool
}

type mainConfig struct {
	EnvVars
}

// New returns a Config with every value at its default.
func New() Config {
	cfg, err := load(context.Background(), envconfig.MapLookuper(map[string]string{}))
	if err != nil {
		// defaults are static and always parse
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	return cfg
}

// Load reads a .env file when one is present, then the process environment.
func Load(ctx context.Context) (Config, error) {
	_ = godotenv.Load()
	return load(ctx, envconfig.OsLookuper())
}

// LoadFrom reads configuration from the given lookuper, used by tests.
func LoadFrom(ctx context.Context, lookuper envconfig.Lookuper) (Config, error) {
	return load(ctx, lookuper)
}

func load(ctx context.Context, lookuper envconfig.Lookuper) (Config, error) {
	var vars EnvVars
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &vars,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	if err := vars.validate(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return mainConfig{EnvVars: vars}, nil
}

// EnvVars is the raw environment-backed configuration.
type EnvVars struct {
	AppName     string `env:"APP_NAME,default=Christland Tech"`
	Env         string `env:"ENV,default=DEV"`
	MetricsAddr string `env:"METRICS_ADDR"`
	OtelEnabled bool   `env:"OTEL_ENABLED,default=false"`

	APIBaseURL      string        `env:"API_BASE_URL,default=http://127.0.0.1:8000/christland"`
	APITimeout      time.Duration `env:"API_TIMEOUT,default=30s"`
	RefreshEndpoint string        `env:"API_REFRESH_PATH,default=/api/dashboard/auth/refresh/"`
	LoginEndpoint   string        `env:"API_LOGIN_PATH,default=/api/dashboard/auth/login/"`

	SessionStore      string        `env:"SESSION_STORE,default=file"`
	SessionFile       string        `env:"SESSION_FILE,default=./data/session.json"`
	SessionPassphrase string        `env:"SESSION_PASSPHRASE"`
	RedisAddr         string        `env:"REDIS_ADDR,default=localhost:6379"`
	RedisPrefix       string        `env:"REDIS_PREFIX,default=christland:"`
	RedisTTL          time.Duration `env:"REDIS_TTL,default=0s"`
	LoginRoute        string        `env:"LOGIN_ROUTE,default=/dashboard/Connexion"`

	DefaultLang       string        `env:"DEFAULT_LANG,default=fr"`
	QueryTimeout      time.Duration `env:"QUERY_TIMEOUT,default=0s"`
	LatestRefreshRate time.Duration `env:"LATEST_REFRESH,default=30s"`
}

func (e EnvVars) validate() error {
	switch e.SessionStore {
	case SessionStoreMemory, SessionStoreFile, SessionStoreRedis:
	default:
		return fmt.Errorf("unknown SESSION_STORE %q", e.SessionStore)
	}
	if e.APIBaseURL == "" {
		return fmt.Errorf("API_BASE_URL must not be empty")
	}
	return nil
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetAppName() string {
	return e.AppName
}

func (e EnvVars) GetEnv() string {
	return e.Env
}

func (e EnvVars) GetMetricsAddr() string {
	return e.MetricsAddr
}

func (e EnvVars) GetOtelEnabled() bool {
	return e.OtelEnabled
}
