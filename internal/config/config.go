package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

func init() {
	// Load .env file if it exists (silent fail if not)
	_ = godotenv.Load()
}

// Config holds all application configuration loaded from environment variables.
type Config struct {
	App          AppConfig
	Server       ServerConfig
	Remote       RemoteConfig
	Store        StoreConfig
	Cache        CacheConfig
	Connectivity ConnectivityConfig
	Retry        RetryConfig
	Notify       NotifyConfig
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Name        string `envconfig:"APP_NAME" default:"clinicsync"`
	Environment string `envconfig:"APP_ENV" default:"development"`
	Version     string `envconfig:"APP_VERSION" default:"1.0.0"`
}

// ServerConfig holds settings for the local status API server.
type ServerConfig struct {
	Host            string        `envconfig:"SERVER_HOST" default:"127.0.0.1"`
	Port            int           `envconfig:"SERVER_PORT" default:"8091"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"15s"`
}

// RemoteConfig holds settings for the remote data service client.
type RemoteConfig struct {
	BaseURL        string        `envconfig:"REMOTE_BASE_URL" default:"http://localhost:9000"`
	RequestTimeout time.Duration `envconfig:"REMOTE_REQUEST_TIMEOUT" default:"8s"`
	ProbeTimeout   time.Duration `envconfig:"REMOTE_PROBE_TIMEOUT" default:"5s"`
}

// StoreConfig holds the durable local store settings.
type StoreConfig struct {
	Path string `envconfig:"STORE_PATH" default:"./data/clinicsync.db"`
}

// CacheConfig holds TTL cache settings.
type CacheConfig struct {
	Type       string        `envconfig:"CACHE_TYPE" default:"sqlite"` // sqlite or memory
	DefaultTTL time.Duration `envconfig:"CACHE_TTL" default:"10m"`
	Namespace  string        `envconfig:"CACHE_NAMESPACE" default:"clinicsync:"`
}

// ConnectivityConfig holds connectivity monitor settings.
type ConnectivityConfig struct {
	ProbeInterval time.Duration `envconfig:"PROBE_INTERVAL" default:"60s"`
	ProbeTimeout  time.Duration `envconfig:"PROBE_TIMEOUT" default:"5s"`
}

// RetryConfig holds retry executor settings.
type RetryConfig struct {
	MaxRetries   int           `envconfig:"RETRY_MAX_RETRIES" default:"3"`
	InitialDelay time.Duration `envconfig:"RETRY_INITIAL_DELAY" default:"1s"`
}

// NotifyConfig holds change-notification stream settings.
type NotifyConfig struct {
	Type          string `envconfig:"NOTIFY_TYPE" default:"redis"` // redis or memory
	RedisHost     string `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort     int    `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
	ChannelPrefix string `envconfig:"NOTIFY_CHANNEL_PREFIX" default:"clinicsync:changes:"`
}

// Address returns the server address in host:port format.
func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// RedisAddress returns the Redis address in host:port format.
func (n *NotifyConfig) RedisAddress() string {
	return fmt.Sprintf("%s:%d", n.RedisHost, n.RedisPort)
}

// IsProduction returns true if running in production mode.
func (a *AppConfig) IsProduction() bool {
	return a.Environment == "production"
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration or panics on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}
