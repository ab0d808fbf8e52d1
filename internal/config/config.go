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

// Config holds all agent configuration loaded from environment variables.
type Config struct {
	Server     ServerConfig
	App        AppConfig
	Backend    BackendConfig
	QueueStore QueueStoreConfig
	CacheStore CacheStoreConfig
	Sync       SyncConfig
}

// ServerConfig holds the local HTTP server settings.
type ServerConfig struct {
	Host            string        `envconfig:"AGENT_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"AGENT_PORT" default:"7315"`
	ReadTimeout     time.Duration `envconfig:"AGENT_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"AGENT_WRITE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `envconfig:"AGENT_SHUTDOWN_TIMEOUT" default:"30s"`
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Name        string `envconfig:"APP_NAME" default:"tillbridge-agent"`
	Environment string `envconfig:"APP_ENV" default:"development"`
	Debug       bool   `envconfig:"APP_DEBUG" default:"false"`
	Version     string `envconfig:"APP_VERSION" default:"1.0.0"`
	StoreID     string `envconfig:"STORE_ID" default:""` // tenant scope for this agent
}

// BackendConfig holds settings for the retail backend this agent syncs with.
type BackendConfig struct {
	BaseURL  string        `envconfig:"BACKEND_BASE_URL" default:"http://localhost:8080"`
	APIToken string        `envconfig:"BACKEND_API_TOKEN" default:""`
	PingPath string        `envconfig:"BACKEND_PING_PATH" default:"/api/v1/health"`
	Timeout  time.Duration `envconfig:"BACKEND_TIMEOUT" default:"30s"`
}

// QueueStoreConfig holds durable queue storage settings.
type QueueStoreConfig struct {
	Type string `envconfig:"QUEUE_STORE_TYPE" default:"sqlite"` // sqlite, redis, mysql, or memory
	Path string `envconfig:"QUEUE_DB_PATH" default:"./data/queue.db"`
	// Redis settings (shared LAN cache box deployments)
	RedisHost     string `envconfig:"QUEUE_REDIS_HOST" default:"localhost"`
	RedisPort     int    `envconfig:"QUEUE_REDIS_PORT" default:"6379"`
	RedisPassword string `envconfig:"QUEUE_REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"QUEUE_REDIS_DB" default:"0"`
	KeyPrefix     string `envconfig:"QUEUE_KEY_PREFIX" default:"tillbridge:sync"`
	// MySQL settings (stores with a LAN back-office database)
	MySQLHost string `envconfig:"QUEUE_MYSQL_HOST" default:"localhost"`
	MySQLPort int    `envconfig:"QUEUE_MYSQL_PORT" default:"3306"`
	MySQLName string `envconfig:"QUEUE_MYSQL_NAME" default:"tillbridge"`
	MySQLUser string `envconfig:"QUEUE_MYSQL_USER" default:"root"`
	MySQLPass string `envconfig:"QUEUE_MYSQL_PASS" default:""`
}

// CacheStoreConfig holds product cache storage settings.
type CacheStoreConfig struct {
	Type string        `envconfig:"CACHE_STORE_TYPE" default:"sqlite"` // sqlite or memory
	Path string        `envconfig:"CACHE_DB_PATH" default:"./data/products.db"`
	TTL  time.Duration `envconfig:"CACHE_TTL" default:"24h"`
}

// SyncConfig holds queue drain and connectivity settings.
type SyncConfig struct {
	Interval             time.Duration `envconfig:"SYNC_INTERVAL" default:"5s"`
	MaxRetries           int           `envconfig:"SYNC_MAX_RETRIES" default:"5"`
	BaseDelay            time.Duration `envconfig:"SYNC_BASE_DELAY" default:"1s"`
	OpPause              time.Duration `envconfig:"SYNC_OP_PAUSE" default:"500ms"`
	PageSize             int           `envconfig:"SYNC_PAGE_SIZE" default:"100"`
	ConnectivityInterval time.Duration `envconfig:"CONNECTIVITY_INTERVAL" default:"10s"`
}

// RedisAddress returns the queue Redis address in host:port format.
func (q *QueueStoreConfig) RedisAddress() string {
	return fmt.Sprintf("%s:%d", q.RedisHost, q.RedisPort)
}

// MySQLDSN returns the queue MySQL data source name.
func (q *QueueStoreConfig) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		q.MySQLUser, q.MySQLPass, q.MySQLHost, q.MySQLPort, q.MySQLName)
}

// Address returns the local server address in host:port format.
func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// IsDevelopment returns true if running in development mode.
func (a *AppConfig) IsDevelopment() bool {
	return a.Environment == "development"
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
