package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/rpattn/changereport/internal/db"
)

const envPrefix = "CHANGEREPORT"

// Config is the complete service configuration.
type Config struct {
	Database db.Config    `mapstructure:"database"`
	Server   ServerConfig `mapstructure:"server"`
	Report   ReportConfig `mapstructure:"report"`
	Cache    CacheConfig  `mapstructure:"cache"`
	Log      LogConfig    `mapstructure:"log"`
	Tables   TablesConfig `mapstructure:"tables"`
}

type ServerConfig struct {
	Addr           string        `mapstructure:"addr"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

// ReportConfig tunes the reporting engine.
type ReportConfig struct {
	DefaultTimeout time.Duration `mapstructure:"default_timeout"`
	MaxWindowSpan  time.Duration `mapstructure:"max_window_span"`
	PageSize       int           `mapstructure:"page_size"`
	Concurrency    int           `mapstructure:"concurrency"`
	// LiveFallback enables reading live tables when history is incomplete.
	LiveFallback bool `mapstructure:"live_fallback"`
}

// Cache backends.
const (
	CacheNone   = "none"
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

type CacheConfig struct {
	Backend  string        `mapstructure:"backend"`
	Size     int           `mapstructure:"size"`
	RedisURL string        `mapstructure:"redis_url"`
	Prefix   string        `mapstructure:"prefix"`
	TTL      time.Duration `mapstructure:"ttl"`
	// Settle is how long a window must have been closed before its report is cached.
	Settle time.Duration `mapstructure:"settle"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TablesConfig overrides table names per entity kind. Kinds without an entry
// use <kind>_history for history and <kind> for the live table.
type TablesConfig struct {
	History       map[string]string `mapstructure:"history"`
	Live          map[string]string `mapstructure:"live"`
	UpdatedColumn string            `mapstructure:"updated_column"`
}

// HistoryTable returns the history table for kind.
func (t TablesConfig) HistoryTable(kind string) string {
	if name, ok := t.History[kind]; ok && name != "" {
		return name
	}
	return kind + "_history"
}

// LiveTable returns the live table for kind.
func (t TablesConfig) LiveTable(kind string) string {
	if name, ok := t.Live[kind]; ok && name != "" {
		return name
	}
	return kind
}

func setDefaults(v *viper.Viper) {
	dbDefaults := db.DefaultConfig()
	v.SetDefault("database.host", dbDefaults.Host)
	v.SetDefault("database.port", dbDefaults.Port)
	v.SetDefault("database.user", dbDefaults.User)
	v.SetDefault("database.password", dbDefaults.Password)
	v.SetDefault("database.dbname", dbDefaults.DBName)
	v.SetDefault("database.sslmode", dbDefaults.SSLMode)
	v.SetDefault("database.max_conns", dbDefaults.MaxConns)
	v.SetDefault("database.min_conns", dbDefaults.MinConns)
	v.SetDefault("database.migrate", dbDefaults.Migrate)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})

	v.SetDefault("report.default_timeout", 30*time.Second)
	v.SetDefault("report.max_window_span", 20*365*24*time.Hour)
	v.SetDefault("report.page_size", 100)
	v.SetDefault("report.concurrency", 4)
	v.SetDefault("report.live_fallback", true)

	v.SetDefault("cache.backend", CacheMemory)
	v.SetDefault("cache.size", 256)
	v.SetDefault("cache.redis_url", "redis://localhost:6379/0")
	v.SetDefault("cache.prefix", "changereport:")
	v.SetDefault("cache.ttl", 24*time.Hour)
	v.SetDefault("cache.settle", 5*time.Minute)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("tables.updated_column", "updated_at")
}

// Load reads config.yaml from configPath (optional) and applies CHANGEREPORT_*
// environment overrides, e.g. CHANGEREPORT_DATABASE_HOST. The returned string
// is the config file used, empty when running on defaults and env only.
func Load(configPath string) (Config, string, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var used string
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, "", fmt.Errorf("failed to read config: %w", err)
		}
	} else {
		used = v.ConfigFileUsed()
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, "", fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, "", err
	}
	return cfg, used, nil
}

// Validate rejects settings the service cannot start with.
func (c Config) Validate() error {
	switch c.Cache.Backend {
	case CacheNone, CacheMemory, CacheRedis:
	default:
		return fmt.Errorf("unsupported cache backend %q", c.Cache.Backend)
	}
	if c.Cache.Backend == CacheRedis && c.Cache.RedisURL == "" {
		return fmt.Errorf("cache.redis_url is required for the redis backend")
	}
	if c.Cache.Settle < 0 {
		return fmt.Errorf("cache.settle must not be negative")
	}
	if c.Report.Concurrency < 1 {
		return fmt.Errorf("report.concurrency must be positive, got %d", c.Report.Concurrency)
	}
	if c.Report.PageSize < 1 {
		return fmt.Errorf("report.page_size must be positive, got %d", c.Report.PageSize)
	}
	if c.Report.MaxWindowSpan <= 0 {
		return fmt.Errorf("report.max_window_span must be positive")
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unsupported log format %q", c.Log.Format)
	}
	return nil
}

// NewLogger builds the service logger from the log section.
func (c LogConfig) NewLogger() (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(c.Level)
	if err != nil {
		return nil, fmt.Errorf("log.level: %w", err)
	}
	logger := logrus.New()
	logger.SetLevel(level)
	if c.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger, nil
}
