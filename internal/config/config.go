package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration for the order management service
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Venue     VenueConfig     `mapstructure:"venue"`
	Admission AdmissionConfig `mapstructure:"admission"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Log       LogConfig       `mapstructure:"log"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig represents relational store configuration
type DatabaseConfig struct {
	DSN             string `mapstructure:"dsn"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
}

// VenueConfig represents the outbound trade venue client configuration
type VenueConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// AdmissionConfig holds overload detector thresholds. Utilization
// thresholds are ratios in [0,1]; a threshold of 0 disables that probe.
type AdmissionConfig struct {
	GoroutineThreshold float64 `mapstructure:"goroutine_threshold"`
	DBPoolThreshold    float64 `mapstructure:"db_pool_threshold"`
	MemoryThreshold    float64 `mapstructure:"memory_threshold"`
	MaxGoroutines      int     `mapstructure:"max_goroutines"`
	GoroutineMargin    int     `mapstructure:"goroutine_margin"`
	MemoryLimitBytes   int64   `mapstructure:"memory_limit_bytes"`
	RetryAfterBase     int     `mapstructure:"retry_after_base"`
	RetryAfterMax      int     `mapstructure:"retry_after_max"`
}

// KafkaConfig represents batch event publishing configuration
type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
}

// LoadConfig loads configuration from an optional yaml file and
// OMS_-prefixed environment variables, applying defaults for anything
// left unset.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("OMS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if len(paths) == 0 {
		paths = []string{"./config.yaml", "./configs/config.yaml", "/etc/oms/config.yaml"}
	}
	for _, p := range paths {
		v.SetConfigFile(p)
		if err := v.ReadInConfig(); err == nil {
			break
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("database.dsn", "host=localhost user=oms password=oms dbname=oms port=5432 sslmode=disable")
	v.SetDefault("database.max_open_conns", 50)
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.conn_max_lifetime", 3600)

	v.SetDefault("venue.base_url", "http://localhost:9090")
	v.SetDefault("venue.timeout", 30*time.Second)

	v.SetDefault("admission.goroutine_threshold", 0.90)
	v.SetDefault("admission.db_pool_threshold", 0.95)
	v.SetDefault("admission.memory_threshold", 0.85)
	v.SetDefault("admission.max_goroutines", 10000)
	v.SetDefault("admission.goroutine_margin", 200)
	v.SetDefault("admission.memory_limit_bytes", 0)
	v.SetDefault("admission.retry_after_base", 60)
	v.SetDefault("admission.retry_after_max", 300)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "oms.batch.results")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 5)
}

func validate(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", cfg.Server.Port)
	}
	if cfg.Venue.BaseURL == "" {
		return fmt.Errorf("venue base_url must be set")
	}
	if cfg.Admission.RetryAfterBase <= 0 || cfg.Admission.RetryAfterMax < cfg.Admission.RetryAfterBase {
		return fmt.Errorf("invalid admission retry-after bounds [%d, %d]",
			cfg.Admission.RetryAfterBase, cfg.Admission.RetryAfterMax)
	}
	for _, t := range []float64{cfg.Admission.GoroutineThreshold, cfg.Admission.DBPoolThreshold, cfg.Admission.MemoryThreshold} {
		if t < 0 || t > 1 {
			return fmt.Errorf("admission thresholds must be ratios in [0,1]")
		}
	}
	return nil
}
