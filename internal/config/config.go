package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Provider ProviderConfig `mapstructure:"provider"`
	Security SecurityConfig `mapstructure:"security"`
	Email    EmailConfig    `mapstructure:"email"`
	Worker   WorkerConfig   `mapstructure:"worker"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Alerts   AlertConfig    `mapstructure:"alerts"`
}

type ServerConfig struct {
	Port           int     `mapstructure:"port" envconfig:"SERVER_PORT"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds" envconfig:"SERVER_TIMEOUT_SECONDS"`
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps" envconfig:"SERVER_RATE_LIMIT_RPS"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst" envconfig:"SERVER_RATE_LIMIT_BURST"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host" envconfig:"DB_HOST"`
	Port     int    `mapstructure:"port" envconfig:"DB_PORT"`
	User     string `mapstructure:"user" envconfig:"DB_USER"`
	Password string `mapstructure:"password" envconfig:"DB_PASSWORD"`
	Name     string `mapstructure:"name" envconfig:"DB_NAME"`
	SSLMode  string `mapstructure:"sslmode" envconfig:"DB_SSLMODE"`
}

// DSN renders the lib/pq connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

type RedisConfig struct {
	URL          string `mapstructure:"url" envconfig:"REDIS_URL"`
	MaxRetries   int    `mapstructure:"max_retries" envconfig:"REDIS_MAX_RETRIES"`
	PoolSize     int    `mapstructure:"pool_size" envconfig:"REDIS_POOL_SIZE"`
	MinIdleConns int    `mapstructure:"min_idle_conns" envconfig:"REDIS_MIN_IDLE_CONNS"`
}

// ProviderConfig points at the upstream messaging gateway.
type ProviderConfig struct {
	BaseURL        string  `mapstructure:"base_url" envconfig:"PROVIDER_BASE_URL"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds" envconfig:"PROVIDER_TIMEOUT_SECONDS"`
	RequestsPerSec float64 `mapstructure:"requests_per_sec" envconfig:"PROVIDER_REQUESTS_PER_SEC"`
	Burst          int     `mapstructure:"burst" envconfig:"PROVIDER_BURST"`
}

type SecurityConfig struct {
	// EncryptionKey must decode to exactly 32 bytes; provider credentials
	// are encrypted with it at rest.
	EncryptionKey string `mapstructure:"encryption_key" envconfig:"ENCRYPTION_KEY"`
}

type EmailConfig struct {
	Host     string `mapstructure:"host" envconfig:"SMTP_HOST"`
	Port     int    `mapstructure:"port" envconfig:"SMTP_PORT"`
	Username string `mapstructure:"username" envconfig:"SMTP_USERNAME"`
	Password string `mapstructure:"password" envconfig:"SMTP_PASSWORD"`
	From     string `mapstructure:"from" envconfig:"SMTP_FROM"`
}

type WorkerConfig struct {
	QueueTickSeconds   int `mapstructure:"queue_tick_seconds" envconfig:"WORKER_QUEUE_TICK_SECONDS"`
	HealthCheckSeconds int `mapstructure:"health_check_seconds" envconfig:"WORKER_HEALTH_CHECK_SECONDS"`
}

func (c WorkerConfig) QueueTick() time.Duration {
	return time.Duration(c.QueueTickSeconds) * time.Second
}

func (c WorkerConfig) HealthCheckInterval() time.Duration {
	return time.Duration(c.HealthCheckSeconds) * time.Second
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" envconfig:"LOG_LEVEL"`
	Pretty bool   `mapstructure:"pretty" envconfig:"LOG_PRETTY"`
}

type AlertConfig struct {
	NotifyEmail string `mapstructure:"notify_email" envconfig:"ALERT_NOTIFY_EMAIL"`
}

// LoadConfig reads the optional yaml file, then lets BRIDGE_* environment
// variables override it.
func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	var config Config
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := envconfig.Process("BRIDGE", &config); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}

	config.applyDefaults()
	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.TimeoutSeconds == 0 {
		c.Server.TimeoutSeconds = 60
	}
	if c.Server.RateLimitRPS == 0 {
		c.Server.RateLimitRPS = 100
	}
	if c.Server.RateLimitBurst == 0 {
		c.Server.RateLimitBurst = 200
	}
	if c.Database.Host == "" {
		c.Database.Host = "localhost"
	}
	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Redis.URL == "" {
		c.Redis.URL = "redis://localhost:6379/0"
	}
	if c.Redis.MaxRetries == 0 {
		c.Redis.MaxRetries = 3
	}
	if c.Redis.PoolSize == 0 {
		c.Redis.PoolSize = 10
	}
	if c.Redis.MinIdleConns == 0 {
		c.Redis.MinIdleConns = 2
	}
	if c.Provider.TimeoutSeconds == 0 {
		c.Provider.TimeoutSeconds = 45
	}
	if c.Provider.RequestsPerSec == 0 {
		c.Provider.RequestsPerSec = 20
	}
	if c.Provider.Burst == 0 {
		c.Provider.Burst = 40
	}
	if c.Email.Port == 0 {
		c.Email.Port = 587
	}
	if c.Worker.QueueTickSeconds == 0 {
		c.Worker.QueueTickSeconds = 3
	}
	if c.Worker.HealthCheckSeconds == 0 {
		c.Worker.HealthCheckSeconds = 60
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}
