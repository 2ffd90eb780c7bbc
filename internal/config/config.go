package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

type Config struct {
	Server    ServerConfig    `json:"server"`
	Redis     RedisConfig     `json:"redis"`
	Postgres  PostgresConfig  `json:"postgres"`
	RateLimit RateLimitConfig `json:"rate_limit"`
	Auth      AuthConfig      `json:"auth"`
}

type ServerConfig struct {
	Port        string `json:"port"`
	Environment string `json:"environment"`
}

type RedisConfig struct {
	Host     string `json:"host"`
	Port     string `json:"port"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

func (r *RedisConfig) GetRedisAddr() string {
	return r.Host + ":" + r.Port
}

type PostgresConfig struct {
	DSN string `json:"dsn"`
}

type RateLimitConfig struct {
	// When the counter store cannot be reached the engine fails closed and
	// rejects the request. Set FailOpen to admit without counting instead.
	FailOpen bool `json:"fail_open"`

	CacheTTLHours    int `json:"cache_ttl_hours"`
	KeyEventLimit    int `json:"key_event_limit"`
	GlobalEventLimit int `json:"global_event_limit"`

	// Durable decision logs older than this are swept out hourly
	LogRetentionDays int `json:"log_retention_days"`
}

type AuthConfig struct {
	JWTSecret   string `json:"jwt_secret"`
	ExpiryHours int    `json:"expiry_hours"`
}

func Load(path string) (*Config, error) {
	config := defaults()

	file, err := os.ReadFile(path)
	if err == nil {
		if err := json.Unmarshal(file, config); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	applyEnvOverrides(config)

	if config.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	return config, nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        "8080",
			Environment: "development",
		},
		Redis: RedisConfig{
			Host: "localhost",
			Port: "6379",
		},
		Postgres: PostgresConfig{
			DSN: "host=localhost user=postgres password=postgres dbname=ratelimiter port=5432 sslmode=disable",
		},
		RateLimit: RateLimitConfig{
			FailOpen:         false,
			CacheTTLHours:    24,
			KeyEventLimit:    1000,
			GlobalEventLimit: 10000,
			LogRetentionDays: 30,
		},
		Auth: AuthConfig{
			ExpiryHours: 24,
		},
	}
}

// Secrets come from the environment so they stay out of config.json
func applyEnvOverrides(config *Config) {
	if port := os.Getenv("PORT"); port != "" {
		config.Server.Port = port
	}
	if env := os.Getenv("ENVIRONMENT"); env != "" {
		config.Server.Environment = env
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		config.Redis.Password = password
	}
	if dsn := os.Getenv("POSTGRES_DSN"); dsn != "" {
		config.Postgres.DSN = dsn
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		config.Auth.JWTSecret = secret
	}
}

func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.RateLimit.CacheTTLHours) * time.Hour
}
