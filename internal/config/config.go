package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration values. Keys are read from an optional
// config.yaml and overridden by environment variables of the same name.
type Config struct {
	Env      string `mapstructure:"ENV"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	AppPort           string `mapstructure:"APP_PORT"`
	GRPCAddr          string `mapstructure:"GRPC_ADDR"`
	MaxRequestsPerMin int    `mapstructure:"MAX_REQUESTS_PER_MIN"`

	// Database.
	DBDriver             string `mapstructure:"DB_DRIVER"`
	SQLitePath           string `mapstructure:"SQLITE_PATH"`
	DBHost               string `mapstructure:"DB_HOST"`
	DBPort               int    `mapstructure:"DB_PORT"`
	DBUser               string `mapstructure:"DB_USER"`
	DBPassword           string `mapstructure:"DB_PASSWORD"`
	DBName               string `mapstructure:"DB_NAME"`
	DBSSLMode            string `mapstructure:"DB_SSLMODE"`
	DBTimeZone           string `mapstructure:"DB_TIMEZONE"`
	DBMaxOpenConns       int    `mapstructure:"DB_MAX_OPEN_CONNS"`
	DBMaxIdleConns       int    `mapstructure:"DB_MAX_IDLE_CONNS"`
	DBConnMaxLifetimeMin int    `mapstructure:"DB_CONN_MAX_LIFETIME_MIN"`
	DBSerializable       bool   `mapstructure:"DB_SERIALIZABLE"`

	// Slot locking.
	LockBackend   string        `mapstructure:"LOCK_BACKEND"`
	LockWait      time.Duration `mapstructure:"LOCK_WAIT"`
	LockTTL       time.Duration `mapstructure:"LOCK_TTL"`
	RedisAddr     string        `mapstructure:"REDIS_ADDR"`
	RedisPassword string        `mapstructure:"REDIS_PASSWORD"`
	RedisLockDB   int           `mapstructure:"REDIS_LOCK_DB"`

	// Booking lifecycle.
	HoldWindow     time.Duration `mapstructure:"HOLD_WINDOW"`
	ExpirySchedule string        `mapstructure:"EXPIRY_SCHEDULE"`
	ExpiryBatch    int           `mapstructure:"EXPIRY_BATCH"`
}

// DBConfig — параметры подключения к БД.
type DBConfig struct {
	Driver          string
	SQLitePath      string
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	TimeZone        string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifeTime int // минут
}

var defaults = map[string]any{
	"ENV":                      "development",
	"LOG_LEVEL":                "info",
	"APP_PORT":                 "8080",
	"GRPC_ADDR":                ":50051",
	"MAX_REQUESTS_PER_MIN":     200,
	"DB_DRIVER":                "postgres",
	"SQLITE_PATH":              "booking.db",
	"DB_HOST":                  "postgres",
	"DB_PORT":                  5432,
	"DB_USER":                  "booking",
	"DB_PASSWORD":              "booking",
	"DB_NAME":                  "booking_db",
	"DB_SSLMODE":               "disable",
	"DB_TIMEZONE":              "UTC",
	"DB_MAX_OPEN_CONNS":        10,
	"DB_MAX_IDLE_CONNS":        5,
	"DB_CONN_MAX_LIFETIME_MIN": 30,
	"DB_SERIALIZABLE":          true,
	"LOCK_BACKEND":             "local",
	"LOCK_WAIT":                "3s",
	"LOCK_TTL":                 "15s",
	"REDIS_ADDR":               "localhost:6379",
	"REDIS_PASSWORD":           "",
	"REDIS_LOCK_DB":            3,
	"HOLD_WINDOW":              "15m",
	"EXPIRY_SCHEDULE":          "@every 1m",
	"EXPIRY_BATCH":             100,
}

// Load reads config.yaml from configPath (or "." and "./config" when empty)
// and the environment. A missing config file is not an error.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if configPath != "" {
		v.AddConfigPath(configPath)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}
	v.AutomaticEnv()

	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// минимальная валидация
func (c *Config) Validate() error {
	switch c.DBDriver {
	case "postgres":
		if c.DBHost == "" || c.DBUser == "" || c.DBName == "" {
			return errors.New("invalid DB config: host/user/name must not be empty")
		}
	case "sqlite":
		if c.SQLitePath == "" {
			return errors.New("invalid DB config: sqlite path must not be empty")
		}
	default:
		return fmt.Errorf("invalid DB config: unknown driver %q", c.DBDriver)
	}
	switch c.LockBackend {
	case "local", "redis":
	default:
		return fmt.Errorf("invalid lock backend %q", c.LockBackend)
	}
	if c.LockWait <= 0 {
		return errors.New("LOCK_WAIT must be positive")
	}
	if c.HoldWindow <= 0 {
		return errors.New("HOLD_WINDOW must be positive")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

func (c *Config) DB() *DBConfig {
	return &DBConfig{
		Driver:          c.DBDriver,
		SQLitePath:      c.SQLitePath,
		Host:            c.DBHost,
		Port:            c.DBPort,
		User:            c.DBUser,
		Password:        c.DBPassword,
		Name:            c.DBName,
		SSLMode:         c.DBSSLMode,
		TimeZone:        c.DBTimeZone,
		MaxOpenConns:    c.DBMaxOpenConns,
		MaxIdleConns:    c.DBMaxIdleConns,
		ConnMaxLifeTime: c.DBConnMaxLifetimeMin,
	}
}
