package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Roles    RolesConfig    `mapstructure:"roles"`
	Log      LogConfig      `mapstructure:"log"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	Mode           string   `mapstructure:"mode"` // "development" or "production"
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"`            // "sqlite" or "postgres"
	DSN             string `mapstructure:"dsn"`               // Connection string
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`    // Maximum idle connections (Postgres)
	MaxOpenConns    int    `mapstructure:"max_open_conns"`    // Maximum open connections (Postgres)
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"` // Connection max lifetime in minutes (Postgres)
	LogLevel        string `mapstructure:"log_level"`         // gorm log level, defaults to log.level
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTSecret     string `mapstructure:"jwt_secret"`     // Secret for JWT signing
	CookieSecure  bool   `mapstructure:"cookie_secure"`  // Set Secure on the session cookie
	CaptchaStore  string `mapstructure:"captcha_store"`  // "memory" or "valkey"
	CaptchaBypass string `mapstructure:"captcha_bypass"` // Accept this word for any captcha (empty disables)
}

// StorageConfig selects the key-value backend that holds role snapshots
type StorageConfig struct {
	Type       string `mapstructure:"type"`        // "memory", "file", "database" or "valkey"
	Dir        string `mapstructure:"dir"`         // Directory for the file backend
	ValkeyAddr string `mapstructure:"valkey_addr"` // Valkey address, e.g. "localhost:6379"
	KeyPrefix  string `mapstructure:"key_prefix"`  // Prefix for valkey keys
}

// RolesConfig holds role manager behaviour switches
type RolesConfig struct {
	IDPolicy           string `mapstructure:"id_policy"`           // "active_and_trash" or "active_only"
	OnDelete           string `mapstructure:"on_delete"`           // "nullify" or "block"
	SearchDescriptions bool   `mapstructure:"search_descriptions"` // Match descriptions as well as names
}

// LogConfig holds logging configuration
type LogConfig struct {
	Format string `mapstructure:"format"` // "json" or "text"
	Level  string `mapstructure:"level"`  // "debug", "info", "warn", "error"
}

// Load reads configuration from .env, file and environment variables
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("Failed to load .env file", "error", err)
	}

	v := viper.New()

	// Set defaults for local development
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.mode", "development")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:8000", "http://127.0.0.1:8000"})
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "./hrdesk.db")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.conn_max_lifetime", 60) // 60 minutes
	v.SetDefault("auth.jwt_secret", "change-me-in-production")
	v.SetDefault("auth.cookie_secure", false)
	v.SetDefault("auth.captcha_store", "memory")
	v.SetDefault("auth.captcha_bypass", "")
	v.SetDefault("storage.type", "database")
	v.SetDefault("storage.dir", "./data")
	v.SetDefault("storage.valkey_addr", "localhost:6379")
	v.SetDefault("storage.key_prefix", "hrdesk:")
	v.SetDefault("roles.id_policy", "active_and_trash")
	v.SetDefault("roles.on_delete", "nullify")
	v.SetDefault("roles.search_descriptions", true)
	v.SetDefault("log.format", "text")
	v.SetDefault("log.level", "info")

	// Read from config file if exists
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/hrdesk/")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found, using defaults
	}

	// Environment variables override
	v.SetEnvPrefix("HRDESK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects option values the server cannot act on
func (c *Config) Validate() error {
	switch c.Storage.Type {
	case "memory", "file", "database", "valkey":
	default:
		return fmt.Errorf("unsupported storage type: %s (supported: memory, file, database, valkey)", c.Storage.Type)
	}
	switch c.Auth.CaptchaStore {
	case "memory", "valkey":
	default:
		return fmt.Errorf("unsupported captcha store: %s (supported: memory, valkey)", c.Auth.CaptchaStore)
	}
	switch c.Roles.IDPolicy {
	case "active_and_trash", "active_only":
	default:
		return fmt.Errorf("unsupported role id policy: %s", c.Roles.IDPolicy)
	}
	switch c.Roles.OnDelete {
	case "nullify", "block":
	default:
		return fmt.Errorf("unsupported role on_delete policy: %s", c.Roles.OnDelete)
	}
	return nil
}
