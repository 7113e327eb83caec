package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type AppConfig struct {
	Env      string `yaml:"env"`
	LogLevel string `yaml:"log_level"`

	// Backend
	APIBaseURL  string `yaml:"api_base_url"`
	RealtimeURL string `yaml:"realtime_url"`

	// Loopback consumer API
	HTTPAddr string `yaml:"http_addr"`

	// Token store
	StoreDriver     string `yaml:"store_driver"`
	StorePath       string `yaml:"store_path"`
	StorePassphrase string `yaml:"store_passphrase"`
	RedisAddr       string `yaml:"redis_addr"`
	RedisPass       string `yaml:"redis_pass"`
	RedisDB         int    `yaml:"redis_db"`
	RedisPrefix     string `yaml:"redis_prefix"`
	DatabaseURL     string `yaml:"database_url"`

	// Token lifecycle
	TokenTTL          time.Duration `yaml:"token_ttl"`
	RefreshMargin     time.Duration `yaml:"refresh_margin"`
	TokenExpirySource string        `yaml:"token_expiry_source"`

	// Realtime
	ReconnectAttempts int           `yaml:"reconnect_attempts"`
	ReconnectBackoff  time.Duration `yaml:"reconnect_backoff"`

	// Reconciliation
	PollInterval time.Duration `yaml:"poll_interval"`
	RecentCap    int           `yaml:"recent_cap"`

	// Optional headless sign-in
	AuthEmail         string `yaml:"auth_email"`
	AuthPassword      string `yaml:"auth_password"`
	FederatedProvider string `yaml:"federated_provider"`
	FederatedIDToken  string `yaml:"federated_id_token"`
}

// Defaults returns the built-in configuration.
func Defaults() AppConfig {
	return AppConfig{
		Env:               "development",
		LogLevel:          "info",
		APIBaseURL:        "http://localhost:3000/api",
		RealtimeURL:       "ws://localhost:3000/ws",
		HTTPAddr:          "127.0.0.1:8790",
		StoreDriver:       "file",
		StorePath:         ".soulchat/session.json",
		RedisAddr:         "localhost:6379",
		RedisPrefix:       "soulchat",
		TokenTTL:          24 * time.Hour,
		RefreshMargin:     5 * time.Minute,
		TokenExpirySource: "fixed",
		ReconnectAttempts: 5,
		ReconnectBackoff:  2 * time.Second,
		PollInterval:      30 * time.Second,
		RecentCap:         50,
	}
}

// Load builds the config from defaults, an optional CONFIG_FILE (YAML) and the
// environment, in that order of precedence (env wins).
func Load() (AppConfig, error) {
	cfg := Defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return cfg, err
		}
	}

	cfg.Env = getEnv("APP_ENV", cfg.Env)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.APIBaseURL = strings.TrimRight(getEnv("API_BASE_URL", cfg.APIBaseURL), "/")
	cfg.RealtimeURL = getEnv("REALTIME_URL", cfg.RealtimeURL)
	cfg.HTTPAddr = getEnv("HTTP_ADDR", cfg.HTTPAddr)

	cfg.StoreDriver = strings.ToLower(getEnv("STORE_DRIVER", cfg.StoreDriver))
	cfg.StorePath = getEnv("STORE_PATH", cfg.StorePath)
	cfg.StorePassphrase = getEnv("STORE_PASSPHRASE", cfg.StorePassphrase)
	cfg.RedisAddr = getEnv("REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPass = getEnv("REDIS_PASS", cfg.RedisPass)
	cfg.RedisPrefix = getEnv("REDIS_PREFIX", cfg.RedisPrefix)
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.TokenExpirySource = strings.ToLower(getEnv("TOKEN_EXPIRY_SOURCE", cfg.TokenExpirySource))

	cfg.AuthEmail = getEnv("AUTH_EMAIL", cfg.AuthEmail)
	cfg.AuthPassword = getEnv("AUTH_PASSWORD", cfg.AuthPassword)
	cfg.FederatedProvider = getEnv("FEDERATED_PROVIDER", cfg.FederatedProvider)
	cfg.FederatedIDToken = getEnv("FEDERATED_ID_TOKEN", cfg.FederatedIDToken)

	var err error
	if cfg.RedisDB, err = getEnvInt("REDIS_DB", cfg.RedisDB); err != nil {
		return cfg, err
	}
	if cfg.ReconnectAttempts, err = getEnvInt("RECONNECT_ATTEMPTS", cfg.ReconnectAttempts); err != nil {
		return cfg, err
	}
	if cfg.RecentCap, err = getEnvInt("RECENT_CAP", cfg.RecentCap); err != nil {
		return cfg, err
	}
	if cfg.TokenTTL, err = getEnvDuration("TOKEN_TTL", cfg.TokenTTL); err != nil {
		return cfg, err
	}
	if cfg.RefreshMargin, err = getEnvDuration("REFRESH_MARGIN", cfg.RefreshMargin); err != nil {
		return cfg, err
	}
	if cfg.ReconnectBackoff, err = getEnvDuration("RECONNECT_BACKOFF", cfg.ReconnectBackoff); err != nil {
		return cfg, err
	}
	if cfg.PollInterval, err = getEnvDuration("POLL_INTERVAL", cfg.PollInterval); err != nil {
		return cfg, err
	}

	return cfg, cfg.Validate()
}

// Validate rejects settings the agent cannot run with.
func (c AppConfig) Validate() error {
	switch c.StoreDriver {
	case "memory", "file", "redis", "postgres":
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	switch c.TokenExpirySource {
	case "fixed", "claims":
	default:
		return fmt.Errorf("unknown TOKEN_EXPIRY_SOURCE %q", c.TokenExpirySource)
	}
	if c.StoreDriver == "postgres" && c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required for the postgres store")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be positive")
	}
	if c.RecentCap <= 0 {
		return fmt.Errorf("RECENT_CAP must be positive")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be positive")
	}
	return nil
}

// IsProduction reports whether production logging should be used.
func (c AppConfig) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

func loadFile(path string, cfg *AppConfig) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

// --- Helper functions ---

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
