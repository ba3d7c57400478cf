// Package config loads engine configuration from an optional YAML file
// overlaid with environment variables. Environment wins.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all engine configuration
type Config struct {
	// Server configuration
	ServerAddress string `yaml:"serverAddress"`
	Environment   string `yaml:"environment"`

	// Local storage
	DatabasePath string `yaml:"databasePath"`
	InMemory     bool   `yaml:"inMemory"`

	// Remote backend
	SupabaseURL string `yaml:"supabaseUrl"`
	SupabaseKey string `yaml:"supabaseKey"`
	UserID      string `yaml:"userId"`

	// Scheduling
	CollectInterval      time.Duration `yaml:"collectInterval"`
	DrainInterval        time.Duration `yaml:"drainInterval"`
	ConnectivityInterval time.Duration `yaml:"connectivityInterval"`
	CleanupInterval      time.Duration `yaml:"cleanupInterval"`
	RetentionDays        int           `yaml:"retentionDays"`

	// Logging and features
	LogLevel      string `yaml:"logLevel"`
	EnableMetrics bool   `yaml:"enableMetrics"`
	EnableCORS    bool   `yaml:"enableCors"`
}

// Load reads the optional YAML file named by CONFIG_FILE, then applies
// environment overrides and defaults, then validates.
func Load() (*Config, error) {
	cfg := &Config{}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.ServerAddress = getEnv("SERVER_ADDRESS", c.ServerAddress)
	c.Environment = getEnv("ENVIRONMENT", c.Environment)
	c.DatabasePath = getEnv("DATABASE_PATH", c.DatabasePath)
	c.InMemory = getEnvBool("IN_MEMORY", c.InMemory)
	c.SupabaseURL = getEnv("SUPABASE_URL", c.SupabaseURL)
	c.SupabaseKey = getEnv("SUPABASE_SERVICE_ROLE_KEY", c.SupabaseKey)
	c.UserID = getEnv("USER_ID", c.UserID)
	c.CollectInterval = getEnvDuration("COLLECT_INTERVAL", c.CollectInterval)
	c.DrainInterval = getEnvDuration("DRAIN_INTERVAL", c.DrainInterval)
	c.ConnectivityInterval = getEnvDuration("CONNECTIVITY_INTERVAL", c.ConnectivityInterval)
	c.CleanupInterval = getEnvDuration("CLEANUP_INTERVAL", c.CleanupInterval)
	c.RetentionDays = getEnvInt("RETENTION_DAYS", c.RetentionDays)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.EnableMetrics = getEnvBool("ENABLE_METRICS", c.EnableMetrics)
	c.EnableCORS = getEnvBool("ENABLE_CORS", c.EnableCORS)
}

func (c *Config) applyDefaults() {
	if c.ServerAddress == "" {
		c.ServerAddress = ":8080"
	}
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.DatabasePath == "" {
		c.DatabasePath = "data/healthsync.db"
	}
	if c.CollectInterval == 0 {
		c.CollectInterval = 15 * time.Minute
	}
	if c.DrainInterval == 0 {
		c.DrainInterval = time.Minute
	}
	if c.ConnectivityInterval == 0 {
		c.ConnectivityInterval = 30 * time.Second
	}
	if c.CleanupInterval == 0 {
		c.CleanupInterval = 24 * time.Hour
	}
	if c.RetentionDays == 0 {
		c.RetentionDays = 30
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Validate checks that required configuration is present
func (c *Config) Validate() error {
	if c.RetentionDays < 1 {
		return fmt.Errorf("RETENTION_DAYS must be at least 1")
	}
	if c.IsProduction() {
		if c.SupabaseURL == "" {
			return fmt.Errorf("SUPABASE_URL is required in production")
		}
		if c.SupabaseKey == "" {
			return fmt.Errorf("SUPABASE_SERVICE_ROLE_KEY is required in production")
		}
	}
	return nil
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvDuration gets a duration environment variable with a default value
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
