package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
// Environment variables are read here and nowhere else.
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database
	Database DatabaseConfig

	// Quality thresholds
	Quality QualityConfig

	// Pipeline execution
	Pipeline PipelineConfig

	// Logging
	LogLevel  string
	LogFormat string
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	URL      string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// QualityConfig holds the data-quality knobs consumed by the fact builder
// and the quality engine. Passed by value; the engine never reads ambient
// state.
type QualityConfig struct {
	DQThreshold        float64 // minimum passing score per metric group
	SuspiciousQuantity int     // |quantity| above this is an anomaly candidate
	OutlierSigma       float64 // z-score cutoff for daily revenue outliers
	ReturnRateBand     float64 // z-score band for return-rate anomalies
	ReturnPrefix       string  // invoice prefix marking a return
}

// DefaultQuality returns the standard quality thresholds.
func DefaultQuality() QualityConfig {
	return QualityConfig{
		DQThreshold:        0.95,
		SuspiciousQuantity: 1000,
		OutlierSigma:       3.0,
		ReturnRateBand:     2.0,
		ReturnPrefix:       "C",
	}
}

// PipelineConfig holds batch execution settings.
type PipelineConfig struct {
	Workers       int // fact-building partitions processed concurrently
	BatchSize     int // rows per persistence transaction
	RetentionDays int // staging rows older than this are cleaned up
}

// Load reads configuration from environment variables. Only this function
// calls os.Getenv().
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Port: getEnv("PORT", "8090"),
		Env:  getEnv("ENV", "development"),

		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			Name:            getEnv("DB_NAME", "retail_dw"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", ""),
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 5),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		Quality: QualityConfig{
			DQThreshold:        getEnvAsFloat("DQ_THRESHOLD", 0.95),
			SuspiciousQuantity: getEnvAsInt("DQ_SUSPICIOUS_QUANTITY", 1000),
			OutlierSigma:       getEnvAsFloat("DQ_OUTLIER_SIGMA", 3.0),
			ReturnRateBand:     getEnvAsFloat("DQ_RETURN_RATE_BAND", 2.0),
			ReturnPrefix:       getEnv("DQ_RETURN_PREFIX", "C"),
		},

		Pipeline: PipelineConfig{
			Workers:       getEnvAsInt("PIPELINE_WORKERS", 4),
			BatchSize:     getEnvAsInt("PIPELINE_BATCH_SIZE", 5000),
			RetentionDays: getEnvAsInt("STAGING_RETENTION_DAYS", 7),
		},

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// DSN returns the connection string, preferring DATABASE_URL.
func (d *DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

// validate checks required and bounded configuration values.
func (c *Config) validate() error {
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Quality.DQThreshold < 0 || c.Quality.DQThreshold > 1 {
		return fmt.Errorf("DQ_THRESHOLD must be within [0, 1], got %v", c.Quality.DQThreshold)
	}

	if c.Quality.OutlierSigma <= 0 {
		return fmt.Errorf("DQ_OUTLIER_SIGMA must be positive, got %v", c.Quality.OutlierSigma)
	}

	if c.Quality.ReturnPrefix == "" {
		return fmt.Errorf("DQ_RETURN_PREFIX must not be empty")
	}

	if c.Pipeline.Workers < 1 {
		return fmt.Errorf("PIPELINE_WORKERS must be at least 1, got %d", c.Pipeline.Workers)
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations.
func loadEnvFile() {
	paths := []string{
		".env",
	}

	// Also try relative to executable
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
