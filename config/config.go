package config

import (
	"fmt"
	"os"
	"strconv"
	"sync"
)

// Config holds all application configuration
type Config struct {
	// Database configuration
	DatabaseURL string

	// Pipeline configuration
	RawDataFile string // CSV source consumed by the pipeline
	BatchSize   int    // rows per upsert batch
	SampleSize  int    // 0 means load the full file
	RulesFile   string // optional JSON override for transformation rules

	// Cache configuration
	RedisAddr string // empty disables the analytics cache

	// HTTP API configuration
	Port string

	// Environment
	Environment string // "development" or "production"
	LogLevel    string
}

var (
	instance *Config
	once     sync.Once
)

// Get returns the global configuration instance
func Get() *Config {
	once.Do(func() {
		var err error
		instance, err = load()
		if err != nil {
			panic(fmt.Sprintf("failed to load config: %v", err))
		}
	})
	return instance
}

// load loads configuration from environment variables
func load() (*Config, error) {
	config := &Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RawDataFile: os.Getenv("RAW_DATA_FILE"),
		RulesFile:   os.Getenv("RULES_FILE"),
		RedisAddr:   os.Getenv("REDIS_ADDR"),

		// Defaults
		BatchSize:   500,
		SampleSize:  0,
		Port:        "8080",
		Environment: os.Getenv("ENVIRONMENT"),
		LogLevel:    os.Getenv("LOG_LEVEL"),
	}

	// Override defaults if environment variables are set
	if batch := os.Getenv("BATCH_SIZE"); batch != "" {
		if parsed, err := strconv.Atoi(batch); err == nil && parsed > 0 {
			config.BatchSize = parsed
		}
	}
	if sample := os.Getenv("SAMPLE_SIZE"); sample != "" {
		if parsed, err := strconv.Atoi(sample); err == nil && parsed >= 0 {
			config.SampleSize = parsed
		}
	}
	if port := os.Getenv("PORT"); port != "" {
		config.Port = port
	}

	// Set default environment if not specified
	if config.Environment == "" {
		config.Environment = "development"
	}
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}

	if config.Environment != "test" {
		// Validate required configuration
		if config.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required")
		}
	}

	return config, nil
}
