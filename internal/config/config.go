package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds process-level configuration read from the environment.
// The structured pipeline surface (providers, weights, deadlines) lives in
// the YAML file named by PipelinePath; see pipeline.go.
type Config struct {
	DatabasePath string
	HistoryDir   string // per-ticker read-only price archives
	PipelinePath string
	LogLevel     string
	Port         int
	DevMode      bool
	RunOnce      bool // run one pipeline cycle and exit with its status
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Port:         getEnvAsInt("PORT", 8010),
		DevMode:      getEnvAsBool("DEV_MODE", false),
		DatabasePath: getEnv("DATABASE_PATH", "./data/marketdata.db"),
		HistoryDir:   getEnv("HISTORY_DIR", "./data/history"),
		PipelinePath: getEnv("PIPELINE_CONFIG", "./config/pipeline.yaml"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		RunOnce:      getEnvAsBool("RUN_ONCE", false),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("DATABASE_PATH is required")
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
