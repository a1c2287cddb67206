package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds engine-wide defaults. These are fallbacks the IR
// normaliser and batch engine reach for only when the workflow itself
// is silent on a setting.
type Config struct {
	Service ServiceConfig
	Engine  EngineConfig
}

// ServiceConfig holds process-level settings.
type ServiceConfig struct {
	Name      string
	LogLevel  string
	LogFormat string
}

// EngineConfig holds defaults applied during IR normalisation and
// batch compilation when the declaration omits them.
type EngineConfig struct {
	TemplateResolutionMode string
	BatchMaxConcurrent     int
	BatchMaxRetries        int
	BatchRetryWait         time.Duration
	// BinaryWarnSize is the advisory threshold above which the
	// instrumented wrapper logs a warning for a single binary value.
	BinaryWarnSize int64
}

// Load loads configuration from environment variables.
func Load(serviceName string) (*Config, error) {
	cfg := &Config{
		Service: ServiceConfig{
			Name:      serviceName,
			LogLevel:  getEnv("LOG_LEVEL", "info"),
			LogFormat: getEnv("LOG_FORMAT", "text"),
		},
		Engine: EngineConfig{
			TemplateResolutionMode: getEnv("TEMPLATE_RESOLUTION_MODE", "strict"),
			BatchMaxConcurrent:     getEnvInt("BATCH_MAX_CONCURRENT", 10),
			BatchMaxRetries:        getEnvInt("BATCH_MAX_RETRIES", 1),
			BatchRetryWait:         getEnvDuration("BATCH_RETRY_WAIT", 0),
			BinaryWarnSize:         int64(getEnvInt("BINARY_WARN_SIZE_BYTES", 50*1024*1024)),
		},
	}

	return cfg, cfg.Validate()
}

// Validate checks if configuration is valid.
func (c *Config) Validate() error {
	if c.Engine.TemplateResolutionMode != "strict" && c.Engine.TemplateResolutionMode != "lenient" {
		return fmt.Errorf("invalid template_resolution_mode: %s", c.Engine.TemplateResolutionMode)
	}
	if c.Engine.BatchMaxConcurrent < 1 || c.Engine.BatchMaxConcurrent > 100 {
		return fmt.Errorf("batch_max_concurrent out of range [1,100]: %d", c.Engine.BatchMaxConcurrent)
	}
	if c.Engine.BatchMaxRetries < 1 || c.Engine.BatchMaxRetries > 10 {
		return fmt.Errorf("batch_max_retries out of range [1,10]: %d", c.Engine.BatchMaxRetries)
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

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
