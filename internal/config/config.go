// Package config loads the application configuration from the environment.
//
// Values are read once at startup, after godotenv has merged a local .env file
// into the process environment. Every setting has a default so the parser and
// the local sinks work without any configuration; cloud backends (Vision,
// Document AI, Sheets, OpenAI) only need their variables when selected.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"fatture/internal/logger"
)

// Supported OCR backends.
const (
	OCRBackendVision     = "vision"
	OCRBackendDocumentAI = "documentai"
	OCRBackendNone       = "none"
)

type Config struct {
	// Parser
	CatalogPath string

	// Text extraction
	OCRBackend   string
	OCRLanguages []string

	// Google Cloud Configuration
	GoogleCloudProject         string
	GoogleCloudLocation        string
	DocumentAIProcessorID      string
	DocumentAIProcessorVersion string

	// Sinks
	ExcelPath            string
	ExcelSheet           string
	GoogleSheetURL       string
	GoogleSheetWorksheet string
	DatabasePath         string

	// Batch processing
	BatchWorkers int

	// OpenAI Configuration
	OpenAIAPIKey         string
	OpenAIModel          string
	CompletionMaxRetries int

	// Logging Configuration
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

func Load() (*Config, error) {
	config := &Config{
		CatalogPath:                getEnv("TD_CATALOG_PATH", "TDxx fattura.help"),
		OCRBackend:                 strings.ToLower(getEnv("OCR_BACKEND", OCRBackendVision)),
		OCRLanguages:               splitList(getEnv("OCR_LANGUAGES", "it,en")),
		GoogleCloudProject:         getEnv("GOOGLE_CLOUD_PROJECT", getEnv("GOOGLE_PROJECT_ID", "")),
		GoogleCloudLocation:        getEnv("GOOGLE_CLOUD_LOCATION", getEnv("GOOGLE_LOCATION", "eu")),
		DocumentAIProcessorID:      getEnv("DOCUMENT_AI_PROCESSOR_ID", getEnv("GOOGLE_PROCESSOR_ID", "")),
		DocumentAIProcessorVersion: getEnv("DOCUMENT_AI_PROCESSOR_VERSION", ""),
		ExcelPath:                  getEnv("EXCEL_PATH", ""),
		ExcelSheet:                 getEnv("EXCEL_SHEET", "Fatture"),
		GoogleSheetURL:             getEnv("GOOGLE_SHEET_URL", ""),
		GoogleSheetWorksheet:       getEnv("GOOGLE_SHEET_WORKSHEET", "Fatture"),
		DatabasePath:               getEnv("DATABASE_PATH", "fatture.db"),
		BatchWorkers:               getEnvInt("BATCH_WORKERS", 4),
		OpenAIAPIKey:               getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:                getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		CompletionMaxRetries:       getEnvInt("COMPLETION_MAX_RETRIES", 3),
		LogLevel:                   getEnv("LOG_LEVEL", "info"),
		LogFormat:                  getEnv("LOG_FORMAT", "console"),
		LogTimeFormat:              getEnv("LOG_TIME_FORMAT", "2006-01-02T15:04:05Z07:00"),
		LogOutput:                  getEnv("LOG_OUTPUT", "stderr"),
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func (c *Config) validate() error {
	switch c.OCRBackend {
	case OCRBackendVision, OCRBackendDocumentAI, OCRBackendNone:
	default:
		return fmt.Errorf("OCR_BACKEND must be one of %s, %s, %s (got %q)",
			OCRBackendVision, OCRBackendDocumentAI, OCRBackendNone, c.OCRBackend)
	}
	if c.BatchWorkers <= 0 {
		return fmt.Errorf("BATCH_WORKERS must be positive (got %d)", c.BatchWorkers)
	}
	if c.CompletionMaxRetries <= 0 {
		return fmt.Errorf("COMPLETION_MAX_RETRIES must be positive (got %d)", c.CompletionMaxRetries)
	}
	if c.CatalogPath == "" {
		return fmt.Errorf("TD_CATALOG_PATH must not be empty")
	}
	return nil
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns -1 for unparsable values so validate reports them.
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return -1
	}
	return parsed
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
