// Package config provides configuration for the assistant server.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the runtime configuration.
type Config struct {
	// Server settings
	HTTPPort int

	// Storage
	DatabaseURL string
	VectorDir   string

	// LLM settings
	LLMBaseURL string
	LLMAPIKey  string
	LLMModel   string
	LLMTimeout time.Duration

	// Embedding settings
	EmbedBaseURL string
	EmbedAPIKey  string
	EmbedModel   string

	// Turn processing
	TurnTimeout     time.Duration
	HistoryWindow   int
	SQLRowLimit     int
	SQLTimeout      time.Duration
	RetrievalTopK   int
	RetrievalBudget int

	// NL2SQL schema declaration file (optional; compiled-in default otherwise)
	SchemaPath string

	// Logging
	LogLevel string
}

// Load loads configuration from environment variables.
func Load() *Config {
	cfg := &Config{
		HTTPPort:        getEnvInt("HTTP_PORT", 8080),
		DatabaseURL:     getEnv("DATABASE_URL", "file:devmate.db?cache=shared&mode=rwc"),
		VectorDir:       getEnv("VECTOR_DIR", "data"),
		LLMBaseURL:      getEnv("LLM_BASE_URL", "https://openrouter.ai/api"),
		LLMAPIKey:       getEnv("LLM_API_KEY", ""),
		LLMModel:        getEnv("LLM_MODEL", "openai/gpt-4o-mini"),
		LLMTimeout:      time.Duration(getEnvInt("LLM_TIMEOUT_MS", 30000)) * time.Millisecond,
		EmbedBaseURL:    getEnv("EMBED_BASE_URL", "https://openrouter.ai/api"),
		EmbedAPIKey:     getEnv("EMBED_API_KEY", ""),
		EmbedModel:      getEnv("EMBED_MODEL", "text-embedding-3-small"),
		TurnTimeout:     time.Duration(getEnvInt("TURN_TIMEOUT_MS", 60000)) * time.Millisecond,
		HistoryWindow:   getEnvInt("HISTORY_WINDOW", 4),
		SQLRowLimit:     getEnvInt("SQL_ROW_LIMIT", 50),
		SQLTimeout:      time.Duration(getEnvInt("SQL_TIMEOUT_MS", 5000)) * time.Millisecond,
		RetrievalTopK:   getEnvInt("RETRIEVAL_TOP_K", 8),
		RetrievalBudget: getEnvInt("RETRIEVAL_BUDGET_CHARS", 4000),
		SchemaPath:      getEnv("SCHEMA_PATH", ""),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
	}
	return cfg
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}
