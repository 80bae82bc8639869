package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the server configuration.  Values come from the environment,
// optionally seeded from a .env file.
type Config struct {
	Port     string
	LogLevel string

	// Sessions
	MaxHistory    int
	MaxImageBytes int
	TurnTimeout   time.Duration

	// OpenAI-compatible endpoint used for extraction and, by default, chat.
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	OpenAIModelText string
	OpenAIModelChat string

	// ChatProvider selects the conversational model: "openai" or "gemini".
	ChatProvider string
	GeminiAPIKey string
	GeminiModel  string

	// TrainingStore selects the training table backend: "xlsx" or "postgres".
	TrainingStore    string
	TrainingXLSXPath string
	DatabaseURL      string
	NotifyChannel    string

	// PredictorURL is the inference endpoint of the symptom classifier.  When
	// empty the nearest-row predictor over the training table is used.
	PredictorURL string
}

// Load reads configuration from environment variables.  A .env file in the
// working directory is applied first when present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		MaxHistory:    getEnvAsInt("MAX_HISTORY", 20),
		MaxImageBytes: getEnvAsInt("MAX_IMAGE_BYTES", 1_000_000),
		TurnTimeout:   getEnvAsDuration("TURN_TIMEOUT", 90*time.Second),

		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:   getEnv("OPENAI_BASE_URL", ""),
		OpenAIModelText: getEnv("OPENAI_MODEL_TEXT", "gpt-4o-mini"),
		OpenAIModelChat: getEnv("OPENAI_MODEL_CHAT", "gpt-4o-mini"),

		ChatProvider: strings.ToLower(strings.TrimSpace(getEnv("CHAT_PROVIDER", "openai"))),
		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-1.5-flash"),

		TrainingStore:    strings.ToLower(strings.TrimSpace(getEnv("TRAINING_STORE", "xlsx"))),
		TrainingXLSXPath: getEnv("TRAINING_XLSX_PATH", "data/train_data.xlsx"),
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		NotifyChannel:    getEnv("NOTIFY_CHANNEL", "training_rows"),

		PredictorURL: getEnv("PREDICTOR_URL", ""),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
