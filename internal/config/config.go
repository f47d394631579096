package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the process configuration, read once at startup.
type Config struct {
	HTTPAddr       string
	AllowedOrigins []string
	QuestionLimit  int
	RequestTimeout time.Duration

	StateTable   string
	FeedbackFile string

	ParamPrefix    string
	OpenAIAPIKey   string
	PineconeAPIKey string

	OpenAIBaseURL       string
	LLMModel            string
	LLMTemperature      float64
	EmbeddingModel      string
	EmbeddingDimensions int

	IndexName       string
	Namespace       string
	TopK            int
	SourceNamesFile string

	LogLevel  string
	LogFormat string
}

// Load reads .env (when present) and the environment.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{
		HTTPAddr:       getEnv("HTTP_ADDR", ":8080"),
		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "*")),
		QuestionLimit:  getEnvAsInt("QUESTION_LIMIT", 0),
		RequestTimeout: getEnvAsDuration("REQUEST_TIMEOUT", 2*time.Minute),

		StateTable:   getEnv("STATE_TABLE", ""),
		FeedbackFile: getEnv("FEEDBACK_FILE", "feedback.json"),

		ParamPrefix:    strings.TrimRight(getEnv("PARAM_PREFIX", ""), "/"),
		OpenAIAPIKey:   getEnv("OPENAI_API_KEY", ""),
		PineconeAPIKey: getEnv("PINECONE_API_KEY", ""),

		OpenAIBaseURL:       getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		LLMModel:            getEnv("LLM_MODEL", "gpt-4o-mini"),
		LLMTemperature:      getEnvAsFloat("LLM_TEMPERATURE", 0.3),
		EmbeddingModel:      getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
		EmbeddingDimensions: getEnvAsInt("EMBEDDING_DIMENSIONS", 0),

		IndexName:       getEnv("INDEX_NAME", ""),
		Namespace:       getEnv("NAMESPACE", ""),
		TopK:            getEnvAsInt("TOP_K", 10),
		SourceNamesFile: getEnv("SOURCE_NAMES_FILE", ""),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.IndexName) == "" {
		return fmt.Errorf("INDEX_NAME is required")
	}
	if c.ParamPrefix == "" {
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required when PARAM_PREFIX is not set")
		}
		if c.PineconeAPIKey == "" {
			return fmt.Errorf("PINECONE_API_KEY is required when PARAM_PREFIX is not set")
		}
	}
	if c.TopK <= 0 {
		return fmt.Errorf("TOP_K must be positive, got %d", c.TopK)
	}
	if c.QuestionLimit < 0 {
		return fmt.Errorf("QUESTION_LIMIT must not be negative, got %d", c.QuestionLimit)
	}
	if c.EmbeddingDimensions < 0 {
		return fmt.Errorf("EMBEDDING_DIMENSIONS must not be negative, got %d", c.EmbeddingDimensions)
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.LogFormat)
	}
	return nil
}

// OpenAITokenName is the parameter holding the OpenAI key.
func (c *Config) OpenAITokenName() string {
	return c.ParamPrefix + "/openai-token"
}

// PineconeTokenName is the parameter holding the Pinecone key.
func (c *Config) PineconeTokenName() string {
	return c.ParamPrefix + "/pinecone-token"
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
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

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
