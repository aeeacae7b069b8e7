// Package config provides environment configuration for the orchestrator.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the process. It is loaded once at
// startup, validated, and treated as immutable for the process lifetime.
type Config struct {
	// Server settings
	ServerPort         string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration

	// Session store
	StorePath string // empty selects the in-memory store

	// NATS settings (audit trail and hand-off notifications)
	EventsEnabled bool
	NATSURL       string
	NATSCAFile    string
	NATSCertFile  string
	NATSKeyFile   string
	NATSToken     string

	// JWT settings
	JWTSecret string

	// LLM settings
	AnthropicAPIKey string
	OpenAIAPIKey    string
	DefaultModel    string

	// Dialogue policy tuning
	ConfidenceThreshold float64
	ContextWindow       int
	SentimentDecay      float64
	SentimentFloor      float64
	NegativeTurnFloor   float64
	NegativeStreakLimit int
	ClarifyRetryLimit   int
	IdleTimeout         time.Duration

	// Turn processing
	TurnTimeout      time.Duration
	MaxMessageBytes  int
	StoreMaxRetries  uint64
	DedupeTTL        time.Duration

	// Integrations
	IntegrationTimeout time.Duration

	// Rate limiting
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Logging
	LogLevel string

	// Tracing
	TracingEndpoint string
	TracingEnabled  bool
}

// Load reads configuration from environment variables.
func Load() *Config {
	return &Config{
		// Server
		ServerPort:         getEnv("PORT", "8080"),
		ServerReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
		ServerWriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 120*time.Second),

		// Store
		StorePath: getEnv("STORE_PATH", ""),

		// NATS
		EventsEnabled: getBoolEnv("EVENTS_ENABLED", false),
		NATSURL:       getEnv("NATS_URL", "nats://localhost:4222"),
		NATSCAFile:    getEnv("NATS_CA_FILE", ""),
		NATSCertFile:  getEnv("NATS_CERT_FILE", ""),
		NATSKeyFile:   getEnv("NATS_KEY_FILE", ""),
		NATSToken:     getEnv("NATS_TOKEN", ""),

		// JWT
		JWTSecret: getEnv("JWT_SECRET", "development-secret-change-in-production"),

		// LLM
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		DefaultModel:    getEnv("DEFAULT_MODEL", ""),

		// Policy tuning. Defaults are illustrative; real values need
		// product-level tuning.
		ConfidenceThreshold: getFloatEnv("CONFIDENCE_THRESHOLD", 0.7),
		ContextWindow:       getIntEnv("CONTEXT_WINDOW", 10),
		SentimentDecay:      getFloatEnv("SENTIMENT_DECAY", 0.5),
		SentimentFloor:      getFloatEnv("SENTIMENT_FLOOR", -0.5),
		NegativeTurnFloor:   getFloatEnv("NEGATIVE_TURN_FLOOR", -0.6),
		NegativeStreakLimit: getIntEnv("NEGATIVE_STREAK_LIMIT", 3),
		ClarifyRetryLimit:   getIntEnv("CLARIFY_RETRY_LIMIT", 2),
		IdleTimeout:         getDurationEnv("IDLE_TIMEOUT", 30*time.Minute),

		// Turn processing
		TurnTimeout:     getDurationEnv("TURN_TIMEOUT", 30*time.Second),
		MaxMessageBytes: getIntEnv("MAX_MESSAGE_BYTES", 4096),
		StoreMaxRetries: uint64(getIntEnv("STORE_MAX_RETRIES", 3)),
		DedupeTTL:       getDurationEnv("DEDUPE_TTL", 10*time.Minute),

		// Integrations
		IntegrationTimeout: getDurationEnv("INTEGRATION_TIMEOUT", 10*time.Second),

		// Rate limiting
		RateLimitRequests: getIntEnv("RATE_LIMIT_REQUESTS", 60),
		RateLimitWindow:   getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "info"),

		// Tracing
		TracingEndpoint: getEnv("TRACING_ENDPOINT", "localhost:4318"),
		TracingEnabled:  getBoolEnv("TRACING_ENABLED", false),
	}
}

// Validate checks the loaded configuration. A validation failure is fatal at
// process startup; the orchestrator must not start with broken thresholds.
func (c *Config) Validate() error {
	var errs []error

	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		errs = append(errs, fmt.Errorf("CONFIDENCE_THRESHOLD must be in [0,1], got %v", c.ConfidenceThreshold))
	}
	if c.SentimentDecay <= 0 || c.SentimentDecay >= 1 {
		errs = append(errs, fmt.Errorf("SENTIMENT_DECAY must be in (0,1), got %v", c.SentimentDecay))
	}
	if c.SentimentFloor < -1 || c.SentimentFloor > 0 {
		errs = append(errs, fmt.Errorf("SENTIMENT_FLOOR must be in [-1,0], got %v", c.SentimentFloor))
	}
	if c.NegativeTurnFloor < -1 || c.NegativeTurnFloor > 0 {
		errs = append(errs, fmt.Errorf("NEGATIVE_TURN_FLOOR must be in [-1,0], got %v", c.NegativeTurnFloor))
	}
	if c.ContextWindow <= 0 {
		errs = append(errs, fmt.Errorf("CONTEXT_WINDOW must be positive, got %d", c.ContextWindow))
	}
	if c.ClarifyRetryLimit < 1 {
		errs = append(errs, fmt.Errorf("CLARIFY_RETRY_LIMIT must be at least 1, got %d", c.ClarifyRetryLimit))
	}
	if c.NegativeStreakLimit < 1 {
		errs = append(errs, fmt.Errorf("NEGATIVE_STREAK_LIMIT must be at least 1, got %d", c.NegativeStreakLimit))
	}
	if c.TurnTimeout <= 0 {
		errs = append(errs, fmt.Errorf("TURN_TIMEOUT must be positive, got %v", c.TurnTimeout))
	}
	if c.MaxMessageBytes <= 0 {
		errs = append(errs, fmt.Errorf("MAX_MESSAGE_BYTES must be positive, got %d", c.MaxMessageBytes))
	}
	if c.IdleTimeout <= 0 {
		errs = append(errs, fmt.Errorf("IDLE_TIMEOUT must be positive, got %v", c.IdleTimeout))
	}
	if c.EventsEnabled && c.NATSURL == "" {
		errs = append(errs, errors.New("EVENTS_ENABLED requires NATS_URL"))
	}

	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
