package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port                 string
	Env                  string
	LogLevel             string
	DatabaseURL          string
	DirectoryDatabaseURL string
	CORSAllowedOrigins   []string
	RateLimitRPS         float64
	RateLimitBurst       int
	InternalJWTSecret    string

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// Search planner and cache
	SearchCacheTTL                time.Duration
	SearchRatingStep              float64
	SearchRatingFloor             float64
	SearchExactLimit              int
	SearchMaxRelaxationLimit      int
	SearchAvailabilityHorizonDays int

	// Shift auto-approval
	ShiftAutoApproveMinScore  float64
	ShiftAutoApproveMinRating float64

	// Waitlist matcher
	WaitlistTopN        int
	WaitlistMinScore    float64
	WaitlistSlotMinutes int

	// Outbox delivery
	OutboxBatchSize   int
	OutboxInterval    time.Duration
	OutboxMaxAttempts int

	AWSRegion            string
	AWSAccessKeyID       string
	AWSSecretAccessKey   string
	AWSEndpointOverride  string
	NotificationQueueURL string
	DomainEventsQueueURL string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:                 getEnv("PORT", "8080"),
		Env:                  getEnv("ENV", "development"),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		DatabaseURL:          getEnv("DATABASE_URL", ""),
		DirectoryDatabaseURL: getEnv("DIRECTORY_DATABASE_URL", ""),
		CORSAllowedOrigins:   getEnvAsList("CORS_ALLOWED_ORIGINS"),
		RateLimitRPS:         getEnvAsFloat("RATE_LIMIT_RPS", 10),
		RateLimitBurst:       getEnvAsInt("RATE_LIMIT_BURST", 20),
		InternalJWTSecret:    getEnv("INTERNAL_JWT_SECRET", ""),

		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		SearchCacheTTL:                getEnvAsDuration("SEARCH_CACHE_TTL", 5*time.Minute),
		SearchRatingStep:              getEnvAsFloat("SEARCH_RATING_STEP", 0.5),
		SearchRatingFloor:             getEnvAsFloat("SEARCH_RATING_FLOOR", 3.0),
		SearchExactLimit:              getEnvAsInt("SEARCH_EXACT_LIMIT", 50),
		SearchMaxRelaxationLimit:      getEnvAsInt("SEARCH_MAX_RELAXATION_LIMIT", 10),
		SearchAvailabilityHorizonDays: getEnvAsInt("SEARCH_AVAILABILITY_HORIZON_DAYS", 14),

		ShiftAutoApproveMinScore:  getEnvAsFloat("SHIFT_AUTO_APPROVE_MIN_SCORE", 80),
		ShiftAutoApproveMinRating: getEnvAsFloat("SHIFT_AUTO_APPROVE_MIN_RATING", 4.5),

		WaitlistTopN:        getEnvAsInt("WAITLIST_TOP_N", 5),
		WaitlistMinScore:    getEnvAsFloat("WAITLIST_MIN_SCORE", 60),
		WaitlistSlotMinutes: getEnvAsInt("WAITLIST_SLOT_MINUTES", 30),

		OutboxBatchSize:   getEnvAsInt("OUTBOX_BATCH_SIZE", 25),
		OutboxInterval:    getEnvAsDuration("OUTBOX_INTERVAL", 2*time.Second),
		OutboxMaxAttempts: getEnvAsInt("OUTBOX_MAX_ATTEMPTS", 8),

		AWSRegion:            getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:       getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride:  getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		NotificationQueueURL: getEnv("NOTIFICATION_QUEUE_URL", ""),
		DomainEventsQueueURL: getEnv("DOMAIN_EVENTS_QUEUE_URL", ""),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
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

func getEnvAsList(key string) []string {
	raw := strings.TrimSpace(getEnv(key, ""))
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
