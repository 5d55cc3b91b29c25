package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

const defaultJWTSecret = "your-super-secret-jwt-key-change-this-in-production"

type Config struct {
	// Database
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	DBSSLMode   string
	DatabaseURL string

	// Redis
	EnableCache bool
	RedisURL    string

	// JWT
	JWTSecret string

	// Server
	Port        string
	Environment string

	// CORS
	CORSOrigins []string

	// Rate Limiting
	RateLimitRequests      int
	RateLimitWindow        int
	RateLimitBurst         int
	OrderRateLimitRequests int
	OrderRateLimitWindow   int

	// Payments
	RazorpayKeyID   string
	RazorpaySecret  string
	RazorpayAPIBase string
	PaymentCurrency string
	AllAccessPrice  int64

	// Rewards
	QuizRewardCoins int64

	// Events
	KafkaBrokers []string
	KafkaTopic   string
	EventWorkers int

	// Features
	EnableMetrics bool
}

func New() *Config {
	c := &Config{
		// Database
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "learnhub"),
		DBPassword: getEnv("DB_PASSWORD", "learnhub"),
		DBName:     getEnv("DB_NAME", "learnhub"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		// Redis
		EnableCache: getEnvAsBool("ENABLE_CACHE", true),
		RedisURL:    getEnv("REDIS_URL", "localhost:6379"),

		// JWT
		JWTSecret: getEnv("JWT_SECRET", defaultJWTSecret),

		// Server
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),

		// CORS
		CORSOrigins: splitList(getEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:5173")),

		// Rate Limiting
		RateLimitRequests:      getEnvAsInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow:        getEnvAsInt("RATE_LIMIT_WINDOW", 60),
		RateLimitBurst:         getEnvAsInt("RATE_LIMIT_BURST", 20),
		OrderRateLimitRequests: getEnvAsInt("ORDER_RATE_LIMIT_REQUESTS", 10),
		OrderRateLimitWindow:   getEnvAsInt("ORDER_RATE_LIMIT_WINDOW", 60),

		// Payments
		RazorpayKeyID:   getEnv("RAZORPAY_KEY_ID", ""),
		RazorpaySecret:  getEnv("RAZORPAY_SECRET", ""),
		RazorpayAPIBase: getEnv("RAZORPAY_API_BASE", "https://api.razorpay.com/v1"),
		PaymentCurrency: strings.ToUpper(getEnv("PAYMENT_CURRENCY", "INR")),
		AllAccessPrice:  getEnvAsInt64("ALL_ACCESS_PRICE", 4999),

		// Rewards
		QuizRewardCoins: getEnvAsInt64("QUIZ_REWARD_COINS", 100),

		// Events
		KafkaBrokers: splitList(getEnv("KAFKA_BROKERS", "")),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "learnhub.events"),
		EventWorkers: getEnvAsInt("EVENT_WORKERS", 2),

		// Features
		EnableMetrics: getEnvAsBool("ENABLE_METRICS", true),
	}

	if url := getEnv("DATABASE_URL", ""); url != "" {
		c.DatabaseURL = url
	} else {
		c.DatabaseURL = fmt.Sprintf(
			"postgres://%s:%s@%s:%s/%s?sslmode=%s",
			c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
		)
	}

	return c
}

// Validate reports settings the server cannot start without.
func (c *Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.RazorpaySecret) == "" {
		problems = append(problems, "RAZORPAY_SECRET is required")
	}
	if c.AllAccessPrice <= 0 {
		problems = append(problems, "ALL_ACCESS_PRICE must be positive")
	}
	if c.QuizRewardCoins <= 0 {
		problems = append(problems, "QUIZ_REWARD_COINS must be positive")
	}
	if len(c.PaymentCurrency) != 3 {
		problems = append(problems, "PAYMENT_CURRENCY must be a three letter code")
	}
	if c.IsProduction() && (c.JWTSecret == "" || c.JWTSecret == defaultJWTSecret) {
		problems = append(problems, "JWT_SECRET must be set in production")
	}

	if len(problems) == 0 {
		return nil
	}
	return errors.New("invalid configuration: " + strings.Join(problems, "; "))
}

func (c *Config) EventsEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var value int
	_, err := fmt.Sscanf(valueStr, "%d", &value)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseInt(strings.TrimSpace(valueStr), 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	return valueStr == "true" || valueStr == "1"
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
