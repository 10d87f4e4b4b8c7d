package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	Environment string

	PostgresURL string

	KafkaBrokers []string

	RedisAddr     string
	RedisPassword string

	PayPalBaseURL      string
	PayPalClientID     string
	PayPalClientSecret string
	PayPalTimeout      time.Duration

	RecommendServiceURL string
	RecommendTimeout    time.Duration
	RecommendCacheTTL   time.Duration

	FrontendURL     string
	EmailServiceURL string
}

// Load reads configuration from the environment, after best-effort loading of
// a local .env file. POSTGRES_URL is the only hard requirement for the API.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:                getEnv("PORT", "8080"),
		Environment:         getEnv("APP_ENV", "development"),
		PostgresURL:         os.Getenv("POSTGRES_URL"),
		RedisAddr:           os.Getenv("REDIS_ADDR"),
		RedisPassword:       os.Getenv("REDIS_PASSWORD"),
		PayPalBaseURL:       getEnv("PAYPAL_BASE_URL", "https://api-m.sandbox.paypal.com"),
		PayPalClientID:      os.Getenv("PAYPAL_CLIENT_ID"),
		PayPalClientSecret:  os.Getenv("PAYPAL_CLIENT_SECRET"),
		PayPalTimeout:       getDuration("PAYPAL_TIMEOUT", 10*time.Second),
		RecommendServiceURL: os.Getenv("RECOMMEND_SERVICE_URL"),
		RecommendTimeout:    getDuration("RECOMMEND_TIMEOUT", 3*time.Second),
		RecommendCacheTTL:   getDuration("RECOMMEND_CACHE_TTL", 15*time.Minute),
		FrontendURL:         getEnv("FRONTEND_URL", "http://localhost:3000"),
		EmailServiceURL:     os.Getenv("EMAIL_SERVICE_URL"),
	}

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}

	if cfg.PostgresURL == "" {
		return nil, fmt.Errorf("POSTGRES_URL environment variable is required")
	}

	return cfg, nil
}

// IsProduction controls whether error detail is included in 500 responses.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
