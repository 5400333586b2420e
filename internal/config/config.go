package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds the application configuration
type Config struct {
	DatabaseURL string
	NATSURL     string
	RedisAddr   string

	// Humidity alert band, in percent.
	HumAlertMin float64
	HumAlertMax float64
}

// Load loads the configuration from environment variables and .env file
func Load() (*Config, error) {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}

	natsURL := os.Getenv("NATS_URL")
	if natsURL == "" {
		natsURL = "nats://nats:4222" // Default to Docker service name
	}

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "redis:6379"
	}

	humMin, err := parseFloat("HUM_ALERT_MIN", 10.0)
	if err != nil {
		return nil, err
	}
	humMax, err := parseFloat("HUM_ALERT_MAX", 85.0)
	if err != nil {
		return nil, err
	}
	if humMin >= humMax {
		return nil, fmt.Errorf("humidity alert band is empty: min %.1f >= max %.1f", humMin, humMax)
	}

	return &Config{
		DatabaseURL: dbURL,
		NATSURL:     natsURL,
		RedisAddr:   redisAddr,
		HumAlertMin: humMin,
		HumAlertMax: humMax,
	}, nil
}

func parseFloat(key string, def float64) (float64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return v, nil
}
