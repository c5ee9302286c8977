package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port            string
	DatabaseURL     string
	RedisURL        string
	AppEnv          string
	BaseURL         string
	AllowedOrigin   string
	CodeLength      int
	BucketWidth     time.Duration
	CacheTTL        time.Duration
	FingerprintSalt string
}

func Load() *Config {
	_ = godotenv.Load() // Ignore error if .env not found (e.g. prod)

	return &Config{
		Port:            getEnv("PORT", "8080"),
		DatabaseURL:     getEnv("DATABASE_URL", "file:db.sqlite"),
		RedisURL:        getEnv("REDIS_URL", ""),
		AppEnv:          getEnv("APP_ENV", "local"),
		BaseURL:         strings.TrimRight(getEnv("BASE_URL", "http://localhost:8080"), "/"),
		AllowedOrigin:   getEnv("ALLOWED_ORIGIN", "*"),
		CodeLength:      getEnvInt("CODE_LENGTH", 7),
		BucketWidth:     getEnvDuration("BUCKET_WIDTH", 24*time.Hour),
		CacheTTL:        getEnvDuration("CACHE_TTL", 10*time.Minute),
		FingerprintSalt: getEnv("FINGERPRINT_SALT", ""),
	}
}

// ShortURL returns the public redirect URL for code.
func (c *Config) ShortURL(code string) string {
	return c.BaseURL + "/short/" + code
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		log.Printf("config: %s=%q is not an integer, using %d", key, value, fallback)
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil || d <= 0 {
		log.Printf("config: %s=%q is not a positive duration, using %s", key, value, fallback)
		return fallback
	}
	return d
}
