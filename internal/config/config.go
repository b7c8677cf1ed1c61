package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// TokenConfig carries everything the token issuer needs. It is built
// once in main and handed down explicitly; nothing reads the
// environment after startup.
type TokenConfig struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	SecureCookies bool
}

type Config struct {
	ServerPort   int
	DatabaseURL  string
	LogLevel     string
	KafkaBrokers []string
	Tokens       TokenConfig
}

func Load() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Notice: .env file not found: %v. Using system environment variables", err)
	}

	cfg := &Config{
		ServerPort:   EnvIntDefault("SERVER_PORT", 8080),
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		LogLevel:     EnvDefault("LOG_LEVEL", "info"),
		KafkaBrokers: CSV(os.Getenv("KAFKA_BROKERS")),
		Tokens: TokenConfig{
			AccessSecret:  []byte(os.Getenv("ACCESS_TOKEN_SECRET")),
			RefreshSecret: []byte(os.Getenv("REFRESH_TOKEN_SECRET")),
			AccessTTL:     EnvDurationDefault("ACCESS_TOKEN_TTL", 15*time.Minute),
			RefreshTTL:    EnvDurationDefault("REFRESH_TOKEN_TTL", 7*24*time.Hour),
			SecureCookies: EnvDefault("APP_ENV", "development") == "production",
		},
	}

	MustNonEmpty(cfg.DatabaseURL, "DATABASE_URL")
	MustNonEmptyBytes(cfg.Tokens.AccessSecret, "ACCESS_TOKEN_SECRET")
	MustNonEmptyBytes(cfg.Tokens.RefreshSecret, "REFRESH_TOKEN_SECRET")

	return cfg, nil
}

func CSV(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func EnvDefault(key, def string) string {
	if os.Getenv(key) != "" {
		return os.Getenv(key)
	}
	return def
}

func EnvIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func EnvDurationDefault(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func MustNonEmpty(value, envName string) {
	if value == "" {
		log.Fatalf("missing required env %s", envName)
	}
}

func MustNonEmptyBytes(value []byte, envName string) {
	if len(value) == 0 {
		log.Fatalf("missing required env %s", envName)
	}
}
