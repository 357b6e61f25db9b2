package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

var ErrMissingSecret = errors.New("JWT_SECRET must be set")

type Config struct {
	Port           string
	Env            string
	LogLevel       string
	DatabaseDSN    string
	MigrateOnStart bool
	StoreTimeout   time.Duration

	JWTSecret string
	TokenTTL  time.Duration

	Redis     RedisConfig
	RateLimit RateLimitConfig
	Email     EmailConfig

	CORSOrigins []string
}

// RedisConfig holds the connection settings for the rate limit backend.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RateLimitConfig holds the fixed-window budgets. Limit is the number of
// admitted requests per IP within Window.
type RateLimitConfig struct {
	Limit        int
	Window       time.Duration
	PublicLimit  int
	PublicWindow time.Duration
	FailOpen     bool
	AuthRPS      float64
	AuthBurst    int
	TrustProxy   bool
}

// EmailConfig holds SMTP settings. An empty Host disables notifications.
type EmailConfig struct {
	Host string
	Port int
	User string
	Pass string
	From string
}

// Load reads configuration from the environment. A missing signing secret is
// fatal; so is any malformed numeric or duration value.
func Load() (Config, error) {
	p := &parser{}

	cfg := Config{
		Port:           getEnv("PORT", "8080"),
		Env:            getEnv("ENV", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		DatabaseDSN:    getEnv("DATABASE_DSN", "root:password@tcp(127.0.0.1:3306)/secissues?parseTime=true"),
		MigrateOnStart: p.bool("MIGRATE_ON_START", true),
		StoreTimeout:   p.duration("STORE_TIMEOUT", 3*time.Second),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		TokenTTL:       p.duration("TOKEN_TTL", 24*time.Hour),
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       p.int("REDIS_DB", 0),
		},
		RateLimit: RateLimitConfig{
			Limit:        p.int("RATE_LIMIT", 5),
			Window:       p.duration("RATE_WINDOW", 24*time.Hour),
			PublicLimit:  p.int("PUBLIC_RATE_LIMIT", 3),
			PublicWindow: p.duration("PUBLIC_RATE_WINDOW", 24*time.Hour),
			FailOpen:     p.bool("RATE_LIMIT_FAIL_OPEN", false),
			AuthRPS:      p.float("AUTH_RPS", 5),
			AuthBurst:    p.int("AUTH_BURST", 10),
			TrustProxy:   p.bool("TRUST_PROXY", false),
		},
		Email: EmailConfig{
			Host: os.Getenv("SMTP_HOST"),
			Port: p.int("SMTP_PORT", 587),
			User: os.Getenv("SMTP_USER"),
			Pass: os.Getenv("SMTP_PASS"),
			From: os.Getenv("SMTP_FROM"),
		},
		CORSOrigins: splitList(getEnv("CORS_ORIGINS", "http://localhost:3000")),
	}

	if p.err != nil {
		return Config{}, p.err
	}
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		return Config{}, ErrMissingSecret
	}
	if cfg.RateLimit.Limit <= 0 || cfg.RateLimit.PublicLimit <= 0 {
		return Config{}, errors.New("rate limits must be positive")
	}
	if cfg.RateLimit.Window <= 0 || cfg.RateLimit.PublicWindow <= 0 {
		return Config{}, errors.New("rate windows must be positive")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// parser collects the first conversion error so Load can report it once.
type parser struct {
	err error
}

func (p *parser) fail(key string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("config %s: %w", key, err)
	}
}

func (p *parser) int(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(key, err)
		return fallback
	}
	return n
}

func (p *parser) float(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.fail(key, err)
		return fallback
	}
	return f
}

func (p *parser) bool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.fail(key, err)
		return fallback
	}
	return b
}

func (p *parser) duration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.fail(key, err)
		return fallback
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if v := strings.TrimRight(strings.TrimSpace(part), "/"); v != "" {
			out = append(out, v)
		}
	}
	return out
}
