package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every runtime setting. Each field maps to one environment
// variable; defaults are chosen for local development.
type Config struct {
	Env     string
	Port    string
	GinMode string

	DBDriver   string // mysql, postgres or sqlite
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBDSN      string // overrides the individual DB_* values when set

	JWTSecret  string
	JWTExpire  time.Duration
	BcryptCost int

	MaxPointsPerTransaction int
	FrontendURL             string
	QROutputDir             string
	RestaurantName          string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	RabbitMQURL       string
	PointsEventsQueue string

	ReconcileSchedule string
	ReconcileRepair   bool
	LivePushSchedule  string

	RateLimitPerSecond float64
	RateLimitBurst     int

	LogLevel   string
	LogJSON    bool
	SeedData   bool
	CORSOrigin string
}

// Load reads .env (when present) and the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Env:     envStr("APP_ENV", "development"),
		Port:    envStr("PORT", "8080"),
		GinMode: envStr("GIN_MODE", "debug"),

		DBDriver:   strings.ToLower(envStr("DB_DRIVER", "mysql")),
		DBHost:     envStr("DB_HOST", "localhost"),
		DBPort:     envStr("DB_PORT", ""),
		DBUser:     envStr("DB_USER", "root"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     envStr("DB_NAME", "table_points"),
		DBDSN:      os.Getenv("DB_DSN"),

		JWTSecret:  os.Getenv("JWT_SECRET"),
		JWTExpire:  envDur("JWT_EXPIRE", 24*time.Hour),
		BcryptCost: envInt("BCRYPT_COST", 12),

		MaxPointsPerTransaction: envInt("MAX_POINTS_PER_TRANSACTION", 100),
		FrontendURL:             envStr("FRONTEND_URL", "http://localhost:3000"),
		QROutputDir:             envStr("QR_OUTPUT_DIR", "public/qr-codes"),
		RestaurantName:          envStr("RESTAURANT_NAME", "Il Nostro Ristorante"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       envInt("REDIS_DB", 0),
		CacheTTL:      envDur("CACHE_TTL", 30*time.Second),

		RabbitMQURL:       os.Getenv("RABBITMQ_URL"),
		PointsEventsQueue: envStr("POINTS_EVENTS_QUEUE", "points.changed"),

		ReconcileSchedule: envStr("RECONCILE_SCHEDULE", "@every 1h"),
		ReconcileRepair:   envBool("RECONCILE_REPAIR", false),
		LivePushSchedule:  envStr("LIVE_PUSH_SCHEDULE", "@every 30s"),

		RateLimitPerSecond: envFloat("RATE_LIMIT_PER_SECOND", 20),
		RateLimitBurst:     envInt("RATE_LIMIT_BURST", 40),

		LogLevel:   envStr("LOG_LEVEL", "info"),
		LogJSON:    envBool("LOG_JSON", false),
		SeedData:   envBool("SEED_DATA", false),
		CORSOrigin: envStr("CORS_ORIGIN", "*"),
	}

	if cfg.DBPort == "" {
		cfg.DBPort = defaultPort(cfg.DBDriver)
	}
	return cfg, cfg.Validate()
}

// Validate reports settings the server cannot start with.
func (c Config) Validate() error {
	switch c.DBDriver {
	case "mysql", "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("missing required env var: JWT_SECRET")
	}
	if c.MaxPointsPerTransaction < 1 || c.MaxPointsPerTransaction > 1000 {
		return fmt.Errorf("MAX_POINTS_PER_TRANSACTION must be between 1 and 1000, got %d", c.MaxPointsPerTransaction)
	}
	if c.JWTExpire <= 0 {
		return fmt.Errorf("JWT_EXPIRE must be positive")
	}
	return nil
}

func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func defaultPort(driver string) string {
	switch driver {
	case "postgres":
		return "5432"
	case "mysql":
		return "3306"
	}
	return ""
}

func envStr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return def
	}
	return n
}

func envFloat(key string, def float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(os.Getenv(key)), 64)
	if err != nil {
		return def
	}
	return f
}

func envBool(key string, def bool) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return def
	}
	return b
}

// envDur accepts Go durations ("90m") and the "24h"/"7d" style used in
// older .env files.
func envDur(key string, def time.Duration) time.Duration {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return def
	}
	if strings.HasSuffix(s, "d") {
		if days, err := strconv.Atoi(strings.TrimSuffix(s, "d")); err == nil {
			return time.Duration(days) * 24 * time.Hour
		}
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
