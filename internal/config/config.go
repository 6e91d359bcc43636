package config

import (
	"os"
	"strconv"
	"time"

	"github.com/ledgerline/budget-engine/internal/domain"
)

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port     int
	LogLevel string

	// HTTP client
	HTTPTimeout time.Duration

	// Resilience
	MaxRetries     int
	InitialBackoff time.Duration
	MaxConcurrency int

	// Cache
	CacheTTL time.Duration

	// Observability
	OTLPEndpoint string

	// Supabase (document store + account catalog)
	SupabaseURL        string
	SupabaseAnonKey    string
	SupabaseServiceKey string

	// Actor identity
	JWTSecret string

	// Business policy (variance thresholds, forecast heuristics)
	Variance domain.VarianceConfig
	Forecast domain.ForecastConfig
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		HTTPTimeout: getEnvDuration("HTTP_TIMEOUT", 10*time.Second),

		MaxRetries:     getEnvInt("MAX_RETRIES", 3),
		InitialBackoff: getEnvDuration("INITIAL_BACKOFF", 100*time.Millisecond),
		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 50),

		CacheTTL: getEnvDuration("CACHE_TTL", 5*time.Minute),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),

		SupabaseURL:        getEnv("SUPABASE_URL", ""),
		SupabaseAnonKey:    getEnv("SUPABASE_ANON_KEY", ""),
		SupabaseServiceKey: getEnv("SUPABASE_SERVICE_ROLE_KEY", ""),

		JWTSecret: getEnv("JWT_SECRET", ""),

		Variance: domain.VarianceConfig{
			MinorThreshold:       getEnvFloat("VARIANCE_MINOR_THRESHOLD", 10),
			ModerateThreshold:    getEnvFloat("VARIANCE_MODERATE_THRESHOLD", 25),
			SignificantThreshold: getEnvFloat("VARIANCE_SIGNIFICANT_THRESHOLD", 50),
		},
		Forecast: domain.ForecastConfig{
			TrendGrowthRate: getEnvFloat("FORECAST_TREND_GROWTH", 0.05),
			HighConfidence:  getEnvInt("FORECAST_HIGH_CONFIDENCE", 80),
			LowConfidence:   getEnvInt("FORECAST_LOW_CONFIDENCE", 60),
			MaturityMonths:  getEnvInt("FORECAST_MATURITY_MONTHS", 6),
		},
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
