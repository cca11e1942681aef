package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Get returns the environment value for key, or fallback when unset or blank.
func Get(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

// GetInt parses key as an int, returning fallback when unset or malformed.
func GetInt(key string, fallback int) int {
	if n, err := strconv.Atoi(Get(key, "")); err == nil {
		return n
	}
	return fallback
}

// GetFloat parses key as a float64, returning fallback when unset or malformed.
func GetFloat(key string, fallback float64) float64 {
	if f, err := strconv.ParseFloat(Get(key, ""), 64); err == nil {
		return f
	}
	return fallback
}

// GetBool parses key as a bool, returning fallback when unset or malformed.
func GetBool(key string, fallback bool) bool {
	if b, err := strconv.ParseBool(Get(key, "")); err == nil {
		return b
	}
	return fallback
}

// GetDuration parses key with time.ParseDuration, returning fallback when
// unset or malformed.
func GetDuration(key string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(Get(key, "")); err == nil {
		return d
	}
	return fallback
}

// Config is the process configuration read from the environment.
type Config struct {
	Port        string
	DatabaseURL string
	RedisURL    string
	SeedPath    string

	ORSAPIKey  string
	ORSBaseURL string
	ORSProfile string

	RoutingRatePerSec float64
	RoutingRateBurst  int
	RouteCacheTTL     time.Duration

	AvailableOnly        bool
	LockTTL              time.Duration
	RoutePlanConcurrency int
}

// Load reads Config from the environment. Call godotenv.Load first to pick
// up a local .env file.
func Load() Config {
	return Config{
		Port:        Get("PORT", "8080"),
		DatabaseURL: Get("DATABASE_URL", ""),
		RedisURL:    Get("REDIS_URL", ""),
		SeedPath:    Get("SEED_PATH", "data/seeds/fleet.yaml"),

		ORSAPIKey:  Get("ORS_API_KEY", ""),
		ORSBaseURL: Get("ORS_BASE_URL", "https://api.openrouteservice.org"),
		ORSProfile: Get("ORS_PROFILE", "driving-car"),

		RoutingRatePerSec: GetFloat("ROUTING_RATE_PER_SEC", 5),
		RoutingRateBurst:  GetInt("ROUTING_RATE_BURST", 5),
		RouteCacheTTL:     GetDuration("ROUTE_CACHE_TTL", 24*time.Hour),

		AvailableOnly:        GetBool("DISPATCH_AVAILABLE_ONLY", false),
		LockTTL:              GetDuration("DISPATCH_LOCK_TTL", 2*time.Minute),
		RoutePlanConcurrency: GetInt("ROUTE_PLAN_CONCURRENCY", 4),
	}
}
