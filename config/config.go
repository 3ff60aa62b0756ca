// Package config provides configuration for the orchestration engine.
package config

import (
	"encoding/json"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/cascadeai/orchestrator/internal/domain"
)

// Config holds the engine configuration.
type Config struct {
	// Server settings
	HTTPPort    int
	MetricsPort int

	// Database
	DatabaseURL string

	// Model gateway
	GatewayURL     string
	GatewayAPIKey  string
	GatewayTimeout time.Duration

	// Budget
	DefaultBudget  float64
	PerStepCeiling float64

	// Routing
	SimpleTokenThreshold int
	SpecialistDomains    []string

	// Result cache
	CacheSize int
	CacheTTL  time.Duration

	// Retrieval
	RetrievalTopK      int
	RetrievalThreshold float64

	// Governance thresholds
	MaxBugRate         float64
	MaxComplexity      float64
	MinMaintainability float64

	// Model profiles, JSON-encoded in the environment or built-in defaults
	Profiles []domain.ModelProfile

	// Logging
	LogLevel string
}

// Load loads configuration from environment variables.
func Load() *Config {
	cfg := &Config{
		HTTPPort:             getEnvInt("HTTP_PORT", 8080),
		MetricsPort:          getEnvInt("METRICS_PORT", 8081),
		DatabaseURL:          getEnv("DATABASE_URL", "file:orchestrator.db?cache=shared&mode=rwc"),
		GatewayURL:           getEnv("GATEWAY_URL", "http://localhost:8090"),
		GatewayAPIKey:        getEnv("GATEWAY_API_KEY", ""),
		GatewayTimeout:       time.Duration(getEnvInt("GATEWAY_TIMEOUT_MS", 120000)) * time.Millisecond,
		DefaultBudget:        getEnvFloat("DEFAULT_BUDGET", 1.0),
		PerStepCeiling:       getEnvFloat("PER_STEP_CEILING", 0.05),
		SimpleTokenThreshold: getEnvInt("SIMPLE_TOKEN_THRESHOLD", 256),
		SpecialistDomains:    []string{"ui"},
		CacheSize:            getEnvInt("CACHE_SIZE", 256),
		CacheTTL:             time.Duration(getEnvInt("CACHE_TTL_MS", 900000)) * time.Millisecond,
		RetrievalTopK:        getEnvInt("RETRIEVAL_TOP_K", 3),
		RetrievalThreshold:   getEnvFloat("RETRIEVAL_THRESHOLD", 0.8),
		MaxBugRate:           getEnvFloat("MAX_BUG_RATE", 0.25),
		MaxComplexity:        getEnvFloat("MAX_COMPLEXITY", 10),
		MinMaintainability:   getEnvFloat("MIN_MAINTAINABILITY", 0.5),
		Profiles:             loadProfiles(),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
	}
	return cfg
}

// DefaultProfiles is the built-in model profile table, used when MODEL_PROFILES
// is not set.
func DefaultProfiles() []domain.ModelProfile {
	return []domain.ModelProfile{
		{Name: "nano-fast", Price: 0.5, Capabilities: []string{"general", "coding"}, Precedence: 1, Timeout: 30 * time.Second},
		{Name: "swift-mid", Price: 2.0, Capabilities: []string{"general", "coding", "trading"}, Precedence: 2, Timeout: 2 * time.Minute},
		{Name: "atlas-pro", Price: 12.0, Capabilities: []string{"general", "coding", "trading", "realestate"}, Precedence: 3, Timeout: 30 * time.Minute},
		{Name: "pixel-craft", Price: 6.0, Capabilities: []string{"ui"}, Precedence: 2, Timeout: 5 * time.Minute},
	}
}

func loadProfiles() []domain.ModelProfile {
	raw := os.Getenv("MODEL_PROFILES")
	if raw == "" {
		return DefaultProfiles()
	}
	var profiles []domain.ModelProfile
	if err := json.Unmarshal([]byte(raw), &profiles); err != nil || len(profiles) == 0 {
		log.Printf("WARN: invalid MODEL_PROFILES, falling back to defaults: %v", err)
		return DefaultProfiles()
	}
	return profiles
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}
