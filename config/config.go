package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

// Config holds everything the server reads from the process environment.
// It is constructed once in main and handed to components explicitly; no
// package reads the environment on its own.
type Config struct {
	Port         int
	DatabasePath string
	LogPath      string

	OMDBAPIKey   string
	GeminiAPIKey string

	// Per-attempt timeout for metadata provider fetches.
	MetadataTimeout time.Duration
	// Single-call timeout for the language model. Generous on purpose:
	// the engine never retries this call.
	LLMTimeout time.Duration

	// TTL for cached recommendation responses.
	RecommendationTTL time.Duration
}

// Load reads configuration from the environment, applying defaults for
// anything unset. Missing API keys are tolerated here; the owning clients
// report themselves unconfigured instead.
func Load() *Config {
	cfg := &Config{
		Port:              envInt("PORT", 8080),
		DatabasePath:      envString("DATABASE_PATH", "data/screenscout.db"),
		LogPath:           envString("LOG_PATH", ""),
		OMDBAPIKey:        envString("OMDB_API_KEY", ""),
		GeminiAPIKey:      envString("GEMINI_API_KEY", ""),
		MetadataTimeout:   envDuration("METADATA_TIMEOUT", 5*time.Second),
		LLMTimeout:        envDuration("LLM_TIMEOUT", 30*time.Second),
		RecommendationTTL: envDuration("RECOMMENDATION_TTL", 24*time.Hour),
	}
	if cfg.OMDBAPIKey == "" {
		log.Printf("[config] OMDB_API_KEY not set; metadata lookups will degrade to cached and placeholder records")
	}
	if cfg.GeminiAPIKey == "" {
		log.Printf("[config] GEMINI_API_KEY not set; recommendation requests will be rejected")
	}
	return cfg
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[config] invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("[config] invalid %s=%q, using %s", key, v, fallback)
		return fallback
	}
	return d
}
