// Package config provides configuration loading for the engine.
package config

import (
	"os"
	"strconv"
	"time"
)

// EngineConfig holds engine-level tuning. Everything has a working default;
// the env vars exist for the calling layer, not for the engine's tests.
type EngineConfig struct {
	// Identifier cache settings
	CacheSize        int
	StalenessHorizon time.Duration

	// Normalizer settings
	BatchSize           int
	WorkersPerAuthority int

	// Builder settings
	BuildWorkers int

	// Profiler settings
	SampleRows    int
	MatchFraction float64

	// Export settings
	ArtifactDir           string
	SinkID                string
	AllowExportWithErrors bool
}

// Load reads engine configuration from environment.
func Load() *EngineConfig {
	return &EngineConfig{
		CacheSize:             getEnvInt("TRANSFORM_CACHE_SIZE", 65536),
		StalenessHorizon:      time.Duration(getEnvInt("TRANSFORM_CACHE_TTL_HOURS", 24)) * time.Hour,
		BatchSize:             getEnvInt("TRANSFORM_BATCH_SIZE", 100),
		WorkersPerAuthority:   getEnvInt("TRANSFORM_WORKERS_PER_AUTHORITY", 4),
		BuildWorkers:          getEnvInt("TRANSFORM_BUILD_WORKERS", 0),
		SampleRows:            getEnvInt("TRANSFORM_SAMPLE_ROWS", 1000),
		MatchFraction:         getEnvFloat("TRANSFORM_MATCH_FRACTION", 0.95),
		ArtifactDir:           getEnv("TRANSFORM_ARTIFACT_DIR", "out"),
		SinkID:                getEnv("TRANSFORM_SINK", "file"),
		AllowExportWithErrors: getEnvBool("TRANSFORM_EXPORT_WITH_ERRORS", false),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
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

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}
