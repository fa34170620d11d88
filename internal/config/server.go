package config

import (
	"os"
	"strconv"
	"time"
)

// ServerConfig is read from the environment (and .env through godotenv in
// cmd/mockupd).
type ServerConfig struct {
	Port         string
	Env          string
	CatalogPath  string
	Detector     string
	DetectPreset string
	DetectParams string
	PublicURL    string
	RateLimit    float64
	RateBurst    int
	RateHeavy    int
	RateIdleTTL  time.Duration
	BodyLimitMB  int
	SessionTTL   time.Duration
}

func LoadServerConfig() ServerConfig {
	return ServerConfig{
		Port:         getEnv("APP_PORT", "3000"),
		Env:          getEnv("APP_ENV", "development"),
		CatalogPath:  getEnv("CATALOG_PATH", "templates/catalog.yaml"),
		Detector:     getEnv("DETECTOR", "native"),
		DetectPreset: getEnv("DETECT_PRESET", ""),
		DetectParams: getEnv("DETECT_PARAMS", ""),
		PublicURL:    getEnv("PUBLIC_URL", ""),
		RateLimit:    getEnvFloat("RATE_LIMIT", 20),
		RateBurst:    getEnvInt("RATE_BURST", 40),
		RateHeavy:    getEnvInt("RATE_HEAVY_COST", 5),
		RateIdleTTL:  getEnvDuration("RATE_IDLE_TTL", 10*time.Minute),
		BodyLimitMB:  getEnvInt("BODY_LIMIT_MB", 25),
		SessionTTL:   getEnvDuration("SESSION_TTL", 30*time.Minute),
	}
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return v
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v, err := strconv.ParseFloat(getEnv(key, ""), 64); err == nil {
		return v
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v, err := time.ParseDuration(getEnv(key, "")); err == nil {
		return v
	}
	return fallback
}
