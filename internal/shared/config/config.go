package config

import (
	"log"
	"os"
	"strconv"
	"strings"
)

// Config holds application configuration.
type Config struct {
	Port            string
	CORSAllowOrigin []string
	DatabaseURL     string
	RedisURL        string
	Env             string

	// External video-understanding provider.
	IndexingAPIURL  string
	IndexingAPIKey  string
	IndexingIndexID string

	// Render dispatch tiers.
	BatchJobQueue      string
	BatchJobDefinition string
	BatchRegion        string
	RenderWorkerURL    string

	// Internal worker identity.
	WorkerSharedSecret string
	WorkerLoopbackURL  string

	// Credit admission.
	CreditsStartingGrant int
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")

	if env == "production" && dbURL == "" {
		log.Printf("DATABASE_URL is required in production")
	}

	return Config{
		Port:                 getEnv("PORT", "8080"),
		CORSAllowOrigin:      splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:5173")),
		DatabaseURL:          dbURL,
		RedisURL:             getEnv("REDIS_URL", ""),
		Env:                  env,
		IndexingAPIURL:       getEnv("INDEXING_API_URL", "https://api.videoindex.example/v1"),
		IndexingAPIKey:       getEnv("INDEXING_API_KEY", ""),
		IndexingIndexID:      getEnv("INDEXING_INDEX_ID", ""),
		BatchJobQueue:        getEnv("BATCH_JOB_QUEUE", ""),
		BatchJobDefinition:   getEnv("BATCH_JOB_DEFINITION", ""),
		BatchRegion:          getEnv("BATCH_REGION", "us-east-1"),
		RenderWorkerURL:      getEnv("RENDER_WORKER_URL", ""),
		WorkerSharedSecret:   getEnv("WORKER_SHARED_SECRET", ""),
		WorkerLoopbackURL:    getEnv("WORKER_LOOPBACK_URL", ""),
		CreditsStartingGrant: getEnvInt("CREDITS_STARTING_GRANT", 3),
	}
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed < 0 {
		return def
	}
	return parsed
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	case "development", "dev":
		return "dev"
	default:
		return "dev"
	}
}
