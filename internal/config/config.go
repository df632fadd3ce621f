package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port string
	Env  string

	// MongoDB
	MongoURI string
	MongoDB  string

	// Redis
	RedisURL string

	// JWT
	JWTSecret string

	// Moodle web service
	MoodleURL   string
	MoodleToken string

	// Search / range-scan tuning. MaxUserID is the assumed ceiling of the
	// remote numeric id space; matches beyond it will not be found.
	MoodleMaxUserID   int
	MoodleScanBatch   int
	MoodleSearchLimit int

	// Sync job
	SyncBatchWidth     int
	SyncBatchPauseMs   int
	ExcludedCourseName string

	// Enrollment
	DefaultRoleID int

	// First-run admin seed
	AdminEmail    string
	AdminPassword string

	// Frontend
	FrontendURL string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:      getEnvOrDefault("PORT", "8080"),
		Env:       getEnvOrDefault("ENV", "development"),
		MongoURI:  mustGetEnv("MONGO_URI"),
		MongoDB:   getEnvOrDefault("MONGO_DB", "enrolldesk"),
		RedisURL:  mustGetEnv("REDIS_URL"),
		JWTSecret: mustGetEnv("JWT_SECRET"),

		MoodleURL:   mustGetEnv("MOODLE_URL"),
		MoodleToken: mustGetEnv("MOODLE_TOKEN"),

		MoodleMaxUserID:   getEnvAsIntOrDefault("MOODLE_MAX_USER_ID", 6000),
		MoodleScanBatch:   getEnvAsIntOrDefault("MOODLE_SCAN_BATCH", 1000),
		MoodleSearchLimit: getEnvAsIntOrDefault("MOODLE_SEARCH_LIMIT", 20),

		SyncBatchWidth:     getEnvAsIntOrDefault("SYNC_BATCH_WIDTH", 5),
		SyncBatchPauseMs:   getEnvAsIntOrDefault("SYNC_BATCH_PAUSE_MS", 1000),
		ExcludedCourseName: getEnvOrDefault("EXCLUDED_COURSE_NAME", ""),

		DefaultRoleID: getEnvAsIntOrDefault("DEFAULT_ROLE_ID", 5),

		AdminEmail:    getEnvOrDefault("ADMIN_EMAIL", ""),
		AdminPassword: getEnvOrDefault("ADMIN_PASSWORD", ""),

		FrontendURL: getEnvOrDefault("FRONTEND_URL", "http://localhost:5173"),
	}

	return cfg
}

func mustGetEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return val
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}
