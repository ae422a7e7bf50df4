package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Collab   CollabConfig
}

type AppConfig struct {
	Port               string
	BaseURL            string
	ClientURL          string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
	JwtSecret          string
}

type DatabaseConfig struct {
	Connection string
}

type CollabConfig struct {
	// EventTopic is the in-process watermill topic carrying session events
	// to the analytics consumer.
	EventTopic string

	// ResolutionStrategy picks how detected conflicts are settled:
	// "operational_transform", "last_write_wins" or "manual_resolution".
	ResolutionStrategy string

	QueueDepth              int
	ManualResolutionTimeout time.Duration
	InactivityTimeout       time.Duration
	LockMinDuration         time.Duration
	LockMaxDuration         time.Duration
	LockSweepInterval       time.Duration
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			BaseURL:            getEnv("APP_BASE_URL", "http://localhost:3000"),
			ClientURL:          getEnv("CLIENT_URL", "http://localhost:5173"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "app.log.csv"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
			JwtSecret:          getEnv("JWT_SECRET", ""),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Collab: CollabConfig{
			EventTopic:              getEnv("COLLAB_EVENT_TOPIC_NAME", "COLLAB_SESSION_EVENTS"),
			ResolutionStrategy:      getEnv("COLLAB_RESOLUTION_STRATEGY", "operational_transform"),
			QueueDepth:              getEnvAsInt("COLLAB_QUEUE_DEPTH", 256),
			ManualResolutionTimeout: getEnvAsDuration("COLLAB_MANUAL_RESOLUTION_TIMEOUT", 30*time.Second),
			InactivityTimeout:       getEnvAsDuration("COLLAB_INACTIVITY_TIMEOUT", 5*time.Minute),
			LockMinDuration:         getEnvAsDuration("COLLAB_LOCK_MIN_DURATION", 1*time.Second),
			LockMaxDuration:         getEnvAsDuration("COLLAB_LOCK_MAX_DURATION", 2*time.Minute),
			LockSweepInterval:       getEnvAsDuration("COLLAB_LOCK_SWEEP_INTERVAL", 5*time.Second),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}
