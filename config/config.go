// Package config loads server configuration the way the teacher does:
// godotenv loads a .env file best-effort, then every setting is read via
// os.Getenv with a fallback default. No flags, no viper.
package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ListenAddr         string
	PostgresDSN        string
	SessionIdleTimeout time.Duration
	RecentBufferCap    int
	S3Region           string
	S3Bucket           string
	S3Enabled          bool
}

// Load reads .env (ignored if absent) then resolves every setting from the
// environment with defaults.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using environment defaults")
	}

	return Config{
		ListenAddr:         getEnv("LISTEN_ADDR", ":8080"),
		PostgresDSN:        getEnv("DATABASE_URL", "postgres://localhost:5432/collab?sslmode=disable"),
		SessionIdleTimeout: getDuration("SESSION_IDLE_TIMEOUT", 30*time.Minute),
		RecentBufferCap:    getInt("RECENT_OPERATIONS_CAP", 100),
		S3Region:           getEnv("S3_REGION", "us-east-1"),
		S3Bucket:           getEnv("S3_VERSION_BUCKET", ""),
		S3Enabled:          getEnv("S3_VERSION_BUCKET", "") != "",
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
