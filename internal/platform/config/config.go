// Package config loads server configuration from the environment.
// A local .env file is honored in development; real deployments set
// the variables directly.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all tunable parameters for the server.
type Config struct {
	// HTTP
	ListenAddr string

	// Persistence. SQLite is the default; a Postgres DSN moves the
	// audit ledger into a shared database.
	SQLitePath     string
	PostgresDSN    string
	BackupInterval time.Duration

	// Snapshot cache. Empty disables it.
	RedisAddr string

	// LLM decision provider for agent players
	LLMProvider      string // "anthropic", "openai" or "" (heuristics only)
	LLMModel         string // override the adapter's default model id
	LLMTimeout       time.Duration
	LLMDailyBudget   float64
	LLMMonthlyBudget float64

	// Game policy
	AllowAllAIGames bool // start a game with zero humans joined

	// Channel buffers
	ClientSendBuffer int
	BroadcastBuffer  int
}

// Load reads configuration from the environment, falling back to defaults.
// A missing .env file is not an error.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		ListenAddr:       getEnv("PHANTOM_LISTEN_ADDR", ":8080"),
		SQLitePath:       getEnv("PHANTOM_SQLITE_PATH", "phantom.db"),
		PostgresDSN:      getEnv("PHANTOM_POSTGRES_DSN", ""),
		BackupInterval:   time.Duration(getEnvInt("PHANTOM_BACKUP_INTERVAL_SECONDS", 60)) * time.Second,
		RedisAddr:        getEnv("PHANTOM_REDIS_ADDR", ""),
		LLMProvider:      getEnv("PHANTOM_LLM_PROVIDER", ""),
		LLMModel:         getEnv("PHANTOM_LLM_MODEL", ""),
		LLMTimeout:       time.Duration(getEnvInt("PHANTOM_LLM_TIMEOUT_SECONDS", 60)) * time.Second,
		LLMDailyBudget:   getEnvFloat("PHANTOM_LLM_DAILY_BUDGET", 10.0),
		LLMMonthlyBudget: getEnvFloat("PHANTOM_LLM_MONTHLY_BUDGET", 50.0),
		AllowAllAIGames:  getEnvBool("PHANTOM_ALLOW_ALL_AI", false),
		ClientSendBuffer: getEnvInt("PHANTOM_CLIENT_SEND_BUFFER", 64),
		BroadcastBuffer:  getEnvInt("PHANTOM_BROADCAST_BUFFER", 256),
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
		if n, err := strconv.Atoi(v); err == nil {
			return n
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

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
