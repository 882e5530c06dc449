package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	SearchURL string
	BaseURL   string

	Limit        int
	Strategy     string
	MaxRetries   int
	MaxScrolls   int
	StallLimit   int
	ScrollWaitMs int

	PageLoadTimeoutSec int
	HTTPTimeoutSec     int

	DataDir  string
	DebugDir string

	ChromeBin string

	PostgresEnabled  bool
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	return &Config{
		SearchURL: getEnv("SEARCH_URL", "https://www.padmapper.com/apartments/los-angeles-ca"),
		BaseURL:   getEnv("BASE_URL", "https://www.padmapper.com"),

		Limit:        getEnvInt("LISTING_LIMIT", 0),
		Strategy:     getEnv("DISCOVERY_STRATEGY", "browser"),
		MaxRetries:   getEnvInt("MAX_RETRIES", 3),
		MaxScrolls:   getEnvInt("MAX_SCROLL_ITERATIONS", 60),
		StallLimit:   getEnvInt("SCROLL_STALL_LIMIT", 10),
		ScrollWaitMs: getEnvInt("SCROLL_PAUSE_MS", 2000),

		PageLoadTimeoutSec: getEnvInt("PAGE_LOAD_TIMEOUT_SEC", 45),
		HTTPTimeoutSec:     getEnvInt("HTTP_TIMEOUT_SEC", 30),

		DataDir:  getEnv("DATA_DIR", "./data"),
		DebugDir: getEnv("DEBUG_DIR", "./logs"),

		ChromeBin: getEnv("CHROME_BIN", ""),

		PostgresEnabled:  getEnvBool("POSTGRES_ENABLED", false),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "scraper"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "scraper123"),
		PostgresDB:       getEnv("POSTGRES_DB", "rental_db"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
	}
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}
