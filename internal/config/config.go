package config

import (
	"flag"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server settings
	Port     int
	DataDir  string
	LogLevel string

	// CORS origins for the HTTP API, comma-separated. "*" for local use.
	CORSOrigins []string

	// Recognition settings
	Precision float64
}

func Parse() *Config {
	// Optional .env for local development; missing file is fine.
	_ = godotenv.Load()

	cfg := &Config{}
	var origins string

	flag.IntVar(&cfg.Port, "port", 8080, "HTTP API port")
	flag.StringVar(&cfg.DataDir, "data-dir", defaultDataDir(), "data directory for SQLite")
	flag.StringVar(&cfg.LogLevel, "log-level", "info", "log level (debug, info, warn, error)")
	flag.StringVar(&origins, "cors-origins", envOr("SEVILLE_CORS_ORIGINS", "*"), "comma-separated allowed CORS origins")
	flag.Float64Var(&cfg.Precision, "precision", 0.25, "default quantization grid in beats (1/precision must be an integer)")

	flag.Parse()
	cfg.CORSOrigins = strings.Split(origins, ",")
	return cfg
}

func defaultDataDir() string {
	if dir := os.Getenv("SEVILLE_DATA_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".seville"
	}
	return home + "/.seville"
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
