// Package config reads server configuration from the environment.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config holds everything the server and the offline jobs need.
type Config struct {
	Addr      string
	Mode      string // "dev" or "prod", selects the log encoder
	DBPath    string
	IndexPath string // bbolt embedding index file

	JWTSecret      string
	AccessTokenTTL time.Duration

	GroqAPIKey string
	LLMModel   string
	LLMTimeout time.Duration
}

// Load reads the configuration from environment variables, applying
// defaults suitable for local development.
func Load() Config {
	home, _ := os.UserHomeDir()
	dataDir := filepath.Join(home, ".aniverse")

	return Config{
		Addr:           GetEnv("ANIVERSE_ADDR", ":8000"),
		Mode:           GetEnv("ANIVERSE_MODE", "dev"),
		DBPath:         GetEnv("ANIVERSE_DB", filepath.Join(dataDir, "aniverse.db")),
		IndexPath:      GetEnv("ANIVERSE_INDEX", filepath.Join(dataDir, "vectors.idx")),
		JWTSecret:      GetEnv("JWT_SECRET_KEY", "defaultsecret"),
		AccessTokenTTL: time.Duration(GetEnvAsInt("ACCESS_TOKEN_TTL", 86400)) * time.Second,
		GroqAPIKey:     GetEnv("GROQ_API_KEY", ""),
		LLMModel:       GetEnv("LLM_MODEL", "llama-3.1-8b-instant"),
		LLMTimeout:     time.Duration(GetEnvAsInt("LLM_TIMEOUT", 30)) * time.Second,
	}
}

// GetEnv returns the value of key or fallback when unset.
func GetEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// GetEnvAsInt returns key parsed as an int, or fallback when unset or
// unparseable.
func GetEnvAsInt(key string, fallback int) int {
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
