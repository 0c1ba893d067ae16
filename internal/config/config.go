package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const defaultSystemPrompt = `You are a professional marketing assistant. Your job is to help users with marketing tasks: content creation, market analysis, strategic planning and more. Always answer professionally and give concrete, data-driven recommendations.

Use Markdown formatting in your answers: headers for sections, lists for enumerations, **bold** for key points, *italics* for emphasis, ` + "`code`" + ` for technical terms, quotes for important notes, and tables for structured data. Structure answers with headers and lists for readability.`

type Config struct {
	// Server
	Port string
	Env  string

	// Database
	DatabaseURL string

	// Redis
	RedisURL string

	// JWT
	JWTSecret string

	// Gemini AI
	GeminiAPIKey    string
	GeminiModel     string
	SystemPrompt    string
	UpstreamTimeout time.Duration
	UpstreamRetries int

	// Google sign-in
	GoogleClientID string

	// Frontend
	FrontendURL string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:            getEnvOrDefault("PORT", "8080"),
		Env:             getEnvOrDefault("ENV", "development"),
		DatabaseURL:     mustGetEnv("DATABASE_URL"),
		RedisURL:        mustGetEnv("REDIS_URL"),
		JWTSecret:       mustGetEnv("JWT_SECRET"),
		GeminiAPIKey:    mustGetEnv("GEMINI_API_KEY"),
		GeminiModel:     getEnvOrDefault("GEMINI_MODEL", "gemini-2.5-flash"),
		SystemPrompt:    getEnvOrDefault("SYSTEM_PROMPT", defaultSystemPrompt),
		UpstreamTimeout: getEnvAsDurationOrDefault("UPSTREAM_TIMEOUT", 60*time.Second),
		UpstreamRetries: getEnvAsIntOrDefault("UPSTREAM_RETRIES", 2),
		GoogleClientID:  getEnvOrDefault("GOOGLE_CLIENT_ID", ""),
		FrontendURL:     getEnvOrDefault("FRONTEND_URL", "http://localhost:5173"),
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

func getEnvAsDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}
	return d
}
