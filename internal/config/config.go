// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port         string
	FrontendURL  string
	StoreBackend string // "memory", "sqlite" or "redis"
	DBPath       string
	RedisAddr    string

	SessionTTL       time.Duration
	SessionRetention time.Duration
	SweepInterval    time.Duration

	SchemaPath string // optional; embedded default when empty

	NLU   NLUConfig
	Voice VoiceConfig

	RepromptWindow int
	EscalateAfter  int
	RouterMinScore int
}

// NLUConfig configures the extraction service client.
type NLUConfig struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

// VoiceConfig configures the optional speech service clients. Either URL may
// be empty, which disables that capability on the WebSocket channel.
type VoiceConfig struct {
	STTURL string
	TTSURL string
	APIKey string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:         getEnv("PORT", "8080"),
		FrontendURL:  getEnv("FRONTEND_URL", ""),
		StoreBackend: strings.ToLower(getEnv("STORE_BACKEND", "sqlite")),
		DBPath:       getEnv("DB_PATH", "./data/sessions.db"),
		RedisAddr:    getEnv("REDIS_ADDR", "localhost:6379"),

		SessionTTL:       time.Duration(getEnvInt("SESSION_TTL_MINUTES", 30)) * time.Minute,
		SessionRetention: time.Duration(getEnvInt("SESSION_RETENTION_HOURS", 24)) * time.Hour,
		SweepInterval:    time.Duration(getEnvInt("SWEEP_INTERVAL_MINUTES", 5)) * time.Minute,

		SchemaPath: getEnv("SCHEMA_PATH", ""),

		NLU: NLUConfig{
			URL:     getEnv("NLU_URL", ""),
			APIKey:  getEnv("NLU_API_KEY", ""),
			Timeout: time.Duration(getEnvInt("NLU_TIMEOUT_MS", 10000)) * time.Millisecond,
		},
		Voice: VoiceConfig{
			STTURL: getEnv("STT_URL", ""),
			TTSURL: getEnv("TTS_URL", ""),
			APIKey: getEnv("VOICE_API_KEY", ""),
		},

		RepromptWindow: getEnvInt("PROMPT_REPROMPT_WINDOW", 2),
		EscalateAfter:  getEnvInt("PROMPT_ESCALATE_AFTER", 3),
		RouterMinScore: getEnvInt("ROUTER_MIN_SCORE", 1),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	switch c.StoreBackend {
	case "memory", "sqlite", "redis":
	default:
		return fmt.Errorf("STORE_BACKEND must be memory, sqlite or redis, got %q", c.StoreBackend)
	}
	if c.StoreBackend == "sqlite" && c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty with the sqlite backend")
	}
	if c.StoreBackend == "redis" && c.RedisAddr == "" {
		return fmt.Errorf("REDIS_ADDR cannot be empty with the redis backend")
	}
	if c.NLU.URL == "" {
		return fmt.Errorf("NLU_URL cannot be empty")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL_MINUTES must be > 0")
	}
	if c.SessionRetention <= 0 {
		return fmt.Errorf("SESSION_RETENTION_HOURS must be > 0")
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL_MINUTES must be > 0")
	}
	if c.NLU.Timeout <= 0 {
		return fmt.Errorf("NLU_TIMEOUT_MS must be > 0")
	}
	if c.RepromptWindow < 0 {
		return fmt.Errorf("PROMPT_REPROMPT_WINDOW must be >= 0")
	}
	if c.EscalateAfter < 0 {
		return fmt.Errorf("PROMPT_ESCALATE_AFTER must be >= 0")
	}
	if c.RouterMinScore < 1 {
		return fmt.Errorf("ROUTER_MIN_SCORE must be >= 1")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}
