package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("NLU_URL", "http://localhost:9000/extract")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Port)
	}
	if cfg.StoreBackend != "sqlite" {
		t.Errorf("expected sqlite backend, got %s", cfg.StoreBackend)
	}
	if cfg.SessionTTL != 30*time.Minute {
		t.Errorf("expected 30m TTL, got %s", cfg.SessionTTL)
	}
	if cfg.NLU.Timeout != 10*time.Second {
		t.Errorf("expected 10s NLU timeout, got %s", cfg.NLU.Timeout)
	}
	if cfg.RepromptWindow != 2 || cfg.EscalateAfter != 3 || cfg.RouterMinScore != 1 {
		t.Errorf("unexpected prompt policy defaults: %d %d %d",
			cfg.RepromptWindow, cfg.EscalateAfter, cfg.RouterMinScore)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("NLU_URL", "http://nlu:9000/extract")
	t.Setenv("STORE_BACKEND", "redis")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("SESSION_TTL_MINUTES", "5")
	t.Setenv("NLU_TIMEOUT_MS", "250")
	t.Setenv("ROUTER_MIN_SCORE", "2")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.StoreBackend != "redis" || cfg.RedisAddr != "redis:6379" {
		t.Errorf("redis settings not applied: %s %s", cfg.StoreBackend, cfg.RedisAddr)
	}
	if cfg.SessionTTL != 5*time.Minute {
		t.Errorf("expected 5m TTL, got %s", cfg.SessionTTL)
	}
	if cfg.NLU.Timeout != 250*time.Millisecond {
		t.Errorf("expected 250ms timeout, got %s", cfg.NLU.Timeout)
	}
	if cfg.RouterMinScore != 2 {
		t.Errorf("expected min score 2, got %d", cfg.RouterMinScore)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]func(*Config){
		"missing nlu url":   func(c *Config) { c.NLU.URL = "" },
		"unknown backend":   func(c *Config) { c.StoreBackend = "dynamo" },
		"empty db path":     func(c *Config) { c.DBPath = "" },
		"zero ttl":          func(c *Config) { c.SessionTTL = 0 },
		"zero min score":    func(c *Config) { c.RouterMinScore = 0 },
		"negative reprompt": func(c *Config) { c.RepromptWindow = -1 },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := &Config{
				Port:             "8080",
				StoreBackend:     "sqlite",
				DBPath:           "./data/sessions.db",
				SessionTTL:       30 * time.Minute,
				SessionRetention: 24 * time.Hour,
				SweepInterval:    5 * time.Minute,
				NLU:              NLUConfig{URL: "http://nlu", Timeout: time.Second},
				RepromptWindow:   2,
				EscalateAfter:    3,
				RouterMinScore:   1,
			}
			mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
