package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"topicdesk/internal/core"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "topicdesk.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	cfg, err := Load(writeConfig(t, "app:\n  debug: false\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.AI.Provider != "gemini" || cfg.Cache.Backend != "postgres" || cfg.Server.Port != 8080 {
		t.Errorf("Unexpected defaults: %+v", cfg)
	}

	gc := cfg.GeneratorConfig()
	if gc.FiringWindow != 30*time.Minute || gc.MinItems != 2 || gc.MaxCitationQueries != 5 {
		t.Errorf("Unexpected generator config: %+v", gc)
	}
	if gc.Defaults.ScheduleTime != "06:00" || gc.Defaults.DefaultDurationType != core.DurationMedium || !gc.Defaults.IncludeTrendingContext {
		t.Errorf("Unexpected generator defaults: %+v", gc.Defaults)
	}
	if cfg.ScheduleInterval() != time.Hour {
		t.Errorf("Expected hourly schedule interval, got %s", cfg.ScheduleInterval())
	}
	if cfg.CacheTTL() != 24*time.Hour {
		t.Errorf("Expected 24h cache TTL, got %s", cfg.CacheTTL())
	}
	if opts := cfg.GuardOptions(nil); opts.Timeout != time.Minute || opts.Provider != "gemini" {
		t.Errorf("Unexpected guard options: %+v", opts)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	Reset()
	t.Cleanup(Reset)
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("DATABASE_URL", "postgres://localhost/topicdesk")
	t.Setenv("ADMIN_API_KEY", "secret")

	path := writeConfig(t, `
ai:
  provider: OpenAI
  timeout: 45s
generator:
  project_concurrency: 8
  firing_window: 1h
  defaults:
    duration_type: long
    timezone: Europe/Berlin
cache:
  backend: sqlite
logging:
  format: text
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.AI.Provider != "openai" || cfg.AI.OpenAI.APIKey != "sk-test" {
		t.Errorf("Expected openai provider with env key, got %+v", cfg.AI)
	}
	if cfg.Database.URL != "postgres://localhost/topicdesk" || cfg.Server.AdminAPIKey != "secret" {
		t.Errorf("Expected env bindings applied, got %+v %+v", cfg.Database, cfg.Server)
	}

	gc := cfg.GeneratorConfig()
	if gc.ProjectConcurrency != 8 || gc.FiringWindow != time.Hour || gc.Defaults.DefaultDurationType != core.DurationLong {
		t.Errorf("Unexpected generator config: %+v", gc)
	}
	if lc := cfg.LLMConfig(); lc.Provider != "openai" || lc.OpenAI.APIKey != "sk-test" {
		t.Errorf("Unexpected llm config: %+v", lc)
	}
}

func TestLoadCachesResult(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	first, err := Load(writeConfig(t, "app:\n  debug: true\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if second := Get(); second != first || !IsDebugMode() {
		t.Error("Expected Get to return the loaded configuration")
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"unknown provider", "ai:\n  provider: llama\n", "Unknown AI provider"},
		{"redis without url", "cache:\n  backend: redis\n", "requires a URL"},
		{"unknown backend", "cache:\n  backend: memcached\n", "Unknown cache backend"},
		{"bad duration type", "generator:\n  defaults:\n    duration_type: epic\n", "Unknown default duration type"},
		{"bad timezone", "generator:\n  defaults:\n    timezone: Mars/Olympus\n", "Invalid default timezone"},
		{"posthog without key", "posthog:\n  enabled: true\n", "PostHog is enabled"},
		{"bad log format", "logging:\n  format: xml\n", "Unknown logging format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			Reset()
			t.Cleanup(Reset)
			t.Setenv("POSTHOG_API_KEY", "")

			_, err := Load(writeConfig(t, tt.body))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestInvalidDuration(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	_, err := Load(writeConfig(t, "generator:\n  firing_window: soon\n"))
	if err == nil || !strings.Contains(err.Error(), "generator.firing_window") {
		t.Errorf("Expected invalid duration error, got %v", err)
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	if got := expandPath("~/cache"); got != filepath.Join(home, "cache") {
		t.Errorf("Expected home expansion, got %s", got)
	}
	t.Setenv("TOPICDESK_TEST_DIR", "/tmp/td")
	if got := expandPath("$TOPICDESK_TEST_DIR/x"); got != "/tmp/td/x" {
		t.Errorf("Expected env expansion, got %s", got)
	}
}
