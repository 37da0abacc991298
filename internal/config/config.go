package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"topicdesk/internal/core"
	"topicdesk/internal/generator"
	"topicdesk/internal/llm"
	"topicdesk/internal/observability"
)

// Config holds all application configuration
type Config struct {
	App       App       `mapstructure:"app"`
	AI        AI        `mapstructure:"ai"`
	Database  Database  `mapstructure:"database"`
	Cache     Cache     `mapstructure:"cache"`
	Generator Generator `mapstructure:"generator"`
	Server    Server    `mapstructure:"server"`
	Logging   Logging   `mapstructure:"logging"`
	PostHog   PostHog   `mapstructure:"posthog"`
}

// App holds general application settings
type App struct {
	Debug   bool   `mapstructure:"debug"`
	DataDir string `mapstructure:"data_dir"`
}

// AI holds generative provider settings
type AI struct {
	Provider        string          `mapstructure:"provider"`
	Timeout         string          `mapstructure:"timeout"`
	BreakerFailures uint            `mapstructure:"breaker_failures"`
	BreakerWindow   uint            `mapstructure:"breaker_window"`
	BreakerDelay    string          `mapstructure:"breaker_delay"`
	Gemini          GeminiConfig    `mapstructure:"gemini"`
	OpenAI          OpenAIConfig    `mapstructure:"openai"`
	Anthropic       AnthropicConfig `mapstructure:"anthropic"`
}

// GeminiConfig holds Gemini-specific settings
type GeminiConfig struct {
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	MaxTokens   int32   `mapstructure:"max_tokens"`
	Temperature float32 `mapstructure:"temperature"`
}

// OpenAIConfig holds OpenAI-specific settings
type OpenAIConfig struct {
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	BaseURL     string  `mapstructure:"base_url"`
	Temperature float64 `mapstructure:"temperature"`
}

// AnthropicConfig holds Anthropic-specific settings
type AnthropicConfig struct {
	APIKey    string `mapstructure:"api_key"`
	Model     string `mapstructure:"model"`
	MaxTokens int64  `mapstructure:"max_tokens"`
}

// Database holds the Postgres connection
type Database struct {
	URL string `mapstructure:"url"`
}

// Cache selects and configures the cluster cache backend
type Cache struct {
	Backend   string `mapstructure:"backend"` // postgres, redis, sqlite or none
	TTL       string `mapstructure:"ttl"`
	RedisURL  string `mapstructure:"redis_url"`
	Prefix    string `mapstructure:"prefix"`
	Directory string `mapstructure:"directory"`
}

// Generator holds pipeline limits and the defaults for projects without stored settings
type Generator struct {
	MinItems             int      `mapstructure:"min_items"`
	MaxItems             int      `mapstructure:"max_items"`
	MaxCitationQueries   int      `mapstructure:"max_citation_queries"`
	MaxCitationsPerQuery int      `mapstructure:"max_citations_per_query"`
	ProjectConcurrency   int      `mapstructure:"project_concurrency"`
	FiringWindow         string   `mapstructure:"firing_window"`
	ScheduleInterval     string   `mapstructure:"schedule_interval"`
	Defaults             Defaults `mapstructure:"defaults"`
}

// Defaults are per-project settings used when a project has none stored
type Defaults struct {
	ScheduleTime           string `mapstructure:"schedule_time"`
	Timezone               string `mapstructure:"timezone"`
	TimeWindowDays         int    `mapstructure:"time_window_days"`
	MinStoriesForCluster   int    `mapstructure:"min_stories_for_cluster"`
	MaxProposalsPerRun     int    `mapstructure:"max_proposals_per_run"`
	DurationType           string `mapstructure:"duration_type"`
	IncludeTrendingContext bool   `mapstructure:"include_trending_context"`
}

// Server holds HTTP server settings
type Server struct {
	Host        string   `mapstructure:"host"`
	Port        int      `mapstructure:"port"`
	AdminAPIKey string   `mapstructure:"admin_api_key"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// Logging holds logging configuration
type Logging struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// PostHog holds product analytics settings
type PostHog struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
	Host    string `mapstructure:"host"`
}

var globalConfig *Config

// Load loads the configuration from various sources
func Load(configFile string) (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}

	// Load .env file if it exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			fmt.Printf("Warning: Error loading .env file: %v\n", err)
		}
	}

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME")
		viper.SetConfigName(".topicdesk")
		viper.SetConfigType("yaml")
	}

	setDefaults()
	bindEnvironmentVariables()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := postProcessConfig(config); err != nil {
		return nil, fmt.Errorf("error post-processing config: %w", err)
	}

	if err := validateConfig(config); err != nil {
		return nil, err
	}

	globalConfig = config
	return config, nil
}

// Get returns the global configuration, loading it if necessary
func Get() *Config {
	if globalConfig == nil {
		config, err := Load("")
		if err != nil {
			panic(fmt.Sprintf("Failed to load configuration: %v", err))
		}
		return config
	}
	return globalConfig
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("app.debug", false)
	viper.SetDefault("app.data_dir", ".topicdesk")

	viper.SetDefault("ai.provider", llm.ProviderGemini)
	viper.SetDefault("ai.timeout", "60s")
	viper.SetDefault("ai.breaker_failures", 5)
	viper.SetDefault("ai.breaker_window", 10)
	viper.SetDefault("ai.breaker_delay", "30s")
	viper.SetDefault("ai.gemini.model", llm.DefaultGeminiModel)
	viper.SetDefault("ai.gemini.max_tokens", 8192)
	viper.SetDefault("ai.gemini.temperature", 0.7)
	viper.SetDefault("ai.openai.model", llm.DefaultOpenAIModel)
	viper.SetDefault("ai.openai.temperature", 0.7)
	viper.SetDefault("ai.anthropic.model", llm.DefaultAnthropicModel)
	viper.SetDefault("ai.anthropic.max_tokens", 4096)

	viper.SetDefault("cache.backend", "postgres")
	viper.SetDefault("cache.ttl", "24h")
	viper.SetDefault("cache.prefix", "topicdesk:clusters")
	viper.SetDefault("cache.directory", ".topicdesk")

	d := generator.DefaultConfig()
	viper.SetDefault("generator.min_items", d.MinItems)
	viper.SetDefault("generator.max_items", d.MaxItems)
	viper.SetDefault("generator.max_citation_queries", d.MaxCitationQueries)
	viper.SetDefault("generator.max_citations_per_query", d.MaxCitationsPerQuery)
	viper.SetDefault("generator.project_concurrency", 4)
	viper.SetDefault("generator.firing_window", d.FiringWindow.String())
	viper.SetDefault("generator.schedule_interval", "1h")
	viper.SetDefault("generator.defaults.schedule_time", d.Defaults.ScheduleTime)
	viper.SetDefault("generator.defaults.timezone", d.Defaults.Timezone)
	viper.SetDefault("generator.defaults.time_window_days", d.Defaults.TimeWindowDays)
	viper.SetDefault("generator.defaults.min_stories_for_cluster", d.Defaults.MinStoriesForCluster)
	viper.SetDefault("generator.defaults.max_proposals_per_run", d.Defaults.MaxProposalsPerRun)
	viper.SetDefault("generator.defaults.duration_type", string(d.Defaults.DefaultDurationType))
	viper.SetDefault("generator.defaults.include_trending_context", d.Defaults.IncludeTrendingContext)

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")

	viper.SetDefault("posthog.enabled", false)
	viper.SetDefault("posthog.host", "https://us.i.posthog.com")
}

// bindEnvironmentVariables sets up flexible environment variable binding
func bindEnvironmentVariables() {
	bindEnvKeys("ai.gemini.api_key", []string{
		"GEMINI_API_KEY",
		"GOOGLE_GEMINI_API_KEY",
		"GOOGLE_AI_API_KEY",
	})
	bindEnvKeys("ai.openai.api_key", []string{"OPENAI_API_KEY"})
	bindEnvKeys("ai.anthropic.api_key", []string{"ANTHROPIC_API_KEY"})
	bindEnvKeys("ai.provider", []string{"LLM_PROVIDER"})

	bindEnvKeys("database.url", []string{"DATABASE_URL", "POSTGRES_URL"})
	bindEnvKeys("cache.redis_url", []string{"REDIS_URL"})
	bindEnvKeys("cache.backend", []string{"CLUSTER_CACHE_BACKEND"})

	bindEnvKeys("server.admin_api_key", []string{"ADMIN_API_KEY"})
	bindEnvKeys("server.port", []string{"PORT"})

	bindEnvKeys("posthog.api_key", []string{"POSTHOG_API_KEY"})
	bindEnvKeys("posthog.host", []string{"POSTHOG_HOST"})
	if os.Getenv("POSTHOG_API_KEY") != "" {
		viper.Set("posthog.enabled", true)
	}

	bindEnvKeys("logging.level", []string{"LOG_LEVEL"})
	bindEnvKeys("logging.format", []string{"LOG_FORMAT"})
}

// bindEnvKeys binds the first found environment variable to a viper key
func bindEnvKeys(viperKey string, envKeys []string) {
	for _, envKey := range envKeys {
		if value := os.Getenv(envKey); value != "" {
			viper.Set(viperKey, value)
			return
		}
	}
}

// postProcessConfig applies post-processing to configuration values
func postProcessConfig(config *Config) error {
	if config.App.DataDir != "" {
		config.App.DataDir = expandPath(config.App.DataDir)
	}
	if config.Cache.Directory != "" {
		config.Cache.Directory = expandPath(config.Cache.Directory)
	}
	config.AI.Provider = strings.ToLower(config.AI.Provider)
	config.Cache.Backend = strings.ToLower(config.Cache.Backend)

	durations := map[string]string{
		"ai.timeout":                  config.AI.Timeout,
		"ai.breaker_delay":            config.AI.BreakerDelay,
		"cache.ttl":                   config.Cache.TTL,
		"generator.firing_window":     config.Generator.FiringWindow,
		"generator.schedule_interval": config.Generator.ScheduleInterval,
	}

	for key, duration := range durations {
		if duration != "" {
			if _, err := time.ParseDuration(duration); err != nil {
				return fmt.Errorf("invalid duration for %s: %s", key, duration)
			}
		}
	}

	return nil
}

// expandPath expands ~ and environment variables in paths
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return os.ExpandEnv(path)
}

// validateConfig ensures configuration values are consistent. Credentials are checked
// when the component using them is built.
func validateConfig(config *Config) error {
	var errors []string

	switch config.AI.Provider {
	case llm.ProviderGemini, llm.ProviderOpenAI, llm.ProviderAnthropic:
	default:
		errors = append(errors, fmt.Sprintf("Unknown AI provider: %s. Supported: gemini, openai, anthropic", config.AI.Provider))
	}

	switch config.Cache.Backend {
	case "postgres", "sqlite", "none":
	case "redis":
		if config.Cache.RedisURL == "" {
			errors = append(errors, "Redis cache backend requires a URL. Set REDIS_URL or cache.redis_url")
		}
	default:
		errors = append(errors, fmt.Sprintf("Unknown cache backend: %s. Supported: postgres, redis, sqlite, none", config.Cache.Backend))
	}

	if _, ok := core.DefaultDurationTable()[core.DurationType(config.Generator.Defaults.DurationType)]; !ok {
		errors = append(errors, fmt.Sprintf("Unknown default duration type: %s. Supported: short, medium, long", config.Generator.Defaults.DurationType))
	}

	if config.Generator.Defaults.Timezone != "" {
		if _, err := time.LoadLocation(config.Generator.Defaults.Timezone); err != nil {
			errors = append(errors, fmt.Sprintf("Invalid default timezone: %s", config.Generator.Defaults.Timezone))
		}
	}

	if config.PostHog.Enabled && config.PostHog.APIKey == "" {
		errors = append(errors, "PostHog is enabled but no API key is set. Set POSTHOG_API_KEY")
	}

	if f := strings.ToLower(config.Logging.Format); f != "json" && f != "text" {
		errors = append(errors, fmt.Sprintf("Unknown logging format: %s. Supported: json, text", config.Logging.Format))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration errors:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// mustDuration parses a duration already validated by postProcessConfig
func mustDuration(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}

// GeneratorConfig converts the loaded configuration into an immutable generator configuration
func (c *Config) GeneratorConfig() generator.Config {
	g := c.Generator
	defaults := generator.DefaultSettings()
	defaults.ScheduleTime = g.Defaults.ScheduleTime
	defaults.Timezone = g.Defaults.Timezone
	defaults.TimeWindowDays = g.Defaults.TimeWindowDays
	defaults.MinStoriesForCluster = g.Defaults.MinStoriesForCluster
	defaults.MaxProposalsPerRun = g.Defaults.MaxProposalsPerRun
	defaults.DefaultDurationType = core.DurationType(g.Defaults.DurationType)
	defaults.IncludeTrendingContext = g.Defaults.IncludeTrendingContext

	return generator.Config{
		Defaults:             defaults,
		Durations:            core.DefaultDurationTable(),
		FiringWindow:         mustDuration(g.FiringWindow),
		MinItems:             g.MinItems,
		MaxItems:             g.MaxItems,
		MaxCitationQueries:   g.MaxCitationQueries,
		MaxCitationsPerQuery: g.MaxCitationsPerQuery,
		ProjectConcurrency:   g.ProjectConcurrency,
	}
}

// LLMConfig returns the provider configuration
func (c *Config) LLMConfig() llm.Config {
	return llm.Config{
		Provider: c.AI.Provider,
		Gemini: llm.GeminiConfig{
			APIKey:      c.AI.Gemini.APIKey,
			Model:       c.AI.Gemini.Model,
			Temperature: c.AI.Gemini.Temperature,
			MaxTokens:   c.AI.Gemini.MaxTokens,
		},
		OpenAI: llm.OpenAIConfig{
			APIKey:      c.AI.OpenAI.APIKey,
			Model:       c.AI.OpenAI.Model,
			BaseURL:     c.AI.OpenAI.BaseURL,
			Temperature: c.AI.OpenAI.Temperature,
		},
		Anthropic: llm.AnthropicConfig{
			APIKey:    c.AI.Anthropic.APIKey,
			Model:     c.AI.Anthropic.Model,
			MaxTokens: c.AI.Anthropic.MaxTokens,
		},
	}
}

// GuardOptions returns the deadline and breaker settings for generative calls
func (c *Config) GuardOptions(observer llm.CallObserver) llm.GuardOptions {
	return llm.GuardOptions{
		Provider:        c.AI.Provider,
		Timeout:         mustDuration(c.AI.Timeout),
		BreakerFailures: c.AI.BreakerFailures,
		BreakerWindow:   c.AI.BreakerWindow,
		BreakerDelay:    mustDuration(c.AI.BreakerDelay),
		Observer:        observer,
	}
}

// CacheTTL returns the cluster cache time-to-live
func (c *Config) CacheTTL() time.Duration { return mustDuration(c.Cache.TTL) }

// ScheduleInterval returns how often the scheduler loop ticks
func (c *Config) ScheduleInterval() time.Duration {
	return mustDuration(c.Generator.ScheduleInterval)
}

// PostHogConfig returns the analytics configuration
func (c *Config) PostHogConfig() observability.PostHogConfig {
	return observability.PostHogConfig{
		Enabled: c.PostHog.Enabled,
		APIKey:  c.PostHog.APIKey,
		Host:    c.PostHog.Host,
	}
}

// Convenience getters for commonly used configuration values
func GetApp() App             { return Get().App }
func GetAI() AI               { return Get().AI }
func GetDatabase() Database   { return Get().Database }
func GetCache() Cache         { return Get().Cache }
func GetServer() Server       { return Get().Server }
func GetLogging() Logging     { return Get().Logging }
func GetGenerator() Generator { return Get().Generator }
func IsDebugMode() bool       { return Get().App.Debug }

// Reset clears the global configuration (useful for testing)
func Reset() {
	globalConfig = nil
	viper.Reset()
}
