package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/allergenlens/backend/internal/infrastructure/openfoodfacts"
)

// Config holds all configuration for the application
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	OpenFoodFacts OpenFoodFactsConfig `mapstructure:"openfoodfacts"`
	LLM           LLMConfig           `mapstructure:"llm"`
	Resolver      ResolverConfig      `mapstructure:"resolver"`
	Cache         CacheConfig         `mapstructure:"cache"`
	RateLimit     RateLimitConfig     `mapstructure:"ratelimit"`
	Log           LogConfig           `mapstructure:"log"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// OpenFoodFactsConfig holds product database configuration
type OpenFoodFactsConfig struct {
	ProductEndpoint   string        `mapstructure:"product_endpoint"`
	SearchEndpoint    string        `mapstructure:"search_endpoint"`
	Locale            string        `mapstructure:"locale"`
	UserAgent         string        `mapstructure:"user_agent"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
}

// LLMConfig holds chat completion configuration
type LLMConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	BaseURL     string        `mapstructure:"base_url"`
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// ResolverConfig holds match resolution policy
type ResolverConfig struct {
	Strategy        string        `mapstructure:"strategy"` // "sequential" or "parallel"
	Fanout          int           `mapstructure:"fanout"`
	Validate        bool          `mapstructure:"validate"`
	FailOpen        bool          `mapstructure:"fail_open"`
	URLVerification string        `mapstructure:"url_verification"` // "verified" or "direct"
	VerifyTimeout   time.Duration `mapstructure:"verify_timeout"`
}

// CacheConfig holds cache-related configuration
type CacheConfig struct {
	Type       string        `mapstructure:"type"` // "memory" or "redis"
	RedisURL   string        `mapstructure:"redis_url"`
	Prefix     string        `mapstructure:"prefix"`
	SessionTTL time.Duration `mapstructure:"session_ttl"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	PerIP int `mapstructure:"per_ip"`
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "json" or "console"
}

// IsProduction reports whether the server runs in production mode
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// Load loads configuration from a .env file, environment variables and config files
func Load() (*Config, error) {
	return LoadWith(nil)
}

// LoadWith is Load with override applied to the decoded configuration before it is validated
func LoadWith(override func(*Config)) (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}

	v := viper.New()

	// Set config name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/allergenlens/")

	// Environment variable settings: ALLERGENLENS_LLM_API_KEY -> llm.api_key
	v.SetEnvPrefix("ALLERGENLENS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set default values
	setDefaults(v)

	// Read config file (optional - will use env vars if file doesn't exist)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if override != nil {
		override(&config)
	}

	// Validate configuration
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// loadEnvFile loads ./.env when present. Variables already set in the
// environment are never overridden.
func loadEnvFile() error {
	if _, err := os.Stat(".env"); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return godotenv.Load()
}

// setDefaults sets default configuration values.
// Every key gets a default so AutomaticEnv can override it during Unmarshal.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"*"})

	// OpenFoodFacts defaults
	v.SetDefault("openfoodfacts.product_endpoint", openfoodfacts.DefaultProductEndpoint)
	v.SetDefault("openfoodfacts.search_endpoint", openfoodfacts.DefaultSearchEndpoint)
	v.SetDefault("openfoodfacts.locale", openfoodfacts.DefaultLocale)
	v.SetDefault("openfoodfacts.user_agent", openfoodfacts.DefaultUserAgent)
	v.SetDefault("openfoodfacts.timeout", "15s")
	v.SetDefault("openfoodfacts.requests_per_minute", 100)

	// LLM defaults
	v.SetDefault("llm.enabled", true)
	v.SetDefault("llm.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model", "openai/gpt-4o-mini")
	v.SetDefault("llm.temperature", 0.0)
	v.SetDefault("llm.max_tokens", 300)
	v.SetDefault("llm.timeout", "20s")

	// Resolver defaults
	v.SetDefault("resolver.strategy", "sequential")
	v.SetDefault("resolver.fanout", 3)
	v.SetDefault("resolver.validate", true)
	v.SetDefault("resolver.fail_open", true)
	v.SetDefault("resolver.url_verification", "verified")
	v.SetDefault("resolver.verify_timeout", "5s")

	// Cache defaults
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.prefix", "allergenlens:")
	v.SetDefault("cache.session_ttl", "2h")

	// Rate limit defaults
	v.SetDefault("ratelimit.per_ip", 60)

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// validate validates the configuration
func validate(config *Config) error {
	if config.LLM.Enabled && config.LLM.APIKey == "" {
		return fmt.Errorf("LLM API key is required when llm.enabled is true (set ALLERGENLENS_LLM_API_KEY)")
	}

	if config.Cache.Type != "memory" && config.Cache.Type != "redis" {
		return fmt.Errorf("cache type must be 'memory' or 'redis', got: %s", config.Cache.Type)
	}

	if config.Cache.Type == "redis" && config.Cache.RedisURL == "" {
		return fmt.Errorf("Redis URL is required when cache type is 'redis'")
	}

	if config.Resolver.Strategy != "sequential" && config.Resolver.Strategy != "parallel" {
		return fmt.Errorf("resolver strategy must be 'sequential' or 'parallel', got: %s", config.Resolver.Strategy)
	}

	if config.Resolver.Fanout < 1 {
		return fmt.Errorf("resolver fanout must be at least 1, got: %d", config.Resolver.Fanout)
	}

	if config.Resolver.URLVerification != "verified" && config.Resolver.URLVerification != "direct" {
		return fmt.Errorf("resolver url_verification must be 'verified' or 'direct', got: %s", config.Resolver.URLVerification)
	}

	if !openfoodfacts.IsKnownLocale(config.OpenFoodFacts.Locale) {
		return fmt.Errorf("unknown OpenFoodFacts locale: %s", config.OpenFoodFacts.Locale)
	}

	if config.RateLimit.PerIP < 0 {
		return fmt.Errorf("ratelimit per_ip must not be negative, got: %d", config.RateLimit.PerIP)
	}

	return nil
}
