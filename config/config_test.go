package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

// chdirTemp moves the test into an empty directory so no .env or config.yaml leaks in
func chdirTemp(t *testing.T) {
	t.Helper()
	originalDir, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	t.Cleanup(func() { os.Chdir(originalDir) })
}

func TestLoad(t *testing.T) {
	t.Run("loads with defaults when no env vars set", func(t *testing.T) {
		chdirTemp(t)
		t.Setenv("ALLERGENLENS_LLM_API_KEY", "test-key")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v, want nil", err)
		}

		if cfg.Server.Port != "8080" {
			t.Errorf("Server.Port = %s, want 8080", cfg.Server.Port)
		}
		if cfg.Server.Environment != "development" {
			t.Errorf("Server.Environment = %s, want development", cfg.Server.Environment)
		}
		if cfg.OpenFoodFacts.ProductEndpoint != "https://world.openfoodfacts.org/api/v2/product" {
			t.Errorf("OpenFoodFacts.ProductEndpoint = %s", cfg.OpenFoodFacts.ProductEndpoint)
		}
		if cfg.OpenFoodFacts.Locale != "world" {
			t.Errorf("OpenFoodFacts.Locale = %s, want world", cfg.OpenFoodFacts.Locale)
		}
		if cfg.OpenFoodFacts.Timeout != 15*time.Second {
			t.Errorf("OpenFoodFacts.Timeout = %v, want 15s", cfg.OpenFoodFacts.Timeout)
		}
		if !cfg.LLM.Enabled {
			t.Error("LLM.Enabled = false, want true")
		}
		if cfg.LLM.APIKey != "test-key" {
			t.Errorf("LLM.APIKey = %s, want test-key", cfg.LLM.APIKey)
		}
		if cfg.Resolver.Strategy != "sequential" {
			t.Errorf("Resolver.Strategy = %s, want sequential", cfg.Resolver.Strategy)
		}
		if !cfg.Resolver.FailOpen {
			t.Error("Resolver.FailOpen = false, want true")
		}
		if cfg.Resolver.URLVerification != "verified" {
			t.Errorf("Resolver.URLVerification = %s, want verified", cfg.Resolver.URLVerification)
		}
		if cfg.Cache.Type != "memory" {
			t.Errorf("Cache.Type = %s, want memory", cfg.Cache.Type)
		}
		if cfg.Cache.SessionTTL != 2*time.Hour {
			t.Errorf("Cache.SessionTTL = %v, want 2h", cfg.Cache.SessionTTL)
		}
		if cfg.RateLimit.PerIP != 60 {
			t.Errorf("RateLimit.PerIP = %d, want 60", cfg.RateLimit.PerIP)
		}
		if cfg.Log.Level != "info" {
			t.Errorf("Log.Level = %s, want info", cfg.Log.Level)
		}
		if cfg.IsProduction() {
			t.Error("IsProduction() = true, want false")
		}
	})

	t.Run("loads custom values from environment variables", func(t *testing.T) {
		chdirTemp(t)
		t.Setenv("ALLERGENLENS_SERVER_PORT", "9090")
		t.Setenv("ALLERGENLENS_SERVER_ENVIRONMENT", "production")
		t.Setenv("ALLERGENLENS_SERVER_ALLOWED_ORIGINS", "https://a.example,https://b.example")
		t.Setenv("ALLERGENLENS_LLM_API_KEY", "custom-api-key")
		t.Setenv("ALLERGENLENS_LLM_MODEL", "meta-llama/llama-3.1-8b-instruct")
		t.Setenv("ALLERGENLENS_OPENFOODFACTS_LOCALE", "fr")
		t.Setenv("ALLERGENLENS_RESOLVER_STRATEGY", "parallel")
		t.Setenv("ALLERGENLENS_RESOLVER_FANOUT", "4")
		t.Setenv("ALLERGENLENS_RESOLVER_FAIL_OPEN", "false")
		t.Setenv("ALLERGENLENS_RESOLVER_URL_VERIFICATION", "direct")
		t.Setenv("ALLERGENLENS_CACHE_TYPE", "redis")
		t.Setenv("ALLERGENLENS_CACHE_REDIS_URL", "redis://localhost:6379")
		t.Setenv("ALLERGENLENS_CACHE_SESSION_TTL", "30m")
		t.Setenv("ALLERGENLENS_RATELIMIT_PER_IP", "200")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v, want nil", err)
		}

		if cfg.Server.Port != "9090" {
			t.Errorf("Server.Port = %s, want 9090", cfg.Server.Port)
		}
		if !cfg.IsProduction() {
			t.Error("IsProduction() = false, want true")
		}
		if len(cfg.Server.AllowedOrigins) != 2 || cfg.Server.AllowedOrigins[1] != "https://b.example" {
			t.Errorf("Server.AllowedOrigins = %v", cfg.Server.AllowedOrigins)
		}
		if cfg.LLM.Model != "meta-llama/llama-3.1-8b-instruct" {
			t.Errorf("LLM.Model = %s", cfg.LLM.Model)
		}
		if cfg.OpenFoodFacts.Locale != "fr" {
			t.Errorf("OpenFoodFacts.Locale = %s, want fr", cfg.OpenFoodFacts.Locale)
		}
		if cfg.Resolver.Strategy != "parallel" || cfg.Resolver.Fanout != 4 {
			t.Errorf("Resolver = %+v, want parallel with fanout 4", cfg.Resolver)
		}
		if cfg.Resolver.FailOpen {
			t.Error("Resolver.FailOpen = true, want false")
		}
		if cfg.Resolver.URLVerification != "direct" {
			t.Errorf("Resolver.URLVerification = %s, want direct", cfg.Resolver.URLVerification)
		}
		if cfg.Cache.Type != "redis" {
			t.Errorf("Cache.Type = %s, want redis", cfg.Cache.Type)
		}
		if cfg.Cache.RedisURL != "redis://localhost:6379" {
			t.Errorf("Cache.RedisURL = %s, want redis://localhost:6379", cfg.Cache.RedisURL)
		}
		if cfg.Cache.SessionTTL != 30*time.Minute {
			t.Errorf("Cache.SessionTTL = %v, want 30m", cfg.Cache.SessionTTL)
		}
		if cfg.RateLimit.PerIP != 200 {
			t.Errorf("RateLimit.PerIP = %d, want 200", cfg.RateLimit.PerIP)
		}
	})

	t.Run("fails validation when API key is missing", func(t *testing.T) {
		chdirTemp(t)
		t.Setenv("ALLERGENLENS_LLM_API_KEY", "")

		_, err := Load()
		if err == nil {
			t.Fatal("Load() error = nil, want error for missing API key")
		}
		if !strings.Contains(err.Error(), "LLM API key is required") {
			t.Errorf("Load() error = %v, want 'LLM API key is required'", err)
		}
	})

	t.Run("allows missing API key when LLM disabled", func(t *testing.T) {
		chdirTemp(t)
		t.Setenv("ALLERGENLENS_LLM_ENABLED", "false")
		t.Setenv("ALLERGENLENS_LLM_API_KEY", "")

		if _, err := Load(); err != nil {
			t.Errorf("Load() error = %v, want nil", err)
		}
	})

	t.Run("reads API key from .env file", func(t *testing.T) {
		chdirTemp(t)
		os.Unsetenv("ALLERGENLENS_LLM_API_KEY")
		t.Cleanup(func() { os.Unsetenv("ALLERGENLENS_LLM_API_KEY") })
		if err := os.WriteFile(".env", []byte("ALLERGENLENS_LLM_API_KEY=from-dotenv\n"), 0644); err != nil {
			t.Fatalf("Failed to create test .env file: %v", err)
		}

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v, want nil", err)
		}
		if cfg.LLM.APIKey != "from-dotenv" {
			t.Errorf("LLM.APIKey = %s, want from-dotenv", cfg.LLM.APIKey)
		}
	})

	t.Run("reads config.yaml", func(t *testing.T) {
		chdirTemp(t)
		t.Setenv("ALLERGENLENS_LLM_API_KEY", "test-key")
		yaml := "resolver:\n  strategy: parallel\n  fanout: 5\nlog:\n  format: json\n"
		if err := os.WriteFile("config.yaml", []byte(yaml), 0644); err != nil {
			t.Fatalf("Failed to create config.yaml: %v", err)
		}

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v, want nil", err)
		}
		if cfg.Resolver.Strategy != "parallel" || cfg.Resolver.Fanout != 5 {
			t.Errorf("Resolver = %+v, want parallel with fanout 5", cfg.Resolver)
		}
		if cfg.Log.Format != "json" {
			t.Errorf("Log.Format = %s, want json", cfg.Log.Format)
		}
	})

	t.Run("fails validation for invalid cache type", func(t *testing.T) {
		chdirTemp(t)
		t.Setenv("ALLERGENLENS_LLM_API_KEY", "test-key")
		t.Setenv("ALLERGENLENS_CACHE_TYPE", "invalid")

		if _, err := Load(); err == nil {
			t.Error("Load() error = nil, want error for invalid cache type")
		}
	})

	t.Run("fails validation when redis URL missing for redis cache", func(t *testing.T) {
		chdirTemp(t)
		t.Setenv("ALLERGENLENS_LLM_API_KEY", "test-key")
		t.Setenv("ALLERGENLENS_CACHE_TYPE", "redis")

		if _, err := Load(); err == nil {
			t.Error("Load() error = nil, want error for missing Redis URL")
		}
	})
}

func TestLoadWith(t *testing.T) {
	t.Run("override runs before validation", func(t *testing.T) {
		chdirTemp(t)
		t.Setenv("ALLERGENLENS_LLM_API_KEY", "")

		if _, err := Load(); err == nil {
			t.Fatal("Load() error = nil, want missing API key error")
		}

		cfg, err := LoadWith(func(c *Config) { c.LLM.Enabled = false })
		if err != nil {
			t.Fatalf("LoadWith() error = %v, want nil", err)
		}
		if cfg.LLM.Enabled {
			t.Error("LLM.Enabled = true, want false after override")
		}
	})

	t.Run("overridden values are still validated", func(t *testing.T) {
		chdirTemp(t)
		t.Setenv("ALLERGENLENS_LLM_API_KEY", "test-key")

		_, err := LoadWith(func(c *Config) { c.Cache.Type = "disk" })
		if err == nil {
			t.Fatal("LoadWith() error = nil, want invalid cache type")
		}
	})
}

func TestLoadEnvFile(t *testing.T) {
	t.Run("returns nil when .env file doesn't exist", func(t *testing.T) {
		chdirTemp(t)

		if err := loadEnvFile(); err != nil {
			t.Errorf("loadEnvFile() error = %v, want nil when file doesn't exist", err)
		}
	})

	t.Run("skips comments and keeps existing variables", func(t *testing.T) {
		chdirTemp(t)
		t.Setenv("TEST_OVERRIDE", "existing-value")
		os.Unsetenv("TEST_DOTENV_1")
		os.Unsetenv("TEST_COMMENTED")
		t.Cleanup(func() { os.Unsetenv("TEST_DOTENV_1") })

		envContent := `
# Comment line
TEST_DOTENV_1=value1
TEST_OVERRIDE=new-value
# TEST_COMMENTED=should_not_load
`
		if err := os.WriteFile(".env", []byte(envContent), 0644); err != nil {
			t.Fatalf("Failed to create test .env file: %v", err)
		}

		if err := loadEnvFile(); err != nil {
			t.Fatalf("loadEnvFile() error = %v, want nil", err)
		}

		if os.Getenv("TEST_DOTENV_1") != "value1" {
			t.Errorf("TEST_DOTENV_1 = %s, want value1", os.Getenv("TEST_DOTENV_1"))
		}
		if os.Getenv("TEST_OVERRIDE") != "existing-value" {
			t.Errorf("TEST_OVERRIDE = %s, want existing-value (should not override)", os.Getenv("TEST_OVERRIDE"))
		}
		if os.Getenv("TEST_COMMENTED") != "" {
			t.Error("TEST_COMMENTED should not be loaded from comment")
		}
	})
}

func validConfig() *Config {
	return &Config{
		LLM:           LLMConfig{Enabled: true, APIKey: "test-key"},
		OpenFoodFacts: OpenFoodFactsConfig{Locale: "world"},
		Resolver:      ResolverConfig{Strategy: "sequential", Fanout: 1, URLVerification: "verified"},
		Cache:         CacheConfig{Type: "memory"},
	}
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"missing api key", func(c *Config) { c.LLM.APIKey = "" }, true},
		{"llm disabled without key", func(c *Config) { c.LLM.Enabled = false; c.LLM.APIKey = "" }, false},
		{"invalid cache type", func(c *Config) { c.Cache.Type = "invalid-type" }, true},
		{"redis with url", func(c *Config) { c.Cache.Type = "redis"; c.Cache.RedisURL = "redis://localhost:6379" }, false},
		{"redis without url", func(c *Config) { c.Cache.Type = "redis" }, true},
		{"unknown strategy", func(c *Config) { c.Resolver.Strategy = "random" }, true},
		{"zero fanout", func(c *Config) { c.Resolver.Fanout = 0 }, true},
		{"unknown url verification", func(c *Config) { c.Resolver.URLVerification = "browser" }, true},
		{"unknown locale", func(c *Config) { c.OpenFoodFacts.Locale = "xx" }, true},
		{"negative rate limit", func(c *Config) { c.RateLimit.PerIP = -1 }, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)

			err := validate(cfg)
			if tc.wantErr && err == nil {
				t.Error("validate() error = nil, want error")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("validate() error = %v, want nil", err)
			}
		})
	}
}
