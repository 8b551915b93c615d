// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	stderrors "foodlog/internal/common/errors"
)

func Load() (*Config, error) {
	loadEnvFile()

	// Base config
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("../../configs")
	viper.AddConfigPath(".")

	// Enable ENV override like OLLAMA_HOST
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	envConfigFile := fmt.Sprintf("config.%s", env)
	viper.SetConfigName(envConfigFile)
	_ = viper.MergeInConfig() // ignore error if not found

	expandEnvVars(viper.GetViper())

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// loadEnvFile loads .env from multiple possible locations.
func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
		"../../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// Find project root by looking for go.mod
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

// expandEnvVars resolves ${VAR} placeholders in string config values.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		val := v.Get(key)

		if strVal, ok := val.(string); ok {
			if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
				expanded := os.ExpandEnv(strVal)
				if expanded != strVal && expanded != "" {
					v.Set(key, expanded)
				}
			}
		}
	}
}

// overrideEmptyConfig applies direct environment overrides when config values
// are still empty after expansion.
func overrideEmptyConfig(cfg *Config) {
	// Ollama
	if val := os.Getenv("OLLAMA_HOST"); val != "" {
		cfg.Ollama.Host = val
	}
	if val := os.Getenv("OLLAMA_MODEL"); val != "" {
		cfg.Ollama.Model = val
	}
	if val := envInt("OLLAMA_NUM_CTX"); val > 0 {
		cfg.Ollama.NumCtx = val
	}
	if val := envInt("OLLAMA_MAX_TOKENS"); val > 0 {
		cfg.Ollama.MaxTokens = val
	}
	if val := envInt("OLLAMA_REQUEST_TIMEOUT_MS"); val > 0 {
		cfg.Ollama.TimeoutMS = val
	}
	if val := os.Getenv("OLLAMA_KEEP_ALIVE"); val != "" {
		cfg.Ollama.KeepAlive = val
	}

	// Providers
	if cfg.Providers.FoodDataCentral.APIKey == "" {
		if val := os.Getenv("FDC_API_KEY"); val != "" {
			cfg.Providers.FoodDataCentral.APIKey = val
		}
	}

	// Resolver
	if val := envInt("NUTRITION_CONCURRENCY"); val > 0 {
		cfg.Nutrition.Concurrency = val
	}
	if val := os.Getenv("COUNTRY_ISO2"); val != "" {
		cfg.Nutrition.CountryISO2 = val
	}

	// Redis (optional remote cache tier)
	if cfg.Redis.Address == "" {
		if val := os.Getenv("REDIS_ADDR"); val != "" {
			cfg.Redis.Address = val
		}
	}
	if cfg.Redis.Password == "" {
		if val := os.Getenv("REDIS_PASSWORD"); val != "" {
			cfg.Redis.Password = val
		}
	}
	if val := envInt("REDIS_DB"); val > 0 {
		cfg.Redis.DB = val
	}
}

func envInt(name string) int {
	val := os.Getenv(name)
	if val == "" {
		return 0
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0
	}
	return n
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	viper.SetConfigFile(path)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	expandEnvVars(viper.GetViper())

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "foodlog"
	}
	if cfg.App.Environment == "" {
		cfg.App.Environment = "development"
	}

	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}

	// Ollama defaults
	if cfg.Ollama.Host == "" {
		cfg.Ollama.Host = "http://127.0.0.1:11434"
	}
	if cfg.Ollama.Model == "" {
		cfg.Ollama.Model = "qwen2.5:3b-instruct"
	}
	if cfg.Ollama.NumCtx == 0 {
		cfg.Ollama.NumCtx = 1024
	}
	if cfg.Ollama.MaxTokens == 0 {
		cfg.Ollama.MaxTokens = 384
	}
	if cfg.Ollama.TimeoutMS == 0 {
		cfg.Ollama.TimeoutMS = 60000
	}
	if cfg.Ollama.KeepAlive == "" {
		cfg.Ollama.KeepAlive = "10m"
	}

	// Provider defaults
	if cfg.Providers.OpenFoodFacts.BaseURL == "" {
		cfg.Providers.OpenFoodFacts.BaseURL = "https://world.openfoodfacts.org"
	}
	if cfg.Providers.FoodDataCentral.BaseURL == "" {
		cfg.Providers.FoodDataCentral.BaseURL = "https://api.nal.usda.gov/fdc/v1"
	}
	if cfg.Providers.CacheTTLHours == 0 {
		cfg.Providers.CacheTTLHours = 7 * 24
	}
	if cfg.Providers.CacheSize == 0 {
		cfg.Providers.CacheSize = 500
	}

	// Resolver defaults
	if cfg.Nutrition.Concurrency == 0 {
		cfg.Nutrition.Concurrency = 4
	}
	if cfg.Nutrition.Concurrency < 1 {
		cfg.Nutrition.Concurrency = 1
	}
	if cfg.Nutrition.Concurrency > 10 {
		cfg.Nutrition.Concurrency = 10
	}
	if cfg.Nutrition.CountryISO2 == "" {
		cfg.Nutrition.CountryISO2 = "US"
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

// validateConfig checks that required fields are present and coherent.
func validateConfig(cfg *Config) error {
	if cfg.Ollama.Host == "" {
		return stderrors.NewConfigurationInvalidError("ollama host is required")
	}
	if cfg.Ollama.Model == "" {
		return stderrors.NewConfigurationInvalidError("ollama model is required")
	}
	if cfg.Providers.OpenFoodFacts.BaseURL == "" {
		return stderrors.NewConfigurationInvalidError("open food facts base URL is required")
	}
	if cfg.Providers.FoodDataCentral.BaseURL == "" {
		return stderrors.NewConfigurationInvalidError("fooddata central base URL is required")
	}
	if cfg.Nutrition.Concurrency < 1 || cfg.Nutrition.Concurrency > 10 {
		return stderrors.NewConfigurationInvalidError(
			fmt.Sprintf("nutrition concurrency must be between 1 and 10, got %d", cfg.Nutrition.Concurrency))
	}
	if len(cfg.Nutrition.CountryISO2) != 2 {
		return stderrors.NewConfigurationInvalidError(
			fmt.Sprintf("country code must be two letters, got %q", cfg.Nutrition.CountryISO2))
	}
	return nil
}
