// internal/common/config/config.go
package config

import "time"

// Config is the main application configuration struct.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Server    ServerConfig    `mapstructure:"server"`
	Ollama    OllamaConfig    `mapstructure:"ollama"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Nutrition NutritionConfig `mapstructure:"nutrition"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Address string `mapstructure:"address"`
}

// OllamaConfig holds settings for the local language-model endpoint.
type OllamaConfig struct {
	Host      string `mapstructure:"host"`
	Model     string `mapstructure:"model"`
	NumCtx    int    `mapstructure:"num_ctx"`
	MaxTokens int    `mapstructure:"max_tokens"`
	TimeoutMS int    `mapstructure:"timeout_ms"`
	KeepAlive string `mapstructure:"keep_alive"`
}

// GetTimeout returns the request timeout as a duration.
func (o OllamaConfig) GetTimeout() time.Duration {
	return time.Duration(o.TimeoutMS) * time.Millisecond
}

// ProvidersConfig holds settings for the nutrition data providers.
type ProvidersConfig struct {
	OpenFoodFacts   OpenFoodFactsConfig   `mapstructure:"open_food_facts"`
	FoodDataCentral FoodDataCentralConfig `mapstructure:"fooddata_central"`
	CacheTTLHours   int                   `mapstructure:"cache_ttl_hours"`
	CacheSize       int                   `mapstructure:"cache_size"`
}

// GetCacheTTL returns the provider cache TTL as a duration.
func (p ProvidersConfig) GetCacheTTL() time.Duration {
	return time.Duration(p.CacheTTLHours) * time.Hour
}

type OpenFoodFactsConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

type FoodDataCentralConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
}

// NutritionConfig holds resolver settings.
type NutritionConfig struct {
	Concurrency int    `mapstructure:"concurrency"`
	CountryISO2 string `mapstructure:"country_iso2"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
