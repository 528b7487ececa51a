package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable read by Load.
const EnvPrefix = "QUILL"

// DefaultGeminiEndpoint is the generateContent endpoint used when none is configured.
const DefaultGeminiEndpoint = "https://generativelanguage.googleapis.com/v1beta/models/gemini-2.0-flash:generateContent"

// keys that have no default but must still be resolvable from the environment
var requiredKeys = []string{
	"database.url",
	"auth.jwt_secret",
	"llm.api_key",
	"redis.address",
	"redis.password",
	"llm.prompts_path",
}

// Load configuration from environment variables and optionally a config.yaml
// in the working directory. Environment variables take precedence over values
// from the config file. Returns a populated Config or an error if loading or
// validation fails.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	for _, key := range requiredKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind environment variable for %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate runs struct validation over a loaded configuration.
func Validate(cfg *Config) error {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.shutdown_timeout_seconds", 10)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)

	v.SetDefault("auth.token_lifetime_minutes", 60)

	v.SetDefault("llm.provider", ProviderGeminiREST)
	v.SetDefault("llm.endpoint_url", DefaultGeminiEndpoint)
	v.SetDefault("llm.model_name", "gemini-2.0-flash")
	v.SetDefault("llm.timeout_seconds", 30)
	v.SetDefault("llm.requests_per_second", 2.0)
	v.SetDefault("llm.burst", 4)
	v.SetDefault("llm.cache_ttl_minutes", 10)

	v.SetDefault("enrichment.mode", ModeDeferred)
	v.SetDefault("enrichment.max_attempts", 3)
	v.SetDefault("enrichment.attempt_timeout_seconds", 30)
	v.SetDefault("enrichment.retry_base_delay_ms", 500)
	v.SetDefault("enrichment.retry_max_delay_ms", 10000)
	v.SetDefault("enrichment.max_slug_conflicts", 3)
	v.SetDefault("enrichment.slug_max_length", 60)
	v.SetDefault("enrichment.lock_ttl_seconds", 45)

	v.SetDefault("task.worker_count", 2)
	v.SetDefault("task.queue_size", 100)
	v.SetDefault("task.stuck_task_age_minutes", 30)
	v.SetDefault("task.stuck_check_interval_minutes", 5)

	v.SetDefault("redis.db", 0)

	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allow_credentials", false)
}
