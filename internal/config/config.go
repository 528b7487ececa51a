package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server     ServerConfig     `mapstructure:"server" validate:"required"`
	Database   DatabaseConfig   `mapstructure:"database" validate:"required"`
	Auth       AuthConfig       `mapstructure:"auth" validate:"required"`
	LLM        LLMConfig        `mapstructure:"llm" validate:"required"`
	Enrichment EnrichmentConfig `mapstructure:"enrichment" validate:"required"`
	Task       TaskConfig       `mapstructure:"task" validate:"required"`
	Redis      RedisConfig      `mapstructure:"redis"`
	CORS       CORSConfig       `mapstructure:"cors"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port                   int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel               string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	ShutdownTimeoutSeconds int    `mapstructure:"shutdown_timeout_seconds" validate:"gt=0"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL          string `mapstructure:"url" validate:"required,url"`
	MaxOpenConns int    `mapstructure:"max_open_conns" validate:"gt=0"`
	MaxIdleConns int    `mapstructure:"max_idle_conns" validate:"gte=0"`
}

// AuthConfig contains all authentication and authorization settings.
type AuthConfig struct {
	JWTSecret            string `mapstructure:"jwt_secret" validate:"required,min=32"`
	TokenLifetimeMinutes int    `mapstructure:"token_lifetime_minutes" validate:"gt=0"`
}

// LLM provider identifiers.
const (
	ProviderGeminiREST = "gemini"
	ProviderGeminiSDK  = "gemini-sdk"
	ProviderOpenAI     = "openai"
)

// LLMConfig configures the generative-text backend used for enrichment.
type LLMConfig struct {
	Provider          string  `mapstructure:"provider" validate:"required,oneof=gemini gemini-sdk openai"`
	EndpointURL       string  `mapstructure:"endpoint_url" validate:"omitempty,url"`
	APIKey            string  `mapstructure:"api_key" validate:"required"`
	ModelName         string  `mapstructure:"model_name" validate:"required"`
	TimeoutSeconds    int     `mapstructure:"timeout_seconds" validate:"gt=0"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second" validate:"gt=0"`
	Burst             int     `mapstructure:"burst" validate:"gt=0"`
	CacheTTLMinutes   int     `mapstructure:"cache_ttl_minutes" validate:"gte=0"`
	// PromptsPath optionally points at a YAML file overriding the built-in prompts.
	PromptsPath string `mapstructure:"prompts_path"`
}

// Timeout returns the per-request deadline for the generative-text backend.
func (c LLMConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Enrichment execution modes.
const (
	ModeDeferred = "deferred"
	ModeInline   = "inline"
)

// EnrichmentConfig holds the retry budget and uniqueness settings of the
// slug/summary pipeline.
type EnrichmentConfig struct {
	Mode                  string `mapstructure:"mode" validate:"required,oneof=deferred inline"`
	MaxAttempts           int    `mapstructure:"max_attempts" validate:"gt=0"`
	AttemptTimeoutSeconds int    `mapstructure:"attempt_timeout_seconds" validate:"gt=0"`
	RetryBaseDelayMillis  int    `mapstructure:"retry_base_delay_ms" validate:"gte=0"`
	RetryMaxDelayMillis   int    `mapstructure:"retry_max_delay_ms" validate:"gtefield=RetryBaseDelayMillis"`
	MaxSlugConflicts      int    `mapstructure:"max_slug_conflicts" validate:"gt=0"`
	SlugMaxLength         int    `mapstructure:"slug_max_length" validate:"gt=0"`
	LockTTLSeconds        int    `mapstructure:"lock_ttl_seconds" validate:"gt=0"`
}

// AttemptTimeout returns the deadline applied to a single enrichment attempt.
func (c EnrichmentConfig) AttemptTimeout() time.Duration {
	return time.Duration(c.AttemptTimeoutSeconds) * time.Second
}

// RetryBaseDelay returns the initial backoff between attempts.
func (c EnrichmentConfig) RetryBaseDelay() time.Duration {
	return time.Duration(c.RetryBaseDelayMillis) * time.Millisecond
}

// RetryMaxDelay returns the cap on the backoff between attempts.
func (c EnrichmentConfig) RetryMaxDelay() time.Duration {
	return time.Duration(c.RetryMaxDelayMillis) * time.Millisecond
}

// TaskConfig contains settings for the background task runner.
type TaskConfig struct {
	WorkerCount               int `mapstructure:"worker_count" validate:"gt=0"`
	QueueSize                 int `mapstructure:"queue_size" validate:"gt=0"`
	StuckTaskAgeMinutes       int `mapstructure:"stuck_task_age_minutes" validate:"gt=0"`
	StuckCheckIntervalMinutes int `mapstructure:"stuck_check_interval_minutes" validate:"gt=0"`
}

// RedisConfig enables the distributed article lock when Address is set.
type RedisConfig struct {
	Address  string `mapstructure:"address" validate:"omitempty,hostname_port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db" validate:"gte=0"`
}

// Enabled reports whether a Redis server is configured.
func (c RedisConfig) Enabled() bool {
	return c.Address != ""
}

// CORSConfig lists the browser origins allowed to call the API.
type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
}
