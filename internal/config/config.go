// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	JWTSecret      string `mapstructure:"JWT_SECRET"`
	Port           string `mapstructure:"PORT"`
	Env            string `mapstructure:"APP_ENV"`
	AllowedOrigins string `mapstructure:"ALLOWED_ORIGINS"`
	FeatureFlags   string `mapstructure:"FEATURE_FLAGS"`
	LogLevel       string `mapstructure:"LOG_LEVEL"`

	DBHost                        string `mapstructure:"DB_HOST"`
	DBPort                        string `mapstructure:"DB_PORT"`
	DBUser                        string `mapstructure:"DB_USER"`
	DBPassword                    string `mapstructure:"DB_PASSWORD"`
	DBName                        string `mapstructure:"DB_NAME"`
	DBSSLMode                     string `mapstructure:"DB_SSLMODE"`
	DBReadHost                    string `mapstructure:"DB_READ_HOST"`
	DBReadPort                    string `mapstructure:"DB_READ_PORT"`
	DBReadUser                    string `mapstructure:"DB_READ_USER"`
	DBReadPassword                string `mapstructure:"DB_READ_PASSWORD"`
	DBMaxOpenConns                int    `mapstructure:"DB_MAX_OPEN_CONNS"`
	DBMaxIdleConns                int    `mapstructure:"DB_MAX_IDLE_CONNS"`
	DBConnMaxLifetimeMinutes      int    `mapstructure:"DB_CONN_MAX_LIFETIME_MINUTES"`
	DBSchemaMode                  string `mapstructure:"DB_SCHEMA_MODE"`
	DBAutoMigrateAllowDestructive bool   `mapstructure:"DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE"`

	RedisURL string `mapstructure:"REDIS_URL"`

	StorageDir           string `mapstructure:"STORAGE_DIR"`
	StoragePublicURL     string `mapstructure:"STORAGE_PUBLIC_URL"`
	ImageMaxUploadSizeMB int    `mapstructure:"IMAGE_MAX_UPLOAD_SIZE_MB"`
	AudioMaxUploadSizeMB int    `mapstructure:"AUDIO_MAX_UPLOAD_SIZE_MB"`

	AIProvider            string        `mapstructure:"AI_PROVIDER"`
	OpenAIAPIKey          string        `mapstructure:"OPENAI_API_KEY"`
	OpenAIModel           string        `mapstructure:"OPENAI_MODEL"`
	OpenAIBaseURL         string        `mapstructure:"OPENAI_BASE_URL"`
	OpenAITranscribeModel string        `mapstructure:"OPENAI_TRANSCRIBE_MODEL"`
	GeminiAPIKey          string        `mapstructure:"GEMINI_API_KEY"`
	GeminiModel           string        `mapstructure:"GEMINI_MODEL"`
	AIRequestTimeout      time.Duration `mapstructure:"AI_REQUEST_TIMEOUT"`
	AIContextTokenBudget  int           `mapstructure:"AI_CONTEXT_TOKEN_BUDGET"`
	ChapterMaxAttempts    int           `mapstructure:"AI_CHAPTER_MAX_ATTEMPTS"`
	ChapterRetryBase      time.Duration `mapstructure:"AI_CHAPTER_RETRY_BASE"`

	ChatReplyMaxChars   int           `mapstructure:"CHAT_REPLY_MAX_CHARS"`
	ChatHistoryWindow   int           `mapstructure:"CHAT_HISTORY_WINDOW"`
	ChatAutoMinRounds   int           `mapstructure:"CHAT_AUTO_MIN_ROUNDS"`
	ChatAutoMaxRounds   int           `mapstructure:"CHAT_AUTO_MAX_ROUNDS"`
	ChatSkipProbability float64       `mapstructure:"CHAT_SKIP_PROBABILITY"`
	ChatRoundDelay      time.Duration `mapstructure:"CHAT_ROUND_DELAY"`
	ChatMaxParallel     int           `mapstructure:"CHAT_MAX_PARALLEL"`
	ChatTurnLockTTL     time.Duration `mapstructure:"CHAT_TURN_LOCK_TTL"`

	ImageSearchURL string `mapstructure:"IMAGE_SEARCH_URL"`
	ImageSearchKey string `mapstructure:"IMAGE_SEARCH_KEY"`

	TracingEnabled      bool    `mapstructure:"TRACING_ENABLED"`
	TracingExporter     string  `mapstructure:"TRACING_EXPORTER"`
	TracingOTLPEndpoint string  `mapstructure:"TRACING_OTLP_ENDPOINT"`
	TracingSampleRatio  float64 `mapstructure:"TRACING_SAMPLE_RATIO"`

	DevBootstrapRoot bool   `mapstructure:"DEV_BOOTSTRAP_ROOT"`
	DevRootUsername  string `mapstructure:"DEV_ROOT_USERNAME"`
	DevRootEmail     string `mapstructure:"DEV_ROOT_EMAIL"`
	DevRootPassword  string `mapstructure:"DEV_ROOT_PASSWORD"`

	DevRootForceCredentials bool `mapstructure:"DEV_ROOT_FORCE_CREDENTIALS"`
	DevSeedDemo             bool `mapstructure:"DEV_SEED_DEMO"`
}

const defaultJWTSecret = "your-secret-key-change-in-production"

// LoadConfig loads application configuration from file and environment variables.
func LoadConfig() (*Config, error) {
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AutomaticEnv()

	// The base file is optional; env vars alone are a valid configuration.
	_ = viper.ReadInConfig()

	env := viper.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	if env != "development" && env != "test" {
		viper.SetConfigName("config." + env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("required profile-specific config 'config.%s.yml' not found: %w", env, err)
		}
		slog.Info("loaded profile-specific configuration", slog.String("file", "config."+env+".yml"))
	}

	setDefaults()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	config.normalize()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("PORT", "8375")
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173")
	viper.SetDefault("FEATURE_FLAGS", "auto_chat=on,ai_recommendations=off")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("JWT_SECRET", defaultJWTSecret)

	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_USER", "user")
	viper.SetDefault("DB_PASSWORD", "password")
	viper.SetDefault("DB_NAME", "fableweaver")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("DB_READ_HOST", "")
	viper.SetDefault("DB_READ_PORT", "5432")
	viper.SetDefault("DB_READ_USER", "user")
	viper.SetDefault("DB_READ_PASSWORD", "password")
	viper.SetDefault("DB_MAX_OPEN_CONNS", 25)
	viper.SetDefault("DB_MAX_IDLE_CONNS", 5)
	viper.SetDefault("DB_CONN_MAX_LIFETIME_MINUTES", 5)
	viper.SetDefault("DB_SCHEMA_MODE", "hybrid")

	viper.SetDefault("REDIS_URL", "localhost:6379")

	viper.SetDefault("STORAGE_DIR", "./data/media")
	viper.SetDefault("STORAGE_PUBLIC_URL", "/media")
	viper.SetDefault("IMAGE_MAX_UPLOAD_SIZE_MB", 10)
	viper.SetDefault("AUDIO_MAX_UPLOAD_SIZE_MB", 25)

	viper.SetDefault("AI_PROVIDER", "openai")
	viper.SetDefault("OPENAI_MODEL", "gpt-4o-mini")
	viper.SetDefault("OPENAI_TRANSCRIBE_MODEL", "whisper-1")
	viper.SetDefault("GEMINI_MODEL", "gemini-2.5-flash")
	viper.SetDefault("AI_REQUEST_TIMEOUT", 60*time.Second)
	viper.SetDefault("AI_CONTEXT_TOKEN_BUDGET", 6000)
	viper.SetDefault("AI_CHAPTER_MAX_ATTEMPTS", 3)
	viper.SetDefault("AI_CHAPTER_RETRY_BASE", time.Second)

	viper.SetDefault("CHAT_REPLY_MAX_CHARS", 500)
	viper.SetDefault("CHAT_HISTORY_WINDOW", 20)
	viper.SetDefault("CHAT_AUTO_MIN_ROUNDS", 1)
	viper.SetDefault("CHAT_AUTO_MAX_ROUNDS", 3)
	viper.SetDefault("CHAT_SKIP_PROBABILITY", 0.3)
	viper.SetDefault("CHAT_ROUND_DELAY", 1500*time.Millisecond)
	viper.SetDefault("CHAT_MAX_PARALLEL", 4)
	viper.SetDefault("CHAT_TURN_LOCK_TTL", 2*time.Minute)

	viper.SetDefault("IMAGE_SEARCH_URL", "https://api.unsplash.com")

	viper.SetDefault("TRACING_ENABLED", false)
	viper.SetDefault("TRACING_EXPORTER", "stdout")
	viper.SetDefault("TRACING_SAMPLE_RATIO", 1.0)

	viper.SetDefault("DEV_BOOTSTRAP_ROOT", false)
	viper.SetDefault("DEV_ROOT_FORCE_CREDENTIALS", false)
	viper.SetDefault("DEV_SEED_DEMO", false)
}

func (c *Config) normalize() {
	c.DBSSLMode = strings.ToLower(strings.TrimSpace(c.DBSSLMode))
	c.AIProvider = strings.ToLower(strings.TrimSpace(c.AIProvider))
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
}

// IsProduction reports whether the config targets a production deployment.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// Validate ensures that required configuration values are present and meet security standards.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.ImageMaxUploadSizeMB <= 0 {
		return errors.New("IMAGE_MAX_UPLOAD_SIZE_MB must be positive")
	}
	if c.AudioMaxUploadSizeMB <= 0 {
		return errors.New("AUDIO_MAX_UPLOAD_SIZE_MB must be positive")
	}
	if c.DBConnMaxLifetimeMinutes <= 0 {
		return errors.New("DB_CONN_MAX_LIFETIME_MINUTES must be positive")
	}

	switch c.AIProvider {
	case "", "openai", "gemini":
	default:
		return fmt.Errorf("unsupported AI_PROVIDER %q", c.AIProvider)
	}

	if c.ChatAutoMinRounds < 0 || c.ChatAutoMaxRounds < c.ChatAutoMinRounds {
		return errors.New("CHAT_AUTO_MIN_ROUNDS must be >= 0 and <= CHAT_AUTO_MAX_ROUNDS")
	}
	if c.ChatSkipProbability < 0 || c.ChatSkipProbability >= 1 {
		return errors.New("CHAT_SKIP_PROBABILITY must be in [0, 1)")
	}

	if c.IsProduction() {
		if c.JWTSecret == defaultJWTSecret {
			return errors.New("JWT_SECRET must be changed from the default value in production")
		}
		if len(c.JWTSecret) < 32 {
			return errors.New("JWT_SECRET must be at least 32 characters in production")
		}
		if c.DBPassword == "password" || c.DBPassword == "" {
			return errors.New("a strong DB_PASSWORD is required in production")
		}
		if c.DBSSLMode == "disable" || c.DBSSLMode == "" {
			return errors.New("DB_SSLMODE must enable TLS in production")
		}
		if c.AllowedOrigins == "*" {
			slog.Warn("ALLOWED_ORIGINS is set to '*' in production")
		}
	} else if len(c.JWTSecret) < 32 {
		slog.Warn("JWT_SECRET is shorter than 32 characters")
	}

	return nil
}
