// Package config provides configuration loading and validation for the API server.
// It uses koanf to merge environment variables with optional file overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/odfp/odfp/internal/ai"
)

// Config holds all configuration values for the API server.
type Config struct {
	// Server settings
	Port int    `koanf:"port"`
	Env  string `koanf:"env"`

	// Database. Empty means run against the in-memory catalog store,
	// which is useful for local development and demos.
	DatabaseURL  string `koanf:"database_url"`
	EnsureSchema bool   `koanf:"ensure_schema"` // Apply extensions, tables, and the fulltext matview on startup

	// Redis. Empty means rate limiting uses the in-process store.
	RedisURL string `koanf:"redis_url"`

	// OpenAI-compatible embedding/completion backend. Empty base URL
	// means the semantic tier and generative expansion are disabled.
	AIBaseURL         string `koanf:"ai_base_url"`
	AIToken           string `koanf:"ai_token"`
	AIEmbeddingModel  string `koanf:"ai_embedding_model"`
	AICompletionModel string `koanf:"ai_completion_model"`

	// Ranking calibration file (JSON). Empty means neutral weights.
	CalibrationPath string `koanf:"calibration_path"`

	// Retrieval tuning
	OverfetchMultiplier int           `koanf:"overfetch_multiplier"`
	TierTimeout         time.Duration `koanf:"tier_timeout"`
	EmbedTimeout        time.Duration `koanf:"embed_timeout"`

	// CORS. Empty list disables cross-origin access entirely.
	CORSAllowedOrigins []string `koanf:"cors_allowed_origins"`

	// Rate limits (requests per minute). Zero selects the built-in
	// defaults.
	GlobalRateLimit int `koanf:"global_rate_limit"`
	SearchRateLimit int `koanf:"search_rate_limit"`
}

// Configuration validation errors.
var (
	ErrInvalidPort             = errors.New("PORT must be a valid integer in 1..65535")
	ErrInvalidOverfetch        = errors.New("OVERFETCH_MULTIPLIER must be a positive integer")
	ErrInvalidRateLimit        = errors.New("rate limits must be non-negative integers")
	ErrMissingEmbeddingModel   = errors.New("AI_EMBEDDING_MODEL is required when AI_BASE_URL is set")
	ErrSchemaWithoutDatabase   = errors.New("ENSURE_SCHEMA requires DATABASE_URL")
	ErrCalibrationPathNotFound = errors.New("CALIBRATION_PATH does not exist")
)

// Default values for non-secret configuration.
const (
	DefaultPort                = 8080
	DefaultEnv                 = "development"
	DefaultOverfetchMultiplier = 5
	DefaultTierTimeout         = 5 * time.Second
	DefaultEmbedTimeout        = 5 * time.Second
)

// Load reads configuration from environment variables and an optional config file.
// Environment variables take precedence over file values.
// Returns the loaded config and a slice of validation errors (empty if valid).
// If a config file path is provided and the file cannot be loaded, an error is returned.
func Load(configFilePath string) (*Config, []error) {
	k := koanf.New(".")
	var loadErrs []error

	// Load from YAML file first if provided (lower precedence)
	if configFilePath != "" {
		if err := k.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
			return nil, []error{fmt.Errorf("failed to load config file %s: %w", configFilePath, err)}
		}
	}

	// Parse port from env, collecting error if invalid
	// Try ODFP_PORT first, then PORT for backward compatibility
	port, portErr := getEnvIntOrDefaultMulti([]string{"ODFP_PORT", "PORT"}, k.Int("port"), DefaultPort)
	if portErr != nil {
		loadErrs = append(loadErrs, portErr)
	}

	overfetch, overfetchErr := getEnvIntOrDefault("OVERFETCH_MULTIPLIER", k.Int("overfetch_multiplier"), DefaultOverfetchMultiplier)
	if overfetchErr != nil {
		loadErrs = append(loadErrs, overfetchErr)
	}

	globalLimit, globalErr := getEnvIntOrDefault("GLOBAL_RATE_LIMIT", k.Int("global_rate_limit"), 0)
	if globalErr != nil {
		loadErrs = append(loadErrs, globalErr)
	}
	searchLimit, searchErr := getEnvIntOrDefault("SEARCH_RATE_LIMIT", k.Int("search_rate_limit"), 0)
	if searchErr != nil {
		loadErrs = append(loadErrs, searchErr)
	}

	tierTimeout, tierErr := getEnvDurationOrDefault("TIER_TIMEOUT", k.Duration("tier_timeout"), DefaultTierTimeout)
	if tierErr != nil {
		loadErrs = append(loadErrs, tierErr)
	}
	embedTimeout, embedErr := getEnvDurationOrDefault("EMBED_TIMEOUT", k.Duration("embed_timeout"), DefaultEmbedTimeout)
	if embedErr != nil {
		loadErrs = append(loadErrs, embedErr)
	}

	// Parse schema flag from env with default
	ensureSchema := false
	if k.Exists("ensure_schema") {
		ensureSchema = k.Bool("ensure_schema")
	}
	if val := os.Getenv("ENSURE_SCHEMA"); val != "" {
		// Env var takes precedence over file config
		switch strings.ToLower(val) {
		case "true", "1", "yes", "on":
			ensureSchema = true
		case "false", "0", "no", "off":
			ensureSchema = false
		}
	}

	// Build config struct, with env vars taking precedence over file values
	cfg := &Config{
		Port:                port,
		Env:                 getEnvOrDefaultMulti([]string{"ODFP_ENV", "ENV", "GO_ENV"}, k.String("env"), DefaultEnv),
		DatabaseURL:         getEnvOrKoanf("DATABASE_URL", k, "database_url"),
		EnsureSchema:        ensureSchema,
		RedisURL:            getEnvOrKoanf("REDIS_URL", k, "redis_url"),
		AIBaseURL:           getEnvOrKoanf("AI_BASE_URL", k, "ai_base_url"),
		AIToken:             getEnvOrKoanf("AI_TOKEN", k, "ai_token"),
		AIEmbeddingModel:    getEnvOrKoanf("AI_EMBEDDING_MODEL", k, "ai_embedding_model"),
		AICompletionModel:   getEnvOrKoanf("AI_COMPLETION_MODEL", k, "ai_completion_model"),
		CalibrationPath:     getEnvOrKoanf("CALIBRATION_PATH", k, "calibration_path"),
		OverfetchMultiplier: overfetch,
		TierTimeout:         tierTimeout,
		EmbedTimeout:        embedTimeout,
		CORSAllowedOrigins:  getEnvListOrKoanf("CORS_ALLOWED_ORIGINS", k, "cors_allowed_origins"),
		GlobalRateLimit:     globalLimit,
		SearchRateLimit:     searchLimit,
	}

	// Validate and collect errors
	errs := cfg.Validate()
	errs = append(loadErrs, errs...)

	return cfg, errs
}

// AI returns the embedding backend portion of the config.
func (c *Config) AI() *ai.Config {
	return &ai.Config{
		BaseURL:         c.AIBaseURL,
		Token:           c.AIToken,
		EmbeddingModel:  c.AIEmbeddingModel,
		CompletionModel: c.AICompletionModel,
	}
}

// IsProduction reports whether the server runs in the production environment.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// getEnvOrKoanf returns the environment variable value if set, otherwise the koanf value.
func getEnvOrKoanf(envKey string, k *koanf.Koanf, koanfKey string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	return k.String(koanfKey)
}

// getEnvListOrKoanf returns a comma-separated environment variable as a
// slice if set, otherwise the koanf string slice.
func getEnvListOrKoanf(envKey string, k *koanf.Koanf, koanfKey string) []string {
	if val := os.Getenv(envKey); val != "" {
		parts := strings.Split(val, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return k.Strings(koanfKey)
}

// getEnvOrDefaultMulti tries multiple environment variable keys in order.
// Returns the first non-empty value found, otherwise the koanf value, or default.
func getEnvOrDefaultMulti(envKeys []string, koanfVal string, defaultVal string) string {
	for _, key := range envKeys {
		if val := os.Getenv(key); val != "" {
			return val
		}
	}
	if koanfVal != "" {
		return koanfVal
	}
	return defaultVal
}

// getEnvIntOrDefault returns the environment variable as int if set, otherwise the koanf value, or default.
// Returns an error if the environment variable is set but cannot be parsed as an integer.
// Note: a zero value in a YAML file falls back to the default.
func getEnvIntOrDefault(envKey string, koanfVal int, defaultVal int) (int, error) {
	if val := os.Getenv(envKey); val != "" {
		i, err := strconv.Atoi(val)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid integer: %w", envKey, err)
		}
		return i, nil
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// getEnvIntOrDefaultMulti tries multiple environment variable keys in order.
// Returns the first valid integer value found, otherwise the koanf value, or default.
// Returns an error if any environment variable is set but cannot be parsed as an integer.
func getEnvIntOrDefaultMulti(envKeys []string, koanfVal int, defaultVal int) (int, error) {
	for _, key := range envKeys {
		if val := os.Getenv(key); val != "" {
			i, err := strconv.Atoi(val)
			if err != nil {
				return 0, fmt.Errorf("%s must be a valid integer: %w", key, ErrInvalidPort)
			}
			return i, nil
		}
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// getEnvDurationOrDefault returns the environment variable as a duration if set,
// otherwise the koanf value, or default. Accepts Go duration syntax ("500ms", "3s").
func getEnvDurationOrDefault(envKey string, koanfVal time.Duration, defaultVal time.Duration) (time.Duration, error) {
	if val := os.Getenv(envKey); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid duration: %w", envKey, err)
		}
		return d, nil
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// Validate checks configuration consistency.
// Returns a slice of validation errors (empty if valid).
func (c *Config) Validate() []error {
	var errs []error

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, ErrInvalidPort)
	}
	if c.OverfetchMultiplier <= 0 {
		errs = append(errs, ErrInvalidOverfetch)
	}
	if c.GlobalRateLimit < 0 || c.SearchRateLimit < 0 {
		errs = append(errs, ErrInvalidRateLimit)
	}
	if c.EnsureSchema && c.DatabaseURL == "" {
		errs = append(errs, ErrSchemaWithoutDatabase)
	}

	// The AI backend is optional, but a configured one must name its
	// embedding model.
	if c.AIBaseURL != "" && c.AIEmbeddingModel == "" {
		errs = append(errs, ErrMissingEmbeddingModel)
	}

	if c.CalibrationPath != "" {
		if _, err := os.Stat(c.CalibrationPath); err != nil {
			errs = append(errs, fmt.Errorf("%w: %s", ErrCalibrationPathNotFound, c.CalibrationPath))
		}
	}

	return errs
}

// LogSummary returns a summary of the configuration suitable for logging.
// All secrets are masked to prevent accidental exposure.
func (c *Config) LogSummary() map[string]string {
	return map[string]string{
		"port":                 fmt.Sprintf("%d", c.Port),
		"env":                  c.Env,
		"database_url":         maskDatabaseURL(c.DatabaseURL),
		"ensure_schema":        fmt.Sprintf("%t", c.EnsureSchema),
		"redis_url":            maskDatabaseURL(c.RedisURL),
		"ai_base_url":          c.AIBaseURL,
		"ai_token":             maskSecret(c.AIToken),
		"ai_embedding_model":   c.AIEmbeddingModel,
		"ai_completion_model":  c.AICompletionModel,
		"calibration_path":     c.CalibrationPath,
		"overfetch_multiplier": fmt.Sprintf("%d", c.OverfetchMultiplier),
		"tier_timeout":         c.TierTimeout.String(),
		"embed_timeout":        c.EmbedTimeout.String(),
		"cors_allowed_origins": strings.Join(c.CORSAllowedOrigins, ","),
		"global_rate_limit":    fmt.Sprintf("%d", c.GlobalRateLimit),
		"search_rate_limit":    fmt.Sprintf("%d", c.SearchRateLimit),
	}
}

// maskSecret masks a secret value, showing only the first 4 characters followed by ****
// If the secret is shorter than 8 characters, it's fully masked.
func maskSecret(s string) string {
	if s == "" {
		return "<not set>"
	}
	if len(s) < 8 {
		return "****"
	}
	return s[:4] + "****"
}

// maskDatabaseURL masks the password in a connection URL.
// Supports postgres://, postgresql://, and redis:// schemes.
func maskDatabaseURL(s string) string {
	if s == "" {
		return "<not set>"
	}

	// Look for password pattern: user:password@host
	// Simple approach: find :// and then mask between : and @
	schemeEnd := strings.Index(s, "://")
	if schemeEnd == -1 {
		return maskSecret(s)
	}

	rest := s[schemeEnd+3:]
	atIndex := strings.Index(rest, "@")
	if atIndex == -1 {
		return s // No credentials in URL
	}

	colonIndex := strings.Index(rest[:atIndex], ":")
	if colonIndex == -1 {
		return s // No password (only username)
	}

	// Reconstruct URL with masked password
	scheme := s[:schemeEnd+3]
	user := rest[:colonIndex]
	hostAndPath := rest[atIndex:]

	return scheme + user + ":****" + hostAndPath
}
