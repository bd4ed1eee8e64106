package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/atarokh82/rep-track-analyze/pkg"

	"github.com/BurntSushi/toml"
)

const (
	defaultAnthropicApiURL     = "https://api.anthropic.com/v1/messages"
	defaultAnthropicModel      = "claude-3-5-sonnet-20241022"
	defaultAnthropicMaxTokens  = 1024
	defaultRelayRateLimit      = 100
	defaultLoginRateLimit      = 15
	defaultAnalysisCacheSizeMB = 20
	defaultSessionTTL          = 7 * 24 * time.Hour
)

type Config struct {
	Environment string `toml:"-"`

	Host string `toml:"host"`
	Port int    `toml:"port"`

	// logging
	LogLevel      string `toml:"log_level"`
	LogsPath      string `toml:"logs_path"`
	LogToStdout   bool   `toml:"log_to_stdout"`
	LogFormatJSON bool   `toml:"log_format_json"`
	SentryEnabled bool   `toml:"sentry_enabled"`

	// metrics
	PrometheusMetricsHost string `toml:"prometheus_metrics_host"`
	PrometheusMetricsPort string `toml:"prometheus_metrics_port"`

	// postgres
	PostgresHost   string `toml:"postgres_host"`
	PostgresPort   string `toml:"postgres_port"`
	PostgresDBName string `toml:"postgres_db_name"`
	PostgresUser   string `toml:"postgres_user"`

	// redis
	RedisHost string `toml:"redis_host"`
	RedisPort string `toml:"redis_port"`

	// sessions
	SessionTTL                  Duration `toml:"session_ttl"`
	LoginRateLimitAllowedPerMin int      `toml:"login_rate_limit_allowed_per_min"`

	// CORS allow-list, shared by the API and the AI relay
	AllowedOrigins []string `toml:"allowed_origins"`

	// AI relay / analysis
	AnthropicApiURL             string `toml:"anthropic_api_url"`
	AnthropicModel              string `toml:"anthropic_model"`
	AnthropicMaxTokens          int    `toml:"anthropic_max_tokens"`
	RelayRateLimitAllowedPerMin int    `toml:"relay_rate_limit_allowed_per_min"`
	AnalysisCacheSizeMB         int    `toml:"analysis_cache_size_mb"`
}

// Duration lets TOML carry values like "168h".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", text, err)
	}
	d.Duration = parsed
	return nil
}

type Toml struct {
	Development *Config `toml:"development"`
	Production  *Config `toml:"production"`
	DockerDev   *Config `toml:"dockerdev"`
}

func (t *Toml) Get(env string) (*Config, error) {
	var cfg *Config
	switch strings.ToLower(env) {
	case "dev", "development":
		cfg = t.Development
	case "prod", "production":
		cfg = t.Production
	case "ddev", "dockerdev":
		cfg = t.DockerDev
	default:
		return nil, fmt.Errorf("unknown env: %s", env)
	}
	if cfg == nil {
		return nil, fmt.Errorf("config for env [%s] not set", env)
	}
	return cfg, nil
}

// Load reads the TOML file at path and returns the section for env,
// with defaults applied to unset values.
func Load(env, path string) (*Config, error) {
	exists, err := pkg.PathExists(path, false)
	if err != nil {
		return nil, fmt.Errorf("check config file %s: %w", path, err)
	}
	if !exists {
		return nil, fmt.Errorf("config file %s not found", path)
	}

	var t Toml
	if _, err := toml.DecodeFile(path, &t); err != nil {
		return nil, fmt.Errorf("decode config file %s: %w", path, err)
	}

	cfg, err := t.Get(env)
	if err != nil {
		return nil, err
	}
	cfg.Environment = strings.ToLower(env)
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config for env [%s]: %w", env, err)
	}

	return cfg, nil
}

func (c *Config) ApplyDefaults() {
	if c.AnthropicApiURL == "" {
		c.AnthropicApiURL = defaultAnthropicApiURL
	}
	if c.AnthropicModel == "" {
		c.AnthropicModel = defaultAnthropicModel
	}
	if c.AnthropicMaxTokens <= 0 {
		c.AnthropicMaxTokens = defaultAnthropicMaxTokens
	}
	if c.RelayRateLimitAllowedPerMin <= 0 {
		c.RelayRateLimitAllowedPerMin = defaultRelayRateLimit
	}
	if c.LoginRateLimitAllowedPerMin <= 0 {
		c.LoginRateLimitAllowedPerMin = defaultLoginRateLimit
	}
	if c.AnalysisCacheSizeMB <= 0 {
		c.AnalysisCacheSizeMB = defaultAnalysisCacheSizeMB
	}
	if c.SessionTTL.Duration <= 0 {
		c.SessionTTL.Duration = defaultSessionTTL
	}
	if c.PostgresUser == "" {
		c.PostgresUser = "postgres"
	}
}

func (c *Config) Validate() error {
	if c.Port <= 0 {
		return errors.New("port not set")
	}
	if c.PostgresHost == "" || c.PostgresDBName == "" {
		return errors.New("postgres host or db name not set")
	}
	if c.RedisHost == "" || c.RedisPort == "" {
		return errors.New("redis host or port not set")
	}
	if len(c.AllowedOrigins) == 0 {
		return errors.New("at least one allowed origin is required")
	}
	return nil
}
