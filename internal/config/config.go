// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package config

import (
	"errors"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	wferr "github.com/sigil-dev/wayfinder/pkg/errors"
)

// EnvPrefix prefixes every environment override, e.g. WAYFINDER_ORACLE_API_KEY.
const EnvPrefix = "WAYFINDER"

// Config is the top-level wayfinder configuration.
type Config struct {
	Search    SearchConfig              `mapstructure:"search"`
	Seed      SeedConfig                `mapstructure:"seed"`
	Oracle    OracleConfig              `mapstructure:"oracle"`
	Models    ModelsConfig              `mapstructure:"models"`
	Providers map[string]ProviderConfig `mapstructure:"providers"`
	Prompts   PromptsConfig             `mapstructure:"prompts"`
	Submit    SubmitConfig              `mapstructure:"submit"`
	Server    ServerConfig              `mapstructure:"server"`
	Storage   StorageConfig             `mapstructure:"storage"`
	Metrics   MetricsConfig             `mapstructure:"metrics"`
	Log       LogConfig                 `mapstructure:"log"`
}

// SearchConfig bounds the discovery loop.
type SearchConfig struct {
	Target      string `mapstructure:"target"`
	MaxRounds   int    `mapstructure:"max_rounds"`
	Concurrency int    `mapstructure:"concurrency"`
}

// SeedConfig locates the seed document.
type SeedConfig struct {
	Path    string        `mapstructure:"path"`
	URL     string        `mapstructure:"url"`
	Refresh bool          `mapstructure:"refresh"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// OracleConfig points at the relation oracle.
type OracleConfig struct {
	APIKey           string        `mapstructure:"api_key"`
	PlacesURL        string        `mapstructure:"places_url"`
	PeopleURL        string        `mapstructure:"people_url"`
	Method           string        `mapstructure:"method"`
	Timeout          time.Duration `mapstructure:"timeout"`
	RestrictedMarker string        `mapstructure:"restricted_marker"`
	Breaker          BreakerConfig `mapstructure:"breaker"`
}

// BreakerConfig tunes the per-endpoint circuit breaker.
type BreakerConfig struct {
	MaxFailures uint32        `mapstructure:"max_failures"`
	Cooldown    time.Duration `mapstructure:"cooldown"`
}

// ProviderConfig holds credentials and endpoint for an LLM provider.
type ProviderConfig struct {
	APIKey   string `mapstructure:"api_key"`
	Endpoint string `mapstructure:"endpoint"`
}

// ModelsConfig selects the planner model and its failover chain.
type ModelsConfig struct {
	Planner     string   `mapstructure:"planner"`
	Failover    []string `mapstructure:"failover"`
	Temperature float64  `mapstructure:"temperature"`
	MaxTokens   int      `mapstructure:"max_tokens"`
}

// PromptsConfig overrides the built-in planner prompt templates.
type PromptsConfig struct {
	SeedFile string `mapstructure:"seed_file"`
	PlanFile string `mapstructure:"plan_file"`
}

// SubmitConfig controls answer submission.
type SubmitConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	URL     string        `mapstructure:"url"`
	Task    string        `mapstructure:"task"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Listen      string   `mapstructure:"listen"`
	CORSOrigins []string `mapstructure:"cors_origins"`
	// RateLimitRPS is requests per second per client IP; zero disables it.
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

// StorageConfig selects the run journal. Backend "none" turns it off; an
// empty Path with the sqlite backend uses DefaultJournalPath.
type StorageConfig struct {
	Backend string `mapstructure:"backend"`
	Path    string `mapstructure:"path"`
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LogConfig controls the slog handler.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// knownProviders get explicit env bindings so that, for example,
// WAYFINDER_PROVIDERS_OPENAI_API_KEY works without a config file.
var knownProviders = []string{"anthropic", "google", "openai", "openrouter"}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("search.target", "BARBARA")
	v.SetDefault("search.max_rounds", 10)
	v.SetDefault("search.concurrency", 4)

	v.SetDefault("seed.path", "barbara.txt")
	v.SetDefault("seed.url", "")
	v.SetDefault("seed.refresh", false)
	v.SetDefault("seed.timeout", 30*time.Second)

	v.SetDefault("oracle.api_key", "")
	v.SetDefault("oracle.places_url", "")
	v.SetDefault("oracle.people_url", "")
	v.SetDefault("oracle.method", "POST")
	v.SetDefault("oracle.timeout", 30*time.Second)
	v.SetDefault("oracle.restricted_marker", "[**RESTRICTED DATA**]")
	v.SetDefault("oracle.breaker.max_failures", 5)
	v.SetDefault("oracle.breaker.cooldown", 30*time.Second)

	v.SetDefault("models.planner", "openai/gpt-4o-mini")
	v.SetDefault("models.temperature", 0.0)
	v.SetDefault("models.max_tokens", 1024)

	v.SetDefault("prompts.seed_file", "")
	v.SetDefault("prompts.plan_file", "")

	v.SetDefault("submit.enabled", false)
	v.SetDefault("submit.url", "")
	v.SetDefault("submit.task", "loop")
	v.SetDefault("submit.api_key", "")
	v.SetDefault("submit.timeout", 30*time.Second)

	v.SetDefault("server.listen", "127.0.0.1:8080")
	v.SetDefault("server.rate_limit_rps", 1.0)
	v.SetDefault("server.rate_limit_burst", 5)
	v.SetDefault("storage.backend", "sqlite")
	v.SetDefault("storage.path", "")
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// SetupEnv enables WAYFINDER_* overrides on v.
func SetupEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for _, name := range knownProviders {
		_ = v.BindEnv("providers." + name + ".api_key")
		_ = v.BindEnv("providers." + name + ".endpoint")
	}
}

// Load reads configuration from path (or defaults only when path is empty)
// with WAYFINDER_ environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	SetupEnv(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, wferr.Errorf(wferr.CodeConfigLoadReadFailure, "reading config %s: %w", path, err)
		}
	}

	return FromViper(v)
}

// FromViper decodes and validates the settings held by v.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, wferr.Errorf(wferr.CodeConfigParseInvalidFormat, "unmarshalling config: %w", err)
	}

	if cfg.Submit.APIKey == "" {
		cfg.Submit.APIKey = cfg.Oracle.APIKey
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, wferr.Errorf(wferr.CodeConfigValidateInvalidValue, "validating config: %w", errors.Join(errs...))
	}

	return &cfg, nil
}

// Validate checks the configuration for logical errors, collecting every
// issue rather than stopping at the first one. Required oracle settings are
// checked separately by CheckSearchReady so that commands which never
// search can run without them.
func (c *Config) Validate() []error {
	var errs []error

	errs = append(errs, c.validateSearch()...)
	errs = append(errs, c.validateSeed()...)
	errs = append(errs, c.validateOracle()...)
	errs = append(errs, c.validateModels()...)
	errs = append(errs, c.validateSubmit()...)
	errs = append(errs, c.validateServer()...)
	errs = append(errs, c.validateStorage()...)
	errs = append(errs, c.validateLog()...)

	return errs
}

// CheckSearchReady reports the settings a search needs that are still
// missing.
func (c *Config) CheckSearchReady() error {
	var errs []error
	if c.Oracle.APIKey == "" {
		errs = append(errs, invalid("config: oracle.api_key must be set"))
	}
	if c.Oracle.PlacesURL == "" {
		errs = append(errs, invalid("config: oracle.places_url must be set"))
	}
	if c.Oracle.PeopleURL == "" {
		errs = append(errs, invalid("config: oracle.people_url must be set"))
	}
	if c.Seed.Path == "" && c.Seed.URL == "" {
		errs = append(errs, invalid("config: seed.path or seed.url must be set"))
	}
	if len(errs) == 0 {
		return nil
	}
	return wferr.Errorf(wferr.CodeConfigValidateInvalidValue, "config not ready for search: %w", errors.Join(errs...))
}

func (c *Config) validateSearch() []error {
	var errs []error

	if c.Search.MaxRounds < 1 {
		errs = append(errs, invalid("config: search.max_rounds must be at least 1, got %d", c.Search.MaxRounds))
	}
	if c.Search.Concurrency < 1 {
		errs = append(errs, invalid("config: search.concurrency must be at least 1, got %d", c.Search.Concurrency))
	}

	return errs
}

func (c *Config) validateSeed() []error {
	var errs []error

	if c.Seed.URL != "" && !isAbsoluteURL(c.Seed.URL) {
		errs = append(errs, invalid("config: seed.url must be an absolute URL, got %q", c.Seed.URL))
	}
	if c.Seed.Timeout <= 0 {
		errs = append(errs, invalid("config: seed.timeout must be positive, got %s", c.Seed.Timeout))
	}

	return errs
}

func (c *Config) validateOracle() []error {
	var errs []error

	for key, u := range map[string]string{
		"oracle.places_url": c.Oracle.PlacesURL,
		"oracle.people_url": c.Oracle.PeopleURL,
	} {
		if u != "" && !isAbsoluteURL(u) {
			errs = append(errs, invalid("config: %s must be an absolute URL, got %q", key, u))
		}
	}

	switch strings.ToUpper(c.Oracle.Method) {
	case "GET", "POST":
	default:
		errs = append(errs, invalid("config: oracle.method must be one of [GET, POST], got %q", c.Oracle.Method))
	}

	if c.Oracle.Timeout <= 0 {
		errs = append(errs, invalid("config: oracle.timeout must be positive, got %s", c.Oracle.Timeout))
	}
	if c.Oracle.Breaker.MaxFailures == 0 {
		errs = append(errs, invalid("config: oracle.breaker.max_failures must be at least 1"))
	}
	if c.Oracle.Breaker.Cooldown <= 0 {
		errs = append(errs, invalid("config: oracle.breaker.cooldown must be positive, got %s", c.Oracle.Breaker.Cooldown))
	}

	return errs
}

func (c *Config) validateModels() []error {
	var errs []error

	if c.Models.Planner == "" {
		errs = append(errs, invalid("config: models.planner must not be empty"))
	} else if !strings.Contains(c.Models.Planner, "/") {
		errs = append(errs, invalid("config: models.planner must be in \"provider/model\" format, got %q", c.Models.Planner))
	} else if c.Providers != nil {
		// A nil map means no providers section at all, which is fine until
		// a search actually needs a model.
		name := providerFromModel(c.Models.Planner)
		if _, ok := c.Providers[name]; !ok {
			errs = append(errs, invalid("config: models.planner %q references provider %q which is not configured",
				c.Models.Planner, name))
		}
	}

	for i, model := range c.Models.Failover {
		if !strings.Contains(model, "/") {
			errs = append(errs, invalid("config: models.failover[%d] must be in \"provider/model\" format, got %q", i, model))
			continue
		}
		if c.Providers != nil {
			name := providerFromModel(model)
			if _, ok := c.Providers[name]; !ok {
				errs = append(errs, invalid("config: models.failover[%d] %q references provider %q which is not configured",
					i, model, name))
			}
		}
	}

	if c.Models.Temperature < 0 || c.Models.Temperature > 2 {
		errs = append(errs, invalid("config: models.temperature must be between 0 and 2, got %g", c.Models.Temperature))
	}
	if c.Models.MaxTokens < 0 {
		errs = append(errs, invalid("config: models.max_tokens must not be negative, got %d", c.Models.MaxTokens))
	}

	return errs
}

func (c *Config) validateSubmit() []error {
	var errs []error

	if !c.Submit.Enabled {
		return nil
	}
	if !isAbsoluteURL(c.Submit.URL) {
		errs = append(errs, invalid("config: submit.url must be an absolute URL when submit.enabled is set, got %q", c.Submit.URL))
	}
	if c.Submit.Task == "" {
		errs = append(errs, invalid("config: submit.task must not be empty"))
	}

	return errs
}

func (c *Config) validateServer() []error {
	var errs []error

	if c.Server.RateLimitRPS < 0 {
		errs = append(errs, invalid("config: server.rate_limit_rps must not be negative, got %g", c.Server.RateLimitRPS))
	}
	if c.Server.RateLimitRPS > 0 && c.Server.RateLimitBurst <= 0 {
		errs = append(errs, invalid("config: server.rate_limit_burst must be positive when server.rate_limit_rps is set, got %d", c.Server.RateLimitBurst))
	}

	if c.Server.Listen == "" {
		return append(errs, invalid("config: server.listen must not be empty"))
	}

	_, portStr, err := net.SplitHostPort(c.Server.Listen)
	if err != nil {
		return append(errs, wferr.Errorf(wferr.CodeConfigValidateInvalidValue,
			"config: server.listen must be a valid host:port address, got %q: %w", c.Server.Listen, err))
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		errs = append(errs, invalid("config: server.listen port must be a number, got %q", portStr))
	} else if port < 1 || port > 65535 {
		errs = append(errs, invalid("config: server.listen port must be between 1 and 65535, got %d", port))
	}

	return errs
}

func (c *Config) validateStorage() []error {
	switch c.Storage.Backend {
	case "sqlite", "memory", "none":
		return nil
	default:
		return []error{invalid("config: storage.backend must be one of [sqlite, memory, none], got %q", c.Storage.Backend)}
	}
}

func (c *Config) validateLog() []error {
	var errs []error

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, invalid("config: log.level must be one of [debug, info, warn, error], got %q", c.Log.Level))
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, invalid("config: log.format must be one of [text, json], got %q", c.Log.Format))
	}

	return errs
}

func invalid(format string, args ...any) error {
	return wferr.Errorf(wferr.CodeConfigValidateInvalidValue, format, args...)
}

func isAbsoluteURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && u.IsAbs() && u.Host != ""
}

// providerFromModel extracts the provider prefix from a "provider/model" string.
func providerFromModel(model string) string {
	if idx := strings.Index(model, "/"); idx > 0 {
		return model[:idx]
	}
	return model
}
