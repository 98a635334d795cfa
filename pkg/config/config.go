package config

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied before any file or environment layer.
const (
	DefaultListen         = ":8080"
	DefaultLogLevel       = "info"
	DefaultGateLimit      = 10
	DefaultGateWindow     = time.Minute
	DefaultGateMaxClients = 10000
	DefaultAttemptTimeout = 30 * time.Second
	DefaultSessionTTL     = 30 * time.Minute
)

// Config is the full runtime configuration. Precedence, low to high:
// built-in defaults, YAML file, environment variables.
type Config struct {
	Listen   string `yaml:"listen"`
	LogLevel string `yaml:"log_level"`

	Gate      GateConfig      `yaml:"gate"`
	Gateway   GatewayConfig   `yaml:"gateway"`
	Providers ProvidersConfig `yaml:"providers"`
	Session   SessionConfig   `yaml:"session"`
	Tracing   TracingConfig   `yaml:"tracing"`

	// SourceHash fingerprints the loaded file so the watcher can skip
	// no-op reloads. Empty when no file was read.
	SourceHash string `yaml:"-"`
}

// GateConfig tunes request admission.
type GateConfig struct {
	Limit      int           `yaml:"limit"`
	Window     time.Duration `yaml:"window"`
	MaxClients int           `yaml:"max_clients"`
}

// GatewayConfig tunes the model gateway.
type GatewayConfig struct {
	AttemptTimeout time.Duration      `yaml:"attempt_timeout"`
	Temperatures   map[string]float64 `yaml:"temperatures"`
	// Routes maps a stage name to an ordered provider fallback list.
	Routes map[string][]string `yaml:"routes"`
}

// ProviderConfig holds one upstream's credentials and default model.
type ProviderConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

// ProvidersConfig enumerates the supported upstreams.
type ProvidersConfig struct {
	Anthropic  ProviderConfig `yaml:"anthropic"`
	OpenAI     ProviderConfig `yaml:"openai"`
	Groq       ProviderConfig `yaml:"groq"`
	OpenRouter ProviderConfig `yaml:"openrouter"`
	Google     ProviderConfig `yaml:"google"`
}

// SessionConfig tunes the in-memory session store.
type SessionConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

// TracingConfig controls the optional OTLP trace exporter.
type TracingConfig struct {
	Endpoint string `yaml:"endpoint"`
	Insecure bool   `yaml:"insecure"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Listen:   DefaultListen,
		LogLevel: DefaultLogLevel,
		Gate: GateConfig{
			Limit:      DefaultGateLimit,
			Window:     DefaultGateWindow,
			MaxClients: DefaultGateMaxClients,
		},
		Gateway: GatewayConfig{
			AttemptTimeout: DefaultAttemptTimeout,
			Routes: map[string][]string{
				"chat":      {"google", "groq"},
				"selection": {"google", "groq"},
				"planning":  {"google", "groq"},
			},
		},
		Session: SessionConfig{TTL: DefaultSessionTTL},
	}
}

// Load composes the configuration. A missing file at path is only an
// error when the path was set explicitly; pass "" to skip the file layer.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return Config{}, fmt.Errorf("config: file not found: %s", path)
			}
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: decode %s: %w", path, err)
		}
		sum := sha256.Sum256(data)
		cfg.SourceHash = hex.EncodeToString(sum[:])
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Environment variables override both defaults and the file layer.
// Provider keys use the conventional names so deployments can reuse
// credentials already present in the environment.
func applyEnv(cfg *Config) {
	setString := func(dst *string, key string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	setString(&cfg.Listen, "PROMPTARCH_LISTEN")
	setString(&cfg.LogLevel, "PROMPTARCH_LOG_LEVEL")
	setString(&cfg.Tracing.Endpoint, "PROMPTARCH_OTLP_ENDPOINT")

	setString(&cfg.Providers.Anthropic.APIKey, "ANTHROPIC_API_KEY")
	setString(&cfg.Providers.OpenAI.APIKey, "OPENAI_API_KEY")
	setString(&cfg.Providers.Groq.APIKey, "GROQ_API_KEY")
	setString(&cfg.Providers.OpenRouter.APIKey, "OPENROUTER_API_KEY")
	setString(&cfg.Providers.Google.APIKey, "GOOGLE_API_KEY")
}

var validLogLevels = map[string]struct{}{
	"debug": {}, "info": {}, "warn": {}, "error": {},
}

var knownProviders = map[string]struct{}{
	"anthropic": {}, "openai": {}, "groq": {}, "openrouter": {}, "google": {},
}

var knownStages = map[string]struct{}{
	"chat": {}, "selection": {}, "planning": {},
}

// Validate rejects configurations the server cannot run with.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Listen) == "" {
		return errors.New("config: listen address required")
	}
	if _, ok := validLogLevels[strings.ToLower(c.LogLevel)]; !ok {
		return fmt.Errorf("config: unknown log level %q", c.LogLevel)
	}
	if c.Gate.Limit <= 0 {
		return fmt.Errorf("config: gate limit must be positive, got %d", c.Gate.Limit)
	}
	if c.Gate.Window <= 0 {
		return fmt.Errorf("config: gate window must be positive, got %s", c.Gate.Window)
	}
	if c.Gate.MaxClients <= 0 {
		return fmt.Errorf("config: gate max_clients must be positive, got %d", c.Gate.MaxClients)
	}
	if c.Gateway.AttemptTimeout <= 0 {
		return fmt.Errorf("config: gateway attempt_timeout must be positive, got %s", c.Gateway.AttemptTimeout)
	}
	for stage, temp := range c.Gateway.Temperatures {
		if _, ok := knownStages[stage]; !ok {
			return fmt.Errorf("config: unknown stage %q in temperatures", stage)
		}
		if temp < 0 || temp > 2 {
			return fmt.Errorf("config: temperature for stage %q out of range [0,2]: %v", stage, temp)
		}
	}
	for stage, route := range c.Gateway.Routes {
		if _, ok := knownStages[stage]; !ok {
			return fmt.Errorf("config: unknown stage %q in routes", stage)
		}
		if len(route) == 0 {
			return fmt.Errorf("config: empty provider route for stage %q", stage)
		}
		for _, name := range route {
			if _, ok := knownProviders[name]; !ok {
				return fmt.Errorf("config: unknown provider %q in route for stage %q", name, stage)
			}
		}
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("config: session ttl must be positive, got %s", c.Session.TTL)
	}
	return nil
}
