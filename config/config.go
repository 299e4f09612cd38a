// Package config loads docchat settings from defaults, an optional YAML file
// and DOCCHAT_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/hupe1980/docchat/router"
)

// EnvPrefix is prepended to every environment override, e.g. DOCCHAT_STORE_URI.
const EnvPrefix = "DOCCHAT"

// Config is the complete application configuration.
type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Store  StoreConfig  `mapstructure:"store"`
	LLM    LLMConfig    `mapstructure:"llm"`
	Router RouterConfig `mapstructure:"router"`
	Agent  AgentConfig  `mapstructure:"agent"`
	Tools  ToolsConfig  `mapstructure:"tools"`
	Log    LogConfig    `mapstructure:"log"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
	// CORSOrigins lists browser origins allowed to call the API; "*" allows any.
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// StoreConfig configures the document store connection.
type StoreConfig struct {
	URI       string        `mapstructure:"uri"`
	Database  string        `mapstructure:"database"`
	Timeout   time.Duration `mapstructure:"timeout"`
	StringIDs bool          `mapstructure:"string_ids"`
}

// LLMConfig selects and tunes the language model provider.
type LLMConfig struct {
	Provider          string  `mapstructure:"provider"` // openai | anthropic
	BaseURL           string  `mapstructure:"base_url"`
	APIKey            string  `mapstructure:"api_key"`
	Model             string  `mapstructure:"model"` // empty selects the provider default
	Temperature       float64 `mapstructure:"temperature"`
	MaxTokens         int64   `mapstructure:"max_tokens"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
}

// RouterConfig holds the tool-mode trigger vocabulary.
type RouterConfig struct {
	Terms    []string `mapstructure:"terms"`
	Patterns []string `mapstructure:"patterns"`
}

// AgentConfig bounds the tool loop and the history sent to the model.
type AgentConfig struct {
	MaxSteps   int `mapstructure:"max_steps"`
	MaxHistory int `mapstructure:"max_history"`
}

// ToolsConfig holds tool argument defaults.
type ToolsConfig struct {
	DefaultLimit int `mapstructure:"default_limit"`
	DefaultSkip  int `mapstructure:"default_skip"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json | text
}

// Provider names.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8000")
	v.SetDefault("server.cors_origins", []string{"*"})

	v.SetDefault("store.uri", "mongodb://localhost:27017")
	v.SetDefault("store.database", "test")
	v.SetDefault("store.timeout", 5*time.Second)
	v.SetDefault("store.string_ids", false)

	v.SetDefault("llm.provider", ProviderOpenAI)
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.max_tokens", 1024)
	v.SetDefault("llm.requests_per_second", 0)

	rules := router.DefaultRules()
	v.SetDefault("router.terms", rules.Terms)
	v.SetDefault("router.patterns", rules.Patterns)

	v.SetDefault("agent.max_steps", 6)
	v.SetDefault("agent.max_history", 20)

	v.SetDefault("tools.default_limit", 10)
	v.SetDefault("tools.default_skip", 0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Load reads configuration. path may be empty, in which case only defaults and
// the environment apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	cfg.LLM.APIKey = expandEnv(cfg.LLM.APIKey)
	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = providerKey(cfg.LLM.Provider)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	var errs []error
	if c.Store.URI == "" {
		errs = append(errs, errors.New("store.uri must be set"))
	}
	if c.Store.Database == "" {
		errs = append(errs, errors.New("store.database must be set"))
	}
	if c.Store.Timeout <= 0 {
		errs = append(errs, errors.New("store.timeout must be positive"))
	}
	switch c.LLM.Provider {
	case ProviderOpenAI, ProviderAnthropic:
	default:
		errs = append(errs, fmt.Errorf("llm.provider %q is not supported", c.LLM.Provider))
	}
	if c.LLM.RequestsPerSecond < 0 {
		errs = append(errs, errors.New("llm.requests_per_second must not be negative"))
	}
	if c.Agent.MaxSteps < 1 {
		errs = append(errs, errors.New("agent.max_steps must be at least 1"))
	}
	if c.Agent.MaxHistory < 0 {
		errs = append(errs, errors.New("agent.max_history must not be negative"))
	}
	if c.Tools.DefaultLimit < 0 || c.Tools.DefaultSkip < 0 {
		errs = append(errs, errors.New("tools defaults must not be negative"))
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("log.format %q must be json or text", c.Log.Format))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// expandEnv resolves "${VAR}" and "$VAR" references.
func expandEnv(s string) string {
	if !strings.HasPrefix(s, "$") {
		return s
	}
	return os.ExpandEnv(s)
}

// providerKey falls back to the provider SDK's conventional variable.
func providerKey(provider string) string {
	switch provider {
	case ProviderOpenAI:
		return os.Getenv("OPENAI_API_KEY")
	case ProviderAnthropic:
		return os.Getenv("ANTHROPIC_API_KEY")
	}
	return ""
}
