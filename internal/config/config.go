package config

import (
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"tradecrew/pkg/errors"
)

// Supported LLM providers
const (
	ProviderOpenAI   = "openai"
	ProviderDeepseek = "deepseek"
)

// Config holds all environment-sourced application configuration
type Config struct {
	App      AppConfig
	HTTP     HTTPConfig
	LLM      LLMConfig
	Search   SearchConfig
	Data     DataConfig
	Longport LongportConfig
	Debug    DebugConfig
}

// AppConfig holds application-level settings
type AppConfig struct {
	Env      string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// HTTPConfig holds web server settings
type HTTPConfig struct {
	Addr string `envconfig:"HTTP_ADDR" default:":8814"`
}

// LLMConfig holds generative model provider settings. The default
// endpoint is Gemini's OpenAI-compatible API.
type LLMConfig struct {
	Provider    string  `envconfig:"LLM_PROVIDER" default:"openai"`
	APIKey      string  `envconfig:"LLM_API_KEY" required:"true"`
	BaseURL     string  `envconfig:"LLM_BASE_URL" default:"https://generativelanguage.googleapis.com/v1beta/openai/"`
	Model       string  `envconfig:"LLM_MODEL" default:"gemini-2.0-flash-exp"`
	Temperature float32 `envconfig:"LLM_TEMPERATURE" default:"0.7"`
	MaxTokens   int     `envconfig:"LLM_MAX_TOKENS" default:"8192"`
}

// SearchConfig holds web search provider settings
type SearchConfig struct {
	SerperAPIKey string `envconfig:"SERPER_API_KEY" required:"true"`
	ResultCount  int    `envconfig:"SEARCH_RESULT_COUNT" default:"8"`
}

// DataConfig holds local storage settings
type DataConfig struct {
	Dir          string `envconfig:"DATA_DIR" default:"./data"`
	CacheEnabled bool   `envconfig:"CACHE_ENABLED" default:"true"`
	DBPath       string `envconfig:"DB_PATH"`
	SettingsFile string `envconfig:"SETTINGS_FILE"`
}

// LongportConfig holds optional Longbridge market data credentials
type LongportConfig struct {
	AppKey      string `envconfig:"LONGPORT_APP_KEY"`
	AppSecret   string `envconfig:"LONGPORT_APP_SECRET"`
	AccessToken string `envconfig:"LONGPORT_ACCESS_TOKEN"`
}

// DebugConfig holds development tooling settings
type DebugConfig struct {
	EinoEnabled bool `envconfig:"EINO_DEBUG" default:"false"`
}

// Load reads configuration from the environment, with .env support.
// A missing credential is a fatal configuration error: the caller must
// not start accepting requests.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.ConfigWrap(err, "parse environment")
	}

	if cfg.Data.DBPath == "" {
		cfg.Data.DBPath = filepath.Join(cfg.Data.Dir, "tradecrew.db")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that required credentials and enumerated values are set
func (c *Config) Validate() error {
	if strings.TrimSpace(c.LLM.APIKey) == "" {
		return errors.Config("LLM_API_KEY is required")
	}
	if strings.TrimSpace(c.Search.SerperAPIKey) == "" {
		return errors.Config("SERPER_API_KEY is required")
	}

	switch c.LLM.Provider {
	case ProviderOpenAI, ProviderDeepseek:
	default:
		return errors.Configf("unsupported LLM provider: %s", c.LLM.Provider)
	}

	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return errors.Configf("LLM_TEMPERATURE out of range [0, 2]: %v", c.LLM.Temperature)
	}
	if c.LLM.MaxTokens <= 0 {
		return errors.Configf("LLM_MAX_TOKENS must be positive: %d", c.LLM.MaxTokens)
	}
	if c.Search.ResultCount <= 0 || c.Search.ResultCount > 20 {
		return errors.Configf("SEARCH_RESULT_COUNT out of range [1, 20]: %d", c.Search.ResultCount)
	}
	return nil
}

// CacheDir returns the on-disk response cache location
func (c *Config) CacheDir() string {
	return filepath.Join(c.Data.Dir, "cache")
}

// LongportEnabled reports whether Longbridge credentials are fully set
func (c *Config) LongportEnabled() bool {
	return c.Longport.AppKey != "" && c.Longport.AppSecret != "" && c.Longport.AccessToken != ""
}
