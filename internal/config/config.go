// File: internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every environment override, e.g. ALRIS_LOGGER_LEVEL.
const EnvPrefix = "ALRIS"

// Config is the full application configuration.
type Config struct {
	Logger   LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	LLM      LLMRouterConfig `mapstructure:"llm" yaml:"llm"`
	Browser  BrowserConfig   `mapstructure:"browser" yaml:"browser"`
	Network  NetworkConfig   `mapstructure:"network" yaml:"network"`
	Forms    FormsConfig     `mapstructure:"forms" yaml:"forms"`
	Video    VideoConfig     `mapstructure:"video" yaml:"video"`
	Agent    AgentConfig     `mapstructure:"agent" yaml:"agent"`
	Calendar CalendarConfig  `mapstructure:"calendar" yaml:"calendar"`
	Database DatabaseConfig  `mapstructure:"database" yaml:"database"`
	Server   ServerConfig    `mapstructure:"server" yaml:"server"`
	MCP      MCPConfig       `mapstructure:"mcp" yaml:"mcp"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// LLMProvider defines the supported LLM providers.
type LLMProvider string

const (
	ProviderGemini LLMProvider = "gemini" // Gemini REST API.
	ProviderGenAI  LLMProvider = "genai"  // Gemini through the Google GenAI SDK.
	ProviderOpenAI LLMProvider = "openai"
	ProviderOllama LLMProvider = "ollama" // OpenAI-compatible local endpoint.
)

// LLMRouterConfig configures the model routing logic.
type LLMRouterConfig struct {
	DefaultFastModel     string                    `mapstructure:"default_fast_model" yaml:"default_fast_model"`
	DefaultPowerfulModel string                    `mapstructure:"default_powerful_model" yaml:"default_powerful_model"`
	Models               map[string]LLMModelConfig `mapstructure:"models" yaml:"models"`
}

// LLMModelConfig defines the configuration for a single LLM.
type LLMModelConfig struct {
	Provider      LLMProvider       `mapstructure:"provider" yaml:"provider"`
	Model         string            `mapstructure:"model" yaml:"model"`
	APIKey        string            `mapstructure:"api_key" yaml:"api_key"`
	Endpoint      string            `mapstructure:"endpoint" yaml:"endpoint"`
	APITimeout    time.Duration     `mapstructure:"api_timeout" yaml:"api_timeout"`
	Temperature   float32           `mapstructure:"temperature" yaml:"temperature"`
	TopP          float32           `mapstructure:"top_p" yaml:"top_p"`
	TopK          int               `mapstructure:"top_k" yaml:"top_k"`
	MaxTokens     int               `mapstructure:"max_tokens" yaml:"max_tokens"`
	SafetyFilters map[string]string `mapstructure:"safety_filters" yaml:"safety_filters"`
}

// BrowserConfig holds settings for the shared headless browser.
type BrowserConfig struct {
	Backend           string        `mapstructure:"backend" yaml:"backend"` // "chromedp" or "rod".
	Headless          bool          `mapstructure:"headless" yaml:"headless"`
	IgnoreTLSErrors   bool          `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	ExecPath          string        `mapstructure:"exec_path" yaml:"exec_path"`
	UserAgent         string        `mapstructure:"user_agent" yaml:"user_agent"`
	Args              []string      `mapstructure:"args" yaml:"args"`
	ViewportWidth     int           `mapstructure:"viewport_width" yaml:"viewport_width"`
	ViewportHeight    int           `mapstructure:"viewport_height" yaml:"viewport_height"`
	ElementTimeout    time.Duration `mapstructure:"element_timeout" yaml:"element_timeout"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
}

// NetworkConfig tunes the outbound HTTP client used for scraping.
type NetworkConfig struct {
	Timeout         time.Duration `mapstructure:"timeout" yaml:"timeout"`
	DialTimeout     time.Duration `mapstructure:"dial_timeout" yaml:"dial_timeout"`
	IgnoreTLSErrors bool          `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	EnableCookies   bool          `mapstructure:"enable_cookies" yaml:"enable_cookies"`
}

// FormsConfig controls form filling.
type FormsConfig struct {
	ScreenshotDir string         `mapstructure:"screenshot_dir" yaml:"screenshot_dir"`
	Defaults      map[string]any `mapstructure:"defaults" yaml:"defaults"` // Merged into every extraction, e.g. a saved name.
}

// VideoConfig controls the video search provider.
type VideoConfig struct {
	BaseURL           string  `mapstructure:"base_url" yaml:"base_url"`
	Limit             int     `mapstructure:"limit" yaml:"limit"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second" yaml:"requests_per_second"`
	Burst             int     `mapstructure:"burst" yaml:"burst"`
}

// AgentConfig holds settings for the multi-step tool loop.
type AgentConfig struct {
	MaxIterations  int           `mapstructure:"max_iterations" yaml:"max_iterations"`
	MemoryMessages int           `mapstructure:"memory_messages" yaml:"memory_messages"`
	StepTimeout    time.Duration `mapstructure:"step_timeout" yaml:"step_timeout"`
}

// CalendarConfig holds settings for event extraction.
type CalendarConfig struct {
	DefaultDuration time.Duration `mapstructure:"default_duration" yaml:"default_duration"`
	Timezone        string        `mapstructure:"timezone" yaml:"timezone"`
}

// DatabaseConfig selects and configures the history store.
type DatabaseConfig struct {
	Driver     string `mapstructure:"driver" yaml:"driver"` // "memory", "sqlite" or "postgres".
	URL        string `mapstructure:"url" yaml:"url"`
	SQLitePath string `mapstructure:"sqlite_path" yaml:"sqlite_path"`
	MaxConns   int32  `mapstructure:"max_conns" yaml:"max_conns"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr           string        `mapstructure:"addr" yaml:"addr"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	JWTSecret      string        `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	AllowedOrigins []string      `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	RateLimit      float64       `mapstructure:"rate_limit" yaml:"rate_limit"` // Requests per second per client.
	RateBurst      int           `mapstructure:"rate_burst" yaml:"rate_burst"`
}

// MCPConfig configures the MCP server.
type MCPConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"` // Serve SSE alongside the HTTP API.
	Addr    string `mapstructure:"addr" yaml:"addr"`
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "alris")
	v.SetDefault("logger.log_file", "~/.alris/alris.log")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)

	// -- LLM --
	// Model keys must not contain dots; viper treats them as path separators.
	v.SetDefault("llm.default_fast_model", "gemini-flash")
	v.SetDefault("llm.default_powerful_model", "gemini-pro")
	v.SetDefault("llm.models", map[string]any{
		"gemini-flash": map[string]any{
			"provider":    string(ProviderGemini),
			"model":       "gemini-2.5-flash",
			"api_timeout": "60s",
			"temperature": 0.1,
		},
		"gemini-pro": map[string]any{
			"provider":    string(ProviderGemini),
			"model":       "gemini-2.5-pro",
			"api_timeout": "120s",
			"temperature": 0.2,
		},
	})

	// -- Browser --
	v.SetDefault("browser.backend", "chromedp")
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.viewport_width", 1280)
	v.SetDefault("browser.viewport_height", 900)
	v.SetDefault("browser.element_timeout", "5s")
	v.SetDefault("browser.navigation_timeout", "45s")

	// -- Network --
	v.SetDefault("network.timeout", "20s")
	v.SetDefault("network.dial_timeout", "10s")
	v.SetDefault("network.ignore_tls_errors", false)
	v.SetDefault("network.enable_cookies", true)

	// -- Forms --
	v.SetDefault("forms.screenshot_dir", "")

	// -- Video --
	v.SetDefault("video.base_url", "https://www.youtube.com")
	v.SetDefault("video.limit", 5)
	v.SetDefault("video.requests_per_second", 1.0)
	v.SetDefault("video.burst", 3)

	// -- Agent --
	v.SetDefault("agent.max_iterations", 6)
	v.SetDefault("agent.memory_messages", 20)
	v.SetDefault("agent.step_timeout", "90s")

	// -- Calendar --
	v.SetDefault("calendar.default_duration", "1h")
	v.SetDefault("calendar.timezone", "Local")

	// -- Database --
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.sqlite_path", "~/.alris/history.db")
	v.SetDefault("database.max_conns", 4)

	// -- Server --
	v.SetDefault("server.addr", ":8000")
	v.SetDefault("server.request_timeout", "3m")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.rate_limit", 2.0)
	v.SetDefault("server.rate_burst", 5)

	// -- MCP --
	v.SetDefault("mcp.enabled", false)
	v.SetDefault("mcp.addr", ":8001")
	v.SetDefault("mcp.base_url", "http://localhost:8001")
}

// ConfigureEnv wires environment overrides into v.
func ConfigureEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Secrets are bound explicitly; AutomaticEnv only sees keys viper knows about.
	v.BindEnv("database.url", EnvPrefix+"_DATABASE_URL")
	v.BindEnv("server.jwt_secret", EnvPrefix+"_JWT_SECRET")
	v.BindEnv("gemini_api_key", EnvPrefix+"_GEMINI_API_KEY", "GEMINI_API_KEY")
	v.BindEnv("openai_api_key", EnvPrefix+"_OPENAI_API_KEY", "OPENAI_API_KEY")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	cfg.applyAPIKeys(v.GetString("gemini_api_key"), v.GetString("openai_api_key"))
	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// applyAPIKeys fills in missing per-model keys from the provider-wide ones.
func (c *Config) applyAPIKeys(geminiKey, openAIKey string) {
	for name, m := range c.LLM.Models {
		if m.APIKey != "" {
			continue
		}
		switch m.Provider {
		case ProviderGemini, ProviderGenAI:
			m.APIKey = geminiKey
		case ProviderOpenAI:
			m.APIKey = openAIKey
		}
		c.LLM.Models[name] = m
	}
}

func (c *Config) expandPaths() error {
	for _, p := range []*string{&c.Logger.LogFile, &c.Database.SQLitePath, &c.Forms.ScreenshotDir} {
		if *p == "" {
			continue
		}
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return fmt.Errorf("failed to expand path %q: %w", *p, err)
		}
		*p = expanded
	}
	return nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if err := c.LLM.Validate(); err != nil {
		return fmt.Errorf("llm configuration invalid: %w", err)
	}
	switch c.Browser.Backend {
	case "chromedp", "rod":
	default:
		return fmt.Errorf("browser.backend must be 'chromedp' or 'rod', got '%s'", c.Browser.Backend)
	}
	if c.Browser.ElementTimeout <= 0 {
		return fmt.Errorf("browser.element_timeout must be a positive duration")
	}
	if c.Video.Limit <= 0 {
		return fmt.Errorf("video.limit must be a positive integer")
	}
	if c.Agent.MaxIterations <= 0 {
		return fmt.Errorf("agent.max_iterations must be a positive integer")
	}
	if c.Calendar.DefaultDuration <= 0 {
		return fmt.Errorf("calendar.default_duration must be a positive duration")
	}
	if _, err := c.Calendar.Location(); err != nil {
		return fmt.Errorf("calendar.timezone invalid: %w", err)
	}
	switch c.Database.Driver {
	case "memory", "sqlite":
	case "postgres":
		if c.Database.URL == "" {
			return fmt.Errorf("database.url is required for the postgres driver")
		}
	default:
		return fmt.Errorf("database.driver must be 'memory', 'sqlite' or 'postgres', got '%s'", c.Database.Driver)
	}
	return nil
}

// Validate checks that both tiers resolve to a configured model.
func (r *LLMRouterConfig) Validate() error {
	for tier, name := range map[string]string{"fast": r.DefaultFastModel, "powerful": r.DefaultPowerfulModel} {
		if name == "" {
			return fmt.Errorf("default_%s_model is required", tier)
		}
		m, ok := r.Models[name]
		if !ok {
			return fmt.Errorf("default_%s_model '%s' has no entry under models", tier, name)
		}
		switch m.Provider {
		case ProviderGemini, ProviderGenAI, ProviderOpenAI, ProviderOllama:
		default:
			return fmt.Errorf("model '%s' has unsupported provider '%s'", name, m.Provider)
		}
	}
	return nil
}

// Location resolves the configured timezone.
func (c CalendarConfig) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

const redacted = "[REDACTED]"

// Redacted returns a copy with every secret masked, for display.
func (c *Config) Redacted() *Config {
	out := *c
	out.LLM.Models = make(map[string]LLMModelConfig, len(c.LLM.Models))
	for name, m := range c.LLM.Models {
		if m.APIKey != "" {
			m.APIKey = redacted
		}
		out.LLM.Models[name] = m
	}
	if out.Server.JWTSecret != "" {
		out.Server.JWTSecret = redacted
	}
	if out.Database.URL != "" {
		out.Database.URL = redacted
	}
	return &out
}
