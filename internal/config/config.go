package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Providers ProvidersConfig `yaml:"providers" mapstructure:"providers"`
	Models    ModelsConfig    `yaml:"models" mapstructure:"models"`
	Gateway   GatewayConfig   `yaml:"gateway" mapstructure:"gateway"`
	Relay     RelayConfig     `yaml:"relay" mapstructure:"relay"`
	Session   SessionConfig   `yaml:"session" mapstructure:"session"`
	Browser   BrowserConfig   `yaml:"browser" mapstructure:"browser"`
	Ingest    IngestConfig    `yaml:"ingest" mapstructure:"ingest"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the settings database.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ProviderConfig holds one LLM provider's key and endpoint.
type ProviderConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// ProvidersConfig holds per-provider settings. Keys set here seed the
// settings store; keys saved in the store win.
type ProvidersConfig struct {
	OpenAI   ProviderConfig `yaml:"openai" mapstructure:"openai"`
	Claude   ProviderConfig `yaml:"claude" mapstructure:"claude"`
	Grok     ProviderConfig `yaml:"grok" mapstructure:"grok"`
	DeepSeek ProviderConfig `yaml:"deepseek" mapstructure:"deepseek"`
}

// ModelsConfig configures the model registry.
type ModelsConfig struct {
	Default string `yaml:"default" mapstructure:"default"`
	File    string `yaml:"file" mapstructure:"file"`
}

// GatewayConfig configures outbound LLM calls.
type GatewayConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Concurrency       int     `yaml:"concurrency" mapstructure:"concurrency"`
}

// RelayConfig configures the cross-origin relay. When URL is empty the
// relay runs in-process.
type RelayConfig struct {
	URL             string   `yaml:"url" mapstructure:"url"`
	Secret          string   `yaml:"secret" mapstructure:"secret"`
	Token           string   `yaml:"token" mapstructure:"token"`
	TokenTTLHours   int      `yaml:"token_ttl_hours" mapstructure:"token_ttl_hours"`
	AllowedOrigins  []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	DialTimeoutSecs int      `yaml:"dial_timeout_secs" mapstructure:"dial_timeout_secs"`
	TLSTimeoutSecs  int      `yaml:"tls_timeout_secs" mapstructure:"tls_timeout_secs"`
}

// SessionConfig configures visibility preference storage.
type SessionConfig struct {
	RedisURL string `yaml:"redis_url" mapstructure:"redis_url"`
	TTLHours int    `yaml:"ttl_hours" mapstructure:"ttl_hours"`
}

// BrowserConfig configures the headless browser page loader.
type BrowserConfig struct {
	Enabled     bool   `yaml:"enabled" mapstructure:"enabled"`
	Bin         string `yaml:"bin" mapstructure:"bin"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// IngestConfig configures context document text extraction.
type IngestConfig struct {
	Provider      string `yaml:"provider" mapstructure:"provider"`
	PdfToTextPath string `yaml:"pdftotext_path" mapstructure:"pdftotext_path"`
	MistralKey    string `yaml:"mistral_api_key" mapstructure:"mistral_api_key"`
	MistralModel  string `yaml:"mistral_ocr_model" mapstructure:"mistral_ocr_model"`
	MaxBytes      int64  `yaml:"max_bytes" mapstructure:"max_bytes"`
}

// ServerConfig configures the relay and analysis API server.
type ServerConfig struct {
	Host string `yaml:"host" mapstructure:"host"`
	Port int    `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("QUIZLENS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "quizlens.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8080)
	v.SetDefault("providers.openai.key", "")
	v.SetDefault("providers.openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("providers.claude.key", "")
	v.SetDefault("providers.claude.base_url", "https://api.anthropic.com")
	v.SetDefault("providers.grok.key", "")
	v.SetDefault("providers.grok.base_url", "https://api.x.ai/v1")
	v.SetDefault("providers.deepseek.key", "")
	v.SetDefault("providers.deepseek.base_url", "https://api.deepseek.com/v1")
	v.SetDefault("models.default", "claude-3-7-sonnet")
	v.SetDefault("models.file", "")
	v.SetDefault("gateway.requests_per_second", 0)
	v.SetDefault("gateway.concurrency", 4)
	v.SetDefault("relay.url", "")
	v.SetDefault("relay.secret", "")
	v.SetDefault("relay.token", "")
	v.SetDefault("relay.token_ttl_hours", 24)
	v.SetDefault("relay.allowed_origins", []string{"*"})
	v.SetDefault("relay.dial_timeout_secs", 10)
	v.SetDefault("relay.tls_timeout_secs", 10)
	v.SetDefault("session.redis_url", "")
	v.SetDefault("session.ttl_hours", 12)
	v.SetDefault("browser.enabled", false)
	v.SetDefault("browser.bin", "")
	v.SetDefault("browser.timeout_secs", 30)
	v.SetDefault("ingest.provider", "local")
	v.SetDefault("ingest.pdftotext_path", "pdftotext")
	v.SetDefault("ingest.mistral_api_key", "")
	v.SetDefault("ingest.mistral_ocr_model", "pixtral-large-latest")
	v.SetDefault("ingest.max_bytes", 20<<20)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that the settings a command mode needs are present.
// Modes: "analyze", "chat", "serve", "settings", "relay-token".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Sprintf("store.driver must be sqlite or postgres, got %q", c.Store.Driver))
	}
	if c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required")
	}
	if c.Gateway.RequestsPerSecond < 0 {
		errs = append(errs, "gateway.requests_per_second must be >= 0")
	}

	switch mode {
	case "analyze":
		if c.Gateway.Concurrency < 1 || c.Gateway.Concurrency > 32 {
			errs = append(errs, "gateway.concurrency must be between 1 and 32")
		}
	case "chat", "settings", "session":
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
		if c.Relay.Secret == "" && !IsLoopback(c.Server.Host) {
			errs = append(errs, fmt.Sprintf("relay.secret is required when server.host %q is not loopback", c.Server.Host))
		}
		if c.Gateway.Concurrency < 1 || c.Gateway.Concurrency > 32 {
			errs = append(errs, "gateway.concurrency must be between 1 and 32")
		}
	case "relay-token":
		if c.Relay.Secret == "" {
			errs = append(errs, "relay.secret is required")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Ingest.Provider == "mistral" && c.Ingest.MistralKey == "" {
		errs = append(errs, "ingest.mistral_api_key is required when ingest.provider is mistral")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// IsLoopback reports whether host only accepts local connections. An empty
// host binds every interface.
func IsLoopback(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
