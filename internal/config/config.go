// Package config loads application configuration from file and environment.
package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Jina      JinaConfig      `yaml:"jina" mapstructure:"jina"`
	Firecrawl FirecrawlConfig `yaml:"firecrawl" mapstructure:"firecrawl"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	SMTP      SMTPConfig      `yaml:"smtp" mapstructure:"smtp"`
	Search    SearchConfig    `yaml:"search" mapstructure:"search"`
	Enrich    EnrichConfig    `yaml:"enrich" mapstructure:"enrich"`
	Pipeline  PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	FollowUp  FollowUpConfig  `yaml:"follow_up" mapstructure:"follow_up"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// JinaConfig holds Jina AI Reader and Search settings.
type JinaConfig struct {
	Key           string `yaml:"key" mapstructure:"key"`
	BaseURL       string `yaml:"base_url" mapstructure:"base_url"`
	SearchBaseURL string `yaml:"search_base_url" mapstructure:"search_base_url"`
}

// FirecrawlConfig holds Firecrawl API settings.
type FirecrawlConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// AnthropicConfig holds Anthropic API settings. Extraction and validation run
// on the cheap model; drafting runs on the writing model.
type AnthropicConfig struct {
	Key          string `yaml:"key" mapstructure:"key"`
	ExtractModel string `yaml:"extract_model" mapstructure:"extract_model"`
	DraftModel   string `yaml:"draft_model" mapstructure:"draft_model"`
}

// SMTPConfig holds outbound email transport settings.
type SMTPConfig struct {
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"`
	Username string `yaml:"username" mapstructure:"username"`
	Password string `yaml:"password" mapstructure:"password"`
	From     string `yaml:"from" mapstructure:"from"`
	// SendsPerMinute paces outbound sends to stay under provider limits.
	SendsPerMinute int `yaml:"sends_per_minute" mapstructure:"sends_per_minute"`
}

// SearchConfig configures candidate search providers.
type SearchConfig struct {
	// TimeoutSecs bounds a single provider attempt in the search chain.
	TimeoutSecs int `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// EnrichConfig configures per-candidate enrichment.
type EnrichConfig struct {
	// MaxPages bounds how many pages are fetched per candidate site
	// (homepage plus about/contact style paths).
	MaxPages         int `yaml:"max_pages" mapstructure:"max_pages"`
	FetchTimeoutSecs int `yaml:"fetch_timeout_secs" mapstructure:"fetch_timeout_secs"`
	// MaxContentChars caps the scraped text handed to extraction.
	MaxContentChars int `yaml:"max_content_chars" mapstructure:"max_content_chars"`
}

// PipelineConfig configures the discovery run.
type PipelineConfig struct {
	MaxConcurrentEnrich int `yaml:"max_concurrent_enrich" mapstructure:"max_concurrent_enrich"`
}

// FollowUpConfig configures the follow-up scheduler.
type FollowUpConfig struct {
	// Days until a sent email becomes due for its single follow-up round.
	Days int `yaml:"days" mapstructure:"days"`
	// SweepInterval between scheduler passes.
	SweepInterval time.Duration `yaml:"sweep_interval" mapstructure:"sweep_interval"`
}

// ServerConfig configures the HTTP server for serve mode.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
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
	v.SetEnvPrefix("LEADGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("jina.base_url", "https://r.jina.ai")
	v.SetDefault("jina.search_base_url", "https://s.jina.ai")
	v.SetDefault("firecrawl.base_url", "https://api.firecrawl.dev/v1")
	v.SetDefault("anthropic.extract_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.draft_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.sends_per_minute", 20)
	// Bounds one provider attempt; the LLM knowledge fallback needs headroom.
	v.SetDefault("search.timeout_secs", 45)
	v.SetDefault("enrich.max_pages", 3)
	v.SetDefault("enrich.fetch_timeout_secs", 20)
	v.SetDefault("enrich.max_content_chars", 24000)
	v.SetDefault("pipeline.max_concurrent_enrich", 4)
	v.SetDefault("follow_up.days", 7)
	v.SetDefault("follow_up.sweep_interval", time.Hour)

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

// Validate checks that the configuration required for the given mode is set.
// Mode is "discover", "outreach", or "serve" (which needs both).
func (c *Config) Validate(mode string) error {
	needsSMTP := mode == "outreach" || mode == "serve"

	if c.Anthropic.Key == "" {
		return eris.New("config: anthropic.key is required (LEADGEN_ANTHROPIC_KEY)")
	}
	if needsSMTP {
		if c.SMTP.Host == "" || c.SMTP.Username == "" || c.SMTP.Password == "" {
			return eris.New("config: smtp host/username/password are required (LEADGEN_SMTP_*)")
		}
		if c.SMTP.From == "" {
			return eris.New("config: smtp.from is required (LEADGEN_SMTP_FROM)")
		}
	}
	if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
		return eris.New("config: store.database_url is required for the postgres driver")
	}
	return nil
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
