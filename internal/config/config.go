// Package config loads application configuration from file and environment
// and initializes the global logger.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Loader    LoaderConfig    `yaml:"loader" mapstructure:"loader"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Ingest    IngestConfig    `yaml:"ingest" mapstructure:"ingest"`
	Identity  IdentityConfig  `yaml:"identity" mapstructure:"identity"`
	Backfill  BackfillConfig  `yaml:"backfill" mapstructure:"backfill"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// LoaderConfig configures document loading and PDF text extraction.
type LoaderConfig struct {
	Provider      string `yaml:"provider" mapstructure:"provider"`
	PdfToTextPath string `yaml:"pdftotext_path" mapstructure:"pdftotext_path"`
	MistralKey    string `yaml:"mistral_api_key" mapstructure:"mistral_api_key"`
}

// AnthropicConfig holds Anthropic API settings for model escalation.
type AnthropicConfig struct {
	Key         string  `yaml:"key" mapstructure:"key"`
	Model       string  `yaml:"model" mapstructure:"model"`
	MaxTokens   int64   `yaml:"max_tokens" mapstructure:"max_tokens"`
	MaxAttempts int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	QPS         float64 `yaml:"qps" mapstructure:"qps"`
}

// IngestConfig configures the ingestion pipeline.
type IngestConfig struct {
	Concurrency            int     `yaml:"concurrency" mapstructure:"concurrency"`
	SectionAcceptThreshold float64 `yaml:"section_accept_threshold" mapstructure:"section_accept_threshold"`
	SectionExcerptChars    int     `yaml:"section_excerpt_chars" mapstructure:"section_excerpt_chars"`
	DisableModelEscalation bool    `yaml:"disable_model_escalation" mapstructure:"disable_model_escalation"`
}

// IdentityConfig configures name resolution escalation.
type IdentityConfig struct {
	TriggerThreshold float64 `yaml:"trigger_threshold" mapstructure:"trigger_threshold"`
	AcceptThreshold  float64 `yaml:"accept_threshold" mapstructure:"accept_threshold"`
}

// BackfillConfig configures the identity backfill job.
type BackfillConfig struct {
	Apply bool `yaml:"apply" mapstructure:"apply"`
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
	v.SetEnvPrefix("RESUME")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "resume-intake.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("loader.provider", "local")
	v.SetDefault("loader.pdftotext_path", "pdftotext")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 512)
	v.SetDefault("anthropic.max_attempts", 3)
	v.SetDefault("anthropic.qps", 4)
	v.SetDefault("ingest.concurrency", 4)
	v.SetDefault("ingest.section_accept_threshold", 0.75)
	v.SetDefault("ingest.section_excerpt_chars", 700)
	v.SetDefault("identity.trigger_threshold", 0.60)
	v.SetDefault("identity.accept_threshold", 0.70)
	v.SetDefault("backfill.apply", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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
