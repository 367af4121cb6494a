package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Processes are the process types with built-in catalogs.
var Processes = []string{"milling", "sawing", "turning"}

// Config holds the full application configuration.
type Config struct {
	Owner   string        `yaml:"owner" mapstructure:"owner"`
	Model   string        `yaml:"model" mapstructure:"model"`
	Dataset DatasetConfig `yaml:"dataset" mapstructure:"dataset"`
	Quality QualityConfig `yaml:"quality" mapstructure:"quality"`
	Publish PublishConfig `yaml:"publish" mapstructure:"publish"`
	DQaaS   DQaaSConfig   `yaml:"dqaas" mapstructure:"dqaas"`
	Kafka   KafkaConfig   `yaml:"kafka" mapstructure:"kafka"`
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Batch   BatchConfig   `yaml:"batch" mapstructure:"batch"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// DatasetConfig locates raw recordings. Paths holds one directory or
// container file per process type; relative paths resolve against Root.
type DatasetConfig struct {
	Root       string            `yaml:"root" mapstructure:"root"`
	Paths      map[string]string `yaml:"paths" mapstructure:"paths"`
	CatalogDir string            `yaml:"catalog_dir" mapstructure:"catalog_dir"`
}

// QualityConfig locates the product quality tables per process type.
type QualityConfig struct {
	Paths map[string]string `yaml:"paths" mapstructure:"paths"`
}

// PublishConfig configures the hallmark service and the retry policy.
type PublishConfig struct {
	Endpoint            string  `yaml:"endpoint" mapstructure:"endpoint"`
	CID                 string  `yaml:"cid" mapstructure:"cid"`
	Pwd                 string  `yaml:"pwd" mapstructure:"pwd"`
	IDField             string  `yaml:"id_field" mapstructure:"id_field"`
	MaxAttempts         int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs    int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs        int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	Multiplier          float64 `yaml:"multiplier" mapstructure:"multiplier"`
	Jitter              float64 `yaml:"jitter" mapstructure:"jitter"`
	RateLimit           float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	BreakerThreshold    int     `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerCooldownSecs int     `yaml:"breaker_cooldown_secs" mapstructure:"breaker_cooldown_secs"`
}

// DQaaSConfig configures the data-quality analysis service.
type DQaaSConfig struct {
	Endpoint   string `yaml:"endpoint" mapstructure:"endpoint"`
	StagingDir string `yaml:"staging_dir" mapstructure:"staging_dir"`
	QHDKey     string `yaml:"qhd_key" mapstructure:"qhd_key"`
}

// KafkaConfig enables the published-document mirror when Brokers is set.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers" mapstructure:"brokers"`
	Topic   string   `yaml:"topic" mapstructure:"topic"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// BatchConfig configures batch processing.
type BatchConfig struct {
	MaxConcurrentParts int `yaml:"max_concurrent_parts" mapstructure:"max_concurrent_parts"`
}

// ServerConfig configures the HTTP trigger server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from .env, file and environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrap(err, "config: load .env")
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("QHD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("owner", "ptw")
	v.SetDefault("model", "None")
	v.SetDefault("dataset.root", ".")
	v.SetDefault("dataset.catalog_dir", "")
	for _, p := range Processes {
		v.SetDefault("dataset.paths."+p, p)
		v.SetDefault("quality.paths."+p, "")
	}
	v.SetDefault("publish.endpoint", "http://localhost:6005/interq/tf/v1.0/qhs")
	v.SetDefault("publish.cid", "")
	v.SetDefault("publish.pwd", "")
	v.SetDefault("publish.id_field", "_id")
	v.SetDefault("publish.max_attempts", 5)
	v.SetDefault("publish.initial_backoff_ms", 1000)
	v.SetDefault("publish.max_backoff_ms", 30000)
	v.SetDefault("publish.multiplier", 2.0)
	v.SetDefault("publish.jitter", 0.25)
	v.SetDefault("publish.rate_limit", 0.0)
	v.SetDefault("publish.breaker_threshold", 5)
	v.SetDefault("publish.breaker_cooldown_secs", 30)
	v.SetDefault("dqaas.endpoint", "http://localhost:8000/DuplicateRecords/")
	v.SetDefault("dqaas.staging_dir", "tmp_files")
	v.SetDefault("dqaas.qhd_key", "interq_qhd")
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "qhd-documents")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "qhd.db")
	v.SetDefault("batch.max_concurrent_parts", 4)
	v.SetDefault("server.port", 8080)
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

// Validate checks the settings a command mode needs. Modes: "process"
// (build documents locally), "publish" (build and post), "serve".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "process":
	case "publish", "serve":
		if c.Publish.Endpoint == "" {
			errs = append(errs, "publish.endpoint is required")
		}
		if c.Publish.CID == "" {
			errs = append(errs, "publish.cid is required")
		}
		if c.Publish.MaxAttempts < 1 {
			errs = append(errs, "publish.max_attempts must be >= 1")
		}
		if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
			errs = append(errs, "kafka.topic is required when kafka.brokers is set")
		}
		if mode == "serve" && c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Batch.MaxConcurrentParts < 1 || c.Batch.MaxConcurrentParts > 64 {
		errs = append(errs, "batch.max_concurrent_parts must be between 1 and 64")
	}
	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Sprintf("store.driver %q is not supported", c.Store.Driver))
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// DatasetPath returns the raw-data location of a process type.
func (c *Config) DatasetPath(process string) string {
	return c.resolve(c.Dataset.Paths[process])
}

// QualityPath returns the product quality table of a process type, or ""
// when none is configured.
func (c *Config) QualityPath(process string) string {
	p := c.Quality.Paths[process]
	if p == "" {
		return ""
	}
	return c.resolve(p)
}

func (c *Config) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Dataset.Root, p)
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
