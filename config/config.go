package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"
)

type Config struct {
	Env       string          `yaml:"env" env:"UMC_ENV" env-default:"local"`
	LogLevel  string          `yaml:"log_level" env:"UMC_LOG_LEVEL" env-default:"info"`
	Database  DatabaseConfig  `yaml:"database"`
	Gemini    GeminiConfig    `yaml:"gemini"`
	Thumbnail ThumbnailConfig `yaml:"thumbnail"`
	Queue     QueueConfig     `yaml:"queue"`
}

type DatabaseConfig struct {
	Path string `yaml:"path" env:"UMC_DB_PATH" env-default:"miniatures.sqlite"`
}

type GeminiConfig struct {
	// APIKey seeds the stored credential when none has been saved yet.
	APIKey       string        `yaml:"api_key" env:"GEMINI_API_KEY"`
	DefaultModel string        `yaml:"default_model" env:"UMC_GEMINI_MODEL" env-default:"gemini-2.5-flash-image"`
	Timeout      time.Duration `yaml:"timeout" env:"UMC_GEMINI_TIMEOUT" env-default:"2m"`
}

type ThumbnailConfig struct {
	MaxSize int `yaml:"max_size" env:"UMC_THUMBNAIL_MAX_SIZE" env-default:"64"`
	Quality int `yaml:"quality" env:"UMC_THUMBNAIL_QUALITY" env-default:"70"`
}

type QueueConfig struct {
	Workers       int `yaml:"workers" env:"UMC_QUEUE_WORKERS" env-default:"4"`
	Capacity      int `yaml:"capacity" env:"UMC_QUEUE_CAPACITY" env-default:"100"`
	FailureBuffer int `yaml:"failure_buffer" env:"UMC_QUEUE_FAILURE_BUFFER" env-default:"32"`
}

var ErrInvalidConfig = errors.New("invalid config")

// Load reads the YAML file at path, then the environment. An empty path
// reads the environment only.
func Load(path string) (*Config, error) {
	var cfg Config

	if path == "" {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("cannot read environment: %w", err)
		}
	} else {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}

		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("cannot read config: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Env {
	case EnvLocal, EnvDev, EnvProd:
	default:
		return fmt.Errorf("%w: unknown env %q", ErrInvalidConfig, c.Env)
	}

	if c.Queue.Workers < 1 {
		return fmt.Errorf("%w: queue.workers must be positive", ErrInvalidConfig)
	}

	if c.Queue.Capacity < 0 || c.Queue.FailureBuffer < 0 {
		return fmt.Errorf("%w: queue sizes must not be negative", ErrInvalidConfig)
	}

	if c.Gemini.Timeout < 0 {
		return fmt.Errorf("%w: gemini.timeout must not be negative", ErrInvalidConfig)
	}

	return nil
}
