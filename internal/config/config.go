// Package config loads jsnorm service configuration from defaults, an optional
// YAML file and JSNORM_* environment variables.
package config

import (
	"time"

	jsnorm "github.com/reoring/jsnorm"
	"github.com/reoring/jsnorm/internal/logger"
)

type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Repository RepositoryConfig `koanf:"repository"`
	Normalize  NormalizeConfig  `koanf:"normalize"`
	Log        LogConfig        `koanf:"log"`
}

type ServerConfig struct {
	Addr            string        `koanf:"addr"             validate:"required"`
	ReadTimeout     time.Duration `koanf:"read_timeout"     validate:"gte=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gte=0"`
	Metrics         bool          `koanf:"metrics"`
}

type RepositoryConfig struct {
	Kind              string `koanf:"kind"               validate:"oneof=memory dir redis"`
	Dir               string `koanf:"dir"                validate:"required_if=Kind dir"`
	Watch             bool   `koanf:"watch"`
	RedisURL          string `koanf:"redis_url"          validate:"required_if=Kind redis"`
	RedisPrefix       string `koanf:"redis_prefix"`
	CacheSize         int    `koanf:"cache_size"         validate:"gte=0"`
	ValidateDocuments bool   `koanf:"validate_documents"`
}

type NormalizeConfig struct {
	MaxDepth      int    `koanf:"max_depth"      validate:"gte=0"`
	MaxBytes      int64  `koanf:"max_bytes"      validate:"gte=0"`
	DuplicateKeys string `koanf:"duplicate_keys" validate:"oneof=ignore warn error"`
	NumberMode    string `koanf:"number_mode"    validate:"oneof=json float64"`
	Presence      bool   `koanf:"presence"`
}

type LogConfig struct {
	Level string `koanf:"level" validate:"oneof=debug info warn error disabled"`
	JSON  bool   `koanf:"json"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			Metrics:         true,
		},
		Repository: RepositoryConfig{
			Kind:        "memory",
			RedisPrefix: "jsnorm:schema",
			CacheSize:   256,
		},
		Normalize: NormalizeConfig{
			MaxDepth:      64,
			MaxBytes:      1 << 20,
			DuplicateKeys: "error",
			NumberMode:    "json",
		},
		Log: LogConfig{Level: "info"},
	}
}

// ParseOpt converts the normalize section into decoding options.
func (n NormalizeConfig) ParseOpt() jsnorm.ParseOpt {
	opt := jsnorm.ParseOpt{
		MaxDepth: n.MaxDepth,
		MaxBytes: n.MaxBytes,
		Presence: jsnorm.PresenceOpt{Collect: n.Presence},
	}
	switch n.DuplicateKeys {
	case "warn":
		opt.Strictness.OnDuplicateKey = jsnorm.Warn
	case "error":
		opt.Strictness.OnDuplicateKey = jsnorm.Error
	}
	if n.NumberMode == "float64" {
		opt.NumberMode = jsnorm.NumberFloat64
	}
	return opt
}

// LoggerConfig converts the log section into a logger configuration.
func (l LogConfig) LoggerConfig() *logger.Config {
	cfg := logger.DefaultConfig()
	cfg.Level = logger.LogLevel(l.Level)
	cfg.JSON = l.JSON
	return cfg
}
