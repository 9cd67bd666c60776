package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-yaml"

	"mutdb/pkg/compression"
	"mutdb/pkg/dberrors"
)

// DefaultFlushThreshold is the commit log size that triggers a snapshot rewrite.
const DefaultFlushThreshold int64 = 10 * 1024 * 1024

// Config - корневая структура конфигурации приложения
// yaml и validate теги для парсинга и валидации
type Config struct {
	Logger LoggerConfig `yaml:"logger" validate:"required"`
	Server ServerConfig `yaml:"http-server" validate:"required"`
	Store  StoreConfig  `yaml:"store" validate:"required"`
}

type ServerConfig struct {
	Port              int           `yaml:"port" validate:"required,min=1,max=65535"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
}

type StoreConfig struct {
	Path string `yaml:"path" validate:"required"`
	// FlushThreshold is compared with the commit log size after every update;
	// 0 flushes after every update.
	FlushThreshold  int64         `yaml:"flush_threshold" validate:"min=0"`
	Diagnostics     bool          `yaml:"diagnostics"`
	LoadParallelism int           `yaml:"load_parallelism" validate:"min=1"`
	Compression     string        `yaml:"compression" validate:"oneof=none gzip zstd"`
	FlushInterval   time.Duration `yaml:"flush_interval" validate:"min=0"`
}

type LoggerConfig struct {
	Level string `yaml:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`
	JSON  bool   `yaml:"json"`
}

// Default returns a baseline development config.
func Default() Config {
	return Config{
		Logger: LoggerConfig{
			Level: "INFO",
			JSON:  false,
		},
		Server: ServerConfig{
			Port:              8080,
			ReadHeaderTimeout: 5 * time.Second,
		},
		Store: DefaultStore("./data"),
	}
}

// DefaultStore returns store settings rooted at path.
func DefaultStore(path string) StoreConfig {
	return StoreConfig{
		Path:            path,
		FlushThreshold:  DefaultFlushThreshold,
		LoadParallelism: 5,
		Compression:     compression.None.String(),
	}
}

// Load reads a YAML file over the defaults. A missing file yields Default().
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			slog.Info("config file not found, using default config", "path", path)
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config: %w", err)
	}

	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	switch strings.ToUpper(c.Logger.Level) {
	case "DEBUG", "INFO", "WARN", "ERROR":
	default:
		return fmt.Errorf("%w: logger level %q", dberrors.ErrInvalidArgument, c.Logger.Level)
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: http-server port %d", dberrors.ErrInvalidArgument, c.Server.Port)
	}
	return c.Store.Validate()
}

func (c StoreConfig) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("%w: empty store path", dberrors.ErrInvalidArgument)
	}
	if c.FlushThreshold < 0 {
		return fmt.Errorf("%w: negative flush threshold", dberrors.ErrInvalidArgument)
	}
	if c.LoadParallelism < 1 {
		return fmt.Errorf("%w: load parallelism must be positive", dberrors.ErrInvalidArgument)
	}
	if c.FlushInterval < 0 {
		return fmt.Errorf("%w: negative flush interval", dberrors.ErrInvalidArgument)
	}
	if _, err := compression.ParseCodec(c.Compression); err != nil {
		return fmt.Errorf("%w: %v", dberrors.ErrInvalidArgument, err)
	}
	return nil
}

// Codec returns the snapshot compression codec.
func (c StoreConfig) Codec() compression.Codec {
	codec, err := compression.ParseCodec(c.Compression)
	if err != nil {
		return compression.None
	}
	return codec
}

// SlogLevel maps the configured level onto slog.
func (c LoggerConfig) SlogLevel() slog.Level {
	switch strings.ToUpper(c.Level) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
