package internal

import (
	"fmt"

	"github.com/hbomb79/hlsgate/internal/api"
	"github.com/hbomb79/hlsgate/internal/ffmpeg"
	"github.com/hbomb79/hlsgate/internal/stream"
	"github.com/hbomb79/hlsgate/pkg/logger"
	"github.com/ilyakaznacheev/cleanenv"
)

// Config is the struct used to contain the various user config
// supplied by file and/or environment variables.
type Config struct {
	RestConfig   api.RestConfig `yaml:"rest"`
	FfmpegConfig ffmpeg.Config  `yaml:"ffmpeg"`
	StreamConfig stream.Config  `yaml:"stream"`
	LogLevel     string         `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
}

// LoadConfig reads the configuration from the file at the path provided (YAML,
// TOML, JSON or EDN based on its extension), with any environment variables
// taking precedence. If the path is empty only the environment is consulted.
func LoadConfig(path string) (*Config, error) {
	config := &Config{}
	if path == "" {
		if err := cleanenv.ReadEnv(config); err != nil {
			return nil, fmt.Errorf("failed to load configuration from environment: %w", err)
		}
	} else if err := cleanenv.ReadConfig(path, config); err != nil {
		return nil, fmt.Errorf("failed to load configuration from %s: %w", path, err)
	}

	if _, err := logger.ParseStatus(config.LogLevel); err != nil {
		return nil, fmt.Errorf("invalid log_level: %w", err)
	}

	return config, nil
}
