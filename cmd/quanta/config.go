package main

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/quantaml/quanta/internal/logger"
)

// Config represents the quanta configuration file
// (~/.config/quanta/config.yaml). Pointer fields distinguish "not set" from
// zero values.
type Config struct {
	LabelsPath string `yaml:"labels_path"`
	ORTLibrary string `yaml:"ort_library"`

	InputSize *int64 `yaml:"input_size"`
	TopK      *int64 `yaml:"top_k"`

	// Server
	ServerAddress string `yaml:"server_address"`
	PoolSize      *int64 `yaml:"pool_size"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

func configPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "quanta", "config.yaml")
}

// applyCommonConfig applies config file defaults to shared flag variables
// when the corresponding CLI flag was not explicitly set.
func applyCommonConfig(c *cli.Command, cfg Config) {
	if cfg.LabelsPath != "" && !c.IsSet("labels") {
		labelsPath = cfg.LabelsPath
	}
	if cfg.ORTLibrary != "" && !c.IsSet("ort-library") {
		ortLibrary = cfg.ORTLibrary
	}
	if cfg.InputSize != nil && !c.IsSet("input-size") && !c.IsSet("size") {
		inputSize = *cfg.InputSize
	}
}

// applyServeConfig applies config file defaults to serve command variables.
func applyServeConfig(c *cli.Command, cfg Config, addr *string, poolSize *int64) {
	applyCommonConfig(c, cfg)
	if cfg.ServerAddress != "" && !c.IsSet("addr") {
		*addr = cfg.ServerAddress
	}
	if cfg.PoolSize != nil && !c.IsSet("pool-size") {
		*poolSize = *cfg.PoolSize
	}
}

// LoadConfig reads the config file. A missing file yields a zero Config; an
// unreadable or malformed one does too, but with a warning so a broken config
// is distinguishable from no config.
func LoadConfig(log logger.Logger) Config {
	return loadConfigFile(configPath(), log)
}

func loadConfigFile(path string, log logger.Logger) Config {
	if path == "" {
		return Config{}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Warn("ignoring unreadable config file", "path", path, "error", err)
		}
		return Config{}
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		log.Warn("ignoring malformed config file", "path", path, "error", err)
		return Config{}
	}
	return cfg
}
