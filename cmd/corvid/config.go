package main

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/corvidjs/corvid/pkg/wasm"
)

// cliConfig is the optional YAML file given with -config. Flags set on the
// command line take precedence.
type cliConfig struct {
	LogLevel     string `yaml:"log_level"`
	Development  bool   `yaml:"development"`
	MaxCallDepth int    `yaml:"max_call_depth"`
	Validate     *bool  `yaml:"validate"`
	StubImports  bool   `yaml:"stub_imports"`
}

func defaultConfig() cliConfig {
	validate := true
	return cliConfig{
		LogLevel:     "warn",
		MaxCallDepth: wasm.DefaultMaxCallDepth,
		Validate:     &validate,
	}
}

func loadConfig(path string) (cliConfig, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}

func (c cliConfig) engineConfig() wasm.Config {
	ec := wasm.DefaultConfig()
	if c.MaxCallDepth > 0 {
		ec.MaxCallDepth = c.MaxCallDepth
	}
	if c.Validate != nil {
		ec.Validate = *c.Validate
	}
	return ec
}

func (c cliConfig) logger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	if c.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{"stderr"}
	return zc.Build()
}
