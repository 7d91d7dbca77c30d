package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// fileConfig is the YAML document shape for an optional config file,
// loaded between defaults and environment variables. The original
// awskit library is explicitly Spring-inspired (see original_source's
// package docstring); Spring Boot itself reads an application.yml before
// environment overrides apply, so this layer follows that convention
// rather than leaving file-based config unsupported.
type fileConfig struct {
	App struct {
		LogLevel                 string `yaml:"log_level"`
		LogFormat                string `yaml:"log_format"`
		EndpointURL              string `yaml:"endpoint_url"`
		Region                   string `yaml:"region"`
		DefaultVisibilityTimeout int    `yaml:"default_visibility_timeout"`
		DefaultWaitTime          int    `yaml:"default_wait_time"`
		DefaultMaxConcurrent     int    `yaml:"default_max_concurrent"`
	} `yaml:"app"`
	Container struct {
		ShutdownTimeoutSeconds int `yaml:"shutdown_timeout_seconds"`
	} `yaml:"container"`
	Template struct {
		DefaultQueue         string `yaml:"default_queue"`
		BatchFailureStrategy string `yaml:"batch_failure_strategy"`
		MaxRetries           int    `yaml:"max_retries"`
	} `yaml:"template"`
}

// LoadFile layers a YAML config file onto cfg. A missing file is not an
// error — the file layer is optional, sitting between defaults and
// environment variables in the precedence chain.
func LoadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("config: reading %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("config: parsing %s: %w", path, err)
	}

	if fc.App.LogLevel != "" {
		cfg.App.LogLevel = fc.App.LogLevel
	}
	if fc.App.LogFormat != "" {
		cfg.App.LogFormat = fc.App.LogFormat
	}
	if fc.App.EndpointURL != "" {
		cfg.App.EndpointURL = fc.App.EndpointURL
	}
	if fc.App.Region != "" {
		cfg.App.Region = fc.App.Region
	}
	if fc.App.DefaultVisibilityTimeout > 0 {
		cfg.App.DefaultVisibilityTimeout = fc.App.DefaultVisibilityTimeout
	}
	if fc.App.DefaultWaitTime > 0 {
		cfg.App.DefaultWaitTime = fc.App.DefaultWaitTime
	}
	if fc.App.DefaultMaxConcurrent > 0 {
		cfg.App.DefaultMaxConcurrent = fc.App.DefaultMaxConcurrent
	}
	if fc.Container.ShutdownTimeoutSeconds > 0 {
		cfg.Container.ShutdownTimeout = secondsToDuration(fc.Container.ShutdownTimeoutSeconds)
	}
	if fc.Template.DefaultQueue != "" {
		cfg.Template.DefaultQueue = fc.Template.DefaultQueue
	}
	if fc.Template.BatchFailureStrategy != "" {
		cfg.Template.BatchFailureStrategy = SendBatchFailureStrategy(fc.Template.BatchFailureStrategy)
	}
	if fc.Template.MaxRetries > 0 {
		cfg.Template.MaxRetries = fc.Template.MaxRetries
	}
	return nil
}
