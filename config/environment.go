package config

import (
	"os"
	"strconv"
)

// applyAppEnv layers AWSKIT_-prefixed environment variables onto cfg.App.
// Grounded on the teacher's applyAppEnv/applyRedisEnv split in
// internal/config/environment.go: one function per config section, each
// only overwriting a field when the variable is actually set.
func applyAppEnv(cfg *AppConfig) {
	if v := os.Getenv("AWSKIT_ENDPOINT_URL"); v != "" {
		cfg.EndpointURL = v
	}
	if v := os.Getenv("AWSKIT_REGION"); v != "" {
		cfg.Region = v
	}
	if v := os.Getenv("AWSKIT_ACCESS_KEY_ID"); v != "" {
		cfg.AccessKeyID = v
	}
	if v := os.Getenv("AWSKIT_SECRET_ACCESS_KEY"); v != "" {
		cfg.SecretAccessKey = v
	}
	if v := os.Getenv("AWSKIT_SESSION_TOKEN"); v != "" {
		cfg.SessionToken = v
	}
	if v := getEnvInt("AWSKIT_DEFAULT_VISIBILITY_TIMEOUT"); v > 0 {
		cfg.DefaultVisibilityTimeout = v
	}
	if v := getEnvInt("AWSKIT_DEFAULT_WAIT_TIME"); v > 0 {
		cfg.DefaultWaitTime = v
	}
	if v := getEnvInt("AWSKIT_DEFAULT_MAX_CONCURRENT"); v > 0 {
		cfg.DefaultMaxConcurrent = v
	}
	if v := os.Getenv("AWSKIT_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("AWSKIT_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
}

// LoadFromEnvironment layers AWSKIT_ environment variables onto cfg.
func LoadFromEnvironment(cfg *Config) {
	applyAppEnv(&cfg.App)
}

func getEnvInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}
