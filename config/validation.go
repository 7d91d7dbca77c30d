package config

import (
	"time"

	"github.com/sqskit/sqskit-go/errors"
)

func secondsToDuration(s int) time.Duration {
	return time.Duration(s) * time.Second
}

// Load builds a Config with precedence defaults -> optional YAML file ->
// environment variables. yamlPath may be empty to skip the file layer.
// Grounded on the teacher's Load() in internal/config/loader.go, which
// chains the same stages in the same order.
func Load(yamlPath string) (*Config, error) {
	cfg := Default()

	if yamlPath != "" {
		if err := LoadFile(cfg, yamlPath); err != nil {
			return nil, err
		}
	}

	LoadFromEnvironment(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks a Config for internally-consistent values.
func Validate(cfg *Config) error {
	if err := validateApp(&cfg.App); err != nil {
		return err
	}
	if cfg.Container.ShutdownTimeout <= 0 {
		return errors.Configuration("container shutdown timeout must be positive")
	}
	if cfg.Container.WorkerQueueCapacity == 0 || (cfg.Container.WorkerQueueCapacity&(cfg.Container.WorkerQueueCapacity-1)) != 0 {
		return errors.Configuration("container worker queue capacity must be a power of 2, got %d", cfg.Container.WorkerQueueCapacity)
	}
	if cfg.Template.MaxRetries < 0 {
		return errors.Configuration("template max retries must be >= 0")
	}
	if cfg.Template.MaxSendsPerSecond < 0 {
		return errors.Configuration("template max sends per second must be >= 0")
	}
	return nil
}

func validateApp(app *AppConfig) error {
	switch app.LogLevel {
	case "trace", "debug", "info", "warn", "error":
	default:
		return errors.Configuration("invalid log level: %s", app.LogLevel)
	}
	switch app.LogFormat {
	case "text", "json":
	default:
		return errors.Configuration("invalid log format: %s", app.LogFormat)
	}
	if app.DefaultMaxConcurrent <= 0 {
		return errors.Configuration("default max concurrent must be positive")
	}
	return nil
}

// ValidateListenerConfig checks one ListenerConfig for configuration
// errors raised at registration time per spec.md §7.
func ValidateListenerConfig(lc *ListenerConfig) error {
	if lc.Queue == "" {
		return errors.Configuration("listener config: queue is required")
	}
	if lc.MaxConcurrentMessages <= 0 {
		return errors.Configuration("listener config: max_concurrent_messages must be positive")
	}
	if lc.PollMaxMessages < 1 || lc.PollMaxMessages > 10 {
		return errors.Configuration("listener config: poll_max_messages must be in [1,10], got %d", lc.PollMaxMessages)
	}
	if lc.PollWaitTimeSeconds < 0 {
		return errors.Configuration("listener config: poll_wait_time_seconds must be >= 0")
	}
	if lc.VisibilityExtension.Enabled {
		if lc.VisibilityExtension.IntervalSeconds <= 0 {
			return errors.Configuration("listener config: visibility_extension.interval_seconds must be positive when enabled")
		}
		if lc.VisibilityExtension.ExtensionSeconds <= 0 {
			return errors.Configuration("listener config: visibility_extension.extension_seconds must be positive when enabled")
		}
	}
	ack := lc.Acknowledgement
	if ack.BatchSize < 1 || ack.BatchSize > 10 {
		return errors.Configuration("listener config: acknowledgement.batch_size must be in [1,10], got %d", ack.BatchSize)
	}
	if ack.BatchWindowMs <= 0 {
		return errors.Configuration("listener config: acknowledgement.batch_window_ms must be positive")
	}
	switch ack.Mode {
	case AutoOnSuccess, Manual, Always, Never:
	default:
		return errors.Configuration("listener config: invalid acknowledgement mode %q", ack.Mode)
	}
	switch ack.Ordering {
	case Ordered, Unordered, PerGroup:
	default:
		return errors.Configuration("listener config: invalid acknowledgement ordering %q", ack.Ordering)
	}
	switch lc.BackpressureMode {
	case HighThroughput, FIFOPreserving, AutoBackpressure:
	default:
		return errors.Configuration("listener config: invalid backpressure mode %q", lc.BackpressureMode)
	}
	switch lc.FifoGroupStrategy {
	case GroupParallel, StrictSequential:
	default:
		return errors.Configuration("listener config: invalid fifo_group_strategy %q", lc.FifoGroupStrategy)
	}
	switch lc.QueueNotFoundStrategy {
	case FailFast, RetryLookup, CreateQueue:
	default:
		return errors.Configuration("listener config: invalid queue_not_found_strategy %q", lc.QueueNotFoundStrategy)
	}
	return nil
}

// ResolvedBackpressureMode applies the AUTO rule of spec.md §4.3: FIFO_PRESERVING
// if the queue name ends in ".fifo", else HIGH_THROUGHPUT.
func ResolvedBackpressureMode(lc *ListenerConfig) BackpressureMode {
	if lc.BackpressureMode != AutoBackpressure {
		return lc.BackpressureMode
	}
	if isFIFOQueue(lc.Queue) {
		return FIFOPreserving
	}
	return HighThroughput
}

func isFIFOQueue(queue string) bool {
	return len(queue) >= 5 && queue[len(queue)-5:] == ".fifo"
}
