// Package config provides configuration loading and validation for sqskit,
// with precedence defaults -> optional YAML file -> environment variables
// (AWSKIT_ prefix). There is no functional-option layer; callers override
// by setting fields on the returned Config.
package config

import "time"

// BackpressureMode selects how BackpressureManager grants permits.
type BackpressureMode string

// Backpressure modes recognized by ListenerConfig.
const (
	HighThroughput BackpressureMode = "HIGH_THROUGHPUT"
	FIFOPreserving BackpressureMode = "FIFO_PRESERVING"
	AutoBackpressure BackpressureMode = "AUTO"
)

// FifoGroupStrategy controls dispatch of FIFO messages within a group.
type FifoGroupStrategy string

// FIFO group strategies.
const (
	GroupParallel    FifoGroupStrategy = "GROUP_PARALLEL"
	StrictSequential FifoGroupStrategy = "STRICT_SEQUENTIAL"
)

// QueueNotFoundStrategy controls container startup behavior when the
// configured queue cannot be resolved.
type QueueNotFoundStrategy string

// Queue-not-found strategies.
const (
	FailFast     QueueNotFoundStrategy = "FAIL_FAST"
	RetryLookup  QueueNotFoundStrategy = "RETRY"
	CreateQueue  QueueNotFoundStrategy = "CREATE"
)

// AcknowledgementMode controls when a message is enqueued for deletion.
type AcknowledgementMode string

// Acknowledgement modes.
const (
	AutoOnSuccess AcknowledgementMode = "AUTO_ON_SUCCESS"
	Manual        AcknowledgementMode = "MANUAL"
	Always        AcknowledgementMode = "ALWAYS"
	Never         AcknowledgementMode = "NEVER"
)

// AcknowledgementOrdering controls flush ordering within the ack processor.
type AcknowledgementOrdering string

// Acknowledgement ordering modes.
const (
	Ordered   AcknowledgementOrdering = "ORDERED"
	Unordered AcknowledgementOrdering = "UNORDERED"
	PerGroup  AcknowledgementOrdering = "PER_GROUP"
)

// AckErrorPolicy controls what happens to a message whose outcome is an error.
type AckErrorPolicy string

// Ack error policies.
const (
	Redrive AckErrorPolicy = "REDRIVE"
	Ignore  AckErrorPolicy = "IGNORE"
)

// SendBatchFailureStrategy controls SendTemplate.SendBatch partial-failure handling.
type SendBatchFailureStrategy string

// Send-batch failure strategies.
const (
	PartialSuccess SendBatchFailureStrategy = "PARTIAL_SUCCESS"
	FailOnAny      SendBatchFailureStrategy = "FAIL_ON_ANY"
	RetryFailed    SendBatchFailureStrategy = "RETRY_FAILED"
)

// VisibilityExtensionConfig controls the container's visibility-extension timer.
type VisibilityExtensionConfig struct {
	Enabled          bool
	IntervalSeconds  int
	ExtensionSeconds int
}

// AcknowledgementConfig controls the AcknowledgementProcessor for one listener.
type AcknowledgementConfig struct {
	Mode          AcknowledgementMode
	Ordering      AcknowledgementOrdering
	BatchSize     int
	BatchWindowMs int
	OnError       AckErrorPolicy
}

// ListenerConfig is the declarative option set for one registered handler.
type ListenerConfig struct {
	Queue                    string
	MaxConcurrentMessages    int
	PollMaxMessages          int
	PollWaitTimeSeconds      int
	VisibilityTimeoutSeconds *int
	VisibilityExtension      VisibilityExtensionConfig
	Acknowledgement          AcknowledgementConfig
	BackpressureMode         BackpressureMode
	FifoGroupStrategy        FifoGroupStrategy
	QueueNotFoundStrategy    QueueNotFoundStrategy
}

// ContainerConfig carries per-container tuning distinct from the
// per-listener ListenerConfig, mirroring the teacher's
// PipelineConfig/ResourceConfig split. Container reads ShutdownTimeout and
// IdlePollSleep. WorkerQueueCapacity and AckFlushInterval are carried but
// not read by container: the worker pool's task channel is sized from
// MaxConcurrentMessages, and the ack flush cadence comes from
// AcknowledgementConfig.BatchWindowMs.
type ContainerConfig struct {
	ShutdownTimeout    time.Duration
	IdlePollSleep      time.Duration
	WorkerQueueCapacity uint32
	AckFlushInterval   time.Duration
}

// TemplateConfig configures a SendTemplate instance.
type TemplateConfig struct {
	DefaultQueue         string
	BatchFailureStrategy SendBatchFailureStrategy
	MaxRetries           int

	// MaxSendsPerSecond caps the outbound rate of Send/SendBatch calls
	// client-side, ahead of whatever throttling the queue service itself
	// applies. Zero (the default) leaves sends unthrottled.
	MaxSendsPerSecond float64
}

// AppConfig holds process-wide settings: logging and AWS connection
// parameters shared by every container and the send template.
type AppConfig struct {
	LogLevel  string
	LogFormat string

	EndpointURL     string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string

	DefaultVisibilityTimeout int
	DefaultWaitTime          int
	DefaultMaxConcurrent     int
}

// Config is the top-level configuration: process-wide App settings plus
// defaults for container and template tuning. Individual ListenerConfig
// values are supplied at registration time, not here.
type Config struct {
	App       AppConfig
	Container ContainerConfig
	Template  TemplateConfig
}

// DefaultListenerConfig returns the spec-mandated defaults for a new listener.
func DefaultListenerConfig(queue string) ListenerConfig {
	return ListenerConfig{
		Queue:                 queue,
		MaxConcurrentMessages: 10,
		PollMaxMessages:       10,
		PollWaitTimeSeconds:   20,
		VisibilityExtension: VisibilityExtensionConfig{
			Enabled: false,
		},
		Acknowledgement: AcknowledgementConfig{
			Mode:          AutoOnSuccess,
			Ordering:      Unordered,
			BatchSize:     10,
			BatchWindowMs: 200,
			OnError:       Redrive,
		},
		BackpressureMode:      AutoBackpressure,
		FifoGroupStrategy:     StrictSequential,
		QueueNotFoundStrategy: FailFast,
	}
}

// Default returns the full default Config used when Load finds no overrides.
func Default() *Config {
	return &Config{
		App: AppConfig{
			LogLevel:                 "info",
			LogFormat:                "text",
			Region:                   "us-east-1",
			DefaultVisibilityTimeout: 30,
			DefaultWaitTime:          20,
			DefaultMaxConcurrent:     10,
		},
		Container: ContainerConfig{
			ShutdownTimeout:     30 * time.Second,
			IdlePollSleep:       50 * time.Millisecond,
			WorkerQueueCapacity: 1024,
			AckFlushInterval:    200 * time.Millisecond,
		},
		Template: TemplateConfig{
			BatchFailureStrategy: PartialSuccess,
			MaxRetries:           3,
		},
	}
}
