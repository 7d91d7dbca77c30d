// Package ports defines the narrow interfaces the core library depends on
// for its external collaborators: the queue-service SDK client, logging,
// and monitoring. Kept separate from message/config so none of the core
// packages need to import a concrete queue-service SDK.
package ports

import (
	"context"
	"time"
)

// RawMessage is a single message as returned by the queue service, before
// MessageConverter has deserialized its Body into a typed payload.
type RawMessage struct {
	MessageID         string
	ReceiptHandle     string
	Queue             string
	Body              string
	Attributes        map[string]string
	MessageAttributes map[string]string
	MessageGroupID    string
	SequenceNumber    string
	ReceivedAt        time.Time
}

// IsFIFO reports whether the raw message carries a FIFO group id.
func (m RawMessage) IsFIFO() bool { return m.MessageGroupID != "" }

// EntryResult is the per-entry outcome of a delete_batch or
// change_visibility_batch call.
type EntryResult struct {
	ID      string // caller-supplied correlation id (index or receipt handle)
	Success bool
	Code    string
	Message string
}

// SendResult is the outcome of a single send.
type SendResult struct {
	MessageID      string
	SequenceNumber string // empty for non-FIFO
}

// SendFailure describes one failed entry of a send_batch call.
type SendFailure struct {
	Index       int
	Code        string
	Message     string
	SenderFault bool
}

// BatchSendResult is the outcome of a send_batch call.
type BatchSendResult struct {
	Successful []SendResult
	Failed     []SendFailure
}

// SendEntry is one outbound message in a send_batch call.
type SendEntry struct {
	Index                  int
	Body                   string
	MessageAttributes      map[string]string
	MessageGroupID         string
	MessageDeduplicationID string
	DelaySeconds           int
}

// VisibilityEntry requests a visibility-timeout change for one in-flight message.
type VisibilityEntry struct {
	ReceiptHandle string
	Seconds       int
}

// QueueClient is the narrow interface the library depends on for the
// queue-service SDK (receive/delete/send/change-visibility RPCs). It is an
// external collaborator per spec.md §1: the library never speaks the wire
// protocol directly, only through this interface. awssqs.Client is the
// concrete AWS SQS implementation shipped alongside it.
type QueueClient interface {
	// Receive issues one long-poll receive. visibilityTimeout of 0 means
	// "use the queue's default".
	Receive(ctx context.Context, queue string, maxMessages int, waitTime time.Duration, visibilityTimeout time.Duration) ([]RawMessage, error)
	// DeleteBatch deletes up to 10 receipt handles in one call.
	DeleteBatch(ctx context.Context, queue string, receiptHandles []string) ([]EntryResult, error)
	// ChangeVisibilityBatch extends or clears visibility for up to 10 handles.
	ChangeVisibilityBatch(ctx context.Context, queue string, entries []VisibilityEntry) ([]EntryResult, error)
	// Send sends a single message.
	Send(ctx context.Context, queue string, body string, attrs map[string]string, groupID, dedupID string, delay time.Duration) (SendResult, error)
	// SendBatch sends up to 10 messages in one call.
	SendBatch(ctx context.Context, queue string, entries []SendEntry) (BatchSendResult, error)
	// GetQueueURL resolves a queue name to its service URL.
	GetQueueURL(ctx context.Context, name string) (string, error)
	// CreateQueue creates a queue with the given attributes, returning its URL.
	CreateQueue(ctx context.Context, name string, attrs map[string]string) (string, error)
}

// Field is a single structured logging field.
type Field struct {
	Key   string
	Value interface{}
}

// Logger is the structured logging contract used throughout the library.
type Logger interface {
	Trace(msg string, fields ...Field)
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	WithFields(fields ...Field) Logger
}

// EventKind enumerates the MonitoringCallback events of spec.md §6.
type EventKind string

// Event kinds fired by containers, the ack processor and the backpressure manager.
const (
	EventMessageReceived     EventKind = "message_received"
	EventMessageProcessed    EventKind = "message_processed"
	EventMessageFailed       EventKind = "message_failed"
	EventAckFlushed          EventKind = "ack_flushed"
	EventAckFailed           EventKind = "ack_failed"
	EventContainerStarted    EventKind = "container_started"
	EventContainerStopped    EventKind = "container_stopped"
	EventBackpressureWaited  EventKind = "backpressure_waited"
	EventVisibilityExtended  EventKind = "visibility_extended"
)

// Event is a single fire-and-forget monitoring event.
type Event struct {
	Kind       EventKind
	Queue      string
	MessageID  string
	DurationMs float64
	Count      int
	ErrorKind  string
}

// MonitoringCallback receives fire-and-forget lifecycle/metric events.
// Implementations must not block meaningfully; callers invoke it outside
// any internal lock (spec.md §5).
type MonitoringCallback interface {
	OnEvent(Event)
}

// CircuitBreakerStats reports circuit breaker counters.
type CircuitBreakerStats struct {
	Requests            uint64
	TotalSuccess        uint64
	TotalFailure        uint64
	ConsecutiveFailures uint64
	State               string
}

// CircuitBreaker guards a protected call with the circuit breaker pattern.
type CircuitBreaker interface {
	Execute(fn func() error) error
	GetState() string
	GetStats() CircuitBreakerStats
}

// Acknowledgement is the explicit ack/nack capability handed to a handler
// registered under AcknowledgementConfig.Mode == MANUAL. A handler must
// call exactly one of Ack/Nack before returning under that mode; a second
// call is a listener_error per spec.md §9's open-question resolution.
// Returning without error after an explicit call adds no implicit ack.
type Acknowledgement interface {
	// Ack enqueues the message for deletion.
	Ack() error
	// Nack leaves the message for redelivery (no-op on the queue service
	// side; visibility simply expires).
	Nack() error
}
