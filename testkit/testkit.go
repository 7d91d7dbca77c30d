// Package testkit provides the test doubles and helpers a consumer of
// this library uses to exercise listeners and senders without a live
// queue service: a record-everything MockClient standing in for
// ports.QueueClient, a helper to invoke a listener handler directly with
// a hand-built message, a scoped guard to suppress registry.Register
// during unrelated test setup, and a condition-polling helper for
// asynchronous assertions. Grounded on original_source's
// awskit.sqs.testing module (MockSqsTemplate, trigger_listener,
// create_test_message, disable_listener_registration, wait_for_processing).
package testkit

import (
	"context"
	"strings"
	"sync"
	"time"

	sqerrors "github.com/sqskit/sqskit-go/errors"
	"github.com/sqskit/sqskit-go/message"
	"github.com/sqskit/sqskit-go/ports"
	"github.com/sqskit/sqskit-go/registry"
)

// SentMessage is one message recorded by MockClient.Send/SendBatch, for
// assertions like "was this payload sent to this queue with this group id".
type SentMessage struct {
	Queue                  string
	Body                   string
	MessageAttributes      map[string]string
	MessageGroupID         string
	MessageDeduplicationID string
	DelaySeconds           int
	IsFIFO                 bool
}

// MockClient is an in-memory ports.QueueClient: Send/SendBatch append to
// an internal log instead of calling a real service, and Receive replays
// previously sent messages back out per queue, FIFO order, one-shot (a
// message is removed from the queue's backlog once received), mirroring
// the Python MockSqsTemplate's send-then-receive round trip.
type MockClient struct {
	mu        sync.Mutex
	sent      []SentMessage
	backlog   map[string][]ports.RawMessage
	nextID    int
	failSend  error
	failRecv  error
}

var _ ports.QueueClient = (*MockClient)(nil)

// NewMockClient constructs an empty MockClient.
func NewMockClient() *MockClient {
	return &MockClient{backlog: make(map[string][]ports.RawMessage)}
}

// FailNextSend makes the next Send call return err instead of recording
// anything, for exercising a caller's error handling. Through SendBatch it
// fails only the batch's first entry (reported in Failed); the SendBatch
// call itself returns no error and the remaining entries are recorded.
func (c *MockClient) FailNextSend(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failSend = err
}

// FailNextReceive makes the next Receive call return err.
func (c *MockClient) FailNextReceive(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failRecv = err
}

func isFIFOQueue(queue string) bool { return strings.HasSuffix(queue, ".fifo") }

func (c *MockClient) nextMessageID() string {
	c.nextID++
	return "mock-message-" + itoa(c.nextID)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := make([]byte, 0, 8)
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

// Send records one message and enqueues it onto the queue's backlog so a
// subsequent Receive can return it.
func (c *MockClient) Send(ctx context.Context, queue string, body string, attrs map[string]string, groupID, dedupID string, delay time.Duration) (ports.SendResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if isFIFOQueue(queue) && groupID == "" {
		return ports.SendResult{}, sqerrors.Configuration("testkit: message_group_id is required for FIFO queue %q", queue)
	}
	if c.failSend != nil {
		err := c.failSend
		c.failSend = nil
		return ports.SendResult{}, err
	}

	id := c.nextMessageID()
	seq := ""
	if isFIFOQueue(queue) {
		seq = itoa(c.nextID)
	}

	c.sent = append(c.sent, SentMessage{
		Queue:                  queue,
		Body:                   body,
		MessageAttributes:      attrs,
		MessageGroupID:         groupID,
		MessageDeduplicationID: dedupID,
		DelaySeconds:           int(delay / time.Second),
		IsFIFO:                 isFIFOQueue(queue),
	})
	c.backlog[queue] = append(c.backlog[queue], ports.RawMessage{
		MessageID:         id,
		ReceiptHandle:     "mock-receipt-" + id,
		Queue:             queue,
		Body:              body,
		MessageAttributes: attrs,
		MessageGroupID:    groupID,
		SequenceNumber:    seq,
	})

	return ports.SendResult{MessageID: id, SequenceNumber: seq}, nil
}

// SendBatch sends each entry via Send, mirroring the real client's
// per-entry success/failure reporting (every entry succeeds unless a
// FIFO entry is missing its group id).
func (c *MockClient) SendBatch(ctx context.Context, queue string, entries []ports.SendEntry) (ports.BatchSendResult, error) {
	var result ports.BatchSendResult
	for _, e := range entries {
		res, err := c.Send(ctx, queue, e.Body, e.MessageAttributes, e.MessageGroupID, e.MessageDeduplicationID, time.Duration(e.DelaySeconds)*time.Second)
		if err != nil {
			result.Failed = append(result.Failed, ports.SendFailure{Index: e.Index, Code: "MockSendError", Message: err.Error(), SenderFault: true})
			continue
		}
		result.Successful = append(result.Successful, res)
	}
	return result, nil
}

// Receive returns up to maxMessages previously sent messages for queue,
// removing them from the backlog (so a message is received at most once,
// matching SQS's at-least-once-but-usually-once behavior for a single
// consumer under test).
func (c *MockClient) Receive(ctx context.Context, queue string, maxMessages int, waitTime, visibilityTimeout time.Duration) ([]ports.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.failRecv != nil {
		err := c.failRecv
		c.failRecv = nil
		return nil, err
	}

	backlog := c.backlog[queue]
	if len(backlog) == 0 {
		return nil, nil
	}
	n := maxMessages
	if n > len(backlog) {
		n = len(backlog)
	}
	out := make([]ports.RawMessage, n)
	copy(out, backlog[:n])
	c.backlog[queue] = backlog[n:]
	return out, nil
}

// DeleteBatch always reports success; the mock has no inflight/visibility
// state to violate.
func (c *MockClient) DeleteBatch(ctx context.Context, queue string, receiptHandles []string) ([]ports.EntryResult, error) {
	out := make([]ports.EntryResult, len(receiptHandles))
	for i, rh := range receiptHandles {
		out[i] = ports.EntryResult{ID: rh, Success: true}
	}
	return out, nil
}

// ChangeVisibilityBatch always reports success.
func (c *MockClient) ChangeVisibilityBatch(ctx context.Context, queue string, entries []ports.VisibilityEntry) ([]ports.EntryResult, error) {
	out := make([]ports.EntryResult, len(entries))
	for i, e := range entries {
		out[i] = ports.EntryResult{ID: e.ReceiptHandle, Success: true}
	}
	return out, nil
}

// GetQueueURL returns a synthetic URL derived from name; the mock never
// fails queue resolution.
func (c *MockClient) GetQueueURL(ctx context.Context, name string) (string, error) {
	return "mock://" + name, nil
}

// CreateQueue returns a synthetic URL; the mock records no queue
// attributes since nothing reads them back.
func (c *MockClient) CreateQueue(ctx context.Context, name string, attrs map[string]string) (string, error) {
	return "mock://" + name, nil
}

// SentMessages returns every message recorded by Send/SendBatch, across
// all queues, in send order.
func (c *MockClient) SentMessages() []SentMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]SentMessage, len(c.sent))
	copy(out, c.sent)
	return out
}

// MessagesForQueue returns the subset of SentMessages sent to queue.
func (c *MockClient) MessagesForQueue(queue string) []SentMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []SentMessage
	for _, m := range c.sent {
		if m.Queue == queue {
			out = append(out, m)
		}
	}
	return out
}

// MessageCount returns the number of messages sent to queue, or across
// every queue if queue is empty.
func (c *MockClient) MessageCount(queue string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if queue == "" {
		return len(c.sent)
	}
	n := 0
	for _, m := range c.sent {
		if m.Queue == queue {
			n++
		}
	}
	return n
}

// Clear discards every recorded message and backlog entry.
func (c *MockClient) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = nil
	c.backlog = make(map[string][]ports.RawMessage)
	c.nextID = 0
}

// CreateTestMessage builds a *message.Message[T] with placeholder
// message-id/receipt-handle, for handing straight to a listener handler
// under test without going through a real receive.
func CreateTestMessage[T any](body T, opts ...message.Option[T]) *message.Message[T] {
	return message.New(body, "test-message-id", "test-receipt-handle", "test-queue", opts...)
}

// RecordingAck is a ports.Acknowledgement that records every Ack/Nack
// call instead of touching a queue, for asserting a MANUAL-mode handler
// acknowledged (or didn't) as expected.
type RecordingAck struct {
	mu      sync.Mutex
	acked   bool
	nacked  bool
}

var _ ports.Acknowledgement = (*RecordingAck)(nil)

func (a *RecordingAck) Ack() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acked = true
	return nil
}

func (a *RecordingAck) Nack() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nacked = true
	return nil
}

// Acked reports whether Ack was called.
func (a *RecordingAck) Acked() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.acked
}

// Nacked reports whether Nack was called.
func (a *RecordingAck) Nacked() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.nacked
}

// TriggerListener invokes handler directly with a test message built from
// payload (via CreateTestMessage) and a fresh *RecordingAck, returning the
// handler's error and the ack double for inspection. This is the Go
// analogue of trigger_listener: there is no decorator-wrapped function to
// unwrap, so callers pass the same registry.Handler[T] they registered.
func TriggerListener[T any](ctx context.Context, handler registry.Handler[T], payload T, opts ...message.Option[T]) (*RecordingAck, error) {
	msg := CreateTestMessage(payload, opts...)
	ack := &RecordingAck{}
	err := handler(ctx, msg, ack)
	return ack, err
}

// WaitForProcessing polls condition every pollInterval until it returns
// true or timeout elapses, returning whether it succeeded. Intended for
// asserting that an asynchronous container has processed a message
// without a fixed sleep.
func WaitForProcessing(condition func() bool, timeout, pollInterval time.Duration) bool {
	if condition() {
		return true
	}
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for time.Now().Before(deadline) {
		<-ticker.C
		if condition() {
			return true
		}
	}
	return false
}

// DisableListenerRegistration returns a scoped guard over the
// process-wide default registry: while held, registry.Register calls on
// it are silently skipped, and calling the returned restore func puts
// registration back the way it was. Mirrors the Python
// disable_listener_registration context manager.
func DisableListenerRegistration() (restore func()) {
	return registry.Default().DisableRegistration()
}
