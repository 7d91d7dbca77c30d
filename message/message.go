// Package message defines the immutable Message value and the
// MessageConverter contract used to move payloads across the string body
// boundary of the queue service.
package message

// Message is an immutable value carrying a typed payload and the queue
// service metadata needed to acknowledge or extend it. Once constructed by
// a container it is never mutated; Ack/Nack route through the
// ports.Acknowledgement capability passed to the handler alongside the
// message, not through fields on Message itself.
type Message[T any] struct {
	body              T
	messageID         string
	receiptHandle     string
	queue             string
	attributes        map[string]string
	messageAttributes map[string]string
	messageGroupID    *string
	sequenceNumber    *string
}

// Option customizes a Message at construction time.
type Option[T any] func(*Message[T])

// New constructs a Message. Containers use this on receive; tests use it
// via testkit.CreateTestMessage.
func New[T any](body T, messageID, receiptHandle, queue string, opts ...Option[T]) *Message[T] {
	m := &Message[T]{
		body:          body,
		messageID:     messageID,
		receiptHandle: receiptHandle,
		queue:         queue,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.attributes == nil {
		m.attributes = map[string]string{}
	}
	if m.messageAttributes == nil {
		m.messageAttributes = map[string]string{}
	}
	return m
}

// WithAttributes sets the service-set attributes (e.g. ApproximateReceiveCount).
func WithAttributes[T any](attrs map[string]string) Option[T] {
	return func(m *Message[T]) { m.attributes = attrs }
}

// WithMessageAttributes sets the user-set message attributes.
func WithMessageAttributes[T any](attrs map[string]string) Option[T] {
	return func(m *Message[T]) { m.messageAttributes = attrs }
}

// WithGroup sets the FIFO message group id.
func WithGroup[T any](groupID string) Option[T] {
	return func(m *Message[T]) { m.messageGroupID = &groupID }
}

// WithSequenceNumber sets the FIFO sequence number.
func WithSequenceNumber[T any](seq string) Option[T] {
	return func(m *Message[T]) { m.sequenceNumber = &seq }
}

// Body returns the typed payload.
func (m *Message[T]) Body() T { return m.body }

// MessageID returns the queue-service assigned message id.
func (m *Message[T]) MessageID() string { return m.messageID }

// ReceiptHandle returns the opaque token authorizing delete/visibility-change.
func (m *Message[T]) ReceiptHandle() string { return m.receiptHandle }

// Queue returns the queue name or URL this message was received from.
func (m *Message[T]) Queue() string { return m.queue }

// Attributes returns the service-set attributes.
func (m *Message[T]) Attributes() map[string]string { return m.attributes }

// MessageAttributes returns the user-set message attributes.
func (m *Message[T]) MessageAttributes() map[string]string { return m.messageAttributes }

// MessageGroupID returns the FIFO group id, or nil for non-FIFO messages.
func (m *Message[T]) MessageGroupID() *string { return m.messageGroupID }

// SequenceNumber returns the FIFO sequence number, or nil for non-FIFO messages.
func (m *Message[T]) SequenceNumber() *string { return m.sequenceNumber }

// IsFIFO reports whether this message carries FIFO group metadata.
func (m *Message[T]) IsFIFO() bool { return m.messageGroupID != nil }
