// Package registry implements ListenerRegistry: a process-wide mapping of
// handler key to (queue config, declared payload type, type-erased
// invocation adapter). Per spec.md §9's design note, Go has no runtime
// decorators, so Register[T] is a generic function that closes over a
// typed handler and stores an adapter closure plus the declared payload
// type (via reflection on T) in the registry entry — the Container holds
// the adapter, never the raw handler.
package registry

import (
	"context"
	"reflect"
	"sync"

	"github.com/sqskit/sqskit-go/config"
	"github.com/sqskit/sqskit-go/errors"
	"github.com/sqskit/sqskit-go/message"
	"github.com/sqskit/sqskit-go/ports"
)

// Handler is a registered listener function. ack is required under
// AcknowledgementConfig.Mode == MANUAL and is the only way to delete a
// message under NEVER. Under AUTO_ON_SUCCESS and ALWAYS the container
// resolves the message from the handler's return value, unless the handler
// already called Ack/Nack: that first resolution stands, and the
// container's later one is rejected as a duplicate (see
// ports.Acknowledgement).
type Handler[T any] func(ctx context.Context, msg *message.Message[T], ack ports.Acknowledgement) error

func newMessageFromRaw[T any](payload T, raw ports.RawMessage) *message.Message[T] {
	opts := []message.Option[T]{
		message.WithAttributes[T](raw.Attributes),
		message.WithMessageAttributes[T](raw.MessageAttributes),
	}
	if raw.MessageGroupID != "" {
		opts = append(opts, message.WithGroup[T](raw.MessageGroupID))
	}
	if raw.SequenceNumber != "" {
		opts = append(opts, message.WithSequenceNumber[T](raw.SequenceNumber))
	}
	return message.New(payload, raw.MessageID, raw.ReceiptHandle, raw.Queue, opts...)
}

// Adapter is the type-erased invocation entry point a Container calls for
// every received message: deserialize, construct the typed Message, and
// invoke the user handler.
type Adapter func(ctx context.Context, raw ports.RawMessage, ack ports.Acknowledgement) error

// Entry is one registered listener.
type Entry struct {
	Key         string
	Config      config.ListenerConfig
	PayloadType reflect.Type
	Invoke      Adapter
}

// Registry is a process-wide (or, in tests, private) mapping of handler
// key to Entry.
type Registry struct {
	mu       sync.Mutex
	byKey    map[string]*Entry
	order    []string
	disabled bool
}

// New creates a private Registry, used by tests that don't want to share
// process-wide state.
func New() *Registry {
	return &Registry{byKey: make(map[string]*Entry)}
}

var defaultRegistry = New()

// Default returns the process-wide registry, the one
// testkit.DisableListenerRegistration guards.
func Default() *Registry { return defaultRegistry }

// Register records handler under key, wrapping it in a type-erased
// Adapter. converter deserializes the raw body into T; handler receives
// the constructed Message and an Acknowledgement capability (meaningful
// under AcknowledgementConfig.Mode == MANUAL; ignorable otherwise).
//
// If registration is currently disabled on r (see DisableRegistration),
// Register validates cfg and then returns without recording anything
// (an invalid cfg is still reported), matching the Python context-manager
// semantics where pre-existing registrations survive the guard.
func Register[T any](r *Registry, key string, cfg config.ListenerConfig, converter message.Converter[T], handler Handler[T]) error {
	if err := config.ValidateListenerConfig(&cfg); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.disabled {
		return nil
	}
	if key == "" {
		return errors.Configuration("registry: handler key must not be empty")
	}

	adapter := func(ctx context.Context, raw ports.RawMessage, ack ports.Acknowledgement) error {
		payload, err := converter.Deserialize(raw.Body)
		if err != nil {
			return errors.Deserialization(err)
		}
		msg := newMessageFromRaw(payload, raw)
		return handler(ctx, msg, ack)
	}

	if _, exists := r.byKey[key]; !exists {
		r.order = append(r.order, key)
	}
	r.byKey[key] = &Entry{
		Key:         key,
		Config:      cfg,
		PayloadType: reflect.TypeOf((*T)(nil)).Elem(),
		Invoke:      adapter,
	}
	return nil
}

// Clear empties the registry.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byKey = make(map[string]*Entry)
	r.order = nil
}

// GetListeners returns the registered entries in registration order.
func (r *Registry) GetListeners() []*Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Entry, 0, len(r.order))
	for _, key := range r.order {
		if e, ok := r.byKey[key]; ok {
			out = append(out, e)
		}
	}
	return out
}

// Get returns the entry for key, if any.
func (r *Registry) Get(key string) (*Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.byKey[key]
	return e, ok
}

// DisableRegistration returns a scoped guard: while held, Register calls
// on r are silently skipped. Release restores the prior state, so nested
// guards compose correctly. This is a scoped value, not ambient/global
// state, per spec.md §9's "thread-local is registration enabled" note.
func (r *Registry) DisableRegistration() (release func()) {
	r.mu.Lock()
	prev := r.disabled
	r.disabled = true
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		r.disabled = prev
		r.mu.Unlock()
	}
}
