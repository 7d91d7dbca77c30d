package message

import (
	"github.com/sqskit/sqskit-go/errors"
	"github.com/sqskit/sqskit-go/internal/jsonx"
)

// Converter serializes and deserializes payloads to/from the queue
// service's string body. This is the Go expression of the
// MessageConverter contract in spec.md §6.
type Converter[T any] interface {
	// Serialize renders a payload as the wire body sent to the queue service.
	Serialize(payload T) (string, error)
	// Deserialize parses a raw body into T.
	Deserialize(raw string) (T, error)
}

// JSONConverter implements Converter using JSON encoding, grounded on the
// teacher's pkg/jsonx wrapper (adapted here to internal/jsonx).
type JSONConverter[T any] struct{}

// NewJSONConverter constructs a JSONConverter for payload type T.
func NewJSONConverter[T any]() *JSONConverter[T] {
	return &JSONConverter[T]{}
}

// Serialize encodes payload as JSON.
func (c *JSONConverter[T]) Serialize(payload T) (string, error) {
	b, err := jsonx.Marshal(payload)
	if err != nil {
		return "", errors.Serialization(err)
	}
	return string(b), nil
}

// Deserialize decodes raw JSON into T.
func (c *JSONConverter[T]) Deserialize(raw string) (T, error) {
	var out T
	if err := jsonx.Unmarshal([]byte(raw), &out); err != nil {
		return out, errors.Deserialization(err)
	}
	return out, nil
}
