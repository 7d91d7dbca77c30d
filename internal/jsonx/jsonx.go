// Package jsonx centralizes JSON usage so call sites don't depend on
// encoding/json directly. The teacher's own jsonx wrapper deliberately
// stays on the standard library "to avoid platform/toolchain issues";
// message conversion here has the same low-cardinality, non-hot-path
// shape (one message body at a time, not a streaming pipeline), so the
// same tradeoff applies and no third-party encoder is substituted.
package jsonx

import stdjson "encoding/json"

// Marshal encodes v into JSON using the standard library.
func Marshal(v any) ([]byte, error) {
	return stdjson.Marshal(v)
}

// Unmarshal decodes JSON data into v using the standard library.
func Unmarshal(data []byte, v any) error {
	return stdjson.Unmarshal(data, v)
}
