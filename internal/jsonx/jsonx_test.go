package jsonx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

func TestMarshal_EncodesStruct(t *testing.T) {
	data, err := Marshal(payload{ID: 1, Name: "a"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":1,"name":"a"}`, string(data))
}

func TestUnmarshal_DecodesIntoStruct(t *testing.T) {
	var p payload
	require.NoError(t, Unmarshal([]byte(`{"id":2,"name":"b"}`), &p))
	assert.Equal(t, payload{ID: 2, Name: "b"}, p)
}

func TestUnmarshal_InvalidJSONFails(t *testing.T) {
	var p payload
	assert.Error(t, Unmarshal([]byte("not json"), &p))
}
