package message

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type order struct {
	ID int `json:"id"`
}

func TestNew_FillsDefaultsForAttributeMaps(t *testing.T) {
	m := New(order{ID: 1}, "m1", "rh1", "orders")
	assert.Equal(t, order{ID: 1}, m.Body())
	assert.Equal(t, "m1", m.MessageID())
	assert.Equal(t, "rh1", m.ReceiptHandle())
	assert.Equal(t, "orders", m.Queue())
	assert.NotNil(t, m.Attributes())
	assert.NotNil(t, m.MessageAttributes())
	assert.False(t, m.IsFIFO())
	assert.Nil(t, m.MessageGroupID())
	assert.Nil(t, m.SequenceNumber())
}

func TestNew_AppliesOptions(t *testing.T) {
	m := New(order{ID: 2}, "m2", "rh2", "orders.fifo",
		WithAttributes[order](map[string]string{"ApproximateReceiveCount": "1"}),
		WithMessageAttributes[order](map[string]string{"priority": "high"}),
		WithGroup[order]("group-a"),
		WithSequenceNumber[order]("100"),
	)

	assert.Equal(t, "1", m.Attributes()["ApproximateReceiveCount"])
	assert.Equal(t, "high", m.MessageAttributes()["priority"])
	require.NotNil(t, m.MessageGroupID())
	assert.Equal(t, "group-a", *m.MessageGroupID())
	require.NotNil(t, m.SequenceNumber())
	assert.Equal(t, "100", *m.SequenceNumber())
	assert.True(t, m.IsFIFO())
}

func TestJSONConverter_RoundTrips(t *testing.T) {
	c := NewJSONConverter[order]()

	body, err := c.Serialize(order{ID: 42})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":42}`, body)

	decoded, err := c.Deserialize(body)
	require.NoError(t, err)
	assert.Equal(t, order{ID: 42}, decoded)
}

func TestJSONConverter_DeserializeInvalidJSONFails(t *testing.T) {
	c := NewJSONConverter[order]()
	_, err := c.Deserialize("not json")
	require.Error(t, err)
}
