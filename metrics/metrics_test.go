package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqskit/sqskit-go/ports"
)

func TestNoOpCollector_DiscardsEvents(t *testing.T) {
	var c NoOpCollector
	assert.NotPanics(t, func() { c.OnEvent(ports.Event{Kind: ports.EventMessageReceived}) })
}

func TestCallbackCollector_InvokesWrappedFunctionWithConvertedFields(t *testing.T) {
	var got LifecycleEvent
	c := NewCallbackCollector(func(ev LifecycleEvent) { got = ev })

	c.OnEvent(ports.Event{Kind: ports.EventMessageProcessed, Queue: "orders", MessageID: "m1", Count: 3})

	assert.Equal(t, ports.EventMessageProcessed, got.Kind)
	assert.Equal(t, "orders", got.Queue)
	assert.Equal(t, "m1", got.MessageID)
	assert.Equal(t, 3, got.Count)
	assert.False(t, got.At.IsZero())
}

func TestCompositeCollector_FansOutToEveryCollector(t *testing.T) {
	a := NewInMemoryCollector(0)
	b := NewInMemoryCollector(0)
	composite := NewCompositeCollector(a, b)

	composite.OnEvent(ports.Event{Kind: ports.EventMessageReceived})

	assert.Equal(t, uint64(1), a.Counts().MessagesReceived)
	assert.Equal(t, uint64(1), b.Counts().MessagesReceived)
}

func TestInMemoryCollector_CountsPerEventKind(t *testing.T) {
	c := NewInMemoryCollector(0)

	c.OnEvent(ports.Event{Kind: ports.EventMessageReceived})
	c.OnEvent(ports.Event{Kind: ports.EventMessageProcessed})
	c.OnEvent(ports.Event{Kind: ports.EventMessageFailed})
	c.OnEvent(ports.Event{Kind: ports.EventAckFlushed, Count: 5})
	c.OnEvent(ports.Event{Kind: ports.EventAckFailed})
	c.OnEvent(ports.Event{Kind: ports.EventContainerStarted})
	c.OnEvent(ports.Event{Kind: ports.EventContainerStopped})
	c.OnEvent(ports.Event{Kind: ports.EventBackpressureWaited})
	c.OnEvent(ports.Event{Kind: ports.EventVisibilityExtended, Count: 2})

	counts := c.Counts()
	assert.Equal(t, uint64(1), counts.MessagesReceived)
	assert.Equal(t, uint64(1), counts.MessagesProcessed)
	assert.Equal(t, uint64(1), counts.MessagesFailed)
	assert.Equal(t, uint64(5), counts.AckFlushed)
	assert.Equal(t, uint64(1), counts.AckFailed)
	assert.Equal(t, uint64(1), counts.ContainersStarted)
	assert.Equal(t, uint64(1), counts.ContainersStopped)
	assert.Equal(t, uint64(1), counts.BackpressureWaited)
	assert.Equal(t, uint64(2), counts.VisibilityExtended)
}

func TestInMemoryCollector_ZeroRingSizeKeepsNoEvents(t *testing.T) {
	c := NewInMemoryCollector(0)
	c.OnEvent(ports.Event{Kind: ports.EventMessageReceived})
	assert.Empty(t, c.RecentEvents())
}

func TestInMemoryCollector_RingRetainsUpToCapacity(t *testing.T) {
	c := NewInMemoryCollector(2)
	c.OnEvent(ports.Event{Kind: ports.EventMessageReceived, MessageID: "m1"})
	c.OnEvent(ports.Event{Kind: ports.EventMessageReceived, MessageID: "m2"})

	events := c.RecentEvents()
	require.Len(t, events, 2)
	assert.Equal(t, "m1", events[0].MessageID)
	assert.Equal(t, "m2", events[1].MessageID)
}

func TestInMemoryCollector_RingWrapsWithoutGrowingPastCapacity(t *testing.T) {
	c := NewInMemoryCollector(2)
	c.OnEvent(ports.Event{Kind: ports.EventMessageReceived, MessageID: "m1"})
	c.OnEvent(ports.Event{Kind: ports.EventMessageReceived, MessageID: "m2"})
	c.OnEvent(ports.Event{Kind: ports.EventMessageReceived, MessageID: "m3"})

	events := c.RecentEvents()
	require.Len(t, events, 2)
	ids := []string{events[0].MessageID, events[1].MessageID}
	assert.ElementsMatch(t, []string{"m2", "m3"}, ids)
}
