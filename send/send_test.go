package send

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqskit/sqskit-go/config"
	"github.com/sqskit/sqskit-go/errors"
	"github.com/sqskit/sqskit-go/message"
	"github.com/sqskit/sqskit-go/ports"
)

type order struct {
	ID int `json:"id"`
}

// fakeClient is a minimal in-memory ports.QueueClient stand-in for
// exercising Template without a real queue service.
type fakeClient struct {
	sendCalls    int
	sendErr      error
	sendResult   ports.SendResult
	batchResult  ports.BatchSendResult
	batchErr     error
	batchCalls   [][]ports.SendEntry
	batchResults []ports.BatchSendResult // consumed in order, one per SendBatch call
	receiveRaws  []ports.RawMessage
	receiveErr   error
}

func (f *fakeClient) Receive(ctx context.Context, queue string, maxMessages int, waitTime, visibilityTimeout time.Duration) ([]ports.RawMessage, error) {
	return f.receiveRaws, f.receiveErr
}
func (f *fakeClient) DeleteBatch(ctx context.Context, queue string, receiptHandles []string) ([]ports.EntryResult, error) {
	return nil, nil
}
func (f *fakeClient) ChangeVisibilityBatch(ctx context.Context, queue string, entries []ports.VisibilityEntry) ([]ports.EntryResult, error) {
	return nil, nil
}
func (f *fakeClient) Send(ctx context.Context, queue string, body string, attrs map[string]string, groupID, dedupID string, delay time.Duration) (ports.SendResult, error) {
	f.sendCalls++
	return f.sendResult, f.sendErr
}
func (f *fakeClient) SendBatch(ctx context.Context, queue string, entries []ports.SendEntry) (ports.BatchSendResult, error) {
	f.batchCalls = append(f.batchCalls, entries)
	if f.batchErr != nil {
		return ports.BatchSendResult{}, f.batchErr
	}
	if len(f.batchResults) > 0 {
		r := f.batchResults[0]
		f.batchResults = f.batchResults[1:]
		return r, nil
	}
	return f.batchResult, nil
}
func (f *fakeClient) GetQueueURL(ctx context.Context, name string) (string, error) { return name, nil }
func (f *fakeClient) CreateQueue(ctx context.Context, name string, attrs map[string]string) (string, error) {
	return name, nil
}

func newTemplate(c *fakeClient, strategy config.SendBatchFailureStrategy) *Template {
	return New(c, config.TemplateConfig{BatchFailureStrategy: strategy, MaxRetries: 3}, nil, nil)
}

func TestSend_FIFOQueueMissingGroupIDFailsWithoutContactingService(t *testing.T) {
	c := &fakeClient{}
	tpl := newTemplate(c, config.PartialSuccess)

	_, err := Send(context.Background(), tpl, "orders.fifo", order{ID: 1}, message.NewJSONConverter[order]())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.KindConfiguration))
	assert.Equal(t, 0, c.sendCalls, "fail-fast must not contact the queue service")
}

func TestSend_FIFOQueueWithGroupIDSucceeds(t *testing.T) {
	c := &fakeClient{sendResult: ports.SendResult{MessageID: "m1", SequenceNumber: "1"}}
	tpl := newTemplate(c, config.PartialSuccess)

	res, err := Send(context.Background(), tpl, "orders.fifo", order{ID: 1}, message.NewJSONConverter[order](), WithGroupID("A"))
	require.NoError(t, err)
	assert.Equal(t, "m1", res.MessageID)
}

func TestSendBatch_SizeOutsideRangeFailsFast(t *testing.T) {
	c := &fakeClient{}
	tpl := newTemplate(c, config.PartialSuccess)

	_, err := SendBatch(context.Background(), tpl, "orders", Items[order](nil), message.NewJSONConverter[order]())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.KindConfiguration))

	eleven := make([]order, 11)
	_, err = SendBatch(context.Background(), tpl, "orders", Items(eleven), message.NewJSONConverter[order]())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.KindConfiguration))
	assert.Equal(t, 0, len(c.batchCalls))
}

func TestSendBatch_PartialSuccessReturnsServiceResultVerbatim(t *testing.T) {
	c := &fakeClient{
		batchResult: ports.BatchSendResult{
			Successful: []ports.SendResult{{MessageID: "1"}, {MessageID: "2"}},
			Failed:     []ports.SendFailure{{Index: 2, Code: "Throttling", Message: "slow down"}},
		},
	}
	tpl := newTemplate(c, config.PartialSuccess)

	result, err := SendBatch(context.Background(), tpl, "orders", Items([]order{{ID: 1}, {ID: 2}, {ID: 3}}), message.NewJSONConverter[order]())
	require.NoError(t, err)
	assert.Len(t, result.Successful, 2)
	assert.Len(t, result.Failed, 1)
}

func TestSendBatch_FailOnAnyReturnsErrorWhenAnyEntryFails(t *testing.T) {
	c := &fakeClient{
		batchResult: ports.BatchSendResult{
			Successful: []ports.SendResult{{MessageID: "1"}},
			Failed:     []ports.SendFailure{{Index: 1, Code: "Throttling"}},
		},
	}
	tpl := newTemplate(c, config.FailOnAny)

	_, err := SendBatch(context.Background(), tpl, "orders", Items([]order{{ID: 1}, {ID: 2}}), message.NewJSONConverter[order]())
	require.Error(t, err)
}

func TestSendBatch_RetryFailedRetriesOnlyFailedEntriesUntilSuccess(t *testing.T) {
	c := &fakeClient{
		batchResults: []ports.BatchSendResult{
			// initial call: index 1 fails twice then succeeds
			{Successful: []ports.SendResult{{MessageID: "0"}, {MessageID: "2"}}, Failed: []ports.SendFailure{{Index: 1, Code: "Throttling"}}},
			{Failed: []ports.SendFailure{{Index: 1, Code: "Throttling"}}},
			{Successful: []ports.SendResult{{MessageID: "1"}}},
		},
	}
	tpl := newTemplate(c, config.RetryFailed)

	result, err := SendBatch(context.Background(), tpl, "orders", Items([]order{{ID: 1}, {ID: 2}, {ID: 3}}), message.NewJSONConverter[order]())
	require.NoError(t, err)
	assert.Len(t, result.Successful, 3)
	assert.Empty(t, result.Failed)
	assert.Equal(t, 3, len(c.batchCalls), "one initial call plus two retry attempts")
}

func TestReceive_SkipsUndeserializableMessagesAndStampsQueue(t *testing.T) {
	c := &fakeClient{
		receiveRaws: []ports.RawMessage{
			{MessageID: "good", ReceiptHandle: "rh1", Body: `{"id":1}`},
			{MessageID: "bad", ReceiptHandle: "rh2", Body: `not json`},
		},
	}
	tpl := newTemplate(c, config.PartialSuccess)

	msgs, err := Receive(context.Background(), tpl, "orders", 10, 0, message.NewJSONConverter[order]())
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "good", msgs[0].MessageID())
	assert.Equal(t, "orders", msgs[0].Queue())
}

func TestSend_ZeroMaxSendsPerSecondLeavesSendsUnthrottled(t *testing.T) {
	c := &fakeClient{}
	tpl := New(c, config.TemplateConfig{BatchFailureStrategy: config.PartialSuccess}, nil, nil)

	start := time.Now()
	for i := 0; i < 5; i++ {
		_, err := Send(context.Background(), tpl, "orders", order{ID: i}, message.NewJSONConverter[order]())
		require.NoError(t, err)
	}
	assert.Less(t, time.Since(start), 200*time.Millisecond, "no limiter configured, sends must not be throttled")
}

func TestSend_MaxSendsPerSecondThrottlesSubsequentCalls(t *testing.T) {
	c := &fakeClient{}
	tpl := New(c, config.TemplateConfig{BatchFailureStrategy: config.PartialSuccess, MaxSendsPerSecond: 10}, nil, nil)

	// The limiter's burst of 1 admits the first Send immediately; the second
	// must wait roughly 1/10s for the bucket to refill.
	_, err := Send(context.Background(), tpl, "orders", order{ID: 1}, message.NewJSONConverter[order]())
	require.NoError(t, err)

	start := time.Now()
	_, err = Send(context.Background(), tpl, "orders", order{ID: 2}, message.NewJSONConverter[order]())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond, "second send must wait for the rate limiter")
}

func TestSend_MaxSendsPerSecondReturnsContextErrorWhenExpired(t *testing.T) {
	c := &fakeClient{}
	tpl := New(c, config.TemplateConfig{BatchFailureStrategy: config.PartialSuccess, MaxSendsPerSecond: 1}, nil, nil)

	_, err := Send(context.Background(), tpl, "orders", order{ID: 1}, message.NewJSONConverter[order]())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	_, err = Send(ctx, tpl, "orders", order{ID: 2}, message.NewJSONConverter[order]())
	assert.Error(t, err)
}
