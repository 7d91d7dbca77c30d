package awssqs

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	smithy "github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sqerrors "github.com/sqskit/sqskit-go/errors"
)

type fakeAPI struct {
	receiveOut *sqs.ReceiveMessageOutput
	receiveErr error

	sendOut *sqs.SendMessageOutput
	sendErr error

	getQueueURLErr error
}

func (f *fakeAPI) ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	return f.receiveOut, f.receiveErr
}
func (f *fakeAPI) DeleteMessageBatch(ctx context.Context, params *sqs.DeleteMessageBatchInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageBatchOutput, error) {
	return &sqs.DeleteMessageBatchOutput{}, nil
}
func (f *fakeAPI) ChangeMessageVisibilityBatch(ctx context.Context, params *sqs.ChangeMessageVisibilityBatchInput, optFns ...func(*sqs.Options)) (*sqs.ChangeMessageVisibilityBatchOutput, error) {
	return &sqs.ChangeMessageVisibilityBatchOutput{}, nil
}
func (f *fakeAPI) SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	return f.sendOut, f.sendErr
}
func (f *fakeAPI) SendMessageBatch(ctx context.Context, params *sqs.SendMessageBatchInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageBatchOutput, error) {
	return &sqs.SendMessageBatchOutput{}, nil
}
func (f *fakeAPI) GetQueueUrl(ctx context.Context, params *sqs.GetQueueUrlInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueUrlOutput, error) {
	if f.getQueueURLErr != nil {
		return nil, f.getQueueURLErr
	}
	return &sqs.GetQueueUrlOutput{QueueUrl: aws.String("https://example.test/" + aws.ToString(params.QueueName))}, nil
}
func (f *fakeAPI) CreateQueue(ctx context.Context, params *sqs.CreateQueueInput, optFns ...func(*sqs.Options)) (*sqs.CreateQueueOutput, error) {
	return &sqs.CreateQueueOutput{}, nil
}
func (f *fakeAPI) GetQueueAttributes(ctx context.Context, params *sqs.GetQueueAttributesInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueAttributesOutput, error) {
	return &sqs.GetQueueAttributesOutput{}, nil
}

func TestReceive_MapsFIFOAttributes(t *testing.T) {
	api := &fakeAPI{
		receiveOut: &sqs.ReceiveMessageOutput{
			Messages: []types.Message{
				{
					MessageId:     aws.String("m1"),
					ReceiptHandle: aws.String("rh1"),
					Body:          aws.String(`{"id":1}`),
					Attributes: map[string]string{
						string(types.MessageSystemAttributeNameMessageGroupId): "group-a",
						string(types.MessageSystemAttributeNameSequenceNumber): "100",
					},
				},
			},
		},
	}
	c := NewFromAPI(api)

	raws, err := c.Receive(context.Background(), "orders.fifo", 10, 20*time.Second, 0)
	require.NoError(t, err)
	require.Len(t, raws, 1)
	assert.Equal(t, "group-a", raws[0].MessageGroupID)
	assert.Equal(t, "100", raws[0].SequenceNumber)
	assert.True(t, raws[0].IsFIFO())
}

func TestReceive_ClassifiesQueueDoesNotExist(t *testing.T) {
	api := &fakeAPI{receiveErr: &types.QueueDoesNotExist{Message: aws.String("no such queue")}}
	c := NewFromAPI(api)

	_, err := c.Receive(context.Background(), "missing", 10, 20*time.Second, 0)
	require.Error(t, err)
	assert.True(t, sqerrors.Is(err, sqerrors.KindQueueNotFound))
}

func TestGetQueueURL_ClassifiesAccessDenied(t *testing.T) {
	api := &fakeAPI{getQueueURLErr: &accessDeniedErr{}}
	c := NewFromAPI(api)

	_, err := c.GetQueueURL(context.Background(), "restricted")
	require.Error(t, err)
	assert.True(t, sqerrors.Is(err, sqerrors.KindFatalService))
}

func TestSend_Success(t *testing.T) {
	api := &fakeAPI{sendOut: &sqs.SendMessageOutput{MessageId: aws.String("m1"), SequenceNumber: aws.String("1")}}
	c := NewFromAPI(api)

	res, err := c.Send(context.Background(), "orders", `{"id":1}`, nil, "", "", 0)
	require.NoError(t, err)
	assert.Equal(t, "m1", res.MessageID)
}

// accessDeniedErr is a minimal smithy.APIError stand-in for a fatal SQS error.
type accessDeniedErr struct{}

func (e *accessDeniedErr) Error() string                { return "access denied" }
func (e *accessDeniedErr) ErrorCode() string             { return "AccessDenied" }
func (e *accessDeniedErr) ErrorMessage() string          { return "access denied" }
func (e *accessDeniedErr) ErrorFault() smithy.ErrorFault { return smithy.FaultClient }
