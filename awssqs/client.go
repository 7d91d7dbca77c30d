// Package awssqs implements ports.QueueClient against real AWS SQS via
// aws-sdk-go-v2, classifying SDK errors into the errors.Kind taxonomy the
// rest of the library routes on. Grounded on Belac-Technology-flow-catalyst's
// internal/queue/sqs/client.go (Client/Publisher/Consumer split over an
// SQSClientAPI interface) and Aridsondez-AWS-SQS-LITE's simple client
// shape, collapsed into the single ports.QueueClient contract.
package awssqs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	smithy "github.com/aws/smithy-go"

	sqerrors "github.com/sqskit/sqskit-go/errors"
	"github.com/sqskit/sqskit-go/ports"
)

// API is the subset of the generated SQS client this package depends on,
// narrowed for testability the way flow-catalyst's SQSClientAPI is.
type API interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessageBatch(ctx context.Context, params *sqs.DeleteMessageBatchInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageBatchOutput, error)
	ChangeMessageVisibilityBatch(ctx context.Context, params *sqs.ChangeMessageVisibilityBatchInput, optFns ...func(*sqs.Options)) (*sqs.ChangeMessageVisibilityBatchOutput, error)
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	SendMessageBatch(ctx context.Context, params *sqs.SendMessageBatchInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageBatchOutput, error)
	GetQueueUrl(ctx context.Context, params *sqs.GetQueueUrlInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueUrlOutput, error)
	CreateQueue(ctx context.Context, params *sqs.CreateQueueInput, optFns ...func(*sqs.Options)) (*sqs.CreateQueueOutput, error)
	GetQueueAttributes(ctx context.Context, params *sqs.GetQueueAttributesInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueAttributesOutput, error)
}

// Client implements ports.QueueClient over the AWS SQS SDK.
type Client struct {
	sqs API
}

var _ ports.QueueClient = (*Client)(nil)

// Options configures New. EndpointURL, AccessKeyID/SecretAccessKey and
// SessionToken are optional, mirroring AWSKIT_ENDPOINT_URL/ACCESS_KEY_ID/
// SECRET_ACCESS_KEY/SESSION_TOKEN (spec.md §6) — used for LocalStack or
// other SQS-compatible endpoints in tests.
type Options struct {
	Region          string
	EndpointURL     string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

// New loads AWS configuration and constructs a Client.
func New(ctx context.Context, opts Options) (*Client, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(opts.Region),
	}
	if opts.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, opts.SessionToken)))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, sqerrors.Configuration("awssqs: failed to load AWS config: %v", err)
	}

	var optFns []func(*sqs.Options)
	if opts.EndpointURL != "" {
		optFns = append(optFns, func(o *sqs.Options) { o.BaseEndpoint = aws.String(opts.EndpointURL) })
	}

	return &Client{sqs: sqs.NewFromConfig(awsCfg, optFns...)}, nil
}

// NewFromAPI wraps an already-constructed API, for tests and for embedding
// a non-default *sqs.Client the caller configured itself.
func NewFromAPI(api API) *Client { return &Client{sqs: api} }

// Receive issues one long-poll ReceiveMessage call.
func (c *Client) Receive(ctx context.Context, queue string, maxMessages int, waitTime time.Duration, visibilityTimeout time.Duration) ([]ports.RawMessage, error) {
	input := &sqs.ReceiveMessageInput{
		QueueUrl:              aws.String(queue),
		MaxNumberOfMessages:   int32(maxMessages),
		WaitTimeSeconds:       int32(waitTime / time.Second),
		MessageAttributeNames: []string{"All"},
		MessageSystemAttributeNames: []types.MessageSystemAttributeName{
			types.MessageSystemAttributeNameAll,
		},
	}
	if visibilityTimeout > 0 {
		input.VisibilityTimeout = int32(visibilityTimeout / time.Second)
	}

	out, err := c.sqs.ReceiveMessage(ctx, input)
	if err != nil {
		return nil, classify(err)
	}

	raws := make([]ports.RawMessage, 0, len(out.Messages))
	for _, m := range out.Messages {
		raw := ports.RawMessage{
			MessageID:         aws.ToString(m.MessageId),
			ReceiptHandle:     aws.ToString(m.ReceiptHandle),
			Body:              aws.ToString(m.Body),
			Attributes:        sysAttrsToMap(m.Attributes),
			MessageAttributes: msgAttrsToMap(m.MessageAttributes),
			ReceivedAt:        time.Now(),
		}
		if gid, ok := m.Attributes[string(types.MessageSystemAttributeNameMessageGroupId)]; ok {
			raw.MessageGroupID = gid
		}
		if seq, ok := m.Attributes[string(types.MessageSystemAttributeNameSequenceNumber)]; ok {
			raw.SequenceNumber = seq
		}
		raws = append(raws, raw)
	}
	return raws, nil
}

// DeleteBatch deletes up to 10 receipt handles in one DeleteMessageBatch call.
func (c *Client) DeleteBatch(ctx context.Context, queue string, receiptHandles []string) ([]ports.EntryResult, error) {
	entries := make([]types.DeleteMessageBatchRequestEntry, len(receiptHandles))
	for i, rh := range receiptHandles {
		entries[i] = types.DeleteMessageBatchRequestEntry{
			Id:            aws.String(fmt.Sprintf("%d", i)),
			ReceiptHandle: aws.String(rh),
		}
	}

	out, err := c.sqs.DeleteMessageBatch(ctx, &sqs.DeleteMessageBatchInput{
		QueueUrl: aws.String(queue),
		Entries:  entries,
	})
	if err != nil {
		return nil, classify(err)
	}
	return mergeBatchResults(len(entries), out.Successful, out.Failed), nil
}

// ChangeVisibilityBatch extends or clears visibility for up to 10 handles.
func (c *Client) ChangeVisibilityBatch(ctx context.Context, queue string, entries []ports.VisibilityEntry) ([]ports.EntryResult, error) {
	reqEntries := make([]types.ChangeMessageVisibilityBatchRequestEntry, len(entries))
	for i, e := range entries {
		reqEntries[i] = types.ChangeMessageVisibilityBatchRequestEntry{
			Id:                aws.String(fmt.Sprintf("%d", i)),
			ReceiptHandle:     aws.String(e.ReceiptHandle),
			VisibilityTimeout: int32(e.Seconds),
		}
	}

	out, err := c.sqs.ChangeMessageVisibilityBatch(ctx, &sqs.ChangeMessageVisibilityBatchInput{
		QueueUrl: aws.String(queue),
		Entries:  reqEntries,
	})
	if err != nil {
		return nil, classify(err)
	}
	return mergeBatchResults(len(reqEntries), out.Successful, out.Failed), nil
}

// Send sends a single message.
func (c *Client) Send(ctx context.Context, queue string, body string, attrs map[string]string, groupID, dedupID string, delay time.Duration) (ports.SendResult, error) {
	input := &sqs.SendMessageInput{
		QueueUrl:          aws.String(queue),
		MessageBody:       aws.String(body),
		MessageAttributes: mapToMsgAttrs(attrs),
	}
	if groupID != "" {
		input.MessageGroupId = aws.String(groupID)
	}
	if dedupID != "" {
		input.MessageDeduplicationId = aws.String(dedupID)
	}
	if delay > 0 {
		input.DelaySeconds = int32(delay / time.Second)
	}

	out, err := c.sqs.SendMessage(ctx, input)
	if err != nil {
		return ports.SendResult{}, classify(err)
	}
	return ports.SendResult{
		MessageID:      aws.ToString(out.MessageId),
		SequenceNumber: aws.ToString(out.SequenceNumber),
	}, nil
}

// SendBatch sends up to 10 messages in one SendMessageBatch call.
func (c *Client) SendBatch(ctx context.Context, queue string, entries []ports.SendEntry) (ports.BatchSendResult, error) {
	reqEntries := make([]types.SendMessageBatchRequestEntry, len(entries))
	for i, e := range entries {
		entry := types.SendMessageBatchRequestEntry{
			Id:                aws.String(fmt.Sprintf("%d", e.Index)),
			MessageBody:       aws.String(e.Body),
			MessageAttributes: mapToMsgAttrs(e.MessageAttributes),
		}
		if e.MessageGroupID != "" {
			entry.MessageGroupId = aws.String(e.MessageGroupID)
		}
		if e.MessageDeduplicationID != "" {
			entry.MessageDeduplicationId = aws.String(e.MessageDeduplicationID)
		}
		if e.DelaySeconds > 0 {
			entry.DelaySeconds = int32(e.DelaySeconds)
		}
		reqEntries[i] = entry
	}

	out, err := c.sqs.SendMessageBatch(ctx, &sqs.SendMessageBatchInput{
		QueueUrl: aws.String(queue),
		Entries:  reqEntries,
	})
	if err != nil {
		return ports.BatchSendResult{}, classify(err)
	}

	result := ports.BatchSendResult{
		Successful: make([]ports.SendResult, 0, len(out.Successful)),
		Failed:     make([]ports.SendFailure, 0, len(out.Failed)),
	}
	idToIndex := make(map[string]int, len(entries))
	for _, e := range entries {
		idToIndex[fmt.Sprintf("%d", e.Index)] = e.Index
	}
	for _, s := range out.Successful {
		result.Successful = append(result.Successful, ports.SendResult{
			MessageID:      aws.ToString(s.MessageId),
			SequenceNumber: aws.ToString(s.SequenceNumber),
		})
	}
	for _, f := range out.Failed {
		result.Failed = append(result.Failed, ports.SendFailure{
			Index:       idToIndex[aws.ToString(f.Id)],
			Code:        aws.ToString(f.Code),
			Message:     aws.ToString(f.Message),
			SenderFault: f.SenderFault,
		})
	}
	return result, nil
}

// GetQueueURL resolves a queue name to its SQS URL.
func (c *Client) GetQueueURL(ctx context.Context, name string) (string, error) {
	out, err := c.sqs.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{QueueName: aws.String(name)})
	if err != nil {
		return "", classify(err)
	}
	return aws.ToString(out.QueueUrl), nil
}

// CreateQueue creates a queue with the given attributes.
func (c *Client) CreateQueue(ctx context.Context, name string, attrs map[string]string) (string, error) {
	qAttrs := make(map[types.QueueAttributeName]string, len(attrs))
	for k, v := range attrs {
		qAttrs[types.QueueAttributeName(k)] = v
	}
	out, err := c.sqs.CreateQueue(ctx, &sqs.CreateQueueInput{
		QueueName:  aws.String(name),
		Attributes: qAttrs,
	})
	if err != nil {
		return "", classify(err)
	}
	return aws.ToString(out.QueueUrl), nil
}

// HealthCheck verifies the SQS control plane is reachable, for use by
// healthserver's readiness probe.
func (c *Client) HealthCheck(ctx context.Context, queue string) error {
	_, err := c.sqs.GetQueueAttributes(ctx, &sqs.GetQueueAttributesInput{
		QueueUrl:       aws.String(queue),
		AttributeNames: []types.QueueAttributeName{types.QueueAttributeNameApproximateNumberOfMessages},
	})
	if err != nil {
		return classify(err)
	}
	return nil
}

func sysAttrsToMap(attrs map[string]string) map[string]string {
	if attrs == nil {
		return map[string]string{}
	}
	return attrs
}

func msgAttrsToMap(attrs map[string]types.MessageAttributeValue) map[string]string {
	out := make(map[string]string, len(attrs))
	for k, v := range attrs {
		out[k] = aws.ToString(v.StringValue)
	}
	return out
}

func mapToMsgAttrs(attrs map[string]string) map[string]types.MessageAttributeValue {
	if len(attrs) == 0 {
		return nil
	}
	out := make(map[string]types.MessageAttributeValue, len(attrs))
	for k, v := range attrs {
		out[k] = types.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(v),
		}
	}
	return out
}

func mergeBatchResults(n int, successful []types.DeleteMessageBatchResultEntry, failed []types.BatchResultErrorEntry) []ports.EntryResult {
	out := make([]ports.EntryResult, 0, n)
	for _, s := range successful {
		out = append(out, ports.EntryResult{ID: aws.ToString(s.Id), Success: true})
	}
	for _, f := range failed {
		out = append(out, ports.EntryResult{
			ID:      aws.ToString(f.Id),
			Success: false,
			Code:    aws.ToString(f.Code),
			Message: aws.ToString(f.Message),
		})
	}
	return out
}

// classify maps an AWS SDK error into the library's errors.Kind taxonomy
// so container/send/ack can route on it without importing this package.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var notFound *types.QueueDoesNotExist
	if errors.As(err, &notFound) {
		return sqerrors.QueueNotFound(notFound.ErrorMessage())
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "AWS.SimpleQueueService.NonExistentQueue":
			return sqerrors.QueueNotFound(apiErr.ErrorMessage())
		case "AccessDenied", "InvalidClientTokenId", "SignatureDoesNotMatch",
			"AWS.SimpleQueueService.UnsupportedOperation", "UnrecognizedClientException":
			return sqerrors.FatalService(err)
		case "RequestThrottled", "ThrottlingException", "ServiceUnavailable",
			"KmsThrottled", "OverLimit":
			return sqerrors.TransientService(err)
		}
	}

	return sqerrors.TransientService(err)
}
