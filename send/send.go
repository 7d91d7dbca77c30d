// Package send implements SendTemplate: the outbound half of the library,
// covering single sends, batch sends with configurable partial-failure
// handling, and the ad hoc receive used by tests and one-shot consumers.
// Grounded on Belac-Technology-flow-catalyst's queue.Publisher/Consumer split (Publish,
// PublishWithGroup, PublishBatch), generalized from SQS-specific helper
// methods to the queue-service-agnostic ports.QueueClient.
package send

import (
	"context"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/sqskit/sqskit-go/config"
	"github.com/sqskit/sqskit-go/errors"
	"github.com/sqskit/sqskit-go/internal/backoff"
	"github.com/sqskit/sqskit-go/message"
	"github.com/sqskit/sqskit-go/ports"
)

// Option customizes a single outbound entry.
type Option func(*entryOpts)

type entryOpts struct {
	delay   time.Duration
	attrs   map[string]string
	groupID string
	dedupID string
}

// WithDelay sets a per-message delivery delay.
func WithDelay(d time.Duration) Option {
	return func(o *entryOpts) { o.delay = d }
}

// WithMessageAttributes sets the user-set message attributes.
func WithMessageAttributes(attrs map[string]string) Option {
	return func(o *entryOpts) { o.attrs = attrs }
}

// WithGroupID sets the FIFO message group id. Required for `.fifo` queues.
func WithGroupID(id string) Option {
	return func(o *entryOpts) { o.groupID = id }
}

// WithDeduplicationID sets the FIFO deduplication id.
func WithDeduplicationID(id string) Option {
	return func(o *entryOpts) { o.dedupID = id }
}

func resolveOpts(opts []Option) entryOpts {
	var o entryOpts
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// isFIFO reports whether queue names an SQS FIFO queue.
func isFIFO(queue string) bool { return strings.HasSuffix(queue, ".fifo") }

// Template is the process-wide (or per-test) outbound gateway: it owns no
// payload type of its own (Send/SendBatch/Receive are generic functions
// taking the payload type per call, since Go methods cannot carry their
// own type parameters).
type Template struct {
	client  ports.QueueClient
	cfg     config.TemplateConfig
	logger  ports.Logger
	metrics ports.MonitoringCallback

	limiter *rate.Limiter
}

// New constructs a Template. client, logger and metrics are the shared
// collaborators the supervisor also hands to every Container. When
// cfg.MaxSendsPerSecond is positive, outbound Send/SendBatch calls are
// throttled client-side to that rate ahead of whatever the queue service
// itself enforces; zero leaves sends unthrottled.
func New(client ports.QueueClient, cfg config.TemplateConfig, logger ports.Logger, metrics ports.MonitoringCallback) *Template {
	t := &Template{client: client, cfg: cfg, logger: logger, metrics: metrics}
	if cfg.MaxSendsPerSecond > 0 {
		t.limiter = rate.NewLimiter(rate.Limit(cfg.MaxSendsPerSecond), 1)
	}
	return t
}

// wait blocks until the configured send rate permits one more call, or
// returns ctx's error if it's done first. A no-op when no limiter is set.
func (t *Template) wait(ctx context.Context) error {
	if t.limiter == nil {
		return nil
	}
	return t.limiter.Wait(ctx)
}

func (t *Template) resolveQueue(queue string) string {
	if queue == "" {
		return t.cfg.DefaultQueue
	}
	return queue
}

func (t *Template) emit(kind ports.EventKind, queue string, count int, errKind string) {
	if t.metrics == nil {
		return
	}
	t.metrics.OnEvent(ports.Event{Kind: kind, Queue: queue, Count: count, ErrorKind: errKind})
}

// Send serializes payload with converter and sends it to queue. If queue
// ends in ".fifo" a message group id must be supplied via WithGroupID;
// otherwise Send fails with a configuration_error without contacting the
// queue service (spec P7).
func Send[T any](ctx context.Context, t *Template, queue string, payload T, converter message.Converter[T], opts ...Option) (ports.SendResult, error) {
	queue = t.resolveQueue(queue)
	o := resolveOpts(opts)
	if isFIFO(queue) && o.groupID == "" {
		return ports.SendResult{}, errors.Configuration("send: queue %q is FIFO but no message group id was supplied", queue)
	}

	body, err := converter.Serialize(payload)
	if err != nil {
		return ports.SendResult{}, err
	}

	if err := t.wait(ctx); err != nil {
		return ports.SendResult{}, err
	}

	res, err := t.client.Send(ctx, queue, body, o.attrs, o.groupID, o.dedupID, o.delay)
	if err != nil {
		if t.logger != nil {
			t.logger.Warn("send failed", ports.Field{Key: "queue", Value: queue}, ports.Field{Key: "error", Value: err.Error()})
		}
		return ports.SendResult{}, err
	}
	t.emit(ports.EventMessageProcessed, queue, 1, "")
	return res, nil
}

// BatchItem pairs a payload with its own per-entry options (group id,
// attributes, delay), since each entry of a send_batch call may need its
// own FIFO group.
type BatchItem[T any] struct {
	Payload T
	Opts    []Option
}

// Items builds a slice of BatchItem sharing the same options, the common
// case where only common_attributes (spec.md §4.4) are needed.
func Items[T any](payloads []T, opts ...Option) []BatchItem[T] {
	items := make([]BatchItem[T], len(payloads))
	for i, p := range payloads {
		items[i] = BatchItem[T]{Payload: p, Opts: opts}
	}
	return items
}

// SendBatch sends 1 to 10 items in one batch call, per the configured
// config.TemplateConfig.BatchFailureStrategy:
//   - PARTIAL_SUCCESS: returns whatever the service reported, as-is.
//   - FAIL_ON_ANY: any single failed entry turns the whole call into an error.
//   - RETRY_FAILED: failed entries are retried (up to cfg.MaxRetries times,
//     with the shared backoff schedule) until they succeed or retries are
//     exhausted; the final BatchSendResult merges every entry's last outcome.
//
// Outside 1..10 items, SendBatch fails fast with a configuration_error
// without contacting the service (spec P5). A FIFO entry missing its group
// id likewise fails the whole call fast (spec P7 extended to batches).
func SendBatch[T any](ctx context.Context, t *Template, queue string, items []BatchItem[T], converter message.Converter[T]) (ports.BatchSendResult, error) {
	queue = t.resolveQueue(queue)
	n := len(items)
	if n < 1 || n > 10 {
		return ports.BatchSendResult{}, errors.Configuration("send: send_batch size %d outside [1,10]", n)
	}

	entries := make([]ports.SendEntry, n)
	for i, item := range items {
		o := resolveOpts(item.Opts)
		if isFIFO(queue) && o.groupID == "" {
			return ports.BatchSendResult{}, errors.Configuration("send: queue %q is FIFO but entry %d has no message group id", queue, i)
		}
		body, err := converter.Serialize(item.Payload)
		if err != nil {
			return ports.BatchSendResult{}, err
		}
		entries[i] = ports.SendEntry{
			Index:                  i,
			Body:                   body,
			MessageAttributes:      o.attrs,
			MessageGroupID:         o.groupID,
			MessageDeduplicationID: o.dedupID,
			DelaySeconds:           int(o.delay / time.Second),
		}
	}

	if err := t.wait(ctx); err != nil {
		return ports.BatchSendResult{}, err
	}

	result, err := t.client.SendBatch(ctx, queue, entries)
	if err != nil {
		return ports.BatchSendResult{}, err
	}

	switch t.cfg.BatchFailureStrategy {
	case config.FailOnAny:
		if len(result.Failed) > 0 {
			t.emit(ports.EventMessageFailed, queue, len(result.Failed), string(errors.KindTransientService))
			return result, errors.Wrap(errors.KindTransientService, "send_batch: one or more entries failed", failureSummary(result.Failed))
		}
	case config.RetryFailed:
		result = t.retryFailed(ctx, queue, entries, result)
		if len(result.Failed) > 0 {
			t.emit(ports.EventMessageFailed, queue, len(result.Failed), string(errors.KindTransientService))
		}
	case config.PartialSuccess:
		// Return the service's outcome verbatim.
	}

	t.emit(ports.EventMessageProcessed, queue, len(result.Successful), "")
	return result, nil
}

// retryFailed resubmits only the entries the service reported as failed,
// up to cfg.MaxRetries attempts, merging every retry round's successes
// into the running result. Unretryable senderFault failures (e.g. a
// malformed entry) are not resubmitted since a retry cannot succeed.
func (t *Template) retryFailed(ctx context.Context, queue string, entries []ports.SendEntry, result ports.BatchSendResult) ports.BatchSendResult {
	byIndex := make(map[int]ports.SendEntry, len(entries))
	for _, e := range entries {
		byIndex[e.Index] = e
	}

	attempt := 0
	for len(result.Failed) > 0 && attempt < t.cfg.MaxRetries {
		var retry []ports.SendEntry
		for _, f := range result.Failed {
			if f.SenderFault {
				continue
			}
			if e, ok := byIndex[f.Index]; ok {
				retry = append(retry, e)
			}
		}
		if len(retry) == 0 {
			break
		}

		if !backoff.Default.Sleep(attempt, ctx.Done()) {
			break
		}
		attempt++

		if err := t.wait(ctx); err != nil {
			break
		}

		retried, err := t.client.SendBatch(ctx, queue, retry)
		if err != nil {
			if t.logger != nil {
				t.logger.Warn("send_batch retry attempt failed", ports.Field{Key: "queue", Value: queue}, ports.Field{Key: "attempt", Value: attempt})
			}
			continue
		}

		stillFailed := retried.Failed
		result.Successful = append(result.Successful, retried.Successful...)
		result.Failed = stillFailed
	}
	return result
}

func failureSummary(failures []ports.SendFailure) error {
	if len(failures) == 0 {
		return nil
	}
	return errors.Configuration("%d entries failed, first: index=%d code=%s message=%s",
		len(failures), failures[0].Index, failures[0].Code, failures[0].Message)
}

// Receive issues a single receive call and deserializes every returned raw
// message with converter, for use by tests and one-shot consumers that
// don't want a full listener Container (spec.md §4.4). waitTime of 0 uses
// a short poll.
func Receive[T any](ctx context.Context, t *Template, queue string, maxMessages int, waitTime time.Duration, converter message.Converter[T]) ([]*message.Message[T], error) {
	queue = t.resolveQueue(queue)
	raws, err := t.client.Receive(ctx, queue, maxMessages, waitTime, 0)
	if err != nil {
		return nil, err
	}

	out := make([]*message.Message[T], 0, len(raws))
	for _, raw := range raws {
		raw.Queue = queue
		payload, err := converter.Deserialize(raw.Body)
		if err != nil {
			if t.logger != nil {
				t.logger.Warn("receive: failed to deserialize message, skipping",
					ports.Field{Key: "queue", Value: queue}, ports.Field{Key: "messageId", Value: raw.MessageID})
			}
			continue
		}
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
		out = append(out, message.New(payload, raw.MessageID, raw.ReceiptHandle, queue, opts...))
	}
	t.emit(ports.EventMessageReceived, queue, len(out), "")
	return out, nil
}
