// Package container implements MessageListenerContainer: the lifecycle
// owner of one listener (one queue, one handler), coordinating polling,
// dispatch, visibility extension and acknowledgement. Grounded on the
// teacher's internal/processor.StreamProcessor state machine
// (CREATED/STARTING/RUNNING/.../STOPPED, Start/Stop/Pause/Resume,
// consumeMessages/processMessages/claimStaleMessages loops) with the
// Redis/MQTT-specific bodies replaced by calls through ports.QueueClient.
package container

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sqskit/sqskit-go/ack"
	"github.com/sqskit/sqskit-go/backpressure"
	"github.com/sqskit/sqskit-go/config"
	sqerrors "github.com/sqskit/sqskit-go/errors"
	"github.com/sqskit/sqskit-go/internal/backoff"
	"github.com/sqskit/sqskit-go/internal/timeutil"
	"github.com/sqskit/sqskit-go/ports"
	"github.com/sqskit/sqskit-go/registry"
)

// State is the container's lifecycle state.
type State int32

// Lifecycle states. Transitions are monotonic except PAUSING/PAUSED <->
// RESUMING/RUNNING; STOPPED is terminal, a stopped container is never
// restarted.
const (
	StateCreated State = iota
	StateStarting
	StateRunning
	StatePausing
	StatePaused
	StateResuming
	StateStopping
	StateStopped
)

// String renders the state name used in logging and tests.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StatePausing:
		return "pausing"
	case StatePaused:
		return "paused"
	case StateResuming:
		return "resuming"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

type inflightRecord struct {
	receivedAt time.Time
}

// Container owns one listener's lifecycle: one queue, one registered
// handler.
type Container struct {
	key string
	lc  config.ListenerConfig
	cc  config.ContainerConfig

	client  ports.QueueClient
	metrics ports.MonitoringCallback
	logger  ports.Logger
	cb      ports.CircuitBreaker
	entry   *registry.Entry

	queueURL string

	bp      *backpressure.Manager
	ackProc *ack.Processor
	pool    *workerPool

	state atomic.Int32

	ctx        context.Context
	cancel     context.CancelFunc
	pollCtx    context.Context
	pollCancel context.CancelFunc

	seq            atomic.Uint64
	receiveAttempt atomic.Int32

	groupSeqMu sync.Mutex
	groupSeq   map[string]uint64

	inflightMu sync.Mutex
	inflight   map[string]inflightRecord

	bgWg     sync.WaitGroup
	stopOnce sync.Once
	done     chan struct{}

	fatalMu  sync.Mutex
	fatalErr error
}

// New constructs a Container for one registry entry. client, metrics,
// logger and cb are shared collaborators injected by the supervisor;
// cc is the process-wide container tuning from config.Config.
func New(entry *registry.Entry, client ports.QueueClient, metrics ports.MonitoringCallback, logger ports.Logger, cb ports.CircuitBreaker, cc config.ContainerConfig) *Container {
	return &Container{
		key:      entry.Key,
		lc:       entry.Config,
		cc:       cc,
		client:   client,
		metrics:  metrics,
		logger:   logger,
		cb:       cb,
		entry:    entry,
		groupSeq: make(map[string]uint64),
		inflight: make(map[string]inflightRecord),
		done:     make(chan struct{}),
	}
}

// GetState returns the container's current lifecycle state.
func (c *Container) GetState() State { return State(c.state.Load()) }

// Queue returns the configured queue name (not the resolved URL).
func (c *Container) Queue() string { return c.lc.Queue }

// Done returns a channel closed once the container has fully stopped
// (either via a caller's Stop or an internal fatalStop), for a supervisor
// watching several containers without polling GetState.
func (c *Container) Done() <-chan struct{} { return c.done }

// Err returns the error that caused an internal fatalStop, or nil if the
// container was stopped cleanly (or hasn't stopped yet). Only meaningful
// after Done() is closed.
func (c *Container) Err() error {
	c.fatalMu.Lock()
	defer c.fatalMu.Unlock()
	return c.fatalErr
}

func (c *Container) emitQueue(kind ports.EventKind) {
	if c.metrics == nil {
		return
	}
	c.metrics.OnEvent(ports.Event{Kind: kind, Queue: c.lc.Queue})
}

func (c *Container) emitMessage(kind ports.EventKind, messageID string, durationMs float64, errKind string) {
	if c.metrics == nil {
		return
	}
	c.metrics.OnEvent(ports.Event{Kind: kind, Queue: c.lc.Queue, MessageID: messageID, DurationMs: durationMs, ErrorKind: errKind})
}

func (c *Container) emitCount(kind ports.EventKind, count int) {
	if c.metrics == nil || count <= 0 {
		return
	}
	c.metrics.OnEvent(ports.Event{Kind: kind, Queue: c.lc.Queue, Count: count})
}

func (c *Container) emitDuration(kind ports.EventKind, durationMs float64) {
	if c.metrics == nil {
		return
	}
	c.metrics.OnEvent(ports.Event{Kind: kind, Queue: c.lc.Queue, DurationMs: durationMs})
}

// Start resolves the queue, builds the per-container collaborators, and
// transitions CREATED -> STARTING -> RUNNING.
func (c *Container) Start(parent context.Context) error {
	if !c.state.CompareAndSwap(int32(StateCreated), int32(StateStarting)) {
		return sqerrors.Configuration("container %q: already started", c.key)
	}

	if err := resolveQueue(parent, c); err != nil {
		c.state.Store(int32(StateCreated))
		return err
	}

	mode := config.ResolvedBackpressureMode(&c.lc)
	c.bp = backpressure.New(mode, c.lc.MaxConcurrentMessages, c.lc.FifoGroupStrategy)
	c.ackProc = ack.New(c.queueURL, c.client, c.metrics, c.logger, c.lc.Acknowledgement.Ordering, c.lc.Acknowledgement.BatchSize, c.lc.Acknowledgement.BatchWindowMs)

	c.ctx, c.cancel = context.WithCancel(parent)
	c.pollCtx, c.pollCancel = context.WithCancel(c.ctx)

	c.pool = newWorkerPool(c.ctx, c.logger, 1, c.lc.MaxConcurrentMessages)
	c.pool.start()

	c.state.Store(int32(StateRunning))

	c.bgWg.Add(1)
	go func() {
		defer c.bgWg.Done()
		c.pollLoop()
	}()

	if c.lc.VisibilityExtension.Enabled {
		c.bgWg.Add(1)
		go func() {
			defer c.bgWg.Done()
			c.visibilityLoop()
		}()
	}

	c.emitQueue(ports.EventContainerStarted)
	if c.logger != nil {
		c.logger.Info("container started", ports.Field{Key: "queue", Value: c.lc.Queue}, ports.Field{Key: "listener", Value: c.key})
	}
	return nil
}

// Pause suspends polling without tearing down any collaborator.
func (c *Container) Pause() error {
	if !c.state.CompareAndSwap(int32(StateRunning), int32(StatePausing)) {
		return sqerrors.Configuration("container %q: not running", c.key)
	}
	c.state.Store(int32(StatePaused))
	if c.logger != nil {
		c.logger.Info("container paused", ports.Field{Key: "queue", Value: c.lc.Queue})
	}
	return nil
}

// Resume resumes polling after Pause.
func (c *Container) Resume() error {
	if !c.state.CompareAndSwap(int32(StatePaused), int32(StateResuming)) {
		return sqerrors.Configuration("container %q: not paused", c.key)
	}
	c.state.Store(int32(StateRunning))
	if c.logger != nil {
		c.logger.Info("container resumed", ports.Field{Key: "queue", Value: c.lc.Queue})
	}
	return nil
}

// Stop performs the two-phase graceful shutdown of spec.md §5: stop
// polling and wait up to ShutdownTimeout for in-flight handlers (letting
// successful completions keep feeding the ack processor), then cancel
// whatever remains, flush the ack processor one final time, and report
// any still-unresolved receipt handles as abandoned (left for
// redelivery, never deleted). Safe to call more than once, including
// concurrently with a fatalStop-triggered call: only the first
// invocation runs the shutdown sequence.
func (c *Container) Stop(ctx context.Context) error {
	cur := State(c.state.Load())
	switch cur {
	case StateRunning, StatePaused, StatePausing, StateResuming, StateStopping, StateStopped:
	default:
		return sqerrors.Configuration("container %q: not running", c.key)
	}

	var err error
	c.stopOnce.Do(func() { err = c.doStop(ctx) })
	return err
}

func (c *Container) doStop(ctx context.Context) error {
	c.state.Store(int32(StateStopping))

	if c.logger != nil {
		c.logger.Info("container stopping", ports.Field{Key: "queue", Value: c.lc.Queue})
	}

	c.pollCancel()

	deadline := time.NewTimer(c.cc.ShutdownTimeout)
	defer deadline.Stop()
waitLoop:
	for c.bp.InFlight() > 0 {
		select {
		case <-deadline.C:
			if c.logger != nil {
				c.logger.Warn("shutdown timeout reached, cancelling in-flight handlers",
					ports.Field{Key: "queue", Value: c.lc.Queue},
					ports.Field{Key: "in_flight", Value: c.bp.InFlight()})
			}
			break waitLoop
		case <-time.After(10 * time.Millisecond):
		}
	}

	c.cancel()
	c.pool.stop()

	flushCtx, flushCancel := context.WithTimeout(ctx, c.cc.ShutdownTimeout)
	c.ackProc.Flush(flushCtx)
	flushCancel()
	c.ackProc.Stop()

	c.reportAbandoned()
	c.bgWg.Wait()

	c.state.Store(int32(StateStopped))
	c.emitQueue(ports.EventContainerStopped)
	if c.logger != nil {
		c.logger.Info("container stopped", ports.Field{Key: "queue", Value: c.lc.Queue})
	}
	close(c.done)
	return nil
}

func (c *Container) reportAbandoned() {
	c.inflightMu.Lock()
	defer c.inflightMu.Unlock()
	for handle := range c.inflight {
		if c.logger != nil {
			c.logger.Warn("message abandoned at shutdown, left for redelivery",
				ports.Field{Key: "queue", Value: c.lc.Queue},
				ports.Field{Key: "receipt_handle", Value: handle})
		}
	}
}

func (c *Container) trackInflight(handle string) {
	c.inflightMu.Lock()
	c.inflight[handle] = inflightRecord{receivedAt: time.Now()}
	c.inflightMu.Unlock()
}

func (c *Container) untrackInflight(handle string) {
	c.inflightMu.Lock()
	delete(c.inflight, handle)
	c.inflightMu.Unlock()
}

func (c *Container) isPaused() bool {
	s := State(c.state.Load())
	return s == StatePaused || s == StatePausing
}

// pollLoop is the poller background task of spec.md §5 item (a).
func (c *Container) pollLoop() {
	defer func() {
		if r := recover(); r != nil && c.logger != nil {
			c.logger.Error("panic in poll loop", ports.Field{Key: "panic", Value: r})
		}
	}()

	for {
		if c.pollCtx.Err() != nil {
			return
		}
		if c.isPaused() {
			if !c.waitWhilePaused() {
				return
			}
			continue
		}
		c.pollOnce()
	}
}

// waitWhilePaused spins on the container's configured idle sleep while
// paused, returning false if the poll context ends first.
func (c *Container) waitWhilePaused() bool {
	sleep := c.cc.IdlePollSleep
	if sleep <= 0 {
		sleep = time.Millisecond
	}
	for c.isPaused() {
		select {
		case <-c.pollCtx.Done():
			return false
		case <-time.After(sleep):
		}
	}
	return true
}

// pollOnce is one iteration of the receive loop of spec.md §4.1.
func (c *Container) pollOnce() {
	n := c.bp.TryAcquire(c.lc.PollMaxMessages)
	if n == 0 {
		start := time.Now()
		n = c.bp.Acquire(c.pollCtx, c.lc.PollMaxMessages)
		c.emitDuration(ports.EventBackpressureWaited, float64(time.Since(start).Milliseconds()))
		if n == 0 {
			return // pollCtx ended while waiting
		}
	}

	raws, err := c.receive(c.pollCtx, n)
	if err != nil {
		c.bp.Release(n)
		c.handleReceiveError(err)
		return
	}
	if len(raws) < n {
		c.bp.Release(n - len(raws))
	}
	c.receiveAttempt.Store(0)

	for i := range raws {
		raws[i].Queue = c.queueURL
		c.dispatch(raws[i])
	}
}

func (c *Container) visibilityTimeoutSeconds() time.Duration {
	if c.lc.VisibilityTimeoutSeconds != nil {
		return timeutil.FromSeconds(*c.lc.VisibilityTimeoutSeconds)
	}
	return 0
}

func (c *Container) receive(ctx context.Context, n int) ([]ports.RawMessage, error) {
	var raws []ports.RawMessage
	waitTime := timeutil.FromSeconds(c.lc.PollWaitTimeSeconds)
	run := func() error {
		var rerr error
		raws, rerr = c.client.Receive(ctx, c.queueURL, n, waitTime, c.visibilityTimeoutSeconds())
		return rerr
	}
	if c.cb != nil {
		return raws, c.cb.Execute(run)
	}
	return raws, run()
}

// dispatch applies FIFO_PRESERVING group admission (only decidable now
// that the message's group id is known) and submits the message to the
// worker pool, per spec.md §4.3's dispatch policy.
func (c *Container) dispatch(raw ports.RawMessage) {
	groupID := raw.MessageGroupID
	if !c.bp.ClaimGroup(groupID) {
		c.bp.Release(1)
		c.redeliverImmediately(raw)
		return
	}

	seq := c.nextSeq(groupID)
	c.trackInflight(raw.ReceiptHandle)
	c.emitMessage(ports.EventMessageReceived, raw.MessageID, 0, "")

	err := c.pool.submit(func() { c.handle(raw, groupID, seq) })
	if err != nil {
		c.untrackInflight(raw.ReceiptHandle)
		c.bp.ReleaseGroup(groupID)
		c.bp.Release(1)
		c.redeliverImmediately(raw)
	}
}

// nextSeq assigns the receive-order sequence number fed to ack.Outcome.Seq.
// Under PER_GROUP ordering, ack.Processor keeps one contiguous-prefix
// buffer per group starting at 0 (ack/ack.go's groupBuf/groupNextSeq), so
// the sequence must be local to groupID; a single global counter would
// starve every group but the first one ever assigned seq 0. ORDERED and
// UNORDERED both key off one global, receive-order sequence instead.
func (c *Container) nextSeq(groupID string) uint64 {
	if c.lc.Acknowledgement.Ordering == config.PerGroup && groupID != "" {
		c.groupSeqMu.Lock()
		defer c.groupSeqMu.Unlock()
		seq := c.groupSeq[groupID]
		c.groupSeq[groupID] = seq + 1
		return seq
	}
	return c.seq.Add(1) - 1
}

// redeliverImmediately returns a message to the queue without buffering
// it locally, used when its FIFO group is already busy or the container
// is shutting down.
func (c *Container) redeliverImmediately(raw ports.RawMessage) {
	_, err := c.client.ChangeVisibilityBatch(context.Background(), c.queueURL, []ports.VisibilityEntry{
		{ReceiptHandle: raw.ReceiptHandle, Seconds: 0},
	})
	if err != nil && c.logger != nil {
		c.logger.Warn("failed to redeliver message immediately",
			ports.Field{Key: "queue", Value: c.lc.Queue},
			ports.Field{Key: "error", Value: err})
	}
}

// handle runs the registered listener for one message and resolves its
// acknowledgement outcome per the configured AcknowledgementMode.
func (c *Container) handle(raw ports.RawMessage, groupID string, seq uint64) {
	start := time.Now()

	a := &ackCapability{
		outcome: func(ack bool) {
			c.ackProc.Submit(ack2Outcome(raw, groupID, seq, ack))
		},
	}

	defer func() {
		if r := recover(); r != nil {
			if c.logger != nil {
				c.logger.Error("listener panic recovered",
					ports.Field{Key: "panic", Value: r},
					ports.Field{Key: "messageID", Value: raw.MessageID})
			}
			_ = a.resolve(false)
			c.emitMessage(ports.EventMessageFailed, raw.MessageID, float64(time.Since(start).Milliseconds()), string(sqerrors.KindListener))
		}
		c.untrackInflight(raw.ReceiptHandle)
		c.bp.ReleaseGroup(groupID)
		c.bp.Release(1)
	}()

	err := c.entry.Invoke(c.ctx, raw, a)
	durationMs := float64(time.Since(start).Milliseconds())

	// A deserialization failure never reaches the registered handler (see
	// registry.Register's adapter), so under on_error: IGNORE it is acked
	// and dropped rather than left for redelivery, per spec.md §4.1 step 3.
	if err != nil && c.lc.Acknowledgement.OnError == config.Ignore && sqerrors.Is(err, sqerrors.KindDeserialization) {
		_ = a.resolve(true)
		c.emitMessage(ports.EventMessageFailed, raw.MessageID, durationMs, string(sqerrors.KindDeserialization))
		return
	}

	switch c.lc.Acknowledgement.Mode {
	case config.Manual:
		if !a.resolved() {
			if c.logger != nil {
				c.logger.Error("handler returned without ack/nack under MANUAL mode",
					ports.Field{Key: "messageID", Value: raw.MessageID})
			}
			_ = a.resolve(false)
			c.emitMessage(ports.EventMessageFailed, raw.MessageID, durationMs, string(sqerrors.KindListener))
			return
		}
	case config.Never:
		// Resolution is entirely the handler's responsibility; if it never
		// calls Ack/Nack the message is simply left for redelivery.
	case config.Always:
		_ = a.resolve(true)
	default: // AUTO_ON_SUCCESS
		_ = a.resolve(err == nil)
	}

	if err != nil {
		c.emitMessage(ports.EventMessageFailed, raw.MessageID, durationMs, string(sqerrors.KindListener))
		return
	}
	c.emitMessage(ports.EventMessageProcessed, raw.MessageID, durationMs, "")
}

func ack2Outcome(raw ports.RawMessage, groupID string, seq uint64, acked bool) ack.Outcome {
	return ack.Outcome{
		ReceiptHandle: raw.ReceiptHandle,
		MessageID:     raw.MessageID,
		GroupID:       groupID,
		Seq:           seq,
		Ack:           acked,
	}
}

// visibilityLoop is the visibility-extension background task of
// spec.md §5 item (c): periodically extends the visibility of every
// in-flight message older than IntervalSeconds.
func (c *Container) visibilityLoop() {
	interval := timeutil.FromSeconds(c.lc.VisibilityExtension.IntervalSeconds)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.extendVisibility(interval)
		}
	}
}

func (c *Container) extendVisibility(interval time.Duration) {
	cutoff := time.Now().Add(-interval)

	c.inflightMu.Lock()
	var stale []ports.VisibilityEntry
	for handle, rec := range c.inflight {
		if !rec.receivedAt.After(cutoff) {
			stale = append(stale, ports.VisibilityEntry{ReceiptHandle: handle, Seconds: c.lc.VisibilityExtension.ExtensionSeconds})
		}
	}
	c.inflightMu.Unlock()

	if len(stale) == 0 {
		return
	}

	for start := 0; start < len(stale); start += 10 {
		end := start + 10
		if end > len(stale) {
			end = len(stale)
		}
		chunk := stale[start:end]
		_, err := c.client.ChangeVisibilityBatch(c.ctx, c.queueURL, chunk)
		if err != nil {
			if c.logger != nil {
				c.logger.Warn("visibility extension failed",
					ports.Field{Key: "queue", Value: c.lc.Queue},
					ports.Field{Key: "error", Value: err})
			}
			continue
		}
		c.emitCount(ports.EventVisibilityExtended, len(chunk))
	}
}

// handleReceiveError classifies a receive-side error per spec.md §4.1's
// error classification table.
func (c *Container) handleReceiveError(err error) {
	switch {
	case sqerrors.Is(err, sqerrors.KindQueueNotFound):
		if rerr := resolveQueue(c.pollCtx, c); rerr != nil {
			c.fatalStop(rerr)
		}
	case sqerrors.Is(err, sqerrors.KindFatalService), sqerrors.Is(err, sqerrors.KindConfiguration):
		c.fatalStop(err)
	default: // throttling / transient / unclassified: backoff and retry
		attempt := int(c.receiveAttempt.Add(1)) - 1
		if c.logger != nil {
			c.logger.Warn("receive failed, backing off",
				ports.Field{Key: "queue", Value: c.lc.Queue},
				ports.Field{Key: "attempt", Value: attempt},
				ports.Field{Key: "error", Value: err})
		}
		backoff.Default.Sleep(attempt, c.pollCtx.Done())
	}
}

// fatalStop is reached for auth/config errors: spec.md §4.1 mandates a
// transition to STOPPING. It triggers Stop from a fresh goroutine (Stop
// waits on bgWg, which includes the very goroutine calling fatalStop) and
// blocks until the poll context is actually cancelled so pollLoop doesn't
// spin issuing more doomed receives in the meantime.
func (c *Container) fatalStop(err error) {
	if c.logger != nil {
		c.logger.Error("fatal queue service error, stopping container",
			ports.Field{Key: "queue", Value: c.lc.Queue},
			ports.Field{Key: "error", Value: err})
	}
	c.fatalMu.Lock()
	c.fatalErr = err
	c.fatalMu.Unlock()
	go func() { _ = c.Stop(context.Background()) }()
	<-c.pollCtx.Done()
}

// resolveQueue resolves lc.Queue to a service URL, applying
// QueueNotFoundStrategy on a not-found error.
func resolveQueue(ctx context.Context, c *Container) error {
	url, err := c.client.GetQueueURL(ctx, c.lc.Queue)
	if err == nil {
		c.queueURL = url
		return nil
	}
	if !sqerrors.Is(err, sqerrors.KindQueueNotFound) {
		return err
	}

	switch c.lc.QueueNotFoundStrategy {
	case config.FailFast:
		return err
	case config.RetryLookup:
		for attempt := 0; attempt < 5; attempt++ {
			if !backoff.Default.Sleep(attempt, ctx.Done()) {
				return err
			}
			url, rerr := c.client.GetQueueURL(ctx, c.lc.Queue)
			if rerr == nil {
				c.queueURL = url
				return nil
			}
			if !sqerrors.Is(rerr, sqerrors.KindQueueNotFound) {
				return rerr
			}
			err = rerr
		}
		return err
	case config.CreateQueue:
		url, cerr := c.client.CreateQueue(ctx, c.lc.Queue, nil)
		if cerr != nil {
			return cerr
		}
		c.queueURL = url
		return nil
	default:
		return err
	}
}
