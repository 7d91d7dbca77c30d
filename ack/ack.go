// Package ack implements AcknowledgementProcessor: it accumulates message
// outcomes and flushes delete_batch calls to the queue service under one
// of three ordering policies (spec.md §4.2).
package ack

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/sqskit/sqskit-go/config"
	"github.com/sqskit/sqskit-go/internal/backoff"
	"github.com/sqskit/sqskit-go/internal/timeutil"
	"github.com/sqskit/sqskit-go/ports"
)

// Outcome is what the container reports back once a message's fate is
// decided: ack (delete) or resolved-without-delete (left for redelivery).
type Outcome struct {
	ReceiptHandle string
	MessageID     string
	GroupID       string // "" for non-FIFO messages
	Seq           uint64 // receive-order sequence assigned by the container
	Ack           bool   // true: delete; false: resolved but leave for redelivery
}

type slot struct {
	outcome Outcome
	filled  bool
}

// Processor batches Outcomes into delete_batch calls per the configured
// AcknowledgementOrdering.
type Processor struct {
	queue   string
	client  ports.QueueClient
	metrics ports.MonitoringCallback
	logger  ports.Logger

	ordering      config.AcknowledgementOrdering
	batchSize     int
	batchWindow   time.Duration

	mu sync.Mutex
	// UNORDERED: a flat ready-to-flush queue, order doesn't matter.
	unordered []Outcome
	// ORDERED: contiguous-prefix buffer keyed by receive sequence.
	nextSeq    uint64
	orderedBuf map[uint64]slot
	// PER_GROUP: one contiguous-prefix buffer per FIFO group.
	groupNextSeq map[string]uint64
	groupBuf     map[string]map[uint64]slot

	flushSignal chan struct{}
	stopCh      chan struct{}
	doneCh      chan struct{}
}

// New creates a Processor for one container's queue.
func New(queue string, client ports.QueueClient, metrics ports.MonitoringCallback, logger ports.Logger, ordering config.AcknowledgementOrdering, batchSize int, batchWindowMs int) *Processor {
	if batchSize <= 0 || batchSize > 10 {
		batchSize = 10
	}
	p := &Processor{
		queue:        queue,
		client:       client,
		metrics:      metrics,
		logger:       logger,
		ordering:     ordering,
		batchSize:    batchSize,
		batchWindow:  timeutil.FromMillis(int64(batchWindowMs)),
		orderedBuf:   make(map[uint64]slot),
		groupNextSeq: make(map[string]uint64),
		groupBuf:     make(map[string]map[uint64]slot),
		flushSignal:  make(chan struct{}, 1),
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}
	go p.run()
	return p
}

func (p *Processor) signalFlush() {
	select {
	case p.flushSignal <- struct{}{}:
	default:
	}
}

// Submit records a message's outcome. For ORDERED/PER_GROUP, out-of-order
// completions are held until their predecessors resolve.
func (p *Processor) Submit(o Outcome) {
	p.mu.Lock()
	ready := false
	switch p.ordering {
	case config.Unordered:
		p.unordered = append(p.unordered, o)
		ready = len(p.unordered) >= p.batchSize
	case config.Ordered:
		p.orderedBuf[o.Seq] = slot{outcome: o, filled: true}
		ready = p.contiguousReadyLocked()
	case config.PerGroup:
		if o.GroupID == "" {
			p.unordered = append(p.unordered, o)
			ready = len(p.unordered) >= p.batchSize
		} else {
			buf, ok := p.groupBuf[o.GroupID]
			if !ok {
				buf = make(map[uint64]slot)
				p.groupBuf[o.GroupID] = buf
			}
			buf[o.Seq] = slot{outcome: o, filled: true}
			ready = p.groupContiguousReadyLocked(o.GroupID)
		}
	}
	p.mu.Unlock()

	if ready {
		p.signalFlush()
	}
}

func (p *Processor) contiguousReadyLocked() bool {
	count := 0
	seq := p.nextSeq
	for {
		s, ok := p.orderedBuf[seq]
		if !ok || !s.filled {
			break
		}
		count++
		seq++
		if count >= p.batchSize {
			return true
		}
	}
	return count > 0
}

func (p *Processor) groupContiguousReadyLocked(group string) bool {
	buf := p.groupBuf[group]
	seq := p.groupNextSeq[group]
	count := 0
	for {
		s, ok := buf[seq]
		if !ok || !s.filled {
			break
		}
		count++
		seq++
	}
	return count > 0
}

// drainReady pulls everything currently flushable out of the buffers,
// returning receipt handles to delete. Skip-only entries (resolved but
// not acked) are consumed and advance sequence counters without producing
// a handle.
func (p *Processor) drainReady() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	var handles []string

	if len(p.unordered) > 0 {
		for _, o := range p.unordered {
			if o.Ack {
				handles = append(handles, o.ReceiptHandle)
			}
		}
		p.unordered = p.unordered[:0]
	}

	for {
		s, ok := p.orderedBuf[p.nextSeq]
		if !ok || !s.filled {
			break
		}
		if s.outcome.Ack {
			handles = append(handles, s.outcome.ReceiptHandle)
		}
		delete(p.orderedBuf, p.nextSeq)
		p.nextSeq++
	}

	for group, buf := range p.groupBuf {
		seq := p.groupNextSeq[group]
		for {
			s, ok := buf[seq]
			if !ok || !s.filled {
				break
			}
			if s.outcome.Ack {
				handles = append(handles, s.outcome.ReceiptHandle)
			}
			delete(buf, seq)
			seq++
		}
		p.groupNextSeq[group] = seq
		if len(buf) == 0 {
			delete(p.groupBuf, group)
		}
	}

	return handles
}

func (p *Processor) run() {
	defer close(p.doneCh)
	ticker := time.NewTicker(p.batchWindow)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			p.flush(context.Background())
			return
		case <-ticker.C:
			p.flush(context.Background())
		case <-p.flushSignal:
			p.flush(context.Background())
		}
	}
}

// flush drains ready handles and deletes them in chunks of 10, retrying
// failed entries individually up to 3 times with backoff per spec.md §4.2.
func (p *Processor) flush(ctx context.Context) {
	handles := p.drainReady()
	if len(handles) == 0 {
		return
	}

	for start := 0; start < len(handles); start += 10 {
		end := start + 10
		if end > len(handles) {
			end = len(handles)
		}
		p.deleteChunk(ctx, handles[start:end])
	}
}

func (p *Processor) deleteChunk(ctx context.Context, handles []string) {
	remaining := handles
	for attempt := 0; attempt < 4 && len(remaining) > 0; attempt++ {
		if attempt > 0 {
			backoff.Default.Sleep(attempt-1, p.stopCh)
		}
		results, err := p.client.DeleteBatch(ctx, p.queue, remaining)
		if err != nil {
			if p.logger != nil {
				p.logger.Warn("ack delete_batch failed", ports.Field{Key: "error", Value: err}, ports.Field{Key: "queue", Value: p.queue})
			}
			continue
		}

		// EntryResult.ID is either the entry's index in remaining or its
		// receipt handle, depending on the client.
		byID := make(map[string]string, 2*len(remaining))
		for i, h := range remaining {
			byID[strconv.Itoa(i)] = h
			byID[h] = h
		}
		var retry []string
		for _, r := range results {
			if !r.Success {
				if h, ok := byID[r.ID]; ok {
					retry = append(retry, h)
				}
			}
		}
		p.emit(ports.EventAckFlushed, len(remaining)-len(retry))
		if len(retry) == 0 {
			return
		}
		remaining = retry
	}

	for _, h := range remaining {
		if p.metrics != nil {
			p.metrics.OnEvent(ports.Event{Kind: ports.EventAckFailed, Queue: p.queue, MessageID: h})
		}
	}
}

func (p *Processor) emit(kind ports.EventKind, count int) {
	if p.metrics == nil || count <= 0 {
		return
	}
	p.metrics.OnEvent(ports.Event{Kind: kind, Queue: p.queue, Count: count})
}

// Flush forces an immediate synchronous flush of whatever is ready, used
// by the container during graceful shutdown.
func (p *Processor) Flush(ctx context.Context) {
	p.flush(ctx)
}

// Stop stops the background flush loop after one final flush.
func (p *Processor) Stop() {
	close(p.stopCh)
	<-p.doneCh
}
