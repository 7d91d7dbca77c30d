// Package backpressure implements BackpressureManager, bounding concurrent
// in-flight messages per container per spec.md §4.3. HIGH_THROUGHPUT is a
// counting permit pool; FIFO_PRESERVING additionally refuses new messages
// whose group already has one in flight. Because a container only learns a
// message's FIFO group id after the receive call returns (the permit
// reservation that bounds the receive's max_messages has to happen first),
// group admission is a separate, later step (ClaimGroup) from the raw
// capacity reservation (TryAcquire/Acquire) — see container's dispatch loop.
//
// ListenerConfig.FifoGroupStrategy further narrows FIFO_PRESERVING's group
// gate: GROUP_PARALLEL serializes only within a group, so distinct groups
// dispatch concurrently; STRICT_SEQUENTIAL (the default) collapses every
// group into one busy key, so at most one FIFO message across the whole
// queue is in flight at a time.
package backpressure

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/sqskit/sqskit-go/config"
)

// Manager bounds in-flight messages for one container.
//
// The in-flight counter and busy-group set are protected by a single mutex
// (busyGroup) plus an atomic counter (inFlight), per spec.md §5's
// shared-resource policy; the semaphore itself supplies the wait/signal
// discipline a condition variable would, since a weighted semaphore already
// parks and wakes goroutines across Acquire/Release.
type Manager struct {
	mode     config.BackpressureMode
	strategy config.FifoGroupStrategy
	limit    int64

	sem      *semaphore.Weighted
	inFlight atomic.Int64

	mu        sync.Mutex
	busyGroup map[string]bool
}

// allGroups is the busyGroup sentinel key used under STRICT_SEQUENTIAL to
// treat every FIFO group as one, so at most one FIFO message across the
// whole queue is in flight at a time, rather than one per group.
const allGroups = "\x00all-groups"

// New creates a Manager for the resolved mode, concurrency limit, and FIFO
// group dispatch strategy.
func New(mode config.BackpressureMode, limit int, strategy config.FifoGroupStrategy) *Manager {
	if limit <= 0 {
		limit = 1
	}
	return &Manager{
		mode:      mode,
		strategy:  strategy,
		limit:     int64(limit),
		sem:       semaphore.NewWeighted(int64(limit)),
		busyGroup: make(map[string]bool),
	}
}

// groupKey maps a message's FIFO group id to the busyGroup key that
// strategy says it must serialize against: its own group under
// GROUP_PARALLEL (a per-group-only gate), or the shared
// allGroups sentinel under STRICT_SEQUENTIAL, which gates dispatch across
// every FIFO group in the queue, not just within one.
func (m *Manager) groupKey(group string) string {
	if m.strategy == config.StrictSequential {
		return allGroups
	}
	return group
}

// TryAcquire attempts to admit up to n messages at once without blocking,
// returning the number actually granted (0 <= granted <= n). Group
// admission is not considered here; call ClaimGroup per-message once group
// ids are known (e.g. after a receive call returns).
func (m *Manager) TryAcquire(n int) int {
	if n <= 0 {
		return 0
	}
	if m.sem.TryAcquire(int64(n)) {
		m.inFlight.Add(int64(n))
		return n
	}
	var got int64
	for got < int64(n) {
		if !m.sem.TryAcquire(1) {
			break
		}
		got++
	}
	if got > 0 {
		m.inFlight.Add(got)
	}
	return int(got)
}

// Acquire blocks until at least one permit is available or ctx is done,
// then greedily grabs as many of the remaining n-1 as are immediately
// available without blocking further. Returns 0 if ctx is done first.
func (m *Manager) Acquire(ctx context.Context, n int) int {
	if n <= 0 {
		return 0
	}
	if err := m.sem.Acquire(ctx, 1); err != nil {
		return 0
	}
	got := int64(1)
	for got < int64(n) {
		if !m.sem.TryAcquire(1) {
			break
		}
		got++
	}
	m.inFlight.Add(got)
	return int(got)
}

// Release returns n permits to the pool, waking anything blocked in Acquire.
func (m *Manager) Release(n int) {
	if n <= 0 {
		return
	}
	m.sem.Release(int64(n))
	m.inFlight.Add(-int64(n))
}

// ClaimGroup marks group (or, under STRICT_SEQUENTIAL, every group) as
// busy for a message that already holds a permit reserved via
// TryAcquire/Acquire. Returns true if the key was free (and is now
// claimed), false if another message is already in flight for it — the
// caller must Release its permit and redeliver the message immediately via
// change_visibility(timeout=0) rather than buffer it, per spec.md §4.3.
// Always returns true outside FIFO_PRESERVING mode, or for the empty
// (non-FIFO) group.
func (m *Manager) ClaimGroup(group string) bool {
	if m.mode != config.FIFOPreserving || group == "" {
		return true
	}
	key := m.groupKey(group)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.busyGroup[key] {
		return false
	}
	m.busyGroup[key] = true
	return true
}

// ReleaseGroup clears group's busy mark (or the shared STRICT_SEQUENTIAL
// sentinel), allowing the next message to be claimed. Safe to call with an
// empty group id (no-op).
func (m *Manager) ReleaseGroup(group string) {
	if group == "" {
		return
	}
	key := m.groupKey(group)
	m.mu.Lock()
	delete(m.busyGroup, key)
	m.mu.Unlock()
}

// InFlight returns the current number of granted-but-not-released permits.
func (m *Manager) InFlight() int {
	return int(m.inFlight.Load())
}

// Limit returns the configured maximum in-flight count.
func (m *Manager) Limit() int { return int(m.limit) }

// Mode returns the resolved backpressure mode this Manager was built with.
func (m *Manager) Mode() config.BackpressureMode { return m.mode }

// Strategy returns the FIFO group dispatch strategy this Manager was built
// with.
func (m *Manager) Strategy() config.FifoGroupStrategy { return m.strategy }
