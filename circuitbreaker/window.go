package circuitbreaker

import (
	"sync"
	"sync/atomic"
	"time"
)

type windowCounts struct {
	requests             uint64
	successes            uint64
	failures             uint64
	consecutiveSuccesses uint64
	consecutiveFailures  uint64
}

type bucket struct {
	start     int64
	requests  atomic.Uint64
	successes atomic.Uint64
	failures  atomic.Uint64
}

// window is a sliding time window of request outcomes, used to compute
// the error rate that drives Closed->Open transitions.
type window struct {
	buckets      []bucket
	size         int
	bucketTime   int64
	lastRotation atomic.Int64
	mu           sync.Mutex

	consecutiveSuccesses atomic.Uint64
	consecutiveFailures  atomic.Uint64
}

func newWindow(size int, duration time.Duration) *window {
	if size <= 0 {
		size = 10
	}
	bucketTime := int64(duration) / int64(size)
	now := time.Now().UnixNano()

	w := &window{
		buckets:    make([]bucket, size),
		size:       size,
		bucketTime: bucketTime,
	}
	w.lastRotation.Store(now)
	for i := range w.buckets {
		w.buckets[i].start = now
	}
	return w
}

func (w *window) success() {
	b := w.getCurrentBucket()
	b.requests.Add(1)
	b.successes.Add(1)
	w.consecutiveSuccesses.Add(1)
	w.consecutiveFailures.Store(0)
}

func (w *window) failure() {
	b := w.getCurrentBucket()
	b.requests.Add(1)
	b.failures.Add(1)
	w.consecutiveFailures.Add(1)
	w.consecutiveSuccesses.Store(0)
}

func (w *window) sum() windowCounts {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.rotate(time.Now().UnixNano())

	counts := windowCounts{
		consecutiveSuccesses: w.consecutiveSuccesses.Load(),
		consecutiveFailures:  w.consecutiveFailures.Load(),
	}
	for i := range w.buckets {
		counts.requests += w.buckets[i].requests.Load()
		counts.successes += w.buckets[i].successes.Load()
		counts.failures += w.buckets[i].failures.Load()
	}
	return counts
}

func (w *window) reset() {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now().UnixNano()
	w.lastRotation.Store(now)
	for i := range w.buckets {
		w.buckets[i].start = now
		w.buckets[i].requests.Store(0)
		w.buckets[i].successes.Store(0)
		w.buckets[i].failures.Store(0)
	}
	w.consecutiveSuccesses.Store(0)
	w.consecutiveFailures.Store(0)
}

func (w *window) getCurrentBucket() *bucket {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now().UnixNano()
	w.rotate(now)
	idx := int((now / w.bucketTime) % int64(w.size))
	return &w.buckets[idx]
}

func (w *window) rotate(now int64) {
	lastRotation := w.lastRotation.Load()
	if now-lastRotation < w.bucketTime {
		return
	}
	w.lastRotation.Store(now)

	numExpired := (now - lastRotation) / w.bucketTime
	if numExpired >= int64(w.size) {
		for i := 0; i < w.size; i++ {
			w.buckets[i].start = now
			w.buckets[i].requests.Store(0)
			w.buckets[i].successes.Store(0)
			w.buckets[i].failures.Store(0)
		}
		return
	}

	startIdx := int((lastRotation / w.bucketTime) % int64(w.size))
	for i := int64(1); i <= numExpired; i++ {
		idx := (startIdx + int(i)) % w.size
		w.buckets[idx].start = now
		w.buckets[idx].requests.Store(0)
		w.buckets[idx].successes.Store(0)
		w.buckets[idx].failures.Store(0)
	}
}
