// Package monitor implements the traffic observation pipeline: a bounded
// ring buffer of request records, windowed aggregation of traffic
// statistics, and the periodic detection tick.
package monitor

import (
	"sync"
	"time"

	"github.com/medichain/medguard/internal/logging"
)

// Record is one observed HTTP request. It is written once at arrival,
// completed once when the response has been sent, and immutable afterward.
type Record struct {
	Seq           uint64            `json:"seq"`
	TS            time.Time         `json:"ts"`
	Source        string            `json:"source"`
	Method        string            `json:"method"`
	Path          string            `json:"path"`
	Headers       map[string]string `json:"headers,omitempty"`
	Query         map[string]string `json:"query,omitempty"`
	ContentLength int64             `json:"content_length"`

	// Set by Complete.
	Status    int     `json:"status"`
	LatencyMS float64 `json:"latency_ms"`
	BodySize  int     `json:"body_size"`
	Completed bool    `json:"completed"`
}

// Handle identifies a record for later completion. Stale handles (evicted
// records) are tolerated.
type Handle struct {
	seq uint64
}

// Recorder owns the ring buffer: a fixed backing array indexed circularly,
// so eviction at capacity is an overwrite, never a shift. All access goes
// through its methods; the aggregator only ever sees copies.
type Recorder struct {
	mu       sync.RWMutex
	buf      []Record // len == capacity, slots reused in place
	capacity int
	head     int    // index of the oldest record
	count    int    // number of live records
	firstSeq uint64 // sequence of the record at head
	nextSeq  uint64
}

const DefaultRingCapacity = 1000

func NewRecorder(capacity int) *Recorder {
	if capacity <= 0 {
		capacity = DefaultRingCapacity
	}
	return &Recorder{
		buf:      make([]Record, capacity),
		capacity: capacity,
	}
}

// slot maps an offset from the oldest record to a backing-array index.
func (r *Recorder) slot(offset int) int {
	return (r.head + offset) % r.capacity
}

// Record appends a new request record and returns its completion handle.
// At capacity the oldest record is overwritten in place; cost is constant
// regardless of buffer size. It must never fail or panic out to the
// request path.
func (r *Recorder) Record(rec Record) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec.Seq = r.nextSeq
	if rec.TS.IsZero() {
		rec.TS = time.Now()
	}
	r.nextSeq++

	if r.count == r.capacity {
		r.buf[r.head] = rec
		r.head = (r.head + 1) % r.capacity
		r.firstSeq++
		return Handle{seq: rec.Seq}
	}
	r.buf[r.slot(r.count)] = rec
	r.count++
	return Handle{seq: rec.Seq}
}

// Complete fills in the response half of the identified record. Completing
// an evicted record is a logged no-op; observability never breaks the
// request path.
func (r *Recorder) Complete(h Handle, status int, latencyMS float64, bodySize int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if h.seq < r.firstSeq || h.seq >= r.nextSeq {
		logging.L.Debugw("stale record handle, buffer rolled over", "seq", h.seq)
		return
	}
	rec := &r.buf[r.slot(int(h.seq-r.firstSeq))]
	rec.Status = status
	rec.LatencyMS = latencyMS
	rec.BodySize = bodySize
	rec.Completed = true
}

// Snapshot returns a copy of every record newer than now-window, oldest
// first. The copy is taken under the read lock so statistics are always
// computed from a single consistent view of the buffer.
func (r *Recorder) Snapshot(window time.Duration, now time.Time) []Record {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cutoff := now.Add(-window)
	out := make([]Record, 0, r.count)
	for i := 0; i < r.count; i++ {
		rec := r.buf[r.slot(i)]
		if !rec.TS.Before(cutoff) && !rec.TS.After(now) {
			out = append(out, rec)
		}
	}
	return out
}

// Recent returns the newest n records, oldest first.
func (r *Recorder) Recent(n int) []Record {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if n <= 0 || r.count == 0 {
		return []Record{}
	}
	if n > r.count {
		n = r.count
	}
	out := make([]Record, 0, n)
	for i := r.count - n; i < r.count; i++ {
		out = append(out, r.buf[r.slot(i)])
	}
	return out
}

// Len reports the number of buffered records.
func (r *Recorder) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.count
}
