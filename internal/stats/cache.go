// Package stats keeps the detection journal behind the dashboard: per
// attack-subtype counts and recent detection timestamps, served through a
// TTL cache that is invalidated whenever a new detection lands.
package stats

import (
	"sync"
	"time"
)

// Detection is one persisted positive verdict.
type Detection struct {
	Subtype string    `json:"subtype"`
	TS      time.Time `json:"ts"`
}

// View is the cached dashboard-facing snapshot.
type View struct {
	Counts        map[string]int `json:"counts_by_type"`
	Recent        []time.Time    `json:"recent_detections"`
	Total         int            `json:"total"`
	LastRefreshed time.Time      `json:"last_refreshed"`
}

const (
	DefaultTTL     = 5 * time.Minute
	journalCap     = 1000
	recentViewSize = 20
)

// Cache wraps the journal with TTL semantics: reads inside the TTL return
// the cached view; a new detection or TTL expiry forces recomputation.
// Staleness is never an error condition.
type Cache struct {
	mu      sync.Mutex
	ttl     time.Duration
	journal []Detection

	view     View
	computed time.Time
	haveView bool
	nowFunc  func() time.Time
}

func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{ttl: ttl, nowFunc: time.Now}
}

// RecordDetection appends to the journal (bounded, oldest-first eviction)
// and invalidates the cached view so the next read recomputes.
func (c *Cache) RecordDetection(subtype string, ts time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.journal) == journalCap {
		copy(c.journal, c.journal[1:])
		c.journal = c.journal[:len(c.journal)-1]
	}
	c.journal = append(c.journal, Detection{Subtype: subtype, TS: ts})
	c.haveView = false
}

// Snapshot returns the current view, recomputing when the cache is invalid
// or older than the TTL.
func (c *Cache) Snapshot() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.nowFunc()
	if c.haveView && now.Sub(c.computed) < c.ttl {
		return c.view
	}

	view := View{
		Counts:        make(map[string]int),
		Recent:        []time.Time{},
		LastRefreshed: now,
	}
	for _, d := range c.journal {
		view.Counts[d.Subtype]++
	}
	view.Total = len(c.journal)
	start := len(c.journal) - recentViewSize
	if start < 0 {
		start = 0
	}
	for _, d := range c.journal[start:] {
		view.Recent = append(view.Recent, d.TS)
	}

	c.view = view
	c.computed = now
	c.haveView = true
	return view
}
