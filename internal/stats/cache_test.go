package stats

import (
	"fmt"
	"testing"
	"time"
)

func TestSnapshotCounts(t *testing.T) {
	c := NewCache(time.Minute)
	now := time.Now()
	c.RecordDetection("reflected", now)
	c.RecordDetection("reflected", now)
	c.RecordDetection("stored", now)

	view := c.Snapshot()
	if view.Total != 3 {
		t.Errorf("Total = %d, want 3", view.Total)
	}
	if view.Counts["reflected"] != 2 || view.Counts["stored"] != 1 {
		t.Errorf("Counts = %v", view.Counts)
	}
	if len(view.Recent) != 3 {
		t.Errorf("Recent = %d entries, want 3", len(view.Recent))
	}
}

func TestSnapshotTTL(t *testing.T) {
	c := NewCache(time.Minute)
	clock := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c.nowFunc = func() time.Time { return clock }

	c.RecordDetection("reflected", clock)
	first := c.Snapshot()
	if first.LastRefreshed != clock {
		t.Fatalf("LastRefreshed = %v, want %v", first.LastRefreshed, clock)
	}

	// Inside the TTL the cached view is served untouched.
	clock = clock.Add(30 * time.Second)
	if got := c.Snapshot(); got.LastRefreshed != first.LastRefreshed {
		t.Error("view recomputed inside TTL")
	}

	// Past the TTL a read recomputes even without new detections.
	clock = clock.Add(time.Minute)
	if got := c.Snapshot(); got.LastRefreshed != clock {
		t.Errorf("LastRefreshed = %v, want refresh at %v", got.LastRefreshed, clock)
	}
}

func TestRecordDetectionInvalidates(t *testing.T) {
	c := NewCache(time.Hour)
	clock := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c.nowFunc = func() time.Time { return clock }

	c.RecordDetection("reflected", clock)
	if got := c.Snapshot(); got.Total != 1 {
		t.Fatalf("Total = %d, want 1", got.Total)
	}

	// A fresh detection must show up immediately, TTL notwithstanding.
	clock = clock.Add(time.Second)
	c.RecordDetection("stored", clock)
	got := c.Snapshot()
	if got.Total != 2 || got.Counts["stored"] != 1 {
		t.Errorf("view = %+v, want the new detection visible", got)
	}
}

func TestJournalBounded(t *testing.T) {
	c := NewCache(time.Minute)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < journalCap+50; i++ {
		c.RecordDetection(fmt.Sprintf("t%d", i%3), base.Add(time.Duration(i)*time.Second))
	}

	view := c.Snapshot()
	if view.Total != journalCap {
		t.Errorf("Total = %d, want journal capped at %d", view.Total, journalCap)
	}
	if len(view.Recent) != recentViewSize {
		t.Errorf("Recent = %d entries, want %d", len(view.Recent), recentViewSize)
	}
	// Newest timestamp survives eviction.
	last := view.Recent[len(view.Recent)-1]
	want := base.Add(time.Duration(journalCap+49) * time.Second)
	if !last.Equal(want) {
		t.Errorf("newest recent = %v, want %v", last, want)
	}
}
