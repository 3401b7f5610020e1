package alert

import "sync"

// Store is the bounded, append-only alert log. It retains the most recent
// cap alerts, evicting oldest-first, and serializes concurrent appends from
// the rule detector, the scorer bridge and the injection scanner.
type Store struct {
	mu     sync.RWMutex
	alerts []Alert
	cap    int
}

const DefaultCapacity = 100

func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{
		alerts: make([]Alert, 0, capacity),
		cap:    capacity,
	}
}

// Append adds a to the log, dropping the oldest entry once the cap is
// reached. There is no update or delete; alerts are immutable once written.
func (s *Store) Append(a Alert) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.alerts) == s.cap {
		copy(s.alerts, s.alerts[1:])
		s.alerts = s.alerts[:len(s.alerts)-1]
	}
	s.alerts = append(s.alerts, a)
}

// Recent returns the last n alerts in insertion order, oldest first and
// newest last. It returns min(n, Len()) entries; the slice is a copy.
func (s *Store) Recent(n int) []Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n <= 0 || len(s.alerts) == 0 {
		return []Alert{}
	}
	if n > len(s.alerts) {
		n = len(s.alerts)
	}
	out := make([]Alert, n)
	copy(out, s.alerts[len(s.alerts)-n:])
	return out
}

// Len reports the current number of retained alerts.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.alerts)
}
