package inventory

import "sync"

// eventLog is a fixed-capacity ring of entries; once full, each append
// evicts the oldest entry.
type eventLog struct {
	mu      sync.RWMutex
	entries []LogEntry
	start   int
	size    int
}

func newEventLog(capacity int) *eventLog {
	if capacity <= 0 {
		capacity = DefaultLogCapacity
	}
	return &eventLog{entries: make([]LogEntry, capacity)}
}

func (l *eventLog) append(e LogEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	capacity := len(l.entries)
	if l.size < capacity {
		l.entries[(l.start+l.size)%capacity] = e
		l.size++
		return
	}
	l.entries[l.start] = e
	l.start = (l.start + 1) % capacity
}

// query returns entries newest first, optionally filtered by product.
// limit <= 0 returns every match.
func (l *eventLog) query(productID string, limit int) []LogEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	capacity := len(l.entries)
	var out []LogEntry
	for i := l.size - 1; i >= 0; i-- {
		e := l.entries[(l.start+i)%capacity]
		if productID != "" && e.ProductID != productID {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

func (l *eventLog) len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.size
}
