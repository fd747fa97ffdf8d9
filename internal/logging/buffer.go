package logging

import (
	"sync"
	"time"
)

// LogEntry is a single structured log line as stored in the ring buffer
// and served over the API.
type LogEntry struct {
	Timestamp  time.Time      `json:"timestamp"`
	Level      string         `json:"level"`
	Module     string         `json:"module"`
	Message    string         `json:"message"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// RingBuffer keeps the most recent log entries in memory. Once the
// capacity is reached, each write evicts the oldest entry. Safe for
// concurrent use.
type RingBuffer struct {
	mu    sync.RWMutex
	limit int
	buf   []LogEntry
	start int
}

// NewRingBuffer creates a buffer holding at most limit entries.
func NewRingBuffer(limit int) *RingBuffer {
	return &RingBuffer{
		limit: limit,
		buf:   make([]LogEntry, 0, limit),
	}
}

// Write appends an entry, evicting the oldest when the buffer is full.
func (rb *RingBuffer) Write(entry LogEntry) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if len(rb.buf) < rb.limit {
		rb.buf = append(rb.buf, entry)
		return
	}
	rb.buf[rb.start] = entry
	rb.start = (rb.start + 1) % rb.limit
}

// ReadAll returns the buffered entries, oldest first.
func (rb *RingBuffer) ReadAll() []LogEntry {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	if len(rb.buf) == 0 {
		return nil
	}

	out := make([]LogEntry, 0, len(rb.buf))
	out = append(out, rb.buf[rb.start:]...)
	out = append(out, rb.buf[:rb.start]...)
	return out
}

// Count returns how many entries are currently buffered.
func (rb *RingBuffer) Count() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return len(rb.buf)
}
