package logging

import (
	"fmt"
	"log"
	"sync"
	"time"
)

// LogEntry represents a single log entry
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
}

// LogStore keeps recent log entries in memory so they can be served over the
// API, while still writing everything through the standard log package.
type LogStore struct {
	entries []LogEntry
	mu      sync.RWMutex
	maxSize int // maximum number of entries to keep (0 = unlimited)
}

// NewLogStore creates a new log store
func NewLogStore(maxSize int) *LogStore {
	return &LogStore{
		entries: make([]LogEntry, 0),
		maxSize: maxSize,
	}
}

// Add adds a log entry to the store
func (ls *LogStore) Add(level, message string) {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	ls.entries = append(ls.entries, LogEntry{
		Timestamp: time.Now(),
		Level:     level,
		Message:   message,
	})

	// Trim oldest entries past maxSize
	if ls.maxSize > 0 && len(ls.entries) > ls.maxSize {
		ls.entries = ls.entries[len(ls.entries)-ls.maxSize:]
	}
}

// GetAll returns a copy of all stored entries
func (ls *LogStore) GetAll() []LogEntry {
	ls.mu.RLock()
	defer ls.mu.RUnlock()

	result := make([]LogEntry, len(ls.entries))
	copy(result, ls.entries)
	return result
}

// Clear removes all stored entries
func (ls *LogStore) Clear() {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	ls.entries = ls.entries[:0]
}

// LogAndStore logs a message via the standard log package and stores it
func (ls *LogStore) LogAndStore(level, format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)
	log.Printf("[%s] %s", level, message)
	ls.Add(level, message)
}
