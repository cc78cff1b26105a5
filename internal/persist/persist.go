package persist

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pulsegrid/biometric_replay_server/internal/models"
)

// DefaultBatchSize is how many records accumulate before an automatic flush.
const DefaultBatchSize = 10

// Recorder buffers accepted events in memory and flushes them to a JSON array
// file once the batch size is reached. Each flush merges the buffer with the
// existing file content and replaces the file atomically (write to a temp
// path, then rename), so a concurrent reader never observes a torn array.
//
// A flush failure keeps the buffer intact; the records are retried on the
// next trigger. Partial batches stay in memory until Flush or Close.
type Recorder struct {
	mu        sync.Mutex
	buf       []models.Event
	batchSize int
	path      string
}

// NewRecorder creates a recorder writing to path, flushing every batchSize
// records (DefaultBatchSize if <= 0).
func NewRecorder(path string, batchSize int) *Recorder {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Recorder{
		batchSize: batchSize,
		path:      path,
	}
}

// Record buffers one event, flushing when the batch size is reached.
func (r *Recorder) Record(ev models.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.buf = append(r.buf, ev)
	if len(r.buf) < r.batchSize {
		return nil
	}
	return r.flushLocked()
}

// Flush writes any buffered records to disk immediately.
func (r *Recorder) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.flushLocked()
}

// Close performs the final flush of a partial batch.
func (r *Recorder) Close() error {
	return r.Flush()
}

// Reset drops the in-memory buffer and removes the buffer file.
func (r *Recorder) Reset() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.buf = nil
	if err := os.Remove(r.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Pending returns the number of buffered, unflushed records.
func (r *Recorder) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.buf)
}

func (r *Recorder) flushLocked() error {
	if len(r.buf) == 0 {
		return nil
	}

	records := r.loadExisting()
	records = append(records, r.buf...)

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode records: %w", err)
	}

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create buffer dir: %w", err)
	}

	// Temp file in the same directory so the rename stays on one filesystem.
	tmp, err := os.CreateTemp(dir, ".pulse-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), r.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace buffer file: %w", err)
	}

	r.buf = r.buf[:0]
	return nil
}

// loadExisting reads the current buffer file. Corrupt or missing content is
// treated as empty rather than blocking the flush.
func (r *Recorder) loadExisting() []models.Event {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return nil
	}
	var records []models.Event
	if err := json.Unmarshal(data, &records); err != nil {
		return nil
	}
	return records
}
