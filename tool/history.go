package tool

import (
	"context"
	"sync"
	"time"
)

// ExecutionRecord is one entry in the execution history.
type ExecutionRecord struct {
	ID        string        `json:"id"`
	PluginID  string        `json:"plugin_id"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Success   bool          `json:"success"`
	ErrorCode string        `json:"error_code,omitempty"`
	Error     string        `json:"error,omitempty"`
}

// HistoryStore persists execution records.
type HistoryStore interface {
	Record(ctx context.Context, rec ExecutionRecord) error
	// List returns records newest first. An empty pluginID lists every
	// plugin; limit <= 0 means no limit.
	List(ctx context.Context, pluginID string, limit int) ([]ExecutionRecord, error)
	Close() error
}

// MemoryHistory is an in-process HistoryStore.
type MemoryHistory struct {
	mu      sync.Mutex
	records []ExecutionRecord
}

// NewMemoryHistory creates an empty in-memory history.
func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{}
}

// Record appends rec.
func (h *MemoryHistory) Record(ctx context.Context, rec ExecutionRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, rec)
	return nil
}

// List returns matching records newest first.
func (h *MemoryHistory) List(ctx context.Context, pluginID string, limit int) ([]ExecutionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	var out []ExecutionRecord
	for i := len(h.records) - 1; i >= 0; i-- {
		rec := h.records[i]
		if pluginID != "" && rec.PluginID != pluginID {
			continue
		}
		out = append(out, rec)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// Close is a no-op.
func (h *MemoryHistory) Close() error {
	return nil
}
