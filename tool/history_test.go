package tool

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func newSQLiteTestHistory(t *testing.T) *SQLiteHistory {
	t.Helper()
	h, err := NewSQLiteHistory(filepath.Join(t.TempDir(), "nested", "history.db"))
	if err != nil {
		t.Fatalf("NewSQLiteHistory() error = %v", err)
	}
	t.Cleanup(func() {
		_ = h.Close()
	})
	return h
}

func exerciseHistory(t *testing.T, h HistoryStore) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	records := []ExecutionRecord{
		{ID: "1", PluginID: "render", StartedAt: base, Duration: 120 * time.Millisecond, Success: true},
		{ID: "2", PluginID: "save", StartedAt: base.Add(time.Second), Duration: 5 * time.Millisecond, ErrorCode: ErrorCodeExecutionFailed, Error: "disk full"},
		{ID: "3", PluginID: "render", StartedAt: base.Add(2 * time.Second), Duration: 80 * time.Millisecond, Success: true},
	}
	for _, rec := range records {
		if err := h.Record(ctx, rec); err != nil {
			t.Fatalf("Record(%s) error = %v", rec.ID, err)
		}
	}

	all, err := h.List(ctx, "", 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 3 || all[0].ID != "3" || all[2].ID != "1" {
		t.Fatalf("List() = %+v, want newest first", all)
	}

	renders, err := h.List(ctx, "render", 1)
	if err != nil {
		t.Fatalf("List(render) error = %v", err)
	}
	if len(renders) != 1 || renders[0].ID != "3" {
		t.Fatalf("List(render, 1) = %+v", renders)
	}
	if renders[0].Duration != 80*time.Millisecond || !renders[0].StartedAt.Equal(base.Add(2*time.Second)) {
		t.Errorf("record = %+v", renders[0])
	}

	failed, _ := h.List(ctx, "save", 0)
	if len(failed) != 1 || failed[0].Success || failed[0].Error != "disk full" || failed[0].ErrorCode != ErrorCodeExecutionFailed {
		t.Errorf("failed record = %+v", failed)
	}
}

func TestMemoryHistory(t *testing.T) {
	exerciseHistory(t, NewMemoryHistory())
}

func TestSQLiteHistory(t *testing.T) {
	exerciseHistory(t, newSQLiteTestHistory(t))
}

func TestSQLiteHistoryFromRegistry(t *testing.T) {
	h := newSQLiteTestHistory(t)
	reg := newTestRegistry(t, RegistryConfig{History: h})
	_ = reg.Add(&fakeDefinition{id: "render"})

	for i := 0; i < 2; i++ {
		if _, err := reg.Execute(context.Background(), "render", nil); err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
	}
	recs, err := h.List(context.Background(), "render", 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(recs) != 2 {
		t.Errorf("records = %d, want 2", len(recs))
	}
}

func TestNewSQLiteHistoryRequiresDSN(t *testing.T) {
	if _, err := NewSQLiteHistory("  "); err == nil {
		t.Fatal("expected error for empty dsn")
	}
}
