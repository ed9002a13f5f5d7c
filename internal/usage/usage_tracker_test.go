package usage

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestTracker_TrackAggregatesAndPersists(t *testing.T) {
	ws := t.TempDir()
	tracker, err := NewTracker(ws)
	if err != nil {
		t.Fatalf("NewTracker: %v", err)
	}
	defer tracker.Close()

	ctx := WithSession(context.Background(), "sess_1")
	tracker.Track(ctx, "gemini-2.5-flash", 10, 5, OperationTurn)
	tracker.Track(ctx, "gemini-2.5-flash", 2, 3, OperationTurn)
	tracker.Track(context.Background(), "gemini-2.5-flash-image", 4, 0, OperationIllustration)

	stats := tracker.Stats()
	if stats.Total.Input != 16 || stats.Total.Output != 8 || stats.Total.Total != 24 {
		t.Fatalf("Total=%+v, want input=16 output=8 total=24", stats.Total)
	}
	if stats.Requests != 3 {
		t.Fatalf("Requests=%d, want 3", stats.Requests)
	}
	if got := stats.ByModel["gemini-2.5-flash"]; got.Total != 20 {
		t.Fatalf("ByModel[gemini-2.5-flash]=%+v, want total=20", got)
	}
	if got := stats.ByOperation["illustration"]; got.Total != 4 {
		t.Fatalf("ByOperation[illustration]=%+v, want total=4", got)
	}
	if got := stats.BySession["sess_1"]; got.Total != 20 {
		t.Fatalf("BySession[sess_1]=%+v, want total=20", got)
	}
	if got := stats.BySession[NoSession]; got.Total != 4 {
		t.Fatalf("BySession[none]=%+v, want total=4", got)
	}

	if err := tracker.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(ws, ".ptable", "usage.json"))
	if err != nil {
		t.Fatalf("read usage.json: %v", err)
	}
	var persisted UsageData
	if err := json.Unmarshal(data, &persisted); err != nil {
		t.Fatalf("unmarshal usage.json: %v", err)
	}
	if persisted.Aggregate.Total.Total != 24 {
		t.Fatalf("persisted total=%d, want 24", persisted.Aggregate.Total.Total)
	}
}

func TestTracker_ReloadsPersistedData(t *testing.T) {
	ws := t.TempDir()
	first, err := NewTracker(ws)
	if err != nil {
		t.Fatalf("NewTracker: %v", err)
	}
	first.Track(context.Background(), "m", 7, 3, OperationPlan)
	if err := first.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	second, err := NewTracker(ws)
	if err != nil {
		t.Fatalf("NewTracker: %v", err)
	}
	defer second.Close()
	if got := second.Stats().ByOperation["plan"]; got.Total != 10 {
		t.Fatalf("reloaded plan usage=%+v, want total=10", got)
	}
}

func TestTracker_CorruptFileStartsEmpty(t *testing.T) {
	ws := t.TempDir()
	dir := filepath.Join(ws, ".ptable")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "usage.json"), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	tracker, err := NewTracker(ws)
	if err != nil {
		t.Fatalf("NewTracker: %v", err)
	}
	defer tracker.Close()
	if tracker.Stats().Requests != 0 {
		t.Fatalf("expected empty stats")
	}
	tracker.Track(context.Background(), "m", 1, 1, OperationGenerate)
}

func TestTracker_DebouncedSave(t *testing.T) {
	old := saveDelay
	saveDelay = 10 * time.Millisecond
	defer func() { saveDelay = old }()

	ws := t.TempDir()
	tracker, err := NewTracker(ws)
	if err != nil {
		t.Fatalf("NewTracker: %v", err)
	}
	defer tracker.Close()

	tracker.Track(context.Background(), "m", 1, 2, OperationTurn)

	path := tracker.Path()
	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, err := os.Stat(path); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("usage.json not written by debounced save")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestTracker_ContextHelpers(t *testing.T) {
	ws := t.TempDir()
	tracker, err := NewTracker(ws)
	if err != nil {
		t.Fatalf("NewTracker: %v", err)
	}
	defer tracker.Close()

	ctx := NewContext(context.Background(), tracker)
	if got := FromContext(ctx); got != tracker {
		t.Fatalf("FromContext mismatch")
	}
	if got := FromContext(context.Background()); got != nil {
		t.Fatalf("FromContext on bare context = %v, want nil", got)
	}

	if got := SessionFromContext(ctx); got != NoSession {
		t.Fatalf("SessionFromContext = %q, want %q", got, NoSession)
	}
	if got := SessionFromContext(WithSession(ctx, "")); got != NoSession {
		t.Fatalf("empty session id should not tag the context, got %q", got)
	}
	if got := SessionFromContext(WithSession(ctx, "abc")); got != "abc" {
		t.Fatalf("SessionFromContext = %q, want abc", got)
	}
}
