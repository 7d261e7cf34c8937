package observability

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestLog(t *testing.T) (EventLog, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "events.jsonl")
	log, err := NewJSONLEventLog(path)
	if err != nil {
		t.Fatalf("creating event log: %v", err)
	}
	t.Cleanup(func() { _ = log.Close() })
	return log, path
}

func TestEventLog_WriteAndRead(t *testing.T) {
	log, _ := newTestLog(t)

	now := time.Now().UTC().Truncate(time.Millisecond)
	events := []Event{
		{Time: now, Type: "item.created", Data: map[string]any{"id": "ui-001"}},
		{Time: now.Add(time.Second), Type: "item.completed", Data: map[string]any{"id": "ui-001", "passes": true}},
	}
	for _, e := range events {
		if err := log.Write(e); err != nil {
			t.Fatalf("writing event: %v", err)
		}
	}

	result, err := log.Read(EventFilter{})
	if err != nil {
		t.Fatalf("reading events: %v", err)
	}
	if len(result) != 2 {
		t.Fatalf("expected 2 events, got %d", len(result))
	}
	if result[0].Type != "item.created" || result[1].Type != "item.completed" {
		t.Errorf("events must come back in write order, got %v", result)
	}
	if id, _ := result[0].Data["id"].(string); id != "ui-001" {
		t.Errorf("data must round-trip, got %v", result[0].Data)
	}
}

func TestEventLog_ReadMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "never-written.jsonl")
	log, err := NewJSONLEventLog(path)
	if err != nil {
		t.Fatal(err)
	}
	defer log.Close()
	_ = os.Remove(path)

	events, err := log.Read(EventFilter{})
	if err != nil {
		t.Fatalf("missing file must not be an error, got %v", err)
	}
	if len(events) != 0 {
		t.Errorf("expected no events, got %d", len(events))
	}
}

func TestEventLog_Filters(t *testing.T) {
	log, _ := newTestLog(t)

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i, typ := range []string{"item.created", "item.completed", "loop.started"} {
		e := Event{Time: base.Add(time.Duration(i) * time.Hour), Type: typ}
		if err := log.Write(e); err != nil {
			t.Fatal(err)
		}
	}

	byType, err := log.Read(EventFilter{Type: "item.completed"})
	if err != nil {
		t.Fatal(err)
	}
	if len(byType) != 1 || byType[0].Type != "item.completed" {
		t.Errorf("type filter failed: %v", byType)
	}

	since := base.Add(30 * time.Minute)
	until := base.Add(90 * time.Minute)
	windowed, err := log.Read(EventFilter{Since: &since, Until: &until})
	if err != nil {
		t.Fatal(err)
	}
	if len(windowed) != 1 || windowed[0].Type != "item.completed" {
		t.Errorf("time window filter failed: %v", windowed)
	}
}

func TestEventLog_SkipsMalformedLines(t *testing.T) {
	log, path := newTestLog(t)

	if err := log.Write(Event{Time: time.Now().UTC(), Type: "item.created"}); err != nil {
		t.Fatal(err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString("{this is not json}\n"); err != nil {
		t.Fatal(err)
	}
	f.Close()
	if err := log.Write(Event{Time: time.Now().UTC(), Type: "item.completed"}); err != nil {
		t.Fatal(err)
	}

	events, err := log.Read(EventFilter{})
	if err != nil {
		t.Fatalf("malformed lines must be skipped, not fatal: %v", err)
	}
	if len(events) != 2 {
		t.Errorf("expected the 2 valid events, got %d", len(events))
	}
}
