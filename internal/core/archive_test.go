package core

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/prdflow/prdflow/pkg/models"
)

func TestIsArchivable(t *testing.T) {
	item := testItem("ui-001", "ui", models.StatusCompleted)
	item.Passes = true
	if !IsArchivable(item) {
		t.Error("completed and passing must be archivable")
	}

	item.Passes = false
	if IsArchivable(item) {
		t.Error("completed but failing must not be archivable")
	}

	item = testItem("ui-001", "ui", models.StatusInReview)
	item.Passes = true
	if IsArchivable(item) {
		t.Error("passing but not completed must not be archivable")
	}
}

// TestProperty_ExtractArchivablePartitions verifies the sweep is a clean
// partition: nothing lost, nothing duplicated, order preserved.
func TestProperty_ExtractArchivablePartitions(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		count := rapid.IntRange(0, 20).Draw(t, "count")
		items := make([]models.WorkItem, count)
		for i := range items {
			items[i] = testItem(
				rapid.StringMatching(`[a-z]{2,6}-[0-9]{3}`).Draw(t, "id"),
				"ui",
				rapid.SampledFrom(models.Statuses).Draw(t, "status"),
			)
			items[i].Passes = rapid.Bool().Draw(t, "passes")
		}

		archivable, remaining := ExtractArchivable(items)
		if len(archivable)+len(remaining) != len(items) {
			t.Fatalf("partition lost items: %d + %d != %d", len(archivable), len(remaining), len(items))
		}
		for _, item := range archivable {
			if !item.IsArchivable() {
				t.Fatalf("non-archivable item %s in archivable partition", item.ID)
			}
		}
		for _, item := range remaining {
			if item.IsArchivable() {
				t.Fatalf("archivable item %s in remaining partition", item.ID)
			}
		}
	})
}

func TestArchiveFileName(t *testing.T) {
	date := time.Date(2026, 3, 9, 15, 30, 0, 0, time.UTC)
	if got := ArchiveFileName(date); got != "archive-2026-03-09.json" {
		t.Errorf("expected archive-2026-03-09.json, got %s", got)
	}
}

func TestSaveToArchive_EmptyIsNoOp(t *testing.T) {
	dir := t.TempDir()
	a := NewArchiver(newFakeStore(), dir, nil)

	path, err := a.SaveToArchive(nil, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if path != "" {
		t.Errorf("expected empty path for no-op, got %s", path)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Error("no-op must not create any file")
	}
}

func TestSaveToArchive_MergesByID(t *testing.T) {
	dir := t.TempDir()
	a := NewArchiver(newFakeStore(), dir, nil)
	date := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)

	first := testItem("ui-001", "ui", models.StatusCompleted)
	first.Passes = true
	if _, err := a.SaveToArchive([]models.WorkItem{first}, date); err != nil {
		t.Fatal(err)
	}

	// Same id again with new content, plus a new item.
	updated := first
	updated.Description = "a rather different description now"
	second := testItem("ui-002", "ui", models.StatusCompleted)
	second.Passes = true
	path, err := a.SaveToArchive([]models.WorkItem{updated, second}, date)
	if err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var archived []models.WorkItem
	if err := json.Unmarshal(data, &archived); err != nil {
		t.Fatal(err)
	}

	if len(archived) != 2 {
		t.Fatalf("expected 2 items after merge, got %d", len(archived))
	}
	if archived[0].ID != "ui-001" || archived[0].Description != updated.Description {
		t.Errorf("colliding id must take the new content, got %+v", archived[0])
	}
	if archived[1].ID != "ui-002" {
		t.Errorf("new id must be appended, got %+v", archived[1])
	}
}

func TestArchiveCompleted(t *testing.T) {
	done := testItem("ui-001", "ui", models.StatusCompleted)
	done.Passes = true
	doneButFailing := testItem("ui-002", "ui", models.StatusCompleted)
	open := testItem("ui-003", "ui", models.StatusInProgress)

	store := newFakeStore(done, doneButFailing, open)
	events := &fakeEvents{}
	a := NewArchiver(store, t.TempDir(), events)

	result, err := a.ArchiveCompleted()
	if err != nil {
		t.Fatal(err)
	}
	if result.ArchivedCount != 1 {
		t.Errorf("expected 1 archived, got %d", result.ArchivedCount)
	}
	if result.RemainingItems != 2 {
		t.Errorf("expected 2 remaining, got %d", result.RemainingItems)
	}

	items, _ := store.Read()
	if len(items) != 2 || items[0].ID != "ui-002" || items[1].ID != "ui-003" {
		t.Errorf("document must keep ui-002 and ui-003 in order, got %v", items)
	}

	types := events.recorded()
	if len(types) != 1 || types[0] != "archive.swept" {
		t.Errorf("expected one archive.swept event, got %v", types)
	}
}

func TestArchiveCompleted_NothingArchivable(t *testing.T) {
	store := newFakeStore(testItem("ui-001", "ui", models.StatusInProgress))
	events := &fakeEvents{}
	a := NewArchiver(store, t.TempDir(), events)

	result, err := a.ArchiveCompleted()
	if err != nil {
		t.Fatal(err)
	}
	if result.ArchivedCount != 0 || result.RemainingItems != 1 {
		t.Errorf("expected 0 archived and 1 remaining, got %+v", result)
	}
	if len(events.recorded()) != 0 {
		t.Error("a no-op sweep must not log events")
	}
}

func TestCleanupOldArchives(t *testing.T) {
	dir := t.TempDir()
	a := NewArchiver(newFakeStore(), dir, nil)

	old := filepath.Join(dir, "archive-2026-01-01.json")
	recent := filepath.Join(dir, "archive-2026-08-25.json")
	unrelated := filepath.Join(dir, "notes.txt")
	for _, p := range []string{old, recent, unrelated} {
		if err := os.WriteFile(p, []byte("[]"), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	ancient := time.Now().AddDate(0, 0, -100)
	if err := os.Chtimes(old, ancient, ancient); err != nil {
		t.Fatal(err)
	}
	nearly := time.Now().AddDate(0, 0, -10)
	if err := os.Chtimes(recent, nearly, nearly); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(unrelated, ancient, ancient); err != nil {
		t.Fatal(err)
	}

	deleted, err := a.CleanupOldArchives(30)
	if err != nil {
		t.Fatal(err)
	}
	if deleted != 1 {
		t.Errorf("expected 1 deletion, got %d", deleted)
	}
	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Error("the 100-day-old archive must be gone")
	}
	if _, err := os.Stat(recent); err != nil {
		t.Error("the 10-day-old archive must survive")
	}
	if _, err := os.Stat(unrelated); err != nil {
		t.Error("non-archive files must never be touched")
	}
}

func TestCleanupOldArchives_RetentionDisabled(t *testing.T) {
	dir := t.TempDir()
	a := NewArchiver(newFakeStore(), dir, nil)

	old := filepath.Join(dir, "archive-2020-01-01.json")
	if err := os.WriteFile(old, []byte("[]"), 0o600); err != nil {
		t.Fatal(err)
	}
	ancient := time.Now().AddDate(-5, 0, 0)
	if err := os.Chtimes(old, ancient, ancient); err != nil {
		t.Fatal(err)
	}

	for _, days := range []int{0, -1} {
		deleted, err := a.CleanupOldArchives(days)
		if err != nil {
			t.Fatal(err)
		}
		if deleted != 0 {
			t.Errorf("retentionDays=%d must disable cleanup, got %d deletions", days, deleted)
		}
	}
	if _, err := os.Stat(old); err != nil {
		t.Error("disabled cleanup must not delete anything")
	}
}

func TestCleanupOldArchives_MissingDir(t *testing.T) {
	a := NewArchiver(newFakeStore(), filepath.Join(t.TempDir(), "nope"), nil)
	deleted, err := a.CleanupOldArchives(30)
	if err != nil {
		t.Fatal(err)
	}
	if deleted != 0 {
		t.Errorf("missing dir must mean 0 deletions, got %d", deleted)
	}
}
