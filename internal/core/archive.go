package core

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prdflow/prdflow/internal/storage"
	"github.com/prdflow/prdflow/pkg/models"
)

// archiveFilePrefix and archiveFileExt frame the dated archive file names:
// archive-YYYY-MM-DD.json.
const (
	archiveFilePrefix = "archive-"
	archiveFileExt    = ".json"
)

// ArchiveResult summarises one ArchiveCompleted sweep.
type ArchiveResult struct {
	ArchivedCount  int
	ArchiveFile    string
	RemainingItems int
}

// Archiver moves terminal items (completed and passing) out of the active
// document into dated, append-only archive files, and prunes old archives
// by retention.
type Archiver struct {
	store  ItemStore
	dir    string
	events EventLogger
}

// NewArchiver creates an archiver writing dated files under dir. events may
// be nil.
func NewArchiver(store ItemStore, dir string, events EventLogger) *Archiver {
	return &Archiver{store: store, dir: dir, events: events}
}

// IsArchivable reports whether the item may leave the active document:
// completed and passing, both at once.
func IsArchivable(item models.WorkItem) bool {
	return item.IsArchivable()
}

// ExtractArchivable partitions the collection into archivable and remaining
// items, preserving relative order within each partition.
func ExtractArchivable(items []models.WorkItem) (archivable, remaining []models.WorkItem) {
	for _, item := range items {
		if IsArchivable(item) {
			archivable = append(archivable, item)
		} else {
			remaining = append(remaining, item)
		}
	}
	return archivable, remaining
}

// ArchiveFileName returns the archive file name for a calendar date.
func ArchiveFileName(date time.Time) string {
	return archiveFilePrefix + date.Format("2006-01-02") + archiveFileExt
}

// SaveToArchive appends items to the archive file for the given date,
// merging by id with the new data winning on collision. Returns the file
// path, or "" when items is empty (no-op, nothing touched).
func (a *Archiver) SaveToArchive(items []models.WorkItem, date time.Time) (string, error) {
	if len(items) == 0 {
		return "", nil
	}

	path := filepath.Join(a.dir, ArchiveFileName(date))

	existing, err := loadArchiveFile(path)
	if err != nil {
		return "", err
	}

	merged := mergeByID(existing, items)
	data, err := json.MarshalIndent(merged, "", "\t")
	if err != nil {
		return "", fmt.Errorf("marshalling archive: %w", err)
	}
	if err := storage.WriteFileAtomic(path, data, 0o600); err != nil {
		return "", fmt.Errorf("saving archive %s: %w", path, err)
	}
	return path, nil
}

// ArchiveCompleted sweeps every archivable item out of the active document
// into today's archive file as one transaction: if the archive write fails,
// the document is left untouched. A no-op when nothing is archivable.
func (a *Archiver) ArchiveCompleted() (ArchiveResult, error) {
	var result ArchiveResult

	err := a.store.Transaction(func(items *[]models.WorkItem) error {
		archivable, remaining := ExtractArchivable(*items)
		result.RemainingItems = len(remaining)
		if len(archivable) == 0 {
			return nil
		}

		path, err := a.SaveToArchive(archivable, time.Now())
		if err != nil {
			return err
		}

		result.ArchivedCount = len(archivable)
		result.ArchiveFile = path
		*items = remaining
		return nil
	})
	if err != nil {
		return ArchiveResult{}, fmt.Errorf("archiving completed items: %w", err)
	}

	if result.ArchivedCount > 0 {
		logEvent(a.events, "archive.swept", map[string]any{
			"archived": result.ArchivedCount,
			"file":     result.ArchiveFile,
		})
	}
	return result, nil
}

// CleanupOldArchives deletes dated archive files whose modification time is
// older than now minus retentionDays. retentionDays <= 0 disables cleanup
// entirely: zero deletions, nothing touched.
func (a *Archiver) CleanupOldArchives(retentionDays int) (int, error) {
	if retentionDays <= 0 {
		return 0, nil
	}

	entries, err := os.ReadDir(a.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("listing archives: %w", err)
	}

	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	deleted := 0
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, archiveFilePrefix) || !strings.HasSuffix(name, archiveFileExt) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			path := filepath.Join(a.dir, name)
			if err := os.Remove(path); err != nil {
				return deleted, fmt.Errorf("deleting archive %s: %w", path, err)
			}
			deleted++
		}
	}
	return deleted, nil
}

// loadArchiveFile reads an archive collection, tolerating a missing file.
func loadArchiveFile(path string) ([]models.WorkItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading archive %s: %w", path, err)
	}

	var items []models.WorkItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("parsing archive %s: %w", path, err)
	}
	return items, nil
}

// mergeByID overlays updates onto base: colliding ids are replaced in place,
// new ids are appended in order.
func mergeByID(base, updates []models.WorkItem) []models.WorkItem {
	merged := make([]models.WorkItem, len(base))
	copy(merged, base)

	index := make(map[string]int, len(merged))
	for i, item := range merged {
		index[item.ID] = i
	}

	for _, item := range updates {
		if i, ok := index[item.ID]; ok {
			merged[i] = item
		} else {
			index[item.ID] = len(merged)
			merged = append(merged, item)
		}
	}
	return merged
}
