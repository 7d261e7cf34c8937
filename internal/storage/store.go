package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/prdflow/prdflow/pkg/models"
)

// DefaultFileName is the PRD document name under the base path.
const DefaultFileName = "prd.json"

// backupSuffix is appended to the document path for the pre-write snapshot.
const backupSuffix = ".backup"

// FileStore owns the on-disk PRD document. Every read is fully validated and
// every write is validate-then-backup-then-atomic-write, with a restore from
// the backup if the write itself fails. A mutex serializes all access within
// the process; safety under concurrent external writers is not claimed.
type FileStore struct {
	mu         sync.Mutex
	path       string
	categories []string
}

// NewFileStore creates a store for the document at basePath/fileName.
// categories is the configured closed set used for validation.
func NewFileStore(basePath, fileName string, categories []string) *FileStore {
	if fileName == "" {
		fileName = DefaultFileName
	}
	return &FileStore{
		path:       filepath.Join(basePath, fileName),
		categories: categories,
	}
}

// Path returns the document path.
func (s *FileStore) Path() string { return s.path }

// BackupPath returns the sidecar backup path.
func (s *FileStore) BackupPath() string { return s.path + backupSuffix }

// Initialize reports the document path if the document exists. A missing
// document is a normal "no store yet" state surfaced as ErrNotFound, not a
// crash: callers decide whether to create one.
func (s *FileStore) Initialize() (string, error) {
	if _, err := os.Stat(s.path); err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("PRD document %s: %w", s.path, ErrNotFound)
		}
		return "", fmt.Errorf("checking PRD document: %w", err)
	}
	return s.path, nil
}

// Create writes an empty collection, failing if the document already exists.
func (s *FileStore) Create() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.path); err == nil {
		return fmt.Errorf("PRD document %s already exists", s.path)
	}
	return s.persist([]models.WorkItem{})
}

// Read loads, parses, and validates the full collection. Malformed JSON is a
// ParseError, schema violations are ValidationErrors; nothing unvalidated is
// ever returned.
func (s *FileStore) Read() ([]models.WorkItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

// Write validates and persists the full collection. Invalid data is never
// written. The pre-write state is snapshotted to the backup sidecar first;
// if the write fails, the store restores from that snapshot and surfaces a
// WriteError wrapping the cause.
func (s *FileStore) Write(items []models.WorkItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(items)
}

// UpdateItem applies fn to the item with the given id and persists the full
// collection. Returns the updated item, or ErrNotFound if the id is absent
// (in which case the document is untouched).
func (s *FileStore) UpdateItem(id string, fn func(models.WorkItem) models.WorkItem) (models.WorkItem, error) {
	var updated models.WorkItem
	err := s.Transaction(func(items *[]models.WorkItem) error {
		for i, item := range *items {
			if item.ID == id {
				updated = fn(item.Clone())
				(*items)[i] = updated
				return nil
			}
		}
		return fmt.Errorf("item %s: %w", id, ErrNotFound)
	})
	if err != nil {
		return models.WorkItem{}, err
	}
	return updated, nil
}

// AddItem appends an item and persists.
func (s *FileStore) AddItem(item models.WorkItem) error {
	return s.Transaction(func(items *[]models.WorkItem) error {
		for _, existing := range *items {
			if existing.ID == item.ID {
				return fmt.Errorf("item %s already exists", item.ID)
			}
		}
		*items = append(*items, item)
		return nil
	})
}

// RemoveItem deletes the item with the given id and persists. ErrNotFound
// if absent.
func (s *FileStore) RemoveItem(id string) error {
	return s.Transaction(func(items *[]models.WorkItem) error {
		for i, item := range *items {
			if item.ID == id {
				*items = append((*items)[:i], (*items)[i+1:]...)
				return nil
			}
		}
		return fmt.Errorf("item %s: %w", id, ErrNotFound)
	})
}

// Transaction reads the collection, snapshots the on-disk state, lets fn
// mutate the in-memory collection arbitrarily, and persists the result as
// one unit. If fn or the persist step fails, the pre-transaction state is
// restored and the error re-raised. This is the only primitive that commits
// multiple logical edits atomically; the single-item helpers are one-line
// transactions.
func (s *FileStore) Transaction(fn func(items *[]models.WorkItem) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.read()
	if err != nil {
		return err
	}

	backedUp := s.backup()

	if err := fn(&items); err != nil {
		if backedUp {
			s.restore()
		}
		return err
	}

	if err := s.write(items); err != nil {
		// write already restored from its own snapshot on failure.
		return err
	}
	return nil
}

// read loads and validates without locking. Callers hold s.mu.
func (s *FileStore) read() ([]models.WorkItem, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("PRD document %s: %w", s.path, ErrNotFound)
		}
		return nil, fmt.Errorf("reading PRD document: %w", err)
	}

	var items []models.WorkItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, &ParseError{Path: s.path, Err: err}
	}
	if err := models.ValidateCollection(items, s.categories); err != nil {
		return nil, err
	}
	if items == nil {
		items = []models.WorkItem{}
	}
	return items, nil
}

// write validates, snapshots, and persists without locking. Callers hold s.mu.
func (s *FileStore) write(items []models.WorkItem) error {
	if err := models.ValidateCollection(items, s.categories); err != nil {
		return err
	}

	backedUp := s.backup()

	if err := s.persist(items); err != nil {
		if backedUp {
			s.restore()
		}
		return &WriteError{Path: s.path, Err: err}
	}
	return nil
}

// persist serializes tab-indented and writes via temp file + rename so the
// document is never observed half-written.
func (s *FileStore) persist(items []models.WorkItem) error {
	data, err := json.MarshalIndent(items, "", "\t")
	if err != nil {
		return fmt.Errorf("marshalling collection: %w", err)
	}
	return WriteFileAtomic(s.path, data, 0o600)
}

// backup snapshots the current on-disk document to the sidecar. Best-effort:
// a failure here (including "no document yet") never blocks the write.
func (s *FileStore) backup() bool {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return false
	}
	if err := os.WriteFile(s.BackupPath(), data, 0o600); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to snapshot %s: %v\n", s.path, err)
		return false
	}
	return true
}

// restore copies the backup sidecar back over the document. Failures are
// logged, not escalated, to avoid masking the original error.
func (s *FileStore) restore() {
	data, err := os.ReadFile(s.BackupPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to read backup for %s: %v\n", s.path, err)
		return
	}
	if err := WriteFileAtomic(s.path, data, 0o600); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to restore %s from backup: %v\n", s.path, err)
	}
}

// WriteFileAtomic writes data via a temp file in the same directory followed
// by a rename, so the target is replaced all-or-nothing.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	if len(data) > 0 && data[len(data)-1] != '\n' {
		data = append(data, '\n')
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, perm); err != nil {
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
