package core

import (
	"fmt"
	"sync"

	"github.com/prdflow/prdflow/internal/storage"
	"github.com/prdflow/prdflow/pkg/models"
)

// fakeStore is an in-memory ItemStore.
type fakeStore struct {
	mu      sync.Mutex
	items   []models.WorkItem
	readErr error

	updateCalls []string // ids passed to UpdateItem, in order
}

func newFakeStore(items ...models.WorkItem) *fakeStore {
	return &fakeStore{items: items}
}

func (f *fakeStore) Read() ([]models.WorkItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return nil, f.readErr
	}
	out := make([]models.WorkItem, len(f.items))
	for i, item := range f.items {
		out[i] = item.Clone()
	}
	return out, nil
}

func (f *fakeStore) Write(items []models.WorkItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = items
	return nil
}

func (f *fakeStore) UpdateItem(id string, fn func(models.WorkItem) models.WorkItem) (models.WorkItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateCalls = append(f.updateCalls, id)
	for i, item := range f.items {
		if item.ID == id {
			f.items[i] = fn(item.Clone())
			return f.items[i].Clone(), nil
		}
	}
	return models.WorkItem{}, fmt.Errorf("item %s: %w", id, storage.ErrNotFound)
}

func (f *fakeStore) Transaction(fn func(items *[]models.WorkItem) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	snapshot := make([]models.WorkItem, len(f.items))
	copy(snapshot, f.items)
	if err := fn(&f.items); err != nil {
		f.items = snapshot
		return err
	}
	return nil
}

func (f *fakeStore) get(id string) (models.WorkItem, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, item := range f.items {
		if item.ID == id {
			return item.Clone(), true
		}
	}
	return models.WorkItem{}, false
}

// fakeProgress is an in-memory ProgressSink.
type fakeProgress struct {
	mu       sync.Mutex
	hasToken bool
	tokenErr error
	appended []string
}

func (f *fakeProgress) ContainsToken() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hasToken, f.tokenErr
}

func (f *fakeProgress) Append(entry string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appended = append(f.appended, entry)
	return nil
}

// fakeEvents records event types in order.
type fakeEvents struct {
	mu    sync.Mutex
	types []string
}

func (f *fakeEvents) LogEvent(eventType string, data map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.types = append(f.types, eventType)
	return nil
}

func (f *fakeEvents) recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.types))
	copy(out, f.types)
	return out
}

// fakeDispatcher delegates to a function, or records and succeeds.
type fakeDispatcher struct {
	mu         sync.Mutex
	dispatched []string
	fn         func(item models.WorkItem) error
}

func (f *fakeDispatcher) Dispatch(item models.WorkItem) error {
	f.mu.Lock()
	f.dispatched = append(f.dispatched, item.ID)
	f.mu.Unlock()
	if f.fn != nil {
		return f.fn(item)
	}
	return nil
}

func testItem(id, category string, status models.Status) models.WorkItem {
	item := models.NewWorkItem(id, category, "a perfectly reasonable description")
	item.Status = status
	return item
}
