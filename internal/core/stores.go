package core

import "github.com/prdflow/prdflow/pkg/models"

// ItemStore is the subset of storage.FileStore that core services need.
// Defining it consumer-side lets tests substitute fakes for the store.
type ItemStore interface {
	Read() ([]models.WorkItem, error)
	Write(items []models.WorkItem) error
	UpdateItem(id string, fn func(models.WorkItem) models.WorkItem) (models.WorkItem, error)
	Transaction(fn func(items *[]models.WorkItem) error) error
}

// ProgressSink mirrors storage.ProgressLog: the token check plus the
// best-effort completion record.
type ProgressSink interface {
	ContainsToken() (bool, error)
	Append(entry string) error
}

// EventLogger is the subset of the observability event log that core
// services use. May be nil when observability is disabled.
type EventLogger interface {
	LogEvent(eventType string, data map[string]any) error
}

// logEvent writes to the event log if one is configured. Telemetry failures
// never propagate.
func logEvent(events EventLogger, eventType string, data map[string]any) {
	if events == nil {
		return
	}
	_ = events.LogEvent(eventType, data)
}
