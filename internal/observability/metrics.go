package observability

import (
	"fmt"
	"time"
)

// Metrics holds counters derived from the event log.
type Metrics struct {
	ItemsCreated   int            `json:"items_created"`
	ItemsCompleted int            `json:"items_completed"`
	ItemsByStatus  map[string]int `json:"items_by_status"`
	LoopsStarted   int            `json:"loops_started"`
	LoopsFinished  int            `json:"loops_finished"`
	LoopsCancelled int            `json:"loops_cancelled"`
	ArchiveSweeps  int            `json:"archive_sweeps"`
	EventCount     int            `json:"event_count"`
	OldestEvent    *time.Time     `json:"oldest_event,omitempty"`
	NewestEvent    *time.Time     `json:"newest_event,omitempty"`
}

// MetricsCalculator derives metrics from the event log.
type MetricsCalculator interface {
	Calculate(since time.Time) (*Metrics, error)
}

type metricsCalculator struct {
	eventLog EventLog
}

// NewMetricsCalculator creates a MetricsCalculator reading from eventLog.
func NewMetricsCalculator(eventLog EventLog) MetricsCalculator {
	return &metricsCalculator{eventLog: eventLog}
}

// Calculate reads all events since the given time and aggregates them.
func (mc *metricsCalculator) Calculate(since time.Time) (*Metrics, error) {
	events, err := mc.eventLog.Read(EventFilter{Since: &since})
	if err != nil {
		return nil, fmt.Errorf("reading events for metrics: %w", err)
	}

	m := &Metrics{ItemsByStatus: make(map[string]int)}
	m.EventCount = len(events)

	for i, event := range events {
		if i == 0 {
			t := event.Time
			m.OldestEvent = &t
		}
		t := event.Time
		m.NewestEvent = &t

		switch event.Type {
		case "item.created":
			m.ItemsCreated++
		case "item.completed":
			m.ItemsCompleted++
		case "item.status_changed":
			if status, ok := event.Data["status"].(string); ok {
				m.ItemsByStatus[status]++
			}
		case "loop.started":
			m.LoopsStarted++
		case "loop.finished":
			m.LoopsFinished++
		case "loop.cancelled":
			m.LoopsCancelled++
		case "archive.swept":
			m.ArchiveSweeps++
		}
	}

	return m, nil
}
