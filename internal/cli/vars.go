package cli

import (
	"time"

	"github.com/prdflow/prdflow/internal/core"
	"github.com/prdflow/prdflow/internal/observability"
	"github.com/prdflow/prdflow/internal/storage"
)

// Service instances, set during app initialization in app.go.
var (
	BasePath string
	Cfg      *core.Config

	Store    *storage.FileStore
	Progress *storage.ProgressLog
	Detector *core.CompletionDetector
	Loop     *core.RunLoopManager
	Archiver *core.Archiver

	EventLog    observability.EventLog
	MetricsCalc observability.MetricsCalculator
)

// logCLIEvent records a telemetry event if the event log is configured.
func logCLIEvent(eventType string, data map[string]any) {
	if EventLog == nil {
		return
	}
	_ = EventLog.Write(observability.Event{Time: time.Now().UTC(), Type: eventType, Data: data})
}
