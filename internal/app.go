// Package internal provides the App struct that wires all prdflow
// components together and initializes the CLI layer.
package internal

import (
	"os"
	"path/filepath"

	"github.com/prdflow/prdflow/internal/cli"
	"github.com/prdflow/prdflow/internal/core"
	"github.com/prdflow/prdflow/internal/integration"
	"github.com/prdflow/prdflow/internal/observability"
	"github.com/prdflow/prdflow/internal/storage"
)

// App holds all service dependencies for prdflow.
type App struct {
	BasePath string
	Config   *core.Config

	// Storage layer
	Store    *storage.FileStore
	Progress *storage.ProgressLog

	// Core services
	Detector *core.CompletionDetector
	Loop     *core.RunLoopManager
	Archiver *core.Archiver

	// Integration
	Dispatcher *integration.AssistantDispatcher

	// Observability
	EventLog    observability.EventLog
	MetricsCalc observability.MetricsCalculator
}

// NewApp creates and wires all components. basePath is the directory holding
// the PRD document, config file, progress log and archives.
func NewApp(basePath string) (*App, error) {
	app := &App{BasePath: basePath}

	// --- Configuration ---
	cfg, err := core.LoadConfig(basePath)
	if err != nil {
		return nil, err
	}
	app.Config = cfg

	// --- Storage layer ---
	app.Store = storage.NewFileStore(basePath, cfg.StoreFile, cfg.Categories)
	progressPath := filepath.Join(basePath, cfg.ProgressFile)
	app.Progress = storage.NewProgressLog(progressPath, cfg.CompletionToken)

	// --- Observability ---
	eventLogPath := filepath.Join(basePath, ".prdflow_events.jsonl")
	app.EventLog, err = observability.NewJSONLEventLog(eventLogPath)
	if err != nil {
		// Non-fatal: disable observability if the log can't be created.
		app.EventLog = nil
	}
	var events core.EventLogger
	if app.EventLog != nil {
		events = observability.Adapter{Log: app.EventLog}
		app.MetricsCalc = observability.NewMetricsCalculator(app.EventLog)
	}

	// --- Integration ---
	app.Dispatcher = integration.NewAssistantDispatcher(integration.AssistantConfig{
		Command:      cfg.AssistantCommand,
		Args:         cfg.AssistantArgs,
		ProgressPath: progressPath,
		WorkDir:      basePath,
	})

	// --- Core services ---
	app.Detector = core.NewCompletionDetector(app.Store, app.Progress, events)
	app.Loop = core.NewRunLoopManager(app.Store, app.Detector, app.Dispatcher, events, cfg.PollInterval, cfg.WaitTimeout)
	app.Archiver = core.NewArchiver(app.Store, filepath.Join(basePath, cfg.ArchiveDir), events)

	// --- Wire CLI package-level variables ---
	cli.BasePath = basePath
	cli.Cfg = cfg
	cli.Store = app.Store
	cli.Progress = app.Progress
	cli.Detector = app.Detector
	cli.Loop = app.Loop
	cli.Archiver = app.Archiver
	cli.EventLog = app.EventLog
	cli.MetricsCalc = app.MetricsCalc

	return app, nil
}

// Close releases resources held by the App, such as the event log file
// handle. Safe to call when EventLog is nil.
func (a *App) Close() error {
	if a.EventLog != nil {
		return a.EventLog.Close()
	}
	return nil
}

// ResolveBasePath determines the data directory. It checks the PRDFLOW_HOME
// env var, then walks up from the current directory looking for a prd.json,
// and falls back to the current directory.
func ResolveBasePath() string {
	if home := os.Getenv("PRDFLOW_HOME"); home != "" {
		return home
	}
	dir, err := os.Getwd()
	if err != nil {
		return "."
	}
	for d := dir; ; {
		if _, err := os.Stat(filepath.Join(d, storage.DefaultFileName)); err == nil {
			return d
		}
		parent := filepath.Dir(d)
		if parent == d {
			break
		}
		d = parent
	}
	return dir
}
