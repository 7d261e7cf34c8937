// Package integration connects prdflow to external tools, primarily the
// coding-assistant CLI that items are delegated to.
package integration

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/prdflow/prdflow/pkg/models"
)

// AssistantConfig describes how to launch the external assistant CLI.
type AssistantConfig struct {
	Command      string
	Args         []string
	ProgressPath string // assistant output is appended here
	WorkDir      string
}

// AssistantDispatcher launches the configured assistant CLI for a work item.
// Dispatch is fire-and-continue: the process is started, its output is wired
// to the progress log, and completion is observed only through the
// completion detector's signals.
type AssistantDispatcher struct {
	cfg AssistantConfig
}

// NewAssistantDispatcher creates a dispatcher for the given assistant.
func NewAssistantDispatcher(cfg AssistantConfig) *AssistantDispatcher {
	return &AssistantDispatcher{cfg: cfg}
}

// BuildEnv appends PRDFLOW_* variables to the base environment so the
// assistant knows which item it is working on and where to report progress.
func (d *AssistantDispatcher) BuildEnv(base []string, item models.WorkItem) []string {
	env := make([]string, len(base), len(base)+3)
	copy(env, base)
	env = append(env,
		"PRDFLOW_ITEM_ID="+item.ID,
		"PRDFLOW_ITEM_DESC="+item.Description,
		"PRDFLOW_PROGRESS_FILE="+d.cfg.ProgressPath,
	)
	return env
}

// Dispatch starts the assistant process for the item and returns without
// waiting for it. The process is reaped in the background; its stdout and
// stderr are appended to the progress log so the completion token check can
// observe them.
func (d *AssistantDispatcher) Dispatch(item models.WorkItem) error {
	if d.cfg.Command == "" {
		return fmt.Errorf("dispatching %s: no assistant command configured", item.ID)
	}

	out, err := os.OpenFile(d.cfg.ProgressPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("dispatching %s: opening progress log: %w", item.ID, err)
	}

	args := make([]string, 0, len(d.cfg.Args)+1)
	args = append(args, d.cfg.Args...)
	args = append(args, item.Description)

	cmd := exec.Command(d.cfg.Command, args...)
	cmd.Dir = d.cfg.WorkDir
	cmd.Env = d.BuildEnv(os.Environ(), item)
	cmd.Stdout = out
	cmd.Stderr = out

	if err := cmd.Start(); err != nil {
		out.Close()
		return fmt.Errorf("dispatching %s: starting %s: %w", item.ID, d.cfg.Command, err)
	}

	go func() {
		defer out.Close()
		if err := cmd.Wait(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: assistant process for %s exited: %v\n", item.ID, err)
		}
	}()

	return nil
}
