package core

import (
	"fmt"
	"os"

	"github.com/prdflow/prdflow/pkg/models"
)

// DetectionMethod names the signal that decided an item was complete.
type DetectionMethod string

const (
	MethodStatus DetectionMethod = "status"
	MethodToken  DetectionMethod = "token"
	MethodSteps  DetectionMethod = "steps"
	MethodNone   DetectionMethod = "none"
)

// DetectionResult is the outcome of a completion check. Timeout and
// cancellation are expressed as a not-complete result with a reason, not as
// errors.
type DetectionResult struct {
	Complete bool
	Method   DetectionMethod
	Reason   string
}

// CompletionDetector decides whether an in-progress work item should be
// considered finished, using three independent signals checked in a fixed
// order: the item's own status, the completion token in the assistant's
// progress log, and the item's step checklist.
type CompletionDetector struct {
	store    ItemStore
	progress ProgressSink
	events   EventLogger
}

// NewCompletionDetector creates a detector. events may be nil.
func NewCompletionDetector(store ItemStore, progress ProgressSink, events EventLogger) *CompletionDetector {
	return &CompletionDetector{store: store, progress: progress, events: events}
}

// CheckStatus reports complete when the item is already completed and
// passing. Idempotent short-circuit for items finished out of band.
func (d *CompletionDetector) CheckStatus(item models.WorkItem) DetectionResult {
	if item.Status == models.StatusCompleted && item.Passes {
		return DetectionResult{Complete: true, Method: MethodStatus, Reason: "item already completed and passing"}
	}
	return DetectionResult{Method: MethodStatus}
}

// CheckToken reports complete when the progress log contains the completion
// sentinel. A missing log file means not complete, not an error.
func (d *CompletionDetector) CheckToken() (DetectionResult, error) {
	found, err := d.progress.ContainsToken()
	if err != nil {
		return DetectionResult{Method: MethodToken}, err
	}
	if found {
		return DetectionResult{Complete: true, Method: MethodToken, Reason: "completion token found in progress log"}, nil
	}
	return DetectionResult{Method: MethodToken}, nil
}

// CheckSteps reports complete when the item has at least one step and every
// step is tracked complete. Zero steps never satisfies this signal.
func (d *CompletionDetector) CheckSteps(item models.WorkItem) DetectionResult {
	if item.StepsComplete() {
		return DetectionResult{Complete: true, Method: MethodSteps, Reason: fmt.Sprintf("all %d steps completed", len(item.Steps))}
	}
	return DetectionResult{Method: MethodSteps}
}

// Detect runs the checks in order (status, token, steps) and returns the
// first positive result, or a not-complete result naming what is missing.
func (d *CompletionDetector) Detect(item models.WorkItem) (DetectionResult, error) {
	if res := d.CheckStatus(item); res.Complete {
		return res, nil
	}

	res, err := d.CheckToken()
	if err != nil {
		return DetectionResult{Method: MethodNone}, err
	}
	if res.Complete {
		return res, nil
	}

	if res := d.CheckSteps(item); res.Complete {
		return res, nil
	}

	return DetectionResult{
		Method: MethodNone,
		Reason: fmt.Sprintf("item %s not complete: status=%s, no completion token, steps incomplete", item.ID, item.Status),
	}, nil
}

// MarkComplete persists status=completed with the given passes flag and
// returns the updated item.
func (d *CompletionDetector) MarkComplete(id string, passes bool) (models.WorkItem, error) {
	item, err := d.store.UpdateItem(id, func(it models.WorkItem) models.WorkItem {
		it.Status = models.StatusCompleted
		it.Passes = passes
		return it
	})
	if err != nil {
		return models.WorkItem{}, fmt.Errorf("marking %s complete: %w", id, err)
	}

	logEvent(d.events, "item.completed", map[string]any{"id": item.ID, "passes": item.Passes})
	return item, nil
}

// RecordCompletion appends a human-readable completion entry to the progress
// log. Best-effort telemetry: failures are logged, never propagated.
func (d *CompletionDetector) RecordCompletion(item models.WorkItem, result DetectionResult) {
	entry := fmt.Sprintf("COMPLETED %s (%s) via %s: %s | passes=%t",
		item.ID, item.Description, result.Method, result.Reason, item.Passes)
	if err := d.progress.Append(entry); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to record completion of %s: %v\n", item.ID, err)
	}
}

// NextItem returns the first item strictly after currentID (in stored
// order) whose status is not-started or in-progress, or nil when the queue
// is exhausted or currentID is missing.
func (d *CompletionDetector) NextItem(currentID string) (*models.WorkItem, error) {
	items, err := d.store.Read()
	if err != nil {
		return nil, err
	}
	return nextAfter(items, currentID), nil
}

// CheckAndAdvance scans every in-progress item, marks and records newly
// detected completions, and invokes onComplete with each completed item and
// its successor in the queue (nil at end of queue). Returns the items newly
// completed by this pass. This is the polling entry point the run loop uses.
func (d *CompletionDetector) CheckAndAdvance(onComplete func(completed models.WorkItem, next *models.WorkItem)) ([]models.WorkItem, error) {
	items, err := d.store.Read()
	if err != nil {
		return nil, err
	}

	var completed []models.WorkItem
	for _, item := range items {
		if item.Status != models.StatusInProgress {
			continue
		}

		res, err := d.Detect(item)
		if err != nil {
			return completed, fmt.Errorf("detecting completion of %s: %w", item.ID, err)
		}
		if !res.Complete {
			continue
		}

		marked, err := d.MarkComplete(item.ID, true)
		if err != nil {
			return completed, err
		}
		d.RecordCompletion(marked, res)
		completed = append(completed, marked)

		if onComplete != nil {
			next, err := d.NextItem(marked.ID)
			if err != nil {
				return completed, err
			}
			onComplete(marked, next)
		}
	}

	return completed, nil
}

func nextAfter(items []models.WorkItem, currentID string) *models.WorkItem {
	idx := -1
	for i, item := range items {
		if item.ID == currentID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}
	for i := idx + 1; i < len(items); i++ {
		if items[i].Status == models.StatusNotStarted || items[i].Status == models.StatusInProgress {
			next := items[i].Clone()
			return &next
		}
	}
	return nil
}
