package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/prdflow/prdflow/pkg/models"
)

// ErrLoopRunning is returned by StartLoop when a loop is already in flight.
// At most one loop executes at a time per manager instance.
var ErrLoopRunning = errors.New("run loop already running")

// FilterAll disables a queue filter.
const FilterAll = "all"

// Dispatcher triggers external work on an item. Fire-and-continue: the loop
// observes completion only through the detector's signals, never through
// this call's return.
type Dispatcher interface {
	Dispatch(item models.WorkItem) error
}

// QueueOptions selects and bounds the items a loop will process.
// Empty or "all" filters mean unfiltered; MaxItems <= 0 means unlimited.
type QueueOptions struct {
	StatusFilter   string
	CategoryFilter string
	MaxItems       int
}

// LoopOptions configures one StartLoop call.
type LoopOptions struct {
	Queue             QueueOptions
	StopOnFailure     bool
	IterationsPerItem int

	// Callbacks fire strictly in order for a given item and iteration
	// (start, then complete), never interleaved across items.
	OnItemStart    func(item models.WorkItem, iteration int)
	OnItemComplete func(item models.WorkItem, success bool, iteration int)
	OnLoopComplete func(processed, succeeded, failed int)
}

// RunLoopManager drives a queue of work items one at a time through the
// external dispatch action, waiting on the completion detector between
// items. Cancellation is cooperative: checked before each item, before each
// iteration, and inside the poll wait.
type RunLoopManager struct {
	store      ItemStore
	detector   *CompletionDetector
	dispatcher Dispatcher
	events     EventLogger

	pollInterval time.Duration
	waitTimeout  time.Duration

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
}

// NewRunLoopManager creates a run loop manager. events may be nil.
func NewRunLoopManager(store ItemStore, detector *CompletionDetector, dispatcher Dispatcher, events EventLogger, pollInterval, waitTimeout time.Duration) *RunLoopManager {
	return &RunLoopManager{
		store:        store,
		detector:     detector,
		dispatcher:   dispatcher,
		events:       events,
		pollInterval: pollInterval,
		waitTimeout:  waitTimeout,
	}
}

// BuildQueue reads the full collection and applies the status filter, then
// the category filter, then the MaxItems cap. Original collection order is
// preserved; nothing is re-sorted.
func (m *RunLoopManager) BuildQueue(opts QueueOptions) ([]models.WorkItem, error) {
	items, err := m.store.Read()
	if err != nil {
		return nil, fmt.Errorf("building queue: %w", err)
	}

	queue := make([]models.WorkItem, 0, len(items))
	for _, item := range items {
		if !filterMatches(opts.StatusFilter, string(item.Status)) {
			continue
		}
		if !filterMatches(opts.CategoryFilter, item.Category) {
			continue
		}
		queue = append(queue, item)
	}

	if opts.MaxItems > 0 && len(queue) > opts.MaxItems {
		queue = queue[:opts.MaxItems]
	}
	return queue, nil
}

// IsLoopRunning reports whether a loop is currently in flight.
func (m *RunLoopManager) IsLoopRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// StopLoop raises the loop's cancellation signal. Idempotent; a no-op when
// no loop is running. The iteration in flight finishes its wait promptly
// with a "cancelled" result instead of running to the timeout.
func (m *RunLoopManager) StopLoop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		m.cancel()
	}
}

// StartLoop builds the queue once and processes it in order, blocking until
// the queue is exhausted, a failure stops it, or StopLoop is called. Returns
// ErrLoopRunning immediately if a loop is already in flight, without
// disturbing that loop's state.
func (m *RunLoopManager) StartLoop(opts LoopOptions) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return ErrLoopRunning
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.running = true
	m.cancel = cancel
	m.mu.Unlock()

	// Cleanup must happen on every exit path: clear the running flag and
	// release the cancellation resource.
	defer func() {
		m.mu.Lock()
		m.running = false
		m.cancel = nil
		m.mu.Unlock()
		cancel()
	}()

	if opts.IterationsPerItem < 1 {
		opts.IterationsPerItem = 1
	}

	queue, err := m.BuildQueue(opts.Queue)
	if err != nil {
		return err
	}
	if len(queue) == 0 {
		logEvent(m.events, "loop.finished", map[string]any{"processed": 0, "reason": "empty queue"})
		return nil
	}

	logEvent(m.events, "loop.started", map[string]any{
		"queued":     len(queue),
		"iterations": opts.IterationsPerItem,
	})

	var processed, succeeded, failed int

items:
	for _, item := range queue {
		if ctx.Err() != nil {
			break
		}

		itemFailed := false
		for iteration := 1; iteration <= opts.IterationsPerItem; iteration++ {
			if ctx.Err() != nil {
				break items
			}

			success := m.runIteration(ctx, item, iteration, opts)
			processed++
			if success {
				succeeded++
			} else {
				failed++
				itemFailed = true
			}
		}

		if itemFailed && opts.StopOnFailure {
			break
		}
	}

	if ctx.Err() != nil {
		logEvent(m.events, "loop.cancelled", map[string]any{"processed": processed})
	} else {
		logEvent(m.events, "loop.finished", map[string]any{
			"processed": processed, "succeeded": succeeded, "failed": failed,
		})
	}

	if opts.OnLoopComplete != nil {
		opts.OnLoopComplete(processed, succeeded, failed)
	}
	return nil
}

// runIteration performs one full process-item cycle: transition to
// in-progress (first iteration only), dispatch, wait for completion, and on
// success mark and record via the detector. Per-iteration errors become a
// failed result; they never abort the loop by themselves.
func (m *RunLoopManager) runIteration(ctx context.Context, item models.WorkItem, iteration int, opts LoopOptions) bool {
	if iteration == 1 {
		updated, err := m.store.UpdateItem(item.ID, func(it models.WorkItem) models.WorkItem {
			it.Status = models.StatusInProgress
			return it
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to mark %s in-progress: %v\n", item.ID, err)
		} else {
			item = updated
			logEvent(m.events, "item.status_changed", map[string]any{"id": item.ID, "status": string(item.Status)})
		}
	}

	if opts.OnItemStart != nil {
		opts.OnItemStart(item, iteration)
	}

	success := false
	if err := m.dispatcher.Dispatch(item); err != nil {
		fmt.Fprintf(os.Stderr, "warning: dispatch of %s failed: %v\n", item.ID, err)
	} else {
		result := m.waitForCompletion(ctx, item.ID)
		if result.Complete {
			marked, err := m.detector.MarkComplete(item.ID, true)
			if err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to persist completion of %s: %v\n", item.ID, err)
			} else {
				m.detector.RecordCompletion(marked, result)
				item = marked
				success = true
			}
		}
	}

	if opts.OnItemComplete != nil {
		opts.OnItemComplete(item, success, iteration)
	}
	return success
}

// waitForCompletion polls the detector on the configured interval up to the
// wall-clock budget. It suspends between polls rather than busy-waiting, and
// unwinds promptly with a "cancelled" result if the loop is stopped mid-wait.
func (m *RunLoopManager) waitForCompletion(ctx context.Context, id string) DetectionResult {
	deadline := time.NewTimer(m.waitTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	for {
		if res, ok := m.detectByID(id); ok {
			return res
		}

		select {
		case <-ctx.Done():
			return DetectionResult{Method: MethodNone, Reason: "cancelled"}
		case <-deadline.C:
			return DetectionResult{Method: MethodNone, Reason: "Timeout waiting for completion"}
		case <-ticker.C:
		}
	}
}

// detectByID re-reads the item and runs detection. Transient read or
// detection errors are swallowed so the poll keeps going until the budget
// runs out.
func (m *RunLoopManager) detectByID(id string) (DetectionResult, bool) {
	items, err := m.store.Read()
	if err != nil {
		return DetectionResult{}, false
	}
	for _, item := range items {
		if item.ID == id {
			res, err := m.detector.Detect(item)
			if err != nil || !res.Complete {
				return DetectionResult{}, false
			}
			return res, true
		}
	}
	return DetectionResult{}, false
}

func filterMatches(filter, value string) bool {
	return filter == "" || filter == FilterAll || filter == value
}
