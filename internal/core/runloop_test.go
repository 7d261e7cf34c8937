package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prdflow/prdflow/pkg/models"
)

func newTestLoop(store *fakeStore, dispatcher Dispatcher, events EventLogger, poll, timeout time.Duration) *RunLoopManager {
	detector := NewCompletionDetector(store, &fakeProgress{}, events)
	return NewRunLoopManager(store, detector, dispatcher, events, poll, timeout)
}

// completeOnDispatch marks the dispatched item completed and passing in the
// store, so the loop's first detection poll sees it done.
func completeOnDispatch(store *fakeStore) *fakeDispatcher {
	return &fakeDispatcher{fn: func(item models.WorkItem) error {
		_, err := store.UpdateItem(item.ID, func(it models.WorkItem) models.WorkItem {
			it.Status = models.StatusCompleted
			it.Passes = true
			return it
		})
		return err
	}}
}

func TestBuildQueue_Filters(t *testing.T) {
	store := newFakeStore(
		testItem("ui-001", "ui", models.StatusNotStarted),
		testItem("server-001", "server", models.StatusInProgress),
		testItem("ui-002", "ui", models.StatusCompleted),
		testItem("ui-003", "ui", models.StatusNotStarted),
	)
	m := newTestLoop(store, &fakeDispatcher{}, nil, time.Millisecond, time.Second)

	tests := []struct {
		name string
		opts QueueOptions
		want []string
	}{
		{"unfiltered empty", QueueOptions{}, []string{"ui-001", "server-001", "ui-002", "ui-003"}},
		{"unfiltered all", QueueOptions{StatusFilter: "all", CategoryFilter: "all"}, []string{"ui-001", "server-001", "ui-002", "ui-003"}},
		{"by status", QueueOptions{StatusFilter: "not-started"}, []string{"ui-001", "ui-003"}},
		{"by category", QueueOptions{CategoryFilter: "ui"}, []string{"ui-001", "ui-002", "ui-003"}},
		{"both filters", QueueOptions{StatusFilter: "not-started", CategoryFilter: "ui"}, []string{"ui-001", "ui-003"}},
		{"max items", QueueOptions{CategoryFilter: "ui", MaxItems: 2}, []string{"ui-001", "ui-002"}},
		{"max zero is unlimited", QueueOptions{MaxItems: 0}, []string{"ui-001", "server-001", "ui-002", "ui-003"}},
		{"no matches", QueueOptions{CategoryFilter: "data"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			queue, err := m.BuildQueue(tt.opts)
			if err != nil {
				t.Fatal(err)
			}
			if len(queue) != len(tt.want) {
				t.Fatalf("expected %d items, got %d", len(tt.want), len(queue))
			}
			for i, id := range tt.want {
				if queue[i].ID != id {
					t.Errorf("position %d: expected %s, got %s", i, id, queue[i].ID)
				}
			}
		})
	}
}

func TestStartLoop_ProcessesQueueInOrder(t *testing.T) {
	store := newFakeStore(
		testItem("ui-001", "ui", models.StatusNotStarted),
		testItem("ui-002", "ui", models.StatusNotStarted),
	)
	dispatcher := completeOnDispatch(store)
	events := &fakeEvents{}
	m := newTestLoop(store, dispatcher, events, time.Millisecond, time.Second)

	var started, finished []string
	var loopDone int
	var processed, succeeded, failed int
	err := m.StartLoop(LoopOptions{
		OnItemStart: func(item models.WorkItem, iteration int) {
			started = append(started, item.ID)
		},
		OnItemComplete: func(item models.WorkItem, success bool, iteration int) {
			if !success {
				t.Errorf("item %s iteration %d unexpectedly failed", item.ID, iteration)
			}
			finished = append(finished, item.ID)
		},
		OnLoopComplete: func(p, s, f int) {
			loopDone++
			processed, succeeded, failed = p, s, f
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	if len(dispatcher.dispatched) != 2 || dispatcher.dispatched[0] != "ui-001" || dispatcher.dispatched[1] != "ui-002" {
		t.Errorf("expected dispatch in stored order, got %v", dispatcher.dispatched)
	}
	if len(started) != 2 || len(finished) != 2 {
		t.Errorf("expected 2 start and 2 complete callbacks, got %d and %d", len(started), len(finished))
	}
	if loopDone != 1 {
		t.Fatalf("OnLoopComplete must fire exactly once, got %d", loopDone)
	}
	if processed != 2 || succeeded != 2 || failed != 0 {
		t.Errorf("expected 2/2/0, got %d/%d/%d", processed, succeeded, failed)
	}

	for _, id := range []string{"ui-001", "ui-002"} {
		item, _ := store.get(id)
		if item.Status != models.StatusCompleted || !item.Passes {
			t.Errorf("%s must end completed and passing, got %+v", id, item)
		}
	}

	types := events.recorded()
	if types[len(types)-1] != "loop.finished" {
		t.Errorf("expected loop.finished last, got %v", types)
	}
}

func TestStartLoop_EmptyQueueNoCallbacks(t *testing.T) {
	store := newFakeStore()
	m := newTestLoop(store, &fakeDispatcher{}, nil, time.Millisecond, time.Second)

	called := false
	err := m.StartLoop(LoopOptions{
		OnItemStart:    func(models.WorkItem, int) { called = true },
		OnItemComplete: func(models.WorkItem, bool, int) { called = true },
		OnLoopComplete: func(int, int, int) { called = true },
	})
	if err != nil {
		t.Fatal(err)
	}
	if called {
		t.Error("an empty queue must not fire any callback")
	}
}

func TestStartLoop_AlreadyRunning(t *testing.T) {
	store := newFakeStore(testItem("ui-001", "ui", models.StatusNotStarted))

	var nested error
	var m *RunLoopManager
	dispatcher := &fakeDispatcher{fn: func(item models.WorkItem) error {
		nested = m.StartLoop(LoopOptions{})
		// Complete the item so the outer loop finishes.
		_, err := store.UpdateItem(item.ID, func(it models.WorkItem) models.WorkItem {
			it.Status = models.StatusCompleted
			it.Passes = true
			return it
		})
		return err
	}}
	m = newTestLoop(store, dispatcher, nil, time.Millisecond, time.Second)

	if err := m.StartLoop(LoopOptions{}); err != nil {
		t.Fatal(err)
	}
	if !errors.Is(nested, ErrLoopRunning) {
		t.Fatalf("expected ErrLoopRunning from the nested start, got %v", nested)
	}
	if m.IsLoopRunning() {
		t.Error("loop must not be marked running after it returns")
	}
}

func TestStartLoop_StopMidRun(t *testing.T) {
	store := newFakeStore(
		testItem("ui-001", "ui", models.StatusNotStarted),
		testItem("ui-002", "ui", models.StatusNotStarted),
	)
	events := &fakeEvents{}

	// Items never complete; the first wait parks until StopLoop.
	var m *RunLoopManager
	var once sync.Once
	dispatcher := &fakeDispatcher{fn: func(item models.WorkItem) error {
		once.Do(func() {
			go func() {
				time.Sleep(20 * time.Millisecond)
				m.StopLoop()
			}()
		})
		return nil
	}}
	m = newTestLoop(store, dispatcher, events, 5*time.Millisecond, 10*time.Second)

	var processed, failed int
	var loopDone int
	err := m.StartLoop(LoopOptions{
		OnItemComplete: func(item models.WorkItem, success bool, iteration int) {
			if success {
				t.Errorf("cancelled item %s must not succeed", item.ID)
			}
		},
		OnLoopComplete: func(p, s, f int) {
			loopDone++
			processed, failed = p, f
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	if processed != 1 || failed != 1 {
		t.Errorf("expected exactly the in-flight iteration counted (1 processed, 1 failed), got %d/%d", processed, failed)
	}
	if loopDone != 1 {
		t.Errorf("OnLoopComplete must fire exactly once even when cancelled, got %d", loopDone)
	}
	if len(dispatcher.dispatched) != 1 {
		t.Errorf("the second item must never be dispatched, got %v", dispatcher.dispatched)
	}

	found := false
	for _, typ := range events.recorded() {
		if typ == "loop.cancelled" {
			found = true
		}
	}
	if !found {
		t.Error("expected a loop.cancelled event")
	}

	if m.IsLoopRunning() {
		t.Error("loop must not be marked running after cancellation")
	}
}

func TestStartLoop_StopOnFailure(t *testing.T) {
	store := newFakeStore(
		testItem("ui-001", "ui", models.StatusNotStarted),
		testItem("ui-002", "ui", models.StatusNotStarted),
	)
	dispatcher := &fakeDispatcher{fn: func(models.WorkItem) error {
		return errors.New("assistant unavailable")
	}}
	m := newTestLoop(store, dispatcher, nil, time.Millisecond, time.Second)

	var processed, succeeded, failed int
	err := m.StartLoop(LoopOptions{
		StopOnFailure:     true,
		IterationsPerItem: 2,
		OnLoopComplete: func(p, s, f int) {
			processed, succeeded, failed = p, s, f
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	// The failing item still runs all its iterations before the loop stops.
	if len(dispatcher.dispatched) != 2 || dispatcher.dispatched[0] != "ui-001" || dispatcher.dispatched[1] != "ui-001" {
		t.Errorf("expected both iterations of ui-001 only, got %v", dispatcher.dispatched)
	}
	if processed != 2 || succeeded != 0 || failed != 2 {
		t.Errorf("expected 2/0/2, got %d/%d/%d", processed, succeeded, failed)
	}
}

func TestStartLoop_StatusTransitionOnFirstIterationOnly(t *testing.T) {
	store := newFakeStore(testItem("ui-001", "ui", models.StatusNotStarted))
	dispatcher := &fakeDispatcher{fn: func(models.WorkItem) error {
		return errors.New("never completes")
	}}
	m := newTestLoop(store, dispatcher, nil, time.Millisecond, time.Second)

	var iterations []int
	err := m.StartLoop(LoopOptions{
		IterationsPerItem: 3,
		OnItemStart: func(item models.WorkItem, iteration int) {
			iterations = append(iterations, iteration)
			if item.Status != models.StatusInProgress {
				t.Errorf("iteration %d: item must be in-progress, got %s", iteration, item.Status)
			}
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	if len(iterations) != 3 || iterations[0] != 1 || iterations[2] != 3 {
		t.Errorf("expected iterations 1..3, got %v", iterations)
	}
	if len(store.updateCalls) != 1 {
		t.Errorf("the in-progress transition must happen once, got %d updates", len(store.updateCalls))
	}
}

func TestStartLoop_IterationsBelowOneClampedToOne(t *testing.T) {
	store := newFakeStore(testItem("ui-001", "ui", models.StatusNotStarted))
	dispatcher := completeOnDispatch(store)
	m := newTestLoop(store, dispatcher, nil, time.Millisecond, time.Second)

	var processed int
	err := m.StartLoop(LoopOptions{
		IterationsPerItem: -5,
		OnLoopComplete:    func(p, s, f int) { processed = p },
	})
	if err != nil {
		t.Fatal(err)
	}
	if processed != 1 {
		t.Errorf("expected one iteration, got %d", processed)
	}
}

func TestWaitForCompletion_Timeout(t *testing.T) {
	store := newFakeStore(testItem("ui-001", "ui", models.StatusInProgress))
	m := newTestLoop(store, &fakeDispatcher{}, nil, 5*time.Millisecond, 30*time.Millisecond)

	res := m.waitForCompletion(context.Background(), "ui-001")
	if res.Complete {
		t.Fatal("expected not complete")
	}
	if res.Reason != "Timeout waiting for completion" {
		t.Errorf("expected the timeout reason, got %q", res.Reason)
	}
}

func TestWaitForCompletion_Cancelled(t *testing.T) {
	store := newFakeStore(testItem("ui-001", "ui", models.StatusInProgress))
	m := newTestLoop(store, &fakeDispatcher{}, nil, 5*time.Millisecond, 10*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	res := m.waitForCompletion(ctx, "ui-001")
	if res.Complete {
		t.Fatal("expected not complete")
	}
	if res.Reason != "cancelled" {
		t.Errorf("expected cancelled reason, got %q", res.Reason)
	}
}

func TestWaitForCompletion_SeesLateCompletion(t *testing.T) {
	store := newFakeStore(testItem("ui-001", "ui", models.StatusInProgress))
	m := newTestLoop(store, &fakeDispatcher{}, nil, 2*time.Millisecond, time.Second)

	go func() {
		time.Sleep(10 * time.Millisecond)
		_, _ = store.UpdateItem("ui-001", func(it models.WorkItem) models.WorkItem {
			it.Status = models.StatusCompleted
			it.Passes = true
			return it
		})
	}()

	res := m.waitForCompletion(context.Background(), "ui-001")
	if !res.Complete || res.Method != MethodStatus {
		t.Errorf("expected completion via status, got %+v", res)
	}
}
