// Package models defines the shared data types for prdflow: work items,
// their steps, and the validation rules that guard the persisted document.
package models

import (
	"encoding/json"
	"fmt"
)

// Status represents the lifecycle state of a work item.
type Status string

const (
	StatusNotStarted Status = "not-started"
	StatusInProgress Status = "in-progress"
	StatusInReview   Status = "in-review"
	StatusCompleted  Status = "completed"
)

// Statuses lists every valid status value in lifecycle order.
var Statuses = []Status{StatusNotStarted, StatusInProgress, StatusInReview, StatusCompleted}

// IsValidStatus reports whether s is one of the four lifecycle states.
func IsValidStatus(s Status) bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

// Step is an ordered sub-task of a work item. A step starts as a plain text
// entry and is upgraded to a completion-tracked entry the first time it is
// mutated. The upgrade is one-way: once tracked, a step stays tracked.
//
// On the wire a plain step is a bare JSON string, a tracked step is an
// object {"text": ..., "completed": ...}.
type Step struct {
	Text      string
	Completed bool
	Tracked   bool
}

// PlainStep creates an untracked step from text.
func PlainStep(text string) Step {
	return Step{Text: text}
}

// TrackedStep creates a completion-tracked step.
func TrackedStep(text string, completed bool) Step {
	return Step{Text: text, Completed: completed, Tracked: true}
}

// Track upgrades a plain step to a tracked step. Idempotent.
func (s Step) Track() Step {
	s.Tracked = true
	return s
}

// trackedStepJSON is the object form of a tracked step.
type trackedStepJSON struct {
	Text      string `json:"text"`
	Completed bool   `json:"completed"`
}

// MarshalJSON serializes plain steps as bare strings and tracked steps as
// {text, completed} objects, preserving the document format on round-trip.
func (s Step) MarshalJSON() ([]byte, error) {
	if !s.Tracked {
		return json.Marshal(s.Text)
	}
	return json.Marshal(trackedStepJSON{Text: s.Text, Completed: s.Completed})
}

// UnmarshalJSON accepts either a bare string or a {text, completed} object.
func (s *Step) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		*s = Step{Text: text}
		return nil
	}

	var obj trackedStepJSON
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("step must be a string or a {text, completed} object: %w", err)
	}
	*s = Step{Text: obj.Text, Completed: obj.Completed, Tracked: true}
	return nil
}

// WorkItem is one backlog entry in the PRD document.
//
// The id is immutable once created and follows the <category>-<NNN> grammar
// (e.g. "ui-007"). Passes is an acceptance flag independent of Status: an
// item can be completed yet failing, which keeps it out of the archive.
type WorkItem struct {
	ID          string `json:"id"`
	Category    string `json:"category"`
	Description string `json:"description"`
	Steps       []Step `json:"steps"`
	Status      Status `json:"status"`
	Passes      bool   `json:"passes"`
}

// NewWorkItem creates a work item in its initial state.
func NewWorkItem(id, category, description string) WorkItem {
	return WorkItem{
		ID:          id,
		Category:    category,
		Description: description,
		Steps:       []Step{},
		Status:      StatusNotStarted,
	}
}

// IsArchivable reports whether the item is eligible for archival:
// completed and passing. Completed alone is not enough ("done but broken"
// stays in the active document).
func (w WorkItem) IsArchivable() bool {
	return w.Status == StatusCompleted && w.Passes
}

// StepsComplete reports whether the item has at least one step and every
// step is tracked complete. An item with zero steps never satisfies this.
func (w WorkItem) StepsComplete() bool {
	if len(w.Steps) == 0 {
		return false
	}
	for _, s := range w.Steps {
		if !s.Tracked || !s.Completed {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the item (steps slice included).
func (w WorkItem) Clone() WorkItem {
	out := w
	out.Steps = make([]Step, len(w.Steps))
	copy(out.Steps, w.Steps)
	return out
}
