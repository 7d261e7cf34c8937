package models

import (
	"encoding/json"
	"testing"

	"pgregory.net/rapid"
)

// TestProperty_StepRoundTrip verifies that any step survives a JSON
// round-trip with its form (plain vs tracked) intact.
func TestProperty_StepRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		step := Step{
			Text:      rapid.StringMatching(`[a-zA-Z0-9 .,-]{1,80}`).Draw(t, "text"),
			Completed: rapid.Bool().Draw(t, "completed"),
			Tracked:   rapid.Bool().Draw(t, "tracked"),
		}
		if !step.Tracked {
			step.Completed = false // plain steps carry no completion state
		}

		data, err := json.Marshal(step)
		if err != nil {
			t.Fatalf("marshaling: %v", err)
		}

		var got Step
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("unmarshaling: %v", err)
		}
		if got != step {
			t.Fatalf("round-trip changed the step: %+v -> %+v", step, got)
		}
	})
}

// TestProperty_GeneratedIDsAlwaysValid pins the id grammar against its
// generator form.
func TestProperty_GeneratedIDsAlwaysValid(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		id := rapid.StringMatching(`[A-Za-z]{1,12}-[0-9]{3}`).Draw(t, "id")
		if !ValidateID(id) {
			t.Fatalf("expected %q to be valid", id)
		}
	})
}

// TestProperty_ValidItemsRoundTripThroughJSON verifies the document encoding
// never loses or corrupts a valid item.
func TestProperty_ValidItemsRoundTripThroughJSON(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		item := WorkItem{
			ID:          rapid.StringMatching(`[a-z]{2,8}-[0-9]{3}`).Draw(t, "id"),
			Category:    rapid.SampledFrom(testCategories).Draw(t, "category"),
			Description: rapid.StringMatching(`[a-zA-Z0-9 ]{10,120}`).Draw(t, "description"),
			Status:      rapid.SampledFrom(Statuses).Draw(t, "status"),
			Passes:      rapid.Bool().Draw(t, "passes"),
			Steps:       []Step{},
		}
		stepCount := rapid.IntRange(0, 5).Draw(t, "stepCount")
		for i := 0; i < stepCount; i++ {
			text := rapid.StringMatching(`[a-zA-Z0-9 ]{1,40}`).Draw(t, "stepText")
			if rapid.Bool().Draw(t, "tracked") {
				item.Steps = append(item.Steps, TrackedStep(text, rapid.Bool().Draw(t, "stepDone")))
			} else {
				item.Steps = append(item.Steps, PlainStep(text))
			}
		}

		data, err := json.Marshal(item)
		if err != nil {
			t.Fatalf("marshaling: %v", err)
		}
		var got WorkItem
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("unmarshaling: %v", err)
		}

		if got.ID != item.ID || got.Status != item.Status || got.Passes != item.Passes {
			t.Fatalf("round-trip changed scalar fields: %+v -> %+v", item, got)
		}
		if len(got.Steps) != len(item.Steps) {
			t.Fatalf("round-trip changed step count: %d -> %d", len(item.Steps), len(got.Steps))
		}
		for i := range item.Steps {
			if got.Steps[i] != item.Steps[i] {
				t.Fatalf("round-trip changed step %d: %+v -> %+v", i, item.Steps[i], got.Steps[i])
			}
		}
	})
}
