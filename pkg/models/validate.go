package models

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	// DescriptionMinLen and DescriptionMaxLen bound the item description.
	DescriptionMinLen = 10
	DescriptionMaxLen = 500
)

// idPattern is the work item id grammar: alphabetic category prefix plus a
// zero-padded three digit sequence, e.g. "ui-007".
var idPattern = regexp.MustCompile(`^[A-Za-z]+-\d{3}$`)

// FieldError describes a single validation violation.
type FieldError struct {
	Field   string
	Message string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors aggregates every violation found in one pass, rather
// than stopping at the first.
type ValidationErrors []FieldError

func (e ValidationErrors) Error() string {
	msgs := make([]string, len(e))
	for i, fe := range e {
		msgs[i] = fe.Error()
	}
	return strings.Join(msgs, "; ")
}

// ErrOrNil returns the aggregate as an error, or nil when empty.
func (e ValidationErrors) ErrOrNil() error {
	if len(e) == 0 {
		return nil
	}
	return e
}

// ValidateID reports whether id matches the work item id grammar exactly.
func ValidateID(id string) bool {
	return idPattern.MatchString(id)
}

// ValidateStep checks a single step: non-empty text, whatever its form.
func ValidateStep(s Step) error {
	if strings.TrimSpace(s.Text) == "" {
		return ValidationErrors{{Field: "step", Message: "text must not be empty"}}
	}
	return nil
}

// ValidateItem enforces every work item invariant and aggregates all
// violations found. categories is the configured closed set.
func ValidateItem(item WorkItem, categories []string) error {
	var errs ValidationErrors

	if !ValidateID(item.ID) {
		errs = append(errs, FieldError{Field: "id", Message: fmt.Sprintf("%q must match <letters>-<3 digits>, e.g. ui-007", item.ID)})
	}
	if !containsCategory(categories, item.Category) {
		errs = append(errs, FieldError{Field: "category", Message: fmt.Sprintf("%q is not one of %s", item.Category, strings.Join(categories, ", "))})
	}
	if n := len(item.Description); n < DescriptionMinLen || n > DescriptionMaxLen {
		errs = append(errs, FieldError{Field: "description", Message: fmt.Sprintf("length %d outside %d-%d characters", n, DescriptionMinLen, DescriptionMaxLen)})
	}
	if !IsValidStatus(item.Status) {
		errs = append(errs, FieldError{Field: "status", Message: fmt.Sprintf("%q is not a valid status", item.Status)})
	}
	for i, s := range item.Steps {
		if err := ValidateStep(s); err != nil {
			errs = append(errs, FieldError{Field: fmt.Sprintf("steps[%d]", i), Message: "text must not be empty"})
		}
	}

	return errs.ErrOrNil()
}

// ValidateCollection validates every item and rejects duplicate ids.
// An empty collection is valid.
func ValidateCollection(items []WorkItem, categories []string) error {
	var errs ValidationErrors

	seen := make(map[string]struct{}, len(items))
	for i, item := range items {
		if err := ValidateItem(item, categories); err != nil {
			if ve, ok := err.(ValidationErrors); ok {
				for _, fe := range ve {
					errs = append(errs, FieldError{
						Field:   fmt.Sprintf("items[%d].%s", i, fe.Field),
						Message: fe.Message,
					})
				}
			}
		}
		if _, dup := seen[item.ID]; dup {
			errs = append(errs, FieldError{Field: fmt.Sprintf("items[%d].id", i), Message: fmt.Sprintf("duplicate id %q", item.ID)})
		}
		seen[item.ID] = struct{}{}
	}

	return errs.ErrOrNil()
}

// ValidateUserInput is the looser, pre-construction variant used before an
// id exists: trims whitespace and applies the same bounds and category
// membership. Returns the normalized values.
func ValidateUserInput(description, category string, categories []string) (string, string, error) {
	description = strings.TrimSpace(description)
	category = strings.TrimSpace(category)

	var errs ValidationErrors
	if n := len(description); n < DescriptionMinLen || n > DescriptionMaxLen {
		errs = append(errs, FieldError{Field: "description", Message: fmt.Sprintf("length %d outside %d-%d characters", n, DescriptionMinLen, DescriptionMaxLen)})
	}
	if !containsCategory(categories, category) {
		errs = append(errs, FieldError{Field: "category", Message: fmt.Sprintf("%q is not one of %s", category, strings.Join(categories, ", "))})
	}

	return description, category, errs.ErrOrNil()
}

func containsCategory(categories []string, c string) bool {
	for _, v := range categories {
		if v == c {
			return true
		}
	}
	return false
}
