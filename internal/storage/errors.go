// Package storage is the exclusive gateway to prdflow's on-disk state: the
// PRD document, its backup sidecar, and the assistant progress log.
package storage

import (
	"errors"
	"fmt"

	"github.com/prdflow/prdflow/pkg/models"
)

// ErrNotFound is returned when the store is not initialized or a requested
// item id does not exist. Callers wrap it with context.
var ErrNotFound = errors.New("not found")

// ParseError indicates the PRD document exists but holds malformed JSON.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// WriteError indicates the persist step failed. The store attempts a
// best-effort restore from backup before surfacing this.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("writing %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// Suggestion returns an actionable hint for a store error, separate from the
// message itself so the caller can format the two however it likes.
func Suggestion(err error) string {
	var parseErr *ParseError
	var writeErr *WriteError

	switch {
	case errors.Is(err, ErrNotFound):
		return "run 'prdflow init' to create the PRD document, or check the item id with 'prdflow list'"
	case errors.As(err, &parseErr):
		return "fix the JSON by hand or restore from the .backup sidecar"
	case errors.As(err, &writeErr):
		return "check file permissions and free disk space"
	default:
		var ve models.ValidationErrors
		if errors.As(err, &ve) {
			return "fix the reported fields; nothing was written"
		}
		return ""
	}
}
