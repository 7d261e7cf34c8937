package storage

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// ProgressLog is the plain-text file the delegated assistant writes while
// working on an item. The detector scans it for the completion token and
// appends dated completion entries to it.
type ProgressLog struct {
	path  string
	token string
}

// NewProgressLog creates a progress log handle. token is the completion
// sentinel the assistant emits when it considers the work done.
func NewProgressLog(path, token string) *ProgressLog {
	return &ProgressLog{path: path, token: token}
}

// Path returns the log file path.
func (p *ProgressLog) Path() string { return p.path }

// Token returns the completion sentinel.
func (p *ProgressLog) Token() string { return p.token }

// ContainsToken reports whether the log contains the completion sentinel.
// A missing log file is not an error; it simply means not complete.
func (p *ProgressLog) ContainsToken() (bool, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("reading progress log: %w", err)
	}
	return strings.Contains(string(data), p.token), nil
}

// Append adds a dated entry to the log, creating the file if needed.
func (p *ProgressLog) Append(entry string) error {
	f, err := os.OpenFile(p.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening progress log: %w", err)
	}
	defer f.Close()

	line := fmt.Sprintf("[%s] %s\n", time.Now().Format("2006-01-02 15:04:05"), entry)
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("writing progress log: %w", err)
	}
	return nil
}

// Truncate clears the log, typically before dispatching a new item so the
// token check cannot match a previous item's completion.
func (p *ProgressLog) Truncate() error {
	if err := os.WriteFile(p.path, nil, 0o644); err != nil {
		return fmt.Errorf("truncating progress log: %w", err)
	}
	return nil
}
