package ledger

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a filter run.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	// StatusReview parks runs whose failure needs operator attention
	// (typically configuration errors) instead of ordinary retry.
	StatusReview Status = "review"
)

var allStatuses = []Status{
	StatusPending,
	StatusRunning,
	StatusCompleted,
	StatusFailed,
	StatusReview,
}

// ParseStatus validates a user-supplied status string.
func ParseStatus(value string) (Status, bool) {
	candidate := Status(strings.ToLower(strings.TrimSpace(value)))
	for _, status := range allStatuses {
		if status == candidate {
			return status, true
		}
	}
	return "", false
}

// Statuses returns every valid status.
func Statuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// Run is one enqueued filter invocation over one source bitstream.
type Run struct {
	ID             int64
	RunKey         string
	SourcePath     string
	SourceName     string
	FilterName     string
	Bundle         string
	DerivativePath string
	Status         Status
	ErrorMessage   string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
