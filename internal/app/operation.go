package app

import "time"

// Operation statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Operation identifies one CLI invocation. Its ID tags every log line the
// invocation writes, so interleaved runs in the shared log can be told apart.
type Operation struct {
	ID        string
	Name      string
	StartedAt time.Time
	Status    string
}

// NewOperation creates an operation named after the CLI command being run.
func NewOperation(name string, now time.Time) *Operation {
	now = now.UTC()
	return &Operation{
		ID:        now.Format("20060102T150405Z"),
		Name:      name,
		StartedAt: now,
		Status:    StatusSuccess,
	}
}

// Fail marks the operation as failed. A nil error leaves it unchanged.
func (op *Operation) Fail(err error) {
	if err != nil {
		op.Status = StatusError
	}
}

// Failed reports whether any step of the operation failed.
func (op *Operation) Failed() bool {
	return op.Status == StatusError
}
