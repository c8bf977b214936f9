package tracker

import (
	"context"
	"time"
)

// Run statuses.
const (
	RunRunning     = "running"
	RunSuccess     = "success"
	RunInterrupted = "interrupted"
	RunError       = "error"
)

// Run triggers.
const (
	TriggerSchedule = "schedule"
	TriggerManual   = "manual"
)

// RunRecord is one row of recompute run history.
type RunRecord struct {
	ID         int64
	RunID      string
	Trigger    string
	StartedAt  time.Time
	FinishedAt *time.Time // nil while the run is in progress or if it crashed
	Status     string
	Consumed   int64
	Failed     int64
}

// RunStore persists recompute run history.
type RunStore interface {
	StartRun(ctx context.Context, runID, trigger string, at time.Time) (int64, error)
	FinishRun(ctx context.Context, id int64, status string, at time.Time, consumed, failed int64) error
	ListRuns(ctx context.Context, limit int) ([]RunRecord, error)
}

// RunStatus maps a report and its error to a run status.
func RunStatus(report *RunReport, err error) string {
	switch {
	case err != nil:
		return RunError
	case report != nil && report.Interrupted:
		return RunInterrupted
	default:
		return RunSuccess
	}
}
