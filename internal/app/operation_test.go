package app

import (
	"errors"
	"testing"
	"time"
)

func TestNewOperation(t *testing.T) {
	local := time.FixedZone("UTC+2", 2*60*60)
	now := time.Date(2024, 1, 15, 12, 30, 0, 0, local)

	op := NewOperation("Recompute", now)

	if op.Name != "Recompute" {
		t.Errorf("Name = %q, want Recompute", op.Name)
	}
	if op.ID != "20240115T103000Z" {
		t.Errorf("ID = %q, want 20240115T103000Z", op.ID)
	}
	if op.Status != StatusSuccess {
		t.Errorf("Status = %q, want %q", op.Status, StatusSuccess)
	}
	if !op.StartedAt.Equal(now) || op.StartedAt.Location() != time.UTC {
		t.Errorf("StartedAt = %v, want %v in UTC", op.StartedAt, now)
	}
}

func TestOperation_Fail(t *testing.T) {
	tests := []struct {
		name string
		errs []error
		want bool
	}{
		{name: "no errors", errs: nil, want: false},
		{name: "nil error", errs: []error{nil}, want: false},
		{name: "one error", errs: []error{errors.New("boom")}, want: true},
		{name: "error then nil stays failed", errs: []error{errors.New("boom"), nil}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op := NewOperation("Backup", time.Now())
			for _, err := range tt.errs {
				op.Fail(err)
			}
			if got := op.Failed(); got != tt.want {
				t.Errorf("Failed() = %v, want %v", got, tt.want)
			}
		})
	}
}
