package slurm

import "testing"

func TestParseJobState(t *testing.T) {
	cases := map[string]JobState{
		"PENDING":       StatePending,
		"CONFIGURING":   StatePending,
		"RUNNING":       StateRunning,
		"COMPLETING":    StateRunning,
		"COMPLETED":     StateCompleted,
		"FAILED":        StateFailed,
		"NODE_FAIL":     StateFailed,
		"OUT_OF_MEMORY": StateFailed,
		"CANCELLED":     StateCancelled,
		"TIMEOUT":       StateTimeout,
		"SUSPENDED":     StateUnknown,
	}
	for raw, want := range cases {
		if got := parseJobState(raw); got != want {
			t.Errorf("parseJobState(%q) = %v, want %v", raw, got, want)
		}
	}
}
