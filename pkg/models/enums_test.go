package models

import "testing"

func TestPriority_Valid(t *testing.T) {
	tests := []struct {
		name     string
		priority Priority
		want     bool
	}{
		{"High is valid", PriorityHigh, true},
		{"Medium is valid", PriorityMedium, true},
		{"Low is valid", PriorityLow, true},
		{"empty string is invalid", Priority(""), false},
		{"lowercase is invalid", Priority("high"), false},
		{"unknown is invalid", Priority("Critical"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.priority.Valid(); got != tt.want {
				t.Errorf("Priority(%q).Valid() = %v, want %v", tt.priority, got, tt.want)
			}
		})
	}
}

func TestComplexity_Valid(t *testing.T) {
	for _, c := range []Complexity{ComplexityLow, ComplexityMedium, ComplexityHigh} {
		if !c.Valid() {
			t.Errorf("Complexity(%q).Valid() = false, want true", c)
		}
	}
	for _, c := range []Complexity{"", "Extreme", "medium"} {
		if c.Valid() {
			t.Errorf("Complexity(%q).Valid() = true, want false", c)
		}
	}
}

func TestApprovalStatus_Valid(t *testing.T) {
	tests := []struct {
		status ApprovalStatus
		want   bool
	}{
		{ApprovalApproved, true},
		{ApprovalRejected, true},
		{ApprovalNeedsRevision, true},
		{ApprovalStatus("Needs_Revision"), false},
		{ApprovalStatus("Pending"), false},
		{ApprovalStatus(""), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.Valid(); got != tt.want {
				t.Errorf("ApprovalStatus(%q).Valid() = %v, want %v", tt.status, got, tt.want)
			}
		})
	}
}

func TestApprovalStatus_StringValues(t *testing.T) {
	if string(ApprovalNeedsRevision) != "Needs Revision" {
		t.Errorf("ApprovalNeedsRevision = %q, want %q", ApprovalNeedsRevision, "Needs Revision")
	}
}

func TestIsFibonacciPoint(t *testing.T) {
	allowed := map[int]bool{1: true, 2: true, 3: true, 5: true, 8: true, 13: true, 21: true}
	for n := -1; n <= 34; n++ {
		if got := IsFibonacciPoint(n); got != allowed[n] {
			t.Errorf("IsFibonacciPoint(%d) = %v, want %v", n, got, allowed[n])
		}
	}
}
