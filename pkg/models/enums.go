package models

// Priority is the business priority of a story or ticket.
type Priority string

const (
	// PriorityHigh marks work that should be picked up first.
	PriorityHigh Priority = "High"
	// PriorityMedium is the default planning priority.
	PriorityMedium Priority = "Medium"
	// PriorityLow marks work that can wait.
	PriorityLow Priority = "Low"
)

// Valid returns true if the priority is a known value.
func (p Priority) Valid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	default:
		return false
	}
}

// Complexity is the tech lead's qualitative complexity rating.
type Complexity string

const (
	ComplexityLow    Complexity = "Low"
	ComplexityMedium Complexity = "Medium"
	ComplexityHigh   Complexity = "High"
)

// Valid returns true if the complexity is a known value.
func (c Complexity) Valid() bool {
	switch c {
	case ComplexityLow, ComplexityMedium, ComplexityHigh:
		return true
	default:
		return false
	}
}

// ApprovalStatus is the security reviewer's verdict.
type ApprovalStatus string

const (
	// ApprovalApproved means no blocking security concerns were found.
	ApprovalApproved ApprovalStatus = "Approved"
	// ApprovalRejected means the story must not ship as written.
	ApprovalRejected ApprovalStatus = "Rejected"
	// ApprovalNeedsRevision means the story needs changes before approval.
	ApprovalNeedsRevision ApprovalStatus = "Needs Revision"
)

// Valid returns true if the status is a known value.
func (s ApprovalStatus) Valid() bool {
	switch s {
	case ApprovalApproved, ApprovalRejected, ApprovalNeedsRevision:
		return true
	default:
		return false
	}
}

// FibonacciPoints is the closed set of story point values a tech estimate may use.
var FibonacciPoints = []int{1, 2, 3, 5, 8, 13, 21}

// IsFibonacciPoint reports whether n is an allowed story point value.
func IsFibonacciPoint(n int) bool {
	for _, p := range FibonacciPoints {
		if p == n {
			return true
		}
	}
	return false
}
