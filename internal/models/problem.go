// internal/models/problem.go
package models

const (
	// StatusResolved is the status name that upgrades a status_changed
	// notification from info to success.
	StatusResolved = "resolved"

	// PriorityUrgent is the priority name that upgrades a priority_changed
	// notification from info to warning.
	PriorityUrgent = "urgent"
)

// ProblemSnapshot is the read-only view of a reported problem the dispatcher
// needs at fan-out time. DepartmentID is empty when no department has been
// assigned yet.
type ProblemSnapshot struct {
	ID             string `json:"id"`
	Status         string `json:"status"`
	Priority       string `json:"priority"`
	Category       string `json:"category"`
	DepartmentID   string `json:"departmentId"`
	DepartmentName string `json:"departmentName"`
}

// Resolved reports whether the snapshot's status denotes resolution.
func (p *ProblemSnapshot) Resolved() bool {
	return p.Status == StatusResolved
}

// Urgent reports whether the snapshot's priority denotes urgency.
func (p *ProblemSnapshot) Urgent() bool {
	return p.Priority == PriorityUrgent
}
