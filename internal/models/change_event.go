// internal/models/change_event.go
package models

// ChangeKind identifies which tracked-problem mutation triggered a fan-out.
type ChangeKind string

const (
	KindStatusChanged   ChangeKind = "status_changed"
	KindAssigned        ChangeKind = "assigned"
	KindPriorityChanged ChangeKind = "priority_changed"
)

// Valid reports whether k is one of the recognized change kinds.
func (k ChangeKind) Valid() bool {
	switch k {
	case KindStatusChanged, KindAssigned, KindPriorityChanged:
		return true
	}
	return false
}

// ChangeEvent describes a notification-triggering mutation to a tracked
// problem. It is ephemeral: the engine never persists it.
type ChangeEvent struct {
	SubjectID string     `json:"subject_id"`
	Kind      ChangeKind `json:"kind"`
	// ActorID is the user who caused the change. The actor is never among
	// the recipients of a notification caused by their own action.
	ActorID string `json:"actor_id"`
}
