// internal/stream/event.go
package stream

import "cityreport-notifications/internal/models"

// EventKind distinguishes row-level insert and update events.
type EventKind string

const (
	EventInsert EventKind = "insert"
	EventUpdate EventKind = "update"
)

// RowEvent is one row-level change to the notification collection, scoped to
// the notification's recipient. The stream carries no ordering guarantee
// relative to the bulk load or to other events; consumers must reconcile
// order-tolerantly.
type RowEvent struct {
	Kind         EventKind           `json:"kind"`
	Notification models.Notification `json:"notification"`
}
