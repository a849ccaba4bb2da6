// internal/models/notification.go
package models

import "time"

// Severity classifies how a notification is rendered to the recipient.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Valid reports whether s is one of the fixed severity values.
func (s Severity) Valid() bool {
	switch s {
	case SeverityInfo, SeveritySuccess, SeverityWarning, SeverityError:
		return true
	}
	return false
}

// Notification is one durable per-recipient record produced by the fan-out.
// Title, Body and Severity are immutable after creation; Read only ever
// transitions under the owning recipient's actions or a stream update.
type Notification struct {
	ID          string    `json:"id"`
	RecipientID string    `json:"recipientId"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	Severity    Severity  `json:"severity"`
	Read        bool      `json:"read"`
	CreatedAt   time.Time `json:"createdAt"`
	Link        string    `json:"link,omitempty"`
}
