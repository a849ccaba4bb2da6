// internal/dispatcher/templates.go
package dispatcher

import (
	"fmt"

	"cityreport-notifications/internal/models"
)

// message is the rendered per-kind notification text shared by every
// recipient of one dispatch.
type message struct {
	Title    string
	Body     string
	Severity models.Severity
}

// buildMessage renders the fixed per-kind template. Severity selection:
// status_changed is success once the problem is resolved, priority_changed is
// warning once the priority is urgent, everything else is info.
func buildMessage(kind models.ChangeKind, snapshot *models.ProblemSnapshot) message {
	switch kind {
	case models.KindStatusChanged:
		severity := models.SeverityInfo
		if snapshot.Resolved() {
			severity = models.SeveritySuccess
		}
		return message{
			Title:    "Status changed",
			Body:     fmt.Sprintf("Problem #%s status changed to %q", snapshot.ID, orUnknown(snapshot.Status)),
			Severity: severity,
		}

	case models.KindAssigned:
		return message{
			Title:    "New problem assigned",
			Body:     fmt.Sprintf("A new problem (#%s) of category %q was assigned to the %s department", snapshot.ID, orUnknown(snapshot.Category), orUnknown(snapshot.DepartmentName)),
			Severity: models.SeverityInfo,
		}

	case models.KindPriorityChanged:
		severity := models.SeverityInfo
		if snapshot.Urgent() {
			severity = models.SeverityWarning
		}
		return message{
			Title:    "Priority updated",
			Body:     fmt.Sprintf("Problem #%s priority changed to %q", snapshot.ID, orUnknown(snapshot.Priority)),
			Severity: severity,
		}
	}
	return message{Severity: models.SeverityInfo}
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
