// internal/resolver/resolver.go
package resolver

import (
	"context"

	apperrors "cityreport-notifications/internal/common/errors"
	"cityreport-notifications/internal/models"
)

// Directory is the role/department membership collaborator the resolver
// consumes. Implementations must be read-only and deterministic for a given
// data state.
type Directory interface {
	// AdminIDs returns the ids of all users with role admin.
	AdminIDs(ctx context.Context) ([]string, error)
	// DepartmentMemberIDs returns the ids of all users in the department,
	// any role.
	DepartmentMemberIDs(ctx context.Context, departmentID string) ([]string, error)
	// DepartmentAgentIDs returns the ids of agent-role users in the department.
	DepartmentAgentIDs(ctx context.Context, departmentID string) ([]string, error)
}

// Resolver expands a change event into the set of recipients to notify.
type Resolver struct {
	directory Directory
}

func New(directory Directory) *Resolver {
	return &Resolver{directory: directory}
}

// Resolve returns the deduplicated recipient ids for the event, with the
// actor removed. Membership is deterministic for identical inputs; the order
// is the directory's first-seen order.
func (r *Resolver) Resolve(ctx context.Context, event models.ChangeEvent, snapshot *models.ProblemSnapshot) ([]string, error) {
	var recipients []string

	switch event.Kind {
	case models.KindStatusChanged:
		// All admins, plus agents of the assigned department if any.
		admins, err := r.directory.AdminIDs(ctx)
		if err != nil {
			return nil, err
		}
		recipients = append(recipients, admins...)

		if snapshot.DepartmentID != "" {
			agents, err := r.directory.DepartmentAgentIDs(ctx, snapshot.DepartmentID)
			if err != nil {
				return nil, err
			}
			recipients = append(recipients, agents...)
		}

	case models.KindAssigned:
		// Everyone in the assigned department, any role.
		if snapshot.DepartmentID != "" {
			members, err := r.directory.DepartmentMemberIDs(ctx, snapshot.DepartmentID)
			if err != nil {
				return nil, err
			}
			recipients = append(recipients, members...)
		}

	case models.KindPriorityChanged:
		// Admins plus everyone in the problem's department.
		admins, err := r.directory.AdminIDs(ctx)
		if err != nil {
			return nil, err
		}
		recipients = append(recipients, admins...)

		if snapshot.DepartmentID != "" {
			members, err := r.directory.DepartmentMemberIDs(ctx, snapshot.DepartmentID)
			if err != nil {
				return nil, err
			}
			recipients = append(recipients, members...)
		}

	default:
		return nil, apperrors.NewUnrecognizedChangeKindError(string(event.Kind))
	}

	return finalize(recipients, event.ActorID), nil
}

// finalize deduplicates by id preserving first-seen order and removes the
// actor so a user is never notified of their own action.
func finalize(ids []string, actorID string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || id == actorID {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
