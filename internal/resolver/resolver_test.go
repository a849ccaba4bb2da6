// internal/resolver/resolver_test.go
package resolver

import (
	"context"
	"errors"
	"testing"

	apperrors "cityreport-notifications/internal/common/errors"
	"cityreport-notifications/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

type mockDirectory struct {
	adminIDs            func(ctx context.Context) ([]string, error)
	departmentMemberIDs func(ctx context.Context, departmentID string) ([]string, error)
	departmentAgentIDs  func(ctx context.Context, departmentID string) ([]string, error)
}

func (m *mockDirectory) AdminIDs(ctx context.Context) ([]string, error) {
	return m.adminIDs(ctx)
}

func (m *mockDirectory) DepartmentMemberIDs(ctx context.Context, departmentID string) ([]string, error) {
	return m.departmentMemberIDs(ctx, departmentID)
}

func (m *mockDirectory) DepartmentAgentIDs(ctx context.Context, departmentID string) ([]string, error) {
	return m.departmentAgentIDs(ctx, departmentID)
}

func staticDirectory(admins, members, agents []string) *mockDirectory {
	return &mockDirectory{
		adminIDs: func(ctx context.Context) ([]string, error) {
			return admins, nil
		},
		departmentMemberIDs: func(ctx context.Context, departmentID string) ([]string, error) {
			return members, nil
		},
		departmentAgentIDs: func(ctx context.Context, departmentID string) ([]string, error) {
			return agents, nil
		},
	}
}

func snapshotWithDepartment(id string) *models.ProblemSnapshot {
	return &models.ProblemSnapshot{
		ID:             "prob-1",
		Status:         "in_progress",
		Priority:       "medium",
		DepartmentID:   id,
		DepartmentName: "Voirie",
	}
}

// ==========================
// Core Functionality Tests
// ==========================

func TestResolver_Resolve_ByKind(t *testing.T) {
	tests := []struct {
		name     string
		kind     models.ChangeKind
		actorID  string
		admins   []string
		members  []string
		agents   []string
		deptID   string
		expected []string
	}{
		{
			name:     "status changed notifies admins and department agents",
			kind:     models.KindStatusChanged,
			admins:   []string{"admin-1", "admin-2"},
			agents:   []string{"agent-1", "agent-2"},
			deptID:   "dept-1",
			expected: []string{"admin-1", "admin-2", "agent-1", "agent-2"},
		},
		{
			name:     "status changed without department notifies admins only",
			kind:     models.KindStatusChanged,
			admins:   []string{"admin-1"},
			agents:   []string{"agent-1"},
			deptID:   "",
			expected: []string{"admin-1"},
		},
		{
			name:     "assigned notifies all department members",
			kind:     models.KindAssigned,
			members:  []string{"admin-3", "agent-1", "agent-2"},
			deptID:   "dept-1",
			expected: []string{"admin-3", "agent-1", "agent-2"},
		},
		{
			name:     "assigned without department notifies nobody",
			kind:     models.KindAssigned,
			members:  []string{"agent-1"},
			deptID:   "",
			expected: []string{},
		},
		{
			name:     "priority changed notifies admins and department members",
			kind:     models.KindPriorityChanged,
			admins:   []string{"admin-1"},
			members:  []string{"agent-1", "agent-2"},
			deptID:   "dept-1",
			expected: []string{"admin-1", "agent-1", "agent-2"},
		},
		{
			name:     "actor is excluded from recipients",
			kind:     models.KindStatusChanged,
			actorID:  "admin-1",
			admins:   []string{"admin-1", "admin-2"},
			agents:   []string{"agent-1"},
			deptID:   "dept-1",
			expected: []string{"admin-2", "agent-1"},
		},
		{
			name:     "overlapping rule sets are deduplicated",
			kind:     models.KindPriorityChanged,
			admins:   []string{"admin-1", "admin-2"},
			members:  []string{"admin-2", "agent-1"},
			deptID:   "dept-1",
			expected: []string{"admin-1", "admin-2", "agent-1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(staticDirectory(tt.admins, tt.members, tt.agents))
			event := models.ChangeEvent{
				SubjectID: "prob-1",
				Kind:      tt.kind,
				ActorID:   tt.actorID,
			}

			got, err := r.Resolve(context.Background(), event, snapshotWithDepartment(tt.deptID))

			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestResolver_Resolve_Deterministic(t *testing.T) {
	r := New(staticDirectory(
		[]string{"admin-1", "admin-2"},
		[]string{"agent-1", "admin-2"},
		nil,
	))
	event := models.ChangeEvent{SubjectID: "prob-1", Kind: models.KindPriorityChanged}
	snapshot := snapshotWithDepartment("dept-1")

	first, err := r.Resolve(context.Background(), event, snapshot)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		again, err := r.Resolve(context.Background(), event, snapshot)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestResolver_Resolve_UnknownKind(t *testing.T) {
	r := New(staticDirectory([]string{"admin-1"}, nil, nil))
	event := models.ChangeEvent{SubjectID: "prob-1", Kind: "escalated"}

	got, err := r.Resolve(context.Background(), event, snapshotWithDepartment("dept-1"))

	require.Error(t, err)
	assert.Nil(t, got)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeUnrecognizedChangeKind))
}

func TestResolver_Resolve_DirectoryError(t *testing.T) {
	dirErr := errors.New("connection refused")
	dir := staticDirectory(nil, nil, nil)
	dir.adminIDs = func(ctx context.Context) ([]string, error) {
		return nil, dirErr
	}
	r := New(dir)

	_, err := r.Resolve(context.Background(), models.ChangeEvent{
		SubjectID: "prob-1",
		Kind:      models.KindStatusChanged,
	}, snapshotWithDepartment("dept-1"))

	assert.ErrorIs(t, err, dirErr)
}

func TestFinalize_DropsEmptyIDs(t *testing.T) {
	got := finalize([]string{"", "user-1", "", "user-2", "user-1"}, "")
	assert.Equal(t, []string{"user-1", "user-2"}, got)
}
