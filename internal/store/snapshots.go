// internal/store/snapshots.go
package store

import (
	"context"
	"database/sql"

	apperrors "cityreport-notifications/internal/common/errors"
	"cityreport-notifications/internal/models"
)

// PostgresSnapshots loads the problem view the dispatcher needs at fan-out
// time. Reads are not serialized against concurrent dispatches for the same
// problem; that read window race is accepted.
type PostgresSnapshots struct {
	db *sql.DB
}

func NewPostgresSnapshots(db *sql.DB) *PostgresSnapshots {
	return &PostgresSnapshots{db: db}
}

func (s *PostgresSnapshots) Problem(ctx context.Context, id string) (*models.ProblemSnapshot, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT p.id, p.status, p.priority, p.category,
		        COALESCE(p.department_id, ''), COALESCE(d.name, '')
		 FROM problems p
		 LEFT JOIN departments d ON d.id = p.department_id
		 WHERE p.id = $1`,
		id,
	)

	var snap models.ProblemSnapshot
	err := row.Scan(&snap.ID, &snap.Status, &snap.Priority, &snap.Category,
		&snap.DepartmentID, &snap.DepartmentName)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewEntityNotFoundError(id)
	}
	if err != nil {
		return nil, apperrors.NewStoreUnavailableError(err)
	}
	return &snap, nil
}
