// internal/store/directory.go
package store

import (
	"context"
	"database/sql"

	apperrors "cityreport-notifications/internal/common/errors"
	"cityreport-notifications/internal/models"
)

// PostgresDirectory serves role/department membership lookups for the
// recipient resolver, plus the departments listing used by the admin console.
type PostgresDirectory struct {
	db *sql.DB
}

func NewPostgresDirectory(db *sql.DB) *PostgresDirectory {
	return &PostgresDirectory{db: db}
}

func (d *PostgresDirectory) AdminIDs(ctx context.Context) ([]string, error) {
	return d.queryIDs(ctx,
		`SELECT id FROM users WHERE role = $1 ORDER BY id`,
		string(models.RoleAdmin),
	)
}

func (d *PostgresDirectory) DepartmentMemberIDs(ctx context.Context, departmentID string) ([]string, error) {
	return d.queryIDs(ctx,
		`SELECT id FROM users WHERE department_id = $1 ORDER BY id`,
		departmentID,
	)
}

func (d *PostgresDirectory) DepartmentAgentIDs(ctx context.Context, departmentID string) ([]string, error) {
	return d.queryIDs(ctx,
		`SELECT id FROM users WHERE department_id = $1 AND role = $2 ORDER BY id`,
		departmentID, string(models.RoleAgent),
	)
}

// ListDepartments returns all departments ordered by name.
func (d *PostgresDirectory) ListDepartments(ctx context.Context) ([]models.Department, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT id, name FROM departments ORDER BY name`)
	if err != nil {
		return nil, apperrors.NewStoreUnavailableError(err)
	}
	defer rows.Close()

	var out []models.Department
	for rows.Next() {
		var dep models.Department
		if err := rows.Scan(&dep.ID, &dep.Name); err != nil {
			return nil, apperrors.NewStoreUnavailableError(err)
		}
		out = append(out, dep)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStoreUnavailableError(err)
	}
	return out, nil
}

func (d *PostgresDirectory) queryIDs(ctx context.Context, query string, args ...interface{}) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewStoreUnavailableError(err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, apperrors.NewStoreUnavailableError(err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStoreUnavailableError(err)
	}
	return ids, nil
}
