package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/ksbdigital/be-spend-approvals/internal/apperrors"
	"github.com/ksbdigital/be-spend-approvals/internal/database"
	"github.com/ksbdigital/be-spend-approvals/internal/model"
)

// DepartmentRepository reads department reference data.
type DepartmentRepository struct {
	db *database.DB
}

// NewDepartmentRepository creates a new DepartmentRepository.
func NewDepartmentRepository(db *database.DB) *DepartmentRepository {
	return &DepartmentRepository{db: db}
}

// GetByName retrieves a department by its unique name. Name matching is exact.
func (r *DepartmentRepository) GetByName(ctx context.Context, name string) (*model.Department, error) {
	query := `
		SELECT id, name, code, hod_name, is_active
		FROM departments
		WHERE name = $1
	`

	d := &model.Department{}
	err := r.db.QueryRow(ctx, query, name).Scan(&d.ID, &d.Name, &d.Code, &d.HODName, &d.IsActive)
	if err == pgx.ErrNoRows {
		return nil, apperrors.NotFound("department", name)
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to get department")
	}
	return d, nil
}

// ListActive returns all active departments ordered by name.
func (r *DepartmentRepository) ListActive(ctx context.Context) ([]*model.Department, error) {
	query := `
		SELECT id, name, code, hod_name, is_active
		FROM departments
		WHERE is_active
		ORDER BY name ASC
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to list departments")
	}
	defer rows.Close()

	var departments []*model.Department
	for rows.Next() {
		d := &model.Department{}
		if err := rows.Scan(&d.ID, &d.Name, &d.Code, &d.HODName, &d.IsActive); err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to scan department")
		}
		departments = append(departments, d)
	}
	return departments, rows.Err()
}
