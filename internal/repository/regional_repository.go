package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/ksbdigital/be-spend-approvals/internal/apperrors"
	"github.com/ksbdigital/be-spend-approvals/internal/database"
	"github.com/ksbdigital/be-spend-approvals/internal/model"
)

// RegionalRepository reads regional expense-claim approver assignments.
type RegionalRepository struct {
	db *database.DB
}

// NewRegionalRepository creates a new RegionalRepository.
func NewRegionalRepository(db *database.DB) *RegionalRepository {
	return &RegionalRepository{db: db}
}

// AssignmentsCovering returns every assignment whose department set contains
// the department. More than one match is a configuration error the resolver
// must refuse to guess through.
func (r *RegionalRepository) AssignmentsCovering(ctx context.Context, department string) ([]*model.RegionalApproverAssignment, error) {
	query := `
		SELECT id, user_id, departments, created_at
		FROM regional_approver_assignments
		WHERE $1 = ANY(departments)
		ORDER BY created_at ASC
	`

	rows, err := r.db.Query(ctx, query, department)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to list regional assignments")
	}
	defer rows.Close()

	return r.scanAssignments(rows)
}

// AssignmentFor returns the assignment held by a user, or nil when the user
// has none.
func (r *RegionalRepository) AssignmentFor(ctx context.Context, userID string) (*model.RegionalApproverAssignment, error) {
	query := `
		SELECT id, user_id, departments, created_at
		FROM regional_approver_assignments
		WHERE user_id = $1
	`

	a := &model.RegionalApproverAssignment{}
	err := r.db.QueryRow(ctx, query, userID).Scan(&a.ID, &a.UserID, &a.Departments, &a.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to get regional assignment")
	}
	return a, nil
}

func (r *RegionalRepository) scanAssignments(rows pgx.Rows) ([]*model.RegionalApproverAssignment, error) {
	var assignments []*model.RegionalApproverAssignment
	for rows.Next() {
		a := &model.RegionalApproverAssignment{}
		if err := rows.Scan(&a.ID, &a.UserID, &a.Departments, &a.CreatedAt); err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to scan regional assignment")
		}
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}
