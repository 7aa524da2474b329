package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/ksbdigital/be-spend-approvals/internal/apperrors"
	"github.com/ksbdigital/be-spend-approvals/internal/database"
	"github.com/ksbdigital/be-spend-approvals/internal/model"
)

// AuditRepository reads the append-only form_approvals trail. Rows are only
// ever written through RequestRepository.SaveDecision so they land in the
// same transaction as the status change they record.
type AuditRepository struct {
	db *database.DB
}

// NewAuditRepository creates a new AuditRepository.
func NewAuditRepository(db *database.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

const approvalColumns = `
	id, form_type, form_id, approver_role, approver_id, approver_name,
	action, comments, created_at
`

// HistoryFor returns the full approval trail for a request, oldest first.
func (r *AuditRepository) HistoryFor(ctx context.Context, formID string) ([]*model.FormApproval, error) {
	query := `
		SELECT ` + approvalColumns + `
		FROM form_approvals
		WHERE form_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.db.Query(ctx, query, formID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to get approval history")
	}
	defer rows.Close()

	return r.scanApprovals(rows)
}

// HasAction reports whether an action has already been recorded for the
// (form, role) pair. This is the idempotence key: a second approval for the
// same stage must fail rather than re-stamp.
func (r *AuditRepository) HasAction(ctx context.Context, formID string, role model.Role) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM form_approvals
			WHERE form_id = $1 AND approver_role = $2
		)
	`

	var exists bool
	err := r.db.QueryRow(ctx, query, formID, string(role)).Scan(&exists)
	if err != nil {
		return false, apperrors.Wrap(err, apperrors.CodeInternal, "failed to check approval existence")
	}
	return exists, nil
}

// ── scan helpers ──────────────────────────────────────────────────────────────

func (r *AuditRepository) scanApprovals(rows pgx.Rows) ([]*model.FormApproval, error) {
	var approvals []*model.FormApproval
	for rows.Next() {
		a := &model.FormApproval{}
		var formType, role, action string
		err := rows.Scan(
			&a.ID,
			&formType,
			&a.FormID,
			&role,
			&a.ApproverID,
			&a.ApproverName,
			&action,
			&a.Comments,
			&a.CreatedAt,
		)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to scan approval")
		}
		a.FormType = model.FormType(formType)
		a.ApproverRole = model.Role(role)
		a.Action = model.Action(action)
		approvals = append(approvals, a)
	}
	return approvals, rows.Err()
}
