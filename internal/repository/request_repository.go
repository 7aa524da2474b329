package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/ksbdigital/be-spend-approvals/internal/apperrors"
	"github.com/ksbdigital/be-spend-approvals/internal/database"
	"github.com/ksbdigital/be-spend-approvals/internal/model"
)

// RequestRepository owns the requests table and its line items. Status and
// approval-stamp mutations go through SaveDecision so that the status change,
// the stage stamp and the audit append commit or roll back as one unit.
type RequestRepository struct {
	db *database.DB
}

// NewRequestRepository creates a new RequestRepository.
func NewRequestRepository(db *database.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

const requestColumns = `
	id, request_number, form_type, initiator_id, initiator_name,
	department, amount, currency, purpose, status, assigned_hod_id,
	hod_approved_by, hod_approved_at, hod_comments,
	finance_approved_by, finance_approved_at, finance_comments,
	md_approved_by, md_approved_at, md_comments,
	rejected_by, rejected_at, rejection_reason,
	selected_vendor_id, selected_vendor_name, vendor_code, vendor_currency, total_cost,
	po_number, po_generated_by, po_generated_at,
	created_at, updated_at
`

// Create inserts a request and its line items in one transaction.
func (r *RequestRepository) Create(ctx context.Context, req *model.Request) error {
	return r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		query := `
			INSERT INTO requests
			    (request_number, form_type, initiator_id, initiator_name,
			     department, amount, currency, purpose, status, assigned_hod_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING id, created_at, updated_at
		`

		err := tx.QueryRow(ctx, query,
			req.RequestNumber,
			string(req.FormType),
			req.InitiatorID,
			req.InitiatorName,
			req.Department,
			req.Amount,
			req.Currency,
			req.Purpose,
			string(req.Status),
			req.AssignedHODID,
		).Scan(&req.ID, &req.CreatedAt, &req.UpdatedAt)
		if err != nil {
			return apperrors.Wrap(err, apperrors.CodeInternal, "failed to create request")
		}

		itemQuery := `
			INSERT INTO request_items
			    (request_id, item_name, quantity, unit_price, total_price, specifications)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id
		`

		for _, item := range req.Items {
			item.RequestID = req.ID
			err := tx.QueryRow(ctx, itemQuery,
				item.RequestID,
				item.ItemName,
				item.Quantity,
				item.UnitPrice,
				item.TotalPrice,
				item.Specifications,
			).Scan(&item.ID)
			if err != nil {
				return apperrors.Wrap(err, apperrors.CodeInternal, "failed to create request item")
			}
		}

		return nil
	})
}

// GetByID retrieves a request with its line items.
func (r *RequestRepository) GetByID(ctx context.Context, id string) (*model.Request, error) {
	query := `SELECT ` + requestColumns + ` FROM requests WHERE id = $1`

	req, err := r.scanRequest(r.db.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, apperrors.NotFound("request", id)
	}
	if err != nil {
		return nil, err
	}

	items, err := r.itemsFor(ctx, id)
	if err != nil {
		return nil, err
	}
	req.Items = items
	return req, nil
}

// ListByFormType returns all requests of a form type, newest first, without
// line items. Used by the visibility filter.
func (r *RequestRepository) ListByFormType(ctx context.Context, formType model.FormType) ([]*model.Request, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM requests
		WHERE form_type = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.Query(ctx, query, string(formType))
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to list requests")
	}
	defer rows.Close()

	return r.scanRequests(rows)
}

// ListPending returns requests of a form type sitting in one status.
func (r *RequestRepository) ListPending(ctx context.Context, formType model.FormType, status model.Status) ([]*model.Request, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM requests
		WHERE form_type = $1 AND status = $2
		ORDER BY created_at ASC
	`

	rows, err := r.db.Query(ctx, query, string(formType), string(status))
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to list pending requests")
	}
	defer rows.Close()

	return r.scanRequests(rows)
}

// SaveDecision rewrites the request's mutable workflow fields, rewrites line
// item pricing, and appends the audit row when one is given, all in a single
// transaction.
func (r *RequestRepository) SaveDecision(ctx context.Context, req *model.Request, approval *model.FormApproval) error {
	return r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		query := `
			UPDATE requests
			SET status               = $2,
			    assigned_hod_id      = $3,
			    hod_approved_by      = $4,
			    hod_approved_at      = $5,
			    hod_comments         = $6,
			    finance_approved_by  = $7,
			    finance_approved_at  = $8,
			    finance_comments     = $9,
			    md_approved_by       = $10,
			    md_approved_at       = $11,
			    md_comments          = $12,
			    rejected_by          = $13,
			    rejected_at          = $14,
			    rejection_reason     = $15,
			    selected_vendor_id   = $16,
			    selected_vendor_name = $17,
			    vendor_code          = $18,
			    vendor_currency      = $19,
			    total_cost           = $20,
			    po_number            = $21,
			    po_generated_by      = $22,
			    po_generated_at      = $23,
			    updated_at           = NOW()
			WHERE id = $1
			RETURNING updated_at
		`

		err := tx.QueryRow(ctx, query,
			req.ID,
			string(req.Status),
			req.AssignedHODID,
			req.HODApprovedBy, req.HODApprovedAt, req.HODComments,
			req.FinanceApprovedBy, req.FinanceApprovedAt, req.FinanceComments,
			req.MDApprovedBy, req.MDApprovedAt, req.MDComments,
			req.RejectedBy, req.RejectedAt, req.RejectionReason,
			req.SelectedVendorID, req.SelectedVendorName, req.VendorCode,
			req.VendorCurrency, nullDecimal(req.TotalCost),
			req.PONumber, req.POGeneratedBy, req.POGeneratedAt,
		).Scan(&req.UpdatedAt)
		if err == pgx.ErrNoRows {
			return apperrors.NotFound("request", req.ID)
		}
		if err != nil {
			return apperrors.Wrap(err, apperrors.CodeInternal, "failed to save request decision")
		}

		itemQuery := `
			UPDATE request_items
			SET unit_price  = $2,
			    total_price = $3
			WHERE id = $1
		`
		for _, item := range req.Items {
			if _, err := tx.Exec(ctx, itemQuery, item.ID, item.UnitPrice, item.TotalPrice); err != nil {
				return apperrors.Wrap(err, apperrors.CodeInternal, "failed to save item pricing")
			}
		}

		if approval != nil {
			auditQuery := `
				INSERT INTO form_approvals
				    (form_type, form_id, approver_role, approver_id, approver_name, action, comments)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
				RETURNING id, created_at
			`
			err := tx.QueryRow(ctx, auditQuery,
				string(approval.FormType),
				approval.FormID,
				string(approval.ApproverRole),
				approval.ApproverID,
				approval.ApproverName,
				string(approval.Action),
				approval.Comments,
			).Scan(&approval.ID, &approval.CreatedAt)
			if err != nil {
				return apperrors.Wrap(err, apperrors.CodeInternal, "failed to append approval audit row")
			}
		}

		return nil
	})
}

func (r *RequestRepository) itemsFor(ctx context.Context, requestID string) ([]*model.RequestItem, error) {
	query := `
		SELECT id, request_id, item_name, quantity, unit_price, total_price, specifications
		FROM request_items
		WHERE request_id = $1
		ORDER BY id ASC
	`

	rows, err := r.db.Query(ctx, query, requestID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to list request items")
	}
	defer rows.Close()

	var items []*model.RequestItem
	for rows.Next() {
		item := &model.RequestItem{}
		err := rows.Scan(
			&item.ID,
			&item.RequestID,
			&item.ItemName,
			&item.Quantity,
			&item.UnitPrice,
			&item.TotalPrice,
			&item.Specifications,
		)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to scan request item")
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// ── scan helpers ──────────────────────────────────────────────────────────────

type requestScanner interface {
	Scan(dest ...any) error
}

func (r *RequestRepository) scanRequest(row requestScanner) (*model.Request, error) {
	req := &model.Request{}
	var formType, status string
	var totalCost decimal.NullDecimal

	err := row.Scan(
		&req.ID,
		&req.RequestNumber,
		&formType,
		&req.InitiatorID,
		&req.InitiatorName,
		&req.Department,
		&req.Amount,
		&req.Currency,
		&req.Purpose,
		&status,
		&req.AssignedHODID,
		&req.HODApprovedBy, &req.HODApprovedAt, &req.HODComments,
		&req.FinanceApprovedBy, &req.FinanceApprovedAt, &req.FinanceComments,
		&req.MDApprovedBy, &req.MDApprovedAt, &req.MDComments,
		&req.RejectedBy, &req.RejectedAt, &req.RejectionReason,
		&req.SelectedVendorID, &req.SelectedVendorName, &req.VendorCode,
		&req.VendorCurrency, &totalCost,
		&req.PONumber, &req.POGeneratedBy, &req.POGeneratedAt,
		&req.CreatedAt,
		&req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	req.FormType, err = model.ParseFormType(formType)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "stored form type is invalid")
	}
	req.Status = model.Status(status)
	if !model.ValidStatus(req.FormType, req.Status) {
		return nil, apperrors.Newf(apperrors.CodeInternal,
			"request %s holds invalid status %q for form type %s", req.ID, status, formType)
	}
	if totalCost.Valid {
		req.TotalCost = &totalCost.Decimal
	}
	return req, nil
}

func (r *RequestRepository) scanRequests(rows pgx.Rows) ([]*model.Request, error) {
	var requests []*model.Request
	for rows.Next() {
		req, err := r.scanRequest(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to scan request")
		}
		requests = append(requests, req)
	}
	return requests, rows.Err()
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}
