package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/ksbdigital/be-spend-approvals/internal/apperrors"
	"github.com/ksbdigital/be-spend-approvals/internal/database"
	"github.com/ksbdigital/be-spend-approvals/internal/model"
)

// AdjudicationRepository manages the 0/1 adjudication per purchase
// requisition.
type AdjudicationRepository struct {
	db *database.DB
}

// NewAdjudicationRepository creates a new AdjudicationRepository.
func NewAdjudicationRepository(db *database.DB) *AdjudicationRepository {
	return &AdjudicationRepository{db: db}
}

// Create inserts an adjudication. At most one may exist per request.
func (r *AdjudicationRepository) Create(ctx context.Context, adj *model.Adjudication) error {
	existing, err := r.GetByRequestID(ctx, adj.RequestID)
	if err != nil {
		return err
	}
	if existing != nil {
		return apperrors.Newf(apperrors.CodeConflict,
			"request %s already has an adjudication", adj.RequestID)
	}

	query := `
		INSERT INTO adjudications
		    (request_id, recommended_vendor, recommended_amount, currency, comparison, review_status)
		VALUES ($1, $2, $3, $4, $5, 'pending')
		RETURNING id, created_at
	`

	err = r.db.QueryRow(ctx, query,
		adj.RequestID,
		adj.RecommendedVendor,
		adj.RecommendedAmount,
		adj.Currency,
		adj.Comparison,
	).Scan(&adj.ID, &adj.CreatedAt)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternal, "failed to create adjudication")
	}
	adj.ReviewStatus = "pending"
	return nil
}

// GetByRequestID returns the adjudication for a request, or nil when the
// requisition went through the direct-approval path.
func (r *AdjudicationRepository) GetByRequestID(ctx context.Context, requestID string) (*model.Adjudication, error) {
	query := `
		SELECT id, request_id, recommended_vendor, recommended_amount, currency,
		       comparison, review_status, reviewed_by, reviewed_at, created_at
		FROM adjudications
		WHERE request_id = $1
	`

	adj := &model.Adjudication{}
	err := r.db.QueryRow(ctx, query, requestID).Scan(
		&adj.ID,
		&adj.RequestID,
		&adj.RecommendedVendor,
		&adj.RecommendedAmount,
		&adj.Currency,
		&adj.Comparison,
		&adj.ReviewStatus,
		&adj.ReviewedBy,
		&adj.ReviewedAt,
		&adj.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to get adjudication")
	}
	return adj, nil
}

// UpdateReview records the finance/MD review outcome.
func (r *AdjudicationRepository) UpdateReview(ctx context.Context, id, status, reviewedBy string) error {
	query := `
		UPDATE adjudications
		SET review_status = $2,
		    reviewed_by   = $3,
		    reviewed_at   = NOW()
		WHERE id = $1
		RETURNING id
	`

	var returnedID string
	err := r.db.QueryRow(ctx, query, id, status, reviewedBy).Scan(&returnedID)
	if err == pgx.ErrNoRows {
		return apperrors.NotFound("adjudication", id)
	}
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternal, "failed to update adjudication review")
	}
	return nil
}
