package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ksbdigital/be-spend-approvals/internal/apperrors"
	"github.com/ksbdigital/be-spend-approvals/internal/database"
	"github.com/ksbdigital/be-spend-approvals/internal/model"
)

// RedirectionRepository records admin approver overrides. The latest
// redirection for a (request, stage) pair wins.
type RedirectionRepository struct {
	db *database.DB
}

// NewRedirectionRepository creates a new RedirectionRepository.
func NewRedirectionRepository(db *database.DB) *RedirectionRepository {
	return &RedirectionRepository{db: db}
}

// Create inserts a redirection record.
func (r *RedirectionRepository) Create(ctx context.Context, red *model.Redirection) error {
	if red.ID == "" {
		red.ID = uuid.NewString()
	}

	query := `
		INSERT INTO redirections
		    (id, request_id, form_type, stage, from_user_id, to_user_id, redirected_by, reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`

	err := r.db.QueryRow(ctx, query,
		red.ID,
		red.RequestID,
		string(red.FormType),
		string(red.Stage),
		red.FromUserID,
		red.ToUserID,
		red.RedirectedBy,
		red.Reason,
	).Scan(&red.CreatedAt)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternal, "failed to create redirection")
	}
	return nil
}

// LatestFor returns the most recent redirection for a request stage, or nil
// when the stage has not been redirected.
func (r *RedirectionRepository) LatestFor(ctx context.Context, requestID string, stage model.Stage) (*model.Redirection, error) {
	query := `
		SELECT id, request_id, form_type, stage, from_user_id, to_user_id,
		       redirected_by, reason, created_at
		FROM redirections
		WHERE request_id = $1 AND stage = $2
		ORDER BY created_at DESC
		LIMIT 1
	`

	red := &model.Redirection{}
	var formType, stg string
	err := r.db.QueryRow(ctx, query, requestID, string(stage)).Scan(
		&red.ID,
		&red.RequestID,
		&formType,
		&stg,
		&red.FromUserID,
		&red.ToUserID,
		&red.RedirectedBy,
		&red.Reason,
		&red.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to get redirection")
	}
	red.FormType = model.FormType(formType)
	red.Stage = model.Stage(stg)
	return red, nil
}
