package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/ksbdigital/be-spend-approvals/internal/apperrors"
	"github.com/ksbdigital/be-spend-approvals/internal/database"
	"github.com/ksbdigital/be-spend-approvals/internal/model"
)

// UserRepository handles user reads and the role/department writes performed
// by admin tooling.
type UserRepository struct {
	db *database.DB
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `
	id, username, full_name, role, department,
	is_hod, assigned_hod_id, is_active,
	created_at, updated_at
`

// GetByID retrieves a user by primary key.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	u, err := r.scanUser(r.db.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, apperrors.NotFound("user", id)
	}
	return u, err
}

// GetByUsername retrieves a user by unique username.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`

	u, err := r.scanUser(r.db.QueryRow(ctx, query, username))
	if err == pgx.ErrNoRows {
		return nil, apperrors.NotFound("user", username)
	}
	return u, err
}

// ActiveUsersByRole returns all active users holding a role. Callers that
// expect a singleton role (finance, md) are responsible for treating
// multiplicity as a configuration error.
func (r *UserRepository) ActiveUsersByRole(ctx context.Context, role model.Role) ([]*model.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE role = $1 AND is_active
		ORDER BY id ASC
	`

	rows, err := r.db.Query(ctx, query, string(role))
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to list users by role")
	}
	defer rows.Close()

	return r.scanUsers(rows)
}

// ActiveHODsByDepartment returns all active HODs for a department. Department
// matching is exact string equality.
func (r *UserRepository) ActiveHODsByDepartment(ctx context.Context, department string) ([]*model.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE (role = 'hod' OR is_hod)
		  AND department = $1
		  AND is_active
		ORDER BY id ASC
	`

	rows, err := r.db.Query(ctx, query, department)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to list department HODs")
	}
	defer rows.Close()

	return r.scanUsers(rows)
}

// Create inserts a user. Assigning a second active HOD to a department that
// already has one is rejected here rather than discovered later by an audit
// script.
func (r *UserRepository) Create(ctx context.Context, u *model.User) error {
	if u.Role == model.RoleHOD || u.IsHOD {
		if err := r.assertDepartmentUncovered(ctx, u.Department, ""); err != nil {
			return err
		}
	}

	query := `
		INSERT INTO users (username, full_name, role, department, is_hod, assigned_hod_id, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRow(ctx, query,
		u.Username,
		u.FullName,
		string(u.Role),
		u.Department,
		u.IsHOD,
		u.AssignedHODID,
		u.IsActive,
	).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternal, "failed to create user")
	}
	return nil
}

// Update rewrites role, department and assignment fields.
func (r *UserRepository) Update(ctx context.Context, u *model.User) error {
	if u.Role == model.RoleHOD || u.IsHOD {
		if err := r.assertDepartmentUncovered(ctx, u.Department, u.ID); err != nil {
			return err
		}
	}

	query := `
		UPDATE users
		SET full_name       = $2,
		    role            = $3,
		    department      = $4,
		    is_hod          = $5,
		    assigned_hod_id = $6,
		    is_active       = $7,
		    updated_at      = NOW()
		WHERE id = $1
		RETURNING updated_at
	`

	err := r.db.QueryRow(ctx, query,
		u.ID,
		u.FullName,
		string(u.Role),
		u.Department,
		u.IsHOD,
		u.AssignedHODID,
		u.IsActive,
	).Scan(&u.UpdatedAt)
	if err == pgx.ErrNoRows {
		return apperrors.NotFound("user", u.ID)
	}
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternal, "failed to update user")
	}
	return nil
}

// assertDepartmentUncovered fails when the department already has a distinct
// active HOD.
func (r *UserRepository) assertDepartmentUncovered(ctx context.Context, department, excludeUserID string) error {
	existing, err := r.ActiveHODsByDepartment(ctx, department)
	if err != nil {
		return err
	}
	for _, hod := range existing {
		if hod.ID != excludeUserID {
			return apperrors.Newf(apperrors.CodeConflict,
				"department %q already has an active HOD (%s)", department, hod.Username)
		}
	}
	return nil
}

// ── scan helpers ──────────────────────────────────────────────────────────────

type userScanner interface {
	Scan(dest ...any) error
}

func (r *UserRepository) scanUser(row userScanner) (*model.User, error) {
	u := &model.User{}
	var role string
	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.FullName,
		&role,
		&u.Department,
		&u.IsHOD,
		&u.AssignedHODID,
		&u.IsActive,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	u.Role, err = model.ParseRole(role)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "stored role is invalid")
	}
	return u, nil
}

func (r *UserRepository) scanUsers(rows pgx.Rows) ([]*model.User, error) {
	var users []*model.User
	for rows.Next() {
		u, err := r.scanUser(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to scan user")
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
