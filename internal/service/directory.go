package service

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ksbdigital/be-spend-approvals/internal/apperrors"
	"github.com/ksbdigital/be-spend-approvals/internal/model"
)

// DirectoryService manages the reference data the workflow resolves against:
// users, departments and vendors. User writes are restricted to admins and
// are where misconfiguration (duplicate HODs, unknown roles) gets rejected,
// instead of surfacing later as resolution failures.
type DirectoryService struct {
	users       UserAdmin
	departments DepartmentStore
	vendors     VendorStore
	log         zerolog.Logger
}

// NewDirectoryService creates a new DirectoryService.
func NewDirectoryService(users UserAdmin, departments DepartmentStore, vendors VendorStore, log zerolog.Logger) *DirectoryService {
	return &DirectoryService{
		users:       users,
		departments: departments,
		vendors:     vendors,
		log:         log,
	}
}

// CreateUserInput carries the fields for a new account. Role is the raw
// string from the caller; it is parsed and normalized here.
type CreateUserInput struct {
	Username      string
	FullName      string
	Role          string
	Department    string
	IsHOD         bool
	AssignedHODID *string
}

// CreateUser registers an account. Admin only.
func (s *DirectoryService) CreateUser(ctx context.Context, actingUserID string, in CreateUserInput) (*model.User, error) {
	if err := s.assertAdmin(ctx, actingUserID); err != nil {
		return nil, err
	}

	role, err := model.ParseRole(in.Role)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Username) == "" {
		return nil, apperrors.InvalidInput("username", "username is required")
	}

	u := &model.User{
		Username:      strings.TrimSpace(in.Username),
		FullName:      strings.TrimSpace(in.FullName),
		Role:          role,
		Department:    in.Department,
		IsHOD:         in.IsHOD || role == model.RoleHOD,
		AssignedHODID: in.AssignedHODID,
		IsActive:      true,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("user_id", u.ID).
		Str("username", u.Username).
		Str("role", string(u.Role)).
		Str("department", u.Department).
		Msg("User created")
	return u, nil
}

// UpdateUserInput carries the mutable account fields.
type UpdateUserInput struct {
	FullName      string
	Role          string
	Department    string
	IsHOD         bool
	AssignedHODID *string
	IsActive      bool
}

// UpdateUser rewrites an account's role and assignment fields. Admin only.
func (s *DirectoryService) UpdateUser(ctx context.Context, actingUserID, userID string, in UpdateUserInput) (*model.User, error) {
	if err := s.assertAdmin(ctx, actingUserID); err != nil {
		return nil, err
	}

	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	role, err := model.ParseRole(in.Role)
	if err != nil {
		return nil, err
	}

	u.FullName = strings.TrimSpace(in.FullName)
	u.Role = role
	u.Department = in.Department
	u.IsHOD = in.IsHOD || role == model.RoleHOD
	u.AssignedHODID = in.AssignedHODID
	u.IsActive = in.IsActive

	if err := s.users.Update(ctx, u); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("user_id", u.ID).
		Str("role", string(u.Role)).
		Bool("is_active", u.IsActive).
		Msg("User updated")
	return u, nil
}

// ListDepartments returns the active departments.
func (s *DirectoryService) ListDepartments(ctx context.Context) ([]*model.Department, error) {
	return s.departments.ListActive(ctx)
}

// ListVendors returns the active vendors.
func (s *DirectoryService) ListVendors(ctx context.Context) ([]*model.Vendor, error) {
	return s.vendors.ListActive(ctx)
}

func (s *DirectoryService) assertAdmin(ctx context.Context, actingUserID string) error {
	actor, err := s.users.GetByID(ctx, actingUserID)
	if err != nil {
		return err
	}
	if actor.Role != model.RoleAdmin {
		return apperrors.New(apperrors.CodeUnauthorizedAction,
			"only an admin may manage users")
	}
	return nil
}
