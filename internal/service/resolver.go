package service

import (
	"context"

	"github.com/ksbdigital/be-spend-approvals/internal/apperrors"
	"github.com/ksbdigital/be-spend-approvals/internal/model"
)

// Resolution is the outcome of approver resolution: either one specific user,
// or any active holder of a role (procurement is a pool, not a singleton).
type Resolution struct {
	User *model.User
	Role model.Role
}

// Allows reports whether the acting user satisfies the resolution.
func (res Resolution) Allows(actor *model.User) bool {
	if res.User != nil {
		return res.User.ID == actor.ID
	}
	return actor.Role == res.Role && actor.IsActive
}

// ApproverResolver maps {form type, department, stage} to the party that must
// act next. Configuration defects (no approver, more than one candidate) fail
// fast instead of picking arbitrarily; both variants were observed as real
// routing bugs in production data.
type ApproverResolver struct {
	users    UserDirectory
	regional RegionalAssignments
}

// NewApproverResolver creates a new ApproverResolver.
func NewApproverResolver(users UserDirectory, regional RegionalAssignments) *ApproverResolver {
	return &ApproverResolver{users: users, regional: regional}
}

// Resolve determines who must act on the request at the given stage.
//
// Priority order:
//  1. an explicit assigned_hod_id on the request (procurement override)
//  2. the initiator's assigned_hod supervisor reference
//  3. the unique active HOD of the request's department
//  4. for finance on expense claims only: the regional approver covering the
//     department, falling back to the singleton finance role
//  5. singleton role lookup for finance and md
func (r *ApproverResolver) Resolve(ctx context.Context, req *model.Request, stage model.Stage) (Resolution, error) {
	switch stage {
	case model.StageHOD:
		return r.resolveHOD(ctx, req)
	case model.StageFinance:
		return r.resolveFinance(ctx, req)
	case model.StageMD:
		return r.singleton(ctx, model.RoleMD)
	case model.StageProcurement:
		// Any active procurement officer may act.
		return Resolution{Role: model.RoleProcurement}, nil
	}
	return Resolution{}, apperrors.Newf(apperrors.CodeInternal, "unknown stage %q", stage)
}

func (r *ApproverResolver) resolveHOD(ctx context.Context, req *model.Request) (Resolution, error) {
	if req.AssignedHODID != nil {
		u, err := r.users.GetByID(ctx, *req.AssignedHODID)
		if err != nil {
			return Resolution{}, apperrors.Wrap(err, apperrors.CodeNoApproverConfigured,
				"assigned HOD does not exist")
		}
		if !u.IsActive {
			return Resolution{}, apperrors.Newf(apperrors.CodeNoApproverConfigured,
				"assigned HOD %s is inactive", u.Username)
		}
		return Resolution{User: u}, nil
	}

	initiator, err := r.users.GetByID(ctx, req.InitiatorID)
	if err != nil {
		return Resolution{}, err
	}
	if initiator.AssignedHODID != nil {
		u, err := r.users.GetByID(ctx, *initiator.AssignedHODID)
		if err != nil {
			return Resolution{}, apperrors.Wrap(err, apperrors.CodeNoApproverConfigured,
				"initiator's supervisor does not exist")
		}
		if !u.IsActive {
			return Resolution{}, apperrors.Newf(apperrors.CodeNoApproverConfigured,
				"initiator's supervisor %s is inactive", u.Username)
		}
		return Resolution{User: u}, nil
	}

	hods, err := r.users.ActiveHODsByDepartment(ctx, req.Department)
	if err != nil {
		return Resolution{}, err
	}
	switch len(hods) {
	case 0:
		return Resolution{}, apperrors.Newf(apperrors.CodeNoApproverConfigured,
			"no active HOD configured for department %q", req.Department)
	case 1:
		return Resolution{User: hods[0]}, nil
	default:
		return Resolution{}, apperrors.Newf(apperrors.CodeAmbiguousApprover,
			"department %q has %d active HODs", req.Department, len(hods))
	}
}

func (r *ApproverResolver) resolveFinance(ctx context.Context, req *model.Request) (Resolution, error) {
	// The regional override applies to expense claims only; EFT and purchase
	// requisitions always use the singleton finance role.
	if req.FormType == model.FormExpenseClaim {
		assignments, err := r.regional.AssignmentsCovering(ctx, req.Department)
		if err != nil {
			return Resolution{}, err
		}
		switch len(assignments) {
		case 0:
			// fall through to singleton finance
		case 1:
			u, err := r.users.GetByID(ctx, assignments[0].UserID)
			if err != nil {
				return Resolution{}, apperrors.Wrap(err, apperrors.CodeNoApproverConfigured,
					"regional approver does not exist")
			}
			if !u.IsActive {
				return Resolution{}, apperrors.Newf(apperrors.CodeNoApproverConfigured,
					"regional approver %s is inactive", u.Username)
			}
			return Resolution{User: u}, nil
		default:
			return Resolution{}, apperrors.Newf(apperrors.CodeAmbiguousApprover,
				"department %q is covered by %d regional approvers", req.Department, len(assignments))
		}
	}

	return r.singleton(ctx, model.RoleFinance)
}

func (r *ApproverResolver) singleton(ctx context.Context, role model.Role) (Resolution, error) {
	users, err := r.users.ActiveUsersByRole(ctx, role)
	if err != nil {
		return Resolution{}, err
	}
	switch len(users) {
	case 0:
		return Resolution{}, apperrors.Newf(apperrors.CodeNoApproverConfigured,
			"no active user holds role %q", role)
	case 1:
		return Resolution{User: users[0]}, nil
	default:
		return Resolution{}, apperrors.Newf(apperrors.CodeAmbiguousApprover,
			"%d active users hold singleton role %q", len(users), role)
	}
}
