package service

import (
	"context"

	"github.com/ksbdigital/be-spend-approvals/internal/model"
)

// VisibilityFilter decides which requests a user may see and act on. It is
// the inverse of the resolver: if a user could be asked to act on a request,
// the request is visible to them.
//
// Department comparisons are exact string equality by design. Trimming or
// case-folding here would mask bad reference data; "Operations" and
// "Operations " staying distinct is what surfaces the defect.
type VisibilityFilter struct {
	regional RegionalAssignments
}

// NewVisibilityFilter creates a new VisibilityFilter.
func NewVisibilityFilter(regional RegionalAssignments) *VisibilityFilter {
	return &VisibilityFilter{regional: regional}
}

// Filter returns the subset of requests the user is entitled to see.
func (f *VisibilityFilter) Filter(ctx context.Context, user *model.User, requests []*model.Request) ([]*model.Request, error) {
	var assignment *model.RegionalApproverAssignment
	if user.Role == model.RoleRegionalApprover {
		var err error
		assignment, err = f.regional.AssignmentFor(ctx, user.ID)
		if err != nil {
			return nil, err
		}
	}

	visible := make([]*model.Request, 0, len(requests))
	for _, req := range requests {
		if f.visibleTo(user, assignment, req) {
			visible = append(visible, req)
		}
	}
	return visible, nil
}

func (f *VisibilityFilter) visibleTo(user *model.User, assignment *model.RegionalApproverAssignment, req *model.Request) bool {
	// Own submissions are always visible to the author, every role.
	if req.InitiatorID == user.ID {
		return true
	}

	switch user.Role {
	case model.RoleAdmin:
		return true

	case model.RoleInitiator:
		return false

	case model.RoleHOD:
		if req.AssignedHODID != nil && *req.AssignedHODID == user.ID {
			return true
		}
		return req.Department == user.Department && req.Status == model.StatusPendingHOD

	case model.RoleFinance:
		// Organization-wide, from their pending stage onward.
		return atOrPast(req, model.StatusPendingFinance)

	case model.RoleMD:
		return atOrPast(req, model.StatusPendingMD)

	case model.RoleProcurement:
		return req.FormType == model.FormPurchaseRequisition &&
			atOrPast(req, model.StatusPendingProcurement)

	case model.RoleRegionalApprover:
		// Expense claims only, pending at their stage, department in region.
		if req.FormType != model.FormExpenseClaim || req.Status != model.StatusPendingFinance {
			return false
		}
		return assignment != nil && assignment.Covers(req.Department)
	}

	return false
}

// atOrPast reports whether the request's status is at or past the given
// pending stage in its form type's graph. Rejected requests count as past
// every stage so organization-wide reviewers keep sight of them.
func atOrPast(req *model.Request, pending model.Status) bool {
	return statusRank(req.FormType, req.Status) >= statusRank(req.FormType, pending)
}

func statusRank(f model.FormType, s model.Status) int {
	order := model.Statuses(f)
	for i, v := range order {
		if v == s {
			// Statuses lists rejected last already; keep its rank maximal.
			return i
		}
	}
	return -1
}
