// Package model holds the domain entities and the closed enumerations for
// roles, form types, statuses, stages and actions. Raw strings are parsed
// exactly once at the boundary; everything past the boundary compares typed
// values. Historically this system compared raw role strings and a single
// "Initiator" vs "initiator" mismatch silently hid requests from approvers.
package model

import (
	"strings"

	"github.com/ksbdigital/be-spend-approvals/internal/apperrors"
)

// Role is a closed set of user roles.
type Role string

const (
	RoleInitiator        Role = "initiator"
	RoleHOD              Role = "hod"
	RoleFinance          Role = "finance"
	RoleMD               Role = "md"
	RoleProcurement      Role = "procurement"
	RoleAdmin            Role = "admin"
	RoleRegionalApprover Role = "regional_approver"
)

// ParseRole normalizes and validates a raw role string.
func ParseRole(raw string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(raw)))
	switch r {
	case RoleInitiator, RoleHOD, RoleFinance, RoleMD,
		RoleProcurement, RoleAdmin, RoleRegionalApprover:
		return r, nil
	}
	return "", apperrors.InvalidInput("role", "unknown role "+raw)
}

// FormType is a closed set of request form types.
type FormType string

const (
	FormPurchaseRequisition FormType = "purchase_requisition"
	FormEFT                 FormType = "eft"
	FormPettyCash           FormType = "petty_cash"
	FormExpenseClaim        FormType = "expense_claim"
)

// ParseFormType normalizes and validates a raw form type string.
func ParseFormType(raw string) (FormType, error) {
	f := FormType(strings.ToLower(strings.TrimSpace(raw)))
	switch f {
	case FormPurchaseRequisition, FormEFT, FormPettyCash, FormExpenseClaim:
		return f, nil
	}
	return "", apperrors.InvalidInput("form_type", "unknown form type "+raw)
}

// Prefix returns the request-number prefix segment for the form type.
func (f FormType) Prefix() string {
	switch f {
	case FormEFT:
		return "EFT"
	case FormPettyCash:
		return "PC"
	case FormExpenseClaim:
		return "EXP"
	default:
		return "REQ"
	}
}

// Status is a workflow status. Validity is per form type; see Statuses.
type Status string

const (
	StatusDraft              Status = "draft"
	StatusPendingHOD         Status = "pending_hod"
	StatusPendingFinance     Status = "pending_finance"
	StatusPendingMD          Status = "pending_md"
	StatusPendingProcurement Status = "pending_procurement"
	StatusApproved           Status = "approved"
	StatusCompleted          Status = "completed"
	StatusRejected           Status = "rejected"
)

// Statuses returns the fixed status set for a form type. Purchase
// requisitions pass through HOD and procurement stages; the three
// finance-first forms do not.
func Statuses(f FormType) []Status {
	if f == FormPurchaseRequisition {
		return []Status{
			StatusDraft, StatusPendingHOD, StatusPendingFinance,
			StatusPendingMD, StatusPendingProcurement,
			StatusCompleted, StatusRejected,
		}
	}
	return []Status{
		StatusDraft, StatusPendingFinance, StatusPendingMD,
		StatusApproved, StatusRejected,
	}
}

// ValidStatus reports whether s belongs to the status set of form type f.
func ValidStatus(f FormType, s Status) bool {
	for _, v := range Statuses(f) {
		if v == s {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions are permitted from s.
func (s Status) Terminal() bool {
	return s == StatusRejected || s == StatusApproved || s == StatusCompleted
}

// Stage is an approval stage awaiting action.
type Stage string

const (
	StageHOD         Stage = "hod"
	StageFinance     Stage = "finance"
	StageMD          Stage = "md"
	StageProcurement Stage = "procurement"
)

// StageFor maps a pending status to its approval stage. The second return is
// false for statuses with no pending stage (draft and terminals).
func StageFor(s Status) (Stage, bool) {
	switch s {
	case StatusPendingHOD:
		return StageHOD, true
	case StatusPendingFinance:
		return StageFinance, true
	case StatusPendingMD:
		return StageMD, true
	case StatusPendingProcurement:
		return StageProcurement, true
	}
	return "", false
}

// ApproverRole is the role recorded on audit rows for a stage.
func (st Stage) ApproverRole() Role {
	switch st {
	case StageHOD:
		return RoleHOD
	case StageFinance:
		return RoleFinance
	case StageMD:
		return RoleMD
	default:
		return RoleProcurement
	}
}

// Action is an incoming workflow action.
type Action string

const (
	ActionApprove  Action = "approve"
	ActionReject   Action = "reject"
	ActionRedirect Action = "redirect"
)

// ParseAction normalizes and validates a raw action string.
func ParseAction(raw string) (Action, error) {
	a := Action(strings.ToLower(strings.TrimSpace(raw)))
	switch a {
	case ActionApprove, ActionReject, ActionRedirect:
		return a, nil
	}
	return "", apperrors.InvalidInput("action", "unknown action "+raw)
}
