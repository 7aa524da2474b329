package service

import (
	"context"

	"github.com/ksbdigital/be-spend-approvals/internal/model"
)

// UserDirectory resolves users by id and by role/department constraint.
// Implemented by repository.UserRepository.
type UserDirectory interface {
	GetByID(ctx context.Context, id string) (*model.User, error)
	ActiveUsersByRole(ctx context.Context, role model.Role) ([]*model.User, error)
	ActiveHODsByDepartment(ctx context.Context, department string) ([]*model.User, error)
}

// UserAdmin extends user reads with the writes performed by admin tooling.
// Create and Update enforce the one-active-HOD-per-department rule.
// Implemented by repository.UserRepository.
type UserAdmin interface {
	UserDirectory
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	Create(ctx context.Context, u *model.User) error
	Update(ctx context.Context, u *model.User) error
}

// DepartmentStore reads department reference data.
// Implemented by repository.DepartmentRepository.
type DepartmentStore interface {
	GetByName(ctx context.Context, name string) (*model.Department, error)
	ListActive(ctx context.Context) ([]*model.Department, error)
}

// RegionalAssignments resolves the expense-claim regional approver overrides.
// Implemented by repository.RegionalRepository.
type RegionalAssignments interface {
	AssignmentsCovering(ctx context.Context, department string) ([]*model.RegionalApproverAssignment, error)
	AssignmentFor(ctx context.Context, userID string) (*model.RegionalApproverAssignment, error)
}

// RequestStore persists requests. SaveDecision must be atomic: the status
// change, stage stamps and audit append commit together or not at all.
// Implemented by repository.RequestRepository.
type RequestStore interface {
	Create(ctx context.Context, req *model.Request) error
	GetByID(ctx context.Context, id string) (*model.Request, error)
	ListByFormType(ctx context.Context, formType model.FormType) ([]*model.Request, error)
	ListPending(ctx context.Context, formType model.FormType, status model.Status) ([]*model.Request, error)
	SaveDecision(ctx context.Context, req *model.Request, approval *model.FormApproval) error
}

// VendorStore resolves and lists vendors.
// Implemented by repository.VendorRepository.
type VendorStore interface {
	GetByID(ctx context.Context, id string) (*model.Vendor, error)
	GetByName(ctx context.Context, name string) (*model.Vendor, error)
	ListActive(ctx context.Context) ([]*model.Vendor, error)
}

// AuditLog reads the append-only approval trail.
// Implemented by repository.AuditRepository.
type AuditLog interface {
	HistoryFor(ctx context.Context, formID string) ([]*model.FormApproval, error)
	HasAction(ctx context.Context, formID string, role model.Role) (bool, error)
}

// RedirectionStore records and resolves admin approver overrides.
// Implemented by repository.RedirectionRepository.
type RedirectionStore interface {
	Create(ctx context.Context, red *model.Redirection) error
	LatestFor(ctx context.Context, requestID string, stage model.Stage) (*model.Redirection, error)
}

// EventPublisher emits workflow events for the notifications service.
// Publishing is best-effort; implementations must never fail the workflow.
// Implemented by client.NotificationPublisher.
type EventPublisher interface {
	PublishRequestEvent(eventType string, req *model.Request, actorID string, recipients []string)
}

// AdjudicationStore manages the optional competitive-quote record.
// Implemented by repository.AdjudicationRepository.
type AdjudicationStore interface {
	Create(ctx context.Context, adj *model.Adjudication) error
	GetByRequestID(ctx context.Context, requestID string) (*model.Adjudication, error)
	UpdateReview(ctx context.Context, id, status, reviewedBy string) error
}
