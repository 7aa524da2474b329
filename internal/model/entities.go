package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// User is an account that can initiate or approve requests.
type User struct {
	ID            string
	Username      string
	FullName      string
	Role          Role
	Department    string
	IsHOD         bool
	AssignedHODID *string // explicit supervisor override; wins over department lookup
	IsActive      bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Department is static reference data.
type Department struct {
	ID       string
	Name     string
	Code     string
	HODName  *string
	IsActive bool
}

// Vendor is a supplier. Code is the denormalized key copied onto completed
// purchase requisitions.
type Vendor struct {
	ID           string
	Name         string
	Code         string
	Tier         *string
	Rating       *int
	Category     *string
	Status       string // active | inactive
	ContactEmail *string
	ContactPhone *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Request is one spend request of any form type. The four form types share
// this shape; per-type columns that do not apply stay nil.
type Request struct {
	ID            string
	RequestNumber string
	FormType      FormType
	InitiatorID   string
	InitiatorName string
	Department    string
	Amount        decimal.Decimal
	Currency      string
	Purpose       string
	Status        Status

	// Procurement may pin the HOD when submitting on behalf of a department.
	AssignedHODID *string

	HODApprovedBy     *string
	HODApprovedAt     *time.Time
	HODComments       *string
	FinanceApprovedBy *string
	FinanceApprovedAt *time.Time
	FinanceComments   *string
	MDApprovedBy      *string
	MDApprovedAt      *time.Time
	MDComments        *string

	RejectedBy      *string
	RejectedAt      *time.Time
	RejectionReason *string

	// Purchase-requisition procurement fields.
	SelectedVendorID   *string
	SelectedVendorName *string
	VendorCode         *string
	VendorCurrency     *string
	TotalCost          *decimal.Decimal

	// PO issuance.
	PONumber      *string
	POGeneratedBy *string
	POGeneratedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time

	Items []*RequestItem
}

// CurrentStage returns the approval stage the request is waiting on.
func (r *Request) CurrentStage() (Stage, bool) {
	return StageFor(r.Status)
}

// RequestItem is one line item on a request.
type RequestItem struct {
	ID             string
	RequestID      string
	ItemName       string
	Quantity       decimal.Decimal
	UnitPrice      decimal.Decimal
	TotalPrice     decimal.Decimal
	Specifications *string
}

// Adjudication is the competitive-quote comparison attached to at most one
// purchase requisition. Its absence means the requisition went through the
// direct-approval path.
type Adjudication struct {
	ID                string
	RequestID         string
	RecommendedVendor string
	RecommendedAmount decimal.Decimal
	Currency          string
	Comparison        *string
	ReviewStatus      string // pending | accepted | declined
	ReviewedBy        *string
	ReviewedAt        *time.Time
	CreatedAt         time.Time
}

// FormApproval is one immutable audit row. The (FormID, ApproverRole) pair
// with a recorded action is the idempotence key for workflow actions.
type FormApproval struct {
	ID           string
	FormType     FormType
	FormID       string
	ApproverRole Role
	ApproverID   string
	ApproverName string
	Action       Action
	Comments     *string
	CreatedAt    time.Time
}

// RegionalApproverAssignment maps a user to the departments whose expense
// claims they approve in place of the singleton finance role.
type RegionalApproverAssignment struct {
	ID          string
	UserID      string
	Departments []string
	CreatedAt   time.Time
}

// Covers reports whether the assignment includes the department. Matching is
// exact; "Operations" and "Operations " are distinct on purpose, so that bad
// reference data surfaces instead of being papered over.
func (a *RegionalApproverAssignment) Covers(department string) bool {
	for _, d := range a.Departments {
		if d == department {
			return true
		}
	}
	return false
}

// Redirection records an admin override of the resolved approver for one
// stage of one request.
type Redirection struct {
	ID           string
	RequestID    string
	FormType     FormType
	Stage        Stage
	FromUserID   *string
	ToUserID     string
	RedirectedBy string
	Reason       string
	CreatedAt    time.Time
}
