package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/ksbdigital/be-spend-approvals/internal/apperrors"
	"github.com/ksbdigital/be-spend-approvals/internal/model"
)

// In-memory fakes for the store interfaces. Service tests never need a live
// database.

type fakeUsers struct {
	byID map[string]*model.User
	seq  int
}

func newFakeUsers(users ...*model.User) *fakeUsers {
	f := &fakeUsers{byID: map[string]*model.User{}}
	for _, u := range users {
		f.byID[u.ID] = u
	}
	return f
}

func (f *fakeUsers) GetByID(_ context.Context, id string) (*model.User, error) {
	if u, ok := f.byID[id]; ok {
		return u, nil
	}
	return nil, apperrors.NotFound("user", id)
}

func (f *fakeUsers) GetByUsername(_ context.Context, username string) (*model.User, error) {
	for _, u := range f.byID {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, apperrors.NotFound("user", username)
}

func (f *fakeUsers) Create(_ context.Context, u *model.User) error {
	f.seq++
	u.ID = fmt.Sprintf("user-%d", f.seq)
	f.byID[u.ID] = u
	return nil
}

func (f *fakeUsers) Update(_ context.Context, u *model.User) error {
	if _, ok := f.byID[u.ID]; !ok {
		return apperrors.NotFound("user", u.ID)
	}
	f.byID[u.ID] = u
	return nil
}

func (f *fakeUsers) ActiveUsersByRole(_ context.Context, role model.Role) ([]*model.User, error) {
	var out []*model.User
	for _, u := range f.byID {
		if u.Role == role && u.IsActive {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakeUsers) ActiveHODsByDepartment(_ context.Context, department string) ([]*model.User, error) {
	var out []*model.User
	for _, u := range f.byID {
		if (u.Role == model.RoleHOD || u.IsHOD) && u.Department == department && u.IsActive {
			out = append(out, u)
		}
	}
	return out, nil
}

type fakeDepartments struct {
	departments []*model.Department
}

func (f *fakeDepartments) GetByName(_ context.Context, name string) (*model.Department, error) {
	for _, d := range f.departments {
		if d.Name == name {
			return d, nil
		}
	}
	return nil, apperrors.NotFound("department", name)
}

func (f *fakeDepartments) ListActive(_ context.Context) ([]*model.Department, error) {
	var out []*model.Department
	for _, d := range f.departments {
		if d.IsActive {
			out = append(out, d)
		}
	}
	return out, nil
}

type fakeRegional struct {
	assignments []*model.RegionalApproverAssignment
}

func (f *fakeRegional) AssignmentsCovering(_ context.Context, department string) ([]*model.RegionalApproverAssignment, error) {
	var out []*model.RegionalApproverAssignment
	for _, a := range f.assignments {
		if a.Covers(department) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeRegional) AssignmentFor(_ context.Context, userID string) (*model.RegionalApproverAssignment, error) {
	for _, a := range f.assignments {
		if a.UserID == userID {
			return a, nil
		}
	}
	return nil, nil
}

type fakeAudit struct {
	entries []*model.FormApproval
}

func (f *fakeAudit) HistoryFor(_ context.Context, formID string) ([]*model.FormApproval, error) {
	var out []*model.FormApproval
	for _, e := range f.entries {
		if e.FormID == formID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeAudit) HasAction(_ context.Context, formID string, role model.Role) (bool, error) {
	for _, e := range f.entries {
		if e.FormID == formID && e.ApproverRole == role {
			return true, nil
		}
	}
	return false, nil
}

type fakeRequests struct {
	byID  map[string]*model.Request
	audit *fakeAudit
	seq   int
}

func newFakeRequests(audit *fakeAudit, requests ...*model.Request) *fakeRequests {
	f := &fakeRequests{byID: map[string]*model.Request{}, audit: audit}
	for _, r := range requests {
		f.byID[r.ID] = r
	}
	return f
}

func (f *fakeRequests) Create(_ context.Context, req *model.Request) error {
	f.seq++
	req.ID = fmt.Sprintf("req-%d", f.seq)
	for _, item := range req.Items {
		item.RequestID = req.ID
	}
	f.byID[req.ID] = req
	return nil
}

func (f *fakeRequests) GetByID(_ context.Context, id string) (*model.Request, error) {
	if r, ok := f.byID[id]; ok {
		return r, nil
	}
	return nil, apperrors.NotFound("request", id)
}

func (f *fakeRequests) ListByFormType(_ context.Context, formType model.FormType) ([]*model.Request, error) {
	var out []*model.Request
	for _, r := range f.byID {
		if r.FormType == formType {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRequests) ListPending(_ context.Context, formType model.FormType, status model.Status) ([]*model.Request, error) {
	var out []*model.Request
	for _, r := range f.byID {
		if r.FormType == formType && r.Status == status {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRequests) SaveDecision(_ context.Context, req *model.Request, approval *model.FormApproval) error {
	f.byID[req.ID] = req
	if approval != nil {
		f.audit.entries = append(f.audit.entries, approval)
	}
	return nil
}

type fakeVendors struct {
	vendors []*model.Vendor
}

func (f *fakeVendors) GetByID(_ context.Context, id string) (*model.Vendor, error) {
	for _, v := range f.vendors {
		if v.ID == id {
			return v, nil
		}
	}
	return nil, apperrors.NotFound("vendor", id)
}

func (f *fakeVendors) GetByName(_ context.Context, name string) (*model.Vendor, error) {
	for _, v := range f.vendors {
		if v.Name == name {
			return v, nil
		}
	}
	return nil, apperrors.NotFound("vendor", name)
}

func (f *fakeVendors) ListActive(_ context.Context) ([]*model.Vendor, error) {
	var out []*model.Vendor
	for _, v := range f.vendors {
		if v.Status == "active" {
			out = append(out, v)
		}
	}
	return out, nil
}

type fakeRedirects struct {
	entries []*model.Redirection
}

func (f *fakeRedirects) Create(_ context.Context, red *model.Redirection) error {
	f.entries = append(f.entries, red)
	return nil
}

func (f *fakeRedirects) LatestFor(_ context.Context, requestID string, stage model.Stage) (*model.Redirection, error) {
	for i := len(f.entries) - 1; i >= 0; i-- {
		if f.entries[i].RequestID == requestID && f.entries[i].Stage == stage {
			return f.entries[i], nil
		}
	}
	return nil, nil
}

type fakeAdjudications struct {
	byRequest map[string]*model.Adjudication
	seq       int
}

func newFakeAdjudications() *fakeAdjudications {
	return &fakeAdjudications{byRequest: map[string]*model.Adjudication{}}
}

func (f *fakeAdjudications) Create(_ context.Context, adj *model.Adjudication) error {
	if _, exists := f.byRequest[adj.RequestID]; exists {
		return apperrors.New(apperrors.CodeConflict, "adjudication exists")
	}
	f.seq++
	adj.ID = fmt.Sprintf("adj-%d", f.seq)
	adj.ReviewStatus = "pending"
	f.byRequest[adj.RequestID] = adj
	return nil
}

func (f *fakeAdjudications) GetByRequestID(_ context.Context, requestID string) (*model.Adjudication, error) {
	return f.byRequest[requestID], nil
}

func (f *fakeAdjudications) UpdateReview(_ context.Context, id, status, reviewedBy string) error {
	for _, adj := range f.byRequest {
		if adj.ID == id {
			adj.ReviewStatus = status
			adj.ReviewedBy = &reviewedBy
			return nil
		}
	}
	return apperrors.NotFound("adjudication", id)
}

type publishedEvent struct {
	eventType  string
	requestID  string
	actorID    string
	recipients []string
}

type fakeNotifier struct {
	events []publishedEvent
}

func (f *fakeNotifier) PublishRequestEvent(eventType string, req *model.Request, actorID string, recipients []string) {
	f.events = append(f.events, publishedEvent{
		eventType:  eventType,
		requestID:  req.ID,
		actorID:    actorID,
		recipients: recipients,
	})
}

// ── builders ──────────────────────────────────────────────────────────────────

func user(id string, role model.Role, department string) *model.User {
	return &model.User{
		ID:         id,
		Username:   id,
		FullName:   "User " + id,
		Role:       role,
		Department: department,
		IsHOD:      role == model.RoleHOD,
		IsActive:   true,
	}
}

func request(id string, formType model.FormType, initiatorID, department string, status model.Status) *model.Request {
	return &model.Request{
		ID:            id,
		RequestNumber: "KSB-TST-" + id,
		FormType:      formType,
		InitiatorID:   initiatorID,
		InitiatorName: "User " + initiatorID,
		Department:    department,
		Amount:        decimal.NewFromInt(100),
		Currency:      "ZMW",
		Purpose:       "test",
		Status:        status,
	}
}

func item(qty int64) *model.RequestItem {
	return &model.RequestItem{
		ItemName: "item",
		Quantity: decimal.NewFromInt(qty),
	}
}
