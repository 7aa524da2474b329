package service

import (
	"context"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/ksbdigital/be-spend-approvals/internal/apperrors"
	"github.com/ksbdigital/be-spend-approvals/internal/model"
)

// WorkflowService is the single writer for request state. Every inbound
// action is validated against the current row, the resolver decides who may
// act, and the resulting status change, stage stamps and audit row are
// persisted as one transaction by the store.
type WorkflowService struct {
	requests      RequestStore
	users         UserDirectory
	departments   DepartmentStore
	audit         AuditLog
	redirects     RedirectionStore
	adjudications AdjudicationStore
	resolver      *ApproverResolver
	visibility    *VisibilityFilter
	denorm        *Denormalizer
	notifier      EventPublisher // may be nil when NATS is not configured
	log           zerolog.Logger
}

// NewWorkflowService creates a new WorkflowService.
func NewWorkflowService(
	requests RequestStore,
	users UserDirectory,
	departments DepartmentStore,
	audit AuditLog,
	redirects RedirectionStore,
	adjudications AdjudicationStore,
	resolver *ApproverResolver,
	visibility *VisibilityFilter,
	denorm *Denormalizer,
	notifier EventPublisher,
	log zerolog.Logger,
) *WorkflowService {
	return &WorkflowService{
		requests:      requests,
		users:         users,
		departments:   departments,
		audit:         audit,
		redirects:     redirects,
		adjudications: adjudications,
		resolver:      resolver,
		visibility:    visibility,
		denorm:        denorm,
		notifier:      notifier,
		log:           log,
	}
}

// ── Creation and submission ───────────────────────────────────────────────────

// CreateRequestInput carries the fields needed to open a draft request.
type CreateRequestInput struct {
	FormType      model.FormType
	InitiatorID   string
	Amount        decimal.Decimal
	Currency      string
	Purpose       string
	AssignedHODID *string
	Items         []*model.RequestItem
}

// CreateRequest opens a new draft with a generated request number.
func (s *WorkflowService) CreateRequest(ctx context.Context, in CreateRequestInput) (*model.Request, error) {
	initiator, err := s.users.GetByID(ctx, in.InitiatorID)
	if err != nil {
		return nil, err
	}

	req := &model.Request{
		RequestNumber: requestNumber(in.FormType, initiator, s.departmentCode(ctx, initiator.Department), time.Now().UTC()),
		FormType:      in.FormType,
		InitiatorID:   initiator.ID,
		InitiatorName: initiator.FullName,
		Department:    initiator.Department,
		Amount:        in.Amount,
		Currency:      in.Currency,
		Purpose:       in.Purpose,
		Status:        model.StatusDraft,
		AssignedHODID: in.AssignedHODID,
		Items:         in.Items,
	}

	if err := s.requests.Create(ctx, req); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("request_id", req.ID).
		Str("request_number", req.RequestNumber).
		Str("form_type", string(req.FormType)).
		Msg("Request created")
	return req, nil
}

// Submit moves a draft into the approval flow. Purchase requisitions enter at
// the HOD stage; EFT, petty cash and expense claims enter at finance. Only
// the initiator, procurement or an admin may submit, and procurement may pin
// a specific HOD.
func (s *WorkflowService) Submit(ctx context.Context, requestID, actingUserID string, assignedHODID *string) (*model.Request, error) {
	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	actor, err := s.users.GetByID(ctx, actingUserID)
	if err != nil {
		return nil, err
	}

	if req.Status != model.StatusDraft {
		return nil, apperrors.Newf(apperrors.CodeIllegalTransition,
			"request %s cannot be submitted from status %q", req.RequestNumber, req.Status)
	}
	if actor.ID != req.InitiatorID &&
		actor.Role != model.RoleProcurement && actor.Role != model.RoleAdmin {
		return nil, apperrors.New(apperrors.CodeUnauthorizedAction,
			"only the initiator, procurement or an admin may submit a request")
	}

	if assignedHODID != nil {
		req.AssignedHODID = assignedHODID
	}
	if req.FormType == model.FormPurchaseRequisition {
		req.Status = model.StatusPendingHOD
	} else {
		req.Status = model.StatusPendingFinance
	}

	if err := s.requests.SaveDecision(ctx, req, nil); err != nil {
		return nil, err
	}

	s.publish("request_submitted", req, actor.ID, []string{req.InitiatorID})
	s.notifyStageApprovers(ctx, req)

	s.log.Info().
		Str("request_id", req.ID).
		Str("status", string(req.Status)).
		Msg("Request submitted for approval")
	return req, nil
}

// ── Actions ───────────────────────────────────────────────────────────────────

// ActionInput is one inbound approve/reject/redirect.
type ActionInput struct {
	RequestID        string
	FormType         model.FormType
	Action           model.Action
	ActingUserID     string
	Comments         string  // required for reject and redirect
	RedirectTargetID *string // required for redirect
}

// SubmitAction validates and applies one workflow action, returning the
// updated request.
func (s *WorkflowService) SubmitAction(ctx context.Context, in ActionInput) (*model.Request, error) {
	req, err := s.requests.GetByID(ctx, in.RequestID)
	if err != nil {
		return nil, err
	}
	if req.FormType != in.FormType {
		return nil, apperrors.Newf(apperrors.CodeInvalidInput,
			"request %s is a %s, not a %s", req.RequestNumber, req.FormType, in.FormType)
	}
	actor, err := s.users.GetByID(ctx, in.ActingUserID)
	if err != nil {
		return nil, err
	}

	if req.Status.Terminal() {
		return nil, apperrors.Newf(apperrors.CodeIllegalTransition,
			"request %s is %s; no further actions are permitted", req.RequestNumber, req.Status)
	}
	stage, ok := req.CurrentStage()
	if !ok {
		return nil, apperrors.Newf(apperrors.CodeIllegalTransition,
			"request %s is not awaiting approval (status %q)", req.RequestNumber, req.Status)
	}

	if in.Action == model.ActionRedirect {
		return req, s.redirect(ctx, req, stage, actor, in)
	}

	// The audit trail is the idempotence key. The actor's own recorded action
	// is checked before authorization, so a re-submitted approval reports the
	// duplicate even after the stage has advanced past them.
	history, err := s.audit.HistoryFor(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	for _, entry := range history {
		if entry.ApproverID == actor.ID {
			return nil, apperrors.Newf(apperrors.CodeDuplicateAction,
				"user %s has already acted on request %s", actor.Username, req.RequestNumber)
		}
	}

	if err := s.assertCanAct(ctx, req, stage, actor); err != nil {
		return nil, err
	}

	// One recorded action per (request, stage role), ever.
	stageRole := stage.ApproverRole()
	acted, err := s.audit.HasAction(ctx, req.ID, stageRole)
	if err != nil {
		return nil, err
	}
	if acted {
		return nil, apperrors.Newf(apperrors.CodeDuplicateAction,
			"stage %s of request %s has already been decided", stage, req.RequestNumber)
	}

	now := time.Now().UTC()
	comments := strings.TrimSpace(in.Comments)

	switch in.Action {
	case model.ActionApprove:
		if err := s.approve(ctx, req, stage, actor, comments, now); err != nil {
			return nil, err
		}
	case model.ActionReject:
		if comments == "" {
			return nil, apperrors.InvalidInput("comments", "a rejection reason is required")
		}
		req.Status = model.StatusRejected
		req.RejectedBy = &actor.ID
		req.RejectedAt = &now
		req.RejectionReason = &comments
	default:
		return nil, apperrors.InvalidInput("action", "unknown action")
	}

	approval := &model.FormApproval{
		FormType:     req.FormType,
		FormID:       req.ID,
		ApproverRole: stageRole,
		ApproverID:   actor.ID,
		ApproverName: actor.FullName,
		Action:       in.Action,
	}
	if comments != "" {
		approval.Comments = &comments
	}

	if err := s.requests.SaveDecision(ctx, req, approval); err != nil {
		return nil, err
	}

	switch {
	case req.Status == model.StatusRejected:
		s.publish("request_rejected", req, actor.ID, []string{req.InitiatorID})
	case req.Status.Terminal():
		s.publish("request_completed", req, actor.ID, []string{req.InitiatorID})
	default:
		s.publish("request_approved", req, actor.ID, []string{req.InitiatorID})
		s.notifyStageApprovers(ctx, req)
	}

	s.log.Info().
		Str("request_id", req.ID).
		Str("stage", string(stage)).
		Str("action", string(in.Action)).
		Str("acted_by", actor.Username).
		Str("status", string(req.Status)).
		Msg("Workflow action applied")
	return req, nil
}

// approve stamps the stage fields and advances the status.
func (s *WorkflowService) approve(ctx context.Context, req *model.Request, stage model.Stage, actor *model.User, comments string, now time.Time) error {
	var commentsPtr *string
	if comments != "" {
		commentsPtr = &comments
	}

	switch stage {
	case model.StageHOD:
		req.HODApprovedBy = &actor.ID
		req.HODApprovedAt = &now
		req.HODComments = commentsPtr
		req.Status = model.StatusPendingFinance

	case model.StageFinance:
		req.FinanceApprovedBy = &actor.ID
		req.FinanceApprovedAt = &now
		req.FinanceComments = commentsPtr
		req.Status = model.StatusPendingMD

	case model.StageMD:
		req.MDApprovedBy = &actor.ID
		req.MDApprovedAt = &now
		req.MDComments = commentsPtr
		if req.FormType == model.FormPurchaseRequisition {
			req.Status = model.StatusPendingProcurement
		} else {
			req.Status = model.StatusApproved
		}

	case model.StageProcurement:
		// A requisition may not complete until its vendor code resolves.
		// This is the gate that replaces the historical backfill scripts.
		if err := s.denorm.SyncVendorAndPricing(ctx, req); err != nil {
			return err
		}
		poNumber := "PO-" + req.RequestNumber
		req.PONumber = &poNumber
		req.POGeneratedBy = &actor.ID
		req.POGeneratedAt = &now
		req.Status = model.StatusCompleted
	}
	return nil
}

// redirect records an admin override of the resolved approver for the
// current stage. Status does not change.
func (s *WorkflowService) redirect(ctx context.Context, req *model.Request, stage model.Stage, actor *model.User, in ActionInput) error {
	if actor.Role != model.RoleAdmin {
		return apperrors.New(apperrors.CodeUnauthorizedAction,
			"only an admin may redirect an approval")
	}
	if in.RedirectTargetID == nil {
		return apperrors.InvalidInput("redirect_target", "redirect requires a target user")
	}

	target, err := s.users.GetByID(ctx, *in.RedirectTargetID)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeInvalidRedirectTarget,
			"redirect target does not exist")
	}
	if !eligibleForStage(stage, target) {
		return apperrors.Newf(apperrors.CodeInvalidRedirectTarget,
			"user %s (role %s) cannot act at the %s stage", target.Username, target.Role, stage)
	}

	var fromUserID *string
	if res, err := s.resolveActing(ctx, req, stage); err == nil && res.User != nil {
		fromUserID = &res.User.ID
	}

	red := &model.Redirection{
		RequestID:    req.ID,
		FormType:     req.FormType,
		Stage:        stage,
		FromUserID:   fromUserID,
		ToUserID:     target.ID,
		RedirectedBy: actor.ID,
		Reason:       in.Comments,
	}
	if err := s.redirects.Create(ctx, red); err != nil {
		return err
	}

	s.publish("approval_redirected", req, actor.ID, []string{target.ID})

	s.log.Info().
		Str("request_id", req.ID).
		Str("stage", string(stage)).
		Str("to_user", target.Username).
		Str("redirected_by", actor.Username).
		Msg("Approval redirected")
	return nil
}

// assertCanAct checks the actor against the redirection override or the
// resolver's answer for the stage.
func (s *WorkflowService) assertCanAct(ctx context.Context, req *model.Request, stage model.Stage, actor *model.User) error {
	red, err := s.redirects.LatestFor(ctx, req.ID, stage)
	if err != nil {
		return err
	}
	if red != nil {
		if red.ToUserID != actor.ID {
			return apperrors.Newf(apperrors.CodeUnauthorizedAction,
				"stage %s of request %s is redirected to another user", stage, req.RequestNumber)
		}
		return nil
	}

	res, err := s.resolver.Resolve(ctx, req, stage)
	if err != nil {
		return err
	}
	if !res.Allows(actor) {
		return apperrors.Newf(apperrors.CodeUnauthorizedAction,
			"user %s is not the resolved approver for stage %s of request %s",
			actor.Username, stage, req.RequestNumber)
	}
	return nil
}

// resolveActing returns the effective resolution, honoring redirections.
func (s *WorkflowService) resolveActing(ctx context.Context, req *model.Request, stage model.Stage) (Resolution, error) {
	red, err := s.redirects.LatestFor(ctx, req.ID, stage)
	if err != nil {
		return Resolution{}, err
	}
	if red != nil {
		u, err := s.users.GetByID(ctx, red.ToUserID)
		if err != nil {
			return Resolution{}, err
		}
		return Resolution{User: u}, nil
	}
	return s.resolver.Resolve(ctx, req, stage)
}

func eligibleForStage(stage model.Stage, u *model.User) bool {
	if !u.IsActive {
		return false
	}
	switch stage {
	case model.StageHOD:
		return u.Role == model.RoleHOD || u.IsHOD
	case model.StageFinance:
		return u.Role == model.RoleFinance || u.Role == model.RoleHOD ||
			u.Role == model.RoleRegionalApprover
	case model.StageMD:
		return u.Role == model.RoleMD
	case model.StageProcurement:
		return u.Role == model.RoleProcurement
	}
	return false
}

// ── Vendor selection and adjudication ─────────────────────────────────────────

// SelectVendor records procurement's vendor choice on a requisition in the
// procurement stage and synchronizes the derived fields immediately.
func (s *WorkflowService) SelectVendor(ctx context.Context, requestID, actingUserID, vendorID string, totalCost decimal.Decimal, currency string) (*model.Request, error) {
	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	actor, err := s.users.GetByID(ctx, actingUserID)
	if err != nil {
		return nil, err
	}

	if req.FormType != model.FormPurchaseRequisition {
		return nil, apperrors.New(apperrors.CodeInvalidInput,
			"vendor selection applies to purchase requisitions only")
	}
	if req.Status != model.StatusPendingProcurement {
		return nil, apperrors.Newf(apperrors.CodeIllegalTransition,
			"request %s is not in the procurement stage", req.RequestNumber)
	}
	if actor.Role != model.RoleProcurement && actor.Role != model.RoleAdmin {
		return nil, apperrors.New(apperrors.CodeUnauthorizedAction,
			"only procurement may select a vendor")
	}

	req.SelectedVendorID = &vendorID
	req.TotalCost = &totalCost
	if currency != "" {
		req.VendorCurrency = &currency
	}
	if err := s.denorm.SyncVendorAndPricing(ctx, req); err != nil {
		return nil, err
	}

	if err := s.requests.SaveDecision(ctx, req, nil); err != nil {
		return nil, err
	}
	return req, nil
}

// RecordAdjudication attaches the competitive-quote comparison to a
// requisition in the procurement stage.
func (s *WorkflowService) RecordAdjudication(ctx context.Context, requestID, actingUserID string, adj *model.Adjudication) error {
	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return err
	}
	actor, err := s.users.GetByID(ctx, actingUserID)
	if err != nil {
		return err
	}
	if req.FormType != model.FormPurchaseRequisition {
		return apperrors.New(apperrors.CodeInvalidInput,
			"adjudications apply to purchase requisitions only")
	}
	if req.Status != model.StatusPendingProcurement {
		return apperrors.Newf(apperrors.CodeIllegalTransition,
			"request %s is not in the procurement stage", req.RequestNumber)
	}
	if actor.Role != model.RoleProcurement && actor.Role != model.RoleAdmin {
		return apperrors.New(apperrors.CodeUnauthorizedAction,
			"only procurement may record an adjudication")
	}

	adj.RequestID = req.ID
	return s.adjudications.Create(ctx, adj)
}

// AcceptAdjudication copies the accepted recommendation onto the request's
// pricing fields and synchronizes derived data. Finance or MD review the
// adjudication.
func (s *WorkflowService) AcceptAdjudication(ctx context.Context, requestID, actingUserID string) (*model.Request, error) {
	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	actor, err := s.users.GetByID(ctx, actingUserID)
	if err != nil {
		return nil, err
	}
	if req.Status.Terminal() {
		return nil, apperrors.Newf(apperrors.CodeIllegalTransition,
			"request %s is %s; the adjudication can no longer be applied", req.RequestNumber, req.Status)
	}
	if actor.Role != model.RoleFinance && actor.Role != model.RoleMD {
		return nil, apperrors.New(apperrors.CodeUnauthorizedAction,
			"only finance or the MD may accept an adjudication")
	}

	adj, err := s.adjudications.GetByRequestID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if adj == nil {
		return nil, apperrors.NotFound("adjudication", requestID)
	}

	if err := s.denorm.ApplyAdjudication(ctx, req, adj); err != nil {
		return nil, err
	}
	if err := s.adjudications.UpdateReview(ctx, adj.ID, "accepted", actor.ID); err != nil {
		return nil, err
	}
	if err := s.requests.SaveDecision(ctx, req, nil); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("request_id", req.ID).
		Str("vendor", adj.RecommendedVendor).
		Msg("Adjudication accepted")
	return req, nil
}

// ── Queries ───────────────────────────────────────────────────────────────────

// ListVisibleRequests returns the requests of a form type the user may see.
func (s *WorkflowService) ListVisibleRequests(ctx context.Context, userID string, formType model.FormType) ([]*model.Request, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	requests, err := s.requests.ListByFormType(ctx, formType)
	if err != nil {
		return nil, err
	}
	return s.visibility.Filter(ctx, user, requests)
}

// ListVisibleByStatus returns the visible requests of a form type sitting in
// one status.
func (s *WorkflowService) ListVisibleByStatus(ctx context.Context, userID string, formType model.FormType, status model.Status) ([]*model.Request, error) {
	if !model.ValidStatus(formType, status) {
		return nil, apperrors.Newf(apperrors.CodeInvalidInput,
			"status %q is not valid for form type %s", status, formType)
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	requests, err := s.requests.ListPending(ctx, formType, status)
	if err != nil {
		return nil, err
	}
	return s.visibility.Filter(ctx, user, requests)
}

// GetApprovalHistory returns the append-only audit trail for a request.
func (s *WorkflowService) GetApprovalHistory(ctx context.Context, requestID string) ([]*model.FormApproval, error) {
	return s.audit.HistoryFor(ctx, requestID)
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// publish emits a notification event when a publisher is configured.
func (s *WorkflowService) publish(eventType string, req *model.Request, actorID string, recipients []string) {
	if s.notifier == nil {
		return
	}
	s.notifier.PublishRequestEvent(eventType, req, actorID, recipients)
}

// notifyStageApprovers tells whoever now holds the request that action is
// required. Resolution failures here are logged, not returned; the approver
// will be resolved again, strictly, when they act.
func (s *WorkflowService) notifyStageApprovers(ctx context.Context, req *model.Request) {
	if s.notifier == nil {
		return
	}
	stage, ok := req.CurrentStage()
	if !ok {
		return
	}

	res, err := s.resolveActing(ctx, req, stage)
	if err != nil {
		s.log.Warn().Err(err).
			Str("request_id", req.ID).
			Str("stage", string(stage)).
			Msg("Could not resolve approvers for notification")
		return
	}

	var recipients []string
	if res.User != nil {
		recipients = []string{res.User.ID}
	} else if res.Role != "" {
		pool, err := s.users.ActiveUsersByRole(ctx, res.Role)
		if err != nil {
			return
		}
		for _, u := range pool {
			recipients = append(recipients, u.ID)
		}
	}
	s.publish("approval_required", req, req.InitiatorID, recipients)
}

// departmentCode looks up the registered code for a department. A missing
// registration is not fatal; numbering falls back to the name.
func (s *WorkflowService) departmentCode(ctx context.Context, department string) string {
	d, err := s.departments.GetByName(ctx, department)
	if err != nil {
		return ""
	}
	return d.Code
}

// requestNumber builds the human-readable number. Purchase requisitions
// carry the department code and initiator initials; the other forms carry
// their form prefix.
func requestNumber(f model.FormType, initiator *model.User, deptCode string, now time.Time) string {
	ts := now.Format("20060102150405")
	if f != model.FormPurchaseRequisition {
		return "KSB-" + f.Prefix() + "-" + ts
	}

	dept := strings.ToUpper(strings.TrimSpace(deptCode))
	if dept == "" {
		dept = "GEN"
		if r := []rune(strings.TrimSpace(initiator.Department)); len(r) >= 3 {
			dept = strings.ToUpper(string(r[:3]))
		}
	}
	var initials strings.Builder
	for _, part := range strings.Fields(initiator.FullName) {
		r, _ := utf8.DecodeRuneInString(part)
		initials.WriteRune(unicode.ToUpper(r))
	}
	return "KSB-" + dept + "-" + initials.String() + "-" + ts
}
