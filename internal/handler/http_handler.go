// Package handler is the HTTP edge. It decodes and validates payloads, pulls
// the acting user from the request, and maps application error codes to
// statuses. All workflow decisions live in the service layer.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/ksbdigital/be-spend-approvals/internal/apperrors"
	"github.com/ksbdigital/be-spend-approvals/internal/model"
	"github.com/ksbdigital/be-spend-approvals/internal/service"
)

// actingUserHeader carries the authenticated user id, set by the gateway in
// front of this service.
const actingUserHeader = "X-User-ID"

// HTTPHandler handles HTTP requests.
type HTTPHandler struct {
	workflow  *service.WorkflowService
	directory *service.DirectoryService
	validate  *validator.Validate
	log       zerolog.Logger
}

// NewHTTPHandler creates a new HTTP handler.
func NewHTTPHandler(workflow *service.WorkflowService, directory *service.DirectoryService, log zerolog.Logger) *HTTPHandler {
	return &HTTPHandler{
		workflow:  workflow,
		directory: directory,
		validate:  validator.New(),
		log:       log,
	}
}

// Router builds the route tree. Request routes are grouped under the form
// type so every operation is validated against the form it targets.
func (h *HTTPHandler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut},
		AllowedHeaders: []string{"Accept", "Content-Type", actingUserHeader},
	}))

	r.Get("/health", h.Health)

	r.Route("/api/v1/requests/{formType}", func(r chi.Router) {
		r.Post("/", h.CreateRequest)
		r.Get("/", h.ListRequests)
		r.Post("/{id}/submit", h.SubmitRequest)
		r.Post("/{id}/action", h.SubmitAction)
		r.Get("/{id}/history", h.GetHistory)
		r.Post("/{id}/vendor", h.SelectVendor)
		r.Post("/{id}/adjudication", h.RecordAdjudication)
		r.Post("/{id}/adjudication/accept", h.AcceptAdjudication)
	})

	r.Get("/api/v1/departments", h.ListDepartments)
	r.Get("/api/v1/vendors", h.ListVendors)
	r.Post("/api/v1/users", h.CreateUser)
	r.Put("/api/v1/users/{id}", h.UpdateUser)

	return r
}

// Health reports liveness.
func (h *HTTPHandler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// CreateRequestPayload is the inbound body for opening a draft.
type CreateRequestPayload struct {
	Amount        decimal.Decimal      `json:"amount" validate:"required"`
	Currency      string               `json:"currency" validate:"required,len=3"`
	Purpose       string               `json:"purpose" validate:"required"`
	AssignedHODID *string              `json:"assigned_hod_id"`
	Items         []RequestItemPayload `json:"items" validate:"dive"`
}

// RequestItemPayload is one inbound line item.
type RequestItemPayload struct {
	ItemName       string          `json:"item_name" validate:"required"`
	Quantity       decimal.Decimal `json:"quantity" validate:"required"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	Specifications *string         `json:"specifications"`
}

// CreateRequest opens a draft request of the form type in the URL.
func (h *HTTPHandler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	formType, actorID, err := h.routeContext(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	var payload CreateRequestPayload
	if err := h.decode(r, &payload); err != nil {
		h.writeError(w, err)
		return
	}

	items := make([]*model.RequestItem, 0, len(payload.Items))
	for _, it := range payload.Items {
		items = append(items, &model.RequestItem{
			ItemName:       it.ItemName,
			Quantity:       it.Quantity,
			UnitPrice:      it.UnitPrice,
			TotalPrice:     it.UnitPrice.Mul(it.Quantity),
			Specifications: it.Specifications,
		})
	}

	req, err := h.workflow.CreateRequest(r.Context(), service.CreateRequestInput{
		FormType:      formType,
		InitiatorID:   actorID,
		Amount:        payload.Amount,
		Currency:      payload.Currency,
		Purpose:       payload.Purpose,
		AssignedHODID: payload.AssignedHODID,
		Items:         items,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, req)
}

// SubmitPayload is the inbound body for moving a draft into the flow.
type SubmitPayload struct {
	AssignedHODID *string `json:"assigned_hod_id"`
}

// SubmitRequest moves a draft into its approval flow.
func (h *HTTPHandler) SubmitRequest(w http.ResponseWriter, r *http.Request) {
	_, actorID, err := h.routeContext(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	// The body is optional; only procurement pins an HOD.
	var payload SubmitPayload
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			h.writeError(w, apperrors.InvalidInput("body", "invalid request body"))
			return
		}
	}

	req, err := h.workflow.Submit(r.Context(), chi.URLParam(r, "id"), actorID, payload.AssignedHODID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, req)
}

// ActionPayload is one inbound approve/reject/redirect.
type ActionPayload struct {
	Action           string  `json:"action" validate:"required"`
	Comments         string  `json:"comments"`
	RedirectTargetID *string `json:"redirect_target_id"`
}

// SubmitAction applies one workflow action.
func (h *HTTPHandler) SubmitAction(w http.ResponseWriter, r *http.Request) {
	formType, actorID, err := h.routeContext(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	var payload ActionPayload
	if err := h.decode(r, &payload); err != nil {
		h.writeError(w, err)
		return
	}
	action, err := model.ParseAction(payload.Action)
	if err != nil {
		h.writeError(w, err)
		return
	}

	req, err := h.workflow.SubmitAction(r.Context(), service.ActionInput{
		RequestID:        chi.URLParam(r, "id"),
		FormType:         formType,
		Action:           action,
		ActingUserID:     actorID,
		Comments:         payload.Comments,
		RedirectTargetID: payload.RedirectTargetID,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, req)
}

// ListRequests returns the requests of the form type visible to the caller,
// optionally narrowed to one status via ?status=.
func (h *HTTPHandler) ListRequests(w http.ResponseWriter, r *http.Request) {
	formType, actorID, err := h.routeContext(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	var requests []*model.Request
	if status := r.URL.Query().Get("status"); status != "" {
		requests, err = h.workflow.ListVisibleByStatus(r.Context(), actorID, formType, model.Status(status))
	} else {
		requests, err = h.workflow.ListVisibleRequests(r.Context(), actorID, formType)
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"requests": requests,
		"total":    len(requests),
	})
}

// GetHistory returns the audit trail for a request.
func (h *HTTPHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	history, err := h.workflow.GetApprovalHistory(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"history": history})
}

// SelectVendorPayload is procurement's vendor choice.
type SelectVendorPayload struct {
	VendorID  string          `json:"vendor_id" validate:"required"`
	TotalCost decimal.Decimal `json:"total_cost" validate:"required"`
	Currency  string          `json:"currency"`
}

// SelectVendor records procurement's vendor choice on a requisition.
func (h *HTTPHandler) SelectVendor(w http.ResponseWriter, r *http.Request) {
	_, actorID, err := h.routeContext(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	var payload SelectVendorPayload
	if err := h.decode(r, &payload); err != nil {
		h.writeError(w, err)
		return
	}

	req, err := h.workflow.SelectVendor(r.Context(), chi.URLParam(r, "id"),
		actorID, payload.VendorID, payload.TotalCost, payload.Currency)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, req)
}

// AdjudicationPayload is the competitive-quote recommendation.
type AdjudicationPayload struct {
	RecommendedVendor string          `json:"recommended_vendor" validate:"required"`
	RecommendedAmount decimal.Decimal `json:"recommended_amount" validate:"required"`
	Currency          string          `json:"currency" validate:"required,len=3"`
	Comparison        *string         `json:"comparison"`
}

// RecordAdjudication attaches a quote comparison to a requisition.
func (h *HTTPHandler) RecordAdjudication(w http.ResponseWriter, r *http.Request) {
	_, actorID, err := h.routeContext(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	var payload AdjudicationPayload
	if err := h.decode(r, &payload); err != nil {
		h.writeError(w, err)
		return
	}

	adj := &model.Adjudication{
		RecommendedVendor: payload.RecommendedVendor,
		RecommendedAmount: payload.RecommendedAmount,
		Currency:          payload.Currency,
		Comparison:        payload.Comparison,
	}
	if err := h.workflow.RecordAdjudication(r.Context(), chi.URLParam(r, "id"), actorID, adj); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, adj)
}

// AcceptAdjudication accepts the recorded recommendation.
func (h *HTTPHandler) AcceptAdjudication(w http.ResponseWriter, r *http.Request) {
	_, actorID, err := h.routeContext(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	req, err := h.workflow.AcceptAdjudication(r.Context(), chi.URLParam(r, "id"), actorID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, req)
}

// ── Reference data and user administration ────────────────────────────────────

// ListDepartments returns the active departments.
func (h *HTTPHandler) ListDepartments(w http.ResponseWriter, r *http.Request) {
	departments, err := h.directory.ListDepartments(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"departments": departments})
}

// ListVendors returns the active vendors.
func (h *HTTPHandler) ListVendors(w http.ResponseWriter, r *http.Request) {
	vendors, err := h.directory.ListVendors(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"vendors": vendors})
}

// CreateUserPayload is the inbound body for registering an account.
type CreateUserPayload struct {
	Username      string  `json:"username" validate:"required"`
	FullName      string  `json:"full_name" validate:"required"`
	Role          string  `json:"role" validate:"required"`
	Department    string  `json:"department" validate:"required"`
	IsHOD         bool    `json:"is_hod"`
	AssignedHODID *string `json:"assigned_hod_id"`
}

// CreateUser registers an account. Admin only; enforced in the service.
func (h *HTTPHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	actorID, err := h.actingUser(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	var payload CreateUserPayload
	if err := h.decode(r, &payload); err != nil {
		h.writeError(w, err)
		return
	}

	u, err := h.directory.CreateUser(r.Context(), actorID, service.CreateUserInput{
		Username:      payload.Username,
		FullName:      payload.FullName,
		Role:          payload.Role,
		Department:    payload.Department,
		IsHOD:         payload.IsHOD,
		AssignedHODID: payload.AssignedHODID,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, u)
}

// UpdateUserPayload is the inbound body for rewriting an account.
type UpdateUserPayload struct {
	FullName      string  `json:"full_name" validate:"required"`
	Role          string  `json:"role" validate:"required"`
	Department    string  `json:"department" validate:"required"`
	IsHOD         bool    `json:"is_hod"`
	AssignedHODID *string `json:"assigned_hod_id"`
	IsActive      bool    `json:"is_active"`
}

// UpdateUser rewrites an account. Admin only; enforced in the service.
func (h *HTTPHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	actorID, err := h.actingUser(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	var payload UpdateUserPayload
	if err := h.decode(r, &payload); err != nil {
		h.writeError(w, err)
		return
	}

	u, err := h.directory.UpdateUser(r.Context(), actorID, chi.URLParam(r, "id"), service.UpdateUserInput{
		FullName:      payload.FullName,
		Role:          payload.Role,
		Department:    payload.Department,
		IsHOD:         payload.IsHOD,
		AssignedHODID: payload.AssignedHODID,
		IsActive:      payload.IsActive,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, u)
}

// ── helpers ───────────────────────────────────────────────────────────────────

// routeContext extracts the form type from the URL and the acting user from
// the gateway header.
func (h *HTTPHandler) routeContext(r *http.Request) (model.FormType, string, error) {
	formType, err := model.ParseFormType(chi.URLParam(r, "formType"))
	if err != nil {
		return "", "", err
	}
	actorID, err := h.actingUser(r)
	if err != nil {
		return "", "", err
	}
	return formType, actorID, nil
}

func (h *HTTPHandler) actingUser(r *http.Request) (string, error) {
	actorID := r.Header.Get(actingUserHeader)
	if actorID == "" {
		return "", apperrors.New(apperrors.CodeUnauthorized, "missing acting user")
	}
	return actorID, nil
}

func (h *HTTPHandler) decode(r *http.Request, payload any) error {
	if err := json.NewDecoder(r.Body).Decode(payload); err != nil {
		return apperrors.InvalidInput("body", "invalid request body")
	}
	if err := h.validate.Struct(payload); err != nil {
		return apperrors.Wrap(err, apperrors.CodeInvalidInput, "payload validation failed")
	}
	return nil
}

func (h *HTTPHandler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode response")
	}
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, err error) {
	code := apperrors.CodeOf(err)
	status := httpStatus(code)
	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).Msg("Request failed")
	}
	h.writeJSON(w, status, map[string]string{
		"code":  string(code),
		"error": err.Error(),
	})
}

// httpStatus maps application error codes to transport statuses. Approver
// configuration defects surface as 422: the request is fine, the reference
// data is not.
func httpStatus(code apperrors.Code) int {
	switch code {
	case apperrors.CodeInvalidInput, apperrors.CodeInvalidRedirectTarget:
		return http.StatusBadRequest
	case apperrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case apperrors.CodeUnauthorizedAction:
		return http.StatusForbidden
	case apperrors.CodeNotFound:
		return http.StatusNotFound
	case apperrors.CodeConflict, apperrors.CodeDuplicateAction, apperrors.CodeIllegalTransition:
		return http.StatusConflict
	case apperrors.CodeNoApproverConfigured, apperrors.CodeAmbiguousApprover,
		apperrors.CodeMissingVendorData:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
