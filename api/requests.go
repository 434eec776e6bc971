package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/garnizeh/empleo/internal/workflow"
	"github.com/garnizeh/empleo/pkg/models"
	"github.com/garnizeh/empleo/pkg/repository"
	"github.com/gorilla/mux"
)

const maxBodyBytes = 1 << 20

// Workflow is the subset of the engine the handlers drive. Kept as an
// interface so handler tests can run against a fake.
type Workflow interface {
	Submit(ctx context.Context, companyID int64, raw json.RawMessage) (*models.EmploymentRequest, error)
	Claim(ctx context.Context, requestID string, executiveID int64) (*models.EmploymentRequest, error)
	Decide(ctx context.Context, requestID string, executiveID int64, decision workflow.Decision, comment string) (*models.EmploymentRequest, error)
	Resubmit(ctx context.Context, requestID string, companyID int64, raw json.RawMessage, comment string) (*models.EmploymentRequest, error)
}

type RequestsHandler struct {
	engine      Workflow
	requestRepo repository.RequestRepo
}

func NewRequestsHandler(engine Workflow, rr repository.RequestRepo) *RequestsHandler {
	return &RequestsHandler{engine: engine, requestRepo: rr}
}

// Submit handles POST /v1/requests/company/{companyId}. The raw body is the
// content payload; the engine validates it against the content schema.
func (h *RequestsHandler) Submit(w http.ResponseWriter, r *http.Request) {
	companyID, ok := pathID(w, r, "companyId")
	if !ok {
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	req, err := h.engine.Submit(r.Context(), companyID, body)
	if err != nil {
		writeWorkflowError(w, err)
		return
	}

	writeJSON(w, req, http.StatusCreated)
}

// Get handles GET /v1/requests/{id}
func (h *RequestsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	req, err := h.requestRepo.GetRequest(r.Context(), id)
	if err != nil {
		http.Error(w, "failed to load request", http.StatusInternalServerError)
		return
	}
	if req == nil {
		http.Error(w, "request not found", http.StatusNotFound)
		return
	}

	writeJSON(w, req, http.StatusOK)
}

type reviewRequest struct {
	Action      string `json:"action"`
	ExecutiveID int64  `json:"executive_id"`
	Comments    string `json:"comments,omitempty"`
}

// Review handles PUT /v1/requests/{id}/review. A claim moves the request
// into review; a decision resolves it. Approval publishes in the same call.
func (h *RequestsHandler) Review(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var body reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if body.ExecutiveID <= 0 {
		http.Error(w, "executive_id is required", http.StatusBadRequest)
		return
	}

	var req *models.EmploymentRequest
	var err error
	switch body.Action {
	case "claim":
		req, err = h.engine.Claim(r.Context(), id, body.ExecutiveID)
	case "approve", "reject", "request_changes":
		req, err = h.engine.Decide(r.Context(), id, body.ExecutiveID, workflow.Decision(body.Action), body.Comments)
	default:
		http.Error(w, "unknown action", http.StatusBadRequest)
		return
	}
	if err != nil {
		writeWorkflowError(w, err)
		return
	}

	writeJSON(w, req, http.StatusOK)
}

type correctionsRequest struct {
	CompanyID     int64           `json:"company_id"`
	Comments      string          `json:"comments,omitempty"`
	UpdatedFields json.RawMessage `json:"updated_fields"`
}

// Corrections handles PUT /v1/requests/{id}/corrections
func (h *RequestsHandler) Corrections(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var body correctionsRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if body.CompanyID <= 0 {
		http.Error(w, "company_id is required", http.StatusBadRequest)
		return
	}
	if len(body.UpdatedFields) == 0 {
		body.UpdatedFields = json.RawMessage(`{}`)
	}

	req, err := h.engine.Resubmit(r.Context(), id, body.CompanyID, body.UpdatedFields, body.Comments)
	if err != nil {
		writeWorkflowError(w, err)
		return
	}

	writeJSON(w, req, http.StatusOK)
}

// CompanyList handles GET /v1/requests/company/{companyId}/list?state=
func (h *RequestsHandler) CompanyList(w http.ResponseWriter, r *http.Request) {
	companyID, ok := pathID(w, r, "companyId")
	if !ok {
		return
	}
	state, ok := stateFilter(w, r)
	if !ok {
		return
	}

	reqs, err := h.requestRepo.ListByCompany(r.Context(), companyID, state)
	if err != nil {
		http.Error(w, "failed to list requests", http.StatusInternalServerError)
		return
	}
	if reqs == nil {
		reqs = []models.EmploymentRequest{}
	}

	writeJSON(w, map[string]any{"items": reqs, "total": len(reqs)}, http.StatusOK)
}

// ExecutiveList handles GET /v1/requests/executive/{executiveId}?state=
// It returns requests assigned to the executive plus unassigned pending ones.
func (h *RequestsHandler) ExecutiveList(w http.ResponseWriter, r *http.Request) {
	executiveID, ok := pathID(w, r, "executiveId")
	if !ok {
		return
	}
	state, ok := stateFilter(w, r)
	if !ok {
		return
	}

	reqs, err := h.requestRepo.ListForExecutive(r.Context(), executiveID, state)
	if err != nil {
		http.Error(w, "failed to list requests", http.StatusInternalServerError)
		return
	}
	if reqs == nil {
		reqs = []models.EmploymentRequest{}
	}

	writeJSON(w, map[string]any{"items": reqs, "total": len(reqs)}, http.StatusOK)
}

// ExecutiveStats handles GET /v1/requests/executive/{executiveId}/stats
func (h *RequestsHandler) ExecutiveStats(w http.ResponseWriter, r *http.Request) {
	executiveID, ok := pathID(w, r, "executiveId")
	if !ok {
		return
	}

	stats, err := h.requestRepo.StatsForExecutive(r.Context(), executiveID)
	if err != nil {
		http.Error(w, "failed to load stats", http.StatusInternalServerError)
		return
	}

	writeJSON(w, stats, http.StatusOK)
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "invalid "+name, http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// stateFilter parses the optional state query parameter against the known
// state enum. Unknown values are rejected instead of silently ignored.
func stateFilter(w http.ResponseWriter, r *http.Request) (*models.RequestState, bool) {
	raw := r.URL.Query().Get("state")
	if raw == "" {
		return nil, true
	}
	state, ok := models.ParseState(raw)
	if !ok {
		http.Error(w, "unknown state "+strconv.Quote(raw), http.StatusBadRequest)
		return nil, false
	}
	return &state, true
}
