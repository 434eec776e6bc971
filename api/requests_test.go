package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/garnizeh/empleo/api"
	"github.com/garnizeh/empleo/internal/workflow"
	"github.com/garnizeh/empleo/pkg/models"
	"github.com/garnizeh/empleo/pkg/repository/mock"
	"github.com/gorilla/mux"
)

const submitBody = `{"title":"Backend Engineer","description":"Build and run the public APIs","work_mode":"remote","schedule":"full-time"}`

// newTestServer wires the handlers against the real engine over in-memory
// mocks. Company 1 exists unassigned, executives 7 and 8 exist.
func newTestServer(t *testing.T) (*mux.Router, *mock.Mocks) {
	t.Helper()

	m := mock.NewMocks()
	m.Companies.Stored[1] = &models.Company{ID: 1, Name: "Acme"}
	m.Executives.Stored[7] = &models.Executive{ID: 7, Name: "Eva", Active: true}
	m.Executives.Stored[8] = &models.Executive{ID: 8, Name: "Omar", Active: true}

	engine, err := workflow.NewEngine(m.Requests, m.Companies, m.Executives, m.Jobs, m.Queue, nil)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	h := api.NewRequestsHandler(engine, m.Requests)

	r := mux.NewRouter()
	r.HandleFunc("/requests/company/{companyId:[0-9]+}", h.Submit).Methods("POST")
	r.HandleFunc("/requests/company/{companyId:[0-9]+}/list", h.CompanyList).Methods("GET")
	r.HandleFunc("/requests/executive/{executiveId:[0-9]+}", h.ExecutiveList).Methods("GET")
	r.HandleFunc("/requests/executive/{executiveId:[0-9]+}/stats", h.ExecutiveStats).Methods("GET")
	r.HandleFunc("/requests/{id}/review", h.Review).Methods("PUT")
	r.HandleFunc("/requests/{id}/corrections", h.Corrections).Methods("PUT")
	r.HandleFunc("/requests/{id}", h.Get).Methods("GET")

	return r, m
}

func doJSON(t *testing.T, r http.Handler, method, path string, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	return rec
}

func decodeRequest(t *testing.T, rec *httptest.ResponseRecorder) *models.EmploymentRequest {
	t.Helper()

	var out models.EmploymentRequest
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v (%s)", err, rec.Body.String())
	}

	return &out
}

func TestSubmitEndpoint(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		body       string
		wantStatus int
	}{
		{"created", "/requests/company/1", submitBody, http.StatusCreated},
		{"unknown company", "/requests/company/99", submitBody, http.StatusNotFound},
		{"missing fields", "/requests/company/1", `{"title":"only a title"}`, http.StatusBadRequest},
		{"bad work mode", "/requests/company/1", `{"title":"t","description":"d","work_mode":"nope","schedule":"s"}`, http.StatusBadRequest},
		{"not json", "/requests/company/1", `not a json`, http.StatusBadRequest},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r, _ := newTestServer(t)
			rec := doJSON(t, r, http.MethodPost, tc.path, tc.body)
			if rec.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tc.wantStatus, rec.Body.String())
			}
			if tc.wantStatus == http.StatusCreated {
				req := decodeRequest(t, rec)
				if req.State != models.StatePending || len(req.History) != 1 {
					t.Fatalf("unexpected created request: %+v", req)
				}
			}
		})
	}
}

func TestReviewEndpoint(t *testing.T) {
	r, _ := newTestServer(t)

	rec := doJSON(t, r, http.MethodPost, "/requests/company/1", submitBody)
	if rec.Code != http.StatusCreated {
		t.Fatalf("submit failed: %d", rec.Code)
	}
	id := decodeRequest(t, rec).ID

	// unknown action is rejected before touching the engine
	rec = doJSON(t, r, http.MethodPut, "/requests/"+id+"/review", `{"action":"escalate","executive_id":7}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown action: status = %d", rec.Code)
	}

	// claim
	rec = doJSON(t, r, http.MethodPut, "/requests/"+id+"/review", `{"action":"claim","executive_id":7}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("claim: status = %d (%s)", rec.Code, rec.Body.String())
	}
	if got := decodeRequest(t, rec); got.State != models.StateInReview {
		t.Fatalf("claim state = %s", got.State)
	}

	// second claim loses
	rec = doJSON(t, r, http.MethodPut, "/requests/"+id+"/review", `{"action":"claim","executive_id":8}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("second claim: status = %d", rec.Code)
	}

	// decide by the wrong executive
	rec = doJSON(t, r, http.MethodPut, "/requests/"+id+"/review", `{"action":"approve","executive_id":8}`)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("foreign approve: status = %d", rec.Code)
	}

	// approve publishes in the same call
	rec = doJSON(t, r, http.MethodPut, "/requests/"+id+"/review", `{"action":"approve","executive_id":7}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("approve: status = %d (%s)", rec.Code, rec.Body.String())
	}
	final := decodeRequest(t, rec)
	if final.State != models.StatePublished || final.JobID == nil {
		t.Fatalf("approve did not publish: %+v", final)
	}
	if len(final.History) != 3 {
		t.Fatalf("expected 3 history entries, got %d", len(final.History))
	}
}

func TestCorrectionsEndpoint(t *testing.T) {
	r, _ := newTestServer(t)

	rec := doJSON(t, r, http.MethodPost, "/requests/company/1", submitBody)
	id := decodeRequest(t, rec).ID
	doJSON(t, r, http.MethodPut, "/requests/"+id+"/review", `{"action":"claim","executive_id":7}`)
	doJSON(t, r, http.MethodPut, "/requests/"+id+"/review", `{"action":"request_changes","executive_id":7,"comments":"fix salary"}`)

	// missing company_id
	rec = doJSON(t, r, http.MethodPut, "/requests/"+id+"/corrections", `{"updated_fields":{"salary_range":"2000-2500"}}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing company_id: status = %d", rec.Code)
	}

	// wrong owner
	rec = doJSON(t, r, http.MethodPut, "/requests/"+id+"/corrections", `{"company_id":2,"updated_fields":{"salary_range":"2000-2500"}}`)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("foreign corrections: status = %d", rec.Code)
	}

	rec = doJSON(t, r, http.MethodPut, "/requests/"+id+"/corrections", `{"company_id":1,"comments":"updated","updated_fields":{"salary_range":"2000-2500"}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("corrections: status = %d (%s)", rec.Code, rec.Body.String())
	}
	got := decodeRequest(t, rec)
	if got.State != models.StateInReview || got.Content.SalaryRange != "2000-2500" {
		t.Fatalf("corrections not applied: %+v", got)
	}
	if len(got.History) != 4 {
		t.Fatalf("expected 4 history entries, got %d", len(got.History))
	}
}

func TestGetAndListEndpoints(t *testing.T) {
	r, _ := newTestServer(t)

	rec := doJSON(t, r, http.MethodGet, "/requests/does-not-exist", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing request: status = %d", rec.Code)
	}

	rec = doJSON(t, r, http.MethodPost, "/requests/company/1", submitBody)
	id := decodeRequest(t, rec).ID

	rec = doJSON(t, r, http.MethodGet, "/requests/"+id, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get: status = %d", rec.Code)
	}
	if got := decodeRequest(t, rec); len(got.History) != 1 {
		t.Fatalf("get must include history: %+v", got)
	}

	// state filter is validated against the enum
	rec = doJSON(t, r, http.MethodGet, "/requests/executive/7?state=bogus", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bogus state filter: status = %d", rec.Code)
	}

	rec = doJSON(t, r, http.MethodGet, "/requests/executive/7?state=pending", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("executive list: status = %d", rec.Code)
	}
	var listResp struct {
		Items []models.EmploymentRequest `json:"items"`
		Total int                        `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &listResp); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if listResp.Total != 1 || len(listResp.Items) != 1 {
		t.Fatalf("expected the unclaimed pending request, got %+v", listResp)
	}

	rec = doJSON(t, r, http.MethodGet, "/requests/company/1/list", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("company list: status = %d", rec.Code)
	}

	rec = doJSON(t, r, http.MethodGet, "/requests/executive/7/stats", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("stats: status = %d", rec.Code)
	}
	var stats models.ExecutiveStats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.GlobalPending != 1 {
		t.Fatalf("expected 1 globally pending, got %d", stats.GlobalPending)
	}
}
