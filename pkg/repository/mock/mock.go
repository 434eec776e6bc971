package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/garnizeh/empleo/pkg/models"
)

// Test helpers and mocks
type Mocks struct {
	Requests   *RequestRepo
	Companies  *CompanyRepo
	Executives *ExecutiveRepo
	Jobs       *JobRepo
	Accounts   *AccountRepo
	Queue      *Queue
}

func NewMocks() *Mocks {
	return &Mocks{
		Requests:   NewRequestRepo(),
		Companies:  &CompanyRepo{Stored: map[int64]*models.Company{}},
		Executives: &ExecutiveRepo{Stored: map[int64]*models.Executive{}, ByCompany: map[int64]int64{}},
		Jobs:       &JobRepo{ByRequest: map[string]int64{}, Stored: map[int64]*models.Job{}},
		Accounts:   &AccountRepo{},
		Queue:      &Queue{},
	}
}

// RequestRepo is an in-memory request store. The mutex around
// TransitionRequest preserves the real store's winner-takes-all semantics,
// which the concurrency tests rely on.
type RequestRepo struct {
	mu      sync.Mutex
	Stored  map[string]*models.EmploymentRequest
	History map[string][]models.HistoryEntry

	CreateErr     error
	TransitionErr error
	nextHistoryID int64
}

func NewRequestRepo() *RequestRepo {
	return &RequestRepo{
		Stored:  map[string]*models.EmploymentRequest{},
		History: map[string][]models.HistoryEntry{},
	}
}

func (m *RequestRepo) CreateRequest(ctx context.Context, req *models.EmploymentRequest, first *models.HistoryEntry) error {
	if m.CreateErr != nil {
		return m.CreateErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cp := cloneRequest(req)
	cp.History = nil
	m.Stored[req.ID] = cp
	m.nextHistoryID++
	e := *first
	e.ID = m.nextHistoryID
	m.History[req.ID] = append(m.History[req.ID], e)

	return nil
}

func (m *RequestRepo) GetRequest(ctx context.Context, id string) (*models.EmploymentRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	req, ok := m.Stored[id]
	if !ok {
		return nil, nil
	}

	out := cloneRequest(req)
	out.History = append([]models.HistoryEntry{}, m.History[id]...)

	return out, nil
}

func (m *RequestRepo) TransitionRequest(ctx context.Context, id string, from, to models.RequestState, upd *models.RequestUpdate, entry *models.HistoryEntry) (bool, error) {
	if m.TransitionErr != nil {
		return false, m.TransitionErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	req, ok := m.Stored[id]
	if !ok || req.State != from {
		return false, nil
	}

	req.State = to
	if upd != nil {
		applyUpdate(req, upd)
	}
	if entry != nil {
		m.nextHistoryID++
		e := *entry
		e.ID = m.nextHistoryID
		m.History[id] = append(m.History[id], e)
	}

	return true, nil
}

func (m *RequestRepo) ListByCompany(ctx context.Context, companyID int64, state *models.RequestState) ([]models.EmploymentRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.EmploymentRequest
	for _, req := range m.Stored {
		if req.CompanyID != companyID {
			continue
		}
		if state != nil && req.State != *state {
			continue
		}
		out = append(out, *cloneRequest(req))
	}

	return out, nil
}

func (m *RequestRepo) ListForExecutive(ctx context.Context, executiveID int64, state *models.RequestState) ([]models.EmploymentRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.EmploymentRequest
	for _, req := range m.Stored {
		assigned := req.ExecutiveID != nil && *req.ExecutiveID == executiveID
		unclaimed := req.State == models.StatePending && req.ExecutiveID == nil
		if !assigned && !unclaimed {
			continue
		}
		if state != nil && req.State != *state {
			continue
		}
		out = append(out, *cloneRequest(req))
	}

	return out, nil
}

func (m *RequestRepo) ListByState(ctx context.Context, state models.RequestState) ([]models.EmploymentRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.EmploymentRequest
	for _, req := range m.Stored {
		if req.State != state {
			continue
		}
		out = append(out, *cloneRequest(req))
	}

	return out, nil
}

func (m *RequestRepo) StatsForExecutive(ctx context.Context, executiveID int64) (*models.ExecutiveStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := &models.ExecutiveStats{ExecutiveID: executiveID, ByState: map[models.RequestState]int64{}}
	for _, req := range m.Stored {
		if req.ExecutiveID != nil && *req.ExecutiveID == executiveID {
			stats.ByState[req.State]++
		}
		if req.State == models.StatePending {
			stats.GlobalPending++
		}
	}

	return stats, nil
}

type CompanyRepo struct {
	Stored map[int64]*models.Company
	GetErr error
	nextID int64
}

func (m *CompanyRepo) GetCompany(ctx context.Context, id int64) (*models.Company, error) {
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	c, ok := m.Stored[id]
	if !ok {
		return nil, nil
	}
	return c, nil
}

func (m *CompanyRepo) CreateCompany(ctx context.Context, c *models.Company) (int64, error) {
	m.nextID++
	c.ID = m.nextID
	m.Stored[c.ID] = c
	return c.ID, nil
}

type ExecutiveRepo struct {
	Stored    map[int64]*models.Executive
	ByCompany map[int64]int64
}

func (m *ExecutiveRepo) GetExecutive(ctx context.Context, id int64) (*models.Executive, error) {
	e, ok := m.Stored[id]
	if !ok {
		return nil, nil
	}
	return e, nil
}

func (m *ExecutiveRepo) ActiveForCompany(ctx context.Context, companyID int64) (*models.Executive, error) {
	id, ok := m.ByCompany[companyID]
	if !ok {
		return nil, nil
	}
	return m.Stored[id], nil
}

// JobRepo mimics the idempotent job store. FailTimes makes the first N
// creation attempts fail, which drives the publish-retry tests.
type JobRepo struct {
	mu        sync.Mutex
	ByRequest map[string]int64
	Stored    map[int64]*models.Job
	FailTimes int
	Calls     int
	nextID    int64
}

func (m *JobRepo) CreateFromRequest(ctx context.Context, req *models.EmploymentRequest) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls++
	if m.FailTimes > 0 {
		m.FailTimes--
		return 0, fmt.Errorf("job store unavailable")
	}

	if id, ok := m.ByRequest[req.ID]; ok {
		return id, nil
	}

	m.nextID++
	job := &models.Job{
		ID:        m.nextID,
		RequestID: req.ID,
		CompanyID: req.CompanyID,
		Content:   req.Content,
		Status:    models.JobStatusPendingCompanyReview,
	}
	m.ByRequest[req.ID] = job.ID
	m.Stored[job.ID] = job

	return job.ID, nil
}

func (m *JobRepo) GetJob(ctx context.Context, id int64) (*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.Stored[id]
	if !ok {
		return nil, nil
	}
	return j, nil
}

type AccountRepo struct {
	Stored    *models.Account
	CreateErr error
}

func (m *AccountRepo) CreateAccount(ctx context.Context, a *models.Account) (int64, error) {
	if m.CreateErr != nil {
		return 0, m.CreateErr
	}
	cp := *a
	cp.ID = 1
	m.Stored = &cp
	return 1, nil
}

func (m *AccountRepo) GetAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	if m.Stored != nil && m.Stored.Email == email {
		return m.Stored, nil
	}
	return nil, nil
}

// Queue records enqueued jobs instead of running them.
type Queue struct {
	mu         sync.Mutex
	Enqueued   []QueuedJob
	EnqueueErr error
}

type QueuedJob struct {
	Type    string
	Payload any
}

func (m *Queue) Enqueue(ctx context.Context, typ string, payload any, priority, maxAttempts int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.EnqueueErr != nil {
		return 0, m.EnqueueErr
	}

	m.Enqueued = append(m.Enqueued, QueuedJob{Type: typ, Payload: payload})

	return int64(len(m.Enqueued)), nil
}

func cloneRequest(req *models.EmploymentRequest) *models.EmploymentRequest {
	cp := *req
	if req.ExecutiveID != nil {
		v := *req.ExecutiveID
		cp.ExecutiveID = &v
	}
	if req.JobID != nil {
		v := *req.JobID
		cp.JobID = &v
	}
	if req.ReviewedAt != nil {
		v := *req.ReviewedAt
		cp.ReviewedAt = &v
	}
	if req.PublishedAt != nil {
		v := *req.PublishedAt
		cp.PublishedAt = &v
	}
	cp.Content.Tags = append([]string(nil), req.Content.Tags...)
	cp.Content.Questions = append([]models.CandidateQuestion(nil), req.Content.Questions...)

	return &cp
}

func applyUpdate(req *models.EmploymentRequest, upd *models.RequestUpdate) {
	if upd.ExecutiveID != nil {
		v := *upd.ExecutiveID
		req.ExecutiveID = &v
	}
	if upd.ReviewerComment != nil {
		req.ReviewerComment = *upd.ReviewerComment
	}
	if upd.CompanyComment != nil {
		req.CompanyComment = *upd.CompanyComment
	}
	if upd.JobID != nil {
		v := *upd.JobID
		req.JobID = &v
	}
	if upd.ReviewedAt != nil {
		v := *upd.ReviewedAt
		req.ReviewedAt = &v
	}
	if upd.PublishedAt != nil {
		v := *upd.PublishedAt
		req.PublishedAt = &v
	}
	if upd.Content == nil {
		return
	}
	c := upd.Content
	if c.Title != nil {
		req.Content.Title = *c.Title
	}
	if c.Description != nil {
		req.Content.Description = *c.Description
	}
	if c.WorkMode != nil {
		req.Content.WorkMode = *c.WorkMode
	}
	if c.Schedule != nil {
		req.Content.Schedule = *c.Schedule
	}
	if c.Location != nil {
		req.Content.Location = *c.Location
	}
	if c.SalaryRange != nil {
		req.Content.SalaryRange = *c.SalaryRange
	}
	if c.Tags != nil {
		req.Content.Tags = append([]string(nil), (*c.Tags)...)
	}
	if c.Questions != nil {
		req.Content.Questions = append([]models.CandidateQuestion(nil), (*c.Questions)...)
	}
}
