package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"log/slog"

	"github.com/garnizeh/empleo/pkg/models"
	"github.com/garnizeh/empleo/pkg/repository"
	"github.com/google/uuid"
)

// Decision is an executive's verdict on a request under review.
type Decision string

const (
	DecisionApprove        Decision = "approve"
	DecisionReject         Decision = "reject"
	DecisionRequestChanges Decision = "request_changes"
)

// Actor identifies who is attempting a transition.
type Actor struct {
	ID   int64
	Role models.Role
}

type action string

const (
	actionClaim    action = "claim"
	actionDecide   action = "decide"
	actionResubmit action = "resubmit"
)

// JobPublishRetry is the queue job type enqueued when publication fails.
const JobPublishRetry = "publish.retry"

// PublishRetryPayload is the queue payload for a publish retry.
type PublishRetryPayload struct {
	RequestID string `json:"request_id"`
}

// Enqueuer schedules background jobs. Satisfied by the queue worker pool.
type Enqueuer interface {
	Enqueue(ctx context.Context, typ string, payload any, priority, maxAttempts int) (int64, error)
}

// Engine drives the employment-request state machine. All mutations on a
// request go through here; the store's conditional update serializes
// concurrent writers per request.
type Engine struct {
	requests   repository.RequestRepo
	companies  repository.CompanyRepo
	executives repository.ExecutiveRepo
	jobs       repository.JobRepo
	queue      Enqueuer
	validator  *Validator
	logger     *slog.Logger
}

func NewEngine(rr repository.RequestRepo, cr repository.CompanyRepo, er repository.ExecutiveRepo, jr repository.JobRepo, q Enqueuer, logger *slog.Logger) (*Engine, error) {
	v, err := NewValidator()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		requests:   rr,
		companies:  cr,
		executives: er,
		jobs:       jr,
		queue:      q,
		validator:  v,
		logger:     logger,
	}, nil
}

// authorize is the single permission gate: it decides whether the actor may
// perform the action on the request before any mutation happens.
func (e *Engine) authorize(actor Actor, req *models.EmploymentRequest, act action) error {
	switch act {
	case actionClaim:
		if actor.Role != models.RoleExecutive {
			return fmt.Errorf("claim requires an executive: %w", ErrUnauthorized)
		}
	case actionDecide:
		if actor.Role != models.RoleExecutive {
			return fmt.Errorf("decide requires an executive: %w", ErrUnauthorized)
		}
		if req.ExecutiveID == nil || *req.ExecutiveID != actor.ID {
			return fmt.Errorf("request %s is not assigned to executive %d: %w", req.ID, actor.ID, ErrUnauthorized)
		}
	case actionResubmit:
		if actor.Role != models.RoleCompany || req.CompanyID != actor.ID {
			return fmt.Errorf("request %s is not owned by company %d: %w", req.ID, actor.ID, ErrUnauthorized)
		}
	default:
		return fmt.Errorf("unknown action %q: %w", act, ErrInvalidInput)
	}

	return nil
}

// Submit creates a new request in pending. The company's assigned executive,
// when one exists, is recorded tentatively; the request still has to be
// claimed to leave pending, and the claim may come from a different
// executive.
func (e *Engine) Submit(ctx context.Context, companyID int64, raw json.RawMessage) (*models.EmploymentRequest, error) {
	if err := e.validator.ValidateContent(ctx, raw); err != nil {
		return nil, err
	}

	var content models.RequestContent
	if err := json.Unmarshal(raw, &content); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := requireContent(&content); err != nil {
		return nil, err
	}

	company, err := e.companies.GetCompany(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("lookup company: %w", err)
	}
	if company == nil {
		return nil, fmt.Errorf("company %d: %w", companyID, ErrNotFound)
	}

	req := &models.EmploymentRequest{
		ID:          uuid.NewString(),
		CompanyID:   companyID,
		Content:     content,
		State:       models.StatePending,
		SubmittedAt: nowUnix(),
	}

	// opportunistic pre-assignment; absence is not an error
	exec, err := e.executives.ActiveForCompany(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("resolve executive: %w", err)
	}
	if exec != nil {
		req.ExecutiveID = &exec.ID
	}

	first := &models.HistoryEntry{
		RequestID: req.ID,
		State:     models.StatePending,
		ActorID:   companyID,
		ActorRole: models.RoleCompany,
		Created:   req.SubmittedAt,
	}
	if err := e.requests.CreateRequest(ctx, req, first); err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.History = []models.HistoryEntry{*first}

	e.logger.Info("request submitted", "request_id", req.ID, "company_id", companyID)

	return req, nil
}

// Claim moves a pending request into review under the claiming executive.
// A claim overwrites any tentative pre-assignment.
func (e *Engine) Claim(ctx context.Context, requestID string, executiveID int64) (*models.EmploymentRequest, error) {
	exec, err := e.executives.GetExecutive(ctx, executiveID)
	if err != nil {
		return nil, fmt.Errorf("lookup executive: %w", err)
	}
	if exec == nil {
		return nil, fmt.Errorf("executive %d: %w", executiveID, ErrNotFound)
	}

	req, err := e.requests.GetRequest(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("load request: %w", err)
	}
	if req == nil {
		return nil, fmt.Errorf("request %s: %w", requestID, ErrNotFound)
	}

	if err := e.authorize(Actor{ID: executiveID, Role: models.RoleExecutive}, req, actionClaim); err != nil {
		return nil, err
	}
	if req.State != models.StatePending {
		return nil, fmt.Errorf("claim on %s request: %w", req.State, ErrInvalidTransition)
	}

	upd := &models.RequestUpdate{ExecutiveID: &executiveID}
	entry := &models.HistoryEntry{
		RequestID: requestID,
		State:     models.StateInReview,
		ActorID:   executiveID,
		ActorRole: models.RoleExecutive,
		Created:   nowUnix(),
	}
	ok, err := e.requests.TransitionRequest(ctx, requestID, models.StatePending, models.StateInReview, upd, entry)
	if err != nil {
		return nil, fmt.Errorf("claim transition: %w", err)
	}
	if !ok {
		// a concurrent claim won
		return nil, fmt.Errorf("request %s already claimed: %w", requestID, ErrInvalidTransition)
	}

	e.logger.Info("request claimed", "request_id", requestID, "executive_id", executiveID)

	return e.requests.GetRequest(ctx, requestID)
}

// Decide applies an executive verdict to a request under review. Approval
// also publishes the request in the same call.
func (e *Engine) Decide(ctx context.Context, requestID string, executiveID int64, decision Decision, comment string) (*models.EmploymentRequest, error) {
	var target models.RequestState
	switch decision {
	case DecisionApprove:
		target = models.StateApproved
	case DecisionReject:
		target = models.StateRejected
	case DecisionRequestChanges:
		target = models.StateNeedsChanges
	default:
		return nil, fmt.Errorf("unknown decision %q: %w", decision, ErrInvalidInput)
	}

	req, err := e.requests.GetRequest(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("load request: %w", err)
	}
	if req == nil {
		return nil, fmt.Errorf("request %s: %w", requestID, ErrNotFound)
	}

	if err := e.authorize(Actor{ID: executiveID, Role: models.RoleExecutive}, req, actionDecide); err != nil {
		return nil, err
	}
	if req.State != models.StateInReview {
		return nil, fmt.Errorf("decide on %s request: %w", req.State, ErrInvalidTransition)
	}

	reviewedAt := nowUnix()
	upd := &models.RequestUpdate{ReviewedAt: &reviewedAt}
	if comment != "" {
		upd.ReviewerComment = &comment
	}
	// An approval is audited by the published (or publish_failed) entry that
	// the same call produces, so the approved leg itself writes no history;
	// every terminal decision always yields exactly one entry.
	var entry *models.HistoryEntry
	if decision != DecisionApprove {
		entry = &models.HistoryEntry{
			RequestID: requestID,
			State:     target,
			Comment:   comment,
			ActorID:   executiveID,
			ActorRole: models.RoleExecutive,
			Created:   reviewedAt,
		}
	}
	ok, err := e.requests.TransitionRequest(ctx, requestID, models.StateInReview, target, upd, entry)
	if err != nil {
		return nil, fmt.Errorf("decide transition: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("request %s left review concurrently: %w", requestID, ErrInvalidTransition)
	}

	e.logger.Info("request decided", "request_id", requestID, "executive_id", executiveID, "decision", string(decision))

	if decision == DecisionApprove {
		if err := e.publish(ctx, requestID, executiveID); err != nil {
			return nil, err
		}
	}

	return e.requests.GetRequest(ctx, requestID)
}

// publish materializes the job for an approved request. When job creation
// fails the request lands in publish_failed and a retry job is queued; the
// caller still sees the real state rather than a fake success. Every error
// path enqueues a retry first: once a request is approved it must always
// have an exit toward published, even when the store itself is failing.
func (e *Engine) publish(ctx context.Context, requestID string, executiveID int64) error {
	req, err := e.requests.GetRequest(ctx, requestID)
	if err != nil {
		e.enqueueRetry(ctx, requestID)
		return fmt.Errorf("load request: %w", err)
	}
	if req == nil {
		return fmt.Errorf("request %s: %w", requestID, ErrNotFound)
	}
	if req.State != models.StateApproved {
		return fmt.Errorf("publish on %s request: %w", req.State, ErrInvalidTransition)
	}

	jobID, err := e.jobs.CreateFromRequest(ctx, req)
	if err != nil {
		e.logger.Warn("job creation failed, scheduling retry", "request_id", requestID, "err", err)

		// enqueue before touching the state: the retry handles both
		// approved and publish_failed, so it stays valid either way
		e.enqueueRetry(ctx, requestID)

		failEntry := &models.HistoryEntry{
			RequestID: requestID,
			State:     models.StatePublishFailed,
			Comment:   trimErr(err),
			ActorID:   0,
			ActorRole: models.RoleSystem,
			Created:   nowUnix(),
		}
		if _, ferr := e.requests.TransitionRequest(ctx, requestID, models.StateApproved, models.StatePublishFailed, nil, failEntry); ferr != nil {
			return fmt.Errorf("mark publish failed: %w", ferr)
		}

		return nil
	}

	publishedAt := nowUnix()
	upd := &models.RequestUpdate{JobID: &jobID, PublishedAt: &publishedAt}
	entry := &models.HistoryEntry{
		RequestID: requestID,
		State:     models.StatePublished,
		ActorID:   executiveID,
		ActorRole: models.RoleExecutive,
		Created:   publishedAt,
	}
	ok, err := e.requests.TransitionRequest(ctx, requestID, models.StateApproved, models.StatePublished, upd, entry)
	if err != nil {
		// the job exists; the retry re-runs the idempotent creation and
		// finishes the transition
		e.enqueueRetry(ctx, requestID)
		return fmt.Errorf("publish transition: %w", err)
	}
	if !ok {
		return fmt.Errorf("request %s left approved concurrently: %w", requestID, ErrInvalidTransition)
	}

	e.logger.Info("request published", "request_id", requestID, "job_id", jobID)

	return nil
}

// enqueueRetry schedules a publish.retry job. Enqueue failures are logged,
// not returned: SweepUnpublished re-enqueues on the next startup.
func (e *Engine) enqueueRetry(ctx context.Context, requestID string) {
	if e.queue == nil {
		return
	}
	if _, err := e.queue.Enqueue(ctx, JobPublishRetry, PublishRetryPayload{RequestID: requestID}, 50, 5); err != nil {
		e.logger.Error("enqueue publish retry", "request_id", requestID, "err", err)
	}
}

// RetryPublish is invoked by the queue worker for requests stuck between an
// approval and a live listing. It accepts both publish_failed and approved:
// a store error inside publish can leave a request in approved with no other
// operation able to move it. Job creation is idempotent per request, so a
// retry after a partial failure cannot create duplicates.
func (e *Engine) RetryPublish(ctx context.Context, requestID string) error {
	req, err := e.requests.GetRequest(ctx, requestID)
	if err != nil {
		return fmt.Errorf("load request: %w", err)
	}
	if req == nil {
		return fmt.Errorf("request %s: %w", requestID, ErrNotFound)
	}
	if req.State == models.StatePublished {
		// an earlier retry already finished
		return nil
	}
	if req.State != models.StatePublishFailed && req.State != models.StateApproved {
		return fmt.Errorf("retry publish on %s request: %w", req.State, ErrInvalidTransition)
	}

	jobID, err := e.jobs.CreateFromRequest(ctx, req)
	if err != nil {
		return fmt.Errorf("create job: %w", err)
	}

	publishedAt := nowUnix()
	upd := &models.RequestUpdate{JobID: &jobID, PublishedAt: &publishedAt}
	entry := &models.HistoryEntry{
		RequestID: requestID,
		State:     models.StatePublished,
		ActorID:   0,
		ActorRole: models.RoleSystem,
		Created:   publishedAt,
	}
	ok, err := e.requests.TransitionRequest(ctx, requestID, req.State, models.StatePublished, upd, entry)
	if err != nil {
		return fmt.Errorf("publish transition: %w", err)
	}
	if !ok {
		// a concurrent retry finished first; verify and accept
		cur, err := e.requests.GetRequest(ctx, requestID)
		if err != nil {
			return err
		}
		if cur != nil && cur.State == models.StatePublished {
			return nil
		}
		return fmt.Errorf("request %s left %s concurrently: %w", requestID, req.State, ErrInvalidTransition)
	}

	e.logger.Info("request published after retry", "request_id", requestID, "job_id", jobID)

	return nil
}

// SweepUnpublished re-enqueues retry jobs for every request sitting in
// approved or publish_failed. Run at startup: a crash between the approve
// transition and the enqueue, or a failed enqueue, would otherwise strand
// the request with no queued exit.
func (e *Engine) SweepUnpublished(ctx context.Context) (int, error) {
	var total int
	for _, state := range []models.RequestState{models.StateApproved, models.StatePublishFailed} {
		reqs, err := e.requests.ListByState(ctx, state)
		if err != nil {
			return total, fmt.Errorf("list %s requests: %w", state, err)
		}
		for _, req := range reqs {
			e.enqueueRetry(ctx, req.ID)
			total++
		}
	}
	if total > 0 {
		e.logger.Info("re-enqueued unpublished requests", "count", total)
	}

	return total, nil
}

// Resubmit applies a company's corrections to a needs_changes request and
// returns it to review. Only provided fields replace stored values.
func (e *Engine) Resubmit(ctx context.Context, requestID string, companyID int64, raw json.RawMessage, comment string) (*models.EmploymentRequest, error) {
	if err := e.validator.ValidateContent(ctx, raw); err != nil {
		return nil, err
	}

	var update models.ContentUpdate
	if err := json.Unmarshal(raw, &update); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := requireUpdate(&update); err != nil {
		return nil, err
	}

	req, err := e.requests.GetRequest(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("load request: %w", err)
	}
	if req == nil {
		return nil, fmt.Errorf("request %s: %w", requestID, ErrNotFound)
	}

	if err := e.authorize(Actor{ID: companyID, Role: models.RoleCompany}, req, actionResubmit); err != nil {
		return nil, err
	}
	if req.State != models.StateNeedsChanges {
		return nil, fmt.Errorf("resubmit on %s request: %w", req.State, ErrInvalidTransition)
	}

	upd := &models.RequestUpdate{Content: &update}
	if comment != "" {
		upd.CompanyComment = &comment
	}
	entry := &models.HistoryEntry{
		RequestID: requestID,
		State:     models.StateInReview,
		Comment:   comment,
		ActorID:   companyID,
		ActorRole: models.RoleCompany,
		Created:   nowUnix(),
	}
	ok, err := e.requests.TransitionRequest(ctx, requestID, models.StateNeedsChanges, models.StateInReview, upd, entry)
	if err != nil {
		return nil, fmt.Errorf("resubmit transition: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("request %s left needs_changes concurrently: %w", requestID, ErrInvalidTransition)
	}

	e.logger.Info("request resubmitted", "request_id", requestID, "company_id", companyID)

	return e.requests.GetRequest(ctx, requestID)
}

func requireContent(c *models.RequestContent) error {
	c.Title = strings.TrimSpace(c.Title)
	c.Description = strings.TrimSpace(c.Description)
	c.Schedule = strings.TrimSpace(c.Schedule)

	if c.Title == "" || c.Description == "" || c.Schedule == "" {
		return fmt.Errorf("title, description and schedule are required: %w", ErrInvalidInput)
	}
	if !c.WorkMode.Valid() {
		return fmt.Errorf("unknown work mode %q: %w", c.WorkMode, ErrInvalidInput)
	}

	return nil
}

// requireUpdate rejects corrections that would blank out a required field.
func requireUpdate(u *models.ContentUpdate) error {
	if u.Title != nil && strings.TrimSpace(*u.Title) == "" {
		return fmt.Errorf("title cannot be empty: %w", ErrInvalidInput)
	}
	if u.Description != nil && strings.TrimSpace(*u.Description) == "" {
		return fmt.Errorf("description cannot be empty: %w", ErrInvalidInput)
	}
	if u.Schedule != nil && strings.TrimSpace(*u.Schedule) == "" {
		return fmt.Errorf("schedule cannot be empty: %w", ErrInvalidInput)
	}
	if u.WorkMode != nil && !u.WorkMode.Valid() {
		return fmt.Errorf("unknown work mode %q: %w", *u.WorkMode, ErrInvalidInput)
	}

	return nil
}

func nowUnix() int64 {
	return time.Now().UTC().Unix()
}

func trimErr(err error) string {
	s := err.Error()
	if len(s) > 500 {
		s = s[:500]
	}
	return s
}
