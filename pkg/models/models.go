package models

import (
	"encoding/json"
	"time"
)

// RequestState is the lifecycle state of an employment request.
type RequestState string

const (
	StatePending       RequestState = "pending"
	StateInReview      RequestState = "in_review"
	StateApproved      RequestState = "approved"
	StateRejected      RequestState = "rejected"
	StateNeedsChanges  RequestState = "needs_changes"
	StatePublishFailed RequestState = "publish_failed"
	StatePublished     RequestState = "published"
)

// States lists every known request state, in lifecycle order.
var States = []RequestState{
	StatePending,
	StateInReview,
	StateApproved,
	StateRejected,
	StateNeedsChanges,
	StatePublishFailed,
	StatePublished,
}

// ParseState returns the typed state for s, or false when s is not a known state.
func ParseState(s string) (RequestState, bool) {
	for _, st := range States {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

// Terminal reports whether no further transitions can leave s.
func (s RequestState) Terminal() bool {
	return s == StateRejected || s == StatePublished
}

// Role identifies the kind of actor recorded in a history entry.
type Role string

const (
	RoleCompany   Role = "company"
	RoleExecutive Role = "executive"
	RoleSystem    Role = "system"
)

type WorkMode string

const (
	WorkModeOnSite WorkMode = "on_site"
	WorkModeRemote WorkMode = "remote"
	WorkModeHybrid WorkMode = "hybrid"
)

// Valid reports whether m is one of the known work modes.
func (m WorkMode) Valid() bool {
	switch m {
	case WorkModeOnSite, WorkModeRemote, WorkModeHybrid:
		return true
	}
	return false
}

// CandidateQuestion is one screening question attached to a posting.
type CandidateQuestion struct {
	Text     string `json:"text"`
	Required bool   `json:"required"`
}

// RequestContent is the company-owned payload of an employment request.
type RequestContent struct {
	Title       string              `json:"title"`
	Description string              `json:"description"`
	WorkMode    WorkMode            `json:"work_mode"`
	Schedule    string              `json:"schedule"`
	Location    string              `json:"location,omitempty"`
	SalaryRange string              `json:"salary_range,omitempty"`
	Tags        []string            `json:"tags,omitempty"`
	Questions   []CandidateQuestion `json:"questions,omitempty"`
}

// ContentUpdate is a partial content payload for correction resubmission.
// Only non-nil fields replace the stored values.
type ContentUpdate struct {
	Title       *string              `json:"title,omitempty"`
	Description *string              `json:"description,omitempty"`
	WorkMode    *WorkMode            `json:"work_mode,omitempty"`
	Schedule    *string              `json:"schedule,omitempty"`
	Location    *string              `json:"location,omitempty"`
	SalaryRange *string              `json:"salary_range,omitempty"`
	Tags        *[]string            `json:"tags,omitempty"`
	Questions   *[]CandidateQuestion `json:"questions,omitempty"`
}

// HistoryEntry is one append-only audit record for a request transition.
type HistoryEntry struct {
	ID        int64        `json:"id" db:"id"`
	RequestID string       `json:"request_id" db:"request_id"`
	State     RequestState `json:"resulting_state" db:"resulting_state"`
	Comment   string       `json:"comment,omitempty" db:"comment"`
	ActorID   int64        `json:"actor_id" db:"actor_id"`
	ActorRole Role         `json:"actor_role" db:"actor_role"`
	Created   int64        `json:"created" db:"created"`
}

// EmploymentRequest is a company's draft job posting awaiting moderation.
type EmploymentRequest struct {
	ID          string         `json:"id" db:"id"`
	CompanyID   int64          `json:"company_id" db:"company_id"`
	ExecutiveID *int64         `json:"executive_id,omitempty" db:"executive_id"`
	Content     RequestContent `json:"content"`
	State       RequestState   `json:"state" db:"state"`

	ReviewerComment string `json:"reviewer_comment,omitempty" db:"reviewer_comment"`
	CompanyComment  string `json:"company_comment,omitempty" db:"company_comment"`

	JobID *int64 `json:"job_id,omitempty" db:"job_id"`

	SubmittedAt int64  `json:"submitted_at" db:"submitted_at"`
	ReviewedAt  *int64 `json:"reviewed_at,omitempty" db:"reviewed_at"`
	PublishedAt *int64 `json:"published_at,omitempty" db:"published_at"`

	History []HistoryEntry `json:"history,omitempty"`
}

// RequestUpdate carries the field changes applied alongside a state
// transition. Nil fields are left untouched.
type RequestUpdate struct {
	ExecutiveID     *int64
	ReviewerComment *string
	CompanyComment  *string
	JobID           *int64
	ReviewedAt      *int64
	PublishedAt     *int64
	Content         *ContentUpdate
}

// Job is the live listing materialized from an approved request.
type Job struct {
	ID        int64          `json:"id" db:"id"`
	RequestID string         `json:"request_id" db:"request_id"`
	CompanyID int64          `json:"company_id" db:"company_id"`
	Content   RequestContent `json:"content"`
	Status    string         `json:"status" db:"status"`
	Created   int64          `json:"created" db:"created"`
}

// JobStatusPendingCompanyReview is the initial status of a published job:
// the company still has to acknowledge the listing in the surrounding system.
const JobStatusPendingCompanyReview = "pending_company_review"

type Company struct {
	ID          int64  `json:"id" db:"id"`
	Name        string `json:"name" db:"name"`
	ExecutiveID *int64 `json:"executive_id,omitempty" db:"executive_id"`
	Created     int64  `json:"created" db:"created"`
}

type Executive struct {
	ID      int64  `json:"id" db:"id"`
	Name    string `json:"name" db:"name"`
	Active  bool   `json:"active" db:"active"`
	Created int64  `json:"created" db:"created"`
}

// Account is a signin identity bound to a company or an executive.
type Account struct {
	ID           int64  `json:"id" db:"id"`
	Email        string `json:"email" db:"email"`
	PasswordHash string `json:"password_hash,omitempty" db:"password_hash"`
	Role         Role   `json:"role" db:"role"`
	EntityID     int64  `json:"entity_id" db:"entity_id"`
	Created      int64  `json:"created" db:"created"`
}

// ExecutiveStats aggregates request counts for one executive.
type ExecutiveStats struct {
	ExecutiveID   int64                  `json:"executive_id"`
	ByState       map[RequestState]int64 `json:"by_state"`
	GlobalPending int64                  `json:"global_pending"`
}

// QueueJob is a background job persisted in the retry queue.
type QueueJob struct {
	ID          int64           `json:"id"`
	Type        string          `json:"type"`
	Payload     json.RawMessage `json:"payload"`
	Status      string          `json:"status"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"max_attempts"`
	Priority    int             `json:"priority"`
	ScheduledAt time.Time       `json:"scheduled_at"`
	NextTryAt   *time.Time      `json:"next_try_at,omitempty"`
	LastError   string          `json:"last_error,omitempty"`
	Created     time.Time       `json:"created"`
	Updated     time.Time       `json:"updated"`
}
