package repository

import (
	"context"

	"github.com/garnizeh/empleo/pkg/models"
)

// Repository interfaces for domain entities. These are the public contracts
// consumers should depend on; concrete implementations live under internal/.

// RequestRepo is the durable store of employment requests and their history.
type RequestRepo interface {
	// CreateRequest persists a new request together with its first history
	// entry in one transaction.
	CreateRequest(ctx context.Context, req *models.EmploymentRequest, first *models.HistoryEntry) error

	// GetRequest loads a request with its full history, or nil when absent.
	GetRequest(ctx context.Context, id string) (*models.EmploymentRequest, error)

	// TransitionRequest atomically moves a request from one state to another,
	// applies the field updates and appends the history entry. It returns
	// false without writing anything when the request is no longer in the
	// `from` state (a concurrent writer won).
	TransitionRequest(ctx context.Context, id string, from, to models.RequestState, upd *models.RequestUpdate, entry *models.HistoryEntry) (bool, error)

	ListByCompany(ctx context.Context, companyID int64, state *models.RequestState) ([]models.EmploymentRequest, error)

	// ListForExecutive returns requests assigned to the executive plus
	// unassigned pending ones, optionally filtered by state.
	ListForExecutive(ctx context.Context, executiveID int64, state *models.RequestState) ([]models.EmploymentRequest, error)

	// ListByState returns every request currently in the given state,
	// regardless of company or assignment. Feeds the startup sweep over
	// requests stuck short of publication.
	ListByState(ctx context.Context, state models.RequestState) ([]models.EmploymentRequest, error)

	StatsForExecutive(ctx context.Context, executiveID int64) (*models.ExecutiveStats, error)
}

// ExecutiveRepo resolves executive assignments.
type ExecutiveRepo interface {
	GetExecutive(ctx context.Context, id int64) (*models.Executive, error)

	// ActiveForCompany returns the executive currently responsible for the
	// company, or nil when none is assigned.
	ActiveForCompany(ctx context.Context, companyID int64) (*models.Executive, error)
}

type CompanyRepo interface {
	GetCompany(ctx context.Context, id int64) (*models.Company, error)
	CreateCompany(ctx context.Context, c *models.Company) (int64, error)
}

// JobRepo materializes job listings from approved requests.
type JobRepo interface {
	// CreateFromRequest creates the job for an approved request and returns
	// its id. It is idempotent per request: a second call for the same
	// request returns the already created job's id.
	CreateFromRequest(ctx context.Context, req *models.EmploymentRequest) (int64, error)

	GetJob(ctx context.Context, id int64) (*models.Job, error)
}

type AccountRepo interface {
	CreateAccount(ctx context.Context, a *models.Account) (int64, error)
	GetAccountByEmail(ctx context.Context, email string) (*models.Account, error)
}
