package api

import (
	"github.com/garnizeh/empleo/internal/config"
	"github.com/garnizeh/empleo/internal/workflow"
	"github.com/garnizeh/empleo/pkg/repository"
	"github.com/gorilla/mux"
)

func SetupRoutes(cfg *config.Config, version, buildTime string, engine *workflow.Engine, repo *Repos) *mux.Router {
	r := mux.NewRouter()

	// Middleware chain
	r.Use(LoggingMiddleware)
	r.Use(CORSMiddleware)
	r.Use(RecoveryMiddleware)

	// Create handlers
	systemHandler := &SystemHandler{}
	authHandler := NewAuthHandler(repo.Accounts, cfg.JWTSecret, cfg.TokenDuration)
	requestsHandler := NewRequestsHandler(engine, repo.Requests)

	// Open endpoints
	r.HandleFunc("/version", systemHandler.VersionHandler(version, buildTime)).Methods("GET")
	r.HandleFunc("/health", systemHandler.HealthHandler).Methods("GET")
	r.HandleFunc("/v1/auth/signup", authHandler.Signup).Methods("POST")
	r.HandleFunc("/v1/auth/signin", authHandler.Signin).Methods("POST")

	// API v1 Protected routes
	apiV1 := r.PathPrefix("/v1").Subrouter()
	apiV1.Use(JWTAuthMiddlewareWithSecret(cfg.JWTSecret))

	// Auth endpoints
	authV1 := apiV1.PathPrefix("/auth").Subrouter()
	authV1.HandleFunc("/signout", authHandler.Signout).Methods("POST")

	// Employment-request workflow endpoints
	apiV1.HandleFunc("/requests/company/{companyId:[0-9]+}", requestsHandler.Submit).Methods("POST")
	apiV1.HandleFunc("/requests/company/{companyId:[0-9]+}/list", requestsHandler.CompanyList).Methods("GET")
	apiV1.HandleFunc("/requests/executive/{executiveId:[0-9]+}", requestsHandler.ExecutiveList).Methods("GET")
	apiV1.HandleFunc("/requests/executive/{executiveId:[0-9]+}/stats", requestsHandler.ExecutiveStats).Methods("GET")
	apiV1.HandleFunc("/requests/{id}/review", requestsHandler.Review).Methods("PUT")
	apiV1.HandleFunc("/requests/{id}/corrections", requestsHandler.Corrections).Methods("PUT")
	apiV1.HandleFunc("/requests/{id}", requestsHandler.Get).Methods("GET")

	return r
}

// Repos bundles the repository interfaces the handlers read from.
type Repos struct {
	Requests repository.RequestRepo
	Accounts repository.AccountRepo
}
