// Package api implements the REST surface: resource-oriented JSON
// handlers sitting on top of the same authenticator, scope mediator,
// approval engine, and executor registry the tool-call surface in
// pkg/mcptool uses, so the two transports can never diverge on what an
// action does — only on how it is framed.
package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/nebula-core/nebula/pkg/approval"
	"github.com/nebula-core/nebula/pkg/auth"
	"github.com/nebula-core/nebula/pkg/blobstore"
	"github.com/nebula-core/nebula/pkg/contracts"
	"github.com/nebula-core/nebula/pkg/enums"
	"github.com/nebula-core/nebula/pkg/executor"
	"github.com/nebula-core/nebula/pkg/observability"
	"github.com/nebula-core/nebula/pkg/ratelimit"
	"github.com/nebula-core/nebula/pkg/scope"
	"github.com/nebula-core/nebula/pkg/store"
	"github.com/nebula-core/nebula/pkg/validate"
)

// Server holds every collaborator a route handler needs. It is built once
// at process startup by cmd/nebula-server and is safe for concurrent use;
// every field is itself safe for concurrent use.
type Server struct {
	Store         *store.Store
	Enums         *enums.Registry
	Auth          *auth.Authenticator
	Scope         *scope.Checker
	Approval      *approval.Engine
	Executors     *executor.Registry
	Schemas       *validate.SchemaRegistry
	Limiter       ratelimit.Limiter
	IdempotencyStore IdempotencyStorer
	// Blobs backs file content upload/download (/files/{id}/content).
	// Nil disables those two routes; cmd/nebula-server always sets it.
	Blobs blobstore.Store
	// Telemetry is nil when OTLP export is disabled (see cmd/nebula-server);
	// TelemetryMiddleware treats a nil provider as a no-op.
	Telemetry *observability.Provider
}

// NewServer wires the collaborators into a Server. It performs no I/O.
func NewServer(s *store.Store, reg *enums.Registry, authenticator *auth.Authenticator, checker *scope.Checker, appr *approval.Engine, execs *executor.Registry, schemas *validate.SchemaRegistry, limiter ratelimit.Limiter) *Server {
	return &Server{
		Store:            s,
		Enums:            reg,
		Auth:             authenticator,
		Scope:            checker,
		Approval:         appr,
		Executors:        execs,
		Schemas:          schemas,
		Limiter:          limiter,
		IdempotencyStore: NewIdempotencyStore(10 * time.Minute),
	}
}

// Routes registers every handler onto mux, wrapped in the middleware
// chain: telemetry, request id, CORS, rate limit, auth, idempotency,
// outermost first.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("POST /keys/login", s.handleLogin)
	mux.HandleFunc("POST /agents/register", s.handleRegisterAgent)

	mux.HandleFunc("POST /entities", s.writeHandler(string(contracts.ActionCreateEntity)))
	mux.HandleFunc("GET /entities/{id}", s.handleGetEntity)
	mux.HandleFunc("PATCH /entities/{id}", s.writeHandler(string(contracts.ActionUpdateEntity)))
	mux.HandleFunc("POST /entities/bulk", s.writeHandler(string(contracts.ActionBulkCreateEntities)))
	mux.HandleFunc("PATCH /entities/bulk/tags", s.writeHandler(string(contracts.ActionBulkUpdateEntityTags)))
	mux.HandleFunc("PATCH /entities/bulk/scopes", s.writeHandler(string(contracts.ActionBulkUpdateEntityScopes)))
	mux.HandleFunc("POST /entities/{id}/revert", s.writeHandler(string(contracts.ActionRevertEntity)))

	mux.HandleFunc("POST /knowledge", s.writeHandler(string(contracts.ActionCreateKnowledge)))
	mux.HandleFunc("GET /knowledge/{id}", s.handleGetKnowledge)
	mux.HandleFunc("PATCH /knowledge/{id}", s.writeHandler(string(contracts.ActionUpdateKnowledge)))
	mux.HandleFunc("POST /knowledge/bulk", s.writeHandler(string(contracts.ActionBulkCreateKnowledge)))

	mux.HandleFunc("POST /relationships", s.writeHandler(string(contracts.ActionCreateRelationship)))
	mux.HandleFunc("GET /relationships/{id}", s.handleGetRelationship)
	mux.HandleFunc("PATCH /relationships/{id}", s.writeHandler(string(contracts.ActionUpdateRelationship)))

	mux.HandleFunc("POST /jobs", s.writeHandler(string(contracts.ActionCreateJob)))
	mux.HandleFunc("GET /jobs/{id}", s.handleGetJob)
	mux.HandleFunc("PATCH /jobs/{id}", s.writeHandler(string(contracts.ActionUpdateJob)))
	mux.HandleFunc("PATCH /jobs/{id}/status", s.writeHandler(string(contracts.ActionUpdateJobStatus)))

	mux.HandleFunc("POST /logs", s.writeHandler(string(contracts.ActionCreateLog)))
	mux.HandleFunc("GET /logs/{id}", s.handleGetLog)
	mux.HandleFunc("PATCH /logs/{id}", s.writeHandler(string(contracts.ActionUpdateLog)))

	mux.HandleFunc("POST /files", s.writeHandler(string(contracts.ActionCreateFile)))
	mux.HandleFunc("GET /files/{id}", s.handleGetFile)
	mux.HandleFunc("PATCH /files/{id}", s.writeHandler(string(contracts.ActionUpdateFile)))
	mux.HandleFunc("PUT /files/{id}/content", s.handlePutFileContent)
	mux.HandleFunc("GET /files/{id}/content", s.handleGetFileContent)

	mux.HandleFunc("POST /protocols", s.writeHandler(string(contracts.ActionCreateProtocol)))
	mux.HandleFunc("GET /protocols/{id}", s.handleGetProtocol)
	mux.HandleFunc("PATCH /protocols/{id}", s.writeHandler(string(contracts.ActionUpdateProtocol)))

	mux.HandleFunc("GET /approvals", s.handleListApprovals)
	mux.HandleFunc("GET /approvals/{id}/diff", s.handleDiffApproval)
	mux.HandleFunc("POST /approvals/{id}/approve", s.handleApprove)
	mux.HandleFunc("POST /approvals/{id}/reject", s.handleReject)

	mux.HandleFunc("POST /agents/enroll/start", s.handleEnrollStart)
	mux.HandleFunc("POST /agents/enroll/wait", s.handleEnrollWait)
	mux.HandleFunc("POST /agents/enroll/redeem", s.handleEnrollRedeem)

	var handler http.Handler = mux
	handler = IdempotencyMiddleware(s.IdempotencyStore)(handler)
	handler = AuthMiddleware(s.Auth)(handler)
	handler = ratelimit.Middleware(s.Limiter, ratelimit.DefaultAPIConfig, RateLimitByCredential, writeRateLimitedRetry)(handler)
	handler = auth.CORSMiddleware(nil)(handler)
	handler = auth.RequestIDMiddleware(handler)
	handler = TelemetryMiddleware(s.Telemetry)(handler)
	return handler
}

// writeRateLimitedRetry adapts ratelimit.Middleware's TooManyRequestsWriter
// shape onto the rate_limited envelope.
func writeRateLimitedRetry(w http.ResponseWriter, retryAfterSeconds int) {
	writeRateLimited(w, int64(retryAfterSeconds)*1000)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.Store.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func newID() string { return uuid.New().String() }
