package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"

	"github.com/nebula-core/nebula/pkg/blobstore"
	"github.com/nebula-core/nebula/pkg/contracts"
	"github.com/nebula-core/nebula/pkg/executor"
	"github.com/nebula-core/nebula/pkg/scope"
)

// writeHandler builds the generic handler every create/update REST route
// shares: resolve the caller, read the proposal body, re-check the
// caller's scope against the record being touched, and either enqueue
// the proposal for approval (untrusted agent) or dispatch it directly
// inside a transaction. The approval gate is evaluated exactly once per
// top-level request, before any executor runs, and it never re-derives
// record-level access on its own — authorizeWrite is what closes that
// gap for the REST transport.
func (s *Server) writeHandler(action string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := CallerFromContext(r.Context())
		if !ok || caller.IsBootstrap() {
			writeError(w, contracts.EnrollmentRequired())
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
		if err != nil {
			writeError(w, contracts.InvalidInput("body", "failed to read request body"))
			return
		}

		relatedJobID := r.URL.Query().Get("related_job_id")

		if err := s.authorizeWrite(r.Context(), caller, action, json.RawMessage(body)); err != nil {
			writeError(w, err)
			return
		}

		if caller.RequiresApprovalGate() {
			req, err := s.Approval.Create(r.Context(), caller.AgentID, action, json.RawMessage(body), relatedJobID)
			if err != nil {
				writeError(w, err)
				return
			}
			writeApprovalRequired(w, req.ID)
			return
		}

		result, err := s.dispatchDirect(r.Context(), caller, action, json.RawMessage(body))
		if err != nil {
			writeError(w, err)
			return
		}
		s.respondWithRecord(w, r, result)
	}
}

// dispatchDirect runs action inside a single transaction under the
// caller's audit identity: every mutating action runs in exactly one
// transaction. Only trusted callers (users and trusted
// agents) ever reach this path; untrusted agents are routed through the
// approval engine instead by writeHandler.
func (s *Server) dispatchDirect(ctx context.Context, caller contracts.Caller, action string, payload json.RawMessage) (executor.Result, error) {
	identity, ok := contracts.ForCaller(caller)
	if !ok {
		return executor.Result{}, contracts.Forbidden("bootstrap callers may not dispatch actions directly")
	}

	var result executor.Result
	txErr := s.Store.WithTx(ctx, func(tx *sql.Tx) error {
		env := &executor.Env{
			Store:    s.Store,
			Tx:       tx,
			Enums:    s.Enums,
			Schemas:  s.Schemas,
			Identity: identity,
			Caller:   caller,
		}
		res, err := s.Executors.Dispatch(ctx, env, action, payload)
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	if txErr != nil {
		return executor.Result{}, txErr
	}
	return result, nil
}

func (s *Server) respondWithRecord(w http.ResponseWriter, r *http.Request, result executor.Result) {
	body := map[string]interface{}{"id": result.RecordID, "type": result.NodeType}
	if result.Secret != "" {
		body["secret"] = result.Secret
	}
	writeSuccess(w, body)
}

func (s *Server) handleGetEntity(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFromContext(r.Context())
	id := r.PathValue("id")
	entity, err := s.Store.EntityByID(r.Context(), s.Store.DB, id)
	if err != nil {
		writeError(w, contracts.NotFound("entity"))
		return
	}
	if !scope.IsAdmin(caller.EffectiveScopeNames) && !scope.HasWriteScopes(caller.EffectiveScopeIDs, entity.ScopeIDs) {
		writeError(w, contracts.NotFound("entity"))
		return
	}
	entity.Metadata = scope.FilterSegments(entity.Metadata, caller.EffectiveScopeNames)
	writeSuccess(w, entity)
}

func (s *Server) handleGetKnowledge(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFromContext(r.Context())
	id := r.PathValue("id")
	item, err := s.Store.KnowledgeByID(r.Context(), s.Store.DB, id)
	if err != nil {
		writeError(w, contracts.NotFound("knowledge item"))
		return
	}
	if !scope.IsAdmin(caller.EffectiveScopeNames) && !scope.HasWriteScopes(caller.EffectiveScopeIDs, item.ScopeIDs) {
		writeError(w, contracts.NotFound("knowledge item"))
		return
	}
	item.Metadata = scope.FilterSegments(item.Metadata, caller.EffectiveScopeNames)
	writeSuccess(w, item)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFromContext(r.Context())
	id := r.PathValue("id")
	if err := s.Scope.JobOwnership(r.Context(), s.Store.DB, caller, id); err != nil {
		writeError(w, err)
		return
	}
	job, err := s.Store.JobByID(r.Context(), s.Store.DB, id)
	if err != nil {
		writeError(w, contracts.NotFound("job"))
		return
	}
	writeSuccess(w, job)
}

func (s *Server) handleGetRelationship(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFromContext(r.Context())
	id := r.PathValue("id")
	rel, err := s.Store.RelationshipByID(r.Context(), s.Store.DB, id)
	if err != nil {
		writeError(w, contracts.NotFound("relationship"))
		return
	}
	if err := s.Scope.RelationshipEndpointCheck(r.Context(), s.Store.DB, caller, rel.SourceType, rel.SourceID); err != nil {
		writeError(w, contracts.NotFound("relationship"))
		return
	}
	if err := s.Scope.RelationshipEndpointCheck(r.Context(), s.Store.DB, caller, rel.TargetType, rel.TargetID); err != nil {
		writeError(w, contracts.NotFound("relationship"))
		return
	}
	writeSuccess(w, rel)
}

func (s *Server) handleGetLog(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	log, err := s.Store.LogByID(r.Context(), s.Store.DB, id)
	if err != nil {
		writeError(w, contracts.NotFound("log"))
		return
	}
	writeSuccess(w, log)
}

func (s *Server) handleGetFile(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFromContext(r.Context())
	id := r.PathValue("id")
	visible, err := s.Scope.FileVisibility(r.Context(), s.Store.DB, caller, id)
	if err != nil {
		writeError(w, contracts.Internal(err))
		return
	}
	if !visible {
		writeError(w, contracts.NotFound("file"))
		return
	}
	file, err := s.Store.FileByID(r.Context(), s.Store.DB, id)
	if err != nil {
		writeError(w, contracts.NotFound("file"))
		return
	}
	writeSuccess(w, file)
}

// handlePutFileContent streams the request body into the blob backend at
// the File row's FilePath. The row itself must already exist (created via
// POST /files); this route only ever touches bytes, never metadata, so it
// carries no approval gate of its own — the metadata write that set
// FilePath already went through one.
func (s *Server) handlePutFileContent(w http.ResponseWriter, r *http.Request) {
	if s.Blobs == nil {
		writeError(w, contracts.Internal(nil))
		return
	}
	caller, _ := CallerFromContext(r.Context())
	id := r.PathValue("id")
	visible, err := s.Scope.FileVisibility(r.Context(), s.Store.DB, caller, id)
	if err != nil {
		writeError(w, contracts.Internal(err))
		return
	}
	if !visible {
		writeError(w, contracts.NotFound("file"))
		return
	}
	file, err := s.Store.FileByID(r.Context(), s.Store.DB, id)
	if err != nil {
		writeError(w, contracts.NotFound("file"))
		return
	}
	relPath, err := blobstore.CleanRelativePath(file.FilePath)
	if err != nil {
		writeError(w, contracts.InvalidInput("file_path", err.Error()))
		return
	}
	if err := s.Blobs.Put(r.Context(), relPath, io.LimitReader(r.Body, maxFileContentBytes), r.ContentLength); err != nil {
		writeError(w, contracts.Internal(err))
		return
	}
	writeSuccess(w, map[string]interface{}{"id": file.ID, "stored": true})
}

// handleGetFileContent streams the blob back to the caller with the
// file's recorded MIME type, subject to the same visibility check as the
// metadata route.
func (s *Server) handleGetFileContent(w http.ResponseWriter, r *http.Request) {
	if s.Blobs == nil {
		writeError(w, contracts.Internal(nil))
		return
	}
	caller, _ := CallerFromContext(r.Context())
	id := r.PathValue("id")
	visible, err := s.Scope.FileVisibility(r.Context(), s.Store.DB, caller, id)
	if err != nil {
		writeError(w, contracts.Internal(err))
		return
	}
	if !visible {
		writeError(w, contracts.NotFound("file"))
		return
	}
	file, err := s.Store.FileByID(r.Context(), s.Store.DB, id)
	if err != nil {
		writeError(w, contracts.NotFound("file"))
		return
	}
	relPath, err := blobstore.CleanRelativePath(file.FilePath)
	if err != nil {
		writeError(w, contracts.InvalidInput("file_path", err.Error()))
		return
	}
	rc, err := s.Blobs.Get(r.Context(), relPath)
	if err != nil {
		writeError(w, contracts.NotFound("file"))
		return
	}
	defer rc.Close()
	if file.MimeType != "" {
		w.Header().Set("Content-Type", file.MimeType)
	}
	_, _ = io.Copy(w, rc)
}

const maxFileContentBytes = 256 << 20

func (s *Server) handleGetProtocol(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFromContext(r.Context())
	id := r.PathValue("id")
	proto, err := s.Store.ProtocolByID(r.Context(), s.Store.DB, id)
	if err != nil {
		writeError(w, contracts.NotFound("protocol"))
		return
	}
	if !scope.IsAdmin(caller.EffectiveScopeNames) && !scope.HasWriteScopes(caller.EffectiveScopeIDs, proto.ScopeIDs) {
		writeError(w, contracts.NotFound("protocol"))
		return
	}
	writeSuccess(w, proto)
}

func (s *Server) handleListApprovals(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFromContext(r.Context())
	if !scope.IsAdmin(caller.EffectiveScopeNames) {
		writeError(w, contracts.Forbidden("reviewer operations require an admin scope"))
		return
	}
	limit, offset := pagination(r)
	reqs, err := s.Approval.ListPending(r.Context(), limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccessList(w, reqs, limit, offset, len(reqs))
}

func (s *Server) handleDiffApproval(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFromContext(r.Context())
	if !scope.IsAdmin(caller.EffectiveScopeNames) {
		writeError(w, contracts.Forbidden("reviewer operations require an admin scope"))
		return
	}
	diff, err := s.Approval.Diff(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, diff)
}

type reviewRequest struct {
	Notes         string                    `json:"notes"`
	ReviewDetails *contracts.ReviewDetails `json:"review_details,omitempty"`
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFromContext(r.Context())
	if !scope.IsAdmin(caller.EffectiveScopeNames) {
		writeError(w, contracts.Forbidden("reviewer operations require an admin scope"))
		return
	}
	var body reviewRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, contracts.InvalidInput("body", "malformed review body"))
			return
		}
	}
	req, result, err := s.Approval.Approve(r.Context(), r.PathValue("id"), caller.UserID, body.ReviewDetails)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, map[string]interface{}{"approval": req, "result": result})
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFromContext(r.Context())
	if !scope.IsAdmin(caller.EffectiveScopeNames) {
		writeError(w, contracts.Forbidden("reviewer operations require an admin scope"))
		return
	}
	var body reviewRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, contracts.InvalidInput("body", "malformed review body"))
			return
		}
	}
	req, err := s.Approval.Reject(r.Context(), r.PathValue("id"), caller.UserID, body.Notes)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, req)
}

type enrollStartRequest struct {
	Name                      string   `json:"name"`
	RequestedScopes           []string `json:"requested_scopes"`
	RequestedRequiresApproval bool     `json:"requested_requires_approval"`
	Capabilities              []string `json:"capabilities"`
}

func (s *Server) handleEnrollStart(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFromContext(r.Context())
	if !caller.IsBootstrap() && !scope.IsAdmin(caller.EffectiveScopeNames) {
		writeError(w, contracts.Forbidden("enrollment is only reachable from the bootstrap or admin context"))
		return
	}
	var body enrollStartRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, contracts.InvalidInput("body", "malformed enrollment request"))
		return
	}
	result, err := s.Approval.EnrollStart(r.Context(), body.Name, body.RequestedScopes, body.RequestedRequiresApproval, body.Capabilities)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, result)
}

type enrollWaitRequest struct {
	RegistrationID string `json:"registration_id"`
	EnrollmentToken string `json:"enrollment_token"`
	TimeoutSeconds  int    `json:"timeout_seconds"`
}

func (s *Server) handleEnrollWait(w http.ResponseWriter, r *http.Request) {
	var body enrollWaitRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, contracts.InvalidInput("body", "malformed enrollment request"))
		return
	}
	result, err := s.Approval.EnrollWait(r.Context(), body.RegistrationID, body.EnrollmentToken, body.TimeoutSeconds)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, result)
}

type enrollRedeemRequest struct {
	RegistrationID  string `json:"registration_id"`
	EnrollmentToken string `json:"enrollment_token"`
}

func (s *Server) handleEnrollRedeem(w http.ResponseWriter, r *http.Request) {
	var body enrollRedeemRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, contracts.InvalidInput("body", "malformed enrollment request"))
		return
	}
	result, err := s.Approval.EnrollRedeem(r.Context(), body.RegistrationID, body.EnrollmentToken)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, result)
}

// handleLogin is deliberately thin: credentials are presented and
// verified the same way as every other route, via Authorization: Bearer.
// This endpoint exists so an operator's first request can confirm a key
// resolves before using it elsewhere.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	credential := bearerCredential(r)
	caller, err := s.Auth.Authenticate(r.Context(), credential)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, caller)
}

type registerAgentRequest struct {
	Name             string   `json:"name"`
	OwnerScopeIDs    []string `json:"owner_scope_ids"`
	Capabilities     []string `json:"capabilities"`
	RequiresApproval bool     `json:"requires_approval"`
}

// handleRegisterAgent is the REST-direct registration path for an admin
// creating an agent without the enrollment long-poll, dispatching straight
// to the register_agent executor under the admin's audit identity.
func (s *Server) handleRegisterAgent(w http.ResponseWriter, r *http.Request) {
	caller, ok := CallerFromContext(r.Context())
	if !ok || !scope.IsAdmin(caller.EffectiveScopeNames) {
		writeError(w, contracts.Forbidden("agent registration requires an admin scope"))
		return
	}
	var body registerAgentRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, contracts.InvalidInput("body", "malformed registration request"))
		return
	}
	payload, _ := json.Marshal(map[string]interface{}{
		"agent_id":          newID(),
		"name":              body.Name,
		"owner_scope_ids":   body.OwnerScopeIDs,
		"capabilities":      body.Capabilities,
		"requires_approval": body.RequiresApproval,
	})
	result, err := s.dispatchDirect(r.Context(), caller, string(contracts.ActionRegisterAgent), payload)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"id":      result.RecordID,
		"api_key": result.Secret,
	})
}

func pagination(r *http.Request) (limit, offset int) {
	limit = 50
	offset = 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := parsePositiveInt(v); err == nil {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := parsePositiveInt(v); err == nil {
			offset = n
		}
	}
	return limit, offset
}

func parsePositiveInt(s string) (int, error) {
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, contracts.InvalidInput("pagination", "not a number")
		}
		n = n*10 + int(c-'0')
	}
	return n, nil
}

