// Package mcptool implements the tool-call surface: one registered
// tool per action name over github.com/mark3labs/mcp-go
// (server.NewMCPServer + srv.AddTool + server.NewStreamableHTTPServer).
// Every tool shares pkg/api's authenticator, scope mediator, approval
// engine, and executor registry so the two transports can never diverge
// on what an action does.
package mcptool

import (
	"context"
	"net/http"
	"strings"

	"github.com/mark3labs/mcp-go/server"
	"github.com/nebula-core/nebula/pkg/approval"
	"github.com/nebula-core/nebula/pkg/auth"
	"github.com/nebula-core/nebula/pkg/contracts"
	"github.com/nebula-core/nebula/pkg/enums"
	"github.com/nebula-core/nebula/pkg/executor"
	"github.com/nebula-core/nebula/pkg/scope"
	"github.com/nebula-core/nebula/pkg/store"
	"github.com/nebula-core/nebula/pkg/validate"
)

// Deps is every collaborator a tool handler needs, identical in shape to
// pkg/api.Server's fields so both transports are wired from the same
// startup sequence in cmd/nebula-mcp.
type Deps struct {
	Store     *store.Store
	Enums     *enums.Registry
	Auth      *auth.Authenticator
	Scope     *scope.Checker
	Approval  *approval.Engine
	Executors *executor.Registry
	Schemas   *validate.SchemaRegistry
}

type requestContextKey struct{}

// NewServer builds the mcp-go server and registers one tool per action
// name plus the three bootstrap enrollment tools. The returned
// *server.MCPServer is mounted by the caller (cmd/nebula-mcp) onto an
// http.ServeMux via server.NewStreamableHTTPServer.
func NewServer(deps Deps) *server.MCPServer {
	srv := server.NewMCPServer("nebula", "1.0.0", server.WithToolCapabilities(false))

	h := &handlers{deps: deps}
	for _, action := range actionNames {
		srv.AddTool(toolFor(action), h.dispatch(action))
	}
	srv.AddTool(enrollStartTool(), h.enrollStart)
	srv.AddTool(enrollWaitTool(), h.enrollWait)
	srv.AddTool(enrollRedeemTool(), h.enrollRedeem)

	return srv
}

// HTTPContextFunc carries the raw inbound *http.Request (the streamable
// transport's only place to observe headers) through context;
// credentialFromContext later extracts the bearer credential from it, so
// handlers can resolve the caller without threading auth through mcp-go's
// own request type.
func HTTPContextFunc(ctx context.Context, r *http.Request) context.Context {
	return context.WithValue(ctx, requestContextKey{}, r)
}

func credentialFromContext(ctx context.Context) string {
	r, ok := ctx.Value(requestContextKey{}).(*http.Request)
	if !ok {
		return ""
	}
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(h, prefix) {
		return ""
	}
	return strings.TrimPrefix(h, prefix)
}

// resolveCaller authenticates the current call. An empty credential with
// bootstrap mode on yields contracts.Caller{Kind: CallerBootstrap}, same
// as the REST transport's AuthMiddleware.
func (h *handlers) resolveCaller(ctx context.Context) (contracts.Caller, error) {
	return h.deps.Auth.Authenticate(ctx, credentialFromContext(ctx))
}

type handlers struct {
	deps Deps
}

// actionNames is the executor registry's action list; the tool
// name surface mirrors the REST action set verbatim.
var actionNames = []string{
	"create_entity", "update_entity",
	"bulk_create_entities", "bulk_update_entity_tags", "bulk_update_entity_scopes",
	"revert_entity",
	"create_knowledge", "update_knowledge", "bulk_create_knowledge",
	"create_relationship", "update_relationship",
	"create_job", "update_job", "update_job_status",
	"create_log", "update_log",
	"create_file", "update_file",
	"create_protocol", "update_protocol",
	"register_agent",
}
