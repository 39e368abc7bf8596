package mcptool

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/nebula-core/nebula/pkg/contracts"
	"github.com/nebula-core/nebula/pkg/executor"
)

// toolFor builds the generic tool declaration for a registered action.
// Every action tool accepts a free-form JSON object argument set,
// identical in shape to the REST JSON body, so there is no per-action
// schema declared here; shape validation happens inside the executor,
// exactly as it does for the REST body.
func toolFor(action string) mcp.Tool {
	return mcp.NewTool(action,
		mcp.WithDescription("Nebula action: "+action+". Arguments are the action payload, identical in shape to the REST JSON body."),
	)
}

// dispatch builds the shared handler every action tool registers: it
// rejects bootstrap callers outright, re-checks the caller's scope
// against the record the action targets, and then routes into either
// the approval engine or the executor registry — identically to
// pkg/api.Server.writeHandler.
func (h *handlers) dispatch(action string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		caller, err := h.resolveCaller(ctx)
		if err != nil {
			return errorResult(err), nil
		}
		if caller.IsBootstrap() {
			return errorResult(contracts.EnrollmentRequired()), nil
		}

		payload, err := json.Marshal(request.GetArguments())
		if err != nil {
			return errorResult(contracts.InvalidInput("proposal", "malformed tool arguments")), nil
		}

		if err := h.authorizeWrite(ctx, caller, action, payload); err != nil {
			return errorResult(err), nil
		}

		if caller.RequiresApprovalGate() {
			req, err := h.deps.Approval.Create(ctx, caller.AgentID, action, payload, "")
			if err != nil {
				return errorResult(err), nil
			}
			return mcp.NewToolResultJSON(map[string]interface{}{
				"status":             "approval_required",
				"approval_request_id": req.ID,
			})
		}

		result, err := h.dispatchDirect(ctx, caller, action, payload)
		if err != nil {
			return errorResult(err), nil
		}
		return mcp.NewToolResultJSON(toolResultBody(result))
	}
}

// dispatchDirect mirrors pkg/api.Server.dispatchDirect: run action inside
// a single transaction under the caller's audit identity. Both transports
// share this shape deliberately so a trusted-caller action behaves
// identically regardless of which surface it arrived on.
func (h *handlers) dispatchDirect(ctx context.Context, caller contracts.Caller, action string, payload json.RawMessage) (executor.Result, error) {
	identity, ok := contracts.ForCaller(caller)
	if !ok {
		return executor.Result{}, contracts.Forbidden("bootstrap callers may not dispatch actions directly")
	}

	var result executor.Result
	txErr := h.deps.Store.WithTx(ctx, func(tx *sql.Tx) error {
		env := &executor.Env{
			Store:    h.deps.Store,
			Tx:       tx,
			Enums:    h.deps.Enums,
			Schemas:  h.deps.Schemas,
			Identity: identity,
			Caller:   caller,
		}
		res, err := h.deps.Executors.Dispatch(ctx, env, action, payload)
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

func toolResultBody(result executor.Result) map[string]interface{} {
	body := map[string]interface{}{"id": result.RecordID, "type": result.NodeType}
	if result.Secret != "" {
		body["secret"] = result.Secret
	}
	return body
}
