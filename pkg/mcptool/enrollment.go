package mcptool

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/nebula-core/nebula/pkg/contracts"
	"github.com/nebula-core/nebula/pkg/scope"
)

// The three enrollment tools are the only ones a bootstrap caller may
// invoke; every other tool in dispatch() rejects bootstrap callers
// outright. Admin callers may also invoke them directly (registering an
// agent without going through the local trusted transport).

func enrollStartTool() mcp.Tool {
	return mcp.NewTool("agent_enroll_start",
		mcp.WithDescription("Begin bootstrap enrollment for a new agent, returning a one-time enrollment token."),
		mcp.WithString("name", mcp.Required(), mcp.Description("unique agent name")),
	)
}

func enrollWaitTool() mcp.Tool {
	return mcp.NewTool("agent_enroll_wait",
		mcp.WithDescription("Long-poll for a reviewer decision on a pending enrollment."),
		mcp.WithString("registration_id", mcp.Required()),
		mcp.WithString("enrollment_token", mcp.Required()),
	)
}

func enrollRedeemTool() mcp.Tool {
	return mcp.NewTool("agent_enroll_redeem",
		mcp.WithDescription("Redeem an approved enrollment token for the agent's first API key. One-time use."),
		mcp.WithString("registration_id", mcp.Required()),
		mcp.WithString("enrollment_token", mcp.Required()),
	)
}

func (h *handlers) allowEnrollmentCaller(ctx context.Context) (contracts.Caller, error) {
	caller, err := h.resolveCaller(ctx)
	if err != nil {
		return contracts.Caller{}, err
	}
	if !caller.IsBootstrap() && !scope.IsAdmin(caller.EffectiveScopeNames) {
		return contracts.Caller{}, contracts.Forbidden("enrollment is only reachable from the bootstrap or admin context")
	}
	return caller, nil
}

func (h *handlers) enrollStart(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if _, err := h.allowEnrollmentCaller(ctx); err != nil {
		return errorResult(err), nil
	}
	args := request.GetArguments()
	name, _ := args["name"].(string)
	scopes := stringSliceArg(args, "requested_scopes")
	requiresApproval, _ := args["requested_requires_approval"].(bool)
	capabilities := stringSliceArg(args, "capabilities")

	result, err := h.deps.Approval.EnrollStart(ctx, name, scopes, requiresApproval, capabilities)
	if err != nil {
		return errorResult(err), nil
	}
	return mcp.NewToolResultJSON(result)
}

func (h *handlers) enrollWait(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if _, err := h.allowEnrollmentCaller(ctx); err != nil {
		return errorResult(err), nil
	}
	args := request.GetArguments()
	registrationID, _ := args["registration_id"].(string)
	token, _ := args["enrollment_token"].(string)
	timeoutSeconds := intArg(args, "timeout_seconds", 30)

	result, err := h.deps.Approval.EnrollWait(ctx, registrationID, token, timeoutSeconds)
	if err != nil {
		return errorResult(err), nil
	}
	return mcp.NewToolResultJSON(result)
}

func (h *handlers) enrollRedeem(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if _, err := h.allowEnrollmentCaller(ctx); err != nil {
		return errorResult(err), nil
	}
	args := request.GetArguments()
	registrationID, _ := args["registration_id"].(string)
	token, _ := args["enrollment_token"].(string)

	result, err := h.deps.Approval.EnrollRedeem(ctx, registrationID, token)
	if err != nil {
		return errorResult(err), nil
	}
	return mcp.NewToolResultJSON(result)
}

func stringSliceArg(args map[string]interface{}, key string) []string {
	raw, ok := args[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func intArg(args map[string]interface{}, key string, def int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return def
	}
}
