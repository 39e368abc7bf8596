package mcptool

import (
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/nebula-core/nebula/pkg/contracts"
)

// toolErrorBody is the tool-surface error payload, kept structurally
// parallel to pkg/api's errorBody so both transports report the same
// taxonomy even though mcp-go's result shape is not an HTTP response.
type toolErrorBody struct {
	Code         contracts.ErrorCode `json:"code"`
	Message      string              `json:"message"`
	Field        string              `json:"field,omitempty"`
	NextSteps    []string            `json:"next_steps,omitempty"`
	RetryAfterMs int64               `json:"retry_after_ms,omitempty"`
}

// errorResult translates err into a tool result carrying the error
// taxonomy in its structured content, analogous to pkg/api's writeError.
// It never returns a Go error itself — mcp-go treats a non-nil error as a
// transport-level failure, whereas a domain error is a normal tool result
// the caller is expected to read and act on.
func errorResult(err error) *mcp.CallToolResult {
	domainErr, ok := contracts.AsError(err)
	if !ok {
		slog.Error("mcptool: unhandled internal error", "error", err)
		domainErr = contracts.Internal(err)
	}
	if domainErr.Code == contracts.CodeInternal {
		slog.Error("mcptool: internal error", "error", err)
	}
	result, encodeErr := mcp.NewToolResultJSON(toolErrorBody{
		Code:         domainErr.Code,
		Message:      domainErr.Message,
		Field:        domainErr.Field,
		NextSteps:    domainErr.Hint,
		RetryAfterMs: domainErr.RetryAfterMs,
	})
	if encodeErr != nil {
		return mcp.NewToolResultError(domainErr.Message)
	}
	result.IsError = true
	return result
}
