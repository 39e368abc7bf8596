package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/nebula-core/nebula/pkg/contracts"
)

// successEnvelope is the HTTP 200 body shape: {"data": ..., "meta"?: {...}}.
type successEnvelope struct {
	Data interface{} `json:"data"`
	Meta *metaBlock  `json:"meta,omitempty"`
}

type metaBlock struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Total  int `json:"total"`
}

// approvalRequiredEnvelope is the HTTP 202 body shape for a write an
// untrusted agent submitted into the approval queue instead of executing.
type approvalRequiredEnvelope struct {
	Status           string `json:"status"`
	ApprovalRequestID string `json:"approval_request_id"`
	Message          string `json:"message"`
}

// rateLimitedEnvelope is the HTTP 429 body shape.
type rateLimitedEnvelope struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// errorEnvelope is the HTTP error body shape: {"detail": {"error": {...}}}.
type errorEnvelope struct {
	Detail errorDetail `json:"detail"`
}

type errorDetail struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code         contracts.ErrorCode `json:"code"`
	Message      string              `json:"message"`
	Field        string              `json:"field,omitempty"`
	Hint         []string            `json:"hint,omitempty"`
	RetryAfterMs int64               `json:"retry_after_ms,omitempty"`
}

// writeJSON encodes v as JSON with the given status: one small helper
// used by every handler rather than a templating layer.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("api: failed to encode response", "error", err)
	}
}

// writeSuccess writes the success envelope.
func writeSuccess(w http.ResponseWriter, data interface{}) {
	writeJSON(w, http.StatusOK, successEnvelope{Data: data})
}

// writeSuccessList writes the success envelope with pagination metadata.
func writeSuccessList(w http.ResponseWriter, data interface{}, limit, offset, total int) {
	writeJSON(w, http.StatusOK, successEnvelope{
		Data: data,
		Meta: &metaBlock{Limit: limit, Offset: offset, Total: total},
	})
}

// writeApprovalRequired writes the approval-interception envelope.
func writeApprovalRequired(w http.ResponseWriter, requestID string) {
	writeJSON(w, http.StatusAccepted, approvalRequiredEnvelope{
		Status:             "approval_required",
		ApprovalRequestID:  requestID,
		Message:            "this action requires reviewer approval",
	})
}

// writeRateLimited writes the rate-limited envelope, setting
// Retry-After when the caller supplied a hint.
func writeRateLimited(w http.ResponseWriter, retryAfterMs int64) {
	if retryAfterMs > 0 {
		w.Header().Set("Retry-After", msToSeconds(retryAfterMs))
	}
	writeJSON(w, http.StatusTooManyRequests, rateLimitedEnvelope{
		Status:  "rate_limited",
		Message: "rate limit exceeded",
	})
}

func msToSeconds(ms int64) string {
	secs := ms / 1000
	if secs < 1 {
		secs = 1
	}
	return itoa(secs)
}

func itoa(n int64) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// errorStatus maps an error taxonomy code to its HTTP status. Defined
// once here and consumed by writeError; pkg/mcptool
// keeps its own errorPayload for the tool-call transport's shape instead
// of importing this package, avoiding a transport-to-transport dependency.
func errorStatus(code contracts.ErrorCode) int {
	switch code {
	case contracts.CodeMissingAuth, contracts.CodeInvalidAuth:
		return http.StatusUnauthorized
	case contracts.CodeForbidden:
		return http.StatusForbidden
	case contracts.CodeNotFound:
		return http.StatusNotFound
	case contracts.CodeInvalidInput:
		return http.StatusBadRequest
	case contracts.CodeConflict:
		return http.StatusConflict
	case contracts.CodeRateLimited:
		return http.StatusTooManyRequests
	case contracts.CodeEnrollmentRequired:
		return http.StatusForbidden
	case contracts.CodeApprovalRequired:
		return http.StatusAccepted
	default:
		return http.StatusInternalServerError
	}
}

// writeError translates err into the error envelope. Unrecognized
// errors never leak their message to the client; they are logged and
// surfaced as a generic CodeInternal body.
func writeError(w http.ResponseWriter, err error) {
	domainErr, ok := contracts.AsError(err)
	if !ok {
		slog.Error("api: unhandled internal error", "error", err)
		domainErr = contracts.Internal(err)
	}
	if domainErr.Code == contracts.CodeInternal {
		slog.Error("api: internal error", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorEnvelope{Detail: errorDetail{Error: errorBody{
			Code:    contracts.CodeInternal,
			Message: "an unexpected error occurred",
		}}})
		return
	}
	writeJSON(w, errorStatus(domainErr.Code), errorEnvelope{Detail: errorDetail{Error: errorBody{
		Code:         domainErr.Code,
		Message:      domainErr.Message,
		Field:        domainErr.Field,
		Hint:         domainErr.Hint,
		RetryAfterMs: domainErr.RetryAfterMs,
	}}})
}
