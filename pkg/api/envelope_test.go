package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nebula-core/nebula/pkg/contracts"
	"github.com/stretchr/testify/assert"
)

func TestErrorStatus_MapsEveryTaxonomyCode(t *testing.T) {
	cases := map[contracts.ErrorCode]int{
		contracts.CodeMissingAuth:        http.StatusUnauthorized,
		contracts.CodeInvalidAuth:        http.StatusUnauthorized,
		contracts.CodeForbidden:          http.StatusForbidden,
		contracts.CodeNotFound:           http.StatusNotFound,
		contracts.CodeInvalidInput:       http.StatusBadRequest,
		contracts.CodeConflict:           http.StatusConflict,
		contracts.CodeRateLimited:        http.StatusTooManyRequests,
		contracts.CodeEnrollmentRequired: http.StatusForbidden,
		contracts.CodeApprovalRequired:   http.StatusAccepted,
		contracts.CodeInternal:           http.StatusInternalServerError,
	}
	for code, want := range cases {
		assert.Equal(t, want, errorStatus(code), "code %s", code)
	}
}

func TestWriteError_NeverLeaksInternalCause(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, contracts.Internal(assert.AnError))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), assert.AnError.Error())
	assert.Contains(t, rec.Body.String(), "unexpected error")
}

func TestWriteApprovalRequired_UsesAcceptedStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	writeApprovalRequired(rec, "req-123")

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, rec.Body.String(), "approval_required")
	assert.Contains(t, rec.Body.String(), "req-123")
}

func TestWriteRateLimited_SetsRetryAfterHeader(t *testing.T) {
	rec := httptest.NewRecorder()
	writeRateLimited(rec, 2500)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("Retry-After"))
}
