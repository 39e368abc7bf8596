package mcptool

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nebula-core/nebula/pkg/contracts"
	"github.com/stretchr/testify/assert"
)

func TestCredentialFromContext_ExtractsBearerToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	req.Header.Set("Authorization", "Bearer nbl_abcdef")

	ctx := HTTPContextFunc(req.Context(), req)
	assert.Equal(t, "nbl_abcdef", credentialFromContext(ctx))
}

func TestCredentialFromContext_EmptyWithoutBearerPrefix(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	req.Header.Set("Authorization", "Basic xyz")

	ctx := HTTPContextFunc(req.Context(), req)
	assert.Empty(t, credentialFromContext(ctx))
}

func TestErrorResult_MarksResultAsError(t *testing.T) {
	result := errorResult(contracts.NotFound("entity"))
	assert.True(t, result.IsError)
}

func TestStringSliceArg_FiltersNonStringElements(t *testing.T) {
	args := map[string]interface{}{
		"scopes": []interface{}{"public", 42, "code"},
	}
	assert.Equal(t, []string{"public", "code"}, stringSliceArg(args, "scopes"))
}

func TestIntArg_DefaultsWhenMissing(t *testing.T) {
	args := map[string]interface{}{"timeout_seconds": float64(15)}
	assert.Equal(t, 15, intArg(args, "timeout_seconds", 30))
	assert.Equal(t, 30, intArg(args, "other", 30))
}

func TestActionNames_CoversEveryExecutor(t *testing.T) {
	assert.Contains(t, actionNames, "create_entity")
	assert.Contains(t, actionNames, "register_agent")
	assert.Contains(t, actionNames, "bulk_create_knowledge")
	assert.Len(t, actionNames, 21)
}
