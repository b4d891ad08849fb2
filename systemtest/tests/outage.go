package tests

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

// TestBackendOutage needs a supervisor allowing few attempts with a short
// retry interval.
func TestBackendOutage(t *testing.T, router *gin.Engine, backend *Backend) {
	backend.SetDown(true)
	connects := backend.Calls("Connect")

	rr := doJSON(router, http.MethodPost,
		"/api/v1/token/enroll/default/alice?organization=acme&token_type=OATH&method=EMAIL", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Greater(t, backend.Calls("Connect"), connects)

	rr = doJSON(router, http.MethodGet, "/api/v1/ping", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "false", rr.Body.String())

	backend.SetDown(false)
	rr = doJSON(router, http.MethodGet, "/api/v1/ping", nil)
	assert.Equal(t, "true", rr.Body.String())
}
