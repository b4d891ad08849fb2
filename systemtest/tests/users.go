package tests

import (
	"net/http"
	"testing"

	"github.com/EternisAI/silo-enroll/internal/users"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserCRUD(t *testing.T, router *gin.Engine, backend *Backend) {
	backend.Reply("GetUser", "<GetUserResult><UserName>p1@alice</UserName><Email>alice@example.com</Email><Locked>false</Locked></GetUserResult>")
	backend.Reply("AddUser", "<AddUserResult>true</AddUserResult>")
	backend.Reply("RemoveUser", "<RemoveUserResult>Deleted</RemoveUserResult>")

	t.Run("create", func(t *testing.T) {
		rr := doJSON(router, http.MethodPost, "/api/v1/users/p1/alice?organization=acme",
			users.User{FirstName: "Alice", Email: "alice@example.com"})
		assert.Equal(t, http.StatusCreated, rr.Code)
		assert.Equal(t, "true", rr.Body.String())
	})

	t.Run("get", func(t *testing.T) {
		rr := doJSON(router, http.MethodGet, "/api/v1/users/p1/alice?organization=acme", nil)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), `"userName":"p1@alice"`)
	})

	t.Run("get missing", func(t *testing.T) {
		backend.Reply("GetUser", "")
		rr := doJSON(router, http.MethodGet, "/api/v1/users/p1/ghost?organization=acme", nil)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("delete", func(t *testing.T) {
		rr := doJSON(router, http.MethodDelete, "/api/v1/users/p1/alice?organization=acme", nil)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{"delete_status":true}`, rr.Body.String())
	})
}
