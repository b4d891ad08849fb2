package tests

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/EternisAI/silo-enroll/internal/api/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tokenRow = `<GetTokensResult><diffgr:diffgram xmlns:diffgr="urn:schemas-microsoft-com:xml-diffgram-v1"><NewDataSet xmlns="">
<Named_Tokens_Table>
  <serialnumber>1001</serialnumber>
  <type>MobilePASS</type>
  <state>Active</state>
  <stateInt>1</stateInt>
  <userid>alice</userid>
  <orgName>acme</orgName>
  <hardwareInit>true</hardwareInit>
  <assignable>false</assignable>
</Named_Tokens_Table>
</NewDataSet></diffgr:diffgram></GetTokensResult>`

func TestTokenCatalog(t *testing.T, router *gin.Engine, backend *Backend) {
	backend.Reply("GetTokensByOwner", "<GetTokensByOwnerResult><string>1001</string></GetTokensByOwnerResult>")
	backend.Reply("GetTokens", tokenRow)
	backend.Reply("RevokeToken", "<RevokeTokenResult>Success</RevokeTokenResult>")

	t.Run("list by owner", func(t *testing.T) {
		rr := doJSON(router, http.MethodGet, "/api/v1/tokens/default/alice?organization=acme&token_type=MobilePASS", nil)
		require.Equal(t, http.StatusOK, rr.Code)

		var list []dto.Token
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
		require.Len(t, list, 1)
		assert.Equal(t, "1001", list[0].SerialNumber)
		assert.Equal(t, "Active", list[0].State)
		assert.True(t, list[0].HardwareInitialized)
	})

	t.Run("filter excludes other kinds", func(t *testing.T) {
		rr := doJSON(router, http.MethodGet, "/api/v1/tokens/default/alice?organization=acme&token_type=OATH", nil)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "[]", rr.Body.String())
	})

	t.Run("describe", func(t *testing.T) {
		rr := doJSON(router, http.MethodGet, "/api/v1/token/1001?organization=acme", nil)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), `"username":"alice"`)
	})

	t.Run("revoke by serial", func(t *testing.T) {
		rr := doJSON(router, http.MethodDelete, "/api/v1/token/1001?organization=acme", nil)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "true", rr.Body.String())
	})

	t.Run("revoke all", func(t *testing.T) {
		rr := doJSON(router, http.MethodDelete, "/api/v1/tokens/default/alice?organization=acme", nil)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{"1001":true}`, rr.Body.String())
	})
}
