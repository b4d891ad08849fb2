package tests

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/EternisAI/silo-enroll/internal/api/http/dto"
	"github.com/EternisAI/silo-enroll/internal/enrollment"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeOutcome(t *testing.T, body []byte) enrollment.Response {
	t.Helper()
	var resp enrollment.Response
	require.NoError(t, json.Unmarshal(body, &resp))
	return resp
}

func TestEnrollByURL(t *testing.T, router *gin.Engine, backend *Backend) {
	backend.Reply("ProvisionUsers", "<ProvisionUsersResult><ProvisioningResult>EmailSent</ProvisioningResult></ProvisionUsersResult>")
	backend.Reply("GetProvisioningTasksForUser", taskTable(
		task("7", "Pending", "MobilePASS"),
		task("42", "Active", "MobilePASS"),
	))
	backend.Reply("GetEnrollmentURL", "<GetEnrollmentURLResult>https://x/enroll?code=abc</GetEnrollmentURLResult>")

	rr := doJSON(router, http.MethodPost,
		"/api/v1/token/enroll/default/alice?organization=acme&token_type=MobilePASS&method=URL", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	resp := decodeOutcome(t, rr.Body.Bytes())
	assert.Equal(t, enrollment.StatusComplete, resp.Status)
	require.NotNil(t, resp.Data)
	assert.Equal(t, "https://x/enroll?code=abc", resp.Data.ActivationURL)
	assert.Nil(t, resp.Data.ProvisioningTaskID)
	assert.NotContains(t, rr.Body.String(), "provId")
	assert.Contains(t, backend.LastRequest("GetEnrollmentURL"), "<TaskID>42</TaskID>")

	// RADIUS is provisioned as Custom but its task carries the RADIUS label.
	backend.Reply("GetProvisioningTasksForUser", taskTable(
		task("60", "Active", "Custom"),
		task("61", "Active", "RADIUS"),
	))
	rr = doJSON(router, http.MethodPost,
		"/api/v1/token/enroll/default/alice?organization=acme&token_type=radius&method=URL", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, enrollment.StatusComplete, decodeOutcome(t, rr.Body.Bytes()).Status)
	assert.Contains(t, backend.LastRequest("ProvisionUsers"), "<TokenClass>Custom</TokenClass>")
	assert.Contains(t, backend.LastRequest("GetEnrollmentURL"), "<TaskID>61</TaskID>")
}

func TestEnrollByEmail(t *testing.T, router *gin.Engine, backend *Backend) {
	backend.Reply("ProvisionUsers", "<ProvisionUsersResult><ProvisioningResult>EmailSent</ProvisioningResult></ProvisionUsersResult>")
	backend.Reply("GetProvisioningTasksForUser", taskTable(task("77", "Active", "OATH")))

	rr := doJSON(router, http.MethodPost,
		"/api/v1/token/enroll/partner/bob?organization=acme&token_type=oath&method=email", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	resp := decodeOutcome(t, rr.Body.Bytes())
	assert.Equal(t, enrollment.StatusComplete, resp.Status)
	require.NotNil(t, resp.Data)
	assert.Empty(t, resp.Data.ContinuationState)
	assert.Nil(t, resp.Data.ProvisioningTaskID)
}

func TestEnrollByAPIChallenge(t *testing.T, router *gin.Engine, backend *Backend) {
	backend.Reply("ProvisionUsers", "<ProvisionUsersResult><ProvisioningResult>EmailSent</ProvisioningResult></ProvisionUsersResult>")
	backend.Reply("GetProvisioningTasksForUser", taskTable(task("90", "Active", "OATH")))
	backend.Reply("GetEnrollmentURL", "<GetEnrollmentURLResult>https://x/enroll?code=chal-1</GetEnrollmentURLResult>")
	backend.Reply("ProcessEnrollment", "<ProcessEnrollmentResult>Pending</ProcessEnrollmentResult><CustomInfo><EnrollmentImage>aW1n</EnrollmentImage></CustomInfo>")

	path := "/api/v1/token/enroll/default/carol?organization=acme&token_type=OATH&method=API"
	rr := doJSON(router, http.MethodPost, path, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	first := decodeOutcome(t, rr.Body.Bytes())
	require.Equal(t, enrollment.StatusChallenge, first.Status)
	require.NotNil(t, first.Data)
	assert.NotEmpty(t, first.Data.ContinuationState)
	assert.Equal(t, "aW1n", first.Data.ChallengeImage)
	assert.Empty(t, first.Data.ActivationURL)

	backend.Reply("ProcessEnrollment", "<ProcessEnrollmentResult>Success</ProcessEnrollmentResult>")
	rr = doJSON(router, http.MethodPost, path, dto.EnrollRequest{
		State:             first.Data.ContinuationState,
		ResponseChallenge: "123456",
	})
	require.Equal(t, http.StatusOK, rr.Code)

	second := decodeOutcome(t, rr.Body.Bytes())
	assert.Equal(t, enrollment.StatusComplete, second.Status)
}

func TestEnrollValidation(t *testing.T, router *gin.Engine) {
	rr := doJSON(router, http.MethodPost,
		"/api/v1/token/enroll/default/alice?organization=acme&token_type=Floppy&method=URL", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doJSON(router, http.MethodPost,
		"/api/v1/token/enroll/default/alice?organization=acme&token_type=OATH&method=PIGEON", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
