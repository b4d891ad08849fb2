package tests

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
)

// APIKey is the key the system test router is configured to accept.
const APIKey = "system-test-key"

func doJSON(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-API-Key", APIKey)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func taskTable(rows ...string) string {
	var b bytes.Buffer
	b.WriteString(`<GetProvisioningTasksForUserResult><diffgr:diffgram xmlns:diffgr="urn:schemas-microsoft-com:xml-diffgram-v1"><NewDataSet xmlns="">`)
	for _, row := range rows {
		b.WriteString(row)
	}
	b.WriteString(`</NewDataSet></diffgr:diffgram></GetProvisioningTasksForUserResult>`)
	return b.String()
}

// task renders one task row. The backend reports the kind label in
// tokenoption, not the TokenOption it was provisioned with.
func task(id, status, label string) string {
	return `<Provisioning_x0020_Tasks><taskid>` + id + `</taskid><status>` + status +
		`</status><tokenoption>` + label + `</tokenoption></Provisioning_x0020_Tasks>`
}
