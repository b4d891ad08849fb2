package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/EternisAI/silo-enroll/internal/api/http/dto"
	"github.com/EternisAI/silo-enroll/internal/enrollment"
	"github.com/EternisAI/silo-enroll/internal/session"
	"github.com/EternisAI/silo-enroll/internal/tokens"
	"github.com/EternisAI/silo-enroll/internal/users"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type mockEnroller struct{ mock.Mock }

func (m *mockEnroller) Enroll(ctx context.Context, req enrollment.Request) (*enrollment.Response, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*enrollment.Response)
	return resp, args.Error(1)
}

type mockCatalog struct{ mock.Mock }

func (m *mockCatalog) ListFiltered(ctx context.Context, owner, organization string, filter tokens.Filter) ([]*tokens.Token, error) {
	args := m.Called(ctx, owner, organization, filter)
	list, _ := args.Get(0).([]*tokens.Token)
	return list, args.Error(1)
}

func (m *mockCatalog) Describe(ctx context.Context, serial, organization string) (*tokens.Token, error) {
	args := m.Called(ctx, serial, organization)
	token, _ := args.Get(0).(*tokens.Token)
	return token, args.Error(1)
}

func (m *mockCatalog) RevokeBySerial(ctx context.Context, serial, organization string) (bool, error) {
	args := m.Called(ctx, serial, organization)
	return args.Bool(0), args.Error(1)
}

func (m *mockCatalog) RevokeFiltered(ctx context.Context, owner, organization string, filter tokens.Filter) (map[string]bool, error) {
	args := m.Called(ctx, owner, organization, filter)
	results, _ := args.Get(0).(map[string]bool)
	return results, args.Error(1)
}

type mockDirectory struct{ mock.Mock }

func (m *mockDirectory) Get(ctx context.Context, username, organization string) (*users.User, error) {
	args := m.Called(ctx, username, organization)
	user, _ := args.Get(0).(*users.User)
	return user, args.Error(1)
}

func (m *mockDirectory) Create(ctx context.Context, user users.User, organization string) (bool, error) {
	args := m.Called(ctx, user, organization)
	return args.Bool(0), args.Error(1)
}

func (m *mockDirectory) Remove(ctx context.Context, username, organization string) (bool, error) {
	args := m.Called(ctx, username, organization)
	return args.Bool(0), args.Error(1)
}

type fakePinger struct {
	alive bool
	pings int
}

func (p *fakePinger) Ping(context.Context) bool {
	p.pings++
	return p.alive
}

func (p *fakePinger) Healthy() bool { return p.alive }

var unavailable = fmt.Errorf("%w after 3 attempts: dial refused", session.ErrBackendUnavailable)

func do(r *gin.Engine, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	pinger := &fakePinger{alive: true}
	h := NewHealthHandler(pinger)
	r := gin.New()
	r.GET("/health", h.Check)
	r.GET("/ping", h.Ping)

	w := do(r, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","backend":true}`, w.Body.String())
	assert.Zero(t, pinger.pings)

	w = do(r, http.MethodGet, "/ping", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "true", w.Body.String())
	assert.Equal(t, 1, pinger.pings)

	pinger.alive = false
	w = do(r, http.MethodGet, "/ping", "")
	assert.Equal(t, "false", w.Body.String())
}

func setupEnrollRouter(e Enroller) *gin.Engine {
	r := gin.New()
	r.POST("/token/enroll/:partner_id/:username", NewEnrollmentHandler(e, "@").Enroll)
	return r
}

func TestEnrollStartsURLFlow(t *testing.T) {
	e := &mockEnroller{}
	e.On("Enroll", mock.Anything, enrollment.Request{
		PrincipalID:  "partner@alice",
		Organization: "acme",
		Kind:         tokens.KindMobilePASS,
		Method:       enrollment.MethodURL,
	}).Return(&enrollment.Response{
		Status:  enrollment.StatusComplete,
		Message: "ready",
		Data: &enrollment.TokenData{
			Method:        enrollment.MethodURL,
			Kind:          tokens.KindMobilePASS,
			ActivationURL: "https://sas.example/enroll?code=xyz",
		},
	}, nil)

	w := do(setupEnrollRouter(e), http.MethodPost,
		"/token/enroll/partner/alice?organization=acme&token_type=mobilepass&method=url", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp enrollment.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, enrollment.StatusComplete, resp.Status)
	require.NotNil(t, resp.Data)
	assert.Nil(t, resp.Data.ProvisioningTaskID)
	assert.Equal(t, "https://sas.example/enroll?code=xyz", resp.Data.ActivationURL)
	e.AssertExpectations(t)
}

func TestEnrollPassesChallengeAnswer(t *testing.T) {
	e := &mockEnroller{}
	e.On("Enroll", mock.Anything, mock.MatchedBy(func(req enrollment.Request) bool {
		return req.PrincipalID == "bob" &&
			req.Kind == tokens.KindGrIDsure &&
			req.Method == enrollment.MethodAPI &&
			req.ContinuationState == "code-1" &&
			req.ChallengeResponse == "1234"
	})).Return(&enrollment.Response{Status: enrollment.StatusComplete, Message: "done"}, nil)

	w := do(setupEnrollRouter(e), http.MethodPost,
		"/token/enroll/default/bob?organization=acme&token_type=GrIDsure&method=API",
		`{"state":"code-1","response_challenge":"1234"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	e.AssertExpectations(t)
}

func TestEnrollValidation(t *testing.T) {
	e := &mockEnroller{}
	r := setupEnrollRouter(e)

	tests := []struct {
		name   string
		target string
		body   string
	}{
		{"missing organization", "/token/enroll/p/u?token_type=OATH&method=EMAIL", ""},
		{"unknown kind", "/token/enroll/p/u?organization=acme&token_type=Floppy&method=EMAIL", ""},
		{"unknown method", "/token/enroll/p/u?organization=acme&token_type=OATH&method=FAX", ""},
		{"bad body", "/token/enroll/p/u?organization=acme&token_type=OATH&method=API", `{"state":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(r, http.MethodPost, tt.target, tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
	e.AssertNotCalled(t, "Enroll", mock.Anything, mock.Anything)
}

func TestEnrollBackendUnavailable(t *testing.T) {
	e := &mockEnroller{}
	e.On("Enroll", mock.Anything, mock.Anything).Return(nil, unavailable)

	w := do(setupEnrollRouter(e), http.MethodPost,
		"/token/enroll/p/u?organization=acme&token_type=OATH&method=EMAIL", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func setupTokenRouter(c TokenCatalog) *gin.Engine {
	h := NewTokenHandler(c, "@")
	r := gin.New()
	r.GET("/tokens/:realm_id/:username", h.List)
	r.DELETE("/tokens/:realm_id/:username", h.RevokeAll)
	r.GET("/token/:serial_number", h.Describe)
	r.DELETE("/token/:serial_number", h.Revoke)
	return r
}

func TestListTokens(t *testing.T) {
	c := &mockCatalog{}
	c.On("ListFiltered", mock.Anything, "realm@alice", "acme", tokens.Filter{Kind: "MobilePASS", State: "Active"}).
		Return([]*tokens.Token{{Serial: "1001", Kind: "MobilePASS", State: "Active", Owner: "realm@alice"}}, nil)

	w := do(setupTokenRouter(c), http.MethodGet,
		"/tokens/realm/alice?organization=acme&token_type=MOBILEPASS&token_state=active", "")
	require.Equal(t, http.StatusOK, w.Code)

	var list []dto.Token
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "1001", list[0].SerialNumber)
	assert.Equal(t, "realm@alice", list[0].Username)
	c.AssertExpectations(t)
}

func TestListTokensRejectsUnknownState(t *testing.T) {
	c := &mockCatalog{}

	w := do(setupTokenRouter(c), http.MethodGet, "/tokens/realm/alice?organization=acme&token_state=Broken", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	c.AssertNotCalled(t, "ListFiltered", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDescribeToken(t *testing.T) {
	c := &mockCatalog{}
	c.On("Describe", mock.Anything, "1001", "acme").Return(&tokens.Token{Serial: "1001", Kind: "OATH"}, nil)
	c.On("Describe", mock.Anything, "9999", "acme").Return(nil, nil)
	r := setupTokenRouter(c)

	w := do(r, http.MethodGet, "/token/1001?organization=acme", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"serial_number":"1001"`)

	w = do(r, http.MethodGet, "/token/9999?organization=acme", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRevokeTokens(t *testing.T) {
	c := &mockCatalog{}
	c.On("RevokeBySerial", mock.Anything, "1001", "acme").Return(true, nil)
	c.On("RevokeFiltered", mock.Anything, "alice", "acme", tokens.Filter{}).
		Return(map[string]bool{"1001": true, "1002": false}, nil)
	r := setupTokenRouter(c)

	w := do(r, http.MethodDelete, "/token/1001?organization=acme", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "true", w.Body.String())

	w = do(r, http.MethodDelete, "/tokens/default/alice?organization=acme", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"1001":true,"1002":false}`, w.Body.String())
	c.AssertExpectations(t)
}

func TestTokensBackendUnavailable(t *testing.T) {
	c := &mockCatalog{}
	c.On("Describe", mock.Anything, mock.Anything, mock.Anything).Return(nil, unavailable)

	w := do(setupTokenRouter(c), http.MethodGet, "/token/1001?organization=acme", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func setupUserRouter(d UserDirectory) *gin.Engine {
	h := NewUserHandler(d, "@")
	r := gin.New()
	r.GET("/users/:partner_id/:username", h.Get)
	r.POST("/users/:partner_id/:username", h.Create)
	r.DELETE("/users/:partner_id/:username", h.Remove)
	return r
}

func TestGetUser(t *testing.T) {
	d := &mockDirectory{}
	d.On("Get", mock.Anything, "p1@alice", "acme").Return(&users.User{Username: "p1@alice", Email: "a@example.com"}, nil)
	d.On("Get", mock.Anything, "p1@ghost", "acme").Return(nil, nil)
	r := setupUserRouter(d)

	w := do(r, http.MethodGet, "/users/p1/alice?organization=acme", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"userName":"p1@alice"`)

	w = do(r, http.MethodGet, "/users/p1/ghost?organization=acme", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateUserUsesPathName(t *testing.T) {
	d := &mockDirectory{}
	d.On("Create", mock.Anything, users.User{Username: "p1@alice", FirstName: "Alice"}, "acme").Return(true, nil)

	w := do(setupUserRouter(d), http.MethodPost, "/users/p1/alice?organization=acme",
		`{"userName":"mallory","firstName":"Alice"}`)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "true", w.Body.String())
	d.AssertExpectations(t)
}

func TestRemoveUser(t *testing.T) {
	d := &mockDirectory{}
	d.On("Remove", mock.Anything, "alice", "acme").Return(true, nil)

	w := do(setupUserRouter(d), http.MethodDelete, "/users/default/alice?organization=acme", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"delete_status":true}`, w.Body.String())
}
