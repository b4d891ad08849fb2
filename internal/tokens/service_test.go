package tokens

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/EternisAI/silo-enroll/internal/bsidca"
	"github.com/EternisAI/silo-enroll/internal/bsidca/bsidcatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var errUnavailable = errors.New("backend unavailable")

func tokenDoc(serial, kind, state, owner string) string {
	return fmt.Sprintf(`<GetTokensResult><diffgram><NewDataSet>
  <Named_Tokens_Table>
    <serialnumber>%s</serialnumber>
    <state>%s</state>
    <stateSetDate>2024-03-01T10:15:30.123+00:00</stateSetDate>
    <userid>%s</userid>
    <orgName>acme</orgName>
    <type>%s</type>
    <container>Default</container>
    <hardwareInit>true</hardwareInit>
    <assignable>false</assignable>
    <stateInt>1</stateInt>
  </Named_Tokens_Table>
</NewDataSet></diffgram></GetTokensResult>`, serial, state, owner, kind)
}

func expectToken(m *bsidcatest.MockService, serial, kind, state, owner string) {
	m.On("GetTokens", mock.Anything, bsidca.TokenQuery{Serial: serial, Organization: "acme", PageSize: 1}).
		Return(bsidcatest.MustParse(tokenDoc(serial, kind, state, owner)), nil)
}

func newTestService(m *bsidcatest.MockService) *Service {
	return NewService(&bsidcatest.Source{Service: m}, nil)
}

func TestDescribe(t *testing.T) {
	m := &bsidcatest.MockService{}
	expectToken(m, "S1", "MobilePASS", "Active", "alice")
	m.On("GetTokens", mock.Anything, bsidca.TokenQuery{Serial: "S2", Organization: "acme", PageSize: 1}).
		Return(bsidcatest.MustParse(`<GetTokensResult/>`), nil)
	m.On("GetTokens", mock.Anything, bsidca.TokenQuery{Serial: "S3", Organization: "acme", PageSize: 1}).
		Return(nil, &bsidca.RemoteError{Op: "GetTokens", Err: errors.New("boom")})

	svc := newTestService(m)
	ctx := context.Background()

	token, err := svc.Describe(ctx, "S1", "acme")
	require.NoError(t, err)
	require.NotNil(t, token)
	assert.Equal(t, "S1", token.Serial)
	assert.Equal(t, "MobilePASS", token.Kind)
	assert.Equal(t, "Active", token.State)
	assert.Equal(t, 1, token.StateID)
	assert.Equal(t, "alice", token.Owner)
	assert.Equal(t, "acme", token.Organization)
	assert.True(t, token.HardwareInitialized)
	assert.False(t, token.Assignable)
	require.NotNil(t, token.StateSetDate)
	assert.Equal(t, 2024, token.StateSetDate.Year())

	token, err = svc.Describe(ctx, "S2", "acme")
	require.NoError(t, err)
	assert.Nil(t, token)

	token, err = svc.Describe(ctx, "S3", "acme")
	require.NoError(t, err)
	assert.Nil(t, token)
}

func TestListByOwner(t *testing.T) {
	m := &bsidcatest.MockService{}
	m.On("GetTokensByOwner", mock.Anything, "alice", "acme").Return([]string{"S1", "S2"}, nil)
	m.On("GetTokensByOwner", mock.Anything, "bob", "acme").Return(nil, &bsidca.RemoteError{Op: "GetTokensByOwner", Err: errors.New("boom")})

	svc := newTestService(m)

	serials, err := svc.ListByOwner(context.Background(), "alice", "acme")
	require.NoError(t, err)
	assert.Equal(t, []string{"S1", "S2"}, serials)

	serials, err = svc.ListByOwner(context.Background(), "bob", "acme")
	require.NoError(t, err)
	assert.Empty(t, serials)
}

func TestListFiltered(t *testing.T) {
	m := &bsidcatest.MockService{}
	m.On("GetTokensByOwner", mock.Anything, "alice", "acme").Return([]string{"S1", "S2", "S3", "S4"}, nil)
	expectToken(m, "S1", "MobilePASS", "Active", "alice")
	expectToken(m, "S2", "OATH", "Active", "alice")
	expectToken(m, "S3", "MobilePASS", "Suspended", "alice")
	m.On("GetTokens", mock.Anything, bsidca.TokenQuery{Serial: "S4", Organization: "acme", PageSize: 1}).
		Return(nil, &bsidca.RemoteError{Op: "GetTokens", Err: errors.New("boom")})

	svc := newTestService(m)
	ctx := context.Background()

	all, err := svc.ListFiltered(ctx, "alice", "acme", Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	mobile, err := svc.ListFiltered(ctx, "alice", "acme", Filter{Kind: "mobilepass"})
	require.NoError(t, err)
	require.Len(t, mobile, 2)
	assert.Equal(t, "S1", mobile[0].Serial)
	assert.Equal(t, "S3", mobile[1].Serial)

	active, err := svc.ListFiltered(ctx, "alice", "acme", Filter{Kind: "MobilePASS", State: "active"})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "S1", active[0].Serial)
}

func TestRevoke(t *testing.T) {
	m := &bsidcatest.MockService{}
	m.On("RevokeToken", mock.Anything, bsidca.RevokeRequest{
		Owner:        "alice",
		Serial:       "S1",
		Organization: "acme",
		Mode:         bsidca.RevokeReturnToInventoryInitialized,
	}).Return("Success", nil)
	m.On("RevokeToken", mock.Anything, mock.MatchedBy(func(req bsidca.RevokeRequest) bool {
		return req.Serial == "S2"
	})).Return("Failed", nil)

	svc := newTestService(m)

	ok, err := svc.Revoke(context.Background(), "alice", "S1", "acme")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.Revoke(context.Background(), "alice", "S2", "acme")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRevokeBySerialUsesTokenOwner(t *testing.T) {
	m := &bsidcatest.MockService{}
	expectToken(m, "S9", "OATH", "Active", "carol")
	m.On("RevokeToken", mock.Anything, mock.MatchedBy(func(req bsidca.RevokeRequest) bool {
		return req.Serial == "S9" && req.Owner == "carol"
	})).Return("Success", nil)

	ok, err := newTestService(m).RevokeBySerial(context.Background(), "S9", "acme")
	require.NoError(t, err)
	assert.True(t, ok)
	m.AssertExpectations(t)
}

func TestRevokeFiltered(t *testing.T) {
	m := &bsidcatest.MockService{}
	m.On("GetTokensByOwner", mock.Anything, "alice", "acme").Return([]string{"S1", "S2", "S3"}, nil)
	expectToken(m, "S1", "MobilePASS", "Active", "alice")
	expectToken(m, "S2", "MobilePASS", "Active", "someone-else")
	expectToken(m, "S3", "OATH", "Active", "alice")
	m.On("RevokeToken", mock.Anything, mock.MatchedBy(func(req bsidca.RevokeRequest) bool {
		return req.Serial == "S1"
	})).Return("Success", nil)
	m.On("RevokeToken", mock.Anything, mock.MatchedBy(func(req bsidca.RevokeRequest) bool {
		return req.Serial == "S2"
	})).Return("", &bsidca.RemoteError{Op: "RevokeToken", Err: errors.New("boom")})

	results, err := newTestService(m).RevokeFiltered(context.Background(), "alice", "acme", Filter{Kind: "MobilePASS"})
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"S1": true, "S2": false}, results)
	m.AssertNotCalled(t, "RevokeToken", mock.Anything, mock.MatchedBy(func(req bsidca.RevokeRequest) bool {
		return req.Serial == "S3"
	}))
}

func TestAcquireFailurePropagates(t *testing.T) {
	svc := NewService(&bsidcatest.Source{Err: errUnavailable}, nil)
	ctx := context.Background()

	_, err := svc.ListByOwner(ctx, "alice", "acme")
	assert.ErrorIs(t, err, errUnavailable)
	_, err = svc.Describe(ctx, "S1", "acme")
	assert.ErrorIs(t, err, errUnavailable)
	_, err = svc.ListFiltered(ctx, "alice", "acme", Filter{})
	assert.ErrorIs(t, err, errUnavailable)
	_, err = svc.Revoke(ctx, "alice", "S1", "acme")
	assert.ErrorIs(t, err, errUnavailable)
	_, err = svc.RevokeBySerial(ctx, "S1", "acme")
	assert.ErrorIs(t, err, errUnavailable)
	_, err = svc.RevokeFiltered(ctx, "alice", "acme", Filter{})
	assert.ErrorIs(t, err, errUnavailable)
}
