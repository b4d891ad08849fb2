// Package bsidcatest provides test doubles for the backend operation set.
package bsidcatest

import (
	"context"

	"github.com/EternisAI/silo-enroll/internal/bsidca"
	"github.com/EternisAI/silo-enroll/internal/xmlfield"
	"github.com/stretchr/testify/mock"
)

type MockService struct {
	mock.Mock
}

var _ bsidca.Service = (*MockService)(nil)

func (m *MockService) PingConnection(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}

func (m *MockService) ProvisionUsers(ctx context.Context, req bsidca.ProvisionRequest) ([]string, error) {
	args := m.Called(ctx, req)
	results, _ := args.Get(0).([]string)
	return results, args.Error(1)
}

func (m *MockService) ProvisionUsersGrIDsureTokens(ctx context.Context, req bsidca.ProvisionRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *MockService) GetProvisioningTasksForUser(ctx context.Context, req bsidca.TaskQuery) (*xmlfield.Document, error) {
	args := m.Called(ctx, req)
	doc, _ := args.Get(0).(*xmlfield.Document)
	return doc, args.Error(1)
}

func (m *MockService) GetEnrollmentURL(ctx context.Context, owner string, taskID int, organization string) (string, error) {
	args := m.Called(ctx, owner, taskID, organization)
	return args.String(0), args.Error(1)
}

func (m *MockService) GetMobilePASSProvisioningActivationCode(ctx context.Context, owner string, taskID int, organization string) (string, error) {
	args := m.Called(ctx, owner, taskID, organization)
	return args.String(0), args.Error(1)
}

func (m *MockService) ProcessEnrollment(ctx context.Context, code, otp string) (*bsidca.EnrollmentReply, error) {
	args := m.Called(ctx, code, otp)
	reply, _ := args.Get(0).(*bsidca.EnrollmentReply)
	return reply, args.Error(1)
}

func (m *MockService) GetTokensByOwner(ctx context.Context, owner, organization string) ([]string, error) {
	args := m.Called(ctx, owner, organization)
	serials, _ := args.Get(0).([]string)
	return serials, args.Error(1)
}

func (m *MockService) GetTokens(ctx context.Context, req bsidca.TokenQuery) (*xmlfield.Document, error) {
	args := m.Called(ctx, req)
	doc, _ := args.Get(0).(*xmlfield.Document)
	return doc, args.Error(1)
}

func (m *MockService) RevokeToken(ctx context.Context, req bsidca.RevokeRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *MockService) GetUser(ctx context.Context, username, organization string) (*bsidca.UserRecord, error) {
	args := m.Called(ctx, username, organization)
	user, _ := args.Get(0).(*bsidca.UserRecord)
	return user, args.Error(1)
}

func (m *MockService) AddUser(ctx context.Context, user bsidca.UserRecord, organization string) (bool, error) {
	args := m.Called(ctx, user, organization)
	return args.Bool(0), args.Error(1)
}

func (m *MockService) RemoveUser(ctx context.Context, username, organization string) (string, error) {
	args := m.Called(ctx, username, organization)
	return args.String(0), args.Error(1)
}

// Source always hands out Service, or Err when set.
type Source struct {
	Service bsidca.Service
	Err     error
}

func (s *Source) Acquire(ctx context.Context) (bsidca.Service, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	return s.Service, nil
}

// MustParse parses an XML fixture and panics on malformed input.
func MustParse(s string) *xmlfield.Document {
	doc, err := xmlfield.ParseString(s)
	if err != nil {
		panic(err)
	}
	return doc
}
