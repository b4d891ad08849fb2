package bsidca

import (
	"context"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/EternisAI/silo-enroll/internal/xmlfield"
)

const (
	ResultSuccess = "Success"

	RevokeReturnToInventoryInitialized = "ReturnToInventoryInitialized"
	ProvisioningEmailSent              = "EmailSent"
	UserDeleted                        = "Deleted"
)

// Service is the backend operation set available on an authenticated session.
type Service interface {
	PingConnection(ctx context.Context) (bool, error)
	ProvisionUsers(ctx context.Context, req ProvisionRequest) ([]string, error)
	ProvisionUsersGrIDsureTokens(ctx context.Context, req ProvisionRequest) (string, error)
	GetProvisioningTasksForUser(ctx context.Context, req TaskQuery) (*xmlfield.Document, error)
	GetEnrollmentURL(ctx context.Context, owner string, taskID int, organization string) (string, error)
	GetMobilePASSProvisioningActivationCode(ctx context.Context, owner string, taskID int, organization string) (string, error)
	ProcessEnrollment(ctx context.Context, code, otp string) (*EnrollmentReply, error)
	GetTokensByOwner(ctx context.Context, owner, organization string) ([]string, error)
	GetTokens(ctx context.Context, req TokenQuery) (*xmlfield.Document, error)
	RevokeToken(ctx context.Context, req RevokeRequest) (string, error)
	GetUser(ctx context.Context, username, organization string) (*UserRecord, error)
	AddUser(ctx context.Context, user UserRecord, organization string) (bool, error)
	RemoveUser(ctx context.Context, username, organization string) (string, error)
}

// Source hands out a live Service. Implementations may block while a
// session is re-established.
type Source interface {
	Acquire(ctx context.Context) (Service, error)
}

var _ Service = (*Client)(nil)

type ProvisionRequest struct {
	Usernames    []string
	Organization string
	Description  string
	TokenOption  string
}

type TaskQuery struct {
	Owner        string
	Organization string
	StartRecord  int
	PageSize     int
}

type TokenQuery struct {
	Serial       string
	Organization string
	StartRecord  int
	PageSize     int
}

type RevokeRequest struct {
	Owner                string
	Serial               string
	Organization         string
	Mode                 string
	RevokeStaticPassword bool
}

// EnrollmentReply is the outcome of ProcessEnrollment. Challenge holds the
// CustomInfo element when the backend asks for a second phase.
type EnrollmentReply struct {
	Result    string
	Challenge *xmlfield.Document
}

// ChallengeImage returns the base64 image of the enrollment challenge, if any.
func (r *EnrollmentReply) ChallengeImage() string {
	if r == nil {
		return ""
	}
	return r.Challenge.Text("EnrollmentImage")
}

type UserRecord struct {
	UserName      string `xml:"UserName"`
	FirstName     string `xml:"FirstName,omitempty"`
	LastName      string `xml:"LastName,omitempty"`
	Address       string `xml:"Address,omitempty"`
	City          string `xml:"City,omitempty"`
	State         string `xml:"State,omitempty"`
	Zip           string `xml:"Zip,omitempty"`
	Country       string `xml:"Country,omitempty"`
	Email         string `xml:"Email,omitempty"`
	Telephone     string `xml:"Telephone,omitempty"`
	Extension     string `xml:"Extension,omitempty"`
	Mobile        string `xml:"Mobile,omitempty"`
	ContainerName string `xml:"ContainerName,omitempty"`
	Locked        bool   `xml:"Locked"`
}

func userFromDocument(doc *xmlfield.Document) *UserRecord {
	return &UserRecord{
		UserName:      doc.Text("UserName"),
		FirstName:     doc.Text("FirstName"),
		LastName:      doc.Text("LastName"),
		Address:       doc.Text("Address"),
		City:          doc.Text("City"),
		State:         doc.Text("State"),
		Zip:           doc.Text("Zip"),
		Country:       doc.Text("Country"),
		Email:         doc.Text("Email"),
		Telephone:     doc.Text("Telephone"),
		Extension:     doc.Text("Extension"),
		Mobile:        doc.Text("Mobile"),
		ContainerName: doc.Text("ContainerName"),
		Locked:        doc.Bool("Locked"),
	}
}

type connectRequest struct {
	XMLName        xml.Name `xml:"http://www.cryptocard.com/blackshield/ Connect"`
	OperatorEmail  string   `xml:"OperatorEmail"`
	OTP            string   `xml:"OTP"`
	ValidationCode string   `xml:"ValidationCode,omitempty"`
}

type pingConnectionRequest struct {
	XMLName xml.Name `xml:"http://www.cryptocard.com/blackshield/ PingConnection"`
}

type provisionUsersRequest struct {
	XMLName      xml.Name `xml:"http://www.cryptocard.com/blackshield/ ProvisionUsers"`
	UserNames    []string `xml:"UserNames>string"`
	Organization string   `xml:"Organization"`
	Description  string   `xml:"Description"`
	TokenClass   string   `xml:"TokenClass"`
}

type provisionGrIDsureRequest struct {
	XMLName      xml.Name `xml:"http://www.cryptocard.com/blackshield/ ProvisionUsersGrIDsureTokens"`
	UserNames    []string `xml:"UserNames>string"`
	Organization string   `xml:"Organization"`
	Description  string   `xml:"Description"`
}

type provisioningTasksRequest struct {
	XMLName         xml.Name `xml:"http://www.cryptocard.com/blackshield/ GetProvisioningTasksForUser"`
	User            string   `xml:"User"`
	Organization    string   `xml:"Organization"`
	StartRecord     int      `xml:"StartRecord"`
	NumberOfRecords int      `xml:"NumberOfRecords"`
}

type enrollmentURLRequest struct {
	XMLName      xml.Name `xml:"http://www.cryptocard.com/blackshield/ GetEnrollmentURL"`
	UserName     string   `xml:"UserName"`
	TaskID       int      `xml:"TaskID"`
	Organization string   `xml:"Organization"`
}

type activationCodeRequest struct {
	XMLName      xml.Name `xml:"http://www.cryptocard.com/blackshield/ GetMobilePASSProvisioningActivationCode"`
	UserName     string   `xml:"UserName"`
	Organization string   `xml:"Organization"`
	TaskID       int      `xml:"TaskID"`
}

type processEnrollmentRequest struct {
	XMLName xml.Name `xml:"http://www.cryptocard.com/blackshield/ ProcessEnrollment"`
	Code    string   `xml:"Code"`
	OTP     string   `xml:"OTP,omitempty"`
}

type tokensByOwnerRequest struct {
	XMLName      xml.Name `xml:"http://www.cryptocard.com/blackshield/ GetTokensByOwner"`
	UserName     string   `xml:"UserName"`
	Organization string   `xml:"Organization"`
}

type tokensRequest struct {
	XMLName      xml.Name `xml:"http://www.cryptocard.com/blackshield/ GetTokens"`
	Serial       string   `xml:"Serial"`
	Organization string   `xml:"Organization"`
	StartRecord  int      `xml:"StartRecord"`
	PageSize     int      `xml:"PageSize"`
}

type revokeTokenRequest struct {
	XMLName              xml.Name `xml:"http://www.cryptocard.com/blackshield/ RevokeToken"`
	UserName             string   `xml:"UserName"`
	Serial               string   `xml:"Serial"`
	Organization         string   `xml:"Organization"`
	RevokeMode           string   `xml:"RevokeMode"`
	RevokeStaticPassword bool     `xml:"RevokeStaticPassword"`
}

type getUserRequest struct {
	XMLName      xml.Name `xml:"http://www.cryptocard.com/blackshield/ GetUser"`
	UserName     string   `xml:"UserName"`
	Organization string   `xml:"Organization"`
}

type addUserRequest struct {
	XMLName      xml.Name   `xml:"http://www.cryptocard.com/blackshield/ AddUser"`
	User         UserRecord `xml:"User"`
	Organization string     `xml:"Organization"`
}

type removeUserRequest struct {
	XMLName      xml.Name `xml:"http://www.cryptocard.com/blackshield/ RemoveUser"`
	UserName     string   `xml:"UserName"`
	Organization string   `xml:"Organization"`
	TokenOption  string   `xml:"TokenOption"`
}

// Connect authenticates the operator on this client's cookie jar and returns
// the backend's result label.
func (c *Client) Connect(ctx context.Context, operator, secret string) (string, error) {
	resp, err := c.call(ctx, "Connect", connectRequest{OperatorEmail: operator, OTP: secret})
	if err != nil {
		return "", err
	}
	return resp.Text("ConnectResult"), nil
}

func (c *Client) PingConnection(ctx context.Context) (bool, error) {
	resp, err := c.call(ctx, "PingConnection", pingConnectionRequest{})
	if err != nil {
		return false, err
	}
	return resp.Bool("PingConnectionResult"), nil
}

func (c *Client) ProvisionUsers(ctx context.Context, req ProvisionRequest) ([]string, error) {
	resp, err := c.call(ctx, "ProvisionUsers", provisionUsersRequest{
		UserNames:    req.Usernames,
		Organization: req.Organization,
		Description:  req.Description,
		TokenClass:   req.TokenOption,
	})
	if err != nil {
		return nil, err
	}
	return resp.Values("ProvisionUsersResult/ProvisioningResult"), nil
}

func (c *Client) ProvisionUsersGrIDsureTokens(ctx context.Context, req ProvisionRequest) (string, error) {
	resp, err := c.call(ctx, "ProvisionUsersGrIDsureTokens", provisionGrIDsureRequest{
		UserNames:    req.Usernames,
		Organization: req.Organization,
		Description:  req.Description,
	})
	if err != nil {
		return "", err
	}
	return resp.Text("ProvisionUsersGrIDsureTokensResult"), nil
}

func (c *Client) GetProvisioningTasksForUser(ctx context.Context, req TaskQuery) (*xmlfield.Document, error) {
	resp, err := c.call(ctx, "GetProvisioningTasksForUser", provisioningTasksRequest{
		User:            req.Owner,
		Organization:    req.Organization,
		StartRecord:     req.StartRecord,
		NumberOfRecords: req.PageSize,
	})
	if err != nil {
		return nil, err
	}
	return resp.Child("GetProvisioningTasksForUserResult"), nil
}

func (c *Client) GetEnrollmentURL(ctx context.Context, owner string, taskID int, organization string) (string, error) {
	resp, err := c.call(ctx, "GetEnrollmentURL", enrollmentURLRequest{
		UserName:     owner,
		TaskID:       taskID,
		Organization: organization,
	})
	if err != nil {
		return "", err
	}
	return resp.Text("GetEnrollmentURLResult"), nil
}

func (c *Client) GetMobilePASSProvisioningActivationCode(ctx context.Context, owner string, taskID int, organization string) (string, error) {
	resp, err := c.call(ctx, "GetMobilePASSProvisioningActivationCode", activationCodeRequest{
		UserName:     owner,
		Organization: organization,
		TaskID:       taskID,
	})
	if err != nil {
		return "", err
	}
	return resp.Text("GetMobilePASSProvisioningActivationCodeResult"), nil
}

func (c *Client) ProcessEnrollment(ctx context.Context, code, otp string) (*EnrollmentReply, error) {
	resp, err := c.call(ctx, "ProcessEnrollment", processEnrollmentRequest{Code: code, OTP: otp})
	if err != nil {
		return nil, err
	}
	return &EnrollmentReply{
		Result:    resp.Text("ProcessEnrollmentResult"),
		Challenge: resp.Child("CustomInfo"),
	}, nil
}

func (c *Client) GetTokensByOwner(ctx context.Context, owner, organization string) ([]string, error) {
	resp, err := c.call(ctx, "GetTokensByOwner", tokensByOwnerRequest{
		UserName:     owner,
		Organization: organization,
	})
	if err != nil {
		return nil, err
	}
	return resp.Values("GetTokensByOwnerResult/string"), nil
}

func (c *Client) GetTokens(ctx context.Context, req TokenQuery) (*xmlfield.Document, error) {
	resp, err := c.call(ctx, "GetTokens", tokensRequest{
		Serial:       req.Serial,
		Organization: req.Organization,
		StartRecord:  req.StartRecord,
		PageSize:     req.PageSize,
	})
	if err != nil {
		return nil, err
	}
	return resp.Child("GetTokensResult"), nil
}

func (c *Client) RevokeToken(ctx context.Context, req RevokeRequest) (string, error) {
	mode := req.Mode
	if mode == "" {
		mode = RevokeReturnToInventoryInitialized
	}
	resp, err := c.call(ctx, "RevokeToken", revokeTokenRequest{
		UserName:             req.Owner,
		Serial:               req.Serial,
		Organization:         req.Organization,
		RevokeMode:           mode,
		RevokeStaticPassword: req.RevokeStaticPassword,
	})
	if err != nil {
		return "", err
	}
	return resp.Text("RevokeTokenResult"), nil
}

// GetUser returns nil when the backend has no such user.
func (c *Client) GetUser(ctx context.Context, username, organization string) (*UserRecord, error) {
	resp, err := c.call(ctx, "GetUser", getUserRequest{UserName: username, Organization: organization})
	if err != nil {
		return nil, err
	}
	result := resp.Child("GetUserResult")
	if result.Empty() {
		return nil, nil
	}
	return userFromDocument(result), nil
}

func (c *Client) AddUser(ctx context.Context, user UserRecord, organization string) (bool, error) {
	if strings.TrimSpace(user.UserName) == "" {
		return false, remoteErr("AddUser", fmt.Errorf("user name is required"))
	}
	resp, err := c.call(ctx, "AddUser", addUserRequest{User: user, Organization: organization})
	if err != nil {
		return false, err
	}
	return resp.Bool("AddUserResult"), nil
}

func (c *Client) RemoveUser(ctx context.Context, username, organization string) (string, error) {
	resp, err := c.call(ctx, "RemoveUser", removeUserRequest{
		UserName:     username,
		Organization: organization,
		TokenOption:  RevokeReturnToInventoryInitialized,
	})
	if err != nil {
		return "", err
	}
	return resp.Text("RemoveUserResult"), nil
}
