package enrollment

import (
	"errors"
	"fmt"
	"strings"

	"github.com/EternisAI/silo-enroll/internal/tokens"
)

var ErrUnsupportedMethod = errors.New("unsupported enrollment method")

type Method string

const (
	MethodEmail Method = "EMAIL"
	MethodURL   Method = "URL"
	MethodAPI   Method = "API"
)

func ParseMethod(s string) (Method, error) {
	switch m := Method(strings.ToUpper(strings.TrimSpace(s))); m {
	case MethodEmail, MethodURL, MethodAPI:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedMethod, s)
	}
}

type Status string

const (
	StatusComplete  Status = "complete"
	StatusChallenge Status = "challenge"
	StatusError     Status = "error"
)

// Request is one enrollment call. ContinuationState is empty on the first
// call and carries the code returned with a CHALLENGE on the second.
type Request struct {
	PrincipalID       string
	Organization      string
	Kind              tokens.Kind
	Method            Method
	ContinuationState string
	ChallengeResponse string
}

// TokenData is what the caller gets back with a COMPLETE or CHALLENGE
// outcome. ContinuationState is the backend enrollment code itself and is
// never stored server side.
type TokenData struct {
	Method             Method      `json:"method,omitempty"`
	Kind               tokens.Kind `json:"token_type,omitempty"`
	ProvisioningTaskID *int        `json:"provId,omitempty"`
	ActivationURL      string      `json:"url,omitempty"`
	ChallengeImage     string      `json:"image,omitempty"`
	ContinuationState  string      `json:"state,omitempty"`
}

type Response struct {
	Status  Status     `json:"status"`
	Message string     `json:"message"`
	Data    *TokenData `json:"token_data,omitempty"`
}

const (
	msgEmailSent       = "An enrollment email has been sent containing the steps to activate your authenticator."
	msgEmailFailed     = "We encountered an error while trying to email your token enrollment steps. Please try again in a few minutes."
	msgLinkReady       = "Follow the instructions to activate your authenticator at the link below."
	msgLinkFailed      = "We encountered an error while trying to generate your enrollment link. Please try again in a few minutes."
	msgActivationLink  = "Enroll your authenticator with the following activation link."
	msgActivated       = "Your authenticator has been successfully activated!"
	msgChallenge       = "Respond to the challenge in the enrollment image to complete the activation process."
	msgChallengeFailed = "We encountered an error while generating the enrollment image. Please try again in a few minutes."
	msgAPIFailed       = "There has been an issue during the enrollment process of your authenticator. Please try again in a few minutes."
)
