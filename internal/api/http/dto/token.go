package dto

import (
	"time"

	"github.com/EternisAI/silo-enroll/internal/tokens"
)

type Token struct {
	SerialNumber        string `json:"serial_number"`
	TokenType           string `json:"token_type"`
	State               string `json:"state"`
	StateID             int    `json:"state_id"`
	StateLastSetDate    string `json:"state_last_set_date,omitempty"`
	Username            string `json:"username"`
	Organization        string `json:"organization"`
	ContainerName       string `json:"container_name,omitempty"`
	HardwareInitialized bool   `json:"hardware_initialized"`
	CanBeAssigned       bool   `json:"can_be_assigned"`
}

func NewToken(t *tokens.Token) Token {
	out := Token{
		SerialNumber:        t.Serial,
		TokenType:           t.Kind,
		State:               t.State,
		StateID:             t.StateID,
		Username:            t.Owner,
		Organization:        t.Organization,
		ContainerName:       t.Container,
		HardwareInitialized: t.HardwareInitialized,
		CanBeAssigned:       t.Assignable,
	}
	if t.StateSetDate != nil {
		out.StateLastSetDate = t.StateSetDate.Format(time.RFC3339)
	}
	return out
}

func NewTokens(ts []*tokens.Token) []Token {
	out := make([]Token, 0, len(ts))
	for _, t := range ts {
		out = append(out, NewToken(t))
	}
	return out
}
