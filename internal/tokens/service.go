// Package tokens reads and revokes the authenticators the backend holds for
// a principal. Every call is a read-through to the backend.
package tokens

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/EternisAI/silo-enroll/internal/bsidca"
	"github.com/EternisAI/silo-enroll/internal/metrics"
	"github.com/EternisAI/silo-enroll/internal/xmlfield"
)

const tokenRow = "Named_Tokens_Table"

type Service struct {
	source  bsidca.Source
	metrics *metrics.Metrics
}

func NewService(source bsidca.Source, m *metrics.Metrics) *Service {
	return &Service{
		source:  source,
		metrics: m,
	}
}

// ListByOwner returns the serials owned by owner. Remote faults yield an
// empty list; only a failure to acquire the session is returned.
func (s *Service) ListByOwner(ctx context.Context, owner, organization string) ([]string, error) {
	svc, err := s.source.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	serials, err := svc.GetTokensByOwner(ctx, owner, organization)
	if err != nil {
		slog.Error("Failed to list tokens by owner", "owner", owner, "organization", organization, "error", err)
		return []string{}, nil
	}
	return serials, nil
}

// Describe returns nil when the serial is unknown or the lookup fails.
func (s *Service) Describe(ctx context.Context, serial, organization string) (*Token, error) {
	svc, err := s.source.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return s.describe(ctx, svc, serial, organization), nil
}

func (s *Service) describe(ctx context.Context, svc bsidca.Service, serial, organization string) *Token {
	doc, err := svc.GetTokens(ctx, bsidca.TokenQuery{
		Serial:       serial,
		Organization: organization,
		PageSize:     1,
	})
	if err != nil {
		slog.Error("Failed to describe token", "serial", serial, "organization", organization, "error", err)
		return nil
	}

	rows := doc.Rows(tokenRow)
	if len(rows) == 0 {
		slog.Debug("Token not found", "serial", serial, "organization", organization)
		return nil
	}
	return parseToken(rows[0])
}

// ListFiltered describes every token owned by owner and keeps those matching
// filter. Serials that cannot be described are omitted.
func (s *Service) ListFiltered(ctx context.Context, owner, organization string, filter Filter) ([]*Token, error) {
	svc, err := s.source.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return s.listFiltered(ctx, svc, owner, organization, filter), nil
}

func (s *Service) listFiltered(ctx context.Context, svc bsidca.Service, owner, organization string, filter Filter) []*Token {
	serials, err := svc.GetTokensByOwner(ctx, owner, organization)
	if err != nil {
		slog.Error("Failed to list tokens by owner", "owner", owner, "organization", organization, "error", err)
		return []*Token{}
	}

	result := make([]*Token, 0, len(serials))
	for _, serial := range serials {
		token := s.describe(ctx, svc, serial, organization)
		if token == nil {
			continue
		}
		if filter.Match(token) {
			result = append(result, token)
		}
	}

	slog.Debug("Filtered tokens",
		"owner", owner,
		"organization", organization,
		"kind", filter.Kind,
		"state", filter.State,
		"total", len(serials),
		"matched", len(result))
	return result
}

// Revoke returns the token to inventory, keeping any static password.
func (s *Service) Revoke(ctx context.Context, owner, serial, organization string) (bool, error) {
	svc, err := s.source.Acquire(ctx)
	if err != nil {
		return false, err
	}
	return s.revoke(ctx, svc, owner, serial, organization), nil
}

func (s *Service) revoke(ctx context.Context, svc bsidca.Service, owner, serial, organization string) bool {
	slog.Info("Revoking token", "serial", serial, "owner", owner, "organization", organization)

	result, err := svc.RevokeToken(ctx, bsidca.RevokeRequest{
		Owner:                owner,
		Serial:               serial,
		Organization:         organization,
		Mode:                 bsidca.RevokeReturnToInventoryInitialized,
		RevokeStaticPassword: false,
	})
	if err != nil {
		slog.Error("Failed to revoke token", "serial", serial, "owner", owner, "error", err)
		s.metrics.TokenRevoked(false)
		return false
	}

	ok := strings.EqualFold(result, bsidca.ResultSuccess)
	s.metrics.TokenRevoked(ok)
	return ok
}

// RevokeBySerial looks up the owner of serial and revokes it from them.
func (s *Service) RevokeBySerial(ctx context.Context, serial, organization string) (bool, error) {
	svc, err := s.source.Acquire(ctx)
	if err != nil {
		return false, err
	}

	token := s.describe(ctx, svc, serial, organization)
	if token == nil {
		return false, nil
	}
	return s.revoke(ctx, svc, token.Owner, serial, organization), nil
}

// RevokeFiltered revokes every token ListFiltered would return and reports
// the result per serial.
func (s *Service) RevokeFiltered(ctx context.Context, owner, organization string, filter Filter) (map[string]bool, error) {
	svc, err := s.source.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	tokens := s.listFiltered(ctx, svc, owner, organization, filter)
	results := make(map[string]bool, len(tokens))
	for _, token := range tokens {
		results[token.Serial] = s.revoke(ctx, svc, owner, token.Serial, organization)
	}
	return results, nil
}

func parseToken(row *xmlfield.Document) *Token {
	token := &Token{
		Serial:              row.Text("serialnumber"),
		Kind:                row.Text("type"),
		State:               row.Text("state"),
		Owner:               row.Text("userid"),
		Organization:        row.Text("orgName"),
		Container:           row.Text("container"),
		HardwareInitialized: row.Bool("hardwareInit"),
		Assignable:          row.Bool("assignable"),
	}

	if id, err := row.Int("stateInt"); err == nil {
		token.StateID = id
	}
	if v, ok := row.Value("stateSetDate"); ok && v != "" {
		if ts, err := time.Parse(time.RFC3339Nano, v); err == nil {
			token.StateSetDate = &ts
		} else {
			slog.Debug("Unparseable token state date", "serial", token.Serial, "value", v)
		}
	}
	return token
}
