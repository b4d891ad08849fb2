// Package bsidca is a SOAP client for the fixed BSIDCA provisioning
// operation set. A Client is one authenticated session: it owns its pooled
// transport and the cookie jar holding the operator session.
package bsidca

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/EternisAI/silo-enroll/internal/xmlfield"
	"github.com/google/uuid"
)

const (
	servicePath     = "/BSIDCA/BSIDCA.asmx"
	maxResponseSize = 16 << 20
)

type Config struct {
	BaseURL   string          `mapstructure:"base_url"`
	Operator  string          `mapstructure:"operator"`
	Secret    string          `mapstructure:"secret" json:"-"`
	Transport TransportConfig `mapstructure:"transport"`
}

func (c Config) Endpoint() string {
	return strings.TrimRight(c.BaseURL, "/") + servicePath
}

type Client struct {
	endpoint   string
	httpClient *http.Client
	transport  *http.Transport
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("bsidca base_url is required")
	}

	httpClient, transport, err := newHTTPClient(cfg.Transport)
	if err != nil {
		return nil, err
	}

	return &Client{
		endpoint:   cfg.Endpoint(),
		httpClient: httpClient,
		transport:  transport,
	}, nil
}

// Dial creates a client and authenticates the operator session on it.
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	c, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}

	result, err := c.Connect(ctx, cfg.Operator, cfg.Secret)
	if err != nil {
		c.Close()
		return nil, err
	}
	if !strings.EqualFold(result, ResultSuccess) {
		c.Close()
		return nil, fmt.Errorf("%w: %s", ErrNotAuthenticated, result)
	}

	slog.Info("Authenticated with backend", "endpoint", c.endpoint, "result", result)
	return c, nil
}

func (c *Client) Close() {
	c.transport.CloseIdleConnections()
}

func (c *Client) Endpoint() string {
	return c.endpoint
}

func (c *Client) call(ctx context.Context, op string, payload any) (*xmlfield.Document, error) {
	body, err := encodeEnvelope(payload)
	if err != nil {
		return nil, remoteErr(op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, remoteErr(op, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", `"`+Namespace+op+`"`)

	requestID := uuid.New().String()
	start := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, remoteErr(op, fmt.Errorf("failed to execute request: %w", err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, remoteErr(op, fmt.Errorf("failed to read response body: %w", err))
	}

	slog.Debug("Backend call",
		"request_id", requestID,
		"operation", op,
		"status_code", resp.StatusCode,
		"content_length", len(raw),
		"duration", time.Since(start))

	doc, err := xmlfield.Parse(bytes.NewReader(raw))
	if err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, remoteErr(op, fmt.Errorf("unexpected status code %d", resp.StatusCode))
		}
		return nil, remoteErr(op, err)
	}

	result, err := decodeEnvelope(op, doc)
	if err != nil {
		return nil, remoteErr(op, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, remoteErr(op, fmt.Errorf("unexpected status code %d", resp.StatusCode))
	}
	return result, nil
}
