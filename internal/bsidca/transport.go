package bsidca

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"net/http"
	"net/http/cookiejar"
	"os"
	"time"
)

const (
	defaultMaxConns       = 20
	defaultConnectTimeout = 20 * time.Second
	defaultReadTimeout    = 20 * time.Second
	defaultIdleTimeout    = 20 * time.Second
)

// TransportConfig bounds the pooled HTTP client every session handle uses.
type TransportConfig struct {
	MaxConns           int           `mapstructure:"max_conns"`
	ConnectTimeout     time.Duration `mapstructure:"connect_timeout"`
	ReadTimeout        time.Duration `mapstructure:"read_timeout"`
	IdleTimeout        time.Duration `mapstructure:"idle_timeout"`
	CAFile             string        `mapstructure:"ca_file"`
	InsecureSkipVerify bool          `mapstructure:"insecure_skip_verify"`
}

func (tc TransportConfig) withDefaults() TransportConfig {
	if tc.MaxConns <= 0 {
		tc.MaxConns = defaultMaxConns
	}
	if tc.ConnectTimeout <= 0 {
		tc.ConnectTimeout = defaultConnectTimeout
	}
	if tc.ReadTimeout <= 0 {
		tc.ReadTimeout = defaultReadTimeout
	}
	if tc.IdleTimeout <= 0 {
		tc.IdleTimeout = defaultIdleTimeout
	}
	return tc
}

func loadTLSConfig(tc TransportConfig) (*tls.Config, error) {
	config := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: tc.InsecureSkipVerify,
	}

	if tc.CAFile != "" {
		ca, err := os.ReadFile(tc.CAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA certificate: %w", err)
		}
		caPool := x509.NewCertPool()
		if !caPool.AppendCertsFromPEM(ca) {
			return nil, fmt.Errorf("failed to append CA certificate")
		}
		config.RootCAs = caPool
	}

	return config, nil
}

// newHTTPClient builds a fresh transport and cookie jar. The backend binds
// the operator session to a cookie, so every reconnection gets its own jar.
func newHTTPClient(tc TransportConfig) (*http.Client, *http.Transport, error) {
	tc = tc.withDefaults()

	tlsConfig, err := loadTLSConfig(tc)
	if err != nil {
		return nil, nil, err
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   tc.ConnectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSClientConfig:       tlsConfig,
		TLSHandshakeTimeout:   tc.ConnectTimeout,
		MaxIdleConns:          tc.MaxConns,
		MaxIdleConnsPerHost:   tc.MaxConns,
		MaxConnsPerHost:       tc.MaxConns,
		IdleConnTimeout:       tc.IdleTimeout,
		ResponseHeaderTimeout: tc.ReadTimeout,
	}

	client := &http.Client{
		Transport: transport,
		Jar:       jar,
	}
	return client, transport, nil
}
