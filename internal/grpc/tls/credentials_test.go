package tls

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSelfSigned(t *testing.T) (certFile, keyFile string) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "silo-enroll-test"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
		DNSNames:              []string{"localhost"},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	keyDER, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)

	dir := t.TempDir()
	certFile = filepath.Join(dir, "server.crt")
	keyFile = filepath.Join(dir, "server.key")
	require.NoError(t, os.WriteFile(certFile, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o600))
	require.NoError(t, os.WriteFile(keyFile, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}), 0o600))
	return certFile, keyFile
}

func TestParseClientAuthType(t *testing.T) {
	tests := []struct {
		in      string
		want    tls.ClientAuthType
		wantErr bool
	}{
		{"", tls.NoClientCert, false},
		{"none", tls.NoClientCert, false},
		{"Request", tls.RequestClientCert, false},
		{"require", tls.RequireAndVerifyClientCert, false},
		{"always", tls.NoClientCert, true},
	}
	for _, tt := range tests {
		got, err := ParseClientAuthType(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestLoadServerCredentials(t *testing.T) {
	certFile, keyFile := writeSelfSigned(t)

	creds, err := LoadServerCredentials(Config{CertFile: certFile, KeyFile: keyFile})
	require.NoError(t, err)
	assert.Equal(t, "tls", creds.Info().SecurityProtocol)

	_, err = LoadServerCredentials(Config{CertFile: certFile, KeyFile: keyFile, CAFile: certFile, ClientAuth: "require"})
	assert.NoError(t, err)
}

func TestLoadServerCredentialsErrors(t *testing.T) {
	certFile, keyFile := writeSelfSigned(t)

	_, err := LoadServerCredentials(Config{CertFile: "missing.crt", KeyFile: keyFile})
	assert.Error(t, err)

	_, err = LoadServerCredentials(Config{CertFile: certFile, KeyFile: keyFile, ClientAuth: "require"})
	assert.Error(t, err)

	_, err = LoadServerCredentials(Config{CertFile: certFile, KeyFile: keyFile, ClientAuth: "bogus"})
	assert.Error(t, err)
}
