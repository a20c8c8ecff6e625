package tlskit

import (
	"crypto/tls"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krystianbajno/dropperoni/certs"
)

func TestNewAcceptorConfigRoundTrips(t *testing.T) {
	mat, err := certs.Obtain("endpoint.test", "", "")
	require.NoError(t, err)

	cfg, err := NewAcceptorConfig(mat.CertDER, mat.KeyDER)
	require.NoError(t, err)
	require.Len(t, cfg.Certificates, 1)
	assert.Equal(t, tls.VersionTLS12, int(cfg.MinVersion))
	assert.Equal(t, tls.NoClientCert, cfg.ClientAuth)
}

func TestNewAcceptorConfigRejectsMismatchedKey(t *testing.T) {
	a, err := certs.Obtain("a.test", "", "")
	require.NoError(t, err)
	b, err := certs.Obtain("b.test", "", "")
	require.NoError(t, err)

	_, err = NewAcceptorConfig(a.CertDER, b.KeyDER)
	var tlsErr *TlsConfigError
	require.ErrorAs(t, err, &tlsErr)
}

func TestNewConnectorConfigAcceptsAnyChain(t *testing.T) {
	cfg := NewConnectorConfig("upstream.example")
	assert.True(t, cfg.InsecureSkipVerify)
	require.NotNil(t, cfg.VerifyPeerCertificate)
	assert.NoError(t, cfg.VerifyPeerCertificate(nil, nil))
	assert.Equal(t, "upstream.example", cfg.ServerName)
}

func TestStreamDispatchesToUnderlyingConn(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	s := NewPlainStream(client)
	assert.False(t, s.IsTLS())

	go func() {
		buf := make([]byte, 5)
		n, _ := server.Read(buf)
		_, _ = server.Write(buf[:n])
	}()

	_, err := s.Write([]byte("hello"))
	require.NoError(t, err)

	buf := make([]byte, 5)
	n, err := s.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf[:n]))
}
