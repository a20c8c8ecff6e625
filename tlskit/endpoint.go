// Package tlskit is dropperoni's TLS endpoint kit (C2). It turns C1's
// certificate material into a server-side acceptor config, builds a
// client-side connector that trusts any upstream certificate (the
// documented trust-bypass the whole tool exists to perform), and
// exposes a single dual-mode stream type so the rest of the proxy
// never has to care whether the upstream leg is plaintext or TLS.
package tlskit

import (
	"crypto"
	"crypto/tls"
	"crypto/x509"
	"fmt"
)

// TlsConfigError reports that the supplied key does not match the
// supplied certificate, per spec §4.2.
type TlsConfigError struct{ Err error }

func (e *TlsConfigError) Error() string { return fmt.Sprintf("tlskit: %v", e.Err) }
func (e *TlsConfigError) Unwrap() error { return e.Err }

// NewAcceptorConfig builds a server tls.Config from DER certificate and
// PKCS#8 key material using safe modern defaults, no client
// authentication, and a single certificate chain. It fails if the key
// does not match the certificate.
func NewAcceptorConfig(certDER, keyDER []byte) (*tls.Config, error) {
	cert, err := x509.ParseCertificate(certDER)
	if err != nil {
		return nil, fmt.Errorf("tlskit: parsing certificate: %w", err)
	}
	key, err := x509.ParsePKCS8PrivateKey(keyDER)
	if err != nil {
		return nil, fmt.Errorf("tlskit: parsing key: %w", err)
	}

	signer, ok := key.(crypto.Signer)
	if !ok {
		return nil, &TlsConfigError{Err: fmt.Errorf("key of type %T is not a signer", key)}
	}
	certPub, ok := cert.PublicKey.(interface{ Equal(crypto.PublicKey) bool })
	if !ok || !certPub.Equal(signer.Public()) {
		return nil, &TlsConfigError{Err: fmt.Errorf("key does not match certificate public key")}
	}

	tlsCert := tls.Certificate{
		Certificate: [][]byte{certDER},
		PrivateKey:  key,
		Leaf:        cert,
	}

	return &tls.Config{
		Certificates: []tls.Certificate{tlsCert},
		MinVersion:   tls.VersionTLS12,
		ClientAuth:   tls.NoClientCert,
	}, nil
}

// NewConnectorConfig builds a client tls.Config that accepts any
// upstream certificate chain unconditionally. This is a trust-bypass,
// not an oversight: the proxy must be able to terminate TLS to a
// server whose certificate it cannot (and must not try to) validate,
// since the whole point is transparent interception. It must never be
// used as a general-purpose HTTP client configuration.
func NewConnectorConfig(serverName string) *tls.Config {
	return &tls.Config{
		RootCAs:            x509.NewCertPool(),
		InsecureSkipVerify: true, //nolint:gosec // trust-bypass is the documented behavior; see spec §4.2
		ServerName:         serverName,
		VerifyPeerCertificate: func(rawCerts [][]byte, verifiedChains [][]*x509.Certificate) error {
			return nil
		},
	}
}
