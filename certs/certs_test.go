package certs

import (
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObtainSynthesizesWhenNoPathsGiven(t *testing.T) {
	mat, err := Obtain("getrekt.com", "", "")
	require.NoError(t, err)

	cert, err := x509.ParseCertificate(mat.CertDER)
	require.NoError(t, err)
	assert.Equal(t, "getrekt.com", cert.Subject.CommonName)

	key, err := x509.ParsePKCS8PrivateKey(mat.KeyDER)
	require.NoError(t, err)
	assert.NotNil(t, key)
}

func TestObtainSynthesizesDistinctKeysEachCall(t *testing.T) {
	a, err := Obtain("issuer.test", "", "")
	require.NoError(t, err)
	b, err := Obtain("issuer.test", "", "")
	require.NoError(t, err)
	assert.NotEqual(t, a.KeyDER, b.KeyDER)
}

func TestObtainLoadsFromDisk(t *testing.T) {
	dir := t.TempDir()
	keyPath := filepath.Join(dir, "key.pem")
	certPath := filepath.Join(dir, "cert.pem")

	want, err := synthesize("load-me.test")
	require.NoError(t, err)

	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: want.KeyDER})
	require.NoError(t, os.WriteFile(keyPath, keyPEM, 0o600))

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: want.CertDER})
	require.NoError(t, os.WriteFile(certPath, certPEM, 0o644))

	got, err := Obtain("ignored-when-loading", keyPath, certPath)
	require.NoError(t, err)
	assert.Equal(t, want.CertDER, got.CertDER)
}

func TestObtainLoadFailsOnMissingFile(t *testing.T) {
	_, err := Obtain("issuer.test", "/nonexistent/key.pem", "/nonexistent/cert.pem")
	require.Error(t, err)
	var loadErr *LoadError
	assert.ErrorAs(t, err, &loadErr)
}
